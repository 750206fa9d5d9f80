// Package rule models introspectable type rules: the target shape a value
// is coerced into, combinator structure for unions, and named references
// resolved in a second phase. It carries no coercion logic of its own.
package rule

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"
)

// Kind is the structural category of a rule.
type Kind int

const (
	Any Kind = iota
	Bool
	Int
	Uint
	Float
	String
	Bytes
	Time
	Duration
	List
	Map
	Object
	Literal
	AnyOf
	OneOf
	Ref
	Iterator
	Generator
	AsyncIterator
	AsyncGenerator
)

var kindNames = map[Kind]string{
	Any:            "any",
	Bool:           "bool",
	Int:            "int",
	Uint:           "uint",
	Float:          "float",
	String:         "string",
	Bytes:          "bytes",
	Time:           "time",
	Duration:       "duration",
	List:           "list",
	Map:            "map",
	Object:         "object",
	Literal:        "literal",
	AnyOf:          "anyOf",
	OneOf:          "oneOf",
	Ref:            "ref",
	Iterator:       "iterator",
	Generator:      "generator",
	AsyncIterator:  "asyncIterator",
	AsyncGenerator: "asyncGenerator",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Rule is one node of a type rule tree.
type Rule struct {
	Kind Kind
	// GoType is the concrete Go type a coerced value should have, when one
	// is known. Nil for Any and pure combinators.
	GoType reflect.Type
	// Elem is the element rule for List, the value rule for Map, and the
	// yield rule for iterator kinds.
	Elem *Rule
	// Key is the key rule for Map.
	Key *Rule
	// Args are the member rules of AnyOf/OneOf, and the yield/send/return
	// slots of Generator (send/return omitted for the async kinds).
	Args []*Rule
	// Const is the constant of a Literal rule.
	Const any
	// Name names an Object or the target of a Ref.
	Name string
	// Fields maps canonical field names to their input rules for Object
	// kinds, populated by the schema builder. Used for union discrimination.
	Fields map[string]*Rule
	// Schema is the opaque parser that owns an Object rule.
	Schema any
	// Constraints are named value constraints (gt, max_length, regex, enum,
	// const) enforced by the transformer after coercion.
	Constraints map[string]any

	resolved *Rule
}

// Of returns a bare rule of the given kind.
func Of(k Kind) *Rule { return &Rule{Kind: k} }

// OfType derives a rule from a concrete Go type.
func OfType(t reflect.Type) *Rule {
	if t == nil {
		return Of(Any)
	}
	switch t {
	case reflect.TypeOf(time.Time{}):
		return &Rule{Kind: Time, GoType: t}
	case reflect.TypeOf(time.Duration(0)):
		return &Rule{Kind: Duration, GoType: t}
	}
	switch t.Kind() {
	case reflect.Bool:
		return &Rule{Kind: Bool, GoType: t}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return &Rule{Kind: Int, GoType: t}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &Rule{Kind: Uint, GoType: t}
	case reflect.Float32, reflect.Float64:
		return &Rule{Kind: Float, GoType: t}
	case reflect.String:
		return &Rule{Kind: String, GoType: t}
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return &Rule{Kind: Bytes, GoType: t}
		}
		return &Rule{Kind: List, GoType: t, Elem: OfType(t.Elem())}
	case reflect.Array:
		return &Rule{Kind: List, GoType: t, Elem: OfType(t.Elem())}
	case reflect.Map:
		return &Rule{Kind: Map, GoType: t, Key: OfType(t.Key()), Elem: OfType(t.Elem())}
	case reflect.Struct:
		return &Rule{Kind: Object, GoType: t, Name: t.Name()}
	case reflect.Ptr:
		inner := OfType(t.Elem())
		out := *inner
		out.GoType = t
		return &out
	default:
		return &Rule{Kind: Any, GoType: t}
	}
}

// T derives a rule from a type parameter.
func T[V any]() *Rule {
	return OfType(reflect.TypeOf((*V)(nil)).Elem())
}

// ListOf returns a list rule over elem.
func ListOf(elem *Rule) *Rule { return &Rule{Kind: List, Elem: elem} }

// MapOf returns a map rule over key and value.
func MapOf(key, value *Rule) *Rule { return &Rule{Kind: Map, Key: key, Elem: value} }

// LiteralOf returns a rule matching exactly the constant v.
func LiteralOf(v any) *Rule { return &Rule{Kind: Literal, Const: v} }

// AnyOfRules returns a rule matched by the first member that accepts.
func AnyOfRules(members ...*Rule) *Rule { return &Rule{Kind: AnyOf, Args: members} }

// OneOfRules returns a rule matched by exactly one member.
func OneOfRules(members ...*Rule) *Rule { return &Rule{Kind: OneOf, Args: members} }

// IteratorOf returns a yield-only iterator rule.
func IteratorOf(yield *Rule) *Rule {
	return &Rule{Kind: Iterator, Elem: yield, Args: []*Rule{yield}}
}

// GeneratorOf returns a three-slot generator rule.
func GeneratorOf(yield, send, ret *Rule) *Rule {
	return &Rule{Kind: Generator, Elem: yield, Args: []*Rule{yield, send, ret}}
}

// AsyncIteratorOf returns a yield-only async iterator rule.
func AsyncIteratorOf(yield *Rule) *Rule {
	return &Rule{Kind: AsyncIterator, Elem: yield, Args: []*Rule{yield}}
}

// AsyncGeneratorOf returns a yield/send async generator rule; async
// generators carry no return slot.
func AsyncGeneratorOf(yield, send *Rule) *Rule {
	return &Rule{Kind: AsyncGenerator, Elem: yield, Args: []*Rule{yield, send}}
}

// Constrain attaches a named constraint and returns the rule.
func (r *Rule) Constrain(name string, v any) *Rule {
	if r.Constraints == nil {
		r.Constraints = map[string]any{}
	}
	r.Constraints[name] = v
	return r
}

// WithConstraints merges a constraint map into the rule.
func (r *Rule) WithConstraints(cs map[string]any) *Rule {
	for k, v := range cs {
		r.Constrain(k, v)
	}
	return r
}

// Resolve follows a Ref to its defined target, or returns the rule itself.
// An unresolved Ref resolves to itself; Namespace.Finalize rejects that case
// up front.
func (r *Rule) Resolve() *Rule {
	cur := r
	for cur.Kind == Ref && cur.resolved != nil {
		cur = cur.resolved
	}
	return cur
}

// Combined reports the combinator kind and member rules when the rule is a
// union, with refs resolved.
func (r *Rule) Combined() (Kind, []*Rule, bool) {
	res := r.Resolve()
	if res.Kind == AnyOf || res.Kind == OneOf {
		return res.Kind, res.Args, true
	}
	return res.Kind, nil, false
}

// IteratorSlots decomposes an iterator-kind rule into yield, send and return
// slots. Missing slots come back as Any.
func (r *Rule) IteratorSlots() (yield, send, ret *Rule, ok bool) {
	res := r.Resolve()
	switch res.Kind {
	case Iterator, Generator, AsyncIterator, AsyncGenerator:
	default:
		return nil, nil, nil, false
	}
	slot := func(i int) *Rule {
		if i < len(res.Args) && res.Args[i] != nil {
			return res.Args[i]
		}
		return Of(Any)
	}
	return slot(0), slot(1), slot(2), true
}

func (r *Rule) String() string {
	if r == nil {
		return "any"
	}
	switch r.Kind {
	case Literal:
		return fmt.Sprintf("literal(%v)", r.Const)
	case List:
		return fmt.Sprintf("list[%s]", r.Elem.String())
	case Map:
		return fmt.Sprintf("map[%s]%s", r.Key.String(), r.Elem.String())
	case Object:
		if r.Name != "" {
			return r.Name
		}
		return "object"
	case AnyOf, OneOf:
		parts := make([]string, len(r.Args))
		for i, a := range r.Args {
			parts[i] = a.String()
		}
		return fmt.Sprintf("%s(%s)", r.Kind, strings.Join(parts, ", "))
	case Ref:
		return fmt.Sprintf("ref(%s)", r.Name)
	case Iterator, AsyncIterator:
		return fmt.Sprintf("%s[%s]", r.Kind, r.Elem.String())
	case Generator, AsyncGenerator:
		parts := make([]string, len(r.Args))
		for i, a := range r.Args {
			parts[i] = a.String()
		}
		return fmt.Sprintf("%s[%s]", r.Kind, strings.Join(parts, ", "))
	default:
		if r.GoType != nil {
			return r.GoType.String()
		}
		return r.Kind.String()
	}
}

// Namespace resolves named forward references in two phases: Ref hands out
// placeholder rules during declaration, Define registers targets, and
// Finalize patches every placeholder or fails listing the unresolved names.
type Namespace struct {
	defs    map[string]*Rule
	pending map[string][]*Rule
	final   bool
}

func NewNamespace() *Namespace {
	return &Namespace{defs: map[string]*Rule{}, pending: map[string][]*Rule{}}
}

// Ref returns a reference rule for name, resolving immediately if the name
// is already defined.
func (ns *Namespace) Ref(name string) *Rule {
	r := &Rule{Kind: Ref, Name: name}
	if def, ok := ns.defs[name]; ok {
		r.resolved = def
		return r
	}
	ns.pending[name] = append(ns.pending[name], r)
	return r
}

// Define registers a rule under name. Redefinition and definition after
// Finalize are errors.
func (ns *Namespace) Define(name string, r *Rule) error {
	if ns.final {
		return fmt.Errorf("rule: namespace already finalized, cannot define %q", name)
	}
	if _, dup := ns.defs[name]; dup {
		return fmt.Errorf("rule: duplicate definition of %q", name)
	}
	if r == nil {
		return fmt.Errorf("rule: nil definition for %q", name)
	}
	ns.defs[name] = r
	for _, ref := range ns.pending[name] {
		ref.resolved = r
	}
	delete(ns.pending, name)
	return nil
}

// Lookup returns a defined rule by name.
func (ns *Namespace) Lookup(name string) (*Rule, bool) {
	r, ok := ns.defs[name]
	return r, ok
}

// Finalize seals the namespace. Any reference still unresolved is fatal and
// the error lists every dangling name.
func (ns *Namespace) Finalize() error {
	ns.final = true
	if len(ns.pending) == 0 {
		return nil
	}
	names := make([]string, 0, len(ns.pending))
	for name := range ns.pending {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Errorf("rule: unresolved references: %s", strings.Join(names, ", "))
}
