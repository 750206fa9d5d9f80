package rule_test

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/HansdasC/utype/rule"
)

type point struct{ X, Y int }

func TestOfType(t *testing.T) {
	cases := []struct {
		typ  reflect.Type
		kind rule.Kind
	}{
		{reflect.TypeOf(true), rule.Bool},
		{reflect.TypeOf(int8(0)), rule.Int},
		{reflect.TypeOf(uint32(0)), rule.Uint},
		{reflect.TypeOf(1.5), rule.Float},
		{reflect.TypeOf(""), rule.String},
		{reflect.TypeOf([]byte(nil)), rule.Bytes},
		{reflect.TypeOf([]int(nil)), rule.List},
		{reflect.TypeOf(map[string]int(nil)), rule.Map},
		{reflect.TypeOf(time.Time{}), rule.Time},
		{reflect.TypeOf(time.Second), rule.Duration},
		{reflect.TypeOf(point{}), rule.Object},
		{reflect.TypeOf(make(chan int)), rule.Any},
	}
	for _, c := range cases {
		r := rule.OfType(c.typ)
		if r.Kind != c.kind {
			t.Fatalf("%s: expected kind %s, got %s", c.typ, c.kind, r.Kind)
		}
		if r.GoType != c.typ {
			t.Fatalf("%s: GoType must carry through", c.typ)
		}
	}
}

func TestOfType_Pointer(t *testing.T) {
	r := rule.OfType(reflect.TypeOf((*int)(nil)))
	if r.Kind != rule.Int {
		t.Fatalf("pointer unwraps to element kind, got %s", r.Kind)
	}
	if r.GoType.Kind() != reflect.Ptr {
		t.Fatalf("pointer GoType must stay a pointer, got %s", r.GoType)
	}
}

func TestOfType_Containers(t *testing.T) {
	r := rule.T[[]map[string]int]()
	if r.Kind != rule.List || r.Elem.Kind != rule.Map {
		t.Fatalf("expected list of maps, got %s", r)
	}
	if r.Elem.Key.Kind != rule.String || r.Elem.Elem.Kind != rule.Int {
		t.Fatalf("map key/value rules must descend, got %s", r.Elem)
	}
	if rule.OfType(nil).Kind != rule.Any {
		t.Fatalf("nil type is any")
	}
}

func TestCombined(t *testing.T) {
	u := rule.AnyOfRules(rule.T[int](), rule.T[string]())
	kind, members, ok := u.Combined()
	if !ok || kind != rule.AnyOf || len(members) != 2 {
		t.Fatalf("expected anyOf with 2 members, got %s %d %v", kind, len(members), ok)
	}
	if _, _, ok := rule.T[int]().Combined(); ok {
		t.Fatalf("a scalar is not a union")
	}
}

func TestIteratorSlots(t *testing.T) {
	g := rule.GeneratorOf(rule.T[int](), rule.T[string](), rule.T[bool]())
	y, s, r, ok := g.IteratorSlots()
	if !ok || y.Kind != rule.Int || s.Kind != rule.String || r.Kind != rule.Bool {
		t.Fatalf("generator slots must decompose, got %s %s %s %v", y, s, r, ok)
	}

	it := rule.IteratorOf(rule.T[int]())
	y, s, r, ok = it.IteratorSlots()
	if !ok || y.Kind != rule.Int {
		t.Fatalf("iterator yield must decompose, got %s %v", y, ok)
	}
	if s.Kind != rule.Any || r.Kind != rule.Any {
		t.Fatalf("missing slots come back as any, got %s %s", s, r)
	}

	if _, _, _, ok := rule.T[int]().IteratorSlots(); ok {
		t.Fatalf("a scalar has no iterator slots")
	}
}

func TestConstraints(t *testing.T) {
	r := rule.T[int]().Constrain("ge", 0).Constrain("le", 10)
	if len(r.Constraints) != 2 {
		t.Fatalf("expected 2 constraints, got %v", r.Constraints)
	}
	r.WithConstraints(map[string]any{"multiple_of": 2})
	if r.Constraints["multiple_of"] != 2 {
		t.Fatalf("merged constraint missing")
	}
}

func TestString(t *testing.T) {
	cases := []struct {
		r    *rule.Rule
		want string
	}{
		{rule.LiteralOf(1), "literal(1)"},
		{rule.ListOf(rule.T[int]()), "list[int]"},
		{rule.MapOf(rule.T[string](), rule.T[int]()), "map[string]int"},
		{rule.AnyOfRules(rule.T[int](), rule.T[string]()), "anyOf(int, string)"},
		{nil, "any"},
	}
	for _, c := range cases {
		if got := c.r.String(); got != c.want {
			t.Fatalf("expected %q, got %q", c.want, got)
		}
	}
}

func TestNamespace_ForwardRef(t *testing.T) {
	ns := rule.NewNamespace()
	ref := ns.Ref("Node")
	if ref.Resolve() != ref {
		t.Fatalf("unresolved ref resolves to itself")
	}
	def := rule.ListOf(rule.T[int]())
	if err := ns.Define("Node", def); err != nil {
		t.Fatalf("define: %v", err)
	}
	if ref.Resolve() != def {
		t.Fatalf("ref must resolve after definition")
	}
	later := ns.Ref("Node")
	if later.Resolve() != def {
		t.Fatalf("refs after definition resolve immediately")
	}
	if err := ns.Finalize(); err != nil {
		t.Fatalf("finalize with everything defined: %v", err)
	}
}

func TestNamespace_Errors(t *testing.T) {
	ns := rule.NewNamespace()
	if err := ns.Define("A", rule.T[int]()); err != nil {
		t.Fatalf("define: %v", err)
	}
	if err := ns.Define("A", rule.T[int]()); err == nil {
		t.Fatalf("redefinition must fail")
	}
	if err := ns.Define("B", nil); err == nil {
		t.Fatalf("nil definition must fail")
	}
	ns.Ref("Ghost")
	ns.Ref("Phantom")
	err := ns.Finalize()
	if err == nil {
		t.Fatalf("unresolved refs must be fatal")
	}
	if !strings.Contains(err.Error(), "Ghost") || !strings.Contains(err.Error(), "Phantom") {
		t.Fatalf("error must list every dangling name, got %v", err)
	}
	if err := ns.Define("C", rule.T[int]()); err == nil {
		t.Fatalf("define after finalize must fail")
	}
}
