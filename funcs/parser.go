package funcs

import (
	"context"
	"os"
	"reflect"
	"runtime"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/HansdasC/utype"
	"github.com/HansdasC/utype/rule"
	_ "github.com/HansdasC/utype/transform" // registers the default coercer
)

// Receiver declares the owning type of a bound method, resolved out-of-band
// through CallOn rather than as a literal argument.
func Receiver[T any]() Option {
	return func(c *config) { c.receiver = reflect.TypeOf((*T)(nil)).Elem() }
}

var declLog = log.NewWithOptions(os.Stderr, log.Options{
	Prefix:          "utype",
	ReportTimestamp: false,
})

var (
	ctxType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errType = reflect.TypeOf((*error)(nil)).Elem()
)

type paramBinding struct {
	p  *Param
	sf *utype.SchemaField
	// pos is the positional slot, -1 for keyword-only parameters.
	pos int
	// in is the input index on the Go function.
	in int
}

// Func is a callable wrapped with a validated signature.
type Func struct {
	name string
	fn   reflect.Value
	ft   reflect.Type
	opts utype.Options

	params []*paramBinding
	byKey  map[string]*paramBinding

	recvType reflect.Type
	ctxFirst bool

	hasVarArgs bool
	varArgs    *rule.Rule
	varArgsIn  int
	hasVarKw   bool
	varKw      *rule.Rule
	varKwIn    int

	result  *rule.Rule
	genKind rule.Kind
	hasOut  bool
	hasErr  bool
	noParse bool
}

// Wrap builds a validated wrapper around fn. Configuration errors (layout
// mismatches, invalid parameter order) surface here, once.
func Wrap(fn any, options ...Option) (*Func, error) {
	rv := reflect.ValueOf(fn)
	if !rv.IsValid() || rv.Kind() != reflect.Func {
		return nil, utype.Config("funcs", "", "target must be a function, got %T", fn)
	}
	cfg := &config{}
	for _, o := range options {
		o(cfg)
	}
	name := cfg.name
	if name == "" {
		name = funcName(rv)
	}
	w := &Func{
		name:    name,
		fn:      rv,
		ft:      rv.Type(),
		opts:    cfg.opts,
		byKey:   map[string]*paramBinding{},
		noParse: cfg.noParse,
	}
	if err := w.opts.Check(); err != nil {
		return nil, err
	}
	if err := w.analyzeInputs(cfg); err != nil {
		return nil, err
	}
	if err := w.analyzeOutputs(cfg); err != nil {
		return nil, err
	}
	if err := w.bindParams(cfg); err != nil {
		return nil, err
	}
	return w, nil
}

// MustWrap is Wrap, panicking on configuration errors.
func MustWrap(fn any, options ...Option) *Func {
	w, err := Wrap(fn, options...)
	if err != nil {
		panic(err)
	}
	return w
}

// Name returns the callable's display name.
func (w *Func) Name() string { return w.name }

func funcName(rv reflect.Value) string {
	full := runtime.FuncForPC(rv.Pointer()).Name()
	if i := strings.LastIndexByte(full, '.'); i >= 0 {
		full = full[i+1:]
	}
	return strings.TrimSuffix(full, "-fm")
}

// analyzeInputs lays out the function's inputs as
// [receiver] [context] declared... [extra-args slice] [extra-kwargs map],
// classifying the leading inputs by explicit declaration or heuristic.
func (w *Func) analyzeInputs(cfg *config) error {
	total := w.ft.NumIn()
	need := len(cfg.params)
	if cfg.hasVar {
		need++
	}
	if cfg.hasVarKw {
		need++
	}
	lead := total - need
	if lead < 0 || lead > 2 {
		return utype.Config(w.name, "", "%d parameters declared but function takes %d inputs", len(cfg.params), total)
	}
	idx := 0
	if cfg.receiver != nil {
		rt := cfg.receiver.(reflect.Type)
		if lead == 0 || !inputAccepts(w.ft.In(0), rt) {
			return utype.Config(w.name, "", "declared receiver %s does not match first input", rt)
		}
		w.recvType = w.ft.In(0)
		idx++
		lead--
	}
	for lead > 0 {
		in := w.ft.In(idx)
		switch {
		case in == ctxType:
			w.ctxFirst = true
		case in.Kind() == reflect.Ptr && in.Elem().Kind() == reflect.Struct && idx == 0 && w.recvType == nil:
			// undeclared leading pointer-to-struct reads as a method receiver
			w.recvType = in
		default:
			return utype.Config(w.name, "", "cannot classify leading input %s", in)
		}
		idx++
		lead--
	}
	offset := idx
	for i, p := range cfg.params {
		in := w.ft.In(offset + i)
		if p.r == nil {
			p.r = rule.OfType(in)
		}
		w.params = append(w.params, &paramBinding{p: p, in: offset + i})
	}
	idx = offset + len(cfg.params)
	if cfg.hasVar {
		in := w.ft.In(idx)
		if in.Kind() != reflect.Slice {
			return utype.Config(w.name, "", "variadic positional input must be a slice, got %s", in)
		}
		w.hasVarArgs = true
		w.varArgs = cfg.varArgs
		if w.varArgs == nil {
			w.varArgs = rule.OfType(in.Elem())
		}
		w.varArgsIn = idx
		idx++
	}
	if cfg.hasVarKw {
		in := w.ft.In(idx)
		if in.Kind() != reflect.Map || in.Key().Kind() != reflect.String {
			return utype.Config(w.name, "", "variadic keyword input must be a string-keyed map, got %s", in)
		}
		w.hasVarKw = true
		w.varKw = cfg.varKw
		if w.varKw == nil {
			w.varKw = rule.OfType(in.Elem())
		}
		w.varKwIn = idx
	}
	return nil
}

func inputAccepts(in, declared reflect.Type) bool {
	if in == declared {
		return true
	}
	return in.Kind() == reflect.Ptr && in.Elem() == declared
}

func (w *Func) analyzeOutputs(cfg *config) error {
	n := w.ft.NumOut()
	if n > 2 {
		return utype.Config(w.name, "", "at most two results supported, got %d", n)
	}
	for i := 0; i < n; i++ {
		out := w.ft.Out(i)
		if out == errType {
			if i != n-1 {
				return utype.Config(w.name, "", "error must be the last result")
			}
			w.hasErr = true
			continue
		}
		if w.hasOut {
			return utype.Config(w.name, "", "at most one non-error result supported")
		}
		w.hasOut = true
	}
	w.result = cfg.result
	if w.result == nil && w.hasOut {
		w.result = rule.OfType(w.ft.Out(0))
	}
	if w.result != nil {
		switch w.result.Resolve().Kind {
		case rule.Iterator, rule.Generator:
			w.genKind = w.result.Resolve().Kind
			if !w.hasOut || !w.ft.Out(0).Implements(generatorType) {
				return utype.Config(w.name, "", "a generator result rule requires the function to return a Generator")
			}
		case rule.AsyncIterator, rule.AsyncGenerator:
			w.genKind = w.result.Resolve().Kind
			if !w.hasOut || !w.ft.Out(0).Implements(asyncGeneratorType) {
				return utype.Config(w.name, "", "an async generator result rule requires the function to return an AsyncGenerator")
			}
		}
	}
	return nil
}

// bindParams builds schema fields for the declared parameters, assigns
// positional slots, and enforces the default-order rule: once an optional
// non-keyword-only parameter appears, every later one must be optional too.
// The violation is fatal on a positional-only parameter and a warning
// otherwise.
func (w *Func) bindParams(cfg *config) error {
	pos := 0
	optionalSeen := false
	all := map[string]*utype.SchemaField{}
	aliasMap := map[string]string{}
	for i, b := range w.params {
		p := b.p
		f := p.field
		if f == nil {
			f = utype.New()
		}
		if p.hasDefault && !f.HasDefault() {
			f.Default(p.def)
		}
		sf, err := utype.NewSchemaField(p.name, f, p.r, p.r, i, w.opts)
		if err != nil {
			if ce, ok := utype.AsConfigError(err); ok {
				ce.Target = w.name
				if ce.Field == "" {
					ce.Field = p.name
				}
			}
			return err
		}
		b.sf = sf
		if p.keywordOnly {
			b.pos = -1
		} else {
			b.pos = pos
			pos++
		}
		required := sf.Field.IsRequired("")
		if optionalSeen && required {
			if p.positionalOnly {
				return utype.Config(w.name, p.name,
					"required positional parameter follows an optional one")
			}
			declLog.Warn("required parameter follows an optional one",
				"func", w.name, "param", p.name)
		}
		if !required {
			optionalSeen = true
		}
		if _, dup := all[sf.Name]; dup {
			return utype.Config(w.name, p.name, "parameter name %q already declared", sf.Name)
		}
		all[sf.Name] = sf
		if !p.positionalOnly {
			for _, a := range sf.Aliases {
				if owner, taken := aliasMap[a]; taken && owner != sf.Name {
					return utype.Config(w.name, p.name, "alias %q already accepted by parameter %q", a, owner)
				}
				aliasMap[a] = sf.Name
				w.byKey[a] = b
			}
		}
	}
	for _, b := range w.params {
		if err := b.sf.Bind(all, aliasMap); err != nil {
			if ce, ok := utype.AsConfigError(err); ok && ce.Target == "SchemaField" {
				ce.Target = w.name
			}
			return err
		}
	}
	return nil
}
