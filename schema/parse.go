package schema

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/HansdasC/utype"
	"github.com/HansdasC/utype/rule"
)

// Parser validates mappings into values of T. Build one with For or MustFor;
// instances are cached per type and safe for concurrent use.
type Parser[T any] struct {
	p *parser
}

// For builds or fetches the cached parser for T.
func For[T any]() (*Parser[T], error) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	p, err := resolve(t)
	if err != nil {
		return nil, err
	}
	return &Parser[T]{p: p}, nil
}

// MustFor is For, panicking on configuration errors.
func MustFor[T any]() *Parser[T] {
	ps, err := For[T]()
	if err != nil {
		panic(err)
	}
	return ps
}

// Options returns the parser's merged declared options.
func (ps *Parser[T]) Options() utype.Options { return ps.p.opts }

// Fields returns the schema fields in declaration order.
func (ps *Parser[T]) Fields() []*utype.SchemaField {
	out := make([]*utype.SchemaField, len(ps.p.order))
	for i, b := range ps.p.order {
		out[i] = b.sf
	}
	return out
}

// Rule returns the bound object rule for T.
func (ps *Parser[T]) Rule() *rule.Rule { return ps.p.objRule }

// Parse validates a mapping and binds the result into a new T.
func (ps *Parser[T]) Parse(input map[string]any, po ...utype.ParseOptions) (T, error) {
	var zero T
	rt := utype.NewRuntime(ps.p.opts, po...)
	vals, err := ps.p.parseMap(rt, input)
	if err == nil {
		err = rt.Finish()
	}
	if err != nil {
		return zero, err
	}
	out, err := ps.p.construct(rt, vals)
	if err == nil {
		err = rt.Finish()
	}
	if err != nil {
		return zero, err
	}
	return out.Interface().(T), nil
}

// ParseAny implements the nested-object capability used by the coercer.
func (p *parser) ParseAny(rt *utype.Runtime, v any) (any, error) {
	input, ok := v.(map[string]any)
	if !ok {
		if v != nil && reflect.TypeOf(v) == p.target {
			return v, nil
		}
		return nil, fmt.Errorf("expected a mapping for %s, got %T", p.name, v)
	}
	child := rt.Derive(p.opts)
	vals, err := p.parseMap(child, input)
	if err == nil {
		err = child.Finish()
	}
	if err != nil {
		return nil, err
	}
	if p.target == nil {
		return vals, nil
	}
	out, err := p.construct(child, vals)
	if err == nil {
		err = child.Finish()
	}
	if err != nil {
		return nil, err
	}
	return out.Interface(), nil
}

// Builder returns the explicit constructor for T, for consumers that own
// instance storage.
func (ps *Parser[T]) Builder() func(map[string]any, ...utype.ParseOptions) (T, error) {
	return ps.Parse
}

// parseMap runs the field-first validation pass over one input mapping and
// returns validated values keyed by canonical name.
func (p *parser) parseMap(rt *utype.Runtime, input map[string]any) (map[string]any, error) {
	opts := rt.Options()
	if min := opts.MinProperties; min != nil && len(input) < *min {
		if err := rt.Collect(utype.Issue{
			Code:    utype.CodeTooFewProperties,
			Message: fmt.Sprintf("at least %d properties required, got %d", *min, len(input)),
		}); err != nil {
			return nil, err
		}
	}
	if max := opts.MaxProperties; max != nil && len(input) > *max {
		if err := rt.Collect(utype.Issue{
			Code:    utype.CodeTooManyProperties,
			Message: fmt.Sprintf("at most %d properties permitted, got %d", *max, len(input)),
		}); err != nil {
			return nil, err
		}
	}
	in := input
	if opts.CaseInsensitive != nil && *opts.CaseInsensitive {
		in = make(map[string]any, len(input))
		for k, v := range input {
			in[strings.ToLower(k)] = v
		}
	}
	vals := make(map[string]any, len(p.order))
	provided := map[string]bool{}
	consumed := map[string]struct{}{}

	for _, b := range p.order {
		sf := b.sf
		var raw any
		var extras []string
		found := false
		for _, a := range sf.Aliases {
			v, ok := in[a]
			if !ok {
				continue
			}
			consumed[a] = struct{}{}
			if !found {
				raw, found = v, true
			}
			if a != sf.Aliases[0] {
				extras = append(extras, a)
			}
		}
		// The canonical key wins outright. Without it, several aliases of
		// the same field supplied together are ambiguous.
		if _, canon := in[sf.Aliases[0]]; !canon && len(extras) > 1 && !rt.IgnoreAliasConflicts() {
			if err := rt.Collect(utype.Issue{
				Path:    sf.Name,
				Code:    utype.CodeAliasConflict,
				Message: fmt.Sprintf("aliases %s of field %q are given together", strings.Join(extras, ", "), sf.Name),
			}); err != nil {
				return nil, err
			}
			continue
		}
		if found && sf.Deprecated() {
			msg := fmt.Sprintf("field %q is deprecated", sf.Name)
			if to := sf.DeprecatedTo(); to != "" {
				msg += fmt.Sprintf(", use %q instead", to)
			}
			rt.Warn(utype.Issue{Path: sf.Name, Code: utype.CodeDeprecated, Message: msg})
		}
		if found && sf.NoInput(raw, rt) {
			found = false
		}
		if !found {
			if d, ok := sf.ResolveDefault(rt); ok {
				vals[sf.Name] = d
				continue
			}
			if sf.IsRequired(rt) {
				if err := rt.Collect(sf.AbsenceIssue()); err != nil {
					return nil, err
				}
				continue
			}
			if u, ok := sf.ResolveUnprovided(rt); ok {
				vals[sf.Name] = u
			}
			continue
		}
		out, kept, err := sf.ParseValue(raw, rt)
		if err != nil {
			return nil, err
		}
		if kept {
			vals[sf.Name] = out
			provided[sf.Name] = true
		}
	}

	if err := p.applyAddition(rt, in, consumed, vals); err != nil {
		return nil, err
	}

	for name := range provided {
		for _, dep := range p.byName[name].sf.Dependencies() {
			if provided[dep] {
				continue
			}
			if err := rt.Collect(utype.Issue{
				Path:    name,
				Code:    utype.CodeDependencyAbsent,
				Message: fmt.Sprintf("field %q requires %q to be provided", name, dep),
			}); err != nil {
				return nil, err
			}
		}
	}
	return vals, nil
}

func (p *parser) applyAddition(rt *utype.Runtime, in map[string]any, consumed map[string]struct{}, vals map[string]any) error {
	opts := rt.Options()
	policy := rt.Addition()
	for k, v := range in {
		if _, ok := consumed[k]; ok {
			continue
		}
		if _, excluded := p.exclusions[k]; excluded {
			continue
		}
		switch policy {
		case utype.AdditionReject:
			if err := rt.Collect(utype.Issue{
				Path:    k,
				Code:    utype.CodeExceeded,
				Message: fmt.Sprintf("input key %q matches no field", k),
				Value:   utype.RenderValue(v, opts.Secret != nil && *opts.Secret),
			}); err != nil {
				return err
			}
		case utype.AdditionPreserve:
			if r, ok := opts.AdditionRule.(*rule.Rule); ok && r != nil {
				out, err := rt.Transformer().Transform(rt, v, r)
				if err != nil {
					if cerr := rt.Collect(utype.Issue{
						Path:    k,
						Code:    utype.CodeParseError,
						Message: fmt.Sprintf("extra value does not fit %s: %v", r, err),
						Value:   utype.RenderValue(v, false),
						Cause:   err,
					}); cerr != nil {
						return cerr
					}
					continue
				}
				v = out
			}
			vals[k] = v
		}
	}
	return nil
}

// construct binds validated values into a fresh struct value. Property
// fields route through their setter; setter failures follow field policy.
func (p *parser) construct(rt *utype.Runtime, vals map[string]any) (reflect.Value, error) {
	ptr := reflect.New(p.target)
	out := ptr.Elem()
	for _, b := range p.order {
		v, ok := vals[b.sf.Name]
		if !ok {
			continue
		}
		if b.sf.Property || b.hasSetter() {
			if !b.hasSetter() {
				continue
			}
			if err := p.callSetter(rt, b, ptr, v); err != nil {
				return reflect.Value{}, err
			}
			continue
		}
		fv := out.FieldByIndex(b.index)
		av, err := fitValue(v, fv.Type())
		if err != nil {
			if cerr := rt.Collect(utype.Issue{
				Path:    b.sf.Name,
				Code:    utype.CodeInvalidType,
				Message: err.Error(),
				Value:   utype.RenderValue(v, b.sf.Secret()),
				Type:    fv.Type().String(),
			}); cerr != nil {
				return reflect.Value{}, cerr
			}
			continue
		}
		fv.Set(av)
	}
	return out, nil
}

// callSetter invokes a property setter with the validated value. The
// receiver is the struct itself, or the embedded base that declared the
// property.
func (p *parser) callSetter(rt *utype.Runtime, b *binding, ptr reflect.Value, v any) error {
	recv := ptr
	if len(b.index) > 0 {
		recv = ptr.Elem().FieldByIndex(b.index).Addr()
	}
	av, err := fitValue(v, b.setter.Type().In(1))
	if err == nil {
		rets := b.setter.Call([]reflect.Value{recv, av})
		if n := len(rets); n > 0 {
			if e, ok := rets[n-1].Interface().(error); ok && e != nil {
				err = e
			}
		}
	}
	if err == nil {
		return nil
	}
	is := utype.Issue{
		Path:    b.sf.Name,
		Code:    utype.CodeParseError,
		Message: fmt.Sprintf("setter rejected value: %v", err),
		Value:   utype.RenderValue(v, b.sf.Secret()),
		Cause:   err,
	}
	switch pol := rt.Options().ErrPolicy; {
	case pol == utype.PolicyExclude && !b.sf.IsRequired(rt):
		rt.Warn(is)
	case pol == utype.PolicyPreserve:
		rt.Warn(is)
	default:
		return rt.Collect(is)
	}
	return nil
}

// Dump serializes an instance through the output side of the schema: each
// field's value is coerced by its output rule under the active mode and
// keyed by canonical name.
func (ps *Parser[T]) Dump(v T, po ...utype.ParseOptions) (map[string]any, error) {
	rt := utype.NewRuntime(ps.p.opts, po...)
	rv := reflect.ValueOf(v)
	out := make(map[string]any, len(ps.p.order))
	for _, b := range ps.p.order {
		var fv any
		switch {
		case b.sf.Property:
			if !b.hasGetter() {
				continue
			}
			got, err := ps.p.callGetter(b, rv)
			if err != nil {
				continue
			}
			fv = got
		default:
			fv = rv.FieldByIndex(b.index).Interface()
		}
		if b.sf.NoOutput(fv, rt) {
			continue
		}
		dv, kept, err := b.sf.DumpValue(fv, rt)
		if err != nil {
			return nil, err
		}
		if kept {
			out[b.sf.Name] = dv
		}
	}
	if err := rt.Finish(); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *parser) callGetter(b *binding, rv reflect.Value) (any, error) {
	ptr := reflect.New(p.target)
	ptr.Elem().Set(rv)
	recv := ptr
	if len(b.index) > 0 {
		recv = ptr.Elem().FieldByIndex(b.index).Addr()
	}
	rets := b.getter.Call([]reflect.Value{recv})
	if n := len(rets); n > 1 {
		if e, ok := rets[n-1].Interface().(error); ok && e != nil {
			return nil, e
		}
	}
	return rets[0].Interface(), nil
}

// fitValue adapts a validated value to a concrete struct field type.
func fitValue(v any, t reflect.Type) (reflect.Value, error) {
	if v == nil {
		return reflect.Zero(t), nil
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		return rv, nil
	}
	if t.Kind() == reflect.Ptr && rv.Type().AssignableTo(t.Elem()) {
		pv := reflect.New(t.Elem())
		pv.Elem().Set(rv)
		return pv, nil
	}
	if rv.Type().ConvertibleTo(t) && (rv.Kind() == t.Kind() || numericKind(rv.Kind()) && numericKind(t.Kind())) {
		return rv.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot use %T as %s", v, t)
}

func numericKind(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Float64 && k != reflect.Uintptr
}
