package funcs

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/HansdasC/utype"
)

// Call validates arguments, invokes the callable, and validates the result.
// Parameter errors accumulate and surface together; result coercion failure
// is always fatal regardless of policy.
func (w *Func) Call(ctx context.Context, args []any, kwargs map[string]any, po ...utype.ParseOptions) (any, error) {
	if w.recvType != nil {
		return nil, utype.Issues{{
			Code:    utype.CodeInvalidInstance,
			Message: fmt.Sprintf("%s is a bound method, call it through CallOn", w.name),
		}}
	}
	return w.call(reflect.Value{}, ctx, args, kwargs, po...)
}

// CallOn resolves the implicit receiver out-of-band and then calls.
func (w *Func) CallOn(recv any, ctx context.Context, args []any, kwargs map[string]any, po ...utype.ParseOptions) (any, error) {
	if w.recvType == nil {
		return nil, utype.Issues{{
			Code:    utype.CodeInvalidInstance,
			Message: fmt.Sprintf("%s has no receiver", w.name),
		}}
	}
	rv, err := w.fitReceiver(recv)
	if err != nil {
		return nil, err
	}
	return w.call(rv, ctx, args, kwargs, po...)
}

func (w *Func) fitReceiver(recv any) (reflect.Value, error) {
	bad := func() error {
		return utype.Issues{{
			Code:    utype.CodeInvalidInstance,
			Message: fmt.Sprintf("%s expects a receiver of type %s, got %T", w.name, w.recvType, recv),
			Type:    w.recvType.String(),
		}}
	}
	if recv == nil {
		return reflect.Value{}, bad()
	}
	rv := reflect.ValueOf(recv)
	if rv.Type().AssignableTo(w.recvType) {
		return rv, nil
	}
	if w.recvType.Kind() == reflect.Ptr && rv.Type().AssignableTo(w.recvType.Elem()) {
		pv := reflect.New(w.recvType.Elem())
		pv.Elem().Set(rv)
		return pv, nil
	}
	return reflect.Value{}, bad()
}

func (w *Func) call(recv reflect.Value, ctx context.Context, args []any, kwargs map[string]any, po ...utype.ParseOptions) (any, error) {
	rt := utype.NewRuntime(w.opts, po...)
	var (
		vals      map[string]any
		extraArgs []any
		extraKw   map[string]any
		err       error
	)
	if w.noParse {
		vals, extraArgs, extraKw, err = w.passthrough(args, kwargs)
	} else {
		vals, extraArgs, extraKw, err = w.parseParams(rt, args, kwargs)
		if err == nil {
			err = rt.Finish()
		}
	}
	if err != nil {
		return nil, err
	}
	return w.invoke(rt, recv, ctx, vals, extraArgs, extraKw)
}

func (w *Func) passthrough(args []any, kwargs map[string]any) (map[string]any, []any, map[string]any, error) {
	vals := map[string]any{}
	var extra []any
	positional := w.positional()
	for i, a := range args {
		if i < len(positional) {
			vals[positional[i].sf.Name] = a
		} else {
			extra = append(extra, a)
		}
	}
	extraKw := map[string]any{}
	for k, v := range kwargs {
		if b, ok := w.byKey[w.key(k)]; ok {
			vals[b.sf.Name] = v
		} else {
			extraKw[k] = v
		}
	}
	return vals, extra, extraKw, nil
}

func (w *Func) positional() []*paramBinding {
	out := make([]*paramBinding, 0, len(w.params))
	for _, b := range w.params {
		if b.pos >= 0 {
			out = append(out, b)
		}
	}
	return out
}

func (w *Func) key(k string) string {
	if w.opts.CaseInsensitive != nil && *w.opts.CaseInsensitive {
		return strings.ToLower(k)
	}
	return k
}

// parseParams matches positional arguments to their slots, overflow to the
// variadic element rule, keyword arguments to the non-positional field map,
// and finally substitutes defaults and raises absences. Nothing short of an
// explicit fail-fast stops the pass early.
func (w *Func) parseParams(rt *utype.Runtime, args []any, kwargs map[string]any) (map[string]any, []any, map[string]any, error) {
	vals := make(map[string]any, len(w.params))
	provided := map[string]bool{}
	positional := w.positional()
	var extraArgs []any
	var extraKw map[string]any

	for i, a := range args {
		if i < len(positional) {
			b := positional[i]
			if b.sf.NoInput(a, rt) {
				continue
			}
			out, kept, err := b.sf.ParseValue(a, rt)
			if err != nil {
				return nil, nil, nil, err
			}
			if kept {
				vals[b.sf.Name] = out
				provided[b.sf.Name] = true
			}
			continue
		}
		if !w.hasVarArgs {
			if err := rt.Collect(utype.Issue{
				Path:    fmt.Sprintf("args[%d]", i),
				Code:    utype.CodeExceeded,
				Message: fmt.Sprintf("%s takes at most %d positional arguments", w.name, len(positional)),
				Value:   utype.RenderValue(a, false),
			}); err != nil {
				return nil, nil, nil, err
			}
			continue
		}
		out, err := rt.Transformer().Transform(rt, a, w.varArgs)
		if err != nil {
			is := utype.Issue{
				Path:    fmt.Sprintf("args[%d]", i),
				Code:    utype.CodeParseError,
				Message: fmt.Sprintf("invalid value for type %s: %v", w.varArgs, err),
				Value:   utype.RenderValue(a, false),
				Type:    w.varArgs.String(),
				Cause:   err,
			}
			if rt.Options().ErrPolicy == utype.PolicyExclude {
				rt.Warn(is)
				continue
			}
			if cerr := rt.Collect(is); cerr != nil {
				return nil, nil, nil, cerr
			}
			continue
		}
		extraArgs = append(extraArgs, out)
	}

	keys := make([]string, 0, len(kwargs))
	for k := range kwargs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := kwargs[k]
		b, ok := w.byKey[w.key(k)]
		if !ok {
			if !w.hasVarKw {
				if err := rt.Collect(utype.Issue{
					Path:    k,
					Code:    utype.CodeExceeded,
					Message: fmt.Sprintf("%s got an unexpected keyword argument %q", w.name, k),
					Value:   utype.RenderValue(v, false),
				}); err != nil {
					return nil, nil, nil, err
				}
				continue
			}
			out, err := rt.Transformer().Transform(rt, v, w.varKw)
			if err != nil {
				is := utype.Issue{
					Path:    k,
					Code:    utype.CodeParseError,
					Message: fmt.Sprintf("invalid value for type %s: %v", w.varKw, err),
					Value:   utype.RenderValue(v, false),
					Type:    w.varKw.String(),
					Cause:   err,
				}
				if rt.Options().ErrPolicy == utype.PolicyExclude {
					rt.Warn(is)
					continue
				}
				if cerr := rt.Collect(is); cerr != nil {
					return nil, nil, nil, cerr
				}
				continue
			}
			if extraKw == nil {
				extraKw = map[string]any{}
			}
			extraKw[k] = out
			continue
		}
		if provided[b.sf.Name] {
			if err := rt.Collect(utype.Issue{
				Path:    b.sf.Name,
				Code:    utype.CodeExceeded,
				Message: fmt.Sprintf("%s got parameter %q both positionally and by keyword", w.name, b.sf.Name),
			}); err != nil {
				return nil, nil, nil, err
			}
			continue
		}
		if b.sf.NoInput(v, rt) {
			continue
		}
		out, kept, err := b.sf.ParseValue(v, rt)
		if err != nil {
			return nil, nil, nil, err
		}
		if kept {
			vals[b.sf.Name] = out
			provided[b.sf.Name] = true
		}
	}

	for _, b := range w.params {
		if provided[b.sf.Name] {
			continue
		}
		if _, set := vals[b.sf.Name]; set {
			continue
		}
		if d, ok := b.sf.ResolveDefault(rt); ok {
			vals[b.sf.Name] = d
			continue
		}
		if b.sf.IsRequired(rt) {
			if err := rt.Collect(b.sf.AbsenceIssue()); err != nil {
				return nil, nil, nil, err
			}
			continue
		}
		if u, ok := b.sf.ResolveUnprovided(rt); ok {
			vals[b.sf.Name] = u
		}
	}

	for _, b := range w.params {
		if !provided[b.sf.Name] {
			continue
		}
		for _, dep := range b.sf.Dependencies() {
			if !provided[dep] {
				if err := rt.Collect(utype.Issue{
					Path:    b.sf.Name,
					Code:    utype.CodeDependencyAbsent,
					Message: fmt.Sprintf("parameter %q requires %q to be provided", b.sf.Name, dep),
				}); err != nil {
					return nil, nil, nil, err
				}
			}
		}
	}
	return vals, extraArgs, extraKw, nil
}

func (w *Func) invoke(rt *utype.Runtime, recv reflect.Value, ctx context.Context, vals map[string]any, extraArgs []any, extraKw map[string]any) (any, error) {
	in := make([]reflect.Value, w.ft.NumIn())
	idx := 0
	if w.recvType != nil {
		in[idx] = recv
		idx++
	}
	if w.ctxFirst {
		if ctx == nil {
			ctx = context.Background()
		}
		in[idx] = reflect.ValueOf(ctx)
		idx++
	}
	for _, b := range w.params {
		it := w.ft.In(b.in)
		v, ok := vals[b.sf.Name]
		if !ok {
			in[b.in] = reflect.Zero(it)
			continue
		}
		av, err := fitValue(v, it)
		if err != nil {
			return nil, utype.Issues{{
				Path:    b.sf.Name,
				Code:    utype.CodeInvalidType,
				Message: err.Error(),
				Value:   utype.RenderValue(v, b.sf.Secret()),
				Type:    it.String(),
			}}
		}
		in[b.in] = av
	}
	if w.hasVarArgs {
		st := w.ft.In(w.varArgsIn)
		sl := reflect.MakeSlice(st, 0, len(extraArgs))
		for i, e := range extraArgs {
			ev, err := fitValue(e, st.Elem())
			if err != nil {
				return nil, utype.Issues{{
					Path:    fmt.Sprintf("args[%d]", i),
					Code:    utype.CodeInvalidType,
					Message: err.Error(),
					Type:    st.Elem().String(),
				}}
			}
			sl = reflect.Append(sl, ev)
		}
		in[w.varArgsIn] = sl
	}
	if w.hasVarKw {
		mt := w.ft.In(w.varKwIn)
		mv := reflect.MakeMapWithSize(mt, len(extraKw))
		for k, e := range extraKw {
			ev, err := fitValue(e, mt.Elem())
			if err != nil {
				return nil, utype.Issues{{
					Path:    k,
					Code:    utype.CodeInvalidType,
					Message: err.Error(),
					Type:    mt.Elem().String(),
				}}
			}
			mv.SetMapIndex(reflect.ValueOf(k), ev)
		}
		in[w.varKwIn] = mv
	}

	rets := w.fn.Call(in)
	if w.hasErr {
		if e, ok := rets[len(rets)-1].Interface().(error); ok && e != nil {
			return nil, e
		}
	}
	if !w.hasOut {
		return nil, nil
	}
	out := rets[0].Interface()
	if w.genKind != 0 {
		return w.wrapGenerator(rt, ctx, out)
	}
	return w.coerceResult(rt, out)
}

// coerceResult validates the return value. A failure here is never
// downgraded by field or call policy.
func (w *Func) coerceResult(rt *utype.Runtime, out any) (any, error) {
	if w.result == nil {
		return out, nil
	}
	coerced, err := rt.Transformer().Transform(rt, out, w.result)
	if err != nil {
		return nil, resultIssues("<return>", out, w.result.String(), err)
	}
	return coerced, nil
}

func resultIssues(path string, raw any, typeDesc string, err error) utype.Issues {
	if nested, ok := utype.AsIssues(err); ok {
		out := make(utype.Issues, len(nested))
		for i, is := range nested {
			if is.Path == "" {
				is.Path = path
			} else {
				is.Path = path + "." + is.Path
			}
			out[i] = is
		}
		return out
	}
	return utype.Issues{{
		Path:    path,
		Code:    utype.CodeParseError,
		Message: fmt.Sprintf("invalid value for type %s: %v", typeDesc, err),
		Value:   utype.RenderValue(raw, false),
		Type:    typeDesc,
		Cause:   err,
	}}
}

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
	if rv.Type().ConvertibleTo(t) && rv.Kind() == t.Kind() {
		return rv.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot use %T as %s", v, t)
}
