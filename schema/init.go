package schema

import (
	"context"
	"fmt"

	"github.com/HansdasC/utype"
	"github.com/HansdasC/utype/funcs"
)

// Init wraps a user constructor with the signature builder instead of
// replacing it: keyword data is validated against the declared parameters
// and the constructor's result is coerced and returned.
func Init[T any](fn any, options ...funcs.Option) (func(map[string]any, ...utype.ParseOptions) (T, error), error) {
	w, err := funcs.Wrap(fn, options...)
	if err != nil {
		return nil, err
	}
	return func(data map[string]any, po ...utype.ParseOptions) (T, error) {
		var zero T
		out, err := w.Call(context.Background(), nil, data, po...)
		if err != nil {
			return zero, err
		}
		v, ok := out.(T)
		if !ok {
			return zero, utype.Issues{{
				Path:    "<return>",
				Code:    utype.CodeInvalidType,
				Message: fmt.Sprintf("constructor returned %T", out),
			}}
		}
		return v, nil
	}, nil
}

// MustInit is Init, panicking on configuration errors.
func MustInit[T any](fn any, options ...funcs.Option) func(map[string]any, ...utype.ParseOptions) (T, error) {
	ctor, err := Init[T](fn, options...)
	if err != nil {
		panic(err)
	}
	return ctor
}
