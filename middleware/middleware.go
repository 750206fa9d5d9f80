// Package middleware validates HTTP JSON request bodies at the boundary and
// hands the validated value to the handler through the request context.
package middleware

import (
	"context"
	"io"
	"net/http"

	"github.com/HansdasC/utype"
	"github.com/HansdasC/utype/codec"
	"github.com/HansdasC/utype/schema"
)

// ctxKeyValidated is a typed context key for the validated body. The generic
// struct type keeps keys unique per T.
type ctxKeyValidated[T any] struct{}

// ContextWithValidated attaches a validated body to the context.
func ContextWithValidated[T any](ctx context.Context, v T) context.Context {
	return context.WithValue(ctx, ctxKeyValidated[T]{}, v)
}

// ValidatedFromContext retrieves the validated body from the context.
func ValidatedFromContext[T any](ctx context.Context) (T, bool) {
	v, ok := ctx.Value(ctxKeyValidated[T]{}).(T)
	return v, ok
}

// ErrorPayload shapes issues for a JSON error response.
func ErrorPayload(err error) map[string]any {
	if issues, ok := utype.AsIssues(err); ok {
		return map[string]any{"issues": issues}
	}
	return map[string]any{"error": err.Error()}
}

// ValidateJSON wraps next so the request body is decoded and validated into
// a T before the handler runs. Validation failures answer 400 with the issue
// list and never reach the handler.
func ValidateJSON[T any](ps *schema.Parser[T], next http.Handler, po ...utype.ParseOptions) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "cannot read body", http.StatusBadRequest)
			return
		}
		v, err := ps.ParseJSON(body, po...)
		if err != nil {
			writeError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithValidated(r.Context(), v)))
	})
}

func writeError(w http.ResponseWriter, err error) {
	data, mErr := codec.EncodeJSON(ErrorPayload(err))
	if mErr != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	w.Write(data)
}
