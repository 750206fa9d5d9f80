package utype

import (
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/HansdasC/utype/rule"
)

// Registry is an append-mostly map safe for concurrent readers with
// single-writer-per-key semantics: the first registration for a key wins and
// concurrent builders for the same key are collapsed, so build results must
// be idempotent.
type Registry[K comparable, V any] struct {
	mu    sync.RWMutex
	m     map[K]V
	group singleflight.Group
}

func NewRegistry[K comparable, V any]() *Registry[K, V] {
	return &Registry[K, V]{m: map[K]V{}}
}

// Get returns the value registered under key.
func (r *Registry[K, V]) Get(key K) (V, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.m[key]
	return v, ok
}

// Register stores v under key unless one is already present, and returns the
// value that ended up registered.
func (r *Registry[K, V]) Register(key K, v V) V {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.m[key]; ok {
		return prev
	}
	r.m[key] = v
	return v
}

// Resolve returns the value for key, building and registering it on first
// use. Concurrent first-resolvers share a single build call. Builds must be
// idempotent: the flight key is the key's string form, which can collapse
// distinct keys, so only the registered map is trusted and a collapsed
// caller re-runs its own build.
func (r *Registry[K, V]) Resolve(key K, build func() (V, error)) (V, error) {
	if v, ok := r.Get(key); ok {
		return v, nil
	}
	_, flightErr, _ := r.group.Do(fmt.Sprint(key), func() (any, error) {
		if _, ok := r.Get(key); ok {
			return nil, nil
		}
		v, err := build()
		if err != nil {
			return nil, err
		}
		r.Register(key, v)
		return nil, nil
	})
	if v, ok := r.Get(key); ok {
		return v, nil
	}
	if flightErr != nil {
		var zero V
		return zero, flightErr
	}
	v, err := build()
	if err != nil {
		var zero V
		return zero, err
	}
	return r.Register(key, v), nil
}

// Len returns the number of registered entries.
func (r *Registry[K, V]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.m)
}

// ValueParser is the capability an Object rule's Schema exposes so a
// transformer can descend into nested payloads.
type ValueParser interface {
	ParseAny(rt *Runtime, v any) (any, error)
}

var transformers = NewRegistry[string, Transformer]()

// RegisterTransformer registers a named coercer. The name "default" is the
// one NewRuntime falls back to; coercer packages register it from init.
func RegisterTransformer(name string, t Transformer) {
	transformers.Register(name, t)
}

// TransformerByName looks up a registered coercer.
func TransformerByName(name string) (Transformer, bool) {
	return transformers.Get(name)
}

// DefaultTransformer returns the coercer registered under "default", or an
// identity transformer when none is registered.
func DefaultTransformer() Transformer {
	if t, ok := transformers.Get("default"); ok {
		return t
	}
	return identityTransformer{}
}

// identityTransformer passes values through untouched. It stands in only
// when no real coercer package has been imported.
type identityTransformer struct{}

func (identityTransformer) Transform(_ *Runtime, v any, _ *rule.Rule) (any, error) {
	return v, nil
}
