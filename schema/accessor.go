package schema

import (
	"fmt"

	"github.com/HansdasC/utype"
)

// Store is the capability an object model exposes over instance storage.
// The accessor table dispatches through it and never patches per-instance
// behavior.
type Store interface {
	Get(name string) (any, bool)
	Set(name string, v any)
	Delete(name string)
}

// MapStore is a map-backed Store.
type MapStore map[string]any

func (m MapStore) Get(name string) (any, bool) {
	v, ok := m[name]
	return v, ok
}

func (m MapStore) Set(name string, v any) { m[name] = v }

func (m MapStore) Delete(name string) { delete(m, name) }

// Accessor is the fixed get/set/delete capability of one field, computed at
// build time.
type Accessor struct {
	Get    func(s Store) (any, error)
	Set    func(s Store, v any, po ...utype.ParseOptions) error
	Delete func(s Store) error
}

// Hooks are invoked after a successful accessor write or delete.
type Hooks struct {
	AfterSet    func(s Store, name string)
	AfterDelete func(s Store, name string)
}

// Accessors returns the capability table keyed by canonical field name.
func (ps *Parser[T]) Accessors(hooks ...Hooks) map[string]Accessor {
	return ps.p.accessors(hooks...)
}

func (p *parser) accessors(hooks ...Hooks) map[string]Accessor {
	var h Hooks
	if len(hooks) > 0 {
		h = hooks[0]
	}
	out := make(map[string]Accessor, len(p.order))
	for _, b := range p.order {
		sf := b.sf
		name := sf.Name
		out[name] = Accessor{
			Get: func(s Store) (any, error) {
				v, ok := s.Get(name)
				if !ok {
					return nil, utype.Issues{{
						Path:    name,
						Code:    utype.CodeRequired,
						Message: fmt.Sprintf("attribute %q is not set", name),
					}}
				}
				return v, nil
			},
			Set: func(s Store, v any, po ...utype.ParseOptions) error {
				if p.opts.ImmutableSchema() || sf.Immutable() {
					return utype.Config(p.name, name, "attribute %q is immutable", name)
				}
				rt := utype.NewRuntime(p.opts, po...)
				parsed, kept, err := sf.ParseValue(v, rt)
				if err == nil {
					err = rt.Finish()
				}
				if err != nil {
					return err
				}
				if kept {
					s.Set(name, parsed)
					if h.AfterSet != nil {
						h.AfterSet(s, name)
					}
				}
				return nil
			},
			Delete: func(s Store) error {
				rt := utype.NewRuntime(p.opts)
				if sf.IsRequired(rt) {
					return utype.Config(p.name, name, "cannot delete required attribute %q", name)
				}
				if _, ok := s.Get(name); !ok {
					return utype.Issues{{
						Path:    name,
						Code:    utype.CodeRequired,
						Message: fmt.Sprintf("attribute %q is not set", name),
					}}
				}
				s.Delete(name)
				if h.AfterDelete != nil {
					h.AfterDelete(s, name)
				}
				return nil
			},
		}
	}
	return out
}
