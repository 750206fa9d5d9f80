package schema

import (
	"github.com/HansdasC/utype"
	"github.com/HansdasC/utype/rule"
)

// DynamicField declares one field of a schema assembled at runtime rather
// than from a struct type.
type DynamicField struct {
	Name  string
	Field *utype.Field
	Rule  *rule.Rule
}

// Dynamic validates mappings against a schema assembled at runtime. Results
// stay as maps keyed by canonical name; there is no struct binding.
type Dynamic struct {
	p *parser
}

// NewDynamic builds a runtime schema from field declarations.
func NewDynamic(name string, fields []DynamicField, opts utype.Options) (*Dynamic, error) {
	if err := opts.Check(); err != nil {
		return nil, err
	}
	p := &parser{
		name:       name,
		opts:       opts,
		byName:     map[string]*binding{},
		aliasMap:   map[string]string{},
		exclusions: map[string]struct{}{},
		objRule:    &rule.Rule{Kind: rule.Object, Name: name},
	}
	for i, df := range fields {
		sf, err := utype.NewSchemaField(df.Name, df.Field, df.Rule, df.Rule, i, opts)
		if err != nil {
			if ce, ok := utype.AsConfigError(err); ok && ce.Field == "" {
				ce.Field = df.Name
			}
			return nil, err
		}
		if prev, dup := p.byName[sf.Name]; dup {
			return nil, utype.Config(name, df.Name, "field name %q already declared by %q", sf.Name, prev.sf.AttrName)
		}
		p.place(&binding{sf: sf}, false)
	}
	if err := p.bind(); err != nil {
		return nil, err
	}
	return &Dynamic{p: p}, nil
}

// Parse validates one mapping and returns canonical-keyed values.
func (d *Dynamic) Parse(input map[string]any, po ...utype.ParseOptions) (map[string]any, error) {
	rt := utype.NewRuntime(d.p.opts, po...)
	vals, err := d.p.parseMap(rt, input)
	if err == nil {
		err = rt.Finish()
	}
	if err != nil {
		return nil, err
	}
	return vals, nil
}

// Fields returns the schema fields in declaration order.
func (d *Dynamic) Fields() []*utype.SchemaField {
	out := make([]*utype.SchemaField, len(d.p.order))
	for i, b := range d.p.order {
		out[i] = b.sf
	}
	return out
}

// Rule returns the object rule bound to this schema, usable as a union
// member or nested field rule.
func (d *Dynamic) Rule() *rule.Rule { return d.p.objRule }
