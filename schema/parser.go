// Package schema builds attribute schemas from struct types: every exported
// field becomes a validated attribute, embedded structs compose as bases
// oldest-first, and Get/Set method pairs become property fields. Parsers are
// built once per type and cached.
package schema

import (
	"reflect"
	"strings"
	"time"

	"github.com/HansdasC/utype"
	"github.com/HansdasC/utype/rule"
	_ "github.com/HansdasC/utype/transform" // registers the default coercer
)

// Configured lets a struct declare parser-level options.
type Configured interface {
	UtypeOptions() utype.Options
}

// FieldSpecs lets a struct attach full Field specs by Go field or property
// name, for options a tag cannot express (factories, predicates).
type FieldSpecs interface {
	UtypeFields() map[string]*utype.Field
}

// RuleSpecs lets a struct override the derived input rule of a field, for
// unions and literal tags.
type RuleSpecs interface {
	UtypeRules() map[string]*rule.Rule
}

// binding ties a schema field to its storage: a struct index path, or
// getter/setter methods for properties.
type binding struct {
	sf     *utype.SchemaField
	index  []int
	getter reflect.Value
	setter reflect.Value
}

func (b *binding) hasGetter() bool { return b.getter.IsValid() }
func (b *binding) hasSetter() bool { return b.setter.IsValid() }

type parser struct {
	target     reflect.Type
	name       string
	opts       utype.Options
	order      []*binding
	byName     map[string]*binding
	aliasMap   map[string]string
	exclusions map[string]struct{}
	objRule    *rule.Rule
}

var cache = utype.NewRegistry[reflect.Type, *parser]()

func resolve(t reflect.Type) (*parser, error) {
	return resolveIn(t, nil)
}

// resolveIn is resolve threaded through one build pass: visited holds the
// parsers mid-build in this recursion, so a self-referential type gets its
// own shell back while concurrent callers only ever see sealed parsers from
// the cache. Nested types of an in-flight build are built directly rather
// than through the flight group, so mutually recursive types built from two
// goroutines cannot block on each other's flights; Register reconciles the
// rare duplicate build first-wins.
func resolveIn(t reflect.Type, visited map[reflect.Type]*parser) (*parser, error) {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if p, ok := cache.Get(t); ok {
		return p, nil
	}
	if p, ok := visited[t]; ok {
		return p, nil
	}
	if visited != nil {
		p, err := build(t, visited)
		if err != nil {
			return nil, err
		}
		return cache.Register(t, p), nil
	}
	return cache.Resolve(t, func() (*parser, error) {
		return build(t, nil)
	})
}

func build(t reflect.Type, visited map[reflect.Type]*parser) (*parser, error) {
	if t.Kind() != reflect.Struct {
		return nil, utype.Config(t.String(), "", "schema target must be a struct")
	}
	p := &parser{
		target:     t,
		name:       t.Name(),
		byName:     map[string]*binding{},
		aliasMap:   map[string]string{},
		exclusions: map[string]struct{}{},
		objRule:    &rule.Rule{Kind: rule.Object, GoType: t, Name: t.Name()},
	}
	if visited == nil {
		visited = map[reflect.Type]*parser{}
	}
	visited[t] = p
	defer delete(visited, t)

	zero := reflect.New(t).Elem().Interface()
	if cfg, ok := zero.(Configured); ok {
		p.opts = cfg.UtypeOptions()
	}
	if err := p.opts.Check(); err != nil {
		return nil, err
	}
	var specs map[string]*utype.Field
	if fs, ok := zero.(FieldSpecs); ok {
		specs = fs.UtypeFields()
	}
	var ruleSpecs map[string]*rule.Rule
	if rs, ok := zero.(RuleSpecs); ok {
		ruleSpecs = rs.UtypeRules()
	}

	if err := p.mergeBases(t, visited); err != nil {
		return nil, err
	}
	if err := p.declareOwn(t, specs, ruleSpecs, visited); err != nil {
		return nil, err
	}
	if err := p.declareProperties(t, specs, ruleSpecs, visited); err != nil {
		return nil, err
	}
	if err := p.bind(); err != nil {
		return nil, err
	}
	return p, nil
}

// mergeBases composes embedded struct schemas oldest-first: the first
// embedded field is the oldest base, later bases override earlier ones on
// conflicting canonical names, and the embedding struct layers last.
func (p *parser) mergeBases(t reflect.Type, visited map[reflect.Type]*parser) error {
	for i := 0; i < t.NumField(); i++ {
		ft := t.Field(i)
		if !ft.Anonymous {
			continue
		}
		bt := ft.Type
		if bt.Kind() == reflect.Ptr {
			bt = bt.Elem()
		}
		if bt.Kind() != reflect.Struct || bt == reflect.TypeOf(time.Time{}) {
			continue
		}
		base, err := resolveIn(bt, visited)
		if err != nil {
			return err
		}
		if base.opts.Mode != "" || base.opts.CaseInsensitive != nil || base.opts.ErrPolicy != "" {
			p.opts = p.opts.Merged(base.opts)
		}
		for _, bb := range base.order {
			nb := &binding{
				sf:     bb.sf,
				index:  append([]int{i}, bb.index...),
				getter: bb.getter,
				setter: bb.setter,
			}
			p.place(nb, true)
		}
		for name := range base.exclusions {
			p.exclusions[name] = struct{}{}
		}
		for m := 0; m < bt.NumMethod(); m++ {
			p.exclusions[bt.Method(m).Name] = struct{}{}
		}
	}
	return nil
}

// place inserts or overrides a binding by canonical name, keeping the first
// declaration position on override.
func (p *parser) place(b *binding, fromBase bool) {
	name := b.sf.Name
	if prev, ok := p.byName[name]; ok {
		for i, ob := range p.order {
			if ob == prev {
				p.order[i] = b
				break
			}
		}
		p.byName[name] = b
		return
	}
	_ = fromBase
	p.byName[name] = b
	p.order = append(p.order, b)
}

func (p *parser) declareOwn(t reflect.Type, specs map[string]*utype.Field, ruleSpecs map[string]*rule.Rule, visited map[reflect.Type]*parser) error {
	for i := 0; i < t.NumField(); i++ {
		ft := t.Field(i)
		if ft.Anonymous {
			continue
		}
		if ft.PkgPath != "" {
			p.exclusions[ft.Name] = struct{}{}
			continue
		}
		f, tagAlias, skip, literal, hasLiteral, err := parseTag(ft.Tag.Get("utype"))
		if err != nil {
			return utype.Config(p.name, ft.Name, "%v", err)
		}
		if skip {
			p.exclusions[ft.Name] = struct{}{}
			continue
		}
		if spec, ok := specs[ft.Name]; ok && spec != nil {
			if tagAlias != "" {
				spec.AliasFrom(tagAlias)
			}
			f = spec
		}
		var in *rule.Rule
		if r, ok := ruleSpecs[ft.Name]; ok {
			in = r
		} else if hasLiteral {
			in = rule.LiteralOf(literal)
		} else {
			in, err = deriveRule(ft.Type, visited)
			if err != nil {
				return utype.Config(p.name, ft.Name, "%v", err)
			}
		}
		if err := p.declare(ft.Name, f, in, in, []int{i}, reflect.Value{}, reflect.Value{}); err != nil {
			return err
		}
	}
	return nil
}

// declareProperties turns GetX/SetX method pairs into property fields: the
// input rule comes from the setter's value parameter, the output rule from
// the getter's return. A setter-less property is output-only, a getter-less
// one input-only.
func (p *parser) declareProperties(t reflect.Type, specs map[string]*utype.Field, ruleSpecs map[string]*rule.Rule, visited map[reflect.Type]*parser) error {
	pt := reflect.PtrTo(t)
	getters := map[string]reflect.Method{}
	setters := map[string]reflect.Method{}
	for i := 0; i < pt.NumMethod(); i++ {
		m := pt.Method(i)
		switch {
		case strings.HasPrefix(m.Name, "Get") && len(m.Name) > 3:
			if m.Type.NumIn() == 1 && m.Type.NumOut() >= 1 {
				getters[m.Name[3:]] = m
			}
		case strings.HasPrefix(m.Name, "Set") && len(m.Name) > 3:
			if m.Type.NumIn() == 2 {
				setters[m.Name[3:]] = m
			}
		}
	}
	names := map[string]struct{}{}
	for n := range getters {
		names[n] = struct{}{}
	}
	for n := range setters {
		names[n] = struct{}{}
	}
	for name := range names {
		if _, isField := p.byName[name]; isField {
			continue
		}
		if _, ok := t.FieldByName(name); ok {
			continue
		}
		f := utype.New()
		if spec, ok := specs[name]; ok && spec != nil {
			f = spec
		}
		var in, out *rule.Rule
		var err error
		getter, hasGet := getters[name]
		setter, hasSet := setters[name]
		if hasSet {
			in, err = deriveRule(setter.Type.In(1), visited)
			if err != nil {
				return utype.Config(p.name, name, "%v", err)
			}
		} else {
			f.NoInput()
		}
		if hasGet {
			out, err = deriveRule(getter.Type.Out(0), visited)
			if err != nil {
				return utype.Config(p.name, name, "%v", err)
			}
		} else {
			f.NoOutput()
		}
		if r, ok := ruleSpecs[name]; ok {
			in = r
		}
		if in == nil {
			in = out
		}
		if out == nil {
			out = in
		}
		var gv, sv reflect.Value
		if hasGet {
			gv = getter.Func
		}
		if hasSet {
			sv = setter.Func
		}
		if err := p.declare(name, f, in, out, nil, gv, sv); err != nil {
			return err
		}
	}
	return nil
}

func (p *parser) declare(attrName string, f *utype.Field, in, out *rule.Rule, index []int, getter, setter reflect.Value) error {
	sf, err := utype.NewSchemaField(attrName, f, in, out, len(p.order), p.opts)
	if err != nil {
		if ce, ok := utype.AsConfigError(err); ok && ce.Field == "" {
			ce.Field = attrName
		}
		return err
	}
	sf.Property = index == nil
	if prev, ok := p.byName[sf.Name]; ok {
		if prev.sf.Immutable() {
			return utype.Config(p.name, attrName, "cannot redeclare immutable field %q", sf.Name)
		}
		if len(prev.index) <= 1 && !prev.sf.Property {
			// both declared on this struct
			return utype.Config(p.name, attrName, "field name %q already declared by %q", sf.Name, prev.sf.AttrName)
		}
	}
	if _, shadowed := p.exclusions[sf.Name]; shadowed {
		return utype.Config(p.name, attrName, "%q shadows a base method or excluded attribute", sf.Name)
	}
	p.place(&binding{sf: sf, index: index, getter: getter, setter: setter}, false)
	return nil
}

// bind resolves cross-field references and seals the parser.
func (p *parser) bind() error {
	all := map[string]*utype.SchemaField{}
	for name, b := range p.byName {
		all[name] = b.sf
	}
	p.aliasMap = map[string]string{}
	for _, b := range p.order {
		for _, a := range b.sf.Aliases {
			if owner, taken := p.aliasMap[a]; taken && owner != b.sf.Name {
				return utype.Config(p.name, b.sf.AttrName, "alias %q already accepted by field %q", a, owner)
			}
			p.aliasMap[a] = b.sf.Name
		}
		// attribute names resolve too, even when aliased away
		if _, taken := p.aliasMap[b.sf.AttrName]; !taken {
			p.aliasMap[b.sf.AttrName] = b.sf.Name
		}
	}
	for _, b := range p.order {
		if err := b.sf.Bind(all, p.aliasMap); err != nil {
			if ce, ok := utype.AsConfigError(err); ok && ce.Target == "SchemaField" {
				ce.Target = p.name
			}
			return err
		}
	}
	fields := map[string]*rule.Rule{}
	for _, b := range p.order {
		fields[b.sf.Name] = b.sf.InputRule
	}
	p.objRule.Fields = fields
	p.objRule.Schema = p
	return nil
}

// deriveRule maps a Go type to a rule, descending into nested structs so
// object rules carry their schemas.
func deriveRule(t reflect.Type, visited map[reflect.Type]*parser) (*rule.Rule, error) {
	r := rule.OfType(t)
	return bindNested(r, visited)
}

func bindNested(r *rule.Rule, visited map[reflect.Type]*parser) (*rule.Rule, error) {
	switch r.Kind {
	case rule.Object:
		if r.Schema == nil && r.GoType != nil {
			np, err := resolveIn(r.GoType, visited)
			if err != nil {
				return nil, err
			}
			return np.objRule, nil
		}
	case rule.List:
		elem, err := bindNested(r.Elem, visited)
		if err != nil {
			return nil, err
		}
		r.Elem = elem
	case rule.Map:
		elem, err := bindNested(r.Elem, visited)
		if err != nil {
			return nil, err
		}
		r.Elem = elem
	}
	return r, nil
}

// RuleOf returns the bound object rule for a struct type, building its
// parser when needed. Union members for discriminated fields come from here.
func RuleOf(t reflect.Type) (*rule.Rule, error) {
	p, err := resolve(t)
	if err != nil {
		return nil, err
	}
	return p.objRule, nil
}

// RuleFor is the generic form of RuleOf.
func RuleFor[T any]() *rule.Rule {
	r, err := RuleOf(reflect.TypeOf((*T)(nil)).Elem())
	if err != nil {
		panic(err)
	}
	return r
}
