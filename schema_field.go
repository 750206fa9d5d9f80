package utype

import (
	"fmt"

	"github.com/HansdasC/utype/rule"
)

// SchemaField is a Field bound to its resolved type rules, canonical name
// and position within one parser. Parsers build these once and never mutate
// them afterwards.
type SchemaField struct {
	Field    *Field
	AttrName string
	// Name is the canonical (output) name after alias resolution.
	Name string
	// Aliases are every accepted input name, canonical name first.
	Aliases []string
	// Index is the declaration position, which doubles as the positional
	// slot for signature schemas.
	Index      int
	InputRule  *rule.Rule
	OutputRule *rule.Rule

	// Property marks a field backed by accessor methods rather than storage.
	Property bool

	discriminants map[string]*rule.Rule
	deps          []string
	deprecatedTo  string
	secret        bool
}

// NewSchemaField binds a Field spec to its rules under the given options.
// It validates the Field itself and, when a discriminator is configured, the
// union structure of the input rule.
func NewSchemaField(attrName string, f *Field, in, out *rule.Rule, idx int, opts Options) (*SchemaField, error) {
	if f == nil {
		f = New()
	}
	if err := f.Check(); err != nil {
		return nil, err
	}
	if in == nil {
		in = rule.Of(rule.Any)
	}
	if out == nil {
		out = in
	}
	if len(f.constraints) > 0 {
		in = in.WithConstraints(f.constraints)
	}
	name := f.ResolveAlias(attrName, opts.AliasGenerator)
	aliases := f.ResolveAliasSet(attrName, name, opts.caseInsensitive(), opts.AliasFromGenerators...)
	sf := &SchemaField{
		Field:        f,
		AttrName:     attrName,
		Name:         name,
		Aliases:      aliases,
		Index:        idx,
		InputRule:    in,
		OutputRule:   out,
		deprecatedTo: f.deprecatedTo,
		secret:       f.secret || opts.secret(),
	}
	if f.discriminator != "" {
		if err := sf.validateDiscriminator(); err != nil {
			return nil, err
		}
	}
	return sf, nil
}

// tagKey normalizes a discriminator constant so that a json.Number input
// matches an int constant.
func tagKey(v any) string { return fmt.Sprintf("%v", v) }

func (sf *SchemaField) validateDiscriminator() error {
	tag := sf.Field.discriminator
	kind, members, ok := sf.InputRule.Combined()
	if !ok {
		return Config("SchemaField", sf.AttrName,
			"discriminator %q requires an anyOf/oneOf of schemas, got %s", tag, sf.InputRule)
	}
	_ = kind
	sf.discriminants = map[string]*rule.Rule{}
	for _, m := range members {
		res := m.Resolve()
		if res.Kind != rule.Object || res.Fields == nil {
			return Config("SchemaField", sf.AttrName,
				"discriminator %q: member %s is not a schema", tag, m)
		}
		tr, ok := res.Fields[tag]
		if !ok {
			return Config("SchemaField", sf.AttrName,
				"discriminator %q: member %s has no field %q", tag, m, tag)
		}
		trr := tr.Resolve()
		if trr.Kind != rule.Literal {
			return Config("SchemaField", sf.AttrName,
				"discriminator %q: field in member %s has no literal constant", tag, m)
		}
		key := tagKey(trr.Const)
		if _, dup := sf.discriminants[key]; dup {
			return Config("SchemaField", sf.AttrName,
				"discriminator %q: constant %v appears in more than one member", tag, trr.Const)
		}
		sf.discriminants[key] = m
	}
	return nil
}

// Bind cross-checks this field against the complete field map of its parser:
// alias sets must not capture other fields' canonical names, and dependency
// and deprecation-replacement names must resolve.
func (sf *SchemaField) Bind(all map[string]*SchemaField, aliasMap map[string]string) error {
	for _, a := range sf.Aliases {
		if other, ok := all[a]; ok && other != sf {
			return Config("SchemaField", sf.AttrName,
				"alias %q collides with field %q", a, other.AttrName)
		}
	}
	sf.deps = sf.deps[:0]
	for _, dep := range sf.Field.dependencies {
		canon := dep
		if c, ok := aliasMap[dep]; ok {
			canon = c
		}
		if _, ok := all[canon]; !ok {
			return Config("SchemaField", sf.AttrName, "dependency %q does not resolve to a field", dep)
		}
		sf.deps = append(sf.deps, canon)
	}
	if sf.deprecatedTo != "" {
		canon := sf.deprecatedTo
		if c, ok := aliasMap[canon]; ok {
			canon = c
		}
		if _, ok := all[canon]; !ok {
			return Config("SchemaField", sf.AttrName,
				"deprecation replacement %q does not resolve to a field", sf.deprecatedTo)
		}
		sf.deprecatedTo = canon
	}
	return nil
}

// Dependencies returns the canonical names this field requires alongside it.
func (sf *SchemaField) Dependencies() []string { return sf.deps }

// DeprecatedTo returns the canonical replacement name of a deprecated field.
func (sf *SchemaField) DeprecatedTo() string { return sf.deprecatedTo }

// Deprecated reports whether the field is marked deprecated.
func (sf *SchemaField) Deprecated() bool { return sf.Field.deprecated }

// Secret reports whether values must be masked in rendered errors.
func (sf *SchemaField) Secret() bool { return sf.secret }

// Immutable reports whether writes after construction are forbidden.
func (sf *SchemaField) Immutable() bool { return sf.Field.immutable }

// IsRequired reports requiredness under the runtime's mode and overrides.
func (sf *SchemaField) IsRequired(rt *Runtime) bool {
	if rt.IgnoreRequired() {
		return false
	}
	if sf.NoInput(nil, rt) {
		return false
	}
	return sf.Field.IsRequired(rt.Mode())
}

// NoInput reports whether the value is excluded from input under the active
// mode.
func (sf *SchemaField) NoInput(v any, rt *Runtime) bool {
	return sf.Field.noInput.eval(v, rt.Mode(), sf.Field.effectiveMode())
}

// NoOutput reports whether the parsed value is excluded from output under
// the active mode.
func (sf *SchemaField) NoOutput(v any, rt *Runtime) bool {
	return sf.Field.noOutput.eval(v, rt.Mode(), sf.Field.effectiveMode())
}

// ResolveDefault produces this call's default: the call-wide forced default
// wins, a no-default call yields nothing, else the field's own default.
func (sf *SchemaField) ResolveDefault(rt *Runtime) (any, bool) {
	if v, ok := rt.ForceDefault(); ok {
		return deepCopy(v), true
	}
	if rt.NoDefault() {
		return nil, false
	}
	return sf.Field.ResolveDefault()
}

// ResolveUnprovided produces the absent-field sentinel, if configured.
func (sf *SchemaField) ResolveUnprovided(rt *Runtime) (any, bool) {
	return sf.Field.ResolveUnprovided()
}

func (sf *SchemaField) policy(rt *Runtime) Policy {
	if sf.Field.onError != "" {
		return sf.Field.onError
	}
	return rt.Options().errPolicy()
}

// targetRule picks the variant rule for a discriminated union when the raw
// value is a mapping carrying a known tag. Unknown or missing tags fall
// through to the declared rule, whose coercion failure then surfaces.
func (sf *SchemaField) targetRule(raw any) *rule.Rule {
	if sf.discriminants == nil {
		return sf.InputRule
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return sf.InputRule
	}
	tv, ok := m[sf.Field.discriminator]
	if !ok {
		return sf.InputRule
	}
	if variant, ok := sf.discriminants[tagKey(tv)]; ok {
		return variant
	}
	return sf.InputRule
}

// ParseValue coerces one raw input value. The second result reports whether
// a value survived: false means the field was dropped under exclude policy.
// Fatal escalation goes through the runtime; a non-nil error only comes back
// under fail-fast.
func (sf *SchemaField) ParseValue(raw any, rt *Runtime) (any, bool, error) {
	out, err := rt.Transformer().Transform(rt, raw, sf.targetRule(raw))
	if err == nil {
		return out, true, nil
	}
	issues := sf.issuesFor(raw, err)
	switch sf.policy(rt) {
	case PolicyExclude:
		if sf.IsRequired(rt) {
			return nil, false, rt.CollectAll(issues)
		}
		for _, is := range issues {
			rt.Warn(is)
		}
		return nil, false, nil
	case PolicyPreserve:
		for _, is := range issues {
			rt.Warn(is)
		}
		return raw, true, nil
	default:
		return nil, false, rt.CollectAll(issues)
	}
}

// DumpValue coerces a parsed value back through the output rule for
// serialization. Output failures follow the same policy as input.
func (sf *SchemaField) DumpValue(v any, rt *Runtime) (any, bool, error) {
	out, err := rt.Transformer().Transform(rt, v, sf.OutputRule)
	if err == nil {
		return out, true, nil
	}
	issues := sf.issuesFor(v, err)
	switch sf.policy(rt) {
	case PolicyExclude:
		for _, is := range issues {
			rt.Warn(is)
		}
		return nil, false, nil
	case PolicyPreserve:
		for _, is := range issues {
			rt.Warn(is)
		}
		return v, true, nil
	default:
		return nil, false, rt.CollectAll(issues)
	}
}

// issuesFor turns a transform error into field-scoped issues with the field
// name prefixed onto nested paths.
func (sf *SchemaField) issuesFor(raw any, err error) Issues {
	if nested, ok := AsIssues(err); ok {
		out := make(Issues, len(nested))
		for i, is := range nested {
			is.Path = joinPath(sf.Name, is.Path)
			if is.Value == "" {
				is.Value = RenderValue(raw, sf.secret)
			} else if sf.secret {
				is.Value = RenderValue(nil, true)
			}
			out[i] = is
		}
		return out
	}
	return Issues{{
		Path:    sf.Name,
		Code:    CodeParseError,
		Message: fmt.Sprintf("invalid value for type %s: %v", sf.InputRule, err),
		Hint:    sf.Field.description,
		Value:   RenderValue(raw, sf.secret),
		Type:    sf.InputRule.String(),
		Cause:   err,
	}}
}

// AbsenceIssue builds the issue raised when a required field is missing.
func (sf *SchemaField) AbsenceIssue() Issue {
	return Issue{
		Path:    sf.Name,
		Code:    CodeRequired,
		Message: fmt.Sprintf("required field %q is absent", sf.Name),
		Hint:    sf.Field.description,
		Type:    sf.InputRule.String(),
	}
}

func joinPath(prefix, path string) string {
	if path == "" {
		return prefix
	}
	if path[0] == '[' {
		return prefix + path
	}
	return prefix + "." + path
}
