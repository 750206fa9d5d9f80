package utype

// condition is a tri-state gate used by no-input / no-output: an explicit
// bool, a mode string, or a value predicate. Unset conditions defer to the
// field's own mode against the active mode.
type condition struct {
	set  bool
	b    bool
	mode Mode
	fn   func(v any) bool
}

func (c condition) eval(v any, active, fieldMode Mode) bool {
	if c.set {
		if c.fn != nil {
			return c.fn(v)
		}
		if c.mode != "" {
			return active != "" && c.mode.Contains(active)
		}
		return c.b
	}
	if fieldMode == "" || active == "" {
		return false
	}
	return !fieldMode.Contains(active)
}

// Field is the declarative spec of one attribute's parse behavior. Build it
// with New and the fluent setters, then it is immutable once a parser binds
// it. Setters return the receiver.
type Field struct {
	alias         string
	aliasGen      AliasFunc
	aliasFrom     []string
	aliasFromGens []AliasFunc

	requiredSet  bool
	requiredBool bool
	requiredMode Mode

	mode      Mode
	readonly  bool
	writeonly bool

	defaultVal     any
	hasDefault     bool
	defaultFactory func() any

	unprovidedVal     any
	hasUnprovided     bool
	unprovidedFactory func() any

	noInput  condition
	noOutput condition

	onError       Policy
	immutable     bool
	secret        bool
	deprecated    bool
	deprecatedTo  string
	discriminator string
	dependencies  []string
	description   string

	constraints map[string]any
}

// New returns an empty Field spec.
func New() *Field { return &Field{} }

// Alias sets the canonical output name, which also wins on input lookup.
func (f *Field) Alias(a string) *Field { f.alias = a; return f }

// AliasGenerator derives the canonical name from the attribute name,
// overriding any parser-level generator.
func (f *Field) AliasGenerator(g AliasFunc) *Field { f.aliasGen = g; return f }

// AliasFrom adds extra accepted input names.
func (f *Field) AliasFrom(names ...string) *Field {
	f.aliasFrom = append(f.aliasFrom, names...)
	return f
}

// AliasFromGenerators adds generators that derive extra accepted input names.
func (f *Field) AliasFromGenerators(gens ...AliasFunc) *Field {
	f.aliasFromGens = append(f.aliasFromGens, gens...)
	return f
}

// Required marks the field required in every mode.
func (f *Field) Required() *Field {
	f.requiredSet, f.requiredBool = true, true
	return f
}

// Optional marks the field explicitly optional.
func (f *Field) Optional() *Field {
	f.requiredSet, f.requiredBool = true, false
	return f
}

// RequiredIn marks the field required only under the given mode tags.
func (f *Field) RequiredIn(m Mode) *Field {
	f.requiredSet, f.requiredBool = true, true
	f.requiredMode = m.normalize()
	return f
}

// ModeOf restricts the field to the given access tags.
func (f *Field) ModeOf(m Mode) *Field { f.mode = m.normalize(); return f }

// Readonly restricts the field to read mode.
func (f *Field) Readonly() *Field { f.readonly = true; return f }

// Writeonly restricts the field to write mode.
func (f *Field) Writeonly() *Field { f.writeonly = true; return f }

// Default sets the value substituted when the field is absent from input.
// A field with a default is optional.
func (f *Field) Default(v any) *Field {
	f.defaultVal, f.hasDefault = v, true
	return f
}

// DefaultFactory sets a factory invoked fresh per call to produce the
// default, for mutable defaults.
func (f *Field) DefaultFactory(fn func() any) *Field {
	f.defaultFactory, f.hasDefault = fn, true
	return f
}

// Unprovided sets the sentinel assigned when the field is absent and has no
// default.
func (f *Field) Unprovided(v any) *Field {
	f.unprovidedVal, f.hasUnprovided = v, true
	return f
}

// UnprovidedFactory is the factory form of Unprovided.
func (f *Field) UnprovidedFactory(fn func() any) *Field {
	f.unprovidedFactory, f.hasUnprovided = fn, true
	return f
}

// NoInput excludes the field from input entirely.
func (f *Field) NoInput() *Field { f.noInput = condition{set: true, b: true}; return f }

// NoInputIn excludes the field from input under the given mode tags.
func (f *Field) NoInputIn(m Mode) *Field {
	f.noInput = condition{set: true, mode: m.normalize()}
	return f
}

// NoInputFunc excludes the field from input when fn returns true for the
// provided value.
func (f *Field) NoInputFunc(fn func(v any) bool) *Field {
	f.noInput = condition{set: true, fn: fn}
	return f
}

// NoOutput excludes the field from output entirely.
func (f *Field) NoOutput() *Field { f.noOutput = condition{set: true, b: true}; return f }

// NoOutputIn excludes the field from output under the given mode tags.
func (f *Field) NoOutputIn(m Mode) *Field {
	f.noOutput = condition{set: true, mode: m.normalize()}
	return f
}

// NoOutputFunc excludes the field from output when fn returns true for the
// parsed value.
func (f *Field) NoOutputFunc(fn func(v any) bool) *Field {
	f.noOutput = condition{set: true, fn: fn}
	return f
}

// OnError sets the per-field failure policy.
func (f *Field) OnError(p Policy) *Field { f.onError = p; return f }

// Immutable forbids writes after construction.
func (f *Field) Immutable() *Field { f.immutable = true; return f }

// Secret masks the field's value in rendered errors and warnings.
func (f *Field) Secret() *Field { f.secret = true; return f }

// Deprecated records a deprecation warning when the field appears in input.
// to names a replacement field; pass "" when there is none.
func (f *Field) Deprecated(to string) *Field {
	f.deprecated, f.deprecatedTo = true, to
	return f
}

// Discriminator names the tag field that selects a union variant.
func (f *Field) Discriminator(tag string) *Field { f.discriminator = tag; return f }

// DependsOn requires the named fields to be provided whenever this one is.
func (f *Field) DependsOn(names ...string) *Field {
	f.dependencies = append(f.dependencies, names...)
	return f
}

// Description attaches a human-readable note used as a hint in errors.
func (f *Field) Description(d string) *Field { f.description = d; return f }

// Constrain attaches a named constraint handed through to the type rule,
// such as "gt", "max_length" or "regex".
func (f *Field) Constrain(name string, v any) *Field {
	if f.constraints == nil {
		f.constraints = map[string]any{}
	}
	f.constraints[name] = v
	return f
}

// Check validates cross-option consistency. It is called by parsers at bind
// time; calling it directly is only useful in tests.
func (f *Field) Check() error {
	if f.readonly && f.writeonly {
		return Config("Field", "mode", "readonly and writeonly are mutually exclusive")
	}
	if f.mode != "" && (f.readonly || f.writeonly) {
		return Config("Field", "mode", "cannot combine mode %q with readonly/writeonly", f.mode)
	}
	m := f.effectiveMode()
	if f.noInput.set && f.noInput.mode != "" && !m.Contains(f.noInput.mode) {
		return Config("Field", "no_input", "mode %q is not a subset of field mode %q", f.noInput.mode, m)
	}
	if f.noOutput.set && f.noOutput.mode != "" && !m.Contains(f.noOutput.mode) {
		return Config("Field", "no_output", "mode %q is not a subset of field mode %q", f.noOutput.mode, m)
	}
	if f.hasDefault && f.requiredSet && f.requiredBool && f.requiredMode == "" {
		return Config("Field", "default", "a field with a default cannot be required")
	}
	if f.requiredMode != "" && m != "" && !m.Contains(f.requiredMode) {
		return Config("Field", "required", "mode %q is not a subset of field mode %q", f.requiredMode, m)
	}
	if f.hasDefault && f.defaultFactory != nil && f.defaultVal != nil {
		return Config("Field", "default", "value and factory are mutually exclusive")
	}
	return nil
}

func (f *Field) effectiveMode() Mode {
	switch {
	case f.readonly:
		return ModeRead
	case f.writeonly:
		return ModeWrite
	default:
		return f.mode
	}
}

// ResolveAlias returns the canonical name for an attribute: the explicit
// alias wins, then the field's own generator, then gen, then name itself.
func (f *Field) ResolveAlias(name string, gen AliasFunc) string {
	if f.alias != "" {
		return f.alias
	}
	if f.aliasGen != nil {
		if a := f.aliasGen(name); a != "" {
			return a
		}
	}
	if gen != nil {
		if a := gen(name); a != "" {
			return a
		}
	}
	return name
}

// ResolveAliasSet returns every accepted input name: the attribute name, the
// canonical alias, explicit alias-from entries, and generator output. The
// result is never empty and preserves first-seen order.
func (f *Field) ResolveAliasSet(name, alias string, caseInsensitive bool, gens ...AliasFunc) []string {
	seen := map[string]struct{}{}
	var out []string
	add := func(a string) {
		if a == "" {
			return
		}
		if caseInsensitive {
			a = lower(a)
		}
		if _, dup := seen[a]; dup {
			return
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	add(alias)
	add(name)
	for _, a := range f.aliasFrom {
		add(a)
	}
	for _, g := range f.aliasFromGens {
		if g != nil {
			add(g(name))
		}
	}
	for _, g := range gens {
		if g != nil {
			add(g(name))
		}
	}
	return out
}

// IsRequired reports requiredness under the active mode. A field with a
// default is never required; an unset requiredness defaults to required,
// matching annotated attributes without defaults.
func (f *Field) IsRequired(active Mode) bool {
	if f.hasDefault {
		return false
	}
	if !f.requiredSet {
		return true
	}
	if !f.requiredBool {
		return false
	}
	if f.requiredMode != "" {
		return active == "" || f.requiredMode.Intersects(active)
	}
	return true
}

// HasDefault reports whether the field carries a default value or factory.
func (f *Field) HasDefault() bool { return f.hasDefault }

// ResolveDefault produces the default for one call: factories run fresh,
// plain mutable values are deep-copied to avoid aliasing across calls.
func (f *Field) ResolveDefault() (any, bool) {
	if !f.hasDefault {
		return nil, false
	}
	if f.defaultFactory != nil {
		return f.defaultFactory(), true
	}
	return deepCopy(f.defaultVal), true
}

// ResolveUnprovided produces the unprovided sentinel, if configured.
func (f *Field) ResolveUnprovided() (any, bool) {
	if !f.hasUnprovided {
		return nil, false
	}
	if f.unprovidedFactory != nil {
		return f.unprovidedFactory(), true
	}
	return deepCopy(f.unprovidedVal), true
}
