package utype

import "strings"

// Mode is a set of single-character access tags such as "r", "w" or "rw".
// An empty Mode places no restriction.
type Mode string

const (
	ModeRead  Mode = "r"
	ModeWrite Mode = "w"
)

// Contains reports whether every tag of sub is present in m.
func (m Mode) Contains(sub Mode) bool {
	for _, c := range sub {
		if !strings.ContainsRune(string(m), c) {
			return false
		}
	}
	return true
}

// Intersects reports whether m and other share at least one tag.
func (m Mode) Intersects(other Mode) bool {
	for _, c := range other {
		if strings.ContainsRune(string(m), c) {
			return true
		}
	}
	return false
}

func (m Mode) normalize() Mode {
	seen := map[rune]struct{}{}
	b := &strings.Builder{}
	for _, c := range m {
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		b.WriteRune(c)
	}
	return Mode(b.String())
}

// Policy decides what happens when a field value fails coercion.
type Policy string

const (
	// PolicyThrow escalates the failure to a fatal error. The default.
	PolicyThrow Policy = "throw"
	// PolicyExclude drops the offending value and records a warning,
	// unless the field is required, which always escalates.
	PolicyExclude Policy = "exclude"
	// PolicyPreserve keeps the raw value untouched and records a warning.
	PolicyPreserve Policy = "preserve"
)

// Addition is the policy applied to input keys that match no declared field.
type Addition string

const (
	// AdditionIgnore silently drops unknown keys. The default.
	AdditionIgnore Addition = "ignore"
	// AdditionReject raises an error for any unknown key.
	AdditionReject Addition = "reject"
	// AdditionPreserve carries unknown keys through to the output.
	AdditionPreserve Addition = "preserve"
)

// Options is declaration-time configuration for a parser. The zero value
// means "unset" for every knob; Merge layers more specific options over
// less specific ones field by field.
type Options struct {
	// Mode restricts which access tags this parser operates under.
	Mode Mode
	// CaseInsensitive matches input keys ignoring case when set.
	CaseInsensitive *bool
	// AliasGenerator derives the canonical output alias for each field.
	AliasGenerator AliasFunc
	// AliasFromGenerators derive extra accepted input names per field.
	AliasFromGenerators []AliasFunc
	// Addition is the unknown-key policy.
	Addition Addition
	// AdditionRule, when Addition is preserve, coerces each extra value.
	// Nil preserves extras as-is.
	AdditionRule any
	// ErrPolicy is the default per-field failure policy.
	ErrPolicy Policy
	// FailFast stops at the first data error instead of collecting.
	FailFast *bool
	// IgnoreRequired treats absent required fields as simply unprovided.
	IgnoreRequired *bool
	// IgnoreAliasConflicts tolerates several non-canonical aliases of one
	// field arriving together; the first in alias-set order wins.
	IgnoreAliasConflicts *bool
	// NoDefault suppresses default substitution for absent fields.
	NoDefault *bool
	// ForceDefault, when set, substitutes this value for any absent field.
	ForceDefault    any
	HasForceDefault bool
	// MaxProperties / MinProperties bound the input mapping size.
	MaxProperties *int
	MinProperties *int
	// Secret masks every field value in rendered errors and warnings.
	Secret *bool
	// Immutable forbids attribute writes after construction for the whole
	// schema.
	Immutable *bool

	// Override stops inheritance: a parser carrying it ignores options
	// merged in from its bases.
	Override bool
}

// Merged returns o layered over base: every knob o leaves unset falls back
// to base. When o.Override is set, base is ignored entirely.
func (o Options) Merged(base Options) Options {
	if o.Override {
		return o
	}
	out := o
	if out.Mode == "" {
		out.Mode = base.Mode
	}
	if out.CaseInsensitive == nil {
		out.CaseInsensitive = base.CaseInsensitive
	}
	if out.AliasGenerator == nil {
		out.AliasGenerator = base.AliasGenerator
	}
	if len(out.AliasFromGenerators) == 0 {
		out.AliasFromGenerators = base.AliasFromGenerators
	}
	if out.Addition == "" {
		out.Addition = base.Addition
	}
	if out.AdditionRule == nil {
		out.AdditionRule = base.AdditionRule
	}
	if out.ErrPolicy == "" {
		out.ErrPolicy = base.ErrPolicy
	}
	if out.FailFast == nil {
		out.FailFast = base.FailFast
	}
	if out.IgnoreRequired == nil {
		out.IgnoreRequired = base.IgnoreRequired
	}
	if out.IgnoreAliasConflicts == nil {
		out.IgnoreAliasConflicts = base.IgnoreAliasConflicts
	}
	if out.NoDefault == nil {
		out.NoDefault = base.NoDefault
	}
	if !out.HasForceDefault && base.HasForceDefault {
		out.ForceDefault = base.ForceDefault
		out.HasForceDefault = true
	}
	if out.MaxProperties == nil {
		out.MaxProperties = base.MaxProperties
	}
	if out.MinProperties == nil {
		out.MinProperties = base.MinProperties
	}
	if out.Secret == nil {
		out.Secret = base.Secret
	}
	if out.Immutable == nil {
		out.Immutable = base.Immutable
	}
	return out
}

func (o Options) caseInsensitive() bool {
	return o.CaseInsensitive != nil && *o.CaseInsensitive
}

func (o Options) failFast() bool {
	return o.FailFast != nil && *o.FailFast
}

func (o Options) ignoreRequired() bool {
	return o.IgnoreRequired != nil && *o.IgnoreRequired
}

func (o Options) ignoreAliasConflicts() bool {
	return o.IgnoreAliasConflicts != nil && *o.IgnoreAliasConflicts
}

func (o Options) noDefault() bool {
	return o.NoDefault != nil && *o.NoDefault
}

// ImmutableSchema reports whether the whole schema forbids writes.
func (o Options) ImmutableSchema() bool {
	return o.Immutable != nil && *o.Immutable
}

func (o Options) secret() bool {
	return o.Secret != nil && *o.Secret
}

func (o Options) addition() Addition {
	if o.Addition == "" {
		return AdditionIgnore
	}
	return o.Addition
}

func (o Options) errPolicy() Policy {
	if o.ErrPolicy == "" {
		return PolicyThrow
	}
	return o.ErrPolicy
}

// Check validates cross-option consistency.
func (o Options) Check() error {
	if o.MinProperties != nil && *o.MinProperties < 0 {
		return Config("Options", "MinProperties", "must be non-negative, got %d", *o.MinProperties)
	}
	if o.MaxProperties != nil && o.MinProperties != nil && *o.MaxProperties < *o.MinProperties {
		return Config("Options", "MaxProperties", "must be >= MinProperties (%d), got %d", *o.MinProperties, *o.MaxProperties)
	}
	switch o.Addition {
	case "", AdditionIgnore, AdditionReject, AdditionPreserve:
	default:
		return Config("Options", "Addition", "unknown policy %q", o.Addition)
	}
	switch o.ErrPolicy {
	case "", PolicyThrow, PolicyExclude, PolicyPreserve:
	default:
		return Config("Options", "ErrPolicy", "unknown policy %q", o.ErrPolicy)
	}
	return nil
}
