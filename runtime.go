package utype

import (
	"os"

	"github.com/charmbracelet/log"

	"github.com/HansdasC/utype/rule"
)

// Transformer coerces a value into the shape of a rule. Implementations
// report incompatible input through an error; using Issues as the error type
// lets nested paths aggregate.
type Transformer interface {
	Transform(rt *Runtime, v any, r *rule.Rule) (any, error)
}

// WarnSink receives downgraded issues. The default sink logs them.
type WarnSink func(Issue)

var warnLog = log.NewWithOptions(os.Stderr, log.Options{
	Prefix:          "utype",
	ReportTimestamp: false,
})

func logWarn(is Issue) {
	warnLog.Warn(is.Message, "path", is.Path, "code", is.Code)
}

// ParseOptions are per-call overrides layered over a parser's declared
// Options for one validation pass.
type ParseOptions struct {
	// Mode is the active access mode for this call.
	Mode Mode
	// IgnoreRequired treats absent required fields as unprovided.
	IgnoreRequired *bool
	// IgnoreAliasConflicts tolerates several non-canonical aliases of one
	// field arriving together.
	IgnoreAliasConflicts *bool
	// Addition overrides the unknown-key policy for this call.
	Addition Addition
	// NoDefault suppresses default substitution.
	NoDefault *bool
	// ForceDefault substitutes this value for every absent field.
	ForceDefault    any
	HasForceDefault bool
	// FailFast stops at the first data error.
	FailFast *bool
	// Transformer overrides the coercer for this call.
	Transformer Transformer
	// WarnSink overrides where downgraded issues go.
	WarnSink WarnSink
}

// Runtime is the error-collection context of one in-flight validation call.
// It is created at call start, owned by exactly one call, and discarded at
// call end.
type Runtime struct {
	opts        Options
	mode        Mode
	transformer Transformer
	sink        WarnSink

	ignoreRequired       bool
	ignoreAliasConflicts bool
	addition             Addition
	noDefault            bool
	forceDefault         any
	hasForceDefault      bool
	failFast             bool

	// po holds the per-call overrides so Derive can carry them into nested
	// runtimes.
	po ParseOptions

	issues   Issues
	warnings Issues
}

// NewRuntime derives a fresh Runtime from declared options plus at most one
// per-call override set.
func NewRuntime(opts Options, po ...ParseOptions) *Runtime {
	rt := &Runtime{
		opts:                 opts,
		mode:                 opts.Mode,
		sink:                 logWarn,
		ignoreRequired:       opts.ignoreRequired(),
		ignoreAliasConflicts: opts.ignoreAliasConflicts(),
		noDefault:            opts.noDefault(),
		forceDefault:         opts.ForceDefault,
		hasForceDefault:      opts.HasForceDefault,
		failFast:             opts.failFast(),
	}
	if len(po) > 0 {
		p := po[0]
		rt.po = p
		if p.Mode != "" {
			rt.mode = p.Mode
		}
		if p.IgnoreRequired != nil {
			rt.ignoreRequired = *p.IgnoreRequired
		}
		if p.IgnoreAliasConflicts != nil {
			rt.ignoreAliasConflicts = *p.IgnoreAliasConflicts
		}
		if p.Addition != "" {
			rt.addition = p.Addition
		}
		if p.NoDefault != nil {
			rt.noDefault = *p.NoDefault
		}
		if p.HasForceDefault {
			rt.forceDefault = p.ForceDefault
			rt.hasForceDefault = true
		}
		if p.FailFast != nil {
			rt.failFast = *p.FailFast
		}
		if p.Transformer != nil {
			rt.transformer = p.Transformer
		}
		if p.WarnSink != nil {
			rt.sink = p.WarnSink
		}
	}
	if rt.transformer == nil {
		rt.transformer = DefaultTransformer()
	}
	return rt
}

// Options returns the declared options this runtime derives from.
func (rt *Runtime) Options() Options { return rt.opts }

// Mode returns the active access mode.
func (rt *Runtime) Mode() Mode { return rt.mode }

// Transformer returns the active coercer.
func (rt *Runtime) Transformer() Transformer { return rt.transformer }

// IgnoreRequired reports whether required-field absence is tolerated.
func (rt *Runtime) IgnoreRequired() bool { return rt.ignoreRequired }

// IgnoreAliasConflicts reports whether duplicate alias supply is tolerated.
func (rt *Runtime) IgnoreAliasConflicts() bool { return rt.ignoreAliasConflicts }

// Addition returns the effective unknown-key policy for this call.
func (rt *Runtime) Addition() Addition {
	if rt.addition != "" {
		return rt.addition
	}
	return rt.opts.addition()
}

// NoDefault reports whether default substitution is suppressed.
func (rt *Runtime) NoDefault() bool { return rt.noDefault }

// ForceDefault returns the call-wide forced default, if one is set.
func (rt *Runtime) ForceDefault() (any, bool) {
	return rt.forceDefault, rt.hasForceDefault
}

// Collect records a fatal issue. Under fail-fast it returns the accumulated
// issues immediately; otherwise it returns nil and Finish reports them.
func (rt *Runtime) Collect(is Issue) error {
	rt.issues = append(rt.issues, is)
	if rt.failFast {
		return rt.issues
	}
	return nil
}

// CollectAll records several fatal issues at once.
func (rt *Runtime) CollectAll(more Issues) error {
	rt.issues = append(rt.issues, more...)
	if rt.failFast && len(rt.issues) > 0 {
		return rt.issues
	}
	return nil
}

// Warn records a downgraded issue and forwards it to the sink.
func (rt *Runtime) Warn(is Issue) {
	rt.warnings = append(rt.warnings, is)
	if rt.sink != nil {
		rt.sink(is)
	}
}

// Warnings returns the issues downgraded during this call.
func (rt *Runtime) Warnings() Issues { return rt.warnings }

// HasIssues reports whether any fatal issue has been collected.
func (rt *Runtime) HasIssues() bool { return len(rt.issues) > 0 }

// Finish returns the collected fatal issues as an error, or nil.
func (rt *Runtime) Finish() error {
	if len(rt.issues) == 0 {
		return nil
	}
	return rt.issues
}

// Derive creates a child runtime for validating a nested payload under the
// same call. The per-call overrides travel with the child; issues collected
// by the child stay with the child, and callers merge them with an explicit
// path prefix.
func (rt *Runtime) Derive(opts Options) *Runtime {
	child := NewRuntime(opts.Merged(rt.opts), rt.po)
	child.mode = rt.mode
	child.transformer = rt.transformer
	child.sink = rt.sink
	child.failFast = rt.failFast
	return child
}
