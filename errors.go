package utype

import (
	"errors"
	"fmt"
	"strings"

	"github.com/davecgh/go-spew/spew"

	"github.com/HansdasC/utype/i18n"
)

// Issue codes.
const (
	CodeInvalidType          = "invalid_type"
	CodeRequired             = "required"
	CodeParseError           = "parse_error"
	CodeExceeded             = "exceeded"
	CodeAliasConflict        = "alias_conflict"
	CodeDependencyAbsent     = "dependency_absent"
	CodeDiscriminatorMissing = "discriminator_missing"
	CodeDiscriminatorUnknown = "discriminator_unknown"
	CodeInvalidInstance      = "invalid_instance"
	CodeDeprecated           = "deprecated"
	CodeTooManyProperties    = "too_many_properties"
	CodeTooFewProperties     = "too_few_properties"
	CodeConstraint           = "constraint"
)

// Issue represents a single data-validation entry.
type Issue struct {
	Path    string // field path, positional index or result slot (for example: /items/2, <yield[3]>)
	Code    string // one of the codes listed above
	Message string
	Hint    string // optional: remediation hints, expected type names, etc.
	Value   string // rendered offending input, best-effort
	Type    string // declared target type description
	Cause   error  // optional: underlying error
}

// CodeMessage returns the localized label of the issue's code.
func (i Issue) CodeMessage() string { return i18n.T(i.Code, nil) }

// Issues is a collection of validation errors that implements error.
type Issues []Issue

// Error summarizes the first few issues.
func (iss Issues) Error() string {
	if len(iss) == 0 {
		return ""
	}
	const maxShown = 3
	b := &strings.Builder{}
	n := len(iss)
	lim := n
	if lim > maxShown {
		lim = maxShown
	}
	for i := 0; i < lim; i++ {
		if i > 0 {
			b.WriteString("; ")
		}
		it := iss[i]
		fmt.Fprintf(b, "%s at %s", it.Code, it.Path)
		if it.Message != "" {
			fmt.Fprintf(b, ": %s", it.Message)
		}
	}
	if n > lim {
		fmt.Fprintf(b, "; ... (total %d)", n)
	}
	return b.String()
}

// AppendIssues appends issues to the destination, initializing the slice when
// needed.
func AppendIssues(dst Issues, more ...Issue) Issues {
	if dst == nil {
		dst = Issues{}
	}
	dst = append(dst, more...)
	return dst
}

// AsIssues extracts Issues from an error using errors.As internally.
func AsIssues(err error) (Issues, bool) {
	if err == nil {
		return nil, false
	}
	var iss Issues
	if errors.As(err, &iss) {
		return iss, true
	}
	return nil, false
}

// HasCode reports whether any collected issue carries the given code.
func (iss Issues) HasCode(code string) bool {
	for _, it := range iss {
		if it.Code == code {
			return true
		}
	}
	return false
}

// At returns the first issue recorded for the given path.
func (iss Issues) At(path string) (Issue, bool) {
	for _, it := range iss {
		if it.Path == path {
			return it, true
		}
	}
	return Issue{}, false
}

// ConfigError reports an ill-formed schema declaration: conflicting field
// options, duplicate names, dangling dependency/discriminator references, or
// an invalid parameter layout. It is raised once at declaration time and is
// never subject to runtime error policy.
type ConfigError struct {
	Target string // schema or callable the declaration belongs to
	Field  string // offending field or parameter, when known
	msg    string
}

func (e *ConfigError) Error() string {
	b := &strings.Builder{}
	b.WriteString("utype: config")
	if e.Target != "" {
		fmt.Fprintf(b, " [%s]", e.Target)
	}
	if e.Field != "" {
		fmt.Fprintf(b, " field %q", e.Field)
	}
	b.WriteString(": ")
	b.WriteString(e.msg)
	return b.String()
}

// Config builds a ConfigError for the given target and field.
func Config(target, field, format string, args ...any) *ConfigError {
	return &ConfigError{Target: target, Field: field, msg: fmt.Sprintf(format, args...)}
}

// AsConfigError extracts a *ConfigError from an error chain.
func AsConfigError(err error) (*ConfigError, bool) {
	var ce *ConfigError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

const maxValueRender = 160

// RenderValue produces a short, best-effort rendering of an offending input
// value for inclusion in an Issue. Secret fields render as a mask regardless
// of the value.
func RenderValue(v any, secret bool) string {
	if secret {
		return "******"
	}
	cfg := spew.ConfigState{Indent: " ", SortKeys: true, DisableMethods: true, MaxDepth: 3}
	s := strings.TrimSpace(cfg.Sdump(v))
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > maxValueRender {
		s = s[:maxValueRender] + "..."
	}
	return s
}
