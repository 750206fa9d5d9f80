package utype

import (
	"strings"
	"unicode"
)

// AliasFunc derives an alias from an attribute name. Returning "" means the
// generator has no opinion and the original name stands.
type AliasFunc func(name string) string

func isASCIIAlnum(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// SnakeCase converts a name to snake_case.
func SnakeCase(name string) string {
	if name == "" {
		return ""
	}
	if strings.ContainsRune(name, '_') {
		return strings.ToLower(name)
	}
	if strings.ContainsRune(name, '-') {
		return strings.ToLower(strings.ReplaceAll(name, "-", "_"))
	}
	if !isASCIIAlnum(name) {
		return name
	}
	if name == strings.ToLower(name) {
		return name
	}
	if name == strings.ToUpper(name) {
		return strings.ToLower(name)
	}
	b := &strings.Builder{}
	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

// PascalCase converts a name to PascalCase.
func PascalCase(name string) string {
	if name == "" {
		return ""
	}
	sep := ""
	if strings.ContainsRune(name, '_') {
		sep = "_"
	} else if strings.ContainsRune(name, '-') {
		sep = "-"
	}
	if sep != "" {
		parts := strings.Split(name, sep)
		b := &strings.Builder{}
		for _, p := range parts {
			b.WriteString(capitalize(p))
		}
		return b.String()
	}
	if !isASCIIAlnum(name) {
		return name
	}
	if name == strings.ToLower(name) || name == strings.ToUpper(name) {
		return capitalize(strings.ToLower(name))
	}
	r := []rune(name)
	if unicode.IsLower(r[0]) {
		r[0] = unicode.ToUpper(r[0])
	}
	return string(r)
}

// CamelCase converts a name to camelCase.
func CamelCase(name string) string {
	p := PascalCase(name)
	if p == "" {
		return ""
	}
	r := []rune(p)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}

// KebabCase converts a name to kebab-case.
func KebabCase(name string) string {
	return strings.ReplaceAll(SnakeCase(name), "_", "-")
}

// CapSnakeCase converts a name to CAP_SNAKE_CASE.
func CapSnakeCase(name string) string {
	return strings.ToUpper(SnakeCase(name))
}

// CapKebabCase converts a name to CAP-KEBAB-CASE.
func CapKebabCase(name string) string {
	return strings.ReplaceAll(CapSnakeCase(name), "_", "-")
}

func capitalize(s string) string {
	if s == "" {
		return ""
	}
	r := []rune(strings.ToLower(s))
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

var caseStyles = map[string]AliasFunc{
	"camel":     CamelCase,
	"pascal":    PascalCase,
	"snake":     SnakeCase,
	"kebab":     KebabCase,
	"cap_snake": CapSnakeCase,
	"cap_kebab": CapKebabCase,
}

// GuessStyle resolves a case-style description (a style name like "camelCase"
// or an example like "SOME-NAME") to the matching AliasFunc. It returns nil
// when no style can be inferred.
func GuessStyle(style string) AliasFunc {
	if style == "" {
		return nil
	}
	low := strings.ToLower(style)
	switch {
	case strings.Contains(low, "camel"):
		return CamelCase
	case strings.Contains(low, "snake"):
		if strings.Contains(low, "cap") {
			return CapSnakeCase
		}
		return SnakeCase
	case strings.Contains(low, "kebab"):
		if strings.Contains(low, "cap") {
			return CapKebabCase
		}
		return KebabCase
	case strings.Contains(low, "pascal"):
		return PascalCase
	}
	// guess from the shape of the example itself
	alnum := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return -1
	}, style)
	if alnum == "" {
		return nil
	}
	upper := alnum == strings.ToUpper(alnum) && alnum != strings.ToLower(alnum)
	switch {
	case strings.ContainsRune(style, '_'):
		if upper {
			return CapSnakeCase
		}
		return SnakeCase
	case strings.ContainsRune(style, '-'):
		if upper {
			return CapKebabCase
		}
		return KebabCase
	case upper:
		return CapSnakeCase
	case alnum == strings.ToLower(alnum):
		return SnakeCase
	case unicode.IsLower([]rune(alnum)[0]):
		return CamelCase
	default:
		return PascalCase
	}
}

// StyleByName returns the AliasFunc registered under an exact style key
// (camel, pascal, snake, kebab, cap_snake, cap_kebab).
func StyleByName(name string) (AliasFunc, bool) {
	f, ok := caseStyles[strings.ToLower(name)]
	return f, ok
}

// GenerateAliases produces the distinct non-empty aliases of a name across
// the given generators, excluding the name itself. With no generators every
// known case style is applied.
func GenerateAliases(name string, gens ...AliasFunc) []string {
	if len(gens) == 0 {
		gens = []AliasFunc{CamelCase, PascalCase, SnakeCase, KebabCase, CapSnakeCase, CapKebabCase}
	}
	seen := map[string]struct{}{}
	out := make([]string, 0, len(gens))
	for _, g := range gens {
		if g == nil {
			continue
		}
		a := g(name)
		if a == "" || a == name {
			continue
		}
		if _, dup := seen[a]; dup {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}
