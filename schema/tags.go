package schema

import (
	"strconv"
	"strings"

	"github.com/HansdasC/utype"
)

// parseTag turns a `utype:"..."` struct tag into a Field spec. The first
// segment is the alias ("-" excludes the field); the rest are options:
//
//	required, optional, secret, immutable, readonly, writeonly,
//	mode=rw, alias_from=a|b, depends=a|b, default=v, on_error=exclude,
//	deprecated, deprecated=replacement, discriminator=tag, literal=v,
//	gt=, ge=, lt=, le=, min_length=, max_length=, regex=
//
// Scalar option values are decoded as bool, int or float when they look like
// one, else kept as strings.
func parseTag(tag string) (f *utype.Field, alias string, skip bool, literal any, hasLiteral bool, err error) {
	f = utype.New()
	if tag == "" {
		return f, "", false, nil, false, nil
	}
	parts := strings.Split(tag, ",")
	if parts[0] == "-" {
		return nil, "", true, nil, false, nil
	}
	if parts[0] != "" {
		alias = parts[0]
		f.Alias(parts[0])
	}
	for _, opt := range parts[1:] {
		key, val, hasVal := strings.Cut(opt, "=")
		switch key {
		case "":
		case "required":
			if hasVal {
				f.RequiredIn(utype.Mode(val))
			} else {
				f.Required()
			}
		case "optional":
			f.Optional()
		case "secret":
			f.Secret()
		case "immutable":
			f.Immutable()
		case "readonly":
			f.Readonly()
		case "writeonly":
			f.Writeonly()
		case "mode":
			f.ModeOf(utype.Mode(val))
		case "no_input":
			if hasVal {
				f.NoInputIn(utype.Mode(val))
			} else {
				f.NoInput()
			}
		case "no_output":
			if hasVal {
				f.NoOutputIn(utype.Mode(val))
			} else {
				f.NoOutput()
			}
		case "alias_from":
			f.AliasFrom(strings.Split(val, "|")...)
		case "depends":
			f.DependsOn(strings.Split(val, "|")...)
		case "default":
			f.Default(scalarValue(val))
		case "on_error":
			f.OnError(utype.Policy(val))
		case "deprecated":
			f.Deprecated(val)
		case "discriminator":
			f.Discriminator(val)
		case "literal":
			literal = scalarValue(val)
			hasLiteral = true
		case "gt", "ge", "lt", "le", "multiple_of", "min_length", "max_length", "length", "regex", "const":
			f.Constrain(key, scalarValue(val))
		default:
			return nil, "", false, nil, false, utype.Config("schema", "", "unknown tag option %q", key)
		}
	}
	return f, alias, false, literal, hasLiteral, nil
}

func scalarValue(s string) any {
	if s == "true" || s == "false" {
		return s == "true"
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return int(n)
	}
	if fl, err := strconv.ParseFloat(s, 64); err == nil {
		return fl
	}
	return s
}
