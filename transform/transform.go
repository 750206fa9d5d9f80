// Package transform implements the default coercer: it turns loosely typed
// input (decoded JSON/YAML, call arguments) into the shape a rule demands,
// then enforces the rule's constraints. Importing the package registers the
// coercer as the runtime default.
package transform

import (
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"fortio.org/safecast"
	"github.com/goccy/go-json"

	"github.com/HansdasC/utype"
	"github.com/HansdasC/utype/rule"
)

// Coercer is the default utype.Transformer.
type Coercer struct{}

var defaultCoercer = &Coercer{}

// Default returns the shared default coercer.
func Default() *Coercer { return defaultCoercer }

func init() {
	utype.RegisterTransformer("default", defaultCoercer)
}

// Transform coerces v into the shape of r and applies r's constraints.
func (c *Coercer) Transform(rt *utype.Runtime, v any, r *rule.Rule) (any, error) {
	if r == nil {
		return v, nil
	}
	res := r.Resolve()
	out, err := c.coerce(rt, v, res)
	if err != nil {
		return nil, err
	}
	if len(res.Constraints) > 0 {
		if err := checkConstraints(out, res.Constraints); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (c *Coercer) coerce(rt *utype.Runtime, v any, res *rule.Rule) (any, error) {
	switch res.Kind {
	case rule.Any:
		return v, nil
	case rule.Literal:
		return c.literal(rt, v, res)
	case rule.Bool:
		b, err := toBool(v)
		return retype(res.GoType, b, err)
	case rule.Int:
		return intValue(res.GoType, v)
	case rule.Uint:
		return uintValue(res.GoType, v)
	case rule.Float:
		return floatValue(res.GoType, v)
	case rule.String:
		s, err := toString(v)
		return retype(res.GoType, s, err)
	case rule.Bytes:
		return toBytes(v)
	case rule.Time:
		return toTime(v)
	case rule.Duration:
		return toDuration(v)
	case rule.List:
		return c.list(rt, v, res)
	case rule.Map:
		return c.mapValue(rt, v, res)
	case rule.Object:
		return c.object(rt, v, res)
	case rule.AnyOf:
		return c.anyOf(rt, v, res)
	case rule.OneOf:
		return c.oneOf(rt, v, res)
	case rule.Iterator, rule.Generator, rule.AsyncIterator, rule.AsyncGenerator:
		// generator values are coerced per item by the call adapter
		return v, nil
	default:
		return nil, fmt.Errorf("cannot coerce into %s", res)
	}
}

func (c *Coercer) literal(rt *utype.Runtime, v any, res *rule.Rule) (any, error) {
	if res.Const == nil {
		if v == nil {
			return nil, nil
		}
		return nil, fmt.Errorf("expected null, got %v", v)
	}
	got, err := c.Transform(rt, v, rule.OfType(reflect.TypeOf(res.Const)))
	if err != nil {
		return nil, fmt.Errorf("expected constant %v: %w", res.Const, err)
	}
	if !reflect.DeepEqual(got, res.Const) {
		return nil, fmt.Errorf("expected constant %v, got %v", res.Const, got)
	}
	return got, nil
}

func (c *Coercer) list(rt *utype.Runtime, v any, res *rule.Rule) (any, error) {
	rv := reflect.ValueOf(v)
	if v == nil || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, fmt.Errorf("expected a list, got %T", v)
	}
	n := rv.Len()
	var issues utype.Issues
	typed := res.GoType != nil && res.GoType.Kind() == reflect.Slice
	var out reflect.Value
	if typed {
		out = reflect.MakeSlice(res.GoType, 0, n)
	}
	plain := make([]any, 0, n)
	for i := 0; i < n; i++ {
		ev, err := c.Transform(rt, rv.Index(i).Interface(), res.Elem)
		if err != nil {
			issues = append(issues, elemIssues(fmt.Sprintf("[%d]", i), rv.Index(i).Interface(), res.Elem, err)...)
			continue
		}
		if typed {
			sv, err := assign(ev, res.GoType.Elem())
			if err != nil {
				issues = append(issues, elemIssues(fmt.Sprintf("[%d]", i), ev, res.Elem, err)...)
				continue
			}
			out = reflect.Append(out, sv)
		} else {
			plain = append(plain, ev)
		}
	}
	if len(issues) > 0 {
		return nil, issues
	}
	if typed {
		return out.Interface(), nil
	}
	return plain, nil
}

func (c *Coercer) mapValue(rt *utype.Runtime, v any, res *rule.Rule) (any, error) {
	rv := reflect.ValueOf(v)
	if v == nil || rv.Kind() != reflect.Map {
		return nil, fmt.Errorf("expected a map, got %T", v)
	}
	var issues utype.Issues
	typed := res.GoType != nil && res.GoType.Kind() == reflect.Map
	var out reflect.Value
	if typed {
		out = reflect.MakeMapWithSize(res.GoType, rv.Len())
	}
	plain := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		rawKey := iter.Key().Interface()
		kv, err := c.Transform(rt, rawKey, res.Key)
		if err != nil {
			issues = append(issues, elemIssues(fmt.Sprintf("[%v]", rawKey), rawKey, res.Key, err)...)
			continue
		}
		vv, err := c.Transform(rt, iter.Value().Interface(), res.Elem)
		if err != nil {
			issues = append(issues, elemIssues(fmt.Sprintf("[%v]", rawKey), iter.Value().Interface(), res.Elem, err)...)
			continue
		}
		if typed {
			kk, err := assign(kv, res.GoType.Key())
			if err == nil {
				var vvv reflect.Value
				vvv, err = assign(vv, res.GoType.Elem())
				if err == nil {
					out.SetMapIndex(kk, vvv)
					continue
				}
			}
			issues = append(issues, elemIssues(fmt.Sprintf("[%v]", rawKey), vv, res.Elem, err)...)
		} else {
			plain[fmt.Sprint(kv)] = vv
		}
	}
	if len(issues) > 0 {
		return nil, issues
	}
	if typed {
		return out.Interface(), nil
	}
	return plain, nil
}

func (c *Coercer) object(rt *utype.Runtime, v any, res *rule.Rule) (any, error) {
	if vp, ok := res.Schema.(utype.ValueParser); ok && vp != nil {
		return vp.ParseAny(rt, v)
	}
	if res.GoType != nil && v != nil {
		vt := reflect.TypeOf(v)
		if vt == res.GoType || (vt.Kind() == reflect.Ptr && vt.Elem() == res.GoType) {
			return v, nil
		}
	}
	return nil, fmt.Errorf("no schema bound for object %s", res)
}

func (c *Coercer) anyOf(rt *utype.Runtime, v any, res *rule.Rule) (any, error) {
	var issues utype.Issues
	for _, m := range res.Args {
		out, err := c.Transform(rt, v, m)
		if err == nil {
			return out, nil
		}
		issues = append(issues, elemIssues("", v, m, err)...)
	}
	return nil, append(utype.Issues{{
		Code:    utype.CodeInvalidType,
		Message: fmt.Sprintf("value matches no member of %s", res),
		Type:    res.String(),
	}}, issues...)
}

func (c *Coercer) oneOf(rt *utype.Runtime, v any, res *rule.Rule) (any, error) {
	var out any
	matched := 0
	var issues utype.Issues
	for _, m := range res.Args {
		got, err := c.Transform(rt, v, m)
		if err != nil {
			issues = append(issues, elemIssues("", v, m, err)...)
			continue
		}
		matched++
		if matched == 1 {
			out = got
		}
	}
	switch matched {
	case 1:
		return out, nil
	case 0:
		return nil, append(utype.Issues{{
			Code:    utype.CodeInvalidType,
			Message: fmt.Sprintf("value matches no member of %s", res),
			Type:    res.String(),
		}}, issues...)
	default:
		return nil, utype.Issues{{
			Code:    utype.CodeInvalidType,
			Message: fmt.Sprintf("value matches %d members of %s, expected exactly one", matched, res),
			Type:    res.String(),
		}}
	}
}

func elemIssues(path string, raw any, r *rule.Rule, err error) utype.Issues {
	if nested, ok := utype.AsIssues(err); ok {
		out := make(utype.Issues, len(nested))
		for i, is := range nested {
			if path != "" {
				if is.Path == "" {
					is.Path = path
				} else if is.Path[0] == '[' {
					is.Path = path + is.Path
				} else {
					is.Path = path + "." + is.Path
				}
			}
			out[i] = is
		}
		return out
	}
	return utype.Issues{{
		Path:    path,
		Code:    utype.CodeParseError,
		Message: err.Error(),
		Value:   utype.RenderValue(raw, false),
		Type:    r.String(),
		Cause:   err,
	}}
}

// assign fits a coerced value into a concrete element type.
func assign(v any, t reflect.Type) (reflect.Value, error) {
	if v == nil {
		return reflect.Zero(t), nil
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		return rv, nil
	}
	if rv.Type().ConvertibleTo(t) {
		return rv.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot use %T as %s", v, t)
}

// retype converts a coerced base value to a named type when the rule targets
// one, such as a string-kinded enum type.
func retype[T any](t reflect.Type, v T, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	if t == nil || t == reflect.TypeOf(v) {
		return v, nil
	}
	rv := reflect.ValueOf(v)
	if !rv.Type().ConvertibleTo(t) {
		return nil, fmt.Errorf("cannot use %T as %s", v, t)
	}
	return rv.Convert(t).Interface(), nil
}

func toBool(v any) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true", "1":
			return true, nil
		case "false", "0":
			return false, nil
		}
		return false, fmt.Errorf("%q is not a bool", x)
	case json.Number:
		n, err := x.Int64()
		if err == nil && (n == 0 || n == 1) {
			return n == 1, nil
		}
	}
	if n, err := toInt64(v); err == nil && (n == 0 || n == 1) {
		return n == 1, nil
	}
	return false, fmt.Errorf("%v (%T) is not a bool", v, v)
}

func toInt64(v any) (int64, error) {
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case uint, uint8, uint16, uint32, uint64:
		return safecast.Conv[int64](reflect.ValueOf(x).Uint())
	case float32:
		return floatToInt64(float64(x))
	case float64:
		return floatToInt64(x)
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n, nil
		}
		f, err := x.Float64()
		if err != nil {
			return 0, fmt.Errorf("%q is not an integer", x.String())
		}
		return floatToInt64(f)
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64); err == nil {
			return n, nil
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not an integer", x)
		}
		return floatToInt64(f)
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("%v (%T) is not an integer", v, v)
	}
}

func floatToInt64(f float64) (int64, error) {
	if math.Trunc(f) != f || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("%v is not an integer", f)
	}
	return safecast.Convert[int64](f)
}

func toFloat64(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int, int8, int16, int32, int64:
		return float64(reflect.ValueOf(x).Int()), nil
	case uint, uint8, uint16, uint32, uint64:
		return float64(reflect.ValueOf(x).Uint()), nil
	case json.Number:
		return x.Float64()
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not a number", x)
		}
		return f, nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("%v (%T) is not a number", v, v)
	}
}

func intValue(t reflect.Type, v any) (any, error) {
	n, err := toInt64(v)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return safecast.Conv[int](n)
	}
	var out any
	switch t.Kind() {
	case reflect.Int:
		out, err = safecast.Conv[int](n)
	case reflect.Int8:
		out, err = safecast.Conv[int8](n)
	case reflect.Int16:
		out, err = safecast.Conv[int16](n)
	case reflect.Int32:
		out, err = safecast.Conv[int32](n)
	default:
		out = n
	}
	if err != nil {
		return nil, err
	}
	return retypeNumeric(t, out)
}

func uintValue(t reflect.Type, v any) (any, error) {
	n, err := toInt64(v)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return safecast.Conv[uint](n)
	}
	var out any
	switch t.Kind() {
	case reflect.Uint:
		out, err = safecast.Conv[uint](n)
	case reflect.Uint8:
		out, err = safecast.Conv[uint8](n)
	case reflect.Uint16:
		out, err = safecast.Conv[uint16](n)
	case reflect.Uint32:
		out, err = safecast.Conv[uint32](n)
	default:
		out, err = safecast.Conv[uint64](n)
	}
	if err != nil {
		return nil, err
	}
	return retypeNumeric(t, out)
}

func floatValue(t reflect.Type, v any) (any, error) {
	f, err := toFloat64(v)
	if err != nil {
		return nil, err
	}
	if t == nil || t.Kind() == reflect.Float64 {
		return retypeNumeric(t, f)
	}
	out, err := safecast.Convert[float32](f)
	if err != nil {
		return nil, err
	}
	return retypeNumeric(t, out)
}

func retypeNumeric(t reflect.Type, v any) (any, error) {
	if t == nil || reflect.TypeOf(v) == t {
		return v, nil
	}
	return reflect.ValueOf(v).Convert(t).Interface(), nil
}

func toString(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	case json.Number:
		return x.String(), nil
	case bool:
		return strconv.FormatBool(x), nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(x), nil
	case float32, float64:
		return fmt.Sprint(x), nil
	case fmt.Stringer:
		return x.String(), nil
	default:
		rv := reflect.ValueOf(v)
		if rv.IsValid() && rv.Kind() == reflect.String {
			return rv.String(), nil
		}
		return "", fmt.Errorf("%v (%T) is not a string", v, v)
	}
}

func toBytes(v any) (any, error) {
	switch x := v.(type) {
	case []byte:
		return x, nil
	case string:
		return []byte(x), nil
	default:
		return nil, fmt.Errorf("%v (%T) is not bytes", v, v)
	}
}

func toTime(v any) (any, error) {
	switch x := v.(type) {
	case time.Time:
		return x, nil
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, x); err == nil {
				return t, nil
			}
		}
		return nil, fmt.Errorf("%q is not a timestamp", x)
	default:
		if n, err := toInt64(v); err == nil {
			return time.Unix(n, 0).UTC(), nil
		}
		return nil, fmt.Errorf("%v (%T) is not a timestamp", v, v)
	}
}

func toDuration(v any) (any, error) {
	switch x := v.(type) {
	case time.Duration:
		return x, nil
	case string:
		d, err := time.ParseDuration(x)
		if err != nil {
			return nil, fmt.Errorf("%q is not a duration", x)
		}
		return d, nil
	default:
		if n, err := toInt64(v); err == nil {
			return time.Duration(n), nil
		}
		return nil, fmt.Errorf("%v (%T) is not a duration", v, v)
	}
}

var regexCache = utype.NewRegistry[string, *regexp.Regexp]()

func compiledRegex(pattern string) (*regexp.Regexp, error) {
	return regexCache.Resolve(pattern, func() (*regexp.Regexp, error) {
		return regexp.Compile(pattern)
	})
}

func constraintIssue(format string, args ...any) utype.Issues {
	return utype.Issues{{
		Code:    utype.CodeConstraint,
		Message: fmt.Sprintf(format, args...),
	}}
}

func lengthOf(v any) (int, bool) {
	switch x := v.(type) {
	case string:
		return len(x), true
	case []byte:
		return len(x), true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len(), true
	}
	return 0, false
}

func checkConstraints(v any, cs map[string]any) error {
	for name, arg := range cs {
		switch name {
		case "const":
			if !reflect.DeepEqual(v, arg) {
				return constraintIssue("must equal %v, got %v", arg, v)
			}
		case "enum":
			av := reflect.ValueOf(arg)
			if av.Kind() != reflect.Slice {
				return constraintIssue("enum constraint must be a list, got %T", arg)
			}
			found := false
			for i := 0; i < av.Len(); i++ {
				if reflect.DeepEqual(v, av.Index(i).Interface()) {
					found = true
					break
				}
			}
			if !found {
				return constraintIssue("%v is not one of the permitted values", v)
			}
		case "gt", "ge", "lt", "le":
			fv, err := toFloat64(v)
			if err != nil {
				return constraintIssue("constraint %q needs a numeric value, got %T", name, v)
			}
			bound, err := toFloat64(arg)
			if err != nil {
				return constraintIssue("constraint %q needs a numeric bound, got %T", name, arg)
			}
			ok := true
			switch name {
			case "gt":
				ok = fv > bound
			case "ge":
				ok = fv >= bound
			case "lt":
				ok = fv < bound
			case "le":
				ok = fv <= bound
			}
			if !ok {
				return constraintIssue("%v violates %s %v", v, name, bound)
			}
		case "multiple_of":
			fv, err := toFloat64(v)
			if err != nil {
				return constraintIssue("constraint %q needs a numeric value, got %T", name, v)
			}
			base, err := toFloat64(arg)
			if err != nil || base == 0 {
				return constraintIssue("constraint %q needs a non-zero numeric base", name)
			}
			if math.Mod(fv, base) != 0 {
				return constraintIssue("%v is not a multiple of %v", v, base)
			}
		case "length", "min_length", "max_length":
			n, ok := lengthOf(v)
			if !ok {
				return constraintIssue("constraint %q needs a sized value, got %T", name, v)
			}
			bound, err := toInt64(arg)
			if err != nil {
				return constraintIssue("constraint %q needs an integer bound", name)
			}
			switch name {
			case "length":
				if int64(n) != bound {
					return constraintIssue("length must be %d, got %d", bound, n)
				}
			case "min_length":
				if int64(n) < bound {
					return constraintIssue("length must be at least %d, got %d", bound, n)
				}
			case "max_length":
				if int64(n) > bound {
					return constraintIssue("length must be at most %d, got %d", bound, n)
				}
			}
		case "regex":
			s, err := toString(v)
			if err != nil {
				return constraintIssue("constraint %q needs a string value, got %T", name, v)
			}
			pattern, ok := arg.(string)
			if !ok {
				return constraintIssue("constraint %q needs a string pattern", name)
			}
			re, err := compiledRegex(pattern)
			if err != nil {
				return constraintIssue("invalid pattern %q: %v", pattern, err)
			}
			if !re.MatchString(s) {
				return constraintIssue("%q does not match %q", s, pattern)
			}
		default:
			return constraintIssue("unknown constraint %q", name)
		}
	}
	return nil
}
