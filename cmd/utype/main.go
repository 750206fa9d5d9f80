package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"

	"github.com/HansdasC/utype"
	"github.com/HansdasC/utype/codec"
	"github.com/HansdasC/utype/rule"
	"github.com/HansdasC/utype/schema"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	switch os.Args[1] {
	case "validate":
		validateCmd(os.Args[2:])
	case "convert":
		convertCmd(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "utype CLI\n\nUsage:\n  utype validate -schema schema.yaml [-format json|yaml|msgpack] [-o json|yaml|msgpack] input...\n  utype convert [-format json|yaml|msgpack] -o json|yaml|msgpack input")
}

func fatalf(format string, args ...any) {
	color.New(color.FgRed).Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func validateCmd(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	var schemaPath, format, out string
	fs.StringVar(&schemaPath, "schema", "", "schema description file (yaml)")
	fs.StringVar(&format, "format", "", "input format, inferred from extension when empty")
	fs.StringVar(&out, "o", "", "re-encode validated output in this format")
	_ = fs.Parse(args)
	if schemaPath == "" || fs.NArg() == 0 {
		fs.Usage()
		os.Exit(2)
	}
	dyn, err := loadSchema(schemaPath)
	if err != nil {
		fatalf("schema: %v", err)
	}
	failed := false
	for _, path := range fs.Args() {
		if err := validateFile(dyn, path, format, out); err != nil {
			failed = true
			color.New(color.FgRed).Fprintf(os.Stderr, "%s: FAIL\n", path)
			printIssues(err)
		} else {
			color.New(color.FgGreen).Fprintf(os.Stderr, "%s: OK\n", path)
		}
	}
	if failed {
		os.Exit(1)
	}
}

func convertCmd(args []string) {
	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	var format, out string
	fs.StringVar(&format, "format", "", "input format, inferred from extension when empty")
	fs.StringVar(&out, "o", "json", "output format")
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		fs.Usage()
		os.Exit(2)
	}
	path := fs.Arg(0)
	v, err := decodeFile(path, format)
	if err != nil {
		fatalf("%s: %v", path, err)
	}
	data, err := codec.Encode(codec.Format(out), v)
	if err != nil {
		fatalf("%s: %v", path, err)
	}
	os.Stdout.Write(data)
}

func validateFile(dyn *schema.Dynamic, path, format, out string) error {
	v, err := decodeFile(path, format)
	if err != nil {
		return err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return fmt.Errorf("expected a mapping, got %T", v)
	}
	vals, err := dyn.Parse(m)
	if err != nil {
		return err
	}
	if out != "" {
		data, err := codec.Encode(codec.Format(out), vals)
		if err != nil {
			return err
		}
		os.Stdout.Write(data)
		fmt.Println()
	}
	return nil
}

func decodeFile(path, format string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f := codec.Format(format)
	if format == "" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			f = codec.YAML
		case ".mp", ".msgpack":
			f = codec.Msgpack
		default:
			f = codec.JSON
		}
	}
	return codec.Decode(f, data)
}

func printIssues(err error) {
	issues, ok := utype.AsIssues(err)
	if !ok {
		fmt.Fprintf(os.Stderr, "  %v\n", err)
		return
	}
	for _, is := range issues {
		path := is.Path
		if path == "" {
			path = "<root>"
		}
		fmt.Fprintf(os.Stderr, "  %s %s: %s\n", color.YellowString(path), is.CodeMessage(), is.Message)
		if is.Value != "" {
			fmt.Fprintf(os.Stderr, "    got: %s\n", is.Value)
		}
	}
}

// schemaDoc is the on-disk schema description.
type schemaDoc struct {
	Name    string           `yaml:"name"`
	Options map[string]any   `yaml:"options"`
	Fields  []map[string]any `yaml:"fields"`
}

func loadSchema(path string) (*schema.Dynamic, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	raw, err := codec.DecodeYAMLMap(data)
	if err != nil {
		return nil, err
	}
	doc := schemaDoc{Name: str(raw["name"], "schema")}
	if o, ok := raw["options"].(map[string]any); ok {
		doc.Options = o
	}
	if fsRaw, ok := raw["fields"].([]any); ok {
		for _, e := range fsRaw {
			if m, ok := e.(map[string]any); ok {
				doc.Fields = append(doc.Fields, m)
			}
		}
	}
	opts, err := parseOptions(doc.Options)
	if err != nil {
		return nil, err
	}
	fields := make([]schema.DynamicField, 0, len(doc.Fields))
	for _, fm := range doc.Fields {
		df, err := parseField(fm)
		if err != nil {
			return nil, err
		}
		fields = append(fields, df)
	}
	return schema.NewDynamic(doc.Name, fields, opts)
}

func parseOptions(m map[string]any) (utype.Options, error) {
	var o utype.Options
	for k, v := range m {
		switch k {
		case "mode":
			o.Mode = utype.Mode(str(v, ""))
		case "case_insensitive":
			b := v == true
			o.CaseInsensitive = &b
		case "addition":
			o.Addition = utype.Addition(str(v, ""))
		case "on_error":
			o.ErrPolicy = utype.Policy(str(v, ""))
		case "max_properties":
			n := intOf(v)
			o.MaxProperties = &n
		case "min_properties":
			n := intOf(v)
			o.MinProperties = &n
		default:
			return o, fmt.Errorf("unknown option %q", k)
		}
	}
	return o, o.Check()
}

func parseField(m map[string]any) (schema.DynamicField, error) {
	name := str(m["name"], "")
	if name == "" {
		return schema.DynamicField{}, fmt.Errorf("field without a name")
	}
	f := utype.New()
	r, err := parseRule(m)
	if err != nil {
		return schema.DynamicField{}, fmt.Errorf("field %q: %w", name, err)
	}
	for k, v := range m {
		switch k {
		case "name", "type", "elem", "key", "literal":
		case "alias":
			f.Alias(str(v, ""))
		case "alias_from":
			f.AliasFrom(strSlice(v)...)
		case "required":
			if v == true {
				f.Required()
			} else if s, ok := v.(string); ok {
				f.RequiredIn(utype.Mode(s))
			}
		case "optional":
			f.Optional()
		case "default":
			f.Default(v)
		case "mode":
			f.ModeOf(utype.Mode(str(v, "")))
		case "secret":
			if v == true {
				f.Secret()
			}
		case "immutable":
			if v == true {
				f.Immutable()
			}
		case "deprecated":
			f.Deprecated(str(v, ""))
		case "depends":
			f.DependsOn(strSlice(v)...)
		case "on_error":
			f.OnError(utype.Policy(str(v, "")))
		case "description":
			f.Description(str(v, ""))
		case "gt", "ge", "lt", "le", "multiple_of", "min_length", "max_length", "length", "regex", "const", "enum":
			f.Constrain(k, v)
		default:
			return schema.DynamicField{}, fmt.Errorf("field %q: unknown option %q", name, k)
		}
	}
	return schema.DynamicField{Name: name, Field: f, Rule: r}, nil
}

func parseRule(m map[string]any) (*rule.Rule, error) {
	if lit, ok := m["literal"]; ok {
		return rule.LiteralOf(lit), nil
	}
	t := str(m["type"], "any")
	switch t {
	case "any":
		return rule.Of(rule.Any), nil
	case "bool":
		return rule.Of(rule.Bool), nil
	case "int":
		return rule.Of(rule.Int), nil
	case "uint":
		return rule.Of(rule.Uint), nil
	case "float", "number":
		return rule.Of(rule.Float), nil
	case "string":
		return rule.Of(rule.String), nil
	case "bytes":
		return rule.Of(rule.Bytes), nil
	case "time":
		return rule.Of(rule.Time), nil
	case "duration":
		return rule.Of(rule.Duration), nil
	case "list":
		elem, err := nestedRule(m["elem"])
		if err != nil {
			return nil, err
		}
		return rule.ListOf(elem), nil
	case "map":
		elem, err := nestedRule(m["elem"])
		if err != nil {
			return nil, err
		}
		key, err := nestedRule(m["key"])
		if err != nil {
			return nil, err
		}
		return rule.MapOf(key, elem), nil
	default:
		return nil, fmt.Errorf("unknown type %q", t)
	}
}

func nestedRule(v any) (*rule.Rule, error) {
	switch x := v.(type) {
	case nil:
		return rule.Of(rule.Any), nil
	case string:
		return parseRule(map[string]any{"type": x})
	case map[string]any:
		return parseRule(x)
	default:
		return nil, fmt.Errorf("cannot read nested type from %T", v)
	}
}

func str(v any, def string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return def
}

func strSlice(v any) []string {
	switch x := v.(type) {
	case string:
		return []string{x}
	case []any:
		out := make([]string, 0, len(x))
		for _, e := range x {
			out = append(out, fmt.Sprint(e))
		}
		return out
	default:
		return nil
	}
}

func intOf(v any) int {
	switch x := v.(type) {
	case int:
		return x
	case int64:
		return int(x)
	case float64:
		return int(x)
	default:
		return 0
	}
}
