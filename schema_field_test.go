package utype_test

import (
	"strings"
	"testing"

	utype "github.com/HansdasC/utype"

	"github.com/HansdasC/utype/rule"
)

func variantRule(name, tag string, c any, extra ...string) *rule.Rule {
	fields := map[string]*rule.Rule{tag: rule.LiteralOf(c)}
	for _, e := range extra {
		fields[e] = rule.T[string]()
	}
	return &rule.Rule{Kind: rule.Object, Name: name, Fields: fields}
}

func TestNewSchemaField_Discriminator(t *testing.T) {
	in := rule.AnyOfRules(
		variantRule("Card", "kind", 1, "number"),
		variantRule("Account", "kind", 2, "iban"),
	)
	f := utype.New().Discriminator("kind").Optional()
	sf, err := utype.NewSchemaField("method", f, in, nil, 0, utype.Options{})
	if err != nil {
		t.Fatalf("valid union must bind: %v", err)
	}
	if sf.Name != "method" {
		t.Fatalf("expected canonical name method, got %q", sf.Name)
	}
}

func TestNewSchemaField_DiscriminatorMisuse(t *testing.T) {
	cases := []struct {
		name string
		in   *rule.Rule
	}{
		{"not a union", rule.T[int]()},
		{"duplicate constant", rule.AnyOfRules(
			variantRule("A", "kind", 1),
			variantRule("B", "kind", 1),
		)},
		{"member without tag field", rule.AnyOfRules(
			variantRule("A", "kind", 1),
			&rule.Rule{Kind: rule.Object, Name: "B", Fields: map[string]*rule.Rule{"other": rule.T[int]()}},
		)},
		{"tag without constant", rule.AnyOfRules(
			variantRule("A", "kind", 1),
			&rule.Rule{Kind: rule.Object, Name: "B", Fields: map[string]*rule.Rule{"kind": rule.T[int]()}},
		)},
	}
	for _, c := range cases {
		f := utype.New().Discriminator("kind").Optional()
		_, err := utype.NewSchemaField("method", f, c.in, nil, 0, utype.Options{})
		if err == nil {
			t.Fatalf("%s: expected a config error", c.name)
		}
		if _, ok := utype.AsConfigError(err); !ok {
			t.Fatalf("%s: expected ConfigError, got %T", c.name, err)
		}
	}
}

func TestSchemaField_BindCollisions(t *testing.T) {
	a, err := utype.NewSchemaField("a", utype.New().Optional(), rule.T[int](), nil, 0, utype.Options{})
	if err != nil {
		t.Fatalf("bind a: %v", err)
	}
	b, err := utype.NewSchemaField("b", utype.New().Optional().AliasFrom("a"), rule.T[int](), nil, 1, utype.Options{})
	if err != nil {
		t.Fatalf("bind b: %v", err)
	}
	all := map[string]*utype.SchemaField{"a": a, "b": b}
	if err := b.Bind(all, map[string]string{"a": "a", "b": "b"}); err == nil {
		t.Fatalf("alias capturing another field's canonical name must fail")
	}
}

func TestSchemaField_BindDependencies(t *testing.T) {
	pw, _ := utype.NewSchemaField("password", utype.New().Optional().DependsOn("confirm_pw"), rule.T[string](), nil, 0, utype.Options{})
	cf, _ := utype.NewSchemaField("ConfirmPw", utype.New().Optional().Alias("confirm_pw"), rule.T[string](), nil, 1, utype.Options{})
	all := map[string]*utype.SchemaField{"password": pw, "confirm_pw": cf}
	alias := map[string]string{"password": "password", "confirm_pw": "confirm_pw", "ConfirmPw": "confirm_pw"}
	if err := pw.Bind(all, alias); err != nil {
		t.Fatalf("dependency through alias must resolve: %v", err)
	}
	if deps := pw.Dependencies(); len(deps) != 1 || deps[0] != "confirm_pw" {
		t.Fatalf("expected canonical dependency, got %v", deps)
	}

	bad, _ := utype.NewSchemaField("x", utype.New().Optional().DependsOn("ghost"), rule.T[string](), nil, 0, utype.Options{})
	if err := bad.Bind(map[string]*utype.SchemaField{"x": bad}, map[string]string{"x": "x"}); err == nil {
		t.Fatalf("unresolved dependency must fail")
	}
}

type failingTransformer struct{ iss utype.Issues }

func (f failingTransformer) Transform(_ *utype.Runtime, _ any, _ *rule.Rule) (any, error) {
	return nil, f.iss
}

func TestSchemaField_ParseValuePolicies(t *testing.T) {
	fail := failingTransformer{iss: utype.Issues{{Code: utype.CodeInvalidType, Message: "bad"}}}

	// default policy escalates
	sf, _ := utype.NewSchemaField("n", utype.New().Optional(), rule.T[int](), nil, 0, utype.Options{})
	rt := utype.NewRuntime(utype.Options{}, utype.ParseOptions{Transformer: fail, WarnSink: func(utype.Issue) {}})
	_, kept, err := sf.ParseValue("x", rt)
	if kept || err != nil {
		t.Fatalf("throw policy collects without fail-fast, got kept=%v err=%v", kept, err)
	}
	if !rt.HasIssues() {
		t.Fatalf("throw policy must collect the issue")
	}

	// exclude drops optional fields with a warning
	sf, _ = utype.NewSchemaField("n", utype.New().Optional().OnError(utype.PolicyExclude), rule.T[int](), nil, 0, utype.Options{})
	rt = utype.NewRuntime(utype.Options{}, utype.ParseOptions{Transformer: fail, WarnSink: func(utype.Issue) {}})
	_, kept, err = sf.ParseValue("x", rt)
	if kept || err != nil || rt.HasIssues() {
		t.Fatalf("exclude must drop silently, got kept=%v err=%v issues=%v", kept, err, rt.HasIssues())
	}
	if len(rt.Warnings()) == 0 {
		t.Fatalf("exclude must warn")
	}

	// exclude still escalates for required fields
	sf, _ = utype.NewSchemaField("n", utype.New().Required().OnError(utype.PolicyExclude), rule.T[int](), nil, 0, utype.Options{})
	rt = utype.NewRuntime(utype.Options{}, utype.ParseOptions{Transformer: fail, WarnSink: func(utype.Issue) {}})
	_, _, _ = sf.ParseValue("x", rt)
	if !rt.HasIssues() {
		t.Fatalf("required field failure is always fatal")
	}

	// preserve keeps the raw value
	sf, _ = utype.NewSchemaField("n", utype.New().Optional().OnError(utype.PolicyPreserve), rule.T[int](), nil, 0, utype.Options{})
	rt = utype.NewRuntime(utype.Options{}, utype.ParseOptions{Transformer: fail, WarnSink: func(utype.Issue) {}})
	v, kept, err := sf.ParseValue("x", rt)
	if !kept || err != nil || v != "x" {
		t.Fatalf("preserve must keep the raw value, got %v kept=%v err=%v", v, kept, err)
	}
}

func TestSchemaField_IssuePathJoin(t *testing.T) {
	fail := failingTransformer{iss: utype.Issues{
		{Path: "inner", Code: utype.CodeInvalidType},
		{Path: "[2]", Code: utype.CodeParseError},
	}}
	sf, _ := utype.NewSchemaField("outer", utype.New().Optional(), rule.T[int](), nil, 0, utype.Options{})
	rt := utype.NewRuntime(utype.Options{}, utype.ParseOptions{Transformer: fail})
	_, _, _ = sf.ParseValue(3, rt)
	err := rt.Finish()
	iss, ok := utype.AsIssues(err)
	if !ok || len(iss) != 2 {
		t.Fatalf("expected 2 issues, got %v", err)
	}
	if iss[0].Path != "outer.inner" {
		t.Fatalf("expected dotted nested path, got %q", iss[0].Path)
	}
	if iss[1].Path != "outer[2]" {
		t.Fatalf("expected index path without dot, got %q", iss[1].Path)
	}
}

func TestSchemaField_SecretMasking(t *testing.T) {
	fail := failingTransformer{iss: utype.Issues{{Code: utype.CodeInvalidType}}}
	sf, _ := utype.NewSchemaField("token", utype.New().Optional().Secret(), rule.T[string](), nil, 0, utype.Options{})
	rt := utype.NewRuntime(utype.Options{}, utype.ParseOptions{Transformer: fail})
	_, _, _ = sf.ParseValue("hunter2", rt)
	iss, _ := utype.AsIssues(rt.Finish())
	if len(iss) != 1 || strings.Contains(iss[0].Value, "hunter2") {
		t.Fatalf("secret values must be masked, got %v", iss)
	}
}

func TestSchemaField_AbsenceIssue(t *testing.T) {
	sf, _ := utype.NewSchemaField("id", utype.New().Required(), rule.T[int](), nil, 0, utype.Options{})
	is := sf.AbsenceIssue()
	if is.Code != utype.CodeRequired || is.Path != "id" {
		t.Fatalf("unexpected absence issue: %+v", is)
	}
}
