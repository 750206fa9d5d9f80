package utype_test

import (
	"testing"

	utype "github.com/HansdasC/utype"
)

func TestField_CheckConflicts(t *testing.T) {
	cases := []struct {
		name string
		f    *utype.Field
	}{
		{"readonly+writeonly", utype.New().Readonly().Writeonly()},
		{"mode+readonly", utype.New().ModeOf(utype.ModeWrite).Readonly()},
		{"no_input mode outside field mode", utype.New().Readonly().NoInputIn(utype.ModeWrite)},
		{"no_output mode outside field mode", utype.New().ModeOf(utype.ModeWrite).NoOutputIn(utype.ModeRead)},
		{"default+required", utype.New().Default(1).Required()},
		{"required mode outside field mode", utype.New().Readonly().RequiredIn(utype.ModeWrite)},
	}
	for _, c := range cases {
		err := c.f.Check()
		if err == nil {
			t.Fatalf("%s: expected a config error", c.name)
		}
		if _, ok := utype.AsConfigError(err); !ok {
			t.Fatalf("%s: expected ConfigError, got %T", c.name, err)
		}
	}
	if err := utype.New().Readonly().RequiredIn(utype.ModeRead).Check(); err != nil {
		t.Fatalf("consistent field must pass: %v", err)
	}
}

func TestField_ResolveAlias(t *testing.T) {
	f := utype.New().Alias("seg_key")
	if got := f.ResolveAlias("SegKey", utype.CamelCase); got != "seg_key" {
		t.Fatalf("explicit alias must win, got %q", got)
	}
	f = utype.New().AliasGenerator(utype.SnakeCase)
	if got := f.ResolveAlias("SegKey", utype.CamelCase); got != "seg_key" {
		t.Fatalf("field generator must beat parser generator, got %q", got)
	}
	f = utype.New()
	if got := f.ResolveAlias("SegKey", utype.CamelCase); got != "segKey" {
		t.Fatalf("parser generator applies, got %q", got)
	}
	if got := f.ResolveAlias("SegKey", nil); got != "SegKey" {
		t.Fatalf("name stands without generators, got %q", got)
	}
}

func TestField_ResolveAliasSet(t *testing.T) {
	f := utype.New().Alias("seg_key").AliasFrom("legacy").AliasFromGenerators(utype.CapSnakeCase)
	got := f.ResolveAliasSet("SegKey", "seg_key", false, utype.CamelCase)
	want := []string{"seg_key", "SegKey", "legacy", "SEG_KEY", "segKey"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}

	ci := f.ResolveAliasSet("SegKey", "seg_key", true, utype.CamelCase)
	for _, a := range ci {
		if a != lowerOf(a) {
			t.Fatalf("case-insensitive set must be lowered, got %v", ci)
		}
	}
}

func lowerOf(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + 'a' - 'A'
		}
	}
	return string(b)
}

func TestField_IsRequired(t *testing.T) {
	if !utype.New().IsRequired("") {
		t.Fatalf("unset requiredness defaults to required")
	}
	if utype.New().Optional().IsRequired("") {
		t.Fatalf("optional field is not required")
	}
	if utype.New().Default(3).IsRequired("") {
		t.Fatalf("a default implies optional")
	}
	f := utype.New().RequiredIn(utype.ModeRead)
	if f.IsRequired(utype.ModeWrite) {
		t.Fatalf("mode-scoped requiredness must not apply under other modes")
	}
	if !f.IsRequired(utype.ModeRead) {
		t.Fatalf("mode-scoped requiredness applies under its mode")
	}
	if !f.IsRequired("") {
		t.Fatalf("mode-scoped requiredness applies with no active mode")
	}
}

func TestField_ResolveDefaultDeepCopy(t *testing.T) {
	f := utype.New().Default(map[string]any{"tags": []any{"a"}})
	v1, ok := f.ResolveDefault()
	if !ok {
		t.Fatalf("expected a default")
	}
	v1.(map[string]any)["tags"] = append(v1.(map[string]any)["tags"].([]any), "b")
	v2, _ := f.ResolveDefault()
	if got := v2.(map[string]any)["tags"].([]any); len(got) != 1 {
		t.Fatalf("default must not alias across calls, got %v", got)
	}
}

func TestField_DefaultFactoryFresh(t *testing.T) {
	n := 0
	f := utype.New().DefaultFactory(func() any { n++; return n })
	a, _ := f.ResolveDefault()
	b, _ := f.ResolveDefault()
	if a == b {
		t.Fatalf("factory must run per resolution, got %v and %v", a, b)
	}
}

func TestField_ResolveUnprovided(t *testing.T) {
	f := utype.New().Optional().Unprovided([]any{})
	v, ok := f.ResolveUnprovided()
	if !ok {
		t.Fatalf("expected the unprovided sentinel")
	}
	if _, isSlice := v.([]any); !isSlice {
		t.Fatalf("expected a slice sentinel, got %T", v)
	}
	if _, ok := utype.New().ResolveUnprovided(); ok {
		t.Fatalf("no sentinel configured")
	}
}
