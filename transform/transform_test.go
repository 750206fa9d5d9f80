package transform_test

import (
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/HansdasC/utype"
	"github.com/HansdasC/utype/rule"
	"github.com/HansdasC/utype/transform"
)

func newRT() *utype.Runtime {
	return utype.NewRuntime(utype.Options{})
}

func TestCoerce_Int(t *testing.T) {
	c := transform.Default()
	rt := newRT()
	cases := []struct {
		in   any
		want int
	}{
		{3, 3},
		{"3", 3},
		{3.0, 3},
		{json.Number("3"), 3},
		{true, 1},
	}
	for _, cs := range cases {
		got, err := c.Transform(rt, cs.in, rule.T[int]())
		if err != nil {
			t.Fatalf("coerce %v (%T): %v", cs.in, cs.in, err)
		}
		if got != cs.want {
			t.Fatalf("coerce %v: expected %d, got %v (%T)", cs.in, cs.want, got, got)
		}
	}
	for _, bad := range []any{3.5, "3.5", "abc", []any{1}} {
		if _, err := c.Transform(rt, bad, rule.T[int]()); err == nil {
			t.Fatalf("expected failure for %v (%T)", bad, bad)
		}
	}
}

func TestCoerce_IntOverflow(t *testing.T) {
	c := transform.Default()
	if _, err := c.Transform(newRT(), 4000, rule.T[int8]()); err == nil {
		t.Fatalf("4000 must not fit int8")
	}
	got, err := c.Transform(newRT(), "100", rule.T[int8]())
	if err != nil || got != int8(100) {
		t.Fatalf("expected int8(100), got %v (%T) err=%v", got, got, err)
	}
	if _, err := c.Transform(newRT(), -1, rule.T[uint]()); err == nil {
		t.Fatalf("-1 must not fit uint")
	}
}

func TestCoerce_NamedTypes(t *testing.T) {
	type level int
	type name string
	c := transform.Default()
	got, err := c.Transform(newRT(), "2", rule.T[level]())
	if err != nil || got != level(2) {
		t.Fatalf("expected level(2), got %v (%T) err=%v", got, got, err)
	}
	got, err = c.Transform(newRT(), "alice", rule.T[name]())
	if err != nil || got != name("alice") {
		t.Fatalf("expected name(alice), got %v (%T) err=%v", got, got, err)
	}
}

func TestCoerce_BoolStringFloat(t *testing.T) {
	c := transform.Default()
	rt := newRT()
	if got, err := c.Transform(rt, "true", rule.T[bool]()); err != nil || got != true {
		t.Fatalf("bool from string: %v %v", got, err)
	}
	if got, err := c.Transform(rt, 1, rule.T[bool]()); err != nil || got != true {
		t.Fatalf("bool from 1: %v %v", got, err)
	}
	if _, err := c.Transform(rt, 2, rule.T[bool]()); err == nil {
		t.Fatalf("2 is not a bool")
	}
	if got, err := c.Transform(rt, 42, rule.T[string]()); err != nil || got != "42" {
		t.Fatalf("string from int: %v %v", got, err)
	}
	if got, err := c.Transform(rt, "1.5", rule.T[float64]()); err != nil || got != 1.5 {
		t.Fatalf("float from string: %v %v", got, err)
	}
	if got, err := c.Transform(rt, json.Number("1.5"), rule.T[float64]()); err != nil || got != 1.5 {
		t.Fatalf("float from number: %v %v", got, err)
	}
}

func TestCoerce_FloatNarrowing(t *testing.T) {
	c := transform.Default()
	rt := newRT()
	got, err := c.Transform(rt, "1.5", rule.T[float32]())
	if err != nil || got != float32(1.5) {
		t.Fatalf("expected float32(1.5), got %v (%T) err=%v", got, got, err)
	}
	if _, err := c.Transform(rt, 1e39, rule.T[float32]()); err == nil {
		t.Fatalf("1e39 must not fit float32")
	}
	got, err = c.Transform(rt, 12.0, rule.T[int64]())
	if err != nil || got != int64(12) {
		t.Fatalf("expected int64(12), got %v (%T) err=%v", got, got, err)
	}
	if _, err := c.Transform(rt, 1e30, rule.T[int64]()); err == nil {
		t.Fatalf("1e30 must not fit int64")
	}
}

func TestCoerce_TimeAndDuration(t *testing.T) {
	c := transform.Default()
	rt := newRT()
	got, err := c.Transform(rt, "2024-06-01T10:00:00Z", rule.T[time.Time]())
	if err != nil {
		t.Fatalf("time: %v", err)
	}
	if got.(time.Time).Year() != 2024 {
		t.Fatalf("unexpected time %v", got)
	}
	got, err = c.Transform(rt, "2024-06-01", rule.T[time.Time]())
	if err != nil || got.(time.Time).Month() != time.June {
		t.Fatalf("date-only layout: %v %v", got, err)
	}
	got, err = c.Transform(rt, 1700000000, rule.T[time.Time]())
	if err != nil || got.(time.Time).Unix() != 1700000000 {
		t.Fatalf("unix seconds: %v %v", got, err)
	}
	got, err = c.Transform(rt, "1h30m", rule.T[time.Duration]())
	if err != nil || got != 90*time.Minute {
		t.Fatalf("duration: %v %v", got, err)
	}
}

func TestCoerce_TypedList(t *testing.T) {
	c := transform.Default()
	got, err := c.Transform(newRT(), []any{"1", 2, 3.0}, rule.T[[]int]())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []int{1, 2, 3}
	ints := got.([]int)
	if len(ints) != 3 {
		t.Fatalf("expected %v, got %v", want, ints)
	}
	for i := range want {
		if ints[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, ints)
		}
	}
}

func TestCoerce_ListIndexPaths(t *testing.T) {
	c := transform.Default()
	_, err := c.Transform(newRT(), []any{1, "x", "y"}, rule.T[[]int]())
	iss, ok := utype.AsIssues(err)
	if !ok || len(iss) != 2 {
		t.Fatalf("expected 2 element issues, got %v", err)
	}
	if iss[0].Path != "[1]" || iss[1].Path != "[2]" {
		t.Fatalf("expected index paths, got %q %q", iss[0].Path, iss[1].Path)
	}
	if _, err := c.Transform(newRT(), "nope", rule.ListOf(rule.T[int]())); err == nil {
		t.Fatalf("a scalar is not a list")
	}
}

func TestCoerce_TypedMap(t *testing.T) {
	c := transform.Default()
	got, err := c.Transform(newRT(), map[string]any{"a": "1", "b": 2}, rule.T[map[string]int]())
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	m := got.(map[string]int)
	if m["a"] != 1 || m["b"] != 2 {
		t.Fatalf("unexpected map %v", m)
	}

	_, err = c.Transform(newRT(), map[string]any{"a": "x"}, rule.T[map[string]int]())
	iss, ok := utype.AsIssues(err)
	if !ok || len(iss) != 1 || iss[0].Path != "[a]" {
		t.Fatalf("expected a keyed issue, got %v", err)
	}
}

func TestCoerce_Literal(t *testing.T) {
	c := transform.Default()
	got, err := c.Transform(newRT(), json.Number("1"), rule.LiteralOf(1))
	if err != nil || got != 1 {
		t.Fatalf("literal coerces before comparing, got %v err=%v", got, err)
	}
	if _, err := c.Transform(newRT(), 2, rule.LiteralOf(1)); err == nil {
		t.Fatalf("wrong constant must fail")
	}
	if got, err := c.Transform(newRT(), nil, rule.LiteralOf(nil)); err != nil || got != nil {
		t.Fatalf("null literal accepts nil, got %v err=%v", got, err)
	}
	if _, err := c.Transform(newRT(), 1, rule.LiteralOf(nil)); err == nil {
		t.Fatalf("null literal rejects values")
	}
}

func TestCoerce_AnyOf(t *testing.T) {
	c := transform.Default()
	u := rule.AnyOfRules(rule.T[int](), rule.T[[]int]())
	got, err := c.Transform(newRT(), "5", u)
	if err != nil || got != 5 {
		t.Fatalf("first accepting member wins, got %v err=%v", got, err)
	}
	got, err = c.Transform(newRT(), []any{1, 2}, u)
	if err != nil || len(got.([]int)) != 2 {
		t.Fatalf("second member applies, got %v err=%v", got, err)
	}
	_, err = c.Transform(newRT(), map[string]any{}, u)
	iss, ok := utype.AsIssues(err)
	if !ok || iss[0].Code != utype.CodeInvalidType {
		t.Fatalf("total failure aggregates, got %v", err)
	}
}

func TestCoerce_OneOf(t *testing.T) {
	c := transform.Default()
	u := rule.OneOfRules(rule.T[int](), rule.T[string]())
	if _, err := c.Transform(newRT(), "5", u); err == nil {
		t.Fatalf("a value matching two members must fail oneOf")
	}
	got, err := c.Transform(newRT(), []byte("x"), u)
	if err != nil || got != "x" {
		t.Fatalf("a single match passes, got %v err=%v", got, err)
	}
}

func TestCoerce_Bytes(t *testing.T) {
	c := transform.Default()
	got, err := c.Transform(newRT(), "abc", rule.T[[]byte]())
	if err != nil || string(got.([]byte)) != "abc" {
		t.Fatalf("bytes from string: %v %v", got, err)
	}
	if _, err := c.Transform(newRT(), 5, rule.T[[]byte]()); err == nil {
		t.Fatalf("an int is not bytes")
	}
}

func TestConstraints(t *testing.T) {
	c := transform.Default()
	rt := newRT()

	r := rule.T[int]().Constrain("ge", 0).Constrain("lt", 10)
	if _, err := c.Transform(rt, 5, r); err != nil {
		t.Fatalf("5 satisfies [0,10): %v", err)
	}
	if _, err := c.Transform(rt, 10, r); err == nil {
		t.Fatalf("10 violates lt 10")
	}

	r = rule.T[int]().Constrain("multiple_of", 3)
	if _, err := c.Transform(rt, 9, r); err != nil {
		t.Fatalf("9 is a multiple of 3: %v", err)
	}
	if _, err := c.Transform(rt, 10, r); err == nil {
		t.Fatalf("10 is not a multiple of 3")
	}

	r = rule.T[string]().Constrain("min_length", 3).Constrain("max_length", 5)
	if _, err := c.Transform(rt, "abcd", r); err != nil {
		t.Fatalf("length 4 fits [3,5]: %v", err)
	}
	if _, err := c.Transform(rt, "ab", r); err == nil {
		t.Fatalf("length 2 violates min_length")
	}

	r = rule.T[string]().Constrain("regex", `^[a-z]+$`)
	if _, err := c.Transform(rt, "abc", r); err != nil {
		t.Fatalf("regex match: %v", err)
	}
	_, err := c.Transform(rt, "ABC", r)
	iss, ok := utype.AsIssues(err)
	if !ok || iss[0].Code != utype.CodeConstraint {
		t.Fatalf("expected a constraint issue, got %v", err)
	}

	r = rule.T[string]().Constrain("enum", []any{"a", "b"})
	if _, err := c.Transform(rt, "a", r); err != nil {
		t.Fatalf("enum member: %v", err)
	}
	if _, err := c.Transform(rt, "c", r); err == nil {
		t.Fatalf("c is not in the enum")
	}

	r = rule.T[string]().Constrain("bogus", 1)
	if _, err := c.Transform(rt, "a", r); err == nil {
		t.Fatalf("unknown constraints are config mistakes and must surface")
	}
}

func TestConstraints_AppliedAfterCoercion(t *testing.T) {
	c := transform.Default()
	r := rule.T[int]().Constrain("ge", 10)
	got, err := c.Transform(newRT(), "12", r)
	if err != nil || got != 12 {
		t.Fatalf("constraints see the coerced value, got %v err=%v", got, err)
	}
	_, err = c.Transform(newRT(), "5", r)
	if err == nil || !strings.Contains(err.Error(), "ge") {
		t.Fatalf("expected a ge violation, got %v", err)
	}
}

func TestDefaultRegistration(t *testing.T) {
	tr, ok := utype.TransformerByName("default")
	if !ok {
		t.Fatalf("importing the package must register the default coercer")
	}
	if tr != utype.Transformer(transform.Default()) {
		t.Fatalf("registered coercer must be the shared default")
	}
}
