package utype_test

import (
	"testing"

	utype "github.com/HansdasC/utype"
)

func TestRuntime_CollectAndFinish(t *testing.T) {
	rt := utype.NewRuntime(utype.Options{})
	if err := rt.Collect(utype.Issue{Path: "a", Code: utype.CodeInvalidType}); err != nil {
		t.Fatalf("collecting must not fail without fail-fast: %v", err)
	}
	if err := rt.Collect(utype.Issue{Path: "b", Code: utype.CodeRequired}); err != nil {
		t.Fatalf("collecting must not fail without fail-fast: %v", err)
	}
	err := rt.Finish()
	iss, ok := utype.AsIssues(err)
	if !ok || len(iss) != 2 {
		t.Fatalf("expected 2 aggregated issues, got %v", err)
	}
}

func TestRuntime_FailFast(t *testing.T) {
	rt := utype.NewRuntime(utype.Options{}, utype.ParseOptions{FailFast: bp(true)})
	err := rt.Collect(utype.Issue{Path: "a", Code: utype.CodeInvalidType})
	iss, ok := utype.AsIssues(err)
	if !ok || len(iss) != 1 {
		t.Fatalf("fail-fast must return at the first issue, got %v", err)
	}
}

func TestRuntime_WarnSink(t *testing.T) {
	var seen []utype.Issue
	rt := utype.NewRuntime(utype.Options{}, utype.ParseOptions{
		WarnSink: func(is utype.Issue) { seen = append(seen, is) },
	})
	rt.Warn(utype.Issue{Path: "x", Code: utype.CodeDeprecated})
	if len(seen) != 1 || seen[0].Path != "x" {
		t.Fatalf("sink must receive warnings, got %v", seen)
	}
	if len(rt.Warnings()) != 1 {
		t.Fatalf("warnings must be retrievable from the runtime")
	}
	if rt.HasIssues() {
		t.Fatalf("a warning is not a fatal issue")
	}
	if err := rt.Finish(); err != nil {
		t.Fatalf("no fatal issues, Finish must be nil: %v", err)
	}
}

func TestRuntime_PerCallOverrides(t *testing.T) {
	rt := utype.NewRuntime(utype.Options{Mode: utype.ModeRead}, utype.ParseOptions{
		Mode:            utype.ModeWrite,
		IgnoreRequired:  bp(true),
		NoDefault:       bp(true),
		ForceDefault:    nil,
		HasForceDefault: true,
	})
	if rt.Mode() != utype.ModeWrite {
		t.Fatalf("per-call mode must win, got %q", rt.Mode())
	}
	if !rt.IgnoreRequired() || !rt.NoDefault() {
		t.Fatalf("per-call flags must apply")
	}
	if _, ok := rt.ForceDefault(); !ok {
		t.Fatalf("nil is a valid forced default when flagged")
	}
}

func TestRuntime_Derive(t *testing.T) {
	var seen int
	rt := utype.NewRuntime(utype.Options{}, utype.ParseOptions{
		Mode:     utype.ModeWrite,
		WarnSink: func(utype.Issue) { seen++ },
	})
	child := rt.Derive(utype.Options{ErrPolicy: utype.PolicyExclude})
	if child.Mode() != utype.ModeWrite {
		t.Fatalf("child inherits the active mode, got %q", child.Mode())
	}
	child.Warn(utype.Issue{Code: utype.CodeDeprecated})
	if seen != 1 {
		t.Fatalf("child warnings flow into the parent sink")
	}
	if err := child.Collect(utype.Issue{Code: utype.CodeInvalidType}); err != nil {
		t.Fatalf("child without fail-fast collects: %v", err)
	}
	if rt.HasIssues() {
		t.Fatalf("child issues stay with the child")
	}
}

func TestRuntime_DeriveCarriesCallOverrides(t *testing.T) {
	nd, iac := true, true
	rt := utype.NewRuntime(utype.Options{}, utype.ParseOptions{
		NoDefault:            &nd,
		IgnoreAliasConflicts: &iac,
		Addition:             utype.AdditionReject,
	})
	child := rt.Derive(utype.Options{})
	if !child.NoDefault() {
		t.Fatalf("per-call NoDefault must reach nested runtimes")
	}
	if !child.IgnoreAliasConflicts() {
		t.Fatalf("per-call IgnoreAliasConflicts must reach nested runtimes")
	}
	if child.Addition() != utype.AdditionReject {
		t.Fatalf("per-call Addition must reach nested runtimes, got %q", child.Addition())
	}
}
