package resolver

import (
	"testing"

	"codegraph/internal/engine/graph"
)

func newTestResolver() *Resolver {
	return New([]string{
		"src/app/main.ts",
		"src/app/util.ts",
		"src/lib/index.ts",
		"src/lib/deep/helper.js",
		"pkg/core/api.py",
	}, map[string]string{
		"@lib": "src/lib",
		"@":    "src",
	})
}

func TestResolve_Relative(t *testing.T) {
	r := newTestResolver()

	res := r.Resolve("./util", "src/app/main.ts")
	if !res.Resolved {
		t.Fatal("expected ./util to resolve")
	}
	if res.ID != graph.FileID("src/app/util.ts") {
		t.Errorf("unexpected identity: %s", res.ID)
	}

	res = r.Resolve("../lib", "src/app/main.ts")
	if !res.Resolved || res.Path != "src/lib/index.ts" {
		t.Errorf("expected index probe to find src/lib/index.ts, got %+v", res)
	}
}

func TestResolve_Alias(t *testing.T) {
	r := newTestResolver()

	res := r.Resolve("@lib/deep/helper", "src/app/main.ts")
	if !res.Resolved || res.Path != "src/lib/deep/helper.js" {
		t.Errorf("alias resolution failed: %+v", res)
	}

	// The longer alias prefix must win over "@".
	res = r.Resolve("@lib", "src/app/main.ts")
	if !res.Resolved || res.Path != "src/lib/index.ts" {
		t.Errorf("expected @lib to hit the longest alias, got %+v", res)
	}
}

func TestResolve_External(t *testing.T) {
	r := newTestResolver()

	res := r.Resolve("lodash/fp", "src/app/main.ts")
	if !res.External {
		t.Fatal("expected bare specifier to be external")
	}
	if res.ID != graph.ModuleID("lodash") {
		t.Errorf("expected stable package-root placeholder, got %s", res.ID)
	}

	res = r.Resolve("@scope/pkg/sub/mod", "src/app/main.ts")
	if res.ID != graph.ModuleID("@scope/pkg") {
		t.Errorf("scoped package root mishandled: %s", res.ID)
	}
}

func TestResolve_UnresolvedRelativeIsStable(t *testing.T) {
	r := newTestResolver()

	a := r.Resolve("./missing", "src/app/main.ts")
	b := r.Resolve("./missing", "src/app/main.ts")
	if a.Resolved {
		t.Fatal("expected ./missing to stay unresolved")
	}
	if a.ID != b.ID {
		t.Error("unresolved identities must be deterministic")
	}
	if a.ID != graph.FileID("src/app/missing") {
		t.Errorf("unexpected placeholder identity: %s", a.ID)
	}
}

func TestResolve_Deterministic(t *testing.T) {
	r := newTestResolver()
	first := r.Resolve("@/app/util", "src/lib/index.ts")
	for i := 0; i < 10; i++ {
		if got := r.Resolve("@/app/util", "src/lib/index.ts"); got != first {
			t.Fatalf("resolution not deterministic: %+v vs %+v", got, first)
		}
	}
}
