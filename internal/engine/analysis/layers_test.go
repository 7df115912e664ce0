package analysis

import (
	"testing"

	"codegraph/internal/engine/graph"
)

func TestLayerCheckFlagsForbiddenImport(t *testing.T) {
	store := graph.NewStore()
	addFile(t, store, "core/model.ts")
	addFile(t, store, "ui/button.ts")
	addImport(t, store, "core/model.ts", "ui/button.ts")

	analyzer, err := NewLayerAnalyzer(store, []LayerRule{{
		Name:         "core-independent",
		From:         "core/**",
		CannotImport: []string{"ui/**"},
	}})
	if err != nil {
		t.Fatal(err)
	}

	violations := analyzer.Check()
	if len(violations) != 1 {
		t.Fatalf("expected one violation, got %d", len(violations))
	}
	v := violations[0]
	if v.Rule != "core-independent" || v.FromPath != "core/model.ts" || v.ToPath != "ui/button.ts" {
		t.Errorf("unexpected violation %+v", v)
	}
}

func TestLayerCheckAllowsCleanDirection(t *testing.T) {
	store := graph.NewStore()
	addFile(t, store, "core/model.ts")
	addFile(t, store, "ui/button.ts")
	addImport(t, store, "ui/button.ts", "core/model.ts")

	analyzer, err := NewLayerAnalyzer(store, []LayerRule{{
		Name:         "core-independent",
		From:         "core/**",
		CannotImport: []string{"ui/**"},
	}})
	if err != nil {
		t.Fatal(err)
	}
	if violations := analyzer.Check(); len(violations) != 0 {
		t.Fatalf("reverse direction should pass, got %+v", violations)
	}
}

func TestLayerRuleInvalidPattern(t *testing.T) {
	if _, err := NewLayerAnalyzer(graph.NewStore(), []LayerRule{{
		Name: "bad", From: "core/[", CannotImport: []string{"ui/**"},
	}}); err == nil {
		t.Fatal("expected compile error for malformed glob")
	}
}

func TestLayerSuggestFromFlow(t *testing.T) {
	store := graph.NewStore()
	addFile(t, store, "ui/button.ts")
	addFile(t, store, "ui/panel.ts")
	addFile(t, store, "core/model.ts")
	addImport(t, store, "ui/button.ts", "core/model.ts")
	addImport(t, store, "ui/panel.ts", "core/model.ts")

	analyzer, err := NewLayerAnalyzer(store, nil)
	if err != nil {
		t.Fatal(err)
	}
	suggestions := analyzer.Suggest()
	if len(suggestions) != 1 {
		t.Fatalf("expected one suggestion, got %+v", suggestions)
	}
	rule := suggestions[0]
	if rule.From != "core/**" || len(rule.CannotImport) != 1 || rule.CannotImport[0] != "ui/**" {
		t.Errorf("unexpected suggestion %+v", rule)
	}
}

func TestLayerSuggestSkipsBidirectionalFlow(t *testing.T) {
	store := graph.NewStore()
	addFile(t, store, "ui/button.ts")
	addFile(t, store, "core/model.ts")
	addImport(t, store, "ui/button.ts", "core/model.ts")
	addImport(t, store, "core/model.ts", "ui/button.ts")

	analyzer, err := NewLayerAnalyzer(store, nil)
	if err != nil {
		t.Fatal(err)
	}
	if suggestions := analyzer.Suggest(); len(suggestions) != 0 {
		t.Fatalf("bidirectional flow should produce no rules, got %+v", suggestions)
	}
}
