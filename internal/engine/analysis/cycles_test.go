package analysis

import (
	"testing"

	"codegraph/internal/engine/graph"
)

func addFile(t *testing.T, store *graph.Store, path string) {
	t.Helper()
	err := store.AddNode(graph.GraphNode{
		ID:   graph.FileID(path),
		Kind: graph.NodeFile,
		Name: path,
		Path: path,
	})
	if err != nil {
		t.Fatalf("AddNode(%s): %v", path, err)
	}
}

func addImport(t *testing.T, store *graph.Store, from, to string) {
	t.Helper()
	err := store.AddEdge(graph.GraphEdge{
		From:       graph.FileID(from),
		To:         graph.FileID(to),
		Kind:       graph.EdgeImports,
		Confidence: graph.ConfidenceHigh,
		Reason:     "static import",
	})
	if err != nil {
		t.Fatalf("AddEdge(%s -> %s): %v", from, to, err)
	}
}

func TestFindCyclesSimplePair(t *testing.T) {
	store := graph.NewStore()
	addFile(t, store, "a.ts")
	addFile(t, store, "b.ts")
	addImport(t, store, "a.ts", "b.ts")
	addImport(t, store, "b.ts", "a.ts")

	cycles := NewCycleDetector(store, 0).FindCycles(CycleOptions{})
	if len(cycles) != 1 {
		t.Fatalf("expected exactly one cycle, got %d", len(cycles))
	}
	cycle := cycles[0]
	if cycle.Length != 2 {
		t.Errorf("length = %d, want 2", cycle.Length)
	}
	if cycle.Nodes[0] != graph.FileID("a.ts") {
		t.Errorf("cycle should rotate to smallest member, got head %s", cycle.Nodes[0])
	}
	if cycle.Severity != graph.SeverityWarning {
		t.Errorf("severity = %s, want warning", cycle.Severity)
	}
}

func TestFindCyclesAcyclicGraph(t *testing.T) {
	store := graph.NewStore()
	addFile(t, store, "a.ts")
	addFile(t, store, "b.ts")
	addFile(t, store, "c.ts")
	addImport(t, store, "a.ts", "b.ts")
	addImport(t, store, "b.ts", "c.ts")
	addImport(t, store, "a.ts", "c.ts")

	cycles := NewCycleDetector(store, 0).FindCycles(CycleOptions{})
	if len(cycles) != 0 {
		t.Fatalf("expected no cycles, got %d", len(cycles))
	}
}

func TestFindCyclesLongCycleEscalates(t *testing.T) {
	store := graph.NewStore()
	files := []string{"a.ts", "b.ts", "c.ts", "d.ts"}
	for _, f := range files {
		addFile(t, store, f)
	}
	for i, f := range files {
		addImport(t, store, f, files[(i+1)%len(files)])
	}

	cycles := NewCycleDetector(store, 4).FindCycles(CycleOptions{})
	if len(cycles) != 1 {
		t.Fatalf("expected one cycle, got %d", len(cycles))
	}
	if cycles[0].Severity != graph.SeverityError {
		t.Errorf("length-4 cycle severity = %s, want error", cycles[0].Severity)
	}
}

func TestFindCyclesMinLengthFilter(t *testing.T) {
	store := graph.NewStore()
	addFile(t, store, "a.ts")
	addFile(t, store, "b.ts")
	addImport(t, store, "a.ts", "b.ts")
	addImport(t, store, "b.ts", "a.ts")

	cycles := NewCycleDetector(store, 0).FindCycles(CycleOptions{MinLength: 3})
	if len(cycles) != 0 {
		t.Fatalf("min length 3 should exclude the pair cycle, got %d", len(cycles))
	}
}

func TestFindCyclesScope(t *testing.T) {
	store := graph.NewStore()
	addFile(t, store, "src/a.ts")
	addFile(t, store, "src/b.ts")
	addFile(t, store, "lib/x.ts")
	addFile(t, store, "lib/y.ts")
	addImport(t, store, "src/a.ts", "src/b.ts")
	addImport(t, store, "src/b.ts", "src/a.ts")
	addImport(t, store, "lib/x.ts", "lib/y.ts")
	addImport(t, store, "lib/y.ts", "lib/x.ts")

	cycles := NewCycleDetector(store, 0).FindCycles(CycleOptions{Scope: "src"})
	if len(cycles) != 1 {
		t.Fatalf("scoped detection should find one cycle, got %d", len(cycles))
	}
	if cycles[0].Nodes[0] != graph.FileID("src/a.ts") {
		t.Errorf("unexpected cycle head %s", cycles[0].Nodes[0])
	}
}

func TestFindCyclesBreakSuggestion(t *testing.T) {
	store := graph.NewStore()
	// a <-> b, and b has two extra importers. Removing the edge into a
	// (fewest other incoming edges) is the cheaper fix.
	for _, f := range []string{"a.ts", "b.ts", "c.ts", "d.ts"} {
		addFile(t, store, f)
	}
	addImport(t, store, "a.ts", "b.ts")
	addImport(t, store, "b.ts", "a.ts")
	addImport(t, store, "c.ts", "b.ts")
	addImport(t, store, "d.ts", "b.ts")

	cycles := NewCycleDetector(store, 0).FindCycles(CycleOptions{})
	if len(cycles) != 1 {
		t.Fatalf("expected one cycle, got %d", len(cycles))
	}
	if cycles[0].BreakTo != graph.FileID("a.ts") {
		t.Errorf("break target = %s, want %s", cycles[0].BreakTo, graph.FileID("a.ts"))
	}
	if cycles[0].BreakFrom != graph.FileID("b.ts") {
		t.Errorf("break source = %s, want %s", cycles[0].BreakFrom, graph.FileID("b.ts"))
	}
}

func TestFindCyclesMaxCyclesBound(t *testing.T) {
	store := graph.NewStore()
	// Three independent pair cycles.
	pairs := [][2]string{{"a.ts", "b.ts"}, {"c.ts", "d.ts"}, {"e.ts", "f.ts"}}
	for _, p := range pairs {
		addFile(t, store, p[0])
		addFile(t, store, p[1])
		addImport(t, store, p[0], p[1])
		addImport(t, store, p[1], p[0])
	}

	cycles := NewCycleDetector(store, 0).FindCycles(CycleOptions{MaxCycles: 2})
	if len(cycles) != 2 {
		t.Fatalf("expected enumeration capped at 2, got %d", len(cycles))
	}
}

func TestFindCyclesDeterministicOrder(t *testing.T) {
	build := func() []Cycle {
		store := graph.NewStore()
		for _, f := range []string{"m.ts", "n.ts", "a.ts", "b.ts", "c.ts"} {
			addFile(t, store, f)
		}
		addImport(t, store, "m.ts", "n.ts")
		addImport(t, store, "n.ts", "m.ts")
		addImport(t, store, "a.ts", "b.ts")
		addImport(t, store, "b.ts", "c.ts")
		addImport(t, store, "c.ts", "a.ts")
		return NewCycleDetector(store, 0).FindCycles(CycleOptions{})
	}

	first := build()
	second := build()
	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("expected two cycles in both runs, got %d and %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Description != second[i].Description {
			t.Errorf("run order diverged at %d: %q vs %q", i, first[i].Description, second[i].Description)
		}
	}
	if first[0].Length != 2 || first[1].Length != 3 {
		t.Errorf("cycles should sort by length, got %d then %d", first[0].Length, first[1].Length)
	}
}
