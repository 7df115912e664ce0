package analysis

import (
	"testing"

	"codegraph/internal/engine/graph"
)

func issuesByKind(issues []graph.GraphIssue, kind graph.IssueKind) []graph.GraphIssue {
	var out []graph.GraphIssue
	for _, issue := range issues {
		if issue.Kind == kind {
			out = append(out, issue)
		}
	}
	return out
}

func TestDetectUnresolvedEdge(t *testing.T) {
	store := graph.NewStore()
	addFile(t, store, "a.ts")
	if err := store.AddEdge(graph.GraphEdge{
		From:       graph.FileID("a.ts"),
		To:         graph.FileID("missing.ts"),
		Kind:       graph.EdgeImports,
		Confidence: graph.ConfidenceMedium,
		Reason:     "static import",
		Specifier:  "./missing",
	}); err != nil {
		t.Fatal(err)
	}

	issues := NewIssueDetector(store).Detect()
	unresolved := issuesByKind(issues, graph.IssueDynamicEdgeUnknown)
	if len(unresolved) != 1 {
		t.Fatalf("expected one unresolved-edge issue, got %d", len(unresolved))
	}
	if unresolved[0].File != "a.ts" {
		t.Errorf("issue file = %s, want a.ts", unresolved[0].File)
	}
}

func TestDetectDynamicPlaceholder(t *testing.T) {
	store := graph.NewStore()
	addFile(t, store, "loader.ts")
	if err := store.AddNode(graph.GraphNode{
		ID:   graph.ModuleID("(dynamic)"),
		Kind: graph.NodeModule,
		Name: "(dynamic)",
		Path: "(dynamic)",
	}); err != nil {
		t.Fatal(err)
	}
	if err := store.AddEdge(graph.GraphEdge{
		From:       graph.FileID("loader.ts"),
		To:         graph.ModuleID("(dynamic)"),
		Kind:       graph.EdgeImports,
		Confidence: graph.ConfidenceLow,
		Reason:     "dynamic import",
	}); err != nil {
		t.Fatal(err)
	}

	issues := NewIssueDetector(store).Detect()
	if len(issuesByKind(issues, graph.IssueDynamicEdgeUnknown)) != 1 {
		t.Fatalf("dynamic placeholder edge should be flagged, issues: %+v", issues)
	}
}

func TestDetectBrokenExportChain(t *testing.T) {
	store := graph.NewStore()
	addFile(t, store, "index.ts")
	if err := store.AddEdge(graph.GraphEdge{
		From:      graph.FileID("index.ts"),
		To:        graph.FileID("gone.ts"),
		Kind:      graph.EdgeReexports,
		Reason:    "re-export",
		Specifier: "./gone",
	}); err != nil {
		t.Fatal(err)
	}

	issues := NewIssueDetector(store).Detect()
	broken := issuesByKind(issues, graph.IssueBrokenExportChain)
	if len(broken) != 1 {
		t.Fatalf("expected broken export chain, got %+v", issues)
	}
	if broken[0].Severity != graph.SeverityError {
		t.Errorf("severity = %s, want error", broken[0].Severity)
	}
}

func TestDetectEntrypointWithoutHandler(t *testing.T) {
	store := graph.NewStore()
	addFile(t, store, "routes.py")
	if err := store.AddNode(graph.GraphNode{
		ID:   graph.NodeID(graph.NodeEntrypoint, "routes.py#/users"),
		Kind: graph.NodeEntrypoint,
		Name: "/users",
		Path: "routes.py",
	}); err != nil {
		t.Fatal(err)
	}

	issues := NewIssueDetector(store).Detect()
	dead := issuesByKind(issues, graph.IssueEntrypointNoHandler)
	if len(dead) != 1 {
		t.Fatalf("expected one dead entrypoint, got %+v", issues)
	}
}

func TestDetectEntrypointWithHandlerIsQuiet(t *testing.T) {
	store := graph.NewStore()
	addFile(t, store, "main.go")
	epID := graph.NodeID(graph.NodeEntrypoint, "main.go#main")
	if err := store.AddNode(graph.GraphNode{
		ID: epID, Kind: graph.NodeEntrypoint, Name: "main", Path: "main.go",
	}); err != nil {
		t.Fatal(err)
	}
	if err := store.AddEdge(graph.GraphEdge{
		From: epID, To: graph.FileID("main.go"), Kind: graph.EdgeCalls,
		Confidence: graph.ConfidenceHigh, Reason: "entrypoint handler",
	}); err != nil {
		t.Fatal(err)
	}

	issues := NewIssueDetector(store).Detect()
	if len(issuesByKind(issues, graph.IssueEntrypointNoHandler)) != 0 {
		t.Fatalf("entrypoint with handler should not be flagged: %+v", issues)
	}
}

func TestDetectOrphanedExport(t *testing.T) {
	store := graph.NewStore()
	if err := store.AddNode(graph.GraphNode{
		ID: graph.FileID("unused.ts"), Kind: graph.NodeFile,
		Name: "unused.ts", Path: "unused.ts",
		Meta: graph.NodeMeta{Exports: []string{"helper"}},
	}); err != nil {
		t.Fatal(err)
	}

	issues := NewIssueDetector(store).Detect()
	orphans := issuesByKind(issues, graph.IssueOrphanedExport)
	if len(orphans) != 1 {
		t.Fatalf("expected one orphaned export, got %+v", issues)
	}
	if orphans[0].Severity != graph.SeverityInfo {
		t.Errorf("severity = %s, want info", orphans[0].Severity)
	}
}

func TestDetectImportedExportNotOrphaned(t *testing.T) {
	store := graph.NewStore()
	if err := store.AddNode(graph.GraphNode{
		ID: graph.FileID("util.ts"), Kind: graph.NodeFile,
		Name: "util.ts", Path: "util.ts",
		Meta: graph.NodeMeta{Exports: []string{"helper"}},
	}); err != nil {
		t.Fatal(err)
	}
	addFile(t, store, "app.ts")
	addImport(t, store, "app.ts", "util.ts")

	issues := NewIssueDetector(store).Detect()
	if len(issuesByKind(issues, graph.IssueOrphanedExport)) != 0 {
		t.Fatalf("imported file should not be an orphan: %+v", issues)
	}
}

type stubFilter struct {
	kind graph.IssueKind
	file string
}

func (f stubFilter) ShouldIgnore(kind graph.IssueKind, file string) bool {
	return kind == f.kind && file == f.file
}

func TestFilterIgnored(t *testing.T) {
	issues := []graph.GraphIssue{
		{Kind: graph.IssueOrphanedExport, File: "a.ts"},
		{Kind: graph.IssueOrphanedExport, File: "b.ts"},
	}
	if got := FilterIgnored(append([]graph.GraphIssue(nil), issues...), nil); len(got) != 2 {
		t.Fatalf("nil filter should pass through, got %d", len(got))
	}
	kept := FilterIgnored(issues, stubFilter{kind: graph.IssueOrphanedExport, file: "a.ts"})
	if len(kept) != 1 || kept[0].File != "b.ts" {
		t.Fatalf("filter kept %+v", kept)
	}
}
