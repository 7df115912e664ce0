package indexer

import (
	"testing"

	"codegraph/internal/engine/graph"
	"codegraph/internal/engine/resolver"
)

func testEnv(files []string, hints ...EntrypointHint) *Env {
	return &Env{Resolver: resolver.New(files, nil), Hints: hints}
}

func findEdge(res Result, to string, kind graph.EdgeKind) *graph.GraphEdge {
	for i, e := range res.Edges {
		if e.To == to && e.Kind == kind {
			return &res.Edges[i]
		}
	}
	return nil
}

func findNode(res Result, id string) *graph.GraphNode {
	for i, n := range res.Nodes {
		if n.ID == id {
			return &res.Nodes[i]
		}
	}
	return nil
}

func TestRegistryDispatch(t *testing.T) {
	registry := NewRegistry(testEnv(nil))

	cases := []struct {
		path string
		want string
	}{
		{"main.go", "go"},
		{"src/app.ts", "javascript"},
		{"src/view.jsx", "javascript"},
		{"worker.py", "python"},
		{"Main.java", "java"},
		{"lib.rs", "rust"},
		{"index.html", "html"},
		{"style.css", "css"},
		{"script.sh", "generic"},
		{"data.inc", "generic"},
	}
	for _, tc := range cases {
		if got := registry.ForFile(tc.path).Language(); got != tc.want {
			t.Errorf("ForFile(%s) = %s, want %s", tc.path, got, tc.want)
		}
	}
}

func TestRegistryFallsBackWithoutExtension(t *testing.T) {
	registry := NewRegistry(testEnv(nil))
	if registry.ForFile("Makefile").Language() != "generic" {
		t.Error("extensionless files must fall back to the generic indexer")
	}
}

func TestGenericIndexerRelativeInclude(t *testing.T) {
	env := testEnv([]string{"src/main.inc", "src/lib.inc"})
	ix := NewGenericIndexer(env)

	res, err := ix.IndexFile("src/main.inc", []byte("include \"./lib.inc\"\n"))
	if err != nil {
		t.Fatalf("IndexFile: %v", err)
	}
	edge := findEdge(res, graph.FileID("src/lib.inc"), graph.EdgeImports)
	if edge == nil {
		t.Fatalf("missing import edge, edges = %+v", res.Edges)
	}
	if edge.Confidence != graph.ConfidenceLow {
		t.Errorf("heuristic include confidence = %s, want low", edge.Confidence)
	}
	if edge.Location.Line != 1 {
		t.Errorf("location line = %d, want 1", edge.Location.Line)
	}
}

func TestGenericIndexerBareSpecifierBecomesModule(t *testing.T) {
	ix := NewGenericIndexer(testEnv(nil))

	res, err := ix.IndexFile("app.rb", []byte("require 'json'\n"))
	if err != nil {
		t.Fatalf("IndexFile: %v", err)
	}
	if findNode(res, graph.ModuleID("json")) == nil {
		t.Errorf("bare require should emit a module placeholder, nodes = %+v", res.Nodes)
	}
	if findEdge(res, graph.ModuleID("json"), graph.EdgeImports) == nil {
		t.Errorf("bare require should emit an import edge, edges = %+v", res.Edges)
	}
}

func TestGenericIndexerMainEntrypoint(t *testing.T) {
	ix := NewGenericIndexer(testEnv(nil))

	res, err := ix.IndexFile("main.c", []byte("#include \"util.h\"\nint main(int argc, char **argv) {\n}\n"))
	if err != nil {
		t.Fatalf("IndexFile: %v", err)
	}
	ep := findNode(res, graph.NodeID(graph.NodeEntrypoint, "main.c"))
	if ep == nil {
		t.Fatal("C main function should yield an entrypoint node")
	}
	if ep.Meta.EntrypointKind != "main" {
		t.Errorf("entrypoint kind = %s, want main", ep.Meta.EntrypointKind)
	}
	if findEdge(res, graph.FileID("main.c"), graph.EdgeCalls) == nil {
		t.Error("entrypoint must be linked to its file with a calls edge")
	}
}

func TestGenericIndexerAlwaysYieldsFileNode(t *testing.T) {
	ix := NewGenericIndexer(testEnv(nil))

	res, err := ix.IndexFile("blob.bin", []byte{0x00, 0x01, 0x02})
	if err != nil {
		t.Fatalf("IndexFile: %v", err)
	}
	node := findNode(res, graph.FileID("blob.bin"))
	if node == nil {
		t.Fatal("every indexed file gets a file node")
	}
	if node.Kind != graph.NodeFile {
		t.Errorf("kind = %s, want file", node.Kind)
	}
}
