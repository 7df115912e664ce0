package indexer

import (
	"testing"

	"codegraph/internal/engine/graph"
	"codegraph/internal/engine/resolver"
)

func goEnv(files []string) *Env {
	return &Env{
		Resolver:       resolver.New(files, nil),
		GoModulePrefix: "example.com/app",
	}
}

func TestGoIndexerModuleLocalImport(t *testing.T) {
	env := goEnv([]string{"cmd/app/main.go", "internal/db/db.go"})
	ix := NewGoIndexer(env)

	content := []byte("package main\n\nimport (\n\t\"fmt\"\n\t\"example.com/app/internal/db\"\n)\n\nfunc main() {\n\tfmt.Println(db.Open())\n}\n")
	res, err := ix.IndexFile("cmd/app/main.go", content)
	if err != nil {
		t.Fatalf("IndexFile: %v", err)
	}

	local := findEdge(res, graph.ModuleID("internal/db"), graph.EdgeImports)
	if local == nil {
		t.Fatalf("module-local import should resolve to the package directory, edges = %+v", res.Edges)
	}
	if local.Confidence != graph.ConfidenceHigh {
		t.Errorf("static import confidence = %s, want high", local.Confidence)
	}

	if findEdge(res, graph.ModuleID("fmt"), graph.EdgeImports) == nil {
		t.Error("stdlib import should map to an external module placeholder")
	}
}

func TestGoIndexerMainEntrypoint(t *testing.T) {
	ix := NewGoIndexer(goEnv([]string{"cmd/app/main.go"}))

	content := []byte("package main\n\nfunc main() {}\n")
	res, err := ix.IndexFile("cmd/app/main.go", content)
	if err != nil {
		t.Fatalf("IndexFile: %v", err)
	}
	ep := findNode(res, graph.NodeID(graph.NodeEntrypoint, "cmd/app/main.go"))
	if ep == nil {
		t.Fatal("package main with func main should yield an entrypoint")
	}
	if ep.Meta.EntrypointKind != "main" {
		t.Errorf("entrypoint kind = %s, want main", ep.Meta.EntrypointKind)
	}
}

func TestGoIndexerNonMainHasNoEntrypoint(t *testing.T) {
	ix := NewGoIndexer(goEnv([]string{"internal/db/db.go"}))

	content := []byte("package db\n\nfunc Open() error { return nil }\n")
	res, err := ix.IndexFile("internal/db/db.go", content)
	if err != nil {
		t.Fatalf("IndexFile: %v", err)
	}
	if findNode(res, graph.NodeID(graph.NodeEntrypoint, "internal/db/db.go")) != nil {
		t.Error("library package must not yield an entrypoint")
	}
}

func TestGoIndexerPackageMemberEdge(t *testing.T) {
	ix := NewGoIndexer(goEnv([]string{"internal/db/db.go"}))

	content := []byte("package db\n\ntype Conn struct{}\n")
	res, err := ix.IndexFile("internal/db/db.go", content)
	if err != nil {
		t.Fatalf("IndexFile: %v", err)
	}

	member := findEdge(res, graph.FileID("internal/db/db.go"), graph.EdgeReexports)
	if member == nil {
		t.Fatal("file should be aggregated into its package module node")
	}
	if member.From != graph.ModuleID("internal/db") {
		t.Errorf("package edge from = %s, want %s", member.From, graph.ModuleID("internal/db"))
	}
	if member.Location.File != "internal/db/db.go" {
		t.Errorf("package edge must be owned by the file, location = %+v", member.Location)
	}
}

func TestGoIndexerExportedNames(t *testing.T) {
	ix := NewGoIndexer(goEnv([]string{"internal/db/db.go"}))

	content := []byte("package db\n\ntype Conn struct{}\n\nfunc Open() *Conn { return nil }\n\nfunc helper() {}\n")
	res, err := ix.IndexFile("internal/db/db.go", content)
	if err != nil {
		t.Fatalf("IndexFile: %v", err)
	}
	file := findNode(res, graph.FileID("internal/db/db.go"))
	if file == nil {
		t.Fatal("missing file node")
	}

	want := map[string]bool{"Conn": false, "Open": false}
	for _, name := range file.Meta.Exports {
		if name == "helper" {
			t.Error("unexported names must not appear in exports")
		}
		if _, ok := want[name]; ok {
			want[name] = true
		}
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("export %q not recorded, got %v", name, file.Meta.Exports)
		}
	}
}

func TestGoIndexerQualifiedCall(t *testing.T) {
	env := goEnv([]string{"cmd/app/main.go", "internal/db/db.go"})
	ix := NewGoIndexer(env)

	content := []byte("package main\n\nimport \"example.com/app/internal/db\"\n\nfunc main() {\n\tdb.Open()\n}\n")
	res, err := ix.IndexFile("cmd/app/main.go", content)
	if err != nil {
		t.Fatalf("IndexFile: %v", err)
	}
	call := findEdge(res, graph.ModuleID("internal/db"), graph.EdgeCalls)
	if call == nil {
		t.Fatalf("qualified call should yield a calls edge, edges = %+v", res.Edges)
	}
	if call.Confidence != graph.ConfidenceMedium {
		t.Errorf("name-matched call confidence = %s, want medium", call.Confidence)
	}
}
