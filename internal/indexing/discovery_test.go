package indexing

import (
	"os"
	"path/filepath"
	"testing"

	"codegraph/internal/core/config"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func discoveryConfig(root string) *config.Config {
	cfg := config.Default()
	cfg.Root = root
	return cfg
}

func TestDiscoveryWalksAndFilters(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"src/a.ts":              "export const a = 1\n",
		"src/b.ts":              "export const b = 2\n",
		"node_modules/pkg/x.js": "module.exports = 1\n",
		".git/config":           "\n",
	})

	d, err := NewDiscovery(discoveryConfig(root))
	if err != nil {
		t.Fatal(err)
	}
	files, err := d.Files()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"src/a.ts", "src/b.ts"}
	if len(files) != len(want) {
		t.Fatalf("files = %v, want %v", files, want)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Errorf("files[%d] = %s, want %s", i, files[i], want[i])
		}
	}
}

func TestDiscoveryMaxFileSize(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"big.ts": string(make([]byte, 128))})

	cfg := discoveryConfig(root)
	cfg.MaxFileSize = 64
	d, err := NewDiscovery(cfg)
	if err != nil {
		t.Fatal(err)
	}
	files, err := d.Files()
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 0 {
		t.Errorf("oversized file accepted: %v", files)
	}
}

func TestDiscoveryExcludeFiles(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.min.js": "x\n",
		"a.js":     "x\n",
	})

	cfg := discoveryConfig(root)
	cfg.Exclude.Files = []string{"*.min.js"}
	d, err := NewDiscovery(cfg)
	if err != nil {
		t.Fatal(err)
	}
	files, err := d.Files()
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || files[0] != "a.js" {
		t.Errorf("files = %v, want [a.js]", files)
	}
}

func TestAcceptsChecksNestedExcludedDirs(t *testing.T) {
	d, err := NewDiscovery(discoveryConfig(t.TempDir()))
	if err != nil {
		t.Fatal(err)
	}
	if d.Accepts("pkg/node_modules/dep/index.js", 10) {
		t.Error("path under an excluded directory should be rejected")
	}
	if !d.Accepts("pkg/src/index.js", 10) {
		t.Error("ordinary nested path should be accepted")
	}
}

func TestIsGeneratedFile(t *testing.T) {
	if !IsGeneratedFile([]byte("// Code generated by protoc-gen-go. DO NOT EDIT.\npackage x\n")) {
		t.Error("protoc marker not detected")
	}
	if !IsGeneratedFile([]byte("/* @generated */\nexport {}\n")) {
		t.Error("@generated marker not detected")
	}
	if IsGeneratedFile([]byte("line\nline\nline\nline\nline\n// DO NOT EDIT\n")) {
		t.Error("marker after the scan window should not match")
	}
}

func TestGoModulePrefix(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"go.mod": "module example.com/demo\n\ngo 1.22\n"})
	if got := GoModulePrefix(root); got != "example.com/demo" {
		t.Errorf("prefix = %q", got)
	}
	if got := GoModulePrefix(t.TempDir()); got != "" {
		t.Errorf("missing go.mod should yield empty prefix, got %q", got)
	}
}
