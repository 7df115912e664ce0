package indexer

import (
	"path"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"codegraph/internal/engine/graph"
)

// RustIndexer extracts use declarations, mod statements, and fn main.
type RustIndexer struct {
	env *Env
}

func NewRustIndexer(env *Env) *RustIndexer { return &RustIndexer{env: env} }

func (ix *RustIndexer) Language() string { return "rust" }

func (ix *RustIndexer) Supports(filePath string) bool {
	return hasExtension(filePath, ".rs")
}

func (ix *RustIndexer) IndexFile(filePath string, content []byte) (Result, error) {
	tree, release := grammars["rust"].parse(content)
	defer release()
	if tree == nil {
		return fileOnlyResult(filePath, "rust", "parse failed"), nil
	}

	b := newFileBuilder(ix.env, filePath, "rust")
	ctx := &walkContext{source: content, path: filePath, builder: b}

	state := &rustFileState{builder: b}
	engine := newWalkEngine(map[string]NodeHandler{
		"use_declaration": state.handleUse,
		"mod_item":        state.handleMod,
		"function_item":   state.handleFunction,
		"struct_item":     state.handleNamedItem,
		"enum_item":       state.handleNamedItem,
		"trait_item":      state.handleNamedItem,
	})
	engine.Walk(ctx, tree.RootNode())

	base := path.Base(filePath)
	if state.hasMain && (base == "main.rs" || strings.Contains(filePath, "/bin/")) {
		b.addEntrypoint("main", "main")
	}
	return b.finish(), nil
}

type rustFileState struct {
	builder *fileBuilder
	hasMain bool
}

// handleUse maps `use crate::a::b` to a root-relative probe and treats other
// roots as external crates.
func (s *rustFileState) handleUse(ctx *walkContext, node *sitter.Node) bool {
	text := strings.TrimSuffix(strings.TrimPrefix(ctx.Text(node), "use "), ";")
	text = strings.TrimSpace(text)
	if text == "" {
		return true
	}
	loc := ctx.Location(node)

	// Strip grouped/glob/alias tails; only the module path matters here.
	for _, cut := range []string{"::{", "::*", " as "} {
		if i := strings.Index(text, cut); i >= 0 {
			text = text[:i]
		}
	}

	segments := strings.Split(text, "::")
	switch segments[0] {
	case "crate", "self", "super":
		rel := strings.Join(segments[1:], "/")
		if segments[0] == "super" {
			rel = "../" + rel
			s.builder.addImport(rel, graph.EdgeImports, graph.ConfidenceHigh, loc, "static import")
			return true
		}
		res := s.builder.env.Resolver.ResolveRoot("src/" + rel)
		if !res.Resolved {
			res = s.builder.env.Resolver.ResolveRoot(rel)
		}
		s.builder.appendResolved(res, text, graph.EdgeImports, graph.ConfidenceHigh, loc, "static import")
	case "std", "core", "alloc":
		// Standard library, not a graph dependency.
	default:
		s.builder.addExternalImport(segments[0], graph.EdgeImports, graph.ConfidenceHigh, loc, "external crate")
	}
	return true
}

// handleMod turns `mod foo;` into a relative import of foo.rs / foo/mod.rs.
func (s *rustFileState) handleMod(ctx *walkContext, node *sitter.Node) bool {
	// Inline `mod foo { ... }` declares, not imports.
	if ctx.FirstChildOfKind(node, "declaration_list") != nil {
		s.builder.noteLocalDefinition()
		return false
	}
	name := ctx.ChildText(node, "identifier")
	if name == "" {
		return true
	}
	s.builder.addImport("./"+name, graph.EdgeImports, graph.ConfidenceHigh, ctx.Location(node), "mod declaration")
	return true
}

func (s *rustFileState) handleFunction(ctx *walkContext, node *sitter.Node) bool {
	name := ctx.ChildText(node, "identifier")
	if name == "" {
		return false
	}
	s.builder.noteLocalDefinition()
	if name == "main" {
		s.hasMain = true
	}
	if isRustPublic(ctx, node) {
		s.builder.addExport(name)
	}
	return false
}

func (s *rustFileState) handleNamedItem(ctx *walkContext, node *sitter.Node) bool {
	name := ctx.ChildText(node, "type_identifier")
	if name == "" {
		name = ctx.ChildText(node, "identifier")
	}
	if name == "" {
		return false
	}
	s.builder.noteLocalDefinition()
	if isRustPublic(ctx, node) {
		s.builder.addExport(name)
	}
	return false
}

func isRustPublic(ctx *walkContext, node *sitter.Node) bool {
	return ctx.FirstChildOfKind(node, "visibility_modifier") != nil
}
