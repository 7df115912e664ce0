package indexer

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"codegraph/internal/engine/graph"
)

// JavaIndexer extracts import declarations and main-method entrypoints.
type JavaIndexer struct {
	env *Env
}

func NewJavaIndexer(env *Env) *JavaIndexer { return &JavaIndexer{env: env} }

func (ix *JavaIndexer) Language() string { return "java" }

func (ix *JavaIndexer) Supports(filePath string) bool {
	return hasExtension(filePath, ".java")
}

func (ix *JavaIndexer) IndexFile(filePath string, content []byte) (Result, error) {
	tree, release := grammars["java"].parse(content)
	defer release()
	if tree == nil {
		return fileOnlyResult(filePath, "java", "parse failed"), nil
	}

	b := newFileBuilder(ix.env, filePath, "java")
	ctx := &walkContext{source: content, path: filePath, builder: b}

	state := &javaFileState{builder: b}
	engine := newWalkEngine(map[string]NodeHandler{
		"import_declaration": state.handleImport,
		"class_declaration":  state.handleClass,
		"method_declaration": state.handleMethod,
	})
	engine.Walk(ctx, tree.RootNode())

	if state.hasMain {
		b.addEntrypoint("main", "main")
	}
	return b.finish(), nil
}

type javaFileState struct {
	builder *fileBuilder
	hasMain bool
}

func (s *javaFileState) handleImport(ctx *walkContext, node *sitter.Node) bool {
	name := ctx.ChildText(node, "scoped_identifier")
	if name == "" {
		name = ctx.ChildText(node, "identifier")
	}
	if name == "" {
		return true
	}
	// Classpath imports resolve root-relative when the source lives in the
	// tree (src-rooted layouts); everything else is an external package.
	spec := strings.ReplaceAll(name, ".", "/")
	res := s.builder.env.Resolver.ResolveRoot(spec)
	s.builder.appendResolved(res, name, graph.EdgeImports, graph.ConfidenceHigh, ctx.Location(node), "static import")
	return true
}

func (s *javaFileState) handleClass(ctx *walkContext, node *sitter.Node) bool {
	name := ctx.ChildText(node, "identifier")
	if name == "" {
		return false
	}
	s.builder.noteLocalDefinition()
	s.builder.addExport(name)
	return false
}

func (s *javaFileState) handleMethod(ctx *walkContext, node *sitter.Node) bool {
	if ctx.ChildText(node, "identifier") == "main" {
		modifiers := ctx.ChildText(node, "modifiers")
		if strings.Contains(modifiers, "static") {
			s.hasMain = true
		}
	}
	return false
}
