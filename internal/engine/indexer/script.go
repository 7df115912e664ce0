package indexer

import (
	"bytes"
	"path/filepath"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"codegraph/internal/engine/graph"
)

// ScriptIndexer covers the JavaScript/TypeScript family: static imports,
// CommonJS require, dynamic import(), re-export chains (barrels), and
// framework registration hints.
type ScriptIndexer struct {
	env *Env
}

func NewScriptIndexer(env *Env) *ScriptIndexer { return &ScriptIndexer{env: env} }

func (ix *ScriptIndexer) Language() string { return "javascript" }

func (ix *ScriptIndexer) Supports(filePath string) bool {
	return hasExtension(filePath, ".js", ".jsx", ".mjs", ".cjs", ".ts", ".tsx", ".mts", ".cts")
}

func grammarForScript(filePath string) *grammar {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".ts", ".mts", ".cts":
		return grammars["typescript"]
	case ".tsx":
		return grammars["tsx"]
	default:
		return grammars["javascript"]
	}
}

func scriptLanguage(filePath string) string {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".ts", ".tsx", ".mts", ".cts":
		return "typescript"
	default:
		return "javascript"
	}
}

func (ix *ScriptIndexer) IndexFile(filePath string, content []byte) (Result, error) {
	lang := scriptLanguage(filePath)
	tree, release := grammarForScript(filePath).parse(content)
	defer release()
	if tree == nil {
		return fileOnlyResult(filePath, lang, "parse failed"), nil
	}

	b := newFileBuilder(ix.env, filePath, lang)
	ctx := &walkContext{source: content, path: filePath, builder: b}

	state := &scriptFileState{builder: b, hints: ix.env.hintsFor("javascript")}
	engine := newWalkEngine(map[string]NodeHandler{
		"import_statement":     state.handleImport,
		"export_statement":     state.handleExport,
		"call_expression":      state.handleCall,
		"function_declaration": state.handleDefinition,
		"class_declaration":    state.handleDefinition,
		"lexical_declaration":  state.handleLexical,
		"variable_declaration": state.handleLexical,
	})
	engine.Walk(ctx, tree.RootNode())

	if bytes.HasPrefix(content, []byte("#!")) {
		b.addEntrypoint(filepath.Base(filePath), "script")
	}

	return b.finish(), nil
}

type scriptFileState struct {
	builder *fileBuilder
	hints   []EntrypointHint
}

// handleImport covers `import x from "./a"` and bare `import "./a"`.
func (s *scriptFileState) handleImport(ctx *walkContext, node *sitter.Node) bool {
	source := ctx.FirstChildOfKind(node, "string")
	if source == nil {
		return true
	}
	spec := unquote(ctx.Text(source))
	s.builder.addImport(spec, graph.EdgeImports, graph.ConfidenceHigh, ctx.Location(node), "static import")
	return true
}

// handleExport distinguishes re-exports (with a source string) from local
// exported declarations.
func (s *scriptFileState) handleExport(ctx *walkContext, node *sitter.Node) bool {
	if source := ctx.FirstChildOfKind(node, "string"); source != nil {
		spec := unquote(ctx.Text(source))
		s.builder.addImport(spec, graph.EdgeReexports, graph.ConfidenceHigh, ctx.Location(node), "re-export")
		s.recordReexportNames(ctx, node)
		return true
	}

	s.builder.noteLocalDefinition()
	s.recordExportedDeclaration(ctx, node)
	return false
}

func (s *scriptFileState) recordReexportNames(ctx *walkContext, node *sitter.Node) {
	clause := ctx.FirstChildOfKind(node, "export_clause")
	if clause == nil {
		// `export * from "./x"`
		s.builder.addExport("*")
		return
	}
	for i := uint(0); i < clause.ChildCount(); i++ {
		spec := clause.Child(i)
		if spec.Kind() != "export_specifier" {
			continue
		}
		name := ctx.ChildText(spec, "identifier")
		if name == "" {
			name = ctx.Text(spec)
		}
		s.builder.addExport(name)
	}
}

func (s *scriptFileState) recordExportedDeclaration(ctx *walkContext, node *sitter.Node) {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		switch child.Kind() {
		case "function_declaration", "class_declaration", "generator_function_declaration":
			if name := ctx.ChildText(child, "identifier"); name != "" {
				s.builder.addExport(name)
			}
		case "lexical_declaration", "variable_declaration":
			for j := uint(0); j < child.ChildCount(); j++ {
				decl := child.Child(j)
				if decl.Kind() == "variable_declarator" {
					if name := ctx.ChildText(decl, "identifier"); name != "" {
						s.builder.addExport(name)
					}
				}
			}
		case "export_clause":
			for j := uint(0); j < child.ChildCount(); j++ {
				spec := child.Child(j)
				if spec.Kind() == "export_specifier" {
					if name := ctx.ChildText(spec, "identifier"); name != "" {
						s.builder.addExport(name)
					}
				}
			}
		case "default":
			s.builder.addExport("default")
		}
	}
}

// handleCall covers require(), dynamic import(), and registration hints.
func (s *scriptFileState) handleCall(ctx *walkContext, node *sitter.Node) bool {
	callee := node.Child(0)
	if callee == nil {
		return false
	}
	calleeText := ctx.Text(callee)
	args := ctx.FirstChildOfKind(node, "arguments")

	switch {
	case calleeText == "require" || callee.Kind() == "import":
		s.handleDynamicTarget(ctx, node, args, calleeText)
		return true
	default:
		s.matchHints(ctx, node, calleeText, args)
	}
	return false
}

func (s *scriptFileState) handleDynamicTarget(ctx *walkContext, node *sitter.Node, args *sitter.Node, callee string) {
	loc := ctx.Location(node)
	if args == nil {
		s.builder.addDynamicUnknown(ctx.Text(node), loc)
		return
	}
	if str := ctx.FirstChildOfKind(args, "string"); str != nil {
		conf := graph.ConfidenceMedium
		reason := "dynamic import with literal specifier"
		if callee == "require" {
			conf = graph.ConfidenceHigh
			reason = "require with literal specifier"
		}
		s.builder.addImport(unquote(ctx.Text(str)), graph.EdgeImports, conf, loc, reason)
		return
	}
	s.builder.addDynamicUnknown(ctx.Text(node), loc)
}

// matchHints emits entrypoint nodes and registers edges for configured
// framework registration patterns.
func (s *scriptFileState) matchHints(ctx *walkContext, node *sitter.Node, calleeText string, args *sitter.Node) {
	for _, hint := range s.hints {
		if !calleeMatches(calleeText, hint.Pattern) {
			continue
		}
		s.builder.addEntrypoint(calleeText, hint.Kind)
		if args != nil {
			if str := ctx.FirstChildOfKind(args, "string"); str != nil {
				spec := unquote(ctx.Text(str))
				if strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../") {
					s.builder.addImport(spec, graph.EdgeRegisters, graph.ConfidenceMedium, ctx.Location(node), "registration hint "+hint.Pattern)
				}
			}
		}
		return
	}
}

func calleeMatches(callee, pattern string) bool {
	if callee == pattern {
		return true
	}
	// "app.listen" should also match "server.app.listen".
	return strings.HasSuffix(callee, "."+pattern)
}

func (s *scriptFileState) handleDefinition(ctx *walkContext, node *sitter.Node) bool {
	s.builder.noteLocalDefinition()
	return false
}

func (s *scriptFileState) handleLexical(ctx *walkContext, node *sitter.Node) bool {
	// Only top-level declarations count as local definitions for barrel
	// detection; nested ones are noise either way.
	parent := node.Parent()
	if parent != nil && parent.Kind() == "program" {
		s.builder.noteLocalDefinition()
	}
	return false
}
