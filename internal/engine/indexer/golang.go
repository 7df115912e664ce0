package indexer

import (
	"path"
	"strings"
	"unicode"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"codegraph/internal/engine/graph"
)

// GoIndexer extracts imports, exports, and main entrypoints from Go sources.
//
// Go packages aggregate their files the way barrels aggregate re-exports: the
// indexer emits a module node for the file's own package directory plus a
// reexports edge from that module to the file, so package-level imports and
// file-level impact connect through the module node.
type GoIndexer struct {
	env *Env
}

func NewGoIndexer(env *Env) *GoIndexer { return &GoIndexer{env: env} }

func (ix *GoIndexer) Language() string { return "go" }

func (ix *GoIndexer) Supports(filePath string) bool {
	return hasExtension(filePath, ".go")
}

func (ix *GoIndexer) IndexFile(filePath string, content []byte) (Result, error) {
	tree, release := grammars["go"].parse(content)
	defer release()
	if tree == nil {
		return fileOnlyResult(filePath, "go", "parse failed"), nil
	}

	b := newFileBuilder(ix.env, filePath, "go")
	ctx := &walkContext{source: content, path: filePath, builder: b}

	state := &goFileState{builder: b, env: ix.env}
	engine := newWalkEngine(map[string]NodeHandler{
		"package_clause":       state.handlePackage,
		"import_spec":          state.handleImportSpec,
		"function_declaration": state.handleFunction,
		"method_declaration":   state.handleMethod,
		"type_declaration":     state.handleTypeDecl,
		"const_declaration":    state.handleValueDecl,
		"var_declaration":      state.handleValueDecl,
		"call_expression":      state.handleCall,
	})
	engine.Walk(ctx, tree.RootNode())

	// Aggregate the file into its package module node.
	pkgDir := path.Dir(b.path)
	if pkgDir != "." && pkgDir != "" {
		moduleID := graph.ModuleID(pkgDir)
		b.res.Nodes = append(b.res.Nodes, graph.GraphNode{
			ID:   moduleID,
			Kind: graph.NodeModule,
			Name: state.packageName,
			Path: pkgDir,
			Meta: graph.NodeMeta{Language: "go"},
		})
		b.res.Edges = append(b.res.Edges, graph.GraphEdge{
			From:       moduleID,
			To:         b.fileID(),
			Kind:       graph.EdgeReexports,
			Confidence: graph.ConfidenceHigh,
			Reason:     "package member",
			Location:   graph.Location{File: b.path},
		})
	}

	if state.packageName == "main" && state.hasMainFunc {
		b.addEntrypoint("main", "main")
	}

	return b.finish(), nil
}

type goFileState struct {
	builder     *fileBuilder
	env         *Env
	packageName string
	hasMainFunc bool
	pkgAliases  map[string]string // local name -> target node ID
}

func (s *goFileState) handlePackage(ctx *walkContext, node *sitter.Node) bool {
	s.packageName = ctx.ChildText(node, "package_identifier")
	return true
}

func (s *goFileState) handleImportSpec(ctx *walkContext, node *sitter.Node) bool {
	pathNode := ctx.FirstChildOfKind(node, "interpreted_string_literal")
	if pathNode == nil {
		pathNode = ctx.FirstChildOfKind(node, "raw_string_literal")
	}
	if pathNode == nil {
		return true
	}
	importPath := unquote(ctx.Text(pathNode))
	if importPath == "" {
		return true
	}

	alias := ctx.ChildText(node, "package_identifier")
	if alias == "" {
		alias = ctx.ChildText(node, "blank_identifier")
	}
	loc := ctx.Location(node)

	prefix := s.env.GoModulePrefix
	var targetID string
	if prefix != "" && (importPath == prefix || strings.HasPrefix(importPath, prefix+"/")) {
		rel := strings.TrimPrefix(strings.TrimPrefix(importPath, prefix), "/")
		if rel == "" {
			rel = "."
		}
		s.builder.addDirImport(rel, path.Base(importPath), graph.EdgeImports, graph.ConfidenceHigh, loc, "static import")
		targetID = graph.ModuleID(rel)
	} else {
		s.builder.addExternalImport(importPath, graph.EdgeImports, graph.ConfidenceHigh, loc, "static import")
		targetID = graph.ModuleID(importPath)
	}

	if s.pkgAliases == nil {
		s.pkgAliases = make(map[string]string)
	}
	name := alias
	if name == "" {
		name = path.Base(importPath)
	}
	s.pkgAliases[name] = targetID
	return true
}

func (s *goFileState) handleFunction(ctx *walkContext, node *sitter.Node) bool {
	name := ctx.ChildText(node, "identifier")
	if name == "" {
		return false
	}
	s.builder.noteLocalDefinition()
	if name == "main" {
		s.hasMainFunc = true
	}
	if isExportedGoName(name) {
		s.builder.addExport(name)
	}
	return false
}

func (s *goFileState) handleMethod(ctx *walkContext, node *sitter.Node) bool {
	name := ctx.ChildText(node, "field_identifier")
	if name == "" {
		return false
	}
	s.builder.noteLocalDefinition()
	if isExportedGoName(name) {
		s.builder.addExport(name)
	}
	return false
}

func (s *goFileState) handleTypeDecl(ctx *walkContext, node *sitter.Node) bool {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child.Kind() != "type_spec" {
			continue
		}
		name := ctx.ChildText(child, "type_identifier")
		if name == "" {
			continue
		}
		s.builder.noteLocalDefinition()
		if isExportedGoName(name) {
			s.builder.addExport(name)
		}
	}
	return false
}

func (s *goFileState) handleValueDecl(ctx *walkContext, node *sitter.Node) bool {
	for i := uint(0); i < node.ChildCount(); i++ {
		spec := node.Child(i)
		if spec.Kind() != "const_spec" && spec.Kind() != "var_spec" {
			continue
		}
		name := ctx.ChildText(spec, "identifier")
		if name == "" {
			continue
		}
		s.builder.noteLocalDefinition()
		if isExportedGoName(name) {
			s.builder.addExport(name)
		}
	}
	return false
}

// handleCall emits a calls edge when the callee is a selector rooted at an
// imported package name. Name matching only, hence medium confidence.
func (s *goFileState) handleCall(ctx *walkContext, node *sitter.Node) bool {
	sel := ctx.FirstChildOfKind(node, "selector_expression")
	if sel == nil || len(s.pkgAliases) == 0 {
		return false
	}
	base := ctx.ChildText(sel, "identifier")
	targetID, ok := s.pkgAliases[base]
	if !ok {
		return false
	}
	s.builder.res.Edges = append(s.builder.res.Edges, graph.GraphEdge{
		From:       s.builder.fileID(),
		To:         targetID,
		Kind:       graph.EdgeCalls,
		Confidence: graph.ConfidenceMedium,
		Reason:     "qualified call",
		Specifier:  ctx.Text(sel),
		Location:   ctx.Location(node),
	})
	return false
}

func isExportedGoName(name string) bool {
	for _, r := range name {
		return unicode.IsUpper(r)
	}
	return false
}
