package indexer

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"codegraph/internal/engine/graph"
)

// PythonIndexer extracts imports (absolute and relative), public definitions,
// and `if __name__ == "__main__"` entrypoints.
type PythonIndexer struct {
	env *Env
}

func NewPythonIndexer(env *Env) *PythonIndexer { return &PythonIndexer{env: env} }

func (ix *PythonIndexer) Language() string { return "python" }

func (ix *PythonIndexer) Supports(filePath string) bool {
	return hasExtension(filePath, ".py", ".pyi")
}

func (ix *PythonIndexer) IndexFile(filePath string, content []byte) (Result, error) {
	tree, release := grammars["python"].parse(content)
	defer release()
	if tree == nil {
		return fileOnlyResult(filePath, "python", "parse failed"), nil
	}

	b := newFileBuilder(ix.env, filePath, "python")
	ctx := &walkContext{source: content, path: filePath, builder: b}

	state := &pythonFileState{builder: b, hints: ix.env.hintsFor("python")}
	engine := newWalkEngine(map[string]NodeHandler{
		"import_statement":      state.handleImport,
		"import_from_statement": state.handleImportFrom,
		"function_definition":   state.handleDefinition,
		"class_definition":      state.handleDefinition,
		"if_statement":          state.handleIf,
		"decorator":             state.handleDecorator,
		"call":                  state.handleCall,
	})
	engine.Walk(ctx, tree.RootNode())

	return b.finish(), nil
}

type pythonFileState struct {
	builder *fileBuilder
	hints   []EntrypointHint
	aliases map[string]string // local name -> target node ID
}

// handleImport covers `import a.b` and `import a.b as c`.
func (s *pythonFileState) handleImport(ctx *walkContext, node *sitter.Node) bool {
	loc := ctx.Location(node)
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		switch child.Kind() {
		case "dotted_name":
			s.addAbsoluteImport(ctx.Text(child), ctx.Text(child), loc)
		case "aliased_import":
			name := ctx.ChildText(child, "dotted_name")
			alias := ctx.ChildText(child, "identifier")
			if alias == "" {
				alias = name
			}
			s.addAbsoluteImport(name, alias, loc)
		}
	}
	return true
}

// handleImportFrom covers `from a.b import c` and `from ..a import b`.
func (s *pythonFileState) handleImportFrom(ctx *walkContext, node *sitter.Node) bool {
	loc := ctx.Location(node)

	if rel := ctx.FirstChildOfKind(node, "relative_import"); rel != nil {
		dots := strings.Count(ctx.ChildText(rel, "import_prefix"), ".")
		target := strings.ReplaceAll(ctx.ChildText(rel, "dotted_name"), ".", "/")
		spec := relativeSpec(dots, target)
		s.builder.addImport(spec, graph.EdgeImports, graph.ConfidenceHigh, loc, "static import")
		return true
	}

	if module := ctx.FirstChildOfKind(node, "dotted_name"); module != nil {
		s.addAbsoluteImport(ctx.Text(module), "", loc)
	}
	return true
}

// relativeSpec turns Python relative-import dots into a path specifier:
// one dot is the current package, each extra dot climbs one level.
func relativeSpec(dots int, target string) string {
	prefix := "./"
	for i := 1; i < dots; i++ {
		if i == 1 {
			prefix = "../"
		} else {
			prefix += "../"
		}
	}
	if target == "" {
		return strings.TrimSuffix(prefix, "/")
	}
	return prefix + target
}

func (s *pythonFileState) addAbsoluteImport(module, alias string, loc graph.Location) {
	if module == "" {
		return
	}
	spec := strings.ReplaceAll(module, ".", "/")
	res := s.builder.env.Resolver.ResolveRoot(spec)
	s.builder.appendResolved(res, module, graph.EdgeImports, graph.ConfidenceHigh, loc, "static import")

	if alias != "" {
		if s.aliases == nil {
			s.aliases = make(map[string]string)
		}
		s.aliases[strings.Split(alias, ".")[0]] = res.ID
	}
}

func (s *pythonFileState) handleDefinition(ctx *walkContext, node *sitter.Node) bool {
	name := ctx.ChildText(node, "identifier")
	if name == "" {
		return false
	}
	s.builder.noteLocalDefinition()
	// Toplevel public names double as the file's export surface.
	if parent := node.Parent(); parent != nil && parent.Kind() == "module" && !strings.HasPrefix(name, "_") {
		s.builder.addExport(name)
	}
	return false
}

// handleIf detects the `if __name__ == "__main__":` entrypoint guard.
func (s *pythonFileState) handleIf(ctx *walkContext, node *sitter.Node) bool {
	cond := ctx.FirstChildOfKind(node, "comparison_operator")
	if cond == nil {
		return false
	}
	text := ctx.Text(cond)
	if strings.Contains(text, "__name__") && strings.Contains(text, "__main__") {
		s.builder.addEntrypoint("__main__", "main")
	}
	return false
}

// handleDecorator matches registration hints on decorators, e.g.
// `@app.route("/users")`.
func (s *pythonFileState) handleDecorator(ctx *walkContext, node *sitter.Node) bool {
	call := ctx.FirstChildOfKind(node, "call")
	if call == nil {
		return false
	}
	callee := ctx.Text(call.Child(0))
	for _, hint := range s.hints {
		if calleeMatches(callee, hint.Pattern) {
			s.builder.addEntrypoint(callee, hint.Kind)
			return true
		}
	}
	return false
}

// handleCall emits calls edges for attribute calls rooted at an imported
// module alias, plus registration hints.
func (s *pythonFileState) handleCall(ctx *walkContext, node *sitter.Node) bool {
	attr := ctx.FirstChildOfKind(node, "attribute")
	if attr == nil {
		return false
	}
	calleeText := ctx.Text(attr)

	for _, hint := range s.hints {
		if calleeMatches(calleeText, hint.Pattern) {
			s.builder.addEntrypoint(calleeText, hint.Kind)
			return false
		}
	}

	base := ctx.ChildText(attr, "identifier")
	targetID, ok := s.aliases[base]
	if !ok {
		return false
	}
	s.builder.res.Edges = append(s.builder.res.Edges, graph.GraphEdge{
		From:       s.builder.fileID(),
		To:         targetID,
		Kind:       graph.EdgeCalls,
		Confidence: graph.ConfidenceMedium,
		Reason:     "qualified call",
		Specifier:  calleeText,
		Location:   ctx.Location(node),
	})
	return false
}
