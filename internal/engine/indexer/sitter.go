package indexer

import (
	"sync"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_css "github.com/tree-sitter/tree-sitter-css/bindings/go"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_html "github.com/tree-sitter/tree-sitter-html/bindings/go"
	tree_sitter_java "github.com/tree-sitter/tree-sitter-java/bindings/go"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	"codegraph/internal/engine/graph"
)

// grammar lazily binds one tree-sitter language and recycles parser
// instances for it. Grammar data is only loaded on first use.
type grammar struct {
	load func() *sitter.Language

	once sync.Once
	lang *sitter.Language
	pool sync.Pool
}

func (g *grammar) init() {
	g.once.Do(func() {
		g.lang = g.load()
		g.pool = sync.Pool{
			New: func() any {
				p := sitter.NewParser()
				p.SetLanguage(g.lang)
				return p
			},
		}
	})
}

// parse returns the syntax tree for content, or nil when parsing fails.
// The caller must invoke the returned release func when done with the tree.
func (g *grammar) parse(content []byte) (*sitter.Tree, func()) {
	g.init()
	p := g.pool.Get().(*sitter.Parser)
	p.SetLanguage(g.lang)
	tree := p.Parse(content, nil)
	release := func() {
		if tree != nil {
			tree.Close()
		}
		p.Reset()
		g.pool.Put(p)
	}
	return tree, release
}

var grammars = map[string]*grammar{
	"go":         {load: func() *sitter.Language { return sitter.NewLanguage(tree_sitter_go.Language()) }},
	"javascript": {load: func() *sitter.Language { return sitter.NewLanguage(tree_sitter_javascript.Language()) }},
	"typescript": {load: func() *sitter.Language { return sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript()) }},
	"tsx":        {load: func() *sitter.Language { return sitter.NewLanguage(tree_sitter_typescript.LanguageTSX()) }},
	"python":     {load: func() *sitter.Language { return sitter.NewLanguage(tree_sitter_python.Language()) }},
	"java":       {load: func() *sitter.Language { return sitter.NewLanguage(tree_sitter_java.Language()) }},
	"rust":       {load: func() *sitter.Language { return sitter.NewLanguage(tree_sitter_rust.Language()) }},
	"html":       {load: func() *sitter.Language { return sitter.NewLanguage(tree_sitter_html.Language()) }},
	"css":        {load: func() *sitter.Language { return sitter.NewLanguage(tree_sitter_css.Language()) }},
}

// NodeHandler processes a node for a language-specific extractor.
// Returns true when the handler has consumed the node and the walker should
// not descend into its children.
type NodeHandler func(ctx *walkContext, node *sitter.Node) bool

// walkContext carries shared state/helpers used by all extractors.
type walkContext struct {
	source  []byte
	path    string
	builder *fileBuilder
}

// walkEngine walks the syntax tree and dispatches node handlers by kind.
type walkEngine struct {
	handlers map[string]NodeHandler
}

func newWalkEngine(handlers map[string]NodeHandler) *walkEngine {
	return &walkEngine{handlers: handlers}
}

func (e *walkEngine) Walk(ctx *walkContext, node *sitter.Node) {
	if node == nil {
		return
	}

	stop := false
	if handler, ok := e.handlers[node.Kind()]; ok {
		stop = handler(ctx, node)
	}
	if stop {
		return
	}

	for i := uint(0); i < node.ChildCount(); i++ {
		e.Walk(ctx, node.Child(i))
	}
}

func (c *walkContext) Text(node *sitter.Node) string {
	if node == nil {
		return ""
	}
	return string(c.source[node.StartByte():node.EndByte()])
}

func (c *walkContext) Location(node *sitter.Node) graph.Location {
	return graph.Location{
		File:   c.path,
		Line:   int(node.StartPosition().Row) + 1,
		Column: int(node.StartPosition().Column) + 1,
	}
}

// ChildText returns the text of the first child with the given kind.
func (c *walkContext) ChildText(node *sitter.Node, kind string) string {
	if node == nil {
		return ""
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child.Kind() == kind {
			return c.Text(child)
		}
	}
	return ""
}

// FirstChildOfKind returns the first child node with the given kind.
func (c *walkContext) FirstChildOfKind(node *sitter.Node, kind string) *sitter.Node {
	if node == nil {
		return nil
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child.Kind() == kind {
			return child
		}
	}
	return nil
}

// unquote strips matching string-literal quotes from a specifier.
func unquote(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') || (first == '`' && last == '`') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
