package indexer

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"codegraph/internal/engine/graph"
)

// HTMLIndexer extracts script src and stylesheet href references.
type HTMLIndexer struct {
	env *Env
}

func NewHTMLIndexer(env *Env) *HTMLIndexer { return &HTMLIndexer{env: env} }

func (ix *HTMLIndexer) Language() string { return "html" }

func (ix *HTMLIndexer) Supports(filePath string) bool {
	return hasExtension(filePath, ".html", ".htm")
}

func (ix *HTMLIndexer) IndexFile(filePath string, content []byte) (Result, error) {
	tree, release := grammars["html"].parse(content)
	defer release()
	if tree == nil {
		return fileOnlyResult(filePath, "html", "parse failed"), nil
	}

	b := newFileBuilder(ix.env, filePath, "html")
	ctx := &walkContext{source: content, path: filePath, builder: b}

	engine := newWalkEngine(map[string]NodeHandler{
		"attribute": func(ctx *walkContext, node *sitter.Node) bool {
			name := ctx.ChildText(node, "attribute_name")
			if name != "src" && name != "href" {
				return true
			}
			value := ctx.ChildText(node, "quoted_attribute_value")
			spec := unquote(value)
			if !isLocalAssetRef(spec) {
				return true
			}
			conf := graph.ConfidenceHigh
			if name == "href" {
				conf = graph.ConfidenceMedium
			}
			b.addImport(normalizeAssetRef(spec), graph.EdgeImports, conf, ctx.Location(node), name+" attribute")
			return true
		},
	})
	engine.Walk(ctx, tree.RootNode())

	return b.finish(), nil
}

// isLocalAssetRef filters out absolute URLs, anchors, and data URIs.
func isLocalAssetRef(spec string) bool {
	if spec == "" || strings.HasPrefix(spec, "#") {
		return false
	}
	for _, prefix := range []string{"http://", "https://", "//", "data:", "mailto:", "javascript:"} {
		if strings.HasPrefix(spec, prefix) {
			return false
		}
	}
	return strings.Contains(spec, ".")
}

func normalizeAssetRef(spec string) string {
	spec = strings.TrimPrefix(spec, "/")
	if !strings.HasPrefix(spec, "./") && !strings.HasPrefix(spec, "../") {
		spec = "./" + spec
	}
	return spec
}

// CSSIndexer extracts @import statements.
type CSSIndexer struct {
	env *Env
}

func NewCSSIndexer(env *Env) *CSSIndexer { return &CSSIndexer{env: env} }

func (ix *CSSIndexer) Language() string { return "css" }

func (ix *CSSIndexer) Supports(filePath string) bool {
	return hasExtension(filePath, ".css", ".scss", ".less")
}

func (ix *CSSIndexer) IndexFile(filePath string, content []byte) (Result, error) {
	tree, release := grammars["css"].parse(content)
	defer release()
	if tree == nil {
		return fileOnlyResult(filePath, "css", "parse failed"), nil
	}

	b := newFileBuilder(ix.env, filePath, "css")
	ctx := &walkContext{source: content, path: filePath, builder: b}

	engine := newWalkEngine(map[string]NodeHandler{
		"import_statement": func(ctx *walkContext, node *sitter.Node) bool {
			spec := unquote(ctx.ChildText(node, "string_value"))
			if spec == "" {
				if call := ctx.FirstChildOfKind(node, "call_expression"); call != nil {
					if args := ctx.FirstChildOfKind(call, "arguments"); args != nil {
						spec = unquote(ctx.ChildText(args, "string_value"))
					}
				}
			}
			if spec == "" || !isLocalAssetRef(spec) {
				return true
			}
			b.addImport(normalizeAssetRef(spec), graph.EdgeImports, graph.ConfidenceHigh, ctx.Location(node), "@import")
			return true
		},
	})
	engine.Walk(ctx, tree.RootNode())

	return b.finish(), nil
}
