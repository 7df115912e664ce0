package indexer

import (
	"path/filepath"
	"strings"

	"codegraph/internal/engine/graph"
	"codegraph/internal/engine/resolver"
)

// IndexError records one recoverable per-file indexing failure. Failures
// never abort a batch; the file degrades to a file-node-only result.
type IndexError struct {
	Path    string
	Message string
}

// Result is what one indexer produces for one file. Edge targets are already
// resolved to canonical node identities.
type Result struct {
	Nodes  []graph.GraphNode
	Edges  []graph.GraphEdge
	Errors []IndexError
}

// Indexer turns one source file into nodes and edges. Implementations are
// pure: no I/O, no shared mutable state, safe for concurrent use.
type Indexer interface {
	Language() string
	Supports(path string) bool
	IndexFile(path string, content []byte) (Result, error)
}

// EntrypointHint teaches indexers a framework registration pattern: a call
// whose callee matches Pattern marks the file as an entrypoint of Kind and,
// when the call carries a resolvable string argument, yields a registers edge.
type EntrypointHint struct {
	Language string
	Pattern  string // callee text, e.g. "app.listen", "router.register"
	Kind     string // route, job, server
}

// Env carries the shared backends indexers need: the path resolver built for
// the current file set and the configured framework hints. One Env is
// constructed per index pass and threaded through the registry constructor.
type Env struct {
	Resolver       *resolver.Resolver
	Hints          []EntrypointHint
	GoModulePrefix string // module path from go.mod, for module-local imports
}

func (e *Env) hintsFor(language string) []EntrypointHint {
	var out []EntrypointHint
	for _, h := range e.Hints {
		if h.Language == "" || h.Language == language {
			out = append(out, h)
		}
	}
	return out
}

// Registry dispatches files to indexers. New languages register an
// implementation without modifying the dispatcher; unmatched files fall back
// to the generic text indexer.
type Registry struct {
	indexers []Indexer
	fallback Indexer
}

// NewRegistry builds the default indexer set bound to env.
func NewRegistry(env *Env) *Registry {
	r := &Registry{fallback: NewGenericIndexer(env)}
	r.Register(NewGoIndexer(env))
	r.Register(NewScriptIndexer(env))
	r.Register(NewPythonIndexer(env))
	r.Register(NewJavaIndexer(env))
	r.Register(NewRustIndexer(env))
	r.Register(NewHTMLIndexer(env))
	r.Register(NewCSSIndexer(env))
	return r
}

func (r *Registry) Register(ix Indexer) {
	r.indexers = append(r.indexers, ix)
}

// ForFile returns the first indexer supporting the path, or the generic
// fallback.
func (r *Registry) ForFile(path string) Indexer {
	for _, ix := range r.indexers {
		if ix.Supports(path) {
			return ix
		}
	}
	return r.fallback
}

// Indexers returns the registered set including the fallback.
func (r *Registry) Indexers() []Indexer {
	out := append([]Indexer(nil), r.indexers...)
	return append(out, r.fallback)
}

func hasExtension(path string, exts ...string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

// fileBuilder accumulates one file's result and finalizes the file node.
type fileBuilder struct {
	env      *Env
	path     string
	language string

	res      Result
	exports  []string
	isBarrel bool
	epKind   string

	localDefs    int
	reexportOnly bool
}

func newFileBuilder(env *Env, path, language string) *fileBuilder {
	return &fileBuilder{env: env, path: path, language: language, reexportOnly: true}
}

func (b *fileBuilder) fileID() string { return graph.FileID(b.path) }

// addImport resolves spec and appends an edge of the given kind. External
// targets get a placeholder module node so invariant (a) holds.
func (b *fileBuilder) addImport(spec string, kind graph.EdgeKind, conf graph.Confidence, loc graph.Location, reason string) {
	res := b.env.Resolver.Resolve(spec, b.path)
	b.appendResolved(res, spec, kind, conf, loc, reason)
}

// addRootImport resolves spec against the project root (used for Go and
// Python absolute imports).
func (b *fileBuilder) addRootImport(spec string, kind graph.EdgeKind, conf graph.Confidence, loc graph.Location, reason string) {
	res := b.env.Resolver.ResolveRoot(spec)
	b.appendResolved(res, spec, kind, conf, loc, reason)
}

// addDirImport records a dependency on a package directory (Go-style).
func (b *fileBuilder) addDirImport(dir, name string, kind graph.EdgeKind, conf graph.Confidence, loc graph.Location, reason string) {
	res := b.env.Resolver.ResolveDir(dir)
	if res.Resolved {
		b.res.Nodes = append(b.res.Nodes, graph.GraphNode{
			ID:   res.ID,
			Kind: graph.NodeModule,
			Name: name,
			Path: res.Path,
		})
	}
	b.appendResolved(res, dir, kind, conf, loc, reason)
}

func (b *fileBuilder) appendResolved(res resolver.Resolution, spec string, kind graph.EdgeKind, conf graph.Confidence, loc graph.Location, reason string) {
	if res.External {
		b.res.Nodes = append(b.res.Nodes, graph.GraphNode{
			ID:   res.ID,
			Kind: graph.NodeModule,
			Name: strings.TrimPrefix(res.ID, string(graph.NodeModule)+":"),
		})
	}
	b.res.Edges = append(b.res.Edges, graph.GraphEdge{
		From:       b.fileID(),
		To:         res.ID,
		Kind:       kind,
		Confidence: conf,
		Reason:     reason,
		Specifier:  spec,
		Location:   loc,
	})
}

// addExternalImport records a dependency on an external package by name,
// bypassing path resolution.
func (b *fileBuilder) addExternalImport(name string, kind graph.EdgeKind, conf graph.Confidence, loc graph.Location, reason string) {
	b.appendResolved(resolver.Resolution{ID: graph.ModuleID(name), External: true}, name, kind, conf, loc, reason)
}

// addDynamicUnknown records an edge whose target specifier is not a literal
// and therefore cannot be resolved at all.
func (b *fileBuilder) addDynamicUnknown(raw string, loc graph.Location) {
	b.res.Edges = append(b.res.Edges, graph.GraphEdge{
		From:       b.fileID(),
		To:         graph.ModuleID("(dynamic)"),
		Kind:       graph.EdgeImports,
		Confidence: graph.ConfidenceLow,
		Reason:     "dynamic specifier is not a string literal",
		Specifier:  raw,
		Location:   loc,
	})
}

// addEntrypoint emits an entrypoint node for this file.
func (b *fileBuilder) addEntrypoint(name, kind string) {
	id := graph.NodeID(graph.NodeEntrypoint, b.path)
	b.res.Nodes = append(b.res.Nodes, graph.GraphNode{
		ID:   id,
		Kind: graph.NodeEntrypoint,
		Name: name,
		Path: b.path,
		Meta: graph.NodeMeta{EntrypointKind: kind},
	})
	// The entrypoint is reachable through its defining file.
	b.res.Edges = append(b.res.Edges, graph.GraphEdge{
		From:       id,
		To:         b.fileID(),
		Kind:       graph.EdgeCalls,
		Confidence: graph.ConfidenceHigh,
		Reason:     "entrypoint handler",
	})
	if b.epKind == "" {
		b.epKind = kind
	}
}

func (b *fileBuilder) addExport(name string) {
	if name == "" {
		return
	}
	b.exports = append(b.exports, name)
}

func (b *fileBuilder) noteLocalDefinition() {
	b.localDefs++
	b.reexportOnly = false
}

func (b *fileBuilder) addError(msg string) {
	b.res.Errors = append(b.res.Errors, IndexError{Path: b.path, Message: msg})
}

// finish prepends the file node and returns the accumulated result. A file
// that only re-exports and follows aggregator naming is flagged as a barrel.
func (b *fileBuilder) finish() Result {
	base := filepath.Base(b.path)
	reexports := 0
	for _, e := range b.res.Edges {
		if e.Kind == graph.EdgeReexports {
			reexports++
		}
	}
	if reexports > 0 && b.localDefs == 0 {
		b.isBarrel = true
	}

	fileNode := graph.GraphNode{
		ID:   b.fileID(),
		Kind: graph.NodeFile,
		Name: base,
		Path: b.path,
		Meta: graph.NodeMeta{
			Language:       b.language,
			Exports:        b.exports,
			IsBarrel:       b.isBarrel,
			EntrypointKind: b.epKind,
		},
	}
	nodes := make([]graph.GraphNode, 0, len(b.res.Nodes)+1)
	nodes = append(nodes, fileNode)
	nodes = append(nodes, b.res.Nodes...)
	b.res.Nodes = nodes
	return b.res
}

// fileOnlyResult is the degraded result used after a parse failure.
func fileOnlyResult(path, language, errMsg string) Result {
	return Result{
		Nodes: []graph.GraphNode{{
			ID:   graph.FileID(path),
			Kind: graph.NodeFile,
			Name: filepath.Base(path),
			Path: path,
			Meta: graph.NodeMeta{Language: language},
		}},
		Errors: []IndexError{{Path: path, Message: errMsg}},
	}
}
