package indexing

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"codegraph/internal/annotations"
	"codegraph/internal/core/config"
	"codegraph/internal/data/history"
	"codegraph/internal/engine/analysis"
	"codegraph/internal/engine/graph"
	"codegraph/internal/engine/indexer"
	"codegraph/internal/engine/resolver"
	"codegraph/internal/shared/observability"
	"codegraph/internal/shared/util"
)

// Builder orchestrates the full pipeline: discover files, index them in
// parallel, commit the graph atomically, run the analyzers, persist a history
// snapshot. It also owns the incremental apply path the watcher feeds.
type Builder struct {
	cfg         *config.Config
	store       *graph.Store
	annotations *annotations.Manager
	history     *history.Store
	discovery   *Discovery
	parallel    *ParallelIndexer
	limiter     *util.Limiter

	// files is the snapshot the current resolver was built from.
	files []string
}

func NewBuilder(cfg *config.Config, store *graph.Store, ann *annotations.Manager, hist *history.Store) (*Builder, error) {
	discovery, err := NewDiscovery(cfg)
	if err != nil {
		return nil, err
	}
	return &Builder{
		cfg:         cfg,
		store:       store,
		annotations: ann,
		history:     hist,
		discovery:   discovery,
		parallel:    NewParallelIndexer(cfg.Index.Workers, cfg.Index.BatchSize),
		limiter:     util.NewLimiter(cfg.Watch.AnalysisPerSecond, 1),
	}, nil
}

func (b *Builder) Discovery() *Discovery { return b.discovery }

// RebuildAll runs a full build. Readers of the store keep seeing the previous
// graph until the staged state commits.
func (b *Builder) RebuildAll(ctx context.Context) (Stats, error) {
	ctx, span := observability.Tracer.Start(ctx, "indexing.rebuild")
	defer span.End()
	start := time.Now()

	files, err := b.discovery.Files()
	if err != nil {
		return Stats{}, err
	}
	b.files = files
	span.SetAttributes(attribute.Int("files.discovered", len(files)))

	registry := b.newRegistry(files)
	results, stats := b.parallel.IndexAll(ctx, b.discovery.Root(), files, registry)
	if err := ctx.Err(); err != nil {
		return stats, err
	}

	build, err := b.store.BeginBuild()
	if err != nil {
		return stats, err
	}
	for _, result := range results {
		for _, node := range result.Nodes {
			build.AddNode(node)
		}
		for _, edge := range result.Edges {
			build.AddEdge(edge)
		}
	}
	b.mergeAnnotations(build)
	build.Commit(graph.Meta{
		LastIndexedAt:    time.Now().UTC(),
		Duration:         time.Since(start),
		FileCount:        stats.FileCount,
		ErrorCount:       stats.ErrorCount,
		SkippedGenerated: stats.SkippedGenerated,
	})

	cycleCount := b.runAnalysis(ctx)
	b.saveSnapshot(stats, cycleCount, time.Since(start))

	stats.Duration = time.Since(start)
	slog.Info("graph rebuilt",
		"files", stats.FileCount,
		"nodes", b.store.NodeCount(),
		"edges", b.store.EdgeCount(),
		"errors", stats.ErrorCount,
		"duration", stats.Duration)
	return stats, nil
}

func (b *Builder) newRegistry(files []string) *indexer.Registry {
	hints := make([]indexer.EntrypointHint, 0, len(b.cfg.Entrypoints.Hints))
	for _, h := range b.cfg.Entrypoints.Hints {
		hints = append(hints, indexer.EntrypointHint{
			Language: h.Language, Pattern: h.Pattern, Kind: h.Kind,
		})
	}
	env := &indexer.Env{
		Resolver:       resolver.New(files, b.cfg.Aliases),
		Hints:          hints,
		GoModulePrefix: GoModulePrefix(b.discovery.Root()),
	}
	return indexer.NewRegistry(env)
}

func (b *Builder) mergeAnnotations(build *graph.Build) {
	if b.annotations == nil {
		return
	}
	nodes, edges := b.annotations.GraphParts()
	for _, node := range nodes {
		build.AddNode(node)
	}
	for _, edge := range edges {
		build.AddEdge(edge)
	}
}

// ApplyChanges is the incremental path. Changed files are re-indexed with
// their owned nodes and outgoing edges replaced; deleted files are removed
// with every touching edge. Analyzers re-run after the batch.
func (b *Builder) ApplyChanges(ctx context.Context, paths []string) error {
	ctx, span := observability.Tracer.Start(ctx, "indexing.apply")
	defer span.End()
	span.SetAttributes(attribute.Int("files.changed", len(paths)))

	for _, rel := range paths {
		rel = util.NormalizePatternPath(rel)
		abs := filepath.Join(b.discovery.Root(), filepath.FromSlash(rel))
		info, err := os.Stat(abs)
		switch {
		case os.IsNotExist(err):
			if b.hasFile(rel) {
				if err := b.removeFile(rel); err != nil {
					return err
				}
				observability.IncrementalApplyTotal.WithLabelValues("delete").Inc()
			}
		case err != nil:
			slog.Warn("skipping changed file", "path", rel, "error", err)
		default:
			if !b.discovery.Accepts(rel, info.Size()) {
				continue
			}
			if !b.hasFile(rel) {
				b.files = append(b.files, rel)
			}
			if err := b.reindexFile(rel); err != nil {
				return err
			}
			observability.IncrementalApplyTotal.WithLabelValues("upsert").Inc()
		}
	}

	if err := b.restoreAnnotations(); err != nil {
		return err
	}
	if err := b.store.PruneDetachedModules(); err != nil {
		return err
	}

	// Throttle analyzer re-runs under event storms; the final batch always
	// lands because Wait blocks instead of dropping.
	if err := b.limiter.Wait(ctx, 1); err != nil {
		return err
	}
	b.runAnalysis(ctx)
	return nil
}

func (b *Builder) hasFile(rel string) bool {
	for _, f := range b.files {
		if f == rel {
			return true
		}
	}
	return false
}

// removeFile drops the file from the graph and the tracked file set, then
// re-indexes every file that imported it. Importer specifiers re-resolve
// against the shrunken file set, so an identity that only existed through
// extension or index probing (import "./b" against b.ts) collapses to the
// same unresolved identity a full rebuild without the file produces.
func (b *Builder) removeFile(rel string) error {
	importers := b.importersOf(rel)
	if err := b.store.RemoveFile(rel); err != nil {
		return err
	}
	kept := b.files[:0]
	for _, f := range b.files {
		if f != rel {
			kept = append(kept, f)
		}
	}
	b.files = kept

	for _, importer := range importers {
		if !b.hasFile(importer) {
			continue
		}
		if err := b.reindexFile(importer); err != nil {
			return err
		}
	}
	return nil
}

// importersOf lists the files whose indexing recorded an edge into rel's
// file node. Annotation edges carry no recording file and are skipped.
func (b *Builder) importersOf(rel string) []string {
	seen := make(map[string]bool)
	var importers []string
	for _, e := range b.store.IncomingEdges(graph.FileID(rel)) {
		from := e.Location.File
		if from == "" || from == rel || seen[from] {
			continue
		}
		seen[from] = true
		importers = append(importers, from)
	}
	sort.Strings(importers)
	return importers
}

// reindexFile replaces one file's owned graph slice: its outgoing edges, its
// entrypoint nodes, and its own node metadata. RemoveFile leaves incoming
// edges from other files in place, so references at the changed file survive
// the swap.
func (b *Builder) reindexFile(rel string) error {
	registry := b.newRegistry(b.files)

	if err := b.store.RemoveFile(rel); err != nil {
		return err
	}

	result, skipped := indexOne(b.discovery.Root(), rel, registry)
	if skipped {
		return nil
	}
	for _, node := range result.Nodes {
		if err := b.store.AddNode(node); err != nil {
			return err
		}
	}
	for _, edge := range result.Edges {
		if err := b.store.AddEdge(edge); err != nil {
			return err
		}
	}
	return nil
}

// restoreAnnotations re-adds manual graph parts a removal may have dropped.
// A full rebuild merges annotations unconditionally; the incremental path has
// to converge to the same graph.
func (b *Builder) restoreAnnotations() error {
	if b.annotations == nil {
		return nil
	}
	existing := make(map[string]bool)
	for _, edge := range b.store.AllEdges() {
		existing[edge.Key()] = true
	}
	nodes, edges := b.annotations.GraphParts()
	for _, node := range nodes {
		if _, ok := b.store.GetNode(node.ID); ok {
			continue
		}
		if err := b.store.AddNode(node); err != nil {
			return err
		}
	}
	for _, edge := range edges {
		if existing[edge.Key()] {
			continue
		}
		if err := b.store.AddEdge(edge); err != nil {
			return err
		}
	}
	return nil
}

// runAnalysis recomputes issues on the committed graph and returns the cycle
// count for history.
func (b *Builder) runAnalysis(ctx context.Context) int {
	_, span := observability.Tracer.Start(ctx, "analysis.run")
	defer span.End()

	var issues []graph.GraphIssue

	start := time.Now()
	detector := analysis.NewCycleDetector(b.store, analysis.DefaultErrorLength)
	cycles := detector.FindCycles(analysis.CycleOptions{})
	issues = append(issues, analysis.CycleIssues(b.store, cycles)...)
	observability.AnalysisDuration.WithLabelValues("cycles").Observe(time.Since(start).Seconds())

	start = time.Now()
	layerRules := make([]analysis.LayerRule, 0, len(b.cfg.Layers.Rules))
	for _, rule := range b.cfg.Layers.Rules {
		layerRules = append(layerRules, analysis.LayerRule{
			Name: rule.Name, From: rule.From, CannotImport: rule.CannotImport,
		})
	}
	if layers, err := analysis.NewLayerAnalyzer(b.store, layerRules); err == nil {
		issues = append(issues, analysis.LayerIssues(layers.Check())...)
	} else {
		slog.Warn("layer rules disabled", "error", err)
	}
	observability.AnalysisDuration.WithLabelValues("layers").Observe(time.Since(start).Seconds())

	start = time.Now()
	barrels := analysis.NewBarrelAnalyzer(b.store)
	if err := barrels.Apply(barrels.ResolveExports()); err != nil {
		slog.Warn("barrel export resolution failed", "error", err)
	}
	issues = append(issues, barrels.DetectReexportCycles(analysis.DefaultMaxCycles)...)
	observability.AnalysisDuration.WithLabelValues("barrels").Observe(time.Since(start).Seconds())

	start = time.Now()
	issues = append(issues, analysis.NewIssueDetector(b.store).Detect()...)
	observability.AnalysisDuration.WithLabelValues("issues").Observe(time.Since(start).Seconds())

	if b.annotations != nil {
		issues = analysis.FilterIgnored(issues, b.annotations)
	}
	analysis.SortIssues(issues)
	if err := b.store.SetIssues(issues); err != nil {
		slog.Warn("failed to install issue set", "error", err)
	}
	return len(cycles)
}

func (b *Builder) saveSnapshot(stats Stats, cycleCount int, duration time.Duration) {
	if b.history == nil {
		return
	}

	fileNodes := b.store.NodesByKind(graph.NodeFile)
	maxFanIn, totalFanIn := 0, 0
	for _, node := range fileNodes {
		fanIn := b.store.ImportCount(node.ID)
		totalFanIn += fanIn
		if fanIn > maxFanIn {
			maxFanIn = fanIn
		}
	}
	avgFanIn := 0.0
	if len(fileNodes) > 0 {
		avgFanIn = float64(totalFanIn) / float64(len(fileNodes))
	}

	err := b.history.SaveSnapshot(history.Snapshot{
		Timestamp:    time.Now().UTC(),
		FileCount:    stats.FileCount,
		NodeCount:    b.store.NodeCount(),
		EdgeCount:    b.store.EdgeCount(),
		IssueCount:   len(b.store.Issues()),
		CycleCount:   cycleCount,
		ErrorCount:   stats.ErrorCount,
		SkippedCount: stats.SkippedGenerated,
		AvgFanIn:     avgFanIn,
		MaxFanIn:     maxFanIn,
		DurationMS:   duration.Milliseconds(),
	})
	if err != nil {
		slog.Warn("failed to persist history snapshot", "error", err)
	}
}
