package query

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	"codegraph/internal/engine/analysis"
	"codegraph/internal/engine/graph"
	"codegraph/internal/shared/observability"
	"codegraph/internal/shared/util"
)

const (
	// DefaultImpactDepth and MaxImpactDepth bound the blast-radius traversal.
	DefaultImpactDepth = 2
	MaxImpactDepth     = 4

	// DefaultPathDepth and DefaultMaxPaths bound the chain search.
	DefaultPathDepth = 10
	DefaultMaxPaths  = 5

	// pathSearchBudget caps BFS expansions on pathological graphs.
	pathSearchBudget = 10000

	hotspotLimit    = 10
	entrypointLimit = 20
)

// Options configures a query service.
type Options struct {
	CacheCapacity    int
	CacheTTL         time.Duration
	CycleErrorLength int
	LayerRules       []analysis.LayerRule
}

// Service is the read API over a graph store. Every operation is pure over
// the store's current snapshot and memoized in a whole-cache-invalidating
// LRU, so results are safe to serve concurrently with the single writer.
type Service struct {
	store  *graph.Store
	cache  *Cache
	cycles *analysis.CycleDetector
	layers *analysis.LayerAnalyzer
}

// New builds a service. It fails only when the configured layer rules carry
// a glob that does not compile.
func New(store *graph.Store, opts Options) (*Service, error) {
	layers, err := analysis.NewLayerAnalyzer(store, opts.LayerRules)
	if err != nil {
		return nil, err
	}
	return &Service{
		store:  store,
		cache:  NewCache(opts.CacheCapacity, opts.CacheTTL),
		cycles: analysis.NewCycleDetector(store, opts.CycleErrorLength),
		layers: layers,
	}, nil
}

// Cache exposes the memoization layer, mainly for tests and stats.
func (s *Service) Cache() *Cache { return s.cache }

// Digest summarizes the graph, optionally restricted to a path-prefix scope.
func (s *Service) Digest(ctx context.Context, scope string) Digest {
	_, span := observability.Tracer.Start(ctx, "query.digest")
	defer span.End()
	start := time.Now()
	defer func() {
		observability.QueryDuration.WithLabelValues("digest").Observe(time.Since(start).Seconds())
	}()

	scope = util.NormalizePatternPath(scope)
	key := cacheKey("digest", scope)
	epoch := s.store.Epoch()
	if v, ok := s.cache.Get(key, epoch); ok {
		return v.(Digest)
	}

	result := Digest{Scope: scope, IssuesByKind: make(map[graph.IssueKind]int)}
	truncated := false

	inScope := func(path string) bool {
		return scope == "" || util.HasPathPrefix(path, scope)
	}

	scopedFiles := make(map[string]bool)
	var hotspots []Hotspot
	for _, node := range s.store.NodesByKind(graph.NodeFile) {
		if !inScope(node.Path) {
			continue
		}
		scopedFiles[node.ID] = true
		result.FileCount++
		if n := s.store.ImportCount(node.ID); n > 0 {
			hotspots = append(hotspots, Hotspot{Path: node.Path, ImportCount: n})
		}
	}
	sort.Slice(hotspots, func(i, j int) bool {
		if hotspots[i].ImportCount != hotspots[j].ImportCount {
			return hotspots[i].ImportCount > hotspots[j].ImportCount
		}
		return hotspots[i].Path < hotspots[j].Path
	})
	if len(hotspots) > hotspotLimit {
		hotspots = hotspots[:hotspotLimit]
		truncated = true
	}
	result.Hotspots = hotspots

	for _, node := range s.store.NodesByKind(graph.NodeModule) {
		if inScope(node.Path) {
			result.ModuleCount++
		}
	}

	if scope == "" {
		result.EdgeCount = s.store.EdgeCount()
	} else {
		for _, e := range s.store.AllEdges() {
			if scopedFiles[e.From] {
				result.EdgeCount++
			}
		}
	}

	for _, node := range s.store.NodesByKind(graph.NodeEntrypoint) {
		if !inScope(node.Path) {
			continue
		}
		result.Entrypoints = append(result.Entrypoints, EntrypointInfo{
			Path: node.Path,
			Kind: node.Meta.EntrypointKind,
		})
	}
	if len(result.Entrypoints) > entrypointLimit {
		result.Entrypoints = result.Entrypoints[:entrypointLimit]
		truncated = true
	}

	for _, issue := range s.store.Issues() {
		if issue.File != "" && !inScope(issue.File) {
			continue
		}
		result.IssuesByKind[issue.Kind]++
	}

	finishResult(&result.Info, &result, truncated)
	s.cache.Put(key, epoch, result)
	return result
}

// Impact computes the blast radius of changing target: breadth-first over
// incoming edges, each dependent reported at its minimum hop distance.
func (s *Service) Impact(ctx context.Context, target string, depth int) Impact {
	_, span := observability.Tracer.Start(ctx, "query.impact")
	defer span.End()
	start := time.Now()
	defer func() {
		observability.QueryDuration.WithLabelValues("impact").Observe(time.Since(start).Seconds())
	}()

	if depth <= 0 {
		depth = DefaultImpactDepth
	}
	if depth > MaxImpactDepth {
		depth = MaxImpactDepth
	}

	key := cacheKey("impact", target, strconv.Itoa(depth))
	epoch := s.store.Epoch()
	if v, ok := s.cache.Get(key, epoch); ok {
		return v.(Impact)
	}

	result := Impact{Target: target, Depth: depth, Risk: RiskLow}
	id, ok := s.resolveNode(target)
	if !ok {
		finishResult(&result.Info, &result, false)
		s.cache.Put(key, epoch, result)
		return result
	}
	result.Target = displayID(id)

	visited := map[string]bool{id: true}
	frontier := []string{id}
	for d := 0; d < depth && len(frontier) > 0; d++ {
		nextSet := make(map[string]bool)
		for _, nodeID := range frontier {
			for _, e := range s.store.IncomingEdges(nodeID) {
				if !visited[e.From] {
					nextSet[e.From] = true
				}
			}
		}
		bucket := util.SortedStringKeys(nextSet)
		for _, dep := range bucket {
			visited[dep] = true
		}
		if len(bucket) == 0 {
			break
		}
		display := make([]string, len(bucket))
		for i, dep := range bucket {
			display[i] = displayID(dep)
		}
		result.ImpactByDepth = append(result.ImpactByDepth, display)
		result.TotalAffected += len(display)
	}
	if len(result.ImpactByDepth) > 0 {
		result.DirectDependents = result.ImpactByDepth[0]
	}

	for dep := range visited {
		if dep == id {
			continue
		}
		if node, ok := s.store.GetNode(dep); ok && node.Kind == graph.NodeEntrypoint {
			result.AffectedEntrypoints = append(result.AffectedEntrypoints, EntrypointInfo{
				Path: node.Path,
				Kind: node.Meta.EntrypointKind,
			})
		}
	}
	sort.Slice(result.AffectedEntrypoints, func(i, j int) bool {
		return result.AffectedEntrypoints[i].Path < result.AffectedEntrypoints[j].Path
	})

	result.Risk = riskFor(result.TotalAffected, len(result.AffectedEntrypoints))

	finishResult(&result.Info, &result, false)
	s.cache.Put(key, epoch, result)
	return result
}

func riskFor(total, entrypoints int) RiskLevel {
	switch {
	case entrypoints > 0 || total >= 20:
		return RiskHigh
	case total >= 5:
		return RiskMedium
	default:
		return RiskLow
	}
}

// Path enumerates dependency chains from one node to another over outgoing
// edges, shortest chains first with ties in discovery order.
func (s *Service) Path(ctx context.Context, from, to string, opts PathOptions) PathResult {
	_, span := observability.Tracer.Start(ctx, "query.path")
	defer span.End()
	start := time.Now()
	defer func() {
		observability.QueryDuration.WithLabelValues("path").Observe(time.Since(start).Seconds())
	}()

	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultPathDepth
	}
	maxPaths := opts.MaxPaths
	if maxPaths <= 0 {
		maxPaths = DefaultMaxPaths
	}

	key := cacheKey("path", from, to, strconv.Itoa(maxDepth), strconv.Itoa(maxPaths))
	epoch := s.store.Epoch()
	if v, ok := s.cache.Get(key, epoch); ok {
		return v.(PathResult)
	}

	result := PathResult{From: from, To: to}
	fromID, okFrom := s.resolveNode(from)
	toID, okTo := s.resolveNode(to)
	if !okFrom || !okTo {
		finishResult(&result.Info, &result, false)
		s.cache.Put(key, epoch, result)
		return result
	}
	result.From = displayID(fromID)
	result.To = displayID(toID)

	truncated := false
	budget := pathSearchBudget
	queue := [][]string{{fromID}}
	for len(queue) > 0 && len(result.Paths) < maxPaths {
		if budget <= 0 {
			truncated = true
			break
		}
		budget--

		path := queue[0]
		queue = queue[1:]
		last := path[len(path)-1]

		if last == toID {
			display := make([]string, len(path))
			for i, id := range path {
				display[i] = displayID(id)
			}
			result.Paths = append(result.Paths, display)
			continue
		}
		if len(path)-1 >= maxDepth {
			result.MaxDepthReached = true
			continue
		}

		onPath := make(map[string]bool, len(path))
		for _, id := range path {
			onPath[id] = true
		}
		seenNext := make(map[string]bool)
		for _, e := range s.store.OutgoingEdges(last) {
			if onPath[e.To] || seenNext[e.To] {
				continue
			}
			seenNext[e.To] = true
			next := make([]string, len(path), len(path)+1)
			copy(next, path)
			queue = append(queue, append(next, e.To))
		}
	}
	if len(result.Paths) == maxPaths && len(queue) > 0 {
		truncated = true
	}

	result.Connected = len(result.Paths) > 0
	if result.Connected {
		result.ShortestPath = result.Paths[0]
	}

	finishResult(&result.Info, &result, truncated)
	s.cache.Put(key, epoch, result)
	return result
}

// Module describes one node: its imports, importers, export surface, and the
// entrypoints detected in it. A missing target yields Found=false, not an
// error, so callers can probe freely.
func (s *Service) Module(ctx context.Context, target string, includeTransitive bool) ModuleDetails {
	_, span := observability.Tracer.Start(ctx, "query.module")
	defer span.End()
	start := time.Now()
	defer func() {
		observability.QueryDuration.WithLabelValues("module").Observe(time.Since(start).Seconds())
	}()

	key := cacheKey("module", target, strconv.FormatBool(includeTransitive))
	epoch := s.store.Epoch()
	if v, ok := s.cache.Get(key, epoch); ok {
		return v.(ModuleDetails)
	}

	result := ModuleDetails{Target: target}
	id, ok := s.resolveNode(target)
	if !ok {
		finishResult(&result.Info, &result, false)
		s.cache.Put(key, epoch, result)
		return result
	}
	node, _ := s.store.GetNode(id)
	result.Target = displayID(id)
	result.Found = true
	result.Language = node.Meta.Language
	result.Exports = node.Meta.Exports
	result.IsBarrel = node.Meta.IsBarrel

	imports := make(map[string]bool)
	reexports := make(map[string]bool)
	for _, e := range s.store.OutgoingEdges(id) {
		switch e.Kind {
		case graph.EdgeImports:
			imports[displayID(e.To)] = true
		case graph.EdgeReexports:
			reexports[displayID(e.To)] = true
		}
	}
	result.Imports = util.SortedStringKeys(imports)
	result.Reexports = util.SortedStringKeys(reexports)

	importedBy := make(map[string]bool)
	for _, e := range s.store.IncomingEdges(id) {
		if e.Kind == graph.EdgeImports || e.Kind == graph.EdgeReexports {
			importedBy[displayID(e.From)] = true
		}
	}
	result.ImportedBy = util.SortedStringKeys(importedBy)

	if includeTransitive {
		result.TransitiveImports = s.transitiveImports(id)
	}

	for _, ep := range s.store.NodesByKind(graph.NodeEntrypoint) {
		if ep.Path == node.Path {
			result.Entrypoints = append(result.Entrypoints, EntrypointInfo{
				Path: ep.Path,
				Kind: ep.Meta.EntrypointKind,
			})
		}
	}

	finishResult(&result.Info, &result, false)
	s.cache.Put(key, epoch, result)
	return result
}

func (s *Service) transitiveImports(root string) []string {
	visited := map[string]bool{root: true}
	stack := []string{root}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, e := range s.store.OutgoingEdges(id) {
			if e.Kind != graph.EdgeImports && e.Kind != graph.EdgeReexports {
				continue
			}
			if visited[e.To] {
				continue
			}
			visited[e.To] = true
			stack = append(stack, e.To)
		}
	}
	delete(visited, root)
	ids := util.SortedStringKeys(visited)
	display := make([]string, len(ids))
	for i, id := range ids {
		display[i] = displayID(id)
	}
	sort.Strings(display)
	return display
}

// Issues returns the current issue set, narrowed by the filter, with per-kind
// totals over the filtered set.
func (s *Service) Issues(ctx context.Context, filter IssueFilter) IssuesResult {
	_, span := observability.Tracer.Start(ctx, "query.issues")
	defer span.End()
	start := time.Now()
	defer func() {
		observability.QueryDuration.WithLabelValues("issues").Observe(time.Since(start).Seconds())
	}()

	key := cacheKey("issues", string(filter.Kind), string(filter.Severity), filter.PathPrefix)
	epoch := s.store.Epoch()
	if v, ok := s.cache.Get(key, epoch); ok {
		return v.(IssuesResult)
	}

	result := IssuesResult{CountsByKind: make(map[graph.IssueKind]int)}
	for _, issue := range s.store.Issues() {
		if filter.Kind != "" && issue.Kind != filter.Kind {
			continue
		}
		if filter.Severity != "" && issue.Severity != filter.Severity {
			continue
		}
		if filter.PathPrefix != "" && !util.HasPathPrefix(issue.File, filter.PathPrefix) {
			continue
		}
		result.Issues = append(result.Issues, issue)
		result.CountsByKind[issue.Kind]++
	}

	finishResult(&result.Info, &result, false)
	s.cache.Put(key, epoch, result)
	return result
}

// Cycles runs a cycle-detection pass over the current graph.
func (s *Service) Cycles(ctx context.Context, opts analysis.CycleOptions) CyclesResult {
	_, span := observability.Tracer.Start(ctx, "query.cycles")
	defer span.End()
	start := time.Now()
	defer func() {
		observability.QueryDuration.WithLabelValues("cycles").Observe(time.Since(start).Seconds())
	}()

	kinds := make([]string, len(opts.EdgeKinds))
	for i, k := range opts.EdgeKinds {
		kinds[i] = string(k)
	}
	key := cacheKey("cycles", opts.Scope, strconv.Itoa(opts.MinLength),
		strconv.Itoa(opts.MaxCycles), strings.Join(kinds, ","))
	epoch := s.store.Epoch()
	if v, ok := s.cache.Get(key, epoch); ok {
		return v.(CyclesResult)
	}

	maxCycles := opts.MaxCycles
	if maxCycles <= 0 {
		maxCycles = analysis.DefaultMaxCycles
	}
	result := CyclesResult{Cycles: s.cycles.FindCycles(opts)}

	finishResult(&result.Info, &result, len(result.Cycles) >= maxCycles)
	s.cache.Put(key, epoch, result)
	return result
}

// Layers checks the configured layer rules and, when asked, suggests rules
// inferred from the graph's actual dependency direction.
func (s *Service) Layers(ctx context.Context, suggest bool) LayersResult {
	_, span := observability.Tracer.Start(ctx, "query.layers")
	defer span.End()
	start := time.Now()
	defer func() {
		observability.QueryDuration.WithLabelValues("layers").Observe(time.Since(start).Seconds())
	}()

	key := cacheKey("layers", strconv.FormatBool(suggest))
	epoch := s.store.Epoch()
	if v, ok := s.cache.Get(key, epoch); ok {
		return v.(LayersResult)
	}

	result := LayersResult{
		Rules:      s.layers.Rules(),
		Violations: s.layers.Check(),
	}
	if suggest {
		result.Suggested = s.layers.Suggest()
	}

	finishResult(&result.Info, &result, false)
	s.cache.Put(key, epoch, result)
	return result
}

// resolveNode maps a caller-supplied target onto a node identity. Targets may
// be full identities ("file:src/a.ts"), plain file paths, or module names.
func (s *Service) resolveNode(target string) (string, bool) {
	if target == "" {
		return "", false
	}
	if _, ok := s.store.GetNode(target); ok {
		return target, true
	}
	normalized := util.NormalizePatternPath(target)
	for _, id := range []string{graph.FileID(normalized), graph.ModuleID(target)} {
		if _, ok := s.store.GetNode(id); ok {
			return id, true
		}
	}
	return "", false
}

// displayID strips the kind prefix so results read as plain paths and
// module names.
func displayID(id string) string {
	if i := strings.IndexByte(id, ':'); i >= 0 {
		return id[i+1:]
	}
	return id
}

func finishResult(info *ResultInfo, result any, truncated bool) {
	info.Truncated = truncated
	if data, err := json.Marshal(result); err == nil {
		info.TokenEstimate = util.TokenEstimate(len(data))
	}
}
