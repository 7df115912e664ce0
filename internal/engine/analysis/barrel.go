package analysis

import (
	"fmt"
	"sort"
	"strings"

	"codegraph/internal/engine/graph"
)

// BarrelAnalyzer resolves aggregator files (barrels) into the transitive set
// of exports they actually surface, and reports cyclic re-export chains. A
// wildcard re-export inherits everything its target exports; named
// re-exports are already present on the barrel node itself.
type BarrelAnalyzer struct {
	store *graph.Store
}

func NewBarrelAnalyzer(store *graph.Store) *BarrelAnalyzer {
	return &BarrelAnalyzer{store: store}
}

// ResolveExports returns, per barrel node identity, the full export surface
// after following re-export chains. Chains terminate at non-barrel files and
// at already-visited nodes, so cycles cannot loop.
func (a *BarrelAnalyzer) ResolveExports() map[string][]string {
	resolved := make(map[string][]string)
	for _, node := range a.store.NodesByKind(graph.NodeFile) {
		if !node.Meta.IsBarrel {
			continue
		}
		exports := make(map[string]bool)
		a.collect(node.ID, exports, map[string]bool{})
		list := make([]string, 0, len(exports))
		for name := range exports {
			list = append(list, name)
		}
		sort.Strings(list)
		resolved[node.ID] = list
	}
	return resolved
}

func (a *BarrelAnalyzer) collect(id string, exports, visited map[string]bool) {
	if visited[id] {
		return
	}
	visited[id] = true
	node, ok := a.store.GetNode(id)
	if !ok {
		return
	}

	wildcard := false
	for _, name := range node.Meta.Exports {
		if name == "*" {
			wildcard = true
			continue
		}
		exports[name] = true
	}
	if !node.Meta.IsBarrel && !wildcard {
		return
	}

	for _, edge := range a.store.OutgoingEdges(id) {
		if edge.Kind != graph.EdgeReexports {
			continue
		}
		target, ok := a.store.GetNode(edge.To)
		if !ok {
			continue
		}
		if wildcard || target.Meta.IsBarrel {
			a.collect(edge.To, exports, visited)
		}
	}
}

// Apply merges resolved export sets back onto the barrel nodes.
func (a *BarrelAnalyzer) Apply(resolved map[string][]string) error {
	for id, exports := range resolved {
		node, ok := a.store.GetNode(id)
		if !ok {
			continue
		}
		update := *node
		update.Meta.Exports = exports
		if err := a.store.AddNode(update); err != nil {
			return err
		}
	}
	return nil
}

// DetectReexportCycles finds cycles made purely of re-export edges. These are
// reported separately from general dependency cycles because an import cycle
// through barrels resolves to a different fix (flatten the barrel) than a
// logic cycle does.
func (a *BarrelAnalyzer) DetectReexportCycles(maxCycles int) []graph.GraphIssue {
	detector := NewCycleDetector(a.store, 0)
	cycles := detector.FindCycles(CycleOptions{
		MaxCycles: maxCycles,
		EdgeKinds: []graph.EdgeKind{graph.EdgeReexports},
	})

	issues := make([]graph.GraphIssue, 0, len(cycles))
	for _, cycle := range cycles {
		file := cycle.Nodes[0]
		if node, ok := a.store.GetNode(cycle.Nodes[0]); ok {
			file = node.Path
		}
		issues = append(issues, graph.GraphIssue{
			Kind:     graph.IssueReexportCycle,
			Severity: graph.SeverityError,
			File:     file,
			Message:  fmt.Sprintf("re-export cycle: %s", strings.Join(append(append([]string{}, cycle.Nodes...), cycle.Nodes[0]), " -> ")),
			Evidence: []string{fmt.Sprintf("suggested break: %s -> %s", cycle.BreakFrom, cycle.BreakTo)},
		})
	}
	return issues
}
