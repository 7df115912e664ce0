package analysis

import (
	"fmt"
	"sort"
	"strings"

	"codegraph/internal/engine/graph"
	"codegraph/internal/shared/util"
)

// DefaultErrorLength is the cycle length at which severity escalates to
// error when no threshold is configured.
const DefaultErrorLength = 4

// DefaultMaxCycles bounds enumeration on pathological graphs; it is the
// cancellation mechanism for this pass.
const DefaultMaxCycles = 100

// Cycle is one elementary dependency cycle.
type Cycle struct {
	Nodes       []string // ordered member identities, lexicographically smallest first
	Length      int
	Severity    graph.Severity
	BreakFrom   string // suggested edge to remove
	BreakTo     string
	Description string
}

// CycleOptions scopes and bounds a detection pass.
type CycleOptions struct {
	Scope     string // path prefix filter
	MinLength int
	MaxCycles int
	EdgeKinds []graph.EdgeKind // defaults to imports+reexports
}

// CycleDetector finds elementary cycles via strongly-connected-component
// decomposition followed by bounded DFS enumeration inside each component.
// Results are stable for a stable graph: members are rotated so the smallest
// identity leads, and cycles sort by (length, first member).
type CycleDetector struct {
	store       *graph.Store
	errorLength int
}

func NewCycleDetector(store *graph.Store, errorLength int) *CycleDetector {
	if errorLength <= 0 {
		errorLength = DefaultErrorLength
	}
	return &CycleDetector{store: store, errorLength: errorLength}
}

func (d *CycleDetector) FindCycles(opts CycleOptions) []Cycle {
	maxCycles := opts.MaxCycles
	if maxCycles <= 0 {
		maxCycles = DefaultMaxCycles
	}
	kinds := opts.EdgeKinds
	if len(kinds) == 0 {
		kinds = []graph.EdgeKind{graph.EdgeImports, graph.EdgeReexports}
	}
	kindSet := make(map[graph.EdgeKind]bool, len(kinds))
	for _, k := range kinds {
		kindSet[k] = true
	}

	adjacency, incoming := d.buildAdjacency(opts.Scope, kindSet)
	nodes := util.SortedStringKeys(adjacency)

	componentOf, components := stronglyConnected(nodes, adjacency)

	var cycles []Cycle
	seen := make(map[string]bool)
	for compID, members := range components {
		if len(members) == 1 {
			// Single node: only a self-loop cycles.
			self := members[0]
			if !containsString(adjacency[self], self) {
				continue
			}
		}
		compCycles := enumerateCycles(members, adjacency, componentOf, compID, maxCycles-len(cycles))
		for _, members := range compCycles {
			key := strings.Join(members, "\x00")
			if seen[key] {
				continue
			}
			seen[key] = true
			if opts.MinLength > 0 && len(members) < opts.MinLength {
				continue
			}
			cycles = append(cycles, d.describeCycle(members, incoming))
			if len(cycles) >= maxCycles {
				break
			}
		}
		if len(cycles) >= maxCycles {
			break
		}
	}

	sort.Slice(cycles, func(i, j int) bool {
		if cycles[i].Length != cycles[j].Length {
			return cycles[i].Length < cycles[j].Length
		}
		return strings.Join(cycles[i].Nodes, "\x00") < strings.Join(cycles[j].Nodes, "\x00")
	})
	return cycles
}

// buildAdjacency restricts the graph to the requested edge kinds and scope.
// Duplicate (from,to) pairs collapse; incoming counts collapse the same way.
func (d *CycleDetector) buildAdjacency(scope string, kinds map[graph.EdgeKind]bool) (map[string][]string, map[string]map[string]bool) {
	inScope := func(id string) bool {
		if scope == "" {
			return true
		}
		node, ok := d.store.GetNode(id)
		if !ok {
			return false
		}
		return util.HasPathPrefix(node.Path, scope)
	}

	adjacencySet := make(map[string]map[string]bool)
	incoming := make(map[string]map[string]bool)
	for _, edge := range d.store.AllEdges() {
		if !kinds[edge.Kind] {
			continue
		}
		if !inScope(edge.From) || !inScope(edge.To) {
			continue
		}
		if adjacencySet[edge.From] == nil {
			adjacencySet[edge.From] = make(map[string]bool)
		}
		adjacencySet[edge.From][edge.To] = true
		if incoming[edge.To] == nil {
			incoming[edge.To] = make(map[string]bool)
		}
		incoming[edge.To][edge.From] = true
		if adjacencySet[edge.To] == nil {
			adjacencySet[edge.To] = make(map[string]bool)
		}
	}

	adjacency := make(map[string][]string, len(adjacencySet))
	for from, targets := range adjacencySet {
		list := make([]string, 0, len(targets))
		for to := range targets {
			list = append(list, to)
		}
		sort.Strings(list)
		adjacency[from] = list
	}
	return adjacency, incoming
}

func (d *CycleDetector) describeCycle(members []string, incoming map[string]map[string]bool) Cycle {
	severity := graph.SeverityWarning
	if len(members) >= d.errorLength {
		severity = graph.SeverityError
	}

	// Break-point heuristic: the edge into the member with the fewest other
	// incoming edges. Not a minimal feedback-arc solution, just a cheap one.
	breakFrom, breakTo := "", ""
	bestScore := -1
	for i, from := range members {
		to := members[(i+1)%len(members)]
		score := len(incoming[to])
		if _, ok := incoming[to][from]; ok {
			score--
		}
		if bestScore == -1 || score < bestScore {
			bestScore = score
			breakFrom, breakTo = from, to
		}
	}

	display := make([]string, 0, len(members)+1)
	display = append(display, members...)
	display = append(display, members[0])

	return Cycle{
		Nodes:       append([]string(nil), members...),
		Length:      len(members),
		Severity:    severity,
		BreakFrom:   breakFrom,
		BreakTo:     breakTo,
		Description: fmt.Sprintf("dependency cycle: %s", strings.Join(display, " -> ")),
	}
}

// enumerateCycles walks elementary cycles inside one strongly connected
// component. Paths only extend to nodes >= the root in sort order, so every
// cycle is found exactly once, already rotated to its smallest member.
func enumerateCycles(members []string, adjacency map[string][]string, componentOf map[string]int, compID, budget int) [][]string {
	if budget <= 0 {
		return nil
	}
	memberSet := make(map[string]bool, len(members))
	for _, m := range members {
		memberSet[m] = true
	}
	sorted := append([]string(nil), members...)
	sort.Strings(sorted)

	var found [][]string
	for _, root := range sorted {
		if len(found) >= budget {
			break
		}
		onPath := map[string]bool{root: true}
		path := []string{root}

		var dfs func(current string) bool
		dfs = func(current string) bool {
			for _, next := range adjacency[current] {
				if len(found) >= budget {
					return true
				}
				if !memberSet[next] || componentOf[next] != compID {
					continue
				}
				if next == root {
					found = append(found, append([]string(nil), path...))
					continue
				}
				if next < root || onPath[next] {
					continue
				}
				onPath[next] = true
				path = append(path, next)
				if dfs(next) {
					return true
				}
				path = path[:len(path)-1]
				delete(onPath, next)
			}
			return false
		}
		dfs(root)
	}
	return found
}

func stronglyConnected(nodes []string, adjacency map[string][]string) (map[string]int, [][]string) {
	index := 0
	stack := make([]string, 0, len(nodes))
	onStack := make(map[string]bool, len(nodes))
	indexByNode := make(map[string]int, len(nodes))
	lowLink := make(map[string]int, len(nodes))
	componentOf := make(map[string]int, len(nodes))
	components := make([][]string, 0)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indexByNode[v] = index
		lowLink[v] = index
		index++

		stack = append(stack, v)
		onStack[v] = true

		for _, w := range adjacency[v] {
			if _, seen := indexByNode[w]; !seen {
				strongConnect(w)
				if lowLink[w] < lowLink[v] {
					lowLink[v] = lowLink[w]
				}
			} else if onStack[w] && indexByNode[w] < lowLink[v] {
				lowLink[v] = indexByNode[w]
			}
		}

		if lowLink[v] != indexByNode[v] {
			return
		}

		component := make([]string, 0)
		for {
			last := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[last] = false
			component = append(component, last)
			if last == v {
				break
			}
		}
		sort.Strings(component)
		compID := len(components)
		components = append(components, component)
		for _, n := range component {
			componentOf[n] = compID
		}
	}

	for _, node := range nodes {
		if _, seen := indexByNode[node]; !seen {
			strongConnect(node)
		}
	}

	return componentOf, components
}

func containsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
