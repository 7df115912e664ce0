package analysis

import (
	"fmt"
	"sort"

	"codegraph/internal/engine/graph"
)

// IgnoreFilter suppresses issues the user has annotated away.
type IgnoreFilter interface {
	ShouldIgnore(kind graph.IssueKind, file string) bool
}

// IssueDetector scans the committed graph for structural problems that do not
// need a dedicated analyzer: unresolved edges, dead entrypoints, broken
// re-export chains and exports nobody imports.
type IssueDetector struct {
	store *graph.Store
}

func NewIssueDetector(store *graph.Store) *IssueDetector {
	return &IssueDetector{store: store}
}

func (d *IssueDetector) Detect() []graph.GraphIssue {
	var issues []graph.GraphIssue
	issues = append(issues, d.unresolvedEdges()...)
	issues = append(issues, d.deadEntrypoints()...)
	issues = append(issues, d.orphanedExports()...)
	sortIssues(issues)
	return issues
}

// FilterIgnored drops issues the filter suppresses. A nil filter passes
// everything through.
func FilterIgnored(issues []graph.GraphIssue, filter IgnoreFilter) []graph.GraphIssue {
	if filter == nil {
		return issues
	}
	kept := issues[:0]
	for _, issue := range issues {
		if filter.ShouldIgnore(issue.Kind, issue.File) {
			continue
		}
		kept = append(kept, issue)
	}
	return kept
}

// unresolvedEdges flags edges whose target never materialized as a node. A
// re-export pointing nowhere is a broken chain; anything else is a dynamic or
// unresolved reference the graph cannot follow.
func (d *IssueDetector) unresolvedEdges() []graph.GraphIssue {
	dynamicID := graph.ModuleID("(dynamic)")
	seen := make(map[string]bool)
	var issues []graph.GraphIssue
	for _, edge := range d.store.AllEdges() {
		_, exists := d.store.GetNode(edge.To)
		dynamic := edge.To == dynamicID
		if exists && !dynamic {
			continue
		}

		fromNode, ok := d.store.GetNode(edge.From)
		if !ok {
			continue
		}
		kind := graph.IssueDynamicEdgeUnknown
		severity := graph.SeverityWarning
		message := fmt.Sprintf("unresolved reference %q", edge.Specifier)
		if dynamic {
			message = "dynamic reference with non-literal target"
		}
		if edge.Kind == graph.EdgeReexports {
			kind = graph.IssueBrokenExportChain
			severity = graph.SeverityError
			message = fmt.Sprintf("re-export from missing target %q", edge.Specifier)
		}

		dedup := string(kind) + "\x00" + fromNode.Path + "\x00" + edge.To
		if seen[dedup] {
			continue
		}
		seen[dedup] = true

		issues = append(issues, graph.GraphIssue{
			Kind:     kind,
			Severity: severity,
			File:     fromNode.Path,
			Message:  message,
			Evidence: []string{fmt.Sprintf("%s -> %s (%s)", edge.From, edge.To, edge.Reason)},
		})
	}
	return issues
}

// deadEntrypoints flags entrypoint nodes with no resolvable handler.
func (d *IssueDetector) deadEntrypoints() []graph.GraphIssue {
	var issues []graph.GraphIssue
	for _, node := range d.store.NodesByKind(graph.NodeEntrypoint) {
		handlerFound := false
		for _, edge := range d.store.OutgoingEdges(node.ID) {
			if edge.Kind != graph.EdgeCalls && edge.Kind != graph.EdgeRegisters {
				continue
			}
			if _, ok := d.store.GetNode(edge.To); ok {
				handlerFound = true
				break
			}
		}
		if handlerFound {
			continue
		}
		issues = append(issues, graph.GraphIssue{
			Kind:     graph.IssueEntrypointNoHandler,
			Severity: graph.SeverityWarning,
			File:     node.Path,
			Message:  fmt.Sprintf("entrypoint %q has no resolvable handler", node.Name),
		})
	}
	return issues
}

// orphanedExports flags files that export names nothing imports. Entrypoint
// files are exempt: their exports are reached from outside the graph.
func (d *IssueDetector) orphanedExports() []graph.GraphIssue {
	entrypointFiles := make(map[string]bool)
	for _, node := range d.store.NodesByKind(graph.NodeEntrypoint) {
		entrypointFiles[node.Path] = true
	}

	var issues []graph.GraphIssue
	for _, node := range d.store.NodesByKind(graph.NodeFile) {
		if len(node.Meta.Exports) == 0 || entrypointFiles[node.Path] {
			continue
		}
		if len(d.store.IncomingEdges(node.ID)) > 0 {
			continue
		}
		evidence := node.Meta.Exports
		if len(evidence) > 5 {
			evidence = evidence[:5]
		}
		issues = append(issues, graph.GraphIssue{
			Kind:     graph.IssueOrphanedExport,
			Severity: graph.SeverityInfo,
			File:     node.Path,
			Message:  fmt.Sprintf("%d exported name(s) never imported", len(node.Meta.Exports)),
			Evidence: append([]string(nil), evidence...),
		})
	}
	return issues
}

// CycleIssues converts detected cycles into reportable issues. The issue file
// is the first member's path so annotation ignores can target it.
func CycleIssues(store *graph.Store, cycles []Cycle) []graph.GraphIssue {
	issues := make([]graph.GraphIssue, 0, len(cycles))
	for _, cycle := range cycles {
		file := cycle.Nodes[0]
		if node, ok := store.GetNode(cycle.Nodes[0]); ok {
			file = node.Path
		}
		issues = append(issues, graph.GraphIssue{
			Kind:     graph.IssueCircularDependency,
			Severity: cycle.Severity,
			File:     file,
			Message:  cycle.Description,
			Evidence: []string{fmt.Sprintf("suggested break: %s -> %s", cycle.BreakFrom, cycle.BreakTo)},
		})
	}
	return issues
}

// LayerIssues converts rule violations into reportable issues.
func LayerIssues(violations []LayerViolation) []graph.GraphIssue {
	issues := make([]graph.GraphIssue, 0, len(violations))
	for _, violation := range violations {
		issues = append(issues, graph.GraphIssue{
			Kind:     graph.IssueLayerViolation,
			Severity: graph.SeverityError,
			File:     violation.FromPath,
			Message: fmt.Sprintf("rule %q: %s must not import %s",
				violation.Rule, violation.FromPath, violation.ToPath),
			Evidence: []string{fmt.Sprintf("%s edge at %s:%d",
				violation.EdgeKind, violation.Location.File, violation.Location.Line)},
		})
	}
	return issues
}

func sortIssues(issues []graph.GraphIssue) {
	sort.Slice(issues, func(i, j int) bool {
		if issues[i].File != issues[j].File {
			return issues[i].File < issues[j].File
		}
		if issues[i].Kind != issues[j].Kind {
			return issues[i].Kind < issues[j].Kind
		}
		return issues[i].Message < issues[j].Message
	})
}

// SortIssues orders a combined issue list for stable output.
func SortIssues(issues []graph.GraphIssue) {
	sortIssues(issues)
}
