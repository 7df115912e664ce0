package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"codegraph/internal/data/history"
	"codegraph/internal/engine/graph"
	"codegraph/internal/indexing"
	"codegraph/internal/query"
)

func formatSummary(store *graph.Store, stats indexing.Stats) string {
	var b strings.Builder

	issuesByKind := make(map[graph.IssueKind]int)
	for _, issue := range store.Issues() {
		issuesByKind[issue.Kind]++
	}

	fmt.Fprintf(&b, "Indexed %d files in %s (%d nodes, %d edges)\n",
		stats.FileCount, stats.Duration.Round(time.Millisecond), store.NodeCount(), store.EdgeCount())
	if stats.ErrorCount > 0 {
		fmt.Fprintf(&b, "  %d files failed to parse\n", stats.ErrorCount)
	}
	if stats.SkippedGenerated > 0 {
		fmt.Fprintf(&b, "  %d generated files skipped\n", stats.SkippedGenerated)
	}
	if len(issuesByKind) > 0 {
		b.WriteString("Issues:\n")
		for _, kind := range sortedIssueKinds(issuesByKind) {
			fmt.Fprintf(&b, "  %-24s %d\n", kind, issuesByKind[kind])
		}
	} else {
		b.WriteString("No structural issues found\n")
	}
	return b.String()
}

func formatDigest(d query.Digest) string {
	var b strings.Builder

	b.WriteString("Codebase Digest\n")
	b.WriteString("===============\n")
	if d.Scope != "" {
		fmt.Fprintf(&b, "Scope: %s\n", d.Scope)
	}
	fmt.Fprintf(&b, "Files: %d  Modules: %d  Edges: %d\n\n", d.FileCount, d.ModuleCount, d.EdgeCount)

	fmt.Fprintf(&b, "Hotspots (%d)\n", len(d.Hotspots))
	for _, h := range d.Hotspots {
		fmt.Fprintf(&b, "- %s (%d importers)\n", h.Path, h.ImportCount)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "Entrypoints (%d)\n", len(d.Entrypoints))
	for _, ep := range d.Entrypoints {
		fmt.Fprintf(&b, "- %s [%s]\n", ep.Path, ep.Kind)
	}
	b.WriteString("\n")

	if len(d.IssuesByKind) > 0 {
		b.WriteString("Issues\n")
		for _, kind := range sortedIssueKinds(d.IssuesByKind) {
			fmt.Fprintf(&b, "- %s: %d\n", kind, d.IssuesByKind[kind])
		}
		b.WriteString("\n")
	}

	writeInfo(&b, d.Info)
	return b.String()
}

func formatImpact(imp query.Impact) string {
	var b strings.Builder

	b.WriteString("Impact Analysis\n")
	b.WriteString("===============\n")
	fmt.Fprintf(&b, "Target: %s\n", imp.Target)
	fmt.Fprintf(&b, "Risk: %s\n\n", imp.Risk)

	fmt.Fprintf(&b, "Direct dependents (%d)\n", len(imp.DirectDependents))
	for _, dep := range imp.DirectDependents {
		fmt.Fprintf(&b, "- %s\n", dep)
	}
	b.WriteString("\n")

	for i, bucket := range imp.ImpactByDepth {
		if i == 0 {
			continue
		}
		fmt.Fprintf(&b, "At %d hops (%d)\n", i+1, len(bucket))
		for _, dep := range bucket {
			fmt.Fprintf(&b, "- %s\n", dep)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Affected entrypoints (%d)\n", len(imp.AffectedEntrypoints))
	for _, ep := range imp.AffectedEntrypoints {
		fmt.Fprintf(&b, "- %s [%s]\n", ep.Path, ep.Kind)
	}
	b.WriteString("\n")

	writeInfo(&b, imp.Info)
	return b.String()
}

func formatPath(res query.PathResult) string {
	var b strings.Builder

	if !res.Connected {
		fmt.Fprintf(&b, "No dependency chain from %s to %s\n", res.From, res.To)
		if res.MaxDepthReached {
			b.WriteString("(search truncated at the depth bound; longer chains may exist)\n")
		}
		return b.String()
	}

	fmt.Fprintf(&b, "Dependency chains from %s to %s (%d)\n", res.From, res.To, len(res.Paths))
	for _, path := range res.Paths {
		fmt.Fprintf(&b, "- %s\n", strings.Join(path, " -> "))
	}
	if res.MaxDepthReached {
		b.WriteString("(search truncated at the depth bound)\n")
	}
	writeInfo(&b, res.Info)
	return b.String()
}

func formatModule(mod query.ModuleDetails) string {
	var b strings.Builder

	if !mod.Found {
		fmt.Fprintf(&b, "No node found for %q\n", mod.Target)
		return b.String()
	}

	fmt.Fprintf(&b, "Module: %s\n", mod.Target)
	if mod.Language != "" {
		fmt.Fprintf(&b, "Language: %s\n", mod.Language)
	}
	if mod.IsBarrel {
		b.WriteString("Barrel: yes\n")
	}
	b.WriteString("\n")

	writeList(&b, "Imports", mod.Imports)
	writeList(&b, "Imported by", mod.ImportedBy)
	writeList(&b, "Transitive imports", mod.TransitiveImports)
	writeList(&b, "Exports", mod.Exports)
	writeList(&b, "Re-exports", mod.Reexports)
	for _, ep := range mod.Entrypoints {
		fmt.Fprintf(&b, "Entrypoint: %s [%s]\n", ep.Path, ep.Kind)
	}

	writeInfo(&b, mod.Info)
	return b.String()
}

func formatCycles(res query.CyclesResult) string {
	var b strings.Builder

	if len(res.Cycles) == 0 {
		b.WriteString("No dependency cycles found\n")
		return b.String()
	}

	fmt.Fprintf(&b, "Dependency cycles (%d)\n", len(res.Cycles))
	for _, cycle := range res.Cycles {
		fmt.Fprintf(&b, "- [%s] %s\n", cycle.Severity, cycle.Description)
		if cycle.BreakFrom != "" {
			fmt.Fprintf(&b, "  suggest breaking %s -> %s\n", cycle.BreakFrom, cycle.BreakTo)
		}
	}
	writeInfo(&b, res.Info)
	return b.String()
}

func formatIssues(res query.IssuesResult) string {
	var b strings.Builder

	if len(res.Issues) == 0 {
		b.WriteString("No structural issues found\n")
		return b.String()
	}

	fmt.Fprintf(&b, "Structural issues (%d)\n", len(res.Issues))
	for _, issue := range res.Issues {
		fmt.Fprintf(&b, "- [%s] %s: %s\n", issue.Severity, issue.Kind, issue.Message)
		for _, ev := range issue.Evidence {
			fmt.Fprintf(&b, "    %s\n", ev)
		}
	}
	writeInfo(&b, res.Info)
	return b.String()
}

func formatTrend(snapshots []history.Snapshot) string {
	var b strings.Builder

	if len(snapshots) == 0 {
		b.WriteString("No index snapshots recorded yet\n")
		return b.String()
	}

	fmt.Fprintf(&b, "Index history (%d snapshots)\n", len(snapshots))
	fmt.Fprintf(&b, "%-20s %6s %6s %6s %7s %7s %8s\n",
		"timestamp", "files", "edges", "cycles", "issues", "maxIn", "avgIn")
	for _, s := range snapshots {
		fmt.Fprintf(&b, "%-20s %6d %6d %6d %7d %7d %8.2f\n",
			s.Timestamp.Format("2006-01-02 15:04:05"),
			s.FileCount, s.EdgeCount, s.CycleCount, s.IssueCount, s.MaxFanIn, s.AvgFanIn)
	}
	return b.String()
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "%s (%d)\n", title, len(items))
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
	b.WriteString("\n")
}

func writeInfo(b *strings.Builder, info query.ResultInfo) {
	fmt.Fprintf(b, "~%d tokens", info.TokenEstimate)
	if info.Truncated {
		b.WriteString(" (truncated)")
	}
	b.WriteString("\n")
}

func sortedIssueKinds(counts map[graph.IssueKind]int) []graph.IssueKind {
	kinds := make([]graph.IssueKind, 0, len(counts))
	for kind := range counts {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
