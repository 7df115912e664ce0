package query

import (
	"codegraph/internal/engine/analysis"
	"codegraph/internal/engine/graph"
)

// ResultInfo is attached to every query result so the caller can budget
// model context before rendering: an approximate token cost plus whether any
// list in the result was cut short by a limit.
type ResultInfo struct {
	TokenEstimate int  `json:"token_estimate"`
	Truncated     bool `json:"truncated"`
}

// Hotspot is a file ranked by how many distinct importers it has.
type Hotspot struct {
	Path        string `json:"path"`
	ImportCount int    `json:"import_count"`
}

// EntrypointInfo is one detected or annotated entrypoint.
type EntrypointInfo struct {
	Path string `json:"path"`
	Kind string `json:"kind"` // main, route, job, handler
}

// Digest summarizes the graph for a scope: counts, the most-depended-on
// files, the entrypoint surface, and issue totals by kind.
type Digest struct {
	Scope        string                  `json:"scope,omitempty"`
	FileCount    int                     `json:"file_count"`
	ModuleCount  int                     `json:"module_count"`
	EdgeCount    int                     `json:"edge_count"`
	Hotspots     []Hotspot               `json:"hotspots"`
	Entrypoints  []EntrypointInfo        `json:"entrypoints"`
	IssuesByKind map[graph.IssueKind]int `json:"issues_by_kind"`
	Info         ResultInfo              `json:"info"`
}

// RiskLevel grades how dangerous a change to the impact target is.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Impact is the blast radius of changing one node: who imports it directly,
// who is reachable at each hop over incoming edges, and which entrypoints
// that reaches.
type Impact struct {
	Target              string           `json:"target"`
	Depth               int              `json:"depth"`
	DirectDependents    []string         `json:"direct_dependents"`
	ImpactByDepth       [][]string       `json:"impact_by_depth"` // index 0 = one hop
	AffectedEntrypoints []EntrypointInfo `json:"affected_entrypoints"`
	TotalAffected       int              `json:"total_affected"`
	Risk                RiskLevel        `json:"risk"`
	Info                ResultInfo       `json:"info"`
}

// PathOptions bounds a dependency-chain search.
type PathOptions struct {
	MaxDepth int
	MaxPaths int
}

// PathResult lists dependency chains from one node to another, shortest
// first. MaxDepthReached reports that the search gave up on branches longer
// than the depth bound, so absence of a path is not proof of disconnection.
type PathResult struct {
	From            string     `json:"from"`
	To              string     `json:"to"`
	Connected       bool       `json:"connected"`
	Paths           [][]string `json:"paths"`
	ShortestPath    []string   `json:"shortest_path,omitempty"`
	MaxDepthReached bool       `json:"max_depth_reached,omitempty"`
	Info            ResultInfo `json:"info"`
}

// ModuleDetails describes one node's place in the graph.
type ModuleDetails struct {
	Target            string           `json:"target"`
	Found             bool             `json:"found"`
	Language          string           `json:"language,omitempty"`
	Imports           []string         `json:"imports"`
	ImportedBy        []string         `json:"imported_by"`
	TransitiveImports []string         `json:"transitive_imports,omitempty"`
	Exports           []string         `json:"exports"`
	Reexports         []string         `json:"reexports"`
	Entrypoints       []EntrypointInfo `json:"entrypoints"`
	IsBarrel          bool             `json:"is_barrel"`
	Info              ResultInfo       `json:"info"`
}

// IssueFilter narrows the issue listing. Zero values match everything.
type IssueFilter struct {
	Kind       graph.IssueKind
	Severity   graph.Severity
	PathPrefix string
}

// IssuesResult is the filtered issue listing plus per-kind totals over the
// filtered set.
type IssuesResult struct {
	Issues       []graph.GraphIssue      `json:"issues"`
	CountsByKind map[graph.IssueKind]int `json:"counts_by_kind"`
	Info         ResultInfo              `json:"info"`
}

// CyclesResult wraps a cycle-detection pass.
type CyclesResult struct {
	Cycles []analysis.Cycle `json:"cycles"`
	Info   ResultInfo       `json:"info"`
}

// LayersResult carries a layer-rule check alongside the active rule set.
type LayersResult struct {
	Rules      []analysis.LayerRule      `json:"rules"`
	Violations []analysis.LayerViolation `json:"violations"`
	Suggested  []analysis.LayerRule      `json:"suggested,omitempty"`
	Info       ResultInfo                `json:"info"`
}
