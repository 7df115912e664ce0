package graph

import "time"

// NodeKind classifies a graph vertex.
type NodeKind string

const (
	NodeFile       NodeKind = "file"
	NodeModule     NodeKind = "module"
	NodeEntrypoint NodeKind = "entrypoint"
)

// EdgeKind classifies a directed relationship between two nodes.
type EdgeKind string

const (
	EdgeImports   EdgeKind = "imports"
	EdgeCalls     EdgeKind = "calls"
	EdgeRegisters EdgeKind = "registers"
	EdgeReexports EdgeKind = "reexports"
)

// Confidence grades how certain an indexer is that an edge's target is correct.
//
// The rubric is uniform across all indexers:
//
//	High:   syntactically unambiguous static import/include with a literal
//	        specifier (import "x", from x import y, use crate::x).
//	Medium: dynamic import/require whose specifier is still a single string
//	        literal (import("./x"), require(name) with literal name), or a
//	        framework registration resolved by hint.
//	Low:    string-interpolated or heuristic references, regex-fallback
//	        matches, template specifiers, registration strings the resolver
//	        could not map to a file.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Severity ranks a structural issue.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// IssueKind enumerates the structural problems the analyzers report.
type IssueKind string

const (
	IssueCircularDependency  IssueKind = "CIRCULAR_DEPENDENCY"
	IssueReexportCycle       IssueKind = "REEXPORT_CYCLE"
	IssueDynamicEdgeUnknown  IssueKind = "DYNAMIC_EDGE_UNKNOWN"
	IssueEntrypointNoHandler IssueKind = "ENTRYPOINT_NO_HANDLER"
	IssueBrokenExportChain   IssueKind = "BROKEN_EXPORT_CHAIN"
	IssueOrphanedExport      IssueKind = "ORPHANED_EXPORT"
	IssueLayerViolation      IssueKind = "LAYER_VIOLATION"
)

// Location pinpoints where an edge or issue was derived from.
type Location struct {
	File   string
	Line   int
	Column int
}

// NodeMeta holds the known extension fields a node can carry, plus one
// free-form bucket for adapter-specific data.
type NodeMeta struct {
	Language       string
	Exports        []string
	IsBarrel       bool
	EntrypointKind string // main, route, job, handler
	Extra          map[string]string
}

// GraphNode is a vertex: a file, a logical (usually external) module, or a
// detected entrypoint. Identity is the composite "kind:path" key.
type GraphNode struct {
	ID   string
	Kind NodeKind
	Name string
	Path string
	Meta NodeMeta
}

// NodeID builds the canonical identity for a node.
func NodeID(kind NodeKind, path string) string {
	return string(kind) + ":" + path
}

// FileID is shorthand for the identity of a file node.
func FileID(path string) string { return NodeID(NodeFile, path) }

// ModuleID is shorthand for the identity of an external-module placeholder.
func ModuleID(name string) string { return NodeID(NodeModule, name) }

// GraphEdge is a directed relationship between two node identities. Duplicate
// (from,to,kind) edges may exist with distinct reasons; queries deduplicate
// by that triple when counting.
type GraphEdge struct {
	From       string
	To         string
	Kind       EdgeKind
	Confidence Confidence
	Reason     string
	Specifier  string // raw import specifier, before resolution
	Location   Location
}

// Key returns the (from,to,kind) dedup triple.
func (e GraphEdge) Key() string {
	return e.From + "\x00" + e.To + "\x00" + string(e.Kind)
}

// GraphIssue is a structural problem detected by an analyzer. Issues are
// analysis results, not errors.
type GraphIssue struct {
	Kind     IssueKind
	Severity Severity
	File     string
	Message  string
	Evidence []string
}

// Meta tracks bookkeeping about the last index pass.
type Meta struct {
	LastIndexedAt    time.Time
	Duration         time.Duration
	FileCount        int
	ErrorCount       int
	SkippedGenerated int
}
