package annotations

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/gobwas/glob"
	"github.com/google/uuid"

	"codegraph/internal/core/errors"
	"codegraph/internal/engine/graph"
	"codegraph/internal/shared/util"
)

const fileVersion = 1

// manualReason marks edges and entrypoints a user asserted by hand. Manual
// knowledge outranks anything an indexer inferred.
const manualReason = "manual annotation"

type Kind string

const (
	KindEdge       Kind = "edge"
	KindEntrypoint Kind = "entrypoint"
	KindIgnore     Kind = "ignore"
)

// Annotation is one persisted user assertion. Which fields are meaningful
// depends on Kind; unused fields stay zero and are omitted from the file.
type Annotation struct {
	ID        string    `toml:"id"`
	Kind      Kind      `toml:"kind"`
	CreatedAt time.Time `toml:"created_at"`
	Note      string    `toml:"note,omitempty"`

	// edge
	From     string `toml:"from,omitempty"`
	To       string `toml:"to,omitempty"`
	EdgeKind string `toml:"edge_kind,omitempty"`

	// entrypoint
	Path           string `toml:"path,omitempty"`
	Name           string `toml:"name,omitempty"`
	EntrypointKind string `toml:"entrypoint_kind,omitempty"`

	// ignore
	IssueKind string `toml:"issue_kind,omitempty"`
	Pattern   string `toml:"pattern,omitempty"`
}

type fileFormat struct {
	Version     int          `toml:"version"`
	Annotations []Annotation `toml:"annotations"`
}

// Manager owns the annotation file. All mutations persist immediately; a
// missing file is an empty set and a corrupt file degrades to an empty set
// with a warning so indexing can proceed.
type Manager struct {
	path string

	mu      sync.Mutex
	entries []Annotation
}

func NewManager(path string) *Manager {
	m := &Manager{path: path}
	m.load()
	return m
}

func (m *Manager) load() {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("failed to read annotation file", "path", m.path, "error", err)
		}
		return
	}
	var f fileFormat
	if _, err := toml.Decode(string(data), &f); err != nil {
		slog.Warn("annotation file is corrupt, starting with an empty set",
			"path", m.path, "error", err)
		return
	}
	if f.Version != 0 && f.Version != fileVersion {
		slog.Warn("annotation file has unsupported version, starting with an empty set",
			"path", m.path, "version", f.Version)
		return
	}
	m.entries = f.Annotations
}

func (m *Manager) saveLocked() error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(fileFormat{
		Version:     fileVersion,
		Annotations: m.entries,
	}); err != nil {
		return errors.Wrap(err, errors.CodeInternal, "encode annotation file")
	}
	if err := util.WriteFileWithDirs(m.path, buf.Bytes(), 0o644); err != nil {
		return errors.Wrap(err, errors.CodeInternal, "write annotation file")
	}
	return nil
}

func (m *Manager) AddEdge(from, to string, kind graph.EdgeKind, note string) (Annotation, error) {
	if strings.TrimSpace(from) == "" || strings.TrimSpace(to) == "" {
		return Annotation{}, errors.New(errors.CodeValidationError, "edge annotation requires from and to")
	}
	switch kind {
	case graph.EdgeImports, graph.EdgeCalls, graph.EdgeRegisters, graph.EdgeReexports:
	default:
		return Annotation{}, errors.New(errors.CodeValidationError, "unknown edge kind")
	}
	return m.append(Annotation{
		Kind: KindEdge, From: canonicalEndpoint(from), To: canonicalEndpoint(to),
		EdgeKind: string(kind), Note: note,
	})
}

// canonicalEndpoint maps a user-supplied edge endpoint to a node identity so
// the stored edge lines up with what the indexers emit. Prefixed identities
// pass through with their path part normalized; a bare value that looks like
// a path becomes a file identity, anything else a module name.
func canonicalEndpoint(raw string) string {
	value := strings.TrimSpace(raw)
	for _, kind := range []graph.NodeKind{graph.NodeFile, graph.NodeModule, graph.NodeEntrypoint} {
		prefix := string(kind) + ":"
		if !strings.HasPrefix(value, prefix) {
			continue
		}
		rest := strings.TrimPrefix(value, prefix)
		if kind == graph.NodeModule {
			return graph.ModuleID(rest)
		}
		return graph.NodeID(kind, util.NormalizePatternPath(rest))
	}
	if strings.ContainsAny(value, "/.") {
		return graph.FileID(util.NormalizePatternPath(value))
	}
	return graph.ModuleID(value)
}

func (m *Manager) AddEntrypoint(path, name, kind string) (Annotation, error) {
	if strings.TrimSpace(path) == "" {
		return Annotation{}, errors.New(errors.CodeValidationError, "entrypoint annotation requires a path")
	}
	switch kind {
	case "main", "route", "job", "handler":
	default:
		return Annotation{}, errors.New(errors.CodeValidationError, "unknown entrypoint kind")
	}
	if name == "" {
		name = filepath.Base(path)
	}
	return m.append(Annotation{
		Kind: KindEntrypoint, Path: util.NormalizePatternPath(path), Name: name, EntrypointKind: kind,
	})
}

func (m *Manager) AddIgnore(issueKind graph.IssueKind, pattern string) (Annotation, error) {
	if strings.TrimSpace(pattern) == "" {
		return Annotation{}, errors.New(errors.CodeValidationError, "ignore annotation requires a pattern")
	}
	if _, err := glob.Compile(util.NormalizePatternPath(pattern), '/'); err != nil {
		return Annotation{}, errors.AddContext(
			errors.Wrap(err, errors.CodeValidationError, "invalid ignore pattern"),
			errors.CtxPattern, pattern)
	}
	return m.append(Annotation{
		Kind: KindIgnore, IssueKind: string(issueKind), Pattern: pattern,
	})
}

func (m *Manager) append(a Annotation) (Annotation, error) {
	a.ID = uuid.NewString()
	a.CreatedAt = time.Now().UTC()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, a)
	if err := m.saveLocked(); err != nil {
		m.entries = m.entries[:len(m.entries)-1]
		return Annotation{}, err
	}
	return a, nil
}

func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, entry := range m.entries {
		if entry.ID != id {
			continue
		}
		removed := entry
		m.entries = append(m.entries[:i], m.entries[i+1:]...)
		if err := m.saveLocked(); err != nil {
			m.entries = append(m.entries[:i], append([]Annotation{removed}, m.entries[i:]...)...)
			return err
		}
		return nil
	}
	return errors.AddContext(
		errors.New(errors.CodeNotFound, "annotation not found"), "id", id)
}

// All returns a copy of the entries, oldest first.
func (m *Manager) All() []Annotation {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]Annotation(nil), m.entries...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// ShouldIgnore reports whether an issue of the given kind in the given file is
// annotated away. Patterns are glob matches over normalized paths; an empty
// issue kind on the annotation matches every kind.
func (m *Manager) ShouldIgnore(kind graph.IssueKind, file string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	normalized := util.NormalizePatternPath(file)
	for _, entry := range m.entries {
		if entry.Kind != KindIgnore {
			continue
		}
		if entry.IssueKind != "" && entry.IssueKind != string(kind) {
			continue
		}
		g, err := glob.Compile(util.NormalizePatternPath(entry.Pattern), '/')
		if err != nil {
			continue
		}
		if g.Match(normalized) {
			return true
		}
	}
	return false
}

// GraphParts materializes the manual edges and entrypoints as graph elements
// ready to merge into a build. Manual edges always carry high confidence.
func (m *Manager) GraphParts() ([]graph.GraphNode, []graph.GraphEdge) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var nodes []graph.GraphNode
	var edges []graph.GraphEdge
	for _, entry := range m.entries {
		switch entry.Kind {
		case KindEdge:
			edges = append(edges, graph.GraphEdge{
				From:       entry.From,
				To:         entry.To,
				Kind:       graph.EdgeKind(entry.EdgeKind),
				Confidence: graph.ConfidenceHigh,
				Reason:     manualReason,
			})
		case KindEntrypoint:
			id := graph.NodeID(graph.NodeEntrypoint, entry.Path)
			nodes = append(nodes, graph.GraphNode{
				ID:   id,
				Kind: graph.NodeEntrypoint,
				Name: entry.Name,
				Path: entry.Path,
				Meta: graph.NodeMeta{EntrypointKind: entry.EntrypointKind},
			})
			edges = append(edges, graph.GraphEdge{
				From:       id,
				To:         graph.FileID(entry.Path),
				Kind:       graph.EdgeCalls,
				Confidence: graph.ConfidenceHigh,
				Reason:     manualReason,
			})
		}
	}
	return nodes, edges
}
