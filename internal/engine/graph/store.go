package graph

import (
	"codegraph/internal/core/errors"
	"codegraph/internal/shared/observability"
	"fmt"
	"sort"
	"sync"
)

// Store owns the canonical node/edge/issue sets for one indexed root. It is
// the single source of truth every analyzer and query reads from.
//
// Concurrency contract: all mutation happens on a single logical writer (the
// initial build merge or the incremental apply loop). Readers are safe at any
// time and always observe either the pre- or post-rebuild state, never a
// partial one: a full rebuild populates a staging state via Build and swaps
// it in atomically on Commit.
type Store struct {
	mu       sync.RWMutex
	live     *state
	building bool
	disposed bool
	epoch    uint64
	meta     Meta
}

type state struct {
	nodes    map[string]*GraphNode
	byKind   map[NodeKind]map[string]bool
	edges    []*GraphEdge
	incoming map[string][]*GraphEdge // to -> edges
	outgoing map[string][]*GraphEdge // from -> edges
	issues   []GraphIssue
}

func newState() *state {
	return &state{
		nodes:    make(map[string]*GraphNode),
		byKind:   make(map[NodeKind]map[string]bool),
		incoming: make(map[string][]*GraphEdge),
		outgoing: make(map[string][]*GraphEdge),
	}
}

func NewStore() *Store {
	return &Store{live: newState()}
}

// Build stages a full rebuild. Mutations go through the returned handle and
// become visible to readers only after Commit. Only one build may be in
// flight; direct Store mutations while a build is staged are a caller
// protocol violation and fail loudly.
type Build struct {
	store   *Store
	staging *state
	done    bool
}

func (s *Store) BeginBuild() (*Build, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkWritableLocked(); err != nil {
		return nil, err
	}
	if s.building {
		return nil, errors.New(errors.CodeConflict, "rebuild already in flight")
	}
	s.building = true
	return &Build{store: s, staging: newState()}, nil
}

// AddNode upserts into the staged state.
func (b *Build) AddNode(node GraphNode) {
	b.staging.addNode(node)
}

// AddEdge appends into the staged state.
func (b *Build) AddEdge(edge GraphEdge) {
	b.staging.addEdge(edge)
}

// Commit atomically swaps the staged state into the store.
func (b *Build) Commit(meta Meta) {
	s := b.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.done {
		return
	}
	b.done = true
	s.building = false
	s.live = b.staging
	s.meta = meta
	s.epoch++
	s.publishSizeLocked()
}

// Abort discards the staged state, leaving the pre-build state visible.
func (b *Build) Abort() {
	s := b.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.done {
		return
	}
	b.done = true
	s.building = false
}

// AddNode upserts a node by identity, merging metadata. It is the incremental
// mutation path; during a staged rebuild it fails with CONFLICT.
func (s *Store) AddNode(node GraphNode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkMutableLocked(); err != nil {
		return err
	}
	s.live.addNode(node)
	s.epoch++
	s.publishSizeLocked()
	return nil
}

// AddEdge appends an edge. Endpoints may reference nodes that do not exist
// yet; such edges are tolerated as external/unresolved until their targets
// materialize.
func (s *Store) AddEdge(edge GraphEdge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkMutableLocked(); err != nil {
		return err
	}
	s.live.addEdge(edge)
	s.epoch++
	s.publishSizeLocked()
	return nil
}

// RemoveFile removes the file node owned by path, any entrypoint nodes
// detected in that file, and every edge the file owned: edges originating at
// a removed node plus edges recorded while indexing the file. Edges other
// files aimed at the removed node are left in place; the incremental apply
// path re-indexes those importers so their specifiers re-resolve against the
// shrunken file set.
func (s *Store) RemoveFile(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkMutableLocked(); err != nil {
		return err
	}
	s.live.removeFile(path)
	s.epoch++
	s.publishSizeLocked()
	return nil
}

// RemoveOutgoing drops all edges whose From endpoint is the given node.
// Edges where the node is only the To endpoint are left untouched. Used by
// the incremental path before re-adding a changed file's edge set.
func (s *Store) RemoveOutgoing(nodeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkMutableLocked(); err != nil {
		return err
	}
	s.live.removeOutgoing(nodeID)
	s.epoch++
	s.publishSizeLocked()
	return nil
}

// PruneDetachedModules drops module placeholder nodes no edge touches
// anymore. The incremental path calls it after removals so the graph matches
// what a full rebuild without the removed files would produce.
func (s *Store) PruneDetachedModules() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkMutableLocked(); err != nil {
		return err
	}
	pruned := false
	for id := range s.live.byKind[NodeModule] {
		if len(s.live.incoming[id]) > 0 || len(s.live.outgoing[id]) > 0 {
			continue
		}
		delete(s.live.nodes, id)
		delete(s.live.byKind[NodeModule], id)
		pruned = true
	}
	if pruned {
		s.epoch++
		s.publishSizeLocked()
	}
	return nil
}

// SetIssues replaces the issue set.
func (s *Store) SetIssues(issues []GraphIssue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkWritableLocked(); err != nil {
		return err
	}
	s.live.issues = append([]GraphIssue(nil), issues...)
	s.epoch++
	observability.GraphIssues.Set(float64(len(issues)))
	return nil
}

// Clear resets the store to empty.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkMutableLocked(); err != nil {
		return err
	}
	s.live = newState()
	s.meta = Meta{}
	s.epoch++
	s.publishSizeLocked()
	return nil
}

// UpdateMeta merges last-index bookkeeping.
func (s *Store) UpdateMeta(meta Meta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkWritableLocked(); err != nil {
		return err
	}
	s.meta = meta
	return nil
}

// Dispose marks the store unusable. Any later access panics: a query against
// a disposed store is a caller-side protocol violation, not bad input.
func (s *Store) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disposed = true
	s.live = nil
}

func (s *Store) checkWritableLocked() error {
	if s.disposed {
		return errors.New(errors.CodeConflict, "store is disposed")
	}
	return nil
}

func (s *Store) checkMutableLocked() error {
	if err := s.checkWritableLocked(); err != nil {
		return err
	}
	if s.building {
		return errors.New(errors.CodeConflict, "store mutation attempted while a rebuild is in flight")
	}
	return nil
}

func (s *Store) checkReadableLocked() {
	if s.disposed {
		panic("graph: access to disposed store")
	}
}

// Epoch increments on every committed mutation; caches key invalidation off it.
func (s *Store) Epoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.checkReadableLocked()
	return s.epoch
}

func (s *Store) GetNode(id string) (*GraphNode, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.checkReadableLocked()
	node, ok := s.live.nodes[id]
	if !ok {
		return nil, false
	}
	return cloneNode(node), true
}

func (s *Store) NodesByKind(kind NodeKind) []*GraphNode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.checkReadableLocked()
	ids := make([]string, 0, len(s.live.byKind[kind]))
	for id := range s.live.byKind[kind] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	nodes := make([]*GraphNode, 0, len(ids))
	for _, id := range ids {
		nodes = append(nodes, cloneNode(s.live.nodes[id]))
	}
	return nodes
}

func (s *Store) AllNodes() []*GraphNode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.checkReadableLocked()
	ids := make([]string, 0, len(s.live.nodes))
	for id := range s.live.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	nodes := make([]*GraphNode, 0, len(ids))
	for _, id := range ids {
		nodes = append(nodes, cloneNode(s.live.nodes[id]))
	}
	return nodes
}

func (s *Store) AllEdges() []*GraphEdge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.checkReadableLocked()
	edges := make([]*GraphEdge, 0, len(s.live.edges))
	for _, e := range s.live.edges {
		edges = append(edges, cloneEdge(e))
	}
	return edges
}

// IncomingEdges returns edges pointing at the node, via the adjacency index.
func (s *Store) IncomingEdges(id string) []*GraphEdge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.checkReadableLocked()
	src := s.live.incoming[id]
	edges := make([]*GraphEdge, 0, len(src))
	for _, e := range src {
		edges = append(edges, cloneEdge(e))
	}
	return edges
}

// OutgoingEdges returns edges originating at the node.
func (s *Store) OutgoingEdges(id string) []*GraphEdge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.checkReadableLocked()
	src := s.live.outgoing[id]
	edges := make([]*GraphEdge, 0, len(src))
	for _, e := range src {
		edges = append(edges, cloneEdge(e))
	}
	return edges
}

// ImportCount counts distinct (from,kind) pairs among a node's incoming edges.
func (s *Store) ImportCount(id string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.checkReadableLocked()
	seen := make(map[string]bool)
	for _, e := range s.live.incoming[id] {
		seen[e.From+"\x00"+string(e.Kind)] = true
	}
	return len(seen)
}

func (s *Store) Issues() []GraphIssue {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.checkReadableLocked()
	return append([]GraphIssue(nil), s.live.issues...)
}

func (s *Store) MetaInfo() Meta {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.checkReadableLocked()
	return s.meta
}

func (s *Store) NodeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.checkReadableLocked()
	return len(s.live.nodes)
}

func (s *Store) EdgeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.checkReadableLocked()
	return len(s.live.edges)
}

func (s *Store) publishSizeLocked() {
	if s.live == nil {
		return
	}
	observability.GraphNodes.Set(float64(len(s.live.nodes)))
	observability.GraphEdges.Set(float64(len(s.live.edges)))
}

func (st *state) addNode(node GraphNode) {
	if node.ID == "" {
		node.ID = NodeID(node.Kind, node.Path)
	}
	existing, ok := st.nodes[node.ID]
	if !ok {
		c := cloneNode(&node)
		st.nodes[node.ID] = c
		if st.byKind[node.Kind] == nil {
			st.byKind[node.Kind] = make(map[string]bool)
		}
		st.byKind[node.Kind][node.ID] = true
		return
	}
	mergeMeta(&existing.Meta, node.Meta)
	if existing.Name == "" {
		existing.Name = node.Name
	}
	if existing.Path == "" {
		existing.Path = node.Path
	}
}

func (st *state) addEdge(edge GraphEdge) {
	e := cloneEdge(&edge)
	st.edges = append(st.edges, e)
	st.incoming[e.To] = append(st.incoming[e.To], e)
	st.outgoing[e.From] = append(st.outgoing[e.From], e)
}

func (st *state) removeFile(path string) {
	doomed := map[string]bool{FileID(path): true}
	for id := range st.byKind[NodeEntrypoint] {
		if node := st.nodes[id]; node != nil && node.Path == path {
			doomed[id] = true
		}
	}

	for id := range doomed {
		node, ok := st.nodes[id]
		if !ok {
			continue
		}
		delete(st.nodes, id)
		delete(st.byKind[node.Kind], id)
	}

	kept := st.edges[:0]
	for _, e := range st.edges {
		if doomed[e.From] || e.Location.File == path {
			continue
		}
		kept = append(kept, e)
	}
	st.edges = kept
	st.reindexEdges()
}

func (st *state) removeOutgoing(nodeID string) {
	kept := st.edges[:0]
	for _, e := range st.edges {
		if e.From == nodeID {
			continue
		}
		kept = append(kept, e)
	}
	st.edges = kept
	st.reindexEdges()
}

func (st *state) reindexEdges() {
	st.incoming = make(map[string][]*GraphEdge, len(st.incoming))
	st.outgoing = make(map[string][]*GraphEdge, len(st.outgoing))
	for _, e := range st.edges {
		st.incoming[e.To] = append(st.incoming[e.To], e)
		st.outgoing[e.From] = append(st.outgoing[e.From], e)
	}
}

func mergeMeta(dst *NodeMeta, src NodeMeta) {
	if src.Language != "" {
		dst.Language = src.Language
	}
	if len(src.Exports) > 0 {
		seen := make(map[string]bool, len(dst.Exports))
		for _, e := range dst.Exports {
			seen[e] = true
		}
		for _, e := range src.Exports {
			if !seen[e] {
				dst.Exports = append(dst.Exports, e)
				seen[e] = true
			}
		}
		sort.Strings(dst.Exports)
	}
	if src.IsBarrel {
		dst.IsBarrel = true
	}
	if src.EntrypointKind != "" {
		dst.EntrypointKind = src.EntrypointKind
	}
	for k, v := range src.Extra {
		if dst.Extra == nil {
			dst.Extra = make(map[string]string)
		}
		dst.Extra[k] = v
	}
}

func cloneNode(node *GraphNode) *GraphNode {
	if node == nil {
		return nil
	}
	c := *node
	c.Meta.Exports = append([]string(nil), node.Meta.Exports...)
	if node.Meta.Extra != nil {
		c.Meta.Extra = make(map[string]string, len(node.Meta.Extra))
		for k, v := range node.Meta.Extra {
			c.Meta.Extra[k] = v
		}
	}
	return &c
}

func cloneEdge(edge *GraphEdge) *GraphEdge {
	if edge == nil {
		return nil
	}
	c := *edge
	return &c
}

// String implements fmt.Stringer for debug logging.
func (n *GraphNode) String() string {
	return fmt.Sprintf("%s(%s)", n.ID, n.Name)
}
