// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"sort"
	"sync"
)

// =============================================================================
// Labels and relationship types
// =============================================================================

// Label identifies the kind of entity a node represents.
type Label int

const (
	// LabelAuthor is a paper author keyed by display name.
	LabelAuthor Label = iota

	// LabelPaper is a scholarly work keyed by DOI or normalized title.
	LabelPaper

	// LabelJournal is a publication venue keyed by its name.
	LabelJournal

	// LabelKeyword is a topic term keyed by the normalized term.
	LabelKeyword

	// LabelResearcher is an ORCID-identified person, keyed by ORCID.
	LabelResearcher

	// NumLabels is the number of defined labels.
	NumLabels
)

// String returns the canonical name of the label.
func (l Label) String() string {
	switch l {
	case LabelAuthor:
		return "Author"
	case LabelPaper:
		return "Paper"
	case LabelJournal:
		return "Journal"
	case LabelKeyword:
		return "Keyword"
	case LabelResearcher:
		return "Researcher"
	default:
		return "Unknown"
	}
}

// ParseLabel maps a canonical label name to its Label value.
func ParseLabel(s string) (Label, error) {
	switch s {
	case "Author":
		return LabelAuthor, nil
	case "Paper":
		return LabelPaper, nil
	case "Journal":
		return LabelJournal, nil
	case "Keyword":
		return LabelKeyword, nil
	case "Researcher":
		return LabelResearcher, nil
	default:
		return 0, ErrInvalidLabel
	}
}

// RelType identifies the kind of relationship an edge represents.
type RelType int

const (
	// RelWrote connects an Author to a Paper. Carries authorship order.
	RelWrote RelType = iota

	// RelPublishedIn connects a Paper to its Journal.
	RelPublishedIn

	// RelHasKeyword connects a Paper to a Keyword.
	RelHasKeyword

	// RelSharesAuthor connects two Papers with a common author. Derived,
	// accumulating: weight counts the supporting authors.
	RelSharesAuthor

	// RelRelatedTo connects two Papers with a common keyword. Derived,
	// accumulating: weight counts the supporting keywords.
	RelRelatedTo

	// RelPotentiallyCites is a directed citation candidate from a newer
	// Paper to an older one. Derived, non-accumulating.
	RelPotentiallyCites

	// RelCollaborated connects two Researchers who co-authored a paper.
	// Derived, accumulating: weight counts the shared papers.
	RelCollaborated

	// NumRelTypes is the number of defined relationship types.
	NumRelTypes
)

// String returns the canonical name of the relationship type.
func (t RelType) String() string {
	switch t {
	case RelWrote:
		return "WROTE"
	case RelPublishedIn:
		return "PUBLISHED_IN"
	case RelHasKeyword:
		return "HAS_KEYWORD"
	case RelSharesAuthor:
		return "SHARES_AUTHOR"
	case RelRelatedTo:
		return "RELATED_TO"
	case RelPotentiallyCites:
		return "POTENTIALLY_CITES"
	case RelCollaborated:
		return "COLLABORATED"
	default:
		return "UNKNOWN"
	}
}

// ParseRelType maps a canonical relationship name to its RelType value.
func ParseRelType(s string) (RelType, error) {
	switch s {
	case "WROTE":
		return RelWrote, nil
	case "PUBLISHED_IN":
		return RelPublishedIn, nil
	case "HAS_KEYWORD":
		return RelHasKeyword, nil
	case "SHARES_AUTHOR":
		return RelSharesAuthor, nil
	case "RELATED_TO":
		return RelRelatedTo, nil
	case "POTENTIALLY_CITES":
		return RelPotentiallyCites, nil
	case "COLLABORATED":
		return RelCollaborated, nil
	default:
		return 0, ErrInvalidRelType
	}
}

// Accumulating reports whether repeated Connect calls on the same ordered
// (source, target, type) triple add their deltas to one edge. For the
// remaining types a repeated Connect is a silent no-op.
func (t RelType) Accumulating() bool {
	switch t {
	case RelSharesAuthor, RelRelatedTo, RelCollaborated:
		return true
	default:
		return false
	}
}

// Direction selects which edges EdgesOf reports relative to its node.
type Direction int

const (
	// Outgoing selects edges whose source is the node.
	Outgoing Direction = iota

	// Incoming selects edges whose target is the node.
	Incoming

	// Both selects outgoing edges followed by incoming edges. Entries are
	// not merged; a symmetric derived pair appears once per direction.
	Both
)

// =============================================================================
// Handles, nodes, neighbors
// =============================================================================

// Handle is an opaque reference to a node within one Store. Handles are
// only meaningful for the Store that issued them.
type Handle int

// InvalidHandle is returned alongside errors from lookups.
const InvalidHandle Handle = -1

// Well-known attribute names used by the ingestion layer and inference.
const (
	// AttrPublished holds the publication year of a Paper as an int.
	// Missing or non-integer values mean the year is unknown.
	AttrPublished = "published"

	// AttrTitle holds the display title of a Paper.
	AttrTitle = "title"

	// AttrDOI holds the DOI of a Paper when one is known.
	AttrDOI = "doi"
)

// NodeInfo is a read-only view of a node's identity.
type NodeInfo struct {
	// Handle is the node's handle within its store.
	Handle Handle

	// Label is the node's entity label.
	Label Label

	// Key is the node's natural identifier, unique within the label.
	Key string
}

// Neighbor is one adjacency entry returned by EdgesOf.
type Neighbor struct {
	// Handle is the neighboring node.
	Handle Handle

	// Weight is the edge weight. For accumulating types this is the
	// cumulative evidence count.
	Weight float64

	// Order is the edge ordinal (authorship position on WROTE edges).
	// Zero means unset.
	Order int
}

// edgeRec is the stored form of one directed edge.
type edgeRec struct {
	weight float64
	order  int
}

// nodeRec is the stored form of one node.
type nodeRec struct {
	label Label
	key   string
	attrs map[string]any
}

// =============================================================================
// Store
// =============================================================================

// Default capacity limits for a Store.
const (
	// DefaultMaxNodes bounds the node arena.
	DefaultMaxNodes = 1_000_000

	// DefaultMaxEdges bounds the total directed edge count.
	DefaultMaxEdges = 10_000_000
)

// StoreOptions configures Store limits.
type StoreOptions struct {
	// MaxNodes is the maximum number of nodes. Default: DefaultMaxNodes.
	MaxNodes int

	// MaxEdges is the maximum number of directed edges.
	// Default: DefaultMaxEdges.
	MaxEdges int
}

// StoreOption is a functional option for configuring a Store.
type StoreOption func(*StoreOptions)

// WithMaxNodes sets the maximum node count.
func WithMaxNodes(n int) StoreOption {
	return func(o *StoreOptions) {
		o.MaxNodes = n
	}
}

// WithMaxEdges sets the maximum directed edge count.
func WithMaxEdges(n int) StoreOption {
	return func(o *StoreOptions) {
		o.MaxEdges = n
	}
}

// Store is the heterogeneous scholarly graph: deduplicated typed nodes and
// directed typed weighted edges.
//
// Description:
//
//	Nodes live in an arena indexed by Handle; (label, key) pairs are unique
//	and natural keys are unique across labels so the key-based ingestion
//	surface can resolve a bare key. Edges are kept in per-node, per-type
//	adjacency maps for O(1) upsert and accumulate.
//
// Thread Safety:
//
//	All methods are safe for concurrent use. Writes take the write lock;
//	reads and Project take the read lock. The engine contract is
//	single-writer: ingestion and inference must not overlap a Project of
//	the same store.
type Store struct {
	mu sync.RWMutex

	nodes      []nodeRec
	byLabelKey [NumLabels]map[string]Handle
	byKey      map[string]Handle
	byLabel    [NumLabels][]Handle // first-seen order, projection scan order

	out []map[RelType]map[Handle]*edgeRec
	in  []map[RelType]map[Handle]*edgeRec

	edgeCount   int
	edgesByType [NumRelTypes]int

	maxNodes int
	maxEdges int
}

// NewStore creates an empty Store.
//
// Example:
//
//	s := graph.NewStore(graph.WithMaxNodes(50_000))
//	h, err := s.Upsert(graph.LabelPaper, "10.1000/xyz", map[string]any{
//	    graph.AttrTitle:     "Weighted graphs",
//	    graph.AttrPublished: 2019,
//	})
func NewStore(opts ...StoreOption) *Store {
	options := StoreOptions{
		MaxNodes: DefaultMaxNodes,
		MaxEdges: DefaultMaxEdges,
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.MaxNodes <= 0 {
		options.MaxNodes = DefaultMaxNodes
	}
	if options.MaxEdges <= 0 {
		options.MaxEdges = DefaultMaxEdges
	}

	s := &Store{
		byKey:    make(map[string]Handle),
		maxNodes: options.MaxNodes,
		maxEdges: options.MaxEdges,
	}
	for l := range s.byLabelKey {
		s.byLabelKey[l] = make(map[string]Handle)
	}
	return s
}

// Upsert returns the handle for (label, key), creating the node when it is
// absent.
//
// Description:
//
//	When the pair already exists the stored attributes are left untouched;
//	use MergeAttributes for an explicit merge. Attribute maps are copied
//	on insert, so callers may reuse theirs.
//
// Errors:
//
//	ErrInvalidLabel - label outside the enum range.
//	ErrEmptyKey - key is the empty string.
//	ErrDuplicateKey - key exists under a different label.
//	ErrMaxNodesExceeded - node limit reached.
//
// Complexity: O(1) amortized.
func (s *Store) Upsert(label Label, key string, attrs map[string]any) (Handle, error) {
	if label < 0 || label >= NumLabels {
		return InvalidHandle, ErrInvalidLabel
	}
	if key == "" {
		return InvalidHandle, ErrEmptyKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if h, ok := s.byLabelKey[label][key]; ok {
		return h, nil
	}
	if h, ok := s.byKey[key]; ok {
		// Same key under another label. The key index is authoritative for
		// the key-based ingestion surface, so this is a hard conflict.
		_ = h
		return InvalidHandle, ErrDuplicateKey
	}
	if len(s.nodes) >= s.maxNodes {
		return InvalidHandle, ErrMaxNodesExceeded
	}

	h := Handle(len(s.nodes))
	s.nodes = append(s.nodes, nodeRec{
		label: label,
		key:   key,
		attrs: cloneAttrs(attrs),
	})
	s.byLabelKey[label][key] = h
	s.byKey[key] = h
	s.byLabel[label] = append(s.byLabel[label], h)
	s.out = append(s.out, nil)
	s.in = append(s.in, nil)
	return h, nil
}

// Get returns the handle for (label, key) if present.
func (s *Store) Get(label Label, key string) (Handle, bool) {
	if label < 0 || label >= NumLabels {
		return InvalidHandle, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.byLabelKey[label][key]
	if !ok {
		return InvalidHandle, false
	}
	return h, true
}

// Resolve returns the handle for a bare natural key, searching across all
// labels. This is the lookup behind the key-based ingestion surface.
func (s *Store) Resolve(key string) (Handle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.byKey[key]
	if !ok {
		return InvalidHandle, false
	}
	return h, true
}

// Info returns the identity of the node behind a handle.
func (s *Store) Info(h Handle) (NodeInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.valid(h) {
		return NodeInfo{Handle: InvalidHandle}, ErrInvalidHandle
	}
	n := s.nodes[h]
	return NodeInfo{Handle: h, Label: n.label, Key: n.key}, nil
}

// AttributesOf returns a copy of the node's attributes.
func (s *Store) AttributesOf(h Handle) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.valid(h) {
		return nil, ErrInvalidHandle
	}
	return cloneAttrs(s.nodes[h].attrs), nil
}

// MergeAttributes overlays attrs onto the node's attributes. Existing keys
// are overwritten; absent keys are kept. This is the only way stored
// attributes change after insert.
func (s *Store) MergeAttributes(h Handle, attrs map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.valid(h) {
		return ErrInvalidHandle
	}
	if len(attrs) == 0 {
		return nil
	}
	n := &s.nodes[h]
	if n.attrs == nil {
		n.attrs = make(map[string]any, len(attrs))
	}
	for k, v := range attrs {
		n.attrs[k] = v
	}
	return nil
}

// PublishedYear reads the AttrPublished attribute as an int. The second
// return is false when the year is absent or not an integer, which
// excludes the node from temporal inference.
func (s *Store) PublishedYear(h Handle) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.valid(h) {
		return 0, false
	}
	return yearOf(s.nodes[h].attrs)
}

// HandlesByLabel returns the handles of all nodes with the given label in
// first-seen order. The slice is a copy.
func (s *Store) HandlesByLabel(label Label) []Handle {
	if label < 0 || label >= NumLabels {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	handles := make([]Handle, len(s.byLabel[label]))
	copy(handles, s.byLabel[label])
	return handles
}

// Connect upserts the directed edge (source, target, relType).
//
// Description:
//
//	For accumulating types an existing edge gains delta weight; otherwise
//	a repeat call is a silent no-op. Self-loops are silently rejected so
//	inference rules never link an entity to itself. A delta <= 0 is
//	treated as 1.
//
// Errors:
//
//	ErrInvalidHandle - either endpoint does not belong to this store.
//	ErrInvalidRelType - relType outside the enum range.
//	ErrMaxEdgesExceeded - edge limit reached (new edges only).
//
// Thread Safety: takes the write lock.
func (s *Store) Connect(source, target Handle, relType RelType, delta float64) error {
	_, err := s.connect(source, target, relType, delta, 0)
	return err
}

// ConnectOrdered is Connect for non-accumulating types with an ordinal
// attached on first creation (authorship position on WROTE edges).
func (s *Store) ConnectOrdered(source, target Handle, relType RelType, delta float64, order int) error {
	_, err := s.connect(source, target, relType, delta, order)
	return err
}

// ConnectKeys resolves both endpoints by bare natural key and connects
// them. This is the ingestion surface for callers that never hold handles.
//
// Errors:
//
//	ErrUnknownEntity - either key was never upserted.
//	Plus everything Connect returns.
func (s *Store) ConnectKeys(sourceKey, targetKey string, relType RelType, delta float64) error {
	s.mu.RLock()
	src, okSrc := s.byKey[sourceKey]
	dst, okDst := s.byKey[targetKey]
	s.mu.RUnlock()
	if !okSrc || !okDst {
		return ErrUnknownEntity
	}
	_, err := s.connect(src, dst, relType, delta, 0)
	return err
}

// connect is the single edge-upsert path. The bool reports whether a new
// edge record was created (false for accumulate and for no-op repeats).
func (s *Store) connect(source, target Handle, relType RelType, delta float64, order int) (bool, error) {
	if relType < 0 || relType >= NumRelTypes {
		return false, ErrInvalidRelType
	}
	if delta <= 0 {
		delta = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.valid(source) || !s.valid(target) {
		return false, ErrInvalidHandle
	}
	if source == target {
		// Silent by contract: inference over co-authorship would otherwise
		// produce author-to-self edges on every pass.
		return false, nil
	}

	rec := s.edge(source, target, relType)
	if rec != nil {
		if relType.Accumulating() {
			rec.weight += delta
		}
		return false, nil
	}

	if s.edgeCount >= s.maxEdges {
		return false, ErrMaxEdgesExceeded
	}

	rec = &edgeRec{weight: delta, order: order}
	if s.out[source] == nil {
		s.out[source] = make(map[RelType]map[Handle]*edgeRec)
	}
	if s.out[source][relType] == nil {
		s.out[source][relType] = make(map[Handle]*edgeRec)
	}
	s.out[source][relType][target] = rec

	if s.in[target] == nil {
		s.in[target] = make(map[RelType]map[Handle]*edgeRec)
	}
	if s.in[target][relType] == nil {
		s.in[target][relType] = make(map[Handle]*edgeRec)
	}
	s.in[target][relType][source] = rec

	s.edgeCount++
	s.edgesByType[relType]++
	return true, nil
}

// edge returns the record for (source, target, relType) or nil. Caller
// holds the lock.
func (s *Store) edge(source, target Handle, relType RelType) *edgeRec {
	m := s.out[source]
	if m == nil {
		return nil
	}
	byTarget := m[relType]
	if byTarget == nil {
		return nil
	}
	return byTarget[target]
}

// EdgesOf returns the adjacency of a node for one relationship type.
//
// Description:
//
//	Entries are sorted by neighbor handle for deterministic output. With
//	Direction Both, outgoing entries come first, then incoming; entries
//	are not merged.
//
// Errors:
//
//	ErrInvalidHandle - the handle does not belong to this store.
//	ErrInvalidRelType - relType outside the enum range.
func (s *Store) EdgesOf(h Handle, relType RelType, dir Direction) ([]Neighbor, error) {
	if relType < 0 || relType >= NumRelTypes {
		return nil, ErrInvalidRelType
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.valid(h) {
		return nil, ErrInvalidHandle
	}

	var neighbors []Neighbor
	if dir == Outgoing || dir == Both {
		neighbors = appendNeighbors(neighbors, s.out[h], relType)
	}
	if dir == Incoming || dir == Both {
		neighbors = appendNeighbors(neighbors, s.in[h], relType)
	}
	return neighbors, nil
}

// Weight returns the weight of the directed edge (source, target, relType)
// and whether the edge exists.
func (s *Store) Weight(source, target Handle, relType RelType) (float64, bool) {
	if relType < 0 || relType >= NumRelTypes {
		return 0, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.valid(source) || !s.valid(target) {
		return 0, false
	}
	rec := s.edge(source, target, relType)
	if rec == nil {
		return 0, false
	}
	return rec.weight, true
}

// NodeCount returns the number of nodes.
func (s *Store) NodeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

// EdgeCount returns the number of directed edges.
func (s *Store) EdgeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.edgeCount
}

// StoreStats summarizes store contents.
type StoreStats struct {
	// Nodes is the total node count.
	Nodes int `json:"nodes"`

	// Edges is the total directed edge count.
	Edges int `json:"edges"`

	// NodesByLabel maps label name to node count.
	NodesByLabel map[string]int `json:"nodes_by_label"`

	// EdgesByType maps relationship name to edge count.
	EdgesByType map[string]int `json:"edges_by_type"`
}

// Stats returns a snapshot of store counts.
func (s *Store) Stats() StoreStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := StoreStats{
		Nodes:        len(s.nodes),
		Edges:        s.edgeCount,
		NodesByLabel: make(map[string]int, NumLabels),
		EdgesByType:  make(map[string]int, NumRelTypes),
	}
	for l := Label(0); l < NumLabels; l++ {
		if n := len(s.byLabel[l]); n > 0 {
			stats.NodesByLabel[l.String()] = n
		}
	}
	for t := RelType(0); t < NumRelTypes; t++ {
		if n := s.edgesByType[t]; n > 0 {
			stats.EdgesByType[t.String()] = n
		}
	}
	return stats
}

// valid reports whether h indexes the node arena. Caller holds a lock.
func (s *Store) valid(h Handle) bool {
	return h >= 0 && int(h) < len(s.nodes)
}

// appendNeighbors flattens one adjacency map in handle order.
func appendNeighbors(dst []Neighbor, adj map[RelType]map[Handle]*edgeRec, relType RelType) []Neighbor {
	if adj == nil {
		return dst
	}
	byTarget := adj[relType]
	if len(byTarget) == 0 {
		return dst
	}
	start := len(dst)
	for h, rec := range byTarget {
		dst = append(dst, Neighbor{Handle: h, Weight: rec.weight, Order: rec.order})
	}
	sort.Slice(dst[start:], func(i, j int) bool {
		return dst[start+i].Handle < dst[start+j].Handle
	})
	return dst
}

// cloneAttrs copies an attribute map. Nil and empty maps stay nil to keep
// empty nodes cheap.
func cloneAttrs(attrs map[string]any) map[string]any {
	if len(attrs) == 0 {
		return nil
	}
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}

// yearOf extracts an integer publication year from an attribute map.
// JSON decoding may deliver float64; both forms are accepted.
func yearOf(attrs map[string]any) (int, bool) {
	v, ok := attrs[AttrPublished]
	if !ok {
		return 0, false
	}
	switch y := v.(type) {
	case int:
		return y, true
	case int64:
		return int(y), true
	case float64:
		if y == float64(int(y)) {
			return int(y), true
		}
		return 0, false
	default:
		return 0, false
	}
}
