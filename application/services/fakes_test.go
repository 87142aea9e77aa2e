package services

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"graphmeta-backend/application/ports"
	"graphmeta-backend/domain/graph"
	apperrors "graphmeta-backend/pkg/errors"
)

// fakeNodeStore is an in-memory NodeStore keyed by org then id.
type fakeNodeStore struct {
	mu    sync.Mutex
	nodes map[string]map[string]*graph.Node
	err   error
}

func newFakeNodeStore() *fakeNodeStore {
	return &fakeNodeStore{nodes: make(map[string]map[string]*graph.Node)}
}

// Upsert mirrors the ON CONFLICT clause of the SQL store: an existing
// row keeps its creation audit fields, and the caller's struct is
// updated to the persisted state.
func (f *fakeNodeStore) Upsert(_ context.Context, node *graph.Node) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.nodes[node.OrgID] == nil {
		f.nodes[node.OrgID] = make(map[string]*graph.Node)
	}
	copied := *node
	if existing, ok := f.nodes[node.OrgID][node.ID]; ok {
		copied.CreatedAt = existing.CreatedAt
		copied.CreatedBy = existing.CreatedBy
	}
	f.nodes[node.OrgID][node.ID] = &copied
	*node = copied
	return nil
}

func (f *fakeNodeStore) Get(_ context.Context, orgID, id string) (*graph.Node, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	node, ok := f.nodes[orgID][id]
	if !ok {
		return nil, apperrors.NewNotFoundError("Node")
	}
	copied := *node
	return &copied, nil
}

func (f *fakeNodeStore) List(_ context.Context, orgID string, filter ports.NodeFilter) ([]*graph.Node, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []*graph.Node
	for _, n := range f.nodes[orgID] {
		if filter.Type != "" && n.Type != filter.Type {
			continue
		}
		all = append(all, n)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	total := len(all)
	if filter.Offset < len(all) {
		all = all[filter.Offset:]
	} else {
		all = nil
	}
	if filter.Limit > 0 && filter.Limit < len(all) {
		all = all[:filter.Limit]
	}
	return all, total, nil
}

func (f *fakeNodeStore) Delete(_ context.Context, orgID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.nodes[orgID], id)
	return nil
}

func (f *fakeNodeStore) All(_ context.Context, orgID string) ([]*graph.Node, error) {
	nodes, _, err := f.List(context.Background(), orgID, ports.NodeFilter{})
	return nodes, err
}

// fakeEdgeStore is an in-memory EdgeStore.
type fakeEdgeStore struct {
	mu    sync.Mutex
	edges map[string]map[string]*graph.Edge
}

func newFakeEdgeStore() *fakeEdgeStore {
	return &fakeEdgeStore{edges: make(map[string]map[string]*graph.Edge)}
}

// Upsert mirrors the ON CONFLICT clause of the SQL store, like
// fakeNodeStore.Upsert.
func (f *fakeEdgeStore) Upsert(_ context.Context, edge *graph.Edge) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.edges[edge.OrgID] == nil {
		f.edges[edge.OrgID] = make(map[string]*graph.Edge)
	}
	copied := *edge
	if existing, ok := f.edges[edge.OrgID][edge.ID]; ok {
		copied.CreatedAt = existing.CreatedAt
		copied.CreatedBy = existing.CreatedBy
	}
	f.edges[edge.OrgID][edge.ID] = &copied
	*edge = copied
	return nil
}

func (f *fakeEdgeStore) Get(_ context.Context, orgID, id string) (*graph.Edge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	edge, ok := f.edges[orgID][id]
	if !ok {
		return nil, apperrors.NewNotFoundError("Edge")
	}
	copied := *edge
	return &copied, nil
}

func (f *fakeEdgeStore) List(_ context.Context, orgID string, filter ports.EdgeFilter) ([]*graph.Edge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*graph.Edge
	for _, e := range f.edges[orgID] {
		if filter.Type != "" && e.RelationshipType != filter.Type {
			continue
		}
		if filter.From != "" && e.FromNode != filter.From {
			continue
		}
		if filter.To != "" && e.ToNode != filter.To {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (f *fakeEdgeStore) Outgoing(_ context.Context, orgID, fromNode string, relationshipTypes []string) ([]*graph.Edge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	allowed := make(map[string]struct{}, len(relationshipTypes))
	for _, rt := range relationshipTypes {
		allowed[rt] = struct{}{}
	}
	var out []*graph.Edge
	for _, e := range f.edges[orgID] {
		if e.FromNode != fromNode {
			continue
		}
		if len(allowed) > 0 {
			if _, ok := allowed[e.RelationshipType]; !ok {
				continue
			}
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeEdgeStore) Incident(_ context.Context, orgID, nodeID string) ([]*graph.Edge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*graph.Edge
	for _, e := range f.edges[orgID] {
		if e.FromNode == nodeID || e.ToNode == nodeID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeEdgeStore) Delete(_ context.Context, orgID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.edges[orgID], id)
	return nil
}

func (f *fakeEdgeStore) DeleteByIDs(_ context.Context, orgID string, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		delete(f.edges[orgID], id)
	}
	return nil
}

func (f *fakeEdgeStore) All(_ context.Context, orgID string) ([]*graph.Edge, error) {
	return f.List(context.Background(), orgID, ports.EdgeFilter{})
}

// fakeNodeCache is an in-memory NodeCache with switchable failures.
type fakeNodeCache struct {
	mu      sync.Mutex
	entries map[string]*graph.Node
	getErr  error
	setErr  error
	delErr  error
}

func newFakeNodeCache() *fakeNodeCache {
	return &fakeNodeCache{entries: make(map[string]*graph.Node)}
}

func cacheKey(orgID, id string) string { return orgID + "/" + id }

func (f *fakeNodeCache) Get(_ context.Context, orgID, id string) (*graph.Node, bool, error) {
	if f.getErr != nil {
		return nil, false, f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	node, ok := f.entries[cacheKey(orgID, id)]
	if !ok {
		return nil, false, nil
	}
	copied := *node
	return &copied, true, nil
}

func (f *fakeNodeCache) Set(_ context.Context, node *graph.Node) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *node
	f.entries[cacheKey(node.OrgID, node.ID)] = &copied
	return nil
}

func (f *fakeNodeCache) Delete(_ context.Context, orgID, id string) error {
	if f.delErr != nil {
		return f.delErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, cacheKey(orgID, id))
	return nil
}

// fakeSnapshotStore records Put calls.
type fakeSnapshotStore struct {
	key      string
	blob     []byte
	metadata map[string]string
	err      error
	puts     int
}

func (f *fakeSnapshotStore) Put(_ context.Context, key string, blob []byte, metadata map[string]string) error {
	if f.err != nil {
		return f.err
	}
	f.puts++
	f.key = key
	f.blob = blob
	f.metadata = metadata
	return nil
}

// fakeEmbedder returns a fixed vector or an error.
type fakeEmbedder struct {
	text string
	err  error
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.text = text
	return []float32{0.1, 0.2, 0.3}, nil
}

// fakeVectorIndex records upserts and deletes.
type fakeVectorIndex struct {
	upserts   map[string]map[string]interface{}
	deletes   []string
	upsertErr error
}

func newFakeVectorIndex() *fakeVectorIndex {
	return &fakeVectorIndex{upserts: make(map[string]map[string]interface{})}
}

func (f *fakeVectorIndex) Upsert(_ context.Context, id string, _ []float32, payload map[string]interface{}) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserts[id] = payload
	return nil
}

func (f *fakeVectorIndex) Delete(_ context.Context, id string) error {
	f.deletes = append(f.deletes, id)
	return nil
}

// fakeGraphStore returns canned query results.
type fakeGraphStore struct {
	nodes []*graph.Node
	edges []*graph.Edge
	err   error
}

func (f *fakeGraphStore) Query(_ context.Context, _ string, _ ports.GraphFilter) ([]*graph.Node, []*graph.Edge, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.nodes, f.edges, nil
}

var errBoom = fmt.Errorf("boom")
