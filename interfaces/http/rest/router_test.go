package rest

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"graphmeta-backend/application/ports"
	"graphmeta-backend/application/services"
	"graphmeta-backend/domain/graph"
	"graphmeta-backend/interfaces/http/rest/handlers"
	restmiddleware "graphmeta-backend/interfaces/http/rest/middleware"
	"graphmeta-backend/pkg/auth"
	apperrors "graphmeta-backend/pkg/errors"
	"graphmeta-backend/pkg/observability"
)

// memNodeStore is a map-backed NodeStore for routing tests.
type memNodeStore struct {
	mu    sync.Mutex
	nodes map[string]map[string]*graph.Node
}

func newMemNodeStore() *memNodeStore {
	return &memNodeStore{nodes: map[string]map[string]*graph.Node{}}
}

// Upsert mirrors the ON CONFLICT clause of the SQL store: an existing
// row keeps its creation audit fields, and the caller's struct is
// updated to the persisted state.
func (m *memNodeStore) Upsert(_ context.Context, node *graph.Node) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.nodes[node.OrgID] == nil {
		m.nodes[node.OrgID] = map[string]*graph.Node{}
	}
	copied := *node
	if existing, ok := m.nodes[node.OrgID][node.ID]; ok {
		copied.CreatedAt = existing.CreatedAt
		copied.CreatedBy = existing.CreatedBy
	}
	m.nodes[node.OrgID][node.ID] = &copied
	*node = copied
	return nil
}

func (m *memNodeStore) Get(_ context.Context, orgID, id string) (*graph.Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[orgID][id]
	if !ok {
		return nil, apperrors.NewNotFoundError("Node")
	}
	copied := *n
	return &copied, nil
}

func (m *memNodeStore) List(_ context.Context, orgID string, filter ports.NodeFilter) ([]*graph.Node, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*graph.Node
	for _, n := range m.nodes[orgID] {
		if filter.Type != "" && n.Type != filter.Type {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (m *memNodeStore) Delete(_ context.Context, orgID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.nodes[orgID], id)
	return nil
}

func (m *memNodeStore) All(_ context.Context, orgID string) ([]*graph.Node, error) {
	nodes, _, err := m.List(nil, orgID, ports.NodeFilter{})
	return nodes, err
}

// memEdgeStore is a map-backed EdgeStore.
type memEdgeStore struct {
	mu    sync.Mutex
	edges map[string]map[string]*graph.Edge
}

func newMemEdgeStore() *memEdgeStore {
	return &memEdgeStore{edges: map[string]map[string]*graph.Edge{}}
}

func (m *memEdgeStore) Upsert(_ context.Context, edge *graph.Edge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.edges[edge.OrgID] == nil {
		m.edges[edge.OrgID] = map[string]*graph.Edge{}
	}
	copied := *edge
	if existing, ok := m.edges[edge.OrgID][edge.ID]; ok {
		copied.CreatedAt = existing.CreatedAt
		copied.CreatedBy = existing.CreatedBy
	}
	m.edges[edge.OrgID][edge.ID] = &copied
	*edge = copied
	return nil
}

func (m *memEdgeStore) Get(_ context.Context, orgID, id string) (*graph.Edge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.edges[orgID][id]
	if !ok {
		return nil, apperrors.NewNotFoundError("Edge")
	}
	copied := *e
	return &copied, nil
}

func (m *memEdgeStore) List(_ context.Context, orgID string, _ ports.EdgeFilter) ([]*graph.Edge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*graph.Edge
	for _, e := range m.edges[orgID] {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memEdgeStore) Outgoing(_ context.Context, orgID, fromNode string, _ []string) ([]*graph.Edge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*graph.Edge
	for _, e := range m.edges[orgID] {
		if e.FromNode == fromNode {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memEdgeStore) Incident(_ context.Context, orgID, nodeID string) ([]*graph.Edge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*graph.Edge
	for _, e := range m.edges[orgID] {
		if e.FromNode == nodeID || e.ToNode == nodeID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memEdgeStore) Delete(_ context.Context, orgID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.edges[orgID], id)
	return nil
}

func (m *memEdgeStore) DeleteByIDs(_ context.Context, orgID string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.edges[orgID], id)
	}
	return nil
}

func (m *memEdgeStore) All(_ context.Context, orgID string) ([]*graph.Edge, error) {
	return m.List(nil, orgID, ports.EdgeFilter{})
}

// memNodeCache is a map-backed NodeCache.
type memNodeCache struct {
	mu      sync.Mutex
	entries map[string]*graph.Node
}

func newMemNodeCache() *memNodeCache {
	return &memNodeCache{entries: map[string]*graph.Node{}}
}

func (m *memNodeCache) Get(_ context.Context, orgID, id string) (*graph.Node, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.entries[orgID+"/"+id]
	if !ok {
		return nil, false, nil
	}
	copied := *n
	return &copied, true, nil
}

func (m *memNodeCache) Set(_ context.Context, node *graph.Node) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *node
	m.entries[node.OrgID+"/"+node.ID] = &copied
	return nil
}

func (m *memNodeCache) Delete(_ context.Context, orgID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, orgID+"/"+id)
	return nil
}

// memGraphStore joins the two mem stores.
type memGraphStore struct {
	nodes *memNodeStore
	edges *memEdgeStore
}

func (m *memGraphStore) Query(_ context.Context, orgID string, filter ports.GraphFilter) ([]*graph.Node, []*graph.Edge, error) {
	nodes, _, err := m.nodes.List(nil, orgID, ports.NodeFilter{Type: filter.NodeType})
	if err != nil {
		return nil, nil, err
	}
	edges, err := m.edges.List(nil, orgID, ports.EdgeFilter{})
	if err != nil {
		return nil, nil, err
	}
	return nodes, edges, nil
}

// memSnapshotStore records blobs.
type memSnapshotStore struct {
	mu   sync.Mutex
	keys []string
}

func (m *memSnapshotStore) Put(_ context.Context, key string, _ []byte, _ map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = append(m.keys, key)
	return nil
}

// testEnv is a fully wired router plus the provider for minting tokens.
type testEnv struct {
	router    http.Handler
	provider  *testProvider
	nodeStore *memNodeStore
	edgeStore *memEdgeStore
	cache     *memNodeCache
	snapshots *memSnapshotStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zaptest.NewLogger(t)
	provider := newTestProvider(t)

	nodeStore := newMemNodeStore()
	edgeStore := newMemEdgeStore()
	cache := newMemNodeCache()
	snapshots := &memSnapshotStore{}

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	nodeService := services.NewNodeService(nodeStore, edgeStore, cache, logger)
	edgeService := services.NewEdgeService(edgeStore, nil, nil, metrics, logger)
	queryService := services.NewQueryService(&memGraphStore{nodes: nodeStore, edges: edgeStore}, logger)
	traversalService := services.NewTraversalService(nodeStore, edgeStore, logger)
	snapshotService := services.NewSnapshotService(nodeStore, edgeStore, cache, snapshots, logger)

	verifier := provider.verifier()
	authenticator := restmiddleware.NewAuthenticator(verifier, nil, logger)

	router := NewRouter(RouterDeps{
		Nodes:         handlers.NewNodeHandler(nodeService, metrics, logger),
		Edges:         handlers.NewEdgeHandler(edgeService, logger),
		Graph:         handlers.NewGraphHandler(queryService, traversalService, logger),
		Snapshots:     handlers.NewSnapshotHandler(snapshotService, logger),
		Auth:          handlers.NewAuthHandler(verifier, false, logger),
		Health:        handlers.NewHealthHandler(nil, nil, logger),
		Authenticator: authenticator,
		Metrics:       metrics,
		Gatherer:      registry,
		Logger:        logger,
	})

	return &testEnv{
		router:    router,
		provider:  provider,
		nodeStore: nodeStore,
		edgeStore: edgeStore,
		cache:     cache,
		snapshots: snapshots,
	}
}

func (e *testEnv) request(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestRouterRejectsMissingToken(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodGet, "/acme/nodes", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Missing authentication token", decodeBody(t, rec)["error"])
}

func TestRouterRejectsGarbageToken(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodGet, "/acme/nodes", "not.a.token", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid authentication token", decodeBody(t, rec)["error"])
}

func TestRouterPermissionGradation(t *testing.T) {
	env := newTestEnv(t)
	readToken := env.provider.tokenWithPermissions(t, []string{"acme:read"})
	wildToken := env.provider.tokenWithPermissions(t, []string{"*:write"})

	rec := env.request(t, http.MethodGet, "/acme/nodes", readToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.request(t, http.MethodPost, "/acme/nodes", readToken, map[string]interface{}{"type": "user"})
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Insufficient permissions", decodeBody(t, rec)["error"])

	rec = env.request(t, http.MethodPost, "/any-org/nodes", wildToken, map[string]interface{}{"type": "user"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouterNodeLifecycle(t *testing.T) {
	env := newTestEnv(t)
	token := env.provider.tokenWithPermissions(t, []string{"acme:write"})

	rec := env.request(t, http.MethodPost, "/acme/nodes", token, map[string]interface{}{
		"type":       "user",
		"properties": map[string]interface{}{"name": "Alice"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	created := decodeBody(t, rec)
	id, _ := created["id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, "user", created["type"])

	// The create populated the cache, so the first read is a hit.
	rec = env.request(t, http.MethodGet, "/acme/nodes/"+id, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "HIT", rec.Header().Get("X-Node-Cache"))

	// Evict and read again: served from the store, reported as a miss.
	require.NoError(t, env.cache.Delete(nil, "acme", id))
	rec = env.request(t, http.MethodGet, "/acme/nodes/"+id, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MISS", rec.Header().Get("X-Node-Cache"))

	rec = env.request(t, http.MethodDelete, "/acme/nodes/"+id, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.request(t, http.MethodGet, "/acme/nodes/"+id, token, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Node-Cache"))
}

func TestRouterEdgeValidation(t *testing.T) {
	env := newTestEnv(t)
	token := env.provider.tokenWithPermissions(t, []string{"acme:write"})

	rec := env.request(t, http.MethodPost, "/acme/edge", token, map[string]interface{}{
		"relationship_type": "follows",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	msg, _ := decodeBody(t, rec)["error"].(string)
	assert.Contains(t, msg, "from_node")
	assert.Contains(t, msg, "to_node")
}

func TestRouterTenantIsolation(t *testing.T) {
	env := newTestEnv(t)
	testToken := env.provider.tokenWithPermissions(t, []string{"test:write"})
	loadToken := env.provider.tokenWithPermissions(t, []string{"load-test:write"})

	rec := env.request(t, http.MethodPost, "/test/edge", testToken, map[string]interface{}{
		"from_node":         "n1",
		"to_node":           "n2",
		"relationship_type": "follows",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	edgeBody := decodeBody(t, rec)["edge"].(map[string]interface{})
	edgeID := edgeBody["id"].(string)

	rec = env.request(t, http.MethodGet, "/load-test/edge/"+edgeID, loadToken, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Edge not found", decodeBody(t, rec)["error"])
}

func TestRouterQueryAndTraverse(t *testing.T) {
	env := newTestEnv(t)
	token := env.provider.tokenWithPermissions(t, []string{"acme:read", "acme:write"})

	for _, id := range []string{"a", "b"} {
		rec := env.request(t, http.MethodPost, "/acme/nodes", token, map[string]interface{}{"id": id})
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := env.request(t, http.MethodPost, "/acme/edge", token, map[string]interface{}{
		"id": "e1", "from_node": "a", "to_node": "b",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.request(t, http.MethodPost, "/acme/query", token, map[string]interface{}{})
	require.Equal(t, http.StatusOK, rec.Code)
	meta := decodeBody(t, rec)["metadata"].(map[string]interface{})
	assert.Equal(t, float64(2), meta["total_nodes"])
	assert.Equal(t, float64(1), meta["total_edges"])

	rec = env.request(t, http.MethodPost, "/acme/traverse", token, map[string]interface{}{
		"start_node": "a",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	tmeta := decodeBody(t, rec)["metadata"].(map[string]interface{})
	assert.Equal(t, float64(2), tmeta["total_nodes"])
}

func TestRouterTraverseRequiresStartNode(t *testing.T) {
	env := newTestEnv(t)
	token := env.provider.tokenWithPermissions(t, []string{"acme:read"})

	rec := env.request(t, http.MethodPost, "/acme/traverse", token, map[string]interface{}{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	msg, _ := decodeBody(t, rec)["error"].(string)
	assert.Contains(t, msg, "start_node")
}

func TestRouterSnapshotRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	token := env.provider.tokenWithPermissions(t, []string{"acme:write", "acme:read"})

	rec := env.request(t, http.MethodPost, "/acme/metadata/import", token, map[string]interface{}{
		"nodes": []map[string]interface{}{
			{"id": "import-test-1", "type": "imported", "properties": map[string]interface{}{"source": "import"}},
			{"id": "import-test-2", "type": "imported", "properties": map[string]interface{}{"source": "import"}},
		},
		"edges": []map[string]interface{}{
			{"id": "e1", "from_node": "import-test-1", "to_node": "import-test-1", "relationship_type": "self"},
			{"id": "e2", "from_node": "import-test-1", "to_node": "import-test-2", "relationship_type": "parent"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	imported := decodeBody(t, rec)
	assert.Equal(t, float64(2), imported["imported_nodes"])
	assert.Equal(t, float64(2), imported["imported_edges"])

	rec = env.request(t, http.MethodGet, "/acme/nodes/import-test-1", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "imported", decodeBody(t, rec)["type"])

	rec = env.request(t, http.MethodGet, "/acme/metadata/export", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	export := decodeBody(t, rec)
	assert.Equal(t, "1.0", export["version"])
	assert.Equal(t, "acme", export["org_id"])
	assert.NotEmpty(t, export["timestamp"])
	assert.Len(t, export["nodes"], 2)
	assert.Len(t, export["edges"], 2)
	require.Len(t, env.snapshots.keys, 1)
	assert.Regexp(t, `^export-acme-`, env.snapshots.keys[0])
}

func TestRouterUnknownRouteAndMethod(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	// Unmatched paths under an org still sit behind the auth gate.
	token := env.provider.tokenWithPermissions(t, []string{"acme:read"})
	rec = env.request(t, http.MethodGet, "/acme/no/such/route", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Unsupported methods on the static paths must not fall through
	// into the /{org} subtree and hit the auth gate.
	rec = env.request(t, http.MethodPatch, "/health", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = env.request(t, http.MethodPost, "/orgs", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = env.request(t, http.MethodDelete, "/ready", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRouterOrgsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodGet, "/orgs", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	token := env.provider.tokenWithPermissions(t, []string{"acme:write", "globex:read", "*:audit"})
	req := httptest.NewRequest(http.MethodGet, "/orgs", nil)
	req.AddCookie(&http.Cookie{Name: restmiddleware.SessionCookieName, Value: token})
	out := httptest.NewRecorder()
	env.router.ServeHTTP(out, req)

	require.Equal(t, http.StatusOK, out.Code)
	var body struct {
		Email string   `json:"email"`
		Orgs  []string `json:"orgs"`
	}
	require.NoError(t, json.Unmarshal(out.Body.Bytes(), &body))
	assert.Equal(t, []string{"*", "acme", "globex"}, body.Orgs)
}

// testProvider mints RS256 tokens against an in-process discovery and
// JWKS endpoint.
type testProvider struct {
	server *httptest.Server
	key    *rsa.PrivateKey
	kid    string
}

const testClientID = "graphmeta-client"

func newTestProvider(t *testing.T) *testProvider {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	p := &testProvider{key: key, kid: "router-test-key"}

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"issuer":         p.server.URL,
			"token_endpoint": p.server.URL + "/token",
			"jwks_uri":       p.server.URL + "/jwks",
		})
	})
	mux.HandleFunc("/jwks", func(w http.ResponseWriter, r *http.Request) {
		pub := &p.key.PublicKey
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"keys": []map[string]string{{
				"kty": "RSA",
				"kid": p.kid,
				"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
			}},
		})
	})

	p.server = httptest.NewServer(mux)
	t.Cleanup(p.server.Close)
	return p
}

func (p *testProvider) verifier() *auth.Verifier {
	return auth.NewVerifier(auth.OIDCConfig{
		DiscoveryURL: p.server.URL + "/.well-known/openid-configuration",
		ClientID:     testClientID,
	})
}

func (p *testProvider) tokenWithPermissions(t *testing.T, perms []string) string {
	t.Helper()

	claims := &auth.Claims{
		Email:       "alice@example.com",
		Permissions: perms,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    p.server.URL,
			Subject:   "user-1",
			Audience:  jwt.ClaimStrings{testClientID},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = p.kid
	signed, err := token.SignedString(p.key)
	require.NoError(t, err)
	return signed
}
