package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"graphmeta-backend/application/ports"
	"graphmeta-backend/domain/graph"
)

func TestQueryServiceMetadata(t *testing.T) {
	store := &fakeGraphStore{
		nodes: []*graph.Node{{ID: "n1", OrgID: "acme"}, {ID: "n2", OrgID: "acme"}},
		edges: []*graph.Edge{{ID: "e1", OrgID: "acme", FromNode: "n1", ToNode: "n2"}},
	}
	svc := NewQueryService(store, zaptest.NewLogger(t))

	result, err := svc.Query(context.Background(), "acme", ports.GraphFilter{})
	require.NoError(t, err)

	assert.Len(t, result.Nodes, 2)
	assert.Len(t, result.Edges, 1)
	assert.Equal(t, 2, result.Metadata.TotalNodes)
	assert.Equal(t, 1, result.Metadata.TotalEdges)
	assert.Equal(t, "acme", result.Metadata.OrgID)
	assert.GreaterOrEqual(t, result.Metadata.QueryTimeMS, int64(0))
}

func TestQueryServicePropagatesError(t *testing.T) {
	svc := NewQueryService(&fakeGraphStore{err: errBoom}, zaptest.NewLogger(t))

	_, err := svc.Query(context.Background(), "acme", ports.GraphFilter{})
	assert.Error(t, err)
}
