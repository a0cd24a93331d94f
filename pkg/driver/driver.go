// Package driver provides graph database access for the episodic client.
// The Neo4j implementation stores episodes and entities as labeled nodes,
// facts as RELATES_TO relationships, and episode mentions as MENTIONS
// relationships.
package driver

import (
	"context"

	"github.com/soundprediction/episodic/pkg/types"
)

// GraphDriver is the storage interface the client depends on.
type GraphDriver interface {
	// UpsertNode creates or updates a node.
	UpsertNode(ctx context.Context, node *types.Node) error

	// UpsertEntityEdge creates or updates a fact edge between two entities.
	UpsertEntityEdge(ctx context.Context, edge *types.EntityEdge) error

	// UpsertEpisodicEdge creates a MENTIONS edge from an episode to an entity.
	UpsertEpisodicEdge(ctx context.Context, edgeUUID, episodeUUID, entityUUID, groupID string) error

	// GetNode retrieves a single node by UUID.
	GetNode(ctx context.Context, uuid, groupID string) (*types.Node, error)

	// GetEntityNodeByName retrieves an entity node by exact name, or nil.
	GetEntityNodeByName(ctx context.Context, name, groupID string) (*types.Node, error)

	// GetEpisodes retrieves the most recent episodes, oldest first.
	GetEpisodes(ctx context.Context, groupID string, limit int) ([]*types.Node, error)

	// SearchNodesFulltext performs keyword search over entity names and summaries.
	SearchNodesFulltext(ctx context.Context, query, groupID string, limit int) ([]*types.Node, error)

	// SearchEdgesFulltext performs keyword search over fact edges.
	SearchEdgesFulltext(ctx context.Context, query, groupID string, limit int) ([]*types.EntityEdge, error)

	// SearchNodesByEmbedding ranks entity nodes by cosine similarity.
	SearchNodesByEmbedding(ctx context.Context, embedding []float32, groupID string, limit int) ([]*types.Node, error)

	// SearchEdgesByEmbedding ranks fact edges by cosine similarity.
	SearchEdgesByEmbedding(ctx context.Context, embedding []float32, groupID string, limit int) ([]*types.EntityEdge, error)

	// NodeDistances returns shortest-path lengths from the center node to
	// each of the given node UUIDs. Unreachable nodes are absent.
	NodeDistances(ctx context.Context, centerUUID string, uuids []string) (map[string]int, error)

	// CreateIndices creates database indices and fulltext indexes.
	CreateIndices(ctx context.Context) error

	// VerifyConnectivity checks the database connection.
	VerifyConnectivity(ctx context.Context) error

	// Close releases all resources held by the driver.
	Close(ctx context.Context) error
}
