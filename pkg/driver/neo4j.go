package driver

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
	"github.com/soundprediction/episodic/pkg/types"
)

// Neo4jDriver implements the GraphDriver interface for Neo4j databases.
type Neo4jDriver struct {
	client   neo4j.DriverWithContext
	database string
}

var _ GraphDriver = (*Neo4jDriver)(nil)

// NewNeo4jDriver creates a new Neo4j driver instance.
func NewNeo4jDriver(uri, username, password, database string) (*Neo4jDriver, error) {
	client, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	if database == "" {
		database = "neo4j"
	}

	return &Neo4jDriver{
		client:   client,
		database: database,
	}, nil
}

func (n *Neo4jDriver) session(ctx context.Context) neo4j.SessionWithContext {
	return n.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: n.database})
}

// UpsertNode creates or updates a node.
func (n *Neo4jDriver) UpsertNode(ctx context.Context, node *types.Node) error {
	if err := node.Validate(); err != nil {
		return fmt.Errorf("invalid node: %w", err)
	}

	session := n.session(ctx)
	defer session.Close(ctx)

	label := "Entity"
	if node.Type == types.EpisodicNodeType {
		label = "Episodic"
	}

	query := fmt.Sprintf(`
		MERGE (n:%s {uuid: $uuid, group_id: $group_id})
		SET n += $props
	`, label)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return tx.Run(ctx, query, map[string]any{
			"uuid":     node.UUID,
			"group_id": node.GroupID,
			"props":    nodeToProperties(node),
		})
	})
	if err != nil {
		return fmt.Errorf("failed to upsert node %s: %w", node.UUID, err)
	}
	return nil
}

// UpsertEntityEdge creates or updates a RELATES_TO fact edge.
func (n *Neo4jDriver) UpsertEntityEdge(ctx context.Context, edge *types.EntityEdge) error {
	if err := edge.Validate(); err != nil {
		return fmt.Errorf("invalid edge: %w", err)
	}

	session := n.session(ctx)
	defer session.Close(ctx)

	query := `
		MATCH (source:Entity {uuid: $source_uuid})
		MATCH (target:Entity {uuid: $target_uuid})
		MERGE (source)-[e:RELATES_TO {uuid: $uuid}]->(target)
		SET e += $props
	`

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return tx.Run(ctx, query, map[string]any{
			"source_uuid": edge.SourceNodeUUID,
			"target_uuid": edge.TargetNodeUUID,
			"uuid":        edge.UUID,
			"props":       edgeToProperties(edge),
		})
	})
	if err != nil {
		return fmt.Errorf("failed to upsert edge %s: %w", edge.UUID, err)
	}
	return nil
}

// UpsertEpisodicEdge creates a MENTIONS edge from an episode to an entity.
func (n *Neo4jDriver) UpsertEpisodicEdge(ctx context.Context, edgeUUID, episodeUUID, entityUUID, groupID string) error {
	session := n.session(ctx)
	defer session.Close(ctx)

	query := `
		MATCH (episode:Episodic {uuid: $episode_uuid})
		MATCH (entity:Entity {uuid: $entity_uuid})
		MERGE (episode)-[e:MENTIONS {uuid: $uuid}]->(entity)
		SET e.group_id = $group_id
	`

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return tx.Run(ctx, query, map[string]any{
			"episode_uuid": episodeUUID,
			"entity_uuid":  entityUUID,
			"uuid":         edgeUUID,
			"group_id":     groupID,
		})
	})
	if err != nil {
		return fmt.Errorf("failed to upsert episodic edge %s: %w", edgeUUID, err)
	}
	return nil
}

// GetNode retrieves a single node by UUID.
func (n *Neo4jDriver) GetNode(ctx context.Context, uuid, groupID string) (*types.Node, error) {
	session := n.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (n {uuid: $uuid, group_id: $group_id})
			RETURN n
			LIMIT 1
		`, map[string]any{
			"uuid":     uuid,
			"group_id": groupID,
		})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}

	records := result.([]*db.Record)
	if len(records) == 0 {
		return nil, fmt.Errorf("node %s not found", uuid)
	}

	dbNode, ok := recordNode(records[0], "n")
	if !ok {
		return nil, fmt.Errorf("unexpected record shape for node %s", uuid)
	}
	return nodeFromDBNode(dbNode), nil
}

// GetEntityNodeByName retrieves an entity node by exact name, or nil when
// no such entity exists.
func (n *Neo4jDriver) GetEntityNodeByName(ctx context.Context, name, groupID string) (*types.Node, error) {
	session := n.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (n:Entity {name: $name, group_id: $group_id})
			RETURN n
			LIMIT 1
		`, map[string]any{
			"name":     name,
			"group_id": groupID,
		})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}

	records := result.([]*db.Record)
	if len(records) == 0 {
		return nil, nil
	}

	dbNode, ok := recordNode(records[0], "n")
	if !ok {
		return nil, fmt.Errorf("unexpected record shape for entity %q", name)
	}
	return nodeFromDBNode(dbNode), nil
}

// GetEpisodes retrieves the most recent episodes, oldest first.
func (n *Neo4jDriver) GetEpisodes(ctx context.Context, groupID string, limit int) ([]*types.Node, error) {
	session := n.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (n:Episodic {group_id: $group_id})
			RETURN n
			ORDER BY n.reference DESC
			LIMIT $limit
		`, map[string]any{
			"group_id": groupID,
			"limit":    limit,
		})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}

	nodes := nodesFromRecords(result.([]*db.Record), "n")

	// Reverse into chronological order.
	for i, j := 0, len(nodes)-1; i < j; i, j = i+1, j-1 {
		nodes[i], nodes[j] = nodes[j], nodes[i]
	}
	return nodes, nil
}

// SearchNodesFulltext performs keyword search over entity names and summaries.
func (n *Neo4jDriver) SearchNodesFulltext(ctx context.Context, query, groupID string, limit int) ([]*types.Node, error) {
	sanitized := sanitizeLucene(query)
	if sanitized == "" {
		return nil, nil
	}

	session := n.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			CALL db.index.fulltext.queryNodes("entity_name_and_summary", $query)
			YIELD node, score
			WHERE node.group_id = $group_id
			RETURN node
			ORDER BY score DESC
			LIMIT $limit
		`, map[string]any{
			"query":    sanitized,
			"group_id": groupID,
			"limit":    limit,
		})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("fulltext node search failed: %w", err)
	}

	return nodesFromRecords(result.([]*db.Record), "node"), nil
}

// SearchEdgesFulltext performs keyword search over fact edges.
func (n *Neo4jDriver) SearchEdgesFulltext(ctx context.Context, query, groupID string, limit int) ([]*types.EntityEdge, error) {
	sanitized := sanitizeLucene(query)
	if sanitized == "" {
		return nil, nil
	}

	session := n.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			CALL db.index.fulltext.queryRelationships("edge_name_and_fact", $query)
			YIELD relationship, score
			WHERE relationship.group_id = $group_id
			MATCH (source)-[relationship]->(target)
			RETURN relationship, source.uuid AS source_uuid, target.uuid AS target_uuid
			ORDER BY score DESC
			LIMIT $limit
		`, map[string]any{
			"query":    sanitized,
			"group_id": groupID,
			"limit":    limit,
		})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("fulltext edge search failed: %w", err)
	}

	return edgesFromRecords(result.([]*db.Record))
}

// SearchNodesByEmbedding ranks entity nodes by cosine similarity against
// the query embedding. Candidates are fetched and scored in memory.
func (n *Neo4jDriver) SearchNodesByEmbedding(ctx context.Context, embedding []float32, groupID string, limit int) ([]*types.Node, error) {
	if len(embedding) == 0 {
		return nil, nil
	}

	session := n.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (n:Entity {group_id: $group_id})
			WHERE n.name_embedding IS NOT NULL
			RETURN n
		`, map[string]any{
			"group_id": groupID,
		})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}

	type candidate struct {
		node  *types.Node
		score float32
	}

	var candidates []candidate
	for _, record := range result.([]*db.Record) {
		dbNode, ok := recordNode(record, "n")
		if !ok {
			continue
		}
		node := nodeFromDBNode(dbNode)
		if len(node.NameEmbedding) == 0 {
			continue
		}
		candidates = append(candidates, candidate{
			node:  node,
			score: cosineSimilarity(embedding, node.NameEmbedding),
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	nodes := make([]*types.Node, len(candidates))
	for i, c := range candidates {
		nodes[i] = c.node
	}
	return nodes, nil
}

// SearchEdgesByEmbedding ranks fact edges by cosine similarity against the
// query embedding.
func (n *Neo4jDriver) SearchEdgesByEmbedding(ctx context.Context, embedding []float32, groupID string, limit int) ([]*types.EntityEdge, error) {
	if len(embedding) == 0 {
		return nil, nil
	}

	session := n.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (source:Entity)-[e:RELATES_TO]->(target:Entity)
			WHERE e.group_id = $group_id AND e.fact_embedding IS NOT NULL
			RETURN e AS relationship, source.uuid AS source_uuid, target.uuid AS target_uuid
		`, map[string]any{
			"group_id": groupID,
		})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}

	edges, err := edgesFromRecords(result.([]*db.Record))
	if err != nil {
		return nil, err
	}

	type candidate struct {
		edge  *types.EntityEdge
		score float32
	}

	var candidates []candidate
	for _, edge := range edges {
		if len(edge.FactEmbedding) == 0 {
			continue
		}
		candidates = append(candidates, candidate{
			edge:  edge,
			score: cosineSimilarity(embedding, edge.FactEmbedding),
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	ranked := make([]*types.EntityEdge, len(candidates))
	for i, c := range candidates {
		ranked[i] = c.edge
	}
	return ranked, nil
}

// NodeDistances returns shortest-path lengths from the center node to each
// of the given node UUIDs.
func (n *Neo4jDriver) NodeDistances(ctx context.Context, centerUUID string, uuids []string) (map[string]int, error) {
	distances := map[string]int{centerUUID: 0}
	if len(uuids) == 0 {
		return distances, nil
	}

	session := n.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (center:Entity {uuid: $center_uuid}), (n:Entity)
			WHERE n.uuid IN $uuids AND n.uuid <> $center_uuid
			MATCH p = shortestPath((center)-[:RELATES_TO*..10]-(n))
			RETURN n.uuid AS uuid, length(p) AS distance
		`, map[string]any{
			"center_uuid": centerUUID,
			"uuids":       uuids,
		})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("node distance query failed: %w", err)
	}

	for _, record := range result.([]*db.Record) {
		uuid, ok := recordString(record, "uuid")
		if !ok {
			continue
		}
		if distance, found := record.Get("distance"); found {
			if d, ok := distance.(int64); ok {
				distances[uuid] = int(d)
			}
		}
	}
	return distances, nil
}

// CreateIndices creates database indices and fulltext indexes. It is safe
// to call on every startup.
func (n *Neo4jDriver) CreateIndices(ctx context.Context) error {
	session := n.session(ctx)
	defer session.Close(ctx)

	indices := []string{
		"CREATE INDEX entity_uuid_group IF NOT EXISTS FOR (n:Entity) ON (n.uuid, n.group_id)",
		"CREATE INDEX episodic_uuid_group IF NOT EXISTS FOR (n:Episodic) ON (n.uuid, n.group_id)",
		"CREATE INDEX entity_name IF NOT EXISTS FOR (n:Entity) ON (n.name)",
		"CREATE INDEX episodic_reference IF NOT EXISTS FOR (n:Episodic) ON (n.reference)",
		`CREATE FULLTEXT INDEX entity_name_and_summary IF NOT EXISTS
			FOR (n:Entity) ON EACH [n.name, n.summary]`,
		`CREATE FULLTEXT INDEX edge_name_and_fact IF NOT EXISTS
			FOR ()-[e:RELATES_TO]-() ON EACH [e.name, e.fact]`,
	}

	for _, indexQuery := range indices {
		if _, err := session.Run(ctx, indexQuery, nil); err != nil {
			if !strings.Contains(err.Error(), "already exists") && !strings.Contains(err.Error(), "An equivalent") {
				return fmt.Errorf("failed to create index: %w", err)
			}
		}
	}
	return nil
}

// VerifyConnectivity checks the database connection.
func (n *Neo4jDriver) VerifyConnectivity(ctx context.Context) error {
	return n.client.VerifyConnectivity(ctx)
}

// Close releases all resources held by the driver.
func (n *Neo4jDriver) Close(ctx context.Context) error {
	return n.client.Close(ctx)
}

// recordNode extracts a dbtype.Node from a record by key.
func recordNode(record *db.Record, key string) (dbtype.Node, bool) {
	value, found := record.Get(key)
	if !found {
		return dbtype.Node{}, false
	}
	node, ok := value.(dbtype.Node)
	return node, ok
}

// recordString extracts a string from a record by key.
func recordString(record *db.Record, key string) (string, bool) {
	value, found := record.Get(key)
	if !found {
		return "", false
	}
	s, ok := value.(string)
	return s, ok
}

func nodesFromRecords(records []*db.Record, key string) []*types.Node {
	nodes := make([]*types.Node, 0, len(records))
	for _, record := range records {
		if dbNode, ok := recordNode(record, key); ok {
			nodes = append(nodes, nodeFromDBNode(dbNode))
		}
	}
	return nodes
}

func edgesFromRecords(records []*db.Record) ([]*types.EntityEdge, error) {
	edges := make([]*types.EntityEdge, 0, len(records))
	for _, record := range records {
		relValue, found := record.Get("relationship")
		if !found {
			continue
		}
		rel, ok := relValue.(dbtype.Relationship)
		if !ok {
			return nil, fmt.Errorf("unexpected type for relationship: %T", relValue)
		}
		sourceUUID, _ := recordString(record, "source_uuid")
		targetUUID, _ := recordString(record, "target_uuid")
		edges = append(edges, edgeFromDBRelationship(rel, sourceUUID, targetUUID))
	}
	return edges, nil
}
