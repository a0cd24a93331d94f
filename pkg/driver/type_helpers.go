package driver

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
	"github.com/soundprediction/episodic/pkg/types"
)

// nodeToProperties converts a node to a Neo4j property map. Embeddings are
// stored as JSON strings since Neo4j properties cannot hold nested arrays
// alongside typed lists consistently across versions.
func nodeToProperties(node *types.Node) map[string]any {
	props := map[string]any{
		"uuid":       node.UUID,
		"name":       node.Name,
		"type":       string(node.Type),
		"group_id":   node.GroupID,
		"created_at": node.CreatedAt.Format(time.RFC3339),
	}

	if node.Summary != "" {
		props["summary"] = node.Summary
	}
	if len(node.Labels) > 0 {
		props["labels"] = node.Labels
	}
	if node.EpisodeType != "" {
		props["episode_type"] = string(node.EpisodeType)
	}
	if node.Content != "" {
		props["content"] = node.Content
	}
	if node.Description != "" {
		props["description"] = node.Description
	}
	if !node.Reference.IsZero() {
		props["reference"] = node.Reference.Format(time.RFC3339)
	}
	if len(node.NameEmbedding) > 0 {
		if data, err := json.Marshal(node.NameEmbedding); err == nil {
			props["name_embedding"] = string(data)
		}
	}
	for k, v := range node.Attributes {
		if _, reserved := props[k]; !reserved {
			props[k] = v
		}
	}
	return props
}

// edgeToProperties converts a fact edge to a Neo4j property map.
func edgeToProperties(edge *types.EntityEdge) map[string]any {
	props := map[string]any{
		"uuid":             edge.UUID,
		"name":             edge.Name,
		"fact":             edge.Fact,
		"group_id":         edge.GroupID,
		"source_node_uuid": edge.SourceNodeUUID,
		"target_node_uuid": edge.TargetNodeUUID,
		"created_at":       edge.CreatedAt.Format(time.RFC3339),
	}

	if edge.ValidAt != nil {
		props["valid_at"] = edge.ValidAt.Format(time.RFC3339)
	}
	if edge.InvalidAt != nil {
		props["invalid_at"] = edge.InvalidAt.Format(time.RFC3339)
	}
	if len(edge.Episodes) > 0 {
		props["episodes"] = edge.Episodes
	}
	if len(edge.FactEmbedding) > 0 {
		if data, err := json.Marshal(edge.FactEmbedding); err == nil {
			props["fact_embedding"] = string(data)
		}
	}
	return props
}

// nodeFromDBNode converts a Neo4j node to our node type.
func nodeFromDBNode(dbNode dbtype.Node) *types.Node {
	props := dbNode.Props
	node := &types.Node{
		UUID:        propString(props, "uuid"),
		Name:        propString(props, "name"),
		Type:        types.NodeType(propString(props, "type")),
		GroupID:     propString(props, "group_id"),
		Summary:     propString(props, "summary"),
		EpisodeType: types.EpisodeType(propString(props, "episode_type")),
		Content:     propString(props, "content"),
		Description: propString(props, "description"),
	}

	node.CreatedAt = propTime(props, "created_at")
	node.Reference = propTime(props, "reference")
	node.Labels = propStringSlice(props, "labels")
	node.NameEmbedding = propEmbedding(props, "name_embedding")

	if node.Type == "" {
		for _, label := range dbNode.Labels {
			switch label {
			case "Episodic":
				node.Type = types.EpisodicNodeType
			case "Entity":
				node.Type = types.EntityNodeType
			}
		}
	}
	return node
}

// edgeFromDBRelationship converts a Neo4j relationship to a fact edge. The
// endpoint UUIDs come from the enclosing query since relationship properties
// may predate them.
func edgeFromDBRelationship(rel dbtype.Relationship, sourceUUID, targetUUID string) *types.EntityEdge {
	props := rel.Props
	edge := &types.EntityEdge{
		UUID:           propString(props, "uuid"),
		Name:           propString(props, "name"),
		Fact:           propString(props, "fact"),
		GroupID:        propString(props, "group_id"),
		SourceNodeUUID: sourceUUID,
		TargetNodeUUID: targetUUID,
	}

	if edge.SourceNodeUUID == "" {
		edge.SourceNodeUUID = propString(props, "source_node_uuid")
	}
	if edge.TargetNodeUUID == "" {
		edge.TargetNodeUUID = propString(props, "target_node_uuid")
	}

	edge.CreatedAt = propTime(props, "created_at")
	if t := propTime(props, "valid_at"); !t.IsZero() {
		edge.ValidAt = &t
	}
	if t := propTime(props, "invalid_at"); !t.IsZero() {
		edge.InvalidAt = &t
	}
	edge.Episodes = propStringSlice(props, "episodes")
	edge.FactEmbedding = propEmbedding(props, "fact_embedding")
	return edge
}

func propString(props map[string]any, key string) string {
	if v, ok := props[key].(string); ok {
		return v
	}
	return ""
}

func propTime(props map[string]any, key string) time.Time {
	switch v := props[key].(type) {
	case string:
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t
		}
	case time.Time:
		return v
	case dbtype.LocalDateTime:
		return v.Time()
	}
	return time.Time{}
}

func propStringSlice(props map[string]any, key string) []string {
	raw, ok := props[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func propEmbedding(props map[string]any, key string) []float32 {
	encoded, ok := props[key].(string)
	if !ok || encoded == "" {
		return nil
	}
	var embedding []float32
	if err := json.Unmarshal([]byte(encoded), &embedding); err != nil {
		return nil
	}
	return embedding
}

// cosineSimilarity computes the cosine similarity between two vectors.
// Mismatched or zero-length vectors score zero.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// sanitizeLucene escapes Lucene special characters in a fulltext query so
// user input cannot break the query syntax.
func sanitizeLucene(query string) string {
	var b strings.Builder
	for _, r := range query {
		switch r {
		case '+', '-', '&', '|', '!', '(', ')', '{', '}', '[', ']', '^', '"', '~', '*', '?', ':', '\\', '/':
			b.WriteRune('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
