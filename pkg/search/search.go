// Package search implements hybrid retrieval over the knowledge graph,
// fusing keyword and embedding similarity results with reciprocal rank
// fusion, with optional reranking by graph distance from a center node.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/soundprediction/episodic/pkg/driver"
	"github.com/soundprediction/episodic/pkg/embedder"
	"github.com/soundprediction/episodic/pkg/types"
)

// candidateMultiplier widens each candidate pass beyond the requested
// limit so fusion has overlap to work with.
const candidateMultiplier = 2

// Searcher performs hybrid search across the graph.
type Searcher struct {
	driver   driver.GraphDriver
	embedder embedder.Client
	logger   *slog.Logger
}

// NewSearcher creates a Searcher. A nil logger falls back to slog.Default.
func NewSearcher(d driver.GraphDriver, e embedder.Client, logger *slog.Logger) *Searcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Searcher{driver: d, embedder: e, logger: logger}
}

// SearchEdges performs a hybrid search for fact edges. Keyword and
// similarity candidates are fused with RRF; if config.CenterNodeUUID is
// set, results are instead reranked by graph distance of their source
// nodes from the center.
func (s *Searcher) SearchEdges(ctx context.Context, query, groupID string, config *types.SearchConfig) (*types.SearchResults, error) {
	config = config.WithDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	candidateLimit := config.Limit * candidateMultiplier

	fulltext, err := s.driver.SearchEdgesFulltext(ctx, query, groupID, candidateLimit)
	if err != nil {
		return nil, fmt.Errorf("keyword edge search failed: %w", err)
	}

	similar, err := s.similarEdges(ctx, query, groupID, candidateLimit)
	if err != nil {
		return nil, err
	}

	byUUID := make(map[string]*types.EntityEdge, len(fulltext)+len(similar))
	for _, edge := range append(fulltext, similar...) {
		byUUID[edge.UUID] = edge
	}

	fused, _ := RRF([][]string{uuidsOfEdges(fulltext), uuidsOfEdges(similar)}, DefaultRankConstant, config.MinScore)

	if config.CenterNodeUUID != "" {
		fused, err = s.rerankEdgesByDistance(ctx, config.CenterNodeUUID, fused, byUUID)
		if err != nil {
			return nil, err
		}
	}

	edges := make([]*types.EntityEdge, 0, config.Limit)
	for _, uuid := range fused {
		if edge, ok := byUUID[uuid]; ok {
			edges = append(edges, edge)
			if len(edges) == config.Limit {
				break
			}
		}
	}

	s.logger.Debug("edge search complete",
		"query", query,
		"keyword_hits", len(fulltext),
		"similarity_hits", len(similar),
		"results", len(edges))

	return &types.SearchResults{Edges: edges, Query: query}, nil
}

// SearchNodes performs a hybrid search for entity nodes, fused with RRF.
func (s *Searcher) SearchNodes(ctx context.Context, query, groupID string, config *types.NodeSearchConfig) (*types.NodeSearchResults, error) {
	config = config.WithDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	candidateLimit := config.Limit * candidateMultiplier

	fulltext, err := s.driver.SearchNodesFulltext(ctx, query, groupID, candidateLimit)
	if err != nil {
		return nil, fmt.Errorf("keyword node search failed: %w", err)
	}

	similar, err := s.similarNodes(ctx, query, groupID, candidateLimit)
	if err != nil {
		return nil, err
	}

	byUUID := make(map[string]*types.Node, len(fulltext)+len(similar))
	for _, node := range append(fulltext, similar...) {
		byUUID[node.UUID] = node
	}

	fused, _ := RRF([][]string{uuidsOfNodes(fulltext), uuidsOfNodes(similar)}, DefaultRankConstant, config.MinScore)

	nodes := make([]*types.Node, 0, config.Limit)
	for _, uuid := range fused {
		if node, ok := byUUID[uuid]; ok {
			nodes = append(nodes, node)
			if len(nodes) == config.Limit {
				break
			}
		}
	}

	s.logger.Debug("node search complete",
		"query", query,
		"keyword_hits", len(fulltext),
		"similarity_hits", len(similar),
		"results", len(nodes))

	return &types.NodeSearchResults{Nodes: nodes, Query: query}, nil
}

func (s *Searcher) similarEdges(ctx context.Context, query, groupID string, limit int) ([]*types.EntityEdge, error) {
	if s.embedder == nil {
		return nil, nil
	}
	embedding, err := s.embedder.EmbedSingle(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	return s.driver.SearchEdgesByEmbedding(ctx, embedding, groupID, limit)
}

func (s *Searcher) similarNodes(ctx context.Context, query, groupID string, limit int) ([]*types.Node, error) {
	if s.embedder == nil {
		return nil, nil
	}
	embedding, err := s.embedder.EmbedSingle(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	return s.driver.SearchNodesByEmbedding(ctx, embedding, groupID, limit)
}

// rerankEdgesByDistance reorders edge UUIDs by the graph distance of each
// edge's source node from the center node. Edges on nodes closer to the
// center come first.
func (s *Searcher) rerankEdgesByDistance(ctx context.Context, centerUUID string, edgeUUIDs []string, byUUID map[string]*types.EntityEdge) ([]string, error) {
	sourceUUIDs := make([]string, 0, len(edgeUUIDs))
	seen := make(map[string]bool, len(edgeUUIDs))
	for _, edgeUUID := range edgeUUIDs {
		edge, ok := byUUID[edgeUUID]
		if !ok || seen[edge.SourceNodeUUID] {
			continue
		}
		seen[edge.SourceNodeUUID] = true
		sourceUUIDs = append(sourceUUIDs, edge.SourceNodeUUID)
	}

	rankedSources, _, err := NodeDistanceReranker(ctx, s.driver, centerUUID, sourceUUIDs)
	if err != nil {
		return nil, fmt.Errorf("distance rerank failed: %w", err)
	}

	rankOf := make(map[string]int, len(rankedSources))
	for i, uuid := range rankedSources {
		rankOf[uuid] = i
	}

	ordered := make([]string, len(edgeUUIDs))
	copy(ordered, edgeUUIDs)
	stableSortBy(ordered, func(edgeUUID string) int {
		edge, ok := byUUID[edgeUUID]
		if !ok {
			return len(rankedSources)
		}
		if rank, found := rankOf[edge.SourceNodeUUID]; found {
			return rank
		}
		return len(rankedSources)
	})
	return ordered, nil
}

// stableSortBy sorts uuids ascending by key, preserving the incoming order
// for equal keys.
func stableSortBy(uuids []string, key func(string) int) {
	sort.SliceStable(uuids, func(i, j int) bool {
		return key(uuids[i]) < key(uuids[j])
	})
}

// FormatValidity renders an edge's temporal validity bounds for display,
// e.g. "2011-01-03 to 2017-01-03" or "since 2019-01-07". Returns "" when
// the edge carries no bounds.
func FormatValidity(edge *types.EntityEdge) string {
	const layout = "2006-01-02"
	switch {
	case edge.ValidAt != nil && edge.InvalidAt != nil:
		return edge.ValidAt.Format(layout) + " to " + edge.InvalidAt.Format(layout)
	case edge.ValidAt != nil:
		return "since " + edge.ValidAt.Format(layout)
	case edge.InvalidAt != nil:
		return "until " + edge.InvalidAt.Format(layout)
	default:
		return ""
	}
}

func uuidsOfEdges(edges []*types.EntityEdge) []string {
	uuids := make([]string, len(edges))
	for i, edge := range edges {
		uuids[i] = edge.UUID
	}
	return uuids
}

func uuidsOfNodes(nodes []*types.Node) []string {
	uuids := make([]string, len(nodes))
	for i, node := range nodes {
		uuids[i] = node.UUID
	}
	return uuids
}
