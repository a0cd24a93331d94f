package episodic

import (
	"context"

	"github.com/soundprediction/episodic/pkg/types"
)

// Search performs a hybrid search for fact edges. Set
// config.CenterNodeUUID to rerank results by graph distance from that
// node instead of pure relevance.
func (c *Client) Search(ctx context.Context, query string, config *types.SearchConfig) (*types.SearchResults, error) {
	return c.searcher.SearchEdges(ctx, query, c.config.GroupID, config)
}

// SearchNodes performs a hybrid search for entity nodes.
func (c *Client) SearchNodes(ctx context.Context, query string, config *types.NodeSearchConfig) (*types.NodeSearchResults, error) {
	return c.searcher.SearchNodes(ctx, query, c.config.GroupID, config)
}

// GetNode retrieves a node by UUID.
func (c *Client) GetNode(ctx context.Context, nodeUUID string) (*types.Node, error) {
	node, err := c.driver.GetNode(ctx, nodeUUID, c.config.GroupID)
	if err != nil {
		return nil, ErrNodeNotFound
	}
	return node, nil
}

// GetEpisodes retrieves the most recent episodes, oldest first.
func (c *Client) GetEpisodes(ctx context.Context, limit int) ([]*types.Node, error) {
	return c.driver.GetEpisodes(ctx, c.config.GroupID, limit)
}
