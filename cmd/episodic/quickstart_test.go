package episodic

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/episodic"
	"github.com/soundprediction/episodic/pkg/types"
)

// recordingSearcher captures every search call and its config.
type recordingSearcher struct {
	edgeResults   []*types.SearchResults
	searchConfigs []*types.SearchConfig
	nodeCalls     int
	err           error
}

func (r *recordingSearcher) Search(ctx context.Context, query string, config *types.SearchConfig) (*types.SearchResults, error) {
	r.searchConfigs = append(r.searchConfigs, config)
	if r.err != nil {
		return nil, r.err
	}
	result := &types.SearchResults{Query: query}
	if len(r.edgeResults) > 0 {
		result = r.edgeResults[0]
		r.edgeResults = r.edgeResults[1:]
	}
	return result, nil
}

func (r *recordingSearcher) SearchNodes(ctx context.Context, query string, config *types.NodeSearchConfig) (*types.NodeSearchResults, error) {
	r.nodeCalls++
	if r.err != nil {
		return nil, r.err
	}
	return &types.NodeSearchResults{Query: query}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSearchesSkippedWhenNothingIngested(t *testing.T) {
	searcher := &recordingSearcher{}
	seedErr := errors.New("first episode failed")
	var out bytes.Buffer

	err := searchAfterSeed(context.Background(), searcher, &episodic.SeedResult{Added: 0, Failed: 1}, seedErr, &out, discardLogger())
	assert.Equal(t, seedErr, err)

	// No search of either kind is issued.
	assert.Empty(t, searcher.searchConfigs)
	assert.Zero(t, searcher.nodeCalls)
	assert.Contains(t, out.String(), "0 added, 1 failed")
}

func TestSearchesRunAfterPartialBatch(t *testing.T) {
	searcher := &recordingSearcher{}
	seedErr := errors.New("later episode failed")
	var out bytes.Buffer

	err := searchAfterSeed(context.Background(), searcher, &episodic.SeedResult{Added: 2, Failed: 1}, seedErr, &out, discardLogger())

	// The batch failure is still surfaced after the searches run.
	assert.Equal(t, seedErr, err)
	assert.NotEmpty(t, searcher.searchConfigs)
}

func TestCenterNodeSearchUsesFirstResultSource(t *testing.T) {
	searcher := &recordingSearcher{
		edgeResults: []*types.SearchResults{
			{Edges: []*types.EntityEdge{
				{UUID: "e1", Fact: "first fact", SourceNodeUUID: "origin-node"},
				{UUID: "e2", Fact: "second fact", SourceNodeUUID: "other-node"},
			}},
			{Edges: []*types.EntityEdge{{UUID: "e2", Fact: "second fact", SourceNodeUUID: "other-node"}}},
		},
	}
	var out bytes.Buffer

	err := searchAfterSeed(context.Background(), searcher, &episodic.SeedResult{Added: 4}, nil, &out, discardLogger())
	require.NoError(t, err)

	// The first search is unbiased; the rerank pass centers on the first
	// result's source node.
	require.Len(t, searcher.searchConfigs, 2)
	assert.Nil(t, searcher.searchConfigs[0])
	require.NotNil(t, searcher.searchConfigs[1])
	assert.Equal(t, "origin-node", searcher.searchConfigs[1].CenterNodeUUID)

	assert.Equal(t, 1, searcher.nodeCalls)
	assert.Contains(t, out.String(), "Reranking around center node origin-node")
}

func TestNoRerankWhenFirstSearchEmpty(t *testing.T) {
	searcher := &recordingSearcher{}
	var out bytes.Buffer

	err := searchAfterSeed(context.Background(), searcher, &episodic.SeedResult{Added: 1}, nil, &out, discardLogger())
	require.NoError(t, err)

	require.Len(t, searcher.searchConfigs, 1)
	assert.Equal(t, 1, searcher.nodeCalls)
}

func TestSearchErrorAbortsRemainingSearches(t *testing.T) {
	searcher := &recordingSearcher{err: errors.New("connection lost")}
	var out bytes.Buffer

	err := searchAfterSeed(context.Background(), searcher, &episodic.SeedResult{Added: 1}, nil, &out, discardLogger())
	require.Error(t, err)

	assert.Len(t, searcher.searchConfigs, 1)
	assert.Zero(t, searcher.nodeCalls)
}
