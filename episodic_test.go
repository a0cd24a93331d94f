package episodic

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/episodic/pkg/llm"
	"github.com/soundprediction/episodic/pkg/types"
)

// memDriver is an in-memory GraphDriver for pipeline tests.
type memDriver struct {
	nodes         map[string]*types.Node
	entityByName  map[string]*types.Node
	edges         map[string]*types.EntityEdge
	episodicEdges []string
	distances     map[string]int
	closed        bool
}

func newMemDriver() *memDriver {
	return &memDriver{
		nodes:        make(map[string]*types.Node),
		entityByName: make(map[string]*types.Node),
		edges:        make(map[string]*types.EntityEdge),
	}
}

func (m *memDriver) UpsertNode(ctx context.Context, node *types.Node) error {
	copied := *node
	m.nodes[node.UUID] = &copied
	if node.Type == types.EntityNodeType {
		m.entityByName[node.Name] = &copied
	}
	return nil
}

func (m *memDriver) UpsertEntityEdge(ctx context.Context, edge *types.EntityEdge) error {
	copied := *edge
	m.edges[edge.UUID] = &copied
	return nil
}

func (m *memDriver) UpsertEpisodicEdge(ctx context.Context, edgeUUID, episodeUUID, entityUUID, groupID string) error {
	m.episodicEdges = append(m.episodicEdges, episodeUUID+"->"+entityUUID)
	return nil
}

func (m *memDriver) GetNode(ctx context.Context, uuid, groupID string) (*types.Node, error) {
	if node, ok := m.nodes[uuid]; ok {
		return node, nil
	}
	return nil, errors.New("not found")
}

func (m *memDriver) GetEntityNodeByName(ctx context.Context, name, groupID string) (*types.Node, error) {
	return m.entityByName[name], nil
}

func (m *memDriver) GetEpisodes(ctx context.Context, groupID string, limit int) ([]*types.Node, error) {
	var episodes []*types.Node
	for _, node := range m.nodes {
		if node.Type == types.EpisodicNodeType {
			episodes = append(episodes, node)
		}
	}
	return episodes, nil
}

func (m *memDriver) SearchNodesFulltext(ctx context.Context, query, groupID string, limit int) ([]*types.Node, error) {
	return nil, nil
}

func (m *memDriver) SearchEdgesFulltext(ctx context.Context, query, groupID string, limit int) ([]*types.EntityEdge, error) {
	edges := make([]*types.EntityEdge, 0, len(m.edges))
	for _, edge := range m.edges {
		edges = append(edges, edge)
	}
	return edges, nil
}

func (m *memDriver) SearchNodesByEmbedding(ctx context.Context, embedding []float32, groupID string, limit int) ([]*types.Node, error) {
	return nil, nil
}

func (m *memDriver) SearchEdgesByEmbedding(ctx context.Context, embedding []float32, groupID string, limit int) ([]*types.EntityEdge, error) {
	return nil, nil
}

func (m *memDriver) NodeDistances(ctx context.Context, centerUUID string, uuids []string) (map[string]int, error) {
	if m.distances == nil {
		return map[string]int{centerUUID: 0}, nil
	}
	return m.distances, nil
}

func (m *memDriver) CreateIndices(ctx context.Context) error      { return nil }
func (m *memDriver) VerifyConnectivity(ctx context.Context) error { return nil }
func (m *memDriver) Close(ctx context.Context) error {
	m.closed = true
	return nil
}

// stubLLM returns a canned extraction response.
type stubLLM struct {
	response string
	err      error
	calls    int
}

func (s *stubLLM) Chat(ctx context.Context, messages []llm.Message) (*llm.Response, error) {
	return s.ChatWithStructuredOutput(ctx, messages, nil)
}

func (s *stubLLM) ChatWithStructuredOutput(ctx context.Context, messages []llm.Message, schema any) (*llm.Response, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &llm.Response{Content: s.response}, nil
}

func (s *stubLLM) Close() error { return nil }

// stubEmbedder returns a fixed vector per input.
type stubEmbedder struct{}

func (stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2}
	}
	return out, nil
}
func (stubEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	return []float32{0.1, 0.2}, nil
}
func (stubEmbedder) Close() error { return nil }

const harrisExtraction = `{
	"entities": [
		{"name": "Kamala Harris", "summary": "Attorney General of California"},
		{"name": "California", "summary": "US state"}
	],
	"facts": [
		{"source": "Kamala Harris", "target": "California", "name": "SERVED_AS", "fact": "Kamala Harris was the Attorney General of California"}
	]
}`

func newTestClient(t *testing.T, d *memDriver, model llm.Client) *Client {
	t.Helper()
	client, err := NewClient(d, model, stubEmbedder{}, &Config{GroupID: "test"}, nil)
	require.NoError(t, err)
	return client
}

func TestAddEpisodePersistsGraph(t *testing.T) {
	d := newMemDriver()
	client := newTestClient(t, d, &stubLLM{response: harrisExtraction})

	results, err := client.AddEpisode(context.Background(), types.Episode{
		Name:        "Freakonomics Radio 0",
		Content:     "Kamala Harris served as the Attorney General of California.",
		Type:        types.EpisodeTypeText,
		Description: "podcast transcript",
	})
	require.NoError(t, err)

	require.NotNil(t, results.Episode)
	assert.Equal(t, types.EpisodicNodeType, results.Episode.Type)
	assert.Equal(t, "test", results.Episode.GroupID)
	assert.False(t, results.Episode.Reference.IsZero())

	require.Len(t, results.Nodes, 2)
	require.Len(t, results.Edges, 1)

	edge := results.Edges[0]
	assert.Equal(t, "Kamala Harris was the Attorney General of California", edge.Fact)
	assert.Equal(t, []string{results.Episode.UUID}, edge.Episodes)
	assert.NotEmpty(t, edge.FactEmbedding)

	// Every extracted entity is linked back to the episode.
	assert.Len(t, d.episodicEdges, 2)
}

func TestAddEpisodeReusesExistingEntities(t *testing.T) {
	d := newMemDriver()
	existing := &types.Node{
		UUID:      "existing-uuid",
		Name:      "Kamala Harris",
		Type:      types.EntityNodeType,
		GroupID:   "test",
		CreatedAt: time.Now(),
	}
	require.NoError(t, d.UpsertNode(context.Background(), existing))

	client := newTestClient(t, d, &stubLLM{response: harrisExtraction})

	results, err := client.AddEpisode(context.Background(), types.Episode{
		Name:    "Freakonomics Radio 1",
		Content: "As AG, Harris was in office from 2011 to 2017.",
		Type:    types.EpisodeTypeText,
	})
	require.NoError(t, err)

	var harris *types.Node
	for _, node := range results.Nodes {
		if node.Name == "Kamala Harris" {
			harris = node
		}
	}
	require.NotNil(t, harris)
	assert.Equal(t, "existing-uuid", harris.UUID)
}

func TestAddEpisodeSkipsFactsWithUnknownEndpoints(t *testing.T) {
	d := newMemDriver()
	client := newTestClient(t, d, &stubLLM{response: `{
		"entities": [{"name": "Gavin Newsom"}],
		"facts": [{"source": "Gavin Newsom", "target": "Nowhere", "name": "X", "fact": "dangling"}]
	}`})

	results, err := client.AddEpisode(context.Background(), types.Episode{
		Name:    "Freakonomics Radio 2",
		Content: `{"name": "Gavin Newsom", "position": "Governor"}`,
		Type:    types.EpisodeTypeJSON,
	})
	require.NoError(t, err)
	assert.Len(t, results.Nodes, 1)
	assert.Empty(t, results.Edges)
}

func TestAddEpisodeRejectsInvalidEpisode(t *testing.T) {
	client := newTestClient(t, newMemDriver(), &stubLLM{response: "{}"})

	_, err := client.AddEpisode(context.Background(), types.Episode{Name: ""})
	assert.ErrorIs(t, err, ErrInvalidEpisode)
}

func TestAddEpisodePropagatesExtractionError(t *testing.T) {
	extractionErr := llm.NewRateLimitError()
	client := newTestClient(t, newMemDriver(), &stubLLM{err: extractionErr})

	_, err := client.AddEpisode(context.Background(), types.Episode{
		Name:    "ep",
		Content: "content",
		Type:    types.EpisodeTypeText,
	})
	require.Error(t, err)
	assert.True(t, llm.IsRateLimitError(err))
}

func TestParseExtractionRepairsMalformedJSON(t *testing.T) {
	// Trailing comma and surrounding prose, as models sometimes produce.
	extraction, err := parseExtraction("Here you go:\n{\"entities\": [{\"name\": \"A\"},], \"facts\": []}")
	require.NoError(t, err)
	require.Len(t, extraction.Entities, 1)
	assert.Equal(t, "A", extraction.Entities[0].Name)
}

func TestCloseClosesEverything(t *testing.T) {
	d := newMemDriver()
	client := newTestClient(t, d, &stubLLM{response: "{}"})

	require.NoError(t, client.Close(context.Background()))
	assert.True(t, d.closed)
}

func TestConfigDefaults(t *testing.T) {
	client, err := NewClient(newMemDriver(), nil, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "default", client.GroupID())
	assert.Equal(t, time.UTC, client.config.TimeZone)
}
