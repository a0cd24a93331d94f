package episodic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kaptinlin/jsonrepair"

	"github.com/soundprediction/episodic/pkg/llm"
	"github.com/soundprediction/episodic/pkg/types"
)

// AddEpisodeResults reports what a single episode ingestion produced.
type AddEpisodeResults struct {
	// Episode is the stored episodic node.
	Episode *types.Node
	// Nodes are the entity nodes extracted from the episode.
	Nodes []*types.Node
	// Edges are the fact edges extracted from the episode.
	Edges []*types.EntityEdge
}

// extractedEntity is one entity from the model's extraction response.
type extractedEntity struct {
	Name    string `json:"name"`
	Summary string `json:"summary"`
}

// extractedFact is one relationship from the model's extraction response.
type extractedFact struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Name   string `json:"name"`
	Fact   string `json:"fact"`
}

// extractionResponse is the structured output requested from the model.
type extractionResponse struct {
	Entities []extractedEntity `json:"entities"`
	Facts    []extractedFact   `json:"facts"`
}

const extractionSystemPrompt = `You are an expert at extracting entities and factual relationships from text.
Given an episode of content, identify the entities it mentions and the facts connecting them.
Entity names must be specific and consistent. Facts must be single complete sentences.
Respond with JSON only.`

// AddEpisode runs the full ingestion pipeline for one episode: the episode
// is stored as an episodic node, entities and facts are extracted with the
// language model, embedded, and persisted with MENTIONS edges back to the
// episode.
func (c *Client) AddEpisode(ctx context.Context, episode types.Episode) (*AddEpisodeResults, error) {
	if err := episode.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEpisode, err)
	}

	if episode.GroupID == "" {
		episode.GroupID = c.config.GroupID
	}
	if episode.Reference.IsZero() {
		episode.Reference = time.Now().In(c.config.TimeZone)
	}

	episodeNode := &types.Node{
		UUID:        uuid.New().String(),
		Name:        episode.Name,
		Type:        types.EpisodicNodeType,
		GroupID:     episode.GroupID,
		CreatedAt:   time.Now().In(c.config.TimeZone),
		EpisodeType: episode.Type,
		Content:     episode.Content,
		Description: episode.Description,
		Reference:   episode.Reference,
	}
	if err := c.driver.UpsertNode(ctx, episodeNode); err != nil {
		return nil, fmt.Errorf("failed to persist episode: %w", err)
	}

	results := &AddEpisodeResults{Episode: episodeNode}

	if c.llm == nil {
		c.logger.Warn("no language model configured, episode stored without extraction", "episode", episode.Name)
		return results, nil
	}

	extraction, err := c.extractFromEpisode(ctx, episode)
	if err != nil {
		return nil, err
	}

	entityNodes, err := c.persistEntities(ctx, episodeNode, extraction.Entities)
	if err != nil {
		return nil, err
	}
	results.Nodes = entityNodes

	edges, err := c.persistFacts(ctx, episodeNode, entityNodes, extraction.Facts)
	if err != nil {
		return nil, err
	}
	results.Edges = edges

	c.logger.Info("Episode added",
		"episode", episode.Name,
		"entities", len(results.Nodes),
		"facts", len(results.Edges))
	return results, nil
}

// extractFromEpisode asks the language model for entities and facts.
func (c *Client) extractFromEpisode(ctx context.Context, episode types.Episode) (*extractionResponse, error) {
	content := episode.Content
	if episode.Type == types.EpisodeTypeJSON {
		content = "The following is a structured record:\n" + content
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: extractionSystemPrompt},
		{Role: llm.RoleUser, Content: fmt.Sprintf("Episode (%s): %s\n\nContent:\n%s", episode.Description, episode.Name, content)},
	}

	response, err := c.llm.ChatWithStructuredOutput(ctx, messages, extractionResponse{})
	if err != nil {
		return nil, fmt.Errorf("entity extraction failed: %w", err)
	}

	extraction, err := parseExtraction(response.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse extraction response: %w", err)
	}
	return extraction, nil
}

// parseExtraction decodes the model output, stripping surrounding prose
// and repairing malformed JSON.
func parseExtraction(content string) (*extractionResponse, error) {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "{") {
		start := strings.Index(trimmed, "{")
		end := strings.LastIndex(trimmed, "}")
		if start == -1 || end <= start {
			return nil, fmt.Errorf("no JSON object in response")
		}
		trimmed = trimmed[start : end+1]
	}

	repaired, err := jsonrepair.JSONRepair(trimmed)
	if err != nil {
		repaired = trimmed
	}

	var extraction extractionResponse
	if err := json.Unmarshal([]byte(repaired), &extraction); err != nil {
		return nil, err
	}
	return &extraction, nil
}

// persistEntities upserts extracted entities, reusing nodes that already
// exist under the same name, and links each to the episode with a
// MENTIONS edge.
func (c *Client) persistEntities(ctx context.Context, episodeNode *types.Node, entities []extractedEntity) ([]*types.Node, error) {
	nodes := make([]*types.Node, 0, len(entities))
	seen := make(map[string]bool, len(entities))

	names := make([]string, 0, len(entities))
	for _, entity := range entities {
		if entity.Name == "" || seen[entity.Name] {
			continue
		}
		seen[entity.Name] = true
		names = append(names, entity.Name)
	}

	embeddings, err := c.embedTexts(ctx, names)
	if err != nil {
		return nil, fmt.Errorf("failed to embed entity names: %w", err)
	}

	index := 0
	seen = make(map[string]bool, len(entities))
	for _, entity := range entities {
		if entity.Name == "" || seen[entity.Name] {
			continue
		}
		seen[entity.Name] = true

		node, err := c.driver.GetEntityNodeByName(ctx, entity.Name, episodeNode.GroupID)
		if err != nil {
			return nil, fmt.Errorf("entity lookup failed for %q: %w", entity.Name, err)
		}
		if node == nil {
			node = &types.Node{
				UUID:      uuid.New().String(),
				Name:      entity.Name,
				Type:      types.EntityNodeType,
				GroupID:   episodeNode.GroupID,
				CreatedAt: time.Now().In(c.config.TimeZone),
			}
		}
		if entity.Summary != "" {
			node.Summary = entity.Summary
		}
		if embeddings != nil {
			node.NameEmbedding = embeddings[index]
		}
		index++

		if err := c.driver.UpsertNode(ctx, node); err != nil {
			return nil, fmt.Errorf("failed to persist entity %q: %w", entity.Name, err)
		}
		if err := c.driver.UpsertEpisodicEdge(ctx, uuid.New().String(), episodeNode.UUID, node.UUID, episodeNode.GroupID); err != nil {
			return nil, fmt.Errorf("failed to link entity %q to episode: %w", entity.Name, err)
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

// persistFacts upserts extracted fact edges between known entities. Facts
// naming an entity the extraction pass did not produce are skipped.
func (c *Client) persistFacts(ctx context.Context, episodeNode *types.Node, entityNodes []*types.Node, facts []extractedFact) ([]*types.EntityEdge, error) {
	byName := make(map[string]*types.Node, len(entityNodes))
	for _, node := range entityNodes {
		byName[node.Name] = node
	}

	kept := make([]extractedFact, 0, len(facts))
	factTexts := make([]string, 0, len(facts))
	for _, fact := range facts {
		if fact.Fact == "" || byName[fact.Source] == nil || byName[fact.Target] == nil {
			c.logger.Debug("skipping fact with unknown endpoints", "source", fact.Source, "target", fact.Target)
			continue
		}
		kept = append(kept, fact)
		factTexts = append(factTexts, fact.Fact)
	}

	embeddings, err := c.embedTexts(ctx, factTexts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed facts: %w", err)
	}

	edges := make([]*types.EntityEdge, 0, len(kept))
	for i, fact := range kept {
		edge := &types.EntityEdge{
			UUID:           uuid.New().String(),
			Name:           fact.Name,
			Fact:           fact.Fact,
			GroupID:        episodeNode.GroupID,
			SourceNodeUUID: byName[fact.Source].UUID,
			TargetNodeUUID: byName[fact.Target].UUID,
			CreatedAt:      time.Now().In(c.config.TimeZone),
			Episodes:       []string{episodeNode.UUID},
		}
		if embeddings != nil {
			edge.FactEmbedding = embeddings[i]
		}
		if err := c.driver.UpsertEntityEdge(ctx, edge); err != nil {
			return nil, fmt.Errorf("failed to persist fact edge: %w", err)
		}
		edges = append(edges, edge)
	}
	return edges, nil
}

func (c *Client) embedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if c.embedder == nil || len(texts) == 0 {
		return nil, nil
	}
	return c.embedder.Embed(ctx, texts)
}
