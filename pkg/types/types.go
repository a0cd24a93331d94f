package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Validation errors
var (
	ErrEmptyName    = errors.New("name cannot be empty")
	ErrEmptyGroupID = errors.New("group_id cannot be empty")
	ErrEmptyUUID    = errors.New("uuid cannot be empty")
	ErrEmptyContent = errors.New("content cannot be empty")
	ErrInvalidLimit = errors.New("limit must be positive")
)

// EpisodeType represents the kind of content an episode carries.
type EpisodeType string

const (
	// EpisodeTypeText for free-form prose.
	EpisodeTypeText EpisodeType = "text"
	// EpisodeTypeJSON for serialized structured records.
	EpisodeTypeJSON EpisodeType = "json"
)

// Episode is one unit of content submitted for ingestion into the graph.
type Episode struct {
	Name        string                 `json:"name" yaml:"name"`
	Content     string                 `json:"content" yaml:"content"`
	Type        EpisodeType            `json:"type" yaml:"type"`
	Description string                 `json:"description" yaml:"description"`
	Reference   time.Time              `json:"reference,omitempty" yaml:"reference,omitempty"`
	GroupID     string                 `json:"group_id,omitempty" yaml:"group_id,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// NewJSONEpisode builds a structured-record episode by serializing record
// into the episode content. The record survives the round trip through
// Content without field loss; use DecodeJSONContent to recover it.
func NewJSONEpisode(name string, record interface{}, description string) (Episode, error) {
	body, err := json.Marshal(record)
	if err != nil {
		return Episode{}, fmt.Errorf("failed to serialize episode record: %w", err)
	}
	return Episode{
		Name:        name,
		Content:     string(body),
		Type:        EpisodeTypeJSON,
		Description: description,
	}, nil
}

// DecodeJSONContent unmarshals the content of a structured-record episode
// into out. It fails on text episodes.
func (e *Episode) DecodeJSONContent(out interface{}) error {
	if e.Type != EpisodeTypeJSON {
		return fmt.Errorf("episode %q is not a json episode (type: %s)", e.Name, e.Type)
	}
	return json.Unmarshal([]byte(e.Content), out)
}

// Validate checks if the Episode has all required fields set.
func (e *Episode) Validate() error {
	if e.Name == "" {
		return ErrEmptyName
	}
	if e.Content == "" {
		return ErrEmptyContent
	}
	return nil
}

// NodeType represents the type of a node.
type NodeType string

const (
	// EntityNodeType represents entities extracted from episode content.
	EntityNodeType NodeType = "entity"
	// EpisodicNodeType represents stored episodes.
	EpisodicNodeType NodeType = "episodic"
)

// Node represents a node in the knowledge graph.
type Node struct {
	UUID      string    `json:"uuid"`
	Name      string    `json:"name"`
	Type      NodeType  `json:"type"`
	GroupID   string    `json:"group_id"`
	CreatedAt time.Time `json:"created_at"`

	// Entity-specific fields
	Summary string   `json:"summary,omitempty"`
	Labels  []string `json:"labels,omitempty"`

	// Episode-specific fields
	EpisodeType EpisodeType `json:"episode_type,omitempty"`
	Content     string      `json:"content,omitempty"`
	Description string      `json:"description,omitempty"`
	Reference   time.Time   `json:"reference,omitempty"`

	NameEmbedding []float32              `json:"name_embedding,omitempty"`
	Attributes    map[string]interface{} `json:"attributes,omitempty"`
}

// Validate checks if the Node has all required fields set.
func (n *Node) Validate() error {
	if n.UUID == "" {
		return ErrEmptyUUID
	}
	if n.Name == "" {
		return ErrEmptyName
	}
	if n.GroupID == "" {
		return ErrEmptyGroupID
	}
	return nil
}

// EntityEdge represents a fact connecting two entity nodes.
type EntityEdge struct {
	UUID           string    `json:"uuid"`
	Name           string    `json:"name"`
	Fact           string    `json:"fact"`
	GroupID        string    `json:"group_id"`
	SourceNodeUUID string    `json:"source_node_uuid"`
	TargetNodeUUID string    `json:"target_node_uuid"`
	CreatedAt      time.Time `json:"created_at"`

	// Validity interval bounds for the fact; nil when unknown.
	ValidAt   *time.Time `json:"valid_at,omitempty"`
	InvalidAt *time.Time `json:"invalid_at,omitempty"`

	// Episode UUIDs this fact was extracted from.
	Episodes []string `json:"episodes,omitempty"`

	FactEmbedding []float32 `json:"fact_embedding,omitempty"`
}

// Edge is an alias for EntityEdge.
type Edge = EntityEdge

// Validate checks if the edge has all required fields set.
func (e *EntityEdge) Validate() error {
	if e.UUID == "" {
		return ErrEmptyUUID
	}
	if e.SourceNodeUUID == "" || e.TargetNodeUUID == "" {
		return errors.New("edge endpoints cannot be empty")
	}
	return nil
}

// SearchConfig holds configuration for hybrid edge search.
type SearchConfig struct {
	// Limit is the maximum number of results to return.
	Limit int
	// CenterNodeUUID biases results by graph distance to this node.
	CenterNodeUUID string
	// MinScore is the minimum relevance score for results.
	MinScore float64
}

// Validate checks if the SearchConfig has valid values.
func (c *SearchConfig) Validate() error {
	if c.Limit < 0 {
		return ErrInvalidLimit
	}
	return nil
}

// WithDefaults returns a copy of the config with default values applied.
func (c *SearchConfig) WithDefaults() *SearchConfig {
	if c == nil {
		return &SearchConfig{Limit: 10}
	}
	result := *c
	if result.Limit == 0 {
		result.Limit = 10
	}
	return &result
}

// NodeSearchConfig holds configuration for node-oriented search.
type NodeSearchConfig struct {
	// Limit is the maximum number of nodes to return.
	Limit int
	// MinScore is the minimum relevance score for results.
	MinScore float64
}

// Validate checks if the NodeSearchConfig has valid values.
func (c *NodeSearchConfig) Validate() error {
	if c.Limit < 0 {
		return ErrInvalidLimit
	}
	return nil
}

// WithDefaults returns a copy of the config with default values applied.
func (c *NodeSearchConfig) WithDefaults() *NodeSearchConfig {
	if c == nil {
		return &NodeSearchConfig{Limit: 10}
	}
	result := *c
	if result.Limit == 0 {
		result.Limit = 10
	}
	return &result
}

// SearchResults holds the ordered facts returned by a hybrid search.
type SearchResults struct {
	Edges []*EntityEdge
	Query string
}

// NodeSearchResults holds the nodes returned by a node search.
type NodeSearchResults struct {
	Nodes []*Node
	Query string
}
