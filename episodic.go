package episodic

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/soundprediction/episodic/pkg/driver"
	"github.com/soundprediction/episodic/pkg/embedder"
	"github.com/soundprediction/episodic/pkg/llm"
	"github.com/soundprediction/episodic/pkg/search"
)

var (
	// ErrNodeNotFound is returned when a node is not found.
	ErrNodeNotFound = errors.New("node not found")
	// ErrInvalidEpisode is returned when an episode is invalid.
	ErrInvalidEpisode = errors.New("invalid episode")
)

// Config holds configuration for the client.
type Config struct {
	// GroupID isolates data for multi-tenant scenarios.
	GroupID string
	// TimeZone for temporal operations.
	TimeZone *time.Location
}

func (c *Config) withDefaults() *Config {
	if c == nil {
		c = &Config{}
	}
	result := *c
	if result.GroupID == "" {
		result.GroupID = "default"
	}
	if result.TimeZone == nil {
		result.TimeZone = time.UTC
	}
	return &result
}

// Client is the entry point for building and querying the knowledge graph.
type Client struct {
	driver   driver.GraphDriver
	llm      llm.Client
	embedder embedder.Client
	searcher *search.Searcher
	config   *Config
	logger   *slog.Logger
}

// NewClient creates a client over the given driver, language model, and
// embedder. Config and logger may be nil.
func NewClient(d driver.GraphDriver, llmClient llm.Client, embedderClient embedder.Client, config *Config, logger *slog.Logger) (*Client, error) {
	if d == nil {
		return nil, errors.New("graph driver is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		driver:   d,
		llm:      llmClient,
		embedder: embedderClient,
		searcher: search.NewSearcher(d, embedderClient, logger),
		config:   config.withDefaults(),
		logger:   logger,
	}, nil
}

// GroupID returns the group identifier this client writes under.
func (c *Client) GroupID() string {
	return c.config.GroupID
}

// Driver returns the underlying graph driver.
func (c *Client) Driver() driver.GraphDriver {
	return c.driver
}

// CreateIndices creates database indices and constraints. Call once on
// startup before ingesting.
func (c *Client) CreateIndices(ctx context.Context) error {
	return c.driver.CreateIndices(ctx)
}

// Close closes all connections and cleans up resources. Safe to call on a
// partially constructed client.
func (c *Client) Close(ctx context.Context) error {
	var errs []error
	if c.llm != nil {
		if err := c.llm.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.embedder != nil {
		if err := c.embedder.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := c.driver.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
