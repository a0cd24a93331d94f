package episodic

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/soundprediction/episodic"
	"github.com/soundprediction/episodic/pkg/config"
	"github.com/soundprediction/episodic/pkg/driver"
	"github.com/soundprediction/episodic/pkg/embedder"
	"github.com/soundprediction/episodic/pkg/llm"
	episodicLogger "github.com/soundprediction/episodic/pkg/logger"
	"github.com/soundprediction/episodic/pkg/retry"
	"github.com/soundprediction/episodic/pkg/search"
	"github.com/soundprediction/episodic/pkg/types"
)

var quickstartCmd = &cobra.Command{
	Use:   "quickstart",
	Short: "Ingest sample episodes and run example searches",
	Long: `Quickstart connects to Neo4j, ingests a small batch of episodes, and
runs three searches against the resulting graph: a hybrid search, the same
search reranked around the top result's source entity, and a direct node
search.

By default a built-in set of sample episodes is ingested. Pass --episodes
to ingest a YAML file of your own episodes instead.`,
	RunE: runQuickstart,
}

var episodesFile string

func init() {
	rootCmd.AddCommand(quickstartCmd)

	quickstartCmd.Flags().StringVar(&episodesFile, "episodes", "", "YAML file of episodes to ingest instead of the samples")
}

func runQuickstart(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return fmt.Errorf("configuration is incomplete")
	}

	log := episodicLogger.NewDefaultLogger(episodicLogger.ParseLevel(cfg.Log.Level))

	graphDriver, err := driver.NewNeo4jDriver(cfg.Database.URI, cfg.Database.Username, cfg.Database.Password, cfg.Database.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to neo4j: %w", err)
	}

	llmClient, err := newLLMClient(cfg, log)
	if err != nil {
		graphDriver.Close(ctx)
		return err
	}

	embedderClient, err := embedder.NewOpenAIEmbedder(cfg.LLM.APIKey, embedder.Config{
		Model:   cfg.Embedding.Model,
		BaseURL: cfg.Embedding.BaseURL,
	})
	if err != nil {
		llmClient.Close()
		graphDriver.Close(ctx)
		return err
	}

	client, err := episodic.NewClient(graphDriver, llmClient, embedderClient, &episodic.Config{
		GroupID: cfg.Ingestion.GroupID,
	}, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Close(context.Background()); err != nil {
			log.Warn("close failed", "error", err)
		}
	}()

	if err := client.CreateIndices(ctx); err != nil {
		return fmt.Errorf("failed to create indices: %w", err)
	}

	episodes := sampleEpisodes()
	if episodesFile != "" {
		episodes, err = loadEpisodesFile(episodesFile)
		if err != nil {
			return err
		}
	}

	coordinator := retry.NewCoordinator(retry.Policy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   cfg.Retry.BaseDelay,
	}, retry.WithLogger(log))

	seeder := episodic.NewSeeder(client,
		episodic.WithCoordinator(coordinator),
		episodic.WithPace(cfg.Ingestion.Pace),
		episodic.WithOutput(os.Stdout),
		episodic.WithSeederLogger(log),
	)

	result, seedErr := seeder.Seed(ctx, episodes)
	return searchAfterSeed(ctx, client, result, seedErr, os.Stdout, log)
}

// graphSearcher is the search surface of *episodic.Client used by the
// quickstart queries.
type graphSearcher interface {
	Search(ctx context.Context, query string, config *types.SearchConfig) (*types.SearchResults, error)
	SearchNodes(ctx context.Context, query string, config *types.NodeSearchConfig) (*types.NodeSearchResults, error)
}

// searchAfterSeed reports the batch outcome and runs the example searches.
// If nothing was ingested, no search is issued at all.
func searchAfterSeed(ctx context.Context, s graphSearcher, result *episodic.SeedResult, seedErr error, out io.Writer, log *slog.Logger) error {
	fmt.Fprintf(out, "\nIngestion complete: %d added, %d failed\n", result.Added, result.Failed)

	if result.Added == 0 {
		log.Error("no episodes were ingested, skipping searches")
		return seedErr
	}
	if seedErr != nil {
		log.Warn("continuing to searches with a partial batch", "error", seedErr)
	}

	if err := runSearches(ctx, s, out); err != nil {
		return err
	}
	return seedErr
}

// newLLMClient builds the completion client, wrapped in a circuit breaker
// when enabled.
func newLLMClient(cfg *config.Config, log *slog.Logger) (llm.Client, error) {
	base, err := llm.NewOpenAIClient(cfg.LLM.APIKey, llm.Config{
		Model:       cfg.LLM.Model,
		BaseURL:     cfg.LLM.BaseURL,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	})
	if err != nil {
		return nil, err
	}
	if !cfg.CircuitBreaker.Enabled {
		return base, nil
	}
	return llm.NewBreakerClient(base, llm.BreakerConfig{
		MaxRequests:      cfg.CircuitBreaker.MaxRequests,
		Interval:         time.Duration(cfg.CircuitBreaker.Interval) * time.Second,
		Timeout:          time.Duration(cfg.CircuitBreaker.Timeout) * time.Second,
		ReadyToTripRatio: cfg.CircuitBreaker.ReadyToTripRatio,
	}, log), nil
}

// runSearches exercises the graph with the three example queries: a hybrid
// search, the same query reranked around the source entity of its first
// result, and a node search.
func runSearches(ctx context.Context, s graphSearcher, out io.Writer) error {
	query := "Who was the California Attorney General?"
	fmt.Fprintf(out, "\nSearching for: %q\n", query)

	results, err := s.Search(ctx, query, nil)
	if err != nil {
		return fmt.Errorf("hybrid search failed: %w", err)
	}
	printEdges(out, results.Edges)

	if len(results.Edges) > 0 {
		center := results.Edges[0].SourceNodeUUID
		fmt.Fprintf(out, "\nReranking around center node %s\n", center)

		reranked, err := s.Search(ctx, query, &types.SearchConfig{CenterNodeUUID: center})
		if err != nil {
			return fmt.Errorf("center node search failed: %w", err)
		}
		printEdges(out, reranked.Edges)
	}

	nodeQuery := "California Governor"
	fmt.Fprintf(out, "\nSearching for nodes: %q\n", nodeQuery)

	nodeResults, err := s.SearchNodes(ctx, nodeQuery, &types.NodeSearchConfig{Limit: 5})
	if err != nil {
		return fmt.Errorf("node search failed: %w", err)
	}
	printNodes(out, nodeResults.Nodes)
	return nil
}

func printEdges(out io.Writer, edges []*types.EntityEdge) {
	if len(edges) == 0 {
		fmt.Fprintln(out, "  (no results)")
		return
	}
	for _, edge := range edges {
		fmt.Fprintf(out, "  UUID: %s\n  Fact: %s\n", edge.UUID, edge.Fact)
		if validity := search.FormatValidity(edge); validity != "" {
			fmt.Fprintf(out, "  Valid: %s\n", validity)
		}
		fmt.Fprintln(out, "  ---")
	}
}

func printNodes(out io.Writer, nodes []*types.Node) {
	if len(nodes) == 0 {
		fmt.Fprintln(out, "  (no results)")
		return
	}
	for _, node := range nodes {
		fmt.Fprintf(out, "  UUID: %s\n  Name: %s\n", node.UUID, node.Name)
		if node.Summary != "" {
			fmt.Fprintf(out, "  Summary: %s\n", node.Summary)
		}
		fmt.Fprintln(out, "  ---")
	}
}
