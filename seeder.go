package episodic

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/soundprediction/episodic/pkg/retry"
	"github.com/soundprediction/episodic/pkg/types"
)

// EpisodeAdder ingests a single episode. *Client implements it.
type EpisodeAdder interface {
	AddEpisode(ctx context.Context, episode types.Episode) (*AddEpisodeResults, error)
}

// SeedResult reports the outcome of a batch ingestion.
type SeedResult struct {
	// Added is the number of episodes ingested successfully.
	Added int
	// Failed is the number of episodes that failed terminally. At most
	// one, since the batch aborts on the first failure.
	Failed int
	// Results holds the per-episode ingestion results, in order.
	Results []*AddEpisodeResults
}

// Seeder ingests batches of episodes. Each episode is retried through a
// retry.Coordinator when the model rate-limits; any terminal failure
// aborts the remainder of the batch. Successive episodes are paced so a
// burst of ingestions does not immediately trip the rate limit again.
type Seeder struct {
	adder       EpisodeAdder
	coordinator *retry.Coordinator
	pace        time.Duration
	out         io.Writer
	logger      *slog.Logger

	// newLimiter is swapped in tests to avoid real waiting.
	newLimiter func() pacer
}

type pacer interface {
	Wait(ctx context.Context) error
}

// SeederOption configures a Seeder.
type SeederOption func(*Seeder)

// WithPace sets the delay between successfully ingested episodes. A
// non-positive pace disables pacing.
func WithPace(d time.Duration) SeederOption {
	return func(s *Seeder) { s.pace = d }
}

// WithCoordinator sets the retry coordinator used per episode.
func WithCoordinator(c *retry.Coordinator) SeederOption {
	return func(s *Seeder) { s.coordinator = c }
}

// WithOutput sets the writer for per-episode progress markers.
func WithOutput(w io.Writer) SeederOption {
	return func(s *Seeder) { s.out = w }
}

// WithSeederLogger sets the logger.
func WithSeederLogger(logger *slog.Logger) SeederOption {
	return func(s *Seeder) { s.logger = logger }
}

// NewSeeder creates a Seeder over the given adder. Defaults: the default
// retry policy, one second of pacing, and no progress output.
func NewSeeder(adder EpisodeAdder, opts ...SeederOption) *Seeder {
	s := &Seeder{
		adder:  adder,
		pace:   time.Second,
		out:    io.Discard,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.coordinator == nil {
		s.coordinator = retry.NewCoordinator(retry.DefaultPolicy(), retry.WithLogger(s.logger))
	}
	if s.newLimiter == nil {
		s.newLimiter = func() pacer {
			limiter := rate.NewLimiter(rate.Every(s.pace), 1)
			// Consume the initial token so the first wait actually paces.
			limiter.Allow()
			return limiter
		}
	}
	return s
}

// Seed ingests the episodes in order. On the first terminal failure the
// rest of the batch is skipped and the failure is returned alongside the
// counts accumulated so far.
func (s *Seeder) Seed(ctx context.Context, episodes []types.Episode) (*SeedResult, error) {
	result := &SeedResult{}

	var limiter pacer
	if s.pace > 0 {
		limiter = s.newLimiter()
	}

	for i, episode := range episodes {
		var added *AddEpisodeResults
		outcome := s.coordinator.Do(ctx, episode.Name, func(ctx context.Context) error {
			var err error
			added, err = s.adder.AddEpisode(ctx, episode)
			return err
		})

		if !outcome.Success() {
			result.Failed++
			fmt.Fprintf(s.out, "✗ Failed to add episode %s: %v\n", episode.Name, outcome.Err)
			s.logger.Error("aborting batch after episode failure",
				"episode", episode.Name,
				"attempts", outcome.Attempts,
				"state", outcome.State,
				"remaining", len(episodes)-i-1,
				"error", outcome.Err)
			return result, fmt.Errorf("episode %q failed after %d attempt(s): %w", episode.Name, outcome.Attempts, outcome.Err)
		}

		result.Added++
		result.Results = append(result.Results, added)
		fmt.Fprintf(s.out, "✓ Added episode: %s\n", episode.Name)
		s.logger.Info("Ingested episode", "episode", episode.Name, "attempts", outcome.Attempts)

		if limiter != nil && i < len(episodes)-1 {
			if err := limiter.Wait(ctx); err != nil {
				return result, err
			}
		}
	}
	return result, nil
}
