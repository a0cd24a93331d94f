package episodic

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/soundprediction/episodic/pkg/types"
)

// sampleEpisodes returns the built-in quickstart batch: two transcript
// snippets and two structured records about California politicians.
func sampleEpisodes() []types.Episode {
	newsomRecord := map[string]string{
		"name":              "Gavin Newsom",
		"position":          "Governor",
		"state":             "California",
		"previous_role":     "Lieutenant Governor",
		"previous_location": "San Francisco",
	}
	newsomTerm := map[string]string{
		"name":       "Gavin Newsom",
		"position":   "Governor",
		"term_start": "January 7, 2019",
		"term_end":   "Present",
	}

	episodes := []types.Episode{
		{
			Name:        "Freakonomics Radio 0",
			Content:     "Kamala Harris is the Attorney General of California. She was previously the district attorney for San Francisco.",
			Type:        types.EpisodeTypeText,
			Description: "podcast transcript",
		},
		{
			Name:        "Freakonomics Radio 1",
			Content:     "As AG, Harris was in office from January 3, 2011 – January 3, 2017",
			Type:        types.EpisodeTypeText,
			Description: "podcast transcript",
		},
	}

	for i, record := range []map[string]string{newsomRecord, newsomTerm} {
		episode, err := types.NewJSONEpisode(fmt.Sprintf("Freakonomics Radio %d", i+2), record, "podcast metadata")
		if err != nil {
			// A string map always marshals.
			panic(err)
		}
		episodes = append(episodes, episode)
	}
	return episodes
}

// loadEpisodesFile reads a YAML list of episodes from path.
func loadEpisodesFile(path string) ([]types.Episode, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read episodes file: %w", err)
	}

	var episodes []types.Episode
	if err := yaml.Unmarshal(data, &episodes); err != nil {
		return nil, fmt.Errorf("failed to parse episodes file %s: %w", path, err)
	}
	if len(episodes) == 0 {
		return nil, fmt.Errorf("episodes file %s contains no episodes", path)
	}

	for i := range episodes {
		if episodes[i].Type == "" {
			episodes[i].Type = types.EpisodeTypeText
		}
		if err := episodes[i].Validate(); err != nil {
			return nil, fmt.Errorf("episode %d in %s is invalid: %w", i, path, err)
		}
	}
	return episodes, nil
}
