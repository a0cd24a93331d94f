package episodic

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/episodic/pkg/types"
)

func TestSampleEpisodes(t *testing.T) {
	episodes := sampleEpisodes()
	require.Len(t, episodes, 4)

	for i, episode := range episodes {
		assert.NoError(t, episode.Validate(), "episode %d", i)
		assert.Contains(t, episode.Name, "Freakonomics Radio")
	}

	assert.Equal(t, types.EpisodeTypeText, episodes[0].Type)
	assert.Equal(t, types.EpisodeTypeJSON, episodes[2].Type)

	var record map[string]string
	require.NoError(t, episodes[2].DecodeJSONContent(&record))
	assert.Equal(t, "Gavin Newsom", record["name"])
	assert.Equal(t, "Governor", record["position"])
}

func TestLoadEpisodesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "episodes.yaml")
	content := `
- name: "Episode A"
  content: "Some transcript text"
  description: "podcast transcript"
- name: "Episode B"
  content: '{"key": "value"}'
  type: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	episodes, err := loadEpisodesFile(path)
	require.NoError(t, err)
	require.Len(t, episodes, 2)

	// Missing type defaults to text.
	assert.Equal(t, types.EpisodeTypeText, episodes[0].Type)
	assert.Equal(t, types.EpisodeTypeJSON, episodes[1].Type)
}

func TestLoadEpisodesFileMissing(t *testing.T) {
	_, err := loadEpisodesFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadEpisodesFileEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, []byte("[]"), 0o644))

	_, err := loadEpisodesFile(path)
	assert.Error(t, err)
}

func TestLoadEpisodesFileInvalidEpisode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- name: \"\"\n  content: \"x\"\n"), 0o644))

	_, err := loadEpisodesFile(path)
	assert.Error(t, err)
}
