package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEpisodeValidate(t *testing.T) {
	tests := []struct {
		name    string
		episode Episode
		wantErr error
	}{
		{"valid text episode", Episode{Name: "ep-1", Content: "some text", Type: EpisodeTypeText}, nil},
		{"missing name", Episode{Content: "some text"}, ErrEmptyName},
		{"missing content", Episode{Name: "ep-1"}, ErrEmptyContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.episode.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestNewJSONEpisodeRoundTrip(t *testing.T) {
	record := map[string]string{
		"name":              "Gavin Newsom",
		"position":          "Governor",
		"state":             "California",
		"previous_role":     "Lieutenant Governor",
		"previous_location": "San Francisco",
	}

	episode, err := NewJSONEpisode("metadata-0", record, "podcast metadata")
	require.NoError(t, err)
	assert.Equal(t, EpisodeTypeJSON, episode.Type)
	assert.Equal(t, "podcast metadata", episode.Description)

	var decoded map[string]string
	require.NoError(t, episode.DecodeJSONContent(&decoded))
	assert.Equal(t, record, decoded)
}

func TestDecodeJSONContentRejectsText(t *testing.T) {
	episode := Episode{Name: "ep-1", Content: "plain prose", Type: EpisodeTypeText}

	var out map[string]string
	err := episode.DecodeJSONContent(&out)
	assert.Error(t, err)
}

func TestNodeValidate(t *testing.T) {
	node := &Node{
		UUID:      "node-1",
		Name:      "Kamala Harris",
		Type:      EntityNodeType,
		GroupID:   "default",
		CreatedAt: time.Now(),
	}
	assert.NoError(t, node.Validate())

	node.GroupID = ""
	assert.ErrorIs(t, node.Validate(), ErrEmptyGroupID)
}

func TestEdgeValidate(t *testing.T) {
	edge := &EntityEdge{
		UUID:           "edge-1",
		Fact:           "Harris was Attorney General of California",
		SourceNodeUUID: "node-1",
		TargetNodeUUID: "node-2",
	}
	assert.NoError(t, edge.Validate())

	edge.TargetNodeUUID = ""
	assert.Error(t, edge.Validate())
}

func TestSearchConfigWithDefaults(t *testing.T) {
	var nilConfig *SearchConfig
	withDefaults := nilConfig.WithDefaults()
	assert.Equal(t, 10, withDefaults.Limit)

	custom := (&SearchConfig{Limit: 5, CenterNodeUUID: "center"}).WithDefaults()
	assert.Equal(t, 5, custom.Limit)
	assert.Equal(t, "center", custom.CenterNodeUUID)

	invalid := &SearchConfig{Limit: -1}
	assert.ErrorIs(t, invalid.Validate(), ErrInvalidLimit)
}

func TestNodeSearchConfigWithDefaults(t *testing.T) {
	var nilConfig *NodeSearchConfig
	assert.Equal(t, 10, nilConfig.WithDefaults().Limit)

	custom := (&NodeSearchConfig{Limit: 5}).WithDefaults()
	assert.Equal(t, 5, custom.Limit)
}
