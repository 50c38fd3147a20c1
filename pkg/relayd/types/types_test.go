package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamEventType_IsTerminal(t *testing.T) {
	assert.True(t, EventStopped.IsTerminal())
	assert.True(t, EventCompleted.IsTerminal())
	assert.True(t, EventFailed.IsTerminal())
	assert.False(t, EventStarted.IsTerminal())
	assert.False(t, EventProgress.IsTerminal())
}

func TestStreamEventType_IsValid(t *testing.T) {
	assert.True(t, EventStarted.IsValid())
	assert.False(t, StreamEventType("exploded").IsValid())
}

func TestStartCommand_JSONShape(t *testing.T) {
	cmd := StartCommand{
		StreamID:  "01J0000000000000000000BABA",
		RTMPURL:   "rtmp://ingest.example.com/live",
		StreamKey: "k",
		Playlist:  []PlaylistEntry{{Path: "a.mp4"}},
		Loop:      true,
	}

	data, err := json.Marshal(cmd)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "stream_id")
	assert.Contains(t, raw, "rtmp_url")
	assert.Contains(t, raw, "playlist")
	assert.Equal(t, true, raw["loop"])
}
