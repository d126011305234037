package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBotConfig(t *testing.T) {
	text := `This page configures the bot.

{{Blue Railroad Source
|name=Blue Railroad V2
|chain_data_key=blueRailroadV2s
|network_id=10
|contract=0xdef0000000000000000000000000000000000001
}}

{{Blue Railroad Leaderboard
|page=Squats Leaderboard
|title=Squats
|filter_song_id=5
|sort=newest
}}
`

	cfg, ok := ParseBotConfig(text)
	require.True(t, ok)

	require.Len(t, cfg.Sources, 1)
	assert.Equal(t, "Blue Railroad V2", cfg.Sources[0].Name)
	assert.Equal(t, "blueRailroadV2s", cfg.Sources[0].ChainDataKey)
	assert.Equal(t, "10", cfg.Sources[0].NetworkID)
	assert.Equal(t, "0xdef0000000000000000000000000000000000001", cfg.Sources[0].Contract)

	require.Len(t, cfg.Leaderboards, 1)
	assert.Equal(t, "Squats Leaderboard", cfg.Leaderboards[0].Page)
	assert.Equal(t, "5", cfg.Leaderboards[0].FilterSongID)
	assert.Equal(t, "newest", cfg.Leaderboards[0].Sort)
}

func TestParseBotConfigIgnoresIncompleteTemplates(t *testing.T) {
	text := `{{Blue Railroad Source
|name=No Key
}}
{{Blue Railroad Leaderboard
|title=No Page
}}`

	cfg, ok := ParseBotConfig(text)
	assert.False(t, ok)
	assert.Empty(t, cfg.Sources)
	assert.Empty(t, cfg.Leaderboards)
}

func TestParseBotConfigEmptyPage(t *testing.T) {
	_, ok := ParseBotConfig("")
	assert.False(t, ok)
}

func TestDefaultBotConfig(t *testing.T) {
	cfg := DefaultBotConfig()
	require.Len(t, cfg.Sources, 2)
	assert.Equal(t, "blueRailroads", cfg.Sources[0].ChainDataKey)
	assert.Equal(t, "blueRailroadV2s", cfg.Sources[1].ChainDataKey)
	require.Len(t, cfg.Leaderboards, 1)
	assert.Equal(t, "Blue Railroad Leaderboard", cfg.Leaderboards[0].Page)
}
