package snapshot

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryptograss/railbot/internal/domain"
	"github.com/cryptograss/railbot/internal/logger"
)

func TestMain(m *testing.M) {
	// Initialize logger for tests
	err := logger.Initialize(logger.Config{
		Debug: false,
	})
	if err != nil {
		panic(err)
	}

	code := m.Run()
	os.Exit(code)
}

const sampleSnapshot = `{
	"ensNames": {
		"justinholmes.eth": "0xaaa0000000000000000000000000000000000001"
	},
	"blueRailroads": {
		"3": {
			"owner": "0xaaa0000000000000000000000000000000000001",
			"songId": "5",
			"date": [20230615],
			"uri": "ipfs://QmLegacyThree"
		}
	},
	"blueRailroadV2s": {
		"3": {
			"owner": "0xaaa0000000000000000000000000000000000001",
			"ownerDisplay": "justinholmes.eth",
			"songId": "5",
			"blockheight": [24000000],
			"videoHash": "0xabababababababababababababababababababababababababababababababab"
		},
		"7": {
			"owner": "0xbbb0000000000000000000000000000000000002",
			"songId": "10",
			"blockheight": 24000500,
			"videoHash": "0xcdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcdcd"
		}
	}
}`

var (
	legacySource  = domain.Source{Name: "v1", ChainDataKey: "blueRailroads"}
	currentSource = domain.Source{Name: "v2", ChainDataKey: "blueRailroadV2s"}
)

func TestParse(t *testing.T) {
	snap, err := Parse([]byte(sampleSnapshot))
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"justinholmes.eth": "0xaaa0000000000000000000000000000000000001",
	}, snap.ENSNames())
}

func TestParseRejectsMalformedDocument(t *testing.T) {
	_, err := Parse([]byte("not json"))
	assert.ErrorIs(t, err, domain.ErrSnapshotMalformed)
}

func TestParseWithoutENSTable(t *testing.T) {
	snap, err := Parse([]byte(`{"blueRailroads": {}}`))
	require.NoError(t, err)
	assert.Nil(t, snap.ENSNames())
}

func TestTokensFromSource(t *testing.T) {
	snap, err := Parse([]byte(sampleSnapshot))
	require.NoError(t, err)

	tokens, err := snap.TokensFromSource(currentSource)
	require.NoError(t, err)
	require.Len(t, tokens, 2)

	byID := make(map[string]domain.Token)
	for _, token := range tokens {
		byID[token.TokenID] = token
	}

	three := byID["3"]
	assert.Equal(t, "blueRailroadV2s", three.SourceKey)
	assert.Equal(t, "justinholmes.eth", three.OwnerDisplay)
	assert.Equal(t, int64(24000000), three.BlockHeight)
	assert.True(t, three.IsCurrentVersion())

	// ownerDisplay falls back to the owner address when absent
	seven := byID["7"]
	assert.Equal(t, "0xbbb0000000000000000000000000000000000002", seven.OwnerDisplay)
	assert.Equal(t, int64(24000500), seven.BlockHeight)
}

func TestTokensFromSourceUnwrapsArrayScalars(t *testing.T) {
	snap, err := Parse([]byte(sampleSnapshot))
	require.NoError(t, err)

	tokens, err := snap.TokensFromSource(legacySource)
	require.NoError(t, err)
	require.Len(t, tokens, 1)

	assert.Equal(t, int64(20230615), tokens[0].Date)
	assert.Equal(t, "ipfs://QmLegacyThree", tokens[0].URI)
	assert.False(t, tokens[0].IsCurrentVersion())
}

func TestTokensFromSourceMissingKey(t *testing.T) {
	snap, err := Parse([]byte(sampleSnapshot))
	require.NoError(t, err)

	tokens, err := snap.TokensFromSource(domain.Source{ChainDataKey: "noSuchKey"})
	require.NoError(t, err)
	assert.Nil(t, tokens)
}

func TestAggregateCurrentWinsOverLegacy(t *testing.T) {
	snap, err := Parse([]byte(sampleSnapshot))
	require.NoError(t, err)

	tests := []struct {
		name    string
		sources []domain.Source
	}{
		{
			name:    "legacy listed first",
			sources: []domain.Source{legacySource, currentSource},
		},
		{
			name:    "current listed first",
			sources: []domain.Source{currentSource, legacySource},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			all, err := snap.Aggregate(tt.sources)
			require.NoError(t, err)
			require.Len(t, all, 2)

			assert.True(t, all["3"].IsCurrentVersion())
			assert.Equal(t, "blueRailroadV2s", all["3"].SourceKey)
			assert.True(t, all["7"].IsCurrentVersion())
		})
	}
}

func TestAggregateSameVersionKeepsFirstSource(t *testing.T) {
	doc := `{
		"a": {"1": {"owner": "0xfirst", "blockheight": 100, "videoHash": "0x01"}},
		"b": {"1": {"owner": "0xsecond", "blockheight": 200, "videoHash": "0x02"}}
	}`
	snap, err := Parse([]byte(doc))
	require.NoError(t, err)

	all, err := snap.Aggregate([]domain.Source{
		{ChainDataKey: "a"},
		{ChainDataKey: "b"},
	})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "0xfirst", all["1"].Owner)
	assert.Equal(t, "a", all["1"].SourceKey)
}
