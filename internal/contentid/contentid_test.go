package contentid

import (
	"strings"
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromVideoHash(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		ok       bool
	}{
		{
			name:     "known digest with 0x prefix",
			input:    "0x" + strings.Repeat("ab", 32),
			expected: "QmZtnFaddFtzGNT8BxdHVbQrhSFdq1pWxud5z4fA4kxfDt",
			ok:       true,
		},
		{
			name:     "known digest without prefix",
			input:    strings.Repeat("ab", 32),
			expected: "QmZtnFaddFtzGNT8BxdHVbQrhSFdq1pWxud5z4fA4kxfDt",
			ok:       true,
		},
		{
			name:  "empty string",
			input: "",
			ok:    false,
		},
		{
			name:  "bare 0x prefix",
			input: "0x",
			ok:    false,
		},
		{
			name:  "all-zero slot means no video",
			input: "0x" + strings.Repeat("0", 64),
			ok:    false,
		},
		{
			name:  "truncated digest",
			input: "0x" + strings.Repeat("ab", 16),
			ok:    false,
		},
		{
			name:  "not hex",
			input: "0x" + strings.Repeat("zz", 32),
			ok:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, ok := FromVideoHash(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestFromVideoHashProducesValidCID(t *testing.T) {
	result, ok := FromVideoHash("0x" + strings.Repeat("cd", 32))
	require.True(t, ok)

	c, err := cid.Decode(result)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), c.Version())
}

func TestNormalize(t *testing.T) {
	const v0 = "QmZtnFaddFtzGNT8BxdHVbQrhSFdq1pWxud5z4fA4kxfDt"

	// Derive the CIDv1 spelling of the same content from the v0 form, so
	// the test covers the round trip rather than a hardcoded base32 blob.
	c, err := cid.Decode(v0)
	require.NoError(t, err)
	v1 := cid.NewCidV1(cid.DagProtobuf, c.Hash()).String()
	require.NotEqual(t, v0, v1)

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "v0 passes through",
			input:    v0,
			expected: v0,
		},
		{
			name:     "v1 dag-pb sha2-256 folds to v0",
			input:    v1,
			expected: v0,
		},
		{
			name:     "malformed input returned unchanged",
			input:    "not-a-cid",
			expected: "not-a-cid",
		},
		{
			name:     "empty input returned unchanged",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	c, err := cid.Decode("QmZtnFaddFtzGNT8BxdHVbQrhSFdq1pWxud5z4fA4kxfDt")
	require.NoError(t, err)

	inputs := []string{
		"QmZtnFaddFtzGNT8BxdHVbQrhSFdq1pWxud5z4fA4kxfDt",
		cid.NewCidV1(cid.DagProtobuf, c.Hash()).String(),
		"garbage",
	}
	for _, input := range inputs {
		once := Normalize(input)
		assert.Equal(t, once, Normalize(once))
	}
}

func TestNormalizeV1RawStaysV1(t *testing.T) {
	c, err := cid.Decode("QmZtnFaddFtzGNT8BxdHVbQrhSFdq1pWxud5z4fA4kxfDt")
	require.NoError(t, err)

	raw := cid.NewCidV1(cid.Raw, c.Hash()).String()
	assert.Equal(t, raw, Normalize(raw))
}
