// Package contentid derives and normalizes IPFS content identifiers for
// token videos. Current-generation tokens store the video's raw SHA-256
// digest on chain; the CID is reconstructed from it. Identifiers are also
// used verbatim as content-addressed filenames, so both textual encodings
// of the same bytes must normalize to one identical string.
package contentid

import (
	"encoding/hex"
	"strings"

	"github.com/ipfs/go-cid"
	"github.com/mr-tron/base58"
	mh "github.com/multiformats/go-multihash"
)

// multihash header for a 32-byte SHA-256 digest
var sha256Prefix = []byte{0x12, 0x20}

// FromVideoHash converts an on-chain bytes32 video hash (hex, with or
// without 0x prefix) to a CIDv0 string. A contract slot that was never
// written reads back as 32 zero bytes, so an empty or all-zero hash means
// "no video" and returns false.
func FromVideoHash(videoHash string) (string, bool) {
	hexStr := strings.TrimPrefix(videoHash, "0x")
	if hexStr == "" || hexStr == strings.Repeat("0", 64) {
		return "", false
	}

	digest, err := hex.DecodeString(hexStr)
	if err != nil || len(digest) != 32 {
		return "", false
	}

	return base58.Encode(append(sha256Prefix, digest...)), true
}

// Normalize maps any textual encoding of a content identifier to its
// canonical form: CIDv1 dag-pb/sha2-256 becomes the equivalent CIDv0
// (Qm...) string, everything else is re-encoded in its own canonical
// string form. Malformed input is returned unchanged rather than
// reported, since normalization sits on the cache-miss path that decides
// an upload's target filename and must never abort a batch run.
func Normalize(id string) string {
	c, err := cid.Decode(id)
	if err != nil {
		return id
	}

	if c.Version() == 1 && c.Type() == cid.DagProtobuf {
		if dec, err := mh.Decode(c.Hash()); err == nil && dec.Code == mh.SHA2_256 && dec.Length == 32 {
			return cid.NewCidV0(c.Hash()).String()
		}
	}

	return c.String()
}
