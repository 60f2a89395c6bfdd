package engine

import (
	"encoding/base32"
	"path/filepath"
	"strings"

	digest "github.com/opencontainers/go-digest"
	"lukechampine.com/blake3"
)

// base32hexLower is the truncated-128-bit content-addressing alphabet
// from §3.5: base32hex, lowercased, no padding.
var base32hexLower = base32.NewEncoding("0123456789abcdefghijklmnopqrstuv").WithPadding(base32.NoPadding)

// BlakeSum returns the full blake3-256 digest of data.
func BlakeSum(data []byte) []byte {
	sum := blake3.Sum256(data)
	return sum[:]
}

// ContentDigestName builds the `<digest>.<ext>` stored filename for a
// content-addressed archive entry: the first 16 bytes (128 bits) of
// blake3(data), base32hex-lowercase encoded, with the original extension
// preserved so downstream tools can still guess a file kind.
func ContentDigestName(data []byte, logicalPath string) string {
	sum := BlakeSum(data)
	encoded := base32hexLower.EncodeToString(sum[:16])
	ext := filepath.Ext(logicalPath)
	return encoded + ext
}

// UIPathDigestName re-hashes a UI game_path per §4.4: base32hex(blake3(game_path)),
// so the stored name is stable across reinstalls regardless of source bytes.
func UIPathDigestName(gamePath, ext string) string {
	sum := BlakeSum([]byte(gamePath))
	return base32hexLower.EncodeToString(sum[:16]) + ext
}

// CompositeOutputDigestName picks the content-addressed name for a
// composited file per §3.6: ordinary outputs hash their own bytes; UI
// textures hash game_path++collection_id so the loader's cache stays
// pointed at a stable name across recomposites.
func CompositeOutputDigestName(gamePath, collectionID string, data []byte, isUI bool) string {
	ext := filepath.Ext(gamePath)
	if isUI {
		sum := BlakeSum([]byte(gamePath + collectionID))
		return base32hexLower.EncodeToString(sum[:16]) + ext
	}
	sum := BlakeSum(data)
	return base32hexLower.EncodeToString(sum[:16]) + ext
}

// IsUIPath reports whether a game_path is under the ui/ tree, per the
// installer and cleanup rules that single out UI textures for stable
// naming.
func IsUIPath(gamePath string) bool {
	return strings.HasPrefix(gamePath, "ui/")
}

// DriftDigest wraps a raw blake3 sum as an alg:hex digest string using
// go-digest, for the optional `hashes` drift-detection table in §3.5.
func DriftDigest(data []byte) digest.Digest {
	sum := BlakeSum(data)
	return digest.NewDigestFromEncoded(digest.Algorithm("blake3"), encodeHex(sum))
}

func encodeHex(b []byte) string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = hexDigits[v>>4]
		out[i*2+1] = hexDigits[v&0xf]
	}
	return string(out)
}
