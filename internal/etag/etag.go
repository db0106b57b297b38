// Package etag builds HTTP entity tags for stored thumbnails.
package etag

import (
	"crypto/sha1"
	"encoding/hex"
	"strconv"
)

// Generate returns a quoted "<len>-<sha1>" tag for buf, prefixed with W/ when weak.
func Generate(buf []byte, weak bool) string {
	sum := sha1.Sum(buf)
	tag := `"` + strconv.Itoa(len(buf)) + "-" + hex.EncodeToString(sum[:]) + `"`
	if weak {
		return "W/" + tag
	}
	return tag
}
