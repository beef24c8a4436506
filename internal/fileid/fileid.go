// Package fileid derives stable identifiers for loaded files and their chunks.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
)

const prefix = "file:"

// chunkNamespace scopes chunk UUIDs so they never collide with other SHA-1 UUIDs.
var chunkNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("hypogen/chunk"))

// FileDocID returns a stable document ID for the given absolute path.
// Same path always yields the same ID.
func FileDocID(absolutePath string) string {
	normalized := filepath.Clean(absolutePath)
	hash := sha256.Sum256([]byte(normalized))
	return prefix + hex.EncodeToString(hash[:])
}

// ChunkID returns a deterministic UUID (version 5) for the index-th chunk of documentID.
func ChunkID(documentID string, index int) string {
	return uuid.NewSHA1(chunkNamespace, []byte(documentID+"#"+strconv.Itoa(index))).String()
}
