// Package cache caches compiled pages. Entries are keyed by a content hash
// of the document, the page and the render configuration, so an edited
// document never hits a stale entry.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/pagecraft-dev/pagecraft/internal/appdom"
	"github.com/pagecraft-dev/pagecraft/internal/compiler/codegen"
)

// Hasher computes content hashes for cache keys
type Hasher struct{}

// NewHasher creates a new hasher
func NewHasher() *Hasher {
	return &Hasher{}
}

// HashFile computes a SHA-256 hash of the file contents
func (h *Hasher) HashFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", err
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// HashContent computes a SHA-256 hash of the given content
func (h *Hasher) HashContent(content []byte) string {
	hasher := sha256.New()
	hasher.Write(content)
	return hex.EncodeToString(hasher.Sum(nil))
}

// HashString computes a SHA-256 hash of the given string
func (h *Hasher) HashString(content string) string {
	return h.HashContent([]byte(content))
}

// HashDocument computes a SHA-256 hash of the document's canonical JSON
func (h *Hasher) HashDocument(doc *appdom.Document) (string, error) {
	data, err := doc.MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	return h.HashContent(data), nil
}

// PageKey identifies one compile of a page. docHash is the document hash
// from HashDocument.
func (h *Hasher) PageKey(appID, docHash string, pageID appdom.NodeID, config codegen.RenderConfig) string {
	return h.HashString(fmt.Sprintf("%s\x00%s\x00%s\x00editor=%t\x00pretty=%t\x00version=%s",
		appID, docHash, pageID, config.Editor, config.Pretty, config.Version))
}
