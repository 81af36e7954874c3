package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pagecraft-dev/pagecraft/internal/appdom"
	"github.com/pagecraft-dev/pagecraft/internal/appdom/appdomtest"
	"github.com/pagecraft-dev/pagecraft/internal/compiler/codegen"
)

func TestHasher_HashContent(t *testing.T) {
	hasher := NewHasher()

	tests := []struct {
		name     string
		content  []byte
		expected string
	}{
		{
			name:     "empty content",
			content:  []byte(""),
			expected: "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		},
		{
			name:     "simple content",
			content:  []byte("hello world"),
			expected: "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := hasher.HashContent(tt.content)
			if result != tt.expected {
				t.Errorf("HashContent() = %s, expected %s", result, tt.expected)
			}
		})
	}
}

func TestHasher_HashFile(t *testing.T) {
	hasher := NewHasher()

	tmpFile := filepath.Join(t.TempDir(), "shop.json")
	if err := os.WriteFile(tmpFile, []byte("hello world"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	hash, err := hasher.HashFile(tmpFile)
	if err != nil {
		t.Fatalf("HashFile() error = %v", err)
	}
	if hash != hasher.HashString("hello world") {
		t.Errorf("HashFile() = %s, expected hash of file content", hash)
	}

	if _, err := hasher.HashFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("HashFile() expected error for missing file")
	}
}

func TestHasher_PageKey(t *testing.T) {
	hasher := NewHasher()

	b := appdomtest.New(t)
	page := b.Page("home", nil)
	docHash, err := hasher.HashDocument(b.Doc)
	if err != nil {
		t.Fatalf("HashDocument() error = %v", err)
	}

	again, err := hasher.HashDocument(b.Doc.Clone())
	if err != nil {
		t.Fatalf("HashDocument() error = %v", err)
	}
	if docHash != again {
		t.Errorf("HashDocument() not deterministic: %s != %s", docHash, again)
	}

	editor := hasher.PageKey("shop", docHash, page.ID, codegen.RenderConfig{Editor: true})
	prod := hasher.PageKey("shop", docHash, page.ID, codegen.RenderConfig{})
	if editor == prod {
		t.Error("PageKey() should differ between editor and production builds")
	}

	b.Element(page, "children", "title", "Text", appdom.BindableValues{"value": appdom.Const("Hi")})
	changed, err := hasher.HashDocument(b.Doc)
	if err != nil {
		t.Fatalf("HashDocument() error = %v", err)
	}
	if changed == docHash {
		t.Error("HashDocument() should change when the document changes")
	}
}
