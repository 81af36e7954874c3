// Package store persists App Documents as JSON files. The editable preview
// of an app lives in <dir>/<appId>.json; releases are frozen copies in
// <dir>/<appId>@<version>.json.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/pagecraft-dev/pagecraft/internal/appdom"
)

// Preview is the version served from the editable document.
const Preview = "preview"

const documentExt = ".json"

var (
	// ErrNotFound is returned when no document exists for an app version.
	ErrNotFound = errors.New("document not found")
	// ErrInvalidName is returned for app ids or versions that are not safe file names.
	ErrInvalidName = errors.New("invalid app id or version")
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// AppVersion identifies one stored document.
type AppVersion struct {
	AppID   string
	Version string
}

// FileStore reads and writes documents under a directory.
type FileStore struct {
	dir string
}

// NewFileStore returns a store rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Dir returns the root directory.
func (s *FileStore) Dir() string {
	return s.dir
}

// Path returns the file holding appID at version.
func (s *FileStore) Path(appID, version string) (string, error) {
	if !validName(appID) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, appID)
	}
	if version == "" || version == Preview {
		return filepath.Join(s.dir, appID+documentExt), nil
	}
	if !validName(version) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, version)
	}
	return filepath.Join(s.dir, appID+"@"+version+documentExt), nil
}

// Load reads and validates the document of appID at version.
func (s *FileStore) Load(ctx context.Context, appID, version string) (*appdom.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.Path(appID, version)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s@%s", ErrNotFound, appID, versionOrPreview(version))
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	doc, err := appdom.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc, nil
}

// Save writes doc as the preview of appID.
func (s *FileStore) Save(ctx context.Context, appID string, doc *appdom.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.Path(appID, Preview)
	if err != nil {
		return err
	}
	data, err := doc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode %s: %w", appID, err)
	}
	return writeFile(path, data)
}

// Release freezes the current preview of appID as version.
func (s *FileStore) Release(ctx context.Context, appID, version string) error {
	if version == "" || version == Preview {
		return fmt.Errorf("%w: release needs a version", ErrInvalidName)
	}
	doc, err := s.Load(ctx, appID, Preview)
	if err != nil {
		return err
	}
	path, err := s.Path(appID, version)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("release %s@%s already exists", appID, version)
	}
	data, err := doc.MarshalJSON()
	if err != nil {
		return err
	}
	return writeFile(path, data)
}

// List returns every stored document, ordered by app and version.
func (s *FileStore) List() ([]AppVersion, error) {
	files, err := FindDocumentFiles(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []AppVersion
	for _, f := range files {
		if ref, ok := ParsePath(f); ok {
			out = append(out, ref)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AppID != out[j].AppID {
			return out[i].AppID < out[j].AppID
		}
		return out[i].Version < out[j].Version
	})
	return out, nil
}

// ParsePath maps a document file name back to its app and version.
func ParsePath(path string) (AppVersion, bool) {
	base := filepath.Base(path)
	if filepath.Ext(base) != documentExt {
		return AppVersion{}, false
	}
	base = strings.TrimSuffix(base, documentExt)
	appID, version, released := strings.Cut(base, "@")
	if !released {
		version = Preview
	}
	if !validName(appID) || !validName(version) {
		return AppVersion{}, false
	}
	return AppVersion{AppID: appID, Version: version}, true
}

func validName(s string) bool {
	return namePattern.MatchString(s) && !strings.Contains(s, "..")
}

func versionOrPreview(v string) string {
	if v == "" {
		return Preview
	}
	return v
}

// writeFile replaces path atomically.
func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".pagecraft-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
