package store

import (
	"io/fs"
	"path/filepath"
)

// FindDocumentFiles recursively finds all .json documents in the specified directory
func FindDocumentFiles(dir string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		// Skip directories
		if d.IsDir() {
			return nil
		}

		if filepath.Ext(path) == documentExt {
			files = append(files, path)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return files, nil
}
