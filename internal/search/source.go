package search

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// MapSource serves documents from memory, keyed by repository.
type MapSource map[string][]Document

// Documents implements Source.
func (m MapSource) Documents(_ context.Context, repository string) ([]Document, error) {
	docs, ok := m[repository]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRepositoryNotFound, repository)
	}
	return append([]Document(nil), docs...), nil
}

// DirSource reads repositories from sub-directories of Root. Every regular
// file with one of Extensions is a document identified by its slash-separated
// path relative to the repository directory.
type DirSource struct {
	Root       string
	Extensions []string
}

// NewDirSource creates a source indexing text and markdown files under root.
func NewDirSource(root string) *DirSource {
	return &DirSource{Root: root, Extensions: []string{".txt", ".md"}}
}

// Documents implements Source.
func (d *DirSource) Documents(ctx context.Context, repository string) ([]Document, error) {
	if repository == "" || !filepath.IsLocal(repository) || strings.ContainsAny(repository, `/\`) {
		return nil, fmt.Errorf("invalid repository name %q", repository)
	}

	base := filepath.Join(d.Root, repository)
	if info, err := os.Stat(base); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrRepositoryNotFound, repository)
	}

	var docs []Document
	err := filepath.WalkDir(base, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if entry.IsDir() || !d.indexed(path) {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		docs = append(docs, Document{ID: filepath.ToSlash(rel), Text: string(content)})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", base, err)
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

func (d *DirSource) indexed(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, want := range d.Extensions {
		if ext == want {
			return true
		}
	}
	return false
}
