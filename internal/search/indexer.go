package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"
)

// ErrRepositoryNotFound is returned when a source has no such repository.
var ErrRepositoryNotFound = errors.New("repository not found")

// Document is a unit of indexed text.
type Document struct {
	ID   string
	Text string
}

// Source provides the documents of a repository.
type Source interface {
	Documents(ctx context.Context, repository string) ([]Document, error)
}

// Stats describes the last build of a repository index.
type Stats struct {
	Repository string        `json:"repository"`
	Documents  int           `json:"documents"`
	Terms      int           `json:"terms"`
	Generation int           `json:"generation"`
	BuiltAt    time.Time     `json:"built_at"`
	Duration   time.Duration `json:"duration"`
}

type index struct {
	postings map[string][]string
	stats    Stats
}

// Indexer builds and serves repository indexes. Builds replace the previous
// index of a repository atomically; readers never observe a partial index.
type Indexer struct {
	source Source
	logger *slog.Logger
	now    func() time.Time

	mu      sync.RWMutex
	indexes map[string]*index
}

// NewIndexer creates an indexer reading from source.
func NewIndexer(source Source, logger *slog.Logger) *Indexer {
	return &Indexer{
		source:  source,
		logger:  logger.With("component", "indexer"),
		now:     time.Now,
		indexes: make(map[string]*index),
	}
}

// Reindex rebuilds the index of repository from the source.
func (ix *Indexer) Reindex(ctx context.Context, repository string) (Stats, error) {
	start := ix.now()

	docs, err := ix.source.Documents(ctx, repository)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to read documents of %s: %w", repository, err)
	}

	postings := make(map[string][]string)
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return Stats{}, err
		}
		for _, term := range uniqueTerms(doc.Text) {
			postings[term] = append(postings[term], doc.ID)
		}
	}
	for term := range postings {
		sort.Strings(postings[term])
	}

	ix.mu.Lock()
	generation := 1
	if prev, ok := ix.indexes[repository]; ok {
		generation = prev.stats.Generation + 1
	}
	stats := Stats{
		Repository: repository,
		Documents:  len(docs),
		Terms:      len(postings),
		Generation: generation,
		BuiltAt:    ix.now().UTC(),
		Duration:   ix.now().Sub(start),
	}
	ix.indexes[repository] = &index{postings: postings, stats: stats}
	ix.mu.Unlock()

	ix.logger.Info("rebuilt index",
		"repository", repository,
		"documents", stats.Documents,
		"terms", stats.Terms,
		"generation", stats.Generation)
	return stats, nil
}

// Search returns the ids of documents in repository containing term.
func (ix *Indexer) Search(repository, term string) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	idx, ok := ix.indexes[repository]
	if !ok {
		return nil
	}
	return append([]string(nil), idx.postings[strings.ToLower(term)]...)
}

// Stats returns the stats of the last build of repository.
func (ix *Indexer) Stats(repository string) (Stats, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	idx, ok := ix.indexes[repository]
	if !ok {
		return Stats{}, false
	}
	return idx.stats, true
}

func uniqueTerms(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	seen := make(map[string]struct{}, len(fields))
	terms := fields[:0]
	for _, f := range fields {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		terms = append(terms, f)
	}
	return terms
}
