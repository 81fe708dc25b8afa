package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/workqueue/internal/security"
	"github.com/phrazzld/workqueue/internal/store"
	"github.com/phrazzld/workqueue/internal/work"
	"gopkg.in/yaml.v3"
)

const (
	fileExt       = ".yaml"
	tmpPattern    = ".cwq-tmp-*" + fileExt
	quarantineDir = "quarantine"
	entity        = "envelope"
)

// fileRecord is the on-disk layout of a work.Record. The payload data is
// kept as a JSON string so it round-trips byte for byte.
type fileRecord struct {
	ID           string           `yaml:"id"`
	Seq          int64            `yaml:"seq"`
	Locks        []work.Lock      `yaml:"locks,omitempty"`
	RunAsAdmin   bool             `yaml:"run_as_admin"`
	Submitter    security.Subject `yaml:"submitter"`
	Payload      filePayload      `yaml:"payload"`
	EnqueuedAt   time.Time        `yaml:"enqueued_at"`
	RestoreCount int              `yaml:"restore_count"`
}

type filePayload struct {
	Kind string `yaml:"kind"`
	Type string `yaml:"type"`
	Data string `yaml:"data,omitempty"`
}

func toFileRecord(rec work.Record) fileRecord {
	return fileRecord{
		ID:         rec.ID.String(),
		Seq:        rec.Seq,
		Locks:      rec.Locks,
		RunAsAdmin: rec.RunAsAdmin,
		Submitter:  rec.Submitter,
		Payload: filePayload{
			Kind: string(rec.Payload.Kind),
			Type: rec.Payload.Type,
			Data: string(rec.Payload.Data),
		},
		EnqueuedAt:   rec.EnqueuedAt,
		RestoreCount: rec.RestoreCount,
	}
}

func (f fileRecord) toRecord() (work.Record, error) {
	id, err := uuid.Parse(f.ID)
	if err != nil {
		return work.Record{}, fmt.Errorf("%w: invalid id %q", store.ErrCorruptRecord, f.ID)
	}
	var data json.RawMessage
	if f.Payload.Data != "" {
		if !json.Valid([]byte(f.Payload.Data)) {
			return work.Record{}, fmt.Errorf("%w: payload data is not JSON", store.ErrCorruptRecord)
		}
		data = json.RawMessage(f.Payload.Data)
	}
	return work.Record{
		ID:         id,
		Seq:        f.Seq,
		Locks:      f.Locks,
		RunAsAdmin: f.RunAsAdmin,
		Submitter:  f.Submitter,
		Payload: work.Payload{
			Kind: work.PayloadKind(f.Payload.Kind),
			Type: f.Payload.Type,
			Data: data,
		},
		EnqueuedAt:   f.EnqueuedAt,
		RestoreCount: f.RestoreCount,
	}, nil
}

// Store implements work.Store on a directory of YAML files.
type Store struct {
	dir    string
	logger *slog.Logger
	mu     sync.Mutex
}

var _ work.Store = (*Store)(nil)

// New opens the store at dir, creating the directory if needed.
func New(dir string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return &Store{
		dir:    dir,
		logger: logger.With("component", "file_store", "dir", dir),
	}, nil
}

func (s *Store) path(id uuid.UUID) string {
	return filepath.Join(s.dir, id.String()+fileExt)
}

// Append writes the record, replacing any file with the same id.
func (s *Store) Append(_ context.Context, rec work.Record) error {
	content, err := yaml.Marshal(toFileRecord(rec))
	if err != nil {
		return store.NewStoreError(entity, "append", "failed to encode record", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := atomicWrite(s.path(rec.ID), content); err != nil {
		s.logger.Error("failed to write envelope", "task_id", rec.ID, "error", err)
		return store.NewStoreError(entity, "append", "failed to write envelope", err)
	}
	return nil
}

// LoadAll reads every envelope file, ordered by seq. Unreadable files are
// quarantined and skipped.
func (s *Store) LoadAll(_ context.Context) ([]work.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, store.NewStoreError(entity, "load", "failed to list envelopes", err)
	}

	var records []work.Record
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != fileExt {
			continue
		}

		path := filepath.Join(s.dir, name)
		rec, err := readRecord(path)
		if err != nil {
			s.logger.Error("skipping unreadable envelope", "file", name, "error", err)
			if qErr := s.quarantine(path); qErr != nil {
				s.logger.Error("failed to quarantine envelope", "file", name, "error", qErr)
			}
			continue
		}
		records = append(records, rec)
	}

	work.SortRecords(records)
	return records, nil
}

// Remove deletes the envelope file. Unknown ids are ignored.
func (s *Store) Remove(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return store.NewStoreError(entity, "remove", "failed to delete envelope", err)
	}
	return nil
}

// Purge deletes every envelope of the given task type and returns their ids.
func (s *Store) Purge(ctx context.Context, taskType string) ([]uuid.UUID, error) {
	records, err := s.LoadAll(ctx)
	if err != nil {
		return nil, err
	}

	var ids []uuid.UUID
	for _, rec := range records {
		if rec.Payload.Type != taskType {
			continue
		}
		if err := s.Remove(ctx, rec.ID); err != nil {
			return ids, err
		}
		ids = append(ids, rec.ID)
	}

	s.logger.Info("purged envelopes", "task_type", taskType, "count", len(ids))
	return ids, nil
}

func readRecord(path string) (work.Record, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return work.Record{}, err
	}
	var f fileRecord
	if err := yaml.Unmarshal(content, &f); err != nil {
		return work.Record{}, fmt.Errorf("%w: %v", store.ErrCorruptRecord, err)
	}
	return f.toRecord()
}

func (s *Store) quarantine(path string) error {
	dir := filepath.Join(s.dir, quarantineDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create quarantine dir: %w", err)
	}
	name := fmt.Sprintf("%s.%s.corrupt", filepath.Base(path), time.Now().Format("20060102T150405"))
	if err := os.Rename(path, filepath.Join(dir, name)); err != nil {
		return fmt.Errorf("move to quarantine: %w", err)
	}
	s.logger.Warn("quarantined envelope", "file", filepath.Base(path), "quarantined_as", name)
	return nil
}

// atomicWrite replaces path with content through a synced temp file in the
// same directory.
func atomicWrite(path string, content []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), tmpPattern)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("atomic rename: %w", err)
	}
	return nil
}
