package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/workqueue/internal/platform/logger"
	"github.com/phrazzld/workqueue/internal/store"
	"github.com/phrazzld/workqueue/internal/work"
)

const envelopeEntity = "envelope"

// EnvelopeStore implements work.Store on the work_envelopes table. The full
// record is kept as JSON; the other columns exist for ordering and for
// operators querying the table.
type EnvelopeStore struct {
	db  store.DBTX
	now func() time.Time
}

var _ work.Store = (*EnvelopeStore)(nil)

// NewEnvelopeStore creates a store on db, which may be a *sql.DB or a *sql.Tx.
func NewEnvelopeStore(db store.DBTX) *EnvelopeStore {
	return &EnvelopeStore{
		db:  db,
		now: time.Now,
	}
}

// Append inserts the record or replaces the one with the same id.
func (s *EnvelopeStore) Append(ctx context.Context, rec work.Record) error {
	log := logger.FromContext(ctx)

	data, err := json.Marshal(rec)
	if err != nil {
		return store.NewStoreError(envelopeEntity, "append", "failed to encode record", err)
	}

	query := `
		INSERT INTO work_envelopes
			(id, seq, payload_kind, payload_type, run_as_admin, restore_count, enqueued_at, updated_at, record)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			seq = excluded.seq,
			payload_kind = excluded.payload_kind,
			payload_type = excluded.payload_type,
			run_as_admin = excluded.run_as_admin,
			restore_count = excluded.restore_count,
			updated_at = excluded.updated_at,
			record = excluded.record
	`

	_, err = s.db.ExecContext(ctx, query,
		rec.ID.String(),
		rec.Seq,
		string(rec.Payload.Kind),
		rec.Payload.Type,
		rec.RunAsAdmin,
		rec.RestoreCount,
		rec.EnqueuedAt.UTC(),
		s.now().UTC(),
		string(data),
	)
	if err != nil {
		log.Error("failed to save envelope",
			"task_id", rec.ID,
			"task_type", rec.Payload.Type,
			"error", err)
		return store.NewStoreError(envelopeEntity, "append", "failed to save envelope", MapError(err))
	}

	return nil
}

// LoadAll returns every stored record ordered by seq. Rows that cannot be
// decoded are logged and skipped.
func (s *EnvelopeStore) LoadAll(ctx context.Context) ([]work.Record, error) {
	log := logger.FromContext(ctx)

	rows, err := s.db.QueryContext(ctx, `SELECT id, record FROM work_envelopes ORDER BY seq, enqueued_at`)
	if err != nil {
		log.Error("failed to query envelopes", "error", err)
		return nil, store.NewStoreError(envelopeEntity, "load", "failed to query envelopes", MapError(err))
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", "error", err)
		}
	}()

	var records []work.Record
	for rows.Next() {
		var id string
		var data []byte
		if err := rows.Scan(&id, &data); err != nil {
			return nil, store.NewStoreError(envelopeEntity, "load", "failed to scan envelope", MapError(err))
		}

		var rec work.Record
		if err := json.Unmarshal(data, &rec); err != nil {
			log.Error("skipping corrupt envelope",
				"task_id", id,
				"error", fmt.Errorf("%w: %v", store.ErrCorruptRecord, err))
			continue
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError(envelopeEntity, "load", "failed to iterate envelopes", MapError(err))
	}

	work.SortRecords(records)
	return records, nil
}

// Remove deletes the record with the given id. Unknown ids are ignored.
func (s *EnvelopeStore) Remove(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM work_envelopes WHERE id = $1`, id.String())
	if err != nil {
		logger.FromContext(ctx).Error("failed to remove envelope", "task_id", id, "error", err)
		return store.NewStoreError(envelopeEntity, "remove", "failed to delete envelope", MapError(err))
	}
	return nil
}

// Purge deletes every record of the given task type and returns their ids.
// It is meant for records of retired task types that recovery keeps
// skipping. When the store runs on a *sql.DB the purge is transactional.
func (s *EnvelopeStore) Purge(ctx context.Context, taskType string) ([]uuid.UUID, error) {
	beginner, ok := s.db.(store.TxBeginner)
	if !ok {
		return purgeEnvelopes(ctx, s.db, taskType)
	}

	var ids []uuid.UUID
	err := store.RunInTransaction(ctx, beginner, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		ids, err = purgeEnvelopes(ctx, tx, taskType)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func purgeEnvelopes(ctx context.Context, db store.DBTX, taskType string) ([]uuid.UUID, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id FROM work_envelopes WHERE payload_type = $1 ORDER BY seq`, taskType)
	if err != nil {
		return nil, store.NewStoreError(envelopeEntity, "purge", "failed to query envelopes", MapError(err))
	}

	var ids []uuid.UUID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			_ = rows.Close()
			return nil, store.NewStoreError(envelopeEntity, "purge", "failed to scan envelope id", MapError(err))
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			_ = rows.Close()
			return nil, store.NewStoreError(envelopeEntity, "purge", "invalid envelope id", store.ErrCorruptRecord)
		}
		ids = append(ids, id)
	}
	if err := rows.Close(); err != nil {
		return nil, store.NewStoreError(envelopeEntity, "purge", "failed to close rows", MapError(err))
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError(envelopeEntity, "purge", "failed to iterate envelopes", MapError(err))
	}

	if _, err := db.ExecContext(ctx, `DELETE FROM work_envelopes WHERE payload_type = $1`, taskType); err != nil {
		return nil, store.NewStoreError(envelopeEntity, "purge", "failed to delete envelopes", MapError(err))
	}

	logger.FromContext(ctx).Info("purged envelopes", "task_type", taskType, "count", len(ids))
	return ids, nil
}
