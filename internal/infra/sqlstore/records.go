package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/Mao1229/moemail/internal/domain"
	"github.com/Mao1229/moemail/internal/ports"
)

var _ ports.RecordStore = (*DB)(nil)

// UpsertRecord writes the permanent record for a terminal task, keyed by
// task id. Re-flushing after a duplicate trigger just rewrites the same row.
func (d *DB) UpsertRecord(ctx context.Context, rec domain.TaskRecord) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO batch_records (task_id, owner_id, domain, total_count, created_count, status, error, created_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(task_id) DO UPDATE SET
			created_count=excluded.created_count,
			status=excluded.status,
			error=excluded.error,
			completed_at=excluded.completed_at`,
		rec.TaskID, rec.OwnerID, rec.Domain, rec.TotalCount, rec.CreatedCount,
		string(rec.Status), rec.Error, rec.CreatedAt.Unix(), rec.CompletedAt.Unix(),
	)
	return err
}

// GetRecord retrieves a single record by task id, nil when absent.
func (d *DB) GetRecord(ctx context.Context, taskID string) (*domain.TaskRecord, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT task_id, owner_id, domain, total_count, created_count, status, error, created_at, completed_at
		 FROM batch_records WHERE task_id = ?`, taskID,
	)
	return scanRecord(row)
}

// ListRecords returns one page of the owner's history, newest first, plus the
// owner's total record count.
func (d *DB) ListRecords(ctx context.Context, ownerID string, limit, offset int) ([]domain.TaskRecord, int, error) {
	var total int
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM batch_records WHERE owner_id = ?`, ownerID,
	).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := d.db.QueryContext(ctx,
		`SELECT task_id, owner_id, domain, total_count, created_count, status, error, created_at, completed_at
		 FROM batch_records WHERE owner_id = ?
		 ORDER BY created_at DESC, task_id DESC
		 LIMIT ? OFFSET ?`,
		ownerID, limit, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var records []domain.TaskRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, *r)
	}
	return records, total, rows.Err()
}

func scanRecord(s scanner) (*domain.TaskRecord, error) {
	var r domain.TaskRecord
	var status string
	var createdAt, completedAt int64

	err := s.Scan(&r.TaskID, &r.OwnerID, &r.Domain, &r.TotalCount, &r.CreatedCount,
		&status, &r.Error, &createdAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, nil // Not found, no error
	}
	if err != nil {
		return nil, err
	}

	r.Status = domain.TaskStatus(status)
	r.CreatedAt = time.Unix(createdAt, 0)
	r.CompletedAt = time.Unix(completedAt, 0)
	return &r, nil
}
