package store

import (
	"context"
	"fmt"
	"time"
)

// UploadRecord is one settled upload attempt.
type UploadRecord struct {
	ID           int64
	RunID        string
	ItemID       string
	FileName     string
	Title        string
	Batch        int
	Status       string
	ErrorMessage string
	Duration     time.Duration
	CreatedAt    time.Time
}

// RecordUpload appends an upload outcome to the history table.
func (s *Store) RecordUpload(ctx context.Context, rec UploadRecord) error {
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	err := s.exec(ctx,
		`INSERT INTO uploads (run_id, item_id, file_name, title, batch, status, error_message, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.ItemID, rec.FileName, rec.Title, rec.Batch, rec.Status, rec.ErrorMessage,
		rec.Duration.Milliseconds(), created.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record upload %s: %w", rec.ItemID, err)
	}
	return nil
}

// RecentUploads returns up to limit records, newest first.
func (s *Store) RecentUploads(ctx context.Context, limit int) ([]UploadRecord, error) {
	ctx = ensureContext(ctx)
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, item_id, file_name, title, batch, status, error_message, duration_ms, created_at
		 FROM uploads ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query uploads: %w", err)
	}
	defer rows.Close()

	var records []UploadRecord
	for rows.Next() {
		var (
			rec        UploadRecord
			durationMS int64
			createdRaw string
		)
		if err := rows.Scan(&rec.ID, &rec.RunID, &rec.ItemID, &rec.FileName, &rec.Title, &rec.Batch,
			&rec.Status, &rec.ErrorMessage, &durationMS, &createdRaw); err != nil {
			return nil, fmt.Errorf("scan upload: %w", err)
		}
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		if ts, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
			rec.CreatedAt = ts
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate uploads: %w", err)
	}
	return records, nil
}

// ClearUploads removes all history records and reports how many were deleted.
func (s *Store) ClearUploads(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)
	var removed int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx, "DELETE FROM uploads")
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("clear uploads: %w", err)
	}
	return removed, nil
}
