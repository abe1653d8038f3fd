package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/cashier/internal/record"
)

// ListReady returns records in the ready state that are not flagged as
// failed_to_upload, ordered by phone. A limit of zero or less means no cap.
//
// Returns an empty slice (not nil) if nothing is ready.
func (s *Store) ListReady(ctx context.Context, limit int) ([]record.Record, error) {
	query := `
		SELECT phone, state, purchase_id, failed_to_upload, failed_to_clear
		FROM phones
		WHERE state = ? AND failed_to_upload = 0
		ORDER BY phone
	`
	args := []any{record.StateReady}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	records := []record.Record{}
	if err := s.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("list ready: %w", err)
	}
	return records, nil
}

// ListUploadedPurchaseIDs returns purchase ids of uploaded records.
// When includeFailed is false, records flagged failed_to_clear are skipped.
func (s *Store) ListUploadedPurchaseIDs(ctx context.Context, includeFailed bool) ([]int64, error) {
	query := `
		SELECT purchase_id FROM phones
		WHERE state = ? AND purchase_id IS NOT NULL
	`
	if !includeFailed {
		query += " AND failed_to_clear = 0"
	}
	query += " ORDER BY purchase_id"

	ids := []int64{}
	if err := s.db.SelectContext(ctx, &ids, query, record.StateUploaded); err != nil {
		return nil, fmt.Errorf("list uploaded purchase ids: %w", err)
	}
	return ids, nil
}

// Get retrieves a single record by phone.
// Returns ErrNotFound if the phone is unknown.
func (s *Store) Get(ctx context.Context, phone string) (record.Record, error) {
	var rec record.Record
	err := s.db.GetContext(ctx, &rec, `
		SELECT phone, state, purchase_id, failed_to_upload, failed_to_clear
		FROM phones
		WHERE phone = ?
	`, phone)
	if errors.Is(err, sql.ErrNoRows) {
		return record.Record{}, fmt.Errorf("get %s: %w", phone, ErrNotFound)
	}
	if err != nil {
		return record.Record{}, fmt.Errorf("get %s: %w", phone, err)
	}
	return rec, nil
}

// AllPhones returns every stored phone regardless of state.
// Used by ingestion for deduplication.
func (s *Store) AllPhones(ctx context.Context) ([]string, error) {
	phones := []string{}
	if err := s.db.SelectContext(ctx, &phones, `SELECT phone FROM phones ORDER BY phone`); err != nil {
		return nil, fmt.Errorf("all phones: %w", err)
	}
	return phones, nil
}

// Counts returns the number of records per state plus the number carrying
// each failure flag. Zero entries are omitted.
func (s *Store) Counts(ctx context.Context) (record.Counts, error) {
	var byState []struct {
		State record.State `db:"state"`
		N     int          `db:"n"`
	}
	if err := s.db.SelectContext(ctx, &byState, `
		SELECT state, COUNT(*) AS n FROM phones GROUP BY state
	`); err != nil {
		return nil, fmt.Errorf("counts: %w", err)
	}

	var flags struct {
		FailedToUpload int `db:"failed_to_upload"`
		FailedToClear  int `db:"failed_to_clear"`
	}
	if err := s.db.GetContext(ctx, &flags, `
		SELECT COALESCE(SUM(failed_to_upload), 0) AS failed_to_upload,
		       COALESCE(SUM(failed_to_clear), 0) AS failed_to_clear
		FROM phones
	`); err != nil {
		return nil, fmt.Errorf("counts: %w", err)
	}

	counts := record.Counts{}
	for _, row := range byState {
		if row.N > 0 {
			counts[string(row.State)] = row.N
		}
	}
	if flags.FailedToUpload > 0 {
		counts[record.FlagFailedToUpload] = flags.FailedToUpload
	}
	if flags.FailedToClear > 0 {
		counts[record.FlagFailedToClear] = flags.FailedToClear
	}
	return counts, nil
}
