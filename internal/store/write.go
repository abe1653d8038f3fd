package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/cashier/internal/record"
)

// InsertReady inserts phones in the ready state inside one transaction.
// Phones already present are silently skipped (ON CONFLICT DO NOTHING).
// Returns the number of rows actually inserted.
func (s *Store) InsertReady(ctx context.Context, phones []string) (int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("insert ready: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO phones (phone, state) VALUES (?, ?)
		ON CONFLICT(phone) DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("insert ready: prepare: %w", err)
	}
	defer stmt.Close()

	var inserted int64
	for _, phone := range phones {
		res, err := stmt.ExecContext(ctx, phone, record.StateReady)
		if err != nil {
			return 0, fmt.Errorf("insert ready: %s: %w", phone, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("insert ready: rows affected: %w", err)
		}
		inserted += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("insert ready: commit: %w", err)
	}
	return inserted, nil
}

// ApplyUploadOutcome records the result of uploading one phone.
//
//   - AlreadyExists: ready → cleared, purchase_id NULL
//   - Registered: ready → uploaded, purchase_id set
//   - Broken: ready → broken
//   - TransientFailure: failed_to_upload = 1, state unchanged
//
// Each outcome is a single UPDATE guarded by state = 'ready'. Returns
// ErrIllegalTransition if the record has already left the ready state and
// ErrNotFound if the phone is unknown.
func (s *Store) ApplyUploadOutcome(ctx context.Context, phone string, outcome record.Outcome) error {
	if !outcome.ForUpload() {
		return fmt.Errorf("apply upload outcome %s: %w", outcome.Kind, ErrIllegalTransition)
	}

	var (
		query string
		args  []any
	)
	switch outcome.Kind {
	case record.Registered:
		query = `UPDATE phones SET state = ?, purchase_id = ?, failed_to_upload = 0
			WHERE phone = ? AND state = ?`
		args = []any{record.StateUploaded, outcome.PurchaseID, phone, record.StateReady}
	case record.AlreadyExists, record.Broken:
		target, _ := outcome.Target()
		query = `UPDATE phones SET state = ?, purchase_id = NULL, failed_to_upload = 0
			WHERE phone = ? AND state = ?`
		args = []any{target, phone, record.StateReady}
	case record.TransientFailure:
		query = `UPDATE phones SET failed_to_upload = 1
			WHERE phone = ? AND state = ?`
		args = []any{phone, record.StateReady}
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("apply upload outcome %s to %s: %w", outcome.Kind, phone, err)
	}
	return s.checkApplied(ctx, res, "phone = ?", phone, outcome)
}

// ApplyRemovalOutcome records the result of removing one purchase.
//
//   - Removed: uploaded → cleared (purchase_id kept for the audit trail)
//   - TransientFailure: failed_to_clear = 1, state unchanged
//
// Guarded by state = 'uploaded' like ApplyUploadOutcome.
func (s *Store) ApplyRemovalOutcome(ctx context.Context, purchaseID int64, outcome record.Outcome) error {
	if !outcome.ForRemoval() {
		return fmt.Errorf("apply removal outcome %s: %w", outcome.Kind, ErrIllegalTransition)
	}

	var (
		query string
		args  []any
	)
	switch outcome.Kind {
	case record.Removed:
		query = `UPDATE phones SET state = ?, failed_to_clear = 0
			WHERE purchase_id = ? AND state = ?`
		args = []any{record.StateCleared, purchaseID, record.StateUploaded}
	case record.TransientFailure:
		query = `UPDATE phones SET failed_to_clear = 1
			WHERE purchase_id = ? AND state = ?`
		args = []any{purchaseID, record.StateUploaded}
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("apply removal outcome %s to %d: %w", outcome.Kind, purchaseID, err)
	}
	return s.checkApplied(ctx, res, "purchase_id = ?", purchaseID, outcome)
}

// checkApplied turns a guarded UPDATE that touched nothing into ErrNotFound or
// ErrIllegalTransition.
func (s *Store) checkApplied(ctx context.Context, res sql.Result, where string, key any, outcome record.Outcome) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("apply %s: rows affected: %w", outcome.Kind, err)
	}
	if n > 0 {
		return nil
	}

	var current record.State
	err = s.db.GetContext(ctx, &current, "SELECT state FROM phones WHERE "+where, key)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("apply %s to %v: %w", outcome.Kind, key, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("apply %s to %v: %w", outcome.Kind, key, err)
	}
	if current.Terminal() {
		return fmt.Errorf("apply %s to %v: %s is terminal: %w", outcome.Kind, key, current, ErrIllegalTransition)
	}
	if target, ok := outcome.Target(); ok && !record.CanTransition(current, target) {
		return fmt.Errorf("apply %s to %v: %s -> %s: %w", outcome.Kind, key, current, target, ErrIllegalTransition)
	}
	return fmt.Errorf("apply %s to %v in state %s: %w", outcome.Kind, key, current, ErrIllegalTransition)
}

// ResetFailed clears the sticky failure flags so the affected records are
// picked up by the next batch. Returns the number of records changed.
func (s *Store) ResetFailed(ctx context.Context, upload, clear bool) (int64, error) {
	var total int64
	if upload {
		res, err := s.db.ExecContext(ctx, `
			UPDATE phones SET failed_to_upload = 0 WHERE failed_to_upload = 1
		`)
		if err != nil {
			return 0, fmt.Errorf("reset failed uploads: %w", err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	if clear {
		res, err := s.db.ExecContext(ctx, `
			UPDATE phones SET failed_to_clear = 0 WHERE failed_to_clear = 1
		`)
		if err != nil {
			return 0, fmt.Errorf("reset failed clears: %w", err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}
