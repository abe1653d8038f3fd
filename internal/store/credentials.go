package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// AdminCredential is one row of the admin_tokens table.
type AdminCredential struct {
	Email     string         `db:"email"`
	Token     sql.NullString `db:"token"`
	CompanyID sql.NullInt64  `db:"company_id"`
}

// SaveCashierToken stores the cashier token for email, replacing any previous one.
func (s *Store) SaveCashierToken(ctx context.Context, email, token string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cashier_tokens (email, token) VALUES (?, ?)
		ON CONFLICT(email) DO UPDATE SET token = excluded.token
	`, email, token)
	if err != nil {
		return fmt.Errorf("save cashier token: %w", err)
	}
	return nil
}

// CashierToken returns the only stored cashier token.
// Zero rows (or a NULL token) yield ErrNoCredentials, several rows
// ErrAmbiguousCredentials.
func (s *Store) CashierToken(ctx context.Context) (string, error) {
	var tokens []sql.NullString
	if err := s.db.SelectContext(ctx, &tokens, `SELECT token FROM cashier_tokens LIMIT 2`); err != nil {
		return "", fmt.Errorf("cashier token: %w", err)
	}
	switch {
	case len(tokens) == 0:
		return "", fmt.Errorf("cashier token: %w", ErrNoCredentials)
	case len(tokens) > 1:
		return "", fmt.Errorf("cashier token: %w", ErrAmbiguousCredentials)
	case !tokens[0].Valid || tokens[0].String == "":
		return "", fmt.Errorf("cashier token: %w", ErrNoCredentials)
	}
	return tokens[0].String, nil
}

// SaveAdminToken stores the admin token for email. A changed token forgets
// the cached company id, which belongs to the old session.
func (s *Store) SaveAdminToken(ctx context.Context, email, token string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO admin_tokens (email, token) VALUES (?, ?)
		ON CONFLICT(email) DO UPDATE SET
			company_id = CASE WHEN admin_tokens.token = excluded.token
				THEN admin_tokens.company_id ELSE NULL END,
			token = excluded.token
	`, email, token)
	if err != nil {
		return fmt.Errorf("save admin token: %w", err)
	}
	return nil
}

// AdminToken returns the only stored admin credential, with the same
// exactly-one rule as CashierToken.
func (s *Store) AdminToken(ctx context.Context) (AdminCredential, error) {
	var creds []AdminCredential
	if err := s.db.SelectContext(ctx, &creds, `
		SELECT email, token, company_id FROM admin_tokens LIMIT 2
	`); err != nil {
		return AdminCredential{}, fmt.Errorf("admin token: %w", err)
	}
	switch {
	case len(creds) == 0:
		return AdminCredential{}, fmt.Errorf("admin token: %w", ErrNoCredentials)
	case len(creds) > 1:
		return AdminCredential{}, fmt.Errorf("admin token: %w", ErrAmbiguousCredentials)
	case !creds[0].Token.Valid || creds[0].Token.String == "":
		return AdminCredential{}, fmt.Errorf("admin token: %w", ErrNoCredentials)
	}
	return creds[0], nil
}

// CompanyIDByToken returns the company id cached for an admin token.
// ok is false when the token is unknown or has no company id yet.
func (s *Store) CompanyIDByToken(ctx context.Context, token string) (id int64, ok bool, err error) {
	var companyID sql.NullInt64
	err = s.db.GetContext(ctx, &companyID, `
		SELECT company_id FROM admin_tokens WHERE token = ? LIMIT 1
	`, token)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("company id by token: %w", err)
	}
	return companyID.Int64, companyID.Valid, nil
}

// SetCompanyID caches the company id for every row holding token.
// Tokens supplied on the command line have no row; nothing is written then.
func (s *Store) SetCompanyID(ctx context.Context, token string, companyID int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE admin_tokens SET company_id = ? WHERE token = ?
	`, companyID, token)
	if err != nil {
		return fmt.Errorf("set company id: %w", err)
	}
	return nil
}
