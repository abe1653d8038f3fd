package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCashierToken_ExactlyOne(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.CashierToken(ctx)
	assert.ErrorIs(t, err, ErrNoCredentials)

	require.NoError(t, s.SaveCashierToken(ctx, "a@example.com", "tok-1"))
	token, err := s.CashierToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)

	// Re-authenticating the same email replaces the token.
	require.NoError(t, s.SaveCashierToken(ctx, "a@example.com", "tok-2"))
	token, err = s.CashierToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-2", token)

	require.NoError(t, s.SaveCashierToken(ctx, "b@example.com", "tok-3"))
	_, err = s.CashierToken(ctx)
	assert.ErrorIs(t, err, ErrAmbiguousCredentials)
}

func TestCashierToken_NullToken(t *testing.T) {
	s := createTestStore(t)
	_, err := s.db.Exec(`INSERT INTO cashier_tokens (email, token) VALUES ('a@example.com', NULL)`)
	require.NoError(t, err)

	_, err = s.CashierToken(context.Background())
	assert.ErrorIs(t, err, ErrNoCredentials)
}

func TestAdminToken_CompanyIDLifecycle(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.AdminToken(ctx)
	assert.ErrorIs(t, err, ErrNoCredentials)

	require.NoError(t, s.SaveAdminToken(ctx, "admin@example.com", "adm-1"))
	cred, err := s.AdminToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "adm-1", cred.Token.String)
	assert.False(t, cred.CompanyID.Valid)

	_, ok, err := s.CompanyIDByToken(ctx, "adm-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetCompanyID(ctx, "adm-1", 42))
	id, ok, err := s.CompanyIDByToken(ctx, "adm-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(42), id)

	// Same token keeps the company, a new token drops it.
	require.NoError(t, s.SaveAdminToken(ctx, "admin@example.com", "adm-1"))
	_, ok, err = s.CompanyIDByToken(ctx, "adm-1")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.SaveAdminToken(ctx, "admin@example.com", "adm-2"))
	_, ok, err = s.CompanyIDByToken(ctx, "adm-2")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SaveAdminToken(ctx, "other@example.com", "adm-3"))
	_, err = s.AdminToken(ctx)
	assert.ErrorIs(t, err, ErrAmbiguousCredentials)
}

func TestCompanyIDByToken_UnknownToken(t *testing.T) {
	s := createTestStore(t)

	_, ok, err := s.CompanyIDByToken(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}
