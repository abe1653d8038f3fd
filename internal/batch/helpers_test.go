package batch

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/cashier/internal/record"
	"github.com/roach88/cashier/internal/store"
	"github.com/roach88/cashier/internal/testutil"
)

func openTestStore(t *testing.T, phones ...string) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "phones.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	if len(phones) > 0 {
		_, err := s.InsertReady(context.Background(), phones)
		require.NoError(t, err)
	}
	return s
}

func readyPhones(t *testing.T, s *store.Store) []string {
	t.Helper()
	recs, err := s.ListReady(context.Background(), 0)
	require.NoError(t, err)
	phones := make([]string, len(recs))
	for i, r := range recs {
		phones[i] = r.Phone
	}
	return phones
}

func getRecord(t *testing.T, s *store.Store, phone string) record.Record {
	t.Helper()
	rec, err := s.Get(context.Background(), phone)
	require.NoError(t, err)
	return rec
}

func testOptions(workers int, fb *testutil.RecordingFeedback) Options {
	return Options{
		Workers:          workers,
		ProgressInterval: 5 * time.Millisecond,
		Feedback:         fb,
		RunIDs:           NewFixedGenerator("run-1", "run-2"),
	}
}

func int64Ptr(v int64) *int64 { return &v }
