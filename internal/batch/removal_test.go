package batch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cashier/internal/record"
	"github.com/roach88/cashier/internal/remote"
	"github.com/roach88/cashier/internal/store"
	"github.com/roach88/cashier/internal/testutil"
)

// uploadedStore returns a store whose phones are uploaded with the given ids.
func uploadedStore(t *testing.T, ids map[string]int64) *store.Store {
	t.Helper()
	phones := make([]string, 0, len(ids))
	for phone := range ids {
		phones = append(phones, phone)
	}
	st := openTestStore(t, phones...)
	for phone, id := range ids {
		require.NoError(t, st.ApplyUploadOutcome(context.Background(), phone, record.RegisteredOutcome(id)))
	}
	return st
}

func staticCompany(id int64) CompanyResolver {
	return func(context.Context) (int64, error) { return id, nil }
}

func TestRemoval_NotFoundCountsAsRemoved(t *testing.T) {
	st := uploadedStore(t, map[string]int64{"+111111111111": 10})
	admin := testutil.NewFakeAdmin(42)
	admin.Missing[10] = true
	fb := &testutil.RecordingFeedback{}

	d, err := OpenRemoval(context.Background(), staticCompany(42), admin, st, testOptions(1, fb))
	require.NoError(t, err)

	summary, err := d.Run(context.Background(), NewPool([]int64{10}))
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"removed": 1}, summary.Outcomes)

	rec := getRecord(t, st, "+111111111111")
	assert.Equal(t, record.StateCleared, rec.State)
	assert.Equal(t, int64Ptr(10), rec.PurchaseID)
	assert.True(t, fb.Contains("10 is already removed."))
}

// Every listed purchase is either cleared or flagged, never dropped.
func TestRemoval_EveryPurchaseAccountedFor(t *testing.T) {
	st := uploadedStore(t, map[string]int64{
		"+100000000001": 10,
		"+100000000002": 11,
		"+100000000003": 12,
	})
	admin := testutil.NewFakeAdmin(42)
	admin.Errors[11] = remote.NewRemoteError("remove purchase", 500, "expected 204, got 500 instead", nil)
	fb := &testutil.RecordingFeedback{}

	ids, err := st.ListUploadedPurchaseIDs(context.Background(), false)
	require.NoError(t, err)

	d, err := OpenRemoval(context.Background(), staticCompany(42), admin, st, testOptions(2, fb))
	require.NoError(t, err)
	summary, err := d.Run(context.Background(), NewPool(ids))
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"removed": 2, "transient_failure": 1}, summary.Outcomes)

	assert.Equal(t, record.StateCleared, getRecord(t, st, "+100000000001").State)
	failed := getRecord(t, st, "+100000000002")
	assert.Equal(t, record.StateUploaded, failed.State)
	assert.True(t, failed.FailedToClear)
	assert.Equal(t, record.StateCleared, getRecord(t, st, "+100000000003").State)

	remaining, err := st.ListUploadedPurchaseIDs(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, remaining)

	assert.True(t, fb.Contains("There was an error while removing 11"))
	assert.True(t, fb.Contains("10 is removed."))
	for _, call := range admin.Calls {
		assert.Equal(t, int64(42), call[0], "every call addresses the resolved company")
	}
}

func TestRemoval_SingleWorkerNeverOverlaps(t *testing.T) {
	st := uploadedStore(t, map[string]int64{
		"+100000000001": 10,
		"+100000000002": 11,
		"+100000000003": 12,
		"+100000000004": 13,
	})
	admin := testutil.NewFakeAdmin(42)

	d, err := OpenRemoval(context.Background(), staticCompany(42), admin, st, testOptions(1, &testutil.RecordingFeedback{}))
	require.NoError(t, err)
	_, err = d.Run(context.Background(), NewPool([]int64{10, 11, 12, 13}))
	require.NoError(t, err)

	assert.Equal(t, int32(1), admin.MaxInFlight.Load())
	assert.Len(t, admin.Calls, 4)
}

func TestOpenRemoval_ResolvesCompanyOnce(t *testing.T) {
	st := uploadedStore(t, map[string]int64{"+111111111111": 10, "+222222222222": 11})
	admin := testutil.NewFakeAdmin(42)

	resolves := 0
	resolve := func(context.Context) (int64, error) {
		resolves++
		return 42, nil
	}

	d, err := OpenRemoval(context.Background(), resolve, admin, st, testOptions(2, &testutil.RecordingFeedback{}))
	require.NoError(t, err)
	assert.Equal(t, int64(42), d.CompanyID())

	_, err = d.Run(context.Background(), NewPool([]int64{10, 11}))
	require.NoError(t, err)
	assert.Equal(t, 1, resolves)
}

func TestOpenRemoval_ResolveFailureAbortsBeforeRemoving(t *testing.T) {
	admin := testutil.NewFakeAdmin(42)
	authErr := remote.NewAuthError("resolve company", 401, "token rejected")

	_, err := OpenRemoval(context.Background(), func(context.Context) (int64, error) {
		return 0, authErr
	}, admin, nil, testOptions(1, &testutil.RecordingFeedback{}))

	require.Error(t, err)
	assert.True(t, remote.IsAuthError(err))
	assert.Empty(t, admin.Calls)
}

func TestRemoval_CancelledWhileBlocked(t *testing.T) {
	st := uploadedStore(t, map[string]int64{"+111111111111": 10})
	admin := testutil.NewFakeAdmin(42)
	admin.Block = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	d, err := OpenRemoval(ctx, staticCompany(42), admin, st, testOptions(1, &testutil.RecordingFeedback{}))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		summary, err := d.Run(ctx, NewPool([]int64{10}))
		assert.Equal(t, 1, summary.Interrupted)
		done <- err
	}()
	require.Eventually(t, func() bool { return admin.MaxInFlight.Load() == 1 }, time.Second, time.Millisecond)
	cancel()

	assert.ErrorIs(t, <-done, context.Canceled)
	rec := getRecord(t, st, "+111111111111")
	assert.Equal(t, record.StateUploaded, rec.State)
	assert.False(t, rec.FailedToClear, "an interrupted removal is not a failure")
}

func TestRemoval_StoreErrorForUnknownPurchase(t *testing.T) {
	st := openTestStore(t)
	fb := &testutil.RecordingFeedback{}

	d, err := OpenRemoval(context.Background(), staticCompany(42), testutil.NewFakeAdmin(42), st, testOptions(1, fb))
	require.NoError(t, err)
	summary, err := d.Run(context.Background(), NewPool([]int64{77}))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.StoreErrors)
	assert.True(t, fb.Contains("Could not record removed for 77"))
}

func TestOpenRemoval_RejectsZeroWorkers(t *testing.T) {
	_, err := OpenRemoval(context.Background(), staticCompany(1), testutil.NewFakeAdmin(1), nil, Options{})
	assert.Error(t, err)
}

func TestRemoval_RejectedTokenStopsRun(t *testing.T) {
	st := uploadedStore(t, map[string]int64{
		"+100000000001": 10,
		"+100000000002": 11,
	})
	admin := testutil.NewFakeAdmin(42)
	admin.Errors[11] = remote.NewAuthError("remove purchase", 401, "token rejected")
	fb := &testutil.RecordingFeedback{}

	d, err := OpenRemoval(context.Background(), staticCompany(42), admin, st, testOptions(1, fb))
	require.NoError(t, err)

	summary, err := d.Run(context.Background(), NewPool([]int64{10, 11}))
	require.Error(t, err)
	assert.True(t, remote.IsAuthError(err), "got %v", err)
	assert.Equal(t, 1, summary.Interrupted)
	assert.Len(t, admin.Calls, 1, "purchase 10 is never attempted")

	ids, err := st.ListUploadedPurchaseIDs(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 11}, ids, "no purchase may be flagged failed_to_clear")
	assert.True(t, fb.Contains("Removal stopped: "+err.Error()))
}
