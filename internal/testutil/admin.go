package testutil

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/roach88/cashier/internal/remote"
)

// FakeAdmin is a programmable admin API.
//
// Purchases in Missing answer NotFound, Errors inject failures, everything
// else is Removed. MaxInFlight records the highest number of concurrent
// RemovePurchase calls observed.
type FakeAdmin struct {
	mu sync.Mutex

	CompanyID int64
	Missing   map[int64]bool
	Errors    map[int64]error

	// Calls records every (company, purchase) pair in call order.
	Calls [][2]int64

	// Block, when non-nil, is received from before each call returns.
	Block chan struct{}

	inFlight    atomic.Int32
	MaxInFlight atomic.Int32
}

// NewFakeAdmin creates a fake acting for companyID.
func NewFakeAdmin(companyID int64) *FakeAdmin {
	return &FakeAdmin{
		CompanyID: companyID,
		Missing:   map[int64]bool{},
		Errors:    map[int64]error{},
	}
}

// ResolveCompanyID returns the configured company id.
func (f *FakeAdmin) ResolveCompanyID(context.Context) (int64, error) {
	return f.CompanyID, nil
}

// RemovePurchase implements batch.RemovalClient.
func (f *FakeAdmin) RemovePurchase(ctx context.Context, companyID, purchaseID int64) (remote.RemovalStatus, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		peak := f.MaxInFlight.Load()
		if n <= peak || f.MaxInFlight.CompareAndSwap(peak, n) {
			break
		}
	}

	if f.Block != nil {
		select {
		case <-f.Block:
		case <-ctx.Done():
			return 0, remote.NewRemoteError("remove purchase", 0, "", ctx.Err())
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.Calls = append(f.Calls, [2]int64{companyID, purchaseID})
	if err, ok := f.Errors[purchaseID]; ok {
		return 0, err
	}
	if f.Missing[purchaseID] {
		return remote.NotFound, nil
	}
	return remote.Removed, nil
}
