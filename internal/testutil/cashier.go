package testutil

import (
	"context"
	"sync"

	"github.com/roach88/cashier/internal/remote"
)

// FakeCashier is a programmable cashier API.
//
// Phones listed in Existing report as participants, phones in Invalid are
// rejected as invalid numbers, and CheckErrors/RegisterErrors inject failures.
// Registered purchase ids come from PurchaseIDs when set, otherwise from a
// counter starting at NextID.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type FakeCashier struct {
	mu sync.Mutex

	Existing       map[string]bool
	Invalid        map[string]bool
	CheckErrors    map[string]error
	RegisterErrors map[string]error
	PurchaseIDs    map[string]int64
	NextID         int64

	// Registered records every successful registration: phone → purchase id.
	Registered map[string]int64
	// Checks counts CheckExists calls per phone.
	Checks map[string]int
}

// NewFakeCashier creates an empty fake whose generated ids start at 1.
func NewFakeCashier() *FakeCashier {
	return &FakeCashier{
		Existing:       map[string]bool{},
		Invalid:        map[string]bool{},
		CheckErrors:    map[string]error{},
		RegisterErrors: map[string]error{},
		PurchaseIDs:    map[string]int64{},
		NextID:         1,
		Registered:     map[string]int64{},
		Checks:         map[string]int{},
	}
}

// CheckExists implements batch.UploadClient.
func (f *FakeCashier) CheckExists(ctx context.Context, phone string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, remote.NewRemoteError("check exists", 0, "", err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Checks[phone]++
	if err, ok := f.CheckErrors[phone]; ok {
		return false, err
	}
	if f.Invalid[phone] {
		return false, remote.NewInvalidPhoneError("check exists", "invalid phone number")
	}
	return f.Existing[phone], nil
}

// RegisterPurchase implements batch.UploadClient. A registered phone
// becomes Existing, as it does on the real service.
func (f *FakeCashier) RegisterPurchase(ctx context.Context, phone, amount string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, remote.NewRemoteError("register purchase", 0, "", err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if err, ok := f.RegisterErrors[phone]; ok {
		return 0, err
	}
	id, ok := f.PurchaseIDs[phone]
	if !ok {
		id = f.NextID
		f.NextID++
	}
	f.Registered[phone] = id
	f.Existing[phone] = true
	return id, nil
}
