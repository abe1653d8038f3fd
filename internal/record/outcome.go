package record

import "fmt"

// OutcomeKind tags an Outcome.
type OutcomeKind int

const (
	// AlreadyExists: the remote already knows the phone; ready → cleared, no purchase id.
	AlreadyExists OutcomeKind = iota + 1
	// Registered: a purchase was created; ready → uploaded with purchase id.
	Registered
	// Broken: the remote rejected the phone as invalid; ready → broken.
	Broken
	// TransientFailure: state unchanged, sticky failure flag set.
	TransientFailure
	// Removed: the purchase is gone remotely; uploaded → cleared.
	Removed
)

func (k OutcomeKind) String() string {
	switch k {
	case AlreadyExists:
		return "already_exists"
	case Registered:
		return "registered"
	case Broken:
		return "broken"
	case TransientFailure:
		return "transient_failure"
	case Removed:
		return "removed"
	}
	return fmt.Sprintf("OutcomeKind(%d)", int(k))
}

// Outcome is the result of processing one item in a batch.
// PurchaseID is meaningful only for Registered.
type Outcome struct {
	Kind       OutcomeKind
	PurchaseID int64
	// Reason carries the error text of a failure outcome for logs and feedback.
	Reason string
}

// Constructors for each variant.

func AlreadyExistsOutcome() Outcome { return Outcome{Kind: AlreadyExists} }

func RegisteredOutcome(purchaseID int64) Outcome {
	return Outcome{Kind: Registered, PurchaseID: purchaseID}
}

func BrokenOutcome(reason string) Outcome { return Outcome{Kind: Broken, Reason: reason} }

func TransientOutcome(err error) Outcome {
	o := Outcome{Kind: TransientFailure}
	if err != nil {
		o.Reason = err.Error()
	}
	return o
}

func RemovedOutcome() Outcome { return Outcome{Kind: Removed} }

// ForUpload reports whether the outcome may be applied by the upload driver.
func (o Outcome) ForUpload() bool {
	switch o.Kind {
	case AlreadyExists, Registered, Broken, TransientFailure:
		return true
	}
	return false
}

// ForRemoval reports whether the outcome may be applied by the removal driver.
func (o Outcome) ForRemoval() bool {
	return o.Kind == Removed || o.Kind == TransientFailure
}

// Target returns the state a record ends in after the outcome, and false when
// the outcome leaves the state unchanged.
func (o Outcome) Target() (State, bool) {
	switch o.Kind {
	case AlreadyExists, Removed:
		return StateCleared, true
	case Registered:
		return StateUploaded, true
	case Broken:
		return StateBroken, true
	}
	return "", false
}
