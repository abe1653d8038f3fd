package batch

import (
	"testing"

	"go.uber.org/goleak"
)

// Every driver run must stop its workers and progress reporter.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
