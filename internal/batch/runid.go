package batch

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// RunIDGenerator names driver runs. The id tags the run's log lines and its
// Summary.
type RunIDGenerator interface {
	Generate() string
}

// UUIDv7Generator issues UUIDv7 ids, which sort by run start.
type UUIDv7Generator struct{}

func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator hands out a preset list of ids in order. Asking for more
// runs than ids panics.
type FixedGenerator struct {
	ids  []string
	next atomic.Int64
}

func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

func (g *FixedGenerator) Generate() string {
	i := g.next.Add(1) - 1
	if i >= int64(len(g.ids)) {
		panic(fmt.Sprintf("batch: run %d started, only %d fixed ids", i+1, len(g.ids)))
	}
	return g.ids[i]
}
