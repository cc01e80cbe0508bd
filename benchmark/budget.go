package benchmark

import (
	"sync/atomic"

	"github.com/devkarn/lsmkv/kv"
)

// ByteBudget enforces an upper bound on bytes a workload may generate,
// adapted from the teacher's common/testutil.ResourceLimiter — same
// atomic compare-and-release accounting, retargeted from disk-space
// admission control to capping synthetic benchmark data volume so a
// misconfigured run (e.g. NumKeys too large) fails fast instead of
// filling the test machine's disk.
type ByteBudget struct {
	max  int64
	used atomic.Int64
}

// NewByteBudget returns a budget that allows up to max bytes total.
func NewByteBudget(max int64) *ByteBudget {
	return &ByteBudget{max: max}
}

// Reserve admits n more bytes against the budget, or returns an
// IoError if doing so would exceed it.
func (b *ByteBudget) Reserve(n int64) error {
	newUsed := b.used.Add(n)
	if newUsed > b.max {
		b.used.Add(-n)
		return kv.NewIoError("benchmark byte budget", errBudgetExceeded)
	}
	return nil
}

// Release gives back n previously reserved bytes.
func (b *ByteBudget) Release(n int64) {
	b.used.Add(-n)
}

// Used returns the currently reserved byte count.
func (b *ByteBudget) Used() int64 {
	return b.used.Load()
}

var errBudgetExceeded = budgetExceededError{}

type budgetExceededError struct{}

func (budgetExceededError) Error() string { return "benchmark byte budget exceeded" }
