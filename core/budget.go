package core

import (
	"fmt"
	"sync"
)

// CallBudget enforces a maximum number of tool calls per run, guarding
// against runaway provider usage across retries and fan-outs.
type CallBudget struct {
	max   int
	count int
	mu    sync.Mutex
}

// NewCallBudget creates a budget allowing max calls. If max == 0, the budget
// is unlimited.
func NewCallBudget(max int) *CallBudget {
	return &CallBudget{max: max}
}

// Increment consumes one call and returns an error once the budget is
// exceeded.
func (b *CallBudget) Increment() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.count++
	if b.max > 0 && b.count > b.max {
		return fmt.Errorf("exceeded max tool calls: %d", b.max)
	}

	return nil
}

// Count returns the number of calls consumed so far.
func (b *CallBudget) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.count
}

// Remaining returns how many calls are left before hitting the limit.
func (b *CallBudget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.max == 0 {
		return -1 // unlimited
	}

	return b.max - b.count
}
