package ratelimit

import (
	"errors"
	"fmt"
	"sync"
)

var ErrExhausted = errors.New("request budget exhausted")

// Budget caps how many paid AI requests one run may make.
type Budget struct {
	mu   sync.Mutex
	name string
	max  int // 0 = unlimited
	used int
}

func NewBudget(name string, max int) *Budget {
	return &Budget{name: name, max: max}
}

// Take reserves one request or fails once the budget is spent.
func (b *Budget) Take() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.max > 0 && b.used >= b.max {
		return fmt.Errorf("%s: %w (%d/%d)", b.name, ErrExhausted, b.used, b.max)
	}
	b.used++
	return nil
}

func (b *Budget) Stats() map[string]interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	return map[string]interface{}{
		"name":  b.name,
		"used":  b.used,
		"limit": b.max,
	}
}
