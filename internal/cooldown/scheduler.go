// Package cooldown releases settled-position capital back into the
// available bucket once its settlement latency has passed. Proceeds of a
// just-closed position are not immediately reinvestable.
package cooldown

import (
	"time"

	"polycopy-sim/internal/domain"
	"polycopy-sim/internal/ledger"
)

// Release moves matured cooldown entries (availableAt <= now) from the
// cooldown bucket to available and drops them from the queue. Pending
// entries are untouched. Returns the total amount released.
//
// Idempotent: a second call with the same now finds no matured entries and
// is a no-op.
func Release(state *domain.PortfolioState, now time.Time) (float64, error) {
	var pending []*domain.CooldownEntry
	var released float64

	for _, entry := range state.Cooldowns {
		if entry.AvailableAt.After(now) {
			pending = append(pending, entry)
			continue
		}
		released += entry.Amount
	}

	if released == 0 {
		return 0, nil
	}

	state.Cooldowns = pending
	state.Portfolio.Cooldown -= released
	state.Portfolio.Available += released

	if err := ledger.CheckInvariant(state); err != nil {
		return 0, err
	}
	return released, nil
}

// NextMaturity returns the earliest pending maturity, or zero time when the
// queue is empty.
func NextMaturity(state *domain.PortfolioState) time.Time {
	var next time.Time
	for _, entry := range state.Cooldowns {
		if next.IsZero() || entry.AvailableAt.Before(next) {
			next = entry.AvailableAt
		}
	}
	return next
}
