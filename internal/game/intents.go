package game

import "fmt"

// IntentTracker counts announced bets that have not been placed yet. The
// count is shown to observers only; it has no effect on the round outcome.
type IntentTracker struct {
	byOwner map[string]int
	total   int
}

func NewIntentTracker() *IntentTracker {
	return &IntentTracker{byOwner: make(map[string]int)}
}

func (t *IntentTracker) Record(ownerID string, stake, available float64) error {
	if stake <= 0 {
		return fmt.Errorf("%w: stake must be positive", ErrInvalidStake)
	}
	if stake > available {
		return fmt.Errorf("%w: stake %.2f exceeds %.2f", ErrInsufficientFunds, stake, available)
	}
	t.byOwner[ownerID]++
	t.total++
	return nil
}

// Release drops one intent for the owner, floored at zero.
func (t *IntentTracker) Release(ownerID string) {
	if t.byOwner[ownerID] == 0 {
		return
	}
	t.byOwner[ownerID]--
	t.total--
	if t.byOwner[ownerID] == 0 {
		delete(t.byOwner, ownerID)
	}
}

func (t *IntentTracker) Count() int {
	return t.total
}

func (t *IntentTracker) Reset() {
	t.byOwner = make(map[string]int)
	t.total = 0
}
