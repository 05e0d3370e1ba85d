package game

import (
	"fmt"
	"time"
)

// Book holds every wager of the current round in placement order. It is
// owned by the engine goroutine and is not safe for concurrent use.
type Book struct {
	wagers map[string]*Wager
	order  []string
}

func NewBook() *Book {
	return &Book{wagers: make(map[string]*Wager)}
}

func (b *Book) Reset() {
	b.wagers = make(map[string]*Wager)
	b.order = b.order[:0]
}

func (b *Book) Add(w *Wager) error {
	if _, exists := b.wagers[w.WagerID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateWager, w.WagerID)
	}
	b.wagers[w.WagerID] = w
	b.order = append(b.order, w.WagerID)
	return nil
}

func (b *Book) Get(wagerID string) (*Wager, bool) {
	w, ok := b.wagers[wagerID]
	return w, ok
}

// AllActive returns the active, non-quarantined wagers in placement order.
func (b *Book) AllActive() []*Wager {
	out := make([]*Wager, 0, len(b.order))
	for _, id := range b.order {
		if w := b.wagers[id]; w.Status == StatusActive && !w.Quarantined {
			out = append(out, w)
		}
	}
	return out
}

func (b *Book) ActiveByOwner(ownerID string) []*Wager {
	var out []*Wager
	for _, w := range b.AllActive() {
		if w.OwnerID == ownerID && !w.Synthetic {
			out = append(out, w)
		}
	}
	return out
}

// RealActive counts active wagers backed by money.
func (b *Book) RealActive() int {
	n := 0
	for _, w := range b.AllActive() {
		if !w.Synthetic {
			n++
		}
	}
	return n
}

// Snapshot copies every wager, settled ones included.
func (b *Book) Snapshot() []Wager {
	out := make([]Wager, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, *b.wagers[id])
	}
	return out
}

func (b *Book) Len() int {
	return len(b.order)
}

// Settle moves an active wager to a terminal status. A wager that is already
// terminal is quarantined and errAlreadySettled is returned; its recorded
// outcome is left untouched.
func (b *Book) Settle(wagerID string, status WagerStatus, multiplier, payout float64, at time.Time) (*Wager, error) {
	w, ok := b.wagers[wagerID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrWagerNotFound, wagerID)
	}
	if w.Status != StatusActive || w.Quarantined {
		w.Quarantined = true
		return w, fmt.Errorf("%w: %s is %s", errAlreadySettled, wagerID, w.Status)
	}
	w.Status = status
	w.SettledMultiplier = multiplier
	w.SettledPayout = payout
	w.SettledAt = at
	return w, nil
}

// payoutFor prices a cash-out relative to the multiplier the wager joined at.
// Wagers placed before take-off join at 1.00x.
func payoutFor(w *Wager, multiplier float64) float64 {
	entry := w.EntryMultiplier
	if entry < MinMultiplier {
		entry = MinMultiplier
	}
	return round2(w.Stake * multiplier / entry)
}
