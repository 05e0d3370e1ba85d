package game

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Solutionsguy/jet2-sub000/internal/config"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

// fixedSource replays crash points in order, one per round.
type fixedSource struct {
	points []float64
}

func (s fixedSource) Next(nonce int) Draw {
	seed := fmt.Sprintf("server-%d", nonce)
	return Draw{
		ServerSeed: seed,
		ClientSeed: fmt.Sprintf("client-%d", nonce),
		Nonce:      nonce,
		Commitment: HashCommitment(seed),
		CrashPoint: s.points[(nonce-1)%len(s.points)],
	}
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Publish(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *recorder) count(t EventType) int {
	n := 0
	for _, e := range r.all() {
		if e.Type() == t {
			n++
		}
	}
	return n
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

type creditRecorder struct {
	mu      sync.Mutex
	credits []Credit
}

func (c *creditRecorder) Dispatch(cr Credit) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.credits = append(c.credits, cr)
	return true
}

func (c *creditRecorder) all() []Credit {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Credit(nil), c.credits...)
}

type fakeWallet struct {
	mu       sync.Mutex
	balances map[string]float64
	debits   map[string]float64
	refunds  map[string]float64
}

func newFakeWallet(balances map[string]float64) *fakeWallet {
	return &fakeWallet{
		balances: balances,
		debits:   make(map[string]float64),
		refunds:  make(map[string]float64),
	}
}

func (w *fakeWallet) Debit(_ context.Context, ownerID, wagerID string, amount float64) (float64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.balances[ownerID] < amount {
		return w.balances[ownerID], ErrInsufficientFunds
	}
	w.balances[ownerID] -= amount
	w.debits[wagerID] = amount
	return w.balances[ownerID], nil
}

func (w *fakeWallet) Refund(_ context.Context, ownerID, wagerID string, amount float64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, done := w.refunds[wagerID]; done {
		return nil
	}
	w.refunds[wagerID] = amount
	w.balances[ownerID] += amount
	return nil
}

func (w *fakeWallet) balance(ownerID string) float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.balances[ownerID]
}

func testConfig() config.GameConfig {
	cfg := config.Default()
	cfg.SyntheticWagers = 0
	return cfg
}

func newTestEngine(t *testing.T, points ...float64) (*engine, *recorder, *creditRecorder) {
	t.Helper()
	rec := &recorder{}
	credits := &creditRecorder{}
	e := newEngine(testConfig(), Deps{
		Publisher: rec,
		Credits:   credits,
		Source:    fixedSource{points: points},
	})
	return e, rec, credits
}

// takeOff runs a fresh round through Waiting and Countdown and into Flying at t0.
func takeOff(t *testing.T, e *engine, bets ...PlaceRequest) bool {
	t.Helper()
	e.enterWaiting(t0.Add(-8 * time.Second))
	for _, b := range bets {
		if _, err := e.place(b, t0.Add(-7*time.Second)); err != nil {
			t.Fatalf("place(%s) error = %v", b.WagerID, err)
		}
	}
	e.enterCountdown(t0.Add(-3 * time.Second))
	return e.enterFlying(t0)
}

// flyUntilCrash ticks every 100ms until the round crashes.
func flyUntilCrash(t *testing.T, e *engine) {
	t.Helper()
	for i := 1; i < 100000; i++ {
		if e.tick(t0.Add(time.Duration(i) * 100 * time.Millisecond)) {
			return
		}
	}
	t.Fatal("round never crashed")
}

func bet(owner, id string, stake, auto float64) PlaceRequest {
	return PlaceRequest{OwnerID: owner, WagerID: id, DisplayName: owner, Stake: stake, AutoCashout: auto}
}
