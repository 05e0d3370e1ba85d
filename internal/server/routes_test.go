package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/Solutionsguy/jet2-sub000/internal/cache"
	"github.com/Solutionsguy/jet2-sub000/internal/config"
	"github.com/Solutionsguy/jet2-sub000/internal/game"
	"github.com/Solutionsguy/jet2-sub000/internal/ledger"
)

type fakeGame struct {
	placeRes   game.PlaceResult
	placeErr   error
	lastPlace  game.PlaceRequest
	cancelErr  error
	cancelled  []game.Wager
	cashoutRes game.CashoutResult
	cashoutErr error
	intentErr  error
	snap       game.Snapshot
	syncErr    error
}

func (f *fakeGame) PlaceBet(_ context.Context, req game.PlaceRequest) (game.PlaceResult, error) {
	f.lastPlace = req
	return f.placeRes, f.placeErr
}

func (f *fakeGame) Cancel(_ context.Context, ownerID, wagerID string) (game.Wager, error) {
	return game.Wager{WagerID: wagerID, OwnerID: ownerID, Status: game.StatusCancelled}, f.cancelErr
}

func (f *fakeGame) CancelAll(context.Context, string) ([]game.Wager, error) {
	return f.cancelled, f.cancelErr
}

func (f *fakeGame) CashOut(context.Context, string, string) (game.CashoutResult, error) {
	return f.cashoutRes, f.cashoutErr
}

func (f *fakeGame) RecordIntent(context.Context, game.IntentRequest) error {
	return f.intentErr
}

func (f *fakeGame) Sync(context.Context) (game.Snapshot, error) {
	return f.snap, f.syncErr
}

type fakeRounds map[string]game.RoundRecord

func (r fakeRounds) GetRound(_ context.Context, id string) (game.RoundRecord, error) {
	rec, ok := r[id]
	if !ok {
		return rec, cache.ErrRoundNotFound
	}
	return rec, nil
}

type fakeWallets map[string]float64

func (w fakeWallets) Balance(_ context.Context, owner string) (float64, error) {
	b, ok := w[owner]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ledger.ErrWalletNotFound, owner)
	}
	return b, nil
}

func (w fakeWallets) Deposit(_ context.Context, owner string, amount float64) (float64, error) {
	w[owner] += amount
	return w[owner], nil
}

type staticHealth map[string]string

func (h staticHealth) Health() map[string]string { return h }

func newTestServer(g *fakeGame) *FiberServer {
	return New(config.Default(), Deps{
		Game:    g,
		Hub:     game.NewHub(),
		Rounds:  fakeRounds{},
		Wallets: fakeWallets{"u1": 50},
		Health:  map[string]HealthChecker{"database": staticHealth{"status": "up"}},
	})
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("could not perform request: %v", err)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("could not read response body: %v", err)
	}
	var result map[string]interface{}
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("could not unmarshal response %q: %v", data, err)
	}
	return resp.StatusCode, result
}

func TestHealthHandler(t *testing.T) {
	s := newTestServer(&fakeGame{})

	status, result := doJSON(t, s.App, http.MethodGet, "/health", "")
	if status != http.StatusOK {
		t.Errorf("expected status OK; got %v", status)
	}
	db, ok := result["database"].(map[string]interface{})
	if !ok || db["status"] != "up" {
		t.Errorf("database health = %v", result["database"])
	}
	if _, ok := result["game"]; !ok {
		t.Error("game health missing")
	}
}

func TestPlaceBetHandler(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		game       *fakeGame
		wantStatus int
		wantOK     bool
	}{
		{
			name:       "accepted",
			body:       `{"owner_id":"u1","wager_id":"w1","stake":10,"auto_cashout":2}`,
			game:       &fakeGame{placeRes: game.PlaceResult{Accepted: true, Wager: &game.Wager{WagerID: "w1"}, Balance: 40}},
			wantStatus: http.StatusOK,
			wantOK:     true,
		},
		{
			name:       "ignored late bet",
			body:       `{"owner_id":"u1","wager_id":"w1","stake":10}`,
			game:       &fakeGame{placeRes: game.PlaceResult{Ignored: true}},
			wantStatus: http.StatusAccepted,
		},
		{
			name:       "missing owner",
			body:       `{"wager_id":"w1","stake":10}`,
			game:       &fakeGame{},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed body",
			body:       `{"owner_id":`,
			game:       &fakeGame{},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "invalid stake",
			body:       `{"owner_id":"u1","wager_id":"w1","stake":-1}`,
			game:       &fakeGame{placeErr: fmt.Errorf("%w: stake must be positive", game.ErrInvalidStake)},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "duplicate wager",
			body:       `{"owner_id":"u1","wager_id":"w1","stake":10}`,
			game:       &fakeGame{placeErr: game.ErrDuplicateWager},
			wantStatus: http.StatusConflict,
		},
		{
			name:       "engine busy",
			body:       `{"owner_id":"u1","wager_id":"w1","stake":10}`,
			game:       &fakeGame{placeErr: game.ErrQueueFull},
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(tt.game)
			status, result := doJSON(t, s.App, http.MethodPost, "/api/v1/game/bet", tt.body)
			if status != tt.wantStatus {
				t.Errorf("status = %d, want %d (%v)", status, tt.wantStatus, result)
			}
			if result["success"] != tt.wantOK {
				t.Errorf("success = %v, want %v", result["success"], tt.wantOK)
			}
		})
	}
}

func TestPlaceBetHandler_PassesFields(t *testing.T) {
	g := &fakeGame{placeRes: game.PlaceResult{Accepted: true}}
	s := newTestServer(g)

	doJSON(t, s.App, http.MethodPost, "/api/v1/game/bet",
		`{"owner_id":"u1","wager_id":"w9","stake":12.5,"auto_cashout":1.8,"display_name":"Ann","section_id":"left"}`)

	want := game.PlaceRequest{OwnerID: "u1", WagerID: "w9", Stake: 12.5, AutoCashout: 1.8, DisplayName: "Ann", SectionID: "left"}
	if g.lastPlace != want {
		t.Errorf("request = %+v, want %+v", g.lastPlace, want)
	}
}

func TestCancelHandler(t *testing.T) {
	t.Run("single wager", func(t *testing.T) {
		s := newTestServer(&fakeGame{})
		status, result := doJSON(t, s.App, http.MethodPost, "/api/v1/game/cancel", `{"owner_id":"u1","wager_id":"w1"}`)
		if status != http.StatusOK || result["success"] != true {
			t.Errorf("status = %d result = %v", status, result)
		}
	})

	t.Run("all wagers", func(t *testing.T) {
		s := newTestServer(&fakeGame{cancelled: []game.Wager{{WagerID: "a"}, {WagerID: "b"}}})
		_, result := doJSON(t, s.App, http.MethodPost, "/api/v1/game/cancel", `{"owner_id":"u1"}`)
		if got, _ := result["cancelled"].([]interface{}); len(got) != 2 {
			t.Errorf("cancelled = %v, want 2 wagers", result["cancelled"])
		}
	})

	t.Run("in flight", func(t *testing.T) {
		s := newTestServer(&fakeGame{cancelErr: game.ErrWrongPhase})
		status, _ := doJSON(t, s.App, http.MethodPost, "/api/v1/game/cancel", `{"owner_id":"u1","wager_id":"w1"}`)
		if status != http.StatusConflict {
			t.Errorf("status = %d, want 409", status)
		}
	})

	t.Run("someone else's wager", func(t *testing.T) {
		s := newTestServer(&fakeGame{cancelErr: game.ErrNotOwner})
		status, _ := doJSON(t, s.App, http.MethodPost, "/api/v1/game/cancel", `{"owner_id":"u2","wager_id":"w1"}`)
		if status != http.StatusForbidden {
			t.Errorf("status = %d, want 403", status)
		}
	})
}

func TestCashoutHandler(t *testing.T) {
	s := newTestServer(&fakeGame{cashoutRes: game.CashoutResult{WagerID: "w1", Multiplier: 2.5, Payout: 25}})
	status, result := doJSON(t, s.App, http.MethodPost, "/api/v1/game/cashout", `{"owner_id":"u1","wager_id":"w1"}`)
	if status != http.StatusOK || result["payout"] != 25.0 || result["multiplier"] != 2.5 {
		t.Errorf("status = %d result = %v", status, result)
	}

	s = newTestServer(&fakeGame{cashoutErr: game.ErrWagerNotFound})
	if status, _ := doJSON(t, s.App, http.MethodPost, "/api/v1/game/cashout", `{"owner_id":"u1","wager_id":"nope"}`); status != http.StatusNotFound {
		t.Errorf("status = %d, want 404", status)
	}

	s = newTestServer(&fakeGame{})
	if status, _ := doJSON(t, s.App, http.MethodPost, "/api/v1/game/cashout", `{"owner_id":"u1"}`); status != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 without wager_id", status)
	}
}

func TestIntentHandler(t *testing.T) {
	s := newTestServer(&fakeGame{})
	status, _ := doJSON(t, s.App, http.MethodPost, "/api/v1/game/intent", `{"owner_id":"u1","stake":5,"available_balance":10}`)
	if status != http.StatusOK {
		t.Errorf("status = %d, want 200", status)
	}

	s = newTestServer(&fakeGame{intentErr: game.ErrInsufficientFunds})
	status, _ = doJSON(t, s.App, http.MethodPost, "/api/v1/game/intent", `{"owner_id":"u1","stake":50,"available_balance":10}`)
	if status != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", status)
	}
}

func TestGameStateHandler(t *testing.T) {
	snap := game.Snapshot{Round: game.RoundState{Phase: game.PhaseWaiting, Commitment: "abc", BetsOpen: true}}
	s := newTestServer(&fakeGame{snap: snap})

	status, result := doJSON(t, s.App, http.MethodGet, "/api/v1/game/state", "")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	round := result["round"].(map[string]interface{})
	if round["phase"] != "WAITING" || round["commitment"] != "abc" {
		t.Errorf("round = %v", round)
	}
	if _, leaked := round["crash_multiplier"]; leaked {
		t.Error("state leaked the crash multiplier")
	}

	s = newTestServer(&fakeGame{syncErr: game.ErrStopped})
	if status, _ := doJSON(t, s.App, http.MethodGet, "/api/v1/game/state", ""); status != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", status)
	}
}

func TestGetRoundHandler(t *testing.T) {
	seed := "revealed-seed"
	rec := game.RoundRecord{
		RoundID:    "r1",
		Nonce:      3,
		ServerSeed: seed,
		ClientSeed: "client",
		Commitment: game.HashCommitment(seed),
	}
	cfg := config.Default()
	rec.CrashMultiplier = game.CrashPoint(seed, "client", 3, cfg.HouseEdge, cfg.MaxMultiplier)

	tampered := rec
	tampered.RoundID = "r2"
	tampered.CrashMultiplier = rec.CrashMultiplier + 1

	s := New(cfg, Deps{Game: &fakeGame{}, Hub: game.NewHub(), Rounds: fakeRounds{"r1": rec, "r2": tampered}})

	_, result := doJSON(t, s.App, http.MethodGet, "/api/v1/rounds/r1", "")
	if result["verified"] != true {
		t.Errorf("r1 verified = %v, want true", result["verified"])
	}
	_, result = doJSON(t, s.App, http.MethodGet, "/api/v1/rounds/r2", "")
	if result["verified"] != false {
		t.Errorf("tampered round verified = %v, want false", result["verified"])
	}
	if status, _ := doJSON(t, s.App, http.MethodGet, "/api/v1/rounds/missing", ""); status != http.StatusNotFound {
		t.Errorf("status = %d, want 404", status)
	}
}

func TestWalletHandlers(t *testing.T) {
	s := newTestServer(&fakeGame{})

	_, result := doJSON(t, s.App, http.MethodGet, "/api/v1/wallet/u1", "")
	if result["balance"] != 50.0 {
		t.Errorf("balance = %v, want 50", result["balance"])
	}
	_, result = doJSON(t, s.App, http.MethodPost, "/api/v1/wallet/u1/deposit", `{"amount":25}`)
	if result["balance"] != 75.0 {
		t.Errorf("balance after deposit = %v, want 75", result["balance"])
	}
	if status, _ := doJSON(t, s.App, http.MethodGet, "/api/v1/wallet/ghost", ""); status != http.StatusNotFound {
		t.Errorf("status = %d, want 404", status)
	}
}

func TestWebSocketRequiresUpgrade(t *testing.T) {
	s := newTestServer(&fakeGame{})
	resp, err := s.App.Test(httptest.NewRequest(http.MethodGet, "/ws", nil))
	if err != nil {
		t.Fatalf("could not perform request: %v", err)
	}
	if resp.StatusCode != fiber.StatusUpgradeRequired {
		t.Errorf("status = %d, want 426", resp.StatusCode)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("wrapped: %w", game.ErrInvalidAutoCashout), http.StatusBadRequest},
		{game.ErrMissingWagerID, http.StatusBadRequest},
		{game.ErrNotActive, http.StatusConflict},
		{game.ErrTimeout, http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusServiceUnavailable},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
