package game

import (
	"time"
)

type Phase string

const (
	PhaseWaiting   Phase = "WAITING"
	PhaseCountdown Phase = "COUNTDOWN"
	PhaseFlying    Phase = "FLYING"
	PhaseCrashed   Phase = "CRASHED"
)

type WagerStatus string

const (
	StatusActive    WagerStatus = "ACTIVE"
	StatusCashedOut WagerStatus = "CASHED_OUT"
	StatusLost      WagerStatus = "LOST"
	StatusCancelled WagerStatus = "CANCELLED"
)

// Wager is one bet in the current round. Synthetic wagers are display-only
// bots and never touch a wallet or the ledger.
type Wager struct {
	WagerID           string      `json:"wager_id"`
	OwnerID           string      `json:"owner_id"`
	DisplayName       string      `json:"display_name,omitempty"`
	AvatarRef         string      `json:"avatar_ref,omitempty"`
	SectionID         string      `json:"section_id,omitempty"`
	Stake             float64     `json:"stake"`
	Synthetic         bool        `json:"synthetic"`
	Status            WagerStatus `json:"status"`
	AutoCashout       float64     `json:"auto_cashout,omitempty"`
	EntryMultiplier   float64     `json:"entry_multiplier"`
	Confirmed         bool        `json:"-"`
	Quarantined       bool        `json:"quarantined,omitempty"`
	SettledMultiplier float64     `json:"settled_multiplier,omitempty"`
	SettledPayout     float64     `json:"settled_payout"`
	PlacedAt          time.Time   `json:"placed_at"`
	SettledAt         time.Time   `json:"settled_at,omitempty"`
}

// RoundState is the public view of the current round. The crash point and
// server seed are only filled in once the round has crashed.
type RoundState struct {
	RoundID           string    `json:"round_id,omitempty"`
	Phase             Phase     `json:"phase"`
	CurrentMultiplier float64   `json:"current_multiplier"`
	Commitment        string    `json:"commitment"`
	ClientSeed        string    `json:"client_seed"`
	Nonce             int       `json:"nonce"`
	PhaseStartedAt    time.Time `json:"phase_started_at"`
	PhaseDurationMs   int64     `json:"phase_duration_ms,omitempty"`
	RemainingMs       int64     `json:"remaining_ms,omitempty"`
	BetsOpen          bool      `json:"bets_open"`
	PendingIntents    int       `json:"pending_intents"`
	CrashMultiplier   float64   `json:"crash_multiplier,omitempty"`
	ServerSeed        string    `json:"server_seed,omitempty"`
}

// Snapshot answers a sync request from a (re)connecting observer.
type Snapshot struct {
	Round  RoundState `json:"round"`
	Wagers []Wager    `json:"wagers"`
}

type PlaceRequest struct {
	OwnerID     string  `json:"owner_id"`
	WagerID     string  `json:"wager_id"`
	DisplayName string  `json:"display_name,omitempty"`
	AvatarRef   string  `json:"avatar_ref,omitempty"`
	SectionID   string  `json:"section_id,omitempty"`
	Stake       float64 `json:"stake"`
	AutoCashout float64 `json:"auto_cashout,omitempty"`
}

// PlaceResult is either Accepted or Ignored. Ignored means the bet arrived
// after the late bet window and was dropped.
type PlaceResult struct {
	Accepted bool    `json:"accepted"`
	Ignored  bool    `json:"ignored,omitempty"`
	Wager    *Wager  `json:"wager,omitempty"`
	Balance  float64 `json:"balance,omitempty"`
}

type CashoutRequest struct {
	OwnerID string `json:"owner_id"`
	WagerID string `json:"wager_id"`
}

type CashoutResult struct {
	WagerID    string  `json:"wager_id"`
	Multiplier float64 `json:"multiplier"`
	Payout     float64 `json:"payout"`
}

type CancelRequest struct {
	OwnerID string `json:"owner_id"`
	WagerID string `json:"wager_id,omitempty"`
}

type IntentRequest struct {
	OwnerID          string  `json:"owner_id"`
	Stake            float64 `json:"stake"`
	AvailableBalance float64 `json:"available_balance"`
}

// RoundRecord is what gets archived once a round crashes, so players can
// verify it later.
type RoundRecord struct {
	RoundID         string        `json:"round_id"`
	Nonce           int           `json:"nonce"`
	CrashMultiplier float64       `json:"crash_multiplier"`
	ServerSeed      string        `json:"server_seed"`
	ClientSeed      string        `json:"client_seed"`
	Commitment      string        `json:"commitment"`
	StartedAt       time.Time     `json:"started_at"`
	CrashedAt       time.Time     `json:"crashed_at"`
	Results         []WagerResult `json:"results"`
}
