package game

import "time"

type EventType string

const (
	EventPhaseChanged   EventType = "phase_changed"
	EventRoundStarted   EventType = "round_started"
	EventMultiplierTick EventType = "multiplier_tick"
	EventWagerPlaced    EventType = "wager_placed"
	EventWagerSettled   EventType = "wager_settled"
	EventRoundCrashed   EventType = "round_crashed"
	EventSync           EventType = "sync"
)

// Event is the closed set of messages sent to observers.
type Event interface {
	Type() EventType
}

// Envelope is the wire form of an Event.
type Envelope struct {
	Type EventType `json:"type"`
	Data Event     `json:"data"`
}

func Wrap(e Event) Envelope {
	return Envelope{Type: e.Type(), Data: e}
}

// Publisher fans events out to every observer. Publish must not block.
type Publisher interface {
	Publish(Event)
}

type PhaseChanged struct {
	Phase       Phase  `json:"phase"`
	RoundID     string `json:"round_id,omitempty"`
	Commitment  string `json:"commitment,omitempty"`
	RemainingMs int64  `json:"remaining_ms,omitempty"`
}

type RoundStarted struct {
	RoundID           string    `json:"round_id"`
	Timestamp         time.Time `json:"timestamp"`
	ClientSeed        string    `json:"client_seed"`
	Commitment        string    `json:"commitment"`
	IsInstantCrash    bool      `json:"is_instant_crash"`
	InstantCrashValue float64   `json:"instant_crash_value,omitempty"`
}

type MultiplierTick struct {
	RoundID string  `json:"round_id"`
	Value   float64 `json:"value"`
}

type WagerPlaced struct {
	WagerID         string  `json:"wager_id"`
	OwnerID         string  `json:"owner_id"`
	DisplayName     string  `json:"display_name,omitempty"`
	Stake           float64 `json:"stake"`
	AvatarRef       string  `json:"avatar_ref,omitempty"`
	EntryMultiplier float64 `json:"entry_multiplier"`
	Synthetic       bool    `json:"synthetic"`
}

type WagerSettled struct {
	WagerID       string      `json:"wager_id"`
	OwnerID       string      `json:"owner_id"`
	DisplayName   string      `json:"display_name,omitempty"`
	Status        WagerStatus `json:"status"`
	Multiplier    float64     `json:"multiplier"`
	Payout        float64     `json:"payout"`
	IsAutoCashOut bool        `json:"is_auto_cash_out"`
	Synthetic     bool        `json:"synthetic"`
}

type WagerResult struct {
	WagerID    string      `json:"wager_id"`
	OwnerID    string      `json:"owner_id"`
	Status     WagerStatus `json:"status"`
	Stake      float64     `json:"stake"`
	Multiplier float64     `json:"multiplier"`
	Payout     float64     `json:"payout"`
	Synthetic  bool        `json:"synthetic"`
}

type RoundCrashed struct {
	RoundID         string        `json:"round_id"`
	CrashMultiplier float64       `json:"crash_multiplier"`
	ServerSeed      string        `json:"server_seed"`
	ClientSeed      string        `json:"client_seed"`
	Nonce           int           `json:"nonce"`
	Results         []WagerResult `json:"results"`
}

func (PhaseChanged) Type() EventType   { return EventPhaseChanged }
func (RoundStarted) Type() EventType   { return EventRoundStarted }
func (MultiplierTick) Type() EventType { return EventMultiplierTick }
func (WagerPlaced) Type() EventType    { return EventWagerPlaced }
func (WagerSettled) Type() EventType   { return EventWagerSettled }
func (RoundCrashed) Type() EventType   { return EventRoundCrashed }
func (Snapshot) Type() EventType       { return EventSync }

func wagerPlacedEvent(w *Wager) WagerPlaced {
	return WagerPlaced{
		WagerID:         w.WagerID,
		OwnerID:         w.OwnerID,
		DisplayName:     w.DisplayName,
		Stake:           w.Stake,
		AvatarRef:       w.AvatarRef,
		EntryMultiplier: w.EntryMultiplier,
		Synthetic:       w.Synthetic,
	}
}

func wagerResult(w *Wager) WagerResult {
	return WagerResult{
		WagerID:    w.WagerID,
		OwnerID:    w.OwnerID,
		Status:     w.Status,
		Stake:      w.Stake,
		Multiplier: w.SettledMultiplier,
		Payout:     w.SettledPayout,
		Synthetic:  w.Synthetic,
	}
}
