package game

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/Solutionsguy/jet2-sub000/internal/config"
)

// RoundArchiver stores finished rounds for later verification.
type RoundArchiver interface {
	SaveRound(ctx context.Context, rec RoundRecord) error
}

type round struct {
	id              string
	phase           Phase
	multiplier      float64
	draw            Draw
	phaseStartedAt  time.Time
	phaseDuration   time.Duration
	flyingStartedAt time.Time
	betsClosed      bool
}

// engine is the round state machine. Every method runs on the Manager's
// loop goroutine; times are passed in so the machine can be driven directly.
type engine struct {
	cfg     config.GameConfig
	source  CrashSource
	pub     Publisher
	credits CreditDispatcher
	archive RoundArchiver
	bots    *botFactory
	log     *log.Entry

	round   *round
	book    *Book
	intents *IntentTracker
	nonce   int
}

func newEngine(cfg config.GameConfig, deps Deps) *engine {
	e := &engine{
		cfg:     cfg,
		source:  deps.Source,
		pub:     deps.Publisher,
		credits: deps.Credits,
		archive: deps.Archive,
		bots:    newBotFactory(cfg.SyntheticWagers, deps.Rand),
		log:     deps.Logger,
		book:    NewBook(),
		intents: NewIntentTracker(),
	}
	if e.source == nil {
		e.source = FairSource{HouseEdge: cfg.HouseEdge, MaxMultiplier: cfg.MaxMultiplier}
	}
	if e.pub == nil {
		e.pub = discard{}
	}
	if e.credits == nil {
		e.credits = discard{}
	}
	if e.log == nil {
		e.log = log.WithField("component", "game")
	}
	return e
}

type discard struct{}

func (discard) Publish(Event) {}

func (discard) Dispatch(Credit) bool { return true }

// enterWaiting starts a new cycle: the previous book and intents are dropped
// and the next round is drawn and committed before any bet is taken.
func (e *engine) enterWaiting(now time.Time) {
	e.nonce++
	e.book.Reset()
	e.intents.Reset()

	e.round = &round{
		phase:          PhaseWaiting,
		multiplier:     MinMultiplier,
		draw:           e.source.Next(e.nonce),
		phaseStartedAt: now,
		phaseDuration:  e.cfg.WaitingDuration,
	}

	e.pub.Publish(PhaseChanged{
		Phase:       PhaseWaiting,
		Commitment:  e.round.draw.Commitment,
		RemainingMs: e.cfg.WaitingDuration.Milliseconds(),
	})

	for _, w := range e.bots.generate(e.nonce, now) {
		if err := e.book.Add(w); err != nil {
			continue
		}
		e.pub.Publish(wagerPlacedEvent(w))
	}

	e.log.WithFields(log.Fields{
		"nonce":      e.nonce,
		"commitment": shortHash(e.round.draw.Commitment),
	}).Debug("[ROUND] waiting")
}

func shortHash(h string) string {
	if len(h) > 16 {
		return h[:16] + "..."
	}
	return h
}

func (e *engine) enterCountdown(now time.Time) {
	r := e.round
	r.id = uuid.NewString()
	r.phase = PhaseCountdown
	r.phaseStartedAt = now
	r.phaseDuration = e.cfg.CountdownDuration

	e.pub.Publish(PhaseChanged{
		Phase:       PhaseCountdown,
		RoundID:     r.id,
		Commitment:  r.draw.Commitment,
		RemainingMs: e.cfg.CountdownDuration.Milliseconds(),
	})
	e.log.WithField("round_id", r.id).Info("[ROUND] countdown")
}

// enterFlying takes off. It reports true when the round crashed on the spot.
func (e *engine) enterFlying(now time.Time) bool {
	r := e.round
	r.phase = PhaseFlying
	r.multiplier = MinMultiplier
	r.phaseStartedAt = now
	r.phaseDuration = 0
	r.flyingStartedAt = now
	r.betsClosed = e.cfg.LateBetWindow <= 0

	for _, w := range e.book.AllActive() {
		w.Confirmed = true
	}

	instant := e.isInstantCrash()
	started := RoundStarted{
		RoundID:        r.id,
		Timestamp:      now,
		ClientSeed:     r.draw.ClientSeed,
		Commitment:     r.draw.Commitment,
		IsInstantCrash: instant,
	}
	if instant {
		started.InstantCrashValue = MinMultiplier
	}
	e.pub.Publish(PhaseChanged{Phase: PhaseFlying, RoundID: r.id})
	e.pub.Publish(started)

	if instant {
		r.betsClosed = true
		e.evaluateAutoCashouts(now)
		e.crash(now)
		return true
	}
	return false
}

// isInstantCrash is true when the crash point sits below the first tick.
func (e *engine) isInstantCrash() bool {
	return e.round.draw.CrashPoint < round2(MinMultiplier+e.cfg.Increment)
}

// closeBets ends the late bet window.
func (e *engine) closeBets() {
	if e.round.phase == PhaseFlying && !e.round.betsClosed {
		e.round.betsClosed = true
		e.log.WithField("round_id", e.round.id).Debug("[ROUND] late bet window closed")
	}
}

func (e *engine) lateWindowOpen(now time.Time) bool {
	r := e.round
	if r.betsClosed {
		return false
	}
	if now.Sub(r.flyingStartedAt) >= e.cfg.LateBetWindow {
		r.betsClosed = true
		return false
	}
	return true
}

// tick advances the multiplier by one increment, never past the crash point.
// Auto cash-outs run before the crash check so a tie pays the bettor.
// It reports true when the round crashed.
func (e *engine) tick(now time.Time) bool {
	r := e.round
	if r.phase != PhaseFlying {
		return false
	}

	next := round2(r.multiplier + e.cfg.Increment)
	if next > r.draw.CrashPoint {
		next = r.draw.CrashPoint
	}
	r.multiplier = next

	e.pub.Publish(MultiplierTick{RoundID: r.id, Value: r.multiplier})
	e.evaluateAutoCashouts(now)

	if r.multiplier >= r.draw.CrashPoint {
		e.crash(now)
		return true
	}
	return false
}

// evaluateAutoCashouts settles every active wager whose target has been
// reached, at the target rather than at the current multiplier.
func (e *engine) evaluateAutoCashouts(now time.Time) {
	m := e.round.multiplier
	for _, w := range e.book.AllActive() {
		if w.AutoCashout > 0 && w.AutoCashout <= m {
			e.settle(w, StatusCashedOut, w.AutoCashout, now, true)
		}
	}
}

func (e *engine) crash(now time.Time) {
	r := e.round
	r.phase = PhaseCrashed
	r.betsClosed = true
	r.phaseStartedAt = now
	r.phaseDuration = e.cfg.CrashedDelay

	for _, w := range e.book.AllActive() {
		e.settle(w, StatusLost, r.multiplier, now, false)
	}

	wagers := e.book.Snapshot()
	results := make([]WagerResult, 0, len(wagers))
	for i := range wagers {
		results = append(results, wagerResult(&wagers[i]))
	}

	e.pub.Publish(RoundCrashed{
		RoundID:         r.id,
		CrashMultiplier: r.multiplier,
		ServerSeed:      r.draw.ServerSeed,
		ClientSeed:      r.draw.ClientSeed,
		Nonce:           r.draw.Nonce,
		Results:         results,
	})
	e.pub.Publish(PhaseChanged{
		Phase:       PhaseCrashed,
		RoundID:     r.id,
		RemainingMs: e.cfg.CrashedDelay.Milliseconds(),
	})

	e.log.WithFields(log.Fields{
		"round_id": r.id,
		"crash":    r.multiplier,
		"wagers":   len(results),
	}).Info("[ROUND] crashed")

	if e.archive != nil {
		rec := RoundRecord{
			RoundID:         r.id,
			Nonce:           r.draw.Nonce,
			CrashMultiplier: r.multiplier,
			ServerSeed:      r.draw.ServerSeed,
			ClientSeed:      r.draw.ClientSeed,
			Commitment:      r.draw.Commitment,
			StartedAt:       r.flyingStartedAt,
			CrashedAt:       now,
			Results:         results,
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := e.archive.SaveRound(ctx, rec); err != nil {
				e.log.WithError(err).WithField("round_id", rec.RoundID).Warn("[ROUND] archive failed")
			}
		}()
	}
}

// settle is the single exit from StatusActive. Real cash-outs are handed to
// the credit dispatcher; nothing here waits on the ledger.
func (e *engine) settle(w *Wager, status WagerStatus, multiplier float64, now time.Time, auto bool) {
	payout := 0.0
	if status == StatusCashedOut {
		payout = payoutFor(w, multiplier)
	}

	if _, err := e.book.Settle(w.WagerID, status, multiplier, payout, now); err != nil {
		e.log.WithError(err).WithFields(log.Fields{
			"round_id": e.round.id,
			"wager_id": w.WagerID,
		}).Warn("[SETTLE] wager quarantined")
		return
	}

	e.pub.Publish(WagerSettled{
		WagerID:       w.WagerID,
		OwnerID:       w.OwnerID,
		DisplayName:   w.DisplayName,
		Status:        status,
		Multiplier:    multiplier,
		Payout:        payout,
		IsAutoCashOut: auto,
		Synthetic:     w.Synthetic,
	})

	if status == StatusCashedOut && !w.Synthetic {
		credit := Credit{
			WagerID:    w.WagerID,
			OwnerID:    w.OwnerID,
			RoundID:    e.round.id,
			Multiplier: multiplier,
			Payout:     payout,
		}
		if !e.credits.Dispatch(credit) {
			e.log.WithField("wager_id", w.WagerID).Debug("[SETTLE] credit already dispatched")
		}
	}
}

func (e *engine) place(req PlaceRequest, now time.Time) (PlaceResult, error) {
	r := e.round
	switch r.phase {
	case PhaseCrashed:
		return PlaceResult{}, fmt.Errorf("%w: round has crashed", ErrWrongPhase)
	case PhaseFlying:
		if !e.lateWindowOpen(now) {
			e.log.WithFields(log.Fields{
				"round_id": r.id,
				"wager_id": req.WagerID,
			}).Debug("[BET] late bet ignored")
			return PlaceResult{Ignored: true}, nil
		}
	}

	if err := e.validate(req); err != nil {
		return PlaceResult{}, err
	}

	w := &Wager{
		WagerID:         req.WagerID,
		OwnerID:         req.OwnerID,
		DisplayName:     req.DisplayName,
		AvatarRef:       req.AvatarRef,
		SectionID:       req.SectionID,
		Stake:           round2(req.Stake),
		Status:          StatusActive,
		AutoCashout:     round2(req.AutoCashout),
		EntryMultiplier: MinMultiplier,
		PlacedAt:        now,
	}
	if r.phase == PhaseFlying {
		w.EntryMultiplier = r.multiplier
		w.Confirmed = true
	}
	if err := e.book.Add(w); err != nil {
		return PlaceResult{}, err
	}
	e.intents.Release(w.OwnerID)
	e.pub.Publish(wagerPlacedEvent(w))

	e.log.WithFields(log.Fields{
		"round_id": r.id,
		"wager_id": w.WagerID,
		"owner_id": w.OwnerID,
		"stake":    w.Stake,
	}).Info("[BET] placed")

	// A late bet whose target was already passed cashes out at its entry.
	if r.phase == PhaseFlying && w.AutoCashout > 0 && w.AutoCashout <= r.multiplier {
		e.settle(w, StatusCashedOut, r.multiplier, now, true)
	}

	placed := *w
	return PlaceResult{Accepted: true, Wager: &placed}, nil
}

func (e *engine) validate(req PlaceRequest) error {
	if req.WagerID == "" {
		return ErrMissingWagerID
	}
	if req.Stake <= 0 {
		return fmt.Errorf("%w: stake must be positive", ErrInvalidStake)
	}
	if req.Stake < e.cfg.MinBet || req.Stake > e.cfg.MaxBet {
		return fmt.Errorf("%w: bet must be between %.2f and %.2f", ErrInvalidStake, e.cfg.MinBet, e.cfg.MaxBet)
	}
	if req.AutoCashout != 0 && req.AutoCashout < MinMultiplier {
		return ErrInvalidAutoCashout
	}
	return nil
}

// cancel withdraws one wager that has not taken off yet.
func (e *engine) cancel(ownerID, wagerID string, now time.Time) (Wager, error) {
	w, ok := e.book.Get(wagerID)
	if !ok {
		return Wager{}, fmt.Errorf("%w: %s", ErrWagerNotFound, wagerID)
	}
	if w.OwnerID != ownerID || w.Synthetic {
		return Wager{}, ErrNotOwner
	}
	if w.Status != StatusActive {
		return Wager{}, ErrNotActive
	}
	if w.Confirmed || e.round.phase == PhaseFlying || e.round.phase == PhaseCrashed {
		return Wager{}, fmt.Errorf("%w: wager already in flight", ErrWrongPhase)
	}

	e.settle(w, StatusCancelled, 0, now, false)
	return *w, nil
}

// cancelOwner drops one intent for the owner and withdraws every one of
// their wagers that has not taken off yet.
func (e *engine) cancelOwner(ownerID string, now time.Time) []Wager {
	e.intents.Release(ownerID)

	var out []Wager
	for _, w := range e.book.ActiveByOwner(ownerID) {
		if w.Confirmed {
			continue
		}
		e.settle(w, StatusCancelled, 0, now, false)
		out = append(out, *w)
	}
	return out
}

func (e *engine) cashOut(ownerID, wagerID string, now time.Time) (CashoutResult, error) {
	r := e.round
	if r.phase != PhaseFlying {
		return CashoutResult{}, fmt.Errorf("%w: round is %s", ErrWrongPhase, r.phase)
	}
	w, ok := e.book.Get(wagerID)
	if !ok {
		return CashoutResult{}, fmt.Errorf("%w: %s", ErrWagerNotFound, wagerID)
	}
	if w.OwnerID != ownerID {
		return CashoutResult{}, ErrNotOwner
	}
	if w.Status != StatusActive || w.Quarantined {
		return CashoutResult{}, ErrNotActive
	}

	e.settle(w, StatusCashedOut, r.multiplier, now, false)
	return CashoutResult{
		WagerID:    w.WagerID,
		Multiplier: w.SettledMultiplier,
		Payout:     w.SettledPayout,
	}, nil
}

func (e *engine) recordIntent(req IntentRequest) error {
	return e.intents.Record(req.OwnerID, req.Stake, req.AvailableBalance)
}

func (e *engine) snapshot(now time.Time) Snapshot {
	r := e.round
	state := RoundState{
		RoundID:           r.id,
		Phase:             r.phase,
		CurrentMultiplier: r.multiplier,
		Commitment:        r.draw.Commitment,
		ClientSeed:        r.draw.ClientSeed,
		Nonce:             r.draw.Nonce,
		PhaseStartedAt:    r.phaseStartedAt,
		BetsOpen:          r.phase == PhaseWaiting || r.phase == PhaseCountdown || (r.phase == PhaseFlying && !r.betsClosed),
		PendingIntents:    e.intents.Count() + e.book.RealActive(),
	}
	if r.phaseDuration > 0 {
		state.PhaseDurationMs = r.phaseDuration.Milliseconds()
		if remaining := r.phaseDuration - now.Sub(r.phaseStartedAt); remaining > 0 {
			state.RemainingMs = remaining.Milliseconds()
		}
	}
	if r.phase == PhaseCrashed {
		state.CrashMultiplier = r.multiplier
		state.ServerSeed = r.draw.ServerSeed
	}
	return Snapshot{Round: state, Wagers: e.book.Snapshot()}
}
