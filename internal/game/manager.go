package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/Solutionsguy/jet2-sub000/internal/config"
)

const (
	COMMAND_QUEUE_SIZE = 1000
	COMMAND_TIMEOUT    = 5 * time.Second
)

// Wallet validates and debits a stake before a bet reaches the round, and
// refunds it when the bet is rejected, ignored or cancelled. Both calls are
// keyed by wager id so repeats are harmless.
type Wallet interface {
	Debit(ctx context.Context, ownerID, wagerID string, amount float64) (balance float64, err error)
	Refund(ctx context.Context, ownerID, wagerID string, amount float64) error
}

type Deps struct {
	Publisher Publisher
	Credits   CreditDispatcher
	Wallet    Wallet
	Archive   RoundArchiver
	Source    CrashSource
	Rand      *rand.Rand
	Logger    *log.Entry
}

// Manager owns the round. All state changes happen on its loop goroutine;
// callers talk to it through typed commands.
type Manager struct {
	cfg      config.GameConfig
	eng      *engine
	wallet   Wallet
	log      *log.Entry
	commands chan command
	stopChan chan struct{}
	done     chan struct{}
}

func NewManager(cfg config.GameConfig, deps Deps) *Manager {
	if deps.Logger == nil {
		deps.Logger = log.WithField("component", "game")
	}
	return &Manager{
		cfg:      cfg,
		eng:      newEngine(cfg, deps),
		wallet:   deps.Wallet,
		log:      deps.Logger,
		commands: make(chan command, COMMAND_QUEUE_SIZE),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (m *Manager) Start() {
	go m.loop()
}

// Stop ends the loop and waits for it to exit.
func (m *Manager) Stop() {
	select {
	case <-m.stopChan:
	default:
		close(m.stopChan)
	}
	<-m.done
}

func (m *Manager) loop() {
	defer close(m.done)

	m.eng.enterWaiting(time.Now())
	phaseTimer := time.NewTimer(m.cfg.WaitingDuration)
	defer phaseTimer.Stop()

	var clock *roundClock
	defer func() { clock.Stop() }()

	for {
		select {
		case <-m.stopChan:
			m.log.Info("[GAME] Game loop stopped")
			return

		case cmd := <-m.commands:
			cmd.apply(m.eng, time.Now())

		case now := <-phaseTimer.C:
			switch m.eng.round.phase {
			case PhaseWaiting:
				m.eng.enterCountdown(now)
				phaseTimer.Reset(m.cfg.CountdownDuration)
			case PhaseCountdown:
				if m.eng.enterFlying(now) {
					phaseTimer.Reset(m.cfg.CrashedDelay)
					continue
				}
				clock = startRoundClock(m.cfg.TickInterval, m.cfg.LateBetWindow)
			case PhaseCrashed:
				m.eng.enterWaiting(now)
				phaseTimer.Reset(m.cfg.WaitingDuration)
			}

		case <-clock.LateDeadline():
			clock.lateFired()
			m.eng.closeBets()

		case now := <-clock.Ticks():
			if m.eng.tick(now) {
				clock.Stop()
				clock = nil
				phaseTimer.Reset(m.cfg.CrashedDelay)
			}
		}
	}
}

// submit queues a command without blocking the loop and waits for its reply.
func submit[T any](ctx context.Context, m *Manager, cmd command, reply <-chan T) (T, error) {
	var zero T
	select {
	case m.commands <- cmd:
	case <-m.stopChan:
		return zero, ErrStopped
	default:
		return zero, ErrQueueFull
	}

	timer := time.NewTimer(COMMAND_TIMEOUT)
	defer timer.Stop()

	select {
	case r := <-reply:
		return r, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-timer.C:
		return zero, ErrTimeout
	case <-m.done:
		return zero, ErrStopped
	}
}

// PlaceBet debits the stake, then hands the bet to the round. The stake is
// refunded if the round rejects or ignores the bet.
func (m *Manager) PlaceBet(ctx context.Context, req PlaceRequest) (PlaceResult, error) {
	if req.Stake <= 0 {
		return PlaceResult{}, fmt.Errorf("%w: stake must be positive", ErrInvalidStake)
	}
	if req.WagerID == "" {
		return PlaceResult{}, ErrMissingWagerID
	}

	balance := 0.0
	if m.wallet != nil {
		var err error
		balance, err = m.wallet.Debit(ctx, req.OwnerID, req.WagerID, req.Stake)
		if err != nil {
			return PlaceResult{}, err
		}
	}

	reply := make(chan placeReply, 1)
	r, err := submit(ctx, m, placeCmd{req: req, reply: reply}, reply)
	if err == nil {
		err = r.err
	}
	if err != nil || r.res.Ignored {
		if errors.Is(err, ErrTimeout) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			// The command may still land; its wager keeps the debit.
			m.log.WithError(err).WithField("wager_id", req.WagerID).Warn("[BET] no answer from round, stake kept")
			return PlaceResult{}, err
		}
		m.refund(req.OwnerID, req.WagerID, req.Stake)
		return r.res, err
	}

	r.res.Balance = balance
	return r.res, nil
}

// Cancel withdraws one wager before take-off and refunds it.
func (m *Manager) Cancel(ctx context.Context, ownerID, wagerID string) (Wager, error) {
	reply := make(chan cancelReply, 1)
	r, err := submit(ctx, m, cancelCmd{ownerID: ownerID, wagerID: wagerID, reply: reply}, reply)
	if err == nil {
		err = r.err
	}
	if err != nil {
		return Wager{}, err
	}
	m.refund(ownerID, r.wager.WagerID, r.wager.Stake)
	return r.wager, nil
}

// CancelAll drops one of the owner's intents and withdraws all of their
// wagers that have not taken off.
func (m *Manager) CancelAll(ctx context.Context, ownerID string) ([]Wager, error) {
	reply := make(chan []Wager, 1)
	wagers, err := submit(ctx, m, cancelOwnerCmd{ownerID: ownerID, reply: reply}, reply)
	if err != nil {
		return nil, err
	}
	for _, w := range wagers {
		m.refund(ownerID, w.WagerID, w.Stake)
	}
	return wagers, nil
}

func (m *Manager) CashOut(ctx context.Context, ownerID, wagerID string) (CashoutResult, error) {
	reply := make(chan cashoutReply, 1)
	r, err := submit(ctx, m, cashoutCmd{ownerID: ownerID, wagerID: wagerID, reply: reply}, reply)
	if err == nil {
		err = r.err
	}
	return r.res, err
}

// RecordIntent registers an announced bet. It is display-only.
func (m *Manager) RecordIntent(ctx context.Context, req IntentRequest) error {
	reply := make(chan error, 1)
	r, err := submit(ctx, m, intentCmd{req: req, reply: reply}, reply)
	if err != nil {
		return err
	}
	return r
}

// Sync returns the full round and book for a (re)connecting observer.
func (m *Manager) Sync(ctx context.Context) (Snapshot, error) {
	reply := make(chan Snapshot, 1)
	return submit(ctx, m, syncCmd{reply: reply}, reply)
}

func (m *Manager) refund(ownerID, wagerID string, amount float64) {
	if m.wallet == nil || amount <= 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), COMMAND_TIMEOUT)
	defer cancel()
	if err := m.wallet.Refund(ctx, ownerID, wagerID, amount); err != nil {
		m.log.WithError(err).WithFields(log.Fields{
			"wager_id": wagerID,
			"owner_id": ownerID,
		}).Error("[BET] refund failed")
	}
}
