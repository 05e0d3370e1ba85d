package game

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"
)

// Credit is a winning wager that the ledger still has to pay out.
type Credit struct {
	WagerID    string  `json:"wager_id"`
	OwnerID    string  `json:"owner_id"`
	RoundID    string  `json:"round_id"`
	Multiplier float64 `json:"multiplier"`
	Payout     float64 `json:"payout"`
}

// CreditDispatcher accepts credits without blocking. It reports false when
// the wager was already dispatched.
type CreditDispatcher interface {
	Dispatch(Credit) bool
}

// Ledger pays out a win. Implementations must be idempotent per WagerID.
type Ledger interface {
	CreditWin(ctx context.Context, c Credit) error
}

// DeferredStore parks credits whose retries ran out until reconciliation.
type DeferredStore interface {
	DeferCredit(ctx context.Context, c Credit) error
	PopDeferred(ctx context.Context, limit int) ([]Credit, error)
}

// ErrPermanent wraps ledger errors that must not be retried.
var ErrPermanent = errors.New("permanent ledger failure")

type SettlerOptions struct {
	Workers    int
	QueueSize  int
	Timeout    time.Duration
	MaxElapsed time.Duration
	Logger     *log.Entry
}

// Settler drains credits to the ledger on a worker pool so the round loop
// never waits on I/O.
type Settler struct {
	ledger   Ledger
	deferred DeferredStore
	opts     SettlerOptions
	log      *log.Entry

	queue    chan Credit
	mu       sync.Mutex
	inflight map[string]struct{}
	closed   bool
	wg       sync.WaitGroup
}

func NewSettler(ledger Ledger, deferred DeferredStore, opts SettlerOptions) *Settler {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1024
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 3 * time.Second
	}
	if opts.MaxElapsed <= 0 {
		opts.MaxElapsed = 30 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "settlement")
	}
	return &Settler{
		ledger:   ledger,
		deferred: deferred,
		opts:     opts,
		log:      logger,
		queue:    make(chan Credit, opts.QueueSize),
		inflight: make(map[string]struct{}),
	}
}

func (s *Settler) Start(ctx context.Context) {
	for i := 0; i < s.opts.Workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx)
	}
	s.log.WithField("workers", s.opts.Workers).Info("[SETTLE] workers started")
}

// Stop closes the queue and waits for the workers to drain it.
func (s *Settler) Stop() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Settler) Dispatch(c Credit) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.inflight[c.WagerID]; dup {
		return false
	}
	if s.closed {
		go s.park(c)
		return true
	}
	s.inflight[c.WagerID] = struct{}{}

	select {
	case s.queue <- c:
	default:
		s.log.WithField("wager_id", c.WagerID).Warn("[SETTLE] queue full, deferring credit")
		delete(s.inflight, c.WagerID)
		go s.park(c)
	}
	return true
}

func (s *Settler) worker(ctx context.Context) {
	defer s.wg.Done()
	for c := range s.queue {
		err := s.deliver(ctx, c)
		switch {
		case err == nil:
		case errors.Is(err, ErrPermanent):
			s.log.WithError(err).WithField("wager_id", c.WagerID).Error("[SETTLE] credit rejected by ledger")
		default:
			s.log.WithError(err).WithFields(log.Fields{
				"wager_id": c.WagerID,
				"owner_id": c.OwnerID,
			}).Error("[SETTLE] credit failed, deferring")
			s.park(c)
		}
		s.mu.Lock()
		delete(s.inflight, c.WagerID)
		s.mu.Unlock()
	}
}

// deliver retries the ledger call with exponential backoff.
func (s *Settler) deliver(ctx context.Context, c Credit) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxElapsedTime = s.opts.MaxElapsed

	attempt := 0
	op := func() error {
		attempt++
		callCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()

		err := s.ledger.CreditWin(callCtx, c)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrPermanent) {
			return backoff.Permanent(err)
		}
		s.log.WithError(err).WithFields(log.Fields{
			"wager_id": c.WagerID,
			"attempt":  attempt,
		}).Warn("[SETTLE] credit attempt failed")
		return err
	}
	return backoff.Retry(op, backoff.WithContext(b, ctx))
}

func (s *Settler) park(c Credit) {
	if s.deferred == nil {
		s.log.WithField("wager_id", c.WagerID).Error("[SETTLE] no deferred store, credit dropped")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.Timeout)
	defer cancel()
	if err := s.deferred.DeferCredit(ctx, c); err != nil {
		s.log.WithError(err).WithField("wager_id", c.WagerID).Error("[SETTLE] could not defer credit")
	}
}

// Reconcile makes one delivery attempt for up to limit deferred credits and
// parks the ones that still fail. It returns how many were paid.
func (s *Settler) Reconcile(ctx context.Context, limit int) (int, error) {
	if s.deferred == nil {
		return 0, nil
	}
	credits, err := s.deferred.PopDeferred(ctx, limit)
	if err != nil {
		return 0, err
	}

	paid := 0
	for _, c := range credits {
		callCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
		err := s.ledger.CreditWin(callCtx, c)
		cancel()
		if err != nil {
			s.log.WithError(err).WithField("wager_id", c.WagerID).Warn("[RECONCILE] still failing")
			s.park(c)
			continue
		}
		paid++
	}
	if paid > 0 {
		s.log.WithField("paid", paid).Info("[RECONCILE] deferred credits paid")
	}
	return paid, nil
}
