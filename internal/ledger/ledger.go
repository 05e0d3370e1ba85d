// Package ledger keeps player balances in Postgres. Every movement is a row
// in ledger_entries keyed by (wager_id, kind), so debits, refunds and credits
// can be repeated safely.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"github.com/Solutionsguy/jet2-sub000/internal/game"
)

const (
	kindDebit  = "debit"
	kindRefund = "refund"
	kindCredit = "credit"
)

// ErrWalletNotFound is returned for owners without a wallet row.
var ErrWalletNotFound = errors.New("wallet not found")

// Store implements game.Wallet and game.Ledger.
type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Deposit creates the wallet if needed and adds amount to it.
func (s *Store) Deposit(ctx context.Context, ownerID string, amount float64) (float64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("%w: deposit must be positive", game.ErrInvalidStake)
	}
	var balance float64
	err := s.db.QueryRow(ctx, `
		INSERT INTO wallets (owner_id, balance)
		VALUES ($1, $2)
		ON CONFLICT (owner_id) DO UPDATE
		SET balance = wallets.balance + EXCLUDED.balance, updated_at = NOW()
		RETURNING balance::float8
	`, ownerID, amount).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("deposit for %s: %w", ownerID, err)
	}
	return balance, nil
}

func (s *Store) Balance(ctx context.Context, ownerID string) (float64, error) {
	var balance float64
	err := s.db.QueryRow(ctx, `SELECT balance::float8 FROM wallets WHERE owner_id = $1`, ownerID).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", ErrWalletNotFound, ownerID)
	}
	if err != nil {
		return 0, fmt.Errorf("balance for %s: %w", ownerID, err)
	}
	return balance, nil
}

// Debit takes the stake for a wager. Repeating a debit for the same wager
// returns the current balance without charging again.
func (s *Store) Debit(ctx context.Context, ownerID, wagerID string, amount float64) (float64, error) {
	var balance float64
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			INSERT INTO ledger_entries (wager_id, kind, owner_id, amount)
			SELECT $1::text, $2::text, owner_id, $4::numeric FROM wallets WHERE owner_id = $3
			ON CONFLICT (wager_id, kind) DO NOTHING
		`, wagerID, kindDebit, ownerID, amount)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			// Either a repeat or an unknown owner.
			err := tx.QueryRow(ctx, `SELECT balance::float8 FROM wallets WHERE owner_id = $1`, ownerID).Scan(&balance)
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("%w: no wallet for %s", game.ErrInsufficientFunds, ownerID)
			}
			return err
		}

		err = tx.QueryRow(ctx, `
			UPDATE wallets SET balance = balance - $2, updated_at = NOW()
			WHERE owner_id = $1 AND balance >= $2
			RETURNING balance::float8
		`, ownerID, amount).Scan(&balance)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: stake %.2f", game.ErrInsufficientFunds, amount)
		}
		return err
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// Refund returns a debited stake. It is a no-op when the wager was never
// debited or was already refunded. The refunded amount is the debited one.
func (s *Store) Refund(ctx context.Context, ownerID, wagerID string, amount float64) error {
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		var refunded float64
		err := tx.QueryRow(ctx, `
			INSERT INTO ledger_entries (wager_id, kind, owner_id, round_id, amount)
			SELECT wager_id, $2::text, owner_id, round_id, amount FROM ledger_entries
			WHERE wager_id = $1 AND kind = $3 AND owner_id = $4
			ON CONFLICT (wager_id, kind) DO NOTHING
			RETURNING amount::float8
		`, wagerID, kindRefund, kindDebit, ownerID).Scan(&refunded)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		if refunded != amount {
			log.WithFields(log.Fields{
				"wager_id":  wagerID,
				"requested": amount,
				"debited":   refunded,
			}).Warn("[LEDGER] refund amount differs from debit, using debit")
		}

		_, err = tx.Exec(ctx, `
			UPDATE wallets SET balance = balance + $2, updated_at = NOW() WHERE owner_id = $1
		`, ownerID, refunded)
		return err
	})
}

// CreditWin pays a cash-out. A credit already recorded for the wager is not
// paid twice. A missing wallet is a permanent failure.
func (s *Store) CreditWin(ctx context.Context, c game.Credit) error {
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			INSERT INTO ledger_entries (wager_id, kind, owner_id, round_id, amount, multiplier)
			SELECT $1::text, $2::text, owner_id, $4::text, $5::numeric, $6::numeric FROM wallets WHERE owner_id = $3
			ON CONFLICT (wager_id, kind) DO NOTHING
		`, c.WagerID, kindCredit, c.OwnerID, c.RoundID, c.Payout, c.Multiplier)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			var paid bool
			err := tx.QueryRow(ctx, `
				SELECT EXISTS (SELECT 1 FROM ledger_entries WHERE wager_id = $1 AND kind = $2)
			`, c.WagerID, kindCredit).Scan(&paid)
			if err != nil {
				return err
			}
			if paid {
				return nil
			}
			return fmt.Errorf("%w: %w %s", game.ErrPermanent, ErrWalletNotFound, c.OwnerID)
		}

		_, err = tx.Exec(ctx, `
			UPDATE wallets SET balance = balance + $2, updated_at = NOW() WHERE owner_id = $1
		`, c.OwnerID, c.Payout)
		return err
	})
}
