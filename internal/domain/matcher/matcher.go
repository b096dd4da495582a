// Package matcher implements pairwise reconciliation of transactions
// across providers: a newly ingested transaction is matched against
// pending transactions from other providers within an amount tolerance
// and a date window.
package matcher

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quoryx/quoryx-backend/internal/infrastructure/storage"
	"github.com/quoryx/quoryx-backend/internal/observability"
)

// ErrAlreadyMatched is returned when reconciliation is requested for a
// transaction that is already matched. Closed matches are never reopened.
var ErrAlreadyMatched = errors.New("transaction already matched")

// Config holds the matching tolerances.
type Config struct {
	// AmountTolerance is the maximum absolute amount difference, in the
	// currency's minor unit.
	AmountTolerance decimal.Decimal

	// DateWindowDays is the maximum absolute difference in whole days
	// between transaction dates.
	DateWindowDays int
}

// DefaultConfig returns the standard tolerances: 0.01 amount, 3 days.
func DefaultConfig() Config {
	return Config{
		AmountTolerance: decimal.New(1, -2),
		DateWindowDays:  3,
	}
}

// Matcher finds and records cross-provider matches for single transactions.
type Matcher struct {
	store  storage.TransactionRepository
	config Config
	logger *slog.Logger
}

// New creates a matcher backed by the given transaction store.
func New(store storage.TransactionRepository, cfg Config, logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{
		store:  store,
		config: cfg,
		logger: logger,
	}
}

// FindMatch returns the first pending transaction from a different provider
// in the same currency whose amount and date fall within tolerance, or nil
// when no candidate qualifies.
//
// Candidates are taken in store order and the first qualifying one wins;
// no closest-match ranking is applied.
func (m *Matcher) FindMatch(txn *storage.Transaction) (*storage.Transaction, error) {
	candidates, err := m.store.FindMatchCandidates(storage.CandidateFilter{
		ExcludeProvider: txn.Provider,
		Currency:        txn.Currency,
		ExcludeID:       txn.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("querying match candidates: %w", err)
	}

	for _, candidate := range candidates {
		if !m.amountsMatch(txn.Amount, candidate.Amount) {
			continue
		}
		if !m.datesWithinWindow(txn.TransactionDate, candidate.TransactionDate) {
			continue
		}
		return candidate, nil
	}

	return nil, nil
}

// Reconcile attempts to match the transaction against the pending pool.
// On a match both sides become matched with reciprocal links, atomically.
// On no match the transaction becomes unmatched and the pool is untouched.
// Returns true when a match was recorded.
func (m *Matcher) Reconcile(txn *storage.Transaction) (bool, error) {
	if txn.Status == storage.StatusMatched {
		return false, ErrAlreadyMatched
	}

	match, err := m.FindMatch(txn)
	if err != nil {
		return false, err
	}

	if match == nil {
		if err := m.store.UpdateTransactionStatus(txn.ID, storage.StatusUnmatched); err != nil {
			return false, fmt.Errorf("marking transaction unmatched: %w", err)
		}
		txn.Status = storage.StatusUnmatched
		observability.ReconcileTotal.WithLabelValues("unmatched").Inc()
		m.logger.Info("no reconciliation match found",
			"transaction_id", txn.ID, "provider", txn.Provider)
		return false, nil
	}

	if err := m.store.MarkMatched(txn.ID, match.ID); err != nil {
		return false, fmt.Errorf("recording match: %w", err)
	}

	txn.Status = storage.StatusMatched
	txn.MatchedTransactionID = match.ID
	observability.ReconcileTotal.WithLabelValues("matched").Inc()
	m.logger.Info("transactions reconciled",
		"transaction_id", txn.ID,
		"matched_transaction_id", match.ID,
		"amount", txn.Amount.StringFixed(2),
		"currency", txn.Currency)

	return true, nil
}

func (m *Matcher) amountsMatch(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(m.config.AmountTolerance)
}

// datesWithinWindow compares dates at day granularity; time of day is
// dropped before the day count.
func (m *Matcher) datesWithinWindow(a, b time.Time) bool {
	days := truncateToDay(a).Sub(truncateToDay(b)).Hours() / 24
	if days < 0 {
		days = -days
	}
	return int(days) <= m.config.DateWindowDays
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
