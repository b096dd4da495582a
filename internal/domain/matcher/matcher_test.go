package matcher

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quoryx/quoryx-backend/internal/infrastructure/storage"
)

func newTestMatcher(store storage.TransactionRepository) *Matcher {
	return New(store, DefaultConfig(), nil)
}

func pendingTransaction(id string, provider storage.Provider, amount string, date time.Time) *storage.Transaction {
	return &storage.Transaction{
		ID:              id,
		Provider:        provider,
		ExternalID:      "ext-" + id,
		Amount:          decimal.RequireFromString(amount),
		Currency:        "USD",
		TransactionDate: date,
		Status:          storage.StatusPending,
	}
}

func TestFindMatch(t *testing.T) {
	day := time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)

	t.Run("finds exact match from other provider", func(t *testing.T) {
		repo := storage.NewMockRepository()
		candidate := pendingTransaction("qb-1", storage.ProviderQuickBooks, "100.00", day)
		repo.AddTransaction(candidate)

		txn := pendingTransaction("xe-1", storage.ProviderXero, "100.00", day)
		match, err := newTestMatcher(repo).FindMatch(txn)

		require.NoError(t, err)
		require.NotNil(t, match)
		assert.Equal(t, "qb-1", match.ID)
	})

	t.Run("amount difference of exactly 0.01 matches", func(t *testing.T) {
		repo := storage.NewMockRepository()
		repo.AddTransaction(pendingTransaction("qb-1", storage.ProviderQuickBooks, "100.01", day))

		txn := pendingTransaction("xe-1", storage.ProviderXero, "100.00", day)
		match, err := newTestMatcher(repo).FindMatch(txn)

		require.NoError(t, err)
		assert.NotNil(t, match)
	})

	t.Run("amount difference of 0.02 does not match", func(t *testing.T) {
		repo := storage.NewMockRepository()
		repo.AddTransaction(pendingTransaction("qb-1", storage.ProviderQuickBooks, "100.02", day))

		txn := pendingTransaction("xe-1", storage.ProviderXero, "100.00", day)
		match, err := newTestMatcher(repo).FindMatch(txn)

		require.NoError(t, err)
		assert.Nil(t, match)
	})

	t.Run("dates exactly 3 days apart match", func(t *testing.T) {
		repo := storage.NewMockRepository()
		repo.AddTransaction(pendingTransaction("qb-1", storage.ProviderQuickBooks, "50.00", day.AddDate(0, 0, 3)))

		txn := pendingTransaction("xe-1", storage.ProviderXero, "50.00", day)
		match, err := newTestMatcher(repo).FindMatch(txn)

		require.NoError(t, err)
		assert.NotNil(t, match)
	})

	t.Run("dates 4 days apart do not match", func(t *testing.T) {
		repo := storage.NewMockRepository()
		repo.AddTransaction(pendingTransaction("qb-1", storage.ProviderQuickBooks, "50.00", day.AddDate(0, 0, 4)))

		txn := pendingTransaction("xe-1", storage.ProviderXero, "50.00", day)
		match, err := newTestMatcher(repo).FindMatch(txn)

		require.NoError(t, err)
		assert.Nil(t, match)
	})

	t.Run("time of day is ignored in the date window", func(t *testing.T) {
		repo := storage.NewMockRepository()
		// 3 days and 14 hours apart by clock time, but exactly 3 calendar days
		candidateDate := time.Date(2025, 3, 13, 23, 59, 0, 0, time.UTC)
		repo.AddTransaction(pendingTransaction("qb-1", storage.ProviderQuickBooks, "50.00", candidateDate))

		txn := pendingTransaction("xe-1", storage.ProviderXero, "50.00", day)
		match, err := newTestMatcher(repo).FindMatch(txn)

		require.NoError(t, err)
		assert.NotNil(t, match)
	})

	t.Run("same provider is never a candidate", func(t *testing.T) {
		repo := storage.NewMockRepository()
		repo.AddTransaction(pendingTransaction("xe-2", storage.ProviderXero, "100.00", day))

		txn := pendingTransaction("xe-1", storage.ProviderXero, "100.00", day)
		match, err := newTestMatcher(repo).FindMatch(txn)

		require.NoError(t, err)
		assert.Nil(t, match)
	})

	t.Run("different currency is never a candidate", func(t *testing.T) {
		repo := storage.NewMockRepository()
		candidate := pendingTransaction("qb-1", storage.ProviderQuickBooks, "100.00", day)
		candidate.Currency = "EUR"
		repo.AddTransaction(candidate)

		txn := pendingTransaction("xe-1", storage.ProviderXero, "100.00", day)
		match, err := newTestMatcher(repo).FindMatch(txn)

		require.NoError(t, err)
		assert.Nil(t, match)
	})

	t.Run("non-pending candidates are excluded", func(t *testing.T) {
		repo := storage.NewMockRepository()
		candidate := pendingTransaction("qb-1", storage.ProviderQuickBooks, "100.00", day)
		candidate.Status = storage.StatusUnmatched
		repo.AddTransaction(candidate)

		txn := pendingTransaction("xe-1", storage.ProviderXero, "100.00", day)
		match, err := newTestMatcher(repo).FindMatch(txn)

		require.NoError(t, err)
		assert.Nil(t, match)
	})

	t.Run("first qualifying candidate wins", func(t *testing.T) {
		repo := storage.NewMockRepository()
		repo.AddTransaction(pendingTransaction("qb-1", storage.ProviderQuickBooks, "100.00", day))
		repo.AddTransaction(pendingTransaction("qb-2", storage.ProviderQuickBooks, "100.00", day))

		txn := pendingTransaction("xe-1", storage.ProviderXero, "100.00", day)
		match, err := newTestMatcher(repo).FindMatch(txn)

		require.NoError(t, err)
		require.NotNil(t, match)
		assert.Equal(t, "qb-1", match.ID)
	})
}

func TestReconcile(t *testing.T) {
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	t.Run("match links both sides reciprocally", func(t *testing.T) {
		repo := storage.NewMockRepository()
		repo.AddTransaction(pendingTransaction("qb-1", storage.ProviderQuickBooks, "100.00", day))

		txn := pendingTransaction("xe-1", storage.ProviderXero, "100.00", day)
		repo.AddTransaction(txn)

		matched, err := newTestMatcher(repo).Reconcile(txn)
		require.NoError(t, err)
		assert.True(t, matched)

		assert.Equal(t, storage.StatusMatched, txn.Status)
		assert.Equal(t, "qb-1", txn.MatchedTransactionID)

		stored, err := repo.GetTransaction("qb-1")
		require.NoError(t, err)
		assert.Equal(t, storage.StatusMatched, stored.Status)
		assert.Equal(t, "xe-1", stored.MatchedTransactionID)
	})

	t.Run("no match marks transaction unmatched", func(t *testing.T) {
		repo := storage.NewMockRepository()

		txn := pendingTransaction("xe-1", storage.ProviderXero, "100.00", day)
		repo.AddTransaction(txn)

		matched, err := newTestMatcher(repo).Reconcile(txn)
		require.NoError(t, err)
		assert.False(t, matched)
		assert.Equal(t, storage.StatusUnmatched, txn.Status)
		assert.False(t, repo.MarkMatchedCalled)
	})

	t.Run("retried unmatched transaction matches a new counterpart", func(t *testing.T) {
		repo := storage.NewMockRepository()

		txn := pendingTransaction("xe-1", storage.ProviderXero, "100.00", day)
		txn.Status = storage.StatusUnmatched
		repo.AddTransaction(txn)

		repo.AddTransaction(pendingTransaction("qb-1", storage.ProviderQuickBooks, "100.00", day))

		matched, err := newTestMatcher(repo).Reconcile(txn)
		require.NoError(t, err)
		assert.True(t, matched)
		assert.Equal(t, "qb-1", txn.MatchedTransactionID)
	})

	t.Run("already matched transaction is rejected", func(t *testing.T) {
		repo := storage.NewMockRepository()

		txn := pendingTransaction("xe-1", storage.ProviderXero, "100.00", day)
		txn.Status = storage.StatusMatched
		repo.AddTransaction(txn)

		matched, err := newTestMatcher(repo).Reconcile(txn)
		assert.ErrorIs(t, err, ErrAlreadyMatched)
		assert.False(t, matched)
	})

	t.Run("symmetric regardless of ingestion order", func(t *testing.T) {
		// Whichever side arrives second finds the one that arrived first.
		for _, firstProvider := range []storage.Provider{storage.ProviderXero, storage.ProviderQuickBooks} {
			secondProvider := storage.ProviderQuickBooks
			if firstProvider == storage.ProviderQuickBooks {
				secondProvider = storage.ProviderXero
			}

			repo := storage.NewMockRepository()
			first := pendingTransaction("first", firstProvider, "75.50", day)
			repo.AddTransaction(first)

			second := pendingTransaction("second", secondProvider, "75.50", day.AddDate(0, 0, 1))
			repo.AddTransaction(second)

			matched, err := newTestMatcher(repo).Reconcile(second)
			require.NoError(t, err)
			assert.True(t, matched, "provider order %s then %s", firstProvider, secondProvider)
			assert.Equal(t, "first", second.MatchedTransactionID)
		}
	})

	t.Run("xero 100.00 matches quickbooks 100.01 a day later", func(t *testing.T) {
		repo := storage.NewMockRepository()
		xero := pendingTransaction("xe-1", storage.ProviderXero, "100.00", day)
		repo.AddTransaction(xero)

		qb := pendingTransaction("qb-1", storage.ProviderQuickBooks, "100.01", day.AddDate(0, 0, 1))
		repo.AddTransaction(qb)

		matched, err := newTestMatcher(repo).Reconcile(qb)
		require.NoError(t, err)
		assert.True(t, matched)
		assert.Equal(t, "xe-1", qb.MatchedTransactionID)

		stored, err := repo.GetTransaction("xe-1")
		require.NoError(t, err)
		assert.Equal(t, storage.StatusMatched, stored.Status)
		assert.Equal(t, "qb-1", stored.MatchedTransactionID)
	})

	t.Run("store conflict propagates", func(t *testing.T) {
		repo := storage.NewMockRepository()
		repo.AddTransaction(pendingTransaction("qb-1", storage.ProviderQuickBooks, "100.00", day))
		repo.MarkMatchedErr = storage.ErrConflict

		txn := pendingTransaction("xe-1", storage.ProviderXero, "100.00", day)
		repo.AddTransaction(txn)

		matched, err := newTestMatcher(repo).Reconcile(txn)
		assert.ErrorIs(t, err, storage.ErrConflict)
		assert.False(t, matched)
		// The in-memory transaction is untouched on failure
		assert.Equal(t, storage.StatusPending, txn.Status)
	})
}
