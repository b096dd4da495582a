package intercompany

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quoryx/quoryx-backend/internal/infrastructure/storage"
)

func newTestDetector(repo *storage.MockRepository) *Detector {
	return NewDetector(repo, repo, nil)
}

func eligibleTransaction(id, entityID string, txnType storage.TransactionType, amount, reference string) *storage.Transaction {
	return &storage.Transaction{
		ID:              id,
		EntityID:        entityID,
		Provider:        storage.ProviderXero,
		ExternalID:      "ext-" + id,
		Amount:          decimal.RequireFromString(amount),
		Currency:        "USD",
		TransactionDate: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		TransactionType: txnType,
		Reference:       reference,
		Status:          storage.StatusPending,
	}
}

func TestDetect(t *testing.T) {
	t.Run("pairs spend and receive across entities", func(t *testing.T) {
		repo := storage.NewMockRepository()
		repo.AddTransaction(eligibleTransaction("a-1", "entity-a", storage.TransactionTypeSpend, "500.00", "INV-100"))
		repo.AddTransaction(eligibleTransaction("b-1", "entity-b", storage.TransactionTypeReceive, "500.00", "INV-100"))

		result, err := newTestDetector(repo).Detect()
		require.NoError(t, err)

		assert.Equal(t, 1, result.PairsCreated)
		assert.Equal(t, 0, result.PairsSkipped)
		require.Len(t, result.Pairs, 1)
		assert.Equal(t, "INV-100", result.Pairs[0].Reference)
		assert.Equal(t, "ext-a-1", result.Pairs[0].SourceTransactionID)
		assert.Equal(t, "ext-b-1", result.Pairs[0].TargetTransactionID)

		pairs := repo.AllPairs()
		require.Len(t, pairs, 1)
		assert.Equal(t, storage.PairStatusUnmatched, pairs[0].Status)
		assert.Equal(t, "entity-a", pairs[0].SourceEntityID)
		assert.Equal(t, "entity-b", pairs[0].TargetEntityID)
	})

	t.Run("second run creates nothing and skips everything", func(t *testing.T) {
		repo := storage.NewMockRepository()
		repo.AddTransaction(eligibleTransaction("a-1", "entity-a", storage.TransactionTypeSpend, "500.00", "INV-100"))
		repo.AddTransaction(eligibleTransaction("b-1", "entity-b", storage.TransactionTypeReceive, "500.00", "INV-100"))

		detector := newTestDetector(repo)

		first, err := detector.Detect()
		require.NoError(t, err)
		require.Equal(t, 1, first.PairsCreated)

		second, err := detector.Detect()
		require.NoError(t, err)
		assert.Equal(t, 0, second.PairsCreated)
		assert.Equal(t, 1, second.PairsSkipped)
		assert.Empty(t, second.Pairs)
		assert.Len(t, repo.AllPairs(), 1)
	})

	t.Run("same-entity groups are never paired", func(t *testing.T) {
		repo := storage.NewMockRepository()
		repo.AddTransaction(eligibleTransaction("a-1", "entity-a", storage.TransactionTypeSpend, "500.00", "INV-200"))
		repo.AddTransaction(eligibleTransaction("a-2", "entity-a", storage.TransactionTypeReceive, "500.00", "INV-200"))

		result, err := newTestDetector(repo).Detect()
		require.NoError(t, err)

		assert.Equal(t, 0, result.PairsCreated)
		assert.Equal(t, 0, result.PairsSkipped)
		assert.Empty(t, repo.AllPairs())
	})

	t.Run("amount mismatch within a group is skipped silently", func(t *testing.T) {
		repo := storage.NewMockRepository()
		repo.AddTransaction(eligibleTransaction("a-1", "entity-a", storage.TransactionTypeSpend, "500.00", "INV-300"))
		repo.AddTransaction(eligibleTransaction("b-1", "entity-b", storage.TransactionTypeReceive, "499.99", "INV-300"))

		result, err := newTestDetector(repo).Detect()
		require.NoError(t, err)

		assert.Equal(t, 0, result.PairsCreated)
		assert.Equal(t, 0, result.PairsSkipped)
	})

	t.Run("currency mismatch within a group is skipped silently", func(t *testing.T) {
		repo := storage.NewMockRepository()
		repo.AddTransaction(eligibleTransaction("a-1", "entity-a", storage.TransactionTypeSpend, "500.00", "INV-400"))
		receive := eligibleTransaction("b-1", "entity-b", storage.TransactionTypeReceive, "500.00", "INV-400")
		receive.Currency = "EUR"
		repo.AddTransaction(receive)

		result, err := newTestDetector(repo).Detect()
		require.NoError(t, err)

		assert.Equal(t, 0, result.PairsCreated)
	})

	t.Run("one spend can pair with multiple receives", func(t *testing.T) {
		repo := storage.NewMockRepository()
		repo.AddTransaction(eligibleTransaction("a-1", "entity-a", storage.TransactionTypeSpend, "250.00", "INV-500"))
		repo.AddTransaction(eligibleTransaction("b-1", "entity-b", storage.TransactionTypeReceive, "250.00", "INV-500"))
		repo.AddTransaction(eligibleTransaction("c-1", "entity-c", storage.TransactionTypeReceive, "250.00", "INV-500"))

		result, err := newTestDetector(repo).Detect()
		require.NoError(t, err)

		assert.Equal(t, 2, result.PairsCreated)
		assert.Len(t, repo.AllPairs(), 2)
	})

	t.Run("transactions missing entity type or reference are ignored", func(t *testing.T) {
		repo := storage.NewMockRepository()
		noEntity := eligibleTransaction("a-1", "", storage.TransactionTypeSpend, "500.00", "INV-600")
		repo.AddTransaction(noEntity)
		noRef := eligibleTransaction("b-1", "entity-b", storage.TransactionTypeReceive, "500.00", "")
		repo.AddTransaction(noRef)

		result, err := newTestDetector(repo).Detect()
		require.NoError(t, err)

		assert.Equal(t, 0, result.PairsCreated)
		assert.Empty(t, repo.AllPairs())
	})

	t.Run("entity A spend and entity B receive on INV-100", func(t *testing.T) {
		repo := storage.NewMockRepository()
		spend := eligibleTransaction("a-1", "entity-a", storage.TransactionTypeSpend, "500.00", "INV-100")
		spend.Description = "Management fee Q1"
		repo.AddTransaction(spend)
		repo.AddTransaction(eligibleTransaction("b-1", "entity-b", storage.TransactionTypeReceive, "500.00", "INV-100"))

		result, err := newTestDetector(repo).Detect()
		require.NoError(t, err)

		require.Equal(t, 1, result.PairsCreated)
		summary := result.Pairs[0]
		assert.Equal(t, "INV-100", summary.Reference)
		assert.True(t, summary.Amount.Equal(decimal.RequireFromString("500.00")))
		assert.Equal(t, "USD", summary.Currency)
		assert.Equal(t, "Management fee Q1", summary.Description)
	})

	t.Run("insert failure propagates", func(t *testing.T) {
		repo := storage.NewMockRepository()
		repo.AddTransaction(eligibleTransaction("a-1", "entity-a", storage.TransactionTypeSpend, "500.00", "INV-700"))
		repo.AddTransaction(eligibleTransaction("b-1", "entity-b", storage.TransactionTypeReceive, "500.00", "INV-700"))
		repo.InsertPairsErr = storage.ErrConflict

		_, err := newTestDetector(repo).Detect()
		assert.ErrorIs(t, err, storage.ErrConflict)
	})
}
