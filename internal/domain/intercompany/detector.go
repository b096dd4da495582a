// Package intercompany implements detection of cross-entity transaction
// pairs and the forward-only status lifecycle of detected pairs.
//
// A pair is an outgoing (SPEND) transaction at one entity and an incoming
// (RECEIVE) transaction at another, sharing a reference, with identical
// amount and currency. Detection is a batch scan and is idempotent: the
// (source external id, target external id) combination is the natural key.
package intercompany

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/quoryx/quoryx-backend/internal/infrastructure/storage"
	"github.com/quoryx/quoryx-backend/internal/observability"
)

// PairSummary is a lightweight view of one newly created pair.
type PairSummary struct {
	Reference           string          `json:"reference"`
	Amount              decimal.Decimal `json:"amount"`
	Currency            string          `json:"currency"`
	Description         string          `json:"description,omitempty"`
	SourceTransactionID string          `json:"source_transaction_id"`
	TargetTransactionID string          `json:"target_transaction_id"`
}

// DetectionResult reports the outcome of one detection run. Pairs lists
// summaries for newly created pairs only.
type DetectionResult struct {
	PairsCreated int           `json:"pairs_created"`
	PairsSkipped int           `json:"pairs_skipped"`
	Pairs        []PairSummary `json:"pairs"`
}

// Detector scans all eligible transactions and materializes intercompany
// pairs in the unmatched state.
type Detector struct {
	transactions storage.TransactionRepository
	pairs        storage.IntercompanyRepository
	logger       *slog.Logger
}

// NewDetector creates a detector backed by the given stores.
func NewDetector(transactions storage.TransactionRepository, pairs storage.IntercompanyRepository, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{
		transactions: transactions,
		pairs:        pairs,
		logger:       logger,
	}
}

// Detect groups eligible transactions by reference and pairs every
// cross-entity SPEND/RECEIVE combination with identical amount and
// currency. Pairs whose natural key already exists are counted as skipped.
// All new pairs are persisted in a single commit.
//
// A transaction may appear in more than one pair when a reference group
// has multiple opposite-side counterparts; no one-to-one pairing is
// enforced within a group.
func (d *Detector) Detect() (*DetectionResult, error) {
	eligible, err := d.transactions.ListIntercompanyEligible()
	if err != nil {
		return nil, fmt.Errorf("listing eligible transactions: %w", err)
	}

	byRef := make(map[string][]*storage.Transaction)
	var refs []string
	for _, txn := range eligible {
		if _, seen := byRef[txn.Reference]; !seen {
			refs = append(refs, txn.Reference)
		}
		byRef[txn.Reference] = append(byRef[txn.Reference], txn)
	}

	result := &DetectionResult{Pairs: []PairSummary{}}
	var created []*storage.IntercompanyPair
	now := time.Now().UTC()

	for _, ref := range refs {
		group := byRef[ref]

		// Pairing requires cross-entity correlation
		if countDistinctEntities(group) < 2 {
			continue
		}

		var spends, receives []*storage.Transaction
		for _, txn := range group {
			switch txn.TransactionType {
			case storage.TransactionTypeSpend:
				spends = append(spends, txn)
			case storage.TransactionTypeReceive:
				receives = append(receives, txn)
			}
		}

		for _, spend := range spends {
			for _, receive := range receives {
				if spend.EntityID == receive.EntityID {
					continue
				}
				if !spend.Amount.Equal(receive.Amount) || spend.Currency != receive.Currency {
					continue
				}

				exists, err := d.pairs.PairExists(spend.ExternalID, receive.ExternalID)
				if err != nil {
					return nil, fmt.Errorf("checking pair existence: %w", err)
				}
				if exists {
					result.PairsSkipped++
					continue
				}

				description := spend.Description
				if description == "" {
					description = receive.Description
				}

				created = append(created, &storage.IntercompanyPair{
					ID:                  uuid.NewString(),
					SourceEntityID:      spend.EntityID,
					TargetEntityID:      receive.EntityID,
					Amount:              spend.Amount,
					Currency:            spend.Currency,
					Description:         description,
					TransactionDate:     spend.TransactionDate,
					Status:              storage.PairStatusUnmatched,
					SourceTransactionID: spend.ExternalID,
					TargetTransactionID: receive.ExternalID,
					CreatedAt:           now,
					UpdatedAt:           now,
				})
				result.Pairs = append(result.Pairs, PairSummary{
					Reference:           ref,
					Amount:              spend.Amount,
					Currency:            spend.Currency,
					Description:         spend.Description,
					SourceTransactionID: spend.ExternalID,
					TargetTransactionID: receive.ExternalID,
				})
				result.PairsCreated++
			}
		}
	}

	if err := d.pairs.InsertPairs(created); err != nil {
		return nil, fmt.Errorf("inserting pairs: %w", err)
	}

	observability.IntercompanyPairsCreated.Add(float64(result.PairsCreated))
	observability.IntercompanyPairsSkipped.Add(float64(result.PairsSkipped))
	d.logger.Info("intercompany detection complete",
		"pairs_created", result.PairsCreated,
		"pairs_skipped", result.PairsSkipped)

	return result, nil
}

func countDistinctEntities(group []*storage.Transaction) int {
	entities := make(map[string]struct{}, len(group))
	for _, txn := range group {
		entities[txn.EntityID] = struct{}{}
	}
	return len(entities)
}
