package intercompany

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/quoryx/quoryx-backend/internal/infrastructure/storage"
	"github.com/quoryx/quoryx-backend/internal/observability"
)

// ErrInvalidTransition is returned when a requested status does not rank
// strictly above the pair's current status.
var ErrInvalidTransition = errors.New("status must move forward")

// statusRank fixes the lifecycle ordering: unmatched < matched < reconciled.
var statusRank = map[storage.PairStatus]int{
	storage.PairStatusUnmatched:  0,
	storage.PairStatusMatched:    1,
	storage.PairStatusReconciled: 2,
}

// Rank returns the position of the status in the ordered lifecycle.
// The second return is false for unknown statuses.
func Rank(status storage.PairStatus) (int, bool) {
	rank, ok := statusRank[status]
	return rank, ok
}

// ValidateTransition checks that requested ranks strictly above current.
// Equal and backward requests fail with ErrInvalidTransition.
func ValidateTransition(current, requested storage.PairStatus) error {
	currentRank, ok := Rank(current)
	if !ok {
		return fmt.Errorf("unknown current status %q", current)
	}
	requestedRank, ok := Rank(requested)
	if !ok {
		return fmt.Errorf("unknown requested status %q", requested)
	}
	if requestedRank <= currentRank {
		return fmt.Errorf("cannot transition from %q to %q: %w", current, requested, ErrInvalidTransition)
	}
	return nil
}

// Lifecycle applies operator-driven status transitions to pairs.
type Lifecycle struct {
	pairs  storage.IntercompanyRepository
	logger *slog.Logger
}

// NewLifecycle creates a lifecycle backed by the given pair store.
func NewLifecycle(pairs storage.IntercompanyRepository, logger *slog.Logger) *Lifecycle {
	if logger == nil {
		logger = slog.Default()
	}
	return &Lifecycle{
		pairs:  pairs,
		logger: logger,
	}
}

// Transition moves a pair to the requested status. The transition is
// validated before any store write, and the write itself is gated on the
// status observed here, so a concurrent transition surfaces as a conflict.
// Returns the updated pair.
func (l *Lifecycle) Transition(pairID string, requested storage.PairStatus) (*storage.IntercompanyPair, error) {
	pair, err := l.pairs.GetPair(pairID)
	if err != nil {
		return nil, err
	}

	if err := ValidateTransition(pair.Status, requested); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := l.pairs.UpdatePairStatus(pairID, pair.Status, requested, now); err != nil {
		return nil, fmt.Errorf("updating pair status: %w", err)
	}

	observability.PairTransitions.WithLabelValues(string(requested)).Inc()
	l.logger.Info("intercompany pair transitioned",
		"pair_id", pairID, "from", pair.Status, "to", requested)

	pair.Status = requested
	pair.UpdatedAt = now
	return pair, nil
}
