// Package settlement moves live debts into the permanent settlement history.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/tripsplit/internal/events"
	"github.com/mmynk/tripsplit/internal/metrics"
	"github.com/mmynk/tripsplit/internal/models"
	"github.com/mmynk/tripsplit/internal/session"
	"github.com/mmynk/tripsplit/internal/storage"
)

var (
	// ErrNothingToSettle is returned when there are no unsettled debts.
	ErrNothingToSettle = errors.New("no debts to settle")

	// ErrPersist is returned when the history write fails. Nothing was
	// written and the session is unchanged.
	ErrPersist = errors.New("failed to persist settlement")
)

// Manager settles debts one trip at a time.
type Manager struct {
	store     storage.SettlementStore
	publisher events.Publisher
	logger    *slog.Logger
	now       func() time.Time

	mu        sync.Mutex
	tripLocks map[string]*sync.Mutex
}

// NewManager creates a manager. A nil publisher disables events.
func NewManager(store storage.SettlementStore, publisher events.Publisher, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:     store,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
		tripLocks: make(map[string]*sync.Mutex),
	}
}

func (m *Manager) getTripLock(tripID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	lock, ok := m.tripLocks[tripID]
	if !ok {
		lock = &sync.Mutex{}
		m.tripLocks[tripID] = lock
	}
	return lock
}

// SettleAll settles every live debt of the session.
func (m *Manager) SettleAll(ctx context.Context, sess *session.Session, settledBy string) ([]models.SettledDebt, error) {
	return m.SettleUp(ctx, sess, sess.Debts(), settledBy)
}

// SettleUp records debts as settled in one atomic write, then clears the
// session's live debts and triggers a recalculation.
//
// Debts whose source expenses are all settled already are dropped, so two
// overlapping settlements of the same trip cannot record a debt twice. If no
// debt remains ErrNothingToSettle is returned. If the write fails the error
// wraps ErrPersist and the session keeps its debts and balances.
func (m *Manager) SettleUp(ctx context.Context, sess *session.Session, debts []models.Debt, settledBy string) ([]models.SettledDebt, error) {
	tripID := sess.TripID()
	logger := m.logger.With("trip_id", tripID)

	if len(debts) == 0 {
		metrics.Settlements.WithLabelValues(metrics.OutcomeEmpty).Inc()
		return nil, ErrNothingToSettle
	}

	lock := m.getTripLock(tripID)
	lock.Lock()
	defer lock.Unlock()

	history, err := m.store.ListSettledDebts(ctx, tripID)
	if err != nil {
		metrics.Settlements.WithLabelValues(metrics.OutcomeFailed).Inc()
		logger.Error("Failed to read settlement history", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrPersist, err)
	}
	pending := unsettled(debts, storage.SettledExpenseIDs(history))
	if len(pending) == 0 {
		metrics.Settlements.WithLabelValues(metrics.OutcomeEmpty).Inc()
		return nil, ErrNothingToSettle
	}

	now := m.now().UnixMilli()
	records := make([]models.SettledDebt, len(pending))
	for i, d := range pending {
		d.SourceExpenseIDs = append([]string(nil), d.Sources()...)
		records[i] = models.SettledDebt{
			ID:        uuid.New().String(),
			TripID:    tripID,
			Debt:      d,
			Settled:   true,
			SettledAt: now,
			CreatedAt: now,
		}
	}

	if err := m.store.SaveSettledDebts(ctx, tripID, records); err != nil {
		metrics.Settlements.WithLabelValues(metrics.OutcomeFailed).Inc()
		logger.Error("Failed to save settled debts", "count", len(records), "error", err)
		return nil, fmt.Errorf("%w: %w", ErrPersist, err)
	}

	sess.ApplySettlement(records)
	metrics.Settlements.WithLabelValues(metrics.OutcomeSettled).Inc()
	metrics.SettledDebts.Add(float64(len(records)))
	logger.Info("Debts settled", "count", len(records), "settled_by", settledBy)

	if m.publisher != nil {
		event := events.NewDebtsSettled(tripID, settledBy, records)
		if err := m.publisher.Publish(ctx, tripID, event); err != nil {
			logger.Warn("Failed to publish settlement event", "error", err)
		}
	}

	// The history write already succeeded; a failed pass only leaves the
	// cleared state in place until the next trigger.
	if _, err := sess.Recalculate(ctx); err != nil {
		logger.Warn("Recalculation after settlement failed", "error", err)
	}

	return records, nil
}

// unsettled keeps debts with a positive amount and at least one source not
// yet in history.
func unsettled(debts []models.Debt, settled map[string]bool) []models.Debt {
	var out []models.Debt
	for _, d := range debts {
		if d.Amount <= 0 || d.FromUser == d.ToUser {
			continue
		}
		sources := d.Sources()
		open := len(sources) == 0
		for _, id := range sources {
			if !settled[id] {
				open = true
				break
			}
		}
		if open {
			out = append(out, d)
		}
	}
	return out
}
