package progression

import (
	"context"
	"strings"
	"time"

	"github.com/JunoAX/greenquest-go/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Delta is one requested change to an account's points and badges
type Delta struct {
	Points         int
	Badges         []string
	Origin         models.DeltaOrigin
	Source         string
	IdempotencyKey string
	Reason         string
}

// Transition is the before/after pair of one ledger application
type Transition struct {
	Before    *models.Account
	After     *models.Account
	Applied   bool // false when the idempotency key had already been claimed
	NewBadges []string
}

// LeveledUp reports whether the transition raised the level
func (t *Transition) LeveledUp() bool {
	return t.Applied && t.After.Level > t.Before.Level
}

// Ledger owns every mutation of points, level and badges
type Ledger struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

func NewLedger(store Store, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{store: store, logger: logger, now: time.Now}
}

// ApplyDelta applies d to the account as one atomic transition
func (l *Ledger) ApplyDelta(ctx context.Context, accountID uuid.UUID, d Delta) (*Transition, error) {
	var tr *Transition
	err := l.store.WithAccount(ctx, accountID, func(tx AccountTx) error {
		var err error
		tr, err = l.Apply(ctx, tx, d)
		return err
	})
	if err != nil {
		return nil, err
	}
	return tr, nil
}

// Apply applies d inside a transaction the caller already holds, so it can be
// combined with other writes against the same locked account.
func (l *Ledger) Apply(ctx context.Context, tx AccountTx, d Delta) (*Transition, error) {
	if d.Origin == "" {
		d.Origin = models.OriginGameplay
	}
	if d.Origin == models.OriginGameplay && d.Points < 0 {
		return nil, ErrInvalidDelta.WithMessage("Gameplay cannot remove points")
	}

	before := tx.Account()
	if before.DeactivatedAt != nil {
		return nil, ErrAccountNotFound
	}

	if d.IdempotencyKey != "" {
		claimed, err := tx.ClaimIdempotencyKey(ctx, d.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if !claimed {
			l.logger.Debug("Ledger delta already applied",
				zap.String("account_id", before.ID.String()),
				zap.String("idempotency_key", d.IdempotencyKey))
			return &Transition{Before: before, After: before, Applied: false}, nil
		}
	}

	newPoints := before.Points + d.Points
	if newPoints < 0 {
		return nil, ErrInvalidDelta.WithMessage("Correction would leave %d points", newPoints)
	}

	newBadges := newBadgeSet(before, d.Badges)
	if d.Points == 0 && len(newBadges) == 0 {
		return &Transition{Before: before, After: before, Applied: true}, nil
	}

	now := l.now().UTC()
	after := before.Clone()
	after.Points = newPoints
	after.Level = Level(newPoints)
	after.Badges = append(after.Badges, newBadges...)
	after.UpdatedAt = now

	if err := tx.SaveAccount(ctx, after); err != nil {
		return nil, err
	}

	entry := &models.LedgerEntry{
		ID:          uuid.New(),
		AccountID:   after.ID,
		PointsDelta: d.Points,
		BadgesAdded: newBadges,
		Origin:      d.Origin,
		Source:      d.Source,
		CreatedAt:   now,
	}
	if d.IdempotencyKey != "" {
		key := d.IdempotencyKey
		entry.IdempotencyKey = &key
	}
	if d.Reason != "" {
		reason := d.Reason
		entry.Reason = &reason
	}
	if err := tx.InsertLedgerEntry(ctx, entry); err != nil {
		return nil, err
	}

	l.logger.Info("Ledger transition applied",
		zap.String("account_id", after.ID.String()),
		zap.String("source", d.Source),
		zap.Int("points_delta", d.Points),
		zap.Int("points", after.Points),
		zap.Int("level", after.Level),
		zap.Strings("badges_added", newBadges))

	return &Transition{Before: before, After: after, Applied: true, NewBadges: newBadges}, nil
}

// newBadgeSet returns the requested badges the account does not hold yet, in request order
func newBadgeSet(account *models.Account, requested []string) []string {
	added := []string{}
	seen := make(map[string]bool, len(requested))
	for _, b := range requested {
		b = strings.TrimSpace(b)
		if b == "" || seen[b] || account.HasBadge(b) {
			continue
		}
		seen[b] = true
		added = append(added, b)
	}
	return added
}
