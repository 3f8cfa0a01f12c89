package progression

import (
	"context"
	"strings"
	"time"

	"github.com/JunoAX/greenquest-go/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ProgressInput is one game session result reported by the client
type ProgressInput struct {
	GameType     models.GameType
	Level        int
	Score        int
	Completed    bool
	SessionToken string
}

func (in ProgressInput) validate() error {
	if !in.GameType.Valid() {
		return Validation("Unknown game type %q", in.GameType)
	}
	if in.Level < 1 {
		return Validation("Level must be at least 1")
	}
	if in.Score < 0 {
		return Validation("Score cannot be negative")
	}
	return nil
}

// RecordOutcome is the appended log row plus the ledger transition it carried, if any
type RecordOutcome struct {
	Record     models.GameProgressRecord
	Transition *Transition
}

// PointsEarned is the delta this append applied to the account
func (o *RecordOutcome) PointsEarned() int {
	if o.Transition == nil || !o.Transition.Applied {
		return 0
	}
	return o.Transition.After.Points - o.Transition.Before.Points
}

// Recorder appends game sessions and forwards completed ones to the ledger
type Recorder struct {
	store  Store
	ledger *Ledger
	logger *zap.Logger
	now    func() time.Time
}

func NewRecorder(store Store, ledger *Ledger, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{store: store, ledger: ledger, logger: logger, now: time.Now}
}

// Record appends the session and, when it is completed, applies its score and
// milestone badges once per session token.
func (r *Recorder) Record(ctx context.Context, accountID uuid.UUID, in ProgressInput) (*RecordOutcome, error) {
	return r.record(ctx, accountID, in, true)
}

// Append logs the session without any ledger effect
func (r *Recorder) Append(ctx context.Context, accountID uuid.UUID, in ProgressInput) (*RecordOutcome, error) {
	return r.record(ctx, accountID, in, false)
}

func (r *Recorder) record(ctx context.Context, accountID uuid.UUID, in ProgressInput, award bool) (*RecordOutcome, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	in.SessionToken = strings.TrimSpace(in.SessionToken)
	if in.SessionToken == "" {
		in.SessionToken = uuid.NewString()
	}

	var outcome *RecordOutcome
	err := r.store.WithAccount(ctx, accountID, func(tx AccountTx) error {
		now := r.now().UTC()
		rec := models.GameProgressRecord{
			ID:           uuid.New(),
			AccountID:    accountID,
			GameType:     in.GameType,
			Level:        in.Level,
			Score:        in.Score,
			Completed:    in.Completed,
			SessionToken: in.SessionToken,
			CreatedAt:    now,
		}
		if in.Completed {
			rec.CompletedAt = &now
		}

		var tr *Transition
		if award && in.Completed {
			logged, err := tx.ListProgress(ctx)
			if err != nil {
				return err
			}
			history := creditedHistory(logged)
			history = append(history, rec)

			tr, err = r.ledger.Apply(ctx, tx, Delta{
				Points:         in.Score,
				Badges:         MilestoneBadges(history),
				Origin:         models.OriginGameplay,
				Source:         "game:" + string(in.GameType),
				IdempotencyKey: SessionKey(in.SessionToken),
			})
			if err != nil {
				return err
			}
			rec.Awarded = tr.Applied
		}

		if err := tx.InsertProgress(ctx, &rec); err != nil {
			return err
		}
		outcome = &RecordOutcome{Record: rec, Transition: tr}
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("Game progress recorded",
		zap.String("account_id", accountID.String()),
		zap.String("game_type", string(in.GameType)),
		zap.Int("level", in.Level),
		zap.Int("score", in.Score),
		zap.Bool("completed", in.Completed),
		zap.Bool("awarded", outcome.Record.Awarded))
	return outcome, nil
}

// creditedHistory keeps the rows that earned points. Log-only sessions and
// replayed tokens must not feed milestone badges.
func creditedHistory(rows []models.GameProgressRecord) []models.GameProgressRecord {
	credited := make([]models.GameProgressRecord, 0, len(rows)+1)
	for _, r := range rows {
		if r.Awarded {
			credited = append(credited, r)
		}
	}
	return credited
}

// List returns the account's game log, newest first
func (r *Recorder) List(ctx context.Context, accountID uuid.UUID) ([]models.GameProgressRecord, error) {
	return r.store.ListProgress(ctx, accountID)
}

// SessionKey is the ledger idempotency key for a game session token
func SessionKey(token string) string {
	return "session:" + token
}
