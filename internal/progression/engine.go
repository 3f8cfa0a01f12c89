package progression

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/JunoAX/greenquest-go/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Options tunes engine behaviour that comes from configuration
type Options struct {
	AutoApprove      bool
	MaxProofBytes    int
	LeaderboardLimit int
	LeaderboardMax   int
	Emitter          EmitterConfig
}

// Engine is the progression and rewards engine. Every account mutation goes
// through it so that committed transitions can be turned into notifications.
type Engine struct {
	store   Store
	catalog Catalog
	logger  *zap.Logger
	opts    Options
	now     func() time.Time

	Ledger        *Ledger
	Challenges    *ChallengeGate
	Progress      *Recorder
	Leaderboard   *Ranker
	Notifications *Emitter
}

func NewEngine(store Store, catalog Catalog, proofs ProofStore, broadcaster Broadcaster, opts Options, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	ledger := NewLedger(store, logger.Named("ledger"))
	return &Engine{
		store:         store,
		catalog:       catalog,
		logger:        logger,
		opts:          opts,
		now:           time.Now,
		Ledger:        ledger,
		Challenges:    NewChallengeGate(store, catalog, proofs, ledger, opts.MaxProofBytes, logger.Named("challenges")),
		Progress:      NewRecorder(store, ledger, logger.Named("progress")),
		Leaderboard:   NewRanker(store, opts.LeaderboardLimit, opts.LeaderboardMax),
		Notifications: NewEmitter(store, broadcaster, opts.Emitter, logger.Named("notifications")),
	}
}

// Close stops the notification pipeline after draining it
func (e *Engine) Close(ctx context.Context) error {
	return e.Notifications.Close(ctx)
}

// NewAccount is a registration request with an already hashed password
type NewAccount struct {
	Username     string
	Email        string
	PasswordHash string
	IsAdmin      bool
}

// Register creates an account at zero points and level 1
func (e *Engine) Register(ctx context.Context, in NewAccount) (*models.Account, error) {
	username := strings.TrimSpace(in.Username)
	email := NormalizeEmail(in.Email)
	if username == "" {
		return nil, Validation("username is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, Validation("email is invalid")
	}

	now := e.now().UTC()
	account := &models.Account{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: in.PasswordHash,
		Points:       0,
		Level:        Level(0),
		Badges:       []string{},
		IsAdmin:      in.IsAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := e.store.CreateAccount(ctx, account); err != nil {
		return nil, err
	}

	e.logger.Info("Account registered",
		zap.String("account_id", account.ID.String()),
		zap.String("username", account.Username))
	return account, nil
}

// Account returns an active account
func (e *Engine) Account(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	account, err := e.store.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	if account.DeactivatedAt != nil {
		return nil, ErrAccountNotFound
	}
	return account, nil
}

// AccountByEmail returns the account including its password hash, for login
func (e *Engine) AccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	return e.store.GetAccountByEmail(ctx, NormalizeEmail(email))
}

// NormalizeEmail is the canonical form stored and looked up
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SubmitProof uploads the proof and records a pending submission. With
// auto-approval enabled the submission is approved straight away through the
// same path an admin review takes.
func (e *Engine) SubmitProof(ctx context.Context, accountID uuid.UUID, challengeID, imageData string) (*models.ChallengeSubmission, error) {
	submission, err := e.Challenges.SubmitProof(ctx, accountID, challengeID, imageData)
	if err != nil {
		return nil, err
	}
	if !e.opts.AutoApprove {
		return submission, nil
	}

	outcome, err := e.ApproveSubmission(ctx, submission.ID, uuid.Nil)
	if err != nil {
		e.logger.Error("Auto-approval failed",
			zap.String("submission_id", submission.ID.String()),
			zap.Error(err))
		return submission, nil
	}
	return &outcome.Submission, nil
}

// ApproveSubmission approves a submission and raises the resulting events
func (e *Engine) ApproveSubmission(ctx context.Context, submissionID, reviewerID uuid.UUID) (*ReviewOutcome, error) {
	outcome, err := e.Challenges.Approve(ctx, submissionID, reviewerID)
	if err != nil {
		return nil, err
	}
	if outcome.Transition != nil && outcome.Transition.Applied {
		events := []Event{{
			Type:      EventChallengeCompleted,
			AccountID: outcome.Submission.AccountID,
			Challenge: outcome.Challenge.Title,
			Points:    outcome.Challenge.PointsReward,
		}}
		e.Notifications.Emit(append(events, e.transitionEvents(ctx, outcome.Transition)...)...)
	}
	return outcome, nil
}

// RejectSubmission rejects a pending submission
func (e *Engine) RejectSubmission(ctx context.Context, submissionID, reviewerID uuid.UUID, note string) (*ReviewOutcome, error) {
	return e.Challenges.Reject(ctx, submissionID, reviewerID, note)
}

// RecordProgress logs a game session reported by the client. Quiz sessions are
// only logged here; quiz points are credited by SubmitQuiz.
func (e *Engine) RecordProgress(ctx context.Context, accountID uuid.UUID, in ProgressInput) (*RecordOutcome, error) {
	if in.GameType == models.GameQuiz {
		return e.Progress.Append(ctx, accountID, in)
	}
	outcome, err := e.Progress.Record(ctx, accountID, in)
	if err != nil {
		return nil, err
	}
	e.Notifications.Emit(e.transitionEvents(ctx, outcome.Transition)...)
	return outcome, nil
}

// QuizOutcome is a scored quiz attempt together with the session it recorded
type QuizOutcome struct {
	Result   QuizResult
	Progress *RecordOutcome
}

// SubmitQuiz scores the attempt against the question bank and credits the score
// once per attempt token.
func (e *Engine) SubmitQuiz(ctx context.Context, accountID uuid.UUID, answers []models.QuizAnswer, attemptToken string) (*QuizOutcome, error) {
	if len(answers) == 0 {
		return nil, ErrEmptySubmission
	}
	ids := make([]string, 0, len(answers))
	for _, a := range answers {
		ids = append(ids, a.QuestionID)
	}
	key, err := e.catalog.AnswerKey(ctx, ids)
	if err != nil {
		return nil, err
	}
	result, err := ScoreQuiz(answers, key)
	if err != nil {
		return nil, err
	}

	progress, err := e.Progress.Record(ctx, accountID, ProgressInput{
		GameType:     models.GameQuiz,
		Level:        1,
		Score:        result.ScorePercent,
		Completed:    true,
		SessionToken: attemptToken,
	})
	if err != nil {
		return nil, err
	}
	e.Notifications.Emit(e.transitionEvents(ctx, progress.Transition)...)
	return &QuizOutcome{Result: result, Progress: progress}, nil
}

// Adjustment is an administrative correction
type Adjustment struct {
	PointsDelta    int
	Badges         []string
	Reason         string
	IdempotencyKey string
}

// AdjustAccount applies an administrative correction. It is the only path that may remove points.
func (e *Engine) AdjustAccount(ctx context.Context, accountID uuid.UUID, adj Adjustment, adminID uuid.UUID) (*Transition, error) {
	reason := strings.TrimSpace(adj.Reason)
	if reason == "" {
		return nil, Validation("reason is required")
	}
	delta := Delta{
		Points: adj.PointsDelta,
		Badges: adj.Badges,
		Origin: models.OriginAdmin,
		Source: "correction:" + adminID.String(),
		Reason: reason,
	}
	if adj.IdempotencyKey != "" {
		delta.IdempotencyKey = "admin:" + adj.IdempotencyKey
	}
	tr, err := e.Ledger.ApplyDelta(ctx, accountID, delta)
	if err != nil {
		return nil, err
	}
	e.Notifications.Emit(e.transitionEvents(ctx, tr)...)
	return tr, nil
}

// Remind raises a reminder notification for the account
func (e *Engine) Remind(ctx context.Context, accountID uuid.UUID, message string) error {
	return e.Notifications.Remind(ctx, accountID, message)
}

// transitionEvents derives the events of a committed transition: a level-up,
// each newly earned badge, and each challenge whose threshold the delta crossed.
func (e *Engine) transitionEvents(ctx context.Context, tr *Transition) []Event {
	if tr == nil || !tr.Applied {
		return nil
	}
	accountID := tr.After.ID

	events := []Event{}
	if tr.LeveledUp() {
		events = append(events, Event{Type: EventLevelUp, AccountID: accountID, Level: tr.After.Level})
	}
	for _, b := range tr.NewBadges {
		events = append(events, Event{Type: EventBadgeEarned, AccountID: accountID, Badge: b})
	}

	if tr.After.Points <= tr.Before.Points {
		return events
	}
	challenges, err := e.catalog.Challenges(ctx)
	if err != nil {
		e.logger.Warn("Failed to load challenges for unlock events", zap.Error(err))
		return events
	}
	for i := range challenges {
		c := &challenges[i]
		if !Unlocked(tr.Before, c) && Unlocked(tr.After, c) {
			events = append(events, Event{Type: EventChallengeUnlocked, AccountID: accountID, Challenge: c.Title})
		}
	}
	return events
}
