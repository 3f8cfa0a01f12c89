package progression

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/JunoAX/greenquest-go/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Unlocked is the challenge gate predicate. It is never stored.
func Unlocked(account *models.Account, challenge *models.Challenge) bool {
	return account.Points >= challenge.PointsRequired
}

// ChallengeStatus is one catalog challenge as seen by one account
type ChallengeStatus struct {
	Challenge models.Challenge
	Unlocked  bool
	Status    models.SubmissionStatus
}

// Submitted reports whether a live (pending or approved) submission exists
func (s ChallengeStatus) Submitted() bool {
	return s.Status == models.SubmissionPending || s.Status == models.SubmissionApproved
}

// ToResponse flattens the status into the API shape
func (s ChallengeStatus) ToResponse() models.ChallengeListResponse {
	return models.ChallengeListResponse{
		ID:             s.Challenge.ID,
		Category:       s.Challenge.Category,
		Title:          s.Challenge.Title,
		Description:    s.Challenge.Description,
		PointsRequired: s.Challenge.PointsRequired,
		PointsReward:   s.Challenge.PointsReward,
		Badge:          s.Challenge.Badge,
		Unlocked:       s.Unlocked,
		Submitted:      s.Submitted(),
		Status:         s.Status,
	}
}

// ReviewOutcome is the result of approving or rejecting a submission.
// Transition is nil for rejections and for no-op reviews of terminal submissions.
type ReviewOutcome struct {
	Submission models.ChallengeSubmission
	Challenge  *models.Challenge
	Transition *Transition
}

// ChallengeGate owns unlock gating and the proof review workflow
type ChallengeGate struct {
	store         Store
	catalog       Catalog
	proofs        ProofStore
	ledger        *Ledger
	logger        *zap.Logger
	maxProofBytes int
	now           func() time.Time
}

func NewChallengeGate(store Store, catalog Catalog, proofs ProofStore, ledger *Ledger, maxProofBytes int, logger *zap.Logger) *ChallengeGate {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxProofBytes <= 0 {
		maxProofBytes = DefaultMaxProofBytes
	}
	return &ChallengeGate{
		store:         store,
		catalog:       catalog,
		proofs:        proofs,
		ledger:        ledger,
		logger:        logger,
		maxProofBytes: maxProofBytes,
		now:           time.Now,
	}
}

// ListForAccount annotates every catalog challenge with the account's unlock and submission state
func (g *ChallengeGate) ListForAccount(ctx context.Context, accountID uuid.UUID) ([]ChallengeStatus, error) {
	account, err := g.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	challenges, err := g.catalog.Challenges(ctx)
	if err != nil {
		return nil, err
	}
	submissions, err := g.store.ListSubmissions(ctx, accountID)
	if err != nil {
		return nil, err
	}

	// submissions are newest first, so the first non-rejected one per challenge wins
	latest := make(map[string]models.SubmissionStatus)
	for _, s := range submissions {
		if s.Status == models.SubmissionRejected {
			continue
		}
		if _, seen := latest[s.ChallengeID]; !seen {
			latest[s.ChallengeID] = s.Status
		}
	}

	statuses := make([]ChallengeStatus, 0, len(challenges))
	for i := range challenges {
		status, ok := latest[challenges[i].ID]
		if !ok {
			status = models.SubmissionNone
		}
		statuses = append(statuses, ChallengeStatus{
			Challenge: challenges[i],
			Unlocked:  Unlocked(account, &challenges[i]),
			Status:    status,
		})
	}
	return statuses, nil
}

// SubmitProof uploads the proof and records a pending submission.
// Lock and duplicate checks run again under the account lock, so the early
// checks only save an upload.
func (g *ChallengeGate) SubmitProof(ctx context.Context, accountID uuid.UUID, challengeID, imageData string) (*models.ChallengeSubmission, error) {
	challengeID = strings.TrimSpace(challengeID)
	if challengeID == "" {
		return nil, Validation("challenge_id is required")
	}
	challenge, err := g.catalog.Challenge(ctx, challengeID)
	if err != nil {
		return nil, err
	}

	account, err := g.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !Unlocked(account, challenge) {
		return nil, ErrChallengeLocked
	}
	existing, err := g.store.ListSubmissions(ctx, accountID)
	if err != nil {
		return nil, err
	}
	for _, s := range existing {
		if s.ChallengeID == challengeID && s.Status != models.SubmissionRejected {
			return nil, ErrDuplicateSubmission
		}
	}

	proof, err := DecodeProof(imageData, g.maxProofBytes)
	if err != nil {
		return nil, err
	}

	submissionID := uuid.New()
	key := fmt.Sprintf("%s/%s/%s.%s", accountID, challengeID, submissionID, proof.Extension())
	ref, err := g.proofs.Put(ctx, key, proof.Data, proof.ContentType)
	if err != nil {
		g.logger.Error("Failed to store challenge proof",
			zap.String("account_id", accountID.String()),
			zap.String("challenge_id", challengeID),
			zap.Error(err))
		return nil, Upstream(err)
	}

	submission := &models.ChallengeSubmission{
		ID:          submissionID,
		AccountID:   accountID,
		ChallengeID: challengeID,
		ProofRef:    ref,
		Status:      models.SubmissionPending,
		SubmittedAt: g.now().UTC(),
	}
	err = g.store.WithAccount(ctx, accountID, func(tx AccountTx) error {
		if !Unlocked(tx.Account(), challenge) {
			return ErrChallengeLocked
		}
		active, err := tx.ActiveSubmission(ctx, challengeID)
		if err != nil {
			return err
		}
		if active != nil {
			return ErrDuplicateSubmission
		}
		return tx.InsertSubmission(ctx, submission)
	})
	if err != nil {
		if delErr := g.proofs.Delete(context.WithoutCancel(ctx), ref); delErr != nil {
			g.logger.Warn("Failed to remove orphaned proof",
				zap.String("proof_ref", ref),
				zap.Error(delErr))
		}
		return nil, err
	}

	g.logger.Info("Challenge proof submitted",
		zap.String("account_id", accountID.String()),
		zap.String("challenge_id", challengeID),
		zap.String("submission_id", submissionID.String()))
	return submission, nil
}

// Approve marks a pending submission approved and credits the challenge reward
// in the same transaction. Reviewing a terminal submission is a no-op.
func (g *ChallengeGate) Approve(ctx context.Context, submissionID, reviewerID uuid.UUID) (*ReviewOutcome, error) {
	return g.review(ctx, submissionID, reviewerID, models.SubmissionApproved, "")
}

// Reject marks a pending submission rejected, freeing the challenge for a new submission
func (g *ChallengeGate) Reject(ctx context.Context, submissionID, reviewerID uuid.UUID, note string) (*ReviewOutcome, error) {
	return g.review(ctx, submissionID, reviewerID, models.SubmissionRejected, note)
}

func (g *ChallengeGate) review(ctx context.Context, submissionID, reviewerID uuid.UUID, to models.SubmissionStatus, note string) (*ReviewOutcome, error) {
	sub, err := g.store.GetSubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	challenge, err := g.catalog.Challenge(ctx, sub.ChallengeID)
	if err != nil {
		return nil, err
	}

	outcome := &ReviewOutcome{Challenge: challenge}
	changed := false
	err = g.store.WithAccount(ctx, sub.AccountID, func(tx AccountTx) error {
		changed, outcome.Transition = false, nil
		current, err := tx.GetSubmission(ctx, submissionID)
		if err != nil {
			return err
		}
		if current.Status.Terminal() {
			outcome.Submission = *current
			return nil
		}

		now := g.now().UTC()
		current.Status = to
		current.ReviewedAt = &now
		if reviewerID != uuid.Nil {
			current.ReviewerID = &reviewerID
		}
		if note = strings.TrimSpace(note); note != "" {
			current.ReviewNote = &note
		}
		if err := tx.UpdateSubmission(ctx, current); err != nil {
			return err
		}
		outcome.Submission = *current
		changed = true

		if to != models.SubmissionApproved {
			return nil
		}
		delta := Delta{
			Points:         challenge.PointsReward,
			Origin:         models.OriginGameplay,
			Source:         "challenge:" + challenge.ID,
			IdempotencyKey: ChallengeKey(submissionID),
		}
		if challenge.Badge != nil {
			delta.Badges = []string{*challenge.Badge}
		}
		outcome.Transition, err = g.ledger.Apply(ctx, tx, delta)
		return err
	})
	if err != nil {
		return nil, err
	}

	if !changed {
		g.logger.Debug("Submission already reviewed",
			zap.String("submission_id", submissionID.String()),
			zap.String("status", string(outcome.Submission.Status)))
	} else {
		g.logger.Info("Challenge submission reviewed",
			zap.String("submission_id", submissionID.String()),
			zap.String("status", string(outcome.Submission.Status)),
			zap.String("reviewer_id", reviewerID.String()))
	}
	return outcome, nil
}

// ListPending returns the admin review queue, oldest first
func (g *ChallengeGate) ListPending(ctx context.Context, limit int) ([]models.ChallengeSubmission, error) {
	return g.ListByStatus(ctx, models.SubmissionPending, limit)
}

// ListByStatus returns submissions in one review state, oldest first
func (g *ChallengeGate) ListByStatus(ctx context.Context, status models.SubmissionStatus, limit int) ([]models.ChallengeSubmission, error) {
	if status == models.SubmissionNone || !status.Valid() {
		return nil, Validation("Unknown submission status %q", status)
	}
	return g.store.ListSubmissionsByStatus(ctx, status, limit)
}

// ChallengeKey is the ledger idempotency key for a submission approval
func ChallengeKey(submissionID uuid.UUID) string {
	return "challenge:" + submissionID.String()
}
