package progression

import (
	"context"

	"github.com/JunoAX/greenquest-go/internal/models"
	"github.com/google/uuid"
)

// Store is the persistence contract the engine depends on.
// Reads outside WithAccount observe committed state only and never a partially applied transition.
type Store interface {
	CreateAccount(ctx context.Context, account *models.Account) error
	GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*models.Account, error)
	// ListAccounts returns active accounts ordered by points desc, created_at asc, id asc.
	ListAccounts(ctx context.Context, limit int) ([]models.Account, error)

	GetSubmission(ctx context.Context, id uuid.UUID) (*models.ChallengeSubmission, error)
	// ListSubmissions returns the account's submissions, newest first.
	ListSubmissions(ctx context.Context, accountID uuid.UUID) ([]models.ChallengeSubmission, error)
	ListSubmissionsByStatus(ctx context.Context, status models.SubmissionStatus, limit int) ([]models.ChallengeSubmission, error)

	// ListProgress returns the account's game log, newest first.
	ListProgress(ctx context.Context, accountID uuid.UUID) ([]models.GameProgressRecord, error)

	InsertNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, accountID uuid.UUID, limit int) ([]models.Notification, error)
	// MarkNotificationRead sets read=true and returns the row; an already read row is returned unchanged.
	MarkNotificationRead(ctx context.Context, accountID, id uuid.UUID) (*models.Notification, error)

	// WithAccount runs fn in one transaction holding the account's exclusive lock.
	// Writes made through the AccountTx become visible together when fn returns nil, and not at all otherwise.
	WithAccount(ctx context.Context, accountID uuid.UUID, fn func(tx AccountTx) error) error

	Health(ctx context.Context) error
}

// AccountTx is the write surface available while an account is locked
type AccountTx interface {
	// Account returns the locked account as currently staged in this transaction.
	Account() *models.Account
	SaveAccount(ctx context.Context, account *models.Account) error
	InsertLedgerEntry(ctx context.Context, entry *models.LedgerEntry) error
	// ClaimIdempotencyKey records key for the locked account; false means it was claimed before.
	ClaimIdempotencyKey(ctx context.Context, key string) (bool, error)

	// ActiveSubmission returns the pending or approved submission for the challenge, or nil.
	ActiveSubmission(ctx context.Context, challengeID string) (*models.ChallengeSubmission, error)
	GetSubmission(ctx context.Context, id uuid.UUID) (*models.ChallengeSubmission, error)
	InsertSubmission(ctx context.Context, s *models.ChallengeSubmission) error
	UpdateSubmission(ctx context.Context, s *models.ChallengeSubmission) error

	InsertProgress(ctx context.Context, r *models.GameProgressRecord) error
	// ListProgress returns the account's game log in append order, including rows staged in this transaction.
	ListProgress(ctx context.Context) ([]models.GameProgressRecord, error)
}

// Catalog is the static content store for challenges and quiz questions
type Catalog interface {
	Challenges(ctx context.Context) ([]models.Challenge, error)
	Challenge(ctx context.Context, id string) (*models.Challenge, error)
	Questions(ctx context.Context, category string, limit int) ([]models.QuizQuestion, error)
	// AnswerKey maps each known question id to its correct option index. Unknown ids are absent.
	AnswerKey(ctx context.Context, ids []string) (map[string]int, error)
}

// ProofStore is the external blob store for challenge proof photos
type ProofStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, ref string) error
}
