package repository

import (
	"context"
	"errors"
	"time"

	"github.com/JunoAX/greenquest-go/internal/models"
	"github.com/JunoAX/greenquest-go/internal/progression"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const (
	accountColumns = `id, username, email, password_hash, points, level, badges, is_admin,
		created_at, updated_at, deactivated_at`
	submissionColumns = `id, account_id, challenge_id, proof_ref, status, submitted_at,
		reviewed_at, reviewer_id, review_note`
	progressColumns = `id, account_id, game_type, level, score, completed, session_token,
		awarded, created_at, completed_at`
	notificationColumns = `id, account_id, type, message, read, created_at`
)

// Pool is the part of a pgx connection pool the store runs on
type Pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

var _ Pool = (*pgxpool.Pool)(nil)

// PostgresStore implements the progression store on pgx. Account mutations run in
// one transaction that starts with SELECT ... FOR UPDATE on the account row.
type PostgresStore struct {
	db         Pool
	logger     *zap.Logger
	maxRetries uint64
}

var _ progression.Store = (*PostgresStore)(nil)

func NewPostgresStore(db Pool, maxRetries uint64, logger *zap.Logger) *PostgresStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresStore{db: db, logger: logger, maxRetries: maxRetries}
}

// retry runs op until it succeeds, fails permanently, or the budget runs out.
// Only serialization failures, deadlocks and dropped connections are retried.
func (s *PostgresStore) retry(ctx context.Context, name string, op func() error) error {
	operation := func() error {
		err := op()
		if err == nil || isTransient(err) {
			return err
		}
		return backoff.Permanent(err)
	}
	notify := func(err error, wait time.Duration) {
		s.logger.Warn("Retrying database operation",
			zap.String("operation", name),
			zap.Duration("wait", wait),
			zap.Error(err))
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), s.maxRetries), ctx)
	err := backoff.RetryNotify(operation, policy, notify)
	if err == nil {
		return nil
	}
	if _, ok := progression.AsError(err); ok {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	s.logger.Error("Database operation failed", zap.String("operation", name), zap.Error(err))
	return progression.Upstream(err)
}

func isTransient(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01":
			return true
		}
		return len(pgErr.Code) == 5 && pgErr.Code[:2] == "08"
	}
	return pgconn.SafeToRetry(err)
}

func constraintViolation(err error, code string) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == code {
		return pgErr.ConstraintName, true
	}
	return "", false
}

func scanAccount(row pgx.Row) (*models.Account, error) {
	var a models.Account
	err := row.Scan(
		&a.ID,
		&a.Username,
		&a.Email,
		&a.PasswordHash,
		&a.Points,
		&a.Level,
		&a.Badges,
		&a.IsAdmin,
		&a.CreatedAt,
		&a.UpdatedAt,
		&a.DeactivatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, progression.ErrAccountNotFound
		}
		return nil, err
	}
	if a.Badges == nil {
		a.Badges = []string{}
	}
	return &a, nil
}

func scanSubmission(row pgx.Row) (*models.ChallengeSubmission, error) {
	var sub models.ChallengeSubmission
	err := row.Scan(
		&sub.ID,
		&sub.AccountID,
		&sub.ChallengeID,
		&sub.ProofRef,
		&sub.Status,
		&sub.SubmittedAt,
		&sub.ReviewedAt,
		&sub.ReviewerID,
		&sub.ReviewNote,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, progression.ErrSubmissionNotFound
		}
		return nil, err
	}
	return &sub, nil
}

func scanProgress(row pgx.Row) (*models.GameProgressRecord, error) {
	var r models.GameProgressRecord
	err := row.Scan(
		&r.ID,
		&r.AccountID,
		&r.GameType,
		&r.Level,
		&r.Score,
		&r.Completed,
		&r.SessionToken,
		&r.Awarded,
		&r.CreatedAt,
		&r.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func scanNotification(row pgx.Row) (*models.Notification, error) {
	var n models.Notification
	err := row.Scan(&n.ID, &n.AccountID, &n.Type, &n.Message, &n.Read, &n.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, progression.ErrNotificationNotFound
		}
		return nil, err
	}
	return &n, nil
}

func collect[T any](rows pgx.Rows, scan func(pgx.Row) (*T, error)) ([]T, error) {
	defer rows.Close()

	items := []T{}
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func (s *PostgresStore) CreateAccount(ctx context.Context, account *models.Account) error {
	query := `
		INSERT INTO accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	return s.retry(ctx, "create_account", func() error {
		_, err := s.db.Exec(ctx, query,
			account.ID,
			account.Username,
			account.Email,
			account.PasswordHash,
			account.Points,
			account.Level,
			account.Badges,
			account.IsAdmin,
			account.CreatedAt,
			account.UpdatedAt,
			account.DeactivatedAt,
		)
		if constraint, ok := constraintViolation(err, "23505"); ok {
			if constraint == "accounts_username_key" {
				return progression.ErrUsernameTaken
			}
			return progression.ErrEmailTaken
		}
		return err
	})
}

func (s *PostgresStore) GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	var account *models.Account
	err := s.retry(ctx, "get_account", func() error {
		var err error
		account, err = scanAccount(s.db.QueryRow(ctx, query, id))
		return err
	})
	return account, err
}

func (s *PostgresStore) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`

	var account *models.Account
	err := s.retry(ctx, "get_account_by_email", func() error {
		var err error
		account, err = scanAccount(s.db.QueryRow(ctx, query, email))
		return err
	})
	return account, err
}

func (s *PostgresStore) ListAccounts(ctx context.Context, limit int) ([]models.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE deactivated_at IS NULL
		ORDER BY points DESC, created_at ASC, id ASC
		LIMIT $1
	`

	var accounts []models.Account
	err := s.retry(ctx, "list_accounts", func() error {
		rows, err := s.db.Query(ctx, query, limit)
		if err != nil {
			return err
		}
		accounts, err = collect(rows, scanAccount)
		return err
	})
	return accounts, err
}

func (s *PostgresStore) GetSubmission(ctx context.Context, id uuid.UUID) (*models.ChallengeSubmission, error) {
	query := `SELECT ` + submissionColumns + ` FROM challenge_submissions WHERE id = $1`

	var sub *models.ChallengeSubmission
	err := s.retry(ctx, "get_submission", func() error {
		var err error
		sub, err = scanSubmission(s.db.QueryRow(ctx, query, id))
		return err
	})
	return sub, err
}

func (s *PostgresStore) ListSubmissions(ctx context.Context, accountID uuid.UUID) ([]models.ChallengeSubmission, error) {
	query := `
		SELECT ` + submissionColumns + `
		FROM challenge_submissions
		WHERE account_id = $1
		ORDER BY submitted_at DESC, id DESC
	`

	var subs []models.ChallengeSubmission
	err := s.retry(ctx, "list_submissions", func() error {
		rows, err := s.db.Query(ctx, query, accountID)
		if err != nil {
			return err
		}
		subs, err = collect(rows, scanSubmission)
		return err
	})
	return subs, err
}

func (s *PostgresStore) ListSubmissionsByStatus(ctx context.Context, status models.SubmissionStatus, limit int) ([]models.ChallengeSubmission, error) {
	query := `
		SELECT ` + submissionColumns + `
		FROM challenge_submissions
		WHERE status = $1
		ORDER BY submitted_at ASC, id ASC
		LIMIT $2
	`

	var subs []models.ChallengeSubmission
	err := s.retry(ctx, "list_submissions_by_status", func() error {
		rows, err := s.db.Query(ctx, query, status, limit)
		if err != nil {
			return err
		}
		subs, err = collect(rows, scanSubmission)
		return err
	})
	return subs, err
}

func (s *PostgresStore) ListProgress(ctx context.Context, accountID uuid.UUID) ([]models.GameProgressRecord, error) {
	query := `
		SELECT ` + progressColumns + `
		FROM game_progress
		WHERE account_id = $1
		ORDER BY created_at DESC, id DESC
	`

	var records []models.GameProgressRecord
	err := s.retry(ctx, "list_progress", func() error {
		rows, err := s.db.Query(ctx, query, accountID)
		if err != nil {
			return err
		}
		records, err = collect(rows, scanProgress)
		return err
	})
	return records, err
}

func (s *PostgresStore) InsertNotification(ctx context.Context, n *models.Notification) error {
	query := `
		INSERT INTO notifications (` + notificationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`
	return s.retry(ctx, "insert_notification", func() error {
		_, err := s.db.Exec(ctx, query, n.ID, n.AccountID, n.Type, n.Message, n.Read, n.CreatedAt)
		if _, ok := constraintViolation(err, "23503"); ok {
			return progression.ErrAccountNotFound
		}
		return err
	})
}

func (s *PostgresStore) ListNotifications(ctx context.Context, accountID uuid.UUID, limit int) ([]models.Notification, error) {
	query := `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE account_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	var list []models.Notification
	err := s.retry(ctx, "list_notifications", func() error {
		rows, err := s.db.Query(ctx, query, accountID, limit)
		if err != nil {
			return err
		}
		list, err = collect(rows, scanNotification)
		return err
	})
	return list, err
}

func (s *PostgresStore) MarkNotificationRead(ctx context.Context, accountID, id uuid.UUID) (*models.Notification, error) {
	query := `
		UPDATE notifications
		SET read = TRUE
		WHERE id = $1 AND account_id = $2
		RETURNING ` + notificationColumns

	var n *models.Notification
	err := s.retry(ctx, "mark_notification_read", func() error {
		var err error
		n, err = scanNotification(s.db.QueryRow(ctx, query, id, accountID))
		return err
	})
	return n, err
}

func (s *PostgresStore) Health(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *PostgresStore) WithAccount(ctx context.Context, accountID uuid.UUID, fn func(tx progression.AccountTx) error) error {
	return s.retry(ctx, "account_transaction", func() error {
		tx, err := s.db.Begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 FOR UPDATE`
		account, err := scanAccount(tx.QueryRow(ctx, query, accountID))
		if err != nil {
			return err
		}

		if err := fn(&postgresTx{tx: tx, account: account}); err != nil {
			return err
		}
		return tx.Commit(ctx)
	})
}

// postgresTx runs every statement inside the locked account transaction
type postgresTx struct {
	tx      pgx.Tx
	account *models.Account
}

func (t *postgresTx) Account() *models.Account {
	return t.account.Clone()
}

func (t *postgresTx) SaveAccount(ctx context.Context, account *models.Account) error {
	query := `
		UPDATE accounts
		SET points = $2, level = $3, badges = $4, updated_at = $5, deactivated_at = $6
		WHERE id = $1
	`
	_, err := t.tx.Exec(ctx, query,
		account.ID,
		account.Points,
		account.Level,
		account.Badges,
		account.UpdatedAt,
		account.DeactivatedAt,
	)
	if err != nil {
		return err
	}
	t.account = account.Clone()
	return nil
}

func (t *postgresTx) InsertLedgerEntry(ctx context.Context, entry *models.LedgerEntry) error {
	query := `
		INSERT INTO ledger_entries (id, account_id, points_delta, badges_added, origin, source,
			idempotency_key, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := t.tx.Exec(ctx, query,
		entry.ID,
		entry.AccountID,
		entry.PointsDelta,
		entry.BadgesAdded,
		entry.Origin,
		entry.Source,
		entry.IdempotencyKey,
		entry.Reason,
		entry.CreatedAt,
	)
	return err
}

func (t *postgresTx) ClaimIdempotencyKey(ctx context.Context, key string) (bool, error) {
	query := `
		INSERT INTO idempotency_keys (account_id, key, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (account_id, key) DO NOTHING
	`
	tag, err := t.tx.Exec(ctx, query, t.account.ID, key)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (t *postgresTx) ActiveSubmission(ctx context.Context, challengeID string) (*models.ChallengeSubmission, error) {
	query := `
		SELECT ` + submissionColumns + `
		FROM challenge_submissions
		WHERE account_id = $1 AND challenge_id = $2 AND status IN ('pending', 'approved')
		LIMIT 1
	`
	sub, err := scanSubmission(t.tx.QueryRow(ctx, query, t.account.ID, challengeID))
	if errors.Is(err, progression.ErrSubmissionNotFound) {
		return nil, nil
	}
	return sub, err
}

func (t *postgresTx) GetSubmission(ctx context.Context, id uuid.UUID) (*models.ChallengeSubmission, error) {
	query := `
		SELECT ` + submissionColumns + `
		FROM challenge_submissions
		WHERE id = $1 AND account_id = $2
		FOR UPDATE
	`
	return scanSubmission(t.tx.QueryRow(ctx, query, id, t.account.ID))
}

func (t *postgresTx) InsertSubmission(ctx context.Context, sub *models.ChallengeSubmission) error {
	query := `
		INSERT INTO challenge_submissions (` + submissionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := t.tx.Exec(ctx, query,
		sub.ID,
		sub.AccountID,
		sub.ChallengeID,
		sub.ProofRef,
		sub.Status,
		sub.SubmittedAt,
		sub.ReviewedAt,
		sub.ReviewerID,
		sub.ReviewNote,
	)
	if _, ok := constraintViolation(err, "23505"); ok {
		return progression.ErrDuplicateSubmission
	}
	return err
}

func (t *postgresTx) UpdateSubmission(ctx context.Context, sub *models.ChallengeSubmission) error {
	query := `
		UPDATE challenge_submissions
		SET status = $2, reviewed_at = $3, reviewer_id = $4, review_note = $5
		WHERE id = $1
	`
	tag, err := t.tx.Exec(ctx, query, sub.ID, sub.Status, sub.ReviewedAt, sub.ReviewerID, sub.ReviewNote)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return progression.ErrSubmissionNotFound
	}
	return nil
}

func (t *postgresTx) InsertProgress(ctx context.Context, r *models.GameProgressRecord) error {
	query := `
		INSERT INTO game_progress (` + progressColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := t.tx.Exec(ctx, query,
		r.ID,
		r.AccountID,
		r.GameType,
		r.Level,
		r.Score,
		r.Completed,
		r.SessionToken,
		r.Awarded,
		r.CreatedAt,
		r.CompletedAt,
	)
	return err
}

func (t *postgresTx) ListProgress(ctx context.Context) ([]models.GameProgressRecord, error) {
	query := `
		SELECT ` + progressColumns + `
		FROM game_progress
		WHERE account_id = $1
		ORDER BY created_at ASC, id ASC
	`
	rows, err := t.tx.Query(ctx, query, t.account.ID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanProgress)
}
