package repository

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/JunoAX/greenquest-go/internal/models"
	"github.com/JunoAX/greenquest-go/internal/progression"
	"github.com/google/uuid"
)

// MemoryStore keeps everything in process. Each account has its own mutex held
// for the length of WithAccount; staged writes are published under the table
// write lock so readers see all of a transaction or none of it.
type MemoryStore struct {
	mu            sync.RWMutex
	accounts      map[uuid.UUID]*models.Account
	emails        map[string]uuid.UUID
	usernames     map[string]uuid.UUID
	submissions   map[uuid.UUID]*models.ChallengeSubmission
	progress      map[uuid.UUID][]models.GameProgressRecord
	notifications map[uuid.UUID]*models.Notification
	ledger        map[uuid.UUID][]models.LedgerEntry
	keys          map[uuid.UUID]map[string]bool

	lockMu sync.Mutex
	locks  map[uuid.UUID]*sync.Mutex
}

var _ progression.Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:      make(map[uuid.UUID]*models.Account),
		emails:        make(map[string]uuid.UUID),
		usernames:     make(map[string]uuid.UUID),
		submissions:   make(map[uuid.UUID]*models.ChallengeSubmission),
		progress:      make(map[uuid.UUID][]models.GameProgressRecord),
		notifications: make(map[uuid.UUID]*models.Notification),
		ledger:        make(map[uuid.UUID][]models.LedgerEntry),
		keys:          make(map[uuid.UUID]map[string]bool),
		locks:         make(map[uuid.UUID]*sync.Mutex),
	}
}

func (s *MemoryStore) CreateAccount(ctx context.Context, account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.emails[account.Email]; ok {
		return progression.ErrEmailTaken
	}
	username := strings.ToLower(account.Username)
	if _, ok := s.usernames[username]; ok {
		return progression.ErrUsernameTaken
	}

	s.accounts[account.ID] = account.Clone()
	s.emails[account.Email] = account.ID
	s.usernames[username] = account.ID
	return nil
}

func (s *MemoryStore) GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if a, ok := s.accounts[id]; ok {
		return a.Clone(), nil
	}
	return nil, progression.ErrAccountNotFound
}

func (s *MemoryStore) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if id, ok := s.emails[email]; ok {
		return s.accounts[id].Clone(), nil
	}
	return nil, progression.ErrAccountNotFound
}

func (s *MemoryStore) ListAccounts(ctx context.Context, limit int) ([]models.Account, error) {
	s.mu.RLock()
	accounts := make([]models.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		if a.DeactivatedAt == nil {
			accounts = append(accounts, *a.Clone())
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(accounts, func(a, b models.Account) int {
		if c := cmp.Compare(b.Points, a.Points); c != 0 {
			return c
		}
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID.String(), b.ID.String())
	})
	if limit > 0 && len(accounts) > limit {
		accounts = accounts[:limit]
	}
	return accounts, nil
}

// Deactivate soft-deletes an account
func (s *MemoryStore) Deactivate(ctx context.Context, id uuid.UUID) error {
	return s.WithAccount(ctx, id, func(tx progression.AccountTx) error {
		a := tx.Account()
		now := time.Now().UTC()
		a.DeactivatedAt = &now
		a.UpdatedAt = now
		return tx.SaveAccount(ctx, a)
	})
}

func (s *MemoryStore) GetSubmission(ctx context.Context, id uuid.UUID) (*models.ChallengeSubmission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if sub, ok := s.submissions[id]; ok {
		c := *sub
		return &c, nil
	}
	return nil, progression.ErrSubmissionNotFound
}

func (s *MemoryStore) ListSubmissions(ctx context.Context, accountID uuid.UUID) ([]models.ChallengeSubmission, error) {
	s.mu.RLock()
	subs := []models.ChallengeSubmission{}
	for _, sub := range s.submissions {
		if sub.AccountID == accountID {
			subs = append(subs, *sub)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(subs, func(a, b models.ChallengeSubmission) int {
		return b.SubmittedAt.Compare(a.SubmittedAt)
	})
	return subs, nil
}

func (s *MemoryStore) ListSubmissionsByStatus(ctx context.Context, status models.SubmissionStatus, limit int) ([]models.ChallengeSubmission, error) {
	s.mu.RLock()
	subs := []models.ChallengeSubmission{}
	for _, sub := range s.submissions {
		if sub.Status == status {
			subs = append(subs, *sub)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(subs, func(a, b models.ChallengeSubmission) int {
		return a.SubmittedAt.Compare(b.SubmittedAt)
	})
	if limit > 0 && len(subs) > limit {
		subs = subs[:limit]
	}
	return subs, nil
}

func (s *MemoryStore) ListProgress(ctx context.Context, accountID uuid.UUID) ([]models.GameProgressRecord, error) {
	s.mu.RLock()
	records := slices.Clone(s.progress[accountID])
	s.mu.RUnlock()

	slices.Reverse(records)
	if records == nil {
		records = []models.GameProgressRecord{}
	}
	return records, nil
}

// LedgerEntries returns the account's audit rows in the order they were written
func (s *MemoryStore) LedgerEntries(accountID uuid.UUID) []models.LedgerEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.ledger[accountID])
}

func (s *MemoryStore) InsertNotification(ctx context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[n.AccountID]; !ok {
		return progression.ErrAccountNotFound
	}
	c := *n
	s.notifications[n.ID] = &c
	return nil
}

func (s *MemoryStore) ListNotifications(ctx context.Context, accountID uuid.UUID, limit int) ([]models.Notification, error) {
	s.mu.RLock()
	list := []models.Notification{}
	for _, n := range s.notifications {
		if n.AccountID == accountID {
			list = append(list, *n)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(list, func(a, b models.Notification) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (s *MemoryStore) MarkNotificationRead(ctx context.Context, accountID, id uuid.UUID) (*models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[id]
	if !ok || n.AccountID != accountID {
		return nil, progression.ErrNotificationNotFound
	}
	n.Read = true
	c := *n
	return &c, nil
}

func (s *MemoryStore) Health(ctx context.Context) error {
	return nil
}

func (s *MemoryStore) accountLock(id uuid.UUID) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()

	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

func (s *MemoryStore) WithAccount(ctx context.Context, accountID uuid.UUID, fn func(tx progression.AccountTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	lock := s.accountLock(accountID)
	lock.Lock()
	defer lock.Unlock()

	account, err := s.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}

	tx := &memoryTx{
		store:   s,
		account: account,
		updated: make(map[uuid.UUID]*models.ChallengeSubmission),
	}
	if err := fn(tx); err != nil {
		return err
	}
	s.commit(tx)
	return nil
}

func (s *MemoryStore) commit(tx *memoryTx) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := tx.account.ID
	if tx.accountDirty {
		s.accounts[id] = tx.account.Clone()
	}
	if len(tx.keys) > 0 && s.keys[id] == nil {
		s.keys[id] = make(map[string]bool)
	}
	for _, k := range tx.keys {
		s.keys[id][k] = true
	}
	for _, sub := range tx.inserted {
		s.submissions[sub.ID] = sub
	}
	for subID, sub := range tx.updated {
		s.submissions[subID] = sub
	}
	s.progress[id] = append(s.progress[id], tx.progress...)
	s.ledger[id] = append(s.ledger[id], tx.ledger...)
}

// memoryTx stages writes until the transaction function returns
type memoryTx struct {
	store        *MemoryStore
	account      *models.Account
	accountDirty bool
	keys         []string
	inserted     []*models.ChallengeSubmission
	updated      map[uuid.UUID]*models.ChallengeSubmission
	progress     []models.GameProgressRecord
	ledger       []models.LedgerEntry
}

func (tx *memoryTx) Account() *models.Account {
	return tx.account.Clone()
}

func (tx *memoryTx) SaveAccount(ctx context.Context, account *models.Account) error {
	if account.ID != tx.account.ID {
		return progression.ErrAccountNotFound
	}
	tx.account = account.Clone()
	tx.accountDirty = true
	return nil
}

func (tx *memoryTx) InsertLedgerEntry(ctx context.Context, entry *models.LedgerEntry) error {
	e := *entry
	e.BadgesAdded = slices.Clone(entry.BadgesAdded)
	tx.ledger = append(tx.ledger, e)
	return nil
}

func (tx *memoryTx) ClaimIdempotencyKey(ctx context.Context, key string) (bool, error) {
	if slices.Contains(tx.keys, key) {
		return false, nil
	}
	tx.store.mu.RLock()
	claimed := tx.store.keys[tx.account.ID][key]
	tx.store.mu.RUnlock()
	if claimed {
		return false, nil
	}
	tx.keys = append(tx.keys, key)
	return true, nil
}

func (tx *memoryTx) submissions() []models.ChallengeSubmission {
	tx.store.mu.RLock()
	subs := []models.ChallengeSubmission{}
	for _, sub := range tx.store.submissions {
		if sub.AccountID != tx.account.ID {
			continue
		}
		if staged, ok := tx.updated[sub.ID]; ok {
			subs = append(subs, *staged)
			continue
		}
		subs = append(subs, *sub)
	}
	tx.store.mu.RUnlock()

	for _, sub := range tx.inserted {
		if staged, ok := tx.updated[sub.ID]; ok {
			subs = append(subs, *staged)
			continue
		}
		subs = append(subs, *sub)
	}
	return subs
}

func (tx *memoryTx) ActiveSubmission(ctx context.Context, challengeID string) (*models.ChallengeSubmission, error) {
	for _, sub := range tx.submissions() {
		if sub.ChallengeID == challengeID && sub.Status != models.SubmissionRejected {
			return &sub, nil
		}
	}
	return nil, nil
}

func (tx *memoryTx) GetSubmission(ctx context.Context, id uuid.UUID) (*models.ChallengeSubmission, error) {
	for _, sub := range tx.submissions() {
		if sub.ID == id {
			return &sub, nil
		}
	}
	return nil, progression.ErrSubmissionNotFound
}

func (tx *memoryTx) InsertSubmission(ctx context.Context, s *models.ChallengeSubmission) error {
	if s.AccountID != tx.account.ID {
		return progression.ErrAccountNotFound
	}
	if s.Status != models.SubmissionRejected {
		active, err := tx.ActiveSubmission(ctx, s.ChallengeID)
		if err != nil {
			return err
		}
		if active != nil {
			return progression.ErrDuplicateSubmission
		}
	}
	c := *s
	tx.inserted = append(tx.inserted, &c)
	return nil
}

func (tx *memoryTx) UpdateSubmission(ctx context.Context, s *models.ChallengeSubmission) error {
	if _, err := tx.GetSubmission(ctx, s.ID); err != nil {
		return err
	}
	c := *s
	tx.updated[s.ID] = &c
	return nil
}

func (tx *memoryTx) InsertProgress(ctx context.Context, r *models.GameProgressRecord) error {
	tx.progress = append(tx.progress, *r)
	return nil
}

func (tx *memoryTx) ListProgress(ctx context.Context) ([]models.GameProgressRecord, error) {
	tx.store.mu.RLock()
	records := slices.Clone(tx.store.progress[tx.account.ID])
	tx.store.mu.RUnlock()
	return append(records, tx.progress...), nil
}
