package progression

import (
	"cmp"
	"context"
	"slices"

	"github.com/JunoAX/greenquest-go/internal/models"
)

const (
	DefaultLeaderboardLimit = 10
	MaxLeaderboardLimit     = 100
)

// Ranker builds leaderboard snapshots on demand. It holds no state of its own.
type Ranker struct {
	store        Store
	defaultLimit int
	maxLimit     int
}

func NewRanker(store Store, defaultLimit, maxLimit int) *Ranker {
	if maxLimit <= 0 {
		maxLimit = MaxLeaderboardLimit
	}
	if defaultLimit <= 0 || defaultLimit > maxLimit {
		defaultLimit = min(DefaultLeaderboardLimit, maxLimit)
	}
	return &Ranker{store: store, defaultLimit: defaultLimit, maxLimit: maxLimit}
}

// ClampLimit applies the default to a missing limit and caps large ones
func (r *Ranker) ClampLimit(limit int) int {
	if limit <= 0 {
		return r.defaultLimit
	}
	return min(limit, r.maxLimit)
}

// Rank returns the top accounts with 1-based, strictly increasing ranks
func (r *Ranker) Rank(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	limit = r.ClampLimit(limit)
	accounts, err := r.store.ListAccounts(ctx, limit)
	if err != nil {
		return nil, err
	}

	// the store already orders rows; sorting again keeps the total order independent of the backend
	slices.SortStableFunc(accounts, compareStanding)
	if len(accounts) > limit {
		accounts = accounts[:limit]
	}

	leaderboard := make([]models.LeaderboardEntry, 0, len(accounts))
	for i, a := range accounts {
		leaderboard = append(leaderboard, models.LeaderboardEntry{
			Rank:      i + 1,
			AccountID: a.ID,
			Username:  a.Username,
			Points:    a.Points,
			Level:     Level(a.Points),
		})
	}
	return leaderboard, nil
}

// compareStanding orders by points desc, then earlier creation, then id
func compareStanding(a, b models.Account) int {
	if c := cmp.Compare(b.Points, a.Points); c != 0 {
		return c
	}
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.ID.String(), b.ID.String())
}
