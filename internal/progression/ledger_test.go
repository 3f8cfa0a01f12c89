package progression_test

import (
	"context"
	"sync"
	"testing"

	"github.com/JunoAX/greenquest-go/internal/models"
	"github.com/JunoAX/greenquest-go/internal/progression"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerApplyDelta(t *testing.T) {
	ctx := context.Background()

	t.Run("gameplay cannot remove points", func(t *testing.T) {
		env := newTestEnv(t, progression.Options{})
		a := env.register(t, "ada")

		_, err := env.engine.Ledger.ApplyDelta(ctx, a.ID, progression.Delta{Points: -5, Source: "game:quiz"})
		assert.ErrorIs(t, err, progression.ErrInvalidDelta)
		assert.Equal(t, 0, env.account(t, a.ID).Points)
	})

	t.Run("admin correction cannot go below zero", func(t *testing.T) {
		env := newTestEnv(t, progression.Options{})
		a := env.register(t, "ada")
		env.grant(t, a.ID, 30)

		_, err := env.engine.AdjustAccount(ctx, a.ID, progression.Adjustment{PointsDelta: -31, Reason: "oops"}, uuid.New())
		assert.ErrorIs(t, err, progression.ErrInvalidDelta)
		assert.Equal(t, 30, env.account(t, a.ID).Points)

		tr, err := env.engine.AdjustAccount(ctx, a.ID, progression.Adjustment{PointsDelta: -30, Reason: "reset"}, uuid.New())
		require.NoError(t, err)
		assert.Equal(t, 0, tr.After.Points)
		assert.Equal(t, 1, tr.After.Level)
	})

	t.Run("adjustment requires a reason", func(t *testing.T) {
		env := newTestEnv(t, progression.Options{})
		a := env.register(t, "ada")

		_, err := env.engine.AdjustAccount(ctx, a.ID, progression.Adjustment{PointsDelta: 10}, uuid.New())
		assert.ErrorIs(t, err, progression.ErrInvalidInput)
	})

	t.Run("idempotency key applies once", func(t *testing.T) {
		env := newTestEnv(t, progression.Options{})
		a := env.register(t, "ada")
		d := progression.Delta{Points: 25, Source: "game:quiz", IdempotencyKey: "session:abc"}

		first, err := env.engine.Ledger.ApplyDelta(ctx, a.ID, d)
		require.NoError(t, err)
		assert.True(t, first.Applied)

		second, err := env.engine.Ledger.ApplyDelta(ctx, a.ID, d)
		require.NoError(t, err)
		assert.False(t, second.Applied)
		assert.Equal(t, 25, second.After.Points)

		assert.Equal(t, 25, env.account(t, a.ID).Points)
		assert.Len(t, env.store.LedgerEntries(a.ID), 1)
	})

	t.Run("level follows points and badges are not duplicated", func(t *testing.T) {
		env := newTestEnv(t, progression.Options{})
		a := env.register(t, "ada")

		tr, err := env.engine.Ledger.ApplyDelta(ctx, a.ID, progression.Delta{Points: 150, Badges: []string{"Eco Star", " Eco Star ", ""}})
		require.NoError(t, err)
		assert.Equal(t, 2, tr.After.Level)
		assert.True(t, tr.LeveledUp())
		assert.Equal(t, []string{"Eco Star"}, tr.NewBadges)

		tr, err = env.engine.Ledger.ApplyDelta(ctx, a.ID, progression.Delta{Points: 10, Badges: []string{"Eco Star"}})
		require.NoError(t, err)
		assert.Empty(t, tr.NewBadges)
		assert.False(t, tr.LeveledUp())
		assert.Equal(t, []string{"Eco Star"}, env.account(t, a.ID).Badges)
	})

	t.Run("empty delta is a no-op", func(t *testing.T) {
		env := newTestEnv(t, progression.Options{})
		a := env.register(t, "ada")

		tr, err := env.engine.Ledger.ApplyDelta(ctx, a.ID, progression.Delta{})
		require.NoError(t, err)
		assert.True(t, tr.Applied)
		assert.Empty(t, env.store.LedgerEntries(a.ID))
	})

	t.Run("unknown and deactivated accounts", func(t *testing.T) {
		env := newTestEnv(t, progression.Options{})
		a := env.register(t, "ada")
		require.NoError(t, env.store.Deactivate(ctx, a.ID))

		_, err := env.engine.Ledger.ApplyDelta(ctx, a.ID, progression.Delta{Points: 5})
		assert.ErrorIs(t, err, progression.ErrAccountNotFound)

		_, err = env.engine.Ledger.ApplyDelta(ctx, uuid.New(), progression.Delta{Points: 5})
		assert.ErrorIs(t, err, progression.ErrAccountNotFound)
	})
}

func TestLedgerConcurrentDeltas(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, progression.Options{})
	a := env.register(t, "ada")
	b := env.register(t, "bob")

	const writers = 50
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := env.engine.Ledger.ApplyDelta(ctx, a.ID, progression.Delta{Points: 10, Badges: []string{"Eco Star"}})
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := env.engine.Ledger.ApplyDelta(ctx, b.ID, progression.Delta{Points: 1})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got := env.account(t, a.ID)
	assert.Equal(t, writers*10, got.Points)
	assert.Equal(t, progression.Level(writers*10), got.Level)
	assert.Equal(t, []string{"Eco Star"}, got.Badges)
	assert.Len(t, env.store.LedgerEntries(a.ID), writers)

	assert.Equal(t, writers, env.account(t, b.ID).Points)
}

func TestLedgerEntriesRecordOrigin(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, progression.Options{})
	a := env.register(t, "ada")
	admin := uuid.New()

	_, err := env.engine.AdjustAccount(ctx, a.ID, progression.Adjustment{
		PointsDelta:    40,
		Badges:         []string{"Helper"},
		Reason:         "community event",
		IdempotencyKey: "evt-1",
	}, admin)
	require.NoError(t, err)

	entries := env.store.LedgerEntries(a.ID)
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, models.OriginAdmin, e.Origin)
	assert.Equal(t, 40, e.PointsDelta)
	assert.Equal(t, []string{"Helper"}, e.BadgesAdded)
	assert.Equal(t, "correction:"+admin.String(), e.Source)
	require.NotNil(t, e.Reason)
	assert.Equal(t, "community event", *e.Reason)
	require.NotNil(t, e.IdempotencyKey)
	assert.Equal(t, "admin:evt-1", *e.IdempotencyKey)
}
