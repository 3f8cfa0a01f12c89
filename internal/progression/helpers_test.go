package progression_test

import (
	"context"
	"encoding/base64"
	"sync"
	"testing"

	"github.com/JunoAX/greenquest-go/internal/catalog"
	"github.com/JunoAX/greenquest-go/internal/models"
	"github.com/JunoAX/greenquest-go/internal/progression"
	"github.com/JunoAX/greenquest-go/internal/repository"
	"github.com/JunoAX/greenquest-go/internal/storage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var pngProof = "data:image/png;base64," + base64.StdEncoding.EncodeToString(
	[]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01"))

type recordingBroadcaster struct {
	mu  sync.Mutex
	got []models.Notification
}

func (b *recordingBroadcaster) Broadcast(ctx context.Context, n models.Notification) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.got = append(b.got, n)
	return nil
}

func (b *recordingBroadcaster) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.got)
}

type testEnv struct {
	engine      *progression.Engine
	store       *repository.MemoryStore
	blobs       *storage.MemoryStore
	broadcaster *recordingBroadcaster
}

func newTestEnv(t *testing.T, opts progression.Options) *testEnv {
	t.Helper()

	cat, err := catalog.Default()
	require.NoError(t, err)

	env := &testEnv{
		store:       repository.NewMemoryStore(),
		blobs:       storage.NewMemoryStore(),
		broadcaster: &recordingBroadcaster{},
	}
	env.engine = progression.NewEngine(env.store, cat, env.blobs, env.broadcaster, opts, nil)
	t.Cleanup(func() {
		require.NoError(t, env.engine.Close(context.Background()))
	})
	return env
}

func (env *testEnv) register(t *testing.T, username string) *models.Account {
	t.Helper()
	account, err := env.engine.Register(context.Background(), progression.NewAccount{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "hash",
	})
	require.NoError(t, err)
	return account
}

func (env *testEnv) grant(t *testing.T, accountID uuid.UUID, points int) {
	t.Helper()
	_, err := env.engine.AdjustAccount(context.Background(), accountID, progression.Adjustment{
		PointsDelta: points,
		Reason:      "test grant",
	}, uuid.New())
	require.NoError(t, err)
}

func (env *testEnv) account(t *testing.T, id uuid.UUID) *models.Account {
	t.Helper()
	a, err := env.engine.Account(context.Background(), id)
	require.NoError(t, err)
	return a
}

// notifications waits for queued deliveries and returns the feed, newest first
func (env *testEnv) notifications(t *testing.T, id uuid.UUID) []models.Notification {
	t.Helper()
	env.engine.Notifications.Wait()
	list, err := env.engine.Notifications.List(context.Background(), id, 100)
	require.NoError(t, err)
	return list
}

func messages(list []models.Notification) []string {
	out := make([]string, 0, len(list))
	for _, n := range list {
		out = append(out, n.Message)
	}
	return out
}
