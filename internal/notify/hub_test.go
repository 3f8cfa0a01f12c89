package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/JunoAX/greenquest-go/internal/models"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHubServer(t *testing.T, hub *Hub, accountID uuid.UUID) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Serve(r.Context(), conn, accountID)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func TestHubDeliversToAccountClients(t *testing.T) {
	hub := NewHub(nil)
	account := uuid.New()
	srv := newHubServer(t, hub, account)

	first := dial(t, srv)
	defer first.Close()
	second := dial(t, srv)
	defer second.Close()

	require.Eventually(t, func() bool { return hub.Count() == 2 }, time.Second, 5*time.Millisecond)

	other := models.Notification{ID: uuid.New(), AccountID: uuid.New(), Type: models.NotificationReminder, Message: "not yours"}
	mine := models.Notification{ID: uuid.New(), AccountID: account, Type: models.NotificationAchievement, Message: "You reached level 2!"}
	require.NoError(t, hub.Broadcast(context.Background(), other))
	require.NoError(t, hub.Broadcast(context.Background(), mine))

	for _, conn := range []*websocket.Conn{first, second} {
		conn.SetReadDeadline(time.Now().Add(time.Second))
		var got models.Notification
		require.NoError(t, conn.ReadJSON(&got))
		assert.Equal(t, mine.ID, got.ID)
		assert.Equal(t, "You reached level 2!", got.Message)
	}
}

func TestHubUnregistersClosedClients(t *testing.T) {
	hub := NewHub(nil)
	srv := newHubServer(t, hub, uuid.New())

	conn := dial(t, srv)
	require.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.Count() == 0 }, time.Second, 5*time.Millisecond)
}

func TestBroadcastWithoutClients(t *testing.T) {
	hub := NewHub(nil)
	err := hub.Broadcast(context.Background(), models.Notification{ID: uuid.New(), AccountID: uuid.New()})
	assert.NoError(t, err)
	assert.Equal(t, 0, hub.Count())
}
