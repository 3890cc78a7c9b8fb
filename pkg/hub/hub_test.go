package hub

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tasksync/tasksync/pkg/logger"
	"github.com/tasksync/tasksync/pkg/models"
)

// newTestServer exposes the hub on an httptest server, upgrading every
// request as an already-authenticated connection.
func newTestServer(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()

	h := New(logger.Default())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := h.HandleUpgrade(w, r, models.NewUserID()); err != nil {
			t.Logf("upgrade failed: %v", err)
		}
	}))
	t.Cleanup(srv.Close)
	return h, srv
}

func dialTestServer(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	sock, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { sock.Close() })
	return sock
}

func waitForLen(t *testing.T, h *Hub, want int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return h.Len() == want
	}, 2*time.Second, 10*time.Millisecond, "expected %d live connections", want)
}

func readNotification(t *testing.T, sock *websocket.Conn) *models.ChangeNotification {
	t.Helper()

	require.NoError(t, sock.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := sock.ReadMessage()
	require.NoError(t, err)

	var n models.ChangeNotification
	require.NoError(t, json.Unmarshal(data, &n))
	return &n
}

func TestBroadcastReachesAllConnections(t *testing.T) {
	h, srv := newTestServer(t)

	conns := make([]*websocket.Conn, 3)
	for i := range conns {
		conns[i] = dialTestServer(t, srv)
	}
	waitForLen(t, h, 3)

	task := &models.Task{
		ID:        models.NewTaskID(),
		Title:     "broadcast me",
		CreatedAt: time.Now().UTC(),
	}
	h.Broadcast(models.NewChangeNotification(task, models.ActionCreated))

	for i, sock := range conns {
		n := readNotification(t, sock)
		assert.Equal(t, models.TaskReceivedEvent, n.Event, "connection %d", i)
		assert.Equal(t, models.ActionCreated, n.Action, "connection %d", i)
		require.NotNil(t, n.Task, "connection %d", i)
		assert.Equal(t, task.ID, n.Task.ID, "connection %d", i)
		assert.Equal(t, "broadcast me", n.Task.Title, "connection %d", i)
	}
}

func TestClosedConnectionIsUnregistered(t *testing.T) {
	h, srv := newTestServer(t)

	sock := dialTestServer(t, srv)
	other := dialTestServer(t, srv)
	waitForLen(t, h, 2)

	require.NoError(t, sock.Close())
	waitForLen(t, h, 1)

	// The surviving connection still receives broadcasts.
	task := &models.Task{ID: models.NewTaskID(), Title: "still here", CreatedAt: time.Now().UTC()}
	h.Broadcast(models.NewChangeNotification(task, models.ActionUpdated))

	n := readNotification(t, other)
	assert.Equal(t, models.ActionUpdated, n.Action)
}

func TestBroadcastWithNoConnections(t *testing.T) {
	h := New(logger.Default())

	task := &models.Task{ID: models.NewTaskID(), Title: "nobody listening"}
	h.Broadcast(models.NewChangeNotification(task, models.ActionDeleted))
	assert.Equal(t, 0, h.Len())
}

func TestDeleteNotificationCarriesSnapshot(t *testing.T) {
	h, srv := newTestServer(t)

	sock := dialTestServer(t, srv)
	waitForLen(t, h, 1)

	task := &models.Task{ID: models.NewTaskID(), Title: "to delete", CreatedAt: time.Now().UTC()}
	h.Broadcast(models.NewChangeNotification(task, models.ActionDeleted))

	n := readNotification(t, sock)
	assert.Equal(t, models.ActionDeleted, n.Action)
	require.NotNil(t, n.Task)
	assert.Equal(t, task.ID, n.Task.ID)
}

func TestCloseAll(t *testing.T) {
	h, srv := newTestServer(t)

	sock := dialTestServer(t, srv)
	waitForLen(t, h, 1)

	h.CloseAll()

	require.NoError(t, sock.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := sock.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "expected going-away close, got %v", err)

	waitForLen(t, h, 0)
}

func TestInboundFramesAreIgnored(t *testing.T) {
	h, srv := newTestServer(t)

	sock := dialTestServer(t, srv)
	waitForLen(t, h, 1)

	require.NoError(t, sock.WriteMessage(websocket.TextMessage, []byte(`{"event":"spoofed"}`)))

	// The connection stays live and still receives broadcasts.
	task := &models.Task{ID: models.NewTaskID(), Title: "after noise", CreatedAt: time.Now().UTC()}
	h.Broadcast(models.NewChangeNotification(task, models.ActionCreated))

	n := readNotification(t, sock)
	assert.Equal(t, "after noise", n.Task.Title)
}
