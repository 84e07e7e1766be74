package socket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Marga-Ghale/aurora-pm-backend/internal/logger"
	"github.com/Marga-Ghale/aurora-pm-backend/internal/metrics"
	"github.com/Marga-Ghale/aurora-pm-backend/internal/models"
)

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub, cancel
}

func newTestClient(hub *Hub, userID string, buffer int) *Client {
	return &Client{
		ID:     userID + "-conn",
		UserID: userID,
		Hub:    hub,
		Send:   make(chan []byte, buffer),
		Rooms:  make(map[string]bool),
		log:    logger.Component("client"),
	}
}

func register(t *testing.T, hub *Hub, c *Client) {
	t.Helper()
	before := hub.GetConnectedClientsCount()
	require.True(t, hub.Register(c))
	require.Eventually(t, func() bool {
		return hub.GetConnectedClientsCount() == before+1
	}, time.Second, 5*time.Millisecond)
}

func next(t *testing.T, ch <-chan []byte) Message {
	t.Helper()
	select {
	case data, ok := <-ch:
		require.True(t, ok, "send channel closed")
		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return Message{}
	}
}

// nextOfType skips pings and presence updates.
func nextOfType(t *testing.T, ch <-chan []byte, want MessageType) Message {
	t.Helper()
	for i := 0; i < 10; i++ {
		msg := next(t, ch)
		if msg.Type == want {
			return msg
		}
	}
	t.Fatalf("no %s message received", want)
	return Message{}
}

func assertNoMessage(t *testing.T, ch <-chan []byte) {
	t.Helper()
	select {
	case data := <-ch:
		t.Fatalf("unexpected message: %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_BroadcastReachesAllClientsWithIncreasingSeq(t *testing.T) {
	hub, _ := startHub(t)

	a := newTestClient(hub, "user-a", 16)
	b := newTestClient(hub, "user-b", 16)
	register(t, hub, a)
	register(t, hub, b)

	// a hears that b came online
	presence := next(t, a.Send)
	assert.Equal(t, MessageUserStatusChanged, presence.Type)

	hub.Broadcast(MessageTaskCreated, map[string]string{"id": "t1"}, "project:p1")
	hub.Broadcast(MessageTaskUpdated, map[string]string{"id": "t1"}, "project:p1")

	for _, c := range []*Client{a, b} {
		first := nextOfType(t, c.Send, MessageTaskCreated)
		second := nextOfType(t, c.Send, MessageTaskUpdated)
		assert.Equal(t, "project:p1", first.Room)
		assert.Equal(t, first.Seq+1, second.Seq)
		assert.False(t, first.Timestamp.IsZero())
	}
	assert.Greater(t, presence.Seq, uint64(0))
}

func TestHub_RoomMessagesOnlyReachMembers(t *testing.T) {
	hub, _ := startHub(t)

	member := newTestClient(hub, "member", 16)
	outsider := newTestClient(hub, "outsider", 16)
	register(t, hub, member)
	register(t, hub, outsider)
	next(t, member.Send) // outsider online

	hub.JoinRoom(member, ProjectRoom("p1"))
	assert.Equal(t, 1, hub.GetRoomClients("project:p1"))

	hub.SendToRoom(ProjectRoom("p1"), MessageTaskDeleted, models.TaskDeleted{ID: "t1", ProjectID: "p1"}, "")

	msg := next(t, member.Send)
	assert.Equal(t, MessageTaskDeleted, msg.Type)
	assertNoMessage(t, outsider.Send)

	hub.LeaveRoom(member, ProjectRoom("p1"))
	assert.Equal(t, 0, hub.GetRoomClients("project:p1"))
}

func TestHub_JoinBeforeRegistrationIsApplied(t *testing.T) {
	hub, _ := startHub(t)

	c := newTestClient(hub, "early", 16)
	hub.JoinRoom(c, "project:p9")
	register(t, hub, c)

	assert.Equal(t, 1, hub.GetRoomClients("project:p9"))
}

func TestHub_SlowClientIsDropped(t *testing.T) {
	hub, _ := startHub(t)

	slow := newTestClient(hub, "slow", 1)
	fast := newTestClient(hub, "fast", 16)
	register(t, hub, slow)
	register(t, hub, fast)
	// slow's single slot now holds the "fast online" presence event

	hub.Broadcast(MessageProjectDeleted, map[string]string{"id": "p1"}, "")

	require.Eventually(t, func() bool {
		return !hub.IsUserOnline("slow")
	}, time.Second, 5*time.Millisecond)

	<-slow.Send
	_, ok := <-slow.Send
	assert.False(t, ok, "slow client's channel should be closed")

	msg := nextOfType(t, fast.Send, MessageProjectDeleted)
	assert.Equal(t, MessageProjectDeleted, msg.Type)
	offline := nextOfType(t, fast.Send, MessageUserStatusChanged)
	assert.Equal(t, "offline", offline.Payload.(map[string]interface{})["status"])
}

func TestHub_FullQueueDropsInsteadOfBlocking(t *testing.T) {
	// Run is never started, so nothing drains the queues.
	hub := NewHub()
	before := testutil.ToFloat64(metrics.WSMessagesDropped.WithLabelValues(string(MessageTaskUpdated)))

	returned := make(chan struct{})
	go func() {
		defer close(returned)
		for i := 0; i < cap(hub.broadcast)+3; i++ {
			hub.Broadcast(MessageTaskUpdated, map[string]int{"i": i}, "")
		}
		for i := 0; i < cap(hub.roomBroadcast)+2; i++ {
			hub.SendToRoom(ProjectRoom("p1"), MessageTaskUpdated, map[string]int{"i": i}, "")
		}
	}()

	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("Broadcast blocked on a full queue")
	}
	assert.Len(t, hub.broadcast, cap(hub.broadcast))
	assert.Len(t, hub.roomBroadcast, cap(hub.roomBroadcast))
	after := testutil.ToFloat64(metrics.WSMessagesDropped.WithLabelValues(string(MessageTaskUpdated)))
	assert.Equal(t, float64(5), after-before)
}

func TestHub_UnregisterOnlyLastConnectionGoesOffline(t *testing.T) {
	hub, _ := startHub(t)

	watcher := newTestClient(hub, "watcher", 16)
	first := newTestClient(hub, "multi", 16)
	second := newTestClient(hub, "multi", 16)
	register(t, hub, watcher)
	register(t, hub, first)
	register(t, hub, second)

	online := next(t, watcher.Send)
	assert.Equal(t, "online", online.Payload.(map[string]interface{})["status"])

	hub.Unregister(first)
	require.Eventually(t, func() bool { return hub.GetConnectedClientsCount() == 2 }, time.Second, 5*time.Millisecond)
	assert.True(t, hub.IsUserOnline("multi"))
	assertNoMessage(t, watcher.Send)

	hub.Unregister(second)
	offline := next(t, watcher.Send)
	assert.Equal(t, "offline", offline.Payload.(map[string]interface{})["status"])
	assert.ElementsMatch(t, []string{"watcher"}, hub.GetOnlineUsers())
}

func TestHub_ShutdownClosesClients(t *testing.T) {
	hub, cancel := startHub(t)

	c := newTestClient(hub, "user", 16)
	register(t, hub, c)

	cancel()

	require.Eventually(t, func() bool {
		select {
		case _, ok := <-c.Send:
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)

	assert.False(t, hub.Register(newTestClient(hub, "late", 1)))
	hub.Broadcast(MessagePing, nil, "") // must not block after shutdown
}

type recordingRelay struct {
	mu    sync.Mutex
	types []string
}

func (r *recordingRelay) Publish(msgType string, _ []byte) {
	r.mu.Lock()
	r.types = append(r.types, msgType)
	r.mu.Unlock()
}

func (r *recordingRelay) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.types...)
}

func TestHub_RelayReceivesEnvelopes(t *testing.T) {
	hub := NewHub()
	relay := &recordingRelay{}
	hub.SetRelay(relay)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	hub.Broadcast(MessageProjectCreated, map[string]string{"id": "p1"}, "")

	require.Eventually(t, func() bool {
		return len(relay.seen()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"project_created"}, relay.seen())
}

func TestBroadcaster_Scoping(t *testing.T) {
	hub, _ := startHub(t)

	inRoom := newTestClient(hub, "in", 16)
	outside := newTestClient(hub, "out", 16)
	register(t, hub, inRoom)
	register(t, hub, outside)
	next(t, inRoom.Send) // presence
	hub.JoinRoom(inRoom, ProjectRoom("p1"))

	task := &models.TaskResponse{ID: "t1", ProjectID: "p1", Title: "X"}

	global := NewBroadcaster(hub, false)
	global.BroadcastTaskCreated(task)
	assert.Equal(t, "project:p1", next(t, inRoom.Send).Room)
	assert.Equal(t, MessageTaskCreated, next(t, outside.Send).Type)

	scoped := NewBroadcaster(hub, true)
	scoped.BroadcastTaskUpdated(task)
	assert.Equal(t, MessageTaskUpdated, next(t, inRoom.Send).Type)
	assertNoMessage(t, outside.Send)

	// project lifecycle stays global even when scoped
	scoped.BroadcastProjectDeleted("p1")
	assert.Equal(t, MessageProjectDeleted, next(t, outside.Send).Type)
	assert.Equal(t, 2, scoped.ConnectedClients())
}

// ============================================
// End to end over a real websocket
// ============================================

// fakeTokens accepts "valid-<user>" and treats users in disabled as deactivated.
type fakeTokens struct {
	disabled map[string]bool
}

func (f fakeTokens) Authenticate(_ context.Context, token string) (string, error) {
	if !strings.HasPrefix(token, "valid-") {
		return "", errors.New("bad token")
	}
	userID := strings.TrimPrefix(token, "valid-")
	if f.disabled[userID] {
		return "", errors.New("account disabled")
	}
	return userID, nil
}

type fakeComments struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeComments) RecordComment(_ context.Context, userID, projectID, taskID, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, userID+"|"+projectID+"|"+taskID+"|"+content)
	return nil
}

func (f *fakeComments) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func dial(t *testing.T, srv *httptest.Server, token string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	if token != "" {
		url += "?token=" + token
	}
	return websocket.DefaultDialer.Dial(url, nil)
}

func readUntil(t *testing.T, conn *websocket.Conn, want MessageType) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		if msg.Type == want {
			return msg
		}
	}
}

func TestHandler_WebSocketFlow(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub, _ := startHub(t)
	comments := &fakeComments{}

	r := gin.New()
	r.GET("/ws", NewHandler(hub, fakeTokens{disabled: map[string]bool{"bob": true}}, comments, nil).HandleWebSocket)
	srv := httptest.NewServer(r)
	defer srv.Close()

	_, resp, err := dial(t, srv, "")
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = dial(t, srv, "forged")
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = dial(t, srv, "valid-bob")
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Zero(t, hub.GetConnectedClientsCount())

	conn, _, err := dial(t, srv, "valid-u1")
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(ClientMessage{Action: "join_project", Payload: map[string]interface{}{"projectId": "p1"}}))
	ack := readUntil(t, conn, MessageAck)
	assert.Equal(t, "project:p1", ack.Room)
	assert.Equal(t, 1, hub.GetRoomClients("project:p1"))

	NewBroadcaster(hub, true).BroadcastTaskCreated(&models.TaskResponse{ID: "t1", ProjectID: "p1"})
	created := readUntil(t, conn, MessageTaskCreated)
	assert.NotZero(t, created.Seq)

	require.NoError(t, conn.WriteJSON(ClientMessage{Action: "ping"}))
	readUntil(t, conn, MessagePong)

	require.NoError(t, conn.WriteJSON(ClientMessage{Action: "add_comment", Payload: map[string]interface{}{
		"projectId": "p1", "taskId": "t1", "content": " looks good ",
	}}))
	require.Eventually(t, func() bool { return len(comments.recorded()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "u1|p1|t1|looks good", comments.recorded()[0])

	require.NoError(t, conn.WriteJSON(ClientMessage{Action: "add_comment", Payload: map[string]interface{}{"content": ""}}))
	readUntil(t, conn, MessageError)

	conn.Close()
	require.Eventually(t, func() bool { return hub.GetConnectedClientsCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"http://app.test"})

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.True(t, check(req))

	req.Header.Set("Origin", "http://app.test")
	assert.True(t, check(req))

	req.Header.Set("Origin", "http://evil.test")
	assert.False(t, check(req))

	assert.True(t, originChecker(nil)(req))
}
