package chat_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ahmedtaha100/RotateStay/backend/internal/attachments"
	"github.com/ahmedtaha100/RotateStay/backend/internal/auth"
	"github.com/ahmedtaha100/RotateStay/backend/internal/chat"
	"github.com/ahmedtaha100/RotateStay/backend/internal/domain"
	"github.com/ahmedtaha100/RotateStay/backend/internal/messaging"
	"github.com/ahmedtaha100/RotateStay/backend/internal/notifications"
	"github.com/ahmedtaha100/RotateStay/backend/internal/ratelimit"
	"github.com/ahmedtaha100/RotateStay/backend/internal/repository"
	"github.com/ahmedtaha100/RotateStay/backend/internal/storage/sqlite"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const secret = "ws-secret"

type env struct {
	store *repository.Store
	hub   *chat.Hub
	srv   *httptest.Server
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db, err := sqlite.New("file::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Db.Close() })
	require.NoError(t, db.Migrate(context.Background()))

	log := zap.NewNop()
	store := repository.NewStore(db.Db)
	blobs, err := attachments.NewDiskStore(t.TempDir(), "/uploads")
	require.NoError(t, err)

	reg := chat.NewRegistry()
	router := chat.NewRouter(log)
	svc := &messaging.Service{
		Store:       store,
		Limiter:     ratelimit.NewMemory(30, time.Minute),
		Attachments: attachments.NewProcessor(blobs, log),
		Rooms:       router,
		Presence:    reg,
		Notifier:    notifications.NewService(store, nil, log),
		Log:         log,
	}
	tracker := &messaging.Tracker{Store: store, Rooms: router, Log: log}
	hub := chat.NewHub(reg, router, store, svc, tracker, 64, log)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	chat.RegisterWS(&r.RouterGroup, hub, &auth.Authenticator{Secret: secret, Users: store}, log)
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		hub.Shutdown()
		srv.Close()
	})
	return &env{store: store, hub: hub, srv: srv}
}

func (e *env) user(t *testing.T, first, last string) domain.User {
	t.Helper()
	u := domain.User{
		ID: uuid.NewString(), Email: strings.ToLower(first) + "@example.com", PasswordHash: "x",
		FirstName: first, LastName: last, IsActive: true, CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, e.store.CreateUser(context.Background(), u))
	return u
}

func (e *env) dial(t *testing.T, u domain.User) *websocket.Conn {
	t.Helper()
	tok, err := auth.NewToken(secret, u.ID, time.Hour)
	require.NoError(t, err)
	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws?token=" + tok
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

type frame struct {
	Event string          `json:"event"`
	ID    *int64          `json:"id"`
	Data  json.RawMessage `json:"data"`
}

type ack struct {
	Success      bool            `json:"success"`
	Message      json.RawMessage `json:"message"`
	Error        string          `json:"error"`
	RetryAfterMs int64           `json:"retryAfterMs"`
}

func emit(t *testing.T, c *websocket.Conn, id int64, event string, data any) {
	t.Helper()
	require.NoError(t, c.WriteJSON(map[string]any{"event": event, "id": id, "data": data}))
}

// next reads frames until one named event arrives.
func next(t *testing.T, c *websocket.Conn, event string) frame {
	t.Helper()
	return nextWithin(t, c, event, 3*time.Second)
}

func nextWithin(t *testing.T, c *websocket.Conn, event string, wait time.Duration) frame {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(wait)))
	for {
		var f frame
		require.NoError(t, c.ReadJSON(&f))
		if f.Event == event {
			return f
		}
	}
}

func nextAck(t *testing.T, c *websocket.Conn, id int64) ack {
	t.Helper()
	return nextAckWithin(t, c, id, 3*time.Second)
}

func nextAckWithin(t *testing.T, c *websocket.Conn, id int64, wait time.Duration) ack {
	t.Helper()
	for {
		f := nextWithin(t, c, "ack", wait)
		if f.ID != nil && *f.ID == id {
			var a ack
			require.NoError(t, json.Unmarshal(f.Data, &a))
			return a
		}
	}
}

func TestWS_RejectsBadToken(t *testing.T) {
	e := newEnv(t)
	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws?token=garbage"

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWS_OfflineNotificationThenReadReceipt(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.user(t, "Alice", "Host")
	b := e.user(t, "Bob", "Guest")
	conv, _, err := e.store.FindOrCreateDirect(ctx, a.ID, b.ID)
	require.NoError(t, err)

	ca := e.dial(t, a)
	emit(t, ca, 1, chat.EventJoinConversations, nil)
	require.True(t, nextAck(t, ca, 1).Success)

	emit(t, ca, 2, chat.EventSendMessage, map[string]any{"conversationId": conv.ID, "content": "hello"})
	nm := next(t, ca, messaging.EventNewMessage)
	var payload messaging.NewMessagePayload
	require.NoError(t, json.Unmarshal(nm.Data, &payload))
	require.Equal(t, conv.ID, payload.ConversationID)
	require.Equal(t, a.ID, payload.Message.SenderID)
	require.False(t, payload.Message.IsRead)
	require.True(t, nextAck(t, ca, 2).Success)

	notes, err := e.store.ListNotifications(ctx, b.ID, 10)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	require.Equal(t, "Alice Host", notes[0].Title)
	require.Equal(t, "hello", notes[0].Content)

	cb := e.dial(t, b)
	emit(t, cb, 1, chat.EventJoinConversations, nil)
	require.True(t, nextAck(t, cb, 1).Success)
	emit(t, cb, 2, chat.EventMarkAsRead, map[string]any{"conversationId": conv.ID})
	require.True(t, nextAck(t, cb, 2).Success)

	read := next(t, ca, messaging.EventMessagesRead)
	var rp messaging.MessagesReadPayload
	require.NoError(t, json.Unmarshal(read.Data, &rp))
	require.Equal(t, conv.ID, rp.ConversationID)
	require.Equal(t, b.ID, rp.ReadBy)

	msgs, err := e.store.ListMessages(ctx, conv.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.True(t, msgs[0].IsRead)
	require.NotNil(t, msgs[0].ReadAt)

	// b is online now, so a second message creates no notification
	emit(t, ca, 3, chat.EventSendMessage, map[string]any{"conversationId": conv.ID, "content": "again"})
	require.True(t, nextAck(t, ca, 3).Success)
	next(t, cb, messaging.EventNewMessage)
	notes, err = e.store.ListNotifications(ctx, b.ID, 10)
	require.NoError(t, err)
	require.Len(t, notes, 1)
}

func TestWS_SendErrorsAreAcked(t *testing.T) {
	e := newEnv(t)
	a := e.user(t, "Alice", "Host")
	b := e.user(t, "Bob", "Guest")
	c := e.user(t, "Carl", "Other")
	conv, _, err := e.store.FindOrCreateDirect(context.Background(), a.ID, b.ID)
	require.NoError(t, err)

	cc := e.dial(t, c)
	emit(t, cc, 1, chat.EventSendMessage, map[string]any{"conversationId": conv.ID, "content": "sneaky"})
	got := nextAck(t, cc, 1)
	require.False(t, got.Success)
	require.Equal(t, "Unauthorized", got.Error)

	emit(t, cc, 2, chat.EventSendMessage, map[string]any{"conversationId": conv.ID, "content": "  "})
	require.Equal(t, "Message cannot be empty", nextAck(t, cc, 2).Error)

	ca := e.dial(t, a)
	emit(t, ca, 3, chat.EventSendMessage, map[string]any{
		"conversationId": conv.ID,
		"fileData":       map[string]any{"buffer": "TVo=", "type": "application/x-msdownload", "name": "run.exe"},
	})
	require.Equal(t, "Invalid file type. Only images and documents are allowed.", nextAck(t, ca, 3).Error)

	emit(t, ca, 4, chat.EventSendMessage, "not an object")
	require.Equal(t, "Invalid message payload", nextAck(t, ca, 4).Error)

	require.NoError(t, ca.WriteMessage(websocket.TextMessage, []byte(`{"event":"send-message","id":5}`)))
	require.Equal(t, "Invalid message payload", nextAck(t, ca, 5).Error)

	emit(t, ca, 6, chat.EventSendMessage, map[string]any{
		"conversationId": conv.ID,
		"fileData":       map[string]any{"buffer": 12, "type": "application/pdf", "name": "a.pdf"},
	})
	require.Equal(t, "Invalid file payload", nextAck(t, ca, 6).Error)
}

// byteArrayFrame builds a send-message frame whose file buffer is a JSON array
// of byte values, the way browser clients serialise a Uint8Array.
func byteArrayFrame(id int64, conversationID string, size int) []byte {
	data := append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte{'A'}, size-9)...)

	var buf bytes.Buffer
	fmt.Fprintf(&buf, `{"event":%q,"id":%d,"data":{"conversationId":%q,"fileData":{"type":"application/pdf","name":"lease.pdf","buffer":[`,
		chat.EventSendMessage, id, conversationID)
	for i, b := range data {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Itoa(int(b)))
	}
	buf.WriteString(`]}}}`)
	return buf.Bytes()
}

func TestWS_LargeByteArrayFiles(t *testing.T) {
	e := newEnv(t)
	a := e.user(t, "Alice", "Host")
	b := e.user(t, "Bob", "Guest")
	conv, _, err := e.store.FindOrCreateDirect(context.Background(), a.ID, b.ID)
	require.NoError(t, err)
	ca := e.dial(t, a)

	require.NoError(t, ca.WriteMessage(websocket.TextMessage, byteArrayFrame(1, conv.ID, 6<<20)))
	got := nextAckWithin(t, ca, 1, 20*time.Second)
	require.True(t, got.Success, got.Error)
	var msg domain.Message
	require.NoError(t, json.Unmarshal(got.Message, &msg))
	require.NotNil(t, msg.FileName)
	require.Equal(t, "lease.pdf", *msg.FileName)

	require.NoError(t, ca.WriteMessage(websocket.TextMessage, byteArrayFrame(2, conv.ID, 11<<20)))
	got = nextAckWithin(t, ca, 2, 20*time.Second)
	require.False(t, got.Success)
	require.Equal(t, "File size must be less than 10MB", got.Error)

	// the connection survives the rejection
	emit(t, ca, 3, chat.EventSendMessage, map[string]any{"conversationId": conv.ID, "content": "still here"})
	require.True(t, nextAck(t, ca, 3).Success)
}

func TestWS_DisconnectClearsPresence(t *testing.T) {
	e := newEnv(t)
	a := e.user(t, "Alice", "Host")

	c1 := e.dial(t, a)
	c2 := e.dial(t, a)
	require.Eventually(t, func() bool { return len(e.hub.Registry.LiveConnections(a.ID)) == 2 }, 2*time.Second, 10*time.Millisecond)

	c1.Close()
	require.Eventually(t, func() bool { return len(e.hub.Registry.LiveConnections(a.ID)) == 1 }, 2*time.Second, 10*time.Millisecond)
	require.True(t, e.hub.Registry.IsOnline(a.ID))

	c2.Close()
	require.Eventually(t, func() bool { return !e.hub.Registry.IsOnline(a.ID) }, 2*time.Second, 10*time.Millisecond)
	require.Zero(t, e.hub.Registry.Len())
}

func TestWS_TypingGoesToOtherConnections(t *testing.T) {
	e := newEnv(t)
	a := e.user(t, "Alice", "Host")
	b := e.user(t, "Bob", "Guest")
	conv, _, err := e.store.FindOrCreateDirect(context.Background(), a.ID, b.ID)
	require.NoError(t, err)

	ca := e.dial(t, a)
	cb := e.dial(t, b)
	for _, c := range []*websocket.Conn{ca, cb} {
		emit(t, c, 1, chat.EventJoinConversations, nil)
		require.True(t, nextAck(t, c, 1).Success)
	}

	emit(t, ca, 2, chat.EventTypingStart, map[string]any{"conversationId": conv.ID})
	f := next(t, cb, messaging.EventUserTyping)
	var tp messaging.TypingPayload
	require.NoError(t, json.Unmarshal(f.Data, &tp))
	require.Equal(t, messaging.TypingPayload{ConversationID: conv.ID, UserID: a.ID, UserName: "Alice Host"}, tp)
}
