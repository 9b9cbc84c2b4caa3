package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ahmedtaha100/RotateStay/backend/internal/attachments"
	"github.com/ahmedtaha100/RotateStay/backend/internal/chat"
	"github.com/ahmedtaha100/RotateStay/backend/internal/config"
	"github.com/ahmedtaha100/RotateStay/backend/internal/domain"
	"github.com/ahmedtaha100/RotateStay/backend/internal/messaging"
	"github.com/ahmedtaha100/RotateStay/backend/internal/notifications"
	"github.com/ahmedtaha100/RotateStay/backend/internal/ratelimit"
	"github.com/ahmedtaha100/RotateStay/backend/internal/repository"
	"github.com/ahmedtaha100/RotateStay/backend/internal/storage/sqlite"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRouter(t *testing.T) (*gin.Engine, *repository.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := sqlite.New("file::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Db.Close() })
	require.NoError(t, db.Migrate(context.Background()))

	log := zap.NewNop()
	store := repository.NewStore(db.Db)
	dir := t.TempDir()
	blobs, err := attachments.NewDiskStore(dir, "/uploads")
	require.NoError(t, err)

	reg := chat.NewRegistry()
	router := chat.NewRouter(log)
	msgs := &messaging.Service{
		Store:       store,
		Limiter:     ratelimit.NewMemory(30, time.Minute),
		Attachments: attachments.NewProcessor(blobs, log),
		Rooms:       router,
		Presence:    reg,
		Notifier:    notifications.NewService(store, nil, log),
		Log:         log,
	}
	tracker := &messaging.Tracker{Store: store, Rooms: router, Log: log}

	cfg := config.Config{
		JWTSecret:       "http-secret",
		JWTTTLMin:       60,
		ClientURL:       "http://localhost:5173",
		BlobBackend:     config.BlobDisk,
		UploadDir:       dir,
		UploadURLPrefix: "/uploads",
	}
	return NewRouter(Deps{
		Config:   cfg,
		Log:      log,
		Store:    store,
		Hub:      chat.NewHub(reg, router, store, msgs, tracker, 16, log),
		Messages: msgs,
		Tracker:  tracker,
	}), store
}

func do(t *testing.T, r http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type session struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

func register(t *testing.T, r http.Handler, email, first string) session {
	t.Helper()
	w := do(t, r, http.MethodPost, "/api/auth/register", "", gin.H{
		"email": email, "password": "correct-horse", "firstName": first, "lastName": "Test",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var s session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &s))
	require.NotEmpty(t, s.Token)
	return s
}

func TestAuthFlow(t *testing.T) {
	r, store := newTestRouter(t)
	ana := register(t, r, "ana@example.com", "Ana")

	w := do(t, r, http.MethodPost, "/api/auth/register", "", gin.H{
		"email": "ANA@example.com", "password": "correct-horse", "firstName": "Dup",
	})
	require.Equal(t, http.StatusConflict, w.Code)

	w = do(t, r, http.MethodPost, "/api/auth/register", "", gin.H{"email": "bad", "password": "x"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPost, "/api/auth/login", "", gin.H{"email": "ana@example.com", "password": "wrong"})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, r, http.MethodPost, "/api/auth/login", "", gin.H{"email": "ana@example.com", "password": "correct-horse"})
	require.Equal(t, http.StatusOK, w.Code)
	require.NotContains(t, w.Body.String(), "passwordHash")

	w = do(t, r, http.MethodGet, "/api/users/me", ana.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"email":"ana@example.com"`)

	require.NoError(t, store.SetUserActive(context.Background(), ana.User.ID, false))
	w = do(t, r, http.MethodGet, "/api/users/me", ana.Token, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.JSONEq(t, `{"error":"Authentication failed"}`, w.Body.String())
}

func TestConversationsAndMessages(t *testing.T) {
	r, _ := newTestRouter(t)
	ana := register(t, r, "ana@example.com", "Ana")
	ben := register(t, r, "ben@example.com", "Ben")
	cat := register(t, r, "cat@example.com", "Cat")

	w := do(t, r, http.MethodPost, "/api/messages/conversations", ana.Token, gin.H{"participantId": ana.User.ID})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPost, "/api/messages/conversations", ana.Token, gin.H{"participantId": "nobody"})
	require.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, r, http.MethodPost, "/api/messages/conversations", ana.Token, gin.H{"participantId": ben.User.ID})
	require.Equal(t, http.StatusCreated, w.Code)
	var conv domain.ConversationSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &conv))
	require.Len(t, conv.Participants, 2)

	w = do(t, r, http.MethodPost, "/api/messages/conversations", ben.Token, gin.H{"participantId": ana.User.ID})
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, r, http.MethodPost, "/api/messages", ana.Token, gin.H{"conversationId": conv.ID, "content": "<i>hi</i> ben"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(t, r, http.MethodPost, "/api/messages", cat.Token, gin.H{"conversationId": conv.ID, "content": "hi"})
	require.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, r, http.MethodGet, "/api/messages/conversations", ben.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []domain.ConversationSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	require.Equal(t, 1, list[0].UnreadCount)
	require.Equal(t, "<i>hi</i> ben", list[0].LastMessage.Content)

	w = do(t, r, http.MethodGet, "/api/messages/"+conv.ID, cat.Token, nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, r, http.MethodGet, "/api/messages/"+conv.ID+"?limit=10", ben.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var msgs []domain.Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &msgs))
	require.Len(t, msgs, 1)

	// fetching marked it read
	w = do(t, r, http.MethodGet, "/api/messages/conversations", ben.Token, nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Zero(t, list[0].UnreadCount)
	require.True(t, list[0].LastMessage.IsRead)

	w = do(t, r, http.MethodGet, "/api/notifications", ben.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var notes []domain.Notification
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &notes))
	require.Len(t, notes, 1)
	require.Equal(t, "Ana Test", notes[0].Title)

	w = do(t, r, http.MethodGet, "/api/users/"+ben.User.ID+"/presence", ana.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"userId":"`+ben.User.ID+`","online":false}`, w.Body.String())
}

func TestHealthz(t *testing.T) {
	r, _ := newTestRouter(t)
	w := do(t, r, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestCORS(t *testing.T) {
	r, _ := newTestRouter(t)

	pre := httptest.NewRequest(http.MethodOptions, "/api/messages/conversations", nil)
	pre.Header.Set("Origin", "http://localhost:5173")
	pre.Header.Set("Access-Control-Request-Method", http.MethodPost)
	pre.Header.Set("Access-Control-Request-Headers", "Authorization, Content-Type")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, pre)
	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
