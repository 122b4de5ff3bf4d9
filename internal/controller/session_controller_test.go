package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"local-assistant/internal/model"
	"local-assistant/internal/pkg/logger"
	"local-assistant/internal/pkg/serverutils"
	"local-assistant/internal/repository/memory"
	"local-assistant/internal/repository/unitofwork"
	"local-assistant/internal/service"
	"local-assistant/pkg/database"
	"local-assistant/pkg/llm/engine"
	"local-assistant/pkg/llm/llmtest"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success bool            `json:"success"`
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testApp struct {
	app      *fiber.App
	sessions service.ISessionService
	settings service.ISettingsService
	engine   *engine.Engine
}

func newTestApp(t *testing.T, reply string) *testApp {
	t.Helper()

	db, err := database.NewGormDB(database.GormConfig{
		Driver:   database.DriverSQLite,
		DSN:      filepath.Join(t.TempDir(), "assistant.db"),
		LogLevel: "silent",
	}, model.All()...)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	log := logger.NewNopLogger()
	factory := unitofwork.NewRepositoryFactory(db)

	conversations := service.NewConversationService(factory, log)
	settings := service.NewSettingsService(factory, memory.NewSettingCache(time.Minute), log)
	sessions, err := service.NewSessionService(conversations, nil, 4, log)
	require.NoError(t, err)

	modelPath := filepath.Join(t.TempDir(), "tiny.gguf")
	require.NoError(t, os.WriteFile(modelPath, []byte("GGUF"), 0o644))
	cfg := engine.DefaultConfig()
	cfg.ModelPath = modelPath
	e := engine.New(llmtest.New(reply), cfg)
	t.Cleanup(e.Unload)

	chat := service.NewChatService(sessions, e, log)

	app := fiber.New()
	app.Use(serverutils.ErrorHandlerMiddleware(log))
	api := app.Group("/api")
	NewSessionController(sessions, chat, conversations).RegisterRoutes(api)
	NewSettingsController(settings).RegisterRoutes(api)

	return &testApp{app: app, sessions: sessions, settings: settings, engine: e}
}

func (a *testApp) do(t *testing.T, method, path string, body interface{}) (int, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func TestSessionController_Lifecycle(t *testing.T) {
	a := newTestApp(t, "ok")

	status, env := a.do(t, http.MethodPost, "/api/sessions", map[string]string{"title": "Groceries"})
	require.Equal(t, http.StatusCreated, status)

	var created struct {
		Id    string `json:"id"`
		Title string `json:"title"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, "Groceries", created.Title)

	status, _ = a.do(t, http.MethodPost, "/api/sessions/"+created.Id+"/messages", map[string]string{
		"role":    "user",
		"content": "milk",
	})
	require.Equal(t, http.StatusCreated, status)

	status, env = a.do(t, http.MethodGet, "/api/sessions/"+created.Id, nil)
	require.Equal(t, http.StatusOK, status)

	var shown struct {
		MessageCount int `json:"message_count"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &shown))
	assert.Equal(t, 1, shown.MessageCount)

	status, _ = a.do(t, http.MethodPatch, "/api/sessions/"+created.Id, map[string]string{"title": "Shopping"})
	assert.Equal(t, http.StatusOK, status)

	status, env = a.do(t, http.MethodGet, "/api/sessions", nil)
	require.Equal(t, http.StatusOK, status)

	var list []struct {
		Id    string `json:"id"`
		Title string `json:"title"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, "Shopping", list[0].Title)

	status, _ = a.do(t, http.MethodDelete, "/api/sessions/"+created.Id, nil)
	assert.Equal(t, http.StatusOK, status)

	status, env = a.do(t, http.MethodGet, "/api/sessions/"+created.Id, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.False(t, env.Success)
}

func TestSessionController_ErrorStatus(t *testing.T) {
	a := newTestApp(t, "ok")
	s, err := a.sessions.CreateSession(context.Background(), "Errors")
	require.NoError(t, err)

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		want   int
	}{
		{
			name:   "unknown session",
			method: http.MethodGet,
			path:   "/api/sessions/missing",
			want:   http.StatusNotFound,
		},
		{
			name:   "invalid role",
			method: http.MethodPost,
			path:   "/api/sessions/" + s.Id + "/messages",
			body:   map[string]string{"role": "narrator", "content": "hi"},
			want:   http.StatusBadRequest,
		},
		{
			name:   "missing title",
			method: http.MethodPost,
			path:   "/api/sessions",
			body:   map[string]string{},
			want:   http.StatusBadRequest,
		},
		{
			name:   "negative prune",
			method: http.MethodPost,
			path:   "/api/sessions/" + s.Id + "/prune",
			body:   map[string]int{"keep_last": -1},
			want:   http.StatusBadRequest,
		},
		{
			name:   "chat without a model",
			method: http.MethodPost,
			path:   "/api/sessions/" + s.Id + "/chat",
			body:   map[string]string{"content": "hello"},
			want:   http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := a.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, status)
			assert.Equal(t, tt.want, env.Code)
			assert.False(t, env.Success)
		})
	}
}

func TestSessionController_ChatAndActive(t *testing.T) {
	a := newTestApp(t, "Hello")
	require.NoError(t, a.engine.Load(context.Background()))

	s, err := a.sessions.CreateSession(context.Background(), "Chat")
	require.NoError(t, err)

	status, env := a.do(t, http.MethodPost, "/api/sessions/"+s.Id+"/chat", map[string]string{"content": "hi"})
	require.Equal(t, http.StatusOK, status)

	var reply struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &reply))
	assert.Equal(t, "assistant", reply.Message.Role)
	assert.Equal(t, "Hello", reply.Message.Content)

	status, _ = a.do(t, http.MethodPut, "/api/sessions/active", map[string]string{"session_id": s.Id})
	require.Equal(t, http.StatusOK, status)

	status, env = a.do(t, http.MethodGet, "/api/sessions/active", nil)
	require.Equal(t, http.StatusOK, status)

	var active struct {
		Id           string `json:"id"`
		MessageCount int    `json:"message_count"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &active))
	assert.Equal(t, s.Id, active.Id)
	assert.Equal(t, 2, active.MessageCount)

	status, env = a.do(t, http.MethodPost, "/api/sessions/"+s.Id+"/prune", map[string]int{"keep_last": 1})
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"deleted":1}`, string(env.Data))
}

func TestSettingsController(t *testing.T) {
	a := newTestApp(t, "ok")

	status, _ := a.do(t, http.MethodGet, "/api/settings/theme", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = a.do(t, http.MethodPut, "/api/settings/theme", map[string]string{"value": "dark"})
	require.Equal(t, http.StatusOK, status)

	status, env := a.do(t, http.MethodGet, "/api/settings/theme", nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"key":"theme","value":"dark"}`, string(env.Data))

	status, _ = a.do(t, http.MethodPut, "/api/settings/font_size", map[string]string{"value": "14"})
	require.Equal(t, http.StatusOK, status)

	status, _ = a.do(t, http.MethodDelete, "/api/settings/theme", nil)
	require.Equal(t, http.StatusOK, status)

	status, env = a.do(t, http.MethodGet, "/api/settings", nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[{"key":"font_size","value":"14"}]`, string(env.Data))
}
