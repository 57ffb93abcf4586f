package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvmoura/anota/internal/agent"
	"github.com/dvmoura/anota/internal/llm"
	"github.com/dvmoura/anota/internal/router"
	"github.com/dvmoura/anota/internal/session"
	"github.com/dvmoura/anota/internal/snapshot"
	"github.com/dvmoura/anota/internal/store"
	"github.com/dvmoura/anota/internal/tools"
	"github.com/dvmoura/anota/internal/worker"
)

type cannedClient struct {
	content string
}

func (c *cannedClient) Chat(context.Context, *llm.Request) (*llm.ChatResponse, error) {
	return &llm.ChatResponse{Message: llm.Message{Role: "assistant", Content: c.content}}, nil
}

func (c *cannedClient) Ping(context.Context) error { return nil }

func newTestServer(t *testing.T, content string) (*Server, *store.Store, string) {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	u, err := st.GetOrCreateUserByPhone("+5511999990000")
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := &cannedClient{content: content}
	pipeline := agent.NewPipeline(
		logger,
		st,
		session.NewDeduplicator(logger, st),
		session.NewManager(logger, st, 60*time.Minute),
		snapshot.NewBuilder(logger, st),
		router.NewLLMRouter(logger, client, "fast", "strong"),
		worker.NewDispatcher(logger, client, tools.NewRegistry(logger, st), "worker-model"),
	)
	return NewServer("127.0.0.1:0", pipeline, st, logger), st, u.ID
}

func TestHandleMessage(t *testing.T) {
	s, _, userID := newTestServer(t,
		`{"action":"create_checklist","list_name":"Compras","data":["Leite","Pão"],"response":"Criei sua lista!"}`)

	body, err := json.Marshal(MessageRequest{
		Content: "Faz uma lista de compras: Leite, Pão",
		UserID:  userID,
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/messages", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.handleMessage(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp MessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "Criei sua lista!", resp.Response)
}

func TestHandleMessageValidation(t *testing.T) {
	s, _, userID := newTestServer(t, "ok")

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{"content":`},
		{"missing content", `{"userId":"` + userID + `"}`},
		{"missing user", `{"content":"oi"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/messages", bytes.NewReader([]byte(tt.body)))
			rec := httptest.NewRecorder()
			s.handleMessage(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestHandleToolCalls(t *testing.T) {
	s, st, userID := newTestServer(t, "ok")

	callID, err := st.RecordToolCall(userID, "save_memory", `{"content":"x"}`)
	require.NoError(t, err)
	require.NoError(t, st.CompleteToolCall(callID, `{"status":"saved"}`, ""))

	req := httptest.NewRequest(http.MethodGet, "/v1/tools/calls?limit=10", nil)
	rec := httptest.NewRecorder()
	s.handleToolCalls(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		ToolCalls []store.ToolCallRecord `json:"tool_calls"`
		Count     int                    `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "save_memory", resp.ToolCalls[0].ToolName)
}

func TestHealthAndRoot(t *testing.T) {
	s, _, _ := newTestServer(t, "ok")

	rec := httptest.NewRecorder()
	s.handleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	s.handleRoot(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	var root map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &root))
	assert.Equal(t, "Anota", root["name"])
	assert.Equal(t, "ok", root["status"])
}
