package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coreconvo/config"
	"coreconvo/contentstore"
	"coreconvo/contextbuilder"
	"coreconvo/inputparser"
	"coreconvo/introspection"
	"coreconvo/llmclient"
	"coreconvo/notificationhub"
	"coreconvo/orchestrator"
	"coreconvo/repository"
	"coreconvo/responsemixer"
	"coreconvo/sessionmanager"
	"coreconvo/tools"
	"coreconvo/turnmanager"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := repository.NewMemoryRepository()
	parser := inputparser.New(repo)
	builder := contextbuilder.New(repo, parser, "")
	registry := tools.NewRegistry()
	tools.RegisterDefaults(registry)
	invoker := tools.NewInvoker(registry, repo, 5*time.Second)
	turns := turnmanager.New(repo, time.Hour)
	sessions := sessionmanager.New(repo, repo, time.Hour)
	mixer := responsemixer.New()
	hub := notificationhub.New(16)
	cfg := &config.Config{PipelineDeadline: 5 * time.Second, MaxToolLoopDepth: 4, MaxContextLength: 4000}
	orch := orchestrator.New(repo, parser, builder, llmclient.NewEchoMock(), invoker, turns, sessions, mixer, hub, cfg)
	intro := introspection.New(repo, sessions, turns, invoker)

	ctrl := NewController(repo, hub, orch, intro, invoker, cfg, contentstore.NewBase64Store())
	return DefineRoutes(ctrl)
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateHumanAIDialogueAndExchangeMessage(t *testing.T) {
	router := newTestRouter(t)

	createRec := doJSON(t, router, http.MethodPost, "/api/dialogues/human_ai", map[string]any{
		"human_id": "human_1", "ai_id": "ai_1", "title": "support chat",
	})
	require.Equal(t, http.StatusCreated, createRec.Code)

	var dialogue map[string]any
	require.NoError(t, json.Unmarshal(createRec.Body.Bytes(), &dialogue))
	dialogueId, _ := dialogue["id"].(string)
	require.NotEmpty(t, dialogueId)

	inputRec := doJSON(t, router, http.MethodPost, "/api/input", map[string]any{
		"dialogue_id": dialogueId, "sender_role": "human", "sender_id": "human_1",
		"content_type": "text", "content": "hi there",
	})
	require.Equal(t, http.StatusOK, inputRec.Code)

	var result map[string]any
	require.NoError(t, json.Unmarshal(inputRec.Body.Bytes(), &result))
	assert.Equal(t, "responded", result["status"])
	assert.Contains(t, result["content"], "hi there")
}

func TestGetDialogueNotFoundReturns404(t *testing.T) {
	router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodGet, "/api/dialogues/nonexistent", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCloseDialogueThenRejectsFurtherInput(t *testing.T) {
	router := newTestRouter(t)

	createRec := doJSON(t, router, http.MethodPost, "/api/dialogues/ai_self", map[string]any{"ai_id": "ai_1"})
	require.Equal(t, http.StatusCreated, createRec.Code)
	var dialogue map[string]any
	require.NoError(t, json.Unmarshal(createRec.Body.Bytes(), &dialogue))
	dialogueId := dialogue["id"].(string)

	closeRec := doJSON(t, router, http.MethodPost, "/api/dialogues/"+dialogueId+"/close", nil)
	assert.Equal(t, http.StatusNoContent, closeRec.Code)

	inputRec := doJSON(t, router, http.MethodPost, "/api/input", map[string]any{
		"dialogue_id": dialogueId, "sender_role": "ai", "sender_id": "ai_1",
		"content_type": "text", "content": "still thinking",
	})
	assert.Equal(t, http.StatusConflict, inputRec.Code)
}

func TestListToolsIncludesCalculator(t *testing.T) {
	router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodGet, "/api/tools", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	items, _ := body["items"].([]any)
	var names []string
	for _, item := range items {
		m := item.(map[string]any)
		names = append(names, m["id"].(string))
	}
	assert.Contains(t, names, "calculator")
}

func TestInvokeToolDirectly(t *testing.T) {
	router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodPost, "/api/tools", map[string]any{
		"tool_id":    "calculator",
		"parameters": map[string]any{"expression": "6 * 7"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "42", body["output"])
}

func TestHealthzReportsOK(t *testing.T) {
	router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
