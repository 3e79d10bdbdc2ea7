package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dukex/ximager/pkg/comfyui"
	"github.com/dukex/ximager/pkg/config"
	"github.com/dukex/ximager/pkg/gateway"
	"github.com/dukex/ximager/pkg/keywords"
	"github.com/dukex/ximager/pkg/models"
	"github.com/dukex/ximager/pkg/orchestrator"
	"github.com/dukex/ximager/pkg/persistence/file"
	"github.com/dukex/ximager/pkg/sink"
	"github.com/dukex/ximager/pkg/templates"
	"github.com/dukex/ximager/pkg/testutil"
	"github.com/dukex/ximager/pkg/web"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const unreachableEngine = "http://127.0.0.1:1"

type testEnv struct {
	app          *fiber.App
	orchestrator *orchestrator.Orchestrator
	workflowDir  string
	ready        *atomic.Bool
}

// newTestEngine answers like a remote engine that renders out.png once ready is set.
func newTestEngine(t *testing.T, ready *atomic.Bool) string {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/system_stats", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"system":{"os":"posix"}}`)
	})
	mux.HandleFunc("/upload/image", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"name":"uploaded.png","subfolder":"","type":"input"}`)
	})
	mux.HandleFunc("/prompt", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"prompt_id":"run-1","number":1}`)
	})
	mux.HandleFunc("/history/", func(w http.ResponseWriter, _ *http.Request) {
		if !ready.Load() {
			_, _ = io.WriteString(w, `{}`)

			return
		}

		_, _ = io.WriteString(w, `{"run-1":{"outputs":{"9":{"images":[{"filename":"out.png","subfolder":"","type":"output"}]}}}}`)
	})
	mux.HandleFunc("/view", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("filename") != "out.png" {
			http.NotFound(w, r)

			return
		}

		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png-bytes"))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return server.URL
}

func setupTestApp(t *testing.T, engineURL string) testEnv {
	t.Helper()

	ready := &atomic.Bool{}
	ready.Store(true)

	if engineURL == "" {
		engineURL = newTestEngine(t, ready)
	}

	workflowDir := t.TempDir()
	graph, err := json.Marshal(testutil.CreateTestGraph())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(workflowDir, "portrait.json"), graph, 0600))

	logger := slog.Default()
	store := file.NewPersistence(t.TempDir())
	index := keywords.NewIndex(store, logger)
	macros := keywords.NewMacros(store, logger)
	source := templates.NewDirSource(workflowDir, logger)
	client := comfyui.NewClient(config.NewHandle(engineURL), logger)

	runner := orchestrator.New(
		gateway.NewEngine(client, source, logger), macros, index, sink.NewDataURL(), logger,
		orchestrator.WithConfig(orchestrator.Config{
			ProgressSteps:   50,
			ProgressStep:    time.Millisecond,
			PollInterval:    2 * time.Millisecond,
			PollMaxAttempts: 5000,
			RecordTimeout:   time.Second,
			MaxLogEntries:   100,
		}),
	)
	t.Cleanup(runner.Wait)

	handlers := web.NewAPIHandlers(web.Dependencies{
		Orchestrator: runner,
		Gateway:      gateway.NewEngine(client, source, logger),
		Renamer:      source,
		Keywords:     index,
		Macros:       macros,
		Engine:       client,
		Store:        store,
		RunContext:   context.Background(),
		Logger:       logger,
	})

	app := fiber.New()
	app.Get("/health", handlers.HealthCheck)

	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/rename", handlers.RenameWorkflow)
	w.Get("/:name", handlers.GetWorkflow)

	e := app.Group("/executions")
	e.Post("/", handlers.StartExecution)
	e.Get("/current", handlers.GetCurrentExecution)
	e.Get("/current/logs", handlers.GetExecutionLogs)

	k := app.Group("/keywords")
	k.Get("/", handlers.GetKeywords)
	k.Post("/", handlers.ReplaceKeywords)
	k.Get("/suggest", handlers.SuggestKeywords)
	k.Get("/entries", handlers.ListKeywords)
	k.Post("/entries", handlers.AddKeyword)
	k.Patch("/entries/:text", handlers.RenameKeyword)
	k.Delete("/entries/:text", handlers.DeleteKeyword)

	m := app.Group("/macros")
	m.Get("/", handlers.GetMacros)
	m.Post("/", handlers.ReplaceMacros)
	m.Put("/:key", handlers.SetMacro)
	m.Delete("/:key", handlers.DeleteMacro)

	app.All(web.RelayPrefix+"/*", handlers.Relay)

	return testEnv{app: app, orchestrator: runner, workflowDir: workflowDir, ready: ready}
}

func doJSON(t *testing.T, app *fiber.App, method, target string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader

	switch payload := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(payload)
	default:
		encoded, err := json.Marshal(payload)
		require.NoError(t, err)

		reader = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, target, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, data
}

func executionForm(t *testing.T, fields map[string]string, assets map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()

	var body bytes.Buffer

	writer := multipart.NewWriter(&body)

	for name, value := range fields {
		require.NoError(t, writer.WriteField(name, value))
	}

	for field, content := range assets {
		part, err := writer.CreateFormFile(field, field+".png")
		require.NoError(t, err)

		_, err = part.Write(content)
		require.NoError(t, err)
	}

	require.NoError(t, writer.Close())

	return &body, writer.FormDataContentType()
}

func startExecution(t *testing.T, app *fiber.App, fields map[string]string, assets map[string][]byte) (*http.Response, []byte) {
	t.Helper()

	body, contentType := executionForm(t, fields, assets)

	req := httptest.NewRequest(http.MethodPost, "/executions", body)
	req.Header.Set("Content-Type", contentType)

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, data
}

func TestAPIHandlers_HealthCheck(t *testing.T) {
	t.Parallel()

	t.Run("healthy", func(t *testing.T) {
		t.Parallel()

		env := setupTestApp(t, "")

		resp, body := doJSON(t, env.app, http.MethodGet, "/health", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var health map[string]any
		require.NoError(t, json.Unmarshal(body, &health))
		assert.Equal(t, "healthy", health["status"])
	})

	t.Run("engine unreachable", func(t *testing.T) {
		t.Parallel()

		env := setupTestApp(t, unreachableEngine)

		resp, body := doJSON(t, env.app, http.MethodGet, "/health", nil)
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

		var health map[string]any
		require.NoError(t, json.Unmarshal(body, &health))
		assert.Equal(t, "unhealthy", health["status"])
		assert.Equal(t, unreachableEngine, health["engine_url"])
	})
}

func TestAPIHandlers_Workflows(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t, "")

	resp, body := doJSON(t, env.app, http.MethodGet, "/workflows", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list struct {
		Workflows []string `json:"workflows"`
		Count     int      `json:"count"`
	}
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Equal(t, []string{"portrait.json"}, list.Workflows)
	assert.Equal(t, 1, list.Count)

	resp, body = doJSON(t, env.app, http.MethodGet, "/workflows/portrait.json", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var workflow web.WorkflowResponse
	require.NoError(t, json.Unmarshal(body, &workflow))
	assert.Equal(t, "portrait", workflow.DisplayName)
	assert.Equal(t, 2, workflow.Slots)
	assert.Equal(t, web.DimensionsResponse{Width: 512, Height: 512}, workflow.Dimensions)
	assert.Len(t, workflow.Graph, 6)

	resp, _ = doJSON(t, env.app, http.MethodGet, "/workflows/missing.json", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIHandlers_RenameWorkflow(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		body           any
		expectedStatus int
	}{
		{"renames and normalizes", web.RenameWorkflowRequest{OldName: "portrait.json", NewName: "headshot"}, http.StatusOK},
		{"missing source", web.RenameWorkflowRequest{OldName: "missing.json", NewName: "other.json"}, http.StatusNotFound},
		{"path in new name", web.RenameWorkflowRequest{OldName: "portrait.json", NewName: "../escape.json"}, http.StatusBadRequest},
		{"missing field", map[string]string{"oldName": "portrait.json"}, http.StatusBadRequest},
		{"malformed body", "{", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := setupTestApp(t, "")

			resp, body := doJSON(t, env.app, http.MethodPost, "/workflows/rename", tt.body)
			require.Equal(t, tt.expectedStatus, resp.StatusCode, string(body))

			if tt.expectedStatus != http.StatusOK {
				return
			}

			var renamed web.RenameWorkflowResponse
			require.NoError(t, json.Unmarshal(body, &renamed))
			assert.True(t, renamed.Success)
			assert.Equal(t, "headshot.json", renamed.NewName)
			assert.FileExists(t, filepath.Join(env.workflowDir, "headshot.json"))
			assert.NoFileExists(t, filepath.Join(env.workflowDir, "portrait.json"))
		})
	}
}

func TestAPIHandlers_RenameWorkflowConflict(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t, "")
	require.NoError(t, os.WriteFile(filepath.Join(env.workflowDir, "other.json"), []byte(`{"1":{}}`), 0600))

	resp, _ := doJSON(t, env.app, http.MethodPost, "/workflows/rename",
		web.RenameWorkflowRequest{OldName: "portrait.json", NewName: "other.json"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAPIHandlers_StartExecution(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t, "")

	resp, body := startExecution(t, env.app,
		map[string]string{"workflow": "portrait.json", "prompt": "forest, fog", "width": "768"},
		map[string][]byte{"asset_0": []byte("A")},
	)
	require.Equal(t, http.StatusAccepted, resp.StatusCode, string(body))

	var started models.ExecutionRecord
	require.NoError(t, json.Unmarshal(body, &started))
	assert.NotEmpty(t, started.ID)
	assert.Equal(t, "portrait.json", started.Workflow)

	env.orchestrator.Wait()

	resp, body = doJSON(t, env.app, http.MethodGet, "/executions/current", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var current models.ExecutionRecord
	require.NoError(t, json.Unmarshal(body, &current))
	assert.Equal(t, started.ID, current.ID)
	assert.Equal(t, models.ExecutionStateDone, current.State)
	assert.InDelta(t, 100.0, current.ProgressPercent, 0.001)
	require.NotNil(t, current.ResultRef)
	assert.Equal(t, "data:image/png;base64,cG5nLWJ5dGVz", *current.ResultRef)

	resp, body = doJSON(t, env.app, http.MethodGet, "/executions/current/logs", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var logs []models.LogEntry
	require.NoError(t, json.Unmarshal(body, &logs))
	assert.NotEmpty(t, logs)
}

func TestAPIHandlers_StartExecutionValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		fields map[string]string
		assets map[string][]byte
	}{
		{"missing workflow", map[string]string{"prompt": "forest"}, nil},
		{"non numeric width", map[string]string{"workflow": "portrait.json", "width": "wide"}, nil},
		{"zero height", map[string]string{"workflow": "portrait.json", "height": "0"}, nil},
		{"bad asset field", map[string]string{"workflow": "portrait.json"}, map[string][]byte{"asset_first": []byte("A")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := setupTestApp(t, "")

			resp, body := startExecution(t, env.app, tt.fields, tt.assets)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(body))
		})
	}
}

func TestAPIHandlers_StartExecutionWhileRunning(t *testing.T) {
	t.Parallel()

	ready := &atomic.Bool{}
	env := setupTestApp(t, newTestEngine(t, ready))

	resp, _ := startExecution(t, env.app, map[string]string{"workflow": "portrait.json"}, nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp, body := startExecution(t, env.app, map[string]string{"workflow": "portrait.json"}, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode, string(body))

	ready.Store(true)
	env.orchestrator.Wait()

	assert.Equal(t, models.ExecutionStateDone, env.orchestrator.Snapshot().State)
}

func TestAPIHandlers_Keywords(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t, "")

	resp, body := doJSON(t, env.app, http.MethodPost, "/keywords", models.KeywordTable{
		"forest": {Text: "forest", Count: 3, LastUsed: 10},
		"fog":    {Text: "fog", Count: 1, LastUsed: 20},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.JSONEq(t, `{"ok":true}`, string(body))

	resp, body = doJSON(t, env.app, http.MethodGet, "/keywords", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var table models.KeywordTable
	require.NoError(t, json.Unmarshal(body, &table))
	assert.Len(t, table, 2)
	assert.Equal(t, 3, table["forest"].Count)

	resp, body = doJSON(t, env.app, http.MethodGet, "/keywords/suggest?q=for", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var suggestions []models.KeywordStat
	require.NoError(t, json.Unmarshal(body, &suggestions))
	require.Len(t, suggestions, 1)
	assert.Equal(t, "forest", suggestions[0].Text)

	resp, body = doJSON(t, env.app, http.MethodPost, "/keywords/entries", web.AddKeywordRequest{Text: "mist"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var added models.KeywordStat
	require.NoError(t, json.Unmarshal(body, &added))
	assert.Equal(t, "mist", added.Text)
	assert.Equal(t, 1, added.Count)

	resp, body = doJSON(t, env.app, http.MethodPatch, "/keywords/entries/fog", web.RenameKeywordRequest{Text: "forest"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var merged models.KeywordStat
	require.NoError(t, json.Unmarshal(body, &merged))
	assert.Equal(t, 4, merged.Count)
	assert.Equal(t, int64(20), merged.LastUsed)

	resp, _ = doJSON(t, env.app, http.MethodDelete, "/keywords/entries/mist", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = doJSON(t, env.app, http.MethodGet, "/keywords/entries", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var entries []models.KeywordStat
	require.NoError(t, json.Unmarshal(body, &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "forest", entries[0].Text)
}

func TestAPIHandlers_KeywordsValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		method string
		target string
		body   any
	}{
		{"negative count in table", http.MethodPost, "/keywords", `{"forest":{"text":"forest","count":-1}}`},
		{"table entry without count", http.MethodPost, "/keywords", `{"forest":{"text":"forest"}}`},
		{"table is not an object", http.MethodPost, "/keywords", `[]`},
		{"empty entry text", http.MethodPost, "/keywords/entries", `{"text":"   "}`},
		{"missing entry text", http.MethodPost, "/keywords/entries", `{"count":2}`},
		{"negative entry count", http.MethodPost, "/keywords/entries", `{"text":"forest","count":-2}`},
		{"rename without target", http.MethodPatch, "/keywords/entries/forest", `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := setupTestApp(t, "")

			resp, body := doJSON(t, env.app, tt.method, tt.target, tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(body))
		})
	}
}

func TestAPIHandlers_Macros(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t, "")

	resp, body := doJSON(t, env.app, http.MethodPut, "/macros/@rb", web.SetMacroRequest{Expansion: "remove background"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var macro web.MacroResponse
	require.NoError(t, json.Unmarshal(body, &macro))
	assert.Equal(t, web.MacroResponse{Key: "rb", Expansion: "remove background"}, macro)

	resp, body = doJSON(t, env.app, http.MethodGet, "/macros", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"rb":"remove background"}`, string(body))

	resp, body = doJSON(t, env.app, http.MethodPost, "/macros", `{"hd":"high detail","@sky":"blue sky"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	resp, body = doJSON(t, env.app, http.MethodGet, "/macros", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"hd":"high detail","sky":"blue sky"}`, string(body))

	resp, _ = doJSON(t, env.app, http.MethodDelete, "/macros/rb", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, env.app, http.MethodDelete, "/macros/hd", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestAPIHandlers_MacrosValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		method string
		target string
		body   string
	}{
		{"key with spaces", http.MethodPost, "/macros", `{"bad key":"x"}`},
		{"empty expansion", http.MethodPost, "/macros", `{"rb":""}`},
		{"non string expansion", http.MethodPost, "/macros", `{"rb":1}`},
		{"set without expansion", http.MethodPut, "/macros/rb", `{}`},
		{"set with invalid key", http.MethodPut, "/macros/bad-key", `{"expansion":"x"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := setupTestApp(t, "")

			resp, body := doJSON(t, env.app, tt.method, tt.target, tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(body))
		})
	}
}

func TestAPIHandlers_Relay(t *testing.T) {
	t.Parallel()

	t.Run("forwards to the engine", func(t *testing.T) {
		t.Parallel()

		env := setupTestApp(t, "")

		resp, body := doJSON(t, env.app, http.MethodGet, web.RelayPrefix+"/system_stats", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
		assert.JSONEq(t, `{"system":{"os":"posix"}}`, string(body))

		resp, body = doJSON(t, env.app, http.MethodGet, web.RelayPrefix+"/view?filename=out.png&type=output", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "png-bytes", string(body))

		resp, _ = doJSON(t, env.app, http.MethodGet, web.RelayPrefix+"/view?filename=other.png", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("engine unreachable", func(t *testing.T) {
		t.Parallel()

		env := setupTestApp(t, unreachableEngine)

		resp, _ := doJSON(t, env.app, http.MethodGet, web.RelayPrefix+"/system_stats", nil)
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	})
}
