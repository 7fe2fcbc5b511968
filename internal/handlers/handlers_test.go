package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"assistantmemory/internal/middleware"
	"assistantmemory/internal/services"
	"assistantmemory/internal/storage"
	"assistantmemory/pkg/auth"
)

func setupTestApp(t *testing.T) (*fiber.App, storage.Store) {
	t.Helper()

	store, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create test store: %v", err)
	}
	jwtAuth, err := auth.NewLocalJWTAuth("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("Failed to create JWT auth: %v", err)
	}

	authService := services.NewAuthService(store, jwtAuth, time.Minute)
	h := New(store, Services{
		Auth:        authService,
		Contexts:    services.NewContextService(store),
		Tasks:       services.NewTaskService(store),
		Preferences: services.NewPreferenceService(store),
		Data:        services.NewDataService(store),
	}, "testing")

	app := fiber.New()
	passthrough := func(c *fiber.Ctx) error { return c.Next() }
	h.Mount(app.Group("/api/v1"), middleware.APIKeyOrJWTMiddleware(authService), passthrough)
	return app, store
}

type response struct {
	status int
	body   map[string]any
}

func doRequest(t *testing.T, app *fiber.App, method, path, token string, body any) response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = bytes.NewBufferString(b)
		default:
			raw, err := json.Marshal(b)
			if err != nil {
				t.Fatalf("Failed to encode body: %v", err)
			}
			reader = bytes.NewReader(raw)
		}
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("Failed to send request: %v", err)
	}
	defer resp.Body.Close()

	out := response{status: resp.StatusCode}
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out.body); err != nil {
			t.Fatalf("Failed to decode response %q: %v", raw, err)
		}
	}
	return out
}

func register(t *testing.T, app *fiber.App, username string) (token, apiKey string) {
	t.Helper()

	resp := doRequest(t, app, "POST", "/api/v1/auth/register", "", map[string]any{
		"username": username,
		"email":    username + "@example.com",
		"password": "correct-horse",
	})
	if resp.status != fiber.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %v", resp.status, resp.body)
	}
	user := resp.body["user"].(map[string]any)
	if _, leaked := user["password"]; leaked {
		t.Fatal("Expected password to be omitted from response")
	}
	return resp.body["token"].(string), user["apiKey"].(string)
}

// TestHealthHandler tests the health check endpoint
func TestHealthHandler(t *testing.T) {
	app, _ := setupTestApp(t)

	resp := doRequest(t, app, "GET", "/api/v1/health", "", nil)
	if resp.status != fiber.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.status)
	}
	if resp.body["status"] != "healthy" {
		t.Errorf("Expected status 'healthy', got %v", resp.body["status"])
	}
	if resp.body["storage"] != "json" {
		t.Errorf("Expected storage 'json', got %v", resp.body["storage"])
	}
	if resp.body["environment"] != "testing" {
		t.Errorf("Expected environment 'testing', got %v", resp.body["environment"])
	}
}

func TestAuthRoutes(t *testing.T) {
	app, _ := setupTestApp(t)
	token, apiKey := register(t, app, "alice")

	t.Run("duplicate registration", func(t *testing.T) {
		resp := doRequest(t, app, "POST", "/api/v1/auth/register", "", map[string]any{
			"username": "Alice",
			"email":    "other@example.com",
			"password": "correct-horse",
		})
		if resp.status != fiber.StatusConflict {
			t.Errorf("Expected status 409, got %d", resp.status)
		}
	})

	t.Run("invalid registration", func(t *testing.T) {
		resp := doRequest(t, app, "POST", "/api/v1/auth/register", "", map[string]any{"username": "bob"})
		if resp.status != fiber.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", resp.status)
		}
	})

	t.Run("login", func(t *testing.T) {
		resp := doRequest(t, app, "POST", "/api/v1/auth/login", "", map[string]any{
			"username": "alice",
			"password": "correct-horse",
		})
		if resp.status != fiber.StatusOK {
			t.Fatalf("Expected status 200, got %d: %v", resp.status, resp.body)
		}
		if resp.body["token"] == "" {
			t.Error("Expected a token")
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		resp := doRequest(t, app, "POST", "/api/v1/auth/login", "", map[string]any{
			"username": "alice",
			"password": "wrong-horse",
		})
		if resp.status != fiber.StatusUnauthorized {
			t.Errorf("Expected status 401, got %d", resp.status)
		}
	})

	t.Run("profile with token", func(t *testing.T) {
		resp := doRequest(t, app, "GET", "/api/v1/auth/me", token, nil)
		if resp.status != fiber.StatusOK {
			t.Fatalf("Expected status 200, got %d", resp.status)
		}
		user := resp.body["user"].(map[string]any)
		if user["username"] != "alice" {
			t.Errorf("Expected username 'alice', got %v", user["username"])
		}
	})

	t.Run("profile with api key", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/auth/me", nil)
		req.Header.Set("X-API-Key", apiKey)
		resp, err := app.Test(req, -1)
		if err != nil {
			t.Fatalf("Failed to send request: %v", err)
		}
		if resp.StatusCode != fiber.StatusOK {
			t.Errorf("Expected status 200, got %d", resp.StatusCode)
		}
	})

	t.Run("unauthenticated", func(t *testing.T) {
		for _, token := range []string{"", "not-a-jwt"} {
			resp := doRequest(t, app, "GET", "/api/v1/contexts", token, nil)
			if resp.status != fiber.StatusUnauthorized {
				t.Errorf("Token %q: expected status 401, got %d", token, resp.status)
			}
		}
	})
}

func TestContextRoutes(t *testing.T) {
	app, _ := setupTestApp(t)
	alice, _ := register(t, app, "alice")
	bob, _ := register(t, app, "bobby")

	resp := doRequest(t, app, "POST", "/api/v1/contexts", alice, map[string]any{
		"content":   "The user prefers short answers",
		"sessionId": "s1",
		"tags":      []string{"style"},
		"metadata":  map[string]any{"source": "chat", "turn": 3},
	})
	if resp.status != fiber.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %v", resp.status, resp.body)
	}
	created := resp.body["context"].(map[string]any)
	id := created["contextId"].(string)
	if created["metadata"].(map[string]any)["turn"] != float64(3) {
		t.Errorf("Expected metadata to round-trip, got %v", created["metadata"])
	}

	doRequest(t, app, "POST", "/api/v1/contexts", alice, map[string]any{"content": "other session", "sessionId": "s2"})

	resp = doRequest(t, app, "GET", "/api/v1/contexts?sessionId=s1", alice, nil)
	if resp.body["count"] != float64(1) {
		t.Errorf("Expected 1 context in session s1, got %v", resp.body["count"])
	}
	resp = doRequest(t, app, "GET", "/api/v1/contexts?tags=style,%20missing", alice, nil)
	if resp.body["count"] != float64(1) {
		t.Errorf("Expected 1 context tagged style, got %v", resp.body["count"])
	}
	resp = doRequest(t, app, "GET", "/api/v1/contexts?limit=1&skip=1", alice, nil)
	if resp.body["count"] != float64(1) {
		t.Errorf("Expected a page of 1, got %v", resp.body["count"])
	}

	resp = doRequest(t, app, "GET", "/api/v1/contexts/"+id, bob, nil)
	if resp.status != fiber.StatusNotFound {
		t.Errorf("Expected other users to get 404, got %d", resp.status)
	}

	resp = doRequest(t, app, "PUT", "/api/v1/contexts/"+id, alice, map[string]any{"content": "edited"})
	if resp.status != fiber.StatusOK {
		t.Fatalf("Expected status 200, got %d: %v", resp.status, resp.body)
	}
	if got := resp.body["context"].(map[string]any)["content"]; got != "edited" {
		t.Errorf("Expected content 'edited', got %v", got)
	}

	resp = doRequest(t, app, "DELETE", "/api/v1/contexts/"+id, alice, nil)
	if resp.status != fiber.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.status)
	}
	resp = doRequest(t, app, "DELETE", "/api/v1/contexts/"+id, alice, nil)
	if resp.status != fiber.StatusNotFound {
		t.Errorf("Expected status 404 on second delete, got %d", resp.status)
	}
	if resp.body["error"] != "Context not found" {
		t.Errorf("Expected 'Context not found', got %v", resp.body["error"])
	}
}

func TestContextRoutes_BadInput(t *testing.T) {
	app, _ := setupTestApp(t)
	token, _ := register(t, app, "alice")

	tests := []struct {
		name string
		body any
	}{
		{"malformed json", `{"content":`},
		{"missing content", map[string]any{"sessionId": "s1"}},
		{"expired", map[string]any{"content": "x", "expiresAt": time.Now().Add(-time.Hour)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doRequest(t, app, "POST", "/api/v1/contexts", token, tt.body)
			if resp.status != fiber.StatusBadRequest {
				t.Errorf("Expected status 400, got %d", resp.status)
			}
		})
	}
}

func TestTaskRoutes(t *testing.T) {
	app, _ := setupTestApp(t)
	token, _ := register(t, app, "alice")

	resp := doRequest(t, app, "POST", "/api/v1/tasks", token, map[string]any{"title": "summarise notes", "priority": "high"})
	if resp.status != fiber.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %v", resp.status, resp.body)
	}
	task := resp.body["task"].(map[string]any)
	id := task["taskId"].(string)
	if task["status"] != "pending" {
		t.Errorf("Expected status 'pending', got %v", task["status"])
	}

	resp = doRequest(t, app, "PUT", "/api/v1/tasks/"+id, token, map[string]any{"status": "in_progress"})
	task = resp.body["task"].(map[string]any)
	if _, ok := task["startedAt"]; !ok {
		t.Error("Expected startedAt after moving to in_progress")
	}

	resp = doRequest(t, app, "PUT", "/api/v1/tasks/"+id, token, map[string]any{"status": "completed", "progress": 100})
	task = resp.body["task"].(map[string]any)
	if _, ok := task["completedAt"]; !ok {
		t.Error("Expected completedAt after completing")
	}

	resp = doRequest(t, app, "GET", "/api/v1/tasks?status=completed&priority=high", token, nil)
	if resp.body["count"] != float64(1) {
		t.Errorf("Expected 1 completed task, got %v", resp.body["count"])
	}
	resp = doRequest(t, app, "GET", "/api/v1/tasks?status=pending", token, nil)
	if resp.body["count"] != float64(0) {
		t.Errorf("Expected 0 pending tasks, got %v", resp.body["count"])
	}

	resp = doRequest(t, app, "PUT", "/api/v1/tasks/"+id, token, map[string]any{"status": "paused"})
	if resp.status != fiber.StatusBadRequest {
		t.Errorf("Expected status 400 for unknown status, got %d", resp.status)
	}
	resp = doRequest(t, app, "PUT", "/api/v1/tasks/does-not-exist", token, map[string]any{"title": "x"})
	if resp.status != fiber.StatusNotFound {
		t.Errorf("Expected status 404, got %d", resp.status)
	}
}

func TestPreferenceRoutes(t *testing.T) {
	app, _ := setupTestApp(t)
	token, _ := register(t, app, "alice")

	resp := doRequest(t, app, "GET", "/api/v1/preferences", token, nil)
	if resp.status != fiber.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.status)
	}
	if theme := resp.body["preferences"].(map[string]any)["theme"]; theme != "auto" {
		t.Errorf("Expected default theme 'auto', got %v", theme)
	}

	resp = doRequest(t, app, "PUT", "/api/v1/preferences", token, map[string]any{
		"theme":       "dark",
		"preferences": map[string]any{"verbosity": "terse"},
	})
	if resp.status != fiber.StatusOK {
		t.Fatalf("Expected status 200, got %d: %v", resp.status, resp.body)
	}

	resp = doRequest(t, app, "GET", "/api/v1/preferences/verbosity", token, nil)
	if resp.body["key"] != "verbosity" || resp.body["value"] != "terse" {
		t.Errorf("Expected verbosity=terse, got %v", resp.body)
	}
	resp = doRequest(t, app, "GET", "/api/v1/preferences/theme", token, nil)
	if resp.body["value"] != "dark" {
		t.Errorf("Expected theme=dark, got %v", resp.body["value"])
	}

	resp = doRequest(t, app, "GET", "/api/v1/preferences/missing", token, nil)
	if resp.status != fiber.StatusNotFound {
		t.Errorf("Expected status 404, got %d", resp.status)
	}
	if resp.body["error"] != "Preference key not found" {
		t.Errorf("Expected 'Preference key not found', got %v", resp.body["error"])
	}
}

func TestDataRoutes(t *testing.T) {
	app, _ := setupTestApp(t)
	token, _ := register(t, app, "alice")

	resp := doRequest(t, app, "POST", "/api/v1/data", token, map[string]any{
		"collection": "contacts",
		"data":       map[string]any{"name": "Ada", "emails": []string{"ada@example.com"}},
	})
	if resp.status != fiber.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %v", resp.status, resp.body)
	}
	id := resp.body["data"].(map[string]any)["dataId"].(string)

	doRequest(t, app, "POST", "/api/v1/data", token, map[string]any{"collection": "notes", "data": "hello"})

	resp = doRequest(t, app, "GET", "/api/v1/data?collection=contacts", token, nil)
	if resp.body["count"] != float64(1) {
		t.Errorf("Expected 1 item in contacts, got %v", resp.body["count"])
	}

	resp = doRequest(t, app, "GET", "/api/v1/data/"+id, token, nil)
	payload := resp.body["data"].(map[string]any)["data"].(map[string]any)
	if payload["name"] != "Ada" {
		t.Errorf("Expected payload to round-trip, got %v", payload)
	}

	resp = doRequest(t, app, "POST", "/api/v1/data", token, map[string]any{"collection": "notes"})
	if resp.status != fiber.StatusBadRequest {
		t.Errorf("Expected status 400 without data, got %d", resp.status)
	}

	resp = doRequest(t, app, "PUT", "/api/v1/data/"+id, token, `{"data": null}`)
	if resp.status != fiber.StatusBadRequest {
		t.Errorf("Expected status 400 for null data, got %d", resp.status)
	}

	resp = doRequest(t, app, "PUT", "/api/v1/data/"+id, token, `{"tags": ["people"]}`)
	if resp.status != fiber.StatusOK {
		t.Fatalf("Expected status 200 without data, got %d: %v", resp.status, resp.body)
	}
	payload = resp.body["data"].(map[string]any)["data"].(map[string]any)
	if payload["name"] != "Ada" {
		t.Errorf("Expected payload kept when data is omitted, got %v", payload)
	}

	resp = doRequest(t, app, "GET", "/api/v1/data?limit=9223372036854775807&skip=1", token, nil)
	if resp.status != fiber.StatusOK {
		t.Fatalf("Expected status 200 for a huge limit, got %d", resp.status)
	}
	if resp.body["count"] != float64(1) {
		t.Errorf("Expected 1 item after skipping one, got %v", resp.body["count"])
	}
}

func TestStorageErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&storage.Error{Kind: storage.KindNotFound}, fiber.StatusNotFound},
		{&storage.Error{Kind: storage.KindConflict}, fiber.StatusConflict},
		{storage.Invalidf("bad"), fiber.StatusBadRequest},
		{&storage.Error{Kind: storage.KindUnavailable}, fiber.StatusServiceUnavailable},
		{&storage.Error{Kind: storage.KindCorrupt}, fiber.StatusInternalServerError},
		{errors.New("boom"), fiber.StatusInternalServerError},
	}

	for _, tt := range tests {
		app := fiber.New()
		app.Get("/", func(c *fiber.Ctx) error {
			return storageError(c, tt.err, "Thing", "get thing")
		})

		resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
		if err != nil {
			t.Fatalf("Failed to send request: %v", err)
		}
		if resp.StatusCode != tt.want {
			t.Errorf("%v: expected status %d, got %d", tt.err, tt.want, resp.StatusCode)
		}
	}
}

func TestParseTags(t *testing.T) {
	if got := parseTags(""); got != nil {
		t.Errorf("Expected nil, got %v", got)
	}
	got := parseTags(" a, ,b ,")
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("Expected [a b], got %v", got)
	}
}
