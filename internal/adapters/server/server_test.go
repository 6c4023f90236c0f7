package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/evanschultz/kanboard/internal/adapters/server/common"
	"github.com/evanschultz/kanboard/internal/adapters/storage/memory"
	"github.com/evanschultz/kanboard/internal/app"
)

// newDependencies builds transport dependencies over a seeded in-memory service.
func newDependencies(t *testing.T) Dependencies {
	t.Helper()
	svc := app.NewService(memory.New(), nil, nil, app.ServiceConfig{})
	if _, err := svc.InitializeData(context.Background()); err != nil {
		t.Fatalf("InitializeData() error = %v", err)
	}
	adapter := common.NewAppServiceAdapter(svc)
	return Dependencies{Tasks: adapter, Boards: adapter, Snapshots: adapter}
}

// TestNewHandlerRoutes verifies health and mounted API routes.
func TestNewHandlerRoutes(t *testing.T) {
	handler, cfg, err := NewHandler(Config{APIEndpoint: "api/v1/"}, newDependencies(t))
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	if cfg.APIEndpoint != "/api/v1" || cfg.MCPEndpoint != "/mcp" || cfg.HTTPBind != defaultBindAddress {
		t.Fatalf("normalized config = %#v", cfg)
	}

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s status = %d, want 200", path, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/boards", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("boards status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var got struct {
		Boards []string `json:"boards"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(got.Boards) != 2 {
		t.Fatalf("boards = %#v", got.Boards)
	}
}

// TestNewHandlerRejectsInvalidConfig verifies endpoint collisions and missing deps.
func TestNewHandlerRejectsInvalidConfig(t *testing.T) {
	if _, _, err := NewHandler(Config{APIEndpoint: "/x", MCPEndpoint: "x/"}, newDependencies(t)); err == nil {
		t.Fatal("expected endpoint collision error")
	}
	if _, _, err := NewHandler(Config{}, Dependencies{}); err == nil {
		t.Fatal("expected missing tasks dependency error")
	}
}

// TestNormalizeEndpoint verifies endpoint canonicalization.
func TestNormalizeEndpoint(t *testing.T) {
	cases := map[string]string{
		"":          "/fallback",
		"/":         "/fallback",
		"api":       "/api",
		" /api/v2/": "/api/v2",
	}
	for in, want := range cases {
		if got := normalizeEndpoint(in, "/fallback"); got != want {
			t.Fatalf("normalizeEndpoint(%q) = %q, want %q", in, got, want)
		}
	}
}

// TestRunShutsDownOnCancel verifies graceful shutdown after context cancellation.
func TestRunShutsDownOnCancel(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	addr := listener.Addr().String()
	if err := listener.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	deps := newDependencies(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, Config{HTTPBind: addr}, deps, nil)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err == nil {
			_ = resp.Body.Close()
			break
		}
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("server did not start: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}
