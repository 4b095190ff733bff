package server

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/agentcore/orchestrator/pkg/config"
	"github.com/agentcore/orchestrator/pkg/observability"
)

func TestHandler_ChatStream_WritesSSEFrames(t *testing.T) {
	cfg := config.ServerConfig{IterationCap: 10, QueueSize: 32}
	handler := &Handler{
		Gateway: newTestGateway(t),
		Tools:   newTestRegistry(t),
		Store:   NewMemoryConversationStore(),
		Config:  cfg,
	}
	obs, err := observability.NewManager(context.Background(), nil)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	srv := httptest.NewServer(handler.Routes(obs))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1/chat/stream", "application/json",
		strings.NewReader(`{"session_id":"s1","user_id":"u1","input":"hello there"}`))
	if err != nil {
		t.Fatalf("POST error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}

	var body bytes.Buffer
	body.ReadFrom(resp.Body)
	out := body.String()
	if !strings.Contains(out, `"event":"message"`) && !strings.Contains(out, `"event":"done"`) {
		t.Errorf("body = %q, want at least a message or done frame", out)
	}
	if !strings.Contains(out, `"event":"done"`) {
		t.Errorf("body = %q, want a terminal done frame", out)
	}
}

func TestHandler_ChatStream_RejectsEmptyInput(t *testing.T) {
	handler := &Handler{
		Gateway: newTestGateway(t),
		Tools:   newTestRegistry(t),
		Store:   NewMemoryConversationStore(),
		Config:  config.ServerConfig{IterationCap: 10, QueueSize: 32},
	}
	obs, _ := observability.NewManager(context.Background(), nil)
	srv := httptest.NewServer(handler.Routes(obs))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1/chat/stream", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("POST error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHandler_Healthz(t *testing.T) {
	handler := &Handler{Gateway: newTestGateway(t), Tools: newTestRegistry(t), Store: NewMemoryConversationStore()}
	obs, _ := observability.NewManager(context.Background(), nil)
	srv := httptest.NewServer(handler.Routes(obs))
	defer srv.Close()

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestHandler_ListToolsAndSkills(t *testing.T) {
	handler := &Handler{
		Gateway: newTestGateway(t),
		Tools:   newTestRegistry(t),
		Skills:  map[string]*config.SkillConfig{"lookup_and_score": {}},
		Store:   NewMemoryConversationStore(),
	}
	obs, _ := observability.NewManager(context.Background(), nil)
	srv := httptest.NewServer(handler.Routes(obs))
	defer srv.Close()

	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(srv.URL + "/v1/tools")
	if err != nil {
		t.Fatalf("GET /v1/tools error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	resp2, err := client.Get(srv.URL + "/v1/skills")
	if err != nil {
		t.Fatalf("GET /v1/skills error = %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp2.StatusCode)
	}
}
