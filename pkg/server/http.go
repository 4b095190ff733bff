package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/agentcore/orchestrator/pkg/checkpoint"
	"github.com/agentcore/orchestrator/pkg/config"
	"github.com/agentcore/orchestrator/pkg/llms"
	"github.com/agentcore/orchestrator/pkg/observability"
	"github.com/agentcore/orchestrator/pkg/permission"
	"github.com/agentcore/orchestrator/pkg/reasoning"
	"github.com/agentcore/orchestrator/pkg/tools"
)

// Handler wires the chat SSE endpoint over a shared provider gateway, tool
// registry, and conversation store.
type Handler struct {
	Gateway            *llms.Gateway
	Tools              *tools.ToolRegistry
	Skills             map[string]*config.SkillConfig
	Store              ConversationStore
	Checkpoint         *checkpoint.Manager
	Config             config.ServerConfig
	ExpectedOutputKeys map[string][]string
}

// chatRequest is the client-supplied turn payload.
type chatRequest struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	Input     string `json:"input"`
	ModelID   string `json:"model_id,omitempty"`
}

// Routes builds the chi router for the SSE boundary, instrumented with the
// same request-id/recoverer/tracing-and-metrics middleware stack as the
// rest of this tree's HTTP surface.
func (h *Handler) Routes(obs *observability.Manager) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(observability.HTTPMiddleware(obs.Tracer(), obs.Metrics()))

	r.Post("/v1/chat/stream", h.handleChatStream)
	r.Get("/v1/tools", h.handleListTools)
	r.Get("/v1/skills", h.handleListSkills)
	r.Get("/metrics", obs.MetricsHandler().ServeHTTP)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	return r
}

// handleListTools is the read-only catalog listing the boundary exposes
// alongside the SSE endpoint (non-internal tools only).
func (h *Handler) handleListTools(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(h.Tools.ListToolsWithFilter(true))
}

// handleListSkills is the read-only skill catalog listing.
func (h *Handler) handleListSkills(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(h.Skills)
}

func (h *Handler) handleChatStream(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Input == "" {
		http.Error(w, "input is required", http.StatusBadRequest)
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	state := reasoning.NewAgentState(req.SessionID, req.UserID, req.Input, h.toolDefinitions(), h.Config.IterationCap)
	state.ModelID = req.ModelID

	turn := &Turn{
		Deps: reasoning.Deps{
			Gateway:            h.Gateway,
			OwnerID:            req.UserID,
			Tools:              h.Tools,
			Caller:             permission.User{ID: req.UserID},
			Checkpoint:         h.Checkpoint,
			ExpectedOutputKeys: h.ExpectedOutputKeys,
		},
		State:     state,
		QueueSize: h.Config.QueueSize,
	}

	// Client disconnect cancels r.Context(), which propagates into the
	// turn's provider calls and tool executions, stopping both producers
	// (§4.5 "Cancellation").
	ctx := r.Context()
	frames := make(chan Frame, turn.QueueSize)
	done := make(chan struct{})
	go func() {
		defer close(done)
		content, steps, err := turn.Run(ctx, frames)
		close(frames)
		if err != nil || ctx.Err() != nil {
			// A canceled or failed turn discards its accumulated content
			// rather than persisting a partial assistant message.
			return
		}
		_ = h.Store.Append(context.Background(), StoredMessage{
			SessionID: req.SessionID,
			Content:   content,
			Steps:     steps,
			CreatedAt: time.Now(),
		})
	}()

	for frame := range frames {
		if err := writeFrame(w, frame); err != nil {
			break
		}
		flusher.Flush()
	}
	<-done
}

func (h *Handler) toolDefinitions() []llms.ToolDefinition {
	if h.Tools == nil {
		return nil
	}
	infos := h.Tools.ListTools()
	defs := make([]llms.ToolDefinition, 0, len(infos))
	for _, info := range infos {
		defs = append(defs, llms.ToolDefinition{Name: info.Name, Description: info.Description})
	}
	return defs
}

// writeFrame writes one SSE frame:
// `data: {"event":"<name>","data":"<json string>"}\n\n` (§4.5 "Transport").
func writeFrame(w http.ResponseWriter, f Frame) error {
	payload, err := json.Marshal(f.Payload)
	if err != nil {
		return err
	}
	envelope := struct {
		Event string `json:"event"`
		Data  string `json:"data"`
	}{Event: string(f.Name), Data: string(payload)}

	encoded, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", encoded)
	return err
}
