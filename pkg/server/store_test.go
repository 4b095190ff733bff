package server

import (
	"context"
	"testing"
	"time"

	"github.com/agentcore/orchestrator/pkg/config"
)

func TestMemoryConversationStore_AppendAndHistory(t *testing.T) {
	store := NewMemoryConversationStore()
	ctx := context.Background()

	msg := StoredMessage{
		SessionID: "s1",
		Content:   "hello",
		Steps:     []StepRecord{{ID: "think-0", Title: "Thinking", Status: "completed"}},
		CreatedAt: time.Now(),
	}
	if err := store.Append(ctx, msg); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := store.Append(ctx, StoredMessage{SessionID: "s1", Content: "second"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := store.Append(ctx, StoredMessage{SessionID: "s2", Content: "other session"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	history, err := store.History(ctx, "s1")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("History() = %v, want 2 messages for s1", history)
	}
	if history[0].Content != "hello" || history[1].Content != "second" {
		t.Errorf("History() order = %+v", history)
	}

	history[0].Content = "mutated"
	again, _ := store.History(ctx, "s1")
	if again[0].Content == "mutated" {
		t.Error("History() should return a defensive copy")
	}
}

func TestMemoryConversationStore_HistoryUnknownSession(t *testing.T) {
	store := NewMemoryConversationStore()
	history, err := store.History(context.Background(), "missing")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 0 {
		t.Errorf("History() = %v, want empty for unknown session", history)
	}
}

func TestSQLConversationStore_SqliteRoundTrip(t *testing.T) {
	store, err := NewSQLConversationStore(&config.StoreConfig{Driver: "sqlite", DSN: ":memory:"})
	if err != nil {
		t.Fatalf("NewSQLConversationStore() error = %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	msg := StoredMessage{
		SessionID: "s1",
		Content:   "hello from sql",
		Steps:     []StepRecord{{ID: "think-0", Title: "Thinking", Status: "completed", Content: "ok"}},
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	if err := store.Append(ctx, msg); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	history, err := store.History(ctx, "s1")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("History() = %v, want 1 message", history)
	}
	if history[0].Content != msg.Content {
		t.Errorf("Content = %q, want %q", history[0].Content, msg.Content)
	}
	if len(history[0].Steps) != 1 || history[0].Steps[0].ID != "think-0" {
		t.Errorf("Steps = %+v", history[0].Steps)
	}
}

func TestNewSQLConversationStore_RequiresDSN(t *testing.T) {
	if _, err := NewSQLConversationStore(&config.StoreConfig{Driver: "sqlite"}); err == nil {
		t.Fatal("expected an error when DSN is empty")
	}
	if _, err := NewSQLConversationStore(nil); err == nil {
		t.Fatal("expected an error when config is nil")
	}
}
