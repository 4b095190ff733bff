package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/agentcore/orchestrator/pkg/config"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// StoredMessage is the persisted assistant turn: the full content plus
// the full list of step records, so a client can replay a turn without
// re-running the model (§4.5 "Persistence").
type StoredMessage struct {
	SessionID string       `json:"session_id"`
	Content   string       `json:"content"`
	Steps     []StepRecord `json:"steps"`
	CreatedAt time.Time    `json:"created_at"`
}

// ConversationStore persists the assistant message produced by each turn.
type ConversationStore interface {
	Append(ctx context.Context, msg StoredMessage) error
	History(ctx context.Context, sessionID string) ([]StoredMessage, error)
}

// MemoryConversationStore is the default ConversationStore: process-local,
// lost on restart.
type MemoryConversationStore struct {
	mu   sync.RWMutex
	byID map[string][]StoredMessage
}

func NewMemoryConversationStore() *MemoryConversationStore {
	return &MemoryConversationStore{byID: make(map[string][]StoredMessage)}
}

func (s *MemoryConversationStore) Append(_ context.Context, msg StoredMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[msg.SessionID] = append(s.byID[msg.SessionID], msg)
	return nil
}

func (s *MemoryConversationStore) History(_ context.Context, sessionID string) ([]StoredMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]StoredMessage, len(s.byID[sessionID]))
	copy(out, s.byID[sessionID])
	return out, nil
}

// SQLConversationStore persists assistant turns to a relational table via
// database/sql, selected by driver: sqlite3, postgres, or mysql.
type SQLConversationStore struct {
	db      *sql.DB
	dialect string
}

// NewSQLConversationStore opens cfg's DSN and ensures the conversation
// table exists.
func NewSQLConversationStore(cfg *config.StoreConfig) (*SQLConversationStore, error) {
	if cfg == nil || cfg.DSN == "" {
		return nil, fmt.Errorf("conversation store requires a dsn")
	}
	driverName := cfg.Driver
	if driverName == "sqlite" || driverName == "" {
		driverName = "sqlite3"
	}

	db, err := sql.Open(driverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open conversation store: %w", err)
	}

	store := &SQLConversationStore{db: db, dialect: driverName}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLConversationStore) initSchema() error {
	var schema string
	switch s.dialect {
	case "postgres":
		schema = `CREATE TABLE IF NOT EXISTS conversation_messages (
	id SERIAL PRIMARY KEY,
	session_id VARCHAR(255) NOT NULL,
	content TEXT NOT NULL,
	steps_json TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
)`
	case "mysql":
		schema = `CREATE TABLE IF NOT EXISTS conversation_messages (
	id INTEGER PRIMARY KEY AUTO_INCREMENT,
	session_id VARCHAR(255) NOT NULL,
	content TEXT NOT NULL,
	steps_json TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
)`
	default: // sqlite3
		schema = `CREATE TABLE IF NOT EXISTS conversation_messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id VARCHAR(255) NOT NULL,
	content TEXT NOT NULL,
	steps_json TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
)`
	}
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLConversationStore) placeholder(n int) string {
	if s.dialect == "postgres" {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (s *SQLConversationStore) Append(ctx context.Context, msg StoredMessage) error {
	stepsJSON, err := json.Marshal(msg.Steps)
	if err != nil {
		return fmt.Errorf("marshal steps: %w", err)
	}
	query := fmt.Sprintf(
		"INSERT INTO conversation_messages (session_id, content, steps_json, created_at) VALUES (%s, %s, %s, %s)",
		s.placeholder(1), s.placeholder(2), s.placeholder(3), s.placeholder(4),
	)
	_, err = s.db.ExecContext(ctx, query, msg.SessionID, msg.Content, string(stepsJSON), msg.CreatedAt)
	return err
}

func (s *SQLConversationStore) History(ctx context.Context, sessionID string) ([]StoredMessage, error) {
	query := fmt.Sprintf(
		"SELECT session_id, content, steps_json, created_at FROM conversation_messages WHERE session_id = %s ORDER BY id ASC",
		s.placeholder(1),
	)
	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StoredMessage
	for rows.Next() {
		var msg StoredMessage
		var stepsJSON string
		if err := rows.Scan(&msg.SessionID, &msg.Content, &stepsJSON, &msg.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(stepsJSON), &msg.Steps); err != nil {
			return nil, fmt.Errorf("unmarshal steps: %w", err)
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

func (s *SQLConversationStore) Close() error {
	return s.db.Close()
}
