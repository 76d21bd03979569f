package store

import (
	"database/sql"
	"fmt"

	_ "github.com/glebarez/go-sqlite"
	"github.com/tmc/langchaingo/llms"
)

// PlanStore persists chat history and interpreted plans in sqlite.
type PlanStore struct {
	DB *sql.DB
}

func NewPlanStore(dbPath string) (*PlanStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dbPath, err)
	}
	// sqlite allows one writer; a single connection avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)

	queries := []string{
		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			chat_id TEXT,
			role TEXT,
			content TEXT,
			timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS plans (
			id TEXT PRIMARY KEY,
			chat_id TEXT,
			request TEXT,
			origin TEXT,
			repairs TEXT,
			created_at TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS plan_steps (
			plan_id TEXT,
			position INTEGER,
			step_id TEXT,
			description TEXT,
			tool TEXT,
			status TEXT,
			reason TEXT,
			depends_on TEXT,
			parameters TEXT,
			provenance TEXT,
			outcome TEXT DEFAULT '',
			output TEXT DEFAULT '',
			PRIMARY KEY (plan_id, position)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_plans_chat ON plans (chat_id, created_at);`,
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}

	return &PlanStore{DB: db}, nil
}

func (h *PlanStore) Close() error {
	return h.DB.Close()
}

func (h *PlanStore) AddMessage(chatID string, role string, content string) error {
	query := `INSERT INTO messages (chat_id, role, content) VALUES (?, ?, ?)`
	if _, err := h.DB.Exec(query, chatID, role, content); err != nil {
		return fmt.Errorf("add message: %w", err)
	}
	return nil
}

// GetHistory returns the last limit messages of a chat, oldest first.
func (h *PlanStore) GetHistory(chatID string, limit int) ([]llms.MessageContent, error) {
	query := `SELECT role, content FROM messages WHERE chat_id = ? ORDER BY id DESC LIMIT ?`
	rows, err := h.DB.Query(query, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var history []llms.MessageContent
	for rows.Next() {
		var role, content string
		if err := rows.Scan(&role, &content); err != nil {
			return nil, err
		}

		var msgRole llms.ChatMessageType
		switch role {
		case "human":
			msgRole = llms.ChatMessageTypeHuman
		case "ai":
			msgRole = llms.ChatMessageTypeAI
		case "system":
			msgRole = llms.ChatMessageTypeSystem
		default:
			msgRole = llms.ChatMessageTypeHuman
		}

		history = append(history, llms.MessageContent{
			Role: msgRole,
			Parts: []llms.ContentPart{
				llms.TextPart(content),
			},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse to get chronological order
	for i, j := 0, len(history)-1; i < j; i, j = i+1, j-1 {
		history[i], history[j] = history[j], history[i]
	}

	return history, nil
}
