// Package store provides SQLite-backed persistence for users,
// conversations, messages, and the domain entities mutated by tools.
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite-backed datastore. All reads and writes are scoped
// by user id; nothing outside this package touches the database.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at dbPath and applies the schema.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Users
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		phone TEXT UNIQUE,
		name TEXT,
		system_prompt TEXT,
		model TEXT,
		bot_mode TEXT,
		created_at TIMESTAMP NOT NULL
	);

	-- Conversations (sessions). At most one active row per
	-- (user_id, thread_id); the partial unique index is the source of
	-- truth under concurrent first-message deliveries.
	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		thread_id TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		last_message_at TIMESTAMP NOT NULL,
		created_at TIMESTAMP NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id)
	);
	CREATE UNIQUE INDEX IF NOT EXISTS ux_conversations_active
		ON conversations(user_id, thread_id) WHERE status = 'active';
	CREATE INDEX IF NOT EXISTS idx_conversations_user ON conversations(user_id, thread_id);

	-- Messages. provider_message_id carries the gateway's id and backs
	-- delivery deduplication.
	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		media_url TEXT,
		media_type TEXT,
		provider_message_id TEXT,
		created_at TIMESTAMP NOT NULL,
		FOREIGN KEY (conversation_id) REFERENCES conversations(id)
	);
	CREATE UNIQUE INDEX IF NOT EXISTS ux_messages_provider_id
		ON messages(provider_message_id) WHERE provider_message_id IS NOT NULL AND provider_message_id != '';
	CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_messages_user ON messages(user_id, created_at);

	-- Collections (durable lists) and their items
	CREATE TABLE IF NOT EXISTS collections (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		pinned BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_collections_user ON collections(user_id, status);

	CREATE TABLE IF NOT EXISTS collection_items (
		id TEXT PRIMARY KEY,
		collection_id TEXT NOT NULL,
		content TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		position INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		FOREIGN KEY (collection_id) REFERENCES collections(id)
	);
	CREATE INDEX IF NOT EXISTS idx_collection_items ON collection_items(collection_id, position);

	-- Tasks. Checklist tasks store items as a line-oriented text block
	-- with per-line checkbox markers.
	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		is_checklist BOOLEAN NOT NULL DEFAULT FALSE,
		status TEXT NOT NULL DEFAULT 'open',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_tasks_user ON tasks(user_id, status, updated_at);

	-- Reminders
	CREATE TABLE IF NOT EXISTS reminders (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		due_at TIMESTAMP NOT NULL,
		recurrence TEXT NOT NULL DEFAULT 'none',
		recurrence_interval INTEGER,
		recurrence_unit TEXT,
		recurrence_count INTEGER,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_reminders_user ON reminders(user_id, status, due_at);

	-- Free-form semantic memory
	CREATE TABLE IF NOT EXISTS memories (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_memories_user ON memories(user_id, created_at);

	-- Tool call audit log (observability; write failures never abort
	-- the tool call itself)
	CREATE TABLE IF NOT EXISTS tool_calls (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		tool_name TEXT NOT NULL,
		arguments TEXT NOT NULL,
		result TEXT,
		error TEXT,
		started_at TIMESTAMP NOT NULL,
		completed_at TIMESTAMP,
		duration_ms INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_tool_calls_user ON tool_calls(user_id, started_at);
	CREATE INDEX IF NOT EXISTS idx_tool_calls_tool ON tool_calls(tool_name);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
