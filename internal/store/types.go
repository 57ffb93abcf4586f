package store

import "time"

// User is a stable identity that owns all other entities.
type User struct {
	ID           string    `json:"id"`
	Phone        string    `json:"phone,omitempty"`
	Name         string    `json:"name,omitempty"`
	SystemPrompt string    `json:"system_prompt,omitempty"`
	Model        string    `json:"model,omitempty"`
	BotMode      string    `json:"bot_mode,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Conversation status values.
const (
	ConversationActive   = "active"
	ConversationArchived = "archived"
)

// Conversation is one session on a chat thread.
type Conversation struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	ThreadID      string    `json:"thread_id"`
	Status        string    `json:"status"`
	LastMessageAt time.Time `json:"last_message_at"`
	CreatedAt     time.Time `json:"created_at"`
}

// Message is the immutable record of one inbound or outbound turn.
type Message struct {
	ID                string    `json:"id"`
	ConversationID    string    `json:"conversation_id"`
	UserID            string    `json:"user_id"`
	Role              string    `json:"role"`
	Content           string    `json:"content"`
	MediaURL          string    `json:"media_url,omitempty"`
	MediaType         string    `json:"media_type,omitempty"`
	ProviderMessageID string    `json:"provider_message_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// Collection is a durable named list.
type Collection struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	Pinned    bool      `json:"pinned"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CollectionItem is one entry in a collection.
type CollectionItem struct {
	ID           string    `json:"id"`
	CollectionID string    `json:"collection_id"`
	Content      string    `json:"content"`
	Status       string    `json:"status"`
	Position     int       `json:"position"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Task is a free-form task; checklist tasks carry their items as a
// line-oriented text block with checkbox markers.
type Task struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	IsChecklist bool      `json:"is_checklist"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Recurrence kinds for reminders.
const (
	RecurrenceNone   = "none"
	RecurrenceDaily  = "daily"
	RecurrenceWeekly = "weekly"
	RecurrenceCustom = "custom"
)

// Reminder is a scheduled nudge with an optional recurrence descriptor.
type Reminder struct {
	ID                 string    `json:"id"`
	UserID             string    `json:"user_id"`
	Title              string    `json:"title"`
	DueAt              time.Time `json:"due_at"`
	Recurrence         string    `json:"recurrence"`
	RecurrenceInterval int       `json:"recurrence_interval,omitempty"`
	RecurrenceUnit     string    `json:"recurrence_unit,omitempty"`
	RecurrenceCount    int       `json:"recurrence_count,omitempty"`
	Status             string    `json:"status"`
	CreatedAt          time.Time `json:"created_at"`
}

// Memory is a free-form semantic memory entry.
type Memory struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ToolCallRecord is an audit row for one tool invocation.
type ToolCallRecord struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	ToolName    string     `json:"tool_name"`
	Arguments   string     `json:"arguments"`
	Result      string     `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	DurationMs  int64      `json:"duration_ms,omitempty"`
}
