package core

import "time"

// Role identifies who produced a window message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is a single entry in a session window. Immutable once written.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// MemorySummary is the durable record produced when a span of evicted
// messages is condensed. Created once per overflow span, never updated
// in place. The embedding lives in the vector store alongside it.
type MemorySummary struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	From      time.Time `json:"from"` // timestamp of the oldest covered message
	To        time.Time `json:"to"`   // timestamp of the newest covered message
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// DocumentChunk is one retrievable slice of an ingested document.
// Ingestion owns these records; this module only reads them.
type DocumentChunk struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	ChunkIndex int    `json:"chunk_index"`
	Content    string `json:"content"`
	Source     string `json:"source"`
}

// ActionType enumerates the publish targets a deferred action can resolve to.
type ActionType string

const (
	PublishLocal  ActionType = "publish_local"
	PublishRemote ActionType = "publish_remote"
)

// PendingAction is a deferred publish awaiting one clarifying user answer.
// At most one exists per session; the store enforces its TTL.
type PendingAction struct {
	ID        string     `json:"id"`
	SessionID string     `json:"session_id"`
	Type      ActionType `json:"type,omitempty"` // empty until resolved
	Content   string     `json:"content"`        // generated content to publish
	Path      string     `json:"path,omitempty"` // requested output path, may be empty
	Question  string     `json:"question"`       // clarifying question posed to the user
	CreatedAt time.Time  `json:"created_at"`
}
