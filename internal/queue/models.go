package queue

import "time"

// Status is the lifecycle state of a queue item.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ClearedNotice is the system message seeded by ClearAll.
const ClearedNotice = "Conversation and generation queue were cleared."

// Item is a queued generation request.
type Item struct {
	ID            string     `json:"id"`
	ProjectID     string     `json:"projectId"`
	OwnerID       string     `json:"ownerId"`
	Prompt        string     `json:"prompt"`
	UserMessageID string     `json:"userMessageId,omitempty"`
	Status        Status     `json:"status"`
	Attempts      int        `json:"attempts"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
	StartedAt     *time.Time `json:"startedAt,omitempty"`
	HeartbeatAt   *time.Time `json:"heartbeatAt,omitempty"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
	Error         string     `json:"error,omitempty"`
}

// Project is the ownership record Enqueue checks against.
type Project struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Message is one transcript entry of a project.
type Message struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"projectId"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// EnqueueResult identifies the records Enqueue created.
type EnqueueResult struct {
	MessageID string `json:"messageId"`
	QueueID   string `json:"queueId"`
}

// Claim is a granted lease on one item.
type Claim struct {
	QueueID  string `json:"queueId"`
	Prompt   string `json:"prompt"`
	Attempts int    `json:"attempts"`
	Lease    Lease  `json:"lease"`
}

// StatusSummary is the read-only snapshot polled by clients.
type StatusSummary struct {
	QueuedCount      int    `json:"queuedCount"`
	RunningCount     int    `json:"runningCount"`
	NextQueuedPrompt string `json:"nextQueuedPrompt,omitempty"`
	ActivePrompt     string `json:"activePrompt,omitempty"`
}

// DatabaseHealth captures diagnostic information about the queue database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    int
	MissingTables    []string
	IntegrityCheck   bool
	TotalItems       int
	Error            string
}
