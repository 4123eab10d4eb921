package models

const (
	IntentBook    = "book"
	IntentClarify = "clarify"
	IntentCancel  = "cancel"
	IntentUnknown = "unknown"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

const (
	MissingHoursClosed       = "closed"
	MissingHoursDefaultHours = "default_hours"
)

const (
	SyncTaskUpsert = "upsert"
	SyncTaskDelete = "delete"
)

const (
	SyncStatusPending    = "pending"
	SyncStatusRetry      = "retry"
	SyncStatusCompleted  = "completed"
	SyncStatusFailed     = "failed"
)

const (
	// DefaultSessionTTL is how long a chat draft survives without activity, in seconds.
	DefaultSessionTTL = 2 * 60 * 60

	// WorkerQueueSize bounds the in-memory sync queue.
	WorkerQueueSize = 1000

	// RateLimitMessages is the number of chat messages allowed per window.
	RateLimitMessages = 20

	// RateLimitWindow is the chat rate limit window, in seconds.
	RateLimitWindow = 60

	// SheetsCacheTTL is how long sheet row positions are cached, in seconds.
	SheetsCacheTTL = 60 * 60
)
