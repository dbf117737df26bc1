package common

// Task types. Each terminal task row is immutable once COMPLETED or
// FAILED; there is no automatic retry.
const (
	TaskStart        = "START"
	TaskStop         = "STOP"
	TaskRestart      = "RESTART"
	TaskUpdate       = "UPDATE"
	TaskBackup       = "BACKUP"
	TaskRestore      = "RESTORE"
	TaskInstallAgent = "INSTALL_AGENT"
)

// Task statuses.
const (
	TaskPending   = "PENDING"
	TaskRunning   = "RUNNING"
	TaskCompleted = "COMPLETED"
	TaskFailed    = "FAILED"
)

// TaskCommand is the structured payload of a task. Action mirrors the
// task type in lower case; the other fields are type-specific. The
// agent/executor pairing documents which fields apply per type.
type TaskCommand struct {
	Action string `json:"action"`
	// BACKUP: backup name and kind (manual or automatic).
	Name string `json:"name,omitempty"`
	Kind string `json:"type,omitempty"`
	// RESTORE: reference to the backup artifact in the backup store.
	Artifact string `json:"artifact,omitempty"`
	// STOP during scheduled restarts: graceful shutdown budget.
	GracefulSeconds int `json:"graceful_seconds,omitempty"`
	// UPDATE maintenance actions: wipe, cleanup, save.
	GameType string `json:"game_type,omitempty"`
}
