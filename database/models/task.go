package models

import "time"

// Task is a single requested remote action. Exactly one execution
// attempt is driven per row; a FAILED task is retried only by creating
// a new task.
type Task struct {
	UUID       string `json:"uuid" gorm:"type:uuid;primaryKey"`
	Type       string `json:"type" gorm:"type:varchar(20);not null;index"`
	Status     string `json:"status" gorm:"type:varchar(16);default:PENDING;index"`
	AgentUUID  string `json:"agent_uuid" gorm:"type:uuid;index;not null"`
	ServerUUID string `json:"server_uuid,omitempty" gorm:"type:uuid;index"`
	// Command is the structured payload (common.TaskCommand) as JSON.
	Command     string     `json:"command" gorm:"type:text"`
	Result      string     `json:"result,omitempty" gorm:"type:longtext"`
	Error       string     `json:"error,omitempty" gorm:"type:text"`
	ExitCode    *int       `json:"exit_code,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
