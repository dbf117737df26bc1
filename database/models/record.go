package models

import "time"

// HealthRecord is one per-server metric sample. Rows form a rolling
// buffer trimmed to a retention window on insert.
type HealthRecord struct {
	ID         uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	ServerUUID string    `json:"server_uuid" gorm:"type:uuid;index;not null"`
	Time       time.Time `json:"time" gorm:"index;default:CURRENT_TIMESTAMP"`
	FPS        float64   `json:"fps" gorm:"type:decimal(7,2)"`
	Players    int       `json:"players"`
	MaxPlayers int       `json:"max_players"`
	CPUUsage   float64   `json:"cpu_usage" gorm:"type:decimal(5,2)"`
	RAMUsage   float64   `json:"ram_usage" gorm:"type:decimal(5,2)"`
	DiskUsage  float64   `json:"disk_usage" gorm:"type:decimal(5,2)"`
	Healthy    bool      `json:"healthy"`
	// Issues is a JSON array of threshold violations detected at record
	// time, empty when healthy.
	Issues string `json:"issues,omitempty" gorm:"type:text"`
}
