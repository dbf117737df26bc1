package models

import "time"

// RestartSchedule arms a recurring graceful restart for one server.
// One row per server.
type RestartSchedule struct {
	ServerUUID        string     `json:"server_uuid" gorm:"type:uuid;primaryKey"`
	Cron              string     `json:"schedule" gorm:"type:varchar(64);not null"`
	PreWarningMinutes int        `json:"pre_warning_minutes" gorm:"default:5"`
	GracefulSeconds   int        `json:"graceful_shutdown_seconds" gorm:"default:30"`
	Enabled           bool       `json:"enabled" gorm:"default:true"`
	LastRun           *time.Time `json:"last_run,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}
