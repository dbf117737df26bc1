package models

import "time"

// Server statuses. Transitional states (STARTING, STOPPING, RESTARTING)
// are set optimistically when a lifecycle call is accepted and resolved
// when the backing task reaches a terminal state.
const (
	ServerProvisioning = "PROVISIONING"
	ServerStarting     = "STARTING"
	ServerOnline       = "ONLINE"
	ServerStopping     = "STOPPING"
	ServerOffline      = "OFFLINE"
	ServerRestarting   = "RESTARTING"
	ServerError        = "ERROR"
)

// Server is the logical, user-facing game-server instance. MachineUUID
// and AgentUUID are empty until provisioned and only change together,
// atomically, during migration.
type Server struct {
	UUID        string `json:"uuid" gorm:"type:uuid;primaryKey"`
	Name        string `json:"name" gorm:"type:varchar(100);not null"`
	GameType    string `json:"game_type" gorm:"type:varchar(40);not null"`
	MachineUUID string `json:"machine_uuid,omitempty" gorm:"type:uuid;index"`
	AgentUUID   string `json:"agent_uuid,omitempty" gorm:"type:uuid;index"`
	IPAddress   string `json:"ip_address,omitempty" gorm:"type:varchar(64)"`
	Port        int    `json:"port,omitempty"`
	QueryPort   int    `json:"query_port,omitempty"`
	RconPort    int    `json:"rcon_port,omitempty"`
	Status      string `json:"status" gorm:"type:varchar(16);default:OFFLINE"`
	// Configuration is an opaque JSON blob interpreted by the game
	// command templates.
	Configuration string `json:"configuration,omitempty" gorm:"type:longtext"`

	// Backup quotas. The used counters are a display cache recomputed
	// from a fresh backend listing after every mutating backup call;
	// the backend listing stays the source of truth.
	BackupCountLimit    int     `json:"backup_count_limit" gorm:"default:5"`
	BackupStorageLimit  float64 `json:"backup_storage_limit_gb" gorm:"column:backup_storage_limit_gb;default:10"`
	BackupCountUsed     int     `json:"backup_count_used"`
	BackupStorageUsedGB float64 `json:"backup_storage_used_gb" gorm:"column:backup_storage_used_gb"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
