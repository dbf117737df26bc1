package models

import "time"

// Agent statuses.
const (
	AgentOnline  = "ONLINE"
	AgentOffline = "OFFLINE"
)

// Agent is the control-plane process on a machine. MachineUUID is
// immutable after creation.
type Agent struct {
	UUID          string    `json:"uuid" gorm:"type:uuid;primaryKey"`
	MachineUUID   string    `json:"machine_uuid" gorm:"type:uuid;index;not null"`
	Token         string    `json:"token,omitempty" gorm:"type:varchar(255);unique;not null"`
	Status        string    `json:"status" gorm:"type:varchar(16);default:OFFLINE"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
	// Capabilities is a JSON array of feature strings the agent declares.
	Capabilities string    `json:"capabilities,omitempty" gorm:"type:text"`
	Version      string    `json:"version,omitempty" gorm:"type:varchar(32)"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
