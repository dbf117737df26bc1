package models

import "time"

// Machine statuses. ONLINE->OFFLINE is flipped only by the registry
// offline sweep.
const (
	MachineOnline  = "ONLINE"
	MachineOffline = "OFFLINE"
)

// Machine is a physical or virtual host running game-server processes.
type Machine struct {
	UUID          string    `json:"uuid" gorm:"type:uuid;primaryKey"`
	Name          string    `json:"name" gorm:"type:varchar(100);not null"`
	IPAddress     string    `json:"ip_address" gorm:"type:varchar(64);not null"`
	SSHPort       int       `json:"ssh_port" gorm:"default:22"`
	SSHUser       string    `json:"ssh_user" gorm:"type:varchar(64)"`
	SSHKeyPath    string    `json:"ssh_key_path,omitempty" gorm:"type:varchar(255)"`
	SSHPassword   string    `json:"-" gorm:"type:varchar(255)"`
	Status        string    `json:"status" gorm:"type:varchar(16);default:OFFLINE"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
	// Resources is the latest agent-reported snapshot, stored as JSON.
	Resources string    `json:"resources,omitempty" gorm:"type:longtext"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
