package common

// ResourceSnapshot is what an agent reports for its machine on every
// heartbeat. Totals are bytes.
type ResourceSnapshot struct {
	CPUUsage  float64 `json:"cpu_usage"`
	RAMUsed   int64   `json:"ram_used"`
	RAMTotal  int64   `json:"ram_total"`
	DiskUsed  int64   `json:"disk_used"`
	DiskTotal int64   `json:"disk_total"`
	Load1     float64 `json:"load1"`
}

// HeartbeatRequest is the body of an agent heartbeat.
type HeartbeatRequest struct {
	Status       string            `json:"status,omitempty"`
	Resources    *ResourceSnapshot `json:"resources,omitempty"`
	Capabilities []string          `json:"capabilities,omitempty"`
}

// HealthReport is the per-server metric tuple an agent pushes for each
// running game server.
type HealthReport struct {
	FPS        float64 `json:"fps"`
	Players    int     `json:"players"`
	MaxPlayers int     `json:"max_players"`
	CPUUsage   float64 `json:"cpu_usage"`
	RAMUsage   float64 `json:"ram_usage"`
	DiskUsage  float64 `json:"disk_usage"`
}
