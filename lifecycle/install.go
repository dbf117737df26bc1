package lifecycle

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/zedfleet/zedfleet/cmd/flags"
	"github.com/zedfleet/zedfleet/database/servers"
)

// InstallProgress is the per-server progress artifact the installing
// process writes. The schema is a contract: anything performing an
// installation must write this document so the panel can report status
// without polling the agent.
type InstallProgress struct {
	Status      string `json:"status"` // not_started | in_progress | completed | error
	Progress    int    `json:"progress"`
	CurrentStep int    `json:"current_step,omitempty"`
	TotalSteps  int    `json:"total_steps,omitempty"`
	Message     string `json:"message,omitempty"`
	Error       string `json:"error,omitempty"`
}

// progressCache keeps recently read artifacts so dashboard polling does
// not hammer the filesystem.
var progressCache = gocache.New(5*time.Second, time.Minute)

func progressFilePath(serverUUID string) string {
	return filepath.Join(flags.DataDir, "install", fmt.Sprintf("server-%s.progress.json", serverUUID))
}

// GetInstallProgress reads the install artifact for a server. A missing
// file on a fully assigned server means the install finished long ago;
// a missing file on an unassigned server means it never started. A
// file that fails to parse is reported as an errored install, never a
// crash.
func GetInstallProgress(serverUUID string) (InstallProgress, error) {
	if cached, ok := progressCache.Get(serverUUID); ok {
		return cached.(InstallProgress), nil
	}

	server, err := servers.GetServerByUUID(serverUUID)
	if err != nil {
		return InstallProgress{}, err
	}

	progress := readProgressFile(progressFilePath(serverUUID), server.MachineUUID != "" && server.AgentUUID != "")
	progressCache.Set(serverUUID, progress, gocache.DefaultExpiration)
	return progress, nil
}

func readProgressFile(path string, assigned bool) InstallProgress {
	data, err := os.ReadFile(path)
	if err != nil {
		if assigned {
			return InstallProgress{Status: "completed", Progress: 100}
		}
		return InstallProgress{Status: "not_started"}
	}

	var progress InstallProgress
	if err := json.Unmarshal(data, &progress); err != nil {
		return InstallProgress{Status: "error", Error: "malformed progress report"}
	}
	switch progress.Status {
	case "not_started", "in_progress", "completed", "error":
	default:
		return InstallProgress{Status: "error", Error: fmt.Sprintf("unknown progress status %q", progress.Status)}
	}
	if progress.Progress < 0 {
		progress.Progress = 0
	}
	if progress.Progress > 100 {
		progress.Progress = 100
	}
	return progress
}

// IsInstalled answers the "can this server be started" question.
func IsInstalled(serverUUID string) (bool, error) {
	progress, err := GetInstallProgress(serverUUID)
	if err != nil {
		return false, err
	}
	return progress.Status == "completed", nil
}
