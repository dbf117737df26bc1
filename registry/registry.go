// Package registry tracks machine and agent liveness. It is a
// stateless function over the persisted rows: heartbeats flip things
// ONLINE, and SweepOffline is the single place the ONLINE -> OFFLINE
// transition happens. No other component may write that transition.
package registry

import (
	"encoding/json"
	"log"
	"time"

	"github.com/zedfleet/zedfleet/common"
	"github.com/zedfleet/zedfleet/database/agents"
	"github.com/zedfleet/zedfleet/database/machines"
	"github.com/zedfleet/zedfleet/database/servers"
)

// DefaultGraceWindow is how stale a heartbeat may be before an agent is
// written off.
const DefaultGraceWindow = 5 * time.Minute

// RecordHeartbeat upserts the agent ONLINE, stamps its heartbeat, and
// propagates the resource snapshot to the owning machine. Server status
// is never touched here. Timestamp writes are last-write-wins; only
// freshness matters.
func RecordHeartbeat(agentUUID string, req common.HeartbeatRequest) error {
	agent, err := agents.GetAgentByUUID(agentUUID)
	if err != nil {
		return err
	}

	now := time.Now()

	capabilities := ""
	if len(req.Capabilities) > 0 {
		data, err := json.Marshal(req.Capabilities)
		if err != nil {
			return err
		}
		capabilities = string(data)
	}
	if err := agents.MarkOnline(agent.UUID, capabilities, now); err != nil {
		return err
	}

	resources := ""
	if req.Resources != nil {
		data, err := json.Marshal(req.Resources)
		if err != nil {
			return err
		}
		resources = string(data)
	}
	if err := machines.MarkOnline(agent.MachineUUID, resources, now); err != nil {
		return err
	}

	// Keep active servers' updated_at fresh for the dashboards.
	return servers.TouchServers(agent.UUID, now)
}

// SweepOffline writes off every ONLINE agent whose heartbeat is older
// than the grace window, and the owning machine too when no sibling
// agent is still within the window. Idempotent; safe to run while
// heartbeats land concurrently. Individual write failures are logged
// and retried by the next sweep cycle.
func SweepOffline(grace time.Duration) {
	cutoff := time.Now().Add(-grace)

	stale, err := agents.StaleOnlineAgents(cutoff)
	if err != nil {
		log.Printf("Offline sweep: failed to list stale agents: %v", err)
		return
	}

	for _, agent := range stale {
		if err := agents.MarkOffline(agent.UUID); err != nil {
			log.Printf("Offline sweep: failed to mark agent %s offline: %v", agent.UUID, err)
			continue
		}

		alive, err := agents.HasLiveSibling(agent.MachineUUID, agent.UUID, cutoff)
		if err != nil {
			log.Printf("Offline sweep: failed to check machine %s: %v", agent.MachineUUID, err)
			continue
		}
		if !alive {
			if err := machines.MarkOffline(agent.MachineUUID); err != nil {
				log.Printf("Offline sweep: failed to mark machine %s offline: %v", agent.MachineUUID, err)
			}
		}
	}
}

// RunSweeper runs SweepOffline on a ticker until the stop channel
// closes. Started from the server command.
func RunSweeper(grace, interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			SweepOffline(grace)
		}
	}
}
