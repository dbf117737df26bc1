// Package scheduler arms recurring graceful restarts. Each enabled
// schedule owns one cron entry; firing warns the players in game,
// waits out the warning window, stops the server with its shutdown
// budget and starts it again once the stop task settles.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/zedfleet/zedfleet/common"
	"github.com/zedfleet/zedfleet/database/models"
	"github.com/zedfleet/zedfleet/database/schedules"
	"github.com/zedfleet/zedfleet/database/servers"
	"github.com/zedfleet/zedfleet/lifecycle"
	"github.com/zedfleet/zedfleet/ws"
)

var (
	mu      sync.Mutex
	runner  *cron.Cron
	entries = make(map[string]cron.EntryID)

	// stopPollInterval is how often a fired restart polls its stop task.
	stopPollInterval = 2 * time.Second
	// stopBudgetSlack pads the graceful budget before the wait gives up.
	stopBudgetSlack = 60 * time.Second
	// warningUnit scales PreWarningMinutes into a wait duration.
	warningUnit = time.Minute
)

// Start boots the cron runner and re-arms every enabled schedule.
func Start() error {
	mu.Lock()
	defer mu.Unlock()
	if runner != nil {
		return nil
	}
	runner = cron.New()
	runner.Start()

	enabled, err := schedules.GetEnabledSchedules()
	if err != nil {
		return err
	}
	for _, s := range enabled {
		if err := armLocked(s); err != nil {
			log.Printf("Failed to arm restart schedule for server %s: %v", s.ServerUUID, err)
		}
	}
	return nil
}

// Stop halts the cron runner. Restarts already in flight finish.
func Stop() {
	mu.Lock()
	defer mu.Unlock()
	if runner != nil {
		runner.Stop()
		runner = nil
		entries = make(map[string]cron.EntryID)
	}
}

// Schedule persists and arms a restart schedule for a server,
// replacing any previous one.
func Schedule(s models.RestartSchedule) error {
	if _, err := servers.GetServerByUUID(s.ServerUUID); err != nil {
		return err
	}
	if _, err := cron.ParseStandard(s.Cron); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", s.Cron, err)
	}
	if err := schedules.UpsertSchedule(s); err != nil {
		return err
	}
	mu.Lock()
	defer mu.Unlock()
	disarmLocked(s.ServerUUID)
	if s.Enabled && runner != nil {
		return armLocked(s)
	}
	return nil
}

// Cancel disarms a server's schedule and disables the persisted row.
func Cancel(serverUUID string) error {
	if _, err := schedules.GetSchedule(serverUUID); err != nil {
		return err
	}
	mu.Lock()
	disarmLocked(serverUUID)
	mu.Unlock()
	return schedules.SetEnabled(serverUUID, false)
}

// Remove disarms a server's schedule and deletes the persisted row.
// Used when the server itself goes away.
func Remove(serverUUID string) error {
	mu.Lock()
	disarmLocked(serverUUID)
	mu.Unlock()
	return schedules.DeleteSchedule(serverUUID)
}

// Trigger runs a server's restart sequence now, skipping the warning
// wait. The schedule itself stays armed.
func Trigger(serverUUID string) error {
	s, err := schedules.GetSchedule(serverUUID)
	if err != nil {
		return err
	}
	s.PreWarningMinutes = 0
	go runRestart(s)
	return nil
}

func armLocked(s models.RestartSchedule) error {
	id, err := runner.AddFunc(s.Cron, func() { fire(s.ServerUUID) })
	if err != nil {
		return err
	}
	entries[s.ServerUUID] = id
	return nil
}

func disarmLocked(serverUUID string) {
	if id, ok := entries[serverUUID]; ok {
		if runner != nil {
			runner.Remove(id)
		}
		delete(entries, serverUUID)
	}
}

// fire re-reads the row at fire time so edits between arming and
// firing take effect without re-arming.
func fire(serverUUID string) {
	s, err := schedules.GetSchedule(serverUUID)
	if err != nil {
		log.Printf("Scheduled restart for server %s skipped: %v", serverUUID, err)
		return
	}
	if !s.Enabled {
		return
	}
	runRestart(s)
}

func runRestart(s models.RestartSchedule) {
	server, err := servers.GetServerByUUID(s.ServerUUID)
	if err != nil {
		log.Printf("Scheduled restart for server %s skipped: %v", s.ServerUUID, err)
		return
	}
	if server.Status != models.ServerOnline {
		log.Printf("Scheduled restart for server %s skipped: status is %s", s.ServerUUID, server.Status)
		return
	}

	if s.PreWarningMinutes > 0 {
		text := fmt.Sprintf("Server restart in %d minutes", s.PreWarningMinutes)
		if err := ws.WarnServer(server.AgentUUID, server.UUID, text); err != nil {
			log.Printf("Restart warning for server %s not delivered: %v", server.UUID, err)
		}
		time.Sleep(time.Duration(s.PreWarningMinutes) * warningUnit)
	}

	_, stopTask, err := lifecycle.StopWithGrace(s.ServerUUID, s.GracefulSeconds)
	if err != nil {
		log.Printf("Scheduled restart for server %s: stop rejected: %v", s.ServerUUID, err)
		return
	}

	budget := time.Duration(s.GracefulSeconds)*time.Second + stopBudgetSlack
	ctx, cancel := context.WithTimeout(context.Background(), budget)
	defer cancel()
	done, err := lifecycle.AwaitTask(ctx, stopTask.UUID, stopPollInterval)
	if err != nil {
		log.Printf("Scheduled restart for server %s: stop task %s did not settle: %v", s.ServerUUID, stopTask.UUID, err)
		return
	}
	if done.Status != common.TaskCompleted {
		log.Printf("Scheduled restart for server %s: stop task %s ended %s, not starting", s.ServerUUID, stopTask.UUID, done.Status)
		return
	}

	if _, _, err := lifecycle.Start(s.ServerUUID); err != nil {
		log.Printf("Scheduled restart for server %s: start rejected: %v", s.ServerUUID, err)
		return
	}
	now := time.Now()
	if err := schedules.StampLastRun(s.ServerUUID, now); err != nil {
		log.Printf("Failed to stamp last run for server %s: %v", s.ServerUUID, err)
	}
}
