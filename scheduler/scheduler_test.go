package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/zedfleet/zedfleet/cmd/flags"
	"github.com/zedfleet/zedfleet/common"
	"github.com/zedfleet/zedfleet/database/agents"
	"github.com/zedfleet/zedfleet/database/machines"
	"github.com/zedfleet/zedfleet/database/models"
	"github.com/zedfleet/zedfleet/database/schedules"
	"github.com/zedfleet/zedfleet/database/servers"
	"github.com/zedfleet/zedfleet/database/tasks"
	"github.com/zedfleet/zedfleet/sshexec"
	"github.com/zedfleet/zedfleet/taskexec"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "zedfleet-test-")
	if err != nil {
		panic(err)
	}
	flags.DatabaseFile = filepath.Join(dir, "test.db")
	flags.DataDir = dir
	code := m.Run()
	os.RemoveAll(dir)
	os.Exit(code)
}

func newServer(t *testing.T) models.Server {
	t.Helper()
	server, err := servers.CreateServer(models.Server{Name: "sched-server", GameType: "RUST"})
	assert.NoError(t, err)
	return server
}

func TestScheduleRejectsInvalidCron(t *testing.T) {
	server := newServer(t)
	err := Schedule(models.RestartSchedule{
		ServerUUID: server.UUID,
		Cron:       "every day at dawn",
		Enabled:    true,
	})
	assert.Error(t, err)

	_, err = schedules.GetSchedule(server.UUID)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestScheduleRejectsUnknownServer(t *testing.T) {
	err := Schedule(models.RestartSchedule{
		ServerUUID: "00000000-0000-0000-0000-000000000000",
		Cron:       "0 4 * * *",
		Enabled:    true,
	})
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSchedulePersistsAndReplaces(t *testing.T) {
	assert.NoError(t, Start())
	defer Stop()

	server := newServer(t)
	assert.NoError(t, Schedule(models.RestartSchedule{
		ServerUUID:        server.UUID,
		Cron:              "0 4 * * *",
		PreWarningMinutes: 10,
		GracefulSeconds:   60,
		Enabled:           true,
	}))

	s, err := schedules.GetSchedule(server.UUID)
	assert.NoError(t, err)
	assert.Equal(t, "0 4 * * *", s.Cron)
	assert.Equal(t, 10, s.PreWarningMinutes)

	// A second call replaces the row, one schedule per server.
	assert.NoError(t, Schedule(models.RestartSchedule{
		ServerUUID:        server.UUID,
		Cron:              "30 6 * * *",
		PreWarningMinutes: 5,
		GracefulSeconds:   30,
		Enabled:           true,
	}))
	s, err = schedules.GetSchedule(server.UUID)
	assert.NoError(t, err)
	assert.Equal(t, "30 6 * * *", s.Cron)
	assert.Equal(t, 5, s.PreWarningMinutes)
}

func TestCancelDisablesSchedule(t *testing.T) {
	assert.NoError(t, Start())
	defer Stop()

	server := newServer(t)
	assert.NoError(t, Schedule(models.RestartSchedule{
		ServerUUID: server.UUID,
		Cron:       "0 4 * * *",
		Enabled:    true,
	}))

	assert.NoError(t, Cancel(server.UUID))

	s, err := schedules.GetSchedule(server.UUID)
	assert.NoError(t, err)
	assert.False(t, s.Enabled)

	enabled, err := schedules.GetEnabledSchedules()
	assert.NoError(t, err)
	for _, e := range enabled {
		assert.NotEqual(t, server.UUID, e.ServerUUID)
	}
}

func TestCancelUnknownSchedule(t *testing.T) {
	assert.ErrorIs(t, Cancel("00000000-0000-0000-0000-000000000000"), common.ErrNotFound)
}

// scriptedExecutor records commands in order and fails any that match
// failOn.
type scriptedExecutor struct {
	mu       sync.Mutex
	commands []string
	failOn   string
}

func (s *scriptedExecutor) Run(ctx context.Context, target sshexec.Target, command string) (sshexec.Result, error) {
	s.mu.Lock()
	s.commands = append(s.commands, command)
	s.mu.Unlock()
	if s.failOn != "" && strings.Contains(command, s.failOn) {
		return sshexec.Result{ExitCode: 1, Stderr: "scripted failure"}, nil
	}
	return sshexec.Result{ExitCode: 0}, nil
}

func (s *scriptedExecutor) seen() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

func newOnlineServer(t *testing.T) models.Server {
	t.Helper()
	machine, err := machines.CreateMachine(models.Machine{Name: "sched-machine", IPAddress: "10.9.0.1"})
	assert.NoError(t, err)
	agentUUID, _, err := agents.CreateAgent(machine.UUID)
	assert.NoError(t, err)
	assert.NoError(t, agents.MarkOnline(agentUUID, "", time.Now()))
	server, err := servers.CreateServer(models.Server{
		Name:        "sched-online",
		GameType:    "RUST",
		MachineUUID: machine.UUID,
		AgentUUID:   agentUUID,
		Status:      models.ServerOnline,
	})
	assert.NoError(t, err)
	return server
}

func awaitServerStatus(t *testing.T, serverUUID, want string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		server, err := servers.GetServerByUUID(serverUUID)
		assert.NoError(t, err)
		if server.Status == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("server %s never reached %s", serverUUID, want)
}

func shrinkWaits(t *testing.T) {
	t.Helper()
	oldPoll, oldUnit := stopPollInterval, warningUnit
	stopPollInterval = 10 * time.Millisecond
	warningUnit = time.Millisecond
	t.Cleanup(func() {
		stopPollInterval = oldPoll
		warningUnit = oldUnit
	})
}

func TestRunRestartStopsThenStarts(t *testing.T) {
	shrinkWaits(t)
	server := newOnlineServer(t)
	exec := &scriptedExecutor{}
	taskexec.SetExecutor(exec)

	assert.NoError(t, schedules.UpsertSchedule(models.RestartSchedule{
		ServerUUID:      server.UUID,
		Cron:            "0 4 * * *",
		GracefulSeconds: 45,
		Enabled:         true,
	}))

	// No websocket is connected, so the warning push fails; the
	// restart still runs.
	runRestart(models.RestartSchedule{
		ServerUUID:        server.UUID,
		PreWarningMinutes: 1,
		GracefulSeconds:   45,
	})
	awaitServerStatus(t, server.UUID, models.ServerOnline)

	commands := exec.seen()
	assert.Len(t, commands, 2)
	assert.Contains(t, commands[0], "systemctl stop server-"+server.UUID)
	assert.Contains(t, commands[1], "systemctl start server-"+server.UUID)

	list, err := tasks.GetTasksByServer(server.UUID)
	assert.NoError(t, err)
	assert.Len(t, list, 2)
	for _, task := range list {
		assert.Equal(t, common.TaskCompleted, task.Status)
		if task.Type == common.TaskStop {
			assert.Contains(t, task.Command, `"graceful_seconds":45`)
		}
	}

	s, err := schedules.GetSchedule(server.UUID)
	assert.NoError(t, err)
	assert.NotNil(t, s.LastRun)
}

func TestRunRestartFailedStopSkipsStart(t *testing.T) {
	shrinkWaits(t)
	server := newOnlineServer(t)
	exec := &scriptedExecutor{failOn: "stop"}
	taskexec.SetExecutor(exec)

	runRestart(models.RestartSchedule{
		ServerUUID:      server.UUID,
		GracefulSeconds: 30,
	})
	awaitServerStatus(t, server.UUID, models.ServerError)

	commands := exec.seen()
	assert.Len(t, commands, 1)
	assert.Contains(t, commands[0], "systemctl stop server-"+server.UUID)

	list, err := tasks.GetTasksByServer(server.UUID)
	assert.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, common.TaskStop, list[0].Type)
	assert.Equal(t, common.TaskFailed, list[0].Status)
}

func TestRunRestartSkipsStoppedServer(t *testing.T) {
	shrinkWaits(t)
	server := newOnlineServer(t)
	assert.NoError(t, servers.SetStatus(server.UUID, models.ServerOffline))
	exec := &scriptedExecutor{}
	taskexec.SetExecutor(exec)

	runRestart(models.RestartSchedule{ServerUUID: server.UUID})

	assert.Empty(t, exec.seen())
	got, err := servers.GetServerByUUID(server.UUID)
	assert.NoError(t, err)
	assert.Equal(t, models.ServerOffline, got.Status)
}

func TestRemoveDeletesScheduleRow(t *testing.T) {
	assert.NoError(t, Start())
	defer Stop()

	server := newServer(t)
	assert.NoError(t, Schedule(models.RestartSchedule{
		ServerUUID: server.UUID,
		Cron:       "0 4 * * *",
		Enabled:    true,
	}))

	assert.NoError(t, Remove(server.UUID))
	_, err := schedules.GetSchedule(server.UUID)
	assert.ErrorIs(t, err, common.ErrNotFound)
}
