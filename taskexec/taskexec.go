// Package taskexec drives tasks through their PENDING -> RUNNING ->
// {COMPLETED, FAILED} lifecycle. Each task gets exactly one execution
// attempt; retry means a new task created by whoever wants it.
package taskexec

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/zedfleet/zedfleet/cmd/flags"
	"github.com/zedfleet/zedfleet/common"
	"github.com/zedfleet/zedfleet/database/agents"
	"github.com/zedfleet/zedfleet/database/machines"
	"github.com/zedfleet/zedfleet/database/models"
	"github.com/zedfleet/zedfleet/database/servers"
	"github.com/zedfleet/zedfleet/database/tasks"
	"github.com/zedfleet/zedfleet/gamecmd"
	"github.com/zedfleet/zedfleet/sshexec"
)

// Executor is the remote command capability task dispatch runs on.
// sshexec.Client is the production implementation; tests swap in a
// fake.
type Executor interface {
	Run(ctx context.Context, target sshexec.Target, command string) (sshexec.Result, error)
}

var (
	mu       sync.RWMutex
	executor Executor
)

// SetExecutor installs the remote executor used by Dispatch.
func SetExecutor(e Executor) {
	mu.Lock()
	defer mu.Unlock()
	executor = e
}

func getExecutor() Executor {
	mu.Lock()
	defer mu.Unlock()
	if executor == nil {
		executor = sshexec.NewClient(
			time.Duration(flags.SSHConnectTimeout)*time.Second,
			time.Duration(flags.SSHCommandTimeout)*time.Second,
		)
	}
	return executor
}

// Dispatch claims and executes one task. It resolves the target agent
// and machine, builds the concrete remote command, runs it, and stamps
// the terminal state. For START/STOP/RESTART the server status follows:
// success lands the documented terminal status, failure lands ERROR.
func Dispatch(ctx context.Context, taskUUID string) error {
	task, err := tasks.GetTaskByUUID(taskUUID)
	if err != nil {
		return err
	}
	if err := tasks.MarkRunning(task.UUID); err != nil {
		return err
	}

	result, runErr := execute(ctx, task)

	if runErr == nil && result.ExitCode == 0 {
		if err := tasks.MarkCompleted(task.UUID, strings.TrimSpace(result.Stdout), 0); err != nil {
			return err
		}
		applyServerOutcome(task, true)
		return nil
	}

	reason := ""
	exitCode := -1
	if runErr != nil {
		reason = runErr.Error()
	} else {
		reason = strings.TrimSpace(result.Stderr)
		if reason == "" {
			reason = fmt.Sprintf("command exited with code %d", result.ExitCode)
		}
		exitCode = result.ExitCode
	}
	if err := tasks.MarkFailed(task.UUID, reason, exitCode); err != nil {
		return err
	}
	applyServerOutcome(task, false)
	if runErr != nil {
		return runErr
	}
	return common.TransportFailuref("task %s: %s", task.UUID, reason)
}

func execute(ctx context.Context, task models.Task) (sshexec.Result, error) {
	agent, err := agents.GetAgentByUUID(task.AgentUUID)
	if err != nil {
		return sshexec.Result{ExitCode: -1}, err
	}
	machine, err := machines.GetMachineByUUID(agent.MachineUUID)
	if err != nil {
		return sshexec.Result{ExitCode: -1}, err
	}

	command, err := buildCommand(task)
	if err != nil {
		return sshexec.Result{ExitCode: -1}, err
	}

	target := sshexec.Target{
		Host:     machine.IPAddress,
		Port:     machine.SSHPort,
		User:     machine.SSHUser,
		KeyPath:  machine.SSHKeyPath,
		Password: machine.SSHPassword,
	}
	return getExecutor().Run(ctx, target, command)
}

func buildCommand(task models.Task) (string, error) {
	var cmd common.TaskCommand
	if task.Command != "" {
		if err := json.Unmarshal([]byte(task.Command), &cmd); err != nil {
			return "", common.InvalidStatef("task %s has malformed command payload: %v", task.UUID, err)
		}
	}

	var params gamecmd.Params
	gameType := cmd.GameType
	if task.ServerUUID != "" {
		server, err := servers.GetServerByUUID(task.ServerUUID)
		if err != nil {
			return "", err
		}
		gameType = server.GameType
		params = gamecmd.Params{
			ServerUUID:      server.UUID,
			Name:            server.Name,
			Port:            server.Port,
			QueryPort:       server.QueryPort,
			RconPort:        server.RconPort,
			GracefulSeconds: cmd.GracefulSeconds,
		}
	}

	switch task.Type {
	case common.TaskStart, common.TaskStop, common.TaskRestart:
		return gamecmd.BuildCommand(gameType, cmd.Action, params)
	case common.TaskBackup:
		return gamecmd.BackupCommand(gameType, cmd.Name, params)
	case common.TaskRestore:
		return gamecmd.RestoreCommand(gameType, cmd.Name, params)
	case common.TaskUpdate:
		return maintenanceCommand(cmd, params)
	case common.TaskInstallAgent:
		return fmt.Sprintf("curl -fsSL https://get.zedfleet.io/agent.sh | sh -s -- --machine %s", task.AgentUUID), nil
	default:
		return "", common.InvalidStatef("unknown task type %q", task.Type)
	}
}

func maintenanceCommand(cmd common.TaskCommand, p gamecmd.Params) (string, error) {
	dir := fmt.Sprintf("/opt/servers/%s", p.ServerUUID)
	switch cmd.Action {
	case "update":
		return fmt.Sprintf("systemctl stop server-%s && cd %q && ./update.sh && systemctl start server-%s",
			p.ServerUUID, dir, p.ServerUUID), nil
	case "wipe":
		return fmt.Sprintf("systemctl stop server-%s && rm -rf %q/world && systemctl start server-%s",
			p.ServerUUID, dir, p.ServerUUID), nil
	case "cleanup":
		return fmt.Sprintf("find %q/logs -type f -mtime +7 -delete", dir), nil
	case "save":
		return fmt.Sprintf("docker exec server-%s rcon saveworld", p.ServerUUID), nil
	default:
		return "", common.InvalidStatef("unknown maintenance action %q", cmd.Action)
	}
}

// applyServerOutcome resolves the server's transitional status once the
// backing task finishes. A failed lifecycle task is a loud failure:
// the server lands in ERROR and stays there until someone acts.
func applyServerOutcome(task models.Task, completed bool) {
	if task.ServerUUID == "" {
		return
	}
	var status string
	switch task.Type {
	case common.TaskStart, common.TaskRestart:
		status = models.ServerOnline
	case common.TaskStop:
		status = models.ServerOffline
	default:
		return
	}
	if !completed {
		status = models.ServerError
	}
	if err := servers.SetStatus(task.ServerUUID, status); err != nil {
		log.Printf("Failed to update server %s status after task %s: %v", task.ServerUUID, task.UUID, err)
	}
}

// ReportResult records a terminal outcome reported by an agent that ran
// the task itself, pushed over the live channel instead of the SSH
// executor. A PENDING task is claimed on the way; terminal rows stay
// immutable.
func ReportResult(taskUUID string, success bool, output string, exitCode int) error {
	task, err := tasks.GetTaskByUUID(taskUUID)
	if err != nil {
		return err
	}
	if task.Status == common.TaskPending {
		if err := tasks.MarkRunning(task.UUID); err != nil {
			return err
		}
	}
	if success {
		if err := tasks.MarkCompleted(task.UUID, output, exitCode); err != nil {
			return err
		}
	} else {
		if err := tasks.MarkFailed(task.UUID, output, exitCode); err != nil {
			return err
		}
	}
	applyServerOutcome(task, success)
	return nil
}

// ProcessPending drains up to limit PENDING tasks, oldest first. Meant
// for the background worker; individual failures are logged, not
// escalated.
func ProcessPending(ctx context.Context, limit int) {
	pending, err := tasks.GetPendingTasks(limit)
	if err != nil {
		log.Printf("Failed to list pending tasks: %v", err)
		return
	}
	for _, task := range pending {
		if err := Dispatch(ctx, task.UUID); err != nil {
			log.Printf("Task %s (%s) failed: %v", task.UUID, task.Type, err)
		}
	}
}
