package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/zedfleet/zedfleet/backup/factory"
	"github.com/zedfleet/zedfleet/cmd/flags"
	"github.com/zedfleet/zedfleet/common"
	"github.com/zedfleet/zedfleet/database/agents"
	"github.com/zedfleet/zedfleet/database/machines"
	"github.com/zedfleet/zedfleet/database/models"
	"github.com/zedfleet/zedfleet/database/servers"
	"github.com/zedfleet/zedfleet/database/tasks"
	"github.com/zedfleet/zedfleet/gamecmd"
	"github.com/zedfleet/zedfleet/sshexec"
	"github.com/zedfleet/zedfleet/taskexec"
)

// FileMover copies artifacts between the controller and machines.
type FileMover interface {
	Push(ctx context.Context, target sshexec.Target, localPath, remotePath string) error
	Pull(ctx context.Context, target sshexec.Target, remotePath, localPath string) error
}

var (
	moverMu sync.Mutex
	mover   FileMover
)

func SetMover(m FileMover) {
	moverMu.Lock()
	defer moverMu.Unlock()
	mover = m
}

func getMover() FileMover {
	moverMu.Lock()
	defer moverMu.Unlock()
	if mover == nil {
		mover = sshexec.NewClient(
			time.Duration(flags.SSHConnectTimeout)*time.Second,
			time.Duration(flags.SSHCommandTimeout)*time.Second,
		)
	}
	return mover
}

// CreateServerBackup archives the server directory on its machine,
// pulls the artifact and stores it in the active backend. The count
// quota is gated up front against a live listing so a doomed archive
// is never even created; the size quota is gated in Upload once the
// artifact size is known.
func CreateServerBackup(ctx context.Context, serverUUID, name string) (factory.BackupRecord, error) {
	server, err := servers.GetServerByUUID(serverUUID)
	if err != nil {
		return factory.BackupRecord{}, err
	}
	if server.AgentUUID == "" {
		return factory.BackupRecord{}, common.InvalidStatef("server %s has no agent assigned", serverUUID)
	}
	if name == "" {
		name = fmt.Sprintf("backup-%s", time.Now().Format("20060102-150405"))
	}

	backend, err := Current()
	if err != nil {
		return factory.BackupRecord{}, err
	}
	existing, err := backend.List(serverUUID)
	if err != nil {
		return factory.BackupRecord{}, err
	}
	if len(existing) >= server.BackupCountLimit {
		return factory.BackupRecord{}, common.QuotaExceededf(
			"backup count limit reached (%d/%d)", len(existing), server.BackupCountLimit)
	}

	if err := runTask(ctx, common.TaskBackup, server.AgentUUID, serverUUID,
		common.TaskCommand{Name: name}); err != nil {
		return factory.BackupRecord{}, err
	}

	target, err := agentTarget(server.AgentUUID)
	if err != nil {
		return factory.BackupRecord{}, err
	}
	staging := gamecmd.StagingPath(serverUUID, name)
	local := filepath.Join(os.TempDir(), fmt.Sprintf("zedfleet-%s-%s.tar.gz", serverUUID, name))
	defer os.Remove(local)
	if err := getMover().Pull(ctx, target, staging, local); err != nil {
		return factory.BackupRecord{}, err
	}

	if err := Upload(serverUUID, local, name); err != nil {
		return factory.BackupRecord{}, err
	}

	recs, err := backend.List(serverUUID)
	if err != nil {
		return factory.BackupRecord{}, err
	}
	for _, rec := range recs {
		if rec.Name == name {
			return rec, nil
		}
	}
	return factory.BackupRecord{Name: name}, nil
}

// RestoreServerBackup fetches a stored artifact, pushes it to the
// server's machine and unpacks it over the server directory. The
// server must not be running.
func RestoreServerBackup(ctx context.Context, serverUUID, name string) error {
	server, err := servers.GetServerByUUID(serverUUID)
	if err != nil {
		return err
	}
	if server.AgentUUID == "" {
		return common.InvalidStatef("server %s has no agent assigned", serverUUID)
	}
	if server.Status != models.ServerOffline && server.Status != models.ServerError {
		return common.InvalidStatef("server %s is %s, restore needs OFFLINE or ERROR", serverUUID, server.Status)
	}

	local := filepath.Join(os.TempDir(), fmt.Sprintf("zedfleet-%s-%s.tar.gz", serverUUID, name))
	defer os.Remove(local)
	if err := Download(serverUUID, name, local); err != nil {
		return err
	}

	target, err := agentTarget(server.AgentUUID)
	if err != nil {
		return err
	}
	staging := gamecmd.StagingPath(serverUUID, name)
	if err := getMover().Push(ctx, target, local, staging); err != nil {
		return err
	}

	return runTask(ctx, common.TaskRestore, server.AgentUUID, serverUUID,
		common.TaskCommand{Name: name})
}

func runTask(ctx context.Context, taskType, agentUUID, serverUUID string, cmd common.TaskCommand) error {
	task, err := tasks.CreateTask(taskType, agentUUID, serverUUID, cmd)
	if err != nil {
		return err
	}
	if err := taskexec.Dispatch(ctx, task.UUID); err != nil {
		return err
	}
	done, err := tasks.GetTaskByUUID(task.UUID)
	if err != nil {
		return err
	}
	if done.Status != common.TaskCompleted {
		return common.TransportFailuref("task %s ended %s: %s", done.UUID, done.Status, done.Error)
	}
	return nil
}

func agentTarget(agentUUID string) (sshexec.Target, error) {
	agent, err := agents.GetAgentByUUID(agentUUID)
	if err != nil {
		return sshexec.Target{}, err
	}
	machine, err := machines.GetMachineByUUID(agent.MachineUUID)
	if err != nil {
		return sshexec.Target{}, err
	}
	return sshexec.Target{
		Host:     machine.IPAddress,
		Port:     machine.SSHPort,
		User:     machine.SSHUser,
		KeyPath:  machine.SSHKeyPath,
		Password: machine.SSHPassword,
	}, nil
}
