// Package migration moves a server between machines. The artifact
// travels source machine -> controller -> backup store -> target
// machine, and the server row is repointed in one transaction only
// after the restore on the target succeeds. Every earlier failure
// leaves the server fully on its source machine.
package migration

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/zedfleet/zedfleet/backup"
	"github.com/zedfleet/zedfleet/cmd/flags"
	"github.com/zedfleet/zedfleet/common"
	"github.com/zedfleet/zedfleet/database/agents"
	"github.com/zedfleet/zedfleet/database/dbcore"
	"github.com/zedfleet/zedfleet/database/machines"
	"github.com/zedfleet/zedfleet/database/models"
	"github.com/zedfleet/zedfleet/database/servers"
	"github.com/zedfleet/zedfleet/database/tasks"
	"github.com/zedfleet/zedfleet/gamecmd"
	"github.com/zedfleet/zedfleet/lifecycle"
	"github.com/zedfleet/zedfleet/sshexec"
	"github.com/zedfleet/zedfleet/taskexec"
)

// FileMover copies files to and from machines. sshexec.Client is the
// production implementation; tests swap in a fake.
type FileMover interface {
	Push(ctx context.Context, target sshexec.Target, localPath, remotePath string) error
	Pull(ctx context.Context, target sshexec.Target, remotePath, localPath string) error
}

var (
	moverMu sync.Mutex
	mover   FileMover

	awaitPoll = 2 * time.Second
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

// Plan is the validated outcome of Prepare: everything Migrate needs
// to act, resolved while nothing has been touched yet.
type Plan struct {
	Server        models.Server  `json:"server"`
	SourceMachine models.Machine `json:"source_machine"`
	TargetMachine models.Machine `json:"target_machine"`
	TargetAgent   models.Agent   `json:"target_agent"`
	// TargetFreeBytes is the free disk on the target per its latest
	// heartbeat snapshot, 0 when the snapshot carries no disk figures.
	TargetFreeBytes int64 `json:"target_free_bytes"`
}

// Prepare validates a migration without changing anything. It is the
// dry-run half of Migrate and is safe to call repeatedly.
func Prepare(serverUUID, targetMachineUUID string) (Plan, error) {
	server, err := servers.GetServerByUUID(serverUUID)
	if err != nil {
		return Plan{}, err
	}
	if server.Status != models.ServerOnline && server.Status != models.ServerOffline {
		return Plan{}, common.InvalidStatef("server %s is %s, migration needs ONLINE or OFFLINE", serverUUID, server.Status)
	}
	if server.MachineUUID == targetMachineUUID {
		return Plan{}, common.InvalidStatef("server %s is already on machine %s", serverUUID, targetMachineUUID)
	}

	source, err := machines.GetMachineByUUID(server.MachineUUID)
	if err != nil {
		return Plan{}, err
	}
	target, err := machines.GetMachineByUUID(targetMachineUUID)
	if err != nil {
		return Plan{}, err
	}
	if target.Status != models.MachineOnline {
		return Plan{}, common.InvalidStatef("target machine %s is %s", targetMachineUUID, target.Status)
	}
	targetAgent, err := agents.FirstOnlineAgent(targetMachineUUID)
	if err != nil {
		return Plan{}, err
	}

	var free int64
	if target.Resources != "" {
		var snap common.ResourceSnapshot
		if err := json.Unmarshal([]byte(target.Resources), &snap); err == nil && snap.DiskTotal > 0 {
			free = snap.DiskTotal - snap.DiskUsed
			if free <= 0 {
				return Plan{}, common.InvalidStatef("target machine %s has no free disk", targetMachineUUID)
			}
		}
	}

	return Plan{
		Server:          server,
		SourceMachine:   source,
		TargetMachine:   target,
		TargetAgent:     targetAgent,
		TargetFreeBytes: free,
	}, nil
}

// Migrate moves the server to the target machine. A server that was
// ONLINE is stopped first and started again on the target once the row
// has been repointed. The repoint itself is one transaction; nothing
// before it mutates the server's assignment.
func Migrate(ctx context.Context, serverUUID, targetMachineUUID string) (models.Server, error) {
	plan, err := Prepare(serverUUID, targetMachineUUID)
	if err != nil {
		return models.Server{}, err
	}
	server := plan.Server
	wasOnline := server.Status == models.ServerOnline

	if wasOnline {
		if err := stopAndAwait(ctx, server.UUID); err != nil {
			return models.Server{}, err
		}
	}

	name := fmt.Sprintf("migrate-%d", time.Now().Unix())
	if err := runTask(ctx, common.TaskBackup, server.AgentUUID, server.UUID, common.TaskCommand{Name: name}); err != nil {
		return models.Server{}, fmt.Errorf("backup on source machine: %w", err)
	}

	staging := gamecmd.StagingPath(server.UUID, name)
	local := filepath.Join(os.TempDir(), fmt.Sprintf("zedfleet-%s-%s.tar.gz", server.UUID, name))
	defer os.Remove(local)

	if err := getMover().Pull(ctx, machineTarget(plan.SourceMachine), staging, local); err != nil {
		return models.Server{}, fmt.Errorf("pull artifact from source machine: %w", err)
	}

	if info, err := os.Stat(local); err == nil && plan.TargetFreeBytes > 0 {
		// The restore needs the archive plus its unpacked contents.
		if info.Size()*2 > plan.TargetFreeBytes {
			return models.Server{}, common.InvalidStatef(
				"target machine %s lacks disk for a %d byte artifact", targetMachineUUID, info.Size())
		}
	}

	// Park a copy in the backup store. The deferred delete removes it
	// on every return path; only a process crash mid-move leaves it
	// behind for manual recovery.
	backend, err := backup.Current()
	if err != nil {
		return models.Server{}, err
	}
	if err := backend.Upload(server.UUID, local, name); err != nil {
		return models.Server{}, fmt.Errorf("stage artifact in backup store: %w", err)
	}
	defer func() {
		if err := backend.Delete(server.UUID, name); err != nil {
			log.Printf("Failed to remove migration artifact %s for server %s: %v", name, server.UUID, err)
		}
	}()

	if err := getMover().Push(ctx, machineTarget(plan.TargetMachine), local, staging); err != nil {
		return models.Server{}, fmt.Errorf("push artifact to target machine: %w", err)
	}
	if err := runTask(ctx, common.TaskRestore, plan.TargetAgent.UUID, server.UUID, common.TaskCommand{Name: name}); err != nil {
		return models.Server{}, fmt.Errorf("restore on target machine: %w", err)
	}

	err = dbcore.GetDBInstance().Transaction(func(tx *gorm.DB) error {
		return servers.Reassign(tx, server.UUID, plan.TargetMachine.UUID, plan.TargetAgent.UUID, plan.TargetMachine.IPAddress)
	})
	if err != nil {
		return models.Server{}, err
	}

	if wasOnline {
		if _, _, err := lifecycle.Start(server.UUID); err != nil {
			log.Printf("Server %s migrated but did not start on %s: %v", server.UUID, plan.TargetMachine.UUID, err)
		}
	}
	return servers.GetServerByUUID(server.UUID)
}

func stopAndAwait(ctx context.Context, serverUUID string) error {
	_, stopTask, err := lifecycle.Stop(serverUUID)
	if err != nil {
		return err
	}
	done, err := lifecycle.AwaitTask(ctx, stopTask.UUID, awaitPoll)
	if err != nil {
		return err
	}
	if done.Status != common.TaskCompleted {
		return common.InvalidStatef("stop before migration failed: %s", done.Error)
	}
	return nil
}

// runTask creates a task, drives it through the executor and insists
// on COMPLETED.
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

func machineTarget(m models.Machine) sshexec.Target {
	return sshexec.Target{
		Host:     m.IPAddress,
		Port:     m.SSHPort,
		User:     m.SSHUser,
		KeyPath:  m.SSHKeyPath,
		Password: m.SSHPassword,
	}
}
