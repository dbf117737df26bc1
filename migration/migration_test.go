package migration

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zedfleet/zedfleet/backup"
	"github.com/zedfleet/zedfleet/cmd/flags"
	"github.com/zedfleet/zedfleet/common"
	"github.com/zedfleet/zedfleet/database/agents"
	"github.com/zedfleet/zedfleet/database/machines"
	"github.com/zedfleet/zedfleet/database/models"
	"github.com/zedfleet/zedfleet/database/servers"
	"github.com/zedfleet/zedfleet/registry"
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
	flags.BackupBackend = "local"
	if err := backup.LoadProvider("local"); err != nil {
		panic(err)
	}
	code := m.Run()
	os.RemoveAll(dir)
	os.Exit(code)
}

// scriptedExecutor succeeds except for commands containing failOn.
type scriptedExecutor struct {
	failOn string
}

func (s *scriptedExecutor) Run(ctx context.Context, target sshexec.Target, command string) (sshexec.Result, error) {
	if s.failOn != "" && strings.Contains(command, s.failOn) {
		return sshexec.Result{ExitCode: 1, Stderr: "scripted failure"}, nil
	}
	return sshexec.Result{ExitCode: 0}, nil
}

// fakeMover materializes pulls locally and swallows pushes.
type fakeMover struct {
	pushed []string
}

func (f *fakeMover) Push(ctx context.Context, target sshexec.Target, localPath, remotePath string) error {
	f.pushed = append(f.pushed, remotePath)
	return nil
}

func (f *fakeMover) Pull(ctx context.Context, target sshexec.Target, remotePath, localPath string) error {
	return os.WriteFile(localPath, []byte("archive-bytes"), 0644)
}

func newMachinePair(t *testing.T) (source, target models.Machine, sourceAgent, targetAgent string) {
	t.Helper()
	src, err := machines.CreateMachine(models.Machine{Name: "mig-src", IPAddress: "10.4.0.1"})
	assert.NoError(t, err)
	dst, err := machines.CreateMachine(models.Machine{Name: "mig-dst", IPAddress: "10.4.0.2"})
	assert.NoError(t, err)

	srcAgent, _, err := agents.CreateAgent(src.UUID)
	assert.NoError(t, err)
	dstAgent, _, err := agents.CreateAgent(dst.UUID)
	assert.NoError(t, err)

	assert.NoError(t, registry.RecordHeartbeat(srcAgent, common.HeartbeatRequest{}))
	assert.NoError(t, registry.RecordHeartbeat(dstAgent, common.HeartbeatRequest{
		Resources: &common.ResourceSnapshot{DiskUsed: 10 << 30, DiskTotal: 100 << 30},
	}))
	return src, dst, srcAgent, dstAgent
}

func newServerOn(t *testing.T, machine models.Machine, agentUUID, status string) models.Server {
	t.Helper()
	server, err := servers.CreateServer(models.Server{
		Name:        "mig-server",
		GameType:    "MINECRAFT",
		MachineUUID: machine.UUID,
		AgentUUID:   agentUUID,
		IPAddress:   machine.IPAddress,
		Status:      status,
	})
	assert.NoError(t, err)
	return server
}

func TestPrepareRejectsSameMachine(t *testing.T) {
	src, _, srcAgent, _ := newMachinePair(t)
	server := newServerOn(t, src, srcAgent, models.ServerOffline)

	_, err := Prepare(server.UUID, src.UUID)
	assert.ErrorIs(t, err, common.ErrInvalidState)
}

func TestPrepareRejectsTransitionalServer(t *testing.T) {
	src, dst, srcAgent, _ := newMachinePair(t)
	server := newServerOn(t, src, srcAgent, models.ServerStarting)

	_, err := Prepare(server.UUID, dst.UUID)
	assert.ErrorIs(t, err, common.ErrInvalidState)
}

func TestPrepareRejectsOfflineTarget(t *testing.T) {
	src, dst, srcAgent, _ := newMachinePair(t)
	server := newServerOn(t, src, srcAgent, models.ServerOffline)

	assert.NoError(t, machines.MarkOffline(dst.UUID))
	_, err := Prepare(server.UUID, dst.UUID)
	assert.ErrorIs(t, err, common.ErrInvalidState)
}

func TestPrepareRejectsTargetWithoutLiveAgent(t *testing.T) {
	src, dst, srcAgent, dstAgent := newMachinePair(t)
	server := newServerOn(t, src, srcAgent, models.ServerOffline)

	assert.NoError(t, agents.MarkOffline(dstAgent))
	// Machine row itself is still ONLINE from the earlier heartbeat.
	_, err := Prepare(server.UUID, dst.UUID)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestPrepareResolvesPlan(t *testing.T) {
	src, dst, srcAgent, dstAgent := newMachinePair(t)
	server := newServerOn(t, src, srcAgent, models.ServerOffline)

	plan, err := Prepare(server.UUID, dst.UUID)
	assert.NoError(t, err)
	assert.Equal(t, server.UUID, plan.Server.UUID)
	assert.Equal(t, src.UUID, plan.SourceMachine.UUID)
	assert.Equal(t, dst.UUID, plan.TargetMachine.UUID)
	assert.Equal(t, dstAgent, plan.TargetAgent.UUID)
	assert.Equal(t, int64(90<<30), plan.TargetFreeBytes)
}

func TestMigrateMovesServer(t *testing.T) {
	src, dst, srcAgent, dstAgent := newMachinePair(t)
	server := newServerOn(t, src, srcAgent, models.ServerOffline)

	taskexec.SetExecutor(&scriptedExecutor{})
	mover := &fakeMover{}
	SetMover(mover)

	moved, err := Migrate(context.Background(), server.UUID, dst.UUID)
	assert.NoError(t, err)
	assert.Equal(t, dst.UUID, moved.MachineUUID)
	assert.Equal(t, dstAgent, moved.AgentUUID)
	assert.Equal(t, dst.IPAddress, moved.IPAddress)
	assert.Equal(t, models.ServerOffline, moved.Status)

	// The artifact was pushed to the target's staging area.
	assert.Len(t, mover.pushed, 1)
	assert.Contains(t, mover.pushed[0], server.UUID)

	// The transfer artifact does not linger in the backup store.
	recs, err := backup.List(server.UUID)
	assert.NoError(t, err)
	assert.Len(t, recs, 0)
}

func TestMigrateFailedRestoreLeavesServerOnSource(t *testing.T) {
	src, dst, srcAgent, _ := newMachinePair(t)
	server := newServerOn(t, src, srcAgent, models.ServerOffline)

	taskexec.SetExecutor(&scriptedExecutor{failOn: "tar -xzf"})
	SetMover(&fakeMover{})

	_, err := Migrate(context.Background(), server.UUID, dst.UUID)
	assert.Error(t, err)

	got, err := servers.GetServerByUUID(server.UUID)
	assert.NoError(t, err)
	assert.Equal(t, src.UUID, got.MachineUUID)
	assert.Equal(t, srcAgent, got.AgentUUID)
	assert.Equal(t, models.ServerOffline, got.Status)
}
