package backup

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zedfleet/zedfleet/common"
	"github.com/zedfleet/zedfleet/database/agents"
	"github.com/zedfleet/zedfleet/database/machines"
	"github.com/zedfleet/zedfleet/database/models"
	"github.com/zedfleet/zedfleet/database/servers"
	"github.com/zedfleet/zedfleet/database/tasks"
	"github.com/zedfleet/zedfleet/sshexec"
	"github.com/zedfleet/zedfleet/taskexec"
)

type okExecutor struct{}

func (okExecutor) Run(ctx context.Context, target sshexec.Target, command string) (sshexec.Result, error) {
	return sshexec.Result{ExitCode: 0}, nil
}

type stubMover struct {
	pulled int
	pushed int
}

func (s *stubMover) Push(ctx context.Context, target sshexec.Target, localPath, remotePath string) error {
	s.pushed++
	return nil
}

func (s *stubMover) Pull(ctx context.Context, target sshexec.Target, remotePath, localPath string) error {
	s.pulled++
	return os.WriteFile(localPath, []byte("flow-archive"), 0644)
}

func newFlowFixture(t *testing.T, status string) models.Server {
	t.Helper()
	machine, err := machines.CreateMachine(models.Machine{Name: "flow-machine", IPAddress: "10.7.0.1"})
	assert.NoError(t, err)
	agentUUID, _, err := agents.CreateAgent(machine.UUID)
	assert.NoError(t, err)
	server, err := servers.CreateServer(models.Server{
		Name: "flow-server", GameType: "RUST",
		MachineUUID: machine.UUID, AgentUUID: agentUUID,
		Status: status,
	})
	assert.NoError(t, err)
	return server
}

func TestCreateServerBackup(t *testing.T) {
	server := newFlowFixture(t, models.ServerOnline)
	taskexec.SetExecutor(okExecutor{})
	mover := &stubMover{}
	SetMover(mover)

	rec, err := CreateServerBackup(context.Background(), server.UUID, "manual-1")
	assert.NoError(t, err)
	assert.Equal(t, "manual-1", rec.Name)
	assert.Equal(t, 1, mover.pulled)

	recs, err := List(server.UUID)
	assert.NoError(t, err)
	assert.Len(t, recs, 1)

	// The backing task reached COMPLETED.
	list, err := tasks.GetTasksByServer(server.UUID)
	assert.NoError(t, err)
	assert.NotEmpty(t, list)
	assert.Equal(t, common.TaskBackup, list[0].Type)
	assert.Equal(t, common.TaskCompleted, list[0].Status)
}

func TestCreateServerBackupPreGatesCount(t *testing.T) {
	server := newFlowFixture(t, models.ServerOnline)
	taskexec.SetExecutor(okExecutor{})
	mover := &stubMover{}
	SetMover(mover)

	assert.NoError(t, servers.UpdateBackupUsage(server.UUID, 0, 0))
	// Fill the count quota.
	for i := 0; i < 5; i++ {
		_, err := CreateServerBackup(context.Background(), server.UUID, fmt.Sprintf("slot-%d", i))
		assert.NoError(t, err)
	}

	_, err := CreateServerBackup(context.Background(), server.UUID, "overflow")
	assert.ErrorIs(t, err, common.ErrQuotaExceeded)

	// The pre-gate fired before any remote work.
	assert.Equal(t, 5, mover.pulled)
}

func TestRestoreServerBackupRequiresStoppedServer(t *testing.T) {
	server := newFlowFixture(t, models.ServerOnline)
	taskexec.SetExecutor(okExecutor{})
	SetMover(&stubMover{})

	err := RestoreServerBackup(context.Background(), server.UUID, "whatever")
	assert.ErrorIs(t, err, common.ErrInvalidState)
}

func TestRestoreServerBackup(t *testing.T) {
	server := newFlowFixture(t, models.ServerOnline)
	taskexec.SetExecutor(okExecutor{})
	mover := &stubMover{}
	SetMover(mover)

	_, err := CreateServerBackup(context.Background(), server.UUID, "pre-wipe")
	assert.NoError(t, err)

	assert.NoError(t, servers.SetStatus(server.UUID, models.ServerOffline))
	assert.NoError(t, RestoreServerBackup(context.Background(), server.UUID, "pre-wipe"))
	assert.Equal(t, 1, mover.pushed)
}

func TestRestoreServerBackupMissingArtifact(t *testing.T) {
	server := newFlowFixture(t, models.ServerOffline)
	taskexec.SetExecutor(okExecutor{})
	SetMover(&stubMover{})

	err := RestoreServerBackup(context.Background(), server.UUID, "ghost")
	assert.ErrorIs(t, err, common.ErrNotFound)
}
