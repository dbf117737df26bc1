package gamecmd

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zedfleet/zedfleet/common"
)

var testParams = Params{
	ServerUUID: "11111111-2222-3333-4444-555555555555",
	Name:       "test-server",
	Port:       28015,
}

func TestBuildCommand(t *testing.T) {
	start, err := BuildCommand("RUST", "start", testParams)
	assert.NoError(t, err)
	assert.Equal(t, "systemctl start server-11111111-2222-3333-4444-555555555555", start)

	stop, err := BuildCommand("RUST", "stop", testParams)
	assert.NoError(t, err)
	assert.Equal(t, "systemctl stop server-11111111-2222-3333-4444-555555555555", stop)

	restart, err := BuildCommand("RUST", "restart", testParams)
	assert.NoError(t, err)
	assert.Contains(t, restart, stop)
	assert.Contains(t, restart, start)
}

func TestBuildCommandUnknownGame(t *testing.T) {
	_, err := BuildCommand("QUAKE", "start", testParams)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestBuildCommandUnknownAction(t *testing.T) {
	_, err := BuildCommand("RUST", "explode", testParams)
	assert.ErrorIs(t, err, common.ErrInvalidState)
}

func TestArkStopSavesWorld(t *testing.T) {
	stop, err := BuildCommand("ARK_EVOLVED", "stop", testParams)
	assert.NoError(t, err)
	assert.Contains(t, stop, "saveworld")
	assert.Contains(t, stop, "systemctl stop")
}

func TestBackupCommand(t *testing.T) {
	cmd, err := BackupCommand("MINECRAFT", "nightly", testParams)
	assert.NoError(t, err)
	assert.Contains(t, cmd, "tar -czf")
	assert.Contains(t, cmd, StagingPath(testParams.ServerUUID, "nightly"))
	assert.Contains(t, cmd, "/opt/servers/"+testParams.ServerUUID)
}

func TestRestoreCommand(t *testing.T) {
	cmd, err := RestoreCommand("MINECRAFT", "nightly", testParams)
	assert.NoError(t, err)
	assert.Contains(t, cmd, "tar -xzf")
	assert.Contains(t, cmd, StagingPath(testParams.ServerUUID, "nightly"))
}

func TestGameTypesRegistered(t *testing.T) {
	types := GameTypes()
	assert.Contains(t, types, "RUST")
	assert.Contains(t, types, "MINECRAFT")
	assert.Contains(t, types, "ARK_EVOLVED")
	assert.Contains(t, types, "SEVEN_DAYS_TO_DIE")
}
