package tasks

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/zedfleet/zedfleet/cmd/flags"
	"github.com/zedfleet/zedfleet/common"
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

func TestTaskLifecycle(t *testing.T) {
	task, err := CreateTask(common.TaskStart, "agent-1", "server-1",
		common.TaskCommand{Action: "start"})
	assert.NoError(t, err)
	assert.Equal(t, common.TaskPending, task.Status)
	assert.Contains(t, task.Command, `"action":"start"`)

	assert.NoError(t, MarkRunning(task.UUID))

	got, err := GetTaskByUUID(task.UUID)
	assert.NoError(t, err)
	assert.Equal(t, common.TaskRunning, got.Status)
	assert.NotNil(t, got.StartedAt)

	assert.NoError(t, MarkCompleted(task.UUID, "ok", 0))

	got, err = GetTaskByUUID(task.UUID)
	assert.NoError(t, err)
	assert.Equal(t, common.TaskCompleted, got.Status)
	assert.Equal(t, "ok", got.Result)
	assert.NotNil(t, got.CompletedAt)
}

func TestMarkRunningClaimsOnce(t *testing.T) {
	task, err := CreateTask(common.TaskStop, "agent-1", "server-1",
		common.TaskCommand{Action: "stop"})
	assert.NoError(t, err)

	assert.NoError(t, MarkRunning(task.UUID))
	assert.ErrorIs(t, MarkRunning(task.UUID), common.ErrInvalidState)
}

func TestTerminalTasksAreImmutable(t *testing.T) {
	task, err := CreateTask(common.TaskRestart, "agent-1", "server-1",
		common.TaskCommand{Action: "restart"})
	assert.NoError(t, err)
	assert.NoError(t, MarkRunning(task.UUID))
	assert.NoError(t, MarkFailed(task.UUID, "boom", 1))

	assert.ErrorIs(t, MarkCompleted(task.UUID, "late", 0), common.ErrInvalidState)

	got, err := GetTaskByUUID(task.UUID)
	assert.NoError(t, err)
	assert.Equal(t, common.TaskFailed, got.Status)
	assert.Equal(t, "boom", got.Error)
}

func TestGetPendingTasksOldestFirst(t *testing.T) {
	first, err := CreateTask(common.TaskBackup, "agent-2", "server-2", common.TaskCommand{Name: "a"})
	assert.NoError(t, err)
	time.Sleep(10 * time.Millisecond)
	second, err := CreateTask(common.TaskBackup, "agent-2", "server-2", common.TaskCommand{Name: "b"})
	assert.NoError(t, err)

	pending, err := GetPendingTasks(100)
	assert.NoError(t, err)

	posFirst, posSecond := -1, -1
	for i, task := range pending {
		if task.UUID == first.UUID {
			posFirst = i
		}
		if task.UUID == second.UUID {
			posSecond = i
		}
	}
	assert.GreaterOrEqual(t, posFirst, 0)
	assert.GreaterOrEqual(t, posSecond, 0)
	assert.Less(t, posFirst, posSecond)
}
