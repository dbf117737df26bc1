package tasks

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zedfleet/zedfleet/common"
	"github.com/zedfleet/zedfleet/database/dbcore"
	"github.com/zedfleet/zedfleet/database/models"
)

// CreateTask records a PENDING task. The command payload is stored as
// JSON.
func CreateTask(taskType, agentUUID, serverUUID string, cmd common.TaskCommand) (models.Task, error) {
	db := dbcore.GetDBInstance()
	payload, err := json.Marshal(cmd)
	if err != nil {
		return models.Task{}, err
	}
	task := models.Task{
		UUID:       uuid.New().String(),
		Type:       taskType,
		Status:     common.TaskPending,
		AgentUUID:  agentUUID,
		ServerUUID: serverUUID,
		Command:    string(payload),
		CreatedAt:  time.Now(),
	}
	if err := db.Create(&task).Error; err != nil {
		return models.Task{}, err
	}
	return task, nil
}

func GetTaskByUUID(taskUUID string) (models.Task, error) {
	var t models.Task
	err := dbcore.GetDBInstance().Where("uuid = ?", taskUUID).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Task{}, common.NotFoundf("task %s", taskUUID)
	}
	return t, err
}

func GetTasksByServer(serverUUID string) ([]models.Task, error) {
	var ts []models.Task
	err := dbcore.GetDBInstance().Where("server_uuid = ?", serverUUID).
		Order("created_at DESC").Find(&ts).Error
	return ts, err
}

func GetTasksByAgent(agentUUID string) ([]models.Task, error) {
	var ts []models.Task
	err := dbcore.GetDBInstance().Where("agent_uuid = ?", agentUUID).
		Order("created_at DESC").Find(&ts).Error
	return ts, err
}

// GetPendingTasks returns the oldest PENDING tasks, at most limit.
func GetPendingTasks(limit int) ([]models.Task, error) {
	var ts []models.Task
	err := dbcore.GetDBInstance().Where("status = ?", common.TaskPending).
		Order("created_at ASC").Limit(limit).Find(&ts).Error
	return ts, err
}

// MarkRunning claims a PENDING task. InvalidState when the task was
// already claimed or finished, so exactly one attempt wins.
func MarkRunning(taskUUID string) error {
	now := time.Now()
	result := dbcore.GetDBInstance().Model(&models.Task{}).
		Where("uuid = ? AND status = ?", taskUUID, common.TaskPending).
		Updates(map[string]interface{}{"status": common.TaskRunning, "started_at": &now})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return common.InvalidStatef("task %s is not PENDING", taskUUID)
	}
	return nil
}

// MarkCompleted finishes a RUNNING task. Terminal rows are immutable:
// the guard refuses anything not RUNNING.
func MarkCompleted(taskUUID, result string, exitCode int) error {
	return finish(taskUUID, common.TaskCompleted, result, "", exitCode)
}

func MarkFailed(taskUUID, errMsg string, exitCode int) error {
	return finish(taskUUID, common.TaskFailed, "", errMsg, exitCode)
}

func finish(taskUUID, status, result, errMsg string, exitCode int) error {
	now := time.Now()
	res := dbcore.GetDBInstance().Model(&models.Task{}).
		Where("uuid = ? AND status = ?", taskUUID, common.TaskRunning).
		Updates(map[string]interface{}{
			"status":       status,
			"result":       result,
			"error":        errMsg,
			"exit_code":    &exitCode,
			"completed_at": &now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return common.InvalidStatef("task %s is not RUNNING", taskUUID)
	}
	return nil
}

func ClearTasksBefore(before time.Time) error {
	return dbcore.GetDBInstance().
		Where("created_at < ? AND status IN ?", before,
			[]string{common.TaskCompleted, common.TaskFailed}).
		Delete(&models.Task{}).Error
}
