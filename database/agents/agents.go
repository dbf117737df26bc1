package agents

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zedfleet/zedfleet/common"
	"github.com/zedfleet/zedfleet/database/dbcore"
	"github.com/zedfleet/zedfleet/database/models"
	"github.com/zedfleet/zedfleet/utils"
)

// CreateAgent registers an agent process on a machine and issues its
// auth token. The machine reference is immutable afterwards.
func CreateAgent(machineUUID string) (agentUUID, token string, err error) {
	db := dbcore.GetDBInstance()

	var machine models.Machine
	if err := db.Where("uuid = ?", machineUUID).First(&machine).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", "", common.NotFoundf("machine %s", machineUUID)
		}
		return "", "", err
	}

	agentUUID = uuid.New().String()
	token = utils.GenerateToken()
	agent := models.Agent{
		UUID:        agentUUID,
		MachineUUID: machineUUID,
		Token:       token,
		Status:      models.AgentOffline,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if err := db.Create(&agent).Error; err != nil {
		return "", "", err
	}
	return agentUUID, token, nil
}

func GetAgentByUUID(agentUUID string) (models.Agent, error) {
	var a models.Agent
	err := dbcore.GetDBInstance().Where("uuid = ?", agentUUID).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Agent{}, common.NotFoundf("agent %s", agentUUID)
	}
	return a, err
}

func GetAgentByToken(token string) (models.Agent, error) {
	var a models.Agent
	err := dbcore.GetDBInstance().Where("token = ?", token).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Agent{}, common.NotFoundf("agent token")
	}
	return a, err
}

func GetAgentsByMachine(machineUUID string) ([]models.Agent, error) {
	var as []models.Agent
	err := dbcore.GetDBInstance().Where("machine_uuid = ?", machineUUID).Find(&as).Error
	return as, err
}

// FirstOnlineAgent returns any ONLINE agent on the machine, or
// NotFound when the machine has none.
func FirstOnlineAgent(machineUUID string) (models.Agent, error) {
	var a models.Agent
	err := dbcore.GetDBInstance().
		Where("machine_uuid = ? AND status = ?", machineUUID, models.AgentOnline).
		First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Agent{}, common.NotFoundf("no ONLINE agent on machine %s", machineUUID)
	}
	return a, err
}

// MarkOnline stamps the heartbeat. Capabilities are kept when the
// heartbeat omits them.
func MarkOnline(agentUUID, capabilities string, at time.Time) error {
	updates := map[string]interface{}{
		"status":         models.AgentOnline,
		"last_heartbeat": at,
	}
	if capabilities != "" {
		updates["capabilities"] = capabilities
	}
	return dbcore.GetDBInstance().Model(&models.Agent{}).
		Where("uuid = ?", agentUUID).Updates(updates).Error
}

func MarkOffline(agentUUID string) error {
	return dbcore.GetDBInstance().Model(&models.Agent{}).
		Where("uuid = ?", agentUUID).Update("status", models.AgentOffline).Error
}

// StaleOnlineAgents lists agents still marked ONLINE whose heartbeat is
// older than the cutoff.
func StaleOnlineAgents(cutoff time.Time) ([]models.Agent, error) {
	var as []models.Agent
	err := dbcore.GetDBInstance().
		Where("status = ? AND last_heartbeat < ?", models.AgentOnline, cutoff).
		Find(&as).Error
	return as, err
}

// HasLiveSibling reports whether the machine has another agent with a
// heartbeat within the grace window.
func HasLiveSibling(machineUUID, excludeAgentUUID string, cutoff time.Time) (bool, error) {
	var count int64
	err := dbcore.GetDBInstance().Model(&models.Agent{}).
		Where("machine_uuid = ? AND uuid != ? AND status = ? AND last_heartbeat >= ?",
			machineUUID, excludeAgentUUID, models.AgentOnline, cutoff).
		Count(&count).Error
	return count > 0, err
}
