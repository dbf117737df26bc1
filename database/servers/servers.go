package servers

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zedfleet/zedfleet/common"
	"github.com/zedfleet/zedfleet/database/dbcore"
	"github.com/zedfleet/zedfleet/database/models"
)

func CreateServer(s models.Server) (models.Server, error) {
	db := dbcore.GetDBInstance()
	if s.UUID == "" {
		s.UUID = uuid.New().String()
	}
	if s.Status == "" {
		s.Status = models.ServerOffline
	}
	if err := db.Create(&s).Error; err != nil {
		return models.Server{}, err
	}
	return s, nil
}

func GetServerByUUID(serverUUID string) (models.Server, error) {
	var s models.Server
	err := dbcore.GetDBInstance().Where("uuid = ?", serverUUID).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Server{}, common.NotFoundf("server %s", serverUUID)
	}
	return s, err
}

func GetAllServers() ([]models.Server, error) {
	var ss []models.Server
	err := dbcore.GetDBInstance().Find(&ss).Error
	return ss, err
}

func GetServersByAgent(agentUUID string) ([]models.Server, error) {
	var ss []models.Server
	err := dbcore.GetDBInstance().Where("agent_uuid = ?", agentUUID).Find(&ss).Error
	return ss, err
}

func DeleteServer(serverUUID string) error {
	return dbcore.GetDBInstance().Where("uuid = ?", serverUUID).Delete(&models.Server{}).Error
}

// SetStatus writes the status unconditionally. Lifecycle code should
// prefer TransitionStatus; this is for task-completion writes where the
// transitional state was already claimed.
func SetStatus(serverUUID, status string) error {
	return dbcore.GetDBInstance().Model(&models.Server{}).
		Where("uuid = ?", serverUUID).
		Updates(map[string]interface{}{"status": status, "updated_at": time.Now()}).Error
}

// TransitionStatus sets the status only when the current value is in
// the allowed set. Returns InvalidState when the guard fails, which is
// how concurrent conflicting lifecycle calls lose the race.
func TransitionStatus(serverUUID, to string, allowedFrom ...string) error {
	result := dbcore.GetDBInstance().Model(&models.Server{}).
		Where("uuid = ? AND status IN ?", serverUUID, allowedFrom).
		Updates(map[string]interface{}{"status": to, "updated_at": time.Now()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		s, err := GetServerByUUID(serverUUID)
		if err != nil {
			return err
		}
		return common.InvalidStatef("server %s is %s", serverUUID, s.Status)
	}
	return nil
}

// Reassign atomically moves the server to a new (machine, agent) pair.
// Used only by migration; partial reassignment is never persisted.
func Reassign(tx *gorm.DB, serverUUID, machineUUID, agentUUID, ipAddress string) error {
	return tx.Model(&models.Server{}).
		Where("uuid = ?", serverUUID).
		Updates(map[string]interface{}{
			"machine_uuid": machineUUID,
			"agent_uuid":   agentUUID,
			"ip_address":   ipAddress,
			"status":       models.ServerOffline,
			"updated_at":   time.Now(),
		}).Error
}

// UpdateBackupUsage refreshes the cached quota counters.
func UpdateBackupUsage(serverUUID string, count int, usedGB float64) error {
	return dbcore.GetDBInstance().Model(&models.Server{}).
		Where("uuid = ?", serverUUID).
		Updates(map[string]interface{}{
			"backup_count_used":      count,
			"backup_storage_used_gb": usedGB,
		}).Error
}

// TouchServers bumps updated_at on all active servers of an agent.
// Called on heartbeat.
func TouchServers(agentUUID string, at time.Time) error {
	return dbcore.GetDBInstance().Model(&models.Server{}).
		Where("agent_uuid = ? AND status IN ?", agentUUID,
			[]string{models.ServerOnline, models.ServerStarting, models.ServerRestarting}).
		Update("updated_at", at).Error
}
