package machines

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zedfleet/zedfleet/common"
	"github.com/zedfleet/zedfleet/database/dbcore"
	"github.com/zedfleet/zedfleet/database/models"
)

// CreateMachine registers a host. Status starts OFFLINE until the
// first agent heartbeat arrives.
func CreateMachine(m models.Machine) (models.Machine, error) {
	db := dbcore.GetDBInstance()
	if m.UUID == "" {
		m.UUID = uuid.New().String()
	}
	m.Status = models.MachineOffline
	if err := db.Create(&m).Error; err != nil {
		return models.Machine{}, err
	}
	return m, nil
}

func GetMachineByUUID(machineUUID string) (models.Machine, error) {
	var m models.Machine
	err := dbcore.GetDBInstance().Where("uuid = ?", machineUUID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Machine{}, common.NotFoundf("machine %s", machineUUID)
	}
	return m, err
}

func GetAllMachines() ([]models.Machine, error) {
	var ms []models.Machine
	err := dbcore.GetDBInstance().Find(&ms).Error
	return ms, err
}

// MarkOnline stamps the heartbeat and the latest resource snapshot.
func MarkOnline(machineUUID string, resources string, at time.Time) error {
	updates := map[string]interface{}{
		"status":         models.MachineOnline,
		"last_heartbeat": at,
	}
	if resources != "" {
		updates["resources"] = resources
	}
	return dbcore.GetDBInstance().Model(&models.Machine{}).
		Where("uuid = ?", machineUUID).Updates(updates).Error
}

func MarkOffline(machineUUID string) error {
	return dbcore.GetDBInstance().Model(&models.Machine{}).
		Where("uuid = ?", machineUUID).Update("status", models.MachineOffline).Error
}

func DeleteMachine(machineUUID string) error {
	return dbcore.GetDBInstance().Where("uuid = ?", machineUUID).Delete(&models.Machine{}).Error
}
