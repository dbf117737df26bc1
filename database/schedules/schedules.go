package schedules

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/zedfleet/zedfleet/common"
	"github.com/zedfleet/zedfleet/database/dbcore"
	"github.com/zedfleet/zedfleet/database/models"
)

// UpsertSchedule writes the one schedule row a server may have.
func UpsertSchedule(s models.RestartSchedule) error {
	return dbcore.GetDBInstance().
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "server_uuid"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"cron", "pre_warning_minutes", "graceful_seconds", "enabled", "updated_at",
			}),
		}).
		Create(&s).Error
}

func GetSchedule(serverUUID string) (models.RestartSchedule, error) {
	var s models.RestartSchedule
	err := dbcore.GetDBInstance().Where("server_uuid = ?", serverUUID).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.RestartSchedule{}, common.NotFoundf("restart schedule for server %s", serverUUID)
	}
	return s, err
}

func GetEnabledSchedules() ([]models.RestartSchedule, error) {
	var ss []models.RestartSchedule
	err := dbcore.GetDBInstance().Where("enabled = ?", true).Find(&ss).Error
	return ss, err
}

func SetEnabled(serverUUID string, enabled bool) error {
	return dbcore.GetDBInstance().Model(&models.RestartSchedule{}).
		Where("server_uuid = ?", serverUUID).
		Updates(map[string]interface{}{"enabled": enabled, "updated_at": time.Now()}).Error
}

func StampLastRun(serverUUID string, at time.Time) error {
	return dbcore.GetDBInstance().Model(&models.RestartSchedule{}).
		Where("server_uuid = ?", serverUUID).
		Update("last_run", &at).Error
}

func DeleteSchedule(serverUUID string) error {
	return dbcore.GetDBInstance().Where("server_uuid = ?", serverUUID).
		Delete(&models.RestartSchedule{}).Error
}
