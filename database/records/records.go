package records

import (
	"time"

	"github.com/zedfleet/zedfleet/database/dbcore"
	"github.com/zedfleet/zedfleet/database/models"
)

// RetentionSamples is the rolling buffer size per server: 24h of
// 5-minute samples.
const RetentionSamples = 288

// RecordOne appends a sample and trims the server's buffer past the
// retention window.
func RecordOne(rec models.HealthRecord) error {
	db := dbcore.GetDBInstance()
	if err := db.Create(&rec).Error; err != nil {
		return err
	}
	return trim(rec.ServerUUID)
}

func trim(serverUUID string) error {
	db := dbcore.GetDBInstance()
	var count int64
	if err := db.Model(&models.HealthRecord{}).
		Where("server_uuid = ?", serverUUID).Count(&count).Error; err != nil {
		return err
	}
	if count <= RetentionSamples {
		return nil
	}
	// Delete everything older than the newest RetentionSamples rows.
	var cutoff models.HealthRecord
	if err := db.Where("server_uuid = ?", serverUUID).
		Order("time DESC").Offset(RetentionSamples - 1).Limit(1).
		Find(&cutoff).Error; err != nil {
		return err
	}
	return db.Where("server_uuid = ? AND time < ?", serverUUID, cutoff.Time).
		Delete(&models.HealthRecord{}).Error
}

func GetLatestRecord(serverUUID string) ([]models.HealthRecord, error) {
	var recs []models.HealthRecord
	err := dbcore.GetDBInstance().Where("server_uuid = ?", serverUUID).
		Order("time DESC").Limit(1).Find(&recs).Error
	return recs, err
}

func GetRecordsSince(serverUUID string, since time.Time) ([]models.HealthRecord, error) {
	var recs []models.HealthRecord
	err := dbcore.GetDBInstance().
		Where("server_uuid = ? AND time >= ?", serverUUID, since).
		Order("time ASC").Find(&recs).Error
	return recs, err
}

func DeleteRecordBefore(before time.Time) error {
	return dbcore.GetDBInstance().Where("time < ?", before).
		Delete(&models.HealthRecord{}).Error
}
