package admin

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zedfleet/zedfleet/api"
	"github.com/zedfleet/zedfleet/database/records"
	"github.com/zedfleet/zedfleet/monitor"
)

func LatestHealth(c *gin.Context) {
	rec, err := monitor.LatestServerHealth(c.Param("uuid"))
	if err != nil {
		api.RespondWithError(c, err)
		return
	}
	api.RespondSuccess(c, rec)
}

// HealthHistory returns the raw samples of the window, newest last.
func HealthHistory(c *gin.Context) {
	hours := queryHours(c, 4)
	since := time.Now().Add(-time.Duration(hours) * time.Hour)
	recs, err := records.GetRecordsSince(c.Param("uuid"), since)
	if err != nil {
		api.RespondWithError(c, err)
		return
	}
	api.RespondSuccess(c, recs)
}

func HealthTrends(c *gin.Context) {
	hours := queryHours(c, 24)
	report, err := monitor.AnalyzeServerHealthTrends(c.Param("uuid"), hours, monitor.DefaultThresholds)
	if err != nil {
		api.RespondWithError(c, err)
		return
	}
	api.RespondSuccess(c, report)
}

func queryHours(c *gin.Context, fallback int) int {
	hours, err := strconv.Atoi(c.Query("hours"))
	if err != nil || hours < 1 {
		return fallback
	}
	return hours
}
