package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zedfleet/zedfleet/api"
	"github.com/zedfleet/zedfleet/database/models"
	"github.com/zedfleet/zedfleet/database/schedules"
	"github.com/zedfleet/zedfleet/scheduler"
)

func GetRestartSchedule(c *gin.Context) {
	s, err := schedules.GetSchedule(c.Param("uuid"))
	if err != nil {
		api.RespondWithError(c, err)
		return
	}
	api.RespondSuccess(c, s)
}

func SetRestartSchedule(c *gin.Context) {
	var req struct {
		Cron              string `json:"schedule" binding:"required"`
		PreWarningMinutes *int   `json:"pre_warning_minutes"`
		GracefulSeconds   *int   `json:"graceful_shutdown_seconds"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		api.RespondError(c, http.StatusBadRequest, err.Error())
		return
	}
	s := models.RestartSchedule{
		ServerUUID:        c.Param("uuid"),
		Cron:              req.Cron,
		PreWarningMinutes: 5,
		GracefulSeconds:   30,
		Enabled:           true,
	}
	if req.PreWarningMinutes != nil {
		s.PreWarningMinutes = *req.PreWarningMinutes
	}
	if req.GracefulSeconds != nil {
		s.GracefulSeconds = *req.GracefulSeconds
	}
	if err := scheduler.Schedule(s); err != nil {
		api.RespondWithError(c, err)
		return
	}
	api.RespondSuccess(c, s)
}

func CancelRestartSchedule(c *gin.Context) {
	if err := scheduler.Cancel(c.Param("uuid")); err != nil {
		api.RespondWithError(c, err)
		return
	}
	api.RespondSuccessMessage(c, "restart schedule cancelled", nil)
}

// TriggerRestart fires the scheduled restart sequence now, without the
// warning wait.
func TriggerRestart(c *gin.Context) {
	if err := scheduler.Trigger(c.Param("uuid")); err != nil {
		api.RespondWithError(c, err)
		return
	}
	api.Respond(c, http.StatusAccepted, "success", "restart triggered", nil)
}
