package admin

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zedfleet/zedfleet/api"
	"github.com/zedfleet/zedfleet/database/tasks"
)

func GetTask(c *gin.Context) {
	task, err := tasks.GetTaskByUUID(c.Param("uuid"))
	if err != nil {
		api.RespondWithError(c, err)
		return
	}
	api.RespondSuccess(c, task)
}

func ListServerTasks(c *gin.Context) {
	list, err := tasks.GetTasksByServer(c.Param("uuid"))
	if err != nil {
		api.RespondWithError(c, err)
		return
	}
	api.RespondSuccess(c, list)
}

func ListAgentTasks(c *gin.Context) {
	list, err := tasks.GetTasksByAgent(c.Param("uuid"))
	if err != nil {
		api.RespondWithError(c, err)
		return
	}
	api.RespondSuccess(c, list)
}

// ClearTasks prunes terminal tasks older than the given number of days
// (default 30).
func ClearTasks(c *gin.Context) {
	days := 30
	if raw := c.Query("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			api.RespondError(c, http.StatusBadRequest, "days must be a positive integer")
			return
		}
		days = parsed
	}
	if err := tasks.ClearTasksBefore(time.Now().AddDate(0, 0, -days)); err != nil {
		api.RespondWithError(c, err)
		return
	}
	api.RespondSuccessMessage(c, "old tasks cleared", nil)
}
