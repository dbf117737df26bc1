package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zedfleet/zedfleet/api"
	"github.com/zedfleet/zedfleet/backup"
	"github.com/zedfleet/zedfleet/backup/factory"
	"github.com/zedfleet/zedfleet/cmd/flags"
	"github.com/zedfleet/zedfleet/database/servers"
)

// ListBackupBackends reports the active backup backend and everything
// compiled in.
func ListBackupBackends(c *gin.Context) {
	api.RespondSuccess(c, gin.H{
		"active":    flags.BackupBackend,
		"available": factory.GetAllBackendNames(),
	})
}

func ListBackups(c *gin.Context) {
	serverUUID := c.Param("uuid")
	server, err := servers.GetServerByUUID(serverUUID)
	if err != nil {
		api.RespondWithError(c, err)
		return
	}
	recs, err := backup.List(serverUUID)
	if err != nil {
		api.RespondWithError(c, err)
		return
	}
	api.RespondSuccess(c, gin.H{
		"backups":          recs,
		"count_limit":      server.BackupCountLimit,
		"storage_limit_gb": server.BackupStorageLimit,
	})
}

func CreateBackup(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
	}
	// Body is optional; an empty name gets a timestamped one.
	_ = c.ShouldBindJSON(&req)

	rec, err := backup.CreateServerBackup(c.Request.Context(), c.Param("uuid"), req.Name)
	if err != nil {
		api.RespondWithError(c, err)
		return
	}
	api.RespondSuccess(c, rec)
}

func RestoreBackup(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		api.RespondError(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := backup.RestoreServerBackup(c.Request.Context(), c.Param("uuid"), req.Name); err != nil {
		api.RespondWithError(c, err)
		return
	}
	api.RespondSuccessMessage(c, "backup restored", nil)
}

func DeleteBackup(c *gin.Context) {
	name := c.Param("name")
	if name == "" {
		api.RespondError(c, http.StatusBadRequest, "backup name is required")
		return
	}
	if err := backup.Delete(c.Param("uuid"), name); err != nil {
		api.RespondWithError(c, err)
		return
	}
	api.RespondSuccessMessage(c, "backup deleted", nil)
}
