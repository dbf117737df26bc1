package admin

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zedfleet/zedfleet/api"
	"github.com/zedfleet/zedfleet/migration"
)

// PrepareMigration is the dry run: it validates the move and returns
// the resolved plan without touching anything.
func PrepareMigration(c *gin.Context) {
	var req struct {
		TargetMachineUUID string `json:"target_machine_uuid" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		api.RespondError(c, http.StatusBadRequest, err.Error())
		return
	}
	plan, err := migration.Prepare(c.Param("uuid"), req.TargetMachineUUID)
	if err != nil {
		api.RespondWithError(c, err)
		return
	}
	api.RespondSuccess(c, plan)
}

// MigrateServer validates synchronously, then runs the move in the
// background. Callers follow progress through the server row and its
// tasks.
func MigrateServer(c *gin.Context) {
	var req struct {
		TargetMachineUUID string `json:"target_machine_uuid" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		api.RespondError(c, http.StatusBadRequest, err.Error())
		return
	}
	serverUUID := c.Param("uuid")
	plan, err := migration.Prepare(serverUUID, req.TargetMachineUUID)
	if err != nil {
		api.RespondWithError(c, err)
		return
	}
	go func() {
		if _, err := migration.Migrate(context.Background(), serverUUID, req.TargetMachineUUID); err != nil {
			log.Printf("Migration of server %s to machine %s failed: %v", serverUUID, req.TargetMachineUUID, err)
		}
	}()
	api.Respond(c, http.StatusAccepted, "success", "migration started", plan)
}
