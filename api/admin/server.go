package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zedfleet/zedfleet/api"
	"github.com/zedfleet/zedfleet/database/agents"
	"github.com/zedfleet/zedfleet/database/machines"
	"github.com/zedfleet/zedfleet/database/models"
	"github.com/zedfleet/zedfleet/database/servers"
	"github.com/zedfleet/zedfleet/gamecmd"
	"github.com/zedfleet/zedfleet/lifecycle"
	"github.com/zedfleet/zedfleet/scheduler"
)

func AddServer(c *gin.Context) {
	var req struct {
		Name               string  `json:"name" binding:"required"`
		GameType           string  `json:"game_type" binding:"required"`
		MachineUUID        string  `json:"machine_uuid"`
		Port               int     `json:"port"`
		QueryPort          int     `json:"query_port"`
		RconPort           int     `json:"rcon_port"`
		Configuration      string  `json:"configuration"`
		BackupCountLimit   int     `json:"backup_count_limit"`
		BackupStorageLimit float64 `json:"backup_storage_limit_gb"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		api.RespondError(c, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := gamecmd.Lookup(req.GameType); err != nil {
		api.RespondError(c, http.StatusBadRequest, "unsupported game type: "+req.GameType)
		return
	}

	server := models.Server{
		Name:          req.Name,
		GameType:      req.GameType,
		Port:          req.Port,
		QueryPort:     req.QueryPort,
		RconPort:      req.RconPort,
		Configuration: req.Configuration,
	}
	if req.BackupCountLimit > 0 {
		server.BackupCountLimit = req.BackupCountLimit
	}
	if req.BackupStorageLimit > 0 {
		server.BackupStorageLimit = req.BackupStorageLimit
	}

	// Assigning a machine at creation picks any live agent on it.
	if req.MachineUUID != "" {
		machine, err := machines.GetMachineByUUID(req.MachineUUID)
		if err != nil {
			api.RespondWithError(c, err)
			return
		}
		agent, err := agents.FirstOnlineAgent(machine.UUID)
		if err != nil {
			api.RespondWithError(c, err)
			return
		}
		server.MachineUUID = machine.UUID
		server.AgentUUID = agent.UUID
		server.IPAddress = machine.IPAddress
	}

	created, err := servers.CreateServer(server)
	if err != nil {
		api.RespondWithError(c, err)
		return
	}
	api.RespondSuccess(c, created)
}

func ListServers(c *gin.Context) {
	ss, err := servers.GetAllServers()
	if err != nil {
		api.RespondWithError(c, err)
		return
	}
	api.RespondSuccess(c, ss)
}

func GetServer(c *gin.Context) {
	server, err := servers.GetServerByUUID(c.Param("uuid"))
	if err != nil {
		api.RespondWithError(c, err)
		return
	}
	api.RespondSuccess(c, server)
}

// RemoveServer deletes a stopped server and its restart schedule.
// Running or mid-transition servers must be stopped first.
func RemoveServer(c *gin.Context) {
	serverUUID := c.Param("uuid")
	server, err := servers.GetServerByUUID(serverUUID)
	if err != nil {
		api.RespondWithError(c, err)
		return
	}
	switch server.Status {
	case models.ServerOffline, models.ServerError, models.ServerProvisioning:
	default:
		api.RespondError(c, http.StatusConflict, "stop the server before removing it")
		return
	}
	if err := scheduler.Remove(serverUUID); err != nil {
		api.RespondWithError(c, err)
		return
	}
	if err := servers.DeleteServer(serverUUID); err != nil {
		api.RespondWithError(c, err)
		return
	}
	api.RespondSuccessMessage(c, "server removed", nil)
}

func StartServer(c *gin.Context) {
	server, task, err := lifecycle.Start(c.Param("uuid"))
	if err != nil {
		api.RespondWithError(c, err)
		return
	}
	api.RespondSuccess(c, gin.H{"server": server, "task": task})
}

func StopServer(c *gin.Context) {
	server, task, err := lifecycle.Stop(c.Param("uuid"))
	if err != nil {
		api.RespondWithError(c, err)
		return
	}
	api.RespondSuccess(c, gin.H{"server": server, "task": task})
}

func RestartServer(c *gin.Context) {
	server, task, err := lifecycle.Restart(c.Param("uuid"))
	if err != nil {
		api.RespondWithError(c, err)
		return
	}
	api.RespondSuccess(c, gin.H{"server": server, "task": task})
}

func InstallServer(c *gin.Context) {
	server, task, err := lifecycle.Install(c.Param("uuid"))
	if err != nil {
		api.RespondWithError(c, err)
		return
	}
	api.RespondSuccess(c, gin.H{"server": server, "task": task})
}

// MaintainServer runs a non-lifecycle maintenance action: update, wipe,
// cleanup or save.
func MaintainServer(c *gin.Context) {
	var req struct {
		Action string `json:"action" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		api.RespondError(c, http.StatusBadRequest, err.Error())
		return
	}
	task, err := lifecycle.Maintenance(c.Param("uuid"), req.Action)
	if err != nil {
		api.RespondWithError(c, err)
		return
	}
	api.RespondSuccess(c, task)
}

func GetInstallProgress(c *gin.Context) {
	progress, err := lifecycle.GetInstallProgress(c.Param("uuid"))
	if err != nil {
		api.RespondWithError(c, err)
		return
	}
	api.RespondSuccess(c, progress)
}

func ListGameTypes(c *gin.Context) {
	api.RespondSuccess(c, gamecmd.GameTypes())
}
