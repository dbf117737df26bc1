// Package admin holds the operator-facing endpoints: fleet CRUD,
// server lifecycle, backups, migration, restart schedules and the
// health read path.
package admin

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zedfleet/zedfleet/api"
	"github.com/zedfleet/zedfleet/common"
	"github.com/zedfleet/zedfleet/database/agents"
	"github.com/zedfleet/zedfleet/database/machines"
	"github.com/zedfleet/zedfleet/database/models"
	"github.com/zedfleet/zedfleet/database/servers"
	"github.com/zedfleet/zedfleet/database/tasks"
	"github.com/zedfleet/zedfleet/taskexec"
	"github.com/zedfleet/zedfleet/ws"
)

func AddMachine(c *gin.Context) {
	var req struct {
		Name        string `json:"name" binding:"required"`
		IPAddress   string `json:"ip_address" binding:"required"`
		SSHPort     int    `json:"ssh_port"`
		SSHUser     string `json:"ssh_user"`
		SSHKeyPath  string `json:"ssh_key_path"`
		SSHPassword string `json:"ssh_password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		api.RespondError(c, http.StatusBadRequest, err.Error())
		return
	}
	if req.SSHPort == 0 {
		req.SSHPort = 22
	}
	machine, err := machines.CreateMachine(models.Machine{
		Name:        req.Name,
		IPAddress:   req.IPAddress,
		SSHPort:     req.SSHPort,
		SSHUser:     req.SSHUser,
		SSHKeyPath:  req.SSHKeyPath,
		SSHPassword: req.SSHPassword,
	})
	if err != nil {
		api.RespondWithError(c, err)
		return
	}
	api.RespondSuccess(c, machine)
}

func ListMachines(c *gin.Context) {
	ms, err := machines.GetAllMachines()
	if err != nil {
		api.RespondWithError(c, err)
		return
	}
	api.RespondSuccess(c, ms)
}

func GetMachine(c *gin.Context) {
	machine, err := machines.GetMachineByUUID(c.Param("uuid"))
	if err != nil {
		api.RespondWithError(c, err)
		return
	}
	agentList, err := agents.GetAgentsByMachine(machine.UUID)
	if err != nil {
		api.RespondWithError(c, err)
		return
	}
	views := make([]agentView, 0, len(agentList))
	for _, agent := range agentList {
		views = append(views, agentView{Agent: agent, Connected: ws.IsAgentConnected(agent.UUID)})
	}
	api.RespondSuccess(c, gin.H{"machine": machine, "agents": views})
}

// agentView is an agent row plus its live websocket state.
type agentView struct {
	models.Agent
	Connected bool `json:"connected"`
}

// RemoveMachine refuses while servers are still assigned; nothing may
// dangle at a deleted host.
func RemoveMachine(c *gin.Context) {
	machineUUID := c.Param("uuid")
	agentList, err := agents.GetAgentsByMachine(machineUUID)
	if err != nil {
		api.RespondWithError(c, err)
		return
	}
	for _, agent := range agentList {
		hosted, err := servers.GetServersByAgent(agent.UUID)
		if err != nil {
			api.RespondWithError(c, err)
			return
		}
		if len(hosted) > 0 {
			api.RespondError(c, http.StatusConflict, "machine still hosts servers, migrate them first")
			return
		}
	}
	if err := machines.DeleteMachine(machineUUID); err != nil {
		api.RespondWithError(c, err)
		return
	}
	api.RespondSuccessMessage(c, "machine removed", nil)
}

// InstallAgent registers an agent on a machine and fires the remote
// bootstrap task. The returned token is shown exactly once.
func InstallAgent(c *gin.Context) {
	machineUUID := c.Param("uuid")
	agentUUID, token, err := agents.CreateAgent(machineUUID)
	if err != nil {
		api.RespondWithError(c, err)
		return
	}
	task, err := tasks.CreateTask(common.TaskInstallAgent, agentUUID, "", common.TaskCommand{})
	if err != nil {
		api.RespondWithError(c, err)
		return
	}
	go func() {
		_ = taskexec.Dispatch(context.Background(), task.UUID)
	}()
	api.RespondSuccess(c, gin.H{"agent_uuid": agentUUID, "token": token, "task_uuid": task.UUID})
}

func ListAgents(c *gin.Context) {
	agentList, err := agents.GetAgentsByMachine(c.Param("uuid"))
	if err != nil {
		api.RespondWithError(c, err)
		return
	}
	api.RespondSuccess(c, gin.H{"agents": agentList, "connected": ws.GetConnectedAgents()})
}
