// Package agent holds the endpoints agents call inward: heartbeats,
// per-server health reports and the live websocket channel.
package agent

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zedfleet/zedfleet/api"
	"github.com/zedfleet/zedfleet/common"
	"github.com/zedfleet/zedfleet/database/servers"
	"github.com/zedfleet/zedfleet/database/tasks"
	"github.com/zedfleet/zedfleet/monitor"
	"github.com/zedfleet/zedfleet/registry"
	"github.com/zedfleet/zedfleet/taskexec"
)

// Heartbeat stamps the calling agent and its machine ONLINE.
func Heartbeat(c *gin.Context) {
	agentUUID := c.GetString("agent_uuid")

	var req common.HeartbeatRequest
	// An empty body is a bare keepalive.
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		api.RespondError(c, http.StatusBadRequest, "malformed heartbeat: "+err.Error())
		return
	}
	if err := registry.RecordHeartbeat(agentUUID, req); err != nil {
		api.RespondWithError(c, err)
		return
	}
	api.RespondSuccess(c, nil)
}

// ReportHealth ingests one health sample for a server hosted by the
// calling agent.
func ReportHealth(c *gin.Context) {
	agentUUID := c.GetString("agent_uuid")
	serverUUID := c.Param("uuid")

	server, err := servers.GetServerByUUID(serverUUID)
	if err != nil {
		api.RespondWithError(c, err)
		return
	}
	if server.AgentUUID != agentUUID {
		api.RespondError(c, http.StatusForbidden, "server is not hosted by this agent")
		return
	}

	var report common.HealthReport
	if err := c.ShouldBindJSON(&report); err != nil {
		api.RespondError(c, http.StatusBadRequest, "malformed health report: "+err.Error())
		return
	}
	rec, err := monitor.RecordServerHealth(serverUUID, report, monitor.DefaultThresholds)
	if err != nil {
		api.RespondWithError(c, err)
		return
	}
	api.RespondSuccess(c, rec)
}

// ReportTaskResult records the outcome of a task the agent executed on
// its own, for commands pushed over the live channel.
func ReportTaskResult(c *gin.Context) {
	agentUUID := c.GetString("agent_uuid")
	taskUUID := c.Param("uuid")

	task, err := tasks.GetTaskByUUID(taskUUID)
	if err != nil {
		api.RespondWithError(c, err)
		return
	}
	if task.AgentUUID != agentUUID {
		api.RespondError(c, http.StatusForbidden, "task does not belong to this agent")
		return
	}

	var req struct {
		Success  bool   `json:"success"`
		Output   string `json:"output"`
		ExitCode int    `json:"exit_code"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		api.RespondError(c, http.StatusBadRequest, "malformed task result: "+err.Error())
		return
	}
	if err := taskexec.ReportResult(taskUUID, req.Success, req.Output, req.ExitCode); err != nil {
		api.RespondWithError(c, err)
		return
	}
	api.RespondSuccess(c, nil)
}
