// Package lifecycle owns the server status field. Every lifecycle call
// is guarded by a precondition on the current status, claims the
// transitional state optimistically, fires the backing task in the
// background and returns immediately; the task executor resolves the
// terminal state later.
package lifecycle

import (
	"context"
	"log"
	"time"

	"github.com/zedfleet/zedfleet/common"
	"github.com/zedfleet/zedfleet/database/agents"
	"github.com/zedfleet/zedfleet/database/models"
	"github.com/zedfleet/zedfleet/database/servers"
	"github.com/zedfleet/zedfleet/database/tasks"
	"github.com/zedfleet/zedfleet/taskexec"
)

// Start brings a server up. Rejected when the server is already ONLINE
// or mid-transition.
func Start(serverUUID string) (models.Server, models.Task, error) {
	return transition(serverUUID, common.TaskStart, "start",
		models.ServerStarting,
		[]string{models.ServerOffline, models.ServerError, models.ServerProvisioning})
}

// Stop takes a server down gracefully.
func Stop(serverUUID string) (models.Server, models.Task, error) {
	return transition(serverUUID, common.TaskStop, "stop",
		models.ServerStopping,
		[]string{models.ServerOnline, models.ServerStarting, models.ServerError})
}

// Restart is accepted only for a running server.
func Restart(serverUUID string) (models.Server, models.Task, error) {
	return transition(serverUUID, common.TaskRestart, "restart",
		models.ServerRestarting,
		[]string{models.ServerOnline})
}

// StopWithGrace is Stop carrying a graceful shutdown budget for the
// remote side. Used by the restart scheduler.
func StopWithGrace(serverUUID string, gracefulSeconds int) (models.Server, models.Task, error) {
	server, err := precheck(serverUUID)
	if err != nil {
		return models.Server{}, models.Task{}, err
	}
	if err := servers.TransitionStatus(serverUUID, models.ServerStopping,
		models.ServerOnline, models.ServerStarting, models.ServerError); err != nil {
		return models.Server{}, models.Task{}, err
	}
	task, err := tasks.CreateTask(common.TaskStop, server.AgentUUID, server.UUID,
		common.TaskCommand{Action: "stop", GracefulSeconds: gracefulSeconds})
	if err != nil {
		return models.Server{}, models.Task{}, err
	}
	dispatchBackground(task)
	server.Status = models.ServerStopping
	return server, task, nil
}

func transition(serverUUID, taskType, action, transitional string, allowedFrom []string) (models.Server, models.Task, error) {
	server, err := precheck(serverUUID)
	if err != nil {
		return models.Server{}, models.Task{}, err
	}
	if err := servers.TransitionStatus(serverUUID, transitional, allowedFrom...); err != nil {
		return models.Server{}, models.Task{}, err
	}
	task, err := tasks.CreateTask(taskType, server.AgentUUID, server.UUID,
		common.TaskCommand{Action: action})
	if err != nil {
		return models.Server{}, models.Task{}, err
	}
	dispatchBackground(task)
	server.Status = transitional
	return server, task, nil
}

// precheck loads the server and consults the registry: no task is ever
// issued against an agent the offline sweep has written off.
func precheck(serverUUID string) (models.Server, error) {
	server, err := servers.GetServerByUUID(serverUUID)
	if err != nil {
		return models.Server{}, err
	}
	if server.AgentUUID == "" {
		return models.Server{}, common.InvalidStatef("server %s has no agent assigned", serverUUID)
	}
	agent, err := agents.GetAgentByUUID(server.AgentUUID)
	if err != nil {
		return models.Server{}, err
	}
	if agent.Status != models.AgentOnline {
		return models.Server{}, common.InvalidStatef("agent %s is OFFLINE", agent.UUID)
	}
	return server, nil
}

func dispatchBackground(task models.Task) {
	go func() {
		if err := taskexec.Dispatch(context.Background(), task.UUID); err != nil {
			log.Printf("Background task %s (%s) failed: %v", task.UUID, task.Type, err)
		}
	}()
}

// Maintenance fires an UPDATE-type task (update, wipe, cleanup, save)
// without touching the server status.
func Maintenance(serverUUID, action string) (models.Task, error) {
	server, err := precheck(serverUUID)
	if err != nil {
		return models.Task{}, err
	}
	task, err := tasks.CreateTask(common.TaskUpdate, server.AgentUUID, server.UUID,
		common.TaskCommand{Action: action, GameType: server.GameType})
	if err != nil {
		return models.Task{}, err
	}
	dispatchBackground(task)
	return task, nil
}

// Install provisions the server's files on its machine. The server
// parks in PROVISIONING; the installing process reports progress
// through the install artifact, and a later Start brings it ONLINE.
func Install(serverUUID string) (models.Server, models.Task, error) {
	server, err := precheck(serverUUID)
	if err != nil {
		return models.Server{}, models.Task{}, err
	}
	if err := servers.TransitionStatus(serverUUID, models.ServerProvisioning,
		models.ServerOffline, models.ServerError); err != nil {
		return models.Server{}, models.Task{}, err
	}
	task, err := tasks.CreateTask(common.TaskUpdate, server.AgentUUID, server.UUID,
		common.TaskCommand{Action: "update", GameType: server.GameType})
	if err != nil {
		return models.Server{}, models.Task{}, err
	}
	dispatchBackground(task)
	server.Status = models.ServerProvisioning
	return server, task, nil
}

// AwaitTask polls until the task reaches a terminal state or the
// context expires. Callers needing stop-before-start ordering await the
// first task before issuing the next call.
func AwaitTask(ctx context.Context, taskUUID string, poll time.Duration) (models.Task, error) {
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		task, err := tasks.GetTaskByUUID(taskUUID)
		if err != nil {
			return models.Task{}, err
		}
		if task.Status == common.TaskCompleted || task.Status == common.TaskFailed {
			return task, nil
		}
		select {
		case <-ctx.Done():
			return task, ctx.Err()
		case <-ticker.C:
		}
	}
}
