// Package ws holds the live websocket channel to connected agents.
// The channel is advisory: heartbeats and task results flow over HTTP,
// the socket carries pushed messages (restart warnings, live exec).
package ws

import (
	"encoding/json"

	"github.com/gorilla/websocket"

	"github.com/zedfleet/zedfleet/common"
	"github.com/zedfleet/zedfleet/utils"
)

var connectedAgents = utils.NewSafeMap[string, *SafeConn]()

func RegisterAgent(agentUUID string, conn *SafeConn) {
	// A reconnect replaces the old socket; close the stale one.
	if old, ok := connectedAgents.Get(agentUUID); ok && old.ID != conn.ID {
		old.Close()
	}
	connectedAgents.Set(agentUUID, conn)
}

func UnregisterAgent(agentUUID string, conn *SafeConn) {
	// Only drop the mapping if it still points at this socket.
	if cur, ok := connectedAgents.Get(agentUUID); ok && cur.ID == conn.ID {
		connectedAgents.Delete(agentUUID)
	}
}

func GetConnectedAgents() []string {
	return connectedAgents.Keys()
}

func IsAgentConnected(agentUUID string) bool {
	_, ok := connectedAgents.Get(agentUUID)
	return ok
}

// PushMessage sends a JSON message to one connected agent.
func PushMessage(agentUUID string, message interface{}) error {
	conn, ok := connectedAgents.Get(agentUUID)
	if !ok {
		return common.NotFoundf("agent %s is not connected", agentUUID)
	}
	payload, err := json.Marshal(message)
	if err != nil {
		return err
	}
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return common.TransportFailuref("push to agent %s: %v", agentUUID, err)
	}
	return nil
}

// BroadcastMessage is the restart-warning message pushed to the agent
// hosting a server; the agent relays it into the game console.
type BroadcastMessage struct {
	Message    string `json:"message"`
	ServerUUID string `json:"server_uuid"`
	Text       string `json:"text"`
}

// WarnServer pushes an in-game warning for a server through its agent.
// Best effort by design: a missing socket is the caller's problem to
// ignore.
func WarnServer(agentUUID, serverUUID, text string) error {
	return PushMessage(agentUUID, BroadcastMessage{
		Message:    "broadcast",
		ServerUUID: serverUUID,
		Text:       text,
	})
}
