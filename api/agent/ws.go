package agent

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/zedfleet/zedfleet/common"
	"github.com/zedfleet/zedfleet/registry"
	"github.com/zedfleet/zedfleet/ws"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Connect upgrades the agent onto the push channel. Incoming frames
// are treated as heartbeats so a chatty socket keeps the agent fresh
// without separate HTTP keepalives.
func Connect(c *gin.Context) {
	if !websocket.IsWebSocketUpgrade(c.Request) {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "websocket upgrade required"})
		return
	}
	agentUUID := c.GetString("agent_uuid")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "failed to upgrade to websocket"})
		return
	}
	safe := ws.NewSafeConn(conn)
	ws.RegisterAgent(agentUUID, safe)
	defer func() {
		ws.UnregisterAgent(agentUUID, safe)
		safe.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var req common.HeartbeatRequest
		if len(data) > 0 {
			if err := json.Unmarshal(data, &req); err != nil {
				safe.WriteJSON(gin.H{"status": "error", "message": "invalid message"})
				continue
			}
		}
		if err := registry.RecordHeartbeat(agentUUID, req); err != nil {
			safe.WriteJSON(gin.H{"status": "error", "message": err.Error()})
			continue
		}
		safe.WriteJSON(gin.H{"status": "success"})
	}
}
