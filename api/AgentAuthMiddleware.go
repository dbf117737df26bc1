package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/zedfleet/zedfleet/database/agents"
)

// AgentAuthMiddleware validates the agent token from the Authorization
// header or the token query parameter and stores the agent on the
// context.
func AgentAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"status": "error", "message": "token is required"})
			return
		}
		agent, err := agents.GetAgentByToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"status": "error", "message": "invalid token"})
			return
		}
		c.Set("agent_uuid", agent.UUID)
		c.Next()
	}
}
