package agent

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/zedfleet/zedfleet/api"
	"github.com/zedfleet/zedfleet/cmd/flags"
	"github.com/zedfleet/zedfleet/database/agents"
	"github.com/zedfleet/zedfleet/database/machines"
	"github.com/zedfleet/zedfleet/database/models"
	"github.com/zedfleet/zedfleet/database/servers"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	dir, err := os.MkdirTemp("", "zedfleet-test-")
	if err != nil {
		panic(err)
	}
	flags.DatabaseFile = filepath.Join(dir, "test.db")
	flags.DataDir = dir
	code := m.Run()
	os.RemoveAll(dir)
	os.Exit(code)
}

func newRouter() *gin.Engine {
	r := gin.New()
	authorized := r.Group("/api/agent", api.AgentAuthMiddleware())
	authorized.POST("/heartbeat", Heartbeat)
	authorized.POST("/servers/:uuid/health", ReportHealth)
	return r
}

func newAgentFixture(t *testing.T) (machineUUID, agentUUID, token string) {
	t.Helper()
	machine, err := machines.CreateMachine(models.Machine{Name: "api-machine", IPAddress: "10.5.0.1"})
	assert.NoError(t, err)
	agentUUID, token, err = agents.CreateAgent(machine.UUID)
	assert.NoError(t, err)
	return machine.UUID, agentUUID, token
}

func TestHeartbeatEndpoint(t *testing.T) {
	machineUUID, agentUUID, token := newAgentFixture(t)
	router := newRouter()

	body := `{"resources":{"cpu_usage":20,"ram_used":1073741824,"ram_total":4294967296}}`
	req, _ := http.NewRequest("POST", "/api/agent/heartbeat", bytes.NewBufferString(body))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	agent, err := agents.GetAgentByUUID(agentUUID)
	assert.NoError(t, err)
	assert.Equal(t, models.AgentOnline, agent.Status)

	machine, err := machines.GetMachineByUUID(machineUUID)
	assert.NoError(t, err)
	assert.Equal(t, models.MachineOnline, machine.Status)
}

func TestHeartbeatRejectsBadToken(t *testing.T) {
	router := newRouter()

	req, _ := http.NewRequest("POST", "/api/agent/heartbeat", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHeartbeatRequiresToken(t *testing.T) {
	router := newRouter()

	req, _ := http.NewRequest("POST", "/api/agent/heartbeat", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestReportHealthEndpoint(t *testing.T) {
	machineUUID, agentUUID, token := newAgentFixture(t)
	server, err := servers.CreateServer(models.Server{
		Name: "api-server", GameType: "RUST",
		MachineUUID: machineUUID, AgentUUID: agentUUID,
	})
	assert.NoError(t, err)
	router := newRouter()

	body := `{"fps":15,"players":10,"max_players":100,"cpu_usage":90,"ram_usage":50}`
	req, _ := http.NewRequest("POST", "/api/agent/servers/"+server.UUID+"/health", bytes.NewBufferString(body))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Status string              `json:"status"`
		Data   models.HealthRecord `json:"data"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "success", response.Status)
	assert.False(t, response.Data.Healthy)
	assert.Contains(t, response.Data.Issues, "low fps")
}

func TestReportHealthWrongAgent(t *testing.T) {
	machineUUID, agentUUID, _ := newAgentFixture(t)
	_, _, otherToken := newAgentFixture(t)
	server, err := servers.CreateServer(models.Server{
		Name: "api-server2", GameType: "RUST",
		MachineUUID: machineUUID, AgentUUID: agentUUID,
	})
	assert.NoError(t, err)
	router := newRouter()

	body := `{"fps":60}`
	req, _ := http.NewRequest("POST", "/api/agent/servers/"+server.UUID+"/health", bytes.NewBufferString(body))
	req.Header.Set("Authorization", "Bearer "+otherToken)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}
