package cmd

import (
	"context"
	"log"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/zedfleet/zedfleet/api"
	adminapi "github.com/zedfleet/zedfleet/api/admin"
	agentapi "github.com/zedfleet/zedfleet/api/agent"
	"github.com/zedfleet/zedfleet/backup"
	"github.com/zedfleet/zedfleet/cmd/flags"
	"github.com/zedfleet/zedfleet/database/dbcore"
	"github.com/zedfleet/zedfleet/database/records"
	"github.com/zedfleet/zedfleet/registry"
	"github.com/zedfleet/zedfleet/scheduler"
	"github.com/zedfleet/zedfleet/taskexec"
)

var ServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the control plane",
	Long:  `Start the control plane`,
	Run: func(cmd *cobra.Command, args []string) {
		dbcore.InitDatabase()
		dbcore.GetDBInstance()

		if err := backup.LoadProvider(flags.BackupBackend); err != nil {
			log.Fatalln("Failed to load backup storage provider:", err)
		}
		if err := scheduler.Start(); err != nil {
			log.Fatalln("Failed to start restart scheduler:", err)
		}

		stop := make(chan struct{})
		grace := time.Duration(flags.HeartbeatGrace) * time.Second
		go registry.RunSweeper(grace, time.Minute, stop)
		go drainPendingTasks(stop)
		go pruneOldRecords(stop)

		r := gin.Default()
		r.Use(cors.New(cors.Config{
			AllowOrigins:     []string{"*"},
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))

		r.Any("/ping", func(c *gin.Context) {
			c.String(200, "pong")
		})

		agentAuthorized := r.Group("/api/agent", api.AgentAuthMiddleware())
		{
			agentAuthorized.POST("/heartbeat", agentapi.Heartbeat)
			agentAuthorized.POST("/servers/:uuid/health", agentapi.ReportHealth)
			agentAuthorized.POST("/tasks/:uuid/result", agentapi.ReportTaskResult)
			agentAuthorized.GET("/ws", agentapi.Connect)
		}

		admin := r.Group("/api/admin")
		{
			admin.POST("/machines", adminapi.AddMachine)
			admin.GET("/machines", adminapi.ListMachines)
			admin.GET("/machines/:uuid", adminapi.GetMachine)
			admin.DELETE("/machines/:uuid", adminapi.RemoveMachine)
			admin.POST("/machines/:uuid/agents", adminapi.InstallAgent)
			admin.GET("/machines/:uuid/agents", adminapi.ListAgents)

			admin.POST("/servers", adminapi.AddServer)
			admin.GET("/servers", adminapi.ListServers)
			admin.GET("/servers/:uuid", adminapi.GetServer)
			admin.DELETE("/servers/:uuid", adminapi.RemoveServer)
			admin.POST("/servers/:uuid/start", adminapi.StartServer)
			admin.POST("/servers/:uuid/stop", adminapi.StopServer)
			admin.POST("/servers/:uuid/restart", adminapi.RestartServer)
			admin.POST("/servers/:uuid/install", adminapi.InstallServer)
			admin.GET("/servers/:uuid/install/progress", adminapi.GetInstallProgress)
			admin.POST("/servers/:uuid/maintenance", adminapi.MaintainServer)
			admin.GET("/gametypes", adminapi.ListGameTypes)

			admin.GET("/servers/:uuid/tasks", adminapi.ListServerTasks)
			admin.GET("/tasks/:uuid", adminapi.GetTask)
			admin.GET("/agents/:uuid/tasks", adminapi.ListAgentTasks)
			admin.POST("/tasks/clear", adminapi.ClearTasks)

			admin.GET("/backups/backends", adminapi.ListBackupBackends)
			admin.GET("/servers/:uuid/backups", adminapi.ListBackups)
			admin.POST("/servers/:uuid/backups", adminapi.CreateBackup)
			admin.POST("/servers/:uuid/backups/restore", adminapi.RestoreBackup)
			admin.DELETE("/servers/:uuid/backups/:name", adminapi.DeleteBackup)

			admin.POST("/servers/:uuid/migration/prepare", adminapi.PrepareMigration)
			admin.POST("/servers/:uuid/migration", adminapi.MigrateServer)

			admin.GET("/servers/:uuid/schedule", adminapi.GetRestartSchedule)
			admin.POST("/servers/:uuid/schedule", adminapi.SetRestartSchedule)
			admin.DELETE("/servers/:uuid/schedule", adminapi.CancelRestartSchedule)
			admin.POST("/servers/:uuid/schedule/trigger", adminapi.TriggerRestart)

			admin.GET("/servers/:uuid/health", adminapi.LatestHealth)
			admin.GET("/servers/:uuid/health/history", adminapi.HealthHistory)
			admin.GET("/servers/:uuid/health/trends", adminapi.HealthTrends)
		}

		r.Run(flags.Listen)
	},
}

func init() {
	RootCmd.AddCommand(ServerCmd)
}

// drainPendingTasks picks up tasks that were created but never
// dispatched, typically after a controller restart.
func drainPendingTasks(stop <-chan struct{}) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			taskexec.ProcessPending(context.Background(), 20)
		}
	}
}

func pruneOldRecords(stop <-chan struct{}) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := records.DeleteRecordBefore(time.Now().Add(-7 * 24 * time.Hour)); err != nil {
				log.Printf("Failed to prune old health records: %v", err)
			}
		}
	}
}
