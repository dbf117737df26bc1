package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zedfleet/zedfleet/cmd/flags"
)

var RootCmd = &cobra.Command{
	Use:   "zedfleet",
	Short: "zedfleet is a game-server fleet control plane",
	Long: `zedfleet orchestrates a fleet of game-server machines: agent
liveness, server lifecycle, scheduled restarts, backups and
cross-machine migration.`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.SetArgs([]string{"server"})
		cmd.Execute()
	},
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	RootCmd.PersistentFlags().StringVar(&flags.DatabaseType, "db-type", "sqlite", "Database type: sqlite or mysql")
	RootCmd.PersistentFlags().StringVarP(&flags.DatabaseFile, "database", "d", "zedfleet.db", "SQLite database file")
	RootCmd.PersistentFlags().StringVar(&flags.DatabaseHost, "db-host", "localhost", "MySQL host")
	RootCmd.PersistentFlags().StringVar(&flags.DatabasePort, "db-port", "3306", "MySQL port")
	RootCmd.PersistentFlags().StringVar(&flags.DatabaseUser, "db-user", "root", "MySQL user")
	RootCmd.PersistentFlags().StringVar(&flags.DatabasePass, "db-pass", "", "MySQL password")
	RootCmd.PersistentFlags().StringVar(&flags.DatabaseName, "db-name", "zedfleet", "MySQL database name")
	RootCmd.PersistentFlags().StringVarP(&flags.Listen, "listen", "l", "0.0.0.0:8300", "Listen address")
	RootCmd.PersistentFlags().StringVar(&flags.DataDir, "data-dir", "./data", "Directory for panel-local state")
	RootCmd.PersistentFlags().IntVar(&flags.HeartbeatGrace, "heartbeat-grace", 300, "Heartbeat grace window in seconds")
	RootCmd.PersistentFlags().StringVar(&flags.BackupBackend, "backup-backend", "local", "Backup storage backend: local, s3 or ftp")
	RootCmd.PersistentFlags().StringVar(&flags.S3Endpoint, "s3-endpoint", "", "S3 endpoint")
	RootCmd.PersistentFlags().StringVar(&flags.S3Region, "s3-region", "us-east-1", "S3 region")
	RootCmd.PersistentFlags().StringVar(&flags.S3Bucket, "s3-bucket", "", "S3 bucket")
	RootCmd.PersistentFlags().StringVar(&flags.S3AccessKey, "s3-access-key", "", "S3 access key")
	RootCmd.PersistentFlags().StringVar(&flags.S3SecretKey, "s3-secret-key", "", "S3 secret key")
	RootCmd.PersistentFlags().BoolVar(&flags.S3UseSSL, "s3-use-ssl", true, "Use TLS for S3")
	RootCmd.PersistentFlags().StringVar(&flags.FTPHost, "ftp-host", "", "FTP host")
	RootCmd.PersistentFlags().IntVar(&flags.FTPPort, "ftp-port", 21, "FTP port")
	RootCmd.PersistentFlags().StringVar(&flags.FTPUser, "ftp-user", "", "FTP user")
	RootCmd.PersistentFlags().StringVar(&flags.FTPPass, "ftp-pass", "", "FTP password")
	RootCmd.PersistentFlags().IntVar(&flags.SSHConnectTimeout, "ssh-connect-timeout", 10, "SSH connect timeout in seconds")
	RootCmd.PersistentFlags().IntVar(&flags.SSHCommandTimeout, "ssh-command-timeout", 300, "SSH command timeout in seconds")
}
