package flags

var (
	// Database settings: sqlite (default) or mysql.
	DatabaseType string
	DatabaseFile string
	DatabaseHost string
	DatabasePort string
	DatabaseUser string
	DatabasePass string
	DatabaseName string

	Listen string

	// DataDir holds panel-local state: install progress reports and the
	// local backup store.
	DataDir string

	// Heartbeat grace window in seconds. An ONLINE agent whose last
	// heartbeat is older than this is swept OFFLINE.
	HeartbeatGrace int

	// Backup backend selection: local, s3 or ftp.
	BackupBackend string

	// S3 backend credentials.
	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3UseSSL    bool

	// FTP backend credentials.
	FTPHost string
	FTPPort int
	FTPUser string
	FTPPass string

	// Remote executor timeouts in seconds.
	SSHConnectTimeout int
	SSHCommandTimeout int
)
