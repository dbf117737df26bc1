package backup

// Register the built-in backends.
import (
	_ "github.com/zedfleet/zedfleet/backup/ftp"
	_ "github.com/zedfleet/zedfleet/backup/local"
	_ "github.com/zedfleet/zedfleet/backup/s3"
)
