package factory

import "time"

// BackupRecord describes one stored artifact. Records are derived from
// a live backend listing, never cached authoritatively.
type BackupRecord struct {
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
	Location  string    `json:"location"`
}

// IBackupStorage is the capability every backend implements. All
// operations are scoped to a server.
type IBackupStorage interface {
	GetName() string
	Init() error
	List(serverUUID string) ([]BackupRecord, error)
	Upload(serverUUID, localFile, name string) error
	Download(serverUUID, name, destination string) error
	Delete(serverUUID, name string) error
}

type BackupStorageConstructor func() IBackupStorage
