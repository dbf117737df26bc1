// Package backup is the quota-enforcing front of the pluggable backup
// store. One backend (local, s3 or ftp) is active per process,
// selected by configuration; switching backends does not migrate
// artifacts already stored elsewhere.
package backup

import (
	"fmt"
	"os"
	"sync"

	"github.com/zedfleet/zedfleet/backup/factory"
	"github.com/zedfleet/zedfleet/common"
	"github.com/zedfleet/zedfleet/database/servers"
)

var (
	mu      sync.RWMutex
	current factory.IBackupStorage
)

// LoadProvider selects and initializes the active backend by name.
func LoadProvider(name string) error {
	mu.Lock()
	defer mu.Unlock()
	constructor, exists := factory.GetConstructor(name)
	if !exists {
		return fmt.Errorf("backup storage provider not found: %s", name)
	}
	provider := constructor()
	if err := provider.Init(); err != nil {
		return err
	}
	current = provider
	return nil
}

// Current returns the active backend.
func Current() (factory.IBackupStorage, error) {
	mu.RLock()
	defer mu.RUnlock()
	if current == nil {
		return nil, common.BackendUnavailablef("no backup storage provider loaded")
	}
	return current, nil
}

const bytesPerGB = 1e9

// List returns the live backend listing for a server.
func List(serverUUID string) ([]factory.BackupRecord, error) {
	backend, err := Current()
	if err != nil {
		return nil, err
	}
	return backend.List(serverUUID)
}

// Upload stores a local artifact after the quota gate. The gate runs
// against a fresh listing, and no backend call is made on rejection.
// On success the server's cached usage counters are recomputed from
// another fresh listing, so concurrent uploads cannot drift them.
func Upload(serverUUID, localFile, name string) error {
	backend, err := Current()
	if err != nil {
		return err
	}
	server, err := servers.GetServerByUUID(serverUUID)
	if err != nil {
		return err
	}

	info, err := os.Stat(localFile)
	if err != nil {
		return common.NotFoundf("backup artifact %q: %v", localFile, err)
	}

	existing, err := backend.List(serverUUID)
	if err != nil {
		return err
	}

	usedCount := len(existing)
	var usedBytes int64
	for _, rec := range existing {
		usedBytes += rec.Size
	}
	usedGB := float64(usedBytes) / bytesPerGB
	fileGB := float64(info.Size()) / bytesPerGB

	if usedCount >= server.BackupCountLimit {
		return common.QuotaExceededf("backup count limit reached (%d/%d)", usedCount, server.BackupCountLimit)
	}
	if fileGB > server.BackupStorageLimit-usedGB {
		return common.QuotaExceededf("not enough backup storage: need %.2fGB, %.2fGB of %.2fGB free",
			fileGB, server.BackupStorageLimit-usedGB, server.BackupStorageLimit)
	}

	if err := backend.Upload(serverUUID, localFile, name); err != nil {
		return err
	}
	return refreshUsage(serverUUID, backend)
}

// Download fetches an artifact to a local destination.
func Download(serverUUID, name, destination string) error {
	backend, err := Current()
	if err != nil {
		return err
	}
	return backend.Download(serverUUID, name, destination)
}

// Delete removes an artifact and recomputes the usage counters.
func Delete(serverUUID, name string) error {
	backend, err := Current()
	if err != nil {
		return err
	}
	if err := backend.Delete(serverUUID, name); err != nil {
		return err
	}
	return refreshUsage(serverUUID, backend)
}

// refreshUsage recomputes the display-cache counters from a fresh
// listing. The listing is the source of truth; the counters never are.
func refreshUsage(serverUUID string, backend factory.IBackupStorage) error {
	recs, err := backend.List(serverUUID)
	if err != nil {
		return err
	}
	var usedBytes int64
	for _, rec := range recs {
		usedBytes += rec.Size
	}
	return servers.UpdateBackupUsage(serverUUID, len(recs), float64(usedBytes)/bytesPerGB)
}
