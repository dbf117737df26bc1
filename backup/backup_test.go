package backup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zedfleet/zedfleet/cmd/flags"
	"github.com/zedfleet/zedfleet/common"
	"github.com/zedfleet/zedfleet/database/dbcore"
	"github.com/zedfleet/zedfleet/database/models"
	"github.com/zedfleet/zedfleet/database/servers"
)

func dbUpdateStorageLimit(serverUUID string, gb float64) error {
	return dbcore.GetDBInstance().Model(&models.Server{}).
		Where("uuid = ?", serverUUID).Update("backup_storage_limit_gb", gb).Error
}

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "zedfleet-test-")
	if err != nil {
		panic(err)
	}
	flags.DatabaseFile = filepath.Join(dir, "test.db")
	flags.DataDir = dir
	flags.BackupBackend = "local"
	if err := LoadProvider("local"); err != nil {
		panic(err)
	}
	code := m.Run()
	os.RemoveAll(dir)
	os.Exit(code)
}

func writeArtifact(t *testing.T, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "artifact.tar.gz")
	assert.NoError(t, os.WriteFile(path, make([]byte, size), 0644))
	return path
}

func TestLoadProviderUnknown(t *testing.T) {
	assert.Error(t, LoadProvider("tape"))
}

func TestUploadAndList(t *testing.T) {
	server, err := servers.CreateServer(models.Server{Name: "bk1", GameType: "RUST"})
	assert.NoError(t, err)

	artifact := writeArtifact(t, 1024)
	assert.NoError(t, Upload(server.UUID, artifact, "first"))

	recs, err := List(server.UUID)
	assert.NoError(t, err)
	assert.Len(t, recs, 1)
	assert.Equal(t, "first", recs[0].Name)
	assert.Equal(t, int64(1024), recs[0].Size)

	// Counters are recomputed from the listing.
	got, err := servers.GetServerByUUID(server.UUID)
	assert.NoError(t, err)
	assert.Equal(t, 1, got.BackupCountUsed)
}

func TestUploadRejectedAtCountLimit(t *testing.T) {
	server, err := servers.CreateServer(models.Server{
		Name: "bk2", GameType: "RUST", BackupCountLimit: 2, BackupStorageLimit: 10,
	})
	assert.NoError(t, err)

	artifact := writeArtifact(t, 512)
	assert.NoError(t, Upload(server.UUID, artifact, "a"))
	assert.NoError(t, Upload(server.UUID, artifact, "b"))

	err = Upload(server.UUID, artifact, "c")
	assert.ErrorIs(t, err, common.ErrQuotaExceeded)

	// The rejected artifact must not exist in the backend.
	recs, err := List(server.UUID)
	assert.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestUploadRejectedOverStorageLimit(t *testing.T) {
	server, err := servers.CreateServer(models.Server{
		Name: "bk3", GameType: "RUST", BackupCountLimit: 10,
	})
	assert.NoError(t, err)
	// Tiny storage quota: 1e-6 GB is 1000 bytes.
	assert.NoError(t, servers.UpdateBackupUsage(server.UUID, 0, 0))
	err = dbUpdateStorageLimit(server.UUID, 1e-6)
	assert.NoError(t, err)

	err = Upload(server.UUID, writeArtifact(t, 4096), "big")
	assert.ErrorIs(t, err, common.ErrQuotaExceeded)

	recs, err := List(server.UUID)
	assert.NoError(t, err)
	assert.Len(t, recs, 0)
}

func TestDeleteRecomputesCounters(t *testing.T) {
	server, err := servers.CreateServer(models.Server{Name: "bk4", GameType: "RUST"})
	assert.NoError(t, err)

	artifact := writeArtifact(t, 2048)
	assert.NoError(t, Upload(server.UUID, artifact, "keep"))
	assert.NoError(t, Upload(server.UUID, artifact, "drop"))

	assert.NoError(t, Delete(server.UUID, "drop"))

	got, err := servers.GetServerByUUID(server.UUID)
	assert.NoError(t, err)
	assert.Equal(t, 1, got.BackupCountUsed)

	assert.ErrorIs(t, Delete(server.UUID, "drop"), common.ErrNotFound)
}

func TestDownloadMissing(t *testing.T) {
	server, err := servers.CreateServer(models.Server{Name: "bk5", GameType: "RUST"})
	assert.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "out.tar.gz")
	assert.ErrorIs(t, Download(server.UUID, "nope", dest), common.ErrNotFound)
}
