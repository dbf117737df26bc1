// Package local stores backups on the panel host's filesystem under
// <DataDir>/backups/<serverUUID>/.
package local

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/zedfleet/zedfleet/backup/factory"
	"github.com/zedfleet/zedfleet/cmd/flags"
	"github.com/zedfleet/zedfleet/common"
)

type Local struct {
	root string
}

func init() {
	factory.RegisterBackupStorage(func() factory.IBackupStorage {
		return &Local{}
	})
}

func (l *Local) GetName() string {
	return "local"
}

func (l *Local) Init() error {
	l.root = filepath.Join(flags.DataDir, "backups")
	if err := os.MkdirAll(l.root, 0755); err != nil {
		return common.BackendUnavailablef("create backup root %q: %v", l.root, err)
	}
	return nil
}

func (l *Local) serverDir(serverUUID string) string {
	return filepath.Join(l.root, serverUUID)
}

func (l *Local) List(serverUUID string) ([]factory.BackupRecord, error) {
	entries, err := os.ReadDir(l.serverDir(serverUUID))
	if err != nil {
		if os.IsNotExist(err) {
			return []factory.BackupRecord{}, nil
		}
		return nil, common.BackendUnavailablef("list %s: %v", serverUUID, err)
	}

	records := make([]factory.BackupRecord, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".tar.gz") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		records = append(records, factory.BackupRecord{
			Name:      strings.TrimSuffix(entry.Name(), ".tar.gz"),
			Size:      info.Size(),
			CreatedAt: info.ModTime(),
			Location:  filepath.Join(l.serverDir(serverUUID), entry.Name()),
		})
	}
	return records, nil
}

func (l *Local) Upload(serverUUID, localFile, name string) error {
	dir := l.serverDir(serverUUID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return common.BackendUnavailablef("create %q: %v", dir, err)
	}
	src, err := os.Open(localFile)
	if err != nil {
		return common.BackendUnavailablef("open %q: %v", localFile, err)
	}
	defer src.Close()
	dst, err := os.Create(filepath.Join(dir, name+".tar.gz"))
	if err != nil {
		return common.BackendUnavailablef("create backup file: %v", err)
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		return common.BackendUnavailablef("write backup: %v", err)
	}
	return nil
}

func (l *Local) Download(serverUUID, name, destination string) error {
	src, err := os.Open(filepath.Join(l.serverDir(serverUUID), name+".tar.gz"))
	if err != nil {
		if os.IsNotExist(err) {
			return common.NotFoundf("backup %s for server %s", name, serverUUID)
		}
		return common.BackendUnavailablef("open backup: %v", err)
	}
	defer src.Close()
	dst, err := os.Create(destination)
	if err != nil {
		return common.BackendUnavailablef("create %q: %v", destination, err)
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		return common.BackendUnavailablef("write %q: %v", destination, err)
	}
	return nil
}

func (l *Local) Delete(serverUUID, name string) error {
	path := filepath.Join(l.serverDir(serverUUID), name+".tar.gz")
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return common.NotFoundf("backup %s for server %s", name, serverUUID)
		}
		return common.BackendUnavailablef("delete %q: %v", path, err)
	}
	return nil
}
