// Package ftp stores backups on an FTP server under
// /backups/<serverUUID>/. A fresh connection is dialed per call; the
// panel's backup traffic is far too sparse to justify pooling.
package ftp

import (
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	ftplib "github.com/jlaffaye/ftp"

	"github.com/zedfleet/zedfleet/backup/factory"
	"github.com/zedfleet/zedfleet/cmd/flags"
	"github.com/zedfleet/zedfleet/common"
)

type FTP struct {
	addr string
	user string
	pass string
}

func init() {
	factory.RegisterBackupStorage(func() factory.IBackupStorage {
		return &FTP{}
	})
}

func (f *FTP) GetName() string {
	return "ftp"
}

func (f *FTP) Init() error {
	if flags.FTPHost == "" {
		return common.BackendUnavailablef("ftp host not configured")
	}
	port := flags.FTPPort
	if port == 0 {
		port = 21
	}
	f.addr = fmt.Sprintf("%s:%d", flags.FTPHost, port)
	f.user = flags.FTPUser
	f.pass = flags.FTPPass
	return nil
}

func (f *FTP) connect() (*ftplib.ServerConn, error) {
	conn, err := ftplib.Dial(f.addr, ftplib.DialWithTimeout(15*time.Second))
	if err != nil {
		return nil, common.BackendUnavailablef("ftp dial %s: %v", f.addr, err)
	}
	if err := conn.Login(f.user, f.pass); err != nil {
		conn.Quit()
		return nil, common.BackendUnavailablef("ftp login: %v", err)
	}
	return conn, nil
}

func serverDir(serverUUID string) string {
	return path.Join("/backups", serverUUID)
}

func (f *FTP) List(serverUUID string) ([]factory.BackupRecord, error) {
	conn, err := f.connect()
	if err != nil {
		return nil, err
	}
	defer conn.Quit()

	entries, err := conn.List(serverDir(serverUUID))
	if err != nil {
		// A missing directory just means no backups yet.
		return []factory.BackupRecord{}, nil
	}

	records := make([]factory.BackupRecord, 0, len(entries))
	for _, entry := range entries {
		if entry.Type != ftplib.EntryTypeFile || !strings.HasSuffix(entry.Name, ".tar.gz") {
			continue
		}
		records = append(records, factory.BackupRecord{
			Name:      strings.TrimSuffix(entry.Name, ".tar.gz"),
			Size:      int64(entry.Size),
			CreatedAt: entry.Time,
			Location:  path.Join(serverDir(serverUUID), entry.Name),
		})
	}
	return records, nil
}

func (f *FTP) Upload(serverUUID, localFile, name string) error {
	conn, err := f.connect()
	if err != nil {
		return err
	}
	defer conn.Quit()

	// MakeDir fails when the directory exists; harmless.
	conn.MakeDir("/backups")
	conn.MakeDir(serverDir(serverUUID))

	file, err := os.Open(localFile)
	if err != nil {
		return common.BackendUnavailablef("open %q: %v", localFile, err)
	}
	defer file.Close()

	if err := conn.Stor(path.Join(serverDir(serverUUID), name+".tar.gz"), file); err != nil {
		return common.BackendUnavailablef("ftp upload: %v", err)
	}
	return nil
}

func (f *FTP) Download(serverUUID, name, destination string) error {
	conn, err := f.connect()
	if err != nil {
		return err
	}
	defer conn.Quit()

	resp, err := conn.Retr(path.Join(serverDir(serverUUID), name+".tar.gz"))
	if err != nil {
		return common.NotFoundf("backup %s for server %s", name, serverUUID)
	}
	defer resp.Close()

	file, err := os.Create(destination)
	if err != nil {
		return common.BackendUnavailablef("create %q: %v", destination, err)
	}
	defer file.Close()

	if _, err := file.ReadFrom(resp); err != nil {
		return common.BackendUnavailablef("ftp download: %v", err)
	}
	return nil
}

func (f *FTP) Delete(serverUUID, name string) error {
	conn, err := f.connect()
	if err != nil {
		return err
	}
	defer conn.Quit()

	if err := conn.Delete(path.Join(serverDir(serverUUID), name+".tar.gz")); err != nil {
		return common.NotFoundf("backup %s for server %s", name, serverUUID)
	}
	return nil
}
