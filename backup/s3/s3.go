// Package s3 stores backups in an S3-compatible bucket under
// servers/<serverUUID>/<name>.tar.gz.
package s3

import (
	"context"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/zedfleet/zedfleet/backup/factory"
	"github.com/zedfleet/zedfleet/cmd/flags"
	"github.com/zedfleet/zedfleet/common"
)

type S3 struct {
	client *minio.Client
	bucket string
}

func init() {
	factory.RegisterBackupStorage(func() factory.IBackupStorage {
		return &S3{}
	})
}

func (s *S3) GetName() string {
	return "s3"
}

func (s *S3) Init() error {
	client, err := minio.New(flags.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(flags.S3AccessKey, flags.S3SecretKey, ""),
		Secure: flags.S3UseSSL,
		Region: flags.S3Region,
	})
	if err != nil {
		return common.BackendUnavailablef("s3 client: %v", err)
	}
	s.client = client
	s.bucket = flags.S3Bucket
	if s.bucket == "" {
		return common.BackendUnavailablef("s3 bucket not configured")
	}
	return nil
}

func objectKey(serverUUID, name string) string {
	return fmt.Sprintf("servers/%s/%s.tar.gz", serverUUID, name)
}

func (s *S3) List(serverUUID string) ([]factory.BackupRecord, error) {
	ctx := context.Background()
	prefix := fmt.Sprintf("servers/%s/", serverUUID)

	records := []factory.BackupRecord{}
	for object := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix}) {
		if object.Err != nil {
			return nil, common.BackendUnavailablef("s3 list: %v", object.Err)
		}
		name := strings.TrimPrefix(object.Key, prefix)
		if !strings.HasSuffix(name, ".tar.gz") {
			continue
		}
		records = append(records, factory.BackupRecord{
			Name:      strings.TrimSuffix(name, ".tar.gz"),
			Size:      object.Size,
			CreatedAt: object.LastModified,
			Location:  fmt.Sprintf("s3://%s/%s", s.bucket, object.Key),
		})
	}
	return records, nil
}

func (s *S3) Upload(serverUUID, localFile, name string) error {
	_, err := s.client.FPutObject(context.Background(), s.bucket,
		objectKey(serverUUID, name), localFile,
		minio.PutObjectOptions{ContentType: "application/gzip"})
	if err != nil {
		return common.BackendUnavailablef("s3 upload: %v", err)
	}
	return nil
}

func (s *S3) Download(serverUUID, name, destination string) error {
	err := s.client.FGetObject(context.Background(), s.bucket,
		objectKey(serverUUID, name), destination, minio.GetObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return common.NotFoundf("backup %s for server %s", name, serverUUID)
		}
		return common.BackendUnavailablef("s3 download: %v", err)
	}
	return nil
}

func (s *S3) Delete(serverUUID, name string) error {
	err := s.client.RemoveObject(context.Background(), s.bucket,
		objectKey(serverUUID, name), minio.RemoveObjectOptions{})
	if err != nil {
		return common.BackendUnavailablef("s3 delete: %v", err)
	}
	return nil
}
