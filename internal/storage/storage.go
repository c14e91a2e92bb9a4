package storage

import (
	"context"
	"time"
)

type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified *time.Time
}

// UploadOptions conveys upload destination metadata.
type UploadOptions struct {
	Bucket           string
	Key              string
	ContentType      string
	ProgressCallback func(done, total int64)
}

// Service ships database snapshots to remote object storage.
type Service interface {
	UploadFile(ctx context.Context, localPath string, opts UploadOptions) (string, error)
	ListObjects(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error)
}
