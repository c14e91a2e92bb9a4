package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3API is the subset of the S3 client used for listing.
type S3API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Uploader is satisfied by *manager.Uploader.
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Service stores backups in Amazon S3 (or compatible APIs).
type S3Service struct {
	client   S3API
	uploader Uploader
}

func NewS3Service(client *s3.Client) *S3Service {
	return &S3Service{
		client:   client,
		uploader: manager.NewUploader(client),
	}
}

func (s *S3Service) UploadFile(ctx context.Context, localPath string, opts UploadOptions) (string, error) {
	if opts.Bucket == "" {
		return "", fmt.Errorf("storage bucket is required")
	}
	key := strings.TrimPrefix(opts.Key, "/")
	if key == "" {
		return "", fmt.Errorf("object key is required")
	}

	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open file %s: %w", localPath, err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat file %s: %w", localPath, err)
	} else if fi.IsDir() {
		return "", fmt.Errorf("local path must be a file")
	}

	var reader io.Reader = f
	if progress := newProgressReporter(fi.Size(), opts.ProgressCallback); progress != nil {
		progress.report(0)
		defer progress.flush()
		reader = io.TeeReader(f, progress)
	}

	contentType := opts.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(opts.Bucket),
		Key:         aws.String(key),
		Body:        reader,
		ContentType: aws.String(contentType),
		ACL:         types.ObjectCannedACLPrivate,
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", localPath, err)
	}

	return fmt.Sprintf("s3://%s/%s", opts.Bucket, key), nil
}

func (s *S3Service) ListObjects(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	if bucket == "" {
		return nil, fmt.Errorf("storage bucket is required")
	}

	objects := []ObjectInfo{}
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
	}
	if strings.TrimSpace(prefix) != "" {
		input.Prefix = aws.String(prefix)
	}

	for {
		output, err := s.client.ListObjectsV2(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("list objects: %w", err)
		}

		for _, obj := range output.Contents {
			objects = append(objects, ObjectInfo{
				Key:          aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				LastModified: obj.LastModified,
			})
		}

		if !aws.ToBool(output.IsTruncated) || output.NextContinuationToken == nil {
			break
		}
		input.ContinuationToken = output.NextContinuationToken
	}

	return objects, nil
}

var _ Service = (*S3Service)(nil)

type progressReporter struct {
	total    int64
	done     int64
	cb       func(done, total int64)
	mu       sync.Mutex
	lastFire time.Time
}

func newProgressReporter(total int64, cb func(done, total int64)) *progressReporter {
	if cb == nil {
		return nil
	}
	return &progressReporter{
		total: total,
		cb:    cb,
	}
}

func (p *progressReporter) Write(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done += int64(len(b))
	now := time.Now()
	if now.Sub(p.lastFire) >= 200*time.Millisecond || p.done == p.total {
		p.lastFire = now
		p.cb(p.done, p.total)
	}

	return len(b), nil
}

func (p *progressReporter) report(done int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done = done
	p.lastFire = time.Now()
	p.cb(p.done, p.total)
}

func (p *progressReporter) flush() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cb(p.done, p.total)
}
