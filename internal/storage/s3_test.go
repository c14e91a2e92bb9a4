package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/require"
)

type fakeUploader struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakeUploader) Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	f.input = input
	body, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}
	f.body = body
	if f.err != nil {
		return nil, f.err
	}
	return &manager.UploadOutput{}, nil
}

type fakeLister struct {
	pages []*s3.ListObjectsV2Output
	calls []*s3.ListObjectsV2Input
}

func (f *fakeLister) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	copied := *params
	f.calls = append(f.calls, &copied)
	if len(f.calls) > len(f.pages) {
		return nil, errors.New("unexpected page")
	}
	return f.pages[len(f.calls)-1], nil
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "users.db")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestUploadFile(t *testing.T) {
	up := &fakeUploader{}
	svc := &S3Service{uploader: up}
	path := writeTempFile(t, "snapshot-bytes")

	var lastDone, lastTotal int64
	location, err := svc.UploadFile(context.Background(), path, UploadOptions{
		Bucket: "backups",
		Key:    "/prefix/a.db",
		ProgressCallback: func(done, total int64) {
			lastDone, lastTotal = done, total
		},
	})
	require.NoError(t, err)
	require.Equal(t, "s3://backups/prefix/a.db", location)
	require.Equal(t, "prefix/a.db", aws.ToString(up.input.Key))
	require.Equal(t, "application/octet-stream", aws.ToString(up.input.ContentType))
	require.Equal(t, "snapshot-bytes", string(up.body))
	require.Equal(t, int64(len("snapshot-bytes")), lastDone)
	require.Equal(t, lastDone, lastTotal)
}

func TestUploadFile_Errors(t *testing.T) {
	up := &fakeUploader{err: errors.New("access denied")}
	svc := &S3Service{uploader: up}
	path := writeTempFile(t, "x")

	_, err := svc.UploadFile(context.Background(), path, UploadOptions{Key: "a.db"})
	require.ErrorContains(t, err, "bucket is required")

	_, err = svc.UploadFile(context.Background(), path, UploadOptions{Bucket: "b"})
	require.ErrorContains(t, err, "key is required")

	_, err = svc.UploadFile(context.Background(), filepath.Join(t.TempDir(), "missing.db"), UploadOptions{Bucket: "b", Key: "a.db"})
	require.ErrorContains(t, err, "open file")

	_, err = svc.UploadFile(context.Background(), path, UploadOptions{Bucket: "b", Key: "a.db"})
	require.ErrorContains(t, err, "access denied")
}

func TestListObjects_Paginates(t *testing.T) {
	modified := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	lister := &fakeLister{pages: []*s3.ListObjectsV2Output{
		{
			Contents:              []types.Object{{Key: aws.String("p/1.db"), Size: aws.Int64(10), LastModified: &modified}},
			IsTruncated:           aws.Bool(true),
			NextContinuationToken: aws.String("next"),
		},
		{
			Contents:    []types.Object{{Key: aws.String("p/2.db"), Size: aws.Int64(20)}},
			IsTruncated: aws.Bool(false),
		},
	}}
	svc := &S3Service{client: lister}

	objects, err := svc.ListObjects(context.Background(), "backups", "p/")
	require.NoError(t, err)
	require.Len(t, objects, 2)
	require.Equal(t, "p/1.db", objects[0].Key)
	require.Equal(t, int64(20), objects[1].Size)
	require.Equal(t, modified, *objects[0].LastModified)

	require.Len(t, lister.calls, 2)
	require.Equal(t, "p/", aws.ToString(lister.calls[0].Prefix))
	require.Equal(t, "next", aws.ToString(lister.calls[1].ContinuationToken))
}

func TestListObjects_Empty(t *testing.T) {
	svc := &S3Service{client: &fakeLister{pages: []*s3.ListObjectsV2Output{{}}}}
	objects, err := svc.ListObjects(context.Background(), "backups", "")
	require.NoError(t, err)
	require.NotNil(t, objects)
	require.Empty(t, objects)
}
