package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hupe1980/proposalmesh/core"
)

// S3Options configure the S3-compatible archive.
type S3Options struct {
	// Region is passed through to bucket creation.
	Region string
	// UseSSL toggles TLS on the endpoint connection.
	UseSSL bool
	// ContentType is recorded on every stored object.
	ContentType string
}

// S3Archive stores documents in an S3-compatible bucket under
// "<runID>/<name>" keys. The bucket is created lazily on first use.
type S3Archive struct {
	client *minio.Client
	bucket string
	opts   S3Options

	initOnce sync.Once
	initErr  error
}

var _ core.DocumentArchive = (*S3Archive)(nil)

// NewS3Archive connects to the given endpoint with static credentials.
func NewS3Archive(endpoint, accessKey, secretKey, bucket string, optFns ...func(o *S3Options)) (*S3Archive, error) {
	opts := S3Options{
		Region:      "us-east-1",
		ContentType: "text/markdown",
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if strings.TrimSpace(endpoint) == "" {
		return nil, fmt.Errorf("archive: s3 endpoint is required")
	}
	if strings.TrimSpace(accessKey) == "" || strings.TrimSpace(secretKey) == "" {
		return nil, fmt.Errorf("archive: s3 access key and secret key are required")
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, fmt.Errorf("archive: s3 bucket is required")
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("archive: init s3 client: %w", err)
	}

	return &S3Archive{client: client, bucket: bucket, opts: opts}, nil
}

func (a *S3Archive) ensureBucket(ctx context.Context) error {
	a.initOnce.Do(func() {
		exists, err := a.client.BucketExists(ctx, a.bucket)
		if err != nil {
			a.initErr = err
			return
		}
		if exists {
			return
		}
		a.initErr = a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{Region: a.opts.Region})
	})
	return a.initErr
}

// Save implements core.DocumentArchive.
func (a *S3Archive) Save(ctx context.Context, runID, name string, data []byte) error {
	if err := validateName(runID); err != nil {
		return err
	}
	if err := validateName(name); err != nil {
		return err
	}
	if err := a.ensureBucket(ctx); err != nil {
		return fmt.Errorf("archive: ensure bucket: %w", err)
	}

	_, err := a.client.PutObject(ctx, a.bucket, objectKey(runID, name), bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: a.opts.ContentType,
	})
	if err != nil {
		return fmt.Errorf("archive: put %s/%s: %w", runID, name, err)
	}
	return nil
}

// Get implements core.DocumentArchive.
func (a *S3Archive) Get(ctx context.Context, runID, name string) ([]byte, error) {
	if err := validateName(runID); err != nil {
		return nil, err
	}
	if err := validateName(name); err != nil {
		return nil, err
	}
	if err := a.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("archive: ensure bucket: %w", err)
	}

	obj, err := a.client.GetObject(ctx, a.bucket, objectKey(runID, name), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("archive: get %s/%s: %w", runID, name, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("archive: read %s/%s: %w", runID, name, err)
	}
	return data, nil
}

// List implements core.DocumentArchive.
func (a *S3Archive) List(ctx context.Context, runID string) ([]string, error) {
	if err := validateName(runID); err != nil {
		return nil, err
	}
	if err := a.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("archive: ensure bucket: %w", err)
	}

	prefix := runID + "/"
	names := make([]string, 0, 8)
	for obj := range a.client.ListObjects(ctx, a.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("archive: list %s: %w", runID, obj.Err)
		}
		if obj.Key == "" {
			continue
		}
		names = append(names, strings.TrimPrefix(obj.Key, prefix))
	}
	sort.Strings(names)
	return names, nil
}

func objectKey(runID, name string) string {
	return runID + "/" + name
}
