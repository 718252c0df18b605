package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/ubuntu/decorate"
	"github.com/ubuntu/mail-reports-collector/internal/report"
)

// ObjectConfig holds the configuration of an S3 compatible object store.
type ObjectConfig struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

// objectClient is the subset of the minio client used by ObjectSink.
type objectClient interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// ObjectSink stores reports as objects in a bucket, named like FileSink names its files.
type ObjectSink struct {
	client objectClient
	bucket string
	namer  *Namer
	log    *slog.Logger
}

// NewObjectSink connects to the object store described by cfg and creates the bucket if it is missing.
func NewObjectSink(ctx context.Context, cfg ObjectConfig, namer *Namer, args ...Options) (s *ObjectSink, err error) {
	defer decorate.OnError(&err, "could not create object storage")

	if cfg.Bucket == "" {
		return nil, errors.New("bucket is required")
	}

	var creds *credentials.Credentials
	if cfg.AccessKey != "" || cfg.SecretKey != "" {
		creds = credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, "")
	} else {
		creds = credentials.NewEnvAWS()
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  creds,
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize client: %v", err)
	}

	return newObjectSink(ctx, client, cfg, namer, args...)
}

func newObjectSink(ctx context.Context, client objectClient, cfg ObjectConfig, namer *Namer, args ...Options) (*ObjectSink, error) {
	opts := newOptions(args...)

	s := &ObjectSink{
		client: client,
		bucket: cfg.Bucket,
		namer:  namer,
		log:    opts.logger,
	}
	if err := s.ensureBucket(ctx, cfg.Region); err != nil {
		return nil, err
	}
	return s, nil
}

// ensureBucket creates the bucket if it doesn't exist.
func (s *ObjectSink) ensureBucket(ctx context.Context, region string) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("error checking if bucket exists: %v", err)
	}
	if exists {
		return nil
	}

	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return fmt.Errorf("error creating bucket: %v", err)
	}
	s.log.Info("Created bucket", "bucket", s.bucket)
	return nil
}

// Store uploads p to a new object and returns its bucket/key location.
func (s *ObjectSink) Store(ctx context.Context, p report.Payload) (location string, err error) {
	defer decorate.OnError(&err, "could not store %s report", p.Kind())

	data, err := p.Encode()
	if err != nil {
		return "", fmt.Errorf("could not encode report: %v", err)
	}

	key := s.namer.Name(p.Kind())
	opts := minio.PutObjectOptions{ContentType: p.Kind().StoredMediaType()}
	// Objects are never replaced: the upload fails if the key already exists.
	opts.SetMatchETagExcept("*")

	info, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), opts)
	if minio.ToErrorResponse(err).StatusCode == http.StatusPreconditionFailed {
		return "", fmt.Errorf("object %s: %w", key, os.ErrExist)
	}
	if err != nil {
		return "", fmt.Errorf("failed to upload object %s: %w", key, err)
	}

	s.log.Debug("Report uploaded", "kind", p.Kind(), "bucket", s.bucket, "key", key, "etag", info.ETag)
	return s.bucket + "/" + key, nil
}
