package sink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/dukex/ximager/pkg/models"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var ErrInvalidS3URL = errors.New("invalid s3 sink url")

// ObjectStore is the part of *minio.Client the S3 sink needs.
type ObjectStore interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucket, object string, reader io.Reader, size int64,
		opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// S3Config locates a bucket. Parsed from s3://access:secret@host:port/bucket/prefix?secure=true&region=r.
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	Region    string
	Secure    bool
}

func ParseS3URL(raw string) (S3Config, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return S3Config{}, fmt.Errorf("%w: %w", ErrInvalidS3URL, err)
	}

	if u.Scheme != "s3" || u.Host == "" {
		return S3Config{}, fmt.Errorf("%w: %s", ErrInvalidS3URL, raw)
	}

	bucket, prefix, _ := strings.Cut(strings.Trim(u.Path, "/"), "/")
	if bucket == "" {
		return S3Config{}, fmt.Errorf("%w: missing bucket", ErrInvalidS3URL)
	}

	cfg := S3Config{
		Endpoint: u.Host,
		Bucket:   bucket,
		Prefix:   prefix,
		Region:   u.Query().Get("region"),
	}

	if u.User != nil {
		cfg.AccessKey = u.User.Username()
		cfg.SecretKey, _ = u.User.Password()
	}

	if secure := u.Query().Get("secure"); secure != "" {
		cfg.Secure, err = strconv.ParseBool(secure)
		if err != nil {
			return S3Config{}, fmt.Errorf("%w: secure=%s", ErrInvalidS3URL, secure)
		}
	}

	return cfg, nil
}

// NewMinIOClient connects to the endpoint of cfg.
func NewMinIOClient(cfg S3Config) (*minio.Client, error) {
	return minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
		Region: cfg.Region,
	})
}

// S3 uploads assets to a bucket and returns s3://bucket/key references.
type S3 struct {
	store  ObjectStore
	cfg    S3Config
	logger *slog.Logger
}

func NewS3(store ObjectStore, cfg S3Config, logger *slog.Logger) *S3 {
	return &S3{
		store:  store,
		cfg:    cfg,
		logger: logger.With("module", "sink_s3", "bucket", cfg.Bucket),
	}
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *S3) EnsureBucket(ctx context.Context) error {
	exists, err := s.store.BucketExists(ctx, s.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}

	if exists {
		return nil
	}

	if err := s.store.MakeBucket(ctx, s.cfg.Bucket, minio.MakeBucketOptions{Region: s.cfg.Region}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}

	return nil
}

func (s *S3) Resolve(ctx context.Context, ref models.OutputRef, asset models.Asset) (string, error) {
	if len(asset.Content) == 0 {
		return "", ErrEmptyAsset
	}

	key := path.Join(s.cfg.Prefix, strings.Trim(ref.Subfolder, "/"), path.Base(ref.Filename))

	putCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	_, err := s.store.PutObject(
		putCtx,
		s.cfg.Bucket,
		key,
		bytes.NewReader(asset.Content),
		int64(len(asset.Content)),
		minio.PutObjectOptions{ContentType: asset.ContentType},
	)
	if err != nil {
		return "", fmt.Errorf("failed to store output: %w", err)
	}

	s.logger.InfoContext(ctx, "Stored output", "key", key)

	return "s3://" + s.cfg.Bucket + "/" + key, nil
}
