package sink_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/dukex/ximager/pkg/models"
	"github.com/dukex/ximager/pkg/sink"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var png = models.Asset{Filename: "out.png", ContentType: "image/png", Content: []byte("png-bytes")}

func TestDataURL(t *testing.T) {
	ref, err := sink.NewDataURL().Resolve(context.Background(), models.OutputRef{Filename: "out.png"}, png)
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,cG5nLWJ5dGVz", ref)

	_, err = sink.NewDataURL().Resolve(context.Background(), models.OutputRef{}, models.Asset{})
	assert.ErrorIs(t, err, sink.ErrEmptyAsset)
}

func TestDirectory(t *testing.T) {
	root := t.TempDir()
	resolver := sink.NewDirectory(root, slog.Default())

	path, err := resolver.Resolve(context.Background(),
		models.OutputRef{Filename: "../out.png", Subfolder: "../../batch"}, png)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "batch", "out.png"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, png.Content, data)

	path, err = resolver.Resolve(context.Background(), models.OutputRef{Filename: "flat.png"}, png)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "flat.png"), path)
}

func TestParseS3URL(t *testing.T) {
	cfg, err := sink.ParseS3URL("s3://key:secret@localhost:9000/outputs/ximager?secure=true&region=eu-west-1")
	require.NoError(t, err)
	assert.Equal(t, sink.S3Config{
		Endpoint:  "localhost:9000",
		AccessKey: "key",
		SecretKey: "secret",
		Bucket:    "outputs",
		Prefix:    "ximager",
		Region:    "eu-west-1",
		Secure:    true,
	}, cfg)

	for _, raw := range []string{"http://host/bucket", "s3://host", "s3:///bucket", "s3://host/bucket?secure=maybe"} {
		_, err := sink.ParseS3URL(raw)
		assert.ErrorIs(t, err, sink.ErrInvalidS3URL, raw)
	}
}

type fakeStore struct {
	buckets map[string]bool
	objects map[string][]byte
	types   map[string]string
	failPut bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{buckets: map[string]bool{}, objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeStore) BucketExists(_ context.Context, bucket string) (bool, error) {
	return f.buckets[bucket], nil
}

func (f *fakeStore) MakeBucket(_ context.Context, bucket string, _ minio.MakeBucketOptions) error {
	f.buckets[bucket] = true

	return nil
}

func (f *fakeStore) PutObject(_ context.Context, bucket, object string, reader io.Reader, _ int64,
	opts minio.PutObjectOptions,
) (minio.UploadInfo, error) {
	if f.failPut {
		return minio.UploadInfo{}, errors.New("access denied")
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return minio.UploadInfo{}, err
	}

	f.objects[bucket+"/"+object] = data
	f.types[bucket+"/"+object] = opts.ContentType

	return minio.UploadInfo{Bucket: bucket, Key: object, Size: int64(len(data))}, nil
}

func TestS3(t *testing.T) {
	store := newFakeStore()
	resolver := sink.NewS3(store, sink.S3Config{Bucket: "outputs", Prefix: "runs"}, slog.Default())
	ctx := context.Background()

	require.NoError(t, resolver.EnsureBucket(ctx))
	assert.True(t, store.buckets["outputs"])

	ref, err := resolver.Resolve(ctx, models.OutputRef{Filename: "out.png", Subfolder: "day1"}, png)
	require.NoError(t, err)
	assert.Equal(t, "s3://outputs/runs/day1/out.png", ref)
	assert.Equal(t, png.Content, store.objects["outputs/runs/day1/out.png"])
	assert.Equal(t, "image/png", store.types["outputs/runs/day1/out.png"])

	store.failPut = true
	_, err = resolver.Resolve(ctx, models.OutputRef{Filename: "out.png"}, png)
	assert.ErrorContains(t, err, "access denied")
}
