package export

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/gophid/internal/logging"
)

func TestStorageKey(t *testing.T) {
	key := StorageKey(time.Date(2026, 3, 7, 23, 0, 0, 0, time.UTC))
	assert.Regexp(t, regexp.MustCompile(`^runs/2026/03/07/[0-9a-f-]{36}\.csv$`), key)
}

type fakeUploader struct {
	key  string
	body []byte
	err  error
}

func (f *fakeUploader) Upload(_ context.Context, key string, body []byte) error {
	f.key, f.body = key, body
	return f.err
}

func TestExport_LocalAndRemote(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "result.csv")
	up := &fakeUploader{}
	e := NewExporter(path, up, logging.Discard())
	e.now = func() time.Time { return time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC) }

	loc, err := e.Export(context.Background(), []byte("a,b\n"))
	require.NoError(t, err)

	assert.Equal(t, path, loc.Path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n", string(data))

	assert.Equal(t, up.key, loc.Key)
	assert.Contains(t, loc.Key, "runs/2026/01/02/")
	assert.Equal(t, []byte("a,b\n"), up.body)
}

func TestExport_UploadError(t *testing.T) {
	e := NewExporter("", &fakeUploader{err: errors.New("denied")}, logging.Discard())
	loc, err := e.Export(context.Background(), []byte("x"))
	require.ErrorContains(t, err, "denied")
	assert.Empty(t, loc.Path)
}

func TestExport_NothingConfigured(t *testing.T) {
	loc, err := NewExporter("", nil, logging.Discard()).Export(context.Background(), []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, Location{}, loc)
}

func stubS3(t *testing.T) {
	t.Helper()
	origLoad, origNew, origPut := loadDefaultAWSConfig, newS3ClientFromConfig, putObject
	t.Cleanup(func() {
		loadDefaultAWSConfig, newS3ClientFromConfig, putObject = origLoad, origNew, origPut
	})
}

func TestNewS3Uploader_AppliesConfig(t *testing.T) {
	stubS3(t)

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			require.NoError(t, fn(&lo))
		}
		assert.Equal(t, "eu-west-1", lo.Region)
		assert.NotNil(t, lo.Credentials)
		return aws.Config{}, nil
	}
	var opts s3.Options
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		for _, fn := range optFns {
			fn(&opts)
		}
		return &s3.Client{}
	}

	u, err := NewS3Uploader(context.Background(), S3Config{
		Region: "eu-west-1", AccessKey: "k", SecretKey: "s",
		BaseEndpoint: "http://127.0.0.1:9000", Bucket: "runs",
	})
	require.NoError(t, err)
	require.NotNil(t, opts.BaseEndpoint)
	assert.Equal(t, "http://127.0.0.1:9000", *opts.BaseEndpoint)
	assert.True(t, opts.UsePathStyle)

	var got *s3.PutObjectInput
	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		got = in
		return &s3.PutObjectOutput{}, nil
	}
	require.NoError(t, u.Upload(context.Background(), "runs/k.csv", []byte("hello")))
	assert.Equal(t, "runs", *got.Bucket)
	assert.Equal(t, "runs/k.csv", *got.Key)
	assert.Equal(t, int64(5), *got.ContentLength)
	body, err := io.ReadAll(got.Body)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))
}

func TestNewS3Uploader_Errors(t *testing.T) {
	stubS3(t)

	_, err := NewS3Uploader(context.Background(), S3Config{})
	require.Error(t, err)

	loadDefaultAWSConfig = func(context.Context, ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("no config")
	}
	_, err = NewS3Uploader(context.Background(), S3Config{Bucket: "b"})
	require.ErrorContains(t, err, "no config")
}
