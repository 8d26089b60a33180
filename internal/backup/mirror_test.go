package backup

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/thunder/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePutter struct {
	err     error
	lastKey string
	body    []byte
	bucket  string
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.bucket = aws.ToString(in.Bucket)
	f.lastKey = aws.ToString(in.Key)
	f.body, _ = io.ReadAll(in.Body)
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

type fakeSource struct {
	data      []byte
	err       error
	createdAt time.Time
}

func (s fakeSource) Raw() ([]byte, error) { return s.data, s.err }
func (s fakeSource) CreatedAt() time.Time { return s.createdAt }

func TestNew_Disabled(t *testing.T) {
	_, err := New(context.Background(), Config{}, nil)
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestNew_AppliesRegionCredentialsAndEndpoint(t *testing.T) {
	origLoad, origNew := loadDefaultAWSConfig, newS3ClientFromConfig
	t.Cleanup(func() { loadDefaultAWSConfig, newS3ClientFromConfig = origLoad, origNew })

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			require.NoError(t, fn(&lo))
		}
		assert.Equal(t, "eu-north-1", lo.Region)
		require.NotNil(t, lo.Credentials)
		creds, err := lo.Credentials.Retrieve(ctx)
		require.NoError(t, err)
		assert.Equal(t, "minioadmin", creds.AccessKeyID)
		return aws.Config{}, nil
	}

	var opts s3.Options
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		for _, fn := range optFns {
			fn(&opts)
		}
		return &s3.Client{}
	}

	m, err := New(context.Background(), Config{
		Bucket:    "vaults",
		Region:    "eu-north-1",
		Endpoint:  "http://127.0.0.1:9000",
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "vaults", m.bucket)
	require.NotNil(t, opts.BaseEndpoint)
	assert.Equal(t, "http://127.0.0.1:9000", *opts.BaseEndpoint)
	assert.True(t, opts.UsePathStyle)
}

func TestNew_LoadConfigError(t *testing.T) {
	origLoad := loadDefaultAWSConfig
	t.Cleanup(func() { loadDefaultAWSConfig = origLoad })

	boom := errors.New("boom")
	loadDefaultAWSConfig = func(context.Context, ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, boom
	}

	_, err := New(context.Background(), Config{Bucket: "b"}, nil)
	assert.ErrorIs(t, err, boom)
}

func TestUpload(t *testing.T) {
	p := &fakePutter{}
	m := &Mirror{
		bucket: "vaults",
		client: p,
		logger: logging.Nop(),
		now:    func() time.Time { return time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC) },
	}

	src := fakeSource{data: []byte("TVLT-ciphertext"), createdAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}
	key, err := m.Upload(context.Background(), src)
	require.NoError(t, err)

	assert.Equal(t, "thunder/20240102T030405Z/20250601T103000Z.vault", key)
	assert.Equal(t, key, p.lastKey)
	assert.Equal(t, "vaults", p.bucket)
	assert.Equal(t, []byte("TVLT-ciphertext"), p.body)
}

func TestUpload_Errors(t *testing.T) {
	boom := errors.New("boom")

	m := &Mirror{bucket: "b", client: &fakePutter{}, logger: logging.Nop(), now: time.Now}
	_, err := m.Upload(context.Background(), fakeSource{err: boom})
	assert.ErrorIs(t, err, boom)

	m.client = &fakePutter{err: boom}
	_, err = m.Upload(context.Background(), fakeSource{data: []byte("x")})
	assert.ErrorIs(t, err, boom)
}
