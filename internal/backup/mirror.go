// Package backup copies the sealed vault file to S3-compatible storage. The
// object is the same ciphertext as the local file; nothing is decrypted.
package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/thunder/internal/logging"
)

const (
	keyPrefix    = "thunder"
	keyTimestamp = "20060102T150405Z"
	contentType  = "application/octet-stream"
)

var ErrDisabled = errors.New("backup bucket is not configured")

// Test seams.
var (
	loadDefaultAWSConfig  = config.LoadDefaultConfig
	newS3ClientFromConfig = s3.NewFromConfig
)

type Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

func (c Config) Enabled() bool { return c.Bucket != "" }

// Source is a sealed vault; *vault.Handle implements it.
type Source interface {
	Raw() ([]byte, error)
	CreatedAt() time.Time
}

type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type Mirror struct {
	bucket string
	client objectPutter
	logger logging.Logger
	now    func() time.Time
}

// New builds an S3 client for cfg. Static credentials are used when an
// access key is configured, otherwise the default AWS credential chain.
func New(ctx context.Context, cfg Config, logger logging.Logger) (*Mirror, error) {
	if !cfg.Enabled() {
		return nil, ErrDisabled
	}
	if logger == nil {
		logger = logging.Nop()
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &Mirror{bucket: cfg.Bucket, client: client, logger: logger, now: time.Now}, nil
}

// Upload stores the current sealed file and returns its object key.
func (m *Mirror) Upload(ctx context.Context, src Source) (string, error) {
	data, err := src.Raw()
	if err != nil {
		return "", fmt.Errorf("read vault: %w", err)
	}

	key := objectKey(src.CreatedAt(), m.now())
	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		m.logger.Error(ctx, "vault backup failed", "bucket", m.bucket, "error", err)
		return "", fmt.Errorf("upload %s: %w", key, err)
	}

	m.logger.Info(ctx, "vault backed up", "bucket", m.bucket, "key", key, "bytes", len(data))
	return key, nil
}

// objectKey groups uploads by vault so a recreated vault never mixes with
// an older one.
func objectKey(createdAt, now time.Time) string {
	return fmt.Sprintf("%s/%s/%s.vault", keyPrefix, createdAt.UTC().Format(keyTimestamp), now.UTC().Format(keyTimestamp))
}
