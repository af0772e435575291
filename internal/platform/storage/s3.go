package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/fx"
	"go.uber.org/zap"

	cfgpkg "github.com/fatflowers/iftar/pkg/config"
)

const FolderManualPayments = "manual-payments"

var ErrNotConfigured = errors.New("object storage is not configured")

// Store is what the services need from object storage.
type Store interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error)
	Delete(ctx context.Context, key string) error
}

// S3 uploads objects to a single bucket and hands back their public URL.
type S3 struct {
	client   *s3.Client
	uploader *manager.Uploader
	cfg      cfgpkg.StorageConfig
	log      *zap.SugaredLogger
}

// ManualPaymentKey returns manual-payments/{participant}/{name}{ext}.
func ManualPaymentKey(participantID, name, ext string) string {
	return path.Join(FolderManualPayments, participantID, name+ext)
}

func NewS3(cfg *cfgpkg.Config, log *zap.SugaredLogger) (*S3, error) {
	sc := cfg.Storage
	s := &S3{cfg: sc, log: log}
	if sc.Bucket == "" {
		log.Warnw("storage bucket not set, uploads disabled")
		return s, nil
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(sc.Region)}
	if sc.AccessKeyID != "" && sc.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(sc.AccessKeyID, sc.SecretAccessKey, ""),
		))
	} else {
		log.Warnw("storage using default AWS credential chain")
	}
	awsCfg, err := config.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	s.client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if sc.Endpoint != "" {
			o.BaseEndpoint = aws.String(sc.Endpoint)
			o.UsePathStyle = true
		}
	})
	s.uploader = manager.NewUploader(s.client, func(u *manager.Uploader) {
		u.PartSize = 5 * 1024 * 1024
	})
	log.Infow("storage ready", "bucket", sc.Bucket, "region", sc.Region)
	return s, nil
}

// PublicURL returns the URL an object is reachable at, honoring a configured CDN/public base.
func (s *S3) PublicURL(key string) string {
	if s.cfg.PublicURL != "" {
		return strings.TrimRight(s.cfg.PublicURL, "/") + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.Bucket, s.cfg.Region, key)
}

func (s *S3) Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error) {
	if s.uploader == nil {
		return "", ErrNotConfigured
	}
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	}
	if size > 0 {
		input.ContentLength = aws.Int64(size)
	}
	if _, err := s.uploader.Upload(ctx, input); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return s.PublicURL(key), nil
}

func (s *S3) Delete(ctx context.Context, key string) error {
	if s.client == nil {
		return ErrNotConfigured
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

var Module = fx.Options(
	fx.Provide(
		NewS3,
		func(s *S3) Store { return s },
	),
)
