package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"diaryhub-backend/internal/config"
	"diaryhub-backend/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var attachmentOps = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "attachment_operations_total",
		Help: "Object store operations on diary attachments",
	},
	[]string{"op", "result"},
)

// Blob is an attachment waiting to be uploaded
type Blob struct {
	Filename    string
	ContentType string
	Size        int64
	Data        io.Reader
}

// objectAPI is the subset of *s3.Client the store needs
type objectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Store uploads diary images to S3 (or an S3-compatible endpoint) and releases them by key
type S3Store struct {
	client        objectAPI
	bucket        string
	region        string
	publicBaseURL string
	now           func() time.Time
}

// NewS3Store creates a store from the AWS section of the config
func NewS3Store(ctx context.Context, cfg config.AWSConfig) (*S3Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newS3Store(client, cfg), nil
}

func newS3Store(client objectAPI, cfg config.AWSConfig) *S3Store {
	return &S3Store{
		client:        client,
		bucket:        cfg.S3Bucket,
		region:        cfg.Region,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		now:           time.Now,
	}
}

// Upload stores the blob under a fresh key owned by ownerID and returns its URL and handle
func (s *S3Store) Upload(ctx context.Context, ownerID string, blob Blob) (models.Image, error) {
	key := s.objectKey(ownerID, blob.Filename)

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   blob.Data,
	}
	if blob.ContentType != "" {
		input.ContentType = aws.String(blob.ContentType)
	}
	if blob.Size > 0 {
		input.ContentLength = aws.Int64(blob.Size)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		attachmentOps.WithLabelValues("upload", "error").Inc()
		return models.Image{}, fmt.Errorf("failed to upload %s: %w", key, err)
	}
	attachmentOps.WithLabelValues("upload", "ok").Inc()

	return models.Image{URL: s.objectURL(key), StorageHandle: key}, nil
}

// Release deletes the object behind handle. Deleting a missing key succeeds.
func (s *S3Store) Release(ctx context.Context, handle string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(handle),
	})
	if err != nil {
		attachmentOps.WithLabelValues("release", "error").Inc()
		return fmt.Errorf("failed to release %s: %w", handle, err)
	}
	attachmentOps.WithLabelValues("release", "ok").Inc()
	return nil
}

// objectKey builds diaries/{owner}/{yyyy}/{mm}/{uuid}{ext}
func (s *S3Store) objectKey(ownerID, filename string) string {
	d := s.now().UTC()
	ext := strings.ToLower(path.Ext(path.Base(filename)))
	return fmt.Sprintf("diaries/%s/%04d/%02d/%s%s", ownerID, d.Year(), int(d.Month()), uuid.New().String(), ext)
}

func (s *S3Store) objectURL(key string) string {
	if s.publicBaseURL != "" {
		return s.publicBaseURL + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}
