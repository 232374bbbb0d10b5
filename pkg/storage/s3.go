// Package storage uploads PDF profile snapshots to S3-compatible object
// storage (AWS S3, Backblaze B2, MinIO).
package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"liscraper/pkg/config"
	"liscraper/pkg/errors"
)

// Uploader stores PDF snapshots in an object storage bucket.
type Uploader struct {
	client    *s3.Client
	bucket    string
	publicURL string
}

// UploadResult describes a stored snapshot.
type UploadResult struct {
	Key       string
	URL       string
	SizeBytes int64
}

// NewUploader builds an uploader from storage configuration. A custom
// endpoint switches the client to S3-compatible mode (path-style addressing
// for MinIO and friends).
func NewUploader(ctx context.Context, cfg config.StorageConfig) (*Uploader, error) {
	if cfg.Bucket == "" {
		return nil, errors.New(errors.KindStorage, "storage bucket is not configured")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.Endpoint != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, _ ...interface{}) (aws.Endpoint, error) {
			if service == s3.ServiceID {
				return aws.Endpoint{
					URL:               cfg.Endpoint,
					HostnameImmutable: cfg.PathStyle,
					SigningRegion:     cfg.Region,
					Source:            aws.EndpointSourceCustom,
				}, nil
			}
			return aws.Endpoint{}, &aws.EndpointNotFoundError{}
		})
		opts = append(opts, awsconfig.WithEndpointResolverWithOptions(resolver))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(errors.KindStorage, "load aws config", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
	})

	return &Uploader{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: strings.TrimSuffix(cfg.PublicURL, "/"),
	}, nil
}

// UploadPDF stores one profile snapshot and returns where it landed.
func (u *Uploader) UploadPDF(ctx context.Context, externalID string, pdf []byte, takenAt time.Time) (*UploadResult, error) {
	key := ObjectKey(externalID, takenAt)

	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(pdf),
		ContentType: aws.String("application/pdf"),
	})
	if err != nil {
		return nil, errors.Wrap(errors.KindStorage, fmt.Sprintf("put object %s", key), err)
	}

	return &UploadResult{
		Key:       key,
		URL:       u.objectURL(key),
		SizeBytes: int64(len(pdf)),
	}, nil
}

// ObjectKey builds the bucket key for a snapshot. Keys embed the capture
// timestamp so successive snapshots of the same subject never collide.
func ObjectKey(externalID string, takenAt time.Time) string {
	return fmt.Sprintf("linkedin_profiles/%s_%s.pdf", externalID, takenAt.UTC().Format("20060102_150405"))
}

func (u *Uploader) objectURL(key string) string {
	if u.publicURL != "" {
		return u.publicURL + "/" + key
	}
	return fmt.Sprintf("s3://%s/%s", u.bucket, key)
}
