// Package publish uploads packaged archives to object storage.
package publish

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Publisher stores an archive under key and returns where it can be
// fetched from.
type Publisher interface {
	Publish(ctx context.Context, key string, data []byte) (string, error)
}

// S3Config configures an S3Publisher.
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// Prefix is prepended to every object key.
	Prefix string
}

// S3Publisher writes to any S3-compatible store. The bucket is created on
// first use if it does not exist.
type S3Publisher struct {
	client *minio.Client
	bucket string
	region string
	prefix string

	initOnce sync.Once
	initErr  error
}

// NewS3Publisher validates cfg and creates the client. No request is made
// until the first Publish.
func NewS3Publisher(cfg S3Config) (*S3Publisher, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}

	return &S3Publisher{
		client: client,
		bucket: bucket,
		region: region,
		prefix: strings.Trim(strings.TrimSpace(cfg.Prefix), "/"),
	}, nil
}

func (p *S3Publisher) ensureBucket(ctx context.Context) error {
	p.initOnce.Do(func() {
		exists, err := p.client.BucketExists(ctx, p.bucket)
		if err != nil {
			p.initErr = err
			return
		}
		if exists {
			return
		}
		p.initErr = p.client.MakeBucket(ctx, p.bucket, minio.MakeBucketOptions{Region: p.region})
	})
	return p.initErr
}

// Publish uploads data as a zip object and returns "s3://bucket/key".
func (p *S3Publisher) Publish(ctx context.Context, key string, data []byte) (string, error) {
	objectKey, err := p.ObjectKey(key)
	if err != nil {
		return "", err
	}
	if err := p.ensureBucket(ctx); err != nil {
		return "", fmt.Errorf("ensure bucket: %w", err)
	}

	_, err = p.client.PutObject(ctx, p.bucket, objectKey, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/zip",
	})
	if err != nil {
		return "", fmt.Errorf("put %s: %w", objectKey, err)
	}
	return "s3://" + p.bucket + "/" + objectKey, nil
}

// ObjectKey returns the full object key for key.
func (p *S3Publisher) ObjectKey(key string) (string, error) {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if key == "" {
		return "", fmt.Errorf("object key is required")
	}
	if p.prefix == "" {
		return key, nil
	}
	return p.prefix + "/" + key, nil
}
