package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Config holds S3/MinIO connection settings for a content store.
type S3Config struct {
	Endpoint        string // e.g. http://localhost:9000
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UseSSL          bool
	Region          string
}

// S3Client provides object Put/Get/List against S3-compatible storage.
type S3Client struct {
	client *s3.Client
	bucket string
}

// S3ConfigFromEnv reads S3 config from environment variables, returning
// nil if S3_ENDPOINT is unset (callers fall back to FSStore in that case).
func S3ConfigFromEnv() *S3Config {
	endpoint := os.Getenv("S3_ENDPOINT")
	if endpoint == "" {
		return nil
	}
	useSSL := true
	if v := os.Getenv("S3_USE_SSL"); v != "" {
		useSSL, _ = strconv.ParseBool(v)
	}
	return &S3Config{
		Endpoint:        normalizeEndpoint(endpoint, useSSL),
		AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		Bucket:          envOr("S3_BUCKET", "imapkit-attachments"),
		UseSSL:          useSSL,
		Region:          envOr("AWS_REGION", "us-east-1"),
	}
}

func normalizeEndpoint(endpoint string, useSSL bool) string {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return ""
	}
	scheme := "https"
	if !useSSL {
		scheme = "http"
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		return scheme + "://" + endpoint
	}
	return endpoint
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// NewS3Client creates an S3 client from config.
func NewS3Client(cfg *S3Config) (*S3Client, error) {
	if cfg == nil || cfg.Endpoint == "" {
		return nil, fmt.Errorf("blobstore: S3 config required (endpoint)")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("blobstore: S3 bucket required")
	}

	credProvider := credentials.NewStaticCredentialsProvider(
		cfg.AccessKeyID,
		cfg.SecretAccessKey,
		"",
	)

	customResolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, opts ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{
			URL:               cfg.Endpoint,
			HostnameImmutable: true,
			SigningRegion:     cfg.Region,
		}, nil
	})

	client := s3.NewFromConfig(aws.Config{
		Region:                      cfg.Region,
		Credentials:                 credProvider,
		EndpointResolverWithOptions: customResolver,
	}, func(o *s3.Options) {
		o.UsePathStyle = true // required for MinIO
	})

	return &S3Client{client: client, bucket: cfg.Bucket}, nil
}

// EnsureBucket creates the bucket if it does not already exist.
func (c *S3Client) EnsureBucket(ctx context.Context) error {
	_, err := c.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(c.bucket)})
	if err == nil {
		return nil
	}
	_, err = c.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(c.bucket),
	})
	if err != nil {
		var conflict *types.BucketAlreadyOwnedByYou
		if errors.As(err, &conflict) {
			return nil
		}
		return fmt.Errorf("blobstore: create bucket %s: %w", c.bucket, err)
	}
	return nil
}

// Put writes body to key.
func (c *S3Client) Put(ctx context.Context, key string, body io.Reader) error {
	_, err := c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
		Body:   body,
	})
	return err
}

// PutBytes writes data to key.
func (c *S3Client) PutBytes(ctx context.Context, key string, data []byte) error {
	return c.Put(ctx, key, bytes.NewReader(data))
}

// Get reads key, returning ErrNotFound if it does not exist.
func (c *S3Client) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		var notFound *types.NotFound
		if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

// List lists object keys with the given prefix.
func (c *S3Client) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	var contToken *string
	for {
		out, err := c.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(c.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: contToken,
		})
		if err != nil {
			return nil, err
		}
		for _, obj := range out.Contents {
			if obj.Key != nil {
				keys = append(keys, *obj.Key)
			}
		}
		if !aws.ToBool(out.IsTruncated) {
			break
		}
		contToken = out.NextContinuationToken
	}
	return keys, nil
}
