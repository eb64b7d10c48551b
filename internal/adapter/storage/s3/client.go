// Package s3 serves version content stored in S3-compatible object storage.
// Version URLs of the form s3://bucket/key are fetched for the blob cache and
// presigned when a client has to download them directly.
package s3

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/heartmarshall/proofdesk/internal/blobcache"
	"github.com/heartmarshall/proofdesk/internal/config"
	"github.com/heartmarshall/proofdesk/internal/domain"
)

// Scheme is the URL scheme of objects served by this package.
const Scheme = "s3"

var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}
)

type objectGetter interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type getPresigner interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Client reads and presigns objects.
type Client struct {
	objects  objectGetter
	presign  getPresigner
	ttl      time.Duration
	maxBytes int64
	log      *slog.Logger
}

// New builds a Client from StorageConfig. Static credentials are used when
// an access key is configured, otherwise the default AWS chain applies.
func New(ctx context.Context, cfg config.StorageConfig, maxBytes int64, logger *slog.Logger) (*Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	if maxBytes <= 0 {
		maxBytes = blobcache.DefaultMaxBytes
	}

	return &Client{
		objects:  client,
		presign:  newS3PresignClient(client),
		ttl:      cfg.PresignTTL,
		maxBytes: maxBytes,
		log:      logger.With("adapter", "s3"),
	}, nil
}

// ParseURL splits s3://bucket/key into its parts.
func ParseURL(raw string) (bucket, key string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("parse object url: %w", err)
	}
	if u.Scheme != Scheme {
		return "", "", fmt.Errorf("object url %q: %w", raw, domain.ErrValidation)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return "", "", fmt.Errorf("object url %q: bucket and key required: %w", raw, domain.ErrValidation)
	}
	return u.Host, key, nil
}

// Fetch downloads an object for the blob cache.
func (c *Client) Fetch(ctx context.Context, raw string) (blobcache.Blob, error) {
	bucket, key, err := ParseURL(raw)
	if err != nil {
		return blobcache.Blob{}, err
	}

	out, err := c.objects.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return blobcache.Blob{}, fmt.Errorf("s3 get %s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(io.LimitReader(out.Body, c.maxBytes+1))
	if err != nil {
		return blobcache.Blob{}, fmt.Errorf("s3 read %s/%s: %w", bucket, key, err)
	}
	if int64(len(data)) > c.maxBytes {
		return blobcache.Blob{}, fmt.Errorf("s3 object %s/%s exceeds %d bytes", bucket, key, c.maxBytes)
	}

	c.log.DebugContext(ctx, "object fetched",
		slog.String("bucket", bucket),
		slog.String("key", key),
		slog.Int("size", len(data)),
	)

	return blobcache.Blob{Data: data, ContentType: aws.ToString(out.ContentType)}, nil
}

// PublicURL returns a URL a browser can download. s3:// URLs are presigned;
// anything else is returned unchanged.
func (c *Client) PublicURL(ctx context.Context, raw string) (string, error) {
	if !strings.HasPrefix(raw, Scheme+"://") {
		return raw, nil
	}

	bucket, key, err := ParseURL(raw)
	if err != nil {
		return "", err
	}

	req, err := c.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(c.ttl))
	if err != nil {
		return "", fmt.Errorf("presign %s/%s: %w", bucket, key, err)
	}
	return req.URL, nil
}
