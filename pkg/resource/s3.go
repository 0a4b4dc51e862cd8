package resource

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

// S3Opener reads objects from Amazon S3 or an S3-compatible service.
//
// Locator format:
//
//	s3://[ACCESS_KEY:SECRET_KEY@]bucket/path/to/object?region=us-west-2&endpoint=minio.local:9000
//
// Without embedded credentials the default AWS credential chain is used.
type S3Opener struct {
	log *slog.Logger

	mu      sync.Mutex
	clients map[string]s3iface.S3API
	// newClient is replaced in tests.
	newClient func(cfg *aws.Config) (s3iface.S3API, error)
}

// NewS3Opener creates an S3Opener. Clients are created lazily per
// region/endpoint/credential combination.
func NewS3Opener(logger *slog.Logger) *S3Opener {
	if logger == nil {
		logger = slog.Default()
	}
	return &S3Opener{
		log:     logger,
		clients: make(map[string]s3iface.S3API),
		newClient: func(cfg *aws.Config) (s3iface.S3API, error) {
			sess, err := session.NewSession(cfg)
			if err != nil {
				return nil, err
			}
			return s3.New(sess), nil
		},
	}
}

type s3Location struct {
	bucket    string
	key       string
	region    string
	endpoint  string
	accessKey string
	secretKey string
}

func parseS3Locator(locator string) (s3Location, error) {
	u, err := url.Parse(locator)
	if err != nil {
		return s3Location{}, fmt.Errorf("%w: %v", ErrInvalidLocator, err)
	}
	loc := s3Location{
		bucket:   u.Host,
		key:      strings.TrimPrefix(u.Path, "/"),
		region:   u.Query().Get("region"),
		endpoint: u.Query().Get("endpoint"),
	}
	if loc.bucket == "" || loc.key == "" {
		return s3Location{}, fmt.Errorf("%w: expected s3://bucket/key, got %s", ErrInvalidLocator, u.Redacted())
	}
	if loc.region == "" {
		loc.region = "us-east-1"
	}
	if u.User != nil {
		loc.accessKey = u.User.Username()
		loc.secretKey, _ = u.User.Password()
	}
	return loc, nil
}

// Open implements Opener.
func (o *S3Opener) Open(ctx context.Context, locator string) (io.ReadCloser, error) {
	loc, err := parseS3Locator(locator)
	if err != nil {
		return nil, err
	}

	client, err := o.client(loc)
	if err != nil {
		return nil, fmt.Errorf("resource: create S3 client: %w", err)
	}

	start := time.Now()
	out, err := client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(loc.bucket),
		Key:    aws.String(loc.key),
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && (aerr.Code() == s3.ErrCodeNoSuchKey || aerr.Code() == s3.ErrCodeNoSuchBucket) {
			return nil, fmt.Errorf("%w: s3://%s/%s", ErrNotFound, loc.bucket, loc.key)
		}
		return nil, fmt.Errorf("resource: get s3://%s/%s: %w", loc.bucket, loc.key, err)
	}

	o.log.Debug("fetched object from S3",
		slog.String("bucket", loc.bucket),
		slog.String("key", loc.key),
		slog.Duration("duration", time.Since(start)))
	return out.Body, nil
}

func (o *S3Opener) client(loc s3Location) (s3iface.S3API, error) {
	cacheKey := loc.region + "|" + loc.endpoint + "|" + loc.accessKey

	o.mu.Lock()
	defer o.mu.Unlock()

	if c, ok := o.clients[cacheKey]; ok {
		return c, nil
	}

	cfg := aws.NewConfig().WithRegion(loc.region)
	if loc.endpoint != "" {
		cfg = cfg.WithEndpoint(loc.endpoint).WithS3ForcePathStyle(true)
	}
	if loc.accessKey != "" {
		cfg = cfg.WithCredentials(credentials.NewStaticCredentials(loc.accessKey, loc.secretKey, ""))
	}

	c, err := o.newClient(cfg)
	if err != nil {
		return nil, err
	}
	o.clients[cacheKey] = c
	return c, nil
}
