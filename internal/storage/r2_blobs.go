package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// R2Config addresses a Cloudflare R2 bucket through its S3 API.
type R2Config struct {
	Endpoint  string
	AccountID string
	AccessKey string
	SecretKey string
	Bucket    string
	// KeyPrefix is the object key namespace for assets, e.g. "images/".
	KeyPrefix string
	// PublicURL, when set, serves objects permanently; otherwise links are
	// presigned and expire after PresignTTL.
	PublicURL  string
	PresignTTL time.Duration
}

// ObjectAPI is the part of *s3.Client the R2 backend uses.
type ObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Presigner is the part of *s3.PresignClient the R2 backend uses.
type Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

type R2Blobs struct {
	api       ObjectAPI
	presigner Presigner
	bucket    string
	prefix    string
	publicURL string
	ttl       time.Duration
}

// NewR2Client builds an S3 client pointed at the account's R2 endpoint.
func NewR2Client(ctx context.Context, cfg R2Config) (*s3.Client, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		if cfg.AccountID == "" {
			return nil, fmt.Errorf("r2: endpoint or account id is required")
		}
		endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion("auto"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("r2: load aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	}), nil
}

func NewR2Blobs(client *s3.Client, cfg R2Config) *R2Blobs {
	return newR2Blobs(client, s3.NewPresignClient(client), cfg)
}

func newR2Blobs(api ObjectAPI, presigner Presigner, cfg R2Config) *R2Blobs {
	if cfg.PresignTTL <= 0 {
		cfg.PresignTTL = time.Hour
	}
	prefix := strings.Trim(cfg.KeyPrefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &R2Blobs{
		api:       api,
		presigner: presigner,
		bucket:    cfg.Bucket,
		prefix:    prefix,
		publicURL: strings.TrimSuffix(cfg.PublicURL, "/"),
		ttl:       cfg.PresignTTL,
	}
}

func (b *R2Blobs) Put(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	key := b.prefix + name
	_, err := b.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("r2 put %s: %w", key, err)
	}
	return b.url(ctx, key)
}

func (b *R2Blobs) List(ctx context.Context) ([]BlobObject, error) {
	paginator := s3.NewListObjectsV2Paginator(b.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(b.prefix),
	})

	var objects []BlobObject
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("r2 list %s: %w", b.prefix, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			name := strings.TrimPrefix(key, b.prefix)
			if name == "" || strings.Contains(name, "/") {
				continue
			}
			url, err := b.url(ctx, key)
			if err != nil {
				return nil, err
			}
			objects = append(objects, BlobObject{Name: name, Size: aws.ToInt64(obj.Size), URL: url})
		}
	}
	return objects, nil
}

func (b *R2Blobs) url(ctx context.Context, key string) (string, error) {
	if b.publicURL != "" {
		return b.publicURL + "/" + key, nil
	}
	req, err := b.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(b.ttl))
	if err != nil {
		return "", fmt.Errorf("r2 presign %s: %w", key, err)
	}
	return req.URL, nil
}
