package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/jmehdipour/orderdesk/internal/config"
)

// ObjectPutter is the slice of the S3 API the disk needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Disk struct {
	client    ObjectPutter
	bucket    string
	region    string
	endpoint  string
	publicURL string
	pathStyle bool
}

// NewS3Disk builds a client from the default AWS credential chain, overridden by
// static keys and a custom endpoint (MinIO, R2) when configured.
func NewS3Disk(ctx context.Context, c config.S3Config) (*S3Disk, error) {
	if c.Bucket == "" {
		return nil, errors.New("s3 storage: empty bucket")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(c.Region)}
	if c.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AccessKeyID, c.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if c.Endpoint != "" {
			o.BaseEndpoint = aws.String(c.Endpoint)
		}
		o.UsePathStyle = c.UsePathStyle
	})

	return NewS3DiskWithClient(client, c), nil
}

func NewS3DiskWithClient(client ObjectPutter, c config.S3Config) *S3Disk {
	return &S3Disk{
		client:    client,
		bucket:    c.Bucket,
		region:    c.Region,
		endpoint:  c.Endpoint,
		publicURL: c.PublicURL,
		pathStyle: c.UsePathStyle,
	}
}

func (d *S3Disk) Put(ctx context.Context, key string, data []byte, vis Visibility) error {
	acl := types.ObjectCannedACLPrivate
	if vis == VisibilityPublic {
		acl = types.ObjectCannedACLPublicRead
	}

	in := &s3.PutObjectInput{
		Bucket:        aws.String(d.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ACL:           acl,
	}
	if ct := contentType(key); ct != "" {
		in.ContentType = aws.String(ct)
	}

	if _, err := d.client.PutObject(ctx, in); err != nil {
		return fmt.Errorf("s3 put %s/%s: %w", d.bucket, key, err)
	}
	return nil
}

func (d *S3Disk) URL(key string) string {
	switch {
	case d.publicURL != "":
		return joinURL(d.publicURL, key)
	case d.endpoint != "" && d.pathStyle:
		return joinURL(joinURL(d.endpoint, d.bucket), key)
	case d.endpoint != "":
		return joinURL(d.endpoint, key)
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", d.bucket, d.region, key)
	}
}

func contentType(key string) string {
	ext := path.Ext(key)
	if ext == ".csv" {
		return "text/csv; charset=utf-8"
	}
	return mime.TypeByExtension(ext)
}
