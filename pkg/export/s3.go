package export

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectPutter is the part of the S3 client used for uploads.
type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 uploads artifacts to Bucket under Prefix.
type S3 struct {
	Client ObjectPutter
	Bucket string
	Prefix string
}

// NewS3 builds an uploader from the default AWS credential chain. An empty
// region leaves the chain's region in place.
func NewS3(ctx context.Context, bucket, prefix, region string) (*S3, error) {
	if bucket == "" {
		return nil, fmt.Errorf("s3: bucket is required")
	}
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3: load aws config: %w", err)
	}
	return &S3{Client: s3.NewFromConfig(cfg), Bucket: bucket, Prefix: prefix}, nil
}

func (d *S3) Name() string { return "s3" }

func (d *S3) Export(ctx context.Context, a Artifact) (string, error) {
	key := path.Join(strings.Trim(d.Prefix, "/"), a.Name)
	in := &s3.PutObjectInput{
		Bucket: &d.Bucket,
		Key:    &key,
		Body:   bytes.NewReader(a.Data),
	}
	if a.ContentType != "" {
		ct := a.ContentType
		in.ContentType = &ct
	}
	if _, err := d.Client.PutObject(ctx, in); err != nil {
		return "", fmt.Errorf("s3: put %s: %w", key, err)
	}
	return fmt.Sprintf("s3://%s/%s", d.Bucket, key), nil
}
