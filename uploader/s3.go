package uploader

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"resty.dev/v3"
)

const keyPrefix = "telegram_posts/"

// S3 uploads media to an S3 bucket fronted by a public CDN base URL.
type S3 struct {
	client        *s3.Client
	http          *resty.Client
	bucket        string
	publicBaseURL string
}

// NewS3 loads the default AWS credential chain and builds an uploader for
// the bucket. publicBaseURL is prepended to object keys to form the stored
// media location.
func NewS3(ctx context.Context, bucket, region, publicBaseURL string) (*S3, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &S3{
		client:        s3.NewFromConfig(cfg),
		http:          resty.New(),
		bucket:        bucket,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}, nil
}

func (u *S3) Upload(ctx context.Context, sourceURL, name string) (string, error) {
	res, err := u.http.R().WithContext(ctx).Get(sourceURL)
	if err != nil {
		return "", fmt.Errorf("fetch media: %w", err)
	}
	if !res.IsSuccess() {
		return "", fmt.Errorf("fetch media: unexpected status %s", res.Status())
	}

	key := keyPrefix + name
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(res.Bytes()),
	})
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}

	return u.publicBaseURL + "/" + key, nil
}
