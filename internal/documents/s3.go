package documents

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectPutter is the part of the S3 client the uploader needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 stores documents in a bucket, keyed by content hash.
type S3 struct {
	client ObjectPutter
	bucket string
	region string
}

// NewS3 loads the default AWS credential chain.
func NewS3(ctx context.Context, bucket, region string) (*S3, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewS3WithClient(s3.NewFromConfig(awsCfg), bucket, awsCfg.Region), nil
}

func NewS3WithClient(client ObjectPutter, bucket, region string) *S3 {
	return &S3{client: client, bucket: bucket, region: region}
}

// Upload writes doc under documents/<sha256>/<name>. The hash is the hex
// SHA-256 of the content, so identical files share a key.
func (s *S3) Upload(ctx context.Context, doc Document) (Pinned, error) {
	name, err := cleanFilename(doc.Filename)
	if err != nil {
		return Pinned{}, err
	}
	sum := sha256.Sum256(doc.Bytes)
	hash := hex.EncodeToString(sum[:])
	key := fmt.Sprintf("documents/%s/%s", hash, name)

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(doc.Bytes),
	}
	if doc.ContentType != "" {
		input.ContentType = aws.String(doc.ContentType)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return Pinned{}, fmt.Errorf("%w: put s3 object: %v", ErrUploadFailed, err)
	}
	return Pinned{
		Hash: hash,
		URL:  fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key),
	}, nil
}
