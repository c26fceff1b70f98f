// Package s3 reads documents from an S3 bucket prefix. It works with any
// S3 compatible store such as MinIO.
package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/graphweave/graphrag/pkg/loader"
)

const scheme = "s3://"

// ObjectAPI is the subset of the S3 client used by Source.
type ObjectAPI interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Source lists the objects below prefix in bucket. Document paths have the
// form s3://<bucket>/<key>.
type Source struct {
	bucket string
	prefix string
	suffix string
	client ObjectAPI
}

var _ loader.Source = (*Source)(nil)

// NewSourceWithClient creates a Source using an existing client.
func NewSourceWithClient(bucket, prefix, suffix string, client ObjectAPI) *Source {
	if suffix == "" {
		suffix = loader.DefaultSuffix
	}
	return &Source{bucket: bucket, prefix: prefix, suffix: suffix, client: client}
}

// NewSourceParams defines the configuration for an S3 Source.
//
// Endpoint allows overriding the S3 endpoint for S3 compatible storage.
// AccessKey and SecretKey provide static credentials.
type NewSourceParams struct {
	Bucket    string
	Prefix    string
	Suffix    string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
}

func NewSource(ctx context.Context, params NewSourceParams) (*Source, error) {
	if params.Bucket == "" {
		return nil, fmt.Errorf("%w: no bucket configured", loader.ErrSourceMissing)
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(params.Region)}
	if params.Endpoint != "" {
		opts = append(opts, config.WithBaseEndpoint(params.Endpoint))
	}
	if params.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			params.AccessKey,
			params.SecretKey,
			"",
		)))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})
	return NewSourceWithClient(params.Bucket, params.Prefix, params.Suffix, client), nil
}

func (s *Source) List(ctx context.Context) ([]string, error) {
	paths := make([]string, 0)
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list objects with prefix %s: %w", s.prefix, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if key == "" || !loader.MatchesSuffix(key, s.suffix) {
				continue
			}
			paths = append(paths, scheme+s.bucket+"/"+key)
		}
	}
	return paths, nil
}

func (s *Source) Read(ctx context.Context, path string) ([]byte, error) {
	key, ok := strings.CutPrefix(path, scheme+s.bucket+"/")
	if !ok {
		return nil, fmt.Errorf("path %s is not in bucket %s", path, s.bucket)
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}
	defer out.Body.Close()

	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, out.Body); err != nil {
		return nil, fmt.Errorf("read object %s: %w", key, err)
	}
	return buf.Bytes(), nil
}
