package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type S3Options struct {
	Bucket string
	Region string
	// Endpoint overrides the AWS endpoint for S3-compatible services
	// (MinIO, R2, Railway buckets). Path-style addressing is used when set.
	Endpoint string
	// PublicURL is the base that object names are appended to. Defaults to
	// the virtual-hosted AWS URL.
	PublicURL string
}

// S3Store keeps blobs in an S3 bucket.
type S3Store struct {
	client    *s3.Client
	bucket    string
	publicURL string
}

func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewS3StoreWithClient(client, opts), nil
}

func NewS3StoreWithClient(client *s3.Client, opts S3Options) *S3Store {
	public := opts.PublicURL
	if public == "" {
		switch {
		case opts.Endpoint != "":
			public = strings.TrimRight(opts.Endpoint, "/") + "/" + opts.Bucket
		default:
			public = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", opts.Bucket, opts.Region)
		}
	}
	return &S3Store{
		client:    client,
		bucket:    opts.Bucket,
		publicURL: strings.TrimRight(public, "/"),
	}
}

func (s *S3Store) Put(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	if err := validName(name); err != nil {
		return "", err
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(name),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", name, err)
	}
	return s.publicURL + "/" + name, nil
}

func (s *S3Store) Get(ctx context.Context, url string) ([]byte, error) {
	name, err := nameFromURL(s.publicURL, url)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, url)
		}
		return nil, fmt.Errorf("get object %s: %w", name, err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func (s *S3Store) Delete(ctx context.Context, url string) error {
	name, err := nameFromURL(s.publicURL, url)
	if err != nil {
		return err
	}
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", name, err)
	}
	return nil
}

func (s *S3Store) List(ctx context.Context, prefix string) ([]BlobInfo, error) {
	var out []BlobInfo
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list objects %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			name := aws.ToString(obj.Key)
			out = append(out, BlobInfo{
				Name:       name,
				URL:        s.publicURL + "/" + name,
				Size:       aws.ToInt64(obj.Size),
				UploadedAt: aws.ToTime(obj.LastModified),
			})
		}
	}
	return out, nil
}
