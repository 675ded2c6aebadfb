package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3API is the subset of the S3 client used by S3.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Options configures an S3-compatible bucket.
type S3Options struct {
	Bucket       string
	Region       string
	Endpoint     string
	Prefix       string
	UsePathStyle bool
}

// S3 stores objects in an S3-compatible bucket. Custom metadata travels as
// x-amz-meta-* headers, which S3 returns with lowercased names.
type S3 struct {
	client S3API
	bucket string
	prefix string
}

// NewS3 builds an S3 store using the default AWS credential chain.
func NewS3(ctx context.Context, opts S3Options) (*S3, error) {
	if strings.TrimSpace(opts.Bucket) == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if region := strings.TrimSpace(opts.Region); region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint := strings.TrimSpace(opts.Endpoint); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
	})
	return NewS3WithClient(client, opts.Bucket, opts.Prefix), nil
}

// NewS3WithClient wraps an existing client.
func NewS3WithClient(client S3API, bucket, prefix string) *S3 {
	return &S3{client: client, bucket: strings.TrimSpace(bucket), prefix: normalizePrefix(prefix)}
}

// Put uploads data under key with its metadata.
func (s *S3) Put(ctx context.Context, key string, data []byte, opts PutOptions) (ObjectInfo, error) {
	var zero ObjectInfo
	if err := ValidateKey(key); err != nil {
		return zero, err
	}
	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.fullKey(key)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		Metadata:      toS3Metadata(opts.Metadata),
	}
	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	}
	out, err := s.client.PutObject(ctx, input)
	if err != nil {
		return zero, fmt.Errorf("put %q: %w", key, err)
	}

	// PutObject does not echo LastModified; read it back.
	info, err := s.Head(ctx, key)
	if err != nil {
		return ObjectInfo{
			Key:         key,
			Size:        int64(len(data)),
			ETag:        trimETag(aws.ToString(out.ETag)),
			ContentType: opts.ContentType,
			Metadata:    opts.Metadata.clone(),
		}, nil
	}
	return *info, nil
}

// Get downloads key.
func (s *S3) Get(ctx context.Context, key string) (*Object, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fullKey(key)),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, fmt.Errorf("get %q: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("get %q: %w", key, err)
	}
	return &Object{
		ObjectInfo: ObjectInfo{
			Key:         key,
			Size:        aws.ToInt64(out.ContentLength),
			ETag:        trimETag(aws.ToString(out.ETag)),
			ContentType: aws.ToString(out.ContentType),
			Uploaded:    aws.ToTime(out.LastModified).UTC(),
			Metadata:    fromS3Metadata(out.Metadata),
		},
		Body: out.Body,
	}, nil
}

// Head fetches attributes of key.
func (s *S3) Head(ctx context.Context, key string) (*ObjectInfo, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fullKey(key)),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, fmt.Errorf("head %q: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("head %q: %w", key, err)
	}
	return &ObjectInfo{
		Key:         key,
		Size:        aws.ToInt64(out.ContentLength),
		ETag:        trimETag(aws.ToString(out.ETag)),
		ContentType: aws.ToString(out.ContentType),
		Uploaded:    aws.ToTime(out.LastModified).UTC(),
		Metadata:    fromS3Metadata(out.Metadata),
	}, nil
}

// List pages through the bucket. Metadata is not returned by listings;
// callers Head individual keys when they need it.
func (s *S3) List(ctx context.Context) ([]ObjectInfo, error) {
	input := &s3.ListObjectsV2Input{Bucket: aws.String(s.bucket)}
	if s.prefix != "" {
		input.Prefix = aws.String(s.prefix)
	}
	paginator := s3.NewListObjectsV2Paginator(s.client, input)

	out := []ObjectInfo{}
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list objects: %w", err)
		}
		for _, obj := range page.Contents {
			key := strings.TrimPrefix(aws.ToString(obj.Key), s.prefix)
			if key == "" {
				continue
			}
			out = append(out, ObjectInfo{
				Key:      key,
				Size:     aws.ToInt64(obj.Size),
				ETag:     trimETag(aws.ToString(obj.ETag)),
				Uploaded: aws.ToTime(obj.LastModified).UTC(),
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Delete removes key. S3 treats missing keys as success.
func (s *S3) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fullKey(key)),
	})
	if err != nil && !isS3NotFound(err) {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

func (s *S3) fullKey(key string) string {
	return s.prefix + key
}

func normalizePrefix(prefix string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}

func isS3NotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}

// toS3Metadata lowercases keys and Q-encodes values that are not plain
// ASCII, since x-amz-meta-* headers only carry US-ASCII.
func toS3Metadata(meta Metadata) map[string]string {
	if len(meta) == 0 {
		return nil
	}
	out := make(map[string]string, len(meta))
	for k, v := range meta {
		out[strings.ToLower(k)] = mime.QEncoding.Encode("utf-8", v)
	}
	return out
}

func fromS3Metadata(meta map[string]string) Metadata {
	if len(meta) == 0 {
		return nil
	}
	var dec mime.WordDecoder
	out := make(Metadata, len(meta))
	for k, v := range meta {
		if decoded, err := dec.DecodeHeader(v); err == nil {
			v = decoded
		}
		out[strings.ToLower(k)] = v
	}
	return out
}

func trimETag(etag string) string {
	return strings.Trim(etag, `"`)
}

var _ Store = (*S3)(nil)
