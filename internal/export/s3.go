package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3API is the subset of the S3 client used by S3Sink.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Sink stores each bundle as <Prefix>/<session-id>.mvdl in Bucket.
type S3Sink struct {
	client S3API
	bucket string
	prefix string
}

// NewS3Sink builds a sink from the default AWS credential chain
// (environment, shared config, instance role).
func NewS3Sink(ctx context.Context, bucket, prefix string) (*S3Sink, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("s3 sink: load aws config: %w", err)
	}
	return NewS3SinkWithClient(s3.NewFromConfig(cfg), bucket, prefix)
}

// NewS3SinkWithClient builds a sink around an existing client.
func NewS3SinkWithClient(client S3API, bucket, prefix string) (*S3Sink, error) {
	if bucket == "" {
		return nil, fmt.Errorf("s3 sink: empty bucket")
	}
	return &S3Sink{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}, nil
}

// Key returns the object key for a session's bundle.
func (s *S3Sink) Key(sessionID string) string {
	return path.Join(s.prefix, sessionID+Extension)
}

// Write uploads b. Objects are content-complete, so a repeated upload of the
// same bundle simply replaces identical bytes.
func (s *S3Sink) Write(ctx context.Context, b *Bundle) (string, error) {
	if err := validID(b.SessionID); err != nil {
		return "", fmt.Errorf("write bundle: %w", err)
	}
	data, err := Encode(b)
	if err != nil {
		return "", err
	}
	key := s.Key(b.SessionID)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/cbor"),
		// Metadata travels as HTTP headers, so the source path is escaped.
		Metadata: map[string]string{
			"digest": b.Digest,
			"source": url.QueryEscape(b.Source),
		},
	})
	if err != nil {
		return "", fmt.Errorf("upload bundle %s: %w", b.SessionID, err)
	}
	return key, nil
}

// Read downloads and verifies the bundle for sessionID.
func (s *S3Sink) Read(ctx context.Context, sessionID string) (*Bundle, error) {
	if err := validID(sessionID); err != nil {
		return nil, fmt.Errorf("read bundle: %w", err)
	}
	return s.readKey(ctx, s.Key(sessionID))
}

func (s *S3Sink) readKey(ctx context.Context, key string) (*Bundle, error) {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("read %s: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return DecodeBundle(data)
}

// List downloads every bundle under the prefix, ordered by session ID.
func (s *S3Sink) List(ctx context.Context) ([]Summary, error) {
	prefix := s.prefix
	if prefix != "" {
		prefix += "/"
	}

	var keys []string
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list bundles: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if strings.HasSuffix(key, Extension) {
				keys = append(keys, key)
			}
		}
	}
	sort.Strings(keys)

	out := make([]Summary, 0, len(keys))
	for _, key := range keys {
		b, err := s.readKey(ctx, key)
		if err != nil {
			return nil, err
		}
		out = append(out, b.Summary())
	}
	return out, nil
}

// Close is a no-op.
func (s *S3Sink) Close() error { return nil }
