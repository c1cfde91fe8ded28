package export

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memS3 is an in-memory bucket.
type memS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    []*s3.PutObjectInput
}

func newMemS3() *memS3 {
	return &memS3{objects: map[string][]byte{}}
}

func (m *memS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[aws.ToString(in.Key)] = data
	m.puts = append(m.puts, in)
	return &s3.PutObjectOutput{}, nil
}

func (m *memS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (m *memS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for _, k := range keys {
		out.Contents = append(out.Contents, s3types.Object{Key: aws.String(k)})
	}
	return out, nil
}

func TestS3Sink_WriteRead(t *testing.T) {
	ctx := context.Background()
	mem := newMemS3()
	s, err := NewS3SinkWithClient(mem, "bucket", "/labels/")
	require.NoError(t, err)

	b := testBundle(t, "s-1")
	key, err := s.Write(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, "labels/s-1.mvdl", key)

	require.Len(t, mem.puts, 1)
	assert.Equal(t, "bucket", aws.ToString(mem.puts[0].Bucket))
	assert.Equal(t, b.Digest, mem.puts[0].Metadata["digest"])

	got, err := s.Read(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, b, got)
}

func TestS3Sink_SourceMetadataIsEscaped(t *testing.T) {
	mem := newMemS3()
	s, err := NewS3SinkWithClient(mem, "bucket", "")
	require.NoError(t, err)

	source := "/clips/caf\u00e9 run.mp4"
	b, err := NewBundle("s-1", source, testResult(t, 1))
	require.NoError(t, err)
	_, err = s.Write(context.Background(), b)
	require.NoError(t, err)

	meta := mem.puts[0].Metadata["source"]
	assert.Equal(t, "%2Fclips%2Fcaf%C3%A9+run.mp4", meta)
	decoded, err := url.QueryUnescape(meta)
	require.NoError(t, err)
	assert.Equal(t, source, decoded)
}

func TestS3Sink_NoPrefix(t *testing.T) {
	s, err := NewS3SinkWithClient(newMemS3(), "bucket", "")
	require.NoError(t, err)
	assert.Equal(t, "s-1.mvdl", s.Key("s-1"))
}

func TestS3Sink_NotFound(t *testing.T) {
	s, err := NewS3SinkWithClient(newMemS3(), "bucket", "p")
	require.NoError(t, err)
	_, err = s.Read(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestS3Sink_List(t *testing.T) {
	ctx := context.Background()
	mem := newMemS3()
	s, err := NewS3SinkWithClient(mem, "bucket", "p")
	require.NoError(t, err)

	for _, id := range []string{"s-2", "s-1"} {
		_, err := s.Write(ctx, testBundle(t, id))
		require.NoError(t, err)
	}
	mem.objects["p/readme.txt"] = []byte("x")
	mem.objects["q/s-9.mvdl"] = []byte("x")

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "s-1", list[0].SessionID)
	assert.Equal(t, "s-2", list[1].SessionID)
}

func TestS3Sink_EmptyBucket(t *testing.T) {
	_, err := NewS3SinkWithClient(newMemS3(), "", "p")
	assert.Error(t, err)
}
