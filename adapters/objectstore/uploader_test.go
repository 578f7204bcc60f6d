package objectstore

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"intenttune/internal"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]string
	types   map[string]string
	fail    bool
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.fail {
		return nil, errors.New("access denied")
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = string(body)
	f.types[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func TestUploadDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "checkpoint-40")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "extra"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(`{}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "weights.bin.zst"), []byte("zz"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "extra", "notes.txt"), []byte("n"), 0o644))

	fake := &fakeS3{objects: map[string]string{}, types: map[string]string{}}
	u := NewUploader(fake, "models", internal.NewLogger(internal.LogLevelError))
	n, err := u.UploadDir(context.Background(), dir, "/intenttune/run-1/")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	keys := make([]string, 0, len(fake.objects))
	for k := range fake.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	assert.Equal(t, []string{
		"models/intenttune/run-1/checkpoint-40/config.json",
		"models/intenttune/run-1/checkpoint-40/extra/notes.txt",
		"models/intenttune/run-1/checkpoint-40/weights.bin.zst",
	}, keys)
	assert.Equal(t, "zz", fake.objects["models/intenttune/run-1/checkpoint-40/weights.bin.zst"])
	assert.Equal(t, "application/json", fake.types["intenttune/run-1/checkpoint-40/config.json"])
}

func TestUploadDirFailure(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(`{}`), 0o644))
	u := NewUploader(&fakeS3{fail: true}, "models", internal.NewLogger(internal.LogLevelError))
	_, err := u.UploadDir(context.Background(), dir, "p")
	assert.ErrorContains(t, err, "access denied")
}
