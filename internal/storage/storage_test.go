package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"devlink/internal/config"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		key     string
		want    string
		wantErr bool
	}{
		{"profile/a.webp", "profile/a.webp", false},
		{"/post/b.webp", "post/b.webp", false},
		{"../etc/passwd", "", true},
		{"a/../../b", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := cleanKey(tt.key)
		if tt.wantErr {
			assert.Error(t, err, tt.key)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestLocalStorage_Put(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(dir, "/uploads/")
	require.NoError(t, err)
	assert.Equal(t, "local", store.Driver())

	url, err := store.Put(context.Background(), "profile/1.webp", []byte("webp-bytes"), "image/webp")
	require.NoError(t, err)
	assert.Equal(t, "/uploads/profile/1.webp", url)

	data, err := os.ReadFile(filepath.Join(dir, "profile", "1.webp"))
	require.NoError(t, err)
	assert.Equal(t, "webp-bytes", string(data))

	_, err = store.Put(context.Background(), "../escape.webp", []byte("x"), "image/webp")
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = store.Put(ctx, "profile/2.webp", []byte("x"), "image/webp")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew_SelectsDriver(t *testing.T) {
	store, err := New(context.Background(), &config.Config{StorageDriver: "local", UploadDir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, "local", store.Driver())

	_, err = New(context.Background(), &config.Config{StorageDriver: "ftp"})
	assert.Error(t, err)

	_, err = New(context.Background(), &config.Config{StorageDriver: "s3"})
	assert.Error(t, err, "bucket is required")
}

type s3Request struct {
	hits        int
	method      string
	path        string
	contentType string
	body        string
}

type fakeS3 struct {
	mu   sync.Mutex
	last s3Request
}

func (f *fakeS3) snapshot() s3Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

func newFakeS3(t *testing.T, status int) (*httptest.Server, *fakeS3) {
	t.Helper()
	rec := &fakeS3{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		rec.mu.Lock()
		rec.last = s3Request{
			hits:        rec.last.hits + 1,
			method:      r.Method,
			path:        r.URL.Path,
			contentType: r.Header.Get("Content-Type"),
			body:        string(body),
		}
		rec.mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}

func newTestS3(t *testing.T, endpoint string) *S3Storage {
	t.Helper()
	store, err := NewS3Storage(context.Background(), S3Config{
		Bucket:    "media",
		Region:    "us-east-1",
		Endpoint:  endpoint,
		AccessKey: "test",
		SecretKey: "test-secret",
	}, func(o *s3.Options) { o.RetryMaxAttempts = 1 })
	require.NoError(t, err)
	return store
}

func TestS3Storage_Put(t *testing.T) {
	srv, rec := newFakeS3(t, http.StatusOK)
	store := newTestS3(t, srv.URL)
	assert.Equal(t, "s3", store.Driver())

	url, err := store.Put(context.Background(), "post/abc.webp", []byte("payload"), "image/webp")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/media/post/abc.webp", url)

	got := rec.snapshot()
	assert.Equal(t, 1, got.hits)
	assert.Equal(t, http.MethodPut, got.method)
	assert.Equal(t, "/media/post/abc.webp", got.path)
	assert.Equal(t, "image/webp", got.contentType)
	assert.Equal(t, "payload", got.body)
}

func TestS3Storage_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	srv, rec := newFakeS3(t, http.StatusForbidden)
	store := newTestS3(t, srv.URL)

	for i := 0; i < 5; i++ {
		_, err := store.Put(context.Background(), "post/x.webp", []byte("x"), "image/webp")
		require.Error(t, err)
	}
	assert.Equal(t, 5, rec.snapshot().hits)

	_, err := store.Put(context.Background(), "post/x.webp", []byte("x"), "image/webp")
	require.Error(t, err)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 5, rec.snapshot().hits, "open breaker must not reach the bucket")
}

func TestPublicBaseURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "https://cdn.example.com", publicBaseURL(S3Config{PublicBaseURL: "https://cdn.example.com"}, "eu-west-1"))
	assert.Equal(t, "http://minio:9000/media", publicBaseURL(S3Config{Bucket: "media", Endpoint: "http://minio:9000/"}, "us-east-1"))
	assert.Equal(t, "https://media.s3.eu-west-1.amazonaws.com", publicBaseURL(S3Config{Bucket: "media", PublicBaseURL: "/uploads"}, "eu-west-1"))
}
