package s3

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thewatergategroups/info-vault/internal/core/domain"
)

// fakeS3 is a minimal path-style S3 server for one bucket.
type fakeS3 struct {
	mu      sync.Mutex
	bucket  string
	exists  bool
	objects map[string]string
	types   map[string]string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/")
	bucket, key, _ := strings.Cut(path, "/")
	if bucket != f.bucket || (!f.exists && r.Method != http.MethodPut) {
		writeS3Error(w, http.StatusNotFound, "NoSuchBucket", r.Method == http.MethodHead)
		return
	}

	switch {
	case key == "" && r.Method == http.MethodHead:
		w.WriteHeader(http.StatusOK)
	case key == "" && r.Method == http.MethodPut:
		f.exists = true
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut:
		data, _ := io.ReadAll(r.Body)
		f.objects[key] = string(data)
		f.types[key] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodGet:
		data, ok := f.objects[key]
		if !ok {
			writeS3Error(w, http.StatusNotFound, "NoSuchKey", false)
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		_, _ = io.WriteString(w, data)
	case r.Method == http.MethodDelete:
		delete(f.objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func writeS3Error(w http.ResponseWriter, status int, code string, head bool) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	if !head {
		_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>`+code+`</Code><Message>not found</Message></Error>`)
	}
}

func newTestStore(t *testing.T, exists bool) (*Store, *fakeS3) {
	t.Helper()
	fake := &fakeS3{
		bucket:  "document-bucket",
		exists:  exists,
		objects: make(map[string]string),
		types:   make(map[string]string),
	}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client := s3.New(s3.Options{
		Region:                     "eu-west-2",
		BaseEndpoint:               aws.String(srv.URL),
		UsePathStyle:               true,
		Credentials:                aws.AnonymousCredentials{},
		RequestChecksumCalculation: aws.RequestChecksumCalculationWhenRequired,
		ResponseChecksumValidation: aws.ResponseChecksumValidationWhenRequired,
	})
	return NewWithClient(client, Config{Bucket: fake.bucket}), fake
}

func TestNew_RequiresBucket(t *testing.T) {
	_, err := New(context.Background(), Config{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestStore_PutGetDelete(t *testing.T) {
	store, fake := newTestStore(t, true)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "id-1_notes.txt", strings.NewReader("hello world"), 11, "text/plain"))
	assert.Equal(t, "hello world", fake.objects["id-1_notes.txt"])
	assert.Equal(t, "text/plain", fake.types["id-1_notes.txt"])

	body, err := store.Get(ctx, "id-1_notes.txt")
	require.NoError(t, err)
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	require.NoError(t, body.Close())
	assert.Equal(t, "hello world", string(data))

	require.NoError(t, store.Delete(ctx, "id-1_notes.txt"))
	assert.Empty(t, fake.objects)
}

func TestStore_GetMissing(t *testing.T) {
	store, _ := newTestStore(t, true)

	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_Exists(t *testing.T) {
	store, _ := newTestStore(t, true)
	assert.NoError(t, store.Exists(context.Background()))

	missing, _ := newTestStore(t, false)
	assert.ErrorIs(t, missing.Exists(context.Background()), domain.ErrNotFound)
}

func TestStore_EnsureBucket(t *testing.T) {
	store, fake := newTestStore(t, false)

	require.NoError(t, store.EnsureBucket(context.Background()))
	assert.True(t, fake.exists)
	require.NoError(t, store.EnsureBucket(context.Background()))
}
