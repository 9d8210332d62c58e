package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

func TestObjectKey(t *testing.T) {
	tests := []struct {
		owner    int64
		filename string
		want     string
	}{
		{1, "Report.PDF", "uploads/1/report.pdf"},
		{42, "notes.txt", "uploads/42/notes.txt"},
		{7, "dir/sub/Scan.png", "uploads/7/scan.png"},
		{7, `C:\Users\me\Data.xlsx`, "uploads/7/data.xlsx"},
	}

	for _, tt := range tests {
		if got := ObjectKey(tt.owner, tt.filename); got != tt.want {
			t.Errorf("ObjectKey(%d, %q) = %q, want %q", tt.owner, tt.filename, got, tt.want)
		}
	}
}

func TestValidateKey(t *testing.T) {
	valid := []string{"uploads/1/a.txt", "a"}
	invalid := []string{"", "/abs", "../escape", "uploads/../../x", "uploads//a", "uploads/1/..", ".."}

	for _, k := range valid {
		if err := validateKey(k); err != nil {
			t.Errorf("validateKey(%q) = %v, want nil", k, err)
		}
	}
	for _, k := range invalid {
		if err := validateKey(k); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("validateKey(%q) = %v, want ErrInvalidKey", k, err)
		}
	}
}

func TestLocalStore(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore() error = %v", err)
	}

	url, err := store.Put(ctx, "uploads/1/a.txt", []byte("hello"), "text/plain")
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if !strings.HasPrefix(url, "file://") || !strings.HasSuffix(url, "/uploads/1/a.txt") {
		t.Errorf("Put() url = %q", url)
	}

	got, err := store.Get(ctx, "uploads/1/a.txt")
	if err != nil || string(got) != "hello" {
		t.Fatalf("Get() = %q, %v", got, err)
	}

	// same key overwrites
	if _, err := store.Put(ctx, "uploads/1/a.txt", []byte("again"), ""); err != nil {
		t.Fatalf("Put() overwrite error = %v", err)
	}
	got, _ = store.Get(ctx, "uploads/1/a.txt")
	if string(got) != "again" {
		t.Errorf("Get() after overwrite = %q", got)
	}

	if _, err := store.Put(ctx, "uploads/2/b.txt", []byte("b"), ""); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if _, err := store.Put(ctx, "other/c.txt", []byte("c"), ""); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	objs, err := store.List(ctx, UploadPrefix)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(objs) != 2 || objs[0].Key != "uploads/1/a.txt" || objs[1].Key != "uploads/2/b.txt" {
		t.Errorf("List() = %+v", objs)
	}
	if objs[0].Size != 5 {
		t.Errorf("size = %d, want 5", objs[0].Size)
	}

	if err := store.Delete(ctx, "uploads/1/a.txt"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Get(ctx, "uploads/1/a.txt"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after delete = %v, want ErrNotFound", err)
	}
	if err := store.Delete(ctx, "uploads/1/a.txt"); err != nil {
		t.Errorf("Delete() of missing key = %v, want nil", err)
	}
	if _, err := store.Put(ctx, "../outside", []byte("x"), ""); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("Put() escaping key = %v, want ErrInvalidKey", err)
	}
}

func TestLocalStoreEmptyList(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	objs, err := store.List(context.Background(), UploadPrefix)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(objs) != 0 {
		t.Errorf("List() = %+v, want empty", objs)
	}
}

// fakeS3 is a path-style S3 endpoint good enough for object CRUD and
// ListObjectsV2 without pagination.
type fakeS3 struct {
	mu      sync.Mutex
	bucket  string
	objects map[string][]byte
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/"+f.bucket)
	key := strings.TrimPrefix(path, "/")

	switch {
	case r.Method == http.MethodGet && r.URL.Query().Get("list-type") == "2":
		prefix := r.URL.Query().Get("prefix")
		var b strings.Builder
		b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">`)
		b.WriteString("<Name>" + f.bucket + "</Name><IsTruncated>false</IsTruncated>")
		for k, v := range f.objects {
			if strings.HasPrefix(k, prefix) {
				b.WriteString("<Contents><Key>" + k + "</Key><LastModified>2024-01-01T00:00:00.000Z</LastModified>")
				b.WriteString("<Size>" + strconv.Itoa(len(v)) + "</Size></Contents>")
			}
		}
		b.WriteString("</ListBucketResult>")
		w.Header().Set("Content-Type", "application/xml")
		io.WriteString(w, b.String())
	case r.Method == http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[key] = body
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodGet:
		data, ok := f.objects[key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
			return
		}
		w.Write(data)
	case r.Method == http.MethodDelete:
		delete(f.objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestS3Store(t *testing.T) (*S3Store, *fakeS3) {
	t.Helper()
	fake := &fakeS3{bucket: "docs", objects: map[string][]byte{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client := s3.New(s3.Options{
		Region:                     "us-east-1",
		BaseEndpoint:               aws.String(srv.URL),
		UsePathStyle:               true,
		Credentials:                credentials.NewStaticCredentialsProvider("test", "test", ""),
		RequestChecksumCalculation: aws.RequestChecksumCalculationWhenRequired,
		ResponseChecksumValidation: aws.ResponseChecksumValidationWhenRequired,
	})
	return NewS3StoreFromClient(client, "docs", "us-east-1", srv.URL, 0), fake
}

func TestS3Store(t *testing.T) {
	ctx := context.Background()
	store, fake := newTestS3Store(t)

	url, err := store.Put(ctx, "uploads/1/a.txt", []byte("hello"), "text/plain")
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if !strings.HasSuffix(url, "/docs/uploads/1/a.txt") {
		t.Errorf("Put() url = %q", url)
	}
	if !bytes.Equal(fake.objects["uploads/1/a.txt"], []byte("hello")) {
		t.Errorf("stored = %q", fake.objects["uploads/1/a.txt"])
	}

	got, err := store.Get(ctx, "uploads/1/a.txt")
	if err != nil || string(got) != "hello" {
		t.Fatalf("Get() = %q, %v", got, err)
	}

	objs, err := store.List(ctx, UploadPrefix)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(objs) != 1 || objs[0].Key != "uploads/1/a.txt" || objs[0].Size != 5 {
		t.Errorf("List() = %+v", objs)
	}

	if err := store.Delete(ctx, "uploads/1/a.txt"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Get(ctx, "uploads/1/a.txt"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after delete = %v, want ErrNotFound", err)
	}
}

func TestS3URL(t *testing.T) {
	amazon := NewS3StoreFromClient(nil, "bucket", "eu-west-1", "", 0)
	if got, want := amazon.URL("uploads/1/a.pdf"), "https://bucket.s3.eu-west-1.amazonaws.com/uploads/1/a.pdf"; got != want {
		t.Errorf("URL() = %q, want %q", got, want)
	}

	minio := NewS3StoreFromClient(nil, "bucket", "us-east-1", "http://localhost:9000/", 0)
	if got, want := minio.URL("uploads/1/a.pdf"), "http://localhost:9000/bucket/uploads/1/a.pdf"; got != want {
		t.Errorf("URL() = %q, want %q", got, want)
	}
}

func TestWithMetricsPassesThrough(t *testing.T) {
	ctx := context.Background()
	local, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	store := WithMetrics(local)

	if _, err := store.Put(ctx, "uploads/3/x.txt", []byte("x"), ""); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if _, err := store.Get(ctx, "uploads/3/missing.txt"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() = %v, want ErrNotFound", err)
	}
}
