package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/dvloznov/statement-ledger/internal/ledger"
)

// NewStorageClient creates a Cloud Storage client. With an empty
// credentialsFile it relies on Application Default Credentials.
func NewStorageClient(ctx context.Context, credentialsFile string) (*storage.Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewStorageClient: create storage client: %w", err)
	}
	return client, nil
}

// GCSStore keeps the ledger as one object in a Cloud Storage bucket. Save
// only succeeds if the object is still at the generation seen by the last
// Load.
type GCSStore struct {
	client *storage.Client
	bucket string
	object string

	mu         sync.Mutex
	generation int64 // 0 when the object did not exist
	loaded     bool
}

// NewGCSStore returns a store for gs://bucket/object.
func NewGCSStore(client *storage.Client, bucket, object string) *GCSStore {
	return &GCSStore{client: client, bucket: bucket, object: object}
}

// URI returns the gs:// location of the ledger object.
func (s *GCSStore) URI() string {
	return "gs://" + s.bucket + "/" + s.object
}

func (s *GCSStore) Load(ctx context.Context) (*ledger.Ledger, error) {
	obj := s.client.Bucket(s.bucket).Object(s.object)

	r, err := obj.NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		s.observe(0)
		return ledger.Empty(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("GCSStore.Load: open %s: %w", s.URI(), err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("GCSStore.Load: read %s: %w", s.URI(), err)
	}
	s.observe(r.Attrs.Generation)

	l, err := ledger.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("GCSStore.Load: %s: %w", s.URI(), err)
	}
	return l, nil
}

func (s *GCSStore) Save(ctx context.Context, l *ledger.Ledger) error {
	data, err := encodeLedger(l)
	if err != nil {
		return fmt.Errorf("GCSStore.Save: %w", err)
	}

	obj := s.client.Bucket(s.bucket).Object(s.object)

	gen, loaded := s.observed()
	if !loaded {
		gen, err = s.currentGeneration(ctx, obj)
		if err != nil {
			return fmt.Errorf("GCSStore.Save: %w", err)
		}
	}
	cond := storage.Conditions{GenerationMatch: gen}
	if gen == 0 {
		cond = storage.Conditions{DoesNotExist: true}
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := obj.If(cond).NewWriter(ctx)
	w.ContentType = "application/json; charset=utf-8"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("GCSStore.Save: write %s: %w", s.URI(), err)
	}
	if err := w.Close(); err != nil {
		if isPreconditionFailed(err) {
			return fmt.Errorf("GCSStore.Save: %s: %w", s.URI(), ErrConcurrentUpdate)
		}
		return fmt.Errorf("GCSStore.Save: finalize %s: %w", s.URI(), err)
	}

	s.observe(w.Attrs().Generation)
	return nil
}

func (s *GCSStore) currentGeneration(ctx context.Context, obj *storage.ObjectHandle) (int64, error) {
	attrs, err := obj.Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("currentGeneration: %s: %w", s.URI(), err)
	}
	return attrs.Generation, nil
}

func (s *GCSStore) observe(gen int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation = gen
	s.loaded = true
}

func (s *GCSStore) observed() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation, s.loaded
}

func isPreconditionFailed(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusPreconditionFailed
	}
	return false
}

// Archive stores original statement files in a bucket.
type Archive struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewArchive returns an archive writing under gs://bucket/prefix/.
func NewArchive(client *storage.Client, bucket, prefix string) *Archive {
	return &Archive{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// Put uploads data as name and returns its gs:// URI.
func (a *Archive) Put(ctx context.Context, name string, data []byte) (string, error) {
	objectName := path.Join(a.prefix, name)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := a.client.Bucket(a.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = "application/pdf"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("Archive.Put: write %s: %w", objectName, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("Archive.Put: finalize upload: %w", err)
	}
	return "gs://" + a.bucket + "/" + objectName, nil
}

// Fetch downloads the object at a gs:// URI, which may be in any bucket.
func (a *Archive) Fetch(ctx context.Context, uri string) ([]byte, error) {
	return Fetch(ctx, a.client, uri)
}

// Fetch downloads the object at a gs:// URI.
func Fetch(ctx context.Context, client *storage.Client, uri string) ([]byte, error) {
	bucket, object, err := ParseURI(uri)
	if err != nil {
		return nil, fmt.Errorf("Fetch: %w", err)
	}

	rc, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading object %s/%s: %w", bucket, object, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading bytes: %w", err)
	}
	return data, nil
}

// ParseURI splits gs://bucket/path/to/object into bucket and object name.
func ParseURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}
	parts := strings.SplitN(strings.TrimPrefix(uri, "gs://"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}

// IsURI reports whether s looks like a gs:// URI.
func IsURI(s string) bool {
	return strings.HasPrefix(s, "gs://")
}

// BaseName returns the file name of a gs:// URI or a local path.
func BaseName(s string) string {
	if _, object, err := ParseURI(s); err == nil {
		return path.Base(object)
	}
	return path.Base(strings.ReplaceAll(s, "\\", "/"))
}
