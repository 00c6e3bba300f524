// Package gcs implements a Google Cloud Storage fetch cache backend.
package gcs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/architect-io/zenboard/pkg/zfile/cache"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

func init() {
	cache.Register("gcs", NewStore)
}

const staleLockAfter = time.Hour

// Store implements cache.Store over Google Cloud Storage. Like the s3 and
// local backends, it leans on keys being content-addressed: Write never
// needs to overwrite an object that's already there.
type Store struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewStore builds a GCS-backed store. config requires "bucket"; optional
// "credentials" (file path), "credentials_json", "prefix", and "endpoint"
// (for the GCS emulator).
func NewStore(cfg map[string]string) (cache.Store, error) {
	bucketName := cfg["bucket"]
	if bucketName == "" {
		return nil, fmt.Errorf("gcs cache backend requires 'bucket' configuration")
	}

	var opts []option.ClientOption
	switch {
	case cfg["credentials"] != "":
		opts = append(opts, option.WithCredentialsFile(cfg["credentials"]))
	case cfg["credentials_json"] != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg["credentials_json"])))
	}
	if endpoint := cfg["endpoint"]; endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint), option.WithoutAuthentication())
	}

	client, err := storage.NewClient(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs cache: creating client: %w", err)
	}

	return &Store{client: client, bucket: bucketName, prefix: cfg["prefix"]}, nil
}

func (s *Store) Type() string { return "gcs" }

func (s *Store) Read(ctx context.Context, key string) (io.ReadCloser, error) {
	obj := s.object(key)
	reader, err := s.client.Bucket(s.bucket).Object(obj).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, cache.ErrNotFound
		}
		return nil, fmt.Errorf("gcs cache: reading gs://%s/%s: %w", s.bucket, obj, err)
	}
	return reader, nil
}

// Write skips the upload entirely when the key is already populated — a
// content-addressed key can't mean two different things, so a losing racer
// in the outer coalescing loop (zfile.DefaultProvider.acquireLock) has
// nothing new to contribute once the winner has written the object.
func (s *Store) Write(ctx context.Context, key string, data io.Reader) error {
	if exists, err := s.Exists(ctx, key); err != nil {
		return err
	} else if exists {
		return nil
	}

	obj := s.object(key)
	w := s.client.Bucket(s.bucket).Object(obj).NewWriter(ctx)
	w.ContentType = "application/octet-stream"

	if _, err := io.Copy(w, data); err != nil {
		w.Close()
		return fmt.Errorf("gcs cache: uploading gs://%s/%s: %w", s.bucket, obj, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("gcs cache: finalizing gs://%s/%s: %w", s.bucket, obj, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	obj := s.object(key)
	if err := s.client.Bucket(s.bucket).Object(obj).Delete(ctx); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("gcs cache: deleting gs://%s/%s: %w", s.bucket, obj, err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: s.object(prefix)})

	var keys []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("gcs cache: listing gs://%s/%s: %w", s.bucket, s.object(prefix), err)
		}
		keys = append(keys, s.unprefixed(attrs.Name))
	}
	return keys, nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	obj := s.object(key)
	if _, err := s.client.Bucket(s.bucket).Object(obj).Attrs(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("gcs cache: checking gs://%s/%s: %w", s.bucket, obj, err)
	}
	return true, nil
}

func (s *Store) Lock(ctx context.Context, key string, info cache.LockInfo) (cache.Lock, error) {
	lockObj := s.object(key + ".lock")

	if held, ok := s.fetchLockInfo(ctx, lockObj); ok && time.Since(held.Created) < staleLockAfter {
		return nil, &cache.LockError{Info: held, Err: cache.ErrLocked}
	}

	info.ID = uuid.New().String()
	info.Path = key
	info.Created = time.Now()

	payload, err := json.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("gcs cache: marshaling lock info: %w", err)
	}

	w := s.client.Bucket(s.bucket).Object(lockObj).NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(payload); err != nil {
		w.Close()
		return nil, fmt.Errorf("gcs cache: writing lock gs://%s/%s: %w", s.bucket, lockObj, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("gcs cache: finalizing lock gs://%s/%s: %w", s.bucket, lockObj, err)
	}

	return &gcsLock{client: s.client, bucket: s.bucket, obj: lockObj, info: info}, nil
}

func (s *Store) fetchLockInfo(ctx context.Context, obj string) (cache.LockInfo, bool) {
	reader, err := s.client.Bucket(s.bucket).Object(obj).NewReader(ctx)
	if err != nil {
		return cache.LockInfo{}, false
	}
	defer reader.Close()

	var info cache.LockInfo
	if err := json.NewDecoder(reader).Decode(&info); err != nil {
		return cache.LockInfo{}, false
	}
	return info, true
}

func (s *Store) object(key string) string {
	if s.prefix == "" {
		return key
	}
	return path.Join(s.prefix, key)
}

func (s *Store) unprefixed(objName string) string {
	if s.prefix == "" {
		return objName
	}
	return strings.TrimPrefix(strings.TrimPrefix(objName, s.prefix), "/")
}

// Close releases the underlying GCS client's resources.
func (s *Store) Close() error { return s.client.Close() }

type gcsLock struct {
	client *storage.Client
	bucket string
	obj    string
	info   cache.LockInfo
}

func (l *gcsLock) ID() string { return l.info.ID }

func (l *gcsLock) Unlock(ctx context.Context) error {
	err := l.client.Bucket(l.bucket).Object(l.obj).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("gcs cache: releasing lock gs://%s/%s: %w", l.bucket, l.obj, err)
	}
	return nil
}

func (l *gcsLock) Info() cache.LockInfo { return l.info }

var _ cache.Store = (*Store)(nil)
