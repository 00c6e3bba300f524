// Package azurerm implements an Azure Blob Storage fetch cache backend.
package azurerm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
	"github.com/architect-io/zenboard/pkg/zfile/cache"
	"github.com/google/uuid"
)

func init() {
	cache.Register("azurerm", NewStore)
}

const staleLockAfter = time.Hour

// Store implements cache.Store over Azure Blob Storage.
type Store struct {
	client        *azblob.Client
	containerName string
	prefix        string
}

// NewStore builds an Azure-backed store. config requires
// "storage_account_name" and "container_name"; authentication picks, in
// order, "access_key", "sas_token", "connection_string", or falls back to
// azidentity.DefaultAzureCredential.
func NewStore(cfg map[string]string) (cache.Store, error) {
	storageAccount := cfg["storage_account_name"]
	if storageAccount == "" {
		return nil, fmt.Errorf("azurerm cache backend requires 'storage_account_name' configuration")
	}
	containerName := cfg["container_name"]
	if containerName == "" {
		return nil, fmt.Errorf("azurerm cache backend requires 'container_name' configuration")
	}

	serviceURL := cfg["endpoint"]
	if serviceURL == "" {
		serviceURL = fmt.Sprintf("https://%s.blob.core.windows.net/", storageAccount)
	}

	client, err := buildClient(storageAccount, serviceURL, cfg)
	if err != nil {
		return nil, fmt.Errorf("azurerm cache: %w", err)
	}

	return &Store{client: client, containerName: containerName, prefix: cfg["prefix"]}, nil
}

// buildClient picks a credential scheme from whichever of the four config
// keys is set, preferring the most explicit (a raw key) over the most
// ambient (workload identity / managed identity via DefaultAzureCredential).
func buildClient(account, serviceURL string, cfg map[string]string) (*azblob.Client, error) {
	if key := cfg["access_key"]; key != "" {
		cred, err := azblob.NewSharedKeyCredential(account, key)
		if err != nil {
			return nil, fmt.Errorf("building shared key credential: %w", err)
		}
		return azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	}
	if sas := cfg["sas_token"]; sas != "" {
		sep := "?"
		if strings.Contains(serviceURL, "?") {
			sep = "&"
		}
		return azblob.NewClientWithNoCredential(serviceURL+sep+strings.TrimPrefix(sas, "?"), nil)
	}
	if conn := cfg["connection_string"]; conn != "" {
		return azblob.NewClientFromConnectionString(conn, nil)
	}

	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("resolving default Azure credential: %w", err)
	}
	return azblob.NewClient(serviceURL, cred, nil)
}

func (s *Store) Type() string { return "azurerm" }

func (s *Store) Read(ctx context.Context, key string) (io.ReadCloser, error) {
	blobPath := s.path(key)
	resp, err := s.client.DownloadStream(ctx, s.containerName, blobPath, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil, cache.ErrNotFound
		}
		return nil, fmt.Errorf("azurerm cache: reading azure://%s/%s: %w", s.containerName, blobPath, err)
	}
	return resp.Body, nil
}

// Write is a no-op when the key already names a blob: content-addressed
// keys can't change meaning between writers, so the second and later
// fetchers racing zfile.DefaultProvider.acquireLock for the same key have
// nothing left to upload once the first has won.
func (s *Store) Write(ctx context.Context, key string, data io.Reader) error {
	if exists, err := s.Exists(ctx, key); err != nil {
		return err
	} else if exists {
		return nil
	}

	blobPath := s.path(key)
	content, err := io.ReadAll(data)
	if err != nil {
		return fmt.Errorf("azurerm cache: buffering upload for %s: %w", key, err)
	}

	_, err = s.client.UploadBuffer(ctx, s.containerName, blobPath, content, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: toPtr("application/octet-stream")},
	})
	if err != nil {
		return fmt.Errorf("azurerm cache: uploading azure://%s/%s: %w", s.containerName, blobPath, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	blobPath := s.path(key)
	_, err := s.client.DeleteBlob(ctx, s.containerName, blobPath, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.BlobNotFound) {
		return fmt.Errorf("azurerm cache: deleting azure://%s/%s: %w", s.containerName, blobPath, err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	fullPrefix := s.path(prefix)
	pager := s.client.NewListBlobsFlatPager(s.containerName, &container.ListBlobsFlatOptions{Prefix: &fullPrefix})

	var keys []string
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("azurerm cache: listing azure://%s/%s: %w", s.containerName, fullPrefix, err)
		}
		for _, b := range page.Segment.BlobItems {
			if b.Name != nil {
				keys = append(keys, s.unprefixed(*b.Name))
			}
		}
	}
	return keys, nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	blobPath := s.path(key)
	_, err := s.client.ServiceClient().NewContainerClient(s.containerName).NewBlobClient(blobPath).GetProperties(ctx, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if (errors.As(err, &respErr) && respErr.StatusCode == 404) || bloberror.HasCode(err, bloberror.BlobNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("azurerm cache: checking azure://%s/%s: %w", s.containerName, blobPath, err)
	}
	return true, nil
}

func (s *Store) Lock(ctx context.Context, key string, info cache.LockInfo) (cache.Lock, error) {
	lockPath := s.path(key + ".lock")

	if held, ok := s.fetchLockInfo(ctx, lockPath); ok && time.Since(held.Created) < staleLockAfter {
		return nil, &cache.LockError{Info: held, Err: cache.ErrLocked}
	}

	info.ID = uuid.New().String()
	info.Path = key
	info.Created = time.Now()

	payload, err := json.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("azurerm cache: marshaling lock info: %w", err)
	}

	_, err = s.client.UploadBuffer(ctx, s.containerName, lockPath, payload, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: toPtr("application/json")},
	})
	if err != nil {
		return nil, fmt.Errorf("azurerm cache: writing lock azure://%s/%s: %w", s.containerName, lockPath, err)
	}

	return &azureLock{client: s.client, container: s.containerName, path: lockPath, info: info}, nil
}

func (s *Store) fetchLockInfo(ctx context.Context, lockPath string) (cache.LockInfo, bool) {
	resp, err := s.client.DownloadStream(ctx, s.containerName, lockPath, nil)
	if err != nil {
		return cache.LockInfo{}, false
	}
	defer resp.Body.Close()

	var info cache.LockInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return cache.LockInfo{}, false
	}
	return info, true
}

func (s *Store) path(key string) string {
	if s.prefix == "" {
		return key
	}
	return path.Join(s.prefix, key)
}

func (s *Store) unprefixed(blobName string) string {
	if s.prefix == "" {
		return blobName
	}
	return strings.TrimPrefix(strings.TrimPrefix(blobName, s.prefix), "/")
}

type azureLock struct {
	client    *azblob.Client
	container string
	path      string
	info      cache.LockInfo
}

func (l *azureLock) ID() string { return l.info.ID }

func (l *azureLock) Unlock(ctx context.Context) error {
	_, err := l.client.DeleteBlob(ctx, l.container, l.path, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.BlobNotFound) {
		return fmt.Errorf("azurerm cache: releasing lock azure://%s/%s: %w", l.container, l.path, err)
	}
	return nil
}

func (l *azureLock) Info() cache.LockInfo { return l.info }

var _ cache.Store = (*Store)(nil)

func toPtr[T any](v T) *T { return &v }
