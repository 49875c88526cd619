package objstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"

	"quarry/internal/config"
	"quarry/internal/domain"
)

// Compile-time check.
var _ Store = (*AzureStore)(nil)

// AzureStore lists and presigns (SAS) objects in Azure Blob Storage using
// shared-key credentials.
type AzureStore struct {
	client *azblob.Client
}

// NewAzureStore creates an AzureStore. A connection string wins over account
// name + key.
func NewAzureStore(cfg *config.Config) (*AzureStore, error) {
	if !cfg.HasAzureConfig() {
		return nil, fmt.Errorf("Azure config is incomplete")
	}

	if cfg.AzureConnectionString != "" {
		client, err := azblob.NewClientFromConnectionString(cfg.AzureConnectionString, nil)
		if err != nil {
			return nil, fmt.Errorf("create Azure blob client: %w", err)
		}
		return &AzureStore{client: client}, nil
	}

	sharedKeyCred, err := azblob.NewSharedKeyCredential(cfg.AzureAccountName, cfg.AzureAccountKey)
	if err != nil {
		return nil, fmt.Errorf("create shared key credential: %w", err)
	}
	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net", cfg.AzureAccountName)
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, sharedKeyCred, nil)
	if err != nil {
		return nil, fmt.Errorf("create Azure blob client: %w", err)
	}
	return &AzureStore{client: client}, nil
}

// List enumerates blobs under an az://container/prefix location matching pattern.
func (s *AzureStore) List(ctx context.Context, location, pattern string) ([]domain.StorageObject, error) {
	container, prefix, err := parseAzureLocation(location)
	if err != nil {
		return nil, err
	}

	opts := &azblob.ListBlobsFlatOptions{}
	if prefix != "" {
		p := prefix + "/"
		opts.Prefix = &p
	}

	var objects []domain.StorageObject
	pager := s.client.NewListBlobsFlatPager(container, opts)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list az://%s/%s: %w", container, prefix, err)
		}
		for _, blob := range page.Segment.BlobItems {
			if blob.Name == nil {
				continue
			}
			name := *blob.Name
			rel := name
			if prefix != "" {
				rel = strings.TrimPrefix(name, prefix+"/")
			}
			if !MatchPattern(pattern, rel) {
				continue
			}
			var size int64
			if blob.Properties != nil && blob.Properties.ContentLength != nil {
				size = *blob.Properties.ContentLength
			}
			objects = append(objects, domain.StorageObject{
				Path:      "az://" + container + "/" + name,
				SizeBytes: size,
			})
		}
	}
	return objects, nil
}

// PresignDownload generates a SAS GET URL for an Azure blob. path may use the
// az://, abfss:// or https:// form.
func (s *AzureStore) PresignDownload(_ context.Context, path string, expiry time.Duration) (string, error) {
	container, key, err := parseAzurePath(path)
	if err != nil {
		return "", fmt.Errorf("parse Azure path %q: %w", path, err)
	}

	blobClient := s.client.ServiceClient().NewContainerClient(container).NewBlobClient(key)
	sasURL, err := blobClient.GetSASURL(sas.BlobPermissions{Read: true}, time.Now().Add(expiry), nil)
	if err != nil {
		return "", fmt.Errorf("generate SAS URL for %q: %w", path, err)
	}
	return sasURL, nil
}

// parseAzurePath extracts container and key from an Azure storage URI.
//
// Supported formats:
//
//	abfss://container@account.dfs.core.windows.net/path/to/file
//	az://container/path/to/file
//	https://account.blob.core.windows.net/container/path/to/file
func parseAzurePath(path string) (container, key string, err error) {
	container, key, err = parseAzureLocation(path)
	if err != nil {
		return "", "", err
	}
	if key == "" {
		return "", "", fmt.Errorf("empty key in Azure path %q", path)
	}
	return container, key, nil
}

// parseAzureLocation is like parseAzurePath but permits an empty key, for
// container-root dataset locations.
func parseAzureLocation(location string) (container, prefix string, err error) {
	u, err := url.Parse(location)
	if err != nil {
		return "", "", fmt.Errorf("parse Azure path %q: %w", location, err)
	}

	switch u.Scheme {
	case "abfss":
		// abfss://container@account.dfs.core.windows.net/path — url.Parse
		// treats the container as userinfo.
		if u.User == nil {
			return "", "", fmt.Errorf("abfss path %q missing container@account component", location)
		}
		container = u.User.Username()
		prefix = strings.Trim(u.Path, "/")

	case "az":
		container = u.Host
		prefix = strings.Trim(u.Path, "/")

	case "https":
		if !strings.Contains(u.Host, ".blob.core.windows.net") {
			return "", "", fmt.Errorf("unrecognized Azure HTTPS host %q in path %q", u.Host, location)
		}
		trimmed := strings.Trim(u.Path, "/")
		container, prefix, _ = strings.Cut(trimmed, "/")

	default:
		return "", "", fmt.Errorf("unrecognized Azure path scheme %q in %q", u.Scheme, location)
	}

	if container == "" {
		return "", "", fmt.Errorf("empty container in Azure path %q", location)
	}
	return container, prefix, nil
}
