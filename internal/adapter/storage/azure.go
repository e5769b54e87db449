package storage

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/Azure/azure-storage-blob-go/azblob"
)

type AzureStorage struct {
	container azblob.ContainerURL
	account   string
	name      string
	prefix    string
}

// NewAzure creates an AzureStorage for azblob://account/container/prefix.
func NewAzure(accountName, accountKey, container, prefix string) (*AzureStorage, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credentials: %w", err)
	}

	pipeline := azblob.NewPipeline(credential, azblob.PipelineOptions{})

	serviceURL, err := url.Parse(fmt.Sprintf("https://%s.blob.core.windows.net", accountName))
	if err != nil {
		return nil, fmt.Errorf("failed to parse Azure service URL: %w", err)
	}

	return &AzureStorage{
		container: azblob.NewServiceURL(*serviceURL, pipeline).NewContainerURL(container),
		account:   accountName,
		name:      container,
		prefix:    strings.Trim(prefix, "/"),
	}, nil
}

func (a *AzureStorage) blobName(name string) string {
	if a.prefix == "" {
		return name
	}
	return path.Join(a.prefix, name)
}

func (a *AzureStorage) Upload(ctx context.Context, localPath string, remoteName string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	blobURL := a.container.NewBlockBlobURL(a.blobName(remoteName))
	_, err = azblob.UploadFileToBlockBlob(ctx, file, blobURL, azblob.UploadToBlockBlobOptions{
		BlockSize:   4 * 1024 * 1024,
		Parallelism: 4,
		BlobHTTPHeaders: azblob.BlobHTTPHeaders{
			ContentType: "application/octet-stream",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to upload to Azure: %w", err)
	}

	return nil
}

func (a *AzureStorage) walk(ctx context.Context, fn func(name string, modified time.Time)) error {
	listPrefix := ""
	if a.prefix != "" {
		listPrefix = a.prefix + "/"
	}

	for marker := (azblob.Marker{}); marker.NotDone(); {
		resp, err := a.container.ListBlobsFlatSegment(ctx, marker, azblob.ListBlobsSegmentOptions{
			Prefix: listPrefix,
		})
		if err != nil {
			return fmt.Errorf("failed to list Azure blobs: %w", err)
		}

		for _, blob := range resp.Segment.BlobItems {
			name := strings.TrimPrefix(blob.Name, listPrefix)
			if name == "" || strings.Contains(name, "/") {
				continue
			}
			fn(name, blob.Properties.LastModified)
		}

		marker = resp.NextMarker
	}
	return nil
}

func (a *AzureStorage) List(ctx context.Context) ([]string, error) {
	var files []string
	err := a.walk(ctx, func(name string, _ time.Time) {
		files = append(files, name)
	})
	return files, err
}

func (a *AzureStorage) Delete(ctx context.Context, remoteName string) error {
	blobURL := a.container.NewBlockBlobURL(a.blobName(remoteName))
	if _, err := blobURL.Delete(ctx, azblob.DeleteSnapshotsOptionInclude, azblob.BlobAccessConditions{}); err != nil {
		return fmt.Errorf("failed to delete from Azure: %w", err)
	}
	return nil
}

func (a *AzureStorage) GetOldFiles(ctx context.Context, cutoffTime time.Time) ([]string, error) {
	var oldFiles []string
	err := a.walk(ctx, func(name string, modified time.Time) {
		if modified.Before(cutoffTime) {
			oldFiles = append(oldFiles, name)
		}
	})
	return oldFiles, err
}

func (a *AzureStorage) String() string {
	dest := "azblob://" + a.account + "/" + a.name
	if a.prefix != "" {
		dest += "/" + a.prefix
	}
	return dest
}

func (a *AzureStorage) Validate(ctx context.Context) error {
	if _, err := a.container.GetProperties(ctx, azblob.LeaseAccessConditions{}); err != nil {
		return fmt.Errorf("container %s is not reachable: %w", a.name, err)
	}
	return nil
}
