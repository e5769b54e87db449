package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

type GCSStorage struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCS creates a GCSStorage for gs://bucket/prefix. Without a credentials
// file the application default credentials are used.
func NewGCS(ctx context.Context, bucket, prefix, credentialsFile string) (*GCSStorage, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &GCSStorage{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}, nil
}

func (g *GCSStorage) object(name string) string {
	if g.prefix == "" {
		return name
	}
	return path.Join(g.prefix, name)
}

func (g *GCSStorage) Upload(ctx context.Context, localPath string, remoteName string) (err error) {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	writer := g.client.Bucket(g.bucket).Object(g.object(remoteName)).NewWriter(ctx)
	writer.ContentType = "application/octet-stream"

	if _, err := io.Copy(writer, file); err != nil {
		writer.Close()
		return fmt.Errorf("failed to upload to GCS: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize GCS upload: %w", err)
	}

	return nil
}

func (g *GCSStorage) walk(ctx context.Context, fn func(name string, updated time.Time)) error {
	query := &storage.Query{Delimiter: "/"}
	if g.prefix != "" {
		query.Prefix = g.prefix + "/"
	}

	it := g.client.Bucket(g.bucket).Objects(ctx, query)
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to list GCS objects: %w", err)
		}
		if attrs.Name == "" {
			// synthetic prefix entry
			continue
		}
		fn(strings.TrimPrefix(attrs.Name, query.Prefix), attrs.Updated)
	}
}

func (g *GCSStorage) List(ctx context.Context) ([]string, error) {
	var files []string
	err := g.walk(ctx, func(name string, _ time.Time) {
		files = append(files, name)
	})
	return files, err
}

func (g *GCSStorage) Delete(ctx context.Context, remoteName string) error {
	if err := g.client.Bucket(g.bucket).Object(g.object(remoteName)).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete from GCS: %w", err)
	}
	return nil
}

func (g *GCSStorage) GetOldFiles(ctx context.Context, cutoffTime time.Time) ([]string, error) {
	var oldFiles []string
	err := g.walk(ctx, func(name string, updated time.Time) {
		if updated.Before(cutoffTime) {
			oldFiles = append(oldFiles, name)
		}
	})
	return oldFiles, err
}

func (g *GCSStorage) String() string {
	if g.prefix == "" {
		return "gs://" + g.bucket
	}
	return "gs://" + g.bucket + "/" + g.prefix
}

func (g *GCSStorage) Validate(ctx context.Context) error {
	if _, err := g.client.Bucket(g.bucket).Attrs(ctx); err != nil {
		return fmt.Errorf("bucket %s is not reachable: %w", g.bucket, err)
	}
	return nil
}

func (g *GCSStorage) Close() error {
	return g.client.Close()
}
