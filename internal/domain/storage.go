package domain

import (
	"context"
	"time"
)

type Storage interface {
	Upload(ctx context.Context, localPath string, remoteName string) error
	List(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, remoteName string) error
	GetOldFiles(ctx context.Context, cutoffTime time.Time) ([]string, error)
}

// Destination describes where uploads go; it is what appears in logs and mails.
type Destination interface {
	String() string
}

// RemoteStorage is a Storage that can also describe and check its target.
type RemoteStorage interface {
	Storage
	Destination
	Validate(ctx context.Context) error
}
