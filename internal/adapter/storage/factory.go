package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/semmidev/pgkeep/internal/config"
	"github.com/semmidev/pgkeep/internal/domain"
	"github.com/semmidev/pgkeep/internal/infrastructure/command"
)

const (
	SchemeS3     = "s3"
	SchemeGCS    = "gs"
	SchemeGDrive = "gdrive"
	SchemeAzure  = "azblob"
	SchemeFile   = "file"
	SchemeRclone = "rclone"
)

// Target is a parsed upload destination. Anything without a known scheme is
// handed to rclone verbatim.
type Target struct {
	Scheme string
	Bucket string // bucket, container, folder id or rclone remote
	Prefix string
	Path   string // file:// only
}

func ParseDestination(raw string) (Target, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Target{}, fmt.Errorf("%w: empty destination", domain.ErrUnsupportedDestination)
	}

	if !strings.Contains(raw, "://") {
		return Target{Scheme: SchemeRclone, Bucket: raw}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Target{}, fmt.Errorf("%w: %v", domain.ErrUnsupportedDestination, err)
	}

	prefix := strings.Trim(u.Path, "/")

	switch u.Scheme {
	case SchemeFile:
		if u.Path == "" {
			return Target{}, fmt.Errorf("%w: file destination needs an absolute path", domain.ErrUnsupportedDestination)
		}
		return Target{Scheme: SchemeFile, Path: u.Path}, nil
	case SchemeS3, SchemeGCS, SchemeGDrive:
		if u.Host == "" {
			return Target{}, fmt.Errorf("%w: %s destination needs a bucket or folder", domain.ErrUnsupportedDestination, u.Scheme)
		}
		return Target{Scheme: u.Scheme, Bucket: u.Host, Prefix: prefix}, nil
	case SchemeAzure:
		// azblob://account/container[/prefix]
		container, rest, _ := strings.Cut(prefix, "/")
		if u.Host == "" || container == "" {
			return Target{}, fmt.Errorf("%w: azblob destination must be azblob://account/container", domain.ErrUnsupportedDestination)
		}
		return Target{Scheme: SchemeAzure, Bucket: container, Prefix: rest, Path: u.Host}, nil
	default:
		return Target{}, fmt.Errorf("%w: scheme %q", domain.ErrUnsupportedDestination, u.Scheme)
	}
}

// NewRemote builds the storage for cfg.Destination.
func NewRemote(ctx context.Context, cfg config.UploadConfig, runner command.Runner) (domain.RemoteStorage, error) {
	target, err := ParseDestination(cfg.Destination)
	if err != nil {
		return nil, err
	}

	switch target.Scheme {
	case SchemeFile:
		return NewLocal(target.Path), nil
	case SchemeS3:
		return NewS3(ctx, target.Bucket, target.Prefix, cfg.S3)
	case SchemeGCS:
		return NewGCS(ctx, target.Bucket, target.Prefix, cfg.GCS.CredentialsFile)
	case SchemeGDrive:
		return NewGDrive(ctx, target.Bucket, cfg.GDrive)
	case SchemeAzure:
		account := cfg.Azure.AccountName
		if account == "" {
			account = target.Path
		}
		return NewAzure(account, cfg.Azure.AccountKey, target.Bucket, target.Prefix)
	default:
		return NewRclone(target.Bucket, cfg.RclonePath, cfg.RcloneConfig, runner), nil
	}
}
