package storage

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/semmidev/pgkeep/internal/config"
)

type GDriveStorage struct {
	service  *drive.Service
	folderID string
}

// GoogleOAuthConfig reads an OAuth client secret scoped to files this app creates.
func GoogleOAuthConfig(clientSecretPath string) (*oauth2.Config, error) {
	b, err := os.ReadFile(clientSecretPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read client secret: %w", err)
	}

	cfg, err := google.ConfigFromJSON(b, drive.DriveFileScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret: %w", err)
	}
	return cfg, nil
}

// NewGDrive authenticates with a refresh token when one is configured,
// otherwise with a service account credentials file.
func NewGDrive(ctx context.Context, folderID string, cfg config.GDriveConfig) (*GDriveStorage, error) {
	var opts []option.ClientOption

	switch {
	case cfg.RefreshToken != "" && cfg.ClientSecretFile != "":
		oauthCfg, err := GoogleOAuthConfig(cfg.ClientSecretFile)
		if err != nil {
			return nil, err
		}
		token := &oauth2.Token{RefreshToken: cfg.RefreshToken}
		opts = append(opts, option.WithTokenSource(oauthCfg.TokenSource(ctx, token)))
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	default:
		return nil, fmt.Errorf("gdrive needs credentials_file or client_secret_file with refresh_token")
	}

	service, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}

	return &GDriveStorage{
		service:  service,
		folderID: folderID,
	}, nil
}

func escapeQuery(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}

func (g *GDriveStorage) Upload(ctx context.Context, localPath string, remoteName string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	fileMetadata := &drive.File{
		Name:    remoteName,
		Parents: []string{g.folderID},
	}

	_, err = g.service.Files.Create(fileMetadata).
		Media(file).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to upload to gdrive: %w", err)
	}

	return nil
}

func (g *GDriveStorage) query(ctx context.Context, q string, fn func(*drive.File)) error {
	return g.service.Files.List().
		Q(q).
		Fields("nextPageToken, files(id, name, createdTime)").
		Context(ctx).
		Pages(ctx, func(page *drive.FileList) error {
			for _, f := range page.Files {
				fn(f)
			}
			return nil
		})
}

func (g *GDriveStorage) List(ctx context.Context) ([]string, error) {
	q := fmt.Sprintf("'%s' in parents and trashed=false", escapeQuery(g.folderID))

	var files []string
	if err := g.query(ctx, q, func(f *drive.File) { files = append(files, f.Name) }); err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	return files, nil
}

func (g *GDriveStorage) Delete(ctx context.Context, remoteName string) error {
	q := fmt.Sprintf("'%s' in parents and name='%s' and trashed=false",
		escapeQuery(g.folderID), escapeQuery(remoteName))

	var ids []string
	if err := g.query(ctx, q, func(f *drive.File) { ids = append(ids, f.Id) }); err != nil {
		return fmt.Errorf("failed to find file: %w", err)
	}

	if len(ids) == 0 {
		return fmt.Errorf("file not found: %s", remoteName)
	}

	for _, id := range ids {
		if err := g.service.Files.Delete(id).Context(ctx).Do(); err != nil {
			return fmt.Errorf("failed to delete file: %w", err)
		}
	}

	return nil
}

func (g *GDriveStorage) GetOldFiles(ctx context.Context, cutoffTime time.Time) ([]string, error) {
	q := fmt.Sprintf("'%s' in parents and trashed=false and createdTime < '%s'",
		escapeQuery(g.folderID),
		cutoffTime.UTC().Format(time.RFC3339))

	var files []string
	if err := g.query(ctx, q, func(f *drive.File) { files = append(files, f.Name) }); err != nil {
		return nil, fmt.Errorf("failed to list old files: %w", err)
	}
	return files, nil
}

func (g *GDriveStorage) String() string {
	return "gdrive://" + g.folderID
}

func (g *GDriveStorage) Validate(ctx context.Context) error {
	if _, err := g.service.Files.Get(g.folderID).Fields("id").Context(ctx).Do(); err != nil {
		return fmt.Errorf("folder %s is not reachable: %w", g.folderID, err)
	}
	return nil
}
