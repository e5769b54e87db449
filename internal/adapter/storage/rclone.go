package storage

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/semmidev/pgkeep/internal/infrastructure/command"
)

// RcloneStorage copies artifacts with rclone to any configured remote, e.g.
// "b2:bucket/postgres".
type RcloneStorage struct {
	binary string
	config string
	remote string
	runner command.Runner
}

func NewRclone(remote, binary, configPath string, runner command.Runner) *RcloneStorage {
	if binary == "" {
		binary = "rclone"
	}
	if runner == nil {
		runner = command.NewExecRunner()
	}
	return &RcloneStorage{
		binary: binary,
		config: configPath,
		remote: strings.TrimRight(remote, "/"),
		runner: runner,
	}
}

func (r *RcloneStorage) target(name string) string {
	if strings.HasSuffix(r.remote, ":") {
		return r.remote + name
	}
	return r.remote + "/" + name
}

func (r *RcloneStorage) run(ctx context.Context, args ...string) ([]byte, error) {
	if r.config != "" {
		args = append([]string{"--config", r.config}, args...)
	}
	return r.runner.Run(ctx, command.Command{Name: r.binary, Args: args})
}

// Upload copies the file; rclone copyto never removes the source.
func (r *RcloneStorage) Upload(ctx context.Context, localPath string, remoteName string) error {
	if _, err := r.run(ctx, "copyto", localPath, r.target(remoteName)); err != nil {
		return fmt.Errorf("rclone copy to %s: %w", r.remote, err)
	}
	return nil
}

func (r *RcloneStorage) lsf(ctx context.Context, extra ...string) ([]string, error) {
	args := append([]string{"lsf", "--files-only", "--max-depth", "1"}, extra...)
	args = append(args, r.remote)

	out, err := r.run(ctx, args...)
	if err != nil {
		return nil, err
	}

	var files []string
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			files = append(files, line)
		}
	}
	return files, scanner.Err()
}

func (r *RcloneStorage) List(ctx context.Context) ([]string, error) {
	files, err := r.lsf(ctx)
	if err != nil {
		return nil, fmt.Errorf("rclone list %s: %w", r.remote, err)
	}
	return files, nil
}

func (r *RcloneStorage) Delete(ctx context.Context, remoteName string) error {
	if _, err := r.run(ctx, "deletefile", r.target(remoteName)); err != nil {
		return fmt.Errorf("rclone delete %s: %w", remoteName, err)
	}
	return nil
}

func (r *RcloneStorage) GetOldFiles(ctx context.Context, cutoffTime time.Time) ([]string, error) {
	age := time.Since(cutoffTime)
	if age < 0 {
		age = 0
	}

	files, err := r.lsf(ctx, "--min-age", fmt.Sprintf("%ds", int64(age.Seconds())))
	if err != nil {
		return nil, fmt.Errorf("rclone list old files on %s: %w", r.remote, err)
	}
	return files, nil
}

func (r *RcloneStorage) String() string {
	return r.remote
}

func (r *RcloneStorage) Validate(ctx context.Context) error {
	if _, err := command.LookPath(r.binary); err != nil {
		return fmt.Errorf("rclone binary %q not found: %w", r.binary, err)
	}
	if _, err := r.lsf(ctx); err != nil {
		return fmt.Errorf("remote %s is not reachable: %w", r.remote, err)
	}
	return nil
}
