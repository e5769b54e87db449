package usecase

import "github.com/semmidev/pgkeep/internal/domain"

type Logger interface {
	Infof(template string, args ...interface{})
	Errorf(template string, args ...interface{})
	Warnf(template string, args ...interface{})
}

// LogTail exposes the most recent log lines for failure reports.
type LogTail interface {
	Tail(n int) ([]string, error)
}

// LocalStorage is the backup directory on this host.
type LocalStorage interface {
	domain.Storage
	GetPath(filename string) string
	EnsureDir() error
}
