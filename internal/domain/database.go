package domain

import "context"

type Database interface {
	Dump(ctx context.Context, outputPath string) error
	DataDirectory(ctx context.Context) (string, error)
	GetName() string
	Ping(ctx context.Context) error
}
