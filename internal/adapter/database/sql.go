package database

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"

	"github.com/semmidev/pgkeep/internal/config"
)

const defaultSocketDir = "/var/run/postgresql"

// OpenSQL opens a lib/pq handle for the configured server. No connection is
// made until the first query.
func OpenSQL(cfg config.PostgresConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// DSN renders a key/value connection string.
func DSN(cfg config.PostgresConfig) string {
	host := cfg.Host
	if host == "" {
		host = defaultSocketDir
	}

	pairs := []string{
		"host=" + quoteDSN(host),
		"dbname=" + quoteDSN(cfg.Database),
	}
	if cfg.Port != 0 {
		pairs = append(pairs, fmt.Sprintf("port=%d", cfg.Port))
	}
	if cfg.User != "" {
		pairs = append(pairs, "user="+quoteDSN(cfg.User))
	}
	if cfg.Password != "" {
		pairs = append(pairs, "password="+quoteDSN(cfg.Password))
	}

	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	pairs = append(pairs, "sslmode="+quoteDSN(sslMode))

	return strings.Join(pairs, " ")
}

func quoteDSN(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}
