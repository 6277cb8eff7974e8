package repo

import (
	"context"
	"database/sql"
	"net"
	"net/url"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/tinoosan/launcher/internal/data"
)

// Keys of the launcher_settings table.
const (
	keyInstallPath    = "install_path"
	keyCommandLine    = "command_line"
	keyCurrentVersion = "current_version"
)

// PostgresRepo implements SettingsRepo backed by PostgreSQL. Settings live
// as key/value rows in `launcher_settings`.
type PostgresRepo struct {
	db *sql.DB
}

// NewPostgresRepo constructs a repository using the provided DSN.
func NewPostgresRepo(dsn string) (*PostgresRepo, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	r := &PostgresRepo{db: db}
	if err := r.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

// NewPostgresRepoFromEnv builds the DSN from POSTGRES_* variables.
func NewPostgresRepoFromEnv() (*PostgresRepo, error) {
	return NewPostgresRepo(dsnFromEnv())
}

// dsnFromEnv recognizes (with defaults):
//
//	POSTGRES_HOST (localhost), POSTGRES_PORT (5432), POSTGRES_DB (launcher),
//	POSTGRES_USER (launcher), POSTGRES_PASSWORD (empty), POSTGRES_SSLMODE (disable)
//
// Credentials and db name are URL-encoded.
func dsnFromEnv() string {
	host := getenv("POSTGRES_HOST", "localhost")
	port := getenv("POSTGRES_PORT", "5432")
	db := getenv("POSTGRES_DB", "launcher")
	user := getenv("POSTGRES_USER", "launcher")
	pass := getenv("POSTGRES_PASSWORD", "")
	ssl := getenv("POSTGRES_SSLMODE", "disable")

	u := &url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(user, pass),
		Host:   net.JoinHostPort(host, port),
		Path:   "/" + db,
	}
	q := url.Values{}
	q.Set("sslmode", ssl)
	u.RawQuery = q.Encode()
	return u.String()
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func (r *PostgresRepo) Close() error { return r.db.Close() }

func (r *PostgresRepo) ensureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS launcher_settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`)
	return err
}

const upsertSetting = `
INSERT INTO launcher_settings (key, value, updated_at) VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`

// Load implements SettingsReader.Load
func (r *PostgresRepo) Load(ctx context.Context) (data.Settings, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key, value FROM launcher_settings`)
	if err != nil {
		return data.Settings{}, err
	}
	defer rows.Close()
	kv := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return data.Settings{}, err
		}
		kv[k] = v
	}
	if err := rows.Err(); err != nil {
		return data.Settings{}, err
	}
	return settingsFromRows(kv)
}

// Save implements SettingsWriter.Save in a single transaction.
func (r *PostgresRepo) Save(ctx context.Context, s data.Settings) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		// Safe rollback when not committed
		_ = tx.Rollback()
	}()
	for k, v := range settingsToRows(s) {
		if _, err := tx.ExecContext(ctx, upsertSetting, k, v); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SetCurrentVersion implements SettingsWriter.SetCurrentVersion
func (r *PostgresRepo) SetCurrentVersion(ctx context.Context, version string) error {
	_, err := r.db.ExecContext(ctx, upsertSetting, keyCurrentVersion, version)
	return err
}

func settingsFromRows(kv map[string]string) (data.Settings, error) {
	if len(kv) == 0 {
		return data.Settings{}, ErrNotFound
	}
	return data.Settings{
		InstallPath:    kv[keyInstallPath],
		CommandLine:    kv[keyCommandLine],
		CurrentVersion: kv[keyCurrentVersion],
	}, nil
}

func settingsToRows(s data.Settings) map[string]string {
	return map[string]string{
		keyInstallPath:    s.InstallPath,
		keyCommandLine:    s.CommandLine,
		keyCurrentVersion: s.CurrentVersion,
	}
}
