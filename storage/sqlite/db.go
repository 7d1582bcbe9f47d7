package sqlite

import (
	"database/sql"
	"embed"
	"fmt"
	stdfs "io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var migFileRe = regexp.MustCompile(`^([0-9]{4})_(.+)\.up\.sql$`)

// Open opens (or creates) a local SQLite database and applies pending migrations.
// Migrations are the embedded migrations/NNNN_name.up.sql files, tracked in
// schema_migrations.
func Open(path string) (*sql.DB, error) {
	if path == "" {
		path = "admissions.db"
	}
	if !strings.HasPrefix(path, "file:") && path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.Wrap(err, "[Open] create database directory")
		}
	}
	d, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "[Open] sql.Open")
	}
	if err := d.Ping(); err != nil {
		_ = d.Close()
		return nil, errors.Wrap(err, "[Open] ping")
	}
	// not supported for in-memory databases
	_, _ = d.Exec(`PRAGMA journal_mode=WAL`)
	if _, err := d.Exec(`PRAGMA busy_timeout=5000`); err != nil {
		_ = d.Close()
		return nil, errors.Wrap(err, "[Open] busy_timeout")
	}
	if err := migrate(d); err != nil {
		_ = d.Close()
		return nil, err
	}
	return d, nil
}

type migration struct {
	version int
	name    string
	file    string
}

func loadMigrations() ([]migration, error) {
	entries, err := stdfs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return nil, errors.Wrap(err, "[loadMigrations] read dir")
	}
	var migs []migration
	for _, e := range entries {
		m := migFileRe.FindStringSubmatch(e.Name())
		if e.IsDir() || m == nil {
			continue
		}
		var version int
		if _, err := fmt.Sscanf(m[1], "%04d", &version); err != nil {
			continue
		}
		migs = append(migs, migration{version: version, name: m[2], file: "migrations/" + e.Name()})
	}
	sort.Slice(migs, func(i, j int) bool { return migs[i].version < migs[j].version })
	return migs, nil
}

func migrate(d *sql.DB) error {
	if _, err := d.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
        version INTEGER PRIMARY KEY,
        applied_at TEXT NOT NULL DEFAULT (CURRENT_TIMESTAMP)
    )`); err != nil {
		return errors.Wrap(err, "[migrate] schema_migrations")
	}

	applied := map[int]bool{}
	rows, err := d.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return errors.Wrap(err, "[migrate] applied versions")
	}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return errors.Wrap(err, "[migrate] scan version")
		}
		applied[v] = true
	}
	rows.Close()

	migs, err := loadMigrations()
	if err != nil {
		return err
	}
	for _, m := range migs {
		if applied[m.version] {
			continue
		}
		text, err := migrationsFS.ReadFile(m.file)
		if err != nil {
			return errors.Wrapf(err, "[migrate] read %s", m.file)
		}
		tx, err := d.Begin()
		if err != nil {
			return errors.Wrap(err, "[migrate] begin")
		}
		if _, err := tx.Exec(string(text)); err != nil {
			_ = tx.Rollback()
			return errors.Wrapf(err, "[migrate] migration %04d failed", m.version)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations(version) VALUES(?)`, m.version); err != nil {
			_ = tx.Rollback()
			return errors.Wrap(err, "[migrate] record version")
		}
		if err := tx.Commit(); err != nil {
			return errors.Wrap(err, "[migrate] commit")
		}
		log.Info().Int("version", m.version).Str("name", m.name).Msg("Applied migration")
	}
	return nil
}
