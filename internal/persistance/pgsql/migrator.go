package pgsql

import (
	"bytes"
	"embed"
	"io/fs"
	"net/url"
	"path"
	"testing/fstest"
	"text/template"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const migrationsPath = "migration"

//go:embed migration/*.sql
var migrationsDir embed.FS

// Migrator применяет миграции схемы для таблицы ссылок.
type Migrator struct {
	connString string
	table      string
}

// NewMigrator создает мигратор для таблицы table.
func NewMigrator(connString, table string) *Migrator {
	return &Migrator{connString: connString, table: table}
}

// Up применяет все миграции.
func (m *Migrator) Up() error {
	const op = "migrate up"

	mg, err := m.create()
	if err != nil {
		return errors.Wrap(err, op)
	}
	defer closeMigrate(mg)

	if err := mg.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, op)
	}

	return nil
}

// Down откатывает все миграции.
func (m *Migrator) Down() error {
	const op = "migrate down"

	mg, err := m.create()
	if err != nil {
		return errors.Wrap(err, op)
	}
	defer closeMigrate(mg)

	if err := mg.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, op)
	}

	return nil
}

func (m *Migrator) create() (*migrate.Migrate, error) {
	const op = "create migrate"

	migrations, err := renderMigrations(m.table)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}

	d, err := iofs.New(migrations, migrationsPath)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}

	dsn, err := withMigrationsTable(m.connString, m.table)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}

	mg, err := migrate.NewWithSourceInstance("iofs", d, dsn)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}

	return mg, nil
}

func closeMigrate(m *migrate.Migrate) {
	_, _ = m.Close()
}

// renderMigrations подставляет имя таблицы в шаблоны миграций.
func renderMigrations(table string) (fs.FS, error) {
	entries, err := fs.ReadDir(migrationsDir, migrationsPath)
	if err != nil {
		return nil, err
	}

	data := struct{ Table string }{Table: pgx.Identifier{table}.Sanitize()}
	out := fstest.MapFS{}

	for _, e := range entries {
		name := path.Join(migrationsPath, e.Name())
		tmpl, err := template.ParseFS(migrationsDir, name)
		if err != nil {
			return nil, err
		}

		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, data); err != nil {
			return nil, err
		}

		out[name] = &fstest.MapFile{Data: buf.Bytes(), Mode: 0o444}
	}

	return out, nil
}

// withMigrationsTable задает отдельную таблицу версий для каждой таблицы ссылок.
func withMigrationsTable(connString, table string) (string, error) {
	u, err := url.Parse(connString)
	if err != nil {
		return "", err
	}

	q := u.Query()
	q.Set("x-migrations-table", table+"_migrations")
	u.RawQuery = q.Encode()

	return u.String(), nil
}
