package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/nestjam/yap-shortlink/internal/domain"
)

// Store хранит ссылки в файле SQLite.
type Store struct {
	db    *sql.DB
	table string
}

// Open открывает (или создает) базу данных по пути path и создает таблицу ссылок.
func Open(ctx context.Context, path, table string) (*Store, error) {
	const op = "open sqlite store"

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}

	// SQLite допускает одного писателя.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{db: db, table: quoteIdent(table)}
	if err := s.init(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, op)
	}

	return s, nil
}

func (s *Store) init(ctx context.Context) error {
	stmts := []string{
		"PRAGMA busy_timeout = 5000;",
		"PRAGMA journal_mode = WAL;",
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  code       TEXT    NOT NULL PRIMARY KEY,
  long_url   TEXT    NOT NULL,
  clicks     INTEGER NOT NULL DEFAULT 0,
  created_at INTEGER NOT NULL
);`, s.table),
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	return nil
}

// Close закрывает базу данных.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get возвращает ссылку по коду.
func (s *Store) Get(ctx context.Context, code string) (domain.ShortLink, error) {
	const op = "get link"

	query := fmt.Sprintf("SELECT long_url, clicks, created_at FROM %s WHERE code = ?", s.table)

	var (
		link      = domain.ShortLink{Code: code}
		createdAt int64
	)
	err := s.db.QueryRowContext(ctx, query, code).Scan(&link.LongURL, &link.Clicks, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ShortLink{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.ShortLink{}, domain.NewStoreError(op, err)
	}

	link.CreatedAt = time.Unix(0, createdAt).UTC()
	return link, nil
}

// PutIfAbsent сохраняет ссылку. Если код занят, возвращает ErrAlreadyExists.
func (s *Store) PutIfAbsent(ctx context.Context, link domain.ShortLink) error {
	const op = "put link"

	query := fmt.Sprintf(`INSERT INTO %s (code, long_url, clicks, created_at) VALUES (?, ?, ?, ?)
ON CONFLICT(code) DO NOTHING`, s.table)

	res, err := s.db.ExecContext(ctx, query, link.Code, link.LongURL, link.Clicks, link.CreatedAt.UnixNano())
	if err != nil {
		return domain.NewStoreError(op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return domain.NewStoreError(op, err)
	}
	if n == 0 {
		return domain.ErrAlreadyExists
	}

	return nil
}

// IncrementClicks атомарно увеличивает счетчик переходов.
func (s *Store) IncrementClicks(ctx context.Context, code string, delta int64) (int64, error) {
	const op = "increment clicks"

	query := fmt.Sprintf("UPDATE %s SET clicks = COALESCE(clicks, 0) + ? WHERE code = ? RETURNING clicks", s.table)

	var clicks int64
	err := s.db.QueryRowContext(ctx, query, delta, code).Scan(&clicks)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrNotFound
	}
	if err != nil {
		return 0, domain.NewStoreError(op, err)
	}

	return clicks, nil
}

// IsAvailable проверяет соединение с базой данных.
func (s *Store) IsAvailable(ctx context.Context) bool {
	return s.db.PingContext(ctx) == nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
