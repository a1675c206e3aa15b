package pgsql

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/nestjam/yap-shortlink/internal/domain"
)

// Store хранит ссылки в таблице PostgreSQL.
type Store struct {
	pool       *pgxpool.Pool
	connString string
	table      string
}

// New создает хранилище. Перед использованием нужно вызвать Init.
func New(connString, table string) *Store {
	return &Store{
		connString: connString,
		table:      pgx.Identifier{table}.Sanitize(),
	}
}

// Init подключается к базе данных.
func (s *Store) Init(ctx context.Context) error {
	const op = "init store"

	pool, err := initPool(ctx, s.connString)
	if err != nil {
		return errors.Wrap(err, op)
	}

	s.pool = pool
	return nil
}

// Close закрывает пул соединений.
func (s *Store) Close() {
	if s.pool == nil {
		return
	}
	s.pool.Close()
}

func initPool(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	const op = "init connection pool"

	poolCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, op)
	}

	return pool, nil
}

// Get возвращает ссылку по коду.
func (s *Store) Get(ctx context.Context, code string) (domain.ShortLink, error) {
	const op = "get link"

	query := fmt.Sprintf("SELECT long_url, clicks, created_at FROM %s WHERE code=$1", s.table)

	var (
		link      = domain.ShortLink{Code: code}
		createdAt time.Time
	)
	err := s.pool.QueryRow(ctx, query, code).Scan(&link.LongURL, &link.Clicks, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ShortLink{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.ShortLink{}, domain.NewStoreError(op, err)
	}

	link.CreatedAt = createdAt.UTC()
	return link, nil
}

// PutIfAbsent сохраняет ссылку. Если код занят, возвращает ErrAlreadyExists.
func (s *Store) PutIfAbsent(ctx context.Context, link domain.ShortLink) error {
	const op = "put link"

	query := fmt.Sprintf("INSERT INTO %s (code, long_url, clicks, created_at) VALUES ($1, $2, $3, $4)", s.table)

	_, err := s.pool.Exec(ctx, query, link.Code, link.LongURL, link.Clicks, link.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return domain.ErrAlreadyExists
		}
		return domain.NewStoreError(op, err)
	}

	return nil
}

// IncrementClicks атомарно увеличивает счетчик переходов.
func (s *Store) IncrementClicks(ctx context.Context, code string, delta int64) (int64, error) {
	const op = "increment clicks"

	query := fmt.Sprintf("UPDATE %s SET clicks = COALESCE(clicks, 0) + $2 WHERE code=$1 RETURNING clicks", s.table)

	var clicks int64
	err := s.pool.QueryRow(ctx, query, code, delta).Scan(&clicks)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.ErrNotFound
	}
	if err != nil {
		return 0, domain.NewStoreError(op, err)
	}

	return clicks, nil
}

// IsAvailable проверяет соединение с базой данных.
func (s *Store) IsAvailable(ctx context.Context) bool {
	if s.pool == nil {
		return false
	}
	return s.pool.Ping(ctx) == nil
}
