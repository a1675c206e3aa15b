package factory

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	conf "github.com/nestjam/yap-shortlink/internal/config"
	"github.com/nestjam/yap-shortlink/internal/domain"
	"github.com/nestjam/yap-shortlink/internal/persistance/cached"
	"github.com/nestjam/yap-shortlink/internal/persistance/dynamostore"
	"github.com/nestjam/yap-shortlink/internal/persistance/file"
	"github.com/nestjam/yap-shortlink/internal/persistance/inmemory"
	"github.com/nestjam/yap-shortlink/internal/persistance/pgsql"
	"github.com/nestjam/yap-shortlink/internal/persistance/redisstore"
	"github.com/nestjam/yap-shortlink/internal/persistance/sqlite"
)

const (
	ownerReadWritePermission os.FileMode = 0o600
	sentryFlushTimeout                   = 2 * time.Second
	logFileMaxSizeMB                     = 100
	logFileMaxBackups                    = 5
	logFileMaxAgeDays                    = 28
)

// NewStorage создает хранилище ссылок по конфигурации. Вторым значением возвращается функция,
// освобождающая ресурсы хранилища.
func NewStorage(ctx context.Context, conf conf.Config, logger *zap.Logger) (domain.Store, func(), error) {
	const op = "new storage"

	store, closeStore, err := newStorage(ctx, conf, logger)
	if err != nil {
		return nil, nil, errors.Wrap(err, op)
	}

	if conf.CacheSize > 0 {
		logger.Info("Using lookup cache", zap.Int("size", conf.CacheSize))
		cachedStore, err := cached.New(store, conf.CacheSize)
		if err != nil {
			closeStore()
			return nil, nil, errors.Wrap(err, op)
		}
		return cachedStore, closeStore, nil
	}

	return store, closeStore, nil
}

func newStorage(ctx context.Context, c conf.Config, logger *zap.Logger) (domain.Store, func(), error) {
	switch c.Storage {
	case conf.StorageMemory:
		logger.Info("Using in-memory storage")
		return inmemory.New(), func() {}, nil
	case conf.StorageFile:
		return newFileStorage(ctx, c, logger)
	case conf.StoragePostgres:
		return newPostgresStorage(ctx, c, logger)
	case conf.StorageSQLite:
		logger.Info("Using sqlite storage", zap.String("path", c.DataSourceName))
		store, err := sqlite.Open(ctx, c.DataSourceName, c.TableName)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	case conf.StorageRedis:
		return newRedisStorage(ctx, c, logger)
	case conf.StorageDynamoDB:
		return newDynamoDBStorage(ctx, c, logger)
	default:
		return nil, nil, fmt.Errorf("unknown storage %q", c.Storage)
	}
}

func newFileStorage(ctx context.Context, c conf.Config, logger *zap.Logger) (domain.Store, func(), error) {
	path := filepath.Join(c.FileStoragePath, c.TableName+".jsonl")
	logger.Info("Using file storage", zap.String("path", path))

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, ownerReadWritePermission)
	if err != nil {
		return nil, nil, errors.Wrap(err, "open file")
	}

	store, err := file.New(ctx, f)
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}

	return store, func() { _ = f.Close() }, nil
}

func newPostgresStorage(ctx context.Context, c conf.Config, logger *zap.Logger) (domain.Store, func(), error) {
	logger.Info("Using postgres storage", zap.String("table", c.TableName))

	if err := pgsql.NewMigrator(c.DataSourceName, c.TableName).Up(); err != nil {
		return nil, nil, err
	}

	store := pgsql.New(c.DataSourceName, c.TableName)
	if err := store.Init(ctx); err != nil {
		return nil, nil, err
	}

	return store, store.Close, nil
}

func newRedisStorage(ctx context.Context, c conf.Config, logger *zap.Logger) (domain.Store, func(), error) {
	logger.Info("Using redis storage", zap.String("addr", c.RedisAddr), zap.String("prefix", c.TableName))

	client := redis.NewClient(&redis.Options{Addr: c.RedisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, errors.Wrap(err, "ping redis")
	}

	return redisstore.New(client, c.TableName), func() { _ = client.Close() }, nil
}

func newDynamoDBStorage(ctx context.Context, c conf.Config, logger *zap.Logger) (domain.Store, func(), error) {
	logger.Info("Using dynamodb storage",
		zap.String("table", c.TableName),
		zap.String("region", c.AWSRegion),
		zap.String("endpoint", c.DynamoDBEndpoint))

	client, err := dynamostore.NewClient(ctx, dynamostore.ClientOptions{
		Region:   c.AWSRegion,
		Endpoint: c.DynamoDBEndpoint,
	})
	if err != nil {
		return nil, nil, err
	}

	store := dynamostore.New(client, c.TableName)
	if c.DynamoDBEndpoint != "" {
		if err := store.CreateTable(ctx); err != nil {
			return nil, nil, err
		}
	}

	return store, func() {}, nil
}

// NewLogger создает логер с указанным уровнем. Если задан файл, логи пишутся в него с ротацией.
func NewLogger(level, file string) (*zap.Logger, func(), error) {
	const op = "new logger"

	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, nil, errors.Wrap(err, op)
	}

	config := zap.NewProductionConfig()
	config.Level = lvl

	if file == "" {
		logger, err := config.Build()
		if err != nil {
			return nil, nil, errors.Wrap(err, op)
		}
		return logger, func() { _ = logger.Sync() }, nil
	}

	rotator := &lumberjack.Logger{
		Filename:   file,
		MaxSize:    logFileMaxSizeMB,
		MaxBackups: logFileMaxBackups,
		MaxAge:     logFileMaxAgeDays,
	}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(config.EncoderConfig), zapcore.AddSync(rotator), lvl)
	logger := zap.New(core, zap.AddCaller())

	return logger, func() {
		_ = logger.Sync()
		_ = rotator.Close()
	}, nil
}

// NewSentryMiddleware подключает отправку ошибок в Sentry. Для пустого dsn возвращает nil.
func NewSentryMiddleware(dsn string) (func(http.Handler) http.Handler, func(), error) {
	const op = "init sentry"

	if dsn == "" {
		return nil, func() {}, nil
	}

	if err := sentry.Init(sentry.ClientOptions{Dsn: dsn}); err != nil {
		return nil, nil, errors.Wrap(err, op)
	}

	handler := sentryhttp.New(sentryhttp.Options{Repanic: true})
	return handler.Handle, func() { sentry.Flush(sentryFlushTimeout) }, nil
}
