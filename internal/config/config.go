package config

import (
	stderrors "errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// Типы хранилища коротких ссылок.
const (
	StorageMemory   = "memory"
	StorageFile     = "file"
	StoragePostgres = "postgres"
	StorageSQLite   = "sqlite"
	StorageRedis    = "redis"
	StorageDynamoDB = "dynamodb"
)

// Config описывает конфигурацию сервиса коротких ссылок.
type Config struct {
	errs             []error
	TableName        string        // имя таблицы DynamoDB и SQL, префикс ключей Redis, имя файла журнала
	BaseURL          string        // базовый адрес короткой ссылки
	ServerAddress    string        // адрес сервера
	Storage          string        // тип хранилища
	FileStoragePath  string        // каталог файлового хранилища
	DataSourceName   string        // строка подключения к PostgreSQL или путь к файлу SQLite
	RedisAddr        string        // адрес Redis
	DynamoDBEndpoint string        // адрес DynamoDB, пустой для AWS
	AWSRegion        string        // регион AWS
	LogLevel         string        // уровень логирования
	LogFile          string        // файл логов с ротацией, пустой для вывода в stderr
	SentryDSN        string        // DSN Sentry, пустой отключает отправку ошибок
	StoreTimeout     time.Duration // время ожидания каждого обращения к хранилищу
	CodeLength       int           // длина генерируемого кода
	CacheSize        int           // размер кеша ссылок, 0 отключает кеш
	ClicksAsync      bool          // учитывать переходы в фоновом обработчике
	EnableHTTPS      bool          // обслуживать HTTPS с самоподписанным сертификатом
}

const (
	defaultBaseURL      = "https://yourdomain.com"
	defaultServerAddr   = ":8080"
	defaultRedisAddr    = "localhost:6379"
	defaultAWSRegion    = "us-east-1"
	defaultLogLevel     = "info"
	defaultCodeLength   = 6
	defaultStoreTimeout = 5 * time.Second
)

// Environment определяет доступ к переменным среды.
type Environment interface {
	LookupEnv(key string) (string, bool)
}

// ProcessEnv читает переменные среды процесса.
type ProcessEnv struct{}

// LookupEnv возвращает значение переменной среды, если она задана.
func (ProcessEnv) LookupEnv(key string) (string, bool) {
	return os.LookupEnv(key)
}

// New создает экземпляр конфигурации с настройками по умолчанию.
func New() Config {
	return Config{
		BaseURL:         defaultBaseURL,
		ServerAddress:   defaultServerAddr,
		Storage:         StorageMemory,
		FileStoragePath: os.TempDir(),
		RedisAddr:       defaultRedisAddr,
		AWSRegion:       defaultAWSRegion,
		LogLevel:        defaultLogLevel,
		StoreTimeout:    defaultStoreTimeout,
		CodeLength:      defaultCodeLength,
		ClicksAsync:     true,
	}
}

// FromArgs заполняет параметры конфигурации из аргументов командной строки.
func (conf Config) FromArgs(args []string) Config {
	flagSet := flag.NewFlagSet("", flag.PanicOnError)
	flagSet.StringVar(&conf.TableName, "t", conf.TableName, "table name")
	flagSet.StringVar(&conf.BaseURL, "b", conf.BaseURL, "base URL")
	flagSet.StringVar(&conf.ServerAddress, "a", conf.ServerAddress, "server address")
	flagSet.StringVar(&conf.Storage, "s", conf.Storage, "storage type")
	flagSet.StringVar(&conf.FileStoragePath, "f", conf.FileStoragePath, "file storage path")
	flagSet.StringVar(&conf.DataSourceName, "d", conf.DataSourceName, "data source name")
	flagSet.BoolVar(&conf.EnableHTTPS, "https", conf.EnableHTTPS, "enable HTTPS")

	_ = flagSet.Parse(args[1:]) // exclude command name
	return conf
}

// FromEnv заполняет параметры конфигурации из переменных среды.
// Ошибки разбора значений возвращает Validate.
func (conf Config) FromEnv(env Environment) Config {
	vars := map[string]*string{
		"TABLE_NAME":        &conf.TableName,
		"BASE_URL":          &conf.BaseURL,
		"SERVER_ADDRESS":    &conf.ServerAddress,
		"STORAGE":           &conf.Storage,
		"FILE_STORAGE_PATH": &conf.FileStoragePath,
		"DATABASE_DSN":      &conf.DataSourceName,
		"REDIS_ADDR":        &conf.RedisAddr,
		"DYNAMODB_ENDPOINT": &conf.DynamoDBEndpoint,
		"AWS_REGION":        &conf.AWSRegion,
		"LOG_LEVEL":         &conf.LogLevel,
		"LOG_FILE":          &conf.LogFile,
		"SENTRY_DSN":        &conf.SentryDSN,
	}
	for key, v := range vars {
		if value, ok := env.LookupEnv(key); ok {
			*v = value
		}
	}

	if value, ok := env.LookupEnv("CODE_LENGTH"); ok {
		n, err := strconv.Atoi(value)
		conf.setOrFail("CODE_LENGTH", err, func() { conf.CodeLength = n })
	}

	if value, ok := env.LookupEnv("CACHE_SIZE"); ok {
		n, err := strconv.Atoi(value)
		conf.setOrFail("CACHE_SIZE", err, func() { conf.CacheSize = n })
	}

	if value, ok := env.LookupEnv("STORE_TIMEOUT"); ok {
		d, err := time.ParseDuration(value)
		conf.setOrFail("STORE_TIMEOUT", err, func() { conf.StoreTimeout = d })
	}

	if value, ok := env.LookupEnv("CLICKS_ASYNC"); ok {
		b, err := strconv.ParseBool(value)
		conf.setOrFail("CLICKS_ASYNC", err, func() { conf.ClicksAsync = b })
	}

	if value, ok := env.LookupEnv("ENABLE_HTTPS"); ok {
		b, err := strconv.ParseBool(value)
		conf.setOrFail("ENABLE_HTTPS", err, func() { conf.EnableHTTPS = b })
	}

	return conf
}

func (conf *Config) setOrFail(key string, err error, set func()) {
	if err != nil {
		conf.errs = append(conf.errs, errors.Wrapf(err, "parse %s", key))
		return
	}
	set()
}

// Validate проверяет, что конфигурация пригодна для запуска сервиса.
func (conf Config) Validate() error {
	errs := append([]error(nil), conf.errs...)

	if conf.TableName == "" {
		errs = append(errs, errors.New("table name required"))
	}

	switch conf.Storage {
	case StorageMemory, StorageFile, StorageRedis, StorageDynamoDB:
	case StoragePostgres, StorageSQLite:
		if conf.DataSourceName == "" {
			errs = append(errs, fmt.Errorf("data source name required for %s storage", conf.Storage))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage %q", conf.Storage))
	}

	if conf.CodeLength <= 0 {
		errs = append(errs, errors.New("code length must be positive"))
	}

	if conf.CacheSize < 0 {
		errs = append(errs, errors.New("cache size must not be negative"))
	}

	if conf.StoreTimeout <= 0 {
		errs = append(errs, errors.New("store timeout must be positive"))
	}

	return stderrors.Join(errs...)
}
