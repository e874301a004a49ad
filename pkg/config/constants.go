package config

import "time"

const (
	DefaultHTTPPort     = 8080
	DefaultPostgresPort = 5432
	DefaultRedisPort    = 6379

	DefaultMaxConnections = 25
	DefaultMinConnections = 5
	DefaultMaxRetries     = 3
	DefaultPoolSize       = 10
	DefaultMinIdleConns   = 2

	DefaultMaxConnIdleTime = 30 * time.Minute
	DefaultDialTimeout     = 5 * time.Second
	DefaultReadTimeout     = 3 * time.Second
	DefaultWriteTimeout    = 3 * time.Second
	DefaultShutdownTimeout = 15 * time.Second

	DefaultKeyPrefix = "agora:"
	MinHashLength    = 8
	MaxHashLength    = 16
	DefaultEntityTTL = time.Hour
	DefaultListTTL   = 5 * time.Minute
	DefaultBulkTTL   = 10 * time.Minute
	DefaultSearchTTL = 10 * time.Minute

	DefaultExchange       = "events"
	DefaultExchangeType   = "topic"
	DefaultPrefetch       = 16
	DefaultRetryBackoff   = 500 * time.Millisecond
	DefaultPublishTimeout = 5 * time.Second
	DefaultStream         = "EVENTS"
)

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Cache drivers.
const (
	CacheDriverRedis  = "redis"
	CacheDriverMemory = "memory"
)

// Event bus backends. "lightweight" and "durable" are the canonical names;
// "redis" and "rabbitmq" are accepted aliases.
const (
	BackendLightweight = "lightweight"
	BackendRedis       = "redis"
	BackendDurable     = "durable"
	BackendRabbitMQ    = "rabbitmq"
	BackendNATS        = "nats"
	BackendKafka       = "kafka"
	BackendMemory      = "memory"
)
