package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Broker
	KafkaBrokers []string
	BusName      string // prefijo del "exchange": los topics son <bus>.<tipo>
	QueueName    string // cola durable del servicio (consumer group)
	UseKafka     bool
	RetryCount   int // reintentos de publicación ante broker caído

	// Persistencia
	PostgresDSN string
	SQLitePath  string
	MongoURI    string
	ClickHouse  string

	// Cache
	RedisAddr string
	CacheTTL  time.Duration

	// Watchdog del periodo de gracia
	GracePeriod   time.Duration
	CheckInterval time.Duration

	// Relayer del outbox
	OutboxPeriod time.Duration
	OutboxMargin time.Duration // edad mínima de una entrada para re-publicarla
	OutboxLimit  int

	HTTPPort string
}

func LoadConfig() *Config {
	getEnv := func(key, fallback string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return fallback
	}

	getInt := func(key string, fallback int) int {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return fallback
	}

	kafkaBrokers := strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ",")

	return &Config{
		KafkaBrokers: kafkaBrokers,
		BusName:      getEnv("BUS_NAME", "ordelab_event_bus"),
		QueueName:    getEnv("QUEUE_NAME", "ordering"),
		UseKafka:     getEnv("USE_KAFKA", "true") == "true",
		RetryCount:   getInt("EVENT_BUS_RETRY_COUNT", 10),

		PostgresDSN: getEnv("POSTGRES_DSN", ""),
		SQLitePath:  getEnv("SQLITE_PATH", "./ordelab_ordering.db"),
		MongoURI:    getEnv("MONGO_URI", ""),
		ClickHouse:  getEnv("CLICKHOUSE_ADDR", ""),

		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),
		CacheTTL:  5 * time.Minute,

		GracePeriod:   time.Duration(getInt("GRACE_PERIOD_MINUTES", 1)) * time.Minute,
		CheckInterval: time.Duration(getInt("CHECK_UPDATE_SECONDS", 30)) * time.Second,

		OutboxPeriod: time.Duration(getInt("OUTBOX_PERIOD_SECONDS", 5)) * time.Second,
		OutboxMargin: time.Duration(getInt("OUTBOX_MARGIN_SECONDS", 60)) * time.Second,
		OutboxLimit:  getInt("OUTBOX_LIMIT", 10),

		HTTPPort: getEnv("HTTP_PORT", "8080"),
	}
}
