package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPPort        string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	MongoURI         string
	MongoDBName      string
	MongoMaxPoolSize int
	MongoMinPoolSize int

	RedisAddr     string
	RedisPassword string

	CatalogDBPath  string
	MigrationsPath string

	KafkaBrokers []string
	KafkaTopic   string

	JWTSecret   string
	TokenExpiry time.Duration

	DefaultWalletMoney float64
}

func Load() *Config {
	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8082"),
		RequestTimeout:  30 * time.Second,
		ShutdownTimeout: 10 * time.Second,

		MongoURI:         getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName:      getEnv("MONGO_DB_NAME", "qkart"),
		MongoMaxPoolSize: getEnvInt("MONGO_MAX_POOL_SIZE", 100),
		MongoMinPoolSize: getEnvInt("MONGO_MIN_POOL_SIZE", 10),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		CatalogDBPath:  getEnv("CATALOG_DB_PATH", "catalog.db"),
		MigrationsPath: getEnv("MIGRATIONS_PATH", "migrations"),

		KafkaBrokers: strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "checkout-events"),

		JWTSecret:   getEnv("JWT_SECRET", "thisisasamplesecret"),
		TokenExpiry: time.Duration(getEnvInt("TOKEN_EXPIRY_MINUTES", 30)) * time.Minute,

		DefaultWalletMoney: 500,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
