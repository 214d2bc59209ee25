package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Booking  BookingConfig
	Sweep    SweepConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type StoreConfig struct {
	Driver string
}

type RedisConfig struct {
	// Addr empty disables caching, idempotency, rate limiting and pub/sub.
	Addr     string
	Password string
	DB       int
}

type PostgresConfig struct {
	User     string
	Password string
	Name     string
	Host     string
	Port     int
	SSLMode  string
}

type KafkaConfig struct {
	// Brokers empty sends notifications to the log instead.
	Brokers            []string
	NotificationsTopic string
}

type BookingConfig struct {
	RestorePointsOnCancel bool
	RateLimitPerMinute    int
	IdempotencyTTL        time.Duration
}

type SweepConfig struct {
	Interval time.Duration
}

func New() (*Config, error) {
	const op = "config.New"

	_ = godotenv.Load()

	serverHost := os.Getenv("SERVER_HOST")
	if serverHost == "" {
		serverHost = "localhost"
	}

	serverPort, err := intEnv("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	serverCfg := ServerConfig{
		Host: serverHost,
		Port: serverPort,
	}

	driver := strings.ToLower(os.Getenv("STORE_DRIVER"))
	if driver == "" {
		driver = StoreDriverPostgres
	}

	if driver != StoreDriverPostgres && driver != StoreDriverMemory {
		return nil, fmt.Errorf("%s: invalid STORE_DRIVER %q", op, driver)
	}

	postgresCfg, err := postgresConfig(driver == StoreDriverPostgres)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	redisDB, err := intEnv("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	redisCfg := RedisConfig{
		Addr:     os.Getenv("REDIS_ADDR"),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       redisDB,
	}

	kafkaCfg := KafkaConfig{
		NotificationsTopic: os.Getenv("KAFKA_NOTIFICATIONS_TOPIC"),
	}
	if kafkaCfg.NotificationsTopic == "" {
		kafkaCfg.NotificationsTopic = "tourgo.notifications"
	}

	for _, b := range strings.Split(os.Getenv("KAFKA_BROKERS"), ",") {
		if b = strings.TrimSpace(b); b != "" {
			kafkaCfg.Brokers = append(kafkaCfg.Brokers, b)
		}
	}

	rateLimit, err := intEnv("RATE_LIMIT_PER_MINUTE", 10)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	idemTTL, err := durationEnv("IDEMPOTENCY_TTL", 2*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	restore, err := boolEnv("BOOKING_RESTORE_POINTS_ON_CANCEL", false)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	sweepInterval, err := durationEnv("SWEEP_INTERVAL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &Config{
		Server:   serverCfg,
		Store:    StoreConfig{Driver: driver},
		Postgres: postgresCfg,
		Redis:    redisCfg,
		Kafka:    kafkaCfg,
		Booking: BookingConfig{
			RestorePointsOnCancel: restore,
			RateLimitPerMinute:    rateLimit,
			IdempotencyTTL:        idemTTL,
		},
		Sweep: SweepConfig{Interval: sweepInterval},
	}, nil
}

func postgresConfig(required bool) (PostgresConfig, error) {
	host := os.Getenv("POSTGRES_HOST")
	if host == "" {
		host = "localhost"
	}

	port, err := intEnv("POSTGRES_PORT", 5432)
	if err != nil {
		return PostgresConfig{}, err
	}

	sslMode := os.Getenv("POSTGRES_SSLMODE")
	if sslMode == "" {
		sslMode = "disable"
	}

	cfg := PostgresConfig{
		User:     os.Getenv("POSTGRES_USER"),
		Password: os.Getenv("POSTGRES_PASSWORD"),
		Name:     os.Getenv("POSTGRES_DB"),
		Host:     host,
		Port:     port,
		SSLMode:  sslMode,
	}

	if !required {
		return cfg, nil
	}

	switch {
	case cfg.User == "":
		return cfg, fmt.Errorf("missing POSTGRES_USER")
	case cfg.Password == "":
		return cfg, fmt.Errorf("missing POSTGRES_PASSWORD")
	case cfg.Name == "":
		return cfg, fmt.Errorf("missing POSTGRES_DB")
	}

	return cfg, nil
}

func intEnv(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}

	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}

	return v, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}

	v, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}

	return v, nil
}

func boolEnv(key string, def bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}

	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}

	return v, nil
}
