package config

import (
	"os"
	"strconv"
)

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Auth        AuthConfig
	Reservation ReservationConfig
}

type ServerConfig struct {
	Port string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret string
}

type ReservationConfig struct {
	// HoldSeconds 一次結帳的持有時間預算（秒）
	HoldSeconds int
	// TxMaxRetries 樂觀交易衝突時的最大重試次數
	TxMaxRetries int
	// SessionRetentionSeconds 終態 session 保留給客戶端查詢最終狀態的秒數
	SessionRetentionSeconds int
}

var AppConfig *Config

func LoadConfig() *Config {
	AppConfig = &Config{
		Server:      GetServerConfig(),
		Database:    GetDatabaseConfig(),
		Redis:       GetRedisConfig(),
		Auth:        GetAuthConfig(),
		Reservation: GetReservationConfig(),
	}

	return AppConfig
}

func LoadTestConfig() *Config {
	testConfig := &DatabaseConfig{
		Host:     "localhost",
		Port:     "5433", // 測試 DB 用 5433 port
		User:     "postgres",
		Password: "postgres",
		DBName:   "test_db",
		SSLMode:  "disable",
	}

	testRedisConfig := RedisConfig{
		Host:     "localhost",
		Port:     "6380", // 測試 Redis 用 6380 port
		Password: "",
		DB:       1,
	}

	return &Config{
		Server:   ServerConfig{Port: "8080"},
		Database: *testConfig,
		Redis:    testRedisConfig,
		Auth:     AuthConfig{JWTSecret: "test-secret"},
		Reservation: ReservationConfig{
			HoldSeconds:             300,
			TxMaxRetries:            10,
			SessionRetentionSeconds: 300,
		},
	}
}

func GetServerConfig() ServerConfig {
	return ServerConfig{
		Port: getEnv("SERVER_PORT", "8080"),
	}
}

func GetDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", "postgres"),
		DBName:   getEnv("DB_NAME", "postgres"),
		SSLMode:  getEnv("DB_SSL_MODE", "disable"),
	}
}

func GetRedisConfig() RedisConfig {
	db, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		panic(err)
	}

	return RedisConfig{
		Host:     getEnv("REDIS_HOST", "localhost"),
		Port:     getEnv("REDIS_PORT", "6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       db,
	}
}

func GetAuthConfig() AuthConfig {
	return AuthConfig{
		JWTSecret: getEnv("JWT_SECRET", "dev-secret"),
	}
}

func GetReservationConfig() ReservationConfig {
	holdSeconds, err := strconv.Atoi(getEnv("RESERVATION_HOLD_SECONDS", "300"))
	if err != nil {
		panic(err)
	}
	maxRetries, err := strconv.Atoi(getEnv("RESERVATION_TX_MAX_RETRIES", "10"))
	if err != nil {
		panic(err)
	}
	retentionSeconds, err := strconv.Atoi(getEnv("RESERVATION_SESSION_RETENTION_SECONDS", "300"))
	if err != nil {
		panic(err)
	}

	return ReservationConfig{
		HoldSeconds:             holdSeconds,
		TxMaxRetries:            maxRetries,
		SessionRetentionSeconds: retentionSeconds,
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
