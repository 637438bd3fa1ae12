package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort       string
	AppMode       string
	LogMode       string
	NodeID        string
	StoreDriver   string
	DBHost        string
	DBUser        string
	DBPassword    string
	DBName        string
	DBPort        string
	JWTSecret     string
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	PresenceTTL   time.Duration
	MessageLimit  int
	MessageWindow time.Duration

	KafkaBrokers    []string
	KafkaAuditTopic string

	S3Region     string
	S3Bucket     string
	S3AccessKey  string
	S3SecretKey  string
	S3Endpoint   string
	S3PublicBase string
	S3PresignTTL time.Duration

	CORSAllowedOrigins []string
}

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

func LoadConfig() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	hostname, _ := os.Hostname()

	return &Config{
		AppPort:       getEnv("APP_PORT", "8080"),
		AppMode:       getEnv("APP_MODE", "debug"),
		LogMode:       getEnv("LOG_MODE", "development"),
		NodeID:        getEnv("NODE_ID", hostname),
		StoreDriver:   getEnv("STORE_DRIVER", StoreDriverPostgres),
		DBHost:        getEnv("DB_HOST", "localhost"),
		DBUser:        getEnv("DB_USER", "postgres"),
		DBPassword:    getEnv("DB_PASSWORD", "postgres"),
		DBName:        getEnv("DB_NAME", "workchat"),
		DBPort:        getEnv("DB_PORT", "5432"),
		JWTSecret:     getEnv("JWT_SECRET", "change-me"),
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		PresenceTTL:   time.Duration(getEnvAsInt("PRESENCE_TTL_SECONDS", 300)) * time.Second,
		MessageLimit:  getEnvAsInt("MESSAGE_RATE_LIMIT", 60),
		MessageWindow: time.Duration(getEnvAsInt("MESSAGE_RATE_WINDOW_SECONDS", 60)) * time.Second,

		KafkaBrokers:    getEnvAsList("KAFKA_BROKERS"),
		KafkaAuditTopic: getEnv("KAFKA_AUDIT_TOPIC", "workchat.audit"),

		S3Region:     getEnv("S3_REGION", ""),
		S3Bucket:     getEnv("S3_BUCKET", ""),
		S3AccessKey:  getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:  getEnv("S3_SECRET_KEY", ""),
		S3Endpoint:   getEnv("S3_ENDPOINT", ""),
		S3PublicBase: getEnv("S3_PUBLIC_BASE", ""),
		S3PresignTTL: time.Duration(getEnvAsInt("S3_PRESIGN_TTL_SECONDS", 900)) * time.Second,

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
