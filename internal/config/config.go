package config

import (
	"errors"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ValidationStrict  = "strict"
	ValidationLenient = "lenient"
)

type Config struct {
	Env        string
	LogLevel   slog.Level
	ServerAddr string
	MongoURI   string
	MongoDB    string

	CORSOrigins []string

	JWTSecret        string
	TokenTTL         time.Duration
	AdminUsername    string
	AdminPassword    string
	AdminSeedOnStart bool

	BrevoAPIKey               string
	BrevoSandbox              bool
	SenderEmail               string
	SenderName                string
	AdminEmail                string
	ClientConfirmationEnabled bool

	BookingValidation string

	RateLimitMax    int
	RateLimitWindow time.Duration

	RedisURL      string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	KafkaBrokers      []string
	KafkaBookingTopic string

	TelegramBotToken string
	TelegramChatID   int64

	NotifyWorkers     int
	NotifyQueueSize   int
	NotifyMaxAttempts int

	MetricsEnabled bool
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func Load() (*Config, error) {
	// A missing .env is the normal case in containers.
	_ = godotenv.Load()

	mongoURI := getEnv("MONGO_URI", getEnv("MONGO_URL", "mongodb://localhost:27017/tivrox"))
	mongoDB := getEnv("MONGO_DB", getEnv("DB_NAME", ""))
	if mongoDB == "" {
		mongoDB = mongoDBFromURI(mongoURI)
	}
	if mongoDB == "" {
		mongoDB = "tivrox"
	}

	cfg := &Config{
		Env:                       getEnv("APP_ENV", "development"),
		LogLevel:                  parseLevel(getEnv("LOG_LEVEL", "info")),
		ServerAddr:                getEnv("SERVER_ADDR", ":8000"),
		MongoURI:                  mongoURI,
		MongoDB:                   mongoDB,
		CORSOrigins:               splitList(getEnv("CORS_ORIGINS", "*")),
		JWTSecret:                 getEnv("JWT_SECRET", ""),
		TokenTTL:                  time.Duration(getEnvInt("TOKEN_TTL_HOURS", 24)) * time.Hour,
		AdminUsername:             getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword:             getEnv("ADMIN_PASSWORD", "1234"),
		AdminSeedOnStart:          getEnvBool("ADMIN_SEED_ON_START", false),
		BrevoAPIKey:               getEnv("BREVO_API_KEY", ""),
		BrevoSandbox:              getEnvBool("BREVO_SANDBOX", false),
		SenderEmail:               getEnv("SENDER_EMAIL", ""),
		SenderName:                getEnv("SENDER_NAME", "TIVROX"),
		AdminEmail:                getEnv("ADMIN_EMAIL", ""),
		ClientConfirmationEnabled: getEnvBool("CLIENT_CONFIRMATION_ENABLED", true),
		BookingValidation:         strings.ToLower(getEnv("BOOKING_VALIDATION", ValidationStrict)),
		RateLimitMax:              getEnvInt("RATE_LIMIT_MAX", 5),
		RateLimitWindow:           time.Duration(getEnvInt("RATE_LIMIT_WINDOW_SEC", 60)) * time.Second,
		RedisURL:                  getEnv("REDIS_URL", ""),
		RedisAddr:                 getEnv("REDIS_ADDR", ""),
		RedisPassword:             getEnv("REDIS_PASSWORD", ""),
		RedisDB:                   getEnvInt("REDIS_DB", 0),
		CacheTTL:                  time.Duration(getEnvInt("CACHE_TTL_SECONDS", 30)) * time.Second,
		KafkaBrokers:              splitList(getEnv("KAFKA_BROKERS", "")),
		KafkaBookingTopic:         getEnv("KAFKA_BOOKING_TOPIC", "bookings.events"),
		TelegramBotToken:          getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:            int64(getEnvInt("TELEGRAM_CHAT_ID", 0)),
		NotifyWorkers:             getEnvInt("NOTIFY_WORKERS", 2),
		NotifyQueueSize:           getEnvInt("NOTIFY_QUEUE_SIZE", 100),
		NotifyMaxAttempts:         getEnvInt("NOTIFY_MAX_ATTEMPTS", 3),
		MetricsEnabled:            getEnvBool("METRICS_ENABLED", true),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		if c.Env != "development" {
			return errors.New("JWT_SECRET is required")
		}
		c.JWTSecret = "dev-secret-change-me"
	}
	if c.BookingValidation != ValidationStrict && c.BookingValidation != ValidationLenient {
		return errors.New("BOOKING_VALIDATION must be strict or lenient")
	}
	if c.RateLimitMax <= 0 || c.RateLimitWindow <= 0 {
		return errors.New("rate limit must be positive")
	}
	if c.NotifyWorkers <= 0 {
		c.NotifyWorkers = 1
	}
	if c.NotifyMaxAttempts <= 0 {
		c.NotifyMaxAttempts = 1
	}
	return nil
}

func parseLevel(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func mongoDBFromURI(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return ""
	}
	db := strings.Trim(u.Path, "/")
	if db == "" {
		return ""
	}
	// mongodb URIs sometimes include extra path segments; we only support the first one as db name.
	if idx := strings.Index(db, "/"); idx >= 0 {
		db = db[:idx]
	}
	return db
}
