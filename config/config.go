package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"newsdesk_backend/services/providers"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    string

	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	DBPath     string

	QuoteStore    string
	MongoURI      string
	MongoDatabase string

	JWTSecret        string
	ScraperNotifyURL string
	AssetSeedFile    string
	MarketAutostart  bool

	PublicRequestsPerMinute int
	StreamMaxClients        int

	Providers providers.Config
}

var AppConfig *Config
var DB *gorm.DB

// providerEnvPrefixes maps provider ids to their environment variable prefix
var providerEnvPrefixes = map[string]string{
	"alphavantage": "ALPHAVANTAGE",
	"finnhub":      "FINNHUB",
	"marketstack":  "MARKETSTACK",
	"twelvedata":   "TWELVEDATA",
	"fmp":          "FMP",
	"coingecko":    "COINGECKO",
	"exchangerate": "EXCHANGERATE",
}

// LoadConfig loads environment variables
func LoadConfig() (*Config, error) {
	envErr := godotenv.Load()

	config := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		DBDriver:   strings.ToLower(getEnv("DB_DRIVER", "postgres")),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "newsdesk"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),
		DBPath:     getEnv("DB_PATH", "data/newsdesk.db"),

		QuoteStore:    strings.ToLower(getEnv("QUOTE_STORE", "sql")),
		MongoURI:      getEnv("MONGODB_URI", ""),
		MongoDatabase: getEnv("MONGODB_DATABASE", "newsdesk"),

		JWTSecret:        getEnv("JWT_SECRET", ""),
		ScraperNotifyURL: getEnv("SCRAPER_NOTIFY_URL", ""),
		AssetSeedFile:    getEnv("ASSET_SEED_FILE", ""),
		MarketAutostart:  getEnvBool("MARKET_AUTOSTART", true),

		PublicRequestsPerMinute: getEnvInt("PUBLIC_RPM", 120),
		StreamMaxClients:        getEnvInt("STREAM_MAX_CLIENTS", 100),

		Providers: providers.Config{
			AlphaVantageKey:   getEnv("ALPHAVANTAGE_API_KEY", ""),
			FinnhubKey:        getEnv("FINNHUB_API_KEY", ""),
			MarketstackKey:    getEnv("MARKETSTACK_API_KEY", ""),
			TwelveDataKey:     getEnv("TWELVEDATA_API_KEY", ""),
			FMPKey:            getEnv("FMP_API_KEY", ""),
			CoinGeckoKey:      getEnv("COINGECKO_API_KEY", ""),
			RequestsPerMinute: providerRPMOverrides(),
		},
	}

	if config.QuoteStore == "mongo" && config.MongoURI == "" {
		return config, fmt.Errorf("QUOTE_STORE=mongo requires MONGODB_URI")
	}

	AppConfig = config
	if envErr != nil {
		return config, fmt.Errorf("no .env file loaded: %w", envErr)
	}
	return config, nil
}

// InitLogger configures the global zerolog logger
func InitLogger(cfg *Config) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if cfg.Environment != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

// InitDB opens the configured database
func InitDB() (*gorm.DB, error) {
	var logLevel logger.LogLevel
	if AppConfig.Environment == "production" {
		logLevel = logger.Error
	} else {
		logLevel = logger.Warn
	}
	gormConfig := &gorm.Config{Logger: logger.Default.LogMode(logLevel)}

	var dialector gorm.Dialector
	switch AppConfig.DBDriver {
	case "sqlite":
		if dir := filepath.Dir(AppConfig.DBPath); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		log.Info().Str("path", AppConfig.DBPath).Msg("opening sqlite database")
		dialector = sqlite.Open(AppConfig.DBPath)
	case "postgres":
		log.Info().
			Str("host", maskHost(AppConfig.DBHost)).
			Str("port", AppConfig.DBPort).
			Str("user", AppConfig.DBUser).
			Str("dbname", AppConfig.DBName).
			Msg("connecting to database")
		dialector = postgres.Open(fmt.Sprintf(
			"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
			AppConfig.DBHost,
			AppConfig.DBUser,
			AppConfig.DBPassword,
			AppConfig.DBName,
			AppConfig.DBPort,
			AppConfig.DBSSLMode,
		))
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", AppConfig.DBDriver)
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database: %w", err)
	}
	if AppConfig.DBDriver == "sqlite" {
		// sqlite allows a single writer
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	log.Info().Str("driver", AppConfig.DBDriver).Msg("database connection verified")
	DB = db
	return db, nil
}

// providerRPMOverrides reads <PROVIDER>_RPM variables
func providerRPMOverrides() map[string]int {
	out := make(map[string]int)
	for id, prefix := range providerEnvPrefixes {
		raw := os.Getenv(prefix + "_RPM")
		if raw == "" {
			continue
		}
		rpm, err := strconv.Atoi(raw)
		if err != nil {
			log.Warn().Str("variable", prefix+"_RPM").Str("value", raw).Msg("ignoring invalid requests-per-minute override")
			continue
		}
		out[id] = rpm
	}
	return out
}

// maskHost masks host for logging, preserving domain structure
func maskHost(host string) string {
	if len(host) <= 3 {
		return "***"
	}
	if len(host) <= 15 {
		return host[:3] + "***"
	}
	return host[:8] + "***" + host[len(host)-10:]
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}
