package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Config carries everything the gateway needs at runtime. Values come from
// the environment, optionally seeded from config/.env during local
// development.
type Config struct {
	ServerAddr string

	Genie     GenieConfig
	Postgres  PostgresConfig
	Mongo     MongoConfig
	RedisURL  string
	Logging   LoggingConfig
	Bot       BotConfig
	Benchmark BenchmarkConfig
	Report    ReportConfig
	Dashboard DashboardConfig
}

// GenieConfig describes the external conversational query service.
type GenieConfig struct {
	Host         string
	Token        string
	SpaceID      string
	PollInterval time.Duration
	MaxWait      time.Duration
	HTTPTimeout  time.Duration
}

type PostgresConfig struct {
	URL            string
	MaxConns       int32
	MinConns       int32
	ConnectTimeout time.Duration
}

type MongoConfig struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
}

type LoggingConfig struct {
	Level        string
	Encoding     string
	Development  bool
	EnableCaller bool
	ServiceName  string
}

// BotConfig configures the chat-platform webhook surface.
type BotConfig struct {
	AppID         string
	WebhookSecret string
	// ConversationTTL bounds how long a channel thread keeps its Genie
	// conversation context in Redis.
	ConversationTTL time.Duration
}

type BenchmarkConfig struct {
	ResultsTable  string
	QuestionsPath string
}

type ReportConfig struct {
	OutputDir     string
	Title         string
	QuestionsPath string
	// ShareConversation keeps all report sections in one Genie conversation
	// so later questions can build on earlier answers.
	ShareConversation bool
}

type DashboardConfig struct {
	Name        string
	ParentPath  string
	WarehouseID string
	TableFQN    string
}

var (
	cfg     *Config
	loadErr error
	once    sync.Once
)

// Load reads configuration exactly once per process.
func Load() (*Config, error) {
	once.Do(func() {
		if err := loadEnvFiles(); err != nil {
			loadErr = fmt.Errorf("load env files: %w", err)
			return
		}

		host := strings.TrimRight(strings.TrimSpace(os.Getenv("DATABRICKS_HOST")), "/")

		cfg = &Config{
			ServerAddr: getEnv("SERVER_ADDR", ":8080"),
			Genie: GenieConfig{
				Host:         host,
				Token:        strings.TrimSpace(os.Getenv("DATABRICKS_TOKEN")),
				SpaceID:      strings.TrimSpace(os.Getenv("GENIE_SPACE_ID")),
				PollInterval: parseDuration(getEnv("GENIE_POLL_INTERVAL", "2s"), 2*time.Second),
				MaxWait:      parseDuration(getEnv("GENIE_MAX_WAIT", "5m"), 5*time.Minute),
				HTTPTimeout:  parseDuration(getEnv("GENIE_HTTP_TIMEOUT", "30s"), 30*time.Second),
			},
			Postgres: PostgresConfig{
				URL:            strings.TrimSpace(os.Getenv("DB_URL")),
				MaxConns:       parseInt32(getEnv("POSTGRES_MAX_CONNS", "8"), 8),
				MinConns:       parseInt32(getEnv("POSTGRES_MIN_CONNS", "1"), 1),
				ConnectTimeout: parseDuration(getEnv("POSTGRES_CONNECT_TIMEOUT", "5s"), 5*time.Second),
			},
			Mongo: MongoConfig{
				URI:            strings.TrimSpace(os.Getenv("MONGO_URI")),
				Database:       getEnv("MONGO_DATABASE", "genie_gateway"),
				ConnectTimeout: parseDuration(getEnv("MONGO_CONNECT_TIMEOUT", "5s"), 5*time.Second),
			},
			RedisURL: strings.TrimSpace(os.Getenv("REDIS_URL")),
			Logging: LoggingConfig{
				Level:        strings.ToLower(getEnv("LOG_LEVEL", "info")),
				Encoding:     strings.ToLower(getEnv("LOG_ENCODING", "console")),
				Development:  parseBool(getEnv("LOG_DEVELOPMENT", "false"), false),
				EnableCaller: parseBool(getEnv("LOG_CALLER", "false"), false),
				ServiceName:  getEnv("SERVICE_NAME", "genie-gateway"),
			},
			Bot: BotConfig{
				AppID:           strings.TrimSpace(os.Getenv("BOT_APP_ID")),
				WebhookSecret:   strings.TrimSpace(os.Getenv("BOT_WEBHOOK_SECRET")),
				ConversationTTL: parseDuration(getEnv("BOT_CONVERSATION_TTL", "24h"), 24*time.Hour),
			},
			Benchmark: BenchmarkConfig{
				ResultsTable:  getEnv("BENCHMARK_TABLE", "genie_benchmark_results"),
				QuestionsPath: strings.TrimSpace(os.Getenv("BENCHMARK_QUESTIONS_PATH")),
			},
			Report: ReportConfig{
				OutputDir:         getEnv("REPORT_OUTPUT_DIR", "reports"),
				Title:             getEnv("REPORT_TITLE", "CPI Weekly Report"),
				QuestionsPath:     strings.TrimSpace(os.Getenv("REPORT_QUESTIONS_PATH")),
				ShareConversation: parseBool(getEnv("REPORT_SHARE_CONVERSATION", "true"), true),
			},
			Dashboard: DashboardConfig{
				Name:        getEnv("DASHBOARD_NAME", "CPI World Regional Aggregates"),
				ParentPath:  getEnv("DASHBOARD_PARENT_PATH", "/Shared/genie-dashboards"),
				WarehouseID: strings.TrimSpace(os.Getenv("WAREHOUSE_ID")),
				TableFQN:    getEnv("DASHBOARD_TABLE_FQN", "acme_pilot.genie_ready.cpi_world_country_aggregates"),
			},
		}

		loadErr = cfg.validate()
	})

	return cfg, loadErr
}

func loadEnvFiles() error {
	if err := godotenv.Load("config/.env"); err != nil {
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) {
			// ignore missing config/.env so that environment variables can be supplied externally
			return nil
		}

		return err
	}

	return nil
}

func (c *Config) validate() error {
	missing := make([]string, 0, 3)

	if c.Genie.Host == "" {
		missing = append(missing, "DATABRICKS_HOST")
	}

	if c.Genie.Token == "" {
		missing = append(missing, "DATABRICKS_TOKEN")
	}

	if c.Genie.SpaceID == "" {
		missing = append(missing, "GENIE_SPACE_ID")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	return nil
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}

	return strings.TrimSpace(fallback)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil || value <= 0 {
		return fallback
	}

	return value
}

func parseInt32(raw string, fallback int32) int32 {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value <= 0 {
		return fallback
	}

	return int32(value)
}

func parseBool(raw string, fallback bool) bool {
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}

	return value
}
