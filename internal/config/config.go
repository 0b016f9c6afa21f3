// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Port           string
	FrontendURL    string
	LogLevel       string
	GRPCHealthAddr string
	Agent          AgentConfig
	Telegram       TelegramConfig
	WhatsApp       WhatsAppConfig
	History        HistoryConfig
}

// AgentConfig configures the upstream verification agent.
type AgentConfig struct {
	BaseURL    string
	AppName    string
	Timeout    time.Duration
	SessionTTL time.Duration
	Warmup     bool
}

// TelegramConfig configures the Telegram bot channel.
type TelegramConfig struct {
	BotToken   string
	APIBase    string
	WebhookURL string
}

// WhatsAppConfig configures the WhatsApp Cloud API channel.
type WhatsAppConfig struct {
	VerifyToken   string
	AccessToken   string
	PhoneNumberID string
	GraphBase     string
}

// HistoryConfig controls the verification history database.
type HistoryConfig struct {
	DBPath    string
	Retention time.Duration
}

// Defaults returns the configuration used when nothing is overridden.
func Defaults() *Config {
	return &Config{
		Port:     "5000",
		LogLevel: "info",
		Agent: AgentConfig{
			BaseURL:    "https://truthguardagent.onrender.com",
			AppName:    "news_info_verification_v2",
			Timeout:    300 * time.Second,
			SessionTTL: 6 * time.Hour,
			Warmup:     true,
		},
		Telegram: TelegramConfig{
			APIBase: "https://api.telegram.org",
		},
		WhatsApp: WhatsAppConfig{
			GraphBase: "https://graph.facebook.com/v20.0",
		},
		History: HistoryConfig{
			DBPath:    "./data/truthguard.db",
			Retention: 30 * 24 * time.Hour,
		},
	}
}

// Load reads configuration from an optional YAML file named by CONFIG_FILE
// and then from environment variables. Environment variables always win.
func Load() (*Config, error) {
	cfg := Defaults()

	if path := getEnv("CONFIG_FILE", ""); path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, err
		}
	}
	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.FrontendURL = getEnv("FRONTEND_URL", cfg.FrontendURL)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.GRPCHealthAddr = getEnv("GRPC_HEALTH_ADDR", cfg.GRPCHealthAddr)

	cfg.Agent.BaseURL = getEnv("ADK_BASE", cfg.Agent.BaseURL)
	cfg.Agent.AppName = getEnv("ADK_APP_NAME", cfg.Agent.AppName)
	cfg.Agent.Timeout = getEnvSeconds("ADK_TIMEOUT_SEC", cfg.Agent.Timeout)
	cfg.Agent.SessionTTL = getEnvDuration("ADK_SESSION_TTL", cfg.Agent.SessionTTL)
	cfg.Agent.Warmup = getEnvBool("ADK_WARMUP", cfg.Agent.Warmup)

	cfg.Telegram.BotToken = getEnv("TELEGRAM_BOT_TOKEN", cfg.Telegram.BotToken)
	cfg.Telegram.APIBase = getEnv("TELEGRAM_API_BASE", cfg.Telegram.APIBase)
	cfg.Telegram.WebhookURL = getEnv("TELEGRAM_WEBHOOK_URL", cfg.Telegram.WebhookURL)

	cfg.WhatsApp.VerifyToken = getEnv("WHATSAPP_VERIFY_TOKEN", cfg.WhatsApp.VerifyToken)
	cfg.WhatsApp.AccessToken = getEnv("WHATSAPP_ACCESS_TOKEN", cfg.WhatsApp.AccessToken)
	cfg.WhatsApp.PhoneNumberID = getEnv("WHATSAPP_PHONE_NUMBER_ID", cfg.WhatsApp.PhoneNumberID)
	cfg.WhatsApp.GraphBase = getEnv("WHATSAPP_GRAPH_BASE", cfg.WhatsApp.GraphBase)

	cfg.History.DBPath = getEnv("DB_PATH", cfg.History.DBPath)
	cfg.History.Retention = getEnvDuration("HISTORY_RETENTION", cfg.History.Retention)
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.Agent.BaseURL == "" {
		return fmt.Errorf("ADK_BASE cannot be empty")
	}
	u, err := url.Parse(c.Agent.BaseURL)
	if err != nil {
		return fmt.Errorf("ADK_BASE is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("ADK_BASE must use http or https scheme")
	}
	if c.Agent.AppName == "" {
		return fmt.Errorf("ADK_APP_NAME cannot be empty")
	}
	if c.Agent.Timeout <= 0 {
		return fmt.Errorf("ADK_TIMEOUT_SEC must be > 0")
	}
	if c.Agent.SessionTTL <= 0 {
		return fmt.Errorf("ADK_SESSION_TTL must be > 0")
	}
	if c.History.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.History.Retention <= 0 {
		return fmt.Errorf("HISTORY_RETENTION must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// TelegramEnabled reports whether the Telegram webhook route should be mounted.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != ""
}

// writeMargin covers reply formatting, history writes and slow clients.
const writeMargin = 30 * time.Second

// HTTPWriteTimeout bounds how long a handler may take to answer. A cold
// verification provisions a session and then runs a turn, each bounded by
// the agent timeout, so the budget covers two upstream calls.
func (c *Config) HTTPWriteTimeout() time.Duration {
	return 2*c.Agent.Timeout + writeMargin
}

// SlogLevel maps LogLevel onto a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// fileConfig mirrors Config for YAML decoding. Durations are kept as raw
// strings and parsed afterwards.
type fileConfig struct {
	Server struct {
		Port           string `yaml:"port"`
		FrontendURL    string `yaml:"frontend_url"`
		GRPCHealthAddr string `yaml:"grpc_health_addr"`
	} `yaml:"server"`
	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
	Agent struct {
		BaseURL       string `yaml:"base_url"`
		AppName       string `yaml:"app_name"`
		TimeoutRaw    string `yaml:"timeout"`
		SessionTTLRaw string `yaml:"session_ttl"`
		Warmup        *bool  `yaml:"warmup"`
	} `yaml:"agent"`
	Telegram struct {
		BotToken   string `yaml:"bot_token"`
		APIBase    string `yaml:"api_base"`
		WebhookURL string `yaml:"webhook_url"`
	} `yaml:"telegram"`
	WhatsApp struct {
		VerifyToken   string `yaml:"verify_token"`
		AccessToken   string `yaml:"access_token"`
		PhoneNumberID string `yaml:"phone_number_id"`
		GraphBase     string `yaml:"graph_base"`
	} `yaml:"whatsapp"`
	History struct {
		DBPath       string `yaml:"db_path"`
		RetentionRaw string `yaml:"retention"`
	} `yaml:"history"`
}

// applyFile overlays non-empty values from the YAML file at path onto cfg.
// ${VAR} references are expanded from the environment before parsing.
func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), &fc); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	setString(&cfg.Port, fc.Server.Port)
	setString(&cfg.FrontendURL, fc.Server.FrontendURL)
	setString(&cfg.GRPCHealthAddr, fc.Server.GRPCHealthAddr)
	setString(&cfg.LogLevel, fc.Logging.Level)

	setString(&cfg.Agent.BaseURL, fc.Agent.BaseURL)
	setString(&cfg.Agent.AppName, fc.Agent.AppName)
	if fc.Agent.Warmup != nil {
		cfg.Agent.Warmup = *fc.Agent.Warmup
	}
	if err := setDuration(&cfg.Agent.Timeout, fc.Agent.TimeoutRaw, "agent.timeout"); err != nil {
		return err
	}
	if err := setDuration(&cfg.Agent.SessionTTL, fc.Agent.SessionTTLRaw, "agent.session_ttl"); err != nil {
		return err
	}

	setString(&cfg.Telegram.BotToken, fc.Telegram.BotToken)
	setString(&cfg.Telegram.APIBase, fc.Telegram.APIBase)
	setString(&cfg.Telegram.WebhookURL, fc.Telegram.WebhookURL)

	setString(&cfg.WhatsApp.VerifyToken, fc.WhatsApp.VerifyToken)
	setString(&cfg.WhatsApp.AccessToken, fc.WhatsApp.AccessToken)
	setString(&cfg.WhatsApp.PhoneNumberID, fc.WhatsApp.PhoneNumberID)
	setString(&cfg.WhatsApp.GraphBase, fc.WhatsApp.GraphBase)

	setString(&cfg.History.DBPath, fc.History.DBPath)
	return setDuration(&cfg.History.Retention, fc.History.RetentionRaw, "history.retention")
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} with the environment value, or "" if unset.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, raw, field string) error {
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parsing %s %q: %w", field, raw, err)
	}
	*dst = d
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// getEnvSeconds reads a (possibly fractional) number of seconds.
func getEnvSeconds(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	secs, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || secs <= 0 {
		return fallback
	}
	return time.Duration(secs * float64(time.Second))
}
