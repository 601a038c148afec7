// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	BaseURL  string   `mapstructure:"base_url"`
	Server   Server   `mapstructure:"server"`
	DB       DB       `mapstructure:"db"`
	SMTP     SMTP     `mapstructure:"smtp"`
	Stripe   Stripe   `mapstructure:"stripe"`
	GPT      GPT      `mapstructure:"gpt"`
	Telegram Telegram `mapstructure:"telegram"`
	Worker   Worker   `mapstructure:"worker"`
	Log      Log      `mapstructure:"log"`
}

type Server struct {
	Port            string        `mapstructure:"port"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ExposeErrors    bool          `mapstructure:"expose_errors"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DB struct {
	Host           string        `mapstructure:"host"`
	Port           string        `mapstructure:"port"`
	User           string        `mapstructure:"user"`
	Password       string        `mapstructure:"password"`
	DBName         string        `mapstructure:"name"`
	SSLMode        string        `mapstructure:"sslmode"`
	MaxConns       int           `mapstructure:"max_conns"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	QueryTimeout   time.Duration `mapstructure:"query_timeout"`
}

type SMTP struct {
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Sender   string        `mapstructure:"sender"`
	Password string        `mapstructure:"password"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type Stripe struct {
	SecretKey    string        `mapstructure:"secret_key"`
	APIURL       string        `mapstructure:"api_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
	RequirePaid  bool          `mapstructure:"require_paid"`
	PriceMonths3 string        `mapstructure:"price_3_months"`
	PriceMonths4 string        `mapstructure:"price_4_months"`
	PriceMonths5 string        `mapstructure:"price_5_months"`
	PriceMonths6 string        `mapstructure:"price_6_months"`
}

// PriceTiers maps subscription length in months to the Stripe price id.
func (s Stripe) PriceTiers() map[int64]string {
	return map[int64]string{
		3: s.PriceMonths3,
		4: s.PriceMonths4,
		5: s.PriceMonths5,
		6: s.PriceMonths6,
	}
}

type GPT struct {
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type Telegram struct {
	Token       string `mapstructure:"token"`
	AdminChatID int64  `mapstructure:"admin_chat_id"`
}

type Worker struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
	// RetryBackoff is the wait after a first failed delivery; it doubles per
	// attempt up to MaxRetryBackoff.
	RetryBackoff    time.Duration `mapstructure:"retry_backoff"`
	MaxRetryBackoff time.Duration `mapstructure:"max_retry_backoff"`
	// ClaimTimeout is how long a claimed row may stay in processing before
	// another worker takes it over.
	ClaimTimeout time.Duration `mapstructure:"claim_timeout"`
}

type Log struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// envBindings keeps the environment names used by the existing deployment.
var envBindings = map[string]string{
	"base_url":                 "BASE_URL",
	"server.port":              "PORT",
	"server.allowed_origins":   "ALLOWED_ORIGINS",
	"server.expose_errors":     "EXPOSE_ERRORS",
	"server.shutdown_timeout":  "SHUTDOWN_TIMEOUT",
	"db.host":                  "DB_HOST",
	"db.port":                  "DB_PORT",
	"db.user":                  "DB_USER",
	"db.password":              "DB_PASSWORD",
	"db.name":                  "DB_NAME",
	"db.sslmode":               "DB_SSL_MODE",
	"db.max_conns":             "DB_MAX_CONNS",
	"db.connect_timeout":       "DB_CONNECT_TIMEOUT",
	"db.query_timeout":         "DB_QUERY_TIMEOUT",
	"smtp.host":                "SMTP_SERVER",
	"smtp.port":                "SMTP_PORT",
	"smtp.sender":              "SENDER_EMAIL",
	"smtp.password":            "APP_PASSWORD",
	"smtp.timeout":             "SMTP_TIMEOUT",
	"stripe.secret_key":        "STRIPE_API_KEY",
	"stripe.api_url":           "STRIPE_API_URL",
	"stripe.timeout":           "STRIPE_TIMEOUT",
	"stripe.require_paid":      "STRIPE_REQUIRE_PAID",
	"stripe.price_3_months":    "PRICE_ID_3_MONTHS",
	"stripe.price_4_months":    "PRICE_ID_4_MONTHS",
	"stripe.price_5_months":    "PRICE_ID_5_MONTHS",
	"stripe.price_6_months":    "PRICE_ID_6_MONTHS",
	"gpt.api_key":              "OPENAI_API_KEY",
	"gpt.model":                "GPT_MODEL",
	"gpt.base_url":             "GPT_BASE_URL",
	"gpt.timeout":              "GPT_TIMEOUT",
	"telegram.token":           "TELEGRAM_TOKEN",
	"telegram.admin_chat_id":   "TELEGRAM_ADMIN_CHAT_ID",
	"worker.enabled":           "WORKER_ENABLED",
	"worker.interval":          "WORKER_INTERVAL",
	"worker.retry_backoff":     "WORKER_RETRY_BACKOFF",
	"worker.max_retry_backoff": "WORKER_MAX_RETRY_BACKOFF",
	"worker.claim_timeout":     "WORKER_CLAIM_TIMEOUT",
	"log.level":                "LOG_LEVEL",
	"log.development":          "LOG_DEVELOPMENT",
}

// Load loads the configuration. Precedence: environment (including .env),
// then config file, then defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("$HOME/.plannerrun")

	setDefaults(v)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("error binding %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Process any ${ENV_VAR} syntax in the config values
	for _, key := range v.AllKeys() {
		value := v.GetString(key)
		if strings.HasPrefix(value, "${") && strings.HasSuffix(value, "}") {
			envVar := strings.TrimPrefix(strings.TrimSuffix(value, "}"), "${")
			if envValue := os.Getenv(envVar); envValue != "" {
				v.Set(key, envValue)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("base_url", "http://k8s.local")
	v.SetDefault("server.port", "5000")
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.expose_errors", false)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("db.host", "db-service")
	v.SetDefault("db.port", "5432")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.name", "plannerrun")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_conns", 10)
	v.SetDefault("db.connect_timeout", 5*time.Second)
	v.SetDefault("db.query_timeout", 5*time.Second)
	v.SetDefault("smtp.host", "smtp.gmail.com")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.sender", "noreply@example.com")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.timeout", 15*time.Second)
	v.SetDefault("stripe.secret_key", "")
	v.SetDefault("stripe.api_url", "")
	v.SetDefault("stripe.timeout", 10*time.Second)
	v.SetDefault("stripe.require_paid", true)
	v.SetDefault("stripe.price_3_months", "")
	v.SetDefault("stripe.price_4_months", "")
	v.SetDefault("stripe.price_5_months", "")
	v.SetDefault("stripe.price_6_months", "")
	v.SetDefault("gpt.api_key", "")
	v.SetDefault("gpt.model", "gpt-4o-mini")
	v.SetDefault("gpt.base_url", "")
	v.SetDefault("gpt.timeout", 60*time.Second)
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.admin_chat_id", 0)
	v.SetDefault("worker.enabled", false)
	v.SetDefault("worker.interval", 30*time.Second)
	v.SetDefault("worker.retry_backoff", time.Minute)
	v.SetDefault("worker.max_retry_backoff", time.Hour)
	v.SetDefault("worker.claim_timeout", 15*time.Minute)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// Origins is the CORS allow-list for the frontend.
func (c *Config) Origins() []string {
	origins := []string{
		c.BaseURL,
		c.BaseURL + ":3000",
		"http://localhost:3000",
		"http://127.0.0.1:3000",
		"https://plannerrun.com",
		"https://www.plannerrun.com",
	}
	for _, o := range c.Server.AllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, strings.TrimRight(o, "/"))
		}
	}
	return origins
}

// Validate checks the settings the HTTP API cannot run without.
func (c *Config) Validate() error {
	var missing []string
	if c.Stripe.SecretKey == "" {
		missing = append(missing, "STRIPE_API_KEY")
	}
	configured := 0
	for _, price := range c.Stripe.PriceTiers() {
		if price != "" {
			configured++
		}
	}
	if configured == 0 {
		missing = append(missing, "PRICE_ID_<N>_MONTHS")
	}
	if c.SMTP.Sender == "" {
		missing = append(missing, "SENDER_EMAIL")
	}
	if c.Telegram.Token != "" && c.Telegram.AdminChatID == 0 {
		missing = append(missing, "TELEGRAM_ADMIN_CHAT_ID")
	}
	if len(missing) > 0 {
		return fmt.Errorf("configuration is incomplete, missing: %s", strings.Join(missing, ", "))
	}
	return nil
}
