package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Cash book due-collection sources
const (
	DueSourcePaymentEvents = "payment_events"
	DueSourceAuditLog      = "audit_log"
)

type Config struct {
	Server struct {
		Port                 int      `mapstructure:"port"`
		CorsAllowedOrigins   []string `mapstructure:"cors_allowed_origins"`
		CorsAllowedMethods   []string `mapstructure:"cors_allowed_methods"`
		CorsAllowedHeaders   []string `mapstructure:"cors_allowed_headers"`
		// CorsExposedHeaders are readable by browser clients, e.g. the export filename
		CorsExposedHeaders   []string `mapstructure:"cors_exposed_headers"`
		CorsAllowCredentials bool     `mapstructure:"cors_allow_credentials"`
		CorsMaxAgeSeconds    int      `mapstructure:"cors_max_age_seconds"`
	} `mapstructure:"server"`

	Database struct {
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Name     string `mapstructure:"name"`
		MaxConns int32  `mapstructure:"max_conns"`
		// LockTimeoutMs bounds how long an invoice mutation waits for the row lock
		LockTimeoutMs int `mapstructure:"lock_timeout_ms"`
	} `mapstructure:"database"`

	JWT struct {
		Secret          string `mapstructure:"secret"`
		ExpirationHours int    `mapstructure:"expiration_hours"`
		Issuer          string `mapstructure:"issuer"`
	} `mapstructure:"jwt"`

	Redis struct {
		Enabled  bool   `mapstructure:"enabled"`
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`

	CashBook struct {
		MaxRangeDays    int    `mapstructure:"max_range_days"`
		DueSource       string `mapstructure:"due_source"`
		CacheTTLSeconds int    `mapstructure:"cache_ttl_seconds"`
	} `mapstructure:"cashbook"`

	Commission struct {
		TieBreakDays int `mapstructure:"tie_break_days"`
	} `mapstructure:"commission"`

	Notify struct {
		Provider    string `mapstructure:"provider"` // fast2sms, mock or none
		Fast2SMSKey string `mapstructure:"fast2sms_api_key"`
		Route       string `mapstructure:"route"`
		SenderID    string `mapstructure:"sender_id"`
		TemplateID  string `mapstructure:"template_id"`
		LabName     string `mapstructure:"lab_name"`
	} `mapstructure:"notify"`

	R2 struct {
		Endpoint  string `mapstructure:"endpoint"`
		AccessKey string `mapstructure:"access_key"`
		SecretKey string `mapstructure:"secret_key"`
		Bucket    string `mapstructure:"bucket"`
		Region    string `mapstructure:"region"`
	} `mapstructure:"r2"`

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
		Output string `mapstructure:"output"`
	} `mapstructure:"log"`
}

// R2Enabled reports whether cash book exports should be archived
func (c *Config) R2Enabled() bool {
	return c.R2.Endpoint != "" && c.R2.Bucket != "" && c.R2.AccessKey != ""
}

// DatabaseURL is the pgx connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.Database.User, c.Database.Password, c.Database.Host, c.Database.Port, c.Database.Name)
}

// DefaultPath is the config file read when none is given
const DefaultPath = "configs/config.yaml"

// Load reads .env, the YAML file at path and the environment
func Load(path string) (*Config, error) {
	// Load .env file if exists (ignore error in production)
	godotenv.Load()
	if path == "" {
		path = DefaultPath
	}
	return LoadFile(path)
}

// LoadFile reads the given YAML file. A missing file is not an error; defaults and
// environment variables still apply.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(path)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_allowed_origins", []string{"*"})
	v.SetDefault("server.cors_allowed_methods", []string{"GET", "POST", "PUT", "OPTIONS"})
	v.SetDefault("server.cors_allowed_headers", []string{"Authorization", "Content-Type", "X-Request-ID"})
	v.SetDefault("server.cors_exposed_headers", []string{"X-Request-ID", "Content-Disposition"})
	v.SetDefault("server.cors_allow_credentials", true)
	v.SetDefault("server.cors_max_age_seconds", 300)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.name", "lab_db")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.lock_timeout_ms", 5000)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiration_hours", 24)
	v.SetDefault("jwt.issuer", "lab-backend")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("cashbook.max_range_days", 366)
	v.SetDefault("cashbook.due_source", DueSourcePaymentEvents)
	v.SetDefault("cashbook.cache_ttl_seconds", 60)
	v.SetDefault("commission.tie_break_days", 30)
	v.SetDefault("notify.provider", "mock")
	v.SetDefault("notify.fast2sms_api_key", "")
	v.SetDefault("notify.route", "q")
	v.SetDefault("notify.lab_name", "Diagnostics")
	v.SetDefault("r2.endpoint", "")
	v.SetDefault("r2.access_key", "")
	v.SetDefault("r2.secret_key", "")
	v.SetDefault("r2.bucket", "")
	v.SetDefault("r2.region", "auto")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")

	if err := v.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(path); statErr == nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal error: %w", err)
	}
	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnvOverrides honours the short variable names used by the deployment
func applyEnvOverrides(cfg *Config) {
	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.Database.Host = host
	}
	if port := os.Getenv("DB_PORT"); port != "" {
		if n, err := strconv.Atoi(port); err == nil && n > 0 {
			cfg.Database.Port = n
		}
	}
	if user := os.Getenv("DB_USER"); user != "" {
		cfg.Database.User = user
	}
	if pass := os.Getenv("DB_PASSWORD"); pass != "" {
		cfg.Database.Password = pass
	}
	if name := os.Getenv("DB_NAME"); name != "" {
		cfg.Database.Name = name
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		cfg.JWT.Secret = secret
	}
	if host := os.Getenv("REDIS_HOST"); host != "" {
		cfg.Redis.Host = host
		cfg.Redis.Enabled = true
	}
	if key := os.Getenv("FAST2SMS_API_KEY"); key != "" {
		cfg.Notify.Fast2SMSKey = key
	}
	for env, dst := range map[string]*string{
		"R2_ENDPOINT":   &cfg.R2.Endpoint,
		"R2_ACCESS_KEY": &cfg.R2.AccessKey,
		"R2_SECRET_KEY": &cfg.R2.SecretKey,
		"R2_BUCKET":     &cfg.R2.Bucket,
	} {
		if val := os.Getenv(env); val != "" {
			*dst = val
		}
	}
}

// Validate rejects configurations the server cannot start with
func (c *Config) Validate() error {
	if c.JWT.Secret == "" || c.JWT.Secret == "${JWT_SECRET}" {
		return fmt.Errorf("JWT_SECRET is not set")
	}
	switch c.CashBook.DueSource {
	case DueSourcePaymentEvents, DueSourceAuditLog:
	default:
		return fmt.Errorf("cashbook.due_source must be %q or %q, got %q",
			DueSourcePaymentEvents, DueSourceAuditLog, c.CashBook.DueSource)
	}
	if c.CashBook.MaxRangeDays <= 0 {
		return fmt.Errorf("cashbook.max_range_days must be > 0, got %d", c.CashBook.MaxRangeDays)
	}
	if c.Commission.TieBreakDays <= 0 {
		return fmt.Errorf("commission.tie_break_days must be > 0, got %d", c.Commission.TieBreakDays)
	}
	switch c.Notify.Provider {
	case "fast2sms":
		if c.Notify.Fast2SMSKey == "" {
			return fmt.Errorf("notify.provider fast2sms needs FAST2SMS_API_KEY")
		}
	case "mock", "none":
	default:
		return fmt.Errorf("unknown notify.provider %q", c.Notify.Provider)
	}
	return nil
}
