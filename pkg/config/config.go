package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/fx"
)

type Config struct {
	AppEnv     string `mapstructure:"APP_ENV"`
	AppName    string `mapstructure:"APP_NAME"`
	AppVersion string `mapstructure:"APP_VERSION"`
	NodeID     int64  `mapstructure:"NODE_ID"`
	TLS        struct {
		Enable   bool   `mapstructure:"ENABLE"`
		CertPath string `mapstructure:"CERT_PATH"`
		KeyPath  string `mapstructure:"KEY_PATH"`
	} `mapstructure:"TLS"`
	Otel struct {
		Addr     string `mapstructure:"ADDR"`
		Protocol string `mapstructure:"PROTOCOL"`
		Insecure bool   `mapstructure:"INSECURE"`
	} `mapstructure:"OTEL"`
	Pyroscope struct {
		Addr string `mapstructure:"ADDR"`
	} `mapstructure:"PYROSCOPE"`
	Server struct {
		Addr         string        `mapstructure:"ADDR"`
		ReadTimeout  time.Duration `mapstructure:"READ_TIMEOUT"`
		WriteTimeout time.Duration `mapstructure:"WRITE_TIMEOUT"`
		IdleTimeout  time.Duration `mapstructure:"IDLE_TIMEOUT"`
	} `mapstructure:"HTTP_SERVER"`
	Database struct {
		Type           string `mapstructure:"TYPE"`
		Host           string `mapstructure:"HOST"`
		Port           string `mapstructure:"PORT"`
		DBNAME         string `mapstructure:"DBNAME"`
		User           string `mapstructure:"USER"`
		Password       string `mapstructure:"PASSWORD"`
		SSLMode        string `mapstructure:"SSLMODE"`
		Timezone       string `mapstructure:"TIMEZONE"`
		DSN            string `mapstructure:"DSN"`
		Metrics        bool   `mapstructure:"METRICS"`
		ConnectionPool struct {
			MaxIdleConn     int           `mapstructure:"MAX_IDLE_CONN"`
			MaxOpenConns    int           `mapstructure:"MAX_OPEN_CONNS"`
			ConnMaxLifetime time.Duration `mapstructure:"CONN_MAX_LIFETIME"`
			ConnMaxIdleTime time.Duration `mapstructure:"CONN_MAX_IDLE_TIME"`
		} `mapstructure:"CONNECTION_POOL"`
	} `mapstructure:"DATABASE"`
	Redis struct {
		Addr        string        `mapstructure:"ADDR"`
		Password    string        `mapstructure:"PASSWORD"`
		DB          int           `mapstructure:"DB"`
		PoolSize    int           `mapstructure:"POOL_SIZE"`
		PoolTimeout time.Duration `mapstructure:"POOL_TIMEOUT"`
	} `mapstructure:"REDIS"`
	Flagsmith struct {
		Addr   string `mapstructure:"ADDR"`
		ApiKey string `mapstructure:"API_KEY"`
	} `mapstructure:"FLAGSMITH"`
	Catalog struct {
		Provider    string        `mapstructure:"PROVIDER"`
		Endpoint    string        `mapstructure:"ENDPOINT"`
		AccessToken string        `mapstructure:"ACCESS_TOKEN"`
		Timeout     time.Duration `mapstructure:"TIMEOUT"`
		RateLimit   float64       `mapstructure:"RATE_LIMIT"`
		Burst       int           `mapstructure:"BURST"`
	} `mapstructure:"CATALOG"`
	Plans struct {
		Provider     string        `mapstructure:"PROVIDER"`
		CacheTTL     time.Duration `mapstructure:"CACHE_TTL"`
		FreeMaxItems int           `mapstructure:"FREE_MAX_ITEMS"`
		PlusMaxItems int           `mapstructure:"PLUS_MAX_ITEMS"`
	} `mapstructure:"PLANS"`
	Scheduler struct {
		PollInterval time.Duration `mapstructure:"POLL_INTERVAL"`
		BatchSize    int           `mapstructure:"BATCH_SIZE"`
		Workers      int           `mapstructure:"WORKERS"`
		StaleAfter   time.Duration `mapstructure:"STALE_AFTER"`
	} `mapstructure:"SCHEDULER"`
	Executor struct {
		Parallelism    int           `mapstructure:"PARALLELISM"`
		MaxRetries     int           `mapstructure:"MAX_RETRIES"`
		RetryBaseDelay time.Duration `mapstructure:"RETRY_BASE_DELAY"`
		RetryMaxDelay  time.Duration `mapstructure:"RETRY_MAX_DELAY"`
		AttemptTimeout time.Duration `mapstructure:"ATTEMPT_TIMEOUT"`
		Heartbeat      time.Duration `mapstructure:"HEARTBEAT"`
	} `mapstructure:"EXECUTOR"`
}

var Module = fx.Module("config", fx.Provide(LoadConfig))

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("APP_NAME", "bulkprice")
	v.SetDefault("APP_VERSION", "dev")
	v.SetDefault("NODE_ID", 1)

	// Keys without a meaningful default are still registered so AutomaticEnv
	// can bind them during Unmarshal.
	for key, zero := range map[string]any{
		"TLS.ENABLE":           false,
		"TLS.CERT_PATH":        "",
		"TLS.KEY_PATH":         "",
		"OTEL.ADDR":            "",
		"OTEL.INSECURE":        false,
		"PYROSCOPE.ADDR":       "",
		"DATABASE.USER":        "",
		"DATABASE.PASSWORD":    "",
		"DATABASE.DSN":         "",
		"DATABASE.METRICS":     false,
		"REDIS.PASSWORD":       "",
		"REDIS.DB":             0,
		"FLAGSMITH.ADDR":       "",
		"FLAGSMITH.API_KEY":    "",
		"CATALOG.ENDPOINT":     "",
		"CATALOG.ACCESS_TOKEN": "",
	} {
		v.SetDefault(key, zero)
	}

	v.SetDefault("OTEL.PROTOCOL", "grpc")

	v.SetDefault("HTTP_SERVER.ADDR", "8080")
	v.SetDefault("HTTP_SERVER.READ_TIMEOUT", 15*time.Second)
	v.SetDefault("HTTP_SERVER.WRITE_TIMEOUT", 15*time.Second)
	v.SetDefault("HTTP_SERVER.IDLE_TIMEOUT", 60*time.Second)

	v.SetDefault("DATABASE.TYPE", "postgres")
	v.SetDefault("DATABASE.HOST", "localhost")
	v.SetDefault("DATABASE.PORT", "5432")
	v.SetDefault("DATABASE.DBNAME", "bulkprice")
	v.SetDefault("DATABASE.SSLMODE", "disable")
	v.SetDefault("DATABASE.TIMEZONE", "UTC")
	v.SetDefault("DATABASE.CONNECTION_POOL.MAX_IDLE_CONN", 5)
	v.SetDefault("DATABASE.CONNECTION_POOL.MAX_OPEN_CONNS", 20)
	v.SetDefault("DATABASE.CONNECTION_POOL.CONN_MAX_LIFETIME", time.Hour)
	v.SetDefault("DATABASE.CONNECTION_POOL.CONN_MAX_IDLE_TIME", 10*time.Minute)

	v.SetDefault("REDIS.ADDR", "localhost:6379")
	v.SetDefault("REDIS.POOL_SIZE", 10)
	v.SetDefault("REDIS.POOL_TIMEOUT", 4*time.Second)

	v.SetDefault("CATALOG.PROVIDER", "http")
	v.SetDefault("CATALOG.TIMEOUT", 10*time.Second)
	v.SetDefault("CATALOG.RATE_LIMIT", 2.0)
	v.SetDefault("CATALOG.BURST", 4)

	v.SetDefault("PLANS.PROVIDER", "database")
	v.SetDefault("PLANS.CACHE_TTL", 5*time.Minute)
	v.SetDefault("PLANS.FREE_MAX_ITEMS", 50)
	v.SetDefault("PLANS.PLUS_MAX_ITEMS", 100)

	v.SetDefault("SCHEDULER.POLL_INTERVAL", 30*time.Second)
	v.SetDefault("SCHEDULER.BATCH_SIZE", 100)
	v.SetDefault("SCHEDULER.WORKERS", 4)
	v.SetDefault("SCHEDULER.STALE_AFTER", 15*time.Minute)

	v.SetDefault("EXECUTOR.PARALLELISM", 5)
	v.SetDefault("EXECUTOR.MAX_RETRIES", 3)
	v.SetDefault("EXECUTOR.RETRY_BASE_DELAY", 500*time.Millisecond)
	v.SetDefault("EXECUTOR.RETRY_MAX_DELAY", 15*time.Second)
	v.SetDefault("EXECUTOR.ATTEMPT_TIMEOUT", 10*time.Second)
	v.SetDefault("EXECUTOR.HEARTBEAT", time.Minute)
}

// LoadConfig reads config.yaml from the working directory when present and
// lets environment variables override every key (HTTP_SERVER.ADDR -> HTTP_SERVER_ADDR).
func LoadConfig() (*Config, error) {
	return load(viper.New(), ".")
}

func load(v *viper.Viper, paths ...string) (*Config, error) {
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.TLS.Enable && (c.TLS.CertPath == "" || c.TLS.KeyPath == "") {
		return fmt.Errorf("tls enabled but TLS.CERT_PATH or TLS.KEY_PATH not provided")
	}

	switch c.Catalog.Provider {
	case "http":
		if c.Catalog.Endpoint == "" {
			return fmt.Errorf("catalog provider http requires CATALOG.ENDPOINT")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown catalog provider %q", c.Catalog.Provider)
	}

	switch c.Plans.Provider {
	case "database":
	case "flagsmith":
		if c.Flagsmith.ApiKey == "" {
			return fmt.Errorf("plans provider flagsmith requires FLAGSMITH.API_KEY")
		}
	default:
		return fmt.Errorf("unknown plans provider %q", c.Plans.Provider)
	}

	switch c.Otel.Protocol {
	case "grpc", "http":
	default:
		return fmt.Errorf("unknown otel protocol %q", c.Otel.Protocol)
	}

	if c.Scheduler.StaleAfter > 0 && c.Executor.Heartbeat >= c.Scheduler.StaleAfter {
		return fmt.Errorf("EXECUTOR.HEARTBEAT must be shorter than SCHEDULER.STALE_AFTER")
	}

	switch c.Database.Type {
	case "postgres", "mysql", "sqlite":
	default:
		return fmt.Errorf("unknown database type %q", c.Database.Type)
	}

	return nil
}
