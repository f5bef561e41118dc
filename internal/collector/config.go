package collector

import (
	"log"
	"strings"

	"github.com/caarlos0/env/v6"
	"github.com/sirupsen/logrus"
)

var Config = struct {
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	Port        int    `env:"PORT" envDefault:"8080"`
	MetricsPort int    `env:"METRICS_PORT" envDefault:"9104"`

	// PostgreSQL related settings
	PostgresURI                   string `env:"POSTGRES_URI"`
	PostgresMaxConns              int32  `env:"POSTGRES_MAX_CONNS" envDefault:"25"`
	PostgresMinConns              int32  `env:"POSTGRES_MIN_CONNS" envDefault:"0"`
	PostgresMaxConnLifetime       string `env:"POSTGRES_MAX_CONN_LIFETIME" envDefault:"1h"`
	PostgresMaxConnLifetimeJitter string `env:"POSTGRES_MAX_CONN_LIFETIME_JITTER" envDefault:"10m"`
	PostgresMaxConnIdleTime       string `env:"POSTGRES_MAX_CONN_IDLE_TIME" envDefault:"30m"`
	PostgresHealthCheckPeriod     string `env:"POSTGRES_HEALTH_CHECK_PERIOD" envDefault:"1m"`
	PostgresLazyConnect           bool   `env:"POSTGRES_LAZY_CONNECT" envDefault:"false"`

	// Redis related settings (optional live-viewers cache)
	RedisURI          string `env:"REDIS_URI"`
	LiveViewerWindow  int    `env:"LIVE_VIEWER_WINDOW" envDefault:"60"` // seconds a view counts as live after its last beacon
	LiveGaugeInterval int    `env:"LIVE_GAUGE_INTERVAL" envDefault:"10"`

	// Other settings
	CorsEnable         bool     `env:"CORS_ENABLE"`
	RPSLimit           int      `env:"RPS_LIMIT" envDefault:"50"`
	TrustedProxyRanges []string `env:"TRUSTED_PROXY_RANGES" envDefault:"0.0.0.0/0"`
	MaxBodySize        int64    `env:"MAX_BODY_SIZE" envDefault:"1048576"` // 1 MB
	PprofEnabled       bool     `env:"PPROF_ENABLED" envDefault:"true"`
	EventRetention     int64    `env:"EVENT_RETENTION" envDefault:"86400"` // seconds, memory storage only
	Environment        string   `env:"ENVIRONMENT" envDefault:"production"`
}{}

func LoadConfig() {
	if err := env.Parse(&Config); err != nil {
		log.Fatalf("config parsing failed: %v\n", err)
	}

	level, err := logrus.ParseLevel(strings.ToLower(Config.LogLevel))
	if err != nil {
		log.Printf("Invalid LOG_LEVEL '%s', using default 'info'. Valid levels: panic, fatal, error, warn, info, debug, trace", Config.LogLevel)
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}
