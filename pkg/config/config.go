package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App      AppConfig
	Service  ServiceConfig
	DB       DBConfig
	Redis    RedisConfig
	GCP      GCPConfig
	PubSub   PubSubConfig
	BigQuery BigQueryConfig
	Shopify  ShopifyConfig
	Meta     MetaConfig
	Square   SquareConfig
	Sync     SyncConfig
	Flags    FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CHANNELSYNC_APP_ENV" required:"true"`
	LogLevel     string `envconfig:"CHANNELSYNC_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CHANNELSYNC_LOG_WARN_STACK" default:"false"`
	MetricsPort  string `envconfig:"CHANNELSYNC_METRICS_PORT" default:"9090"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"CHANNELSYNC_SERVICE_KIND" default:"sync-worker"`
}

type DBConfig struct {
	DSN    string `envconfig:"CHANNELSYNC_DB_DSN"`
	Driver string `envconfig:"CHANNELSYNC_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"CHANNELSYNC_DB_HOST"`
	LegacyPort     int    `envconfig:"CHANNELSYNC_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CHANNELSYNC_DB_USER"`
	LegacyPassword string `envconfig:"CHANNELSYNC_DB_PASSWORD"`
	LegacyName     string `envconfig:"CHANNELSYNC_DB_NAME"`
	LegacySSLMode  string `envconfig:"CHANNELSYNC_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CHANNELSYNC_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"CHANNELSYNC_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"CHANNELSYNC_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CHANNELSYNC_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CHANNELSYNC_REDIS_URL" required:"true"`
	PoolSize     int           `envconfig:"CHANNELSYNC_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CHANNELSYNC_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CHANNELSYNC_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CHANNELSYNC_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CHANNELSYNC_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"CHANNELSYNC_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"CHANNELSYNC_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"CHANNELSYNC_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	RunsTopic        string `envconfig:"CHANNELSYNC_PUBSUB_RUNS_TOPIC" default:"cs-sync-runs"`
	RunsSubscription string `envconfig:"CHANNELSYNC_PUBSUB_RUNS_SUBSCRIPTION" required:"true"`
}

type BigQueryConfig struct {
	Enabled              bool   `envconfig:"CHANNELSYNC_BIGQUERY_ENABLED" default:"false"`
	Dataset              string `envconfig:"CHANNELSYNC_BIGQUERY_DATASET" default:"channelsync"`
	DailyAggregatesTable string `envconfig:"CHANNELSYNC_BIGQUERY_DAILY_AGGREGATES_TABLE" default:"daily_aggregates"`
}

type ShopifyConfig struct {
	APIVersion string `envconfig:"CHANNELSYNC_SHOPIFY_API_VERSION" default:"2024-07"`
	PageSize   int    `envconfig:"CHANNELSYNC_SHOPIFY_PAGE_SIZE" default:"250"`
	StubMode   bool   `envconfig:"CHANNELSYNC_SHOPIFY_STUB_MODE" default:"false"`
}

type MetaConfig struct {
	APIVersion        string  `envconfig:"CHANNELSYNC_META_API_VERSION" default:"v19.0"`
	PageSize          int     `envconfig:"CHANNELSYNC_META_PAGE_SIZE" default:"500"`
	UsageThresholdPct float64 `envconfig:"CHANNELSYNC_META_USAGE_THRESHOLD_PCT" default:"85"`
	RestorePctPerSec  float64 `envconfig:"CHANNELSYNC_META_RESTORE_PCT_PER_SEC" default:"0.35"`
	StubMode          bool    `envconfig:"CHANNELSYNC_META_STUB_MODE" default:"false"`
}

type SquareConfig struct {
	Env      string `envconfig:"CHANNELSYNC_SQUARE_ENV" default:"sandbox"`
	PageSize int    `envconfig:"CHANNELSYNC_SQUARE_PAGE_SIZE" default:"500"`
	StubMode bool   `envconfig:"CHANNELSYNC_SQUARE_STUB_MODE" default:"false"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type SyncConfig struct {
	HTTPTimeout         time.Duration `envconfig:"CHANNELSYNC_SYNC_HTTP_TIMEOUT" default:"30s"`
	StatementTimeout    time.Duration `envconfig:"CHANNELSYNC_SYNC_STATEMENT_TIMEOUT" default:"30s"`
	BackoffInitial      time.Duration `envconfig:"CHANNELSYNC_SYNC_BACKOFF_INITIAL" default:"500ms"`
	BackoffMax          time.Duration `envconfig:"CHANNELSYNC_SYNC_BACKOFF_MAX" default:"8s"`
	BackoffMaxAttempts  int           `envconfig:"CHANNELSYNC_SYNC_BACKOFF_MAX_ATTEMPTS" default:"5"`
	FillWindowDays      int           `envconfig:"CHANNELSYNC_SYNC_FILL_WINDOW_DAYS" default:"7"`
	OrderLookbackDays   int           `envconfig:"CHANNELSYNC_SYNC_ORDER_LOOKBACK_DAYS" default:"7"`
	AdLookbackDays      int           `envconfig:"CHANNELSYNC_SYNC_AD_LOOKBACK_DAYS" default:"30"`
	AttributionLagDays  int           `envconfig:"CHANNELSYNC_SYNC_ATTRIBUTION_LAG_DAYS" default:"7"`
	RunLockTTL          time.Duration `envconfig:"CHANNELSYNC_SYNC_RUN_LOCK_TTL" default:"1h"`
	WarehouseExportSize int           `envconfig:"CHANNELSYNC_SYNC_WAREHOUSE_EXPORT_BATCH" default:"500"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"CHANNELSYNC_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
