package config

import (
	"time"
)

// Config is the root application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Storage  StorageConfig  `yaml:"storage"`
	Cache    CacheConfig    `yaml:"cache"`
	Review   ReviewConfig   `yaml:"review"`
	Outbox   OutboxConfig   `yaml:"outbox"`
	Notify   NotifyConfig   `yaml:"notify"`
	Auth     AuthConfig     `yaml:"auth"`
	Log      LogConfig      `yaml:"log"`
	CORS     CORSConfig     `yaml:"cors"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins   string `yaml:"allowed_origins"   env:"CORS_ALLOWED_ORIGINS"   env-default:"*"`
	AllowedMethods   string `yaml:"allowed_methods"   env:"CORS_ALLOWED_METHODS"   env-default:"GET,POST,DELETE,OPTIONS"`
	AllowedHeaders   string `yaml:"allowed_headers"   env:"CORS_ALLOWED_HEADERS"   env-default:"Authorization,Content-Type"`
	AllowCredentials bool   `yaml:"allow_credentials" env:"CORS_ALLOW_CREDENTIALS" env-default:"true"`
	MaxAge           int    `yaml:"max_age"           env:"CORS_MAX_AGE"           env-default:"86400"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `yaml:"host"             env:"SERVER_HOST"             env-default:"0.0.0.0"`
	Port            int           `yaml:"port"             env:"SERVER_PORT"             env-default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"SERVER_READ_TIMEOUT"     env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"SERVER_WRITE_TIMEOUT"    env-default:"60s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"     env:"SERVER_IDLE_TIMEOUT"     env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`
	// ShareRateLimit bounds share-link attempts per client per minute.
	ShareRateLimit int `yaml:"share_rate_limit" env:"SERVER_SHARE_RATE_LIMIT" env-default:"20"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"                env:"DATABASE_DSN"                env-required:"true"`
	MaxConns        int32         `yaml:"max_conns"          env:"DATABASE_MAX_CONNS"          env-default:"25"`
	MinConns        int32         `yaml:"min_conns"          env:"DATABASE_MIN_CONNS"          env-default:"5"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"  env:"DATABASE_MAX_CONN_LIFETIME"  env-default:"1h"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" env:"DATABASE_MAX_CONN_IDLE_TIME" env-default:"30m"`
}

// StorageConfig holds S3-compatible object storage settings. Version URLs
// using the s3:// scheme are resolved through this client.
type StorageConfig struct {
	Region       string        `yaml:"region"         env:"S3_REGION"         env-default:"us-east-1"`
	Endpoint     string        `yaml:"endpoint"       env:"S3_ENDPOINT"`
	AccessKey    string        `yaml:"access_key"     env:"S3_ACCESS_KEY"`
	SecretKey    string        `yaml:"secret_key"     env:"S3_SECRET_KEY"`
	UsePathStyle bool          `yaml:"use_path_style" env:"S3_USE_PATH_STYLE" env-default:"true"`
	PresignTTL   time.Duration `yaml:"presign_ttl"    env:"S3_PRESIGN_TTL"    env-default:"15m"`
}

// Enabled reports whether an S3 endpoint or credentials were configured.
func (s StorageConfig) Enabled() bool {
	return s.Endpoint != "" || s.AccessKey != ""
}

// CacheConfig holds blob cache settings.
type CacheConfig struct {
	Capacity       int           `yaml:"capacity"        env:"CACHE_CAPACITY"        env-default:"50"`
	PreloadStagger time.Duration `yaml:"preload_stagger" env:"CACHE_PRELOAD_STAGGER" env-default:"100ms"`
	FetchTimeout   time.Duration `yaml:"fetch_timeout"   env:"CACHE_FETCH_TIMEOUT"   env-default:"60s"`
	MaxBlobBytes   int64         `yaml:"max_blob_bytes"  env:"CACHE_MAX_BLOB_BYTES"  env-default:"536870912"`
}

// ReviewConfig holds review-session behaviour.
type ReviewConfig struct {
	AdvanceDelay      time.Duration `yaml:"advance_delay"       env:"REVIEW_ADVANCE_DELAY"       env-default:"1500ms"`
	ZoomLadderRaw     string        `yaml:"zoom_ladder"         env:"REVIEW_ZOOM_LADDER"         env-default:"25,50,75,100,125,150,200,300,400"`
	ImageBaseFraction float64       `yaml:"image_base_fraction" env:"REVIEW_IMAGE_BASE_FRACTION" env-default:"0.8"`
	SessionTTL        time.Duration `yaml:"session_ttl"         env:"REVIEW_SESSION_TTL"         env-default:"2h"`
	MaxSessions       int           `yaml:"max_sessions"        env:"REVIEW_MAX_SESSIONS"        env-default:"1000"`

	// ZoomLadder is parsed from ZoomLadderRaw during validation.
	ZoomLadder []int `yaml:"-" env:"-"`
}

// OutboxConfig holds background persistence settings.
type OutboxConfig struct {
	Store             string        `yaml:"store"              env:"OUTBOX_STORE"              env-default:"sqlite"`
	SQLitePath        string        `yaml:"sqlite_path"        env:"OUTBOX_SQLITE_PATH"        env-default:"proofdesk-outbox.db"`
	MaxAttempts       int           `yaml:"max_attempts"       env:"OUTBOX_MAX_ATTEMPTS"       env-default:"5"`
	BaseBackoff       time.Duration `yaml:"base_backoff"       env:"OUTBOX_BASE_BACKOFF"       env-default:"200ms"`
	MaxBackoff        time.Duration `yaml:"max_backoff"        env:"OUTBOX_MAX_BACKOFF"        env-default:"10s"`
	PollInterval      time.Duration `yaml:"poll_interval"      env:"OUTBOX_POLL_INTERVAL"      env-default:"1s"`
	BatchSize         int           `yaml:"batch_size"         env:"OUTBOX_BATCH_SIZE"         env-default:"20"`
	ReconcileInterval time.Duration `yaml:"reconcile_interval" env:"OUTBOX_RECONCILE_INTERVAL" env-default:"5m"`
}

// NotifyConfig selects where owner notifications go.
type NotifyConfig struct {
	Type       string        `yaml:"type"        env:"NOTIFY_TYPE"        env-default:"log"`
	WebhookURL string        `yaml:"webhook_url" env:"NOTIFY_WEBHOOK_URL"`
	Timeout    time.Duration `yaml:"timeout"     env:"NOTIFY_TIMEOUT"     env-default:"5s"`
}

// AuthConfig holds share-session token settings.
type AuthConfig struct {
	TokenSecret string        `yaml:"token_secret" env:"AUTH_TOKEN_SECRET" env-required:"true"`
	TokenIssuer string        `yaml:"token_issuer" env:"AUTH_TOKEN_ISSUER" env-default:"proofdesk"`
	TokenTTL    time.Duration `yaml:"token_ttl"    env:"AUTH_TOKEN_TTL"    env-default:"12h"`
	BcryptCost  int           `yaml:"bcrypt_cost"  env:"AUTH_BCRYPT_COST"  env-default:"10"`
	// AdminToken guards /admin routes. Empty disables them.
	AdminToken string `yaml:"admin_token" env:"AUTH_ADMIN_TOKEN"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}
