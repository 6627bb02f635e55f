package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Password     PasswordConfig
	Kiosk        KioskConfig
	QrAuth       QrAuthConfig
	SMS          SMSConfig
	GCP          GCPConfig
	GCS          GCSConfig
	FeatureFlags FeatureFlagsConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.QrAuth.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"KIOSK_APP_ENV" required:"true"`
	Port         string `envconfig:"KIOSK_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"KIOSK_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"KIOSK_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"KIOSK_LOG_FORMAT" default:"json"`

	// CORSOrigins is a comma separated list for the admin console.
	CORSOrigins []string `envconfig:"KIOSK_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"KIOSK_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"KIOSK_DB_DSN"`
	Driver string `envconfig:"KIOSK_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"KIOSK_DB_HOST"`
	LegacyPort     int    `envconfig:"KIOSK_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"KIOSK_DB_USER"`
	LegacyPassword string `envconfig:"KIOSK_DB_PASSWORD"`
	LegacyName     string `envconfig:"KIOSK_DB_NAME"`
	LegacySSLMode  string `envconfig:"KIOSK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"KIOSK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"KIOSK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"KIOSK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"KIOSK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the local sqlite dialect was requested.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"KIOSK_REDIS_URL"`
	Address      string        `envconfig:"KIOSK_REDIS_ADDR"`
	Password     string        `envconfig:"KIOSK_REDIS_PASSWORD"`
	DB           int           `envconfig:"KIOSK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"KIOSK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"KIOSK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"KIOSK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"KIOSK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"KIOSK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Configured reports whether any redis endpoint was supplied.
func (r RedisConfig) Configured() bool {
	return r.URL != "" || r.Address != ""
}

// JWTConfig signs the admin bearer tokens.
type JWTConfig struct {
	Secret            string `envconfig:"KIOSK_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"KIOSK_JWT_ISSUER" default:"kiosk-backend"`
	ExpirationMinutes int    `envconfig:"KIOSK_JWT_EXPIRATION_MINUTES" default:"720"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"KIOSK_ARGON_MEMORY_KB" default:"19456"`
	ArgonTime        int `envconfig:"KIOSK_ARGON_TIME" default:"2"`
	ArgonParallelism int `envconfig:"KIOSK_ARGON_PARALLELISM" default:"1"`
	ArgonSaltLen     int `envconfig:"KIOSK_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"KIOSK_ARGON_KEY_LEN" default:"32"`
}

type KioskConfig struct {
	MailboxBackend string        `envconfig:"KIOSK_MAILBOX_BACKEND" default:"redis"`
	RemoteVendTTL  time.Duration `envconfig:"KIOSK_REMOTE_VEND_TTL" default:"10m"`
	OfflineAfter   time.Duration `envconfig:"KIOSK_OFFLINE_AFTER" default:"5m"`
	SlotRows       int           `envconfig:"KIOSK_SLOT_ROWS" default:"8"`
	SlotCols       int           `envconfig:"KIOSK_SLOT_COLS" default:"10"`
	DefaultImage   string        `envconfig:"KIOSK_DEFAULT_SCREENSAVER_URL" default:"/static/screensaver/default.png"`
}

// UseMemoryMailbox reports whether remote-vend requests stay in-process.
func (k KioskConfig) UseMemoryMailbox() bool {
	return strings.EqualFold(strings.TrimSpace(k.MailboxBackend), MailboxBackendMemory)
}

type QrAuthConfig struct {
	DefaultTTLSec      int           `envconfig:"KIOSK_QR_DEFAULT_TTL_SEC" default:"300"`
	MinTTLSec          int           `envconfig:"KIOSK_QR_MIN_TTL_SEC" default:"60"`
	MaxTTLSec          int           `envconfig:"KIOSK_QR_MAX_TTL_SEC" default:"3600"`
	SMSCodeTTL         time.Duration `envconfig:"KIOSK_QR_SMS_CODE_TTL" default:"3m"`
	RateLimitWindow    time.Duration `envconfig:"KIOSK_QR_RATE_LIMIT_WINDOW" default:"10m"`
	SendSessionLimit   int           `envconfig:"KIOSK_QR_SEND_SESSION_LIMIT" default:"3"`
	SendIPLimit        int           `envconfig:"KIOSK_QR_SEND_IP_LIMIT" default:"20"`
	VerifySessionLimit int           `envconfig:"KIOSK_QR_VERIFY_SESSION_LIMIT" default:"5"`
	VerifyIPLimit      int           `envconfig:"KIOSK_QR_VERIFY_IP_LIMIT" default:"30"`
	PairIPLimit        int           `envconfig:"KIOSK_QR_PAIR_IP_LIMIT" default:"30"`
}

func (q QrAuthConfig) validate() error {
	if q.MinTTLSec <= 0 || q.MaxTTLSec < q.MinTTLSec {
		return fmt.Errorf("invalid qr ttl bounds %d..%d", q.MinTTLSec, q.MaxTTLSec)
	}
	if q.DefaultTTLSec < q.MinTTLSec || q.DefaultTTLSec > q.MaxTTLSec {
		return fmt.Errorf("%s must be within %d..%d", EnvQrDefaultTTL, q.MinTTLSec, q.MaxTTLSec)
	}
	return nil
}

// SMSConfig holds the NCP SENS credentials.
type SMSConfig struct {
	Enabled   bool          `envconfig:"KIOSK_SMS_ENABLED" default:"false"`
	BaseURL   string        `envconfig:"KIOSK_SMS_BASE_URL" default:"https://sens.apigw.ntruss.com"`
	ServiceID string        `envconfig:"KIOSK_SMS_SERVICE_ID"`
	AccessKey string        `envconfig:"KIOSK_SMS_ACCESS_KEY"`
	SecretKey string        `envconfig:"KIOSK_SMS_SECRET_KEY"`
	Sender    string        `envconfig:"KIOSK_SMS_SENDER"`
	Timeout   time.Duration `envconfig:"KIOSK_SMS_TIMEOUT" default:"5s"`
}

type GCPConfig struct {
	CredentialsJSON        string `envconfig:"KIOSK_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"KIOSK_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName    string `envconfig:"KIOSK_GCS_BUCKET_NAME"`
	PublicBaseURL string `envconfig:"KIOSK_GCS_PUBLIC_BASE_URL"`
	MaxUploadMB   int    `envconfig:"KIOSK_MAX_UPLOAD_MB" default:"10"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"KIOSK_AUTO_MIGRATE" default:"false"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"KIOSK_CRON_INTERVAL" default:"1m"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		return fmt.Errorf("%s is required when %s=%s", EnvDBDSN, EnvDBDriver, DBDriverSQLite)
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
