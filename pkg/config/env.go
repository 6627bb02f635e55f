package config

// EnvPrefix is handed to envconfig; every field tag carries its full name.
const EnvPrefix = "KIOSK"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	MailboxBackendRedis  = "redis"
	MailboxBackendMemory = "memory"
)

const (
	EnvAppEnv       = "KIOSK_APP_ENV"
	EnvPort         = "KIOSK_APP_PORT"
	EnvLogLevel     = "KIOSK_LOG_LEVEL"
	EnvDBDSN        = "KIOSK_DB_DSN"
	EnvDBDriver     = "KIOSK_DB_DRIVER"
	EnvDBHost       = "KIOSK_DB_HOST"
	EnvDBUser       = "KIOSK_DB_USER"
	EnvDBName       = "KIOSK_DB_NAME"
	EnvDBPassword   = "KIOSK_DB_PASSWORD"
	EnvRedisURL     = "KIOSK_REDIS_URL"
	EnvJWTSecret    = "KIOSK_JWT_SECRET"
	EnvJWTIssuer    = "KIOSK_JWT_ISSUER"
	EnvMailbox      = "KIOSK_MAILBOX_BACKEND"
	EnvQrDefaultTTL = "KIOSK_QR_DEFAULT_TTL_SEC"
	EnvSMSEnabled   = "KIOSK_SMS_ENABLED"
	EnvGCSBucket    = "KIOSK_GCS_BUCKET_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
