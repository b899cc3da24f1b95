package config

// EnvPrefix is passed to envconfig; individual fields carry explicit
// envconfig tags so the prefix stays empty.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv        = "DEALDESK_APP_ENV"
	EnvPort          = "DEALDESK_APP_PORT"
	EnvDBDSN         = "DEALDESK_DB_DSN"
	EnvDBHost        = "DEALDESK_DB_HOST"
	EnvDBUser        = "DEALDESK_DB_USER"
	EnvDBName        = "DEALDESK_DB_NAME"
	EnvRedisURL      = "DEALDESK_REDIS_URL"
	EnvSigningSecret = "DEALDESK_SIGNING_SECRET"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
