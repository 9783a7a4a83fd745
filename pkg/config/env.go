package config

// EnvPrefix is passed to envconfig; every tag already carries the full name.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv     = "TRADELINES_APP_ENV"
	EnvPort       = "TRADELINES_APP_PORT"
	EnvDBDSN      = "TRADELINES_DB_DSN"
	EnvDBHost     = "TRADELINES_DB_HOST"
	EnvDBUser     = "TRADELINES_DB_USER"
	EnvDBName     = "TRADELINES_DB_NAME"
	EnvRedisURL   = "TRADELINES_REDIS_URL"
	EnvJWTSecret  = "TRADELINES_JWT_SECRET"
	EnvJWTIssuer  = "TRADELINES_JWT_ISSUER"
	EnvJWTExpMins = "TRADELINES_JWT_EXPIRATION_MINUTES"
	EnvMinShare   = "TRADELINES_PRICING_MIN_REVENUE_SHARE"
	EnvMaxShare   = "TRADELINES_PRICING_MAX_REVENUE_SHARE"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
