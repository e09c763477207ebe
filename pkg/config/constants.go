package config

const (
	EnvPrefix = "CRM"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "CRM_APP_ENV"
	EnvPort     = "CRM_APP_PORT"
	EnvLogLevel = "CRM_LOG_LEVEL"

	EnvDBDSN    = "CRM_DB_DSN"
	EnvDBDriver = "CRM_DB_DRIVER"
	EnvDBHost   = "CRM_DB_HOST"
	EnvDBUser   = "CRM_DB_USER"
	EnvDBName   = "CRM_DB_NAME"

	EnvRedisURL = "CRM_REDIS_URL"

	EnvJWTSecret  = "CRM_JWT_SECRET"
	EnvJWTIssuer  = "CRM_JWT_ISSUER"
	EnvJWTExpMins = "CRM_JWT_EXPIRATION_MINUTES"

	EnvStripeAPIKey         = "CRM_STRIPE_API_KEY"
	EnvStripeSecret         = "CRM_STRIPE_SECRET"
	EnvStripePublishableKey = "CRM_STRIPE_PUB_KEY"
	EnvStripeEnv            = "CRM_STRIPE_ENV"
	EnvStripeSmallTeamPrice = "CRM_STRIPE_PRICE_ID_SMALL_TEAM"
	EnvStripeBigTeamPrice   = "CRM_STRIPE_PRICE_ID_BIG_TEAM"
	EnvStripeTimeout        = "CRM_STRIPE_TIMEOUT"

	EnvFrontendSuccessURL = "CRM_FRONTEND_SUCCESS_URL"
	EnvFrontendCancelURL  = "CRM_FRONTEND_CANCEL_URL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
