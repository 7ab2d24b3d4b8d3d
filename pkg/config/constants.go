package config

const (
	// EnvPrefix scopes all envconfig lookups.
	EnvPrefix = "DEALCREST"

	AppEnvDev  = "development"
	AppEnvProd = "production"

	EnvAppEnv             = "DEALCREST_APP_ENV"
	EnvPort               = "DEALCREST_APP_PORT"
	EnvDBDSN              = "DEALCREST_DB_DSN"
	EnvRedisURL           = "DEALCREST_REDIS_URL"
	EnvJWTSecret          = "DEALCREST_JWT_SECRET"
	EnvJWTIssuer          = "DEALCREST_JWT_ISSUER"
	EnvPaymentsSuccessURL = "DEALCREST_PAYMENTS_SUCCESS_URL"
	EnvPaymentsCancelURL  = "DEALCREST_PAYMENTS_CANCEL_URL"
)
