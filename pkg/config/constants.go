package config

// EnvPrefix scopes every variable envconfig reads.
const EnvPrefix = "HELMDECK"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

// Environment variable names, for tests and error messages.
const (
	EnvAppEnv       = "HELMDECK_APP_ENV"
	EnvPort         = "HELMDECK_APP_PORT"
	EnvLogLevel     = "HELMDECK_LOG_LEVEL"
	EnvPushEndpoint = "HELMDECK_PUSH_ENDPOINT"
	EnvUserID       = "HELMDECK_SESSION_USER_ID"
	EnvSessionID    = "HELMDECK_SESSION_ID"
	EnvTokenSecret  = "HELMDECK_SESSION_SECRET"
	EnvPrefsBaseURL = "HELMDECK_PREFS_BASE_URL"
	EnvRedisURL     = "HELMDECK_REDIS_URL"
)

// pushEndpointSchemes lists the accepted push endpoint schemes. ws/wss
// select the websocket transport, redis/rediss the pub/sub transport.
var pushEndpointSchemes = []string{"ws", "wss", "redis", "rediss"}
