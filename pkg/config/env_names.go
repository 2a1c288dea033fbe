package config

// Environment variable names shared between Load and the tests.
const (
	EnvAppEnv       = "BAZAARNODE_APP_ENV"
	EnvPort         = "BAZAARNODE_APP_PORT"
	EnvDBDSN        = "BAZAARNODE_DB_DSN"
	EnvRedisURL     = "BAZAARNODE_REDIS_URL"
	EnvJWTSecret    = "BAZAARNODE_JWT_SECRET"
	EnvBootstrapKey = "BAZAARNODE_API_BOOTSTRAP_KEY"
	EnvNodeAddress  = "BAZAARNODE_NODE_ADDRESS"
)
