// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from environment variables with
// sensible defaults for all settings.
//
// # Configuration Structure
//
// Server settings:
//
//	CAMPUS_HOST="0.0.0.0"
//	CAMPUS_PORT="8080"
//	CAMPUS_READ_TIMEOUT="15s"
//	CAMPUS_SHUTDOWN_TIMEOUT="30s"
//	CAMPUS_ALLOWED_ORIGINS="https://campus.example"
//	CAMPUS_RATE_LIMIT="60"  # write requests per minute per client, 0 disables
//
// Plugin settings:
//
//	CAMPUS_PLUGIN_MODE="strict"  # strict, lenient
//	CAMPUS_PLUGIN_DIRS="./plugins,/etc/campus/plugins"
//	CAMPUS_PLUGIN_WATCH="true"
//	CAMPUS_HOOK_TIMEOUT="5s"
//
// State storage settings:
//
//	CAMPUS_STORAGE_TYPE="postgres"  # memory, redis, postgres
//	CAMPUS_STORAGE_PREFIX="campus"
//	CAMPUS_POSTGRES_URL="postgres://localhost/campus"
//	CAMPUS_REDIS_URL="redis://localhost:6379"
//
// Observability settings:
//
//	CAMPUS_LOG_LEVEL="info"
//	CAMPUS_LOG_FORMAT="json"
//	CAMPUS_METRICS_ENABLED="true"
//
// # Usage
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
package config
