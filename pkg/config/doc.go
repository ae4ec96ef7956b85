// Package config provides configuration management for Report Keeper.
//
// This package handles loading, validating, and watching configuration from
// YAML files with environment variable overrides.
//
// # Configuration Loading
//
// Configuration can be loaded in two ways:
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("config.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("config.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention REPORTKEEPER_SECTION_FIELD.
// For example:
//
//   - REPORTKEEPER_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - REPORTKEEPER_STORE_SQLITE_PATH overrides store.sqlite.path
//   - REPORTKEEPER_RECLAMATION_BATCH_SIZE overrides reclamation.batch_size
//
// # Configuration Precedence
//
// Configuration values are applied in the following order (later overrides earlier):
//
//  1. Default values (defined in defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Validation
//
// Validation collects every problem before failing:
//
//	configuration validation failed with 2 errors:
//	  - reclamation.schedule: invalid cron expression "every day": ...
//	  - security.authentication.keys[0].role: invalid role "admin": ...
//
// # Reloading
//
// Watcher reloads the file after it changes and passes the new
// configuration to a callback. Only settings that can change at runtime are
// applied by the caller (API keys); the rest take effect on restart.
//
// # Example Configuration
//
//	server:
//	  listen_address: "0.0.0.0:8080"
//
//	store:
//	  backend: "sqlite"
//	  sqlite:
//	    path: "data/reports.db"
//	    driver: "sqlite"
//
//	lifecycle:
//	  recovery_window: 48h
//	  stale_after: 720h
//
//	reclamation:
//	  schedule: "0 3 * * *"
//	  batch_size: 100
//	  max_per_run: 1000
//
//	security:
//	  authentication:
//	    keys:
//	      - key: "ops-key"
//	        user_id: "ops"
//	        role: "operator"
package config
