// Package config loads service configuration from a YAML file, an optional
// .env file and the process environment using Viper.
//
// Environment variables override file values. A variable is bound to every
// nested key it could address, so TRANSCRIPTION_DEFAULT_PLAN_MAX_RETRIES
// reaches transcription.default_plan.max_retries without explicit binding.
//
//	var cfg AppConfig
//	err := config.LoadConfig("sttkit", &cfg, config.WithConfigFile(path))
package config
