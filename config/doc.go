// Package config loads pbkit configuration with Viper.
//
// Values come from a YAML/JSON/TOML file, then a .env file (godotenv),
// then the process environment. Environment variables may carry an
// optional prefix (PBTAIL_CLIENT_BASE_URL -> client.base_url).
//
// # Usage
//
//	var cfg MyConfig
//	err := config.LoadConfig("pbtail", &cfg, config.WithEnvPrefix("PBTAIL"))
package config
