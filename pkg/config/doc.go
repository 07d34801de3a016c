// Package config provides configuration management using Viper.
//
// Loads and validates configuration from a TOML file with support for
// multiple config locations, environment-variable overrides, and default
// values.
package config
