// Package config provides environment-based configuration.
//
// Loads from a .env file when present (godotenv), maps environment
// variables to the Config struct and validates them.
package config
