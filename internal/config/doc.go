// Package config loads the bot configuration from JSON or YAML, applies
// environment overrides and hot-reloads it when the file changes.
package config
