package config

import (
	"os"
	"strings"
)

const appEnvVar = "APP_ENV"

// Canonical environment names as reported by AppEnvironment.
const (
	EnvironmentDevelopment = "development"
	EnvironmentProduction  = "production"
	EnvironmentStaging     = "staging"
)

// Common misspellings and shorthands seen in deployment configs.
var environmentAliases = map[string]string{
	"prod":        EnvironmentProduction,
	"producation": EnvironmentProduction,
	"stag":        EnvironmentStaging,
	"stagging":    EnvironmentStaging,
}

// AppEnvironment returns the normalised value of APP_ENV. Aliases collapse to
// their canonical name and an unset variable means development.
func AppEnvironment() string {
	env := strings.ToLower(strings.TrimSpace(os.Getenv(appEnvVar)))
	if env == "" {
		return EnvironmentDevelopment
	}
	if canonical, ok := environmentAliases[env]; ok {
		return canonical
	}
	return env
}

// IsProductionLike reports whether the environment should be treated with
// production strictness, for example failing hard on missing bot definitions.
func IsProductionLike(env string) bool {
	return env == EnvironmentProduction || env == EnvironmentStaging
}

const defaultConfigFile = "config/config.yml"

var configEnvPaths = map[string]string{
	EnvironmentProduction: "config/config.production.yml",
	EnvironmentStaging:    "config/config.staging.yml",
}

// ResolveConfigPath swaps the default config path for the current
// environment's file when one is defined. An explicitly configured
// non-default path always wins.
func ResolveConfigPath(path string) string {
	if path == "" {
		path = defaultConfigFile
	}

	envPath, ok := configEnvPaths[AppEnvironment()]
	if !ok {
		return path
	}
	if path == defaultConfigFile || path == envPath {
		return envPath
	}
	return path
}
