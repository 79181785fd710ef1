package configs

import (
	"flag"
	"os"

	"github.com/hilthontt/parley/internal/infrastructure/env"
)

var candidates = []string{
	"./config.yaml",
	"./config.yml",
	"../../config.yaml", // keep for local dev
	"/etc/parley/config.yaml",
	"/app/config.yaml", // common in Docker
}

// DetermineConfigPath returns "" when no file is found; Load then runs on
// defaults and environment overrides alone.
func DetermineConfigPath() string {
	var configPath string

	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.Parse()

	if configPath == "" {
		configPath = env.GetString("PARLEY_CONFIG", "")
	}

	if configPath == "" {
		configPath = firstExisting(candidates)
	}

	return configPath
}

func firstExisting(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
