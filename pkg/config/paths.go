package config

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	EnvPicoCastConfig = "PICOCAST_CONFIG"
	EnvPicoCastHome   = "PICOCAST_HOME"
)

type RuntimePaths struct {
	HomeDir    string
	ConfigPath string
	OutputDir  string
}

func ResolveRuntimePaths() RuntimePaths {
	if configPath := expandHome(strings.TrimSpace(os.Getenv(EnvPicoCastConfig))); configPath != "" {
		return buildRuntimePaths(filepath.Dir(configPath), configPath)
	}
	homeDir := DefaultHome()
	return buildRuntimePaths(homeDir, filepath.Join(homeDir, "config.json"))
}

// DefaultHome honours PICOCAST_HOME and falls back to ~/.picocast.
func DefaultHome() string {
	if dir := expandHome(strings.TrimSpace(os.Getenv(EnvPicoCastHome))); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".picocast"
	}
	return filepath.Join(home, ".picocast")
}

func buildRuntimePaths(homeDir, configPath string) RuntimePaths {
	return RuntimePaths{
		HomeDir:    homeDir,
		ConfigPath: configPath,
		OutputDir:  filepath.Join(homeDir, "output"),
	}
}
