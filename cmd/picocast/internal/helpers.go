package internal

import (
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/sipeed/picocast/pkg/config"
	"github.com/sipeed/picocast/pkg/logger"
	"github.com/sipeed/picocast/pkg/session"
)

const Logo = "🎙"

var (
	version   = "dev"
	gitCommit string
	buildTime string
	goVersion string
)

func GetConfigPath() string {
	return config.ResolveRuntimePaths().ConfigPath
}

// LoadConfig reads the config file and applies its logging settings.
// debug forces the debug level.
func LoadConfig(debug bool) (*config.Config, error) {
	path := GetConfigPath()
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}

	if level, ok := logger.ParseLevel(cfg.Logging.Level); ok {
		logger.SetLevel(level)
	}
	if debug {
		logger.SetLevel(logger.DEBUG)
	}
	if cfg.Logging.File != "" {
		if err := logger.EnableFileLogging(cfg.Logging.File); err != nil {
			return nil, fmt.Errorf("enable file logging: %w", err)
		}
	}
	return cfg, nil
}

// OpenStore opens the session ledger named by cfg. An empty path disables it.
func OpenStore(cfg *config.Config) (*session.Store, error) {
	if cfg.Storage.DatabasePath == "" {
		return nil, nil
	}
	return session.OpenStore(cfg.Storage.DatabasePath)
}

// ReadDocuments loads every metrics file; "-" reads stdin.
func ReadDocuments(paths []string) ([][]byte, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("at least one metrics file is required (-f)")
	}
	docs := make([][]byte, 0, len(paths))
	for _, p := range paths {
		var (
			data []byte
			err  error
		)
		if p == "-" {
			data, err = io.ReadAll(os.Stdin)
		} else {
			data, err = os.ReadFile(p)
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		docs = append(docs, data)
	}
	return docs, nil
}

// FormatVersion returns the version string with optional git commit
func FormatVersion() string {
	v := version
	if gitCommit != "" {
		v += fmt.Sprintf(" (git: %s)", gitCommit)
	}
	return v
}

// FormatBuildInfo returns build time and go version info
func FormatBuildInfo() (string, string) {
	build := buildTime
	goVer := goVersion
	if goVer == "" {
		goVer = runtime.Version()
	}
	return build, goVer
}

func GetVersion() string {
	return version
}
