package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the daemon.
type Config struct {
	Addr          string
	AuthToken     string
	LogLevel      string
	StateDir      string
	CatalogPath   string
	Mode          string
	NotifyURL     string
	RunLogKeep    int
	ShutdownGrace time.Duration
}

const (
	defaultAddr          = "0.0.0.0:7171"
	defaultLogLevel      = "info"
	defaultMode          = "http"
	defaultRunLogKeep    = 20
	defaultShutdownGrace = 5 * time.Second
)

func getEnvString(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

// Parse merges CLI flags, environment variables, an optional .env file, and
// defaults, in that priority order.
func Parse() (*Config, error) {
	envFiles := []string{".env"}
	if configDir, err := os.UserConfigDir(); err == nil {
		envFiles = append(envFiles, filepath.Join(configDir, "setuptask", ".env"))
	}
	_ = godotenv.Load(envFiles...) // the file is optional

	cfg := &Config{
		Addr:          getEnvString("SETUPTASK_ADDR", defaultAddr),
		AuthToken:     getEnvString("SETUPTASK_AUTH_TOKEN", ""),
		LogLevel:      getEnvString("SETUPTASK_LOG_LEVEL", defaultLogLevel),
		StateDir:      getEnvString("SETUPTASK_STATE_DIR", ""),
		CatalogPath:   getEnvString("SETUPTASK_CATALOG", ""),
		Mode:          getEnvString("SETUPTASK_MODE", defaultMode),
		NotifyURL:     getEnvString("SETUPTASK_NOTIFY_URL", ""),
		RunLogKeep:    getEnvInt("SETUPTASK_LOG_RETENTION", defaultRunLogKeep),
		ShutdownGrace: getEnvDuration("SETUPTASK_SHUTDOWN_GRACE", defaultShutdownGrace),
	}

	var addr, logLevel, stateDir, catalogPath, mode string
	var runLogKeep int
	var shutdownGrace time.Duration

	flag.StringVar(&addr, "addr", "", "HTTP listen address (overrides env)")
	flag.StringVar(&stateDir, "state-dir", "", "Directory to store the database and run logs")
	flag.StringVar(&catalogPath, "catalog", "", "Path to a YAML task catalog (defaults to the built-in catalog)")
	flag.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.StringVar(&mode, "mode", "", "Run mode: http, mcp, both, or wizard")
	flag.IntVar(&runLogKeep, "run-log-keep", 0, "Number of recent run logs to retain")
	flag.DurationVar(&shutdownGrace, "shutdown-grace", 0, "Grace period when shutting down")

	flag.Parse()

	if addr != "" {
		cfg.Addr = addr
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if stateDir != "" {
		cfg.StateDir = stateDir
	}
	if catalogPath != "" {
		cfg.CatalogPath = catalogPath
	}
	if mode != "" {
		cfg.Mode = mode
	}
	if runLogKeep > 0 {
		cfg.RunLogKeep = runLogKeep
	}
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "shutdown-grace" {
			cfg.ShutdownGrace = shutdownGrace
		}
	})

	if cfg.StateDir == "" {
		dir, err := defaultStateDir()
		if err != nil {
			return nil, fmt.Errorf("resolve default state dir: %w", err)
		}
		cfg.StateDir = dir
	}
	if cfg.RunLogKeep < 1 {
		cfg.RunLogKeep = defaultRunLogKeep
	}
	return cfg, nil
}

func defaultStateDir() (string, error) {
	baseDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	path := filepath.Join(baseDir, "setuptask")
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", err
	}
	return path, nil
}
