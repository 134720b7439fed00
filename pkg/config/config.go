package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML config file at path, applies CHATTERD_* env
// overrides on top and fills defaults. A missing file is not an error;
// env and defaults still apply so the binary runs with zero config.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		b, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(b, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	applyEnv(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("CHATTERD_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("CHATTERD_DB_PATH"); v != "" {
		cfg.Server.DBPath = v
	}
	if v := os.Getenv("CHATTERD_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CHATTERD_RATE_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Security.RateLimit.RPS = f
		}
	}
	if v := os.Getenv("CHATTERD_ADMIN_PHONE"); v != "" {
		cfg.Security.Admin.Phone = v
	}
	if v := os.Getenv("CHATTERD_ADMIN_PASSWORD"); v != "" {
		cfg.Security.Admin.Password = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":4000"
	}
	if cfg.Server.DBPath == "" {
		cfg.Server.DBPath = "./chatterd-data"
	}
	if cfg.Server.ShutdownGrace.Duration() == 0 {
		cfg.Server.ShutdownGrace = Duration(5 * time.Second)
	}
	if cfg.Websocket.MaxFrameBytes == 0 {
		cfg.Websocket.MaxFrameBytes = 64 * 1024
	}
	if cfg.Websocket.MaxPayloadBytes == 0 {
		cfg.Websocket.MaxPayloadBytes = 32 * 1024
	}
	if cfg.Maintenance.Cron == "" {
		cfg.Maintenance.Cron = "*/5 * * * *"
	}
	if cfg.Security.Admin.Username == "" {
		cfg.Security.Admin.Username = "admin"
	}
}
