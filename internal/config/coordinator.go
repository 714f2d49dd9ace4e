package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/djlord-it/camsync/internal/domain"
)

// CoordinatorConfig holds all configuration for the camsync coordinator.
type CoordinatorConfig struct {
	// FleetAddrs is a comma-separated host:port list. FleetFile, when set,
	// takes precedence.
	FleetAddrs string `json:"fleet_addrs"`
	FleetFile  string `json:"fleet_file,omitempty"`

	AckPort int `json:"ack_port"`

	LeadTime    time.Duration `json:"-"`
	LeadTimeStr string        `json:"lead_time"`

	AckWait    time.Duration `json:"-"`
	AckWaitStr string        `json:"ack_wait"`

	TriggerPrefix string `json:"trigger_prefix,omitempty"`

	// Schedule is a five-field cron expression; empty disables serve mode's
	// periodic rounds.
	Schedule         string `json:"schedule,omitempty"`
	ScheduleTimezone string `json:"schedule_timezone"`

	DatabaseURL    string        `json:"database_url,omitempty"`
	DBOpTimeout    time.Duration `json:"-"`
	DBOpTimeoutStr string        `json:"db_op_timeout"`

	RedisAddr string `json:"redis_addr,omitempty"`

	MetricsEnabled bool   `json:"metrics_enabled"`
	MetricsPath    string `json:"metrics_path"`
	MetricsPort    int    `json:"metrics_port"`
}

// LoadCoordinator reads camsync configuration from environment variables
// with defaults.
func LoadCoordinator() CoordinatorConfig {
	cfg := CoordinatorConfig{
		FleetAddrs:       os.Getenv("FLEET_ADDRS"),
		FleetFile:        os.Getenv("FLEET_FILE"),
		LeadTimeStr:      os.Getenv("LEAD_TIME"),
		AckWaitStr:       os.Getenv("ACK_WAIT"),
		TriggerPrefix:    os.Getenv("TRIGGER_PREFIX"),
		Schedule:         os.Getenv("SCHEDULE"),
		ScheduleTimezone: os.Getenv("SCHEDULE_TIMEZONE"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		DBOpTimeoutStr:   os.Getenv("DB_OP_TIMEOUT"),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		MetricsEnabled:   os.Getenv("METRICS_ENABLED") == "true",
		MetricsPath:      os.Getenv("METRICS_PATH"),
	}

	cfg.AckPort = intFromEnv("ACK_PORT", 5006)
	cfg.MetricsPort = intFromEnv("METRICS_PORT", 9090)

	if cfg.ScheduleTimezone == "" {
		cfg.ScheduleTimezone = "UTC"
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if cfg.LeadTimeStr == "" {
		cfg.LeadTimeStr = "300ms"
	}
	if cfg.AckWaitStr == "" {
		cfg.AckWaitStr = "2s"
	}
	if cfg.DBOpTimeoutStr == "" {
		cfg.DBOpTimeoutStr = "5s"
	}

	// Parse durations; validation is handled separately by ValidateCoordinator().
	if d, err := time.ParseDuration(cfg.LeadTimeStr); err == nil {
		cfg.LeadTime = d
	}
	if d, err := time.ParseDuration(cfg.AckWaitStr); err == nil {
		cfg.AckWait = d
	}
	if d, err := time.ParseDuration(cfg.DBOpTimeoutStr); err == nil {
		cfg.DBOpTimeout = d
	}

	return cfg
}

// fleetFile is the YAML shape of FLEET_FILE: a flat list of host:port entries.
type fleetFile struct {
	Nodes []string `yaml:"nodes"`
}

// Fleet resolves the node list from FLEET_FILE or FLEET_ADDRS.
func (c CoordinatorConfig) Fleet() ([]domain.NodeAddress, error) {
	if c.FleetFile != "" {
		data, err := os.ReadFile(c.FleetFile)
		if err != nil {
			return nil, fmt.Errorf("read fleet file: %w", err)
		}
		var ff fleetFile
		if err := yaml.Unmarshal(data, &ff); err != nil {
			return nil, fmt.Errorf("parse fleet file %s: %w", c.FleetFile, err)
		}
		var nodes []domain.NodeAddress
		for _, entry := range ff.Nodes {
			node, err := domain.ParseNodeAddress(entry)
			if err != nil {
				return nil, fmt.Errorf("fleet file %s: %w", c.FleetFile, err)
			}
			nodes = append(nodes, node)
		}
		return nodes, nil
	}
	return domain.ParseFleet(c.FleetAddrs)
}

// MaskedJSON returns the configuration as JSON with secrets masked.
func (c CoordinatorConfig) MaskedJSON() ([]byte, error) {
	masked := struct {
		FleetAddrs       string `json:"fleet_addrs"`
		FleetFile        string `json:"fleet_file,omitempty"`
		AckPort          int    `json:"ack_port"`
		LeadTime         string `json:"lead_time"`
		AckWait          string `json:"ack_wait"`
		TriggerPrefix    string `json:"trigger_prefix,omitempty"`
		Schedule         string `json:"schedule,omitempty"`
		ScheduleTimezone string `json:"schedule_timezone"`
		DatabaseURL      string `json:"database_url,omitempty"`
		DBOpTimeout      string `json:"db_op_timeout"`
		RedisAddr        string `json:"redis_addr,omitempty"`
		MetricsEnabled   bool   `json:"metrics_enabled"`
		MetricsPath      string `json:"metrics_path"`
		MetricsPort      int    `json:"metrics_port"`
	}{
		FleetAddrs:       c.FleetAddrs,
		FleetFile:        c.FleetFile,
		AckPort:          c.AckPort,
		LeadTime:         c.LeadTimeStr,
		AckWait:          c.AckWaitStr,
		TriggerPrefix:    c.TriggerPrefix,
		Schedule:         c.Schedule,
		ScheduleTimezone: c.ScheduleTimezone,
		DatabaseURL:      maskSecret(c.DatabaseURL),
		DBOpTimeout:      c.DBOpTimeoutStr,
		RedisAddr:        c.RedisAddr,
		MetricsEnabled:   c.MetricsEnabled,
		MetricsPath:      c.MetricsPath,
		MetricsPort:      c.MetricsPort,
	}
	return json.MarshalIndent(masked, "", "  ")
}
