package config

import (
	"encoding/json"
	"log"
	"os"
	"time"
)

// NodeConfig holds all configuration for the camnode daemon.
// Values are loaded from environment variables; see printUsage() for the full list.
type NodeConfig struct {
	ListenPort int  `json:"listen_port"`
	AckPort    int  `json:"ack_port"`
	AckEnabled bool `json:"ack_enabled"`

	SaveDir        string `json:"save_dir"`
	FilenamePrefix string `json:"filename_prefix"`
	NodeName       string `json:"node_name"`

	DefaultLeadTime    time.Duration `json:"-"`
	DefaultLeadTimeStr string        `json:"default_lead_time"`

	SettleDuration    time.Duration `json:"-"`
	SettleDurationStr string        `json:"settle_duration"`

	// FineWaitThreshold is the remaining-time window spent busy-waiting
	// instead of sleeping. Larger values burn more CPU per trigger.
	FineWaitThreshold    time.Duration `json:"-"`
	FineWaitThresholdStr string        `json:"fine_wait_threshold"`

	CaptureCommand    string        `json:"capture_command"`
	CaptureWidth      int           `json:"capture_width"`
	CaptureHeight     int           `json:"capture_height"`
	CaptureQuality    int           `json:"capture_quality"`
	CaptureTimeout    time.Duration `json:"-"`
	CaptureTimeoutStr string        `json:"capture_timeout"`

	StatusEnabled bool   `json:"status_enabled"`
	StatusAddr    string `json:"status_addr"`

	SweepEnabled     bool          `json:"sweep_enabled"`
	SweepInterval    time.Duration `json:"-"`
	SweepIntervalStr string        `json:"sweep_interval"`
	SweepMaxAge      time.Duration `json:"-"`
	SweepMaxAgeStr   string        `json:"sweep_max_age"`
	SweepBatchSize   int           `json:"sweep_batch_size"`

	MetricsEnabled bool   `json:"metrics_enabled"`
	MetricsPath    string `json:"metrics_path"`
	MetricsPort    int    `json:"metrics_port"`
}

// LoadNode reads camnode configuration from environment variables with defaults.
func LoadNode() NodeConfig {
	cfg := NodeConfig{
		AckEnabled:           os.Getenv("ACK_ENABLED") != "false",
		SaveDir:              os.Getenv("SAVE_DIR"),
		FilenamePrefix:       os.Getenv("FILENAME_PREFIX"),
		NodeName:             os.Getenv("NODE_NAME"),
		DefaultLeadTimeStr:   os.Getenv("DEFAULT_LEAD_TIME"),
		SettleDurationStr:    os.Getenv("SETTLE_DURATION"),
		FineWaitThresholdStr: os.Getenv("FINE_WAIT_THRESHOLD"),
		CaptureCommand:       os.Getenv("CAPTURE_COMMAND"),
		CaptureTimeoutStr:    os.Getenv("CAPTURE_TIMEOUT"),
		StatusEnabled:        os.Getenv("STATUS_ENABLED") != "false",
		StatusAddr:           os.Getenv("STATUS_ADDR"),
		SweepEnabled:         os.Getenv("SWEEP_ENABLED") == "true",
		SweepIntervalStr:     os.Getenv("SWEEP_INTERVAL"),
		SweepMaxAgeStr:       os.Getenv("SWEEP_MAX_AGE"),
		MetricsEnabled:       os.Getenv("METRICS_ENABLED") == "true",
		MetricsPath:          os.Getenv("METRICS_PATH"),
	}

	cfg.ListenPort = intFromEnv("LISTEN_PORT", 5005)
	cfg.AckPort = intFromEnv("ACK_PORT", 5006)
	cfg.CaptureWidth = intFromEnv("CAPTURE_WIDTH", 4056)
	cfg.CaptureHeight = intFromEnv("CAPTURE_HEIGHT", 3040)
	cfg.CaptureQuality = intFromEnv("CAPTURE_QUALITY", 95)
	cfg.SweepBatchSize = intFromEnv("SWEEP_BATCH_SIZE", 100)
	cfg.MetricsPort = intFromEnv("METRICS_PORT", 9090)

	if cfg.SaveDir == "" {
		cfg.SaveDir = "/home/pi/captures"
	}
	if cfg.FilenamePrefix == "" {
		cfg.FilenamePrefix = "capture"
	}
	if cfg.NodeName == "" {
		if host, err := os.Hostname(); err == nil {
			cfg.NodeName = host
		} else {
			cfg.NodeName = "camnode"
		}
	}
	if cfg.CaptureCommand == "" {
		cfg.CaptureCommand = "rpicam-jpeg"
	}
	if cfg.StatusAddr == "" {
		cfg.StatusAddr = ":8080"
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if cfg.DefaultLeadTimeStr == "" {
		cfg.DefaultLeadTimeStr = "800ms"
	}
	if cfg.SettleDurationStr == "" {
		cfg.SettleDurationStr = "120ms"
	}
	if cfg.FineWaitThresholdStr == "" {
		cfg.FineWaitThresholdStr = "10ms"
	}
	if cfg.CaptureTimeoutStr == "" {
		cfg.CaptureTimeoutStr = "10s"
	}
	if cfg.SweepIntervalStr == "" {
		cfg.SweepIntervalStr = "1h"
	}
	if cfg.SweepMaxAgeStr == "" {
		cfg.SweepMaxAgeStr = "168h"
	}

	// Parse durations; validation is handled separately by ValidateNode().
	if d, err := time.ParseDuration(cfg.DefaultLeadTimeStr); err == nil {
		cfg.DefaultLeadTime = d
	}
	if d, err := time.ParseDuration(cfg.SettleDurationStr); err == nil {
		cfg.SettleDuration = d
	}
	if d, err := time.ParseDuration(cfg.FineWaitThresholdStr); err == nil {
		cfg.FineWaitThreshold = d
	}
	if d, err := time.ParseDuration(cfg.CaptureTimeoutStr); err == nil {
		cfg.CaptureTimeout = d
	}
	if d, err := time.ParseDuration(cfg.SweepIntervalStr); err == nil {
		cfg.SweepInterval = d
	}
	if d, err := time.ParseDuration(cfg.SweepMaxAgeStr); err == nil {
		cfg.SweepMaxAge = d
	}

	return cfg
}

// intFromEnv reads a positive integer from the environment, falling back
// to def on absence or bad input.
func intFromEnv(name string, def int) int {
	s := os.Getenv(name)
	if s == "" {
		return def
	}
	n, err := parseInt(s)
	if err != nil || n <= 0 {
		log.Printf("config: invalid %s %q (must be a positive integer), using default %d", name, s, def)
		return def
	}
	return n
}

// parseInt parses a string as an integer.
func parseInt(s string) (int, error) {
	var n int
	if s == "" {
		return 0, os.ErrInvalid
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, os.ErrInvalid
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}

// MaskedJSON returns the configuration as JSON. Node config carries no
// secrets, but the method mirrors the coordinator's for symmetric CLI output.
func (c NodeConfig) MaskedJSON() ([]byte, error) {
	masked := struct {
		ListenPort        int    `json:"listen_port"`
		AckPort           int    `json:"ack_port"`
		AckEnabled        bool   `json:"ack_enabled"`
		SaveDir           string `json:"save_dir"`
		FilenamePrefix    string `json:"filename_prefix"`
		NodeName          string `json:"node_name"`
		DefaultLeadTime   string `json:"default_lead_time"`
		SettleDuration    string `json:"settle_duration"`
		FineWaitThreshold string `json:"fine_wait_threshold"`
		CaptureCommand    string `json:"capture_command"`
		CaptureWidth      int    `json:"capture_width"`
		CaptureHeight     int    `json:"capture_height"`
		CaptureQuality    int    `json:"capture_quality"`
		CaptureTimeout    string `json:"capture_timeout"`
		StatusEnabled     bool   `json:"status_enabled"`
		StatusAddr        string `json:"status_addr"`
		SweepEnabled      bool   `json:"sweep_enabled"`
		SweepInterval     string `json:"sweep_interval"`
		SweepMaxAge       string `json:"sweep_max_age"`
		SweepBatchSize    int    `json:"sweep_batch_size"`
		MetricsEnabled    bool   `json:"metrics_enabled"`
		MetricsPath       string `json:"metrics_path"`
		MetricsPort       int    `json:"metrics_port"`
	}{
		ListenPort:        c.ListenPort,
		AckPort:           c.AckPort,
		AckEnabled:        c.AckEnabled,
		SaveDir:           c.SaveDir,
		FilenamePrefix:    c.FilenamePrefix,
		NodeName:          c.NodeName,
		DefaultLeadTime:   c.DefaultLeadTimeStr,
		SettleDuration:    c.SettleDurationStr,
		FineWaitThreshold: c.FineWaitThresholdStr,
		CaptureCommand:    c.CaptureCommand,
		CaptureWidth:      c.CaptureWidth,
		CaptureHeight:     c.CaptureHeight,
		CaptureQuality:    c.CaptureQuality,
		CaptureTimeout:    c.CaptureTimeoutStr,
		StatusEnabled:     c.StatusEnabled,
		StatusAddr:        c.StatusAddr,
		SweepEnabled:      c.SweepEnabled,
		SweepInterval:     c.SweepIntervalStr,
		SweepMaxAge:       c.SweepMaxAgeStr,
		SweepBatchSize:    c.SweepBatchSize,
		MetricsEnabled:    c.MetricsEnabled,
		MetricsPath:       c.MetricsPath,
		MetricsPort:       c.MetricsPort,
	}
	return json.MarshalIndent(masked, "", "  ")
}

// maskSecret masks a secret value, preserving only the URI scheme if present.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	for _, scheme := range []string{"postgres://", "postgresql://", "redis://"} {
		if len(s) >= len(scheme) && s[:len(scheme)] == scheme {
			return scheme + "***"
		}
	}
	return "***"
}
