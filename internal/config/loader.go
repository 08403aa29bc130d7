package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"rfidd/internal/driver/serialdrv"
	"rfidd/internal/tuning"
)

// Driver kinds accepted in Config.Driver.
const (
	DriverSim    = "sim"
	DriverSerial = "serial"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and are replaced by WithDefaults.
type Config struct {
	Addr   string                `json:"addr" yaml:"addr" toml:"addr"`
	Driver string                `json:"driver" yaml:"driver" toml:"driver"`
	Serial serialdrv.PortOptions `json:"serial" yaml:"serial" toml:"serial"`
	// ReaderAddress is the bus address of the serial reader (255 = broadcast).
	ReaderAddress int         `json:"reader_address" yaml:"reader_address" toml:"reader_address"`
	Session       SessionConf `json:"session" yaml:"session" toml:"session"`
	Tuning        TuningConf  `json:"tuning" yaml:"tuning" toml:"tuning"`
	Sim           SimConf     `json:"sim" yaml:"sim" toml:"sim"`
	HTTP          HTTPConf    `json:"http" yaml:"http" toml:"http"`
	Log           LogConf     `json:"log" yaml:"log" toml:"log"`
}

// SessionConf carries the coordinator timings in milliseconds and the
// baseline radio settings applied after connect.
type SessionConf struct {
	OpTimeoutMS        int               `json:"op_timeout_ms" yaml:"op_timeout_ms" toml:"op_timeout_ms"`
	ResumeGraceMS      int               `json:"resume_grace_ms" yaml:"resume_grace_ms" toml:"resume_grace_ms"`
	MinStartIntervalMS int               `json:"min_start_interval_ms" yaml:"min_start_interval_ms" toml:"min_start_interval_ms"`
	FastRestartMS      int               `json:"fast_restart_ms" yaml:"fast_restart_ms" toml:"fast_restart_ms"`
	SlowRestartMS      int               `json:"slow_restart_ms" yaml:"slow_restart_ms" toml:"slow_restart_ms"`
	PresenceWindowMS   int               `json:"presence_window_ms" yaml:"presence_window_ms" toml:"presence_window_ms"`
	TuneCadenceMS      int               `json:"tune_cadence_ms" yaml:"tune_cadence_ms" toml:"tune_cadence_ms"`
	QuietWindowMS      int               `json:"quiet_window_ms" yaml:"quiet_window_ms" toml:"quiet_window_ms"`
	Baseline           *tuning.Candidate `json:"baseline,omitempty" yaml:"baseline,omitempty" toml:"baseline,omitempty"`
	// AutoConnect connects the reader when the service starts.
	AutoConnect bool `json:"auto_connect" yaml:"auto_connect" toml:"auto_connect"`
}

// TuningConf lists the candidate values the auto-tuner walks. Empty lists
// take the reference space.
type TuningConf struct {
	Powers      []int                  `json:"powers" yaml:"powers" toml:"powers"`
	Antennas    []int                  `json:"antennas" yaml:"antennas" toml:"antennas"`
	Triggers    []bool                 `json:"triggers" yaml:"triggers" toml:"triggers"`
	Frequencies []tuning.FrequencyPlan `json:"frequencies" yaml:"frequencies" toml:"frequencies"`
}

// SimTag is one simulated tag. MinPower and Region, when set, restrict the
// radio configurations that can see it.
type SimTag struct {
	EPC      string `json:"epc" yaml:"epc" toml:"epc"`
	RSSI     int    `json:"rssi" yaml:"rssi" toml:"rssi"`
	MinPower int    `json:"min_power" yaml:"min_power" toml:"min_power"`
	Region   *int   `json:"region,omitempty" yaml:"region,omitempty" toml:"region,omitempty"`
}

type SimConf struct {
	RoundTimeMS int      `json:"round_time_ms" yaml:"round_time_ms" toml:"round_time_ms"`
	Tags        []SimTag `json:"tags" yaml:"tags" toml:"tags"`
}

type HTTPConf struct {
	MaxBodyBytes int64    `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	CORSEnabled  bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSOrigins  []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
	CORSMethods  []string `json:"cors_methods" yaml:"cors_methods" toml:"cors_methods"`
	CORSHeaders  []string `json:"cors_headers" yaml:"cors_headers" toml:"cors_headers"`
	// EventBuffer is the per-subscriber SSE queue length.
	EventBuffer int `json:"event_buffer" yaml:"event_buffer" toml:"event_buffer"`
}

type LogConf struct {
	Level  string `json:"level" yaml:"level" toml:"level"`
	Format string `json:"format" yaml:"format" toml:"format"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml. A leading "~" is expanded.
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	p, err := ExpandHome(path)
	if err != nil {
		return cfg, err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	switch ext := strings.ToLower(filepath.Ext(p)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &cfg)
	case ".json":
		err = json.Unmarshal(b, &cfg)
	case ".toml":
		err = toml.Unmarshal(b, &cfg)
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	if err != nil {
		return cfg, fmt.Errorf("parse %s: %w", filepath.Base(p), err)
	}
	return cfg, nil
}

// ExpandHome expands a leading '~' to the user's home directory.
func ExpandHome(path string) (string, error) {
	if path == "" || path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~/")), nil
}

// Marshal renders cfg in the format named by ext (yaml, json or toml).
func Marshal(cfg Config, format string) ([]byte, error) {
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "yaml", "yml", "":
		return yaml.Marshal(cfg)
	case "json":
		return json.MarshalIndent(cfg, "", "  ")
	case "toml":
		return toml.Marshal(cfg)
	default:
		return nil, fmt.Errorf("unsupported config format: %s", format)
	}
}
