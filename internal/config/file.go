package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dmitrijs2005/gophid/internal/flagx"
	"github.com/dmitrijs2005/gophid/internal/timex"
)

// fileConfig is the on-disk shape of Config. Durations are timex.Duration so
// both "30s" and integer nanoseconds are accepted.
type fileConfig struct {
	DatabaseDSN string          `json:"database_dsn" yaml:"database_dsn"`
	Workers     int             `json:"workers" yaml:"workers"`
	Deadline    timex.Duration  `json:"deadline" yaml:"deadline"`
	LogLevel    string          `json:"log_level" yaml:"log_level"`
	Input       InputConfig     `json:"input" yaml:"input"`
	OutputPath  string          `json:"output_path" yaml:"output_path"`
	RedisURL    string          `json:"redis_url" yaml:"redis_url"`
	LockTTL     timex.Duration  `json:"lock_ttl" yaml:"lock_ttl"`
	S3          S3Config        `json:"s3" yaml:"s3"`
	Primary     PrimaryConfig   `json:"primary" yaml:"primary"`
	Secondary   SecondaryConfig `json:"secondary" yaml:"secondary"`
}

// parseFile overlays the file named by -c/-config onto config. Keys absent
// from the file keep their current values. Files ending in .yaml or .yml
// are YAML, anything else JSON.
func parseFile(config *Config, args []string) error {
	path := flagx.ConfigFileFlag(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	fc := fileConfig{
		DatabaseDSN: config.DatabaseDSN,
		Workers:     config.Workers,
		Deadline:    timex.Duration{Duration: config.Deadline},
		LogLevel:    config.LogLevel,
		Input:       config.Input,
		OutputPath:  config.OutputPath,
		RedisURL:    config.RedisURL,
		LockTTL:     timex.Duration{Duration: config.LockTTL},
		S3:          config.S3,
		Primary:     config.Primary,
		Secondary:   config.Secondary,
	}

	// Decoders may reuse slice elements, so mapping tables are decoded
	// fresh and the defaults restored when the file has none.
	fc.Primary.Mappings, fc.Secondary.Mappings = nil, nil

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	default:
		err = json.Unmarshal(data, &fc)
	}
	if err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if fc.Primary.Mappings == nil {
		fc.Primary.Mappings = config.Primary.Mappings
	}
	if fc.Secondary.Mappings == nil {
		fc.Secondary.Mappings = config.Secondary.Mappings
	}

	config.DatabaseDSN = fc.DatabaseDSN
	config.Workers = fc.Workers
	config.Deadline = fc.Deadline.Duration
	config.LogLevel = fc.LogLevel
	config.Input = fc.Input
	config.OutputPath = fc.OutputPath
	config.RedisURL = fc.RedisURL
	config.LockTTL = fc.LockTTL.Duration
	config.S3 = fc.S3
	config.Primary = fc.Primary
	config.Secondary = fc.Secondary
	return nil
}
