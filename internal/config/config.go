// Package config handles configuration for the resolution run, including
// defaults, a JSON or YAML file overlay, and command-line flags.
package config

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophid/internal/common"
	"github.com/dmitrijs2005/gophid/internal/matchkey"
	"github.com/dmitrijs2005/gophid/internal/resolver"
	"github.com/dmitrijs2005/gophid/internal/similarity"
	"github.com/dmitrijs2005/gophid/internal/uniqueid"
)

// Config holds runtime settings for one run.
//
// Fields:
//   - DatabaseDSN: postgres:// DSN (pgx) or a SQLite path.
//   - Workers: accounts resolved concurrently.
//   - Deadline: stop submitting accounts after this long; 0 disables it.
//   - RedisURL / LockTTL: cross-instance lock; empty URL keeps locking in-process.
//   - S3: optional export bucket; empty Bucket disables the upload.
type Config struct {
	DatabaseDSN string
	Workers     int
	Deadline    time.Duration
	LogLevel    string
	Input       InputConfig
	OutputPath  string
	RedisURL    string
	LockTTL     time.Duration
	S3          S3Config
	Primary     PrimaryConfig
	Secondary   SecondaryConfig
}

// InputConfig describes the account CSV.
type InputConfig struct {
	Path       string `json:"path" yaml:"path"`
	SourceID   string `json:"source_id" yaml:"source_id"`
	SourceName string `json:"source_name" yaml:"source_name"`
	IDColumn   string `json:"id_column" yaml:"id_column"`
	NameColumn string `json:"name_column" yaml:"name_column"`
}

type S3Config struct {
	User         string `json:"user" yaml:"user"`
	Password     string `json:"password" yaml:"password"`
	Bucket       string `json:"bucket" yaml:"bucket"`
	Region       string `json:"region" yaml:"region"`
	BaseEndpoint string `json:"base_endpoint" yaml:"base_endpoint"`
}

type PrimaryConfig struct {
	Field          string         `json:"field" yaml:"field"`
	SearchField    string         `json:"search_field" yaml:"search_field"`
	TargetSourceID string         `json:"target_source_id" yaml:"target_source_id"`
	Threshold      float64        `json:"threshold" yaml:"threshold"`
	Scorer         string         `json:"scorer" yaml:"scorer"`
	SequenceDigits int            `json:"sequence_digits" yaml:"sequence_digits"`
	SequenceStart  int64          `json:"sequence_start" yaml:"sequence_start"`
	Mappings       matchkey.Table `json:"mappings" yaml:"mappings"`

	uniqueid.Config `yaml:",inline"`
}

type SecondaryConfig struct {
	Field          string         `json:"field" yaml:"field"`
	TargetSourceID string         `json:"target_source_id" yaml:"target_source_id"`
	Mappings       matchkey.Table `json:"mappings" yaml:"mappings"`

	uniqueid.Config `yaml:",inline"`
}

// personMappings matches the generated fixture files.
func personMappings() matchkey.Table {
	return matchkey.Table{
		{SourceAttributePaths: []string{"firstname"}, IdentityAttributeName: "firstname", MergeStrategy: matchkey.MergeFirst},
		{SourceAttributePaths: []string{"LastName"}, IdentityAttributeName: "lastname", MergeStrategy: matchkey.MergeFirst},
		{SourceAttributePaths: []string{"DOB"}, IdentityAttributeName: "dob", MergeStrategy: matchkey.MergeFirst},
	}
}

// LoadDefaults populates Config with values that work against the files
// written by cmd/fixtures and a local SQLite database.
func (c *Config) LoadDefaults() {
	c.DatabaseDSN = "gophid.db"
	c.Workers = 8
	c.Deadline = 0
	c.LogLevel = "info"
	c.Input = InputConfig{
		Path:       "accounts.csv",
		SourceID:   "hr",
		SourceName: "HR",
		IDColumn:   "LawsonId",
		NameColumn: "LawsonId",
	}
	c.OutputPath = "accounts.resolved.csv"
	c.RedisURL = ""
	c.LockTTL = 30 * time.Second
	c.S3 = S3Config{Region: "us-east-1"}
	c.Primary = PrimaryConfig{
		Field:          "LID",
		SearchField:    "Consolidated Search Field",
		TargetSourceID: "lids",
		Threshold:      90,
		Scorer:         similarity.NameTrigram,
		SequenceDigits: 7,
		SequenceStart:  1,
		Mappings:       personMappings(),
		Config: uniqueid.Config{
			Template: "$" + resolver.SequenceVar,
			Case:     uniqueid.CaseSame,
		},
	}
	c.Secondary = SecondaryConfig{
		Field:          "UVID",
		TargetSourceID: "uvids",
		Mappings:       personMappings(),
		Config: uniqueid.Config{
			Template:            "${firstname}${lastname}$counter",
			MaxLength:           20,
			NormalizeDiacritics: true,
			StripSpaces:         true,
			Case:                uniqueid.CaseLower,
		},
	}
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional config file (-c/-config) and finally from flags in args.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseFile(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.DatabaseDSN == "" {
		return fmt.Errorf("%w: database dsn is empty", common.ErrInvalidConfig)
	}
	if c.Workers < 1 {
		return fmt.Errorf("%w: workers must be positive, got %d", common.ErrInvalidConfig, c.Workers)
	}
	if c.Deadline < 0 {
		return fmt.Errorf("%w: negative deadline", common.ErrInvalidConfig)
	}
	if c.Input.Path == "" {
		return fmt.Errorf("%w: input path is empty", common.ErrInvalidConfig)
	}
	if _, err := similarity.ByName(c.Primary.Scorer); err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidConfig, err)
	}
	if c.Primary.TargetSourceID == "" || c.Secondary.TargetSourceID == "" {
		return fmt.Errorf("%w: target source ids are required", common.ErrInvalidConfig)
	}
	if c.Primary.TargetSourceID == c.Secondary.TargetSourceID {
		return fmt.Errorf("%w: primary and secondary share target source %q", common.ErrInvalidConfig, c.Primary.TargetSourceID)
	}
	for kind, b := range map[string]uniqueid.Config{"primary": c.Primary.Config, "secondary": c.Secondary.Config} {
		// compiling also checks the template and where its counter sits
		if _, err := uniqueid.New(b); err != nil {
			return fmt.Errorf("%w: %s: %v", common.ErrInvalidConfig, kind, err)
		}
	}
	if err := c.PrimaryResolver().Validate(); err != nil {
		return err
	}
	return c.SecondaryResolver().Validate()
}

func (c *Config) PrimaryResolver() resolver.PrimaryConfig {
	return resolver.PrimaryConfig{
		Field:          c.Primary.Field,
		SearchField:    c.Primary.SearchField,
		TargetSourceID: c.Primary.TargetSourceID,
		Mappings:       c.Primary.Mappings,
		Threshold:      c.Primary.Threshold,
		SequenceDigits: c.Primary.SequenceDigits,
		Builder:        c.Primary.Config,
	}
}

// SecondaryResolver keys the secondary index by the primary field.
func (c *Config) SecondaryResolver() resolver.SecondaryConfig {
	return resolver.SecondaryConfig{
		Field:          c.Secondary.Field,
		PrimaryField:   c.Primary.Field,
		TargetSourceID: c.Secondary.TargetSourceID,
		Mappings:       c.Secondary.Mappings,
		Builder:        c.Secondary.Config,
	}
}
