package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "MOSROMGR_"

// ProjectConfig holds settings loaded from mosromgr.yml.
type ProjectConfig struct {
	LogLevel  string `yaml:"logLevel,omitempty"`
	LogFormat string `yaml:"logFormat,omitempty"`

	// Collection tuning.
	Workers   int    `yaml:"workers,omitempty"`
	ReadAhead int    `yaml:"readAhead,omitempty"`
	Suffix    string `yaml:"suffix,omitempty"`
	NonStrict bool   `yaml:"nonStrict,omitempty"`

	S3      S3Config       `yaml:"s3,omitempty"`
	NATS    NATSConfig     `yaml:"nats,omitempty"`
	Archive string         `yaml:"archive,omitempty"`
	GraphDB string         `yaml:"graphDB,omitempty"`
	Serve   ServeConfig    `yaml:"serve,omitempty"`
	Jobs    []ScheduledJob `yaml:"schedules,omitempty"`
}

// S3Config selects the bucket merges read from.
type S3Config struct {
	Bucket   string  `yaml:"bucket,omitempty"`
	Region   string  `yaml:"region,omitempty"`
	Endpoint string  `yaml:"endpoint,omitempty"`
	RPS      float64 `yaml:"rps,omitempty"`
	Burst    int     `yaml:"burst,omitempty"`
}

// NATSConfig enables notifications when URL is set.
type NATSConfig struct {
	URL     string `yaml:"url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

type ServeConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

// ScheduledJob re-merges the messages under Prefix on a cron schedule and
// writes the running order as merged so far to Output.
type ScheduledJob struct {
	Name   string `yaml:"name"`
	Cron   string `yaml:"cron"`
	Prefix string `yaml:"prefix"`
	Output string `yaml:"output"`

	// Policy is "strict" or "non-strict"; empty follows nonStrict.
	Policy string `yaml:"policy,omitempty"`
}

// Defaults returns the settings used when nothing is configured.
func Defaults() *ProjectConfig {
	return &ProjectConfig{
		LogLevel:  "info",
		LogFormat: "text",
		Workers:   8,
		ReadAhead: 4,
		Suffix:    ".mos.xml",
		Serve:     ServeConfig{Addr: ":8080"},
	}
}

// Load reads mosromgr.yml or mosromgr.yaml from dir over the defaults, then
// applies a .env file from dir (if any) and MOSROMGR_* environment
// variables. A missing config file is not an error.
func Load(dir string) (*ProjectConfig, error) {
	cfg := Defaults()
	for _, name := range []string{"mosromgr.yml", "mosromgr.yaml"} {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		break
	}

	// .env never overrides variables already set in the environment.
	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *ProjectConfig) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"LOG_LEVEL":    &c.LogLevel,
		"LOG_FORMAT":   &c.LogFormat,
		"SUFFIX":       &c.Suffix,
		"S3_BUCKET":    &c.S3.Bucket,
		"S3_REGION":    &c.S3.Region,
		"S3_ENDPOINT":  &c.S3.Endpoint,
		"NATS_URL":     &c.NATS.URL,
		"NATS_SUBJECT": &c.NATS.Subject,
		"ARCHIVE":      &c.Archive,
		"GRAPH_DB":     &c.GraphDB,
		"SERVE_ADDR":   &c.Serve.Addr,
	}
	for name, dst := range strs {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"WORKERS":    &c.Workers,
		"READ_AHEAD": &c.ReadAhead,
		"S3_BURST":   &c.S3.Burst,
	}
	for name, dst := range ints {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = n
	}

	if v, ok := lookup(EnvPrefix + "S3_RPS"); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("%sS3_RPS: %w", EnvPrefix, err)
		}
		c.S3.RPS = f
	}
	if v, ok := lookup(EnvPrefix + "NON_STRICT"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%sNON_STRICT: %w", EnvPrefix, err)
		}
		c.NonStrict = b
	}
	return nil
}
