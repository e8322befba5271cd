// Package config loads the engine tunables from a YAML file.
package config

import (
	"os"

	"gopkg.in/src-d/go-errors.v1"
	"gopkg.in/yaml.v2"

	"github.com/quarrydb/quarry/sql"
)

// ErrLoadConfig is returned when the configuration file cannot be read or
// parsed.
var ErrLoadConfig = errors.NewKind("cannot load config: %s")

// Config holds the engine tunables.
type Config struct {
	// GroupConcatMaxLen bounds the byte length of a GROUP_CONCAT result.
	GroupConcatMaxLen int `yaml:"group_concat_max_len"`
	// MultiRangeOptLimit caps the key limit for the multi-range
	// optimization.
	MultiRangeOptLimit int `yaml:"multi_range_opt_limit"`
	// SortBufferTuples is the list-file spill threshold.
	SortBufferTuples int `yaml:"sort_buffer_tuples"`
	// TempDir is where list files spill.
	TempDir string `yaml:"temp_dir"`
	// PreferredHosts are tried first when connecting.
	PreferredHosts []string `yaml:"preferred_hosts"`
	// ConnectOrderRandom shuffles the host list on connect.
	ConnectOrderRandom bool `yaml:"connect_order_random"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		GroupConcatMaxLen:  sql.DefaultGroupConcatMaxLen,
		MultiRangeOptLimit: sql.DefaultMultiRangeOptLimit,
		SortBufferTuples:   sql.DefaultSortBufferTuples,
	}
}

// Load reads a YAML configuration file; absent keys keep their defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, ErrLoadConfig.New(err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, ErrLoadConfig.New(err)
	}
	return cfg, nil
}

// NewSession creates a session carrying the configured tunables.
func (c *Config) NewSession() *sql.Session {
	s := sql.NewSession()
	if c.GroupConcatMaxLen > 0 {
		s.GroupConcatMaxLen = c.GroupConcatMaxLen
	}
	if c.MultiRangeOptLimit > 0 {
		s.MultiRangeOptLimit = c.MultiRangeOptLimit
	}
	if c.SortBufferTuples > 0 {
		s.SortBufferTuples = c.SortBufferTuples
	}
	s.TempDir = c.TempDir
	return s
}
