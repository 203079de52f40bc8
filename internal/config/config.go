// Package config loads timegraph settings from TIMEGRAPH_* environment variables
package config

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"

	"github.com/nainya/timegraph/pkg/timeindex"
)

// Prefix of every environment variable
const Prefix = "TIMEGRAPH"

// Config holds the configuration for the timegraph service.
// Example: TIMEGRAPH_DB_PATH, TIMEGRAPH_GRPC_PORT
type Config struct {
	// Storage
	DBPath      string `envconfig:"DB_PATH" default:"./data/timegraph.db"`
	JournalPath string `envconfig:"JOURNAL_PATH" default:""`

	// Servers
	GRPCPort int `envconfig:"GRPC_PORT" default:"50051"`
	HTTPPort int `envconfig:"HTTP_PORT" default:"9090"`

	// Logging
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogPretty bool   `envconfig:"LOG_PRETTY" default:"false"`
	LogFile   string `envconfig:"LOG_FILE" default:""`

	// Graph naming
	GraphPrefix  string `envconfig:"GRAPH_PREFIX" default:"graph://"`
	ContextGraph string `envconfig:"CONTEXT_GRAPH" default:"urn:x-timegraph:context"`

	// Description predicates; empty means the built-in vocabulary
	BeginYearPredicate      string `envconfig:"BEGIN_YEAR_PREDICATE"`
	BeginMonthPredicate     string `envconfig:"BEGIN_MONTH_PREDICATE"`
	BeginDayPredicate       string `envconfig:"BEGIN_DAY_PREDICATE"`
	DurationYearsPredicate  string `envconfig:"DURATION_YEARS_PREDICATE"`
	DurationMonthsPredicate string `envconfig:"DURATION_MONTHS_PREDICATE"`
	DurationDaysPredicate   string `envconfig:"DURATION_DAYS_PREDICATE"`

	// Snapshot policy: drop index entries whose graph is missing instead of failing
	DropStale bool `envconfig:"DROP_STALE" default:"false"`
}

// Validate checks values envconfig cannot
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unsupported LOG_LEVEL: %s", c.LogLevel)
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH must not be empty")
	}
	if c.GraphPrefix == "" || strings.ContainsAny(c.GraphPrefix, " <>") {
		return fmt.Errorf("invalid GRAPH_PREFIX: %q", c.GraphPrefix)
	}
	if c.GRPCPort <= 0 || c.HTTPPort <= 0 {
		return fmt.Errorf("ports must be positive")
	}
	return nil
}

// Vocabulary returns the description vocabulary with configured overrides
func (c *Config) Vocabulary() timeindex.Vocabulary {
	return timeindex.Vocabulary{
		ContextGraph:   c.ContextGraph,
		BeginYear:      c.BeginYearPredicate,
		BeginMonth:     c.BeginMonthPredicate,
		BeginDay:       c.BeginDayPredicate,
		DurationYears:  c.DurationYearsPredicate,
		DurationMonths: c.DurationMonthsPredicate,
		DurationDays:   c.DurationDaysPredicate,
	}.WithDefaults()
}

// New creates a new Config by parsing environment variables
func New() (*Config, error) {
	var cfg Config

	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Debug().
		Str("db_path", cfg.DBPath).
		Bool("journal", cfg.JournalPath != "").
		Int("grpc_port", cfg.GRPCPort).
		Int("http_port", cfg.HTTPPort).
		Str("log_level", cfg.LogLevel).
		Str("graph_prefix", cfg.GraphPrefix).
		Str("context_graph", cfg.ContextGraph).
		Bool("drop_stale", cfg.DropStale).
		Msg("Configuration loaded")

	return &cfg, nil
}
