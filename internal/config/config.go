// Package config loads feedsync configuration from CUE.
//
// A configuration file is unified with the embedded #Config schema, which
// supplies defaults and rejects unknown fields, then decoded into Config.
package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"github.com/shopspring/decimal"

	"github.com/roach88/feedsync/internal/activity"
	"github.com/roach88/feedsync/internal/repository"
)

//go:embed schema.cue
var schemaSource string

// Error codes for configuration failures.
const (
	ErrCodeNotFound = "E101" // Config file missing or unreadable
	ErrCodeSyntax   = "E102" // CUE syntax error
	ErrCodeInvalid  = "E103" // Schema violation
	ErrCodeDecode   = "E104" // Decoding into Config failed
)

// FetchRetry bounds backend retries.
type FetchRetry struct {
	MaxAttempts       int `json:"max_attempts"`
	InitialIntervalMS int `json:"initial_interval_ms"`
	MaxIntervalMS     int `json:"max_interval_ms"`
}

// Config is the decoded configuration.
type Config struct {
	Database             string            `json:"database"`
	PageSize             int               `json:"page_size"`
	MinBudgetSize        int               `json:"min_budget_size"`
	HideTinyTransfers    bool              `json:"hide_tiny_transfers"`
	DefaultTinyThreshold string            `json:"default_tiny_threshold"`
	TinyThresholds       map[string]string `json:"tiny_thresholds"`
	FetchRetry           FetchRetry        `json:"fetch_retry"`
	LogLevel             string            `json:"log_level"`
	SubscriptionBuffer   int               `json:"subscription_buffer"`

	tiny activity.TinyClassifier
}

// LoadError is a configuration error with its CUE source position.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("reading config: %v", err)}
	}
	return Parse(path, data)
}

// Default returns the schema defaults.
func Default() *Config {
	cfg, err := Parse("default.cue", nil)
	if err != nil {
		panic(fmt.Sprintf("config: embedded schema defaults invalid: %v", err))
	}
	return cfg
}

// Parse validates CUE source against the schema. filename is used in error
// positions only.
func Parse(filename string, data []byte) (*Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, cueError(ErrCodeSyntax, err)
	}

	unified := def.Unify(v)
	if err := unified.Validate(cue.Concrete(true), cue.Final()); err != nil {
		return nil, cueError(ErrCodeInvalid, err)
	}

	var cfg Config
	if err := unified.Decode(&cfg); err != nil {
		return nil, cueError(ErrCodeDecode, err)
	}

	tiny, err := cfg.parseThresholds()
	if err != nil {
		return nil, err
	}
	cfg.tiny = tiny
	return &cfg, nil
}

func (c *Config) parseThresholds() (activity.TinyClassifier, error) {
	def, err := decimal.NewFromString(c.DefaultTinyThreshold)
	if err != nil {
		return activity.TinyClassifier{}, &LoadError{
			Code:    ErrCodeInvalid,
			Message: fmt.Sprintf("default_tiny_threshold: %v", err),
		}
	}

	bySlug := make(map[string]decimal.Decimal, len(c.TinyThresholds))
	for slug, raw := range c.TinyThresholds {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return activity.TinyClassifier{}, &LoadError{
				Code:    ErrCodeInvalid,
				Message: fmt.Sprintf("tiny_thresholds.%s: %v", slug, err),
			}
		}
		bySlug[slug] = d
	}
	return activity.TinyClassifier{Default: def, BySlug: bySlug}, nil
}

// TinyClassifier returns the parsed tiny-transfer thresholds.
func (c *Config) TinyClassifier() activity.TinyClassifier {
	return c.tiny
}

// Retry converts fetch_retry into the repository policy.
func (c *Config) Retry() repository.RetryPolicy {
	return repository.RetryPolicy{
		MaxAttempts:     c.FetchRetry.MaxAttempts,
		InitialInterval: time.Duration(c.FetchRetry.InitialIntervalMS) * time.Millisecond,
		MaxInterval:     time.Duration(c.FetchRetry.MaxIntervalMS) * time.Millisecond,
	}
}

// SlogLevel maps log_level onto slog.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// cueError keeps the first error that carries a position.
func cueError(code string, err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &LoadError{Code: code, Message: err.Error()}
	}

	first := errs[0]
	le := &LoadError{Code: code, Message: first.Error()}
	if positions := errors.Positions(first); len(positions) > 0 {
		le.Pos = positions[0]
	}
	return le
}
