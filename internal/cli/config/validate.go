package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/leapstack-labs/leaplineage/internal/batch"
	"github.com/leapstack-labs/leaplineage/internal/cli/output"
)

// Validation errors.
var (
	ErrNoSource          = errors.New("no source configured")
	ErrInvalidOutput     = errors.New("invalid output format")
	ErrInvalidPort       = errors.New("invalid server port")
	ErrInvalidSchedule   = errors.New("invalid rebuild schedule")
	ErrInvalidLayout     = errors.New("invalid layout option")
	ErrInvalidConcurrent = errors.New("invalid concurrency")
)

// Validate checks ranges and enums. It does not touch the filesystem or network.
func (c *Config) Validate() error {
	if c.SourceURI() == "" {
		return fmt.Errorf("%w\nHint: set results_dir or source in leaplineage.yaml, or pass --results-dir", ErrNoSource)
	}

	if !validOutput(c.OutputFormat) {
		return fmt.Errorf("%w %q (want one of %v)", ErrInvalidOutput, c.OutputFormat, output.Modes)
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w %d", ErrInvalidPort, c.Server.Port)
	}

	if c.Server.Schedule != "" {
		if _, err := cron.ParseStandard(c.Server.Schedule); err != nil {
			return fmt.Errorf("%w %q: %v", ErrInvalidSchedule, c.Server.Schedule, err)
		}
	}

	if c.Concurrency < 0 {
		return fmt.Errorf("%w %d", ErrInvalidConcurrent, c.Concurrency)
	}

	for _, opt := range []struct {
		name  string
		value float64
	}{
		{"node_width", c.Layout.NodeWidth},
		{"base_height", c.Layout.BaseHeight},
		{"row_height", c.Layout.RowHeight},
		{"node_sep", c.Layout.NodeSep},
		{"rank_sep", c.Layout.RankSep},
		{"margin_x", c.Layout.MarginX},
		{"margin_y", c.Layout.MarginY},
	} {
		if opt.value < 0 {
			return fmt.Errorf("%w layout.%s = %v (must not be negative)", ErrInvalidLayout, opt.name, opt.value)
		}
	}
	if c.Layout.Passes < 0 {
		return fmt.Errorf("%w layout.passes = %d (must not be negative)", ErrInvalidLayout, c.Layout.Passes)
	}

	if strings.HasPrefix(c.SourceURI(), batch.WarehouseScheme) {
		if err := c.Warehouse.Validate(); err != nil {
			return fmt.Errorf("invalid warehouse configuration: %w", err)
		}
	}
	return nil
}

func validOutput(s string) bool {
	if s == "" {
		return true
	}
	for _, m := range output.Modes {
		if output.OutputMode(strings.ToLower(s)) == m {
			return true
		}
	}
	return false
}

func hasScheme(uri string) bool {
	return strings.Contains(uri, "://") && !strings.HasPrefix(uri, "file://") ||
		strings.HasPrefix(uri, batch.WarehouseScheme)
}
