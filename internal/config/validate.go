package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Validate checks the settings a command needs. Mode is one of "store"
// (database access only), "aggregate", "sweep" or "refresh" (both).
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "store":
		errs = append(errs, c.validateStore()...)
	case "aggregate":
		errs = append(errs, c.validateStore()...)
		errs = append(errs, c.validateAggregate()...)
	case "sweep":
		errs = append(errs, c.validateStore()...)
	case "refresh":
		errs = append(errs, c.validateStore()...)
		errs = append(errs, c.validateAggregate()...)
	default:
		return eris.Errorf("config: unknown validation mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateStore() []string {
	var errs []string
	switch c.Store.Driver {
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for the postgres driver")
		}
	case "sqlite":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url must name the sqlite file")
		}
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q must be postgres or sqlite", c.Store.Driver))
	}
	if c.Store.MaxConns < 0 || c.Store.MinConns < 0 || (c.Store.MaxConns > 0 && c.Store.MinConns > c.Store.MaxConns) {
		errs = append(errs, "store: need 0 <= min_conns <= max_conns")
	}
	return errs
}

func (c *Config) validateAggregate() []string {
	var errs []string
	if c.Aggregate.ReferenceYear < 0 {
		errs = append(errs, "aggregate.reference_year must be >= 0")
	}
	r := c.Aggregate.Retry
	if r.MaxAttempts < 0 || r.InitialBackoffMs < 0 || r.MaxBackoffMs < 0 {
		errs = append(errs, "aggregate.retry values must be >= 0")
	}
	return errs
}
