package config

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Validate performs business-rule validation on the loaded configuration.
// It must be called after loading; Load calls it automatically.
func (c *Config) Validate() error {
	if len(c.Auth.TokenSecret) < 32 {
		return fmt.Errorf("auth.token_secret must be at least 32 characters (got %d)", len(c.Auth.TokenSecret))
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		return fmt.Errorf("auth.bcrypt_cost must be between 4 and 31 (got %d)", c.Auth.BcryptCost)
	}

	if c.Cache.Capacity <= 0 {
		return fmt.Errorf("cache.capacity must be > 0 (got %d)", c.Cache.Capacity)
	}
	if c.Cache.PreloadStagger < 0 {
		return fmt.Errorf("cache.preload_stagger must be >= 0 (got %v)", c.Cache.PreloadStagger)
	}

	if err := c.Review.validate(); err != nil {
		return fmt.Errorf("review: %w", err)
	}
	if err := c.Outbox.validate(); err != nil {
		return fmt.Errorf("outbox: %w", err)
	}
	if err := c.Notify.validate(); err != nil {
		return fmt.Errorf("notify: %w", err)
	}

	return nil
}

func (r *ReviewConfig) validate() error {
	if r.AdvanceDelay < 0 {
		return fmt.Errorf("advance_delay must be >= 0 (got %v)", r.AdvanceDelay)
	}
	if r.ImageBaseFraction <= 0 || r.ImageBaseFraction > 1 {
		return fmt.Errorf("image_base_fraction must be in (0, 1] (got %v)", r.ImageBaseFraction)
	}
	if r.MaxSessions <= 0 {
		return fmt.Errorf("max_sessions must be > 0 (got %d)", r.MaxSessions)
	}

	ladder, err := ParseZoomLadder(r.ZoomLadderRaw)
	if err != nil {
		return fmt.Errorf("zoom_ladder: %w", err)
	}
	r.ZoomLadder = ladder

	return nil
}

func (o *OutboxConfig) validate() error {
	switch o.Store {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("store must be memory or sqlite (got %q)", o.Store)
	}
	if o.Store == "sqlite" && o.SQLitePath == "" {
		return fmt.Errorf("sqlite_path is required for the sqlite store")
	}
	if o.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be >= 1 (got %d)", o.MaxAttempts)
	}
	if o.BatchSize < 1 {
		return fmt.Errorf("batch_size must be >= 1 (got %d)", o.BatchSize)
	}
	if o.BaseBackoff <= 0 {
		return fmt.Errorf("base_backoff must be > 0 (got %v)", o.BaseBackoff)
	}
	if o.ReconcileInterval <= 0 {
		return fmt.Errorf("reconcile_interval must be > 0 (got %v)", o.ReconcileInterval)
	}
	if o.MaxBackoff < o.BaseBackoff {
		return fmt.Errorf("max_backoff (%v) must be >= base_backoff (%v)", o.MaxBackoff, o.BaseBackoff)
	}
	return nil
}

func (n *NotifyConfig) validate() error {
	switch n.Type {
	case "log":
	case "webhook":
		if n.WebhookURL == "" {
			return fmt.Errorf("webhook_url is required for the webhook notifier")
		}
	default:
		return fmt.Errorf("type must be log or webhook (got %q)", n.Type)
	}
	return nil
}

// ParseZoomLadder parses a comma-separated list of zoom percentages
// (e.g. "25,50,100,200"). Steps must be positive, strictly increasing and
// include 100.
func ParseZoomLadder(raw string) ([]int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("must not be empty")
	}

	parts := strings.Split(raw, ",")
	steps := make([]int, 0, len(parts))

	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid step %q: %w", p, err)
		}
		if v <= 0 {
			return nil, fmt.Errorf("step %d must be positive", v)
		}
		if n := len(steps); n > 0 && v <= steps[n-1] {
			return nil, fmt.Errorf("steps must be strictly increasing (%d after %d)", v, steps[n-1])
		}
		steps = append(steps, v)
	}

	if !slices.Contains(steps, 100) {
		return nil, fmt.Errorf("must include 100")
	}

	return steps, nil
}
