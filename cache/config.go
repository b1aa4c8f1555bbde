package cache

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"go.uber.org/zap"

	"github.com/goliatone/go-resource-list/pkg/clock"
)

const (
	// DefaultCapacity is the number of entries kept before the least recently used
	// one is evicted.
	DefaultCapacity = 1000

	// DefaultStaleness is how long a successful entry is served without a fetch.
	DefaultStaleness = 30 * time.Second
)

// Config holds the configuration of a Cache.
type Config struct {
	// Capacity is the maximum number of entries. When it is reached the least
	// recently used entry is evicted. Must be greater than 0.
	Capacity int

	// Staleness is the window during which a successful entry counts as fresh.
	// Must be greater than 0.
	Staleness time.Duration

	// Clock is the time source for staleness checks. Defaults to the real clock.
	Clock clock.Clock

	// Logger receives fetch and eviction logs. Defaults to a no-op logger.
	Logger *zap.Logger

	// Metrics receives cache counters. Nil disables metrics.
	Metrics *Metrics
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Capacity:  DefaultCapacity,
		Staleness: DefaultStaleness,
		Clock:     clock.Real(),
		Logger:    zap.NewNop(),
	}
}

// Validate checks whether the configuration values are valid.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Capacity, validation.Required, validation.Min(1)),
		validation.Field(&c.Staleness, validation.Required, validation.Min(time.Duration(1))),
	)
}

func (c Config) withDefaults() Config {
	if c.Clock == nil {
		c.Clock = clock.Real()
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}
