package session

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is one harvest run's parameters, validated once before the run
// starts; the pipeline itself only ever sees checked values.
type Config struct {
	// StartURL is the ad library search page to load.
	StartURL string `validate:"required,url"`

	// ReadinessText must become visible before any element resolution is
	// attempted.
	ReadinessText string `validate:"required"`

	// Country is the option to select in the country dropdown.
	Country string `validate:"required"`

	// Category is the option to select in the category dropdown; empty
	// accepts the widget's default.
	Category string

	// Query is the search term; empty skips search submission.
	Query string

	// CountryTriggerLabel and CategoryTriggerLabel are the texts the
	// dropdown triggers currently display, the only stable way to find
	// them.
	CountryTriggerLabel  string `validate:"required"`
	CategoryTriggerLabel string `validate:"required"`

	// ScrollRounds is how many scroll-and-pause pagination rounds to run
	// after the first results arrive.
	ScrollRounds int `validate:"min=0,max=100"`

	// ScrollPause is the wait after each scroll for lazy content.
	ScrollPause time.Duration

	NavTimeout      time.Duration
	ReadyTimeout    time.Duration
	FirstHitTimeout time.Duration

	// IdleQuiet/IdleBound parameterize the final network-idle wait: done
	// when no event arrives for IdleQuiet, capped at IdleBound.
	IdleQuiet time.Duration
	IdleBound time.Duration
}

// DefaultConfig returns a config with the timing defaults filled in;
// identity fields (URL, country) still have to be set by the caller.
func DefaultConfig() Config {
	return Config{
		ReadinessText:        "results",
		CountryTriggerLabel:  "United States",
		CategoryTriggerLabel: "All ads",
		ScrollRounds:         3,
		ScrollPause:          3 * time.Second,
		NavTimeout:           60 * time.Second,
		ReadyTimeout:         30 * time.Second,
		FirstHitTimeout:      30 * time.Second,
		IdleQuiet:            2 * time.Second,
		IdleBound:            20 * time.Second,
	}
}

// applyDefaults fills zero-valued timing fields so a partially specified
// config still has bounded waits everywhere.
func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.ScrollPause == 0 {
		c.ScrollPause = d.ScrollPause
	}
	if c.NavTimeout == 0 {
		c.NavTimeout = d.NavTimeout
	}
	if c.ReadyTimeout == 0 {
		c.ReadyTimeout = d.ReadyTimeout
	}
	if c.FirstHitTimeout == 0 {
		c.FirstHitTimeout = d.FirstHitTimeout
	}
	if c.IdleQuiet == 0 {
		c.IdleQuiet = d.IdleQuiet
	}
	if c.IdleBound == 0 {
		c.IdleBound = d.IdleBound
	}
}

var validate = validator.New()

// Validate checks the config and fills timing defaults.
func (c *Config) Validate() error {
	c.applyDefaults()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid session config: %w", err)
	}
	return nil
}
