package engine

import (
	"time"

	"github.com/lnrs/assessment-portal/internal/model"
)

// Config holds the session defaults. Values on the exam paper win when set.
type Config struct {
	DurationSeconds int
	WarningSeconds  int
	MaxTabSwitches  int
	ChunkInterval   time.Duration
	// FlushEvery is the number of ticks between recording flushes; 0 flushes
	// only at the end.
	FlushEvery      int
	TickInterval    time.Duration
	Retry           RetryPolicy
	TeardownTimeout time.Duration
	// ReapAfter is how long a finished session stays in the registry.
	ReapAfter time.Duration
	NewTicker func(d time.Duration) Ticker
}

// DefaultConfig returns the standard exam settings.
func DefaultConfig() Config {
	return Config{
		DurationSeconds: 3600,
		WarningSeconds:  300,
		MaxTabSwitches:  3,
		ChunkInterval:   time.Second,
		FlushEvery:      30,
		TickInterval:    time.Second,
		Retry:           DefaultRetryPolicy,
		TeardownTimeout: 30 * time.Second,
		ReapAfter:       5 * time.Minute,
		NewTicker:       NewRealTicker,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.DurationSeconds <= 0 {
		c.DurationSeconds = d.DurationSeconds
	}
	if c.WarningSeconds < 0 {
		c.WarningSeconds = d.WarningSeconds
	}
	if c.MaxTabSwitches < 1 {
		c.MaxTabSwitches = d.MaxTabSwitches
	}
	if c.ChunkInterval <= 0 {
		c.ChunkInterval = d.ChunkInterval
	}
	if c.FlushEvery < 0 {
		c.FlushEvery = 0
	}
	if c.TickInterval <= 0 {
		c.TickInterval = d.TickInterval
	}
	if c.Retry.Attempts < 1 {
		c.Retry = d.Retry
	}
	if c.TeardownTimeout <= 0 {
		c.TeardownTimeout = d.TeardownTimeout
	}
	if c.ReapAfter <= 0 {
		c.ReapAfter = d.ReapAfter
	}
	if c.NewTicker == nil {
		c.NewTicker = d.NewTicker
	}
	return c
}

// forPaper applies the exam's own limits.
func (c Config) forPaper(p *model.ExamPaper) Config {
	if p.DurationSeconds > 0 {
		c.DurationSeconds = p.DurationSeconds
	}
	if p.WarningSeconds > 0 {
		c.WarningSeconds = p.WarningSeconds
	}
	if p.MaxTabSwitches > 0 {
		c.MaxTabSwitches = p.MaxTabSwitches
	}
	return c
}
