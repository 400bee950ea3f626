package runner

import (
	"fmt"
	"time"
)

// Config is the runtime configuration for executing a compiled plan.
type Config struct {
	Users             int   // concurrent virtual users
	Sessions          int   // total sessions to run across all users
	RampUpDurationSec int   // spread session starts over this window
	RunDurationSec    int   // stop the run after this long (0 = unlimited)
	RequestTimeoutSec int   // per-request timeout (default: 10s)
	Seed              int64 // 0 = derive from wall clock
}

// Validate validates the run configuration
func (c *Config) Validate() error {
	if c.Users <= 0 {
		return fmt.Errorf("users must be greater than 0")
	}
	if c.Users > 1000 {
		return fmt.Errorf("users cannot exceed 1000")
	}
	if c.Sessions <= 0 {
		return fmt.Errorf("sessions must be greater than 0")
	}
	if c.Sessions > 1000000 {
		return fmt.Errorf("sessions cannot exceed 1,000,000")
	}
	if c.RampUpDurationSec < 0 {
		return fmt.Errorf("ramp-up duration cannot be negative")
	}
	if c.RunDurationSec < 0 {
		return fmt.Errorf("run duration cannot be negative")
	}
	return nil
}

// GetRampUpDuration returns the ramp-up duration as time.Duration
func (c *Config) GetRampUpDuration() time.Duration {
	return time.Duration(c.RampUpDurationSec) * time.Second
}

// GetRunDuration returns the run duration as time.Duration
func (c *Config) GetRunDuration() time.Duration {
	if c.RunDurationSec == 0 {
		return 0 // Unlimited
	}
	return time.Duration(c.RunDurationSec) * time.Second
}

// GetRequestTimeout returns the per-request timeout as time.Duration
func (c *Config) GetRequestTimeout() time.Duration {
	if c.RequestTimeoutSec == 0 {
		return 10 * time.Second
	}
	return time.Duration(c.RequestTimeoutSec) * time.Second
}
