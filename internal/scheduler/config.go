package scheduler

import (
	"time"

	"github.com/rs/zerolog"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultLockTTL            = 15 * time.Second
	defaultAdmissionWait      = 5 * time.Second
	defaultReservationTimeout = 2 * time.Minute
	defaultActiveTimeout      = 30 * time.Minute
	defaultIdleThreshold      = 10 * time.Minute
)

// Config encapsulates all tunables for Scheduler construction.
type Config struct {
	// CapacityBytes is the VRAM budget shared by all models.
	CapacityBytes int64
	// LockTTL is the lease length for every lock acquisition.
	LockTTL time.Duration
	// AdmissionWait bounds how long a load request waits on the global
	// admission lock before returning Queued.
	AdmissionWait time.Duration
	// ReservationTimeout is the age past which the reaper releases a
	// Reserved/Loading record whose owning admission cycle died.
	ReservationTimeout time.Duration
	// ActiveTimeout is the age past which the reaper demotes a stale
	// active marker to idle.
	ActiveTimeout time.Duration
	// IdleThreshold is the idle age after which the reaper publishes an
	// idle_timeout event. No eviction happens on it; eviction stays
	// demand-driven.
	IdleThreshold time.Duration
	// Publisher receives lifecycle events; nil drops them.
	Publisher EventPublisher
	// Logger, when nil, defaults to a no-op logger.
	Logger *zerolog.Logger
}

func (c Config) withDefaults() Config {
	if c.LockTTL <= 0 {
		c.LockTTL = defaultLockTTL
	}
	if c.AdmissionWait <= 0 {
		c.AdmissionWait = defaultAdmissionWait
	}
	if c.ReservationTimeout <= 0 {
		c.ReservationTimeout = defaultReservationTimeout
	}
	if c.ActiveTimeout <= 0 {
		c.ActiveTimeout = defaultActiveTimeout
	}
	if c.IdleThreshold <= 0 {
		c.IdleThreshold = defaultIdleThreshold
	}
	if c.Publisher == nil {
		c.Publisher = noopPublisher{}
	}
	if c.Logger == nil {
		nop := zerolog.Nop()
		c.Logger = &nop
	}
	return c
}
