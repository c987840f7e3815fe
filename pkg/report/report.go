// Package report provides an interceptor that periodically summarizes all bound
// streams: sender reports with cumulative counts for outgoing streams, receiver
// reports with interval loss and jitter for incoming streams.
package report

import (
	"time"

	"github.com/pion/logging"
)

// Option can be used to configure the report Interceptor.
type Option func(r *Interceptor) error

// Interval sets the report emission interval, default is one second. The actual
// interval between two emissions is jittered by up to an eighth either way so
// many sessions do not report in lockstep.
func Interval(interval time.Duration) Option {
	return func(r *Interceptor) error {
		r.interval = interval
		return nil
	}
}

// Log sets a logger for the interceptor.
func Log(log logging.LeveledLogger) Option {
	return func(r *Interceptor) error {
		r.log = log
		return nil
	}
}

// Now sets an alternative for the time.Now function.
func Now(f func() time.Time) Option {
	return func(r *Interceptor) error {
		r.now = f
		return nil
	}
}

func ntpTime(t time.Time) uint64 {
	// seconds since 1st January 1900
	s := (float64(t.UnixNano()) / 1000000000) + 2208988800

	// higher 32 bits are the integer part, lower 32 bits are the fractional part
	integerPart := uint32(s)
	fractionalPart := uint32((s - float64(integerPart)) * 0xFFFFFFFF)
	return uint64(integerPart)<<32 | uint64(fractionalPart)
}
