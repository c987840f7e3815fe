package nack

import (
	"time"

	"github.com/pion/logging"
)

// Option can be used to configure the nack Interceptor.
type Option func(r *Interceptor) error

// ReceiveLogSize sets the size of the received-sequence-number window per SSRC.
// Must be a power of two between 64 and 32768, default is 512.
func ReceiveLogSize(size uint16) Option {
	return func(r *Interceptor) error {
		r.receiveLogSize = size
		return nil
	}
}

// SendBufferSize sets the number of sent packets cached per SSRC for
// retransmission. Must be a power of two between 1 and 32768, default is 1024.
func SendBufferSize(size uint16) Option {
	return func(r *Interceptor) error {
		r.sendBufferSize = size
		return nil
	}
}

// MaxPacketAge sets how long a sent packet stays resendable. Older cache entries
// are treated as evicted. Zero disables the age bound, default is one second.
func MaxPacketAge(age time.Duration) Option {
	return func(r *Interceptor) error {
		r.maxPacketAge = age
		return nil
	}
}

// Interval sets how often the receive logs are checked for missing packets,
// default is 100ms. A gap must persist for roughly one interval before a NACK
// is sent.
func Interval(interval time.Duration) Option {
	return func(r *Interceptor) error {
		r.interval = interval
		return nil
	}
}

// MinInterval sets the minimum time between two NACKs for the same SSRC,
// limiting how often retransmission of the same packet can be requested.
// Zero (the default) only rate-limits by Interval.
func MinInterval(interval time.Duration) Option {
	return func(r *Interceptor) error {
		r.minInterval = interval
		return nil
	}
}

// SkipLastN sets the number of most recent sequence numbers that are not yet
// considered missing, leaving reordered packets time to arrive.
func SkipLastN(n uint16) Option {
	return func(r *Interceptor) error {
		r.skipLastN = n
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
