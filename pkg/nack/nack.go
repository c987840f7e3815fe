// Package nack provides an interceptor that generates NACK requests for missing
// incoming packets and answers incoming NACK requests from a cache of recently
// sent packets.
package nack

import (
	"errors"

	"github.com/pion/interceptor"
)

const uint16SizeHalf = 1 << 15

// ErrInvalidSize is returned when a configured log or buffer size is not a
// supported power of two.
var ErrInvalidSize = errors.New("size must be a power of two within the allowed range")

func streamSupportNack(info *interceptor.StreamInfo) bool {
	for _, fb := range info.RTCPFeedback {
		if fb.Type == "nack" && fb.Parameter == "" {
			return true
		}
	}

	return false
}
