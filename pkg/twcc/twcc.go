// Package twcc provides interceptors for transport-wide congestion control
// feedback: a sender-side interceptor that numbers every outgoing packet with a
// transport-wide sequence number, and a receiver-side interceptor that reports
// arrival times back to the sender.
package twcc

import "time"

const transportCCURI = "http://www.ietf.org/id/draft-holmer-rmcat-transport-wide-cc-extensions-01"

const uint16SizeHalf = 1 << 15

// delta granularity and reference time granularity of the feedback wire format
const (
	typeTCCDeltaScaleFactor = 250 * time.Microsecond
	referenceTimeGranule    = 64 * time.Millisecond
)
