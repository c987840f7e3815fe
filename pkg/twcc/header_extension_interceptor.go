package twcc

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
)

// HeaderExtensionInterceptorFactory is a interceptor.Factory for
// HeaderExtensionInterceptors.
type HeaderExtensionInterceptorFactory struct{}

// NewInterceptor returns a new HeaderExtensionInterceptor.
func (h *HeaderExtensionInterceptorFactory) NewInterceptor(_ string) (interceptor.Interceptor, error) {
	return &HeaderExtensionInterceptor{}, nil
}

// NewHeaderExtensionInterceptor returns a new HeaderExtensionInterceptorFactory.
func NewHeaderExtensionInterceptor() (*HeaderExtensionInterceptorFactory, error) {
	return &HeaderExtensionInterceptorFactory{}, nil
}

const sentLogSize = 1 << 12

// HeaderExtensionInterceptor adds transport-wide sequence numbers as a header
// extension to every outgoing packet of streams that negotiated the extension.
// The counter is shared by all streams of the session. Send times are retained
// for the last sentLogSize packets and can be looked up with SentAt.
type HeaderExtensionInterceptor struct {
	interceptor.NoOp

	// lower 16 bits are the next transport-wide sequence number
	nextSeq uint32

	sentMu sync.Mutex
	sent   [sentLogSize]sentPacket
}

type sentPacket struct {
	seq   uint16
	at    time.Time
	valid bool
}

// BindLocalStream returns a writer that adds the transport-wide sequence number
// extension to every packet, if the stream negotiated it.
func (h *HeaderExtensionInterceptor) BindLocalStream(info *interceptor.StreamInfo, writer interceptor.RTPWriter) interceptor.RTPWriter {
	var hdrExtID uint8
	for _, e := range info.RTPHeaderExtensions {
		if e.URI == transportCCURI {
			hdrExtID = uint8(e.ID)
			break
		}
	}
	if hdrExtID == 0 {
		return writer
	}

	return interceptor.RTPWriterFunc(func(header *rtp.Header, payload []byte, attributes interceptor.Attributes) (int, error) {
		seq := uint16(atomic.AddUint32(&h.nextSeq, 1) - 1)

		tcc, err := (&rtp.TransportCCExtension{TransportSequence: seq}).Marshal()
		if err != nil {
			return 0, err
		}
		if err = header.SetExtension(hdrExtID, tcc); err != nil {
			return 0, err
		}

		h.record(seq, time.Now())

		return writer.Write(header, payload, attributes)
	})
}

// SentAt returns the local send time of the packet carrying the given
// transport-wide sequence number, for use by a congestion controller matching
// feedback against send times. Returns false once the entry has been
// overwritten by newer packets.
func (h *HeaderExtensionInterceptor) SentAt(seq uint16) (time.Time, bool) {
	h.sentMu.Lock()
	defer h.sentMu.Unlock()

	entry := h.sent[seq%sentLogSize]
	if !entry.valid || entry.seq != seq {
		return time.Time{}, false
	}
	return entry.at, true
}

func (h *HeaderExtensionInterceptor) record(seq uint16, now time.Time) {
	h.sentMu.Lock()
	defer h.sentMu.Unlock()
	h.sent[seq%sentLogSize] = sentPacket{seq: seq, at: now, valid: true}
}
