package nack

import (
	"sync"
	"time"

	"github.com/pion/rtp"
)

// sendBuffer caches recently sent packets so they can be resent on request.
// The cache is bounded twice, by the ring size and by maxAge. A slot is
// overwritten as soon as a packet a "size" of sequence numbers later is added,
// and entries older than maxAge are treated as evicted on lookup.
type sendBuffer struct {
	m       sync.Mutex
	packets []*bufferedPacket
	size    uint16
	maxAge  time.Duration
}

type bufferedPacket struct {
	packet  *rtp.Packet
	addedAt time.Time
}

func newSendBuffer(size uint16, maxAge time.Duration) (*sendBuffer, error) {
	allowedSize := false
	for i := 0; i <= 15; i++ {
		if size == 1<<i {
			allowedSize = true
			break
		}
	}
	if !allowedSize {
		return nil, ErrInvalidSize
	}

	return &sendBuffer{
		packets: make([]*bufferedPacket, size),
		size:    size,
		maxAge:  maxAge,
	}, nil
}

func (s *sendBuffer) add(header *rtp.Header, payload []byte, now time.Time) {
	pkt := &rtp.Packet{
		Header:  header.Clone(),
		Payload: append([]byte{}, payload...),
	}

	s.m.Lock()
	defer s.m.Unlock()

	s.packets[pkt.SequenceNumber%s.size] = &bufferedPacket{
		packet:  pkt,
		addedAt: now,
	}
}

// get returns the cached packet for seq, or nil if it was never added, has been
// overwritten, or has aged out of the retransmission window.
func (s *sendBuffer) get(seq uint16) *rtp.Packet {
	s.m.Lock()
	defer s.m.Unlock()

	entry := s.packets[seq%s.size]
	if entry == nil || entry.packet.SequenceNumber != seq {
		return nil
	}

	if s.maxAge > 0 && time.Since(entry.addedAt) > s.maxAge {
		return nil
	}

	return entry.packet
}
