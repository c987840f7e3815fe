package report

import (
	"sync"
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
)

type senderStream struct {
	ssrc      uint32
	clockRate float64

	m sync.Mutex

	// data from the last sent packet
	lastRTPTimeRTP  uint32
	lastRTPTimeTime time.Time

	packetCount uint32
	octetCount  uint32
}

func newSenderStream(ssrc uint32, clockRate uint32) *senderStream {
	return &senderStream{
		ssrc:      ssrc,
		clockRate: float64(clockRate),
	}
}

func (s *senderStream) processRTP(now time.Time, header *rtp.Header, payload []byte) {
	s.m.Lock()
	defer s.m.Unlock()

	s.lastRTPTimeRTP = header.Timestamp
	s.lastRTPTimeTime = now
	s.packetCount++
	s.octetCount += uint32(len(payload))
}

// generateReport returns nil until the first packet has been sent, there is no
// RTP time to extrapolate from before that.
func (s *senderStream) generateReport(now time.Time) *rtcp.SenderReport {
	s.m.Lock()
	defer s.m.Unlock()

	if s.packetCount == 0 {
		return nil
	}

	return &rtcp.SenderReport{
		SSRC:        s.ssrc,
		NTPTime:     ntpTime(now),
		RTPTime:     s.lastRTPTimeRTP + uint32(now.Sub(s.lastRTPTimeTime).Seconds()*s.clockRate),
		PacketCount: s.packetCount,
		OctetCount:  s.octetCount,
	}
}
