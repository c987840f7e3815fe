package report

import (
	"sync"
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
)

type receiverStream struct {
	ssrc         uint32
	receiverSSRC uint32
	clockRate    float64

	m sync.Mutex

	// bitfield of packets received since the last report
	size    uint16
	packets []uint64

	started          bool
	seqnumCycles     uint16
	lastSeqnum       uint16
	lastReportSeqnum uint16
	totalLost        uint32

	// data from the last received packet, for the jitter estimator
	lastRTPTimeRTP  uint32
	lastRTPTimeTime time.Time
	jitter          float64

	// data from the last received sender report, for DLSR
	lastSenderReport     uint32
	lastSenderReportTime time.Time
}

func newReceiverStream(ssrc uint32, receiverSSRC uint32, clockRate uint32) *receiverStream {
	const size = 128
	return &receiverStream{
		ssrc:         ssrc,
		receiverSSRC: receiverSSRC,
		clockRate:    float64(clockRate),
		size:         size,
		packets:      make([]uint64, size/64),
	}
}

func (s *receiverStream) processRTP(now time.Time, header *rtp.Header) {
	s.m.Lock()
	defer s.m.Unlock()

	if !s.started {
		s.started = true
		s.setReceived(header.SequenceNumber)
		s.lastSeqnum = header.SequenceNumber
		s.lastReportSeqnum = header.SequenceNumber - 1
	} else {
		s.setReceived(header.SequenceNumber)

		diff := int32(int16(header.SequenceNumber - s.lastSeqnum))
		if diff > 0 {
			if header.SequenceNumber < s.lastSeqnum {
				s.seqnumCycles++
			}
			for i := s.lastSeqnum + 1; i != header.SequenceNumber; i++ {
				s.delReceived(i)
			}
			s.lastSeqnum = header.SequenceNumber
		}

		// RFC 3550 A.8, running inter-arrival jitter in clock rate units
		d := now.Sub(s.lastRTPTimeTime).Seconds()*s.clockRate - float64(int32(header.Timestamp-s.lastRTPTimeRTP))
		if d < 0 {
			d = -d
		}
		s.jitter += (d - s.jitter) / 16
	}

	s.lastRTPTimeRTP = header.Timestamp
	s.lastRTPTimeTime = now
}

func (s *receiverStream) processSenderReport(now time.Time, sr *rtcp.SenderReport) {
	s.m.Lock()
	defer s.m.Unlock()

	s.lastSenderReport = uint32(sr.NTPTime >> 16)
	s.lastSenderReportTime = now
}

func (s *receiverStream) generateReport(now time.Time) *rtcp.ReceiverReport {
	s.m.Lock()
	defer s.m.Unlock()

	expected, lost := s.expectedAndLostSinceLastReport()
	s.totalLost += uint32(lost)
	if s.totalLost > 0xFFFFFF { // 24-bit counter
		s.totalLost = 0xFFFFFF
	}

	var fractionLost uint8
	if expected > 0 {
		fractionLost = uint8(uint32(lost) * 256 / uint32(expected))
	}

	var dlsr uint32
	if !s.lastSenderReportTime.IsZero() {
		dlsr = uint32(now.Sub(s.lastSenderReportTime).Seconds() * 65536)
	}

	return &rtcp.ReceiverReport{
		SSRC: s.receiverSSRC,
		Reports: []rtcp.ReceptionReport{{
			SSRC:               s.ssrc,
			FractionLost:       fractionLost,
			TotalLost:          s.totalLost,
			LastSequenceNumber: uint32(s.seqnumCycles)<<16 | uint32(s.lastSeqnum),
			Jitter:             uint32(s.jitter),
			LastSenderReport:   s.lastSenderReport,
			Delay:              dlsr,
		}},
	}
}

// expectedAndLostSinceLastReport consumes the interval since the last report.
// Must be called with s.m held.
func (s *receiverStream) expectedAndLostSinceLastReport() (expected, lost uint16) {
	expected = s.lastSeqnum - s.lastReportSeqnum
	if expected == 0 {
		return 0, 0
	}
	defer func() {
		s.lastReportSeqnum = s.lastSeqnum
	}()

	start := s.lastReportSeqnum + 1
	if expected > s.size {
		// the bitfield only covers the newest "size" packets, everything before it
		// counts as lost
		lost = expected - s.size
		start = s.lastSeqnum - s.size + 1
	}

	for i := start; i != s.lastSeqnum+1; i++ {
		if !s.getReceived(i) {
			lost++
		}
	}

	return expected, lost
}

func (s *receiverStream) setReceived(seq uint16) {
	pos := seq % s.size
	s.packets[pos/64] |= 1 << (pos % 64)
}

func (s *receiverStream) delReceived(seq uint16) {
	pos := seq % s.size
	s.packets[pos/64] &^= 1 << (pos % 64)
}

func (s *receiverStream) getReceived(seq uint16) bool {
	pos := seq % s.size
	return (s.packets[pos/64] & (1 << (pos % 64))) != 0
}
