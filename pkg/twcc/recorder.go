package twcc

import (
	"sync"
	"time"

	"github.com/pion/rtcp"
)

// Recorder keeps track of the arrival time of every transport-wide sequence
// number and turns them into feedback packets. One feedback packet covers all
// sequence numbers seen since the previous one.
type Recorder struct {
	m sync.Mutex

	senderSSRC uint32
	mediaSSRC  uint32
	fbPktCnt   uint8

	started   bool
	startTime time.Time
	baseSeq   uint16
	lastSeq   uint16
	arrivals  map[uint16]arrival
}

type arrival struct {
	at   time.Time
	ssrc uint32
}

// NewRecorder creates a new Recorder which uses the given senderSSRC in the
// feedback packets it produces.
func NewRecorder(senderSSRC uint32) *Recorder {
	return &Recorder{
		senderSSRC: senderSSRC,
		arrivals:   map[uint16]arrival{},
	}
}

// Record marks the transport-wide sequence number seq as received at time at.
// Duplicate arrivals keep the first time, sequence numbers older than the
// current feedback window are dropped.
func (r *Recorder) Record(mediaSSRC uint32, seq uint16, at time.Time) {
	r.m.Lock()
	defer r.m.Unlock()

	r.mediaSSRC = mediaSSRC

	if !r.started {
		r.started = true
		r.startTime = at
		r.baseSeq = seq
		r.lastSeq = seq
	} else {
		if seq-r.baseSeq >= uint16SizeHalf {
			// before the window, the feedback covering it is already out
			return
		}
		if diff := seq - r.lastSeq; diff != 0 && diff < uint16SizeHalf {
			r.lastSeq = seq
		}
	}

	if _, ok := r.arrivals[seq]; !ok {
		r.arrivals[seq] = arrival{at: at, ssrc: mediaSSRC}
	}
}

// RemoveStream drops all pending arrivals recorded for mediaSSRC. Sequence
// numbers already covered by the window stay covered and show up as not received
// in the next feedback.
func (r *Recorder) RemoveStream(mediaSSRC uint32) {
	r.m.Lock()
	defer r.m.Unlock()

	for seq, a := range r.arrivals {
		if a.ssrc == mediaSSRC {
			delete(r.arrivals, seq)
		}
	}

	if r.mediaSSRC == mediaSSRC {
		r.mediaSSRC = 0
		for _, a := range r.arrivals {
			r.mediaSSRC = a.ssrc
			break
		}
	}
}

// BuildFeedbackPacket returns a feedback packet covering every sequence number
// since the previous feedback, or nil if nothing arrived since then.
func (r *Recorder) BuildFeedbackPacket() *rtcp.TransportLayerCC {
	r.m.Lock()
	defer r.m.Unlock()

	if !r.started || len(r.arrivals) == 0 {
		return nil
	}

	count := r.lastSeq - r.baseSeq + 1

	// the reference time is a multiple of 64ms since the first recorded arrival,
	// receive deltas chain from it
	var refTicks time.Duration
	for i := uint16(0); i != count; i++ {
		if a, ok := r.arrivals[r.baseSeq+i]; ok {
			refTicks = a.at.Sub(r.startTime) / referenceTimeGranule * referenceTimeGranule
			break
		}
	}
	prev := r.startTime.Add(refTicks)

	var chunks []rtcp.PacketStatusChunk
	var deltas []*rtcp.RecvDelta
	var runSymbol uint16
	var runLength uint16
	flush := func() {
		if runLength > 0 {
			chunks = append(chunks, &rtcp.RunLengthChunk{
				Type:               rtcp.TypeTCCRunLengthChunk,
				PacketStatusSymbol: runSymbol,
				RunLength:          runLength,
			})
			runLength = 0
		}
	}

	for i := uint16(0); i != count; i++ {
		symbol := uint16(rtcp.TypeTCCPacketNotReceived)
		if a, ok := r.arrivals[r.baseSeq+i]; ok {
			delta := a.at.Sub(prev)
			prev = a.at

			symbol = rtcp.TypeTCCPacketReceivedSmallDelta
			if delta < 0 || delta >= 256*typeTCCDeltaScaleFactor {
				symbol = rtcp.TypeTCCPacketReceivedLargeDelta
			}
			deltas = append(deltas, &rtcp.RecvDelta{
				Type:  symbol,
				Delta: delta.Microseconds(),
			})
		}

		if runLength > 0 && symbol != runSymbol {
			flush()
		}
		if runLength == 0 {
			runSymbol = symbol
		}
		runLength++
		if runLength == 0x1FFF { // 13-bit run length
			flush()
		}
	}
	flush()

	deltaLen := 0
	for _, d := range deltas {
		deltaLen++
		if d.Type == rtcp.TypeTCCPacketReceivedLargeDelta {
			deltaLen++
		}
	}
	pktLen := 20 + len(chunks)*2 + deltaLen
	pad := (4 - pktLen%4) % 4
	pktLen += pad

	pkt := &rtcp.TransportLayerCC{
		Header: rtcp.Header{
			Padding: pad > 0,
			Count:   rtcp.FormatTCC,
			Type:    rtcp.TypeTransportSpecificFeedback,
			Length:  uint16(pktLen/4 - 1),
		},
		SenderSSRC:         r.senderSSRC,
		MediaSSRC:          r.mediaSSRC,
		BaseSequenceNumber: r.baseSeq,
		PacketStatusCount:  count,
		ReferenceTime:      uint32(refTicks/referenceTimeGranule) & 0xFFFFFF,
		FbPktCount:         r.fbPktCnt,
		PacketChunks:       chunks,
		RecvDeltas:         deltas,
	}

	r.fbPktCnt++
	r.baseSeq = r.lastSeq + 1
	r.arrivals = map[uint16]arrival{}

	return pkt
}
