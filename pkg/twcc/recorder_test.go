package twcc

import (
	"testing"
	"time"

	"github.com/pion/rtcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderEmpty(t *testing.T) {
	r := NewRecorder(1)
	assert.Nil(t, r.BuildFeedbackPacket())
}

func TestRecorderConsecutive(t *testing.T) {
	r := NewRecorder(42)
	t0 := time.Date(2009, time.November, 10, 23, 0, 0, 0, time.UTC)

	r.Record(5, 0, t0)
	r.Record(5, 1, t0.Add(10*time.Millisecond))
	r.Record(5, 2, t0.Add(20*time.Millisecond))

	pkt := r.BuildFeedbackPacket()
	require.NotNil(t, pkt)
	assert.Equal(t, uint32(42), pkt.SenderSSRC)
	assert.Equal(t, uint32(5), pkt.MediaSSRC)
	assert.Equal(t, uint16(0), pkt.BaseSequenceNumber)
	assert.Equal(t, uint16(3), pkt.PacketStatusCount)
	assert.Equal(t, uint32(0), pkt.ReferenceTime)
	assert.Equal(t, uint8(0), pkt.FbPktCount)

	assert.Equal(t, []rtcp.PacketStatusChunk{
		&rtcp.RunLengthChunk{
			Type:               rtcp.TypeTCCRunLengthChunk,
			PacketStatusSymbol: rtcp.TypeTCCPacketReceivedSmallDelta,
			RunLength:          3,
		},
	}, pkt.PacketChunks)
	assert.Equal(t, []*rtcp.RecvDelta{
		{Type: rtcp.TypeTCCPacketReceivedSmallDelta, Delta: 0},
		{Type: rtcp.TypeTCCPacketReceivedSmallDelta, Delta: 10000},
		{Type: rtcp.TypeTCCPacketReceivedSmallDelta, Delta: 10000},
	}, pkt.RecvDeltas)

	// everything was consumed
	assert.Nil(t, r.BuildFeedbackPacket())
}

func TestRecorderMissingRun(t *testing.T) {
	r := NewRecorder(42)
	t0 := time.Date(2009, time.November, 10, 23, 0, 0, 0, time.UTC)

	r.Record(5, 0, t0)
	r.Record(5, 5, t0.Add(10*time.Millisecond))

	pkt := r.BuildFeedbackPacket()
	require.NotNil(t, pkt)
	assert.Equal(t, uint16(6), pkt.PacketStatusCount)
	assert.Equal(t, []rtcp.PacketStatusChunk{
		&rtcp.RunLengthChunk{
			Type:               rtcp.TypeTCCRunLengthChunk,
			PacketStatusSymbol: rtcp.TypeTCCPacketReceivedSmallDelta,
			RunLength:          1,
		},
		&rtcp.RunLengthChunk{
			Type:               rtcp.TypeTCCRunLengthChunk,
			PacketStatusSymbol: rtcp.TypeTCCPacketNotReceived,
			RunLength:          4,
		},
		&rtcp.RunLengthChunk{
			Type:               rtcp.TypeTCCRunLengthChunk,
			PacketStatusSymbol: rtcp.TypeTCCPacketReceivedSmallDelta,
			RunLength:          1,
		},
	}, pkt.PacketChunks)
	require.Len(t, pkt.RecvDeltas, 2)
	assert.Equal(t, int64(10000), pkt.RecvDeltas[1].Delta)
}

func TestRecorderLargeDelta(t *testing.T) {
	r := NewRecorder(42)
	t0 := time.Date(2009, time.November, 10, 23, 0, 0, 0, time.UTC)

	// 70ms exceeds the 64ms small delta limit
	r.Record(5, 0, t0)
	r.Record(5, 1, t0.Add(70*time.Millisecond))

	pkt := r.BuildFeedbackPacket()
	require.NotNil(t, pkt)
	assert.Equal(t, []rtcp.PacketStatusChunk{
		&rtcp.RunLengthChunk{
			Type:               rtcp.TypeTCCRunLengthChunk,
			PacketStatusSymbol: rtcp.TypeTCCPacketReceivedSmallDelta,
			RunLength:          1,
		},
		&rtcp.RunLengthChunk{
			Type:               rtcp.TypeTCCRunLengthChunk,
			PacketStatusSymbol: rtcp.TypeTCCPacketReceivedLargeDelta,
			RunLength:          1,
		},
	}, pkt.PacketChunks)
	assert.Equal(t, []*rtcp.RecvDelta{
		{Type: rtcp.TypeTCCPacketReceivedSmallDelta, Delta: 0},
		{Type: rtcp.TypeTCCPacketReceivedLargeDelta, Delta: 70000},
	}, pkt.RecvDeltas)
}

func TestRecorderDuplicateKeepsFirstArrival(t *testing.T) {
	r := NewRecorder(42)
	t0 := time.Date(2009, time.November, 10, 23, 0, 0, 0, time.UTC)

	r.Record(5, 0, t0)
	r.Record(5, 0, t0.Add(50*time.Millisecond))
	r.Record(5, 1, t0.Add(10*time.Millisecond))

	pkt := r.BuildFeedbackPacket()
	require.NotNil(t, pkt)
	require.Len(t, pkt.RecvDeltas, 2)
	assert.Equal(t, int64(0), pkt.RecvDeltas[0].Delta)
	assert.Equal(t, int64(10000), pkt.RecvDeltas[1].Delta)
}

func TestRecorderWraparound(t *testing.T) {
	r := NewRecorder(42)
	t0 := time.Date(2009, time.November, 10, 23, 0, 0, 0, time.UTC)

	for i, seq := range []uint16{65534, 65535, 0, 4} {
		r.Record(5, seq, t0.Add(time.Duration(i)*10*time.Millisecond))
	}

	pkt := r.BuildFeedbackPacket()
	require.NotNil(t, pkt)
	assert.Equal(t, uint16(65534), pkt.BaseSequenceNumber)
	assert.Equal(t, uint16(7), pkt.PacketStatusCount)
	assert.Equal(t, []rtcp.PacketStatusChunk{
		&rtcp.RunLengthChunk{
			Type:               rtcp.TypeTCCRunLengthChunk,
			PacketStatusSymbol: rtcp.TypeTCCPacketReceivedSmallDelta,
			RunLength:          3,
		},
		&rtcp.RunLengthChunk{
			Type:               rtcp.TypeTCCRunLengthChunk,
			PacketStatusSymbol: rtcp.TypeTCCPacketNotReceived,
			RunLength:          3,
		},
		&rtcp.RunLengthChunk{
			Type:               rtcp.TypeTCCRunLengthChunk,
			PacketStatusSymbol: rtcp.TypeTCCPacketReceivedSmallDelta,
			RunLength:          1,
		},
	}, pkt.PacketChunks)
	require.Len(t, pkt.RecvDeltas, 4)
}

func TestRecorderWindowAdvance(t *testing.T) {
	r := NewRecorder(42)
	t0 := time.Date(2009, time.November, 10, 23, 0, 0, 0, time.UTC)

	r.Record(5, 0, t0)
	r.Record(5, 1, t0.Add(10*time.Millisecond))

	pkt := r.BuildFeedbackPacket()
	require.NotNil(t, pkt)
	assert.Equal(t, uint16(0), pkt.BaseSequenceNumber)
	assert.Equal(t, uint16(2), pkt.PacketStatusCount)
	assert.Equal(t, uint8(0), pkt.FbPktCount)

	// the next feedback starts right after the previous window
	r.Record(5, 2, t0.Add(20*time.Millisecond))

	pkt = r.BuildFeedbackPacket()
	require.NotNil(t, pkt)
	assert.Equal(t, uint16(2), pkt.BaseSequenceNumber)
	assert.Equal(t, uint16(1), pkt.PacketStatusCount)
	assert.Equal(t, uint8(1), pkt.FbPktCount)

	// an arrival from before the window is dropped
	r.Record(5, 1, t0.Add(30*time.Millisecond))
	assert.Nil(t, r.BuildFeedbackPacket())
}

func TestRecorderRemoveStream(t *testing.T) {
	r := NewRecorder(42)
	t0 := time.Date(2009, time.November, 10, 23, 0, 0, 0, time.UTC)

	r.Record(5, 0, t0)
	r.RemoveStream(5)

	// nothing left to report
	assert.Nil(t, r.BuildFeedbackPacket())

	// arrivals of other streams survive
	r.Record(5, 1, t0.Add(10*time.Millisecond))
	r.Record(6, 2, t0.Add(20*time.Millisecond))
	r.RemoveStream(5)

	pkt := r.BuildFeedbackPacket()
	require.NotNil(t, pkt)
	assert.Equal(t, uint32(6), pkt.MediaSSRC)
	assert.Equal(t, uint16(3), pkt.PacketStatusCount)
	require.Len(t, pkt.RecvDeltas, 1)
}

func TestRecorderReferenceTime(t *testing.T) {
	r := NewRecorder(42)
	t0 := time.Date(2009, time.November, 10, 23, 0, 0, 0, time.UTC)

	r.Record(5, 0, t0)
	require.NotNil(t, r.BuildFeedbackPacket())

	// 130ms since the first ever arrival, truncated to the 64ms granule
	r.Record(5, 1, t0.Add(130*time.Millisecond))

	pkt := r.BuildFeedbackPacket()
	require.NotNil(t, pkt)
	assert.Equal(t, uint32(2), pkt.ReferenceTime)
	require.Len(t, pkt.RecvDeltas, 1)
	// delta chains from the 128ms reference time
	assert.Equal(t, int64(2000), pkt.RecvDeltas[0].Delta)
}
