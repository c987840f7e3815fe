package nack

import (
	"sync"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/logging"
	"github.com/pion/randutil"
	"github.com/pion/rtcp"
	"github.com/pion/rtp"
)

// InterceptorFactory is a interceptor.Factory for nack Interceptors. The factory
// itself only holds configuration, every session gets its own Interceptor.
type InterceptorFactory struct {
	opts []Option
}

// NewInterceptor returns a new Interceptor.
func (f *InterceptorFactory) NewInterceptor(_ string) (interceptor.Interceptor, error) {
	i := &Interceptor{
		receiveLogSize: 512,
		sendBufferSize: 1024,
		maxPacketAge:   time.Second,
		interval:       time.Millisecond * 100,
		minInterval:    0,
		skipLastN:      0,
		log:            logging.NewDefaultLoggerFactory().NewLogger("nack_interceptor"),
		rand:           randutil.NewMathRandomGenerator(),
		recvStreams:    map[uint32]*recvStream{},
		sendStreams:    map[uint32]*sendStream{},
		close:          make(chan struct{}),
	}

	for _, opt := range f.opts {
		if err := opt(i); err != nil {
			return nil, err
		}
	}

	// fail on an invalid size now instead of at bind time
	if _, err := newReceiveLog(i.receiveLogSize); err != nil {
		return nil, err
	}
	if _, err := newSendBuffer(i.sendBufferSize, i.maxPacketAge); err != nil {
		return nil, err
	}

	return i, nil
}

// NewInterceptor returns a new InterceptorFactory.
func NewInterceptor(opts ...Option) (*InterceptorFactory, error) {
	return &InterceptorFactory{opts}, nil
}

// Interceptor requests retransmissions for missing incoming packets and answers
// incoming retransmission requests from a cache of recently sent packets. The
// generator role is active on streams bound with BindRemoteStream, the responder
// role on streams bound with BindLocalStream; both only act on streams that
// negotiated "nack" RTCP feedback.
type Interceptor struct {
	interceptor.NoOp

	receiveLogSize uint16
	sendBufferSize uint16
	maxPacketAge   time.Duration
	interval       time.Duration
	minInterval    time.Duration
	skipLastN      uint16
	log            logging.LeveledLogger
	rand           randutil.MathRandomGenerator

	streamsMu   sync.Mutex
	recvStreams map[uint32]*recvStream
	sendStreams map[uint32]*sendStream

	wg      sync.WaitGroup
	closeMu sync.Mutex
	close   chan struct{}
}

type recvStream struct {
	log      *receiveLog
	lastNack time.Time // only touched by the emission loop
}

type sendStream struct {
	buffer    *sendBuffer
	rtpWriter interceptor.RTPWriter
}

// BindRTCPWriter lets you modify any outgoing RTCP packets. It is called once per PeerConnection. The returned method
// will be called once per packet batch.
func (n *Interceptor) BindRTCPWriter(writer interceptor.RTCPWriter) interceptor.RTCPWriter {
	n.closeMu.Lock()
	defer n.closeMu.Unlock()

	if n.isClosed() {
		n.log.Warnf("not starting nack loop: %v", interceptor.ErrInterceptorClosed)
		return writer
	}

	n.wg.Add(1)
	go n.loop(writer)

	return writer
}

// BindRTCPReader lets you modify any incoming RTCP packets. It is called once per sender/receiver, however this might
// change in the future. The returned method will be called once per packet batch.
func (n *Interceptor) BindRTCPReader(reader interceptor.RTCPReader) interceptor.RTCPReader {
	return interceptor.RTCPReaderFunc(func(b []byte, a interceptor.Attributes) (int, interceptor.Attributes, error) {
		i, attr, err := reader.Read(b, a)
		if err != nil {
			return 0, nil, err
		}

		pkts, err := rtcp.Unmarshal(b[:i])
		if err != nil {
			return 0, nil, err
		}
		for _, pkt := range pkts {
			if nackPkt, ok := pkt.(*rtcp.TransportLayerNack); ok {
				n.resendPackets(nackPkt)
			}
		}

		return i, attr, nil
	})
}

// BindRemoteStream lets you modify any incoming RTP packets. It is called once for per RemoteStream. The returned method
// will be called once per rtp packet.
func (n *Interceptor) BindRemoteStream(info *interceptor.StreamInfo, reader interceptor.RTPReader) interceptor.RTPReader {
	if !streamSupportNack(info) {
		return reader
	}

	// size was validated when the interceptor was built
	recvLog, err := newReceiveLog(n.receiveLogSize)
	if err != nil {
		n.log.Errorf("failed creating receive log: %v", err)
		return reader
	}

	n.streamsMu.Lock()
	if _, ok := n.recvStreams[info.SSRC]; ok {
		n.log.Errorf("%v: ssrc=%d", interceptor.ErrDupStreamBind, info.SSRC)
	}
	stream := &recvStream{log: recvLog}
	n.recvStreams[info.SSRC] = stream
	n.streamsMu.Unlock()

	return interceptor.RTPReaderFunc(func(b []byte, a interceptor.Attributes) (int, interceptor.Attributes, error) {
		i, attr, err := reader.Read(b, a)
		if err != nil {
			return 0, nil, err
		}

		var header rtp.Header
		if _, err = header.Unmarshal(b[:i]); err != nil {
			return 0, nil, err
		}
		recvLog.add(header.SequenceNumber)

		return i, attr, nil
	})
}

// UnbindRemoteStream is called when the Stream is removed. It can be used to clean up any data related to that track.
func (n *Interceptor) UnbindRemoteStream(info *interceptor.StreamInfo) {
	n.streamsMu.Lock()
	defer n.streamsMu.Unlock()
	delete(n.recvStreams, info.SSRC)
}

// BindLocalStream lets you modify any outgoing RTP packets. It is called once for per LocalStream. The returned method
// will be called once per rtp packet.
func (n *Interceptor) BindLocalStream(info *interceptor.StreamInfo, writer interceptor.RTPWriter) interceptor.RTPWriter {
	if !streamSupportNack(info) {
		return writer
	}

	buffer, err := newSendBuffer(n.sendBufferSize, n.maxPacketAge)
	if err != nil {
		n.log.Errorf("failed creating send buffer: %v", err)
		return writer
	}

	n.streamsMu.Lock()
	if _, ok := n.sendStreams[info.SSRC]; ok {
		n.log.Errorf("%v: ssrc=%d", interceptor.ErrDupStreamBind, info.SSRC)
	}
	n.sendStreams[info.SSRC] = &sendStream{buffer: buffer, rtpWriter: writer}
	n.streamsMu.Unlock()

	return interceptor.RTPWriterFunc(func(header *rtp.Header, payload []byte, attributes interceptor.Attributes) (int, error) {
		buffer.add(header, payload, time.Now())
		return writer.Write(header, payload, attributes)
	})
}

// UnbindLocalStream is called when the Stream is removed. It can be used to clean up any data related to that track.
func (n *Interceptor) UnbindLocalStream(info *interceptor.StreamInfo) {
	n.streamsMu.Lock()
	defer n.streamsMu.Unlock()
	delete(n.sendStreams, info.SSRC)
}

// Close closes the interceptor. It stops the NACK emission loop and waits for it
// to terminate. Calling Close twice is a no-op.
func (n *Interceptor) Close() error {
	defer n.wg.Wait()
	n.closeMu.Lock()
	defer n.closeMu.Unlock()

	if !n.isClosed() {
		close(n.close)
	}

	return nil
}

func (n *Interceptor) loop(rtcpWriter interceptor.RTCPWriter) {
	defer n.wg.Done()

	senderSSRC := n.rand.Uint32()

	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			now := time.Now()

			// Emission happens under streamsMu so that no NACK for a stream can be
			// written after UnbindRemoteStream for that stream has returned.
			n.streamsMu.Lock()
			for ssrc, stream := range n.recvStreams {
				if n.minInterval > 0 && now.Sub(stream.lastNack) < n.minInterval {
					continue
				}

				missing := stream.log.missingSeqNumbers(n.skipLastN)
				if len(missing) == 0 {
					continue
				}
				stream.lastNack = now

				nack := &rtcp.TransportLayerNack{
					SenderSSRC: senderSSRC,
					MediaSSRC:  ssrc,
					Nacks:      rtcp.NackPairsFromSequenceNumbers(missing),
				}
				if _, err := rtcpWriter.Write([]rtcp.Packet{nack}, interceptor.Attributes{}); err != nil {
					n.log.Warnf("failed sending nack: %+v", err)
				}
			}
			n.streamsMu.Unlock()
		case <-n.close:
			return
		}
	}
}

// resendPackets holds streamsMu for the whole resend so that no retransmission
// can go through the stream writer after UnbindLocalStream has returned.
func (n *Interceptor) resendPackets(nack *rtcp.TransportLayerNack) {
	n.streamsMu.Lock()
	defer n.streamsMu.Unlock()

	stream, ok := n.sendStreams[nack.MediaSSRC]
	if !ok {
		return
	}

	for i := range nack.Nacks {
		for _, seq := range nack.Nacks[i].PacketList() {
			pkt := stream.buffer.get(seq)
			if pkt == nil {
				// already evicted, the retransmission window has passed
				continue
			}

			if _, err := stream.rtpWriter.Write(&pkt.Header, pkt.Payload, interceptor.Attributes{}); err != nil {
				n.log.Warnf("failed resending packet %d: %+v", seq, err)
			}
		}
	}
}

func (n *Interceptor) isClosed() bool {
	select {
	case <-n.close:
		return true
	default:
		return false
	}
}
