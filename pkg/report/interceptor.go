package report

import (
	"sync"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/logging"
	"github.com/pion/randutil"
	"github.com/pion/rtcp"
	"github.com/pion/rtp"
)

// InterceptorFactory is a interceptor.Factory for report Interceptors.
type InterceptorFactory struct {
	opts []Option
}

// NewInterceptor returns a new Interceptor.
func (f *InterceptorFactory) NewInterceptor(_ string) (interceptor.Interceptor, error) {
	rnd := randutil.NewMathRandomGenerator()
	i := &Interceptor{
		interval:        time.Second,
		now:             time.Now,
		log:             logging.NewDefaultLoggerFactory().NewLogger("report_interceptor"),
		rand:            rnd,
		receiverSSRC:    rnd.Uint32(),
		senderStreams:   map[uint32]*senderStream{},
		receiverStreams: map[uint32]*receiverStream{},
		close:           make(chan struct{}),
	}

	for _, opt := range f.opts {
		if err := opt(i); err != nil {
			return nil, err
		}
	}

	return i, nil
}

// NewInterceptor returns a new InterceptorFactory.
func NewInterceptor(opts ...Option) (*InterceptorFactory, error) {
	return &InterceptorFactory{opts}, nil
}

// Interceptor periodically writes one compound batch of reports on the RTCP
// writer: a sender report for every bound local stream, a receiver report for
// every bound remote stream.
type Interceptor struct {
	interceptor.NoOp

	interval time.Duration
	now      func() time.Time
	log      logging.LeveledLogger
	rand     randutil.MathRandomGenerator

	// SSRC identifying this endpoint in receiver reports
	receiverSSRC uint32

	streamsMu       sync.Mutex
	senderStreams   map[uint32]*senderStream
	receiverStreams map[uint32]*receiverStream

	wg      sync.WaitGroup
	closeMu sync.Mutex
	close   chan struct{}
}

// BindRTCPWriter lets you modify any outgoing RTCP packets. It is called once per PeerConnection. The returned method
// will be called once per packet batch.
func (r *Interceptor) BindRTCPWriter(writer interceptor.RTCPWriter) interceptor.RTCPWriter {
	r.closeMu.Lock()
	defer r.closeMu.Unlock()

	if r.isClosed() {
		r.log.Warnf("not starting report loop: %v", interceptor.ErrInterceptorClosed)
		return writer
	}

	r.wg.Add(1)
	go r.loop(writer)

	return writer
}

// BindRTCPReader lets you modify any incoming RTCP packets. It is called once per sender/receiver, however this might
// change in the future. The returned method will be called once per packet batch.
func (r *Interceptor) BindRTCPReader(reader interceptor.RTCPReader) interceptor.RTCPReader {
	return interceptor.RTCPReaderFunc(func(b []byte, a interceptor.Attributes) (int, interceptor.Attributes, error) {
		i, attr, err := reader.Read(b, a)
		if err != nil {
			return 0, nil, err
		}

		pkts, err := rtcp.Unmarshal(b[:i])
		if err != nil {
			return 0, nil, err
		}
		now := r.now()
		for _, pkt := range pkts {
			if sr, ok := pkt.(*rtcp.SenderReport); ok {
				r.streamsMu.Lock()
				if stream, ok := r.receiverStreams[sr.SSRC]; ok {
					stream.processSenderReport(now, sr)
				}
				r.streamsMu.Unlock()
			}
		}

		return i, attr, nil
	})
}

// BindLocalStream lets you modify any outgoing RTP packets. It is called once for per LocalStream. The returned method
// will be called once per rtp packet.
func (r *Interceptor) BindLocalStream(info *interceptor.StreamInfo, writer interceptor.RTPWriter) interceptor.RTPWriter {
	stream := newSenderStream(info.SSRC, info.ClockRate)

	r.streamsMu.Lock()
	if _, ok := r.senderStreams[info.SSRC]; ok {
		r.log.Errorf("%v: ssrc=%d", interceptor.ErrDupStreamBind, info.SSRC)
	}
	r.senderStreams[info.SSRC] = stream
	r.streamsMu.Unlock()

	return interceptor.RTPWriterFunc(func(header *rtp.Header, payload []byte, attributes interceptor.Attributes) (int, error) {
		stream.processRTP(r.now(), header, payload)
		return writer.Write(header, payload, attributes)
	})
}

// UnbindLocalStream is called when the Stream is removed. It can be used to clean up any data related to that track.
func (r *Interceptor) UnbindLocalStream(info *interceptor.StreamInfo) {
	r.streamsMu.Lock()
	defer r.streamsMu.Unlock()
	delete(r.senderStreams, info.SSRC)
}

// BindRemoteStream lets you modify any incoming RTP packets. It is called once for per RemoteStream. The returned method
// will be called once per rtp packet.
func (r *Interceptor) BindRemoteStream(info *interceptor.StreamInfo, reader interceptor.RTPReader) interceptor.RTPReader {
	stream := newReceiverStream(info.SSRC, r.receiverSSRC, info.ClockRate)

	r.streamsMu.Lock()
	if _, ok := r.receiverStreams[info.SSRC]; ok {
		r.log.Errorf("%v: ssrc=%d", interceptor.ErrDupStreamBind, info.SSRC)
	}
	r.receiverStreams[info.SSRC] = stream
	r.streamsMu.Unlock()

	return interceptor.RTPReaderFunc(func(b []byte, a interceptor.Attributes) (int, interceptor.Attributes, error) {
		i, attr, err := reader.Read(b, a)
		if err != nil {
			return 0, nil, err
		}

		var header rtp.Header
		if _, err = header.Unmarshal(b[:i]); err != nil {
			return 0, nil, err
		}
		stream.processRTP(r.now(), &header)

		return i, attr, nil
	})
}

// UnbindRemoteStream is called when the Stream is removed. It can be used to clean up any data related to that track.
func (r *Interceptor) UnbindRemoteStream(info *interceptor.StreamInfo) {
	r.streamsMu.Lock()
	defer r.streamsMu.Unlock()
	delete(r.receiverStreams, info.SSRC)
}

// Close closes the interceptor. It stops the report loop and waits for it to
// terminate. Calling Close twice is a no-op.
func (r *Interceptor) Close() error {
	defer r.wg.Wait()
	r.closeMu.Lock()
	defer r.closeMu.Unlock()

	if !r.isClosed() {
		close(r.close)
	}

	return nil
}

func (r *Interceptor) loop(rtcpWriter interceptor.RTCPWriter) {
	defer r.wg.Done()

	timer := time.NewTimer(r.flushInterval())
	defer timer.Stop()
	for {
		select {
		case <-timer.C:
			now := r.now()

			// Emission happens under streamsMu so that no report for a stream can be
			// written after the unbind for that stream has returned.
			r.streamsMu.Lock()
			pkts := make([]rtcp.Packet, 0, len(r.senderStreams)+len(r.receiverStreams))
			for _, stream := range r.senderStreams {
				if sr := stream.generateReport(now); sr != nil {
					pkts = append(pkts, sr)
				}
			}
			for _, stream := range r.receiverStreams {
				pkts = append(pkts, stream.generateReport(now))
			}
			if len(pkts) > 0 {
				if _, err := rtcpWriter.Write(pkts, interceptor.Attributes{}); err != nil {
					r.log.Warnf("failed sending reports: %+v", err)
				}
			}
			r.streamsMu.Unlock()

			timer.Reset(r.flushInterval())
		case <-r.close:
			return
		}
	}
}

func (r *Interceptor) flushInterval() time.Duration {
	interval := r.interval
	if spread := int(interval / 4); spread > 0 {
		interval += time.Duration(r.rand.Intn(spread)) - interval/8
	}

	return interval
}

func (r *Interceptor) isClosed() bool {
	select {
	case <-r.close:
		return true
	default:
		return false
	}
}
