package twcc

import (
	"sync"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/logging"
	"github.com/pion/randutil"
	"github.com/pion/rtcp"
	"github.com/pion/rtp"
)

// FeedbackOption can be used to configure the FeedbackInterceptor.
type FeedbackOption func(f *FeedbackInterceptor) error

// FeedbackInterval sets how often feedback packets are sent, default is 100ms.
func FeedbackInterval(interval time.Duration) FeedbackOption {
	return func(f *FeedbackInterceptor) error {
		f.interval = interval
		return nil
	}
}

// FeedbackLog sets a logger for the interceptor.
func FeedbackLog(log logging.LeveledLogger) FeedbackOption {
	return func(f *FeedbackInterceptor) error {
		f.log = log
		return nil
	}
}

// FeedbackInterceptorFactory is a interceptor.Factory for FeedbackInterceptors.
type FeedbackInterceptorFactory struct {
	opts []FeedbackOption
}

// NewInterceptor returns a new FeedbackInterceptor.
func (f *FeedbackInterceptorFactory) NewInterceptor(_ string) (interceptor.Interceptor, error) {
	i := &FeedbackInterceptor{
		interval: time.Millisecond * 100,
		log:      logging.NewDefaultLoggerFactory().NewLogger("twcc_feedback_interceptor"),
		recorder: NewRecorder(randutil.NewMathRandomGenerator().Uint32()),
		close:    make(chan struct{}),
	}

	for _, opt := range f.opts {
		if err := opt(i); err != nil {
			return nil, err
		}
	}

	return i, nil
}

// NewFeedbackInterceptor returns a new FeedbackInterceptorFactory.
func NewFeedbackInterceptor(opts ...FeedbackOption) (*FeedbackInterceptorFactory, error) {
	return &FeedbackInterceptorFactory{opts}, nil
}

// FeedbackInterceptor records the arrival time of every incoming packet that
// carries a transport-wide sequence number and periodically reports them back
// to the sender in transport-wide congestion control feedback packets.
type FeedbackInterceptor struct {
	interceptor.NoOp

	interval time.Duration
	log      logging.LeveledLogger

	// streamsMu serializes feedback emission with stream unbinds
	streamsMu sync.Mutex
	recorder  *Recorder

	wg      sync.WaitGroup
	closeMu sync.Mutex
	close   chan struct{}
}

// BindRTCPWriter lets you modify any outgoing RTCP packets. It is called once per PeerConnection. The returned method
// will be called once per packet batch.
func (f *FeedbackInterceptor) BindRTCPWriter(writer interceptor.RTCPWriter) interceptor.RTCPWriter {
	f.closeMu.Lock()
	defer f.closeMu.Unlock()

	if f.isClosed() {
		f.log.Warnf("not starting feedback loop: %v", interceptor.ErrInterceptorClosed)
		return writer
	}

	f.wg.Add(1)
	go f.loop(writer)

	return writer
}

// BindRemoteStream returns a reader that records the arrival time of every
// packet carrying the transport-wide sequence number extension, if the stream
// negotiated it.
func (f *FeedbackInterceptor) BindRemoteStream(info *interceptor.StreamInfo, reader interceptor.RTPReader) interceptor.RTPReader {
	var hdrExtID uint8
	for _, e := range info.RTPHeaderExtensions {
		if e.URI == transportCCURI {
			hdrExtID = uint8(e.ID)
			break
		}
	}
	if hdrExtID == 0 {
		return reader
	}

	ssrc := info.SSRC
	return interceptor.RTPReaderFunc(func(b []byte, a interceptor.Attributes) (int, interceptor.Attributes, error) {
		i, attr, err := reader.Read(b, a)
		if err != nil {
			return 0, nil, err
		}

		var header rtp.Header
		if _, err = header.Unmarshal(b[:i]); err != nil {
			return 0, nil, err
		}
		var ext rtp.TransportCCExtension
		if payload := header.GetExtension(hdrExtID); payload != nil {
			if err = ext.Unmarshal(payload); err == nil {
				f.recorder.Record(ssrc, ext.TransportSequence, time.Now())
			}
		}

		return i, attr, nil
	})
}

// UnbindRemoteStream is called when the Stream is removed. Pending arrivals of the
// stream are dropped, no feedback for them is written after this returns.
func (f *FeedbackInterceptor) UnbindRemoteStream(info *interceptor.StreamInfo) {
	f.streamsMu.Lock()
	defer f.streamsMu.Unlock()
	f.recorder.RemoveStream(info.SSRC)
}

// Close closes the interceptor. It stops the feedback loop and waits for it to
// terminate. Calling Close twice is a no-op.
func (f *FeedbackInterceptor) Close() error {
	defer f.wg.Wait()
	f.closeMu.Lock()
	defer f.closeMu.Unlock()

	if !f.isClosed() {
		close(f.close)
	}

	return nil
}

func (f *FeedbackInterceptor) loop(rtcpWriter interceptor.RTCPWriter) {
	defer f.wg.Done()

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			// Emission happens under streamsMu so that no feedback for a stream can be
			// written after UnbindRemoteStream for that stream has returned.
			f.streamsMu.Lock()
			if pkt := f.recorder.BuildFeedbackPacket(); pkt != nil {
				if _, err := rtcpWriter.Write([]rtcp.Packet{pkt}, interceptor.Attributes{}); err != nil {
					f.log.Warnf("failed sending feedback: %+v", err)
				}
			}
			f.streamsMu.Unlock()
		case <-f.close:
			return
		}
	}
}

func (f *FeedbackInterceptor) isClosed() bool {
	select {
	case <-f.close:
		return true
	default:
		return false
	}
}
