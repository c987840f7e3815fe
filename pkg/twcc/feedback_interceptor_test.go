package twcc

import (
	"testing"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/interceptor/internal/test"
	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedbackInterceptor(t *testing.T) {
	f, err := NewFeedbackInterceptor(FeedbackInterval(time.Millisecond * 500))
	require.NoError(t, err)
	i, err := f.NewInterceptor("")
	require.NoError(t, err)

	stream := test.NewMockStream(&interceptor.StreamInfo{
		SSRC:                77,
		RTPHeaderExtensions: []interceptor.RTPHeaderExtension{{URI: transportCCURI, ID: 1}},
	}, i)
	defer func() {
		require.NoError(t, stream.Close())
	}()

	// transport-wide sequence number 3 goes missing
	for _, seq := range []uint16{0, 1, 2, 4} {
		header := rtp.Header{SSRC: 77}
		ext, marshalErr := (&rtp.TransportCCExtension{TransportSequence: seq}).Marshal()
		require.NoError(t, marshalErr)
		require.NoError(t, header.SetExtension(1, ext))

		stream.ReceiveRTP(&rtp.Packet{Header: header})
		read := <-stream.ReadRTP()
		require.NoError(t, read.Err)
	}

	var fb *rtcp.TransportLayerCC
	timeout := time.After(time.Second * 5)
collect:
	for {
		select {
		case pkts := <-stream.WrittenRTCP():
			for _, pkt := range pkts {
				if cc, ok := pkt.(*rtcp.TransportLayerCC); ok {
					fb = cc
					break collect
				}
			}
		case <-timeout:
			t.Fatal("no feedback packet emitted")
		}
	}

	assert.Equal(t, uint32(77), fb.MediaSSRC)
	assert.Equal(t, uint16(0), fb.BaseSequenceNumber)
	assert.Equal(t, uint16(5), fb.PacketStatusCount)
	assert.Len(t, fb.RecvDeltas, 4)
}

func TestFeedbackInterceptorIgnoresStreamWithoutExtension(t *testing.T) {
	f, err := NewFeedbackInterceptor(FeedbackInterval(time.Millisecond * 10))
	require.NoError(t, err)
	i, err := f.NewInterceptor("")
	require.NoError(t, err)

	stream := test.NewMockStream(&interceptor.StreamInfo{SSRC: 77}, i)
	defer func() {
		require.NoError(t, stream.Close())
	}()

	stream.ReceiveRTP(&rtp.Packet{Header: rtp.Header{SequenceNumber: 1, SSRC: 77}})
	read := <-stream.ReadRTP()
	require.NoError(t, read.Err)

	select {
	case pkts := <-stream.WrittenRTCP():
		for _, pkt := range pkts {
			if _, ok := pkt.(*rtcp.TransportLayerCC); ok {
				t.Fatal("feedback emitted for a stream without the extension")
			}
		}
	case <-time.After(time.Millisecond * 200):
	}
}

func TestFeedbackInterceptorNoFeedbackAfterUnbind(t *testing.T) {
	f, err := NewFeedbackInterceptor(FeedbackInterval(time.Millisecond * 10))
	require.NoError(t, err)
	i, err := f.NewInterceptor("")
	require.NoError(t, err)

	feedback := make(chan *rtcp.TransportLayerCC, 100)
	i.BindRTCPWriter(interceptor.RTCPWriterFunc(func(pkts []rtcp.Packet, _ interceptor.Attributes) (int, error) {
		for _, pkt := range pkts {
			if cc, ok := pkt.(*rtcp.TransportLayerCC); ok {
				feedback <- cc
			}
		}
		return 0, nil
	}))

	info := &interceptor.StreamInfo{
		SSRC:                77,
		RTPHeaderExtensions: []interceptor.RTPHeaderExtension{{URI: transportCCURI, ID: 1}},
	}
	packets := make(chan *rtp.Packet, 10)
	reader := i.BindRemoteStream(info, interceptor.RTPReaderFunc(func(b []byte, a interceptor.Attributes) (int, interceptor.Attributes, error) {
		buf, marshalErr := (<-packets).Marshal()
		if marshalErr != nil {
			return 0, nil, marshalErr
		}
		copy(b, buf)
		return len(buf), a, nil
	}))

	header := rtp.Header{SSRC: 77}
	ext, err := (&rtp.TransportCCExtension{TransportSequence: 0}).Marshal()
	require.NoError(t, err)
	require.NoError(t, header.SetExtension(1, ext))
	packets <- &rtp.Packet{Header: header}

	buf := make([]byte, 1500)
	_, _, err = reader.Read(buf, interceptor.Attributes{})
	require.NoError(t, err)

	i.UnbindRemoteStream(info)

	// drain whatever was emitted before the unbind returned
	time.Sleep(time.Millisecond * 50)
	for len(feedback) > 0 {
		<-feedback
	}

	// the recorded arrival is dropped, the loop must stay silent
	select {
	case fb := <-feedback:
		t.Fatalf("feedback for SSRC %d emitted after unbind returned", fb.MediaSSRC)
	case <-time.After(time.Millisecond * 300):
	}

	require.NoError(t, i.Close())
}

func TestFeedbackInterceptorCloseIdempotent(t *testing.T) {
	f, err := NewFeedbackInterceptor()
	require.NoError(t, err)
	i, err := f.NewInterceptor("")
	require.NoError(t, err)

	require.NoError(t, i.Close())
	require.NoError(t, i.Close())

	// binding a writer after close must not start a loop
	assert.NotNil(t, i.BindRTCPWriter(interceptor.RTCPWriterFunc(
		func([]rtcp.Packet, interceptor.Attributes) (int, error) {
			return 0, nil
		})))
}
