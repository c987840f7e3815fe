// Package test provides helpers for writing interceptor tests.
package test

import (
	"errors"
	"io"

	"github.com/pion/interceptor"
	"github.com/pion/rtcp"
	"github.com/pion/rtp"
)

// MockStream is a helper struct for testing interceptors. It binds all four
// packet directions of a single stream through one interceptor and exposes
// channels to drive and observe them.
type MockStream struct {
	interceptor interceptor.Interceptor

	rtcpWriter interceptor.RTCPWriter
	rtpWriter  interceptor.RTPWriter

	rtcpIn chan []rtcp.Packet
	rtpIn  chan *rtp.Packet

	rtcpOut chan []rtcp.Packet
	rtpOut  chan *rtp.Packet

	rtcpReadChan chan RTCPWithError
	rtpReadChan  chan RTPWithError
}

// RTCPWithError is a batch of RTCP packets delivered through the reader chain,
// or the error the chain returned.
type RTCPWithError struct {
	Packets []rtcp.Packet
	Err     error
}

// RTPWithError is an RTP packet delivered through the reader chain, or the error
// the chain returned.
type RTPWithError struct {
	Packet *rtp.Packet
	Err    error
}

// NewMockStream creates a new MockStream and binds it through i.
func NewMockStream(info *interceptor.StreamInfo, i interceptor.Interceptor) *MockStream {
	s := &MockStream{
		interceptor:  i,
		rtcpIn:       make(chan []rtcp.Packet, 1000),
		rtpIn:        make(chan *rtp.Packet, 1000),
		rtcpOut:      make(chan []rtcp.Packet, 1000),
		rtpOut:       make(chan *rtp.Packet, 1000),
		rtcpReadChan: make(chan RTCPWithError, 1000),
		rtpReadChan:  make(chan RTPWithError, 1000),
	}

	s.rtcpWriter = i.BindRTCPWriter(interceptor.RTCPWriterFunc(func(pkts []rtcp.Packet, _ interceptor.Attributes) (int, error) {
		s.rtcpOut <- pkts
		return 0, nil
	}))
	s.rtpWriter = i.BindLocalStream(info, interceptor.RTPWriterFunc(func(header *rtp.Header, payload []byte, _ interceptor.Attributes) (int, error) {
		s.rtpOut <- &rtp.Packet{Header: *header, Payload: payload}
		return len(payload), nil
	}))

	rtcpReader := i.BindRTCPReader(interceptor.RTCPReaderFunc(func(b []byte, a interceptor.Attributes) (int, interceptor.Attributes, error) {
		pkts, ok := <-s.rtcpIn
		if !ok {
			return 0, nil, io.EOF
		}

		marshaled, err := rtcp.Marshal(pkts)
		if err != nil {
			return 0, nil, err
		}
		copy(b, marshaled)

		return len(marshaled), a, nil
	}))
	rtpReader := i.BindRemoteStream(info, interceptor.RTPReaderFunc(func(b []byte, a interceptor.Attributes) (int, interceptor.Attributes, error) {
		pkt, ok := <-s.rtpIn
		if !ok {
			return 0, nil, io.EOF
		}

		marshaled, err := pkt.Marshal()
		if err != nil {
			return 0, nil, err
		}
		copy(b, marshaled)

		return len(marshaled), a, nil
	}))

	go func() {
		buf := make([]byte, 1500)
		for {
			n, _, err := rtcpReader.Read(buf, interceptor.Attributes{})
			if errors.Is(err, io.EOF) {
				return
			} else if err != nil {
				s.rtcpReadChan <- RTCPWithError{Err: err}
				return
			}

			pkts, err := rtcp.Unmarshal(buf[:n])
			if err != nil {
				s.rtcpReadChan <- RTCPWithError{Err: err}
				return
			}

			s.rtcpReadChan <- RTCPWithError{Packets: pkts}
		}
	}()
	go func() {
		buf := make([]byte, 1500)
		for {
			n, _, err := rtpReader.Read(buf, interceptor.Attributes{})
			if errors.Is(err, io.EOF) {
				return
			} else if err != nil {
				s.rtpReadChan <- RTPWithError{Err: err}
				return
			}

			pkt := &rtp.Packet{}
			if err := pkt.Unmarshal(buf[:n]); err != nil {
				s.rtpReadChan <- RTPWithError{Err: err}
				return
			}

			s.rtpReadChan <- RTPWithError{Packet: pkt}
		}
	}()

	return s
}

// WriteRTP writes an RTP packet through the writer chain.
func (s *MockStream) WriteRTP(p *rtp.Packet) error {
	_, err := s.rtpWriter.Write(&p.Header, p.Payload, interceptor.Attributes{})
	return err
}

// WriteRTCP writes a batch of RTCP packets through the writer chain.
func (s *MockStream) WriteRTCP(pkts []rtcp.Packet) error {
	_, err := s.rtcpWriter.Write(pkts, interceptor.Attributes{})
	return err
}

// ReceiveRTP delivers an RTP packet to the reader chain, as if it arrived from
// the transport.
func (s *MockStream) ReceiveRTP(pkt *rtp.Packet) {
	s.rtpIn <- pkt
}

// ReceiveRTCP delivers a batch of RTCP packets to the reader chain, as if they
// arrived from the transport.
func (s *MockStream) ReceiveRTCP(pkts []rtcp.Packet) {
	s.rtcpIn <- pkts
}

// WrittenRTP returns every RTP packet that reached the base writer.
func (s *MockStream) WrittenRTP() <-chan *rtp.Packet {
	return s.rtpOut
}

// WrittenRTCP returns every RTCP batch that reached the base writer.
func (s *MockStream) WrittenRTCP() <-chan []rtcp.Packet {
	return s.rtcpOut
}

// ReadRTP returns the RTP packets delivered through the reader chain.
func (s *MockStream) ReadRTP() <-chan RTPWithError {
	return s.rtpReadChan
}

// ReadRTCP returns the RTCP batches delivered through the reader chain.
func (s *MockStream) ReadRTCP() <-chan RTCPWithError {
	return s.rtcpReadChan
}

// Close closes the bound interceptor and stops the reader goroutines.
func (s *MockStream) Close() error {
	err := s.interceptor.Close()
	close(s.rtcpIn)
	close(s.rtpIn)
	return err
}
