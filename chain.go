package interceptor

// Chain is an interceptor that runs all child interceptors in order. The list of
// children is fixed at construction time; the Chain owns its members and Close
// tears all of them down.
type Chain struct {
	interceptors []Interceptor
}

// NewChain returns a new Chain interceptor.
func NewChain(interceptors []Interceptor) *Chain {
	return &Chain{interceptors: interceptors}
}

// BindRTCPReader lets you modify any incoming RTCP packets. It is called once per sender/receiver, however this might
// change in the future. The returned method will be called once per packet batch.
func (i *Chain) BindRTCPReader(reader RTCPReader) RTCPReader {
	// The first registered interceptor ends up outermost, in every direction, so a
	// generator/responder pair always observes packets in the same relative order
	// as its siblings.
	for x := len(i.interceptors) - 1; x >= 0; x-- {
		reader = i.interceptors[x].BindRTCPReader(reader)
	}

	return reader
}

// BindRTCPWriter lets you modify any outgoing RTCP packets. It is called once per PeerConnection. The returned method
// will be called once per packet batch.
func (i *Chain) BindRTCPWriter(writer RTCPWriter) RTCPWriter {
	for x := len(i.interceptors) - 1; x >= 0; x-- {
		writer = i.interceptors[x].BindRTCPWriter(writer)
	}

	return writer
}

// BindLocalStream lets you modify any outgoing RTP packets. It is called once for per LocalStream. The returned method
// will be called once per rtp packet.
func (i *Chain) BindLocalStream(info *StreamInfo, writer RTPWriter) RTPWriter {
	for x := len(i.interceptors) - 1; x >= 0; x-- {
		writer = i.interceptors[x].BindLocalStream(info, writer)
	}

	return writer
}

// UnbindLocalStream is called when the Stream is removed. It can be used to clean up any data related to that track.
func (i *Chain) UnbindLocalStream(info *StreamInfo) {
	for _, interceptor := range i.interceptors {
		interceptor.UnbindLocalStream(info)
	}
}

// BindRemoteStream lets you modify any incoming RTP packets. It is called once for per RemoteStream. The returned method
// will be called once per rtp packet.
func (i *Chain) BindRemoteStream(info *StreamInfo, reader RTPReader) RTPReader {
	for x := len(i.interceptors) - 1; x >= 0; x-- {
		reader = i.interceptors[x].BindRemoteStream(info, reader)
	}

	return reader
}

// UnbindRemoteStream is called when the Stream is removed. It can be used to clean up any data related to that track.
func (i *Chain) UnbindRemoteStream(info *StreamInfo) {
	for _, interceptor := range i.interceptors {
		interceptor.UnbindRemoteStream(info)
	}
}

// Close closes the Interceptor, cleaning up any data if necessary. Every child is
// closed, even if an earlier one failed, and all failures are returned as one
// aggregate error.
func (i *Chain) Close() error {
	var errs []error
	for _, interceptor := range i.interceptors {
		errs = append(errs, interceptor.Close())
	}

	return flattenErrs(errs)
}
