package interceptor

// RTPHeaderExtension represents a negotiated RFC5285 RTP header extension.
type RTPHeaderExtension struct {
	URI string
	ID  int
}

// RTCPFeedback signals the connection to use additional RTCP packet types.
// https://draft.ortc.org/#dom-rtcrtcpfeedback
type RTCPFeedback struct {
	// Type is the type of feedback.
	// see: https://draft.ortc.org/#dom-rtcrtcpfeedback
	Type string

	// The parameter value depends on the type.
	// For example, type="nack" parameter="pli" will send Picture Loss Indicator packets.
	Parameter string
}

// StreamInfo is the Context passed when a StreamLocal or StreamRemote has been Binded or Unbinded.
//
// A StreamInfo is constructed once, when the stream is bound, and is read-only afterwards.
// It is shared by pointer between all interceptors bound to the stream. The SSRC must be
// unique within the session for the duration of the binding; binding a second stream with
// the same SSRC before unbinding the first violates the contract and interceptors will log
// ErrDupStreamBind.
type StreamInfo struct {
	ID                  string
	Attributes          Attributes
	SSRC                uint32
	PayloadType         uint8
	RTPHeaderExtensions []RTPHeaderExtension
	MimeType            string
	ClockRate           uint32
	Channels            uint16
	SDPFmtpLine         string
	RTCPFeedback        []RTCPFeedback
}
