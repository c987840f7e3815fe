package twcc

import (
	"testing"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderExtensionInterceptorSharedCounter(t *testing.T) {
	f, err := NewHeaderExtensionInterceptor()
	require.NoError(t, err)
	i, err := f.NewInterceptor("")
	require.NoError(t, err)
	hei, ok := i.(*HeaderExtensionInterceptor)
	require.True(t, ok)
	defer func() {
		require.NoError(t, hei.Close())
	}()

	var written []*rtp.Header
	base := interceptor.RTPWriterFunc(func(header *rtp.Header, _ []byte, _ interceptor.Attributes) (int, error) {
		written = append(written, header)
		return 0, nil
	})

	ext := []interceptor.RTPHeaderExtension{{URI: transportCCURI, ID: 1}}
	writerA := hei.BindLocalStream(&interceptor.StreamInfo{SSRC: 1, RTPHeaderExtensions: ext}, base)
	writerB := hei.BindLocalStream(&interceptor.StreamInfo{SSRC: 2, RTPHeaderExtensions: ext}, base)

	// the transport-wide counter is shared across streams
	for _, writer := range []interceptor.RTPWriter{writerA, writerB, writerA} {
		_, err = writer.Write(&rtp.Header{}, nil, interceptor.Attributes{})
		require.NoError(t, err)
	}

	require.Len(t, written, 3)
	for n, header := range written {
		payload := header.GetExtension(1)
		require.NotNil(t, payload)

		var tcc rtp.TransportCCExtension
		require.NoError(t, tcc.Unmarshal(payload))
		assert.Equal(t, uint16(n), tcc.TransportSequence)
	}
}

func TestHeaderExtensionInterceptorSentAt(t *testing.T) {
	f, err := NewHeaderExtensionInterceptor()
	require.NoError(t, err)
	i, err := f.NewInterceptor("")
	require.NoError(t, err)
	hei := i.(*HeaderExtensionInterceptor)
	defer func() {
		require.NoError(t, hei.Close())
	}()

	writer := hei.BindLocalStream(&interceptor.StreamInfo{
		SSRC:                1,
		RTPHeaderExtensions: []interceptor.RTPHeaderExtension{{URI: transportCCURI, ID: 1}},
	}, interceptor.RTPWriterFunc(func(*rtp.Header, []byte, interceptor.Attributes) (int, error) {
		return 0, nil
	}))

	before := time.Now()
	_, err = writer.Write(&rtp.Header{}, nil, interceptor.Attributes{})
	require.NoError(t, err)

	at, ok := hei.SentAt(0)
	require.True(t, ok)
	assert.False(t, at.Before(before))

	_, ok = hei.SentAt(1)
	assert.False(t, ok, "never sent")
}

func TestHeaderExtensionInterceptorWithoutNegotiatedExtension(t *testing.T) {
	f, err := NewHeaderExtensionInterceptor()
	require.NoError(t, err)
	i, err := f.NewInterceptor("")
	require.NoError(t, err)
	hei := i.(*HeaderExtensionInterceptor)
	defer func() {
		require.NoError(t, hei.Close())
	}()

	writer := hei.BindLocalStream(&interceptor.StreamInfo{SSRC: 1}, interceptor.RTPWriterFunc(
		func(header *rtp.Header, _ []byte, _ interceptor.Attributes) (int, error) {
			assert.Nil(t, header.GetExtension(1), "packet must pass through unmodified")
			return 0, nil
		}))

	_, err = writer.Write(&rtp.Header{}, nil, interceptor.Attributes{})
	require.NoError(t, err)
}
