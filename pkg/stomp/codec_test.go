package stomp

import (
	"errors"
	"testing"

	"main/pkg/exception"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeLayout(t *testing.T) {
	f := NewSubscribeFrame("/exchange/ex1/test.#", "sub-1")
	require.Equal(t, "SUBSCRIBE\ndestination:/exchange/ex1/test.#\nid:sub-1\n\n\x00", string(Encode(f)))
}

func TestEncodeHeartbeat(t *testing.T) {
	require.Equal(t, []byte{'\n'}, Encode(Heartbeat))
	require.Equal(t, []byte{'\n'}, Encode(nil))
}

func TestEncodeBody(t *testing.T) {
	f := NewSendFrame("/queue/q1", "", []byte("hello"))
	raw := Encode(f)
	require.Equal(t,
		"SEND\ndestination:/queue/q1\nreply-to:/temp-queue/rpc-replies\ncontent-length:5\n\nhello\x00",
		string(raw))
}

func TestRoundTrip(t *testing.T) {
	body := []byte{'a', 'b', 0x00, 'c', 'd'} // embedded NUL survives via content-length
	f := NewSendFrame("/queue/q1", "corr-1", body)

	decoded, err := Decode(Encode(f))
	require.NoError(t, err)
	assert.Equal(t, FrameSend, decoded.Type)
	assert.Equal(t, body, decoded.Body)
	assert.Equal(t, f.Headers.Len(), decoded.Headers.Len())
	f.Headers.Each(func(key, value string) {
		assert.Equal(t, value, decoded.Headers.Get(key))
	})
}

func TestDecodeHeartbeat(t *testing.T) {
	for _, raw := range [][]byte{nil, {}, []byte("\n"), []byte("\r\n"), []byte("\nANYTHING")} {
		f, err := Decode(raw)
		require.NoError(t, err)
		assert.Same(t, Heartbeat, f)
	}
}

func TestDecodeBareCarriageReturn(t *testing.T) {
	_, err := Decode([]byte("\r"))
	require.ErrorIs(t, err, exception.ErrDecode)

	_, err = Decode([]byte("\rMESSAGE"))
	require.ErrorIs(t, err, exception.ErrDecode)
}

func TestDecodeHeaderSplitsOnFirstColon(t *testing.T) {
	f, err := Decode([]byte("MESSAGE\nX-Foo:bar:baz\n\n\x00"))
	require.NoError(t, err)
	assert.Equal(t, "bar:baz", f.Headers.Get("x-foo"))
}

func TestDecodeMalformedHeader(t *testing.T) {
	_, err := Decode([]byte("MESSAGE\n:value\n\n\x00"))
	require.ErrorIs(t, err, exception.ErrDecode)

	_, err = Decode([]byte("MESSAGE\nno-colon-here\n\n\x00"))
	require.ErrorIs(t, err, exception.ErrDecode)
}

func TestDecodeUnknownCommand(t *testing.T) {
	_, err := Decode([]byte("BOGUS\n\n\x00"))
	require.ErrorIs(t, err, exception.ErrDecode)
}

func TestDecodeUnterminatedHeaderBlock(t *testing.T) {
	_, err := Decode([]byte("MESSAGE\nfoo:bar"))
	require.ErrorIs(t, err, exception.ErrDecode)
}

func TestDecodeContentLengthPrecedence(t *testing.T) {
	// Same payload bytes, with and without content-length.
	withHeader := []byte("MESSAGE\ncontent-length:5\n\nab\x00cd\x00")
	withoutHeader := []byte("MESSAGE\n\nab\x00cd\x00")

	f, err := Decode(withHeader)
	require.NoError(t, err)
	assert.Equal(t, []byte("ab\x00cd"), f.Body, "content-length body is binary safe")

	f, err = Decode(withoutHeader)
	require.NoError(t, err)
	assert.Equal(t, []byte("ab"), f.Body, "fallback body truncates at the first NUL")
}

func TestDecodeContentLengthZero(t *testing.T) {
	f, err := Decode([]byte("MESSAGE\ncontent-length:0\n\n\x00"))
	require.NoError(t, err)
	assert.Nil(t, f.Body)
}

func TestDecodeInvalidContentLength(t *testing.T) {
	for _, value := range []string{"abc", "-1", "1.5", ""} {
		_, err := Decode([]byte("MESSAGE\ncontent-length:" + value + "\n\nx\x00"))
		require.ErrorIs(t, err, exception.ErrDecode, "content-length %q", value)
	}
}

func TestDecodeOverflowingContentLength(t *testing.T) {
	// 2^64+2 must not wrap to 2 and silently truncate the body.
	_, err := Decode([]byte("MESSAGE\ncontent-length:18446744073709551618\n\nabcdef\x00"))
	require.ErrorIs(t, err, exception.ErrDecode)
}

func TestDecodeContentLengthBeyondMessage(t *testing.T) {
	_, err := Decode([]byte("MESSAGE\ncontent-length:99\n\nshort\x00"))
	require.ErrorIs(t, err, exception.ErrDecode)
}

func TestDecodeCRLFLines(t *testing.T) {
	f, err := Decode([]byte("MESSAGE\r\nfoo:bar\r\n\r\nbody\x00"))
	require.NoError(t, err)
	assert.Equal(t, FrameMessage, f.Type)
	assert.Equal(t, "bar", f.Headers.Get("foo"))
	assert.Equal(t, []byte("body"), f.Body)
}

func TestDecodeDuplicateHeaderKeepsLast(t *testing.T) {
	f, err := Decode([]byte("MESSAGE\nfoo:1\nFOO:2\n\n\x00"))
	require.NoError(t, err)
	assert.Equal(t, 1, f.Headers.Len())
	assert.Equal(t, "2", f.Headers.Get("foo"))
}

func TestDecodeErrorsWrapSentinel(t *testing.T) {
	_, err := Decode([]byte("BOGUS\n\n\x00"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrDecode))
	assert.False(t, errors.Is(err, exception.ErrProtocol))
}
