package stomp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandLookup(t *testing.T) {
	for frameType, command := range frameCommands {
		resolved, ok := CommandType(command)
		require.True(t, ok, command)
		assert.Equal(t, frameType, resolved)
	}

	assert.Equal(t, "", FrameHeartbeat.Command())
	assert.Equal(t, "", FrameUnknown.Command())

	_, ok := CommandType("NOPE")
	assert.False(t, ok)
}

func TestHeadersCaseInsensitive(t *testing.T) {
	var h Headers
	h.Set("Content-Length", "5")
	assert.Equal(t, "5", h.Get("content-length"))
	assert.Equal(t, "5", h.Get("CONTENT-LENGTH"))

	h.Set("CONTENT-length", "9")
	assert.Equal(t, 1, h.Len())
	assert.Equal(t, "9", h.Get("content-length"))
}

func TestHeadersOrder(t *testing.T) {
	var h Headers
	h.Set("b", "1")
	h.Set("a", "2")
	h.Set("c", "3")
	h.Set("a", "override") // replaces in place, keeps position

	var keys []string
	h.Each(func(key, _ string) { keys = append(keys, key) })
	assert.Equal(t, []string{"b", "a", "c"}, keys)
	assert.Equal(t, "override", h.Get("a"))
}

func TestNewStompFrame(t *testing.T) {
	f := NewStompFrame("guest", "secret")
	assert.Equal(t, FrameStomp, f.Type)
	assert.Equal(t, "guest", f.Headers.Get(HeaderLogin))
	assert.Equal(t, "secret", f.Headers.Get(HeaderPasscode))
	assert.Equal(t, AcceptVersion, f.Headers.Get(HeaderAcceptVersion))
}

func TestNewSendFrame(t *testing.T) {
	f := NewSendFrame("/queue/q1", "corr-9", []byte("abc"))
	assert.Equal(t, "/queue/q1", f.Headers.Get(HeaderDestination))
	assert.Equal(t, ReplyQueue, f.Headers.Get(HeaderReplyTo))
	assert.Equal(t, "corr-9", f.Headers.Get(HeaderCorrelationID))
	assert.Equal(t, "3", f.Headers.Get(HeaderContentLength))

	f = NewSendFrame("/queue/q1", "", nil)
	_, present := f.Headers.Lookup(HeaderCorrelationID)
	assert.False(t, present, "correlation-id omitted when empty")
	assert.Equal(t, "0", f.Headers.Get(HeaderContentLength))
}

func TestNewSubscribeUnsubscribeFrames(t *testing.T) {
	sub := NewSubscribeFrame("/exchange/ex1/test.#", "sub-3")
	assert.Equal(t, "/exchange/ex1/test.#", sub.Headers.Get(HeaderDestination))
	assert.Equal(t, "sub-3", sub.Headers.Get(HeaderID))

	unsub := NewUnsubscribeFrame("sub-3")
	assert.Equal(t, "sub-3", unsub.Headers.Get(HeaderID))
	assert.Equal(t, 1, unsub.Headers.Len())
}

func TestFrameString(t *testing.T) {
	assert.Equal(t, "HEARTBEAT", Heartbeat.String())
	assert.Equal(t, "<nil>", (*Frame)(nil).String())

	f := NewSendFrame("/queue/q1", "", []byte("abc"))
	assert.Equal(t, "SEND{headers=3, body=3 bytes}", f.String())

	unknown := &Frame{Type: FrameUnknown}
	assert.Contains(t, unknown.String(), "UNKNOWN")
}
