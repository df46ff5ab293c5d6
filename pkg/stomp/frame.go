package stomp

import (
	"fmt"
	"strconv"
)

// FrameType identifies a STOMP frame command.
type FrameType uint8

const (
	// FrameUnknown marks a command the codec could not recognize.
	FrameUnknown FrameType = iota
	// FrameHeartbeat is the synthetic type for a bare line-feed message.
	// It never appears on the wire as a command.
	FrameHeartbeat

	// server-origin frames
	FrameConnected
	FrameMessage
	FrameReceipt
	FrameError

	// client-origin frames
	FrameStomp
	FrameSend
	FrameSubscribe
	FrameUnsubscribe
	FrameAck
	FrameNack
	FrameBegin
	FrameCommit
	FrameAbort
	FrameDisconnect
)

var frameCommands = map[FrameType]string{
	FrameConnected:   "CONNECTED",
	FrameMessage:     "MESSAGE",
	FrameReceipt:     "RECEIPT",
	FrameError:       "ERROR",
	FrameStomp:       "STOMP",
	FrameSend:        "SEND",
	FrameSubscribe:   "SUBSCRIBE",
	FrameUnsubscribe: "UNSUBSCRIBE",
	FrameAck:         "ACK",
	FrameNack:        "NACK",
	FrameBegin:       "BEGIN",
	FrameCommit:      "COMMIT",
	FrameAbort:       "ABORT",
	FrameDisconnect:  "DISCONNECT",
}

var commandFrames = func() map[string]FrameType {
	m := make(map[string]FrameType, len(frameCommands))
	for t, cmd := range frameCommands {
		m[cmd] = t
	}
	return m
}()

// Command returns the wire command for the frame type.
// Heartbeat and unknown types have no command and return "".
func (t FrameType) Command() string {
	return frameCommands[t]
}

// CommandType resolves a wire command to its frame type.
func CommandType(command string) (FrameType, bool) {
	t, ok := commandFrames[command]
	return t, ok
}

// Well-known header names and values.
const (
	HeaderDestination   = "destination"
	HeaderSubscription  = "subscription"
	HeaderID            = "id"
	HeaderLogin         = "login"
	HeaderPasscode      = "passcode"
	HeaderAcceptVersion = "accept-version"
	HeaderHeartBeat     = "heart-beat"
	HeaderReplyTo       = "reply-to"
	HeaderCorrelationID = "correlation-id"
	HeaderContentLength = "content-length"

	// AcceptVersion is the only protocol version this client speaks.
	AcceptVersion = "1.2"

	// ReplyQueue is the well-known temporary queue carried in every SEND
	// frame's reply-to header. Inbound MESSAGE frames whose subscription
	// header equals this name are handed to the connection's general
	// message handler instead of a named subscription.
	ReplyQueue = "/temp-queue/rpc-replies"
)

type header struct {
	key   string
	value string
}

// Headers is an ordered string mapping with case-insensitive keys.
// Keys are folded to lower case on insert; setting an existing key
// replaces its value in place, so encode order equals insertion order.
type Headers struct {
	kv []header
}

// Set inserts or replaces a header value.
func (h *Headers) Set(key, value string) {
	key = lowerKey(key)
	for i := range h.kv {
		if h.kv[i].key == key {
			h.kv[i].value = value
			return
		}
	}
	h.kv = append(h.kv, header{key: key, value: value})
}

// Get returns the value for key, or "" when absent.
func (h *Headers) Get(key string) string {
	v, _ := h.Lookup(key)
	return v
}

// Lookup returns the value for key and whether it is present.
func (h *Headers) Lookup(key string) (string, bool) {
	key = lowerKey(key)
	for i := range h.kv {
		if h.kv[i].key == key {
			return h.kv[i].value, true
		}
	}
	return "", false
}

// Len returns the number of headers.
func (h *Headers) Len() int {
	return len(h.kv)
}

// Each calls fn for every header in insertion order.
func (h *Headers) Each(fn func(key, value string)) {
	for i := range h.kv {
		fn(h.kv[i].key, h.kv[i].value)
	}
}

func lowerKey(key string) string {
	folded := false
	for i := 0; i < len(key); i++ {
		if key[i] >= 'A' && key[i] <= 'Z' {
			folded = true
			break
		}
	}
	if !folded {
		return key
	}
	out := make([]byte, len(key))
	for i := 0; i < len(key); i++ {
		b := key[i]
		if b >= 'A' && b <= 'Z' {
			b += 'a' - 'A'
		}
		out[i] = b
	}
	return string(out)
}

// Frame is one protocol message: command, ordered headers and an
// optional raw body. Frames handed to callbacks must be treated as
// immutable and must not be retained past the callback.
type Frame struct {
	Type    FrameType
	Headers Headers
	Body    []byte
}

// Heartbeat is the singleton returned by Decode for liveness messages.
var Heartbeat = &Frame{Type: FrameHeartbeat}

// String renders a short diagnostic form, never the full body.
func (f *Frame) String() string {
	if f == nil {
		return "<nil>"
	}
	if f.Type == FrameHeartbeat {
		return "HEARTBEAT"
	}
	cmd := f.Type.Command()
	if cmd == "" {
		cmd = "UNKNOWN"
	}
	return fmt.Sprintf("%s{headers=%d, body=%d bytes}", cmd, f.Headers.Len(), len(f.Body))
}

// NewStompFrame builds the handshake frame sent right after the
// transport opens.
func NewStompFrame(login, passcode string) *Frame {
	f := &Frame{Type: FrameStomp}
	f.Headers.Set(HeaderLogin, login)
	f.Headers.Set(HeaderPasscode, passcode)
	f.Headers.Set(HeaderAcceptVersion, AcceptVersion)
	return f
}

// NewSendFrame builds a SEND frame. reply-to always points at the
// well-known reply queue and content-length always matches the body.
// correlationID is optional and omitted when empty.
func NewSendFrame(destination, correlationID string, body []byte) *Frame {
	f := &Frame{Type: FrameSend, Body: body}
	f.Headers.Set(HeaderDestination, destination)
	f.Headers.Set(HeaderReplyTo, ReplyQueue)
	if correlationID != "" {
		f.Headers.Set(HeaderCorrelationID, correlationID)
	}
	f.Headers.Set(HeaderContentLength, strconv.Itoa(len(body)))
	return f
}

// NewSubscribeFrame builds a SUBSCRIBE frame for a destination with the
// connection-unique subscription id.
func NewSubscribeFrame(destination, id string) *Frame {
	f := &Frame{Type: FrameSubscribe}
	f.Headers.Set(HeaderDestination, destination)
	f.Headers.Set(HeaderID, id)
	return f
}

// NewUnsubscribeFrame builds an UNSUBSCRIBE frame for a subscription id.
func NewUnsubscribeFrame(id string) *Frame {
	f := &Frame{Type: FrameUnsubscribe}
	f.Headers.Set(HeaderID, id)
	return f
}
