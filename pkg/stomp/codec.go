package stomp

import (
	"main/pkg/exception"
	"main/pkg/scanner"

	"github.com/yanun0323/errors"
)

// Encode serializes a frame to one transport message:
//
//	COMMAND\n(key:value\n)*\n[body]\x00
//
// A heartbeat frame encodes to a single line feed with no terminator.
// Header values are written verbatim; the protocol's escape sequences
// are deliberately not implemented, matching the server pairing this
// client is built for.
func Encode(f *Frame) []byte {
	if f == nil || f.Type == FrameHeartbeat {
		return []byte{'\n'}
	}

	size := len(f.Type.Command()) + 2 + len(f.Body) + 1
	f.Headers.Each(func(key, value string) {
		size += len(key) + len(value) + 2
	})

	out := make([]byte, 0, size)
	out = append(out, f.Type.Command()...)
	out = append(out, '\n')
	f.Headers.Each(func(key, value string) {
		out = append(out, key...)
		out = append(out, ':')
		out = append(out, value...)
		out = append(out, '\n')
	})
	out = append(out, '\n')
	out = append(out, f.Body...)
	out = append(out, 0x00)
	return out
}

// Decode parses one transport message into a frame.
//
// An empty message, a message starting with a line feed, or one starting
// with a carriage-return/line-feed pair is the heartbeat singleton. A
// carriage return not followed by a line feed is malformed.
//
// Header lines split on the first colon only; keys fold to lower case
// and a duplicate key keeps the last value. When content-length is
// present it is authoritative and the body is read binary-safe;
// otherwise the body runs up to the first NUL byte, which is not
// binary-safe.
func Decode(payload []byte) (*Frame, error) {
	if len(payload) == 0 || payload[0] == '\n' {
		return Heartbeat, nil
	}
	if payload[0] == '\r' {
		if len(payload) >= 2 && payload[1] == '\n' {
			return Heartbeat, nil
		}
		return nil, errors.Wrap(exception.ErrDecode, "carriage return without line feed")
	}

	line, offset, ok := scanner.Line(payload, 0)
	if !ok {
		return nil, errors.Wrap(exception.ErrDecode, "missing command line terminator")
	}
	frameType, known := CommandType(string(line))
	if !known {
		return nil, errors.Wrap(exception.ErrDecode, "unknown command").With("command", string(line))
	}

	f := &Frame{Type: frameType}
	for {
		line, offset, ok = scanner.Line(payload, offset)
		if !ok {
			return nil, errors.Wrap(exception.ErrDecode, "unterminated header block")
		}
		if len(line) == 0 {
			break
		}
		colon := scanner.IndexByte(line, 0, ':')
		if colon <= 0 {
			return nil, errors.Wrap(exception.ErrDecode, "malformed header line").With("line", string(line))
		}
		f.Headers.Set(scanner.LowerASCII(line[:colon]), string(line[colon+1:]))
	}

	body, err := decodeBody(f, payload[offset:])
	if err != nil {
		return nil, err
	}
	f.Body = body
	return f, nil
}

func decodeBody(f *Frame, rest []byte) ([]byte, error) {
	if raw, present := f.Headers.Lookup(HeaderContentLength); present {
		length, ok := scanner.ParseUint([]byte(raw))
		if !ok {
			return nil, errors.Wrap(exception.ErrDecode, "invalid content-length").With("value", raw)
		}
		if length > uint64(len(rest)) {
			return nil, errors.Wrap(exception.ErrDecode, "content-length exceeds message")
		}
		if length == 0 {
			return nil, nil
		}
		return rest[:length], nil
	}

	// Legacy text framing: the body ends at the first NUL. Bodies that
	// themselves contain NUL require content-length.
	if end := scanner.IndexByte(rest, 0, 0x00); end >= 0 {
		rest = rest[:end]
	}
	if len(rest) == 0 {
		return nil, nil
	}
	return rest, nil
}
