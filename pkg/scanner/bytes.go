package scanner

import "math"

// Line returns the bytes of the line starting at offset, excluding the
// terminating line feed and any carriage return immediately before it.
// next is the offset of the first byte after the line feed.
// ok is false when no line feed exists at or after offset.
func Line(payload []byte, offset int) (line []byte, next int, ok bool) {
	if offset < 0 || offset > len(payload) {
		return nil, offset, false
	}
	for i := offset; i < len(payload); i++ {
		if payload[i] != '\n' {
			continue
		}
		end := i
		if end > offset && payload[end-1] == '\r' {
			end--
		}
		return payload[offset:end], i + 1, true
	}
	return nil, offset, false
}

// IndexByte returns the offset of the first occurrence of b at or after
// offset, or -1.
func IndexByte(payload []byte, offset int, b byte) int {
	if offset < 0 {
		offset = 0
	}
	for i := offset; i < len(payload); i++ {
		if payload[i] == b {
			return i
		}
	}
	return -1
}

// ParseUint parses payload as an unsigned base-10 integer.
// Empty input, any non-digit byte, or a value exceeding uint64 fails.
func ParseUint(payload []byte) (uint64, bool) {
	if len(payload) == 0 {
		return 0, false
	}
	var v uint64
	for i := 0; i < len(payload); i++ {
		if payload[i] < '0' || payload[i] > '9' {
			return 0, false
		}
		d := uint64(payload[i] - '0')
		if v > (math.MaxUint64-d)/10 {
			return 0, false
		}
		v = v*10 + d
	}
	return v, true
}

// LowerASCII returns payload as a string with ASCII upper-case letters
// folded to lower case. It allocates only when folding is needed.
func LowerASCII(payload []byte) string {
	folded := false
	for i := 0; i < len(payload); i++ {
		if payload[i] >= 'A' && payload[i] <= 'Z' {
			folded = true
			break
		}
	}
	if !folded {
		return string(payload)
	}
	out := make([]byte, len(payload))
	for i := 0; i < len(payload); i++ {
		b := payload[i]
		if b >= 'A' && b <= 'Z' {
			b += 'a' - 'A'
		}
		out[i] = b
	}
	return string(out)
}

// IsSpace reports whether b is an ASCII whitespace byte.
func IsSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
