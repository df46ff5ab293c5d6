package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLine(t *testing.T) {
	payload := []byte("first\nsecond\r\n\nrest")

	line, next, ok := Line(payload, 0)
	require.True(t, ok)
	assert.Equal(t, "first", string(line))

	line, next, ok = Line(payload, next)
	require.True(t, ok)
	assert.Equal(t, "second", string(line), "carriage return is stripped")

	line, next, ok = Line(payload, next)
	require.True(t, ok)
	assert.Empty(t, line, "blank separator line")

	_, _, ok = Line(payload, next)
	assert.False(t, ok, "trailing bytes without a line feed")
}

func TestLineOffsetBounds(t *testing.T) {
	payload := []byte("a\n")

	_, _, ok := Line(payload, -1)
	assert.False(t, ok)
	_, _, ok = Line(payload, len(payload)+1)
	assert.False(t, ok)
	_, _, ok = Line(payload, len(payload))
	assert.False(t, ok)
	_, _, ok = Line(nil, 0)
	assert.False(t, ok)
}

func TestLineCarriageReturnBeforeOffset(t *testing.T) {
	// The carriage return belongs to the previous line; a line starting
	// right at the line feed is empty.
	line, _, ok := Line([]byte("\r\n"), 1)
	require.True(t, ok)
	assert.Empty(t, line)
}

func TestIndexByte(t *testing.T) {
	payload := []byte("key:value:more")

	assert.Equal(t, 3, IndexByte(payload, 0, ':'))
	assert.Equal(t, 9, IndexByte(payload, 4, ':'))
	assert.Equal(t, -1, IndexByte(payload, 10, ':'))
	assert.Equal(t, 3, IndexByte(payload, -5, ':'), "negative offset clamps to zero")
	assert.Equal(t, -1, IndexByte(nil, 0, ':'))
}

func TestParseUint(t *testing.T) {
	tests := []struct {
		in   string
		want uint64
		ok   bool
	}{
		{"0", 0, true},
		{"42", 42, true},
		{"0042", 42, true},
		{"18446744", 18446744, true},
		{"18446744073709551615", 18446744073709551615, true},
		{"18446744073709551616", 0, false},
		{"18446744073709551618", 0, false},
		{"99999999999999999999999", 0, false},
		{"", 0, false},
		{"-1", 0, false},
		{"1.5", 0, false},
		{"abc", 0, false},
		{"1 2", 0, false},
		{"+7", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseUint([]byte(tt.in))
		assert.Equal(t, tt.ok, ok, "input %q", tt.in)
		if tt.ok {
			assert.Equal(t, tt.want, got, "input %q", tt.in)
		}
	}
}

func TestLowerASCII(t *testing.T) {
	assert.Equal(t, "content-length", LowerASCII([]byte("Content-Length")))
	assert.Equal(t, "already lower", LowerASCII([]byte("already lower")))
	assert.Equal(t, "", LowerASCII(nil))
	assert.Equal(t, "héllo", LowerASCII([]byte("Héllo")), "non-ASCII bytes pass through")
}

func TestIsSpace(t *testing.T) {
	for _, b := range []byte{' ', '\t', '\n', '\r'} {
		assert.True(t, IsSpace(b))
	}
	for _, b := range []byte{'a', '0', ':', 0x00} {
		assert.False(t, IsSpace(b))
	}
}
