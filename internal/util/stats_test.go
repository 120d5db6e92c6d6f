package util

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatBytes(t *testing.T) {
	testCases := []struct {
		in   float64
		want string
	}{
		{0, " 0.0   B"},
		{99, "99.0   B"},
		{1536, " 1.5 KiB"},
		{100 * 1024, " 0.1 MiB"},
	}

	for _, tc := range testCases {
		got := formatBytes(tc.in)
		assert.Equal(t, tc.want, got)
		assert.Len(t, got, 8)
	}
}

func TestFormatStats(t *testing.T) {
	got := formatStats(0, 1536, 2.5, 1, 0)
	assert.Equal(t, "In:  0.0   B/s | Out:  1.5 KiB/s | Relay:    2.5 pkt/s | Conn:  1↑  0↓", got)
}

func TestParseLevel(t *testing.T) {
	for _, name := range []string{"trace", "debug", "info", "", "WARN", "error", "off"} {
		_, err := ParseLevel(name)
		assert.NoError(t, err, name)
	}
	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestSocketIDFromConnStable(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	assert.Equal(t, SocketIDFromConn(a), SocketIDFromConn(a))
}
