package transport

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLineReader_SplitsOnDelimiter(t *testing.T) {
	r := NewLineReader(strings.NewReader("OK\r\nERR 12\r\n"), '\n', nil)

	line, err := r.ReadLine()
	require.NoError(t, err)
	require.Equal(t, "OK\r", line)

	line, err = r.ReadLine()
	require.NoError(t, err)
	require.Equal(t, "ERR 12\r", line)
}

func TestLineReader_NonDelimitedShortcut(t *testing.T) {
	r := NewLineReader(strings.NewReader("READY"), '\n', []string{"READY"})

	line, err := r.ReadLine()
	require.NoError(t, err)
	require.Equal(t, "READY", line)
}

func TestDial_RejectsUnrecognizedAddress(t *testing.T) {
	_, err := Dial("not-an-address", 0)
	require.ErrorIs(t, err, ErrUnrecognizedAddress)
}
