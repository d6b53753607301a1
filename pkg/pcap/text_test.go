package pcap

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingReader struct {
	data string
	done bool
}

func (f *failingReader) Read(p []byte) (int, error) {
	if f.done {
		return 0, errors.New("device gone")
	}
	f.done = true
	return copy(p, f.data), nil
}

func TestLines(t *testing.T) {
	var got []string
	for line, err := range Lines(strings.NewReader("a\r\nb\n\nc")) {
		require.NoError(t, err)
		got = append(got, line)
	}
	assert.Equal(t, []string{"a", "b", "", "c"}, got)
}

func TestLines_Error(t *testing.T) {
	var got []string
	var gotErr error
	for line, err := range Lines(&failingReader{data: "first\nsecond\n"}) {
		if err != nil {
			gotErr = err
			break
		}
		got = append(got, line)
	}
	assert.Equal(t, []string{"first", "second"}, got)
	assert.EqualError(t, gotErr, "device gone")
}

func TestLines_Empty(t *testing.T) {
	for range Lines(io.MultiReader()) {
		t.Fatal("no lines expected")
	}
}

func TestLines_OversizedLineSkipped(t *testing.T) {
	long := strings.Repeat("x", 2*maxLineSize)
	input := "first\n" + long + "\nlast\n" + long
	var got []string
	for line, err := range Lines(strings.NewReader(input)) {
		require.NoError(t, err)
		got = append(got, line)
	}
	assert.Equal(t, []string{"first", "", "last", ""}, got)
}

func TestLines_MaxSizeLineKept(t *testing.T) {
	exact := strings.Repeat("y", maxLineSize)
	var got []string
	for line, err := range Lines(strings.NewReader(exact + "\r\nz")) {
		require.NoError(t, err)
		got = append(got, line)
	}
	require.Len(t, got, 2)
	assert.Len(t, got[0], maxLineSize)
	assert.Equal(t, "z", got[1])
}
