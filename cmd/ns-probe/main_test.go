package main

import (
	"context"
	"errors"
	"strings"
	"testing"

	"Go2TraceSpectra/internal/core/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memSink struct {
	lines []string
	fail  string
}

func (m *memSink) Publish(line string) error {
	if line == m.fail {
		return errors.New("nats: connection closed")
	}
	m.lines = append(m.lines, line)
	return nil
}

type brokenReader struct{}

func (brokenReader) Read(p []byte) (int, error) { return 0, errors.New("pipe closed") }

func TestPublishLines(t *testing.T) {
	sink := &memSink{fail: "bad"}
	n, err := publishLines(context.Background(), strings.NewReader("a\n\nbad\nb\n"), sink)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"a", "b"}, sink.lines)
}

func TestPublishLines_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sink := &memSink{}
	n, err := publishLines(ctx, strings.NewReader("a\nb\n"), sink)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPublishLines_ReadError(t *testing.T) {
	_, err := publishLines(context.Background(), brokenReader{}, &memSink{})
	assert.ErrorIs(t, err, model.ErrUpstreamRead)
}
