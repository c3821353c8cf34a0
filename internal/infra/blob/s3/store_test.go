package s3

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interdiag/internal/blob/core"
)

func TestBreakerOpensOnOutage(t *testing.T) {
	store, mock := NewMockForTests()
	ctx := context.Background()
	mock.SetFailing(true)
	for i := 0; i < breakerMinRequests; i++ {
		_, err := store.Head(ctx, "runs/x")
		require.Error(t, err)
		assert.False(t, errors.Is(err, core.ErrNotFound))
	}
	calls := mock.Calls()

	_, err := store.Head(ctx, "runs/x")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, calls, mock.Calls(), "open breaker must not reach the endpoint")
}

func TestMissingKeysDoNotTripBreaker(t *testing.T) {
	store, _ := NewMockForTests()
	ctx := context.Background()
	for i := 0; i < 2*breakerMinRequests; i++ {
		_, err := store.Head(ctx, "runs/missing")
		require.ErrorIs(t, err, core.ErrNotFound)
	}
	_, err := store.Put(ctx, "runs/ok", bytes.NewReader([]byte("v")), core.PutOptions{})
	require.NoError(t, err)
}

func TestDecodeAWSChunked(t *testing.T) {
	in := []byte("5;chunk-signature=abc\r\nhello\r\n3\r\n\r\nx\r\n0\r\nx-amz-checksum-crc32:AAAA\r\n\r\n")
	out, ok := decodeAWSChunked(in)
	require.True(t, ok)
	assert.Equal(t, "hello\r\nx", string(out))

	_, ok = decodeAWSChunked([]byte("zz\r\nhello"))
	assert.False(t, ok)
	_, ok = decodeAWSChunked([]byte("9\r\nshort\r\n"))
	assert.False(t, ok)
}

func TestNewRequiresBucket(t *testing.T) {
	_, err := New(context.Background(), Config{})
	require.Error(t, err)
}
