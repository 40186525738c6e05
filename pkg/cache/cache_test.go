package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_SetGet(t *testing.T) {
	h, err := New(nil)
	require.NoError(t, err)

	_, ok := h.Get("missing")
	assert.False(t, ok)

	h.Set("k", 42)
	v, ok := h.Get("k")
	require.True(t, ok)
	assert.Equal(t, 42, v)
	assert.Equal(t, 1, h.ItemCount())

	h.Flush()
	assert.Equal(t, 0, h.ItemCount())

	ok, err = h.Ping()
	assert.True(t, ok)
	assert.NoError(t, err)
}

func TestHandler_Expiry(t *testing.T) {
	h, err := New(&Options{TTL: 10 * time.Millisecond, CleanupInterval: time.Minute})
	require.NoError(t, err)

	h.Set("k", "v")
	time.Sleep(30 * time.Millisecond)
	_, ok := h.Get("k")
	assert.False(t, ok)
}

func TestKey(t *testing.T) {
	assert.Equal(t, Key("naive", "line"), Key("naive", "line"))
	assert.NotEqual(t, Key("naive", "line"), Key("utc", "line"))
	assert.NotEqual(t, Key("naive", "line"), Key("naive", "other line"))
}
