package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTTLStoreExpires(t *testing.T) {
	now := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	store := newTTLStore[string](time.Minute)
	store.now = func() time.Time { return now }

	store.Save("a", "proposal")
	v, ok := store.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "proposal", v)

	now = now.Add(2 * time.Minute)
	_, ok = store.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, store.Len())
}
