package middleware

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryDeduperMarksDuplicates(t *testing.T) {
	d := newMemoryCallbackDeduper(time.Minute)

	dup, err := d.Seen(context.Background(), "ref-1:success")
	require.NoError(t, err)
	assert.False(t, dup)

	dup, err = d.Seen(context.Background(), "ref-1:success")
	require.NoError(t, err)
	assert.True(t, dup)

	// Same ref, different terminal status is a distinct delivery.
	dup, err = d.Seen(context.Background(), "ref-1:cancelled")
	require.NoError(t, err)
	assert.False(t, dup)
}

func TestMemoryDeduperExpires(t *testing.T) {
	d := newMemoryCallbackDeduper(10 * time.Millisecond)

	dup, _ := d.Seen(context.Background(), "ref-2:success")
	assert.False(t, dup)

	time.Sleep(20 * time.Millisecond)

	dup, _ = d.Seen(context.Background(), "ref-2:success")
	assert.False(t, dup)
}

func TestNewCallbackDeduperEmptyAddrUsesMemory(t *testing.T) {
	d, err := NewCallbackDeduper("", "", 0, time.Minute)
	require.NoError(t, err)
	require.NotNil(t, d)

	_, ok := d.(*memoryCallbackDeduper)
	assert.True(t, ok)
}
