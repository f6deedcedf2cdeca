package push

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoff_GrowsExponentially(t *testing.T) {
	b := NewBackoff(5*time.Second, 60*time.Second)

	expected := []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second, 40 * time.Second}
	for i, full := range expected {
		got := b.Next()
		assert.GreaterOrEqual(t, got, full/2, "attempt %d", i)
		assert.LessOrEqual(t, got, full, "attempt %d", i)
	}
}

func TestBackoff_CapsDelay(t *testing.T) {
	b := NewBackoff(5*time.Second, 60*time.Second)

	for i := 0; i < 20; i++ {
		b.Next()
	}
	got := b.Next()
	assert.GreaterOrEqual(t, got, 30*time.Second)
	assert.LessOrEqual(t, got, 60*time.Second)
}

func TestBackoff_Reset(t *testing.T) {
	b := NewBackoff(5*time.Second, 60*time.Second)
	for i := 0; i < 5; i++ {
		b.Next()
	}

	b.Reset()

	got := b.Next()
	assert.GreaterOrEqual(t, got, 2500*time.Millisecond)
	assert.LessOrEqual(t, got, 5*time.Second)
}

func TestBackoff_DefaultsOnInvalidInput(t *testing.T) {
	b := NewBackoff(0, 0)
	assert.Equal(t, 5*time.Second, b.Base)
	assert.Equal(t, 5*time.Second, b.Cap)

	// Cap below base is lifted to base.
	b = NewBackoff(10*time.Second, time.Second)
	assert.Equal(t, 10*time.Second, b.Cap)
}

func TestBackoff_Jittered(t *testing.T) {
	b := NewBackoff(time.Minute, time.Minute)

	// With a one-second resolution over a 30s window, 50 identical draws
	// would mean the jitter is broken.
	seen := make(map[time.Duration]bool)
	for i := 0; i < 50; i++ {
		seen[b.Next().Truncate(time.Millisecond)] = true
		b.Reset()
	}
	assert.Greater(t, len(seen), 1)
}
