package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoginThrottle(t *testing.T) {
	now := time.Now()
	withClock(t, &now)

	th := NewLoginThrottle(1, 2)
	assert.True(t, th.Allow("10.0.0.1"))
	assert.True(t, th.Allow("10.0.0.1"))
	assert.False(t, th.Allow("10.0.0.1"))
	assert.True(t, th.Allow("10.0.0.2"), "keys are independent")

	now = now.Add(time.Second)
	assert.True(t, th.Allow("10.0.0.1"), "refills over time")
}

func TestLoginThrottle_PrunesIdleEntries(t *testing.T) {
	now := time.Now()
	withClock(t, &now)

	th := NewLoginThrottle(1, 1)
	th.Allow("a")
	th.Allow("b")
	assert.Len(t, th.entries, 2)

	now = now.Add(time.Hour)
	th.Allow("c")
	assert.Len(t, th.entries, 1)
}

func TestLoginThrottle_Disabled(t *testing.T) {
	var th *LoginThrottle = NewLoginThrottle(0, 10)
	assert.Nil(t, th)
	for i := 0; i < 100; i++ {
		assert.True(t, th.Allow("x"))
	}
}
