package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFixedReturnsInstant(t *testing.T) {
	instant := time.Date(2025, 9, 28, 10, 0, 0, 0, time.FixedZone("UTC-4", -4*60*60))
	c := NewFixed(instant)

	assert.True(t, c.Now().Equal(instant))
	assert.True(t, c.Now().Equal(c.Now()))
}

func TestSystemAdvances(t *testing.T) {
	c := System{}
	before := time.Now().Add(-time.Second)
	assert.True(t, c.Now().After(before))
}
