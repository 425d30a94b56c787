package scheduling

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeSlotRoundTrip(t *testing.T) {
	canonical := "2025-10-01T10:00-04:00"
	assert.Equal(t, canonical, NormalizeSlot(canonical))
}

func TestNormalizeSlotBareLocalInput(t *testing.T) {
	assert.Equal(t, "2025-10-01T10:00-04:00", NormalizeSlot("2025-10-01T10:00"))
	assert.Equal(t, "2025-10-01T10:00-04:00", NormalizeSlot("2025-10-01 10:00"))
}

func TestNormalizeSlotTrailingZ(t *testing.T) {
	assert.Equal(t, "2025-10-01T10:00-04:00", NormalizeSlot("2025-10-01T14:00Z"))
	assert.Equal(t, "2025-10-01T10:00-04:00", NormalizeSlot("2025-10-01T14:00:00Z"))
}

func TestNormalizeSlotExplicitOffset(t *testing.T) {
	assert.Equal(t, "2025-10-01T06:00-04:00", NormalizeSlot("2025-10-01T10:00+00:00"))
	assert.Equal(t, "2025-10-01T10:00-04:00", NormalizeSlot("2025-10-01T10:00-04:00"))
}

func TestNormalizeSlotTruncatesSeconds(t *testing.T) {
	assert.Equal(t, "2025-10-01T10:00-04:00", NormalizeSlot("2025-10-01T10:00:45"))
}

func TestNormalizeSlotMidnightBecomesOpening(t *testing.T) {
	// Midnight means "no time specified" and maps to the 09:00 opening.
	assert.Equal(t, "2025-10-01T09:00-04:00", NormalizeSlot("2025-10-01T00:00"))
	assert.Equal(t, "2025-10-01T09:00-04:00", NormalizeSlot("2025-10-01"))
}

func TestNormalizeSlotUnparsable(t *testing.T) {
	assert.Equal(t, "next tuesday morning", NormalizeSlot("  next tuesday morning "))
	assert.Equal(t, "", NormalizeSlot("   "))
	assert.Equal(t, "", NormalizeSlot(""))
}

func TestParseSlotKey(t *testing.T) {
	parsed, err := ParseSlotKey("2025-10-01T10:00-04:00")
	assert.NoError(t, err)
	assert.Equal(t, 10, parsed.Hour())
	assert.Equal(t, "2025-10-01T10:00-04:00", parsed.Format(SlotFormat))
}
