package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/borrowfi/borrowfi-go/internal/types"
)

func TestLatestNotificationWins(t *testing.T) {
	center := NewCenter()

	center.Success("Borrow successful")
	center.Error("Repay failed")

	current := center.Current()
	require.NotNil(t, current)
	assert.Equal(t, "Repay failed", current.Message)
	assert.Equal(t, types.VariantError, current.Variant)
}

func TestCurrentIsNilBeforeAnyNotification(t *testing.T) {
	assert.Nil(t, NewCenter().Current())
}

func TestExpiryOnlyClearsOwnNotification(t *testing.T) {
	center := NewCenter()

	center.Success("first")
	// Simulate the first notification's timer firing after a second one
	// has replaced it.
	center.Success("second")
	center.expire(1)

	current := center.Current()
	require.NotNil(t, current)
	assert.Equal(t, "second", current.Message)

	// The second's own expiry does clear it.
	center.expire(2)
	assert.Nil(t, center.Current())
}

func TestCurrentReturnsCopy(t *testing.T) {
	center := NewCenter()
	center.Success("immutable")

	got := center.Current()
	require.NotNil(t, got)
	got.Message = "mutated"

	again := center.Current()
	require.NotNil(t, again)
	assert.Equal(t, "immutable", again.Message)
}
