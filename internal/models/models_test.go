package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookingStatus(t *testing.T) {
	t.Run("Terminal", func(t *testing.T) {
		assert.False(t, StatusActive.IsTerminal())
		for _, s := range []BookingStatus{StatusCancelledByUser, StatusCancelledByAdmin, StatusClosedByAdmin, StatusCompleted} {
			assert.True(t, s.IsTerminal(), s)
		}
	})

	t.Run("Parse", func(t *testing.T) {
		s, err := ParseBookingStatus(" cancelled_by_user ")
		require.NoError(t, err)
		assert.Equal(t, StatusCancelledByUser, s)

		_, err = ParseBookingStatus("pending")
		assert.Error(t, err)
	})
}

func TestParseCarStatus(t *testing.T) {
	s, err := ParseCarStatus("under_inspection")
	require.NoError(t, err)
	assert.Equal(t, CarUnderInspection, s)

	_, err = ParseCarStatus("sold")
	assert.Error(t, err)
}

func TestCustomerActor(t *testing.T) {
	admin := &Customer{ID: 1, Email: "boss@example.com", Role: RoleAdmin}
	user := &Customer{ID: 2, Email: "joe@example.com", Role: RoleUser}

	assert.True(t, admin.Actor().IsAdmin())
	assert.False(t, user.Actor().IsAdmin())
	assert.Equal(t, int64(2), user.Actor().CustomerID)
}
