package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition_Table(t *testing.T) {
	legal := []struct{ from, to RoomStatus }{
		{StatusAvailable, StatusOccupied},
		{StatusAvailable, StatusBlocked},
		{StatusAvailable, StatusMaintenance},
		{StatusOccupied, StatusDirty},
		{StatusDirty, StatusCleaning},
		{StatusCleaning, StatusInspection},
		{StatusInspection, StatusAvailable},
		{StatusInspection, StatusDirty},
		{StatusBlocked, StatusAvailable},
		{StatusMaintenance, StatusAvailable},
	}
	for _, tc := range legal {
		assert.True(t, CanTransition(tc.from, tc.to), "%s -> %s should be legal", tc.from, tc.to)
	}

	illegal := []struct{ from, to RoomStatus }{
		{StatusCleaning, StatusOccupied},
		{StatusDirty, StatusAvailable},
		{StatusOccupied, StatusAvailable},
		{StatusAvailable, StatusDirty},
		{StatusBlocked, StatusOccupied},
		{StatusMaintenance, StatusDirty},
		{StatusAvailable, StatusAvailable},
	}
	for _, tc := range illegal {
		assert.False(t, CanTransition(tc.from, tc.to), "%s -> %s should be refused", tc.from, tc.to)
	}
}

func TestValidStatus(t *testing.T) {
	for _, s := range []RoomStatus{
		StatusAvailable, StatusOccupied, StatusDirty, StatusCleaning,
		StatusInspection, StatusBlocked, StatusMaintenance,
	} {
		assert.True(t, ValidStatus(s))
	}
	assert.False(t, ValidStatus("demolished"))
}
