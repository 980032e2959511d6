// Package domain contains the physical room model and its housekeeping
// state machine.
package domain

import (
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// RoomStatus is the housekeeping state of a physical room. A room is in
// exactly one state at a time.
type RoomStatus string

const (
	StatusAvailable   RoomStatus = "available"
	StatusOccupied    RoomStatus = "occupied"
	StatusDirty       RoomStatus = "dirty"
	StatusCleaning    RoomStatus = "cleaning"
	StatusInspection  RoomStatus = "inspection"
	StatusBlocked     RoomStatus = "blocked"
	StatusMaintenance RoomStatus = "maintenance"
)

// transitions is the only set of legal edges.
var transitions = map[RoomStatus][]RoomStatus{
	StatusAvailable:   {StatusOccupied, StatusBlocked, StatusMaintenance},
	StatusOccupied:    {StatusDirty},
	StatusDirty:       {StatusCleaning},
	StatusCleaning:    {StatusInspection},
	StatusInspection:  {StatusAvailable, StatusDirty},
	StatusBlocked:     {StatusAvailable},
	StatusMaintenance: {StatusAvailable},
}

// CanTransition reports whether the edge from→to is legal.
func CanTransition(from, to RoomStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// ValidStatus reports whether the value names a known state.
func ValidStatus(s RoomStatus) bool {
	_, ok := transitions[s]
	return ok
}

// Room is one physical room. RoomTypeID is its primary sellable category;
// ExtraTypes holds further category ids the room can fulfill, as a JSON
// array of snowflake strings.
type Room struct {
	ID         snowflake.ID   `gorm:"primaryKey" json:"id"`
	TenantID   snowflake.ID   `gorm:"not null;index" json:"tenant_id"`
	PropertyID snowflake.ID   `gorm:"not null;index" json:"property_id"`
	RoomTypeID snowflake.ID   `gorm:"not null;index" json:"room_type_id"`
	ExtraTypes datatypes.JSON `gorm:"type:jsonb" json:"extra_types,omitempty"`
	Number     string         `gorm:"type:text;not null" json:"number"`
	Floor      string         `gorm:"type:text" json:"floor"`
	Status     RoomStatus     `gorm:"type:text;not null;default:'available'" json:"status"`
	StatusNote string         `gorm:"type:text" json:"status_note,omitempty"`
	Active     bool           `gorm:"not null;default:true" json:"active"`
	CreatedAt  time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Room) TableName() string { return "rooms" }

// CanHost reports whether the room can fulfill the given sellable
// category, through its primary type or one of its extras. A malformed
// ExtraTypes column never matches.
func (r Room) CanHost(roomTypeID snowflake.ID) bool {
	if r.RoomTypeID == roomTypeID {
		return true
	}
	if len(r.ExtraTypes) == 0 {
		return false
	}
	var extras []snowflake.ID
	if err := json.Unmarshal(r.ExtraTypes, &extras); err != nil {
		return false
	}
	for _, id := range extras {
		if id == roomTypeID {
			return true
		}
	}
	return false
}
