// Package domain contains persistence models for sellable room categories.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// BedConfiguration is one bed arrangement a room type offers.
type BedConfiguration struct {
	BedType  string `json:"bed_type"`
	Quantity int    `json:"quantity"`
}

// RoomType is a sellable category of room, distinct from a physical Room.
// BasePrice edits never rewrite history: reservation totals are snapshotted
// at creation time.
type RoomType struct {
	ID          snowflake.ID    `gorm:"primaryKey" json:"id"`
	TenantID    snowflake.ID    `gorm:"not null;index" json:"tenant_id"`
	PropertyID  snowflake.ID    `gorm:"not null;index" json:"property_id"`
	Name        string          `gorm:"type:text;not null" json:"name"`
	Description string          `gorm:"type:text" json:"description"`
	MaxAdults   int             `gorm:"not null" json:"max_adults"`
	MaxChildren int             `gorm:"not null;default:0" json:"max_children"`
	BasePrice   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"base_price"`
	Currency    string          `gorm:"type:text;not null;default:'PEN'" json:"currency"`
	Beds        datatypes.JSON  `gorm:"type:jsonb" json:"beds"`
	Active      bool            `gorm:"not null;default:true" json:"active"`
	CreatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (RoomType) TableName() string { return "room_types" }

// Capacity is the total guests one room of this type can host.
func (rt RoomType) Capacity() int { return rt.MaxAdults + rt.MaxChildren }
