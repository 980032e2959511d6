// Package domain contains persistence models for properties and guests.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Property is one hotel operated by a tenant.
type Property struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID  snowflake.ID `gorm:"not null;index" json:"tenant_id"`
	Name      string       `gorm:"type:text;not null" json:"name"`
	Slug      string       `gorm:"type:text;not null;uniqueIndex:ux_property_slug" json:"slug"`
	Timezone  string       `gorm:"type:text;not null;default:'America/Lima'" json:"timezone"`
	Currency  string       `gorm:"type:text;not null;default:'PEN'" json:"currency"`
	Active    bool         `gorm:"not null;default:true" json:"active"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Property) TableName() string { return "properties" }

// DocumentType is the identity document kind carried by a guest.
type DocumentType string

const (
	DocumentDNI      DocumentType = "dni"
	DocumentRUC      DocumentType = "ruc"
	DocumentPassport DocumentType = "passport"
	DocumentCE       DocumentType = "ce"
)

// Guest is the person or company a reservation is held for.
type Guest struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID       snowflake.ID `gorm:"not null;index" json:"tenant_id"`
	DocumentType   DocumentType `gorm:"type:text;not null" json:"document_type"`
	DocumentNumber string       `gorm:"type:text;not null;index" json:"document_number"`
	FullName       string       `gorm:"type:text;not null" json:"full_name"`
	Email          string       `gorm:"type:text" json:"email"`
	Phone          string       `gorm:"type:text" json:"phone"`
	Nationality    string       `gorm:"type:text" json:"nationality"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Guest) TableName() string { return "guests" }
