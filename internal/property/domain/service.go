package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

// IdentityRecord is the answer from the national identity lookup service.
type IdentityRecord struct {
	DocumentType   DocumentType `json:"document_type"`
	DocumentNumber string       `json:"document_number"`
	FullName       string       `json:"full_name"`
	Address        string       `json:"address,omitempty"`
}

// IdentityLookup resolves a document number against the national registry.
// It is an external collaborator; implementations must bound their timeout.
type IdentityLookup interface {
	Lookup(ctx context.Context, docType DocumentType, docNumber string) (IdentityRecord, error)
}

type CreatePropertyRequest struct {
	Name     string `json:"name" binding:"required"`
	Timezone string `json:"timezone"`
	Currency string `json:"currency"`
}

type CreateGuestRequest struct {
	DocumentType   DocumentType `json:"document_type" binding:"required"`
	DocumentNumber string       `json:"document_number" binding:"required"`
	FullName       string       `json:"full_name"`
	Email          string       `json:"email"`
	Phone          string       `json:"phone"`
	Nationality    string       `json:"nationality"`
}

type Service interface {
	CreateProperty(ctx context.Context, req CreatePropertyRequest) (Property, error)
	GetProperty(ctx context.Context, id snowflake.ID) (Property, error)
	ListProperties(ctx context.Context) ([]Property, error)
	// CreateGuest fills missing name fields from the identity lookup when
	// one is configured; lookup failures degrade to the submitted data.
	CreateGuest(ctx context.Context, req CreateGuestRequest) (Guest, error)
	GetGuest(ctx context.Context, id snowflake.ID) (Guest, error)
}

var (
	ErrInvalidTenant    = errors.New("invalid_tenant")
	ErrPropertyNotFound = errors.New("property_not_found")
	ErrGuestNotFound    = errors.New("guest_not_found")
	ErrInvalidDocument  = errors.New("invalid_document")
)
