package server

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	availabilitydomain "github.com/posadahq/posada/internal/availability/domain"
	invoicedomain "github.com/posadahq/posada/internal/invoice/domain"
	reservationdomain "github.com/posadahq/posada/internal/reservation/domain"
	taskdomain "github.com/posadahq/posada/internal/task/domain"
)

func TestMapError(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{"validation", reservationdomain.ErrInvalidParty, http.StatusBadRequest, "validation_error"},
		{"unauthorized", ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{"forbidden", ErrForbidden, http.StatusForbidden, "forbidden"},
		{"conflict", availabilitydomain.ErrUnavailable, http.StatusConflict, "conflict"},
		{"retries exhausted", invoicedomain.ErrRetriesExhausted, http.StatusConflict, "conflict"},
		{"not found", taskdomain.ErrNotFound, http.StatusNotFound, "not_found"},
		{"provider error", fmt.Errorf("%w: connection reset", invoicedomain.ErrProviderError), http.StatusBadGateway, "provider_error"},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, payload := mapError(tc.err)
			assert.Equal(t, tc.wantStatus, status)
			assert.Equal(t, tc.wantType, payload.Type)
		})
	}
}
