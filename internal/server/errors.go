package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	automationdomain "github.com/posadahq/posada/internal/automation/domain"
	availabilitydomain "github.com/posadahq/posada/internal/availability/domain"
	invoicedomain "github.com/posadahq/posada/internal/invoice/domain"
	pricingdomain "github.com/posadahq/posada/internal/pricing/domain"
	propertydomain "github.com/posadahq/posada/internal/property/domain"
	reservationdomain "github.com/posadahq/posada/internal/reservation/domain"
	roomdomain "github.com/posadahq/posada/internal/room/domain"
	roomtypedomain "github.com/posadahq/posada/internal/roomtype/domain"
	searchdomain "github.com/posadahq/posada/internal/search/domain"
	taskdomain "github.com/posadahq/posada/internal/task/domain"
	"github.com/posadahq/posada/pkg/db/pagination"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrConflict       = errors.New("conflict")
	ErrInternal       = errors.New("internal_error")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, invoicedomain.ErrProviderError):
		return http.StatusBadGateway, errorPayload{
			Type:    "provider_error",
			Message: "invoicing provider error",
		}
	case errors.Is(err, ErrInternal):
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, pricingdomain.ErrInvalidDateRange),
		errors.Is(err, reservationdomain.ErrInvalidDateRange),
		errors.Is(err, reservationdomain.ErrInvalidParty),
		errors.Is(err, reservationdomain.ErrInvalidAmount),
		errors.Is(err, searchdomain.ErrInvalidDateRange),
		errors.Is(err, searchdomain.ErrInvalidParty),
		errors.Is(err, roomtypedomain.ErrInvalidCapacity),
		errors.Is(err, roomtypedomain.ErrInvalidPrice),
		errors.Is(err, roomdomain.ErrUnknownStatus),
		errors.Is(err, propertydomain.ErrInvalidDocument),
		errors.Is(err, propertydomain.ErrInvalidTenant),
		errors.Is(err, invoicedomain.ErrInvalidDocumentType),
		errors.Is(err, automationdomain.ErrInvalidTrigger),
		errors.Is(err, automationdomain.ErrInvalidConditions),
		errors.Is(err, automationdomain.ErrInvalidActions),
		errors.Is(err, automationdomain.ErrUnknownConditionKind),
		errors.Is(err, automationdomain.ErrUnknownActionKind),
		errors.Is(err, taskdomain.ErrUnknownStatus),
		errors.Is(err, taskdomain.ErrMissingTitle),
		errors.Is(err, pagination.ErrInvalidPageToken):
		return true
	default:
		return false
	}
}

// Transition refusals and capacity races are conflicts: the request was
// well formed but the current state does not admit it.
func isConflictError(err error) bool {
	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, availabilitydomain.ErrUnavailable),
		errors.Is(err, reservationdomain.ErrInvalidTransition),
		errors.Is(err, reservationdomain.ErrNoRoomAvailable),
		errors.Is(err, roomdomain.ErrInvalidTransition),
		errors.Is(err, taskdomain.ErrInvalidTransition),
		errors.Is(err, invoicedomain.ErrInvalidTransition),
		errors.Is(err, invoicedomain.ErrEmitInProgress),
		errors.Is(err, invoicedomain.ErrRetriesExhausted),
		errors.Is(err, automationdomain.ErrSystemRule):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, propertydomain.ErrPropertyNotFound),
		errors.Is(err, propertydomain.ErrGuestNotFound),
		errors.Is(err, availabilitydomain.ErrRoomTypeNotFound),
		errors.Is(err, roomtypedomain.ErrNotFound),
		errors.Is(err, roomdomain.ErrNotFound),
		errors.Is(err, reservationdomain.ErrNotFound),
		errors.Is(err, reservationdomain.ErrPaymentNotFound),
		errors.Is(err, pricingdomain.ErrPromotionNotFound),
		errors.Is(err, invoicedomain.ErrNotFound),
		errors.Is(err, invoicedomain.ErrReservationNotFound),
		errors.Is(err, automationdomain.ErrNotFound),
		errors.Is(err, taskdomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	if errors.Is(err, ErrInvalidRequest) {
		return "invalid_request"
	}
	return err.Error()
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	default:
		return "invalid value"
	}
}
