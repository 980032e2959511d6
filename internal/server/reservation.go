package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	reservationdomain "github.com/posadahq/posada/internal/reservation/domain"
	"github.com/posadahq/posada/pkg/db/pagination"
)

func (s *Server) CreateReservation(c *gin.Context) {
	var req reservationdomain.CreateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.reservationSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if s.obsMetrics != nil {
		s.obsMetrics.RecordReservationTransition(c.Request.Context(), string(resp.OperationalStatus))
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetReservationByID(c *gin.Context) {
	id, err := parseParamID(c, "id")
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}

	resp, err := s.reservationSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListReservations(c *gin.Context) {
	var query struct {
		Status     string `form:"status"`
		GuestID    string `form:"guest_id"`
		RoomTypeID string `form:"room_type_id"`
		From       string `form:"from"`
		To         string `form:"to"`
		pagination.Pagination
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	req := reservationdomain.ListReservationsRequest{Pagination: query.Pagination}
	if raw := strings.TrimSpace(query.Status); raw != "" {
		status := reservationdomain.OperationalStatus(raw)
		req.Status = &status
	}
	if raw := strings.TrimSpace(query.GuestID); raw != "" {
		id, err := snowflake.ParseString(raw)
		if err != nil {
			AbortWithError(c, newValidationError("guest_id", "invalid_guest_id", "invalid guest_id"))
			return
		}
		req.GuestID = &id
	}
	if raw := strings.TrimSpace(query.RoomTypeID); raw != "" {
		id, err := snowflake.ParseString(raw)
		if err != nil {
			AbortWithError(c, newValidationError("room_type_id", "invalid_room_type_id", "invalid room_type_id"))
			return
		}
		req.RoomTypeID = &id
	}

	from, err := parseOptionalDate(query.From)
	if err != nil {
		AbortWithError(c, newValidationError("from", "invalid_from", "invalid from"))
		return
	}
	req.From = from

	to, err := parseOptionalDate(query.To)
	if err != nil {
		AbortWithError(c, newValidationError("to", "invalid_to", "invalid to"))
		return
	}
	req.To = to

	resp, pageInfo, err := s.reservationSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp, "page_info": pageInfo})
}

func (s *Server) CompleteReservation(c *gin.Context) {
	id, err := parseParamID(c, "id")
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}

	var req struct {
		GuestID snowflake.ID `json:"guest_id,string" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.reservationSvc.Complete(c.Request.Context(), id, req.GuestID)
	s.respondTransition(c, resp, err)
}

func (s *Server) ConfirmReservation(c *gin.Context) {
	id, err := parseParamID(c, "id")
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}

	resp, err := s.reservationSvc.Confirm(c.Request.Context(), id)
	s.respondTransition(c, resp, err)
}

func (s *Server) CheckInReservation(c *gin.Context) {
	id, err := parseParamID(c, "id")
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}

	var req struct {
		RoomID *snowflake.ID `json:"room_id,string"`
	}
	// Body is optional: without one the engine auto-assigns a room.
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	resp, err := s.reservationSvc.CheckIn(c.Request.Context(), id, req.RoomID)
	s.respondTransition(c, resp, err)
}

func (s *Server) CheckOutReservation(c *gin.Context) {
	id, err := parseParamID(c, "id")
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}

	resp, err := s.reservationSvc.CheckOut(c.Request.Context(), id)
	s.respondTransition(c, resp, err)
}

func (s *Server) CancelReservation(c *gin.Context) {
	id, err := parseParamID(c, "id")
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	resp, err := s.reservationSvc.Cancel(c.Request.Context(), id, strings.TrimSpace(req.Reason))
	s.respondTransition(c, resp, err)
}

func (s *Server) NoShowReservation(c *gin.Context) {
	id, err := parseParamID(c, "id")
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}

	resp, err := s.reservationSvc.NoShow(c.Request.Context(), id)
	s.respondTransition(c, resp, err)
}

func (s *Server) respondTransition(c *gin.Context, resp reservationdomain.Reservation, err error) {
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if s.obsMetrics != nil {
		s.obsMetrics.RecordReservationTransition(c.Request.Context(), string(resp.OperationalStatus))
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) AddReservationPayment(c *gin.Context) {
	id, err := parseParamID(c, "id")
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}

	var req reservationdomain.AddPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.reservationSvc.AddPayment(c.Request.Context(), id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if s.obsMetrics != nil {
		s.obsMetrics.RecordPayment(c.Request.Context(), "payment_added")
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RefundReservationPayment(c *gin.Context) {
	id, err := parseParamID(c, "id")
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}

	var req reservationdomain.RefundPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.reservationSvc.RefundPayment(c.Request.Context(), id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if s.obsMetrics != nil {
		s.obsMetrics.RecordPayment(c.Request.Context(), "payment_refunded")
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListReservationPayments(c *gin.Context) {
	id, err := parseParamID(c, "id")
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}

	resp, err := s.reservationSvc.ListPayments(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
