package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	pricingdomain "github.com/posadahq/posada/internal/pricing/domain"
)

func (s *Server) QuoteStay(c *gin.Context) {
	var query struct {
		RoomTypeID    string `form:"room_type_id"`
		CheckIn       string `form:"check_in"`
		CheckOut      string `form:"check_out"`
		PromotionCode string `form:"promotion_code"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	roomTypeID, err := snowflake.ParseString(strings.TrimSpace(query.RoomTypeID))
	if err != nil {
		AbortWithError(c, newValidationError("room_type_id", "invalid_room_type_id", "invalid room_type_id"))
		return
	}

	checkIn, err := parseDate(query.CheckIn)
	if err != nil {
		AbortWithError(c, newValidationError("check_in", "invalid_check_in", "invalid check_in"))
		return
	}

	checkOut, err := parseDate(query.CheckOut)
	if err != nil {
		AbortWithError(c, newValidationError("check_out", "invalid_check_out", "invalid check_out"))
		return
	}

	resp, err := s.pricingSvc.Quote(c.Request.Context(), pricingdomain.QuoteRequest{
		RoomTypeID:    roomTypeID,
		CheckIn:       checkIn,
		CheckOut:      checkOut,
		PromotionCode: strings.TrimSpace(query.PromotionCode),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
