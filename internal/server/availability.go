package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	searchdomain "github.com/posadahq/posada/internal/search/domain"
)

func (s *Server) GetAvailability(c *gin.Context) {
	var query struct {
		RoomTypeID string `form:"room_type_id"`
		CheckIn    string `form:"check_in"`
		CheckOut   string `form:"check_out"`
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

	available, err := s.availabilitySvc.AvailableRooms(c.Request.Context(), roomTypeID, checkIn, checkOut)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"room_type_id": roomTypeID.String(),
		"check_in":     checkIn.Format(dateLayout),
		"check_out":    checkOut.Format(dateLayout),
		"available":    available,
	}})
}

func (s *Server) SearchCombinations(c *gin.Context) {
	var query struct {
		CheckIn    string `form:"check_in"`
		CheckOut   string `form:"check_out"`
		Adults     int    `form:"adults"`
		Children   int    `form:"children"`
		MaxResults int    `form:"max_results"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
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

	resp, err := s.searchSvc.Search(c.Request.Context(), searchdomain.SearchRequest{
		CheckIn:    checkIn,
		CheckOut:   checkOut,
		Adults:     query.Adults,
		Children:   query.Children,
		MaxResults: query.MaxResults,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if s.obsMetrics != nil {
		s.obsMetrics.RecordSearchRequest(c.Request.Context())
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
