package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	invoicedomain "github.com/posadahq/posada/internal/invoice/domain"
	"github.com/posadahq/posada/pkg/db/pagination"
)

type createInvoiceRequest struct {
	ReservationID          snowflake.ID `json:"reservation_id,string" binding:"required"`
	DocumentType           string       `json:"document_type" binding:"required"`
	CustomerName           string       `json:"customer_name"`
	CustomerDocumentType   string       `json:"customer_document_type"`
	CustomerDocumentNumber string       `json:"customer_document_number"`
}

func (s *Server) CreateInvoice(c *gin.Context) {
	var req createInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.invoiceSvc.Create(c.Request.Context(), invoicedomain.CreateInvoiceRequest{
		ReservationID:          req.ReservationID,
		DocumentType:           invoicedomain.DocumentType(strings.TrimSpace(req.DocumentType)),
		CustomerName:           strings.TrimSpace(req.CustomerName),
		CustomerDocumentType:   strings.TrimSpace(req.CustomerDocumentType),
		CustomerDocumentNumber: strings.TrimSpace(req.CustomerDocumentNumber),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) EmitInvoice(c *gin.Context) {
	id, err := parseParamID(c, "id")
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}

	resp, err := s.invoiceSvc.Emit(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if s.obsMetrics != nil {
		s.obsMetrics.RecordInvoiceEmission(c.Request.Context(), string(resp.Status))
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) VoidInvoice(c *gin.Context) {
	id, err := parseParamID(c, "id")
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}

	resp, err := s.invoiceSvc.Void(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetInvoiceByID(c *gin.Context) {
	id, err := parseParamID(c, "id")
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}

	resp, err := s.invoiceSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListInvoices(c *gin.Context) {
	var query struct {
		Status        string `form:"status"`
		ReservationID string `form:"reservation_id"`
		pagination.Pagination
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	req := invoicedomain.ListInvoicesRequest{Pagination: query.Pagination}
	if raw := strings.TrimSpace(query.Status); raw != "" {
		status := invoicedomain.InvoiceStatus(raw)
		req.Status = &status
	}
	if raw := strings.TrimSpace(query.ReservationID); raw != "" {
		id, err := snowflake.ParseString(raw)
		if err != nil {
			AbortWithError(c, newValidationError("reservation_id", "invalid_reservation_id", "invalid reservation_id"))
			return
		}
		req.ReservationID = &id
	}

	resp, pageInfo, err := s.invoiceSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp, "page_info": pageInfo})
}

func (s *Server) RenderInvoicePDF(c *gin.Context) {
	id, err := parseParamID(c, "id")
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}

	pdf, err := s.invoiceSvc.RenderPDF(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%s.pdf", id.String()))
	c.Data(http.StatusOK, "application/pdf", pdf)
}
