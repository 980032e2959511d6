// Package provider implements the e-invoicing gateway client.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/posadahq/posada/internal/config"
	invoicedomain "github.com/posadahq/posada/internal/invoice/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type ClientParam struct {
	fx.In

	Config config.Config
	Log    *zap.Logger
}

type Client struct {
	client *http.Client
	log    *zap.Logger
}

func NewClient(p ClientParam) invoicedomain.Provider {
	timeout := p.Config.InvoicingProviderTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		client: &http.Client{Timeout: timeout},
		log:    p.Log.Named("invoice.provider"),
	}
}

type emitRequest struct {
	IdempotencyKey string       `json:"idempotency_key"`
	DocumentType   string       `json:"document_type"`
	Series         string       `json:"series"`
	Number         int64        `json:"number"`
	Customer       emitCustomer `json:"customer"`
	Currency       string       `json:"currency"`
	Totals         emitTotals   `json:"totals"`
	IssuedAt       time.Time    `json:"issued_at"`
}

type emitCustomer struct {
	Name           string `json:"name"`
	DocumentType   string `json:"document_type"`
	DocumentNumber string `json:"document_number"`
}

type emitTotals struct {
	OpGravado   string `json:"op_gravado"`
	IGV         string `json:"igv"`
	OpExonerado string `json:"op_exonerado"`
	OpInafecto  string `json:"op_inafecto"`
	Descuentos  string `json:"descuentos"`
	Total       string `json:"total"`
}

type emitResponse struct {
	Status     string `json:"status"`
	DocumentID string `json:"document_id"`
	Message    string `json:"message"`
}

func (c *Client) Emit(ctx context.Context, endpoint, token string, inv invoicedomain.Invoice) (invoicedomain.EmissionResult, error) {
	payload := emitRequest{
		IdempotencyKey: inv.ID.String(),
		DocumentType:   string(inv.DocumentType),
		Series:         inv.Series,
		Number:         inv.Number,
		Customer: emitCustomer{
			Name:           inv.CustomerName,
			DocumentType:   inv.CustomerDocumentType,
			DocumentNumber: inv.CustomerDocumentNumber,
		},
		Currency: inv.Currency,
		Totals: emitTotals{
			OpGravado:   inv.OpGravado.StringFixed(2),
			IGV:         inv.IGV.StringFixed(2),
			OpExonerado: inv.OpExonerado.StringFixed(2),
			OpInafecto:  inv.OpInafecto.StringFixed(2),
			Descuentos:  inv.Descuentos.StringFixed(2),
			Total:       inv.Total.StringFixed(2),
		},
		IssuedAt: inv.CreatedAt,
	}

	started := time.Now()
	resp, err := c.post(ctx, endpoint, "/documents", token, inv.ID.String(), payload)
	latency := time.Since(started).Milliseconds()
	if err != nil {
		return invoicedomain.EmissionResult{LatencyMs: latency}, err
	}
	defer resp.Body.Close()

	result := invoicedomain.EmissionResult{
		HTTPStatus: resp.StatusCode,
		LatencyMs:  latency,
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return result, err
	}
	var decoded emitResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return result, fmt.Errorf("decoding provider response: %w", err)
	}

	result.DocumentID = decoded.DocumentID
	result.Message = decoded.Message

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return result, fmt.Errorf("provider unavailable: status %d", resp.StatusCode)
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		result.Accepted = strings.EqualFold(decoded.Status, "accepted")
		return result, nil
	default:
		// 4xx means the provider understood and rejected the document
		return result, nil
	}
}

func (c *Client) Void(ctx context.Context, endpoint, token string, inv invoicedomain.Invoice) error {
	payload := map[string]string{
		"idempotency_key": inv.ID.String(),
		"document_id":     inv.ProviderDocumentID,
	}
	resp, err := c.post(ctx, endpoint, "/documents/void", token, inv.ID.String(), payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("provider void failed: status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) post(ctx context.Context, endpoint, path, token, idempotencyKey string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	url := strings.TrimRight(endpoint, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", idempotencyKey)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return c.client.Do(req)
}
