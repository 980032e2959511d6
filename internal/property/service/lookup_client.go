package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/posadahq/posada/internal/config"
	propertydomain "github.com/posadahq/posada/internal/property/domain"
)

// lookupClient queries the national identity registry (RENIEC/SUNAT style
// aggregator) over HTTP. Failures are soft: callers fall back to the data
// the guest typed in.
type lookupClient struct {
	endpoint string
	token    string
	client   *http.Client
}

// NewIdentityLookup builds the HTTP lookup client, or nil when the
// endpoint is not configured.
func NewIdentityLookup(cfg config.Config) propertydomain.IdentityLookup {
	if cfg.IDLookupEndpoint == "" {
		return nil
	}
	return &lookupClient{
		endpoint: strings.TrimRight(cfg.IDLookupEndpoint, "/"),
		token:    cfg.IDLookupToken,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

type lookupResponse struct {
	DocumentNumber string `json:"document_number"`
	FullName       string `json:"full_name"`
	Address        string `json:"address"`
}

func (c *lookupClient) Lookup(ctx context.Context, docType propertydomain.DocumentType, docNumber string) (propertydomain.IdentityRecord, error) {
	url := fmt.Sprintf("%s/v1/%s/%s", c.endpoint, docType, docNumber)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return propertydomain.IdentityRecord{}, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return propertydomain.IdentityRecord{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return propertydomain.IdentityRecord{}, fmt.Errorf("identity lookup returned status %d", resp.StatusCode)
	}

	var body lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return propertydomain.IdentityRecord{}, err
	}

	return propertydomain.IdentityRecord{
		DocumentType:   docType,
		DocumentNumber: body.DocumentNumber,
		FullName:       strings.TrimSpace(body.FullName),
		Address:        strings.TrimSpace(body.Address),
	}, nil
}
