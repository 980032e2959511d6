// Package webhook delivers automation payloads to external HTTP endpoints.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	ErrInvalidURL    = errors.New("invalid_webhook_url")
	ErrDeliveryError = errors.New("webhook_delivery_error")
)

const defaultTimeout = 10 * time.Second

type Caller interface {
	Call(ctx context.Context, method, target string, payload map[string]any) error
}

type CallerParam struct {
	fx.In

	Log *zap.Logger
}

type httpCaller struct {
	client *http.Client
	log    *zap.Logger
}

func NewCaller(p CallerParam) Caller {
	return &httpCaller{
		client: &http.Client{Timeout: defaultTimeout},
		log:    p.Log.Named("webhook.caller"),
	}
}

func (c *httpCaller) Call(ctx context.Context, method, target string, payload map[string]any) error {
	parsed, err := url.Parse(strings.TrimSpace(target))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return ErrInvalidURL
	}
	if method = strings.ToUpper(strings.TrimSpace(method)); method == "" {
		method = http.MethodPost
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, parsed.String(), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryError, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%w: status %d", ErrDeliveryError, resp.StatusCode)
	}
	return nil
}

var Module = fx.Module("webhook",
	fx.Provide(NewCaller),
)
