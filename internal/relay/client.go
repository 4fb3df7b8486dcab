// internal/relay/client.go
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	apperrors "intake-crm/internal/common/errors"
	httpclient "intake-crm/internal/common/http"
	"intake-crm/internal/common/observability"
	"intake-crm/internal/models"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultTimeout bounds a single delivery attempt.
const DefaultTimeout = 5 * time.Second

const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
)

// Result is the observable outcome of one delivery attempt. StatusCode is 0
// when no response was received.
type Result struct {
	Success    bool            `json:"success"`
	StatusCode int             `json:"status"`
	Error      string          `json:"error,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// Err converts a failed Result into an UpstreamRelayError.
func (r Result) Err() error {
	if r.Success {
		return nil
	}
	reason := r.Error
	if reason == "" {
		reason = fmt.Sprintf("webhook responded with status %d", r.StatusCode)
	}
	return apperrors.NewUpstreamRelayError(r.StatusCode, reason)
}

// Client delivers application records to a CRM webhook. It makes exactly one
// attempt per call and never retries.
type Client struct {
	http   *httpclient.Client
	token  string
	obs    *observability.Observability
	tracer trace.Tracer
}

func NewClient(timeout time.Duration, token string, obs *observability.Observability) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		http:   httpclient.NewClient(timeout),
		token:  token,
		obs:    obs,
		tracer: observability.Tracer("relay"),
	}
}

// Relay posts the full record to destinationURL. Any 2xx is success; other
// statuses are reported as failures with the status code received.
func (c *Client) Relay(ctx context.Context, record models.ApplicationRecord, destinationURL string) Result {
	ctx, span := c.tracer.Start(ctx, "relay.deliver", trace.WithAttributes(
		attribute.String("application.id", record.ApplicationID),
		attribute.String("relay.destination", destinationURL),
	))
	defer span.End()

	start := time.Now()

	var headers map[string]string
	if c.token != "" {
		headers = map[string]string{"Authorization": "Bearer " + c.token}
	}

	result := Result{}
	resp, err := c.http.PostJSON(ctx, destinationURL, record, headers)
	switch {
	case err != nil && resp == nil:
		result.Error = err.Error()
	case err != nil:
		result.StatusCode = resp.StatusCode
		result.Error = err.Error()
	default:
		result.StatusCode = resp.StatusCode
		result.Success = resp.OK()
		if json.Valid(resp.Body) {
			result.Data = json.RawMessage(resp.Body)
		}
	}

	outcome := outcomeSuccess
	if !result.Success {
		outcome = outcomeFailure
		span.SetStatus(codes.Error, result.Err().Error())
	}
	span.SetAttributes(attribute.Int("http.status_code", result.StatusCode))

	c.obs.RecordRelayAttempt(ctx, outcome, result.StatusCode)
	c.obs.RecordRelayDuration(ctx, time.Since(start), outcome)

	return result
}
