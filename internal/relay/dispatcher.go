// internal/relay/dispatcher.go
package relay

import (
	"context"
	"sync"

	"intake-crm/internal/common/logger"
	"intake-crm/internal/models"
)

// Dispatcher runs one relay per committed intake record in the background.
// Outcomes are logged and never reach the submitter.
type Dispatcher struct {
	client         *Client
	destinationURL string
	logger         logger.Logger
	wg             sync.WaitGroup
}

func NewDispatcher(client *Client, destinationURL string, log logger.Logger) *Dispatcher {
	return &Dispatcher{
		client:         client,
		destinationURL: destinationURL,
		logger:         log.WithFields(map[string]interface{}{"component": "relay"}),
	}
}

// Dispatch must only be called after the record's save has committed.
func (d *Dispatcher) Dispatch(record models.ApplicationRecord) {
	if d.destinationURL == "" {
		d.logger.Debug("CRM webhook not configured, skipping relay", map[string]interface{}{
			"event":         "relay_skipped",
			"applicationId": record.ApplicationID,
		})
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		// detached from the request context
		d.deliver(context.Background(), record)
	}()
}

func (d *Dispatcher) deliver(ctx context.Context, record models.ApplicationRecord) {
	result := d.client.Relay(ctx, record, d.destinationURL)

	fields := map[string]interface{}{
		"applicationId": record.ApplicationID,
		"transactionId": record.TransactionID,
		"statusCode":    result.StatusCode,
	}
	if result.Success {
		fields["event"] = "relay_success"
		d.logger.Info("Application relayed to CRM", fields)
		return
	}

	fields["event"] = "relay_failed"
	fields["error"] = result.Err()
	d.logger.Warn("Application relay failed", fields)
}

// Wait blocks until in-flight relays finish or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
