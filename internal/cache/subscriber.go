package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/petersimagin1985-max/crypto-orderflow/internal/models"
)

// BarHandler processes one broadcast bar. Returning an error ends the
// subscription.
type BarHandler func(ctx context.Context, msg *models.BarMessage) error

// Subscribe relays bars broadcast on keys.Channel to handler.
// Blocks until ctx is cancelled or handler fails.
func (r *Reader) Subscribe(ctx context.Context, keys models.Keys, handler BarHandler) error {
	sub := r.client.Subscribe(ctx, keys.Channel)
	defer sub.Close()

	// Wait for the subscription confirmation so no broadcast is missed
	// between the call and the first receive.
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe to %s failed: %w", keys.Channel, err)
	}

	logger := r.logger.With("channel", keys.Channel)
	logger.Debug("subscriber_started")

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			logger.Debug("subscriber_stopping")
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}

			var envelope models.BarMessage
			if err := json.Unmarshal([]byte(msg.Payload), &envelope); err != nil {
				logger.Warn("broadcast_unmarshal_failed", "error", err)
				continue
			}

			if err := handler(ctx, &envelope); err != nil {
				return fmt.Errorf("handler failed: %w", err)
			}
		}
	}
}
