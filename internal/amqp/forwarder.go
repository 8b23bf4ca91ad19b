package amqp

import (
	"context"
	"log/slog"

	"visitmap/internal/ledger"
)

// Publisher is the publishing side of Client.
type Publisher interface {
	PublishLedgerChange(ctx context.Context, msg *LedgerChangeMessage) error
}

var _ Publisher = (*Client)(nil)

// Forwarder returns a ledger listener that publishes every event. Publish
// failures are logged and never reach the writer: the change is already
// committed and the worker's periodic sync picks it up.
func Forwarder(ctx context.Context, p Publisher, logger *slog.Logger) ledger.Listener {
	if logger == nil {
		logger = slog.Default()
	}
	return func(e ledger.Event) {
		if err := p.PublishLedgerChange(ctx, NewLedgerChangeMessage(e)); err != nil {
			logger.ErrorContext(ctx, "Failed to publish ledger change",
				"kind", e.Kind,
				"error", err)
		}
	}
}
