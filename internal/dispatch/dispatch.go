// Package dispatch sends mail records through a provider one at a time.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shineum/mailbatch/internal/email"
	"github.com/shineum/mailbatch/internal/provider"
)

// Run sends each record through p in order and waits for every send to
// finish before starting the next. It stops at the first failure; records
// already sent stay sent and the rest are left unsent.
func Run(ctx context.Context, p provider.Provider, records []email.Email) error {
	for i := range records {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("dispatch stopped before record %d: %w", i, err)
		}

		msg := &records[i]
		slog.Debug("sending record",
			"index", i,
			"to", msg.To,
			"provider", p.Name(),
		)

		if err := p.Send(ctx, msg); err != nil {
			return fmt.Errorf("record %d (to %q): %w", i, msg.To, err)
		}

		slog.Info("record sent",
			"index", i,
			"to", msg.To,
			"cc", msg.Cc,
			"subject", msg.Subject,
			"provider", p.Name(),
		)
	}

	return nil
}
