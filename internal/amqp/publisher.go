package amqp

import (
	"context"
	"log/slog"

	"bilancio/internal/ledger"
	"bilancio/internal/log"
)

// ChangePublisher is the subset of Client used by Publisher.
type ChangePublisher interface {
	PublishLedgerChanged(ctx context.Context, msg *LedgerChangedMessage) error
}

// Publisher forwards committed ledger changes to the broker. Publish failures
// are logged; the mutation has already been committed.
type Publisher struct {
	client ChangePublisher
}

func NewPublisher(client ChangePublisher) *Publisher {
	return &Publisher{client: client}
}

func (p *Publisher) LedgerChanged(ctx context.Context, c ledger.Change) {
	if len(c.Periods) == 0 {
		return
	}
	msg := NewLedgerChangedMessage(c)
	// The request context may already be finishing.
	ctx = context.WithoutCancel(ctx)
	if err := p.client.PublishLedgerChanged(ctx, msg); err != nil {
		slog.WarnContext(ctx, "Failed to publish ledger change",
			log.FieldComponent, log.ComponentAMQP,
			log.FieldError, err,
			log.FieldTenant, c.Tenant,
			log.FieldOperation, c.Operation)
	}
}

var _ ledger.Observer = (*Publisher)(nil)
