package ledger

import (
	"context"

	"bilancio/internal/core"
	"bilancio/internal/log"
	"bilancio/internal/storage"
)

// TransferResult is the outcome of a recorded transfer.
type TransferResult struct {
	Entry          core.LedgerEntry
	UpdatedPeriods []core.Period
}

// UpdatedKeys returns the rewritten months as "YYYY-MM" keys.
func (r TransferResult) UpdatedKeys() []string {
	return Change{Periods: r.UpdatedPeriods}.PeriodKeys()
}

// Transfer moves money between two of the tenant's payment methods. It
// records an expense entry under the kind's reserved category, moves the
// balances of the entry month and propagates the move forward. The source
// account must already carry a balance in that month.
func (s *Service) Transfer(ctx context.Context, tenant string, in core.TransferInput) (TransferResult, error) {
	if err := in.Validate(); err != nil {
		return TransferResult{}, core.Invalid(err)
	}
	category, _ := in.Kind.Category()

	e := core.LedgerEntry{
		ID:        s.opts.NewID(),
		Tenant:    tenant,
		Date:      in.Date,
		Type:      core.Expense,
		Category:  category,
		Amount:    in.Amount,
		Method:    in.From,
		To:        in.To,
		Note:      in.Kind.Note(in.To),
		CreatedAt: s.opts.Now().UTC(),
	}
	periods, err := s.mutate(ctx, tenant, OpTransfer, func(ctx context.Context, u *unit) (string, error) {
		if err := requireMethods(ctx, u.tx, in.From, in.To); err != nil {
			return "", err
		}
		if err := u.tx.PutEntry(ctx, e); err != nil {
			return "", err
		}
		return e.ID, s.apply(ctx, u, e, 1)
	})
	if err != nil {
		return TransferResult{}, err
	}

	s.structLog.LogEntryRecorded(ctx, tenant, log.OpTransfer, e.ID, string(e.Type), e.Category, e.Method, e.Amount.Cents)
	return TransferResult{Entry: e, UpdatedPeriods: periods}, nil
}

// requireMethods checks that every name is an active payment method.
func requireMethods(ctx context.Context, tx storage.DirectoryStore, names ...string) error {
	for _, name := range names {
		m, ok, err := tx.PaymentMethod(ctx, name)
		if err != nil {
			return err
		}
		if !ok || !m.Active {
			return core.NotFound("payment method %q not found", name)
		}
	}
	return nil
}
