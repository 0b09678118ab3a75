// Package ledger keeps daily and monthly aggregates consistent with the
// entries that produced them. Every mutation runs under the tenant's lock in
// a single storage transaction.
package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"bilancio/internal/core"
	"bilancio/internal/lock"
	"bilancio/internal/log"
	"bilancio/internal/storage"
)

// Options tune the engine.
type Options struct {
	// IncludeTransfersInDaily records transfer entries in daily buckets as
	// expenses under their reserved category. When false they skip daily
	// buckets entirely.
	IncludeTransfersInDaily bool
	// LockTimeout bounds the wait for the tenant lock. Zero waits as long as
	// the request context allows.
	LockTimeout time.Duration
	// Now and NewID default to time.Now and uuid.NewString.
	Now   func() time.Time
	NewID func() string
}

type Service struct {
	store     storage.Store
	locker    lock.Locker
	logger    *log.Logger
	structLog *log.StructuredLogger
	opts      Options
	observers []Observer
}

func NewService(store storage.Store, locker lock.Locker, logger *log.Logger, opts Options) *Service {
	if locker == nil {
		locker = lock.NewLocal()
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	logger = logger.WithComponent(log.ComponentLedger)
	return &Service{
		store:     store,
		locker:    locker,
		logger:    logger,
		structLog: log.NewStructuredLogger(logger),
		opts:      opts,
	}
}

// Observe registers an observer for committed mutations.
func (s *Service) Observe(o Observer) {
	s.observers = append(s.observers, o)
}

// unit is the state of one mutation in flight.
type unit struct {
	tx      storage.Tx
	daily   Daily
	chain   Chain
	touched touched
}

// mutate runs fn under the tenant lock inside one storage transaction and
// notifies observers after a successful commit.
func (s *Service) mutate(ctx context.Context, tenant, op string, fn func(ctx context.Context, u *unit) (string, error)) ([]core.Period, error) {
	if strings.TrimSpace(tenant) == "" {
		return nil, core.InvalidArgument("tenant is required")
	}

	lockCtx := ctx
	if s.opts.LockTimeout > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, s.opts.LockTimeout)
		defer cancel()
	}
	unlock, err := s.locker.Lock(lockCtx, tenant)
	if err != nil {
		return nil, core.Internal("tenant busy", err)
	}
	defer unlock()

	var (
		entryID string
		t       = touched{}
	)
	err = s.store.Update(ctx, tenant, func(tx storage.Tx) error {
		u := &unit{tx: tx, daily: NewDaily(tx), chain: NewChain(tx), touched: t}
		id, err := fn(ctx, u)
		entryID = id
		return err
	})
	if err != nil {
		s.logger.WarnContext(ctx, "Ledger mutation rolled back",
			log.FieldTenant, tenant,
			log.FieldOperation, op,
			log.FieldError, err.Error())
		return nil, err
	}

	periods := t.sorted()
	change := Change{Tenant: tenant, Operation: op, EntryID: entryID, Periods: periods, At: s.opts.Now().UTC()}
	for _, o := range s.observers {
		o.LedgerChanged(ctx, change)
	}
	return periods, nil
}

func (s *Service) view(ctx context.Context, tenant string, fn func(tx storage.Tx) error) error {
	if strings.TrimSpace(tenant) == "" {
		return core.InvalidArgument("tenant is required")
	}
	return s.store.View(ctx, tenant, fn)
}

// CreateEntry records an income or expense. Transfers go through Transfer.
func (s *Service) CreateEntry(ctx context.Context, tenant string, in core.EntryInput) (core.LedgerEntry, error) {
	if err := in.Validate(); err != nil {
		return core.LedgerEntry{}, core.Invalid(err)
	}
	if core.IsReserved(in.Category) {
		return core.LedgerEntry{}, core.InvalidArgument("category %q is reserved, use a transfer", in.Category)
	}

	e := core.LedgerEntry{
		ID:        s.opts.NewID(),
		Tenant:    tenant,
		Date:      in.Date,
		Type:      in.Type,
		Category:  strings.TrimSpace(in.Category),
		Amount:    in.Amount,
		Method:    strings.TrimSpace(in.Method),
		Note:      in.Note,
		CreatedAt: s.opts.Now().UTC(),
	}
	_, err := s.mutate(ctx, tenant, OpCreateEntry, func(ctx context.Context, u *unit) (string, error) {
		if err := u.tx.PutEntry(ctx, e); err != nil {
			return "", err
		}
		return e.ID, s.apply(ctx, u, e, 1)
	})
	if err != nil {
		return core.LedgerEntry{}, err
	}
	s.structLog.LogEntryRecorded(ctx, tenant, log.OpCreate, e.ID, string(e.Type), e.Category, e.Method, e.Amount.Cents)
	return e, nil
}

// UpdateEntry reverses the entry, deletes it and records its replacement,
// built from the original fields overlaid with patch. The replacement gets a
// new id.
func (s *Service) UpdateEntry(ctx context.Context, tenant, id string, patch core.EntryPatch) (core.LedgerEntry, error) {
	var next core.LedgerEntry
	_, err := s.mutate(ctx, tenant, OpUpdateEntry, func(ctx context.Context, u *unit) (string, error) {
		orig, err := u.tx.Entry(ctx, id)
		if err != nil {
			return "", err
		}
		if err := s.apply(ctx, u, orig, -1); err != nil {
			return "", fmt.Errorf("reverse entry %s: %w", id, err)
		}
		if err := u.tx.DeleteEntry(ctx, id); err != nil {
			return "", err
		}

		next, err = s.replacement(ctx, u, orig, patch)
		if err != nil {
			return "", err
		}
		if err := u.tx.PutEntry(ctx, next); err != nil {
			return "", err
		}
		return next.ID, s.apply(ctx, u, next, 1)
	})
	if err != nil {
		return core.LedgerEntry{}, err
	}
	s.structLog.LogEntryRecorded(ctx, tenant, log.OpUpdate, next.ID, string(next.Type), next.Category, next.Method, next.Amount.Cents)
	return next, nil
}

func (s *Service) replacement(ctx context.Context, u *unit, orig core.LedgerEntry, patch core.EntryPatch) (core.LedgerEntry, error) {
	next := patch.Apply(orig)
	next.ID = s.opts.NewID()
	next.CreatedAt = s.opts.Now().UTC()
	next.Category = strings.TrimSpace(next.Category)
	next.Method = strings.TrimSpace(next.Method)

	if !next.IsTransfer() {
		next.To = ""
		if err := next.Input().Validate(); err != nil {
			return next, core.Invalid(err)
		}
		return next, nil
	}

	kind := core.KindForCategory(next.Category)
	if patch.Note == nil && (patch.To != nil || patch.Category != nil || !orig.IsTransfer()) {
		next.Note = kind.Note(next.To)
	}
	next.Type = core.Expense
	in := core.TransferInput{Date: next.Date, From: next.Method, To: next.To, Amount: next.Amount, Kind: kind}
	if err := in.Validate(); err != nil {
		return next, core.Invalid(err)
	}
	if err := requireMethods(ctx, u.tx, next.Method, next.To); err != nil {
		return next, err
	}
	return next, nil
}

// RemoveEntry reverses the entry's effect on every aggregate and deletes it.
func (s *Service) RemoveEntry(ctx context.Context, tenant, id string) error {
	var removed core.LedgerEntry
	_, err := s.mutate(ctx, tenant, OpRemoveEntry, func(ctx context.Context, u *unit) (string, error) {
		orig, err := u.tx.Entry(ctx, id)
		if err != nil {
			return "", err
		}
		removed = orig
		if err := s.apply(ctx, u, orig, -1); err != nil {
			return "", fmt.Errorf("reverse entry %s: %w", id, err)
		}
		return id, u.tx.DeleteEntry(ctx, id)
	})
	if err != nil {
		return err
	}
	s.structLog.LogEntryRecorded(ctx, tenant, log.OpDelete, id, string(removed.Type), removed.Category, removed.Method, removed.Amount.Cents)
	return nil
}

// apply pushes sign*amount of e through the daily bucket and the month
// chain, along the transfer path when e is a transfer.
func (s *Service) apply(ctx context.Context, u *unit, e core.LedgerEntry, sign int64) error {
	signed := sign * e.Amount.Cents

	if !e.IsTransfer() || s.opts.IncludeTransfersInDaily {
		if _, err := u.daily.ApplyDelta(ctx, e.Date, e.Type, e.Category, signed); err != nil {
			return err
		}
	}

	p := e.Date.Period()
	m, err := u.chain.EnsurePeriod(ctx, p)
	if err != nil {
		return err
	}

	var shift core.BalanceShift
	if e.IsTransfer() {
		if err := m.ApplyTransfer(e.Method, e.To, signed); err != nil {
			return err
		}
		shift = core.TransferShift(e.Method, e.To, signed)
	} else {
		if err := m.ApplyEntry(e.Type, e.Category, e.Method, signed); err != nil {
			return err
		}
		shift = core.EntryShift(e.Type, e.Method, signed)
	}
	if err := u.chain.Save(ctx, m); err != nil {
		return err
	}
	u.touched.add(p)

	later, err := u.chain.PropagateForward(ctx, m, shift)
	if err != nil {
		return fmt.Errorf("propagate from %s: %w", p.Key(), err)
	}
	u.touched.add(later...)
	return nil
}

// Entry returns one entry.
func (s *Service) Entry(ctx context.Context, tenant, id string) (core.LedgerEntry, error) {
	var e core.LedgerEntry
	err := s.view(ctx, tenant, func(tx storage.Tx) error {
		var err error
		e, err = tx.Entry(ctx, id)
		return err
	})
	return e, err
}

// Entries lists entries matching f, ordered by date.
func (s *Service) Entries(ctx context.Context, tenant string, f storage.EntryFilter) ([]core.LedgerEntry, error) {
	var out []core.LedgerEntry
	err := s.view(ctx, tenant, func(tx storage.Tx) error {
		var err error
		out, err = tx.Entries(ctx, f)
		return err
	})
	return out, err
}

// DailyByDate returns the bucket of one day.
func (s *Service) DailyByDate(ctx context.Context, tenant string, d core.Date) (core.DailySummary, bool, error) {
	var (
		out core.DailySummary
		ok  bool
	)
	err := s.view(ctx, tenant, func(tx storage.Tx) error {
		var err error
		out, ok, err = NewDaily(tx).ByDate(ctx, d)
		return err
	})
	return out, ok, err
}

// DailyRange returns the buckets with from <= date < to.
func (s *Service) DailyRange(ctx context.Context, tenant string, from, to core.Date) ([]core.DailySummary, error) {
	var out []core.DailySummary
	err := s.view(ctx, tenant, func(tx storage.Tx) error {
		var err error
		out, err = NewDaily(tx).ByRange(ctx, from, to)
		return err
	})
	return out, err
}

// DailyByMonth returns the buckets of one month.
func (s *Service) DailyByMonth(ctx context.Context, tenant string, p core.Period) ([]core.DailySummary, error) {
	return s.DailyRange(ctx, tenant, p.Start(), p.Next().Start())
}

// MonthlyByYear returns the stored months of year.
func (s *Service) MonthlyByYear(ctx context.Context, tenant string, year int) ([]core.MonthlySummary, error) {
	var out []core.MonthlySummary
	err := s.view(ctx, tenant, func(tx storage.Tx) error {
		var err error
		out, err = NewChain(tx).ByYear(ctx, year)
		return err
	})
	return out, err
}

// MonthlyByPeriods returns the stored months among periods.
func (s *Service) MonthlyByPeriods(ctx context.Context, tenant string, periods []core.Period) ([]core.MonthlySummary, error) {
	var out []core.MonthlySummary
	err := s.view(ctx, tenant, func(tx storage.Tx) error {
		var err error
		out, err = NewChain(tx).ByPeriods(ctx, periods)
		return err
	})
	return out, err
}

// Ready reports whether the backing store answers.
func (s *Service) Ready(ctx context.Context) error {
	return s.store.Ping(ctx)
}
