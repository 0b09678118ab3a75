package ledger

import (
	"context"
	"strings"

	"bilancio/internal/core"
	"bilancio/internal/storage"
)

// CreateCategory adds a category, reactivating an inactive one of the same
// name.
func (s *Service) CreateCategory(ctx context.Context, tenant string, c core.Category) (core.Category, error) {
	c.Name = strings.TrimSpace(c.Name)
	c.Active = true
	if err := c.Validate(); err != nil {
		return c, core.Invalid(err)
	}
	_, err := s.mutate(ctx, tenant, OpDirectory, func(ctx context.Context, u *unit) (string, error) {
		existing, ok, err := u.tx.Category(ctx, c.Name)
		if err != nil {
			return "", err
		}
		if ok && existing.Active {
			return "", core.Conflict("category %q already exists", c.Name)
		}
		return "", u.tx.PutCategory(ctx, c)
	})
	return c, err
}

// Categories lists the directory, inactive records included.
func (s *Service) Categories(ctx context.Context, tenant string) ([]core.Category, error) {
	var out []core.Category
	err := s.view(ctx, tenant, func(tx storage.Tx) error {
		var err error
		out, err = tx.Categories(ctx)
		return err
	})
	return out, err
}

// DeactivateCategory soft-deletes a category. History is kept.
func (s *Service) DeactivateCategory(ctx context.Context, tenant, name string) error {
	_, err := s.mutate(ctx, tenant, OpDirectory, func(ctx context.Context, u *unit) (string, error) {
		c, ok, err := u.tx.Category(ctx, name)
		if err != nil {
			return "", err
		}
		if !ok || !c.Active {
			return "", core.NotFound("category %q not found", name)
		}
		c.Active = false
		return "", u.tx.PutCategory(ctx, c)
	})
	return err
}

// CreatePaymentMethod adds a payment method, reactivating an inactive one of
// the same name.
func (s *Service) CreatePaymentMethod(ctx context.Context, tenant string, m core.PaymentMethod) (core.PaymentMethod, error) {
	m.Name = strings.TrimSpace(m.Name)
	m.Active = true
	if err := m.Validate(); err != nil {
		return m, core.Invalid(err)
	}
	_, err := s.mutate(ctx, tenant, OpDirectory, func(ctx context.Context, u *unit) (string, error) {
		existing, ok, err := u.tx.PaymentMethod(ctx, m.Name)
		if err != nil {
			return "", err
		}
		if ok && existing.Active {
			return "", core.Conflict("payment method %q already exists", m.Name)
		}
		return "", u.tx.PutPaymentMethod(ctx, m)
	})
	return m, err
}

// PaymentMethods lists the directory, inactive records included.
func (s *Service) PaymentMethods(ctx context.Context, tenant string) ([]core.PaymentMethod, error) {
	var out []core.PaymentMethod
	err := s.view(ctx, tenant, func(tx storage.Tx) error {
		var err error
		out, err = tx.PaymentMethods(ctx)
		return err
	})
	return out, err
}

// MethodPatch changes the name and/or color of a payment method.
type MethodPatch struct {
	Name  *string
	Color *string
}

// UpdatePaymentMethod applies patch; a name change cascades like
// RenamePaymentMethod within the same transaction.
func (s *Service) UpdatePaymentMethod(ctx context.Context, tenant, name string, patch MethodPatch) (core.PaymentMethod, error) {
	if patch.Color != nil && *patch.Color != "" && !core.ValidColor(*patch.Color) {
		return core.PaymentMethod{}, core.InvalidArgument("color must be a hex value like #1A2B3C")
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return core.PaymentMethod{}, core.InvalidArgument("new payment method name is required")
	}

	var out core.PaymentMethod
	op := OpDirectory
	if patch.Name != nil && strings.TrimSpace(*patch.Name) != name {
		op = OpRenameMethod
	}
	_, err := s.mutate(ctx, tenant, op, func(ctx context.Context, u *unit) (string, error) {
		if op == OpRenameMethod {
			next := strings.TrimSpace(*patch.Name)
			if err := s.renameMethod(ctx, u, name, next); err != nil {
				return "", err
			}
			name = next
		}
		m, ok, err := u.tx.PaymentMethod(ctx, name)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", core.NotFound("payment method %q not found", name)
		}
		if patch.Color != nil {
			m.Color = *patch.Color
		}
		out = m
		return "", u.tx.PutPaymentMethod(ctx, m)
	})
	return out, err
}

// DeactivatePaymentMethod soft-deletes a payment method. It is refused while
// the latest month still holds a non-zero balance on it.
func (s *Service) DeactivatePaymentMethod(ctx context.Context, tenant, name string) error {
	_, err := s.mutate(ctx, tenant, OpDirectory, func(ctx context.Context, u *unit) (string, error) {
		m, ok, err := u.tx.PaymentMethod(ctx, name)
		if err != nil {
			return "", err
		}
		if !ok || !m.Active {
			return "", core.NotFound("payment method %q not found", name)
		}
		latest, ok, err := u.chain.Latest(ctx)
		if err != nil {
			return "", err
		}
		if ok && latest.FinalBalance[name] != 0 {
			return "", core.FailedPrecondition("payment method %q still holds %s in %s",
				name, core.Money{Cents: latest.FinalBalance[name]}, latest.Period.Key())
		}
		m.Active = false
		return "", u.tx.PutPaymentMethod(ctx, m)
	})
	return err
}

// MonthData bundles what a month view needs.
type MonthData struct {
	Period            core.Period
	Entries           []core.LedgerEntry
	Summary           *core.MonthlySummary
	IncomeCategories  []string
	ExpenseCategories []string
	PaymentMethods    []string
}

// MonthData returns the month's entries and summary with the active
// directory names.
func (s *Service) MonthData(ctx context.Context, tenant string, p core.Period) (MonthData, error) {
	out := MonthData{Period: p, IncomeCategories: []string{}, ExpenseCategories: []string{}, PaymentMethods: []string{}}
	err := s.view(ctx, tenant, func(tx storage.Tx) error {
		entries, err := tx.Entries(ctx, storage.EntryFilter{From: p.Start(), To: p.Next().Start()})
		if err != nil {
			return err
		}
		out.Entries = entries

		m, ok, err := tx.Monthly(ctx, p)
		if err != nil {
			return err
		}
		if ok {
			out.Summary = &m
		}

		cats, err := tx.Categories(ctx)
		if err != nil {
			return err
		}
		for _, c := range cats {
			switch {
			case !c.Active:
			case c.Type == core.Income:
				out.IncomeCategories = append(out.IncomeCategories, c.Name)
			default:
				out.ExpenseCategories = append(out.ExpenseCategories, c.Name)
			}
		}

		methods, err := tx.PaymentMethods(ctx)
		if err != nil {
			return err
		}
		for _, pm := range methods {
			if pm.Active {
				out.PaymentMethods = append(out.PaymentMethods, pm.Name)
			}
		}
		return nil
	})
	return out, err
}

// NetProfitPoint is one month of the net-profit series.
type NetProfitPoint struct {
	Month     string     `json:"month"`
	NetProfit core.Money `json:"net_profit"`
}

// MinForecastMonths is the shortest history accepted by NetProfitSeries.
const MinForecastMonths = 12

// NetProfitSeries returns the net profit of every stored month, ascending.
func (s *Service) NetProfitSeries(ctx context.Context, tenant string) ([]NetProfitPoint, error) {
	var months []core.MonthlySummary
	err := s.view(ctx, tenant, func(tx storage.Tx) error {
		var err error
		months, err = tx.AllMonthly(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(months) < MinForecastMonths {
		return nil, core.InvalidArgument("at least %d months of history are required, found %d", MinForecastMonths, len(months))
	}
	out := make([]NetProfitPoint, len(months))
	for i, m := range months {
		out[i] = NetProfitPoint{Month: m.Period.Key(), NetProfit: core.Money{Cents: m.Totals.NetProfit}}
	}
	return out, nil
}
