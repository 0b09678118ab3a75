package ledger

import (
	"context"
	"fmt"
	"strings"

	"bilancio/internal/core"
	"bilancio/internal/log"
	"bilancio/internal/storage"
)

// RenameCategory renames a category in the directory, in every entry and in
// every daily and monthly category breakdown.
func (s *Service) RenameCategory(ctx context.Context, tenant, old, new string) error {
	new = strings.TrimSpace(new)
	if new == "" {
		return core.InvalidArgument("new category name is required")
	}
	if core.IsReserved(old) || core.IsReserved(new) {
		return core.InvalidArgument("reserved categories cannot be renamed")
	}
	if old == new {
		return nil
	}

	_, err := s.mutate(ctx, tenant, OpRenameCat, func(ctx context.Context, u *unit) (string, error) {
		return "", s.renameCategory(ctx, u, old, new)
	})
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Category renamed",
		log.FieldTenant, tenant,
		log.FieldOperation, log.OpRename,
		"from", old,
		"to", new)
	return nil
}

func (s *Service) renameCategory(ctx context.Context, u *unit, old, new string) error {
	cat, ok, err := u.tx.Category(ctx, old)
	if err != nil {
		return err
	}
	if !ok {
		return core.NotFound("category %q not found", old)
	}
	existing, ok, err := u.tx.Category(ctx, new)
	if err != nil {
		return err
	}
	if ok && existing.Active {
		return core.Conflict("category %q already exists", new)
	}
	if ok {
		used, err := hasEntries(ctx, u.tx, storage.EntryFilter{Category: new})
		if err != nil {
			return err
		}
		if used {
			return core.Conflict("inactive category %q still has entries", new)
		}
	}
	if err := u.tx.DeleteCategory(ctx, old); err != nil {
		return err
	}
	cat.Name = new
	if err := u.tx.PutCategory(ctx, cat); err != nil {
		return err
	}

	if _, err := u.tx.RenameEntryCategory(ctx, old, new); err != nil {
		return err
	}

	days, err := u.tx.AllDaily(ctx)
	if err != nil {
		return fmt.Errorf("load daily summaries: %w", err)
	}
	for _, d := range days {
		inc := d.CategoriesIncome.Rename(old, new)
		exp := d.CategoriesExpense.Rename(old, new)
		if !inc && !exp {
			continue
		}
		if err := u.tx.PutDaily(ctx, d); err != nil {
			return err
		}
	}

	months, err := u.tx.AllMonthly(ctx)
	if err != nil {
		return fmt.Errorf("load monthly summaries: %w", err)
	}
	for _, m := range months {
		inc := m.CategoriesIncome.Rename(old, new)
		exp := m.CategoriesExpense.Rename(old, new)
		if !inc && !exp {
			continue
		}
		if err := u.chain.Save(ctx, m); err != nil {
			return err
		}
		u.touched.add(m.Period)
	}
	return nil
}

// RenamePaymentMethod renames a payment method in the directory, in every
// entry (as source or transfer destination) and in every monthly balance.
func (s *Service) RenamePaymentMethod(ctx context.Context, tenant, old, new string) error {
	new = strings.TrimSpace(new)
	if new == "" {
		return core.InvalidArgument("new payment method name is required")
	}
	if old == new {
		return nil
	}

	_, err := s.mutate(ctx, tenant, OpRenameMethod, func(ctx context.Context, u *unit) (string, error) {
		return "", s.renameMethod(ctx, u, old, new)
	})
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Payment method renamed",
		log.FieldTenant, tenant,
		log.FieldOperation, log.OpRename,
		"from", old,
		"to", new)
	return nil
}

func (s *Service) renameMethod(ctx context.Context, u *unit, old, new string) error {
	m, ok, err := u.tx.PaymentMethod(ctx, old)
	if err != nil {
		return err
	}
	if !ok {
		return core.NotFound("payment method %q not found", old)
	}
	existing, ok, err := u.tx.PaymentMethod(ctx, new)
	if err != nil {
		return err
	}
	if ok && existing.Active {
		return core.Conflict("payment method %q already exists", new)
	}
	if ok {
		used, err := hasEntries(ctx, u.tx, storage.EntryFilter{Method: new})
		if err != nil {
			return err
		}
		if used {
			return core.Conflict("inactive payment method %q still has entries", new)
		}
	}
	if err := u.tx.DeletePaymentMethod(ctx, old); err != nil {
		return err
	}
	m.Name = new
	if err := u.tx.PutPaymentMethod(ctx, m); err != nil {
		return err
	}

	if _, err := u.tx.RenameEntryMethod(ctx, old, new); err != nil {
		return err
	}

	months, err := u.tx.AllMonthly(ctx)
	if err != nil {
		return fmt.Errorf("load monthly summaries: %w", err)
	}
	for _, sum := range months {
		initial := sum.InitialBalance.Rename(old, new)
		final := sum.FinalBalance.Rename(old, new)
		uses := sum.MethodUses.Rename(old, new)
		if !initial && !final && !uses {
			continue
		}
		if err := u.chain.Save(ctx, sum); err != nil {
			return err
		}
		u.touched.add(sum.Period)
	}
	return nil
}

// hasEntries reports whether any entry matches f.
func hasEntries(ctx context.Context, tx storage.EntryStore, f storage.EntryFilter) (bool, error) {
	entries, err := tx.Entries(ctx, f)
	if err != nil {
		return false, err
	}
	return len(entries) > 0, nil
}
