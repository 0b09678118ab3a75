package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"bilancio/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository stores every tenant in one SQLite database. Write
// transactions start with BEGIN IMMEDIATE so concurrent writers queue on
// the database lock instead of failing at commit time.
type SQLiteRepository struct {
	db *sql.DB
}

// sqliteDSN enables WAL, a busy timeout and immediate write transactions.
func sqliteDSN(path string) string {
	return "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := sqliteDSN(dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Update(ctx context.Context, tenant string, fn func(Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&sqliteTx{tx: tx, tenant: tenant}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// View runs fn in a transaction that is always rolled back.
func (r *SQLiteRepository) View(ctx context.Context, tenant string, fn func(Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()
	return fn(&sqliteTx{tx: tx, tenant: tenant})
}

type sqliteTx struct {
	tx     *sql.Tx
	tenant string
}

const entryColumns = `id, tenant, entry_date, entry_type, category, amount_cents, method, note, transfer_to, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (core.LedgerEntry, error) {
	var (
		e                   core.LedgerEntry
		day, typ, createdAt string
	)
	if err := row.Scan(&e.ID, &e.Tenant, &day, &typ, &e.Category, &e.Amount.Cents, &e.Method, &e.Note, &e.To, &createdAt); err != nil {
		return e, err
	}
	d, err := core.ParseDate(day)
	if err != nil {
		return e, fmt.Errorf("parse entry date: %w", err)
	}
	e.Date = d
	e.Type = core.EntryType(typ)
	e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return e, nil
}

func (t *sqliteTx) Entry(ctx context.Context, id string) (core.LedgerEntry, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM ledger_entries WHERE tenant = ? AND id = ?`, t.tenant, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return e, core.NotFound("entry %s not found", id)
	}
	if err != nil {
		return e, fmt.Errorf("get entry: %w", err)
	}
	return e, nil
}

func (t *sqliteTx) Entries(ctx context.Context, f EntryFilter) ([]core.LedgerEntry, error) {
	where := []string{"tenant = ?"}
	args := []any{t.tenant}
	if !f.From.IsZero() {
		where = append(where, "entry_date >= ?")
		args = append(args, f.From.Key())
	}
	if !f.To.IsZero() {
		where = append(where, "entry_date < ?")
		args = append(args, f.To.Key())
	}
	if f.Category != "" {
		where = append(where, "category = ?")
		args = append(args, f.Category)
	}
	if f.Method != "" {
		where = append(where, "(method = ? OR transfer_to = ?)")
		args = append(args, f.Method, f.Method)
	}
	query := `SELECT ` + entryColumns + ` FROM ledger_entries WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY entry_date, created_at, id`

	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	out := []core.LedgerEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (t *sqliteTx) PutEntry(ctx context.Context, e core.LedgerEntry) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO ledger_entries (`+entryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			entry_date = excluded.entry_date,
			entry_type = excluded.entry_type,
			category = excluded.category,
			amount_cents = excluded.amount_cents,
			method = excluded.method,
			note = excluded.note,
			transfer_to = excluded.transfer_to`,
		e.ID, t.tenant, e.Date.Key(), string(e.Type), e.Category, e.Amount.Cents, e.Method, e.Note, e.To,
		e.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("put entry: %w", err)
	}
	return nil
}

func (t *sqliteTx) DeleteEntry(ctx context.Context, id string) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM ledger_entries WHERE tenant = ? AND id = ?`, t.tenant, id)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.NotFound("entry %s not found", id)
	}
	return nil
}

func (t *sqliteTx) RenameEntryCategory(ctx context.Context, old, new string) (int64, error) {
	res, err := t.tx.ExecContext(ctx, `UPDATE ledger_entries SET category = ? WHERE tenant = ? AND category = ?`, new, t.tenant, old)
	if err != nil {
		return 0, fmt.Errorf("rename entry category: %w", err)
	}
	return res.RowsAffected()
}

func (t *sqliteTx) RenameEntryMethod(ctx context.Context, old, new string) (int64, error) {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE ledger_entries SET
			method = CASE WHEN method = ?1 THEN ?2 ELSE method END,
			transfer_to = CASE WHEN transfer_to = ?1 THEN ?2 ELSE transfer_to END
		WHERE tenant = ?3 AND (method = ?1 OR transfer_to = ?1)`, old, new, t.tenant)
	if err != nil {
		return 0, fmt.Errorf("rename entry method: %w", err)
	}
	return res.RowsAffected()
}

const dailyColumns = `day, income_cents, expense_cents, net_profit_cents, categories_income, categories_expense`

func scanDaily(row rowScanner) (core.DailySummary, error) {
	var (
		s                 core.DailySummary
		day, incJS, expJS string
	)
	if err := row.Scan(&day, &s.IncomeTotal, &s.ExpenseTotal, &s.NetProfit, &incJS, &expJS); err != nil {
		return s, err
	}
	d, err := core.ParseDate(day)
	if err != nil {
		return s, fmt.Errorf("parse summary day: %w", err)
	}
	s.Date = d
	if s.CategoriesIncome, err = decodeAmounts(incJS); err != nil {
		return s, err
	}
	if s.CategoriesExpense, err = decodeAmounts(expJS); err != nil {
		return s, err
	}
	return s, nil
}

func (t *sqliteTx) Daily(ctx context.Context, d core.Date) (core.DailySummary, bool, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+dailyColumns+` FROM daily_summaries WHERE tenant = ? AND day = ?`, t.tenant, d.Key())
	s, err := scanDaily(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.DailySummary{}, false, nil
	}
	if err != nil {
		return s, false, fmt.Errorf("get daily summary: %w", err)
	}
	return s, true, nil
}

func (t *sqliteTx) DailyRange(ctx context.Context, from, to core.Date) ([]core.DailySummary, error) {
	return t.queryDaily(ctx, `SELECT `+dailyColumns+` FROM daily_summaries WHERE tenant = ? AND day >= ? AND day < ? ORDER BY day`,
		t.tenant, from.Key(), to.Key())
}

func (t *sqliteTx) AllDaily(ctx context.Context) ([]core.DailySummary, error) {
	return t.queryDaily(ctx, `SELECT `+dailyColumns+` FROM daily_summaries WHERE tenant = ? ORDER BY day`, t.tenant)
}

func (t *sqliteTx) queryDaily(ctx context.Context, query string, args ...any) ([]core.DailySummary, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list daily summaries: %w", err)
	}
	defer rows.Close()

	out := []core.DailySummary{}
	for rows.Next() {
		s, err := scanDaily(rows)
		if err != nil {
			return nil, fmt.Errorf("scan daily summary: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (t *sqliteTx) PutDaily(ctx context.Context, s core.DailySummary) error {
	incJS, err := encodeAmounts(s.CategoriesIncome)
	if err != nil {
		return err
	}
	expJS, err := encodeAmounts(s.CategoriesExpense)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO daily_summaries (tenant, `+dailyColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant, day) DO UPDATE SET
			income_cents = excluded.income_cents,
			expense_cents = excluded.expense_cents,
			net_profit_cents = excluded.net_profit_cents,
			categories_income = excluded.categories_income,
			categories_expense = excluded.categories_expense`,
		t.tenant, s.Date.Key(), s.IncomeTotal, s.ExpenseTotal, s.NetProfit, incJS, expJS)
	if err != nil {
		return fmt.Errorf("put daily summary: %w", err)
	}
	return nil
}

const monthlyColumns = `period_index, initial_balance, final_balance, total_income_cents, total_expense_cents,
	net_profit_cents, profit_margin, categories_income, categories_expense, method_uses`

func scanMonthly(row rowScanner) (core.MonthlySummary, error) {
	var (
		m     core.MonthlySummary
		index int
	)
	var initJS, finalJS, incJS, expJS, usesJS string
	if err := row.Scan(&index, &initJS, &finalJS, &m.Totals.TotalIncome, &m.Totals.TotalExpense,
		&m.Totals.NetProfit, &m.Totals.ProfitMargin, &incJS, &expJS, &usesJS); err != nil {
		return m, err
	}
	m.Period = core.PeriodFromIndex(index)
	var err error
	for _, f := range []struct {
		dst *core.Amounts
		src string
	}{
		{&m.InitialBalance, initJS},
		{&m.FinalBalance, finalJS},
		{&m.CategoriesIncome, incJS},
		{&m.CategoriesExpense, expJS},
		{&m.MethodUses, usesJS},
	} {
		if *f.dst, err = decodeAmounts(f.src); err != nil {
			return m, err
		}
	}
	return m, nil
}

func (t *sqliteTx) Monthly(ctx context.Context, p core.Period) (core.MonthlySummary, bool, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+monthlyColumns+` FROM monthly_summaries WHERE tenant = ? AND period_index = ?`, t.tenant, p.Index())
	m, err := scanMonthly(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.MonthlySummary{}, false, nil
	}
	if err != nil {
		return m, false, fmt.Errorf("get monthly summary: %w", err)
	}
	return m, true, nil
}

func (t *sqliteTx) MonthlyRange(ctx context.Context, from, to core.Period) ([]core.MonthlySummary, error) {
	return t.queryMonthly(ctx, `SELECT `+monthlyColumns+` FROM monthly_summaries
		WHERE tenant = ? AND period_index >= ? AND period_index <= ? ORDER BY period_index`,
		t.tenant, from.Index(), to.Index())
}

func (t *sqliteTx) AllMonthly(ctx context.Context) ([]core.MonthlySummary, error) {
	return t.queryMonthly(ctx, `SELECT `+monthlyColumns+` FROM monthly_summaries WHERE tenant = ? ORDER BY period_index`, t.tenant)
}

func (t *sqliteTx) queryMonthly(ctx context.Context, query string, args ...any) ([]core.MonthlySummary, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list monthly summaries: %w", err)
	}
	defer rows.Close()

	out := []core.MonthlySummary{}
	for rows.Next() {
		m, err := scanMonthly(rows)
		if err != nil {
			return nil, fmt.Errorf("scan monthly summary: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (t *sqliteTx) PutMonthly(ctx context.Context, m core.MonthlySummary) error {
	var js [5]string
	for i, a := range []core.Amounts{m.InitialBalance, m.FinalBalance, m.CategoriesIncome, m.CategoriesExpense, m.MethodUses} {
		s, err := encodeAmounts(a)
		if err != nil {
			return err
		}
		js[i] = s
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO monthly_summaries (tenant, period_key, `+monthlyColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant, period_index) DO UPDATE SET
			initial_balance = excluded.initial_balance,
			final_balance = excluded.final_balance,
			total_income_cents = excluded.total_income_cents,
			total_expense_cents = excluded.total_expense_cents,
			net_profit_cents = excluded.net_profit_cents,
			profit_margin = excluded.profit_margin,
			categories_income = excluded.categories_income,
			categories_expense = excluded.categories_expense,
			method_uses = excluded.method_uses`,
		t.tenant, m.Period.Key(), m.Period.Index(), js[0], js[1],
		m.Totals.TotalIncome, m.Totals.TotalExpense, m.Totals.NetProfit, m.Totals.ProfitMargin, js[2], js[3], js[4])
	if err != nil {
		return fmt.Errorf("put monthly summary %s: %w", m.Period.Key(), err)
	}
	return nil
}

func (t *sqliteTx) Category(ctx context.Context, name string) (core.Category, bool, error) {
	var (
		c   core.Category
		typ string
	)
	err := t.tx.QueryRowContext(ctx, `SELECT name, entry_type, active FROM categories WHERE tenant = ? AND name = ?`, t.tenant, name).
		Scan(&c.Name, &typ, &c.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return c, false, nil
	}
	if err != nil {
		return c, false, fmt.Errorf("get category: %w", err)
	}
	c.Type = core.EntryType(typ)
	return c, true, nil
}

func (t *sqliteTx) Categories(ctx context.Context) ([]core.Category, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT name, entry_type, active FROM categories WHERE tenant = ? ORDER BY name`, t.tenant)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	out := []core.Category{}
	for rows.Next() {
		var (
			c   core.Category
			typ string
		)
		if err := rows.Scan(&c.Name, &typ, &c.Active); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.Type = core.EntryType(typ)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (t *sqliteTx) PutCategory(ctx context.Context, c core.Category) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO categories (tenant, name, entry_type, active) VALUES (?, ?, ?, ?)
		ON CONFLICT (tenant, name) DO UPDATE SET entry_type = excluded.entry_type, active = excluded.active`,
		t.tenant, c.Name, string(c.Type), c.Active)
	if err != nil {
		return fmt.Errorf("put category: %w", err)
	}
	return nil
}

func (t *sqliteTx) DeleteCategory(ctx context.Context, name string) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM categories WHERE tenant = ? AND name = ?`, t.tenant, name); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return nil
}

func (t *sqliteTx) PaymentMethod(ctx context.Context, name string) (core.PaymentMethod, bool, error) {
	var (
		m   core.PaymentMethod
		typ string
	)
	err := t.tx.QueryRowContext(ctx, `SELECT name, method_type, color, active FROM payment_methods WHERE tenant = ? AND name = ?`, t.tenant, name).
		Scan(&m.Name, &typ, &m.Color, &m.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return m, false, nil
	}
	if err != nil {
		return m, false, fmt.Errorf("get payment method: %w", err)
	}
	m.Type = core.MethodType(typ)
	return m, true, nil
}

func (t *sqliteTx) PaymentMethods(ctx context.Context) ([]core.PaymentMethod, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT name, method_type, color, active FROM payment_methods WHERE tenant = ? ORDER BY name`, t.tenant)
	if err != nil {
		return nil, fmt.Errorf("list payment methods: %w", err)
	}
	defer rows.Close()

	out := []core.PaymentMethod{}
	for rows.Next() {
		var (
			m   core.PaymentMethod
			typ string
		)
		if err := rows.Scan(&m.Name, &typ, &m.Color, &m.Active); err != nil {
			return nil, fmt.Errorf("scan payment method: %w", err)
		}
		m.Type = core.MethodType(typ)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (t *sqliteTx) PutPaymentMethod(ctx context.Context, m core.PaymentMethod) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO payment_methods (tenant, name, method_type, color, active) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (tenant, name) DO UPDATE SET
			method_type = excluded.method_type, color = excluded.color, active = excluded.active`,
		t.tenant, m.Name, string(m.Type), m.Color, m.Active)
	if err != nil {
		return fmt.Errorf("put payment method: %w", err)
	}
	return nil
}

func (t *sqliteTx) DeletePaymentMethod(ctx context.Context, name string) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM payment_methods WHERE tenant = ? AND name = ?`, t.tenant, name); err != nil {
		return fmt.Errorf("delete payment method: %w", err)
	}
	return nil
}

func encodeAmounts(a core.Amounts) (string, error) {
	if a == nil {
		return "{}", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return "", fmt.Errorf("encode amounts: %w", err)
	}
	return string(b), nil
}

func decodeAmounts(s string) (core.Amounts, error) {
	out := core.Amounts{}
	if s == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("decode amounts: %w", err)
	}
	return out, nil
}
