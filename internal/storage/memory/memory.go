// Package memory is an in-process storage.Store. Every Update works on a
// private copy of the tenant state that replaces the live one only when the
// callback succeeds.
package memory

import (
	"bufio"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"bilancio/internal/core"
	"bilancio/internal/storage"
)

var errReadOnly = errors.New("memory store: write inside a read-only view")

type Store struct {
	mu      sync.RWMutex
	tenants map[string]*state
	cats    []core.Category
	methods []core.PaymentMethod
}

type state struct {
	entries    map[string]core.LedgerEntry
	daily      map[string]core.DailySummary
	monthly    map[int]core.MonthlySummary
	categories map[string]core.Category
	methods    map[string]core.PaymentMethod
}

// New returns a store whose tenants start with the given directory records.
func New(cats []core.Category, methods []core.PaymentMethod) *Store {
	return &Store{tenants: map[string]*state{}, cats: cats, methods: methods}
}

// NewFromFiles seeds every new tenant from seed_categories.txt and
// seed_payment_methods.txt in base. Lines read "type,name" and
// "type,name[,color]" respectively; blanks and # comments are skipped.
func NewFromFiles(base string) *Store {
	var cats []core.Category
	for _, line := range readLines(filepath.Join(base, "seed_categories.txt")) {
		typ, name, ok := strings.Cut(line, ",")
		c := core.Category{Name: strings.TrimSpace(name), Type: core.EntryType(strings.TrimSpace(typ)), Active: true}
		if ok && c.Validate() == nil {
			cats = append(cats, c)
		}
	}
	var methods []core.PaymentMethod
	for _, line := range readLines(filepath.Join(base, "seed_payment_methods.txt")) {
		parts := strings.Split(line, ",")
		if len(parts) < 2 {
			continue
		}
		m := core.PaymentMethod{Type: core.MethodType(strings.TrimSpace(parts[0])), Name: strings.TrimSpace(parts[1]), Active: true}
		if len(parts) > 2 {
			m.Color = strings.TrimSpace(parts[2])
		}
		if m.Validate() == nil {
			methods = append(methods, m)
		}
	}
	return New(cats, methods)
}

func (s *Store) Update(ctx context.Context, tenant string, fn func(storage.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	work := s.current(tenant).clone()
	if err := fn(&tx{st: work}); err != nil {
		return err
	}
	s.tenants[tenant] = work
	return nil
}

func (s *Store) View(ctx context.Context, tenant string, fn func(storage.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&tx{st: s.current(tenant), readOnly: true})
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

// current returns the live state, or a freshly seeded one that is not yet
// registered.
func (s *Store) current(tenant string) *state {
	if st, ok := s.tenants[tenant]; ok {
		return st
	}
	st := &state{
		entries:    map[string]core.LedgerEntry{},
		daily:      map[string]core.DailySummary{},
		monthly:    map[int]core.MonthlySummary{},
		categories: map[string]core.Category{},
		methods:    map[string]core.PaymentMethod{},
	}
	for _, c := range s.cats {
		st.categories[c.Name] = c
	}
	for _, m := range s.methods {
		st.methods[m.Name] = m
	}
	return st
}

func (st *state) clone() *state {
	out := &state{
		entries:    make(map[string]core.LedgerEntry, len(st.entries)),
		daily:      make(map[string]core.DailySummary, len(st.daily)),
		monthly:    make(map[int]core.MonthlySummary, len(st.monthly)),
		categories: make(map[string]core.Category, len(st.categories)),
		methods:    make(map[string]core.PaymentMethod, len(st.methods)),
	}
	for k, v := range st.entries {
		out.entries[k] = v
	}
	for k, v := range st.daily {
		out.daily[k] = v.Clone()
	}
	for k, v := range st.monthly {
		out.monthly[k] = v.Clone()
	}
	for k, v := range st.categories {
		out.categories[k] = v
	}
	for k, v := range st.methods {
		out.methods[k] = v
	}
	return out
}

type tx struct {
	st       *state
	readOnly bool
}

func (t *tx) write() error {
	if t.readOnly {
		return errReadOnly
	}
	return nil
}

func (t *tx) Entry(_ context.Context, id string) (core.LedgerEntry, error) {
	e, ok := t.st.entries[id]
	if !ok {
		return core.LedgerEntry{}, core.NotFound("entry %s not found", id)
	}
	return e, nil
}

func (t *tx) Entries(_ context.Context, f storage.EntryFilter) ([]core.LedgerEntry, error) {
	out := []core.LedgerEntry{}
	for _, e := range t.st.entries {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.Before(out[j].Date.Time)
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *tx) PutEntry(_ context.Context, e core.LedgerEntry) error {
	if err := t.write(); err != nil {
		return err
	}
	t.st.entries[e.ID] = e
	return nil
}

func (t *tx) DeleteEntry(_ context.Context, id string) error {
	if err := t.write(); err != nil {
		return err
	}
	if _, ok := t.st.entries[id]; !ok {
		return core.NotFound("entry %s not found", id)
	}
	delete(t.st.entries, id)
	return nil
}

func (t *tx) RenameEntryCategory(_ context.Context, old, new string) (int64, error) {
	if err := t.write(); err != nil {
		return 0, err
	}
	var n int64
	for id, e := range t.st.entries {
		if e.Category == old {
			e.Category = new
			t.st.entries[id] = e
			n++
		}
	}
	return n, nil
}

func (t *tx) RenameEntryMethod(_ context.Context, old, new string) (int64, error) {
	if err := t.write(); err != nil {
		return 0, err
	}
	var n int64
	for id, e := range t.st.entries {
		changed := false
		if e.Method == old {
			e.Method = new
			changed = true
		}
		if e.To == old {
			e.To = new
			changed = true
		}
		if changed {
			t.st.entries[id] = e
			n++
		}
	}
	return n, nil
}

func (t *tx) Daily(_ context.Context, d core.Date) (core.DailySummary, bool, error) {
	s, ok := t.st.daily[d.Key()]
	if !ok {
		return core.DailySummary{}, false, nil
	}
	return s.Clone(), true, nil
}

func (t *tx) DailyRange(_ context.Context, from, to core.Date) ([]core.DailySummary, error) {
	out := []core.DailySummary{}
	for _, s := range t.st.daily {
		if !s.Date.Before(from.Time) && s.Date.Before(to.Time) {
			out = append(out, s.Clone())
		}
	}
	sortDaily(out)
	return out, nil
}

func (t *tx) AllDaily(_ context.Context) ([]core.DailySummary, error) {
	out := make([]core.DailySummary, 0, len(t.st.daily))
	for _, s := range t.st.daily {
		out = append(out, s.Clone())
	}
	sortDaily(out)
	return out, nil
}

func (t *tx) PutDaily(_ context.Context, s core.DailySummary) error {
	if err := t.write(); err != nil {
		return err
	}
	t.st.daily[s.Date.Key()] = s.Clone()
	return nil
}

func (t *tx) Monthly(_ context.Context, p core.Period) (core.MonthlySummary, bool, error) {
	m, ok := t.st.monthly[p.Index()]
	if !ok {
		return core.MonthlySummary{}, false, nil
	}
	return m.Clone(), true, nil
}

func (t *tx) MonthlyRange(_ context.Context, from, to core.Period) ([]core.MonthlySummary, error) {
	out := []core.MonthlySummary{}
	for i, m := range t.st.monthly {
		if i >= from.Index() && i <= to.Index() {
			out = append(out, m.Clone())
		}
	}
	sortMonthly(out)
	return out, nil
}

func (t *tx) AllMonthly(_ context.Context) ([]core.MonthlySummary, error) {
	out := make([]core.MonthlySummary, 0, len(t.st.monthly))
	for _, m := range t.st.monthly {
		out = append(out, m.Clone())
	}
	sortMonthly(out)
	return out, nil
}

func (t *tx) PutMonthly(_ context.Context, m core.MonthlySummary) error {
	if err := t.write(); err != nil {
		return err
	}
	t.st.monthly[m.Period.Index()] = m.Clone()
	return nil
}

func (t *tx) Category(_ context.Context, name string) (core.Category, bool, error) {
	c, ok := t.st.categories[name]
	return c, ok, nil
}

func (t *tx) Categories(_ context.Context) ([]core.Category, error) {
	out := make([]core.Category, 0, len(t.st.categories))
	for _, c := range t.st.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (t *tx) PutCategory(_ context.Context, c core.Category) error {
	if err := t.write(); err != nil {
		return err
	}
	t.st.categories[c.Name] = c
	return nil
}

func (t *tx) DeleteCategory(_ context.Context, name string) error {
	if err := t.write(); err != nil {
		return err
	}
	delete(t.st.categories, name)
	return nil
}

func (t *tx) PaymentMethod(_ context.Context, name string) (core.PaymentMethod, bool, error) {
	m, ok := t.st.methods[name]
	return m, ok, nil
}

func (t *tx) PaymentMethods(_ context.Context) ([]core.PaymentMethod, error) {
	out := make([]core.PaymentMethod, 0, len(t.st.methods))
	for _, m := range t.st.methods {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (t *tx) PutPaymentMethod(_ context.Context, m core.PaymentMethod) error {
	if err := t.write(); err != nil {
		return err
	}
	t.st.methods[m.Name] = m
	return nil
}

func (t *tx) DeletePaymentMethod(_ context.Context, name string) error {
	if err := t.write(); err != nil {
		return err
	}
	delete(t.st.methods, name)
	return nil
}

func sortDaily(s []core.DailySummary) {
	sort.Slice(s, func(i, j int) bool { return s[i].Date.Before(s[j].Date.Time) })
}

func sortMonthly(s []core.MonthlySummary) {
	sort.Slice(s, func(i, j int) bool { return s[i].Period.Before(s[j].Period) })
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	seen := map[string]struct{}{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}
