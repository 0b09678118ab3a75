// Package report builds range summaries (totals, category breakdowns and
// progressions) from the daily and monthly aggregates.
package report

import (
	"context"
	"strconv"
	"strings"
	"time"

	"bilancio/internal/core"
	"bilancio/internal/log"
)

const (
	RangeToday        = "today"
	RangeLast7Days    = "last-7-days"
	RangeLast30Days   = "last-30-days"
	RangeLast3Months  = "last-3-months"
	RangeLast6Months  = "last-6-months"
	RangeLast12Months = "last-12-months"
	RangeCustom       = "custom"

	ViewDaily   = "daily"
	ViewWeekly  = "weekly"
	ViewMonthly = "monthly"
)

var rollingMonths = map[string]int{
	RangeLast3Months:  3,
	RangeLast6Months:  6,
	RangeLast12Months: 12,
}

// Source reads aggregates of one tenant.
type Source interface {
	DailyRange(ctx context.Context, tenant string, from, to core.Date) ([]core.DailySummary, error)
	MonthlyByPeriods(ctx context.Context, tenant string, periods []core.Period) ([]core.MonthlySummary, error)
}

// Request selects the window and granularity of a summary. Year, Month and
// Day apply to the custom range only.
type Request struct {
	Range string
	View  string
	Year  string
	Month string
	Day   string
}

// CacheKey identifies the request for response caching.
func (r Request) CacheKey() string {
	return strings.Join([]string{r.Range, r.View, r.Year, r.Month, r.Day}, "|")
}

type Point struct {
	X string     `json:"x"`
	Y core.Money `json:"y"`
}

type Totals struct {
	Income       core.Money `json:"income"`
	Expense      core.Money `json:"expense"`
	NetProfit    core.Money `json:"net_profit"`
	ProfitMargin float64    `json:"profit_margin"`
}

type Categories struct {
	Income  []core.CategoryAmount `json:"income"`
	Expense []core.CategoryAmount `json:"expense"`
}

type Summary struct {
	Totals               Totals     `json:"totals"`
	Categories           Categories `json:"categories"`
	IncomeProgression    []Point    `json:"income_progression"`
	ExpenseProgression   []Point    `json:"expense_progression"`
	NetProfitProgression []Point    `json:"net_profit_progression"`
}

// Empty returns a summary with zero totals and empty lists.
func Empty() Summary {
	return Summary{
		Categories:           Categories{Income: []core.CategoryAmount{}, Expense: []core.CategoryAmount{}},
		IncomeProgression:    []Point{},
		ExpenseProgression:   []Point{},
		NetProfitProgression: []Point{},
	}
}

type Summarizer struct {
	src    Source
	logger *log.Logger
	now    func() time.Time
}

func New(src Source, logger *log.Logger, now func() time.Time) *Summarizer {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	if now == nil {
		now = time.Now
	}
	return &Summarizer{src: src, logger: logger.WithComponent(log.ComponentReport), now: now}
}

// bucket is one progression point before rendering.
type bucket struct {
	label           string
	income, expense int64
	catInc, catExp  core.Amounts
}

func newBucket(label string) *bucket {
	return &bucket{label: label, catInc: core.Amounts{}, catExp: core.Amounts{}}
}

func (b *bucket) addDaily(d core.DailySummary) {
	b.income += d.IncomeTotal
	b.expense += d.ExpenseTotal
	for k, v := range d.CategoriesIncome {
		b.catInc[k] += v
	}
	for k, v := range d.CategoriesExpense {
		b.catExp[k] += v
	}
}

func (b *bucket) addMonthly(m core.MonthlySummary) {
	b.income += m.Totals.TotalIncome
	b.expense += m.Totals.TotalExpense
	for k, v := range m.CategoriesIncome {
		b.catInc[k] += v
	}
	for k, v := range m.CategoriesExpense {
		b.catExp[k] += v
	}
}

// Summarize resolves req against the current UTC date and aggregates the
// matching buckets. Buckets with no data count as zero.
func (s *Summarizer) Summarize(ctx context.Context, tenant string, req Request) (Summary, error) {
	today := core.DateOf(s.now())
	req.Range = strings.TrimSpace(req.Range)
	req.View = strings.TrimSpace(req.View)

	var (
		buckets     []*bucket
		progression = true
		err         error
	)
	switch req.Range {
	case RangeToday:
		buckets, err = s.days(ctx, tenant, today, 1)
		progression = false
	case RangeLast7Days:
		buckets, err = s.days(ctx, tenant, core.Date{Time: today.AddDate(0, 0, -6)}, 7)
	case RangeLast30Days:
		buckets, err = s.days(ctx, tenant, core.Date{Time: today.AddDate(0, 0, -29)}, 30)
	case RangeLast3Months, RangeLast6Months, RangeLast12Months:
		n := rollingMonths[req.Range]
		switch req.View {
		case ViewWeekly:
			buckets, err = s.weeks(ctx, tenant, today, n)
		case ViewMonthly, "":
			buckets, err = s.months(ctx, tenant, today.Period().AddMonths(-(n - 1)), n)
		default:
			return Summary{}, core.InvalidArgument("view must be %q or %q", ViewWeekly, ViewMonthly)
		}
	case RangeCustom:
		buckets, progression, err = s.custom(ctx, tenant, req)
	case "":
		return Summary{}, core.InvalidArgument("range is required")
	default:
		return Summary{}, core.InvalidArgument("unknown range %q", req.Range)
	}
	if err != nil {
		return Summary{}, err
	}

	s.logger.DebugContext(ctx, "Range summarized",
		log.FieldTenant, tenant,
		log.FieldOperation, log.OpSummarize,
		"range", req.Range,
		"buckets", len(buckets))
	return render(buckets, progression), nil
}

func (s *Summarizer) custom(ctx context.Context, tenant string, req Request) ([]*bucket, bool, error) {
	year, err := strconv.Atoi(strings.TrimSpace(req.Year))
	if err != nil || year < 1 || year > 9999 {
		return nil, false, core.InvalidArgument("custom range needs a valid year")
	}
	if req.Month == "" {
		if req.Day != "" {
			return nil, false, core.InvalidArgument("day requires month")
		}
		b, err := s.months(ctx, tenant, core.Period{Year: year, Month: time.January}, 12)
		return b, true, err
	}

	month, err := strconv.Atoi(strings.TrimSpace(req.Month))
	if err != nil || month < 1 || month > 12 {
		return nil, false, core.InvalidArgument("month must be between 1 and 12")
	}
	p := core.Period{Year: year, Month: time.Month(month)}
	if req.Day == "" {
		b, err := s.days(ctx, tenant, p.Start(), p.Days())
		return b, true, err
	}

	day, err := strconv.Atoi(strings.TrimSpace(req.Day))
	if err != nil || day < 1 || day > p.Days() {
		return nil, false, core.InvalidArgument("day %q does not exist in %s", req.Day, p.Key())
	}
	b, err := s.days(ctx, tenant, core.NewDate(year, month, day), 1)
	return b, false, err
}

// days returns n daily buckets starting at from.
func (s *Summarizer) days(ctx context.Context, tenant string, from core.Date, n int) ([]*bucket, error) {
	to := core.Date{Time: from.AddDate(0, 0, n)}
	rows, err := s.src.DailyRange(ctx, tenant, from, to)
	if err != nil {
		return nil, err
	}
	byDay := make(map[string]*bucket, n)
	out := make([]*bucket, n)
	for i := range out {
		d := core.Date{Time: from.AddDate(0, 0, i)}
		out[i] = newBucket(d.Key())
		byDay[d.Key()] = out[i]
	}
	for _, r := range rows {
		if b, ok := byDay[r.Date.Key()]; ok {
			b.addDaily(r)
		}
	}
	return out, nil
}

// weeks returns Monday-anchored weekly buckets covering the last n months
// up to and including today.
func (s *Summarizer) weeks(ctx context.Context, tenant string, today core.Date, n int) ([]*bucket, error) {
	start := today.AddDate(0, -n, 0)
	offset := (int(start.Weekday()) + 6) % 7
	start = start.AddDate(0, 0, -offset)
	end := today.AddDate(0, 0, 1)

	rows, err := s.src.DailyRange(ctx, tenant, core.Date{Time: start}, core.Date{Time: end})
	if err != nil {
		return nil, err
	}
	var out []*bucket
	for cursor := start; cursor.Before(end); cursor = cursor.AddDate(0, 0, 7) {
		out = append(out, newBucket(core.Date{Time: cursor}.Key()))
	}
	for _, r := range rows {
		i := int(r.Date.Sub(start).Hours() / 24 / 7)
		if i >= 0 && i < len(out) {
			out[i].addDaily(r)
		}
	}
	return out, nil
}

// months returns n monthly buckets starting at from.
func (s *Summarizer) months(ctx context.Context, tenant string, from core.Period, n int) ([]*bucket, error) {
	periods := make([]core.Period, n)
	out := make([]*bucket, n)
	byIndex := make(map[int]*bucket, n)
	for i := range periods {
		periods[i] = from.AddMonths(i)
		out[i] = newBucket(periods[i].Key())
		byIndex[periods[i].Index()] = out[i]
	}
	rows, err := s.src.MonthlyByPeriods(ctx, tenant, periods)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		if b, ok := byIndex[r.Period.Index()]; ok {
			b.addMonthly(r)
		}
	}
	return out, nil
}

// render sums the buckets and derives one profit margin from the aggregate.
func render(buckets []*bucket, progression bool) Summary {
	sum := Empty()
	total := newBucket("")
	for _, b := range buckets {
		total.income += b.income
		total.expense += b.expense
		for k, v := range b.catInc {
			total.catInc[k] += v
		}
		for k, v := range b.catExp {
			total.catExp[k] += v
		}
		if progression {
			sum.IncomeProgression = append(sum.IncomeProgression, Point{X: b.label, Y: core.Money{Cents: b.income}})
			sum.ExpenseProgression = append(sum.ExpenseProgression, Point{X: b.label, Y: core.Money{Cents: b.expense}})
			sum.NetProfitProgression = append(sum.NetProfitProgression, Point{X: b.label, Y: core.Money{Cents: b.income - b.expense}})
		}
	}
	net := total.income - total.expense
	sum.Totals = Totals{
		Income:       core.Money{Cents: total.income},
		Expense:      core.Money{Cents: total.expense},
		NetProfit:    core.Money{Cents: net},
		ProfitMargin: core.ProfitMargin(net, total.income),
	}
	sum.Categories.Income = total.catInc.Sorted()
	sum.Categories.Expense = total.catExp.Sorted()
	return sum
}
