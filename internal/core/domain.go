package core

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

const (
	Income  EntryType = "income"
	Expense EntryType = "expense"
)

const (
	Cash   MethodType = "cash"
	Debit  MethodType = "debit"
	Credit MethodType = "credit"
)

// Reserved categories mark movements between a tenant's own accounts.
const (
	CategoryFreeTransfer = "free transfer"
	CategoryCardPayment  = "card payment"
)

// Transfer kinds as accepted by the transfer handler.
const (
	KindTransfer TransferKind = "transfer"
	KindPay      TransferKind = "pay"
)

type (
	EntryType    string
	MethodType   string
	TransferKind string

	Date struct {
		time.Time
	}

	// LedgerEntry is one recorded movement. To is set only for transfers.
	LedgerEntry struct {
		ID        string
		Tenant    string
		Date      Date
		Type      EntryType
		Category  string
		Amount    Money
		Method    string
		Note      string
		To        string
		CreatedAt time.Time
	}

	// EntryInput carries the caller-supplied fields of a new entry.
	EntryInput struct {
		Date     Date
		Type     EntryType
		Category string
		Amount   Money
		Method   string
		Note     string
	}

	// EntryPatch holds the optional replacement fields of an update.
	EntryPatch struct {
		Date     *Date
		Type     *EntryType
		Category *string
		Amount   *Money
		Method   *string
		Note     *string
		To       *string
	}

	TransferInput struct {
		Date   Date
		From   string
		To     string
		Amount Money
		Kind   TransferKind
	}

	Category struct {
		Name   string
		Type   EntryType
		Active bool
	}

	PaymentMethod struct {
		Name   string
		Type   MethodType
		Color  string
		Active bool
	}
)

var colorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// IsReserved reports whether category is one of the transfer categories.
func IsReserved(category string) bool {
	return category == CategoryFreeTransfer || category == CategoryCardPayment
}

func (t EntryType) IsValid() bool { return t == Income || t == Expense }

func (t MethodType) IsValid() bool { return t == Cash || t == Debit || t == Credit }

// Category returns the reserved category label for the kind.
func (k TransferKind) Category() (string, bool) {
	switch k {
	case KindTransfer:
		return CategoryFreeTransfer, true
	case KindPay:
		return CategoryCardPayment, true
	}
	return "", false
}

// Note returns the generated note of a transfer entry towards to.
func (k TransferKind) Note(to string) string {
	if k == KindPay {
		return "Payment to " + to
	}
	return "Transfer to " + to
}

// KindForCategory maps a reserved category back to its transfer kind.
func KindForCategory(category string) TransferKind {
	if category == CategoryCardPayment {
		return KindPay
	}
	return KindTransfer
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// Period returns the calendar month containing the date.
func (d Date) Period() Period {
	return Period{Year: d.Year(), Month: d.Time.Month()}
}

// Key renders the date as "YYYY-MM-DD".
func (d Date) Key() string {
	return d.Format(time.DateOnly)
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to midnight UTC of its UTC calendar day.
func DateOf(t time.Time) Date {
	t = t.UTC()
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate accepts "YYYY-MM-DD" or an RFC 3339 timestamp.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return DateOf(t), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, errors.New("invalid date: " + s)
	}
	return DateOf(t), nil
}

func (in EntryInput) Validate() error {
	if err := in.Date.Validate(); err != nil {
		return err
	}
	if !in.Type.IsValid() {
		return ErrInvalidType
	}
	if strings.TrimSpace(in.Category) == "" {
		return ErrEmptyCategory
	}
	if err := in.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(in.Method) == "" {
		return ErrEmptyMethod
	}
	if len(in.Note) > 200 {
		return ErrNoteTooLong
	}
	return nil
}

func (in TransferInput) Validate() error {
	if err := in.Date.Validate(); err != nil {
		return err
	}
	if _, ok := in.Kind.Category(); !ok {
		return errors.New("invalid transfer kind")
	}
	if strings.TrimSpace(in.From) == "" || strings.TrimSpace(in.To) == "" {
		return ErrEmptyMethod
	}
	if in.From == in.To {
		return errors.New("source and destination must differ")
	}
	return in.Amount.Validate()
}

// IsTransfer reports whether the entry moves money between two own accounts.
func (e LedgerEntry) IsTransfer() bool {
	return IsReserved(e.Category)
}

// Signed returns the amount as applied to final balances: positive for
// income, negative for expense.
func (e LedgerEntry) Signed() int64 {
	if e.Type == Income {
		return e.Amount.Cents
	}
	return -e.Amount.Cents
}

// Input returns the caller-level fields of the entry.
func (e LedgerEntry) Input() EntryInput {
	return EntryInput{Date: e.Date, Type: e.Type, Category: e.Category, Amount: e.Amount, Method: e.Method, Note: e.Note}
}

// Apply returns a copy of the entry with the patch fields replaced.
func (p EntryPatch) Apply(e LedgerEntry) LedgerEntry {
	if p.Date != nil {
		e.Date = *p.Date
	}
	if p.Type != nil {
		e.Type = *p.Type
	}
	if p.Category != nil {
		e.Category = *p.Category
	}
	if p.Amount != nil {
		e.Amount = *p.Amount
	}
	if p.Method != nil {
		e.Method = *p.Method
	}
	if p.Note != nil {
		e.Note = *p.Note
	}
	if p.To != nil {
		e.To = *p.To
	}
	return e
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyCategory
	}
	if !c.Type.IsValid() {
		return ErrInvalidType
	}
	if IsReserved(c.Name) {
		return ErrReservedCategory
	}
	return nil
}

func (m PaymentMethod) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return ErrEmptyMethod
	}
	if !m.Type.IsValid() {
		return errors.New("invalid payment method type")
	}
	if m.Color != "" && !colorPattern.MatchString(m.Color) {
		return errors.New("color must be a hex value like #1A2B3C")
	}
	return nil
}

// ValidColor reports whether c is a "#RRGGBB" value.
func ValidColor(c string) bool {
	return colorPattern.MatchString(c)
}
