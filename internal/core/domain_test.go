package core

import (
	"errors"
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestParseDate(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"2025-03-14", "2025-03-14", true},
		{"2025-03-14T23:30:00-02:00", "2025-03-15", true},
		{"2025-03-14T10:00:00Z", "2025-03-14", true},
		{"14/03/2025", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		d, err := ParseDate(tc.in)
		if tc.ok {
			if err != nil || d.Key() != tc.want {
				t.Fatalf("%q: expected %s, got %s (err=%v)", tc.in, tc.want, d.Key(), err)
			}
		} else if err == nil {
			t.Fatalf("%q: expected error", tc.in)
		}
	}
}

func TestEntryInputValidate(t *testing.T) {
	good := EntryInput{
		Date:     NewDate(2025, 1, 1),
		Type:     Income,
		Category: "Sales",
		Amount:   Money{Cents: 100},
		Method:   "Cash",
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	long := make([]byte, 201)
	for i := range long {
		long[i] = 'x'
	}
	bads := []EntryInput{
		{Type: Income, Category: "c", Amount: Money{Cents: 1}, Method: "m"},
		{Date: NewDate(2025, 1, 1), Type: "refund", Category: "c", Amount: Money{Cents: 1}, Method: "m"},
		{Date: NewDate(2025, 1, 1), Type: Income, Category: " ", Amount: Money{Cents: 1}, Method: "m"},
		{Date: NewDate(2025, 1, 1), Type: Income, Category: "c", Amount: Money{Cents: 0}, Method: "m"},
		{Date: NewDate(2025, 1, 1), Type: Income, Category: "c", Amount: Money{Cents: 1}, Method: ""},
		{Date: NewDate(2025, 1, 1), Type: Income, Category: "c", Amount: Money{Cents: 1}, Method: "m", Note: string(long)},
	}
	for i, in := range bads {
		if err := in.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestTransferInputValidate(t *testing.T) {
	base := TransferInput{Date: NewDate(2025, 1, 2), From: "Bank", To: "Cash", Amount: Money{Cents: 500}, Kind: KindTransfer}
	if err := base.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	same := base
	same.To = "Bank"
	zero := base
	zero.Amount = Money{}
	kind := base
	kind.Kind = "gift"
	for name, in := range map[string]TransferInput{"same accounts": same, "zero amount": zero, "bad kind": kind} {
		if err := in.Validate(); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestTransferKind(t *testing.T) {
	if c, ok := KindTransfer.Category(); !ok || c != CategoryFreeTransfer {
		t.Fatalf("transfer category = %q", c)
	}
	if c, ok := KindPay.Category(); !ok || c != CategoryCardPayment {
		t.Fatalf("pay category = %q", c)
	}
	if KindForCategory(CategoryCardPayment) != KindPay || KindForCategory(CategoryFreeTransfer) != KindTransfer {
		t.Fatal("KindForCategory does not invert Category")
	}
	if got := KindPay.Note("Visa"); got != "Payment to Visa" {
		t.Fatalf("note = %q", got)
	}
}

func TestPaymentMethodValidate(t *testing.T) {
	cases := []struct {
		m  PaymentMethod
		ok bool
	}{
		{PaymentMethod{Name: "Cash", Type: Cash}, true},
		{PaymentMethod{Name: "Visa", Type: Credit, Color: "#1a2B3c"}, true},
		{PaymentMethod{Name: "Visa", Type: Credit, Color: "red"}, false},
		{PaymentMethod{Name: "Visa", Type: "crypto"}, false},
		{PaymentMethod{Name: "", Type: Debit}, false},
	}
	for i, tc := range cases {
		err := tc.m.Validate()
		if tc.ok != (err == nil) {
			t.Fatalf("case %d: ok=%v err=%v", i, tc.ok, err)
		}
	}
}

func TestCategoryValidateRejectsReserved(t *testing.T) {
	err := Category{Name: CategoryFreeTransfer, Type: Expense}.Validate()
	if !errors.Is(err, ErrReservedCategory) {
		t.Fatalf("expected ErrReservedCategory, got %v", err)
	}
}

func TestErrorKinds(t *testing.T) {
	err := NotFound("entry %s", "x")
	wrapped := Invalid(errors.New("bad"))
	if !errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) {
		t.Fatalf("kind matching broken for %v", err)
	}
	if KindOf(wrapped) != KindInvalidArgument {
		t.Fatalf("expected invalid argument, got %v", KindOf(wrapped))
	}
	if KindOf(errors.New("plain")) != KindInternal {
		t.Fatal("plain errors must classify as internal")
	}
	if Invalid(err) != err {
		t.Fatal("Invalid must keep classified errors untouched")
	}
}
