package ledger

import (
	"testing"

	"github.com/shopspring/decimal"

	"tindahanko/backend/internal/domain"
)

func entry(kind string, amount string) domain.LedgerEntry {
	return domain.LedgerEntry{Kind: kind, Amount: decimal.RequireFromString(amount)}
}

func TestBalanceSumsCreditsMinusPayments(t *testing.T) {
	entries := []domain.LedgerEntry{
		entry(domain.LedgerCredit, "100.00"),
		entry(domain.LedgerCredit, "56.50"),
		entry(domain.LedgerPayment, "50.00"),
	}

	got := Balance(entries)
	if !got.Equal(decimal.RequireFromString("106.50")) {
		t.Fatalf("expected 106.50, got %s", got)
	}
}

func TestBalanceOfNothingIsZero(t *testing.T) {
	if got := Balance(nil); !got.IsZero() {
		t.Fatalf("expected zero, got %s", got)
	}
}

func TestOutstandingFloorsAtZero(t *testing.T) {
	entries := []domain.LedgerEntry{
		entry(domain.LedgerCredit, "20.00"),
		entry(domain.LedgerPayment, "30.00"),
	}

	if got := Outstanding(entries); !got.IsZero() {
		t.Fatalf("expected floored zero, got %s", got)
	}
	// Floor must not touch positive balances.
	if got := Floor(decimal.RequireFromString("5.25")); !got.Equal(decimal.RequireFromString("5.25")) {
		t.Fatalf("expected 5.25, got %s", got)
	}
}
