// Package ledger derives customer credit balances from raw ledger
// entries. Balances are never stored; every read recomputes from the
// append-only entry log so the ledger stays the single source of truth.
package ledger

import (
	"github.com/shopspring/decimal"

	"tindahanko/backend/internal/domain"
)

// Balance returns Σcredit − Σpayment over the given entries. The result
// may be negative only if a payment ever exceeded the balance, which
// the write path rejects.
func Balance(entries []domain.LedgerEntry) decimal.Decimal {
	total := decimal.Zero
	for _, entry := range entries {
		switch entry.Kind {
		case domain.LedgerCredit:
			total = total.Add(entry.Amount)
		case domain.LedgerPayment:
			total = total.Sub(entry.Amount)
		}
	}
	return total
}

// Outstanding is the display balance: Balance floored at zero.
func Outstanding(entries []domain.LedgerEntry) decimal.Decimal {
	return Floor(Balance(entries))
}

// Floor clamps a derived balance at zero for display.
func Floor(balance decimal.Decimal) decimal.Decimal {
	if balance.IsNegative() {
		return decimal.Zero
	}
	return balance
}
