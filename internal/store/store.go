package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"tindahanko/backend/internal/domain"
)

var (
	// ErrNotFound means the referenced row does not exist at all.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized means the row exists but belongs to a different
	// principal, or the caller is not authenticated.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInsufficientStock means a decrement would drive stock below zero,
	// checked against committed stock at transaction time.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrInsufficientPayment means cash received is below the sale total.
	ErrInsufficientPayment = errors.New("insufficient payment")
	// ErrInvalidAmount means a payment amount is non-positive or exceeds
	// the customer's outstanding balance.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrMissingCustomerName means a credit sale carried no customer.
	ErrMissingCustomerName = errors.New("missing customer name")
	// ErrConflictRetry is a transient serialization conflict; safe to
	// retry a small, fixed number of times.
	ErrConflictRetry = errors.New("conflict, retry")
	// ErrInvalidInput covers malformed requests that never reach storage.
	ErrInvalidInput = errors.New("invalid input")
)

// Repository is the persistence boundary. Every owner-scoped method is
// parameterized by the acting principal; implementations must filter
// list reads, reject foreign point reads and mutations, and force the
// owner of inserted rows to the acting principal.
type Repository interface {
	// Accounts and roles.
	CreateAccount(ctx context.Context, account domain.Account) error
	GetAccount(ctx context.Context, username string) (*domain.Account, error)
	// EnsureRole assigns admin to the first principal ever seen and
	// cashier to everyone after, idempotently. Implementations must
	// arbitrate concurrent first registrations so at most one admin
	// exists; a losing attempt surfaces ErrConflictRetry.
	EnsureRole(ctx context.Context, principal string) (*domain.RoleAssignment, error)
	GetRole(ctx context.Context, principal string) (*domain.RoleAssignment, error)

	// Catalog.
	ListProducts(ctx context.Context, owner string) ([]domain.Product, error)
	ListLowStock(ctx context.Context, owner string) ([]domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetProduct(ctx context.Context, owner string, id string) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	AdjustStock(ctx context.Context, owner string, productID string, delta int) (*domain.Product, error)

	// Customers.
	ListCustomers(ctx context.Context, owner string) ([]domain.Customer, error)
	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	GetCustomer(ctx context.Context, owner string, id string) (*domain.Customer, error)
	FindCustomerByName(ctx context.Context, owner string, name string) (*domain.Customer, error)

	// Sales. CreateSale is the atomic checkout unit: inside one
	// transaction it loads the referenced products (owner-checked),
	// snapshots names and prices, computes line and sale totals,
	// validates cash, decrements stock under row locks, resolves or
	// creates the credit customer, and appends the credit ledger entry.
	CreateSale(ctx context.Context, sale domain.Sale, items []domain.CartItem, customerName string) (*domain.Sale, error)
	GetSale(ctx context.Context, cashier string, id string) (*domain.Sale, error)
	ListSales(ctx context.Context, cashier string, from time.Time, to time.Time, limit int) ([]domain.Sale, error)
	// VoidSale restores stock for every line and, for credit sales,
	// appends a compensating payment ledger entry.
	VoidSale(ctx context.Context, cashier string, id string, reason string, at time.Time) (*domain.Sale, error)

	// Ledger. AppendLedgerEntry enforces that the customer belongs to
	// the entry's owner, that a referenced sale was made by the same
	// principal, and that a payment amount does not exceed the balance
	// derived inside the same transaction.
	AppendLedgerEntry(ctx context.Context, entry domain.LedgerEntry) (*domain.LedgerEntry, error)
	ListLedgerEntries(ctx context.Context, owner string, customerID string, limit int) ([]domain.LedgerEntry, error)
	CustomerBalance(ctx context.Context, owner string, customerID string) (decimal.Decimal, error)
	OutstandingTotal(ctx context.Context, owner string) (decimal.Decimal, error)

	// Reporting.
	DailySummary(ctx context.Context, owner string, from time.Time, to time.Time) (domain.DailySummary, error)

	// Audit.
	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, owner string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)
}
