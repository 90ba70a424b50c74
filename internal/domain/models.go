package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	RoleAdmin   = "admin"
	RoleCashier = "cashier"
)

const (
	PaymentCash   = "cash"
	PaymentCredit = "credit"
)

const (
	LedgerCredit  = "credit"
	LedgerPayment = "payment"
)

const (
	SaleStatusCompleted = "completed"
	SaleStatusVoided    = "voided"
)

// Actor is the authenticated principal attached to a request context.
type Actor struct {
	Principal string
	Role      string
}

type Product struct {
	ID           string          `json:"id"`
	Owner        string          `json:"-"`
	Name         string          `json:"name"`
	Category     string          `json:"category"`
	CostPrice    decimal.Decimal `json:"cost_price"`
	SellingPrice decimal.Decimal `json:"selling_price"`
	StockQty     int             `json:"stock_qty"`
	MinStock     int             `json:"min_stock"`
	Active       bool            `json:"active"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type ProductCreateRequest struct {
	Name         string          `json:"name"`
	Category     string          `json:"category"`
	CostPrice    decimal.Decimal `json:"cost_price"`
	SellingPrice decimal.Decimal `json:"selling_price"`
	InitialStock int             `json:"initial_stock"`
	MinStock     int             `json:"min_stock"`
}

type ProductUpdateRequest struct {
	Name         *string          `json:"name,omitempty"`
	Category     *string          `json:"category,omitempty"`
	CostPrice    *decimal.Decimal `json:"cost_price,omitempty"`
	SellingPrice *decimal.Decimal `json:"selling_price,omitempty"`
	MinStock     *int             `json:"min_stock,omitempty"`
	Active       *bool            `json:"active,omitempty"`
}

type StockAdjustRequest struct {
	ProductID string `json:"product_id"`
	Delta     int    `json:"delta"`
	Reason    string `json:"reason"`
}

type Customer struct {
	ID        string    `json:"id"`
	Owner     string    `json:"-"`
	Name      string    `json:"name"`
	Contact   string    `json:"contact,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type CustomerCreateRequest struct {
	Name    string `json:"name"`
	Contact string `json:"contact"`
	Notes   string `json:"notes"`
}

// CustomerResponse pairs a customer with their outstanding balance,
// recomputed from the ledger on every read.
type CustomerResponse struct {
	Customer Customer        `json:"customer"`
	Balance  decimal.Decimal `json:"balance"`
}

type CartItem struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

type CheckoutRequest struct {
	PaymentKind  string           `json:"payment_kind"`
	CashReceived *decimal.Decimal `json:"cash_received,omitempty"`
	CustomerID   string           `json:"customer_id,omitempty"`
	CustomerName string           `json:"customer_name,omitempty"`
	Items        []CartItem       `json:"items"`
}

type SaleLine struct {
	ID          string          `json:"id"`
	SaleID      string          `json:"sale_id"`
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Qty         int             `json:"qty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

type Sale struct {
	ID           string           `json:"id"`
	Cashier      string           `json:"cashier"`
	PaymentKind  string           `json:"payment_kind"`
	Total        decimal.Decimal  `json:"total"`
	CashReceived *decimal.Decimal `json:"cash_received,omitempty"`
	Change       *decimal.Decimal `json:"change,omitempty"`
	CustomerID   string           `json:"customer_id,omitempty"`
	Status       string           `json:"status"`
	VoidReason   string           `json:"void_reason,omitempty"`
	VoidedAt     *time.Time       `json:"voided_at,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	Lines        []SaleLine       `json:"lines"`
}

type SaleResponse struct {
	Sale Sale `json:"sale"`
}

type SaleListResponse struct {
	Sales []Sale `json:"sales"`
}

type VoidSaleRequest struct {
	Reason string `json:"reason"`
}

type LedgerEntry struct {
	ID         string          `json:"id"`
	Owner      string          `json:"-"`
	CustomerID string          `json:"customer_id"`
	SaleID     string          `json:"sale_id,omitempty"`
	Kind       string          `json:"kind"`
	Amount     decimal.Decimal `json:"amount"`
	Note       string          `json:"note,omitempty"`
	CreatedBy  string          `json:"created_by"`
	CreatedAt  time.Time       `json:"created_at"`
}

type PaymentRequest struct {
	CustomerID string          `json:"customer_id"`
	Amount     decimal.Decimal `json:"amount"`
	Note       string          `json:"note"`
}

type PaymentResponse struct {
	Entry   LedgerEntry     `json:"entry"`
	Balance decimal.Decimal `json:"balance"`
}

// StatementResponse is a customer's ledger history plus the derived
// balance at the time of the read.
type StatementResponse struct {
	Customer Customer        `json:"customer"`
	Entries  []LedgerEntry   `json:"entries"`
	Balance  decimal.Decimal `json:"balance"`
}

type RoleAssignment struct {
	Principal string    `json:"principal"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Account is the internal persistence model for auth credentials.
// PINHash gates product mutations in the UI flow; it is friction, not
// the authorization boundary. Role and ownership checks are.
type Account struct {
	Username     string
	PasswordHash string
	PINHash      string
	Active       bool
	CreatedAt    time.Time
}

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	PIN      string `json:"pin"`
}

type RegisterResponse struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type PinVerifyRequest struct {
	PIN string `json:"pin"`
}

type PinVerifyResponse struct {
	Unlocked  bool   `json:"unlocked"`
	ExpiresAt string `json:"expires_at,omitempty"`
}

type DailySummary struct {
	Date              string          `json:"date"`
	SalesCount        int64           `json:"sales_count"`
	CashTotal         decimal.Decimal `json:"cash_total"`
	CreditTotal       decimal.Decimal `json:"credit_total"`
	GrossTotal        decimal.Decimal `json:"gross_total"`
	OutstandingCredit decimal.Decimal `json:"outstanding_credit"`
}

type AuditLog struct {
	ID         string    `json:"id"`
	Owner      string    `json:"-"`
	ActorRole  string    `json:"actor_role"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Detail     string    `json:"detail"`
	CreatedAt  time.Time `json:"created_at"`
}
