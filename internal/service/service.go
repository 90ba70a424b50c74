package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"tindahanko/backend/internal/domain"
	"tindahanko/backend/internal/ledger"
	"tindahanko/backend/internal/store"
	"tindahanko/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// conflictAttempts bounds retries of transient serialization conflicts
// surfaced by the store as ErrConflictRetry.
const conflictAttempts = 3

type Service struct {
	repo store.Repository
}

func New(repo store.Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) requireActor(ctx context.Context) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Principal == "" {
		return domain.Actor{}, store.ErrUnauthorized
	}
	return actor, nil
}

func (s *Service) requireAdmin(ctx context.Context) (domain.Actor, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return domain.Actor{}, err
	}
	if actor.Role != domain.RoleAdmin {
		return domain.Actor{}, store.ErrUnauthorized
	}
	return actor, nil
}

// EnsureRole resolves the caller's role, assigning one on first sight:
// admin if no admin exists yet, cashier otherwise. Losing a concurrent
// first-registration race is retried; the retry observes the winner and
// lands on cashier.
func (s *Service) EnsureRole(ctx context.Context, principal string) (domain.RoleAssignment, error) {
	principal = strings.ToLower(strings.TrimSpace(principal))
	if principal == "" {
		return domain.RoleAssignment{}, store.ErrUnauthorized
	}

	var lastErr error
	for attempt := 0; attempt < conflictAttempts; attempt++ {
		assignment, err := s.repo.EnsureRole(ctx, principal)
		if err == nil {
			return *assignment, nil
		}
		if !errors.Is(err, store.ErrConflictRetry) {
			return domain.RoleAssignment{}, err
		}
		lastErr = err
	}
	return domain.RoleAssignment{}, lastErr
}

func (s *Service) GetRole(ctx context.Context, principal string) (domain.RoleAssignment, error) {
	assignment, err := s.repo.GetRole(ctx, principal)
	if err != nil {
		return domain.RoleAssignment{}, err
	}
	return *assignment, nil
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListProducts(ctx, actor.Principal)
}

func (s *Service) ListLowStock(ctx context.Context) ([]domain.Product, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListLowStock(ctx, actor.Principal)
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	actor, err := s.requireAdmin(ctx)
	if err != nil {
		return domain.Product{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.ToLower(strings.TrimSpace(req.Category))
	if req.Name == "" || req.Category == "" {
		return domain.Product{}, store.ErrInvalidInput
	}
	if !req.SellingPrice.IsPositive() || req.CostPrice.IsNegative() {
		return domain.Product{}, store.ErrInvalidInput
	}
	if req.InitialStock < 0 || req.MinStock < 0 {
		return domain.Product{}, store.ErrInvalidInput
	}

	created, err := s.repo.CreateProduct(ctx, domain.Product{
		Owner:        actor.Principal,
		Name:         req.Name,
		Category:     req.Category,
		CostPrice:    req.CostPrice,
		SellingPrice: req.SellingPrice,
		StockQty:     req.InitialStock,
		MinStock:     req.MinStock,
		Active:       true,
	})
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "product_create", "product", created.ID,
		fmt.Sprintf("name=%s,price=%s,stock=%d", created.Name, created.SellingPrice.StringFixed(2), created.StockQty))
	return *created, nil
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return domain.Product{}, err
	}
	product, err := s.repo.GetProduct(ctx, actor.Principal, id)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	actor, err := s.requireAdmin(ctx)
	if err != nil {
		return domain.Product{}, err
	}
	if id == "" {
		return domain.Product{}, store.ErrInvalidInput
	}

	existing, err := s.repo.GetProduct(ctx, actor.Principal, id)
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.Name != nil {
		updated.Name = strings.TrimSpace(*req.Name)
	}
	if req.Category != nil {
		updated.Category = strings.ToLower(strings.TrimSpace(*req.Category))
	}
	if req.CostPrice != nil {
		updated.CostPrice = *req.CostPrice
	}
	if req.SellingPrice != nil {
		updated.SellingPrice = *req.SellingPrice
	}
	if req.MinStock != nil {
		updated.MinStock = *req.MinStock
	}
	if req.Active != nil {
		updated.Active = *req.Active
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "product_update", "product", saved.ID,
		fmt.Sprintf("active=%t,price=%s", saved.Active, saved.SellingPrice.StringFixed(2)))
	return *saved, nil
}

func (s *Service) AdjustStock(ctx context.Context, req domain.StockAdjustRequest) (domain.Product, error) {
	actor, err := s.requireAdmin(ctx)
	if err != nil {
		return domain.Product{}, err
	}
	if req.ProductID == "" || req.Delta == 0 {
		return domain.Product{}, store.ErrInvalidInput
	}

	adjusted, err := s.repo.AdjustStock(ctx, actor.Principal, req.ProductID, req.Delta)
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "stock_adjust", "product", adjusted.ID,
		fmt.Sprintf("delta=%d,reason=%s", req.Delta, req.Reason))
	return *adjusted, nil
}

func (s *Service) ListCustomers(ctx context.Context) ([]domain.CustomerResponse, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return nil, err
	}

	customers, err := s.repo.ListCustomers(ctx, actor.Principal)
	if err != nil {
		return nil, err
	}

	responses := make([]domain.CustomerResponse, 0, len(customers))
	for _, customer := range customers {
		balance, err := s.repo.CustomerBalance(ctx, actor.Principal, customer.ID)
		if err != nil {
			return nil, err
		}
		responses = append(responses, domain.CustomerResponse{
			Customer: customer,
			Balance:  ledger.Floor(balance),
		})
	}
	return responses, nil
}

func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerCreateRequest) (domain.Customer, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return domain.Customer{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.Customer{}, store.ErrMissingCustomerName
	}

	existing, err := s.repo.FindCustomerByName(ctx, actor.Principal, req.Name)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return domain.Customer{}, err
	}
	if existing != nil {
		return domain.Customer{}, fmt.Errorf("%w: customer %q already exists", store.ErrInvalidInput, existing.Name)
	}

	created, err := s.repo.CreateCustomer(ctx, domain.Customer{
		Owner:   actor.Principal,
		Name:    req.Name,
		Contact: strings.TrimSpace(req.Contact),
		Notes:   strings.TrimSpace(req.Notes),
	})
	if err != nil {
		return domain.Customer{}, err
	}

	s.logAudit(ctx, "customer_create", "customer", created.ID, "name="+created.Name)
	return *created, nil
}

func (s *Service) GetCustomer(ctx context.Context, id string) (domain.CustomerResponse, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return domain.CustomerResponse{}, err
	}

	customer, err := s.repo.GetCustomer(ctx, actor.Principal, id)
	if err != nil {
		return domain.CustomerResponse{}, err
	}
	balance, err := s.repo.CustomerBalance(ctx, actor.Principal, id)
	if err != nil {
		return domain.CustomerResponse{}, err
	}
	return domain.CustomerResponse{Customer: *customer, Balance: ledger.Floor(balance)}, nil
}

// Statement returns a customer's ledger history newest first plus the
// balance derived at read time.
func (s *Service) Statement(ctx context.Context, customerID string, limit int) (domain.StatementResponse, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return domain.StatementResponse{}, err
	}

	customer, err := s.repo.GetCustomer(ctx, actor.Principal, customerID)
	if err != nil {
		return domain.StatementResponse{}, err
	}
	entries, err := s.repo.ListLedgerEntries(ctx, actor.Principal, customerID, limit)
	if err != nil {
		return domain.StatementResponse{}, err
	}
	balance, err := s.repo.CustomerBalance(ctx, actor.Principal, customerID)
	if err != nil {
		return domain.StatementResponse{}, err
	}

	return domain.StatementResponse{
		Customer: *customer,
		Entries:  entries,
		Balance:  ledger.Floor(balance),
	}, nil
}

// Checkout is the atomic sale unit. Validation happens here; the store
// executes the transaction (price snapshot, stock decrement, customer
// resolution, ledger append) and transient conflicts are retried.
func (s *Service) Checkout(ctx context.Context, req domain.CheckoutRequest) (domain.SaleResponse, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return domain.SaleResponse{}, err
	}

	req.PaymentKind = strings.ToLower(strings.TrimSpace(req.PaymentKind))
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	if req.PaymentKind != domain.PaymentCash && req.PaymentKind != domain.PaymentCredit {
		return domain.SaleResponse{}, store.ErrInvalidInput
	}
	if len(req.Items) == 0 {
		return domain.SaleResponse{}, store.ErrInvalidInput
	}
	for _, item := range req.Items {
		if item.ProductID == "" || item.Qty < 1 {
			return domain.SaleResponse{}, store.ErrInvalidInput
		}
	}
	if req.PaymentKind == domain.PaymentCash {
		if req.CashReceived == nil || req.CashReceived.IsNegative() {
			return domain.SaleResponse{}, store.ErrInsufficientPayment
		}
	}
	if req.PaymentKind == domain.PaymentCredit && req.CustomerID == "" && req.CustomerName == "" {
		return domain.SaleResponse{}, store.ErrMissingCustomerName
	}

	sale := domain.Sale{
		Cashier:      actor.Principal,
		PaymentKind:  req.PaymentKind,
		CashReceived: req.CashReceived,
		CustomerID:   req.CustomerID,
	}

	var created *domain.Sale
	for attempt := 0; attempt < conflictAttempts; attempt++ {
		created, err = s.repo.CreateSale(ctx, sale, req.Items, req.CustomerName)
		if err == nil {
			break
		}
		if !errors.Is(err, store.ErrConflictRetry) {
			return domain.SaleResponse{}, err
		}
		log.Warn().Int("attempt", attempt+1).Msg("checkout serialization conflict, retrying")
	}
	if err != nil {
		return domain.SaleResponse{}, err
	}

	s.logAudit(ctx, "checkout", "sale", created.ID,
		fmt.Sprintf("kind=%s,total=%s,items=%d", created.PaymentKind, created.Total.StringFixed(2), len(created.Lines)))
	return domain.SaleResponse{Sale: *created}, nil
}

func (s *Service) GetSale(ctx context.Context, id string) (domain.SaleResponse, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return domain.SaleResponse{}, err
	}
	sale, err := s.repo.GetSale(ctx, actor.Principal, id)
	if err != nil {
		return domain.SaleResponse{}, err
	}
	return domain.SaleResponse{Sale: *sale}, nil
}

// ListSales returns the caller's sales, newest first. date filters to a
// single UTC day when given as 2006-01-02; empty means no filter.
func (s *Service) ListSales(ctx context.Context, date string, limit int) (domain.SaleListResponse, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return domain.SaleListResponse{}, err
	}

	var from, to time.Time
	if date != "" {
		from, err = time.ParseInLocation("2006-01-02", date, time.UTC)
		if err != nil {
			return domain.SaleListResponse{}, store.ErrInvalidInput
		}
		to = from.Add(24 * time.Hour)
	}

	sales, err := s.repo.ListSales(ctx, actor.Principal, from, to, limit)
	if err != nil {
		return domain.SaleListResponse{}, err
	}
	return domain.SaleListResponse{Sales: sales}, nil
}

// VoidSale is an admin-only correction: stock is restored and, for
// credit sales, a compensating payment entry lands in the ledger.
func (s *Service) VoidSale(ctx context.Context, id string, req domain.VoidSaleRequest) (domain.SaleResponse, error) {
	actor, err := s.requireAdmin(ctx)
	if err != nil {
		return domain.SaleResponse{}, err
	}

	req.Reason = strings.TrimSpace(req.Reason)
	if id == "" || req.Reason == "" {
		return domain.SaleResponse{}, store.ErrInvalidInput
	}

	voided, err := s.repo.VoidSale(ctx, actor.Principal, id, req.Reason, time.Now().UTC())
	if err != nil {
		return domain.SaleResponse{}, err
	}

	s.logAudit(ctx, "sale_void", "sale", voided.ID, "reason="+req.Reason)
	return domain.SaleResponse{Sale: *voided}, nil
}

// RecordPayment appends a payment entry against a customer's balance.
// The store rejects amounts exceeding the balance derived inside the
// same transaction.
func (s *Service) RecordPayment(ctx context.Context, req domain.PaymentRequest) (domain.PaymentResponse, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return domain.PaymentResponse{}, err
	}
	if req.CustomerID == "" {
		return domain.PaymentResponse{}, store.ErrInvalidInput
	}
	if !req.Amount.IsPositive() {
		return domain.PaymentResponse{}, store.ErrInvalidAmount
	}

	var entry *domain.LedgerEntry
	for attempt := 0; attempt < conflictAttempts; attempt++ {
		entry, err = s.repo.AppendLedgerEntry(ctx, domain.LedgerEntry{
			Owner:      actor.Principal,
			CustomerID: req.CustomerID,
			Kind:       domain.LedgerPayment,
			Amount:     req.Amount,
			Note:       strings.TrimSpace(req.Note),
			CreatedBy:  actor.Principal,
		})
		if err == nil {
			break
		}
		if !errors.Is(err, store.ErrConflictRetry) {
			return domain.PaymentResponse{}, err
		}
	}
	if err != nil {
		return domain.PaymentResponse{}, err
	}

	balance, err := s.repo.CustomerBalance(ctx, actor.Principal, req.CustomerID)
	if err != nil {
		return domain.PaymentResponse{}, err
	}

	s.logAudit(ctx, "payment_record", "ledger_entry", entry.ID,
		fmt.Sprintf("customer=%s,amount=%s", req.CustomerID, req.Amount.StringFixed(2)))
	return domain.PaymentResponse{Entry: *entry, Balance: ledger.Floor(balance)}, nil
}

// DailySummary aggregates completed sales for one UTC day plus the
// owner's total outstanding credit.
func (s *Service) DailySummary(ctx context.Context, date string) (domain.DailySummary, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return domain.DailySummary{}, err
	}

	if date == "" {
		date = time.Now().UTC().Format("2006-01-02")
	}
	from, err := time.ParseInLocation("2006-01-02", date, time.UTC)
	if err != nil {
		return domain.DailySummary{}, store.ErrInvalidInput
	}

	return s.repo.DailySummary(ctx, actor.Principal, from, from.Add(24*time.Hour))
}

func (s *Service) ListAuditLogs(ctx context.Context, date string, limit int) ([]domain.AuditLog, error) {
	actor, err := s.requireAdmin(ctx)
	if err != nil {
		return nil, err
	}

	var from, to time.Time
	if date != "" {
		from, err = time.ParseInLocation("2006-01-02", date, time.UTC)
		if err != nil {
			return nil, store.ErrInvalidInput
		}
		to = from.Add(24 * time.Hour)
	}

	return s.repo.ListAuditLogs(ctx, actor.Principal, from, to, limit)
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Principal: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:         xid.New("audit"),
		Owner:      actor.Principal,
		ActorRole:  actor.Role,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Detail:     detail,
		CreatedAt:  time.Now().UTC(),
	}); err != nil {
		log.Warn().Err(err).Str("action", action).Str("entity", entityType+"/"+entityID).Msg("audit log write failed")
	}
}

// Outstanding is exposed for reporting callers that only need the
// floored sum across customers.
func (s *Service) Outstanding(ctx context.Context) (decimal.Decimal, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return s.repo.OutstandingTotal(ctx, actor.Principal)
}
