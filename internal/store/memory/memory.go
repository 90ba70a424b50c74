package memory

import (
	"context"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"tindahanko/backend/internal/domain"
	"tindahanko/backend/internal/ledger"
	"tindahanko/backend/internal/store"
	"tindahanko/backend/internal/xid"
)

type Store struct {
	mu        sync.RWMutex
	accounts  map[string]domain.Account
	roles     map[string]domain.RoleAssignment
	products  map[string]domain.Product
	customers map[string]domain.Customer
	salesByID map[string]*domain.Sale
	entries   []domain.LedgerEntry
	auditLogs []domain.AuditLog
}

func New() *Store {
	return &Store{
		accounts:  make(map[string]domain.Account),
		roles:     make(map[string]domain.RoleAssignment),
		products:  make(map[string]domain.Product),
		customers: make(map[string]domain.Customer),
		salesByID: make(map[string]*domain.Sale),
		entries:   make([]domain.LedgerEntry, 0, 128),
		auditLogs: make([]domain.AuditLog, 0, 128),
	}
}

// NewSeeded builds a store pre-loaded with a demo shop account and a
// small sari-sari catalog for dev/demo mode. The demo password and PIN
// come from SEED_OWNER_PASSWORD and SEED_OWNER_PIN; hardcoded dev
// defaults are used (with a warning) when unset. Production runs use
// PostgreSQL via DATABASE_URL and never touch this path.
func NewSeeded() *Store {
	s := New()

	owner := "aling-nena"
	password := envOr("SEED_OWNER_PASSWORD", "tindahan123")
	pin := envOr("SEED_OWNER_PIN", "425163")
	if os.Getenv("SEED_OWNER_PASSWORD") == "" || os.Getenv("SEED_OWNER_PIN") == "" {
		log.Warn().Msg("memory store: using default dev credentials; set SEED_OWNER_PASSWORD and SEED_OWNER_PIN to override")
	}

	now := time.Now().UTC()
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatal().Err(err).Msg("memory store: hash seed password")
	}
	pinHash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		log.Fatal().Err(err).Msg("memory store: hash seed pin")
	}
	s.accounts[owner] = domain.Account{
		Username:     owner,
		PasswordHash: string(passwordHash),
		PINHash:      string(pinHash),
		Active:       true,
		CreatedAt:    now,
	}
	s.roles[owner] = domain.RoleAssignment{Principal: owner, Role: domain.RoleAdmin, CreatedAt: now}

	seed := []struct {
		name     string
		category string
		cost     string
		price    string
		stock    int
		minStock int
	}{
		{"Pancit Canton Original", "instant noodles", "10.50", "14.00", 120, 20},
		{"Sardinas 155g", "canned goods", "18.00", "24.00", 80, 15},
		{"Corned Beef 150g", "canned goods", "32.00", "42.00", 40, 10},
		{"Suka 385ml", "condiments", "12.00", "17.00", 30, 8},
		{"Toyo 385ml", "condiments", "13.00", "18.00", 30, 8},
		{"Kape Sachet Twin Pack", "beverages", "8.50", "12.00", 200, 40},
		{"Softdrinks Litro", "beverages", "45.00", "62.00", 24, 6},
		{"Sabon Bar", "household", "14.00", "20.00", 50, 10},
		{"Itlog", "fresh goods", "7.00", "9.00", 90, 30},
		{"Bigas 1kg", "staples", "48.00", "56.00", 60, 12},
	}
	for _, p := range seed {
		id := xid.New("prd")
		s.products[id] = domain.Product{
			ID:           id,
			Owner:        owner,
			Name:         p.name,
			Category:     p.category,
			CostPrice:    decimal.RequireFromString(p.cost),
			SellingPrice: decimal.RequireFromString(p.price),
			StockQty:     p.stock,
			MinStock:     p.minStock,
			Active:       true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
	}

	return s
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (s *Store) CreateAccount(_ context.Context, account domain.Account) error {
	username := strings.ToLower(strings.TrimSpace(account.Username))
	if username == "" || account.PasswordHash == "" {
		return store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[username]; exists {
		return store.ErrInvalidInput
	}
	account.Username = username
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}
	s.accounts[username] = account
	return nil
}

func (s *Store) GetAccount(_ context.Context, username string) (*domain.Account, error) {
	username = strings.ToLower(strings.TrimSpace(username))

	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[username]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := account
	return &copied, nil
}

func (s *Store) EnsureRole(_ context.Context, principal string) (*domain.RoleAssignment, error) {
	principal = strings.ToLower(strings.TrimSpace(principal))
	if principal == "" {
		return nil, store.ErrUnauthorized
	}

	// The single lock makes check-then-insert atomic: two concurrent
	// first registrations cannot both observe "no admin yet".
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.roles[principal]; ok {
		copied := existing
		return &copied, nil
	}

	role := domain.RoleAdmin
	for _, assignment := range s.roles {
		if assignment.Role == domain.RoleAdmin {
			role = domain.RoleCashier
			break
		}
	}

	assignment := domain.RoleAssignment{
		Principal: principal,
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}
	s.roles[principal] = assignment
	copied := assignment
	return &copied, nil
}

func (s *Store) GetRole(_ context.Context, principal string) (*domain.RoleAssignment, error) {
	principal = strings.ToLower(strings.TrimSpace(principal))

	s.mu.RLock()
	defer s.mu.RUnlock()

	assignment, ok := s.roles[principal]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := assignment
	return &copied, nil
}

func (s *Store) ListProducts(_ context.Context, owner string) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if p.Owner != owner || !p.Active {
			continue
		}
		products = append(products, p)
	}
	sortProducts(products)
	return products, nil
}

func (s *Store) ListLowStock(_ context.Context, owner string) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, 16)
	for _, p := range s.products {
		if p.Owner != owner || !p.Active || p.StockQty > p.MinStock {
			continue
		}
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.StockQty == b.StockQty {
			return strings.Compare(a.Name, b.Name)
		}
		return a.StockQty - b.StockQty
	})
	return products, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if product.Owner == "" {
		return nil, store.ErrUnauthorized
	}
	if product.Name == "" || product.Category == "" || !product.SellingPrice.IsPositive() {
		return nil, store.ErrInvalidInput
	}
	if product.CostPrice.IsNegative() || product.StockQty < 0 || product.MinStock < 0 {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if product.ID == "" {
		product.ID = xid.New("prd")
	}
	product.Active = true
	product.CreatedAt = now
	product.UpdatedAt = now
	s.products[product.ID] = product

	created := product
	return &created, nil
}

func (s *Store) GetProduct(_ context.Context, owner string, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.getProductLocked(owner, id)
}

func (s *Store) getProductLocked(owner string, id string) (*domain.Product, error) {
	product, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if product.Owner != owner {
		return nil, store.ErrUnauthorized
	}
	copied := product
	return &copied, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.Category == "" || !product.SellingPrice.IsPositive() {
		return nil, store.ErrInvalidInput
	}
	if product.CostPrice.IsNegative() || product.MinStock < 0 {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.products[product.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if existing.Owner != product.Owner {
		return nil, store.ErrUnauthorized
	}

	// Stock moves only through sales and explicit adjustments.
	product.StockQty = existing.StockQty
	product.CreatedAt = existing.CreatedAt
	product.UpdatedAt = time.Now().UTC()
	s.products[product.ID] = product

	updated := product
	return &updated, nil
}

func (s *Store) AdjustStock(_ context.Context, owner string, productID string, delta int) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.products[productID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if existing.Owner != owner {
		return nil, store.ErrUnauthorized
	}
	if existing.StockQty+delta < 0 {
		return nil, store.ErrInsufficientStock
	}

	existing.StockQty += delta
	existing.UpdatedAt = time.Now().UTC()
	s.products[productID] = existing

	adjusted := existing
	return &adjusted, nil
}

func (s *Store) ListCustomers(_ context.Context, owner string) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customers := make([]domain.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		if c.Owner != owner {
			continue
		}
		customers = append(customers, c)
	}
	slices.SortFunc(customers, func(a, b domain.Customer) int {
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	return customers, nil
}

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	if customer.Owner == "" {
		return nil, store.ErrUnauthorized
	}
	customer.Name = strings.TrimSpace(customer.Name)
	if customer.Name == "" {
		return nil, store.ErrMissingCustomerName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	created := s.createCustomerLocked(customer)
	return &created, nil
}

func (s *Store) createCustomerLocked(customer domain.Customer) domain.Customer {
	if customer.ID == "" {
		customer.ID = xid.New("cus")
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}
	s.customers[customer.ID] = customer
	return customer
}

func (s *Store) GetCustomer(_ context.Context, owner string, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.getCustomerLocked(owner, id)
}

func (s *Store) getCustomerLocked(owner string, id string) (*domain.Customer, error) {
	customer, ok := s.customers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if customer.Owner != owner {
		return nil, store.ErrUnauthorized
	}
	copied := customer
	return &copied, nil
}

func (s *Store) FindCustomerByName(_ context.Context, owner string, name string) (*domain.Customer, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil, store.ErrMissingCustomerName
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.findCustomerByNameLocked(owner, name)
}

func (s *Store) findCustomerByNameLocked(owner string, lowered string) (*domain.Customer, error) {
	for _, c := range s.customers {
		if c.Owner == owner && strings.ToLower(strings.TrimSpace(c.Name)) == lowered {
			copied := c
			return &copied, nil
		}
	}
	return nil, store.ErrNotFound
}

// CreateSale executes the whole checkout inside one critical section so
// no concurrent reader ever observes a partially applied sale.
func (s *Store) CreateSale(_ context.Context, sale domain.Sale, items []domain.CartItem, customerName string) (*domain.Sale, error) {
	if sale.Cashier == "" {
		return nil, store.ErrUnauthorized
	}
	if len(items) == 0 {
		return nil, store.ErrInvalidInput
	}
	if sale.PaymentKind != domain.PaymentCash && sale.PaymentKind != domain.PaymentCredit {
		return nil, store.ErrInvalidInput
	}
	for _, item := range items {
		if item.ProductID == "" || item.Qty < 1 {
			return nil, store.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Aggregate per product so a cart repeating the same product is
	// checked against the combined quantity.
	required := make(map[string]int, len(items))
	for _, item := range items {
		required[item.ProductID] += item.Qty
	}
	for productID, qty := range required {
		product, err := s.getProductLocked(sale.Cashier, productID)
		if err != nil {
			return nil, err
		}
		if !product.Active {
			return nil, store.ErrNotFound
		}
		if product.StockQty < qty {
			return nil, store.ErrInsufficientStock
		}
	}

	now := time.Now().UTC()
	saleID := xid.New("sale")
	total := decimal.Zero
	lines := make([]domain.SaleLine, 0, len(items))
	for _, item := range items {
		product := s.products[item.ProductID]
		lineTotal := product.SellingPrice.Mul(decimal.NewFromInt(int64(item.Qty)))
		lines = append(lines, domain.SaleLine{
			ID:          xid.New("line"),
			SaleID:      saleID,
			ProductID:   product.ID,
			ProductName: product.Name,
			Qty:         item.Qty,
			UnitPrice:   product.SellingPrice,
			LineTotal:   lineTotal,
		})
		total = total.Add(lineTotal)
	}

	switch sale.PaymentKind {
	case domain.PaymentCash:
		if sale.CashReceived == nil || sale.CashReceived.LessThan(total) {
			return nil, store.ErrInsufficientPayment
		}
		change := sale.CashReceived.Sub(total)
		sale.Change = &change
		sale.CustomerID = ""
	case domain.PaymentCredit:
		sale.CashReceived = nil
		sale.Change = nil
		if sale.CustomerID != "" {
			if _, err := s.getCustomerLocked(sale.Cashier, sale.CustomerID); err != nil {
				return nil, err
			}
		} else {
			lowered := strings.ToLower(strings.TrimSpace(customerName))
			if lowered == "" {
				return nil, store.ErrMissingCustomerName
			}
			existing, err := s.findCustomerByNameLocked(sale.Cashier, lowered)
			switch {
			case err == nil:
				sale.CustomerID = existing.ID
			default:
				created := s.createCustomerLocked(domain.Customer{
					Owner: sale.Cashier,
					Name:  strings.TrimSpace(customerName),
				})
				sale.CustomerID = created.ID
			}
		}
	}

	for productID, qty := range required {
		product := s.products[productID]
		product.StockQty -= qty
		product.UpdatedAt = now
		s.products[productID] = product
	}

	sale.ID = saleID
	sale.Total = total
	sale.Status = domain.SaleStatusCompleted
	sale.CreatedAt = now
	sale.Lines = lines

	if sale.PaymentKind == domain.PaymentCredit {
		s.entries = append(s.entries, domain.LedgerEntry{
			ID:         xid.New("led"),
			Owner:      sale.Cashier,
			CustomerID: sale.CustomerID,
			SaleID:     sale.ID,
			Kind:       domain.LedgerCredit,
			Amount:     total,
			CreatedBy:  sale.Cashier,
			CreatedAt:  now,
		})
	}

	stored := sale
	s.salesByID[sale.ID] = &stored

	created := copySale(&stored)
	return &created, nil
}

func (s *Store) GetSale(_ context.Context, cashier string, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.salesByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if sale.Cashier != cashier {
		return nil, store.ErrUnauthorized
	}
	copied := copySale(sale)
	return &copied, nil
}

func (s *Store) ListSales(_ context.Context, cashier string, from time.Time, to time.Time, limit int) ([]domain.Sale, error) {
	if limit < 1 {
		limit = 100
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.Sale, 0, limit)
	for _, sale := range s.salesByID {
		if sale.Cashier != cashier {
			continue
		}
		if !from.IsZero() && sale.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && !sale.CreatedAt.Before(to) {
			continue
		}
		sales = append(sales, copySale(sale))
	}
	slices.SortFunc(sales, func(a, b domain.Sale) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if len(sales) > limit {
		sales = sales[:limit]
	}
	return sales, nil
}

func (s *Store) VoidSale(_ context.Context, cashier string, id string, reason string, at time.Time) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, ok := s.salesByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if sale.Cashier != cashier {
		return nil, store.ErrUnauthorized
	}
	if sale.Status != domain.SaleStatusCompleted {
		return nil, store.ErrInvalidInput
	}

	for _, line := range sale.Lines {
		product, ok := s.products[line.ProductID]
		if !ok {
			continue
		}
		product.StockQty += line.Qty
		product.UpdatedAt = at
		s.products[line.ProductID] = product
	}

	if sale.PaymentKind == domain.PaymentCredit && sale.CustomerID != "" {
		// Compensate with a payment entry instead of deleting the credit,
		// capped at the customer's remaining balance so earlier payments
		// against this sale never push the ledger negative.
		balance := s.balanceLocked(sale.Cashier, sale.CustomerID)
		amount := sale.Total
		if amount.GreaterThan(balance) {
			amount = balance
		}
		if amount.IsPositive() {
			s.entries = append(s.entries, domain.LedgerEntry{
				ID:         xid.New("led"),
				Owner:      sale.Cashier,
				CustomerID: sale.CustomerID,
				SaleID:     sale.ID,
				Kind:       domain.LedgerPayment,
				Amount:     amount,
				Note:       "void " + sale.ID,
				CreatedBy:  cashier,
				CreatedAt:  at,
			})
		}
	}

	sale.Status = domain.SaleStatusVoided
	sale.VoidReason = reason
	voidedAt := at
	sale.VoidedAt = &voidedAt

	copied := copySale(sale)
	return &copied, nil
}

func (s *Store) AppendLedgerEntry(_ context.Context, entry domain.LedgerEntry) (*domain.LedgerEntry, error) {
	if entry.Owner == "" {
		return nil, store.ErrUnauthorized
	}
	if entry.Kind != domain.LedgerCredit && entry.Kind != domain.LedgerPayment {
		return nil, store.ErrInvalidInput
	}
	if !entry.Amount.IsPositive() {
		return nil, store.ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.getCustomerLocked(entry.Owner, entry.CustomerID); err != nil {
		return nil, err
	}
	if entry.SaleID != "" {
		sale, ok := s.salesByID[entry.SaleID]
		if !ok {
			return nil, store.ErrNotFound
		}
		if sale.Cashier != entry.Owner {
			return nil, store.ErrUnauthorized
		}
	}
	if entry.Kind == domain.LedgerPayment {
		balance := s.balanceLocked(entry.Owner, entry.CustomerID)
		if entry.Amount.GreaterThan(balance) {
			return nil, store.ErrInvalidAmount
		}
	}

	if entry.ID == "" {
		entry.ID = xid.New("led")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.CreatedBy == "" {
		entry.CreatedBy = entry.Owner
	}
	s.entries = append(s.entries, entry)

	created := entry
	return &created, nil
}

func (s *Store) ListLedgerEntries(_ context.Context, owner string, customerID string, limit int) ([]domain.LedgerEntry, error) {
	if limit < 1 {
		limit = 100
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := s.getCustomerLocked(owner, customerID); err != nil {
		return nil, err
	}

	entries := make([]domain.LedgerEntry, 0, limit)
	for _, entry := range s.entries {
		if entry.Owner != owner || entry.CustomerID != customerID {
			continue
		}
		entries = append(entries, entry)
	}
	slices.SortFunc(entries, func(a, b domain.LedgerEntry) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (s *Store) CustomerBalance(_ context.Context, owner string, customerID string) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := s.getCustomerLocked(owner, customerID); err != nil {
		return decimal.Zero, err
	}
	return s.balanceLocked(owner, customerID), nil
}

func (s *Store) balanceLocked(owner string, customerID string) decimal.Decimal {
	relevant := make([]domain.LedgerEntry, 0, 16)
	for _, entry := range s.entries {
		if entry.Owner == owner && entry.CustomerID == customerID {
			relevant = append(relevant, entry)
		}
	}
	return ledger.Balance(relevant)
}

func (s *Store) OutstandingTotal(_ context.Context, owner string) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.outstandingTotalLocked(owner), nil
}

func (s *Store) outstandingTotalLocked(owner string) decimal.Decimal {
	byCustomer := make(map[string]decimal.Decimal)
	for _, entry := range s.entries {
		if entry.Owner != owner {
			continue
		}
		balance := byCustomer[entry.CustomerID]
		switch entry.Kind {
		case domain.LedgerCredit:
			balance = balance.Add(entry.Amount)
		case domain.LedgerPayment:
			balance = balance.Sub(entry.Amount)
		}
		byCustomer[entry.CustomerID] = balance
	}

	total := decimal.Zero
	for _, balance := range byCustomer {
		total = total.Add(ledger.Floor(balance))
	}
	return total
}

func (s *Store) DailySummary(_ context.Context, owner string, from time.Time, to time.Time) (domain.DailySummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := domain.DailySummary{
		Date:        from.Format("2006-01-02"),
		CashTotal:   decimal.Zero,
		CreditTotal: decimal.Zero,
		GrossTotal:  decimal.Zero,
	}
	for _, sale := range s.salesByID {
		if sale.Cashier != owner || sale.Status != domain.SaleStatusCompleted {
			continue
		}
		if sale.CreatedAt.Before(from) || !sale.CreatedAt.Before(to) {
			continue
		}
		summary.SalesCount++
		summary.GrossTotal = summary.GrossTotal.Add(sale.Total)
		if sale.PaymentKind == domain.PaymentCash {
			summary.CashTotal = summary.CashTotal.Add(sale.Total)
		} else {
			summary.CreditTotal = summary.CreditTotal.Add(sale.Total)
		}
	}
	summary.OutstandingCredit = s.outstandingTotalLocked(owner)
	return summary, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, owner string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	logs := make([]domain.AuditLog, 0, limit)
	for _, entry := range s.auditLogs {
		if entry.Owner != owner {
			continue
		}
		if !from.IsZero() && entry.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && !entry.CreatedAt.Before(to) {
			continue
		}
		logs = append(logs, entry)
	}
	slices.SortFunc(logs, func(a, b domain.AuditLog) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if len(logs) > limit {
		logs = logs[:limit]
	}
	return logs, nil
}

func sortProducts(products []domain.Product) {
	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.Category == b.Category {
			return strings.Compare(a.Name, b.Name)
		}
		return strings.Compare(a.Category, b.Category)
	})
}

func copySale(sale *domain.Sale) domain.Sale {
	copied := *sale
	copied.Lines = slices.Clone(sale.Lines)
	if sale.CashReceived != nil {
		v := *sale.CashReceived
		copied.CashReceived = &v
	}
	if sale.Change != nil {
		v := *sale.Change
		copied.Change = &v
	}
	if sale.VoidedAt != nil {
		v := *sale.VoidedAt
		copied.VoidedAt = &v
	}
	return copied
}
