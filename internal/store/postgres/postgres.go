package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"tindahanko/backend/internal/domain"
	"tindahanko/backend/internal/store"
	"tindahanko/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// The partial unique index on role_assignments is what arbitrates the
// admin bootstrap race: at most one row may ever carry role 'admin'.
const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	username      TEXT PRIMARY KEY,
	password_hash TEXT NOT NULL,
	pin_hash      TEXT NOT NULL,
	active        BOOLEAN NOT NULL DEFAULT true,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS role_assignments (
	principal  TEXT PRIMARY KEY,
	role       TEXT NOT NULL CHECK (role IN ('admin', 'cashier')),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS ux_role_assignments_single_admin
	ON role_assignments (role) WHERE role = 'admin';

CREATE TABLE IF NOT EXISTS products (
	id            TEXT PRIMARY KEY,
	owner         TEXT NOT NULL,
	name          TEXT NOT NULL,
	category      TEXT NOT NULL,
	cost_price    NUMERIC(12,2) NOT NULL CHECK (cost_price >= 0),
	selling_price NUMERIC(12,2) NOT NULL CHECK (selling_price > 0),
	stock_qty     INTEGER NOT NULL CHECK (stock_qty >= 0),
	min_stock     INTEGER NOT NULL DEFAULT 0 CHECK (min_stock >= 0),
	active        BOOLEAN NOT NULL DEFAULT true,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS ix_products_owner ON products (owner);

CREATE TABLE IF NOT EXISTS customers (
	id         TEXT PRIMARY KEY,
	owner      TEXT NOT NULL,
	name       TEXT NOT NULL,
	contact    TEXT NOT NULL DEFAULT '',
	notes      TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS ix_customers_owner_name ON customers (owner, lower(name));

CREATE TABLE IF NOT EXISTS sales (
	id            TEXT PRIMARY KEY,
	cashier       TEXT NOT NULL,
	payment_kind  TEXT NOT NULL CHECK (payment_kind IN ('cash', 'credit')),
	total         NUMERIC(12,2) NOT NULL CHECK (total >= 0),
	cash_received NUMERIC(12,2),
	change        NUMERIC(12,2),
	customer_id   TEXT REFERENCES customers (id),
	status        TEXT NOT NULL CHECK (status IN ('completed', 'voided')),
	void_reason   TEXT,
	voided_at     TIMESTAMPTZ,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS ix_sales_cashier_created ON sales (cashier, created_at DESC);

CREATE TABLE IF NOT EXISTS sale_lines (
	id           TEXT PRIMARY KEY,
	sale_id      TEXT NOT NULL REFERENCES sales (id),
	product_id   TEXT NOT NULL,
	product_name TEXT NOT NULL,
	qty          INTEGER NOT NULL CHECK (qty > 0),
	unit_price   NUMERIC(12,2) NOT NULL,
	line_total   NUMERIC(12,2) NOT NULL
);
CREATE INDEX IF NOT EXISTS ix_sale_lines_sale ON sale_lines (sale_id);

CREATE TABLE IF NOT EXISTS ledger_entries (
	id          TEXT PRIMARY KEY,
	owner       TEXT NOT NULL,
	customer_id TEXT NOT NULL REFERENCES customers (id),
	sale_id     TEXT REFERENCES sales (id),
	kind        TEXT NOT NULL CHECK (kind IN ('credit', 'payment')),
	amount      NUMERIC(12,2) NOT NULL CHECK (amount > 0),
	note        TEXT NOT NULL DEFAULT '',
	created_by  TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS ix_ledger_owner_customer ON ledger_entries (owner, customer_id, created_at DESC);

CREATE TABLE IF NOT EXISTS audit_logs (
	id          TEXT PRIMARY KEY,
	owner       TEXT NOT NULL,
	actor_role  TEXT NOT NULL,
	action      TEXT NOT NULL,
	entity_type TEXT NOT NULL,
	entity_id   TEXT NOT NULL DEFAULT '',
	detail      TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS ix_audit_logs_owner_created ON audit_logs (owner, created_at DESC);
`

// EnsureSchema creates all tables and indexes if they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *Store) CreateAccount(ctx context.Context, account domain.Account) error {
	username := strings.ToLower(strings.TrimSpace(account.Username))
	if username == "" || account.PasswordHash == "" {
		return store.ErrInvalidInput
	}

	createdAt := account.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (username, password_hash, pin_hash, active, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, username, account.PasswordHash, account.PINHash, account.Active, createdAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrInvalidInput
		}
		return err
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, username string) (*domain.Account, error) {
	var account domain.Account
	err := s.db.QueryRowContext(ctx, `
		SELECT username, password_hash, pin_hash, active, created_at
		FROM accounts
		WHERE username = $1
	`, strings.ToLower(strings.TrimSpace(username))).Scan(
		&account.Username, &account.PasswordHash, &account.PINHash, &account.Active, &account.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (s *Store) EnsureRole(ctx context.Context, principal string) (*domain.RoleAssignment, error) {
	principal = strings.ToLower(strings.TrimSpace(principal))
	if principal == "" {
		return nil, store.ErrUnauthorized
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	var assignment domain.RoleAssignment
	err = pgTx.QueryRowContext(ctx, `
		SELECT principal, role, created_at
		FROM role_assignments
		WHERE principal = $1
	`, principal).Scan(&assignment.Principal, &assignment.Role, &assignment.CreatedAt)
	if err == nil {
		return &assignment, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, txError(err)
	}

	var adminExists bool
	err = pgTx.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM role_assignments WHERE role = $1)
	`, domain.RoleAdmin).Scan(&adminExists)
	if err != nil {
		return nil, txError(err)
	}

	role := domain.RoleAdmin
	if adminExists {
		role = domain.RoleCashier
	}
	now := time.Now().UTC()
	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO role_assignments (principal, role, created_at)
		VALUES ($1,$2,$3)
	`, principal, role, now)
	if err != nil {
		// A concurrent first registration won the admin slot; the
		// caller retries and lands on cashier.
		if isUniqueViolation(err) || isSerializationFailure(err) {
			return nil, store.ErrConflictRetry
		}
		return nil, err
	}

	if err := pgTx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflictRetry
		}
		return nil, txError(err)
	}

	return &domain.RoleAssignment{Principal: principal, Role: role, CreatedAt: now}, nil
}

func (s *Store) GetRole(ctx context.Context, principal string) (*domain.RoleAssignment, error) {
	var assignment domain.RoleAssignment
	err := s.db.QueryRowContext(ctx, `
		SELECT principal, role, created_at
		FROM role_assignments
		WHERE principal = $1
	`, strings.ToLower(strings.TrimSpace(principal))).Scan(
		&assignment.Principal, &assignment.Role, &assignment.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &assignment, nil
}

func (s *Store) ListProducts(ctx context.Context, owner string) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner, name, category, cost_price, selling_price, stock_qty, min_stock, active, created_at, updated_at
		FROM products
		WHERE owner = $1 AND active = true
		ORDER BY category, name
	`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanProducts(rows)
}

func (s *Store) ListLowStock(ctx context.Context, owner string) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner, name, category, cost_price, selling_price, stock_qty, min_stock, active, created_at, updated_at
		FROM products
		WHERE owner = $1 AND active = true AND stock_qty <= min_stock
		ORDER BY stock_qty, name
	`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanProducts(rows)
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.Owner == "" {
		return nil, store.ErrUnauthorized
	}
	if product.Name == "" || product.Category == "" || !product.SellingPrice.IsPositive() {
		return nil, store.ErrInvalidInput
	}
	if product.CostPrice.IsNegative() || product.StockQty < 0 || product.MinStock < 0 {
		return nil, store.ErrInvalidInput
	}

	now := time.Now().UTC()
	if product.ID == "" {
		product.ID = xid.New("prd")
	}
	product.Active = true
	product.CreatedAt = now
	product.UpdatedAt = now
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, owner, name, category, cost_price, selling_price, stock_qty, min_stock, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, product.ID, product.Owner, product.Name, product.Category, product.CostPrice, product.SellingPrice,
		product.StockQty, product.MinStock, product.Active, product.CreatedAt, product.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidInput
		}
		return nil, err
	}

	created := product
	return &created, nil
}

func (s *Store) GetProduct(ctx context.Context, owner string, id string) (*domain.Product, error) {
	var p domain.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT id, owner, name, category, cost_price, selling_price, stock_qty, min_stock, active, created_at, updated_at
		FROM products
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Owner, &p.Name, &p.Category, &p.CostPrice, &p.SellingPrice,
		&p.StockQty, &p.MinStock, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if p.Owner != owner {
		return nil, store.ErrUnauthorized
	}
	return &p, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.Category == "" || !product.SellingPrice.IsPositive() {
		return nil, store.ErrInvalidInput
	}
	if product.CostPrice.IsNegative() || product.MinStock < 0 {
		return nil, store.ErrInvalidInput
	}

	existing, err := s.GetProduct(ctx, product.Owner, product.ID)
	if err != nil {
		return nil, err
	}

	// Stock moves only through sales and explicit adjustments.
	product.StockQty = existing.StockQty
	product.CreatedAt = existing.CreatedAt
	product.UpdatedAt = time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $3, category = $4, cost_price = $5, selling_price = $6, min_stock = $7, active = $8, updated_at = $9
		WHERE id = $1 AND owner = $2
	`, product.ID, product.Owner, product.Name, product.Category, product.CostPrice,
		product.SellingPrice, product.MinStock, product.Active, product.UpdatedAt)
	if err != nil {
		return nil, err
	}

	updated := product
	return &updated, nil
}

func (s *Store) AdjustStock(ctx context.Context, owner string, productID string, delta int) (*domain.Product, error) {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	var p domain.Product
	err = pgTx.QueryRowContext(ctx, `
		SELECT id, owner, name, category, cost_price, selling_price, stock_qty, min_stock, active, created_at, updated_at
		FROM products
		WHERE id = $1
		FOR UPDATE
	`, productID).Scan(&p.ID, &p.Owner, &p.Name, &p.Category, &p.CostPrice, &p.SellingPrice,
		&p.StockQty, &p.MinStock, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, txError(err)
	}
	if p.Owner != owner {
		return nil, store.ErrUnauthorized
	}
	if p.StockQty+delta < 0 {
		return nil, store.ErrInsufficientStock
	}

	p.StockQty += delta
	p.UpdatedAt = time.Now().UTC()
	_, err = pgTx.ExecContext(ctx, `
		UPDATE products
		SET stock_qty = $2, updated_at = $3
		WHERE id = $1
	`, p.ID, p.StockQty, p.UpdatedAt)
	if err != nil {
		return nil, txError(err)
	}

	if err := pgTx.Commit(); err != nil {
		return nil, txError(err)
	}
	return &p, nil
}

func (s *Store) ListCustomers(ctx context.Context, owner string) ([]domain.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner, name, contact, notes, created_at
		FROM customers
		WHERE owner = $1
		ORDER BY lower(name)
	`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 64)
	for rows.Next() {
		var c domain.Customer
		if err := rows.Scan(&c.ID, &c.Owner, &c.Name, &c.Contact, &c.Notes, &c.CreatedAt); err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return customers, nil
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if customer.Owner == "" {
		return nil, store.ErrUnauthorized
	}
	customer.Name = strings.TrimSpace(customer.Name)
	if customer.Name == "" {
		return nil, store.ErrMissingCustomerName
	}

	if customer.ID == "" {
		customer.ID = xid.New("cus")
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, owner, name, contact, notes, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, customer.ID, customer.Owner, customer.Name, customer.Contact, customer.Notes, customer.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidInput
		}
		return nil, err
	}

	created := customer
	return &created, nil
}

func (s *Store) GetCustomer(ctx context.Context, owner string, id string) (*domain.Customer, error) {
	var c domain.Customer
	err := s.db.QueryRowContext(ctx, `
		SELECT id, owner, name, contact, notes, created_at
		FROM customers
		WHERE id = $1
	`, id).Scan(&c.ID, &c.Owner, &c.Name, &c.Contact, &c.Notes, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if c.Owner != owner {
		return nil, store.ErrUnauthorized
	}
	return &c, nil
}

func (s *Store) FindCustomerByName(ctx context.Context, owner string, name string) (*domain.Customer, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, store.ErrMissingCustomerName
	}

	var c domain.Customer
	err := s.db.QueryRowContext(ctx, `
		SELECT id, owner, name, contact, notes, created_at
		FROM customers
		WHERE owner = $1 AND lower(name) = lower($2)
		ORDER BY created_at
		LIMIT 1
	`, owner, name).Scan(&c.ID, &c.Owner, &c.Name, &c.Contact, &c.Notes, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// CreateSale runs the whole checkout in one serializable transaction:
// product rows are locked, totals recomputed from committed prices,
// stock decremented, the credit customer resolved or created, and the
// ledger entry appended. Nothing is visible until the commit.
func (s *Store) CreateSale(ctx context.Context, sale domain.Sale, items []domain.CartItem, customerName string) (*domain.Sale, error) {
	if sale.Cashier == "" {
		return nil, store.ErrUnauthorized
	}
	if len(items) == 0 {
		return nil, store.ErrInvalidInput
	}
	if sale.PaymentKind != domain.PaymentCash && sale.PaymentKind != domain.PaymentCredit {
		return nil, store.ErrInvalidInput
	}

	required := make(map[string]int, len(items))
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if item.ProductID == "" || item.Qty < 1 {
			return nil, store.ErrInvalidInput
		}
		if _, seen := required[item.ProductID]; !seen {
			ids = append(ids, item.ProductID)
		}
		required[item.ProductID] += item.Qty
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	productRows, err := pgTx.QueryContext(ctx, `
		SELECT id, owner, name, selling_price, stock_qty, active
		FROM products
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE
	`, ids)
	if err != nil {
		return nil, txError(err)
	}
	productMap := make(map[string]domain.Product, len(ids))
	for productRows.Next() {
		var p domain.Product
		if err := productRows.Scan(&p.ID, &p.Owner, &p.Name, &p.SellingPrice, &p.StockQty, &p.Active); err != nil {
			_ = productRows.Close()
			return nil, txError(err)
		}
		productMap[p.ID] = p
	}
	if err := productRows.Err(); err != nil {
		_ = productRows.Close()
		return nil, txError(err)
	}
	_ = productRows.Close()

	for productID, qty := range required {
		product, exists := productMap[productID]
		if !exists || !product.Active {
			return nil, store.ErrNotFound
		}
		if product.Owner != sale.Cashier {
			return nil, store.ErrUnauthorized
		}
		if product.StockQty < qty {
			return nil, store.ErrInsufficientStock
		}
	}

	now := time.Now().UTC()
	sale.ID = xid.New("sale")
	total := decimal.Zero
	lines := make([]domain.SaleLine, 0, len(items))
	for _, item := range items {
		product := productMap[item.ProductID]
		lineTotal := product.SellingPrice.Mul(decimal.NewFromInt(int64(item.Qty)))
		lines = append(lines, domain.SaleLine{
			ID:          xid.New("line"),
			SaleID:      sale.ID,
			ProductID:   product.ID,
			ProductName: product.Name,
			Qty:         item.Qty,
			UnitPrice:   product.SellingPrice,
			LineTotal:   lineTotal,
		})
		total = total.Add(lineTotal)
	}
	sale.Total = total

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
		customerID, err := s.resolveCreditCustomer(ctx, pgTx, sale.Cashier, sale.CustomerID, customerName, now)
		if err != nil {
			return nil, err
		}
		sale.CustomerID = customerID
	}

	for productID, qty := range required {
		_, err = pgTx.ExecContext(ctx, `
			UPDATE products
			SET stock_qty = stock_qty - $1, updated_at = $2
			WHERE id = $3
		`, qty, now, productID)
		if err != nil {
			return nil, txError(err)
		}
	}

	sale.Status = domain.SaleStatusCompleted
	sale.CreatedAt = now
	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO sales (id, cashier, payment_kind, total, cash_received, change, customer_id, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, sale.ID, sale.Cashier, sale.PaymentKind, sale.Total,
		nullDecimal(sale.CashReceived), nullDecimal(sale.Change), nullIfEmpty(sale.CustomerID),
		sale.Status, sale.CreatedAt)
	if err != nil {
		return nil, txError(err)
	}

	for _, line := range lines {
		_, err = pgTx.ExecContext(ctx, `
			INSERT INTO sale_lines (id, sale_id, product_id, product_name, qty, unit_price, line_total)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, line.ID, line.SaleID, line.ProductID, line.ProductName, line.Qty, line.UnitPrice, line.LineTotal)
		if err != nil {
			return nil, txError(err)
		}
	}

	if sale.PaymentKind == domain.PaymentCredit {
		_, err = pgTx.ExecContext(ctx, `
			INSERT INTO ledger_entries (id, owner, customer_id, sale_id, kind, amount, note, created_by, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		`, xid.New("led"), sale.Cashier, sale.CustomerID, sale.ID, domain.LedgerCredit, sale.Total, "", sale.Cashier, now)
		if err != nil {
			return nil, txError(err)
		}
	}

	if err := pgTx.Commit(); err != nil {
		return nil, txError(err)
	}

	sale.Lines = lines
	return &sale, nil
}

func (s *Store) resolveCreditCustomer(ctx context.Context, pgTx *sql.Tx, cashier string, customerID string, customerName string, now time.Time) (string, error) {
	if customerID != "" {
		var owner string
		err := pgTx.QueryRowContext(ctx, `
			SELECT owner FROM customers WHERE id = $1 FOR UPDATE
		`, customerID).Scan(&owner)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return "", store.ErrNotFound
			}
			return "", txError(err)
		}
		if owner != cashier {
			return "", store.ErrUnauthorized
		}
		return customerID, nil
	}

	customerName = strings.TrimSpace(customerName)
	if customerName == "" {
		return "", store.ErrMissingCustomerName
	}

	var existingID string
	err := pgTx.QueryRowContext(ctx, `
		SELECT id FROM customers
		WHERE owner = $1 AND lower(name) = lower($2)
		ORDER BY created_at
		LIMIT 1
		FOR UPDATE
	`, cashier, customerName).Scan(&existingID)
	if err == nil {
		return existingID, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", txError(err)
	}

	// New walk-in credit customer; created inside the checkout
	// transaction so a failed sale leaves no orphan row.
	newID := xid.New("cus")
	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO customers (id, owner, name, contact, notes, created_at)
		VALUES ($1,$2,$3,'','',$4)
	`, newID, cashier, customerName, now)
	if err != nil {
		return "", txError(err)
	}
	return newID, nil
}

func (s *Store) GetSale(ctx context.Context, cashier string, id string) (*domain.Sale, error) {
	sale, err := s.scanSale(ctx, s.db.QueryRowContext(ctx, `
		SELECT id, cashier, payment_kind, total, cash_received, change, customer_id, status, void_reason, voided_at, created_at
		FROM sales
		WHERE id = $1
	`, id))
	if err != nil {
		return nil, err
	}
	if sale.Cashier != cashier {
		return nil, store.ErrUnauthorized
	}

	lines, err := s.loadSaleLines(ctx, sale.ID)
	if err != nil {
		return nil, err
	}
	sale.Lines = lines
	return sale, nil
}

func (s *Store) ListSales(ctx context.Context, cashier string, from time.Time, to time.Time, limit int) ([]domain.Sale, error) {
	if limit < 1 {
		limit = 100
	}
	if from.IsZero() {
		from = time.Unix(0, 0).UTC()
	}
	if to.IsZero() {
		to = time.Now().UTC().Add(24 * time.Hour)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, cashier, payment_kind, total, cash_received, change, customer_id, status, void_reason, voided_at, created_at
		FROM sales
		WHERE cashier = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at DESC
		LIMIT $4
	`, cashier, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, limit)
	for rows.Next() {
		sale, err := scanSaleRow(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, *sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range sales {
		lines, err := s.loadSaleLines(ctx, sales[i].ID)
		if err != nil {
			return nil, err
		}
		sales[i].Lines = lines
	}
	return sales, nil
}

func (s *Store) VoidSale(ctx context.Context, cashier string, id string, reason string, at time.Time) (*domain.Sale, error) {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	sale, err := s.scanSale(ctx, pgTx.QueryRowContext(ctx, `
		SELECT id, cashier, payment_kind, total, cash_received, change, customer_id, status, void_reason, voided_at, created_at
		FROM sales
		WHERE id = $1
		FOR UPDATE
	`, id))
	if err != nil {
		return nil, txError(err)
	}
	if sale.Cashier != cashier {
		return nil, store.ErrUnauthorized
	}
	if sale.Status != domain.SaleStatusCompleted {
		return nil, store.ErrInvalidInput
	}

	lineRows, err := pgTx.QueryContext(ctx, `
		SELECT id, sale_id, product_id, product_name, qty, unit_price, line_total
		FROM sale_lines
		WHERE sale_id = $1
	`, id)
	if err != nil {
		return nil, txError(err)
	}
	lines := make([]domain.SaleLine, 0, 8)
	for lineRows.Next() {
		var line domain.SaleLine
		if err := lineRows.Scan(&line.ID, &line.SaleID, &line.ProductID, &line.ProductName,
			&line.Qty, &line.UnitPrice, &line.LineTotal); err != nil {
			_ = lineRows.Close()
			return nil, txError(err)
		}
		lines = append(lines, line)
	}
	if err := lineRows.Err(); err != nil {
		_ = lineRows.Close()
		return nil, txError(err)
	}
	_ = lineRows.Close()

	for _, line := range lines {
		_, err = pgTx.ExecContext(ctx, `
			UPDATE products
			SET stock_qty = stock_qty + $1, updated_at = $2
			WHERE id = $3
		`, line.Qty, at, line.ProductID)
		if err != nil {
			return nil, txError(err)
		}
	}

	if sale.PaymentKind == domain.PaymentCredit && sale.CustomerID != "" {
		// Compensate with a payment entry instead of deleting the
		// credit, capped at the remaining balance so earlier payments
		// against this sale never push the ledger negative.
		balance, err := balanceInTx(ctx, pgTx, sale.Cashier, sale.CustomerID)
		if err != nil {
			return nil, txError(err)
		}
		amount := sale.Total
		if amount.GreaterThan(balance) {
			amount = balance
		}
		if amount.IsPositive() {
			_, err = pgTx.ExecContext(ctx, `
				INSERT INTO ledger_entries (id, owner, customer_id, sale_id, kind, amount, note, created_by, created_at)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
			`, xid.New("led"), sale.Cashier, sale.CustomerID, sale.ID, domain.LedgerPayment, amount, "void "+sale.ID, cashier, at)
			if err != nil {
				return nil, txError(err)
			}
		}
	}

	_, err = pgTx.ExecContext(ctx, `
		UPDATE sales
		SET status = $2, void_reason = $3, voided_at = $4
		WHERE id = $1 AND status = $5
	`, id, domain.SaleStatusVoided, reason, at, domain.SaleStatusCompleted)
	if err != nil {
		return nil, txError(err)
	}

	if err := pgTx.Commit(); err != nil {
		return nil, txError(err)
	}

	sale.Status = domain.SaleStatusVoided
	sale.VoidReason = reason
	sale.VoidedAt = &at
	sale.Lines = lines
	return sale, nil
}

func (s *Store) AppendLedgerEntry(ctx context.Context, entry domain.LedgerEntry) (*domain.LedgerEntry, error) {
	if entry.Owner == "" {
		return nil, store.ErrUnauthorized
	}
	if entry.Kind != domain.LedgerCredit && entry.Kind != domain.LedgerPayment {
		return nil, store.ErrInvalidInput
	}
	if !entry.Amount.IsPositive() {
		return nil, store.ErrInvalidAmount
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	// Lock the customer row so concurrent payments serialize against
	// the balance derived below.
	var owner string
	err = pgTx.QueryRowContext(ctx, `
		SELECT owner FROM customers WHERE id = $1 FOR UPDATE
	`, entry.CustomerID).Scan(&owner)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, txError(err)
	}
	if owner != entry.Owner {
		return nil, store.ErrUnauthorized
	}

	if entry.SaleID != "" {
		var cashier string
		err = pgTx.QueryRowContext(ctx, `
			SELECT cashier FROM sales WHERE id = $1
		`, entry.SaleID).Scan(&cashier)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, store.ErrNotFound
			}
			return nil, txError(err)
		}
		if cashier != entry.Owner {
			return nil, store.ErrUnauthorized
		}
	}

	if entry.Kind == domain.LedgerPayment {
		balance, err := balanceInTx(ctx, pgTx, entry.Owner, entry.CustomerID)
		if err != nil {
			return nil, txError(err)
		}
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
	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO ledger_entries (id, owner, customer_id, sale_id, kind, amount, note, created_by, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, entry.ID, entry.Owner, entry.CustomerID, nullIfEmpty(entry.SaleID), entry.Kind,
		entry.Amount, entry.Note, entry.CreatedBy, entry.CreatedAt)
	if err != nil {
		return nil, txError(err)
	}

	if err := pgTx.Commit(); err != nil {
		return nil, txError(err)
	}

	created := entry
	return &created, nil
}

func (s *Store) ListLedgerEntries(ctx context.Context, owner string, customerID string, limit int) ([]domain.LedgerEntry, error) {
	if limit < 1 {
		limit = 100
	}

	if _, err := s.GetCustomer(ctx, owner, customerID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner, customer_id, COALESCE(sale_id, ''), kind, amount, note, created_by, created_at
		FROM ledger_entries
		WHERE owner = $1 AND customer_id = $2
		ORDER BY created_at DESC
		LIMIT $3
	`, owner, customerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.LedgerEntry, 0, limit)
	for rows.Next() {
		var e domain.LedgerEntry
		if err := rows.Scan(&e.ID, &e.Owner, &e.CustomerID, &e.SaleID, &e.Kind,
			&e.Amount, &e.Note, &e.CreatedBy, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Store) CustomerBalance(ctx context.Context, owner string, customerID string) (decimal.Decimal, error) {
	if _, err := s.GetCustomer(ctx, owner, customerID); err != nil {
		return decimal.Zero, err
	}

	var balance decimal.Decimal
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(CASE kind WHEN 'credit' THEN amount ELSE -amount END), 0)
		FROM ledger_entries
		WHERE owner = $1 AND customer_id = $2
	`, owner, customerID).Scan(&balance)
	if err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

func (s *Store) OutstandingTotal(ctx context.Context, owner string) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(GREATEST(balance, 0)), 0)
		FROM (
			SELECT SUM(CASE kind WHEN 'credit' THEN amount ELSE -amount END) AS balance
			FROM ledger_entries
			WHERE owner = $1
			GROUP BY customer_id
		) balances
	`, owner).Scan(&total)
	if err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

func (s *Store) DailySummary(ctx context.Context, owner string, from time.Time, to time.Time) (domain.DailySummary, error) {
	summary := domain.DailySummary{
		Date:        from.Format("2006-01-02"),
		CashTotal:   decimal.Zero,
		CreditTotal: decimal.Zero,
		GrossTotal:  decimal.Zero,
	}

	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(total), 0),
			COALESCE(SUM(CASE payment_kind WHEN 'cash' THEN total ELSE 0 END), 0),
			COALESCE(SUM(CASE payment_kind WHEN 'credit' THEN total ELSE 0 END), 0)
		FROM sales
		WHERE cashier = $1 AND status = $2 AND created_at >= $3 AND created_at < $4
	`, owner, domain.SaleStatusCompleted, from, to).Scan(
		&summary.SalesCount, &summary.GrossTotal, &summary.CashTotal, &summary.CreditTotal)
	if err != nil {
		return domain.DailySummary{}, err
	}

	outstanding, err := s.OutstandingTotal(ctx, owner)
	if err != nil {
		return domain.DailySummary{}, err
	}
	summary.OutstandingCredit = outstanding
	return summary, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, owner, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.Owner, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, owner string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}
	if from.IsZero() {
		from = time.Unix(0, 0).UTC()
	}
	if to.IsZero() {
		to = time.Now().UTC().Add(24 * time.Hour)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE owner = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at DESC
		LIMIT $4
	`, owner, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.Owner, &entry.ActorRole, &entry.Action,
			&entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func balanceInTx(ctx context.Context, pgTx *sql.Tx, owner string, customerID string) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := pgTx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(CASE kind WHEN 'credit' THEN amount ELSE -amount END), 0)
		FROM ledger_entries
		WHERE owner = $1 AND customer_id = $2
	`, owner, customerID).Scan(&balance)
	if err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanSale(_ context.Context, row rowScanner) (*domain.Sale, error) {
	sale, err := scanSaleRow(row)
	if err != nil {
		return nil, err
	}
	return sale, nil
}

func scanSaleRow(row rowScanner) (*domain.Sale, error) {
	var sale domain.Sale
	var cashReceived, change decimal.NullDecimal
	var customerID, voidReason sql.NullString
	var voidedAt sql.NullTime
	err := row.Scan(&sale.ID, &sale.Cashier, &sale.PaymentKind, &sale.Total,
		&cashReceived, &change, &customerID, &sale.Status, &voidReason, &voidedAt, &sale.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if cashReceived.Valid {
		sale.CashReceived = &cashReceived.Decimal
	}
	if change.Valid {
		sale.Change = &change.Decimal
	}
	if customerID.Valid {
		sale.CustomerID = customerID.String
	}
	if voidReason.Valid {
		sale.VoidReason = voidReason.String
	}
	if voidedAt.Valid {
		t := voidedAt.Time
		sale.VoidedAt = &t
	}
	return &sale, nil
}

func (s *Store) loadSaleLines(ctx context.Context, saleID string) ([]domain.SaleLine, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sale_id, product_id, product_name, qty, unit_price, line_total
		FROM sale_lines
		WHERE sale_id = $1
	`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lines := make([]domain.SaleLine, 0, 8)
	for rows.Next() {
		var line domain.SaleLine
		if err := rows.Scan(&line.ID, &line.SaleID, &line.ProductID, &line.ProductName,
			&line.Qty, &line.UnitPrice, &line.LineTotal); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

func scanProducts(rows *sql.Rows) ([]domain.Product, error) {
	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Owner, &p.Name, &p.Category, &p.CostPrice, &p.SellingPrice,
			&p.StockQty, &p.MinStock, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

// txError maps serialization failures and deadlocks to the retryable
// conflict error. Postgres reports these at the losing statement, not
// only at commit, so every in-transaction query goes through here.
func txError(err error) error {
	if isSerializationFailure(err) {
		return store.ErrConflictRetry
	}
	return err
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullDecimal(val *decimal.Decimal) any {
	if val == nil {
		return nil
	}
	return *val
}
