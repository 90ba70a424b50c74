package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"tindahanko/backend/internal/domain"
	"tindahanko/backend/internal/store"
	"tindahanko/backend/internal/store/memory"
)

func newTestService() *Service {
	return New(memory.New())
}

func registeredContext(t *testing.T, svc *Service, principal string) context.Context {
	t.Helper()
	assignment, err := svc.EnsureRole(context.Background(), principal)
	if err != nil {
		t.Fatalf("ensure role for %s failed: %v", principal, err)
	}
	return WithActor(context.Background(), domain.Actor{Principal: assignment.Principal, Role: assignment.Role})
}

func dec(t *testing.T, val string) decimal.Decimal {
	t.Helper()
	return decimal.RequireFromString(val)
}

func createProduct(t *testing.T, svc *Service, ctx context.Context, name string, price string, stock int) domain.Product {
	t.Helper()
	product, err := svc.CreateProduct(ctx, domain.ProductCreateRequest{
		Name:         name,
		Category:     "general",
		CostPrice:    dec(t, "1.00"),
		SellingPrice: dec(t, price),
		InitialStock: stock,
		MinStock:     2,
	})
	if err != nil {
		t.Fatalf("create product %s failed: %v", name, err)
	}
	return product
}

func TestFirstRegistrantBecomesAdmin(t *testing.T) {
	svc := newTestService()

	first, err := svc.EnsureRole(context.Background(), "nena")
	if err != nil {
		t.Fatalf("first ensure role failed: %v", err)
	}
	if first.Role != domain.RoleAdmin {
		t.Fatalf("expected first registrant to be admin, got %s", first.Role)
	}

	second, err := svc.EnsureRole(context.Background(), "berto")
	if err != nil {
		t.Fatalf("second ensure role failed: %v", err)
	}
	if second.Role != domain.RoleCashier {
		t.Fatalf("expected second registrant to be cashier, got %s", second.Role)
	}
}

func TestEnsureRoleIsIdempotent(t *testing.T) {
	svc := newTestService()

	first, err := svc.EnsureRole(context.Background(), "nena")
	if err != nil {
		t.Fatalf("ensure role failed: %v", err)
	}
	again, err := svc.EnsureRole(context.Background(), "nena")
	if err != nil {
		t.Fatalf("repeat ensure role failed: %v", err)
	}
	if again.Role != first.Role {
		t.Fatalf("role changed on repeat: %s vs %s", first.Role, again.Role)
	}
}

func TestConcurrentBootstrapYieldsSingleAdmin(t *testing.T) {
	svc := newTestService()

	const registrants = 16
	roles := make([]string, registrants)
	var wg sync.WaitGroup
	for i := 0; i < registrants; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assignment, err := svc.EnsureRole(context.Background(), fmt.Sprintf("user-%d", i))
			if err != nil {
				t.Errorf("ensure role failed: %v", err)
				return
			}
			roles[i] = assignment.Role
		}(i)
	}
	wg.Wait()

	admins := 0
	for _, role := range roles {
		if role == domain.RoleAdmin {
			admins++
		}
	}
	if admins != 1 {
		t.Fatalf("expected exactly one admin, got %d", admins)
	}
}

func TestCashCheckoutComputesTotalsAndChange(t *testing.T) {
	svc := newTestService()
	ctx := registeredContext(t, svc, "nena")
	product := createProduct(t, svc, ctx, "Sardinas", "30.00", 10)

	cash := dec(t, "100.00")
	resp, err := svc.Checkout(ctx, domain.CheckoutRequest{
		PaymentKind:  domain.PaymentCash,
		CashReceived: &cash,
		Items:        []domain.CartItem{{ProductID: product.ID, Qty: 3}},
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	sale := resp.Sale
	if !sale.Total.Equal(dec(t, "90.00")) {
		t.Fatalf("expected total 90.00, got %s", sale.Total)
	}
	if sale.Change == nil || !sale.Change.Equal(dec(t, "10.00")) {
		t.Fatalf("expected change 10.00, got %v", sale.Change)
	}

	lineSum := decimal.Zero
	for _, line := range sale.Lines {
		expected := line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Qty)))
		if !line.LineTotal.Equal(expected) {
			t.Fatalf("line total %s does not match qty*price %s", line.LineTotal, expected)
		}
		lineSum = lineSum.Add(line.LineTotal)
	}
	if !sale.Total.Equal(lineSum) {
		t.Fatalf("sale total %s does not equal sum of lines %s", sale.Total, lineSum)
	}

	after, err := svc.GetProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if after.StockQty != 7 {
		t.Fatalf("expected stock 7 after sale, got %d", after.StockQty)
	}
}

func TestCashCheckoutMixedCartDecrementsEachProduct(t *testing.T) {
	svc := newTestService()
	ctx := registeredContext(t, svc, "nena")
	suka := createProduct(t, svc, ctx, "Suka", "14.00", 10)
	bigas := createProduct(t, svc, ctx, "Bigas 1kg", "62.00", 10)

	cash := dec(t, "100.00")
	resp, err := svc.Checkout(ctx, domain.CheckoutRequest{
		PaymentKind:  domain.PaymentCash,
		CashReceived: &cash,
		Items: []domain.CartItem{
			{ProductID: suka.ID, Qty: 2},
			{ProductID: bigas.ID, Qty: 1},
		},
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	sale := resp.Sale
	if !sale.Total.Equal(dec(t, "90.00")) {
		t.Fatalf("expected total 90.00, got %s", sale.Total)
	}
	if sale.Change == nil || !sale.Change.Equal(dec(t, "10.00")) {
		t.Fatalf("expected change 10.00, got %v", sale.Change)
	}
	if len(sale.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(sale.Lines))
	}

	lineSum := decimal.Zero
	for _, line := range sale.Lines {
		lineSum = lineSum.Add(line.LineTotal)
	}
	if !sale.Total.Equal(lineSum) {
		t.Fatalf("sale total %s does not equal sum of lines %s", sale.Total, lineSum)
	}

	afterSuka, err := svc.GetProduct(ctx, suka.ID)
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if afterSuka.StockQty != 8 {
		t.Fatalf("expected suka stock 8, got %d", afterSuka.StockQty)
	}
	afterBigas, err := svc.GetProduct(ctx, bigas.ID)
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if afterBigas.StockQty != 9 {
		t.Fatalf("expected bigas stock 9, got %d", afterBigas.StockQty)
	}
}

func TestCheckoutAggregatesRepeatedCartLines(t *testing.T) {
	svc := newTestService()
	ctx := registeredContext(t, svc, "nena")
	product := createProduct(t, svc, ctx, "Sardinas", "30.00", 3)

	cash := dec(t, "200.00")
	_, err := svc.Checkout(ctx, domain.CheckoutRequest{
		PaymentKind:  domain.PaymentCash,
		CashReceived: &cash,
		Items: []domain.CartItem{
			{ProductID: product.ID, Qty: 2},
			{ProductID: product.ID, Qty: 2},
		},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock for combined qty 4 of stock 3, got %v", err)
	}

	after, err := svc.GetProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if after.StockQty != 3 {
		t.Fatalf("expected stock untouched at 3, got %d", after.StockQty)
	}
}

func TestCashCheckoutRejectsInsufficientPayment(t *testing.T) {
	svc := newTestService()
	ctx := registeredContext(t, svc, "nena")
	product := createProduct(t, svc, ctx, "Sardinas", "30.00", 10)

	cash := dec(t, "50.00")
	_, err := svc.Checkout(ctx, domain.CheckoutRequest{
		PaymentKind:  domain.PaymentCash,
		CashReceived: &cash,
		Items:        []domain.CartItem{{ProductID: product.ID, Qty: 3}},
	})
	if !errors.Is(err, store.ErrInsufficientPayment) {
		t.Fatalf("expected ErrInsufficientPayment, got %v", err)
	}

	after, err := svc.GetProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if after.StockQty != 10 {
		t.Fatalf("failed checkout must not touch stock, got %d", after.StockQty)
	}
}

func TestCreditCheckoutCreatesCustomerAndLedgerEntry(t *testing.T) {
	svc := newTestService()
	ctx := registeredContext(t, svc, "nena")
	product := createProduct(t, svc, ctx, "Bigas 1kg", "56.00", 20)

	resp, err := svc.Checkout(ctx, domain.CheckoutRequest{
		PaymentKind:  domain.PaymentCredit,
		CustomerName: "Maria Santos",
		Items:        []domain.CartItem{{ProductID: product.ID, Qty: 2}},
	})
	if err != nil {
		t.Fatalf("credit checkout failed: %v", err)
	}
	if resp.Sale.CustomerID == "" {
		t.Fatalf("expected credit sale to carry a customer id")
	}

	statement, err := svc.Statement(ctx, resp.Sale.CustomerID, 10)
	if err != nil {
		t.Fatalf("statement failed: %v", err)
	}
	if statement.Customer.Name != "Maria Santos" {
		t.Fatalf("expected customer Maria Santos, got %s", statement.Customer.Name)
	}
	if len(statement.Entries) != 1 {
		t.Fatalf("expected one ledger entry, got %d", len(statement.Entries))
	}
	entry := statement.Entries[0]
	if entry.Kind != domain.LedgerCredit || !entry.Amount.Equal(dec(t, "112.00")) {
		t.Fatalf("unexpected ledger entry kind=%s amount=%s", entry.Kind, entry.Amount)
	}
	if entry.SaleID != resp.Sale.ID {
		t.Fatalf("ledger entry not linked to sale")
	}
	if !statement.Balance.Equal(dec(t, "112.00")) {
		t.Fatalf("expected balance 112.00, got %s", statement.Balance)
	}
}

func TestCreditCheckoutReusesCustomerByName(t *testing.T) {
	svc := newTestService()
	ctx := registeredContext(t, svc, "nena")
	product := createProduct(t, svc, ctx, "Itlog", "9.00", 50)

	first, err := svc.Checkout(ctx, domain.CheckoutRequest{
		PaymentKind:  domain.PaymentCredit,
		CustomerName: "Maria Santos",
		Items:        []domain.CartItem{{ProductID: product.ID, Qty: 4}},
	})
	if err != nil {
		t.Fatalf("first credit checkout failed: %v", err)
	}

	second, err := svc.Checkout(ctx, domain.CheckoutRequest{
		PaymentKind:  domain.PaymentCredit,
		CustomerName: "  maria santos ",
		Items:        []domain.CartItem{{ProductID: product.ID, Qty: 2}},
	})
	if err != nil {
		t.Fatalf("second credit checkout failed: %v", err)
	}
	if first.Sale.CustomerID != second.Sale.CustomerID {
		t.Fatalf("expected name match to reuse the customer")
	}

	customer, err := svc.GetCustomer(ctx, first.Sale.CustomerID)
	if err != nil {
		t.Fatalf("get customer failed: %v", err)
	}
	if !customer.Balance.Equal(dec(t, "54.00")) {
		t.Fatalf("expected balance 54.00, got %s", customer.Balance)
	}
}

func TestCreateCustomerRejectsDuplicateName(t *testing.T) {
	svc := newTestService()
	ctx := registeredContext(t, svc, "nena")

	if _, err := svc.CreateCustomer(ctx, domain.CustomerCreateRequest{Name: "Maria Santos"}); err != nil {
		t.Fatalf("create customer failed: %v", err)
	}
	if _, err := svc.CreateCustomer(ctx, domain.CustomerCreateRequest{Name: "  maria santos "}); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for duplicate name, got %v", err)
	}
}

func TestCreditCheckoutRequiresCustomer(t *testing.T) {
	svc := newTestService()
	ctx := registeredContext(t, svc, "nena")
	product := createProduct(t, svc, ctx, "Suka", "17.00", 5)

	_, err := svc.Checkout(ctx, domain.CheckoutRequest{
		PaymentKind: domain.PaymentCredit,
		Items:       []domain.CartItem{{ProductID: product.ID, Qty: 1}},
	})
	if !errors.Is(err, store.ErrMissingCustomerName) {
		t.Fatalf("expected ErrMissingCustomerName, got %v", err)
	}
}

func TestFailedCreditCheckoutLeavesNoOrphanCustomer(t *testing.T) {
	svc := newTestService()
	ctx := registeredContext(t, svc, "nena")
	product := createProduct(t, svc, ctx, "Toyo", "18.00", 1)

	_, err := svc.Checkout(ctx, domain.CheckoutRequest{
		PaymentKind:  domain.PaymentCredit,
		CustomerName: "Pedro Reyes",
		Items:        []domain.CartItem{{ProductID: product.ID, Qty: 5}},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	customers, err := svc.ListCustomers(ctx)
	if err != nil {
		t.Fatalf("list customers failed: %v", err)
	}
	if len(customers) != 0 {
		t.Fatalf("failed checkout must not create a customer, got %d", len(customers))
	}
}

func TestConcurrentCheckoutsNeverOversell(t *testing.T) {
	svc := newTestService()
	ctx := registeredContext(t, svc, "nena")
	product := createProduct(t, svc, ctx, "Softdrinks Litro", "62.00", 5)

	const buyers = 8
	var wg sync.WaitGroup
	results := make([]error, buyers)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cash := dec(t, "62.00")
			_, err := svc.Checkout(ctx, domain.CheckoutRequest{
				PaymentKind:  domain.PaymentCash,
				CashReceived: &cash,
				Items:        []domain.CartItem{{ProductID: product.ID, Qty: 1}},
			})
			results[i] = err
		}(i)
	}
	wg.Wait()

	succeeded, insufficient := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, store.ErrInsufficientStock):
			insufficient++
		default:
			t.Fatalf("unexpected checkout error: %v", err)
		}
	}
	if succeeded != 5 || insufficient != 3 {
		t.Fatalf("expected 5 successes and 3 stock failures, got %d/%d", succeeded, insufficient)
	}

	after, err := svc.GetProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if after.StockQty != 0 {
		t.Fatalf("expected stock 0 after concurrent sales, got %d", after.StockQty)
	}
}

func TestRecordPaymentReducesBalanceAndRejectsOverpayment(t *testing.T) {
	svc := newTestService()
	ctx := registeredContext(t, svc, "nena")
	product := createProduct(t, svc, ctx, "Bigas 1kg", "50.00", 10)

	resp, err := svc.Checkout(ctx, domain.CheckoutRequest{
		PaymentKind:  domain.PaymentCredit,
		CustomerName: "Maria Santos",
		Items:        []domain.CartItem{{ProductID: product.ID, Qty: 2}},
	})
	if err != nil {
		t.Fatalf("credit checkout failed: %v", err)
	}
	customerID := resp.Sale.CustomerID

	_, err = svc.RecordPayment(ctx, domain.PaymentRequest{
		CustomerID: customerID,
		Amount:     dec(t, "150.00"),
	})
	if !errors.Is(err, store.ErrInvalidAmount) {
		t.Fatalf("expected overpayment to fail with ErrInvalidAmount, got %v", err)
	}

	payment, err := svc.RecordPayment(ctx, domain.PaymentRequest{
		CustomerID: customerID,
		Amount:     dec(t, "50.00"),
		Note:       "partial",
	})
	if err != nil {
		t.Fatalf("payment failed: %v", err)
	}
	if !payment.Balance.Equal(dec(t, "50.00")) {
		t.Fatalf("expected balance 50.00 after payment, got %s", payment.Balance)
	}
	if payment.Entry.Kind != domain.LedgerPayment {
		t.Fatalf("expected payment entry kind, got %s", payment.Entry.Kind)
	}
}

func TestRecordPaymentRejectsNonPositiveAmount(t *testing.T) {
	svc := newTestService()
	ctx := registeredContext(t, svc, "nena")

	customer, err := svc.CreateCustomer(ctx, domain.CustomerCreateRequest{Name: "Maria Santos"})
	if err != nil {
		t.Fatalf("create customer failed: %v", err)
	}

	_, err = svc.RecordPayment(ctx, domain.PaymentRequest{
		CustomerID: customer.ID,
		Amount:     dec(t, "0"),
	})
	if !errors.Is(err, store.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for zero amount, got %v", err)
	}
}

func TestOwnershipIsolatesPrincipals(t *testing.T) {
	svc := newTestService()
	nenaCtx := registeredContext(t, svc, "nena")
	product := createProduct(t, svc, nenaCtx, "Sabon Bar", "20.00", 10)

	// Second registrant is a cashier with their own empty shop.
	bertoCtx := registeredContext(t, svc, "berto")

	products, err := svc.ListProducts(bertoCtx)
	if err != nil {
		t.Fatalf("list products failed: %v", err)
	}
	if len(products) != 0 {
		t.Fatalf("expected berto to see no products, got %d", len(products))
	}

	if _, err := svc.GetProduct(bertoCtx, product.ID); !errors.Is(err, store.ErrUnauthorized) {
		t.Fatalf("expected cross-owner point read to fail with ErrUnauthorized, got %v", err)
	}

	cash := dec(t, "20.00")
	_, err = svc.Checkout(bertoCtx, domain.CheckoutRequest{
		PaymentKind:  domain.PaymentCash,
		CashReceived: &cash,
		Items:        []domain.CartItem{{ProductID: product.ID, Qty: 1}},
	})
	if !errors.Is(err, store.ErrUnauthorized) {
		t.Fatalf("expected cross-owner checkout to fail with ErrUnauthorized, got %v", err)
	}

	if _, err := svc.GetProduct(bertoCtx, "prd-missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected absent product to fail with ErrNotFound, got %v", err)
	}
}

func TestVoidSaleRestoresStockAndCompensatesLedger(t *testing.T) {
	svc := newTestService()
	ctx := registeredContext(t, svc, "nena")
	product := createProduct(t, svc, ctx, "Corned Beef", "42.00", 10)

	resp, err := svc.Checkout(ctx, domain.CheckoutRequest{
		PaymentKind:  domain.PaymentCredit,
		CustomerName: "Maria Santos",
		Items:        []domain.CartItem{{ProductID: product.ID, Qty: 3}},
	})
	if err != nil {
		t.Fatalf("credit checkout failed: %v", err)
	}

	voided, err := svc.VoidSale(ctx, resp.Sale.ID, domain.VoidSaleRequest{Reason: "wrong items"})
	if err != nil {
		t.Fatalf("void failed: %v", err)
	}
	if voided.Sale.Status != domain.SaleStatusVoided {
		t.Fatalf("expected voided status, got %s", voided.Sale.Status)
	}

	after, err := svc.GetProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if after.StockQty != 10 {
		t.Fatalf("expected stock restored to 10, got %d", after.StockQty)
	}

	customer, err := svc.GetCustomer(ctx, resp.Sale.CustomerID)
	if err != nil {
		t.Fatalf("get customer failed: %v", err)
	}
	if !customer.Balance.IsZero() {
		t.Fatalf("expected balance zero after void, got %s", customer.Balance)
	}

	statement, err := svc.Statement(ctx, resp.Sale.CustomerID, 10)
	if err != nil {
		t.Fatalf("statement failed: %v", err)
	}
	if len(statement.Entries) != 2 {
		t.Fatalf("void must compensate, not delete: expected 2 entries, got %d", len(statement.Entries))
	}

	if _, err := svc.VoidSale(ctx, resp.Sale.ID, domain.VoidSaleRequest{Reason: "again"}); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected double void to fail with ErrInvalidInput, got %v", err)
	}
}

func TestVoidSaleRequiresAdmin(t *testing.T) {
	svc := newTestService()
	registeredContext(t, svc, "nena")
	bertoCtx := registeredContext(t, svc, "berto")

	_, err := svc.VoidSale(bertoCtx, "sale-x", domain.VoidSaleRequest{Reason: "nope"})
	if !errors.Is(err, store.ErrUnauthorized) {
		t.Fatalf("expected cashier void to fail with ErrUnauthorized, got %v", err)
	}
}

func TestUpdateProductDoesNotTouchStock(t *testing.T) {
	svc := newTestService()
	ctx := registeredContext(t, svc, "nena")
	product := createProduct(t, svc, ctx, "Kape Sachet", "12.00", 40)

	newPrice := dec(t, "13.00")
	updated, err := svc.UpdateProduct(ctx, product.ID, domain.ProductUpdateRequest{
		SellingPrice: &newPrice,
	})
	if err != nil {
		t.Fatalf("update product failed: %v", err)
	}
	if !updated.SellingPrice.Equal(newPrice) {
		t.Fatalf("expected price 13.00, got %s", updated.SellingPrice)
	}
	if updated.StockQty != 40 {
		t.Fatalf("update must not change stock, got %d", updated.StockQty)
	}
}

func TestAdjustStockRejectsDriveBelowZero(t *testing.T) {
	svc := newTestService()
	ctx := registeredContext(t, svc, "nena")
	product := createProduct(t, svc, ctx, "Asin", "8.00", 3)

	_, err := svc.AdjustStock(ctx, domain.StockAdjustRequest{
		ProductID: product.ID,
		Delta:     -5,
		Reason:    "spoilage",
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	adjusted, err := svc.AdjustStock(ctx, domain.StockAdjustRequest{
		ProductID: product.ID,
		Delta:     -2,
		Reason:    "spoilage",
	})
	if err != nil {
		t.Fatalf("adjust stock failed: %v", err)
	}
	if adjusted.StockQty != 1 {
		t.Fatalf("expected stock 1, got %d", adjusted.StockQty)
	}
}

func TestLowStockListsOnlyAtOrBelowThreshold(t *testing.T) {
	svc := newTestService()
	ctx := registeredContext(t, svc, "nena")

	createProduct(t, svc, ctx, "Plenty", "10.00", 50)
	low, err := svc.CreateProduct(ctx, domain.ProductCreateRequest{
		Name:         "Scarce",
		Category:     "general",
		CostPrice:    dec(t, "1.00"),
		SellingPrice: dec(t, "10.00"),
		InitialStock: 2,
		MinStock:     5,
	})
	if err != nil {
		t.Fatalf("create product failed: %v", err)
	}

	products, err := svc.ListLowStock(ctx)
	if err != nil {
		t.Fatalf("list low stock failed: %v", err)
	}
	if len(products) != 1 || products[0].ID != low.ID {
		t.Fatalf("expected only the scarce product, got %d items", len(products))
	}
}

func TestDailySummaryAggregatesCompletedSales(t *testing.T) {
	svc := newTestService()
	ctx := registeredContext(t, svc, "nena")
	product := createProduct(t, svc, ctx, "Pancit Canton", "14.00", 100)

	cash := dec(t, "28.00")
	if _, err := svc.Checkout(ctx, domain.CheckoutRequest{
		PaymentKind:  domain.PaymentCash,
		CashReceived: &cash,
		Items:        []domain.CartItem{{ProductID: product.ID, Qty: 2}},
	}); err != nil {
		t.Fatalf("cash checkout failed: %v", err)
	}

	credit, err := svc.Checkout(ctx, domain.CheckoutRequest{
		PaymentKind:  domain.PaymentCredit,
		CustomerName: "Maria Santos",
		Items:        []domain.CartItem{{ProductID: product.ID, Qty: 3}},
	})
	if err != nil {
		t.Fatalf("credit checkout failed: %v", err)
	}

	summary, err := svc.DailySummary(ctx, "")
	if err != nil {
		t.Fatalf("daily summary failed: %v", err)
	}
	if summary.SalesCount != 2 {
		t.Fatalf("expected 2 sales, got %d", summary.SalesCount)
	}
	if !summary.CashTotal.Equal(dec(t, "28.00")) || !summary.CreditTotal.Equal(dec(t, "42.00")) {
		t.Fatalf("unexpected totals cash=%s credit=%s", summary.CashTotal, summary.CreditTotal)
	}
	if !summary.GrossTotal.Equal(dec(t, "70.00")) {
		t.Fatalf("expected gross 70.00, got %s", summary.GrossTotal)
	}
	if !summary.OutstandingCredit.Equal(dec(t, "42.00")) {
		t.Fatalf("expected outstanding 42.00, got %s", summary.OutstandingCredit)
	}

	if _, err := svc.VoidSale(ctx, credit.Sale.ID, domain.VoidSaleRequest{Reason: "mistake"}); err != nil {
		t.Fatalf("void failed: %v", err)
	}

	summary, err = svc.DailySummary(ctx, "")
	if err != nil {
		t.Fatalf("daily summary after void failed: %v", err)
	}
	if summary.SalesCount != 1 {
		t.Fatalf("voided sale must leave the summary, got %d sales", summary.SalesCount)
	}
	if !summary.OutstandingCredit.IsZero() {
		t.Fatalf("expected outstanding zero after void, got %s", summary.OutstandingCredit)
	}
}

func TestSalesHistoryScopedToCashier(t *testing.T) {
	svc := newTestService()
	nenaCtx := registeredContext(t, svc, "nena")
	product := createProduct(t, svc, nenaCtx, "Itlog", "9.00", 30)

	cash := dec(t, "9.00")
	sale, err := svc.Checkout(nenaCtx, domain.CheckoutRequest{
		PaymentKind:  domain.PaymentCash,
		CashReceived: &cash,
		Items:        []domain.CartItem{{ProductID: product.ID, Qty: 1}},
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	bertoCtx := registeredContext(t, svc, "berto")
	list, err := svc.ListSales(bertoCtx, "", 50)
	if err != nil {
		t.Fatalf("list sales failed: %v", err)
	}
	if len(list.Sales) != 0 {
		t.Fatalf("expected berto to see no sales, got %d", len(list.Sales))
	}

	if _, err := svc.GetSale(bertoCtx, sale.Sale.ID); !errors.Is(err, store.ErrUnauthorized) {
		t.Fatalf("expected cross-cashier sale read to fail with ErrUnauthorized, got %v", err)
	}
}
