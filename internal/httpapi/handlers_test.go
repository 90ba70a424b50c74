package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tindahanko/backend/internal/cache"
	"tindahanko/backend/internal/domain"
	"tindahanko/backend/internal/service"
	"tindahanko/backend/internal/store/memory"
)

// newTestAPI builds a full API with an in-memory store, real AuthManager
// and real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.New()
	svc := service.New(repo)
	auth := NewAuthManager("test-secret-key-0123456789abcdef", time.Hour, repo, svc)
	return New(svc, auth, cache.NoopUnlockCache{}, 10*time.Minute, "*")
}

func doJSON(t *testing.T, api *API, method string, path string, token string, csrf string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if csrf != "" {
		req.Header.Set("X-CSRF-Token", csrf)
	}
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)
	return rec
}

func csrfToken(t *testing.T, api *API) string {
	t.Helper()
	rec := doJSON(t, api, http.MethodGet, "/api/v1/auth/csrf-token", "", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("csrf token request failed: %d", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode csrf token: %v", err)
	}
	return body["csrf_token"]
}

func registerAndLogin(t *testing.T, api *API, username string, password string, pin string) (string, string) {
	t.Helper()

	rec := doJSON(t, api, http.MethodPost, "/api/v1/auth/register", "", "", domain.RegisterRequest{
		Username: username,
		Password: password,
		PIN:      pin,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register %s failed: %d %s", username, rec.Code, rec.Body.String())
	}

	rec = doJSON(t, api, http.MethodPost, "/api/v1/auth/login", "", "", domain.LoginRequest{
		Username: username,
		Password: password,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s failed: %d %s", username, rec.Code, rec.Body.String())
	}

	var login domain.LoginResponse
	if err := json.NewDecoder(rec.Body).Decode(&login); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return login.AccessToken, login.Role
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)

	rec := doJSON(t, api, http.MethodGet, "/healthz", "", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestRegisterFirstUserBecomesAdmin(t *testing.T) {
	api := newTestAPI(t)

	_, role := registerAndLogin(t, api, "nena", "sari-sari-pass", "425163")
	if role != domain.RoleAdmin {
		t.Fatalf("expected first registrant to be admin, got %s", role)
	}

	_, role = registerAndLogin(t, api, "berto", "another-pass", "971532")
	if role != domain.RoleCashier {
		t.Fatalf("expected second registrant to be cashier, got %s", role)
	}
}

func TestRegisterRejectsWeakPIN(t *testing.T) {
	api := newTestAPI(t)

	rec := doJSON(t, api, http.MethodPost, "/api/v1/auth/register", "", "", domain.RegisterRequest{
		Username: "nena",
		Password: "sari-sari-pass",
		PIN:      "1111",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for repeated-digit pin, got %d", rec.Code)
	}
}

func TestLoginRejectsInvalidCredentials(t *testing.T) {
	api := newTestAPI(t)
	registerAndLogin(t, api, "nena", "sari-sari-pass", "425163")

	rec := doJSON(t, api, http.MethodPost, "/api/v1/auth/login", "", "", domain.LoginRequest{
		Username: "nena",
		Password: "wrong-pass",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestProductsRequireAuth(t *testing.T) {
	api := newTestAPI(t)

	rec := doJSON(t, api, http.MethodGet, "/api/v1/products", "", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
}

func TestProductCreateAndOwnerScopedList(t *testing.T) {
	api := newTestAPI(t)
	adminToken, _ := registerAndLogin(t, api, "nena", "sari-sari-pass", "425163")
	cashierToken, _ := registerAndLogin(t, api, "berto", "another-pass", "971532")
	csrf := csrfToken(t, api)

	rec := doJSON(t, api, http.MethodPost, "/api/v1/products", adminToken, csrf, domain.ProductCreateRequest{
		Name:         "Sardinas 155g",
		Category:     "canned goods",
		CostPrice:    decimal.RequireFromString("18.00"),
		SellingPrice: decimal.RequireFromString("24.00"),
		InitialStock: 10,
		MinStock:     2,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create product failed: %d %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, api, http.MethodGet, "/api/v1/products", adminToken, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list products failed: %d", rec.Code)
	}
	var adminList struct {
		Products []domain.Product `json:"products"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&adminList); err != nil {
		t.Fatalf("decode products: %v", err)
	}
	if len(adminList.Products) != 1 {
		t.Fatalf("expected 1 product for owner, got %d", len(adminList.Products))
	}

	rec = doJSON(t, api, http.MethodGet, "/api/v1/products", cashierToken, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("cashier list failed: %d", rec.Code)
	}
	var cashierList struct {
		Products []domain.Product `json:"products"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&cashierList); err != nil {
		t.Fatalf("decode products: %v", err)
	}
	if len(cashierList.Products) != 0 {
		t.Fatalf("expected no products for other principal, got %d", len(cashierList.Products))
	}
}

func TestProductCreateForbiddenForCashier(t *testing.T) {
	api := newTestAPI(t)
	registerAndLogin(t, api, "nena", "sari-sari-pass", "425163")
	cashierToken, _ := registerAndLogin(t, api, "berto", "another-pass", "971532")
	csrf := csrfToken(t, api)

	rec := doJSON(t, api, http.MethodPost, "/api/v1/products", cashierToken, csrf, domain.ProductCreateRequest{
		Name:         "Suka",
		Category:     "condiments",
		SellingPrice: decimal.RequireFromString("17.00"),
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for cashier create, got %d", rec.Code)
	}
}

func TestCheckoutOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	token, _ := registerAndLogin(t, api, "nena", "sari-sari-pass", "425163")
	csrf := csrfToken(t, api)

	rec := doJSON(t, api, http.MethodPost, "/api/v1/products", token, csrf, domain.ProductCreateRequest{
		Name:         "Bigas 1kg",
		Category:     "staples",
		CostPrice:    decimal.RequireFromString("48.00"),
		SellingPrice: decimal.RequireFromString("56.00"),
		InitialStock: 5,
		MinStock:     1,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create product failed: %d", rec.Code)
	}
	var created struct {
		Product domain.Product `json:"product"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode product: %v", err)
	}

	cash := decimal.RequireFromString("120.00")
	rec = doJSON(t, api, http.MethodPost, "/api/v1/checkout", token, csrf, domain.CheckoutRequest{
		PaymentKind:  domain.PaymentCash,
		CashReceived: &cash,
		Items:        []domain.CartItem{{ProductID: created.Product.ID, Qty: 2}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("checkout failed: %d %s", rec.Code, rec.Body.String())
	}
	var resp domain.SaleResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode sale: %v", err)
	}
	if !resp.Sale.Total.Equal(decimal.RequireFromString("112.00")) {
		t.Fatalf("expected total 112.00, got %s", resp.Sale.Total)
	}
	if resp.Sale.Change == nil || !resp.Sale.Change.Equal(decimal.RequireFromString("8.00")) {
		t.Fatalf("expected change 8.00, got %v", resp.Sale.Change)
	}

	// Stock is 3 now; overselling returns 409.
	rec = doJSON(t, api, http.MethodPost, "/api/v1/checkout", token, csrf, domain.CheckoutRequest{
		PaymentKind:  domain.PaymentCash,
		CashReceived: &cash,
		Items:        []domain.CartItem{{ProductID: created.Product.ID, Qty: 10}},
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for oversell, got %d", rec.Code)
	}
}

func TestCreditCheckoutAndStatementOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	token, _ := registerAndLogin(t, api, "nena", "sari-sari-pass", "425163")
	csrf := csrfToken(t, api)

	rec := doJSON(t, api, http.MethodPost, "/api/v1/products", token, csrf, domain.ProductCreateRequest{
		Name:         "Corned Beef",
		Category:     "canned goods",
		SellingPrice: decimal.RequireFromString("42.00"),
		InitialStock: 10,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create product failed: %d", rec.Code)
	}
	var created struct {
		Product domain.Product `json:"product"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode product: %v", err)
	}

	rec = doJSON(t, api, http.MethodPost, "/api/v1/checkout", token, csrf, domain.CheckoutRequest{
		PaymentKind:  domain.PaymentCredit,
		CustomerName: "Maria Santos",
		Items:        []domain.CartItem{{ProductID: created.Product.ID, Qty: 1}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("credit checkout failed: %d %s", rec.Code, rec.Body.String())
	}
	var sale domain.SaleResponse
	if err := json.NewDecoder(rec.Body).Decode(&sale); err != nil {
		t.Fatalf("decode sale: %v", err)
	}

	rec = doJSON(t, api, http.MethodGet, "/api/v1/customers/"+sale.Sale.CustomerID+"/statement", token, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("statement failed: %d", rec.Code)
	}
	var statement domain.StatementResponse
	if err := json.NewDecoder(rec.Body).Decode(&statement); err != nil {
		t.Fatalf("decode statement: %v", err)
	}
	if !statement.Balance.Equal(decimal.RequireFromString("42.00")) {
		t.Fatalf("expected balance 42.00, got %s", statement.Balance)
	}

	rec = doJSON(t, api, http.MethodPost, "/api/v1/payments", token, csrf, domain.PaymentRequest{
		CustomerID: sale.Sale.CustomerID,
		Amount:     decimal.RequireFromString("100.00"),
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for overpayment, got %d", rec.Code)
	}

	rec = doJSON(t, api, http.MethodPost, "/api/v1/payments", token, csrf, domain.PaymentRequest{
		CustomerID: sale.Sale.CustomerID,
		Amount:     decimal.RequireFromString("42.00"),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("payment failed: %d %s", rec.Code, rec.Body.String())
	}
	var payment domain.PaymentResponse
	if err := json.NewDecoder(rec.Body).Decode(&payment); err != nil {
		t.Fatalf("decode payment: %v", err)
	}
	if !payment.Balance.IsZero() {
		t.Fatalf("expected settled balance, got %s", payment.Balance)
	}
}

func TestPinVerifyFlow(t *testing.T) {
	api := newTestAPI(t)
	token, _ := registerAndLogin(t, api, "nena", "sari-sari-pass", "425163")
	csrf := csrfToken(t, api)

	rec := doJSON(t, api, http.MethodPost, "/api/v1/auth/pin/verify", token, csrf, domain.PinVerifyRequest{PIN: "000000"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for wrong pin, got %d", rec.Code)
	}

	rec = doJSON(t, api, http.MethodPost, "/api/v1/auth/pin/verify", token, csrf, domain.PinVerifyRequest{PIN: "425163"})
	if rec.Code != http.StatusOK {
		t.Fatalf("pin verify failed: %d %s", rec.Code, rec.Body.String())
	}
	var resp domain.PinVerifyResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode pin response: %v", err)
	}
	if !resp.Unlocked || resp.ExpiresAt == "" {
		t.Fatalf("expected unlocked response with expiry, got %+v", resp)
	}
}

func TestVoidRequiresAdminRole(t *testing.T) {
	api := newTestAPI(t)
	registerAndLogin(t, api, "nena", "sari-sari-pass", "425163")
	cashierToken, _ := registerAndLogin(t, api, "berto", "another-pass", "971532")
	csrf := csrfToken(t, api)

	rec := doJSON(t, api, http.MethodPost, "/api/v1/sales/sale-x/void", cashierToken, csrf, domain.VoidSaleRequest{Reason: "mistake"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for cashier void, got %d", rec.Code)
	}
}
