package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/loan-engine/api"
	"github.com/warp/loan-engine/auth"
	"github.com/warp/loan-engine/ledger"
	"github.com/warp/loan-engine/ledger/store"
	"github.com/warp/loan-engine/lending"
	"github.com/warp/loan-engine/metrics"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var testToday = ledger.NewDate(2025, time.June, 15)

func decimalFromString(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type testEnv struct {
	server   *httptest.Server
	auth     *auth.Service
	mem      *store.Memory
	adminTok string
	custTok  string
	custID   string // customer id behind custTok
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	mem := store.NewMemory()
	authsvc := auth.NewService(auth.NewMemoryUserStore(), mem, auth.Config{
		JWTSecret: []byte("test-secret"),
		TokenTTL:  time.Hour,
	}, log)
	lendsvc := lending.NewService(mem, lending.Config{
		MinInterestRate: decimalFromString("0.01"),
		MaxInterestRate: decimalFromString("0.5"),
		MaxAttempts:     3,
	}, log, lending.WithClock(func() ledger.Date { return testToday }))

	handler := api.NewHandler(lendsvc, authsvc, log)
	router := api.NewRouter(handler, authsvc, metrics.New())
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	env := &testEnv{server: srv, auth: authsvc, mem: mem}

	ctx := context.Background()
	_, err := authsvc.Signup(ctx, auth.SignupInput{
		Name: "Alice", Surname: "Admin", Password: "admin1", Roles: []string{"ADMIN"},
	})
	require.NoError(t, err)
	_, err = authsvc.Signup(ctx, auth.SignupInput{
		Name: "Charlie", Surname: "Customer", Password: "cust1",
	})
	require.NoError(t, err)

	env.adminTok, err = authsvc.Login(ctx, "aadmin", "admin1")
	require.NoError(t, err)
	env.custTok, err = authsvc.Login(ctx, "ccustomer", "cust1")
	require.NoError(t, err)

	claims, err := authsvc.ParseToken(env.custTok)
	require.NoError(t, err)
	env.custID = claims.CustomerID

	return env
}

func (e *testEnv) request(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeInto(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func createLoanRequest(customerID string) api.CreateLoanRequest {
	return api.CreateLoanRequest{
		CustomerID:           customerID,
		Amount:               "1000",
		InterestRate:         "0.03",
		NumberOfInstallments: 12,
	}
}

// =============================================================================
// AUTH ENDPOINT TESTS
// =============================================================================

func TestAPI_SignupAndLogin(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, http.MethodPost, "/api/auth/signup", "", api.SignupRequest{
		Name: "Jane", Surname: "Doe", Password: "secret",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var signup api.SignupResponse
	decodeInto(t, resp, &signup)
	assert.Equal(t, "jdoe", signup.Username)

	resp = env.request(t, http.MethodPost, "/api/auth/login", "", api.LoginRequest{
		Username: "jdoe", Password: "secret",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var token api.TokenResponse
	decodeInto(t, resp, &token)
	assert.NotEmpty(t, token.Token)
}

func TestAPI_Signup_Duplicate_Conflict(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, http.MethodPost, "/api/auth/signup", "", api.SignupRequest{
		Name: "Carol", Surname: "Customer", Password: "x",
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode, "collides with the seeded ccustomer")

	var errResp api.ErrorResponse
	decodeInto(t, resp, &errResp)
	assert.Equal(t, "USERNAME_TAKEN", errResp.Code)
}

func TestAPI_Login_BadCredentials(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, http.MethodPost, "/api/auth/login", "", api.LoginRequest{
		Username: "ccustomer", Password: "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

// =============================================================================
// LOAN ENDPOINT TESTS
// =============================================================================

func TestAPI_CreateLoan_RequiresToken(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, http.MethodPost, "/api/loans", "", createLoanRequest(env.custID))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.request(t, http.MethodPost, "/api/loans", "garbage-token", createLoanRequest(env.custID))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAPI_CreateLoan_HappyPath(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, http.MethodPost, "/api/loans", env.custTok, createLoanRequest(env.custID))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var loan api.LoanDTO
	decodeInto(t, resp, &loan)
	assert.Equal(t, env.custID, loan.CustomerID)
	assert.Equal(t, 12, loan.NumberOfInstallments)
	assert.False(t, loan.IsPaid)
	require.Len(t, loan.Installments, 12)
	assert.Equal(t, "85.83", loan.Installments[0].Amount)
	assert.Equal(t, "2025-07-01", loan.Installments[0].DueDate)
}

func TestAPI_CreateLoan_ForOtherCustomer_Forbidden(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, http.MethodPost, "/api/loans", env.custTok, createLoanRequest("someone-else"))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// An admin can create for anyone.
	resp = env.request(t, http.MethodPost, "/api/loans", env.adminTok, createLoanRequest(env.custID))
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestAPI_CreateLoan_Validation(t *testing.T) {
	env := newTestEnv(t)

	bad := createLoanRequest(env.custID)
	bad.NumberOfInstallments = 10
	resp := env.request(t, http.MethodPost, "/api/loans", env.custTok, bad)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var errResp api.ErrorResponse
	decodeInto(t, resp, &errResp)
	assert.Equal(t, "VALIDATION", errResp.Code)

	bad = createLoanRequest(env.custID)
	bad.Amount = "not-a-number"
	resp = env.request(t, http.MethodPost, "/api/loans", env.custTok, bad)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_ListLoans_OwnershipEnforced(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, http.MethodPost, "/api/loans", env.custTok, createLoanRequest(env.custID))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = env.request(t, http.MethodGet, "/api/loans?customer_id="+env.custID, env.custTok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var loans []api.LoanDTO
	decodeInto(t, resp, &loans)
	require.Len(t, loans, 1)
	assert.NotEmpty(t, loans[0].RemainingFee)

	// Another customer's loans are off limits; admins may look anywhere.
	resp = env.request(t, http.MethodGet, "/api/loans?customer_id=someone-else", env.custTok, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.request(t, http.MethodGet, "/api/loans?customer_id="+env.custID, env.adminTok, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPI_ListLoans_PaidFilter(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, http.MethodPost, "/api/loans", env.custTok, createLoanRequest(env.custID))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = env.request(t, http.MethodGet, "/api/loans?customer_id="+env.custID+"&paid=true", env.custTok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var loans []api.LoanDTO
	decodeInto(t, resp, &loans)
	assert.Empty(t, loans)

	resp = env.request(t, http.MethodGet, "/api/loans?customer_id="+env.custID+"&paid=maybe", env.custTok, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_PayLoan(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, http.MethodPost, "/api/loans", env.custTok, createLoanRequest(env.custID))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var loan api.LoanDTO
	decodeInto(t, resp, &loan)

	// First two installments (due 07-01 and 08-01) are inside the payment
	// window, discounted to 84.46 and 81.80.
	resp = env.request(t, http.MethodPost, "/api/loans/"+loan.ID+"/pay", env.custTok, api.PaymentRequest{Amount: "170"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var payment api.PaymentResponse
	decodeInto(t, resp, &payment)
	assert.Equal(t, 2, payment.InstallmentsPaid)
	assert.Equal(t, "166.26", payment.TotalAmountPaid)
	assert.False(t, payment.LoanFullyPaid)
}

func TestAPI_PayLoan_Insufficient(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, http.MethodPost, "/api/loans", env.custTok, createLoanRequest(env.custID))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var loan api.LoanDTO
	decodeInto(t, resp, &loan)

	resp = env.request(t, http.MethodPost, "/api/loans/"+loan.ID+"/pay", env.custTok, api.PaymentRequest{Amount: "10"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_GetInstallments(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, http.MethodPost, "/api/loans", env.custTok, createLoanRequest(env.custID))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var loan api.LoanDTO
	decodeInto(t, resp, &loan)

	resp = env.request(t, http.MethodGet, "/api/loans/"+loan.ID+"/installments", env.custTok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var installments []api.InstallmentDTO
	decodeInto(t, resp, &installments)
	require.Len(t, installments, 12)
	assert.Equal(t, "2025-07-01", installments[0].DueDate)

	resp = env.request(t, http.MethodGet, "/api/loans/missing/installments", env.custTok, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_DeleteLoan_AdminOnly(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, http.MethodPost, "/api/loans", env.custTok, createLoanRequest(env.custID))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var loan api.LoanDTO
	decodeInto(t, resp, &loan)

	resp = env.request(t, http.MethodDelete, "/api/loans/"+loan.ID, env.custTok, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.request(t, http.MethodDelete, "/api/loans/"+loan.ID, env.adminTok, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.request(t, http.MethodDelete, "/api/loans/"+loan.ID, env.adminTok, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// =============================================================================
// OPERATIONAL ENDPOINT TESTS
// =============================================================================

func TestAPI_HealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.request(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
