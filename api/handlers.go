/*
handlers.go - HTTP API handlers for the loan engine

PURPOSE:
  Exposes the lending engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Auth:
    POST   /api/auth/signup            Register customer (creates ledger account)
    POST   /api/auth/login             Exchange credentials for a token

  Loans:
    POST   /api/loans                  Create loan (reserves credit, builds schedule)
    GET    /api/loans                  List loans for a customer, with filters
    GET    /api/loans/{loanID}/installments  Installment schedule
    POST   /api/loans/{loanID}/pay     Allocate a payment across installments
    DELETE /api/loans/{loanID}         Delete loan (admin, releases credit)

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate shape (decimals parse, fields present)
  3. Call domain logic (lending.Service / auth.Service)
  4. Serialize response
  5. Map domain errors to HTTP status

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation, insufficient credit, payment insufficient
  - 401: Missing or invalid token
  - 403: Actor not allowed to act on the target customer
  - 404: Customer or loan not found
  - 409: Username taken, version conflict after retries
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - middleware.go: Bearer token authentication
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/warp/loan-engine/auth"
	"github.com/warp/loan-engine/ledger"
	"github.com/warp/loan-engine/lending"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Lending *lending.Service
	Auth    *auth.Service
	Log     *logrus.Logger
}

// NewHandler creates a new handler over the lending and auth services.
func NewHandler(lendsvc *lending.Service, authsvc *auth.Service, log *logrus.Logger) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{Lending: lendsvc, Auth: authsvc, Log: log}
}

// =============================================================================
// AUTH HANDLERS
// =============================================================================

// Signup registers a new user and provisions their customer account.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}

	username, err := h.Auth.Signup(r.Context(), auth.SignupInput{
		Name:     req.Name,
		Surname:  req.Surname,
		Password: req.Password,
		Roles:    req.Roles,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, SignupResponse{Username: username})
}

// Login verifies credentials and issues a signed token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}

	token, err := h.Auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid credentials")
			return
		}
		h.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, TokenResponse{Token: token})
}

// =============================================================================
// LOAN HANDLERS
// =============================================================================

// CreateLoan reserves credit and builds the installment schedule.
func (h *Handler) CreateLoan(w http.ResponseWriter, r *http.Request) {
	var req CreateLoanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "amount must be a decimal number")
		return
	}
	rate, err := decimal.NewFromString(req.InterestRate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "interest_rate must be a decimal number")
		return
	}

	loan, err := h.Lending.CreateLoan(r.Context(), lending.CreateLoanInput{
		CustomerID:           ledger.CustomerID(req.CustomerID),
		Amount:               amount,
		InterestRate:         rate,
		NumberOfInstallments: req.NumberOfInstallments,
	}, actorFrom(r.Context()))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toLoanDTO(loan, false))
}

// ListLoans returns a customer's loans, filtered by query parameters.
func (h *Handler) ListLoans(w http.ResponseWriter, r *http.Request) {
	customerID := r.URL.Query().Get("customer_id")
	if customerID == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION", "customer_id query parameter is required")
		return
	}
	if !actorFrom(r.Context()).CanActFor(ledger.CustomerID(customerID)) {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "customers can only view their own loans")
		return
	}

	var filter ledger.LoanFilter
	if v := r.URL.Query().Get("paid"); v != "" {
		paid, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION", "paid must be true or false")
			return
		}
		filter.Paid = &paid
	}
	if v := r.URL.Query().Get("installments"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION", "installments must be an integer")
			return
		}
		filter.NumberOfInstallments = &n
	}

	loans, err := h.Lending.GetLoansForCustomer(r.Context(), ledger.CustomerID(customerID), filter)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	dtos := make([]LoanDTO, 0, len(loans))
	for i := range loans {
		dtos = append(dtos, toLoanDTO(&loans[i], true))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetInstallments returns the installment schedule for a loan.
func (h *Handler) GetInstallments(w http.ResponseWriter, r *http.Request) {
	loanID := ledger.LoanID(chi.URLParam(r, "loanID"))

	installments, err := h.Lending.GetInstallments(r.Context(), loanID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	dtos := make([]InstallmentDTO, 0, len(installments))
	for i := range installments {
		dtos = append(dtos, toInstallmentDTO(&installments[i]))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// PayLoan allocates a payment across the loan's payable installments.
func (h *Handler) PayLoan(w http.ResponseWriter, r *http.Request) {
	loanID := ledger.LoanID(chi.URLParam(r, "loanID"))

	var req PaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "amount must be a decimal number")
		return
	}

	result, err := h.Lending.PayLoan(r.Context(), loanID, amount, actorFrom(r.Context()))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, PaymentResponse{
		InstallmentsPaid: result.InstallmentsPaid,
		TotalAmountPaid:  result.TotalPaid.StringFixed(2),
		LoanFullyPaid:    result.LoanFullyPaid,
	})
}

// DeleteLoan removes a loan and releases reserved credit. Admin only.
func (h *Handler) DeleteLoan(w http.ResponseWriter, r *http.Request) {
	loanID := ledger.LoanID(chi.URLParam(r, "loanID"))

	if err := h.Lending.DeleteLoan(r.Context(), loanID, actorFrom(r.Context())); err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// writeDomainError maps engine errors onto HTTP statuses.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ledger.ErrUnauthorized):
		writeError(w, http.StatusForbidden, "FORBIDDEN", err.Error())
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, auth.ErrUsernameTaken):
		writeError(w, http.StatusConflict, "USERNAME_TAKEN", err.Error())
	case errors.Is(err, ledger.ErrVersionConflict):
		writeError(w, http.StatusConflict, "CONFLICT", err.Error())
	case errors.Is(err, ledger.ErrInsufficientCredit),
		errors.Is(err, ledger.ErrPaymentInsufficient),
		errors.Is(err, ledger.ErrValidation):
		writeError(w, http.StatusBadRequest, "VALIDATION", err.Error())
	default:
		h.Log.WithError(err).WithField("path", r.URL.Path).Error("request failed")
		writeError(w, http.StatusInternalServerError, "INTERNAL", "internal server error")
	}
}
