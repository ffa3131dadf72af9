/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON structures for API communication, decoupling the internal domain
  model from the external contract. Money travels as decimal strings so
  clients never see binary-float artifacts.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Handlers validate shape (parseable decimals, required fields); business
  rules (rate range, installment counts, credit) belong to the engine.
*/
package api

import (
	"github.com/warp/loan-engine/ledger"
)

// =============================================================================
// AUTH
// =============================================================================

type SignupRequest struct {
	Name     string   `json:"name"`
	Surname  string   `json:"surname"`
	Password string   `json:"password"`
	Roles    []string `json:"roles,omitempty"`
}

type SignupResponse struct {
	Username string `json:"username"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

// =============================================================================
// LOANS
// =============================================================================

type CreateLoanRequest struct {
	CustomerID           string `json:"customer_id"`
	Amount               string `json:"amount"`
	InterestRate         string `json:"interest_rate"`
	NumberOfInstallments int    `json:"number_of_installments"`
}

type PaymentRequest struct {
	Amount string `json:"amount"`
}

type LoanDTO struct {
	ID                   string           `json:"id"`
	CustomerID           string           `json:"customer_id"`
	LoanAmount           string           `json:"loan_amount"`
	NumberOfInstallments int              `json:"number_of_installments"`
	CreateDate           string           `json:"create_date"`
	IsPaid               bool             `json:"is_paid"`
	RemainingFee         string           `json:"remaining_fee,omitempty"`
	Installments         []InstallmentDTO `json:"installments,omitempty"`
}

type InstallmentDTO struct {
	ID          string `json:"id"`
	LoanID      string `json:"loan_id"`
	Amount      string `json:"amount"`
	PaidAmount  string `json:"paid_amount"`
	DueDate     string `json:"due_date"`
	PaymentDate string `json:"payment_date,omitempty"`
	IsPaid      bool   `json:"is_paid"`
}

type PaymentResponse struct {
	InstallmentsPaid int    `json:"installments_paid"`
	TotalAmountPaid  string `json:"total_amount_paid"`
	LoanFullyPaid    bool   `json:"loan_fully_paid"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// =============================================================================
// MAPPERS
// =============================================================================

func toLoanDTO(loan *ledger.Loan, withRemainingFee bool) LoanDTO {
	dto := LoanDTO{
		ID:                   string(loan.ID),
		CustomerID:           string(loan.CustomerID),
		LoanAmount:           loan.LoanAmount.String(),
		NumberOfInstallments: loan.NumberOfInstallments,
		CreateDate:           loan.CreateDate.String(),
		IsPaid:               loan.Paid,
	}
	if withRemainingFee {
		dto.RemainingFee = loan.RemainingFee.StringFixed(2)
	}
	for i := range loan.Installments {
		dto.Installments = append(dto.Installments, toInstallmentDTO(&loan.Installments[i]))
	}
	return dto
}

func toInstallmentDTO(ins *ledger.Installment) InstallmentDTO {
	dto := InstallmentDTO{
		ID:         string(ins.ID),
		LoanID:     string(ins.LoanID),
		Amount:     ins.Amount.StringFixed(2),
		PaidAmount: ins.PaidAmount.StringFixed(2),
		DueDate:    ins.DueDate.String(),
		IsPaid:     ins.Paid,
	}
	if ins.PaymentDate != nil {
		dto.PaymentDate = ins.PaymentDate.String()
	}
	return dto
}
