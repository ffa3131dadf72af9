/*
Package lending orchestrates the loan lifecycle against the ledger.

PURPOSE:
  The Service is the single writer of the ledger: it creates loans against
  a customer's credit limit, allocates payments across installments, and
  releases credit when loans are fully repaid or deleted. Every mutating
  operation runs as one all-or-nothing storage transaction, wrapped in an
  optimistic-conflict retry loop.

OPERATION SHAPE:
  authorize (pure precondition on the Actor)
  -> validate inputs
  -> withRetry:
       WithTx:
         read fresh state
         mutate entities
         version-checked saves
  A version conflict rolls the transaction back and re-runs the whole body
  against fresh state, up to MaxAttempts with RetryDelay between attempts.

SEE ALSO:
  - ledger: entities, schedule builder, pricing, allocator
  - actor.go: authorization preconditions
  - retry.go: the conflict retry wrapper
*/
package lending

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/warp/loan-engine/ledger"
	"github.com/warp/loan-engine/metrics"
)

// =============================================================================
// SERVICE
// =============================================================================

// Config carries the engine's tunables.
type Config struct {
	// MinInterestRate and MaxInterestRate bound the accepted flat add-on
	// rate, inclusive.
	MinInterestRate decimal.Decimal
	MaxInterestRate decimal.Decimal

	// MaxAttempts bounds optimistic-conflict retries per operation.
	MaxAttempts int

	// RetryDelay is the pause between conflict retries.
	RetryDelay time.Duration
}

// DefaultConfig mirrors the engine's stock tuning: rates between 10% and
// 50%, three attempts, 500ms apart.
func DefaultConfig() Config {
	return Config{
		MinInterestRate: decimal.RequireFromString("0.1"),
		MaxInterestRate: decimal.RequireFromString("0.5"),
		MaxAttempts:     3,
		RetryDelay:      500 * time.Millisecond,
	}
}

// Service is the loan lifecycle controller.
type Service struct {
	store   ledger.TxStore
	cfg     Config
	log     *logrus.Logger
	metrics *metrics.Metrics
	today   func() ledger.Date
}

// Option customizes a Service.
type Option func(*Service)

// WithMetrics wires Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the "today" source. Tests freeze time with this.
func WithClock(today func() ledger.Date) Option {
	return func(s *Service) { s.today = today }
}

func NewService(store ledger.TxStore, cfg Config, log *logrus.Logger, opts ...Option) *Service {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if log == nil {
		log = logrus.New()
	}
	s := &Service{
		store: store,
		cfg:   cfg,
		log:   log,
		today: ledger.Today,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// =============================================================================
// CREATE LOAN
// =============================================================================

// CreateLoanInput is the request to open a loan against a credit line.
type CreateLoanInput struct {
	CustomerID           ledger.CustomerID
	Amount               decimal.Decimal
	InterestRate         decimal.Decimal
	NumberOfInstallments int
}

// CreateLoan atomically reserves credit and creates a loan with its full
// installment schedule. Non-admin actors may only borrow for themselves.
func (s *Service) CreateLoan(ctx context.Context, input CreateLoanInput, actor Actor) (*ledger.Loan, error) {
	if err := authorizeCreate(actor, input.CustomerID); err != nil {
		return nil, err
	}
	if err := s.validateCreateLoan(input); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"customer_id":  input.CustomerID,
		"amount":       input.Amount,
		"installments": input.NumberOfInstallments,
	}).Info("creating loan")

	var created *ledger.Loan
	err := s.withRetry(ctx, "CreateLoan", func(ctx context.Context) error {
		created = nil
		return s.store.WithTx(ctx, func(store ledger.Store) error {
			customer, err := store.GetCustomer(ctx, input.CustomerID)
			if err != nil {
				return err
			}

			if !customer.CanBorrow(input.Amount) {
				return &ledger.InsufficientCreditError{
					CustomerID: customer.ID,
					Requested:  input.Amount,
					Available:  customer.AvailableCredit(),
				}
			}

			today := s.today()
			loan := ledger.NewLoan(customer.ID, input.Amount, input.NumberOfInstallments, today)
			if err := store.SaveLoan(ctx, loan); err != nil {
				return err
			}

			customer.AddUsedCredit(input.Amount)
			if err := store.SaveCustomer(ctx, customer); err != nil {
				return err
			}

			amount := ledger.InstallmentAmount(input.Amount, input.InterestRate, input.NumberOfInstallments)
			installments := ledger.BuildSchedule(loan.ID, amount, input.NumberOfInstallments, today)
			if err := store.SaveInstallments(ctx, installments); err != nil {
				return err
			}

			loan.Installments = installments
			created = loan
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.LoanCreated()
	s.log.WithField("loan_id", created.ID).Info("loan created")
	return created, nil
}

func (s *Service) validateCreateLoan(input CreateLoanInput) error {
	if !input.Amount.IsPositive() {
		return &ledger.ValidationError{Field: "amount", Message: "must be positive"}
	}
	if !ledger.IsAllowedInstallmentCount(input.NumberOfInstallments) {
		return &ledger.ValidationError{Field: "numberOfInstallments", Message: "allowed installment counts: 6, 9, 12, 24"}
	}
	if input.InterestRate.LessThan(s.cfg.MinInterestRate) || input.InterestRate.GreaterThan(s.cfg.MaxInterestRate) {
		return &ledger.ValidationError{
			Field:   "interestRate",
			Message: "must be between " + s.cfg.MinInterestRate.String() + " and " + s.cfg.MaxInterestRate.String(),
		}
	}
	return nil
}

// =============================================================================
// PAY LOAN
// =============================================================================

// PayLoan allocates a payment across the loan's installments under the
// all-or-nothing rule. Each newly-paid installment is persisted
// individually; if the payment clears the loan, the original principal is
// released from the customer's used credit.
func (s *Service) PayLoan(ctx context.Context, loanID ledger.LoanID, amount decimal.Decimal, actor Actor) (ledger.AllocationResult, error) {
	if err := authorizePayment(actor); err != nil {
		return ledger.AllocationResult{}, err
	}
	if !amount.IsPositive() {
		return ledger.AllocationResult{}, &ledger.ValidationError{Field: "amount", Message: "must be positive"}
	}

	s.log.WithFields(logrus.Fields{"loan_id": loanID, "amount": amount}).Info("processing payment")

	var result ledger.AllocationResult
	err := s.withRetry(ctx, "PayLoan", func(ctx context.Context) error {
		return s.store.WithTx(ctx, func(store ledger.Store) error {
			loan, err := store.GetLoan(ctx, loanID)
			if err != nil {
				return err
			}
			installments, err := store.ListInstallments(ctx, loanID)
			if err != nil {
				return err
			}

			today := s.today()
			allocated, paid, err := ledger.AllocatePayment(installments, amount, today)
			if err != nil {
				return err
			}

			// Persist each paid installment individually, mirroring the
			// allocator's sequential stop-on-shortfall walk.
			for _, ins := range paid {
				if err := store.SaveInstallment(ctx, ins); err != nil {
					return err
				}
			}

			if allocated.LoanFullyPaid {
				loan.MarkPaid()
				if err := store.SaveLoan(ctx, loan); err != nil {
					return err
				}

				customer, err := store.GetCustomer(ctx, loan.CustomerID)
				if err != nil {
					return err
				}
				// The original principal is released, not the sum actually
				// paid, which differs through discounts and penalties.
				customer.SubtractUsedCredit(loan.LoanAmount)
				if err := store.SaveCustomer(ctx, customer); err != nil {
					return err
				}
			}

			result = allocated
			return nil
		})
	})
	if err != nil {
		return ledger.AllocationResult{}, err
	}

	s.metrics.PaymentProcessed(result.InstallmentsPaid, result.LoanFullyPaid)
	s.log.WithFields(logrus.Fields{
		"loan_id":           loanID,
		"installments_paid": result.InstallmentsPaid,
		"total_paid":        result.TotalPaid,
		"fully_paid":        result.LoanFullyPaid,
	}).Info("payment processed")
	return result, nil
}

// =============================================================================
// DELETE LOAN
// =============================================================================

// DeleteLoan removes a loan and its installments. Admin only. If the loan
// is not yet fully paid, the full original principal is released from the
// customer's used credit, regardless of any partial repayment.
func (s *Service) DeleteLoan(ctx context.Context, loanID ledger.LoanID, actor Actor) error {
	if err := authorizeAdmin(actor); err != nil {
		return err
	}

	s.log.WithField("loan_id", loanID).Info("deleting loan")

	err := s.withRetry(ctx, "DeleteLoan", func(ctx context.Context) error {
		return s.store.WithTx(ctx, func(store ledger.Store) error {
			loan, err := store.GetLoan(ctx, loanID)
			if err != nil {
				return err
			}
			customer, err := store.GetCustomer(ctx, loan.CustomerID)
			if err != nil {
				return err
			}

			if !loan.Paid {
				customer.SubtractUsedCredit(loan.LoanAmount)
				if err := store.SaveCustomer(ctx, customer); err != nil {
					return err
				}
			}

			return store.DeleteLoan(ctx, loan.ID)
		})
	})
	if err != nil {
		return err
	}

	s.metrics.LoanDeleted()
	s.log.WithField("loan_id", loanID).Info("loan deleted")
	return nil
}

// =============================================================================
// READS
// =============================================================================

// GetLoansForCustomer returns the customer's loans with RemainingFee
// computed as of today. Side-effect free.
func (s *Service) GetLoansForCustomer(ctx context.Context, customerID ledger.CustomerID, filter ledger.LoanFilter) ([]ledger.Loan, error) {
	if _, err := s.store.GetCustomer(ctx, customerID); err != nil {
		return nil, err
	}
	loans, err := s.store.ListLoansByCustomer(ctx, customerID, filter)
	if err != nil {
		return nil, err
	}

	today := s.today()
	for i := range loans {
		loans[i].RemainingFee = ledger.RemainingFee(loans[i].Installments, today)
	}
	return loans, nil
}

// GetInstallments returns a loan's installments ascending by due date.
func (s *Service) GetInstallments(ctx context.Context, loanID ledger.LoanID) ([]ledger.Installment, error) {
	if _, err := s.store.GetLoan(ctx, loanID); err != nil {
		return nil, err
	}
	return s.store.ListInstallments(ctx, loanID)
}

// CountOverdueInstallments reports unpaid installments past due as of
// today. Used by the overdue scanner.
func (s *Service) CountOverdueInstallments(ctx context.Context) (int, error) {
	return s.store.CountOverdue(ctx, s.today())
}
