/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements ledger.TxStore and auth.UserStore on SQLite. The same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

OPTIMISTIC CONCURRENCY:
  customers, loans and installments carry a version column. Updates run

      UPDATE ... SET version = version + 1 WHERE id = ? AND version = ?

  and a zero rows-affected result on an existing row means a concurrent
  writer got there first: the save fails with ledger.ErrVersionConflict
  and the lifecycle controller retries the whole operation. New entities
  (in-memory version 0) are inserted at version 1.

TRANSACTIONS:
  WithTx wraps a function in a database/sql transaction; every Store call
  inside it runs against the same *sql.Tx, so lifecycle operations are
  all-or-nothing. A conflict anywhere inside rolls everything back.

ENCODING:
  Money is stored as decimal TEXT (never REAL - float money drifts),
  dates as YYYY-MM-DD text, roles as a comma-joined list.

WAL MODE:
  SQLite is opened with WAL so readers don't block the single writer,
  plus foreign keys on for the loan -> installment cascade delete.

USAGE:
  store, err := sqlite.New("./data/loans.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - ledger/store.go: interface definitions and version contract
  - ledger/store/memory.go: in-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/loan-engine/auth"
	"github.com/warp/loan-engine/ledger"
)

// Store implements ledger.TxStore and auth.UserStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS customers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		surname TEXT NOT NULL,
		credit_limit TEXT NOT NULL,
		used_credit_limit TEXT NOT NULL,
		version INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS loans (
		id TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL REFERENCES customers(id),
		loan_amount TEXT NOT NULL,
		number_of_installments INTEGER NOT NULL,
		create_date TEXT NOT NULL,
		is_paid BOOLEAN NOT NULL DEFAULT FALSE,
		version INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_loans_customer
		ON loans(customer_id, create_date);

	CREATE TABLE IF NOT EXISTS installments (
		id TEXT PRIMARY KEY,
		loan_id TEXT NOT NULL REFERENCES loans(id) ON DELETE CASCADE,
		amount TEXT NOT NULL,
		paid_amount TEXT NOT NULL,
		due_date TEXT NOT NULL,
		payment_date TEXT,
		is_paid BOOLEAN NOT NULL DEFAULT FALSE,
		version INTEGER NOT NULL
	);

	-- Hot path: installment walk in due-date order
	CREATE INDEX IF NOT EXISTS idx_installments_loan_due
		ON installments(loan_id, due_date);

	-- Overdue scanner
	CREATE INDEX IF NOT EXISTS idx_installments_overdue
		ON installments(is_paid, due_date);

	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		roles TEXT NOT NULL,
		customer_id TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// dbtx is satisfied by both *sql.DB and *sql.Tx, letting the same query
// helpers serve plain calls and transactional views.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// CUSTOMER STORE (ledger.CustomerStore)
// =============================================================================

func (s *Store) GetCustomer(ctx context.Context, id ledger.CustomerID) (*ledger.Customer, error) {
	return getCustomer(ctx, s.db, id)
}

func (s *Store) SaveCustomer(ctx context.Context, customer *ledger.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveCustomer(ctx, s.db, customer)
}

func getCustomer(ctx context.Context, q dbtx, id ledger.CustomerID) (*ledger.Customer, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, name, surname, credit_limit, used_credit_limit, version
		FROM customers WHERE id = ?`, string(id))

	var c ledger.Customer
	var limit, used string
	err := row.Scan(&c.ID, &c.Name, &c.Surname, &limit, &used, &c.Version)
	if err == sql.ErrNoRows {
		return nil, ledger.ErrCustomerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}
	if c.CreditLimit, err = decimal.NewFromString(limit); err != nil {
		return nil, fmt.Errorf("bad credit_limit for customer %s: %w", id, err)
	}
	if c.UsedCreditLimit, err = decimal.NewFromString(used); err != nil {
		return nil, fmt.Errorf("bad used_credit_limit for customer %s: %w", id, err)
	}
	return &c, nil
}

func saveCustomer(ctx context.Context, q dbtx, customer *ledger.Customer) error {
	now := time.Now().UTC().Format(time.RFC3339)

	if customer.Version == 0 {
		_, err := q.ExecContext(ctx, `
			INSERT INTO customers (id, name, surname, credit_limit, used_credit_limit, version, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, 1, ?, ?)`,
			string(customer.ID), customer.Name, customer.Surname,
			customer.CreditLimit.String(), customer.UsedCreditLimit.String(), now, now)
		if err != nil {
			return fmt.Errorf("failed to insert customer: %w", err)
		}
		customer.Version = 1
		return nil
	}

	res, err := q.ExecContext(ctx, `
		UPDATE customers
		SET name = ?, surname = ?, credit_limit = ?, used_credit_limit = ?,
		    version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		customer.Name, customer.Surname,
		customer.CreditLimit.String(), customer.UsedCreditLimit.String(),
		now, string(customer.ID), customer.Version)
	if err != nil {
		return fmt.Errorf("failed to update customer: %w", err)
	}
	return bumpVersion(ctx, q, res, "customers", string(customer.ID), &customer.Version, ledger.ErrCustomerNotFound)
}

// bumpVersion interprets a version-checked UPDATE result: no rows touched
// on an existing id means a concurrent writer won.
func bumpVersion(ctx context.Context, q dbtx, res sql.Result, table, id string, version *int64, notFound error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var exists int
		row := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table+` WHERE id = ?`, id)
		if err := row.Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return notFound
		}
		return ledger.ErrVersionConflict
	}
	*version++
	return nil
}

// =============================================================================
// LOAN STORE (ledger.LoanStore)
// =============================================================================

func (s *Store) GetLoan(ctx context.Context, id ledger.LoanID) (*ledger.Loan, error) {
	return getLoan(ctx, s.db, id)
}

func (s *Store) ListLoansByCustomer(ctx context.Context, customerID ledger.CustomerID, filter ledger.LoanFilter) ([]ledger.Loan, error) {
	return listLoansByCustomer(ctx, s.db, customerID, filter)
}

func (s *Store) SaveLoan(ctx context.Context, loan *ledger.Loan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveLoan(ctx, s.db, loan)
}

func (s *Store) DeleteLoan(ctx context.Context, id ledger.LoanID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteLoan(ctx, s.db, id)
}

func getLoan(ctx context.Context, q dbtx, id ledger.LoanID) (*ledger.Loan, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, customer_id, loan_amount, number_of_installments, create_date, is_paid, version
		FROM loans WHERE id = ?`, string(id))
	loan, err := scanLoan(row)
	if err == sql.ErrNoRows {
		return nil, ledger.ErrLoanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get loan: %w", err)
	}
	return loan, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLoan(row rowScanner) (*ledger.Loan, error) {
	var l ledger.Loan
	var amount, createDate string
	if err := row.Scan(&l.ID, &l.CustomerID, &amount, &l.NumberOfInstallments, &createDate, &l.Paid, &l.Version); err != nil {
		return nil, err
	}
	var err error
	if l.LoanAmount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("bad loan_amount: %w", err)
	}
	if l.CreateDate, err = ledger.ParseDate(createDate); err != nil {
		return nil, fmt.Errorf("bad create_date: %w", err)
	}
	return &l, nil
}

func listLoansByCustomer(ctx context.Context, q dbtx, customerID ledger.CustomerID, filter ledger.LoanFilter) ([]ledger.Loan, error) {
	query := `
		SELECT id, customer_id, loan_amount, number_of_installments, create_date, is_paid, version
		FROM loans WHERE customer_id = ?`
	args := []any{string(customerID)}

	if filter.Paid != nil {
		query += ` AND is_paid = ?`
		args = append(args, *filter.Paid)
	}
	if filter.NumberOfInstallments != nil {
		query += ` AND number_of_installments = ?`
		args = append(args, *filter.NumberOfInstallments)
	}
	if filter.CreatedFrom != nil {
		query += ` AND create_date >= ?`
		args = append(args, filter.CreatedFrom.String())
	}
	if filter.CreatedTo != nil {
		query += ` AND create_date <= ?`
		args = append(args, filter.CreatedTo.String())
	}
	query += ` ORDER BY create_date, id`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}
	defer rows.Close()

	var loans []ledger.Loan
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan loan: %w", err)
		}
		loans = append(loans, *loan)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Attach installments. Loans without any (inconsistent rows) surface
	// with an empty schedule here; the lifecycle controller rejects them
	// when an operation actually needs the schedule.
	for i := range loans {
		installments, err := listInstallments(ctx, q, loans[i].ID)
		if err != nil && err != ledger.ErrNoInstallments {
			return nil, err
		}
		loans[i].Installments = installments
	}
	return loans, nil
}

func saveLoan(ctx context.Context, q dbtx, loan *ledger.Loan) error {
	now := time.Now().UTC().Format(time.RFC3339)

	if loan.Version == 0 {
		_, err := q.ExecContext(ctx, `
			INSERT INTO loans (id, customer_id, loan_amount, number_of_installments, create_date, is_paid, version, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)`,
			string(loan.ID), string(loan.CustomerID), loan.LoanAmount.String(),
			loan.NumberOfInstallments, loan.CreateDate.String(), loan.Paid, now, now)
		if err != nil {
			return fmt.Errorf("failed to insert loan: %w", err)
		}
		loan.Version = 1
		return nil
	}

	res, err := q.ExecContext(ctx, `
		UPDATE loans
		SET is_paid = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		loan.Paid, now, string(loan.ID), loan.Version)
	if err != nil {
		return fmt.Errorf("failed to update loan: %w", err)
	}
	return bumpVersion(ctx, q, res, "loans", string(loan.ID), &loan.Version, ledger.ErrLoanNotFound)
}

func deleteLoan(ctx context.Context, q dbtx, id ledger.LoanID) error {
	res, err := q.ExecContext(ctx, `DELETE FROM loans WHERE id = ?`, string(id))
	if err != nil {
		return fmt.Errorf("failed to delete loan: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ledger.ErrLoanNotFound
	}
	// Installments go with the loan via ON DELETE CASCADE.
	return nil
}

// =============================================================================
// INSTALLMENT STORE (ledger.InstallmentStore)
// =============================================================================

func (s *Store) ListInstallments(ctx context.Context, loanID ledger.LoanID) ([]ledger.Installment, error) {
	return listInstallments(ctx, s.db, loanID)
}

func (s *Store) SaveInstallment(ctx context.Context, installment *ledger.Installment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveInstallment(ctx, s.db, installment)
}

func (s *Store) SaveInstallments(ctx context.Context, installments []ledger.Installment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for i := range installments {
		if err := saveInstallment(ctx, tx, &installments[i]); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) CountOverdue(ctx context.Context, asOf ledger.Date) (int, error) {
	return countOverdue(ctx, s.db, asOf)
}

func listInstallments(ctx context.Context, q dbtx, loanID ledger.LoanID) ([]ledger.Installment, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, loan_id, amount, paid_amount, due_date, payment_date, is_paid, version
		FROM installments WHERE loan_id = ?
		ORDER BY due_date`, string(loanID))
	if err != nil {
		return nil, fmt.Errorf("failed to list installments: %w", err)
	}
	defer rows.Close()

	var installments []ledger.Installment
	for rows.Next() {
		var ins ledger.Installment
		var amount, paidAmount, dueDate string
		var paymentDate sql.NullString
		if err := rows.Scan(&ins.ID, &ins.LoanID, &amount, &paidAmount, &dueDate, &paymentDate, &ins.Paid, &ins.Version); err != nil {
			return nil, fmt.Errorf("failed to scan installment: %w", err)
		}
		if ins.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("bad amount: %w", err)
		}
		if ins.PaidAmount, err = decimal.NewFromString(paidAmount); err != nil {
			return nil, fmt.Errorf("bad paid_amount: %w", err)
		}
		if ins.DueDate, err = ledger.ParseDate(dueDate); err != nil {
			return nil, fmt.Errorf("bad due_date: %w", err)
		}
		if paymentDate.Valid {
			d, err := ledger.ParseDate(paymentDate.String)
			if err != nil {
				return nil, fmt.Errorf("bad payment_date: %w", err)
			}
			ins.PaymentDate = &d
		}
		installments = append(installments, ins)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(installments) == 0 {
		return nil, ledger.ErrNoInstallments
	}
	return installments, nil
}

func saveInstallment(ctx context.Context, q dbtx, installment *ledger.Installment) error {
	var paymentDate any
	if installment.PaymentDate != nil {
		paymentDate = installment.PaymentDate.String()
	}

	if installment.Version == 0 {
		_, err := q.ExecContext(ctx, `
			INSERT INTO installments (id, loan_id, amount, paid_amount, due_date, payment_date, is_paid, version)
			VALUES (?, ?, ?, ?, ?, ?, ?, 1)`,
			string(installment.ID), string(installment.LoanID),
			installment.Amount.String(), installment.PaidAmount.String(),
			installment.DueDate.String(), paymentDate, installment.Paid)
		if err != nil {
			return fmt.Errorf("failed to insert installment: %w", err)
		}
		installment.Version = 1
		return nil
	}

	res, err := q.ExecContext(ctx, `
		UPDATE installments
		SET paid_amount = ?, payment_date = ?, is_paid = ?, version = version + 1
		WHERE id = ? AND version = ?`,
		installment.PaidAmount.String(), paymentDate, installment.Paid,
		string(installment.ID), installment.Version)
	if err != nil {
		return fmt.Errorf("failed to update installment: %w", err)
	}
	return bumpVersion(ctx, q, res, "installments", string(installment.ID), &installment.Version, ledger.ErrNoInstallments)
}

func countOverdue(ctx context.Context, q dbtx, asOf ledger.Date) (int, error) {
	var count int
	row := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM installments
		WHERE is_paid = FALSE AND due_date < ?`, asOf.String())
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count overdue installments: %w", err)
	}
	return count, nil
}

// =============================================================================
// TRANSACTIONS (ledger.TxStore)
// =============================================================================

// WithTx executes fn within a database transaction. All Store calls inside
// fn share the same *sql.Tx; any error rolls everything back.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(&txView{q: tx}); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// txView routes Store calls to the shared transaction.
type txView struct {
	q *sql.Tx
}

func (v *txView) GetCustomer(ctx context.Context, id ledger.CustomerID) (*ledger.Customer, error) {
	return getCustomer(ctx, v.q, id)
}

func (v *txView) SaveCustomer(ctx context.Context, customer *ledger.Customer) error {
	return saveCustomer(ctx, v.q, customer)
}

func (v *txView) GetLoan(ctx context.Context, id ledger.LoanID) (*ledger.Loan, error) {
	return getLoan(ctx, v.q, id)
}

func (v *txView) ListLoansByCustomer(ctx context.Context, customerID ledger.CustomerID, filter ledger.LoanFilter) ([]ledger.Loan, error) {
	return listLoansByCustomer(ctx, v.q, customerID, filter)
}

func (v *txView) SaveLoan(ctx context.Context, loan *ledger.Loan) error {
	return saveLoan(ctx, v.q, loan)
}

func (v *txView) DeleteLoan(ctx context.Context, id ledger.LoanID) error {
	return deleteLoan(ctx, v.q, id)
}

func (v *txView) ListInstallments(ctx context.Context, loanID ledger.LoanID) ([]ledger.Installment, error) {
	return listInstallments(ctx, v.q, loanID)
}

func (v *txView) SaveInstallment(ctx context.Context, installment *ledger.Installment) error {
	return saveInstallment(ctx, v.q, installment)
}

func (v *txView) SaveInstallments(ctx context.Context, installments []ledger.Installment) error {
	for i := range installments {
		if err := saveInstallment(ctx, v.q, &installments[i]); err != nil {
			return err
		}
	}
	return nil
}

func (v *txView) CountOverdue(ctx context.Context, asOf ledger.Date) (int, error) {
	return countOverdue(ctx, v.q, asOf)
}

// =============================================================================
// USER STORE (auth.UserStore)
// =============================================================================

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*auth.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, roles, customer_id
		FROM users WHERE username = ?`, username)

	var u auth.User
	var roles, customerID string
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &roles, &customerID)
	if err == sql.ErrNoRows {
		return nil, auth.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	u.CustomerID = ledger.CustomerID(customerID)
	for _, r := range strings.Split(roles, ",") {
		u.Roles = append(u.Roles, auth.Role(r))
	}
	return &u, nil
}

func (s *Store) SaveUser(ctx context.Context, user *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	roles := make([]string, len(user.Roles))
	for i, r := range user.Roles {
		roles[i] = string(r)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, password_hash, roles, customer_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		user.ID, user.Username, user.PasswordHash,
		strings.Join(roles, ","), string(user.CustomerID),
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return auth.ErrUsernameTaken
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}
