/*
actor.go - Authorization as an explicit capability

PURPOSE:
  Every lifecycle operation receives an Actor describing who is calling.
  Authorization is a pure precondition evaluated before any mutation;
  there is no ambient security context to consult.

RULES:
  - CreateLoan: authenticated; non-admins may only borrow for themselves.
  - PayLoan:    authenticated.
  - DeleteLoan: admin only.
  - Reads carry no actor; the request layer decides what to expose.
*/
package lending

import (
	"fmt"

	"github.com/warp/loan-engine/ledger"
)

// Actor identifies the caller of a lifecycle operation.
type Actor struct {
	// ID is the customer the actor acts as. Empty for pure admin actors.
	ID ledger.CustomerID

	// Admin grants the elevated role: acting for any customer, deleting loans.
	Admin bool
}

// Authenticated reports whether the actor represents a signed-in principal.
func (a Actor) Authenticated() bool {
	return a.Admin || a.ID != ""
}

// CanActFor reports whether the actor may mutate the customer's ledger.
func (a Actor) CanActFor(customerID ledger.CustomerID) bool {
	return a.Admin || a.ID == customerID
}

func authorizeCreate(actor Actor, customerID ledger.CustomerID) error {
	if !actor.Authenticated() {
		return fmt.Errorf("%w: actor is not authenticated", ledger.ErrUnauthorized)
	}
	if !actor.CanActFor(customerID) {
		return fmt.Errorf("%w: customers can only create loans for themselves", ledger.ErrUnauthorized)
	}
	return nil
}

func authorizePayment(actor Actor) error {
	if !actor.Authenticated() {
		return fmt.Errorf("%w: actor is not authenticated", ledger.ErrUnauthorized)
	}
	return nil
}

func authorizeAdmin(actor Actor) error {
	if !actor.Authenticated() {
		return fmt.Errorf("%w: actor is not authenticated", ledger.ErrUnauthorized)
	}
	if !actor.Admin {
		return fmt.Errorf("%w: admin role required", ledger.ErrUnauthorized)
	}
	return nil
}
