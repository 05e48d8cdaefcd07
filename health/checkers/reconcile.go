package checkers

import (
	"math/big"

	"github.com/dimiro1/health"
)

// Reconciler compares the funds held for redemptions with what is owed
type Reconciler interface {
	Reconcile() error
	Liabilities() *big.Int
	Surplus() *big.Int
}

// ReconcileChecker reports down when the redemption funds do not cover the
// unpaid collected amounts
type ReconcileChecker struct {
	reconciler Reconciler
}

// NewReconcileChecker creates a ReconcileChecker
func NewReconcileChecker(r Reconciler) ReconcileChecker {
	return ReconcileChecker{reconciler: r}
}

// Check the redemption funds
func (c ReconcileChecker) Check() health.Health {
	h := health.NewHealth()
	h.AddInfo("liabilities", c.reconciler.Liabilities().String())
	h.AddInfo("surplus", c.reconciler.Surplus().String())
	if err := c.reconciler.Reconcile(); err != nil {
		h.Down().AddInfo("error", err.Error())
		return h
	}
	h.Up()
	return h
}
