package payments

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/davidorduna/agromarket-backend/pkg/enums"
)

// AuthorizeInput is the attempt handed to the authorizer.
type AuthorizeInput struct {
	OrderID uuid.UUID
	Amount  decimal.Decimal
	Method  enums.PaymentMethod
}

// AuthorizeResult is the authorizer's verdict. TransactionRef is recorded on
// the payment row either way.
type AuthorizeResult struct {
	Approved       bool
	TransactionRef string
}

// Authorizer decides whether a payment attempt goes through. Deterministic
// for a given configuration; no external gateway is involved.
type Authorizer interface {
	Authorize(ctx context.Context, input AuthorizeInput) (AuthorizeResult, error)
}

type simulatedAuthorizer struct {
	declined map[enums.PaymentMethod]bool
}

// NewSimulatedAuthorizer approves every attempt except those paying with a
// method on the decline list.
func NewSimulatedAuthorizer(declineMethods []string) Authorizer {
	declined := make(map[enums.PaymentMethod]bool, len(declineMethods))
	for _, method := range declineMethods {
		declined[enums.PaymentMethod(method)] = true
	}
	return &simulatedAuthorizer{declined: declined}
}

func (a *simulatedAuthorizer) Authorize(_ context.Context, input AuthorizeInput) (AuthorizeResult, error) {
	return AuthorizeResult{
		Approved:       !a.declined[input.Method],
		TransactionRef: "SIM-" + uuid.NewString(),
	}, nil
}
