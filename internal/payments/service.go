package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/davidorduna/agromarket-backend/internal/inventory"
	"github.com/davidorduna/agromarket-backend/internal/orders"
	"github.com/davidorduna/agromarket-backend/pkg/auth"
	"github.com/davidorduna/agromarket-backend/pkg/db/models"
	"github.com/davidorduna/agromarket-backend/pkg/enums"
	pkgerrors "github.com/davidorduna/agromarket-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// SaleRegistrar cuts the immutable sale for a completed order inside the
// caller's transaction.
type SaleRegistrar interface {
	RegisterFromOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.Sale, error)
}

// ProcessPaymentInput is one payment attempt against an order.
type ProcessPaymentInput struct {
	OrderID uuid.UUID           `json:"order_id"`
	Amount  decimal.Decimal     `json:"amount"`
	Method  enums.PaymentMethod `json:"method"`
}

// ProcessResult reports the attempt's outcome. Sale is set only when the
// payment was approved.
type ProcessResult struct {
	Payment *models.Payment `json:"payment"`
	Order   *models.Order   `json:"order"`
	Sale    *models.Sale    `json:"sale,omitempty"`
}

// Service processes payment attempts and serves payment reads.
type Service interface {
	Process(ctx context.Context, actor auth.Actor, input ProcessPaymentInput) (*ProcessResult, error)
	Get(ctx context.Context, actor auth.Actor, paymentID uuid.UUID) (*models.Payment, error)
	List(ctx context.Context, actor auth.Actor, filter ListPaymentsFilter) ([]models.Payment, error)
}

type service struct {
	runner     txRunner
	repo       Repository
	orders     orders.Repository
	authorizer Authorizer
	registrar  SaleRegistrar
}

// NewService wires a payment service with the provided collaborators.
func NewService(runner txRunner, repo Repository, orderRepo orders.Repository, authorizer Authorizer, registrar SaleRegistrar) (Service, error) {
	if runner == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("payment repository required")
	}
	if orderRepo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if authorizer == nil {
		return nil, fmt.Errorf("authorizer required")
	}
	if registrar == nil {
		return nil, fmt.Errorf("sale registrar required")
	}
	return &service{
		runner:     runner,
		repo:       repo,
		orders:     orderRepo,
		authorizer: authorizer,
		registrar:  registrar,
	}, nil
}

var payableStatuses = []enums.OrderStatus{enums.OrderStatusPending, enums.OrderStatusProcessing}

// Process runs one payment attempt end to end. An approved attempt completes
// the order and cuts the sale in the same transaction as the payment insert;
// a rejected attempt releases the order's reservations and leaves its status
// untouched so the customer can retry.
func (s *service) Process(ctx context.Context, actor auth.Actor, input ProcessPaymentInput) (*ProcessResult, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if !input.Method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment method %q", input.Method))
	}

	order, err := s.loadOrder(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(order.CustomerID) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another customer")
	}
	if !isPayable(order.Status) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("order in status %s cannot be paid", order.Status)).
			WithDetails(map[string]any{"status": order.Status.String()})
	}
	if !input.Amount.Equal(order.Total) {
		return nil, pkgerrors.New(pkgerrors.CodeAmountMismatch, "payment amount does not match order total").
			WithDetails(map[string]any{
				"expected": order.Total.String(),
				"received": input.Amount.String(),
			})
	}

	// A rejected attempt released this order's stock. Win it back before
	// authorizing again; losing the race cancels the order for good.
	if !order.StockReserved {
		if err := s.reReserve(ctx, order); err != nil {
			return nil, err
		}
	}

	verdict, err := s.authorizer.Authorize(ctx, AuthorizeInput{
		OrderID: order.ID,
		Amount:  input.Amount,
		Method:  input.Method,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "authorize payment")
	}

	payment := &models.Payment{
		OrderID:        order.ID,
		Amount:         input.Amount,
		Method:         input.Method,
		TransactionRef: verdict.TransactionRef,
	}

	var sale *models.Sale
	err = s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		orderRepo := s.orders.WithTx(tx)
		if verdict.Approved {
			payment.Status = enums.PaymentStatusApproved
			if err := s.repo.WithTx(tx).Create(ctx, payment); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment")
			}
			moved, err := orderRepo.UpdateStatusIf(ctx, order.ID, payableStatuses, enums.OrderStatusCompleted)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete order")
			}
			if moved == 0 {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "order was settled by a concurrent payment")
			}
			registered, err := s.registrar.RegisterFromOrder(ctx, tx, order.ID)
			if err != nil {
				return err
			}
			sale = registered
			return nil
		}

		payment.Status = enums.PaymentStatusRejected
		if err := s.repo.WithTx(tx).Create(ctx, payment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment")
		}
		// Losing the flag flip means a concurrent cancel (or rejection)
		// already returned this order's stock; releasing again would
		// fabricate inventory.
		flipped, err := orderRepo.SetStockReservedIf(ctx, order.ID, true, false)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark stock released")
		}
		if flipped == 0 {
			return nil
		}
		for _, line := range order.Lines {
			if err := inventory.Release(ctx, tx, line.ProductID, line.Quantity); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	reloaded, err := s.loadOrder(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	return &ProcessResult{Payment: payment, Order: reloaded, Sale: sale}, nil
}

// reReserve claims every order line again after a rejection released them.
// Failure cancels the order in its own transaction; the partial reservations
// roll back with the failed one.
func (s *service) reReserve(ctx context.Context, order *models.Order) error {
	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		// Flip first: the conditional update serializes competing retries
		// on the order row, so only one attempt touches the ledger.
		flipped, err := s.orders.WithTx(tx).SetStockReservedIf(ctx, order.ID, false, true)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark stock reserved")
		}
		if flipped == 0 {
			return nil
		}
		for _, line := range order.Lines {
			if err := inventory.Reserve(ctx, tx, line.ProductID, line.Quantity); err != nil {
				return err
			}
		}
		return nil
	})
	if err == nil {
		order.StockReserved = true
		return nil
	}

	if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeInsufficientStock {
		cancelErr := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
			_, uerr := s.orders.WithTx(tx).UpdateStatusIf(ctx, order.ID, payableStatuses, enums.OrderStatusCancelled)
			return uerr
		})
		if cancelErr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, cancelErr, "cancel unfulfillable order")
		}
	}
	return err
}

func (s *service) Get(ctx context.Context, actor auth.Actor, paymentID uuid.UUID) (*models.Payment, error) {
	if paymentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}

	payment, err := s.repo.Get(ctx, paymentID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}

	order, err := s.loadOrder(ctx, payment.OrderID)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(order.CustomerID) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "payment belongs to another customer")
	}
	return payment, nil
}

func (s *service) List(ctx context.Context, actor auth.Actor, filter ListPaymentsFilter) ([]models.Payment, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "administrator role required")
	}
	payments, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payments")
	}
	return payments, nil
}

func (s *service) loadOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.orders.Get(ctx, orderID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func isPayable(status enums.OrderStatus) bool {
	for _, candidate := range payableStatuses {
		if candidate == status {
			return true
		}
	}
	return false
}
