package sales

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/davidorduna/agromarket-backend/pkg/auth"
	"github.com/davidorduna/agromarket-backend/pkg/db"
	"github.com/davidorduna/agromarket-backend/pkg/db/models"
	"github.com/davidorduna/agromarket-backend/pkg/enums"
	pkgerrors "github.com/davidorduna/agromarket-backend/pkg/errors"
)

// Service records and serves immutable sales.
type Service interface {
	RegisterFromOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.Sale, error)
	GetByOrder(ctx context.Context, actor auth.Actor, orderID uuid.UUID) (*models.Sale, error)
	ListMine(ctx context.Context, customerID uuid.UUID) ([]models.Sale, error)
	List(ctx context.Context, actor auth.Actor, filter ListSalesFilter) ([]models.Sale, error)
}

type service struct {
	repo Repository
}

// NewService wires a sales service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("sales repository required")
	}
	return &service{repo: repo}, nil
}

// RegisterFromOrder cuts the sale for an order inside the caller's
// transaction. Idempotent: an existing sale is returned unchanged, and a
// unique-violation race resolves by loading the winner.
func (s *service) RegisterFromOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.Sale, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction required for sale registration")
	}
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}

	repo := s.repo.WithTx(tx)
	existing, err := repo.GetByOrderID(ctx, orderID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "look up existing sale")
	}

	var order models.Order
	err = tx.WithContext(ctx).Preload("Lines").First(&order, "id = ?", orderID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}

	sale := &models.Sale{
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		Total:      order.Total,
		Status:     enums.SaleStatusCompleted,
		Lines:      make([]models.SaleLine, 0, len(order.Lines)),
	}
	for _, line := range order.Lines {
		sale.Lines = append(sale.Lines, models.SaleLine{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			Subtotal:  line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))),
		})
	}

	if err := repo.Create(ctx, sale); err != nil {
		if db.IsUniqueViolation(err, "uq_sales_order_id") {
			winner, loadErr := repo.GetByOrderID(ctx, orderID)
			if loadErr != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, loadErr, "load winning sale")
			}
			return winner, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create sale")
	}
	return sale, nil
}

func (s *service) GetByOrder(ctx context.Context, actor auth.Actor, orderID uuid.UUID) (*models.Sale, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}

	sale, err := s.repo.GetByOrderID(ctx, orderID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "sale not found")
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sale")
	}
	if !actor.CanAccess(sale.CustomerID) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "sale belongs to another customer")
	}
	return sale, nil
}

func (s *service) ListMine(ctx context.Context, customerID uuid.UUID) ([]models.Sale, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}
	sales, err := s.repo.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list sales")
	}
	return sales, nil
}

func (s *service) List(ctx context.Context, actor auth.Actor, filter ListSalesFilter) ([]models.Sale, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "administrator role required")
	}
	sales, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list sales")
	}
	return sales, nil
}
