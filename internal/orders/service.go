package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/davidorduna/agromarket-backend/internal/cart"
	"github.com/davidorduna/agromarket-backend/internal/catalog"
	"github.com/davidorduna/agromarket-backend/internal/inventory"
	"github.com/davidorduna/agromarket-backend/pkg/auth"
	"github.com/davidorduna/agromarket-backend/pkg/db/models"
	"github.com/davidorduna/agromarket-backend/pkg/enums"
	pkgerrors "github.com/davidorduna/agromarket-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ShippingDefaults carries the fallback shipping details for a customer.
type ShippingDefaults struct {
	Address string
	City    *string
	Phone   *string
}

// ShippingDefaultsProvider resolves a customer's stored shipping details.
// Optional: when absent, order creation requires an explicit address.
type ShippingDefaultsProvider interface {
	ShippingDefaults(ctx context.Context, customerID uuid.UUID) (*ShippingDefaults, error)
}

// CreateOrderInput captures checkout details. Omitted shipping fields fall
// back to the customer's stored defaults when a provider is configured.
type CreateOrderInput struct {
	ShippingAddress string  `json:"shipping_address"`
	ShippingCity    *string `json:"shipping_city"`
	ContactPhone    *string `json:"contact_phone"`
}

// Service turns carts into orders and drives the order state machine.
type Service interface {
	Create(ctx context.Context, customerID uuid.UUID, input CreateOrderInput) (*models.Order, error)
	Cancel(ctx context.Context, actor auth.Actor, orderID uuid.UUID) (*models.Order, error)
	AdvanceStatus(ctx context.Context, actor auth.Actor, orderID uuid.UUID, target enums.OrderStatus) (*models.Order, error)
	Get(ctx context.Context, actor auth.Actor, orderID uuid.UUID) (*models.Order, error)
	ListMine(ctx context.Context, customerID uuid.UUID) ([]models.Order, error)
	List(ctx context.Context, actor auth.Actor, filter ListOrdersFilter) ([]models.Order, error)
}

type service struct {
	runner   txRunner
	repo     Repository
	carts    cart.Repository
	products catalog.Repository
	profiles ShippingDefaultsProvider
}

// NewService wires an order service. The profiles provider may be nil.
func NewService(runner txRunner, repo Repository, carts cart.Repository, products catalog.Repository, profiles ShippingDefaultsProvider) (Service, error) {
	if runner == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product repository required")
	}
	return &service{
		runner:   runner,
		repo:     repo,
		carts:    carts,
		products: products,
		profiles: profiles,
	}, nil
}

// Create builds an order from the customer's cart in a single transaction:
// snapshot prices, reserve stock per line, insert header and lines, clear the
// cart. The first reservation failure rolls the whole thing back.
func (s *service) Create(ctx context.Context, customerID uuid.UUID, input CreateOrderInput) (*models.Order, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}

	address, city, phone, err := s.resolveShipping(ctx, customerID, input)
	if err != nil {
		return nil, err
	}

	var order *models.Order
	err = s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		lines, err := s.carts.WithTx(tx).ListByCustomer(ctx, customerID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cart lines")
		}
		if len(lines) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
		}

		products := s.products.WithTx(tx)
		total := decimal.Zero
		orderLines := make([]models.OrderLine, 0, len(lines))
		for _, line := range lines {
			product, err := products.Get(ctx, line.ProductID)
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				return pkgerrors.New(pkgerrors.CodeValidation, "cart references a product that no longer exists").
					WithDetails(map[string]any{"product_id": line.ProductID.String()})
			case err != nil:
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
			}
			if !product.IsActive {
				return pkgerrors.New(pkgerrors.CodeValidation, "cart references an inactive product").
					WithDetails(map[string]any{"product_id": line.ProductID.String()})
			}

			if err := inventory.Reserve(ctx, tx, line.ProductID, line.Quantity); err != nil {
				return err
			}

			orderLines = append(orderLines, models.OrderLine{
				ProductID: line.ProductID,
				Quantity:  line.Quantity,
				UnitPrice: product.Price,
			})
			total = total.Add(product.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
		}

		created := &models.Order{
			CustomerID:      customerID,
			Status:          enums.OrderStatusPending,
			Total:           total,
			ShippingAddress: address,
			ShippingCity:    city,
			ContactPhone:    phone,
			StockReserved:   true,
			Lines:           orderLines,
		}
		if err := s.repo.WithTx(tx).Create(ctx, created); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		if err := s.carts.WithTx(tx).Clear(ctx, customerID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
		}
		order = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) resolveShipping(ctx context.Context, customerID uuid.UUID, input CreateOrderInput) (string, *string, *string, error) {
	address := strings.TrimSpace(input.ShippingAddress)
	city := input.ShippingCity
	phone := input.ContactPhone

	if (address == "" || city == nil || phone == nil) && s.profiles != nil {
		defaults, err := s.profiles.ShippingDefaults(ctx, customerID)
		if err != nil {
			return "", nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shipping defaults")
		}
		if defaults != nil {
			if address == "" {
				address = strings.TrimSpace(defaults.Address)
			}
			if city == nil {
				city = defaults.City
			}
			if phone == nil {
				phone = defaults.Phone
			}
		}
	}

	if address == "" {
		return "", nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping address is required")
	}
	return address, city, phone, nil
}

// Cancel moves a pending or processing order to cancelled and returns any
// stock it still holds to the ledger.
func (s *service) Cancel(ctx context.Context, actor auth.Actor, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(order.CustomerID) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another customer")
	}

	err = s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		moved, err := repo.UpdateStatusIf(ctx, orderID,
			[]enums.OrderStatus{enums.OrderStatusPending, enums.OrderStatusProcessing},
			enums.OrderStatusCancelled)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if moved == 0 {
			return InvalidTransition(order.Status, enums.OrderStatusCancelled)
		}
		return s.releaseStock(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}
	return s.load(ctx, orderID)
}

// releaseStock returns every line's quantity to the ledger, exactly once.
// The conditional flag flip picks a single winner when a cancellation races
// a rejected payment's release; losers leave the ledger untouched.
func (s *service) releaseStock(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	flipped, err := s.repo.WithTx(tx).SetStockReservedIf(ctx, order.ID, true, false)
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
}

// AdvanceStatus applies an administrator transition along the allowed edges.
func (s *service) AdvanceStatus(ctx context.Context, actor auth.Actor, orderID uuid.UUID, target enums.OrderStatus) (*models.Order, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "administrator role required")
	}
	if !target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid order status %q", target))
	}

	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(order.Status, target) {
		return nil, InvalidTransition(order.Status, target)
	}

	err = s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		moved, err := s.repo.WithTx(tx).UpdateStatusIf(ctx, orderID, []enums.OrderStatus{order.Status}, target)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if moved == 0 {
			return InvalidTransition(order.Status, target)
		}
		if target == enums.OrderStatusCancelled {
			return s.releaseStock(ctx, tx, order)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.load(ctx, orderID)
}

func (s *service) Get(ctx context.Context, actor auth.Actor, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(order.CustomerID) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another customer")
	}
	return order, nil
}

func (s *service) ListMine(ctx context.Context, customerID uuid.UUID) ([]models.Order, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}
	orders, err := s.repo.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return orders, nil
}

func (s *service) List(ctx context.Context, actor auth.Actor, filter ListOrdersFilter) ([]models.Order, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "administrator role required")
	}
	orders, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return orders, nil
}

func (s *service) load(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	order, err := s.repo.Get(ctx, orderID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}
