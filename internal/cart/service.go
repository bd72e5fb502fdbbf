package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/davidorduna/agromarket-backend/pkg/db/models"
	"github.com/davidorduna/agromarket-backend/pkg/enums"
	pkgerrors "github.com/davidorduna/agromarket-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type productLoader interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

type stockReader interface {
	Get(ctx context.Context, productID uuid.UUID) (*models.InventoryRecord, error)
}

// Service manages the per-customer staging cart. Nothing here touches the
// inventory ledger; stock is only committed at order creation.
type Service interface {
	AddItem(ctx context.Context, customerID, productID uuid.UUID, qty int) (*AddItemResult, error)
	RemoveItem(ctx context.Context, customerID, productID uuid.UUID) error
	Clear(ctx context.Context, customerID uuid.UUID) error
	View(ctx context.Context, customerID uuid.UUID) (*View, error)
}

// AddItemResult reports the merged line plus an advisory stock warning. The
// warning never blocks the add; the hard check happens at checkout.
type AddItemResult struct {
	Line    models.CartLine `json:"line"`
	Warning string          `json:"warning,omitempty"`
}

// LineView is one cart line joined against the live catalog.
type LineView struct {
	ProductID   uuid.UUID         `json:"product_id"`
	ProductName string            `json:"product_name"`
	Unit        enums.ProductUnit `json:"unit"`
	UnitPrice   decimal.Decimal   `json:"unit_price"`
	Quantity    int               `json:"quantity"`
	Subtotal    decimal.Decimal   `json:"subtotal"`
}

// View is the customer's full cart with a live-priced total.
type View struct {
	CustomerID uuid.UUID       `json:"customer_id"`
	Lines      []LineView      `json:"lines"`
	Total      decimal.Decimal `json:"total"`
}

type service struct {
	runner   txRunner
	repo     Repository
	products productLoader
	stock    stockReader
}

// NewService wires a cart service with the provided dependencies.
func NewService(runner txRunner, repo Repository, products productLoader, stock stockReader) (Service, error) {
	if runner == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock reader required")
	}
	return &service{runner: runner, repo: repo, products: products, stock: stock}, nil
}

func (s *service) AddItem(ctx context.Context, customerID, productID uuid.UUID, qty int) (*AddItemResult, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	product, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !product.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product is not available")
	}

	var merged *models.CartLine
	err = s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		line := &models.CartLine{
			CustomerID: customerID,
			ProductID:  productID,
			Quantity:   qty,
		}
		if err := repo.Upsert(ctx, line); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upsert cart line")
		}
		loaded, err := repo.Get(ctx, customerID, productID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload cart line")
		}
		merged = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := &AddItemResult{Line: *merged}
	if available, ok := s.availableQty(ctx, productID); ok && merged.Quantity > available {
		result.Warning = fmt.Sprintf("only %d units available; cart holds %d", available, merged.Quantity)
	}
	return result, nil
}

func (s *service) availableQty(ctx context.Context, productID uuid.UUID) (int, bool) {
	record, err := s.stock.Get(ctx, productID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, true
	}
	if err != nil {
		return 0, false
	}
	return record.AvailableQty, true
}

func (s *service) RemoveItem(ctx context.Context, customerID, productID uuid.UUID) error {
	if customerID == uuid.Nil || productID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer id and product id are required")
	}

	affected, err := s.repo.Delete(ctx, customerID, productID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart line")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found")
	}
	return nil
}

func (s *service) Clear(ctx context.Context, customerID uuid.UUID) error {
	if customerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}
	if err := s.repo.Clear(ctx, customerID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	return nil
}

// View renders the cart against current catalog prices. Lines whose product
// has gone inactive stay visible so the customer can remove them.
func (s *service) View(ctx context.Context, customerID uuid.UUID) (*View, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}

	lines, err := s.repo.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cart lines")
	}

	view := &View{
		CustomerID: customerID,
		Lines:      make([]LineView, 0, len(lines)),
		Total:      decimal.Zero,
	}
	for _, line := range lines {
		product, err := s.products.GetProduct(ctx, line.ProductID)
		if err != nil {
			return nil, err
		}
		subtotal := product.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
		view.Lines = append(view.Lines, LineView{
			ProductID:   line.ProductID,
			ProductName: product.Name,
			Unit:        product.Unit,
			UnitPrice:   product.Price,
			Quantity:    line.Quantity,
			Subtotal:    subtotal,
		})
		view.Total = view.Total.Add(subtotal)
	}
	return view, nil
}
