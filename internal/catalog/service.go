package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/davidorduna/agromarket-backend/internal/inventory"
	"github.com/davidorduna/agromarket-backend/pkg/db"
	"github.com/davidorduna/agromarket-backend/pkg/db/models"
	"github.com/davidorduna/agromarket-backend/pkg/enums"
	pkgerrors "github.com/davidorduna/agromarket-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes catalog reads plus the administrative write surface.
type Service interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	ListProducts(ctx context.Context, filter ListProductsFilter) ([]models.Product, error)
	CreateProduct(ctx context.Context, input CreateProductInput) (*models.Product, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, input UpdateProductInput) (*models.Product, error)
	DeactivateProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
	CreateCategory(ctx context.Context, input CreateCategoryInput) (*models.Category, error)
}

// CreateProductInput captures a new catalog entry. InitialStock seeds the
// product's inventory record in the same transaction.
type CreateProductInput struct {
	CategoryID   *uuid.UUID        `json:"category_id"`
	Name         string            `json:"name"`
	Description  string            `json:"description"`
	Price        decimal.Decimal   `json:"price"`
	Unit         enums.ProductUnit `json:"unit"`
	InitialStock int               `json:"initial_stock"`
}

// UpdateProductInput applies partial updates; nil fields are left untouched.
type UpdateProductInput struct {
	CategoryID  *uuid.UUID         `json:"category_id"`
	Name        *string            `json:"name"`
	Description *string            `json:"description"`
	Price       *decimal.Decimal   `json:"price"`
	Unit        *enums.ProductUnit `json:"unit"`
	IsActive    *bool              `json:"is_active"`
}

// CreateCategoryInput captures a new category.
type CreateCategoryInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type service struct {
	runner     txRunner
	products   Repository
	categories CategoryRepository
}

// NewService wires a catalog service with the provided dependencies.
func NewService(runner txRunner, products Repository, categories CategoryRepository) (Service, error) {
	if runner == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if products == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if categories == nil {
		return nil, fmt.Errorf("category repository required")
	}
	return &service{runner: runner, products: products, categories: categories}, nil
}

func (s *service) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}

	product, err := s.products.Get(ctx, id)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return product, nil
}

func (s *service) ListProducts(ctx context.Context, filter ListProductsFilter) ([]models.Product, error) {
	products, err := s.products.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	return products, nil
}

func (s *service) CreateProduct(ctx context.Context, input CreateProductInput) (*models.Product, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product name is required")
	}
	if input.Price.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product price cannot be negative")
	}
	if input.Unit == "" {
		input.Unit = enums.ProductUnitKilogram
	}
	if !input.Unit.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid product unit %q", input.Unit))
	}
	if input.InitialStock < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "initial stock cannot be negative")
	}

	if input.CategoryID != nil {
		if _, err := s.categories.Get(ctx, *input.CategoryID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "category does not exist")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load category")
		}
	}

	product := &models.Product{
		CategoryID:  input.CategoryID,
		Name:        strings.TrimSpace(input.Name),
		Description: input.Description,
		Price:       input.Price,
		Unit:        input.Unit,
		IsActive:    true,
	}

	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.products.WithTx(tx).Create(ctx, product); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
		}
		record := &models.InventoryRecord{
			ProductID:    product.ID,
			AvailableQty: input.InitialStock,
		}
		if err := inventory.NewRepository(tx).Create(ctx, record); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "seed inventory record")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return product, nil
}

func (s *service) UpdateProduct(ctx context.Context, id uuid.UUID, input UpdateProductInput) (*models.Product, error) {
	product, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		if strings.TrimSpace(*input.Name) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product name cannot be empty")
		}
		product.Name = strings.TrimSpace(*input.Name)
	}
	if input.Description != nil {
		product.Description = *input.Description
	}
	if input.Price != nil {
		if input.Price.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product price cannot be negative")
		}
		product.Price = *input.Price
	}
	if input.Unit != nil {
		if !input.Unit.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid product unit %q", *input.Unit))
		}
		product.Unit = *input.Unit
	}
	if input.CategoryID != nil {
		if _, err := s.categories.Get(ctx, *input.CategoryID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "category does not exist")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load category")
		}
		product.CategoryID = input.CategoryID
	}
	if input.IsActive != nil {
		product.IsActive = *input.IsActive
	}

	if err := s.products.Save(ctx, product); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save product")
	}
	return product, nil
}

// DeactivateProduct hides a product from the storefront without touching its
// inventory or any orders that already snapshot it.
func (s *service) DeactivateProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	inactive := false
	return s.UpdateProduct(ctx, id, UpdateProductInput{IsActive: &inactive})
}

func (s *service) ListCategories(ctx context.Context) ([]models.Category, error) {
	categories, err := s.categories.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list categories")
	}
	return categories, nil
}

func (s *service) CreateCategory(ctx context.Context, input CreateCategoryInput) (*models.Category, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "category name is required")
	}

	category := &models.Category{
		Name:        strings.TrimSpace(input.Name),
		Description: input.Description,
	}
	if err := s.categories.Create(ctx, category); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "category name already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create category")
	}
	return category, nil
}
