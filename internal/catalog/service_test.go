package catalog

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/davidorduna/agromarket-backend/pkg/db/models"
	"github.com/davidorduna/agromarket-backend/pkg/enums"
	pkgerrors "github.com/davidorduna/agromarket-backend/pkg/errors"
)

type gormRunner struct {
	db *gorm.DB
}

func (g gormRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return g.db.WithContext(ctx).Transaction(fn)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:catalog_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Category{}, &models.Product{}, &models.InventoryRecord{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	svc, err := NewService(gormRunner{db: db}, NewRepository(db), NewCategoryRepository(db))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, db
}

func TestCreateProductSeedsInventory(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := context.Background()

	product, err := svc.CreateProduct(ctx, CreateProductInput{
		Name:         "Heirloom Tomatoes",
		Description:  "Vine ripened",
		Price:        decimal.NewFromFloat(3.50),
		Unit:         enums.ProductUnitKilogram,
		InitialStock: 40,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	if product.ID == uuid.Nil {
		t.Fatal("expected product id to be assigned")
	}
	if !product.IsActive {
		t.Fatal("new products should be active")
	}

	var record models.InventoryRecord
	if err := db.First(&record, "product_id = ?", product.ID).Error; err != nil {
		t.Fatalf("load inventory record: %v", err)
	}
	if record.AvailableQty != 40 {
		t.Fatalf("expected 40 available, got %d", record.AvailableQty)
	}
}

func TestCreateProductValidation(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		input CreateProductInput
	}{
		{
			name:  "empty name",
			input: CreateProductInput{Name: "  ", Price: decimal.NewFromInt(1)},
		},
		{
			name:  "negative price",
			input: CreateProductInput{Name: "Carrots", Price: decimal.NewFromInt(-1)},
		},
		{
			name:  "invalid unit",
			input: CreateProductInput{Name: "Carrots", Price: decimal.NewFromInt(1), Unit: enums.ProductUnit("bushel")},
		},
		{
			name:  "negative stock",
			input: CreateProductInput{Name: "Carrots", Price: decimal.NewFromInt(1), InitialStock: -5},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateProduct(ctx, tc.input)
			if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestCreateProductUnknownCategory(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	missing := uuid.New()
	_, err := svc.CreateProduct(context.Background(), CreateProductInput{
		Name:       "Basil",
		Price:      decimal.NewFromInt(2),
		CategoryID: &missing,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdateAndDeactivateProduct(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()

	product, err := svc.CreateProduct(ctx, CreateProductInput{
		Name:  "Red Onions",
		Price: decimal.NewFromInt(2),
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}

	newPrice := decimal.NewFromFloat(2.75)
	updated, err := svc.UpdateProduct(ctx, product.ID, UpdateProductInput{Price: &newPrice})
	if err != nil {
		t.Fatalf("update product: %v", err)
	}
	if !updated.Price.Equal(newPrice) {
		t.Fatalf("expected price %s, got %s", newPrice, updated.Price)
	}
	if updated.Name != "Red Onions" {
		t.Fatalf("untouched field changed: %q", updated.Name)
	}

	if _, err := svc.DeactivateProduct(ctx, product.ID); err != nil {
		t.Fatalf("deactivate product: %v", err)
	}

	visible, err := svc.ListProducts(ctx, ListProductsFilter{})
	if err != nil {
		t.Fatalf("list products: %v", err)
	}
	if len(visible) != 0 {
		t.Fatalf("deactivated product still listed: %d", len(visible))
	}

	all, err := svc.ListProducts(ctx, ListProductsFilter{IncludeHidden: true})
	if err != nil {
		t.Fatalf("list all products: %v", err)
	}
	if len(all) != 1 || all[0].IsActive {
		t.Fatalf("expected one inactive product, got %+v", all)
	}
}

func TestCreateCategoryDuplicateName(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.CreateCategory(ctx, CreateCategoryInput{Name: "Vegetables"}); err != nil {
		t.Fatalf("create category: %v", err)
	}
	_, err := svc.CreateCategory(ctx, CreateCategoryInput{Name: "Vegetables"})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestListProductsByCategory(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()

	veg, err := svc.CreateCategory(ctx, CreateCategoryInput{Name: "Vegetables"})
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	fruit, err := svc.CreateCategory(ctx, CreateCategoryInput{Name: "Fruit"})
	if err != nil {
		t.Fatalf("create category: %v", err)
	}

	if _, err := svc.CreateProduct(ctx, CreateProductInput{Name: "Kale", Price: decimal.NewFromInt(3), CategoryID: &veg.ID}); err != nil {
		t.Fatalf("create product: %v", err)
	}
	if _, err := svc.CreateProduct(ctx, CreateProductInput{Name: "Apples", Price: decimal.NewFromInt(4), CategoryID: &fruit.ID}); err != nil {
		t.Fatalf("create product: %v", err)
	}

	products, err := svc.ListProducts(ctx, ListProductsFilter{CategoryID: &veg.ID})
	if err != nil {
		t.Fatalf("list products: %v", err)
	}
	if len(products) != 1 || products[0].Name != "Kale" {
		t.Fatalf("unexpected listing: %+v", products)
	}
}
