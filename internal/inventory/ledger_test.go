package inventory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/davidorduna/agromarket-backend/pkg/db/models"
	pkgerrors "github.com/davidorduna/agromarket-backend/pkg/errors"
)

func TestReserve(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	productA := uuid.New()
	productB := uuid.New()

	for _, record := range []models.InventoryRecord{
		{ProductID: productA, AvailableQty: 5},
		{ProductID: productB, AvailableQty: 1},
	} {
		if err := db.Create(&record).Error; err != nil {
			t.Fatalf("seed inventory: %v", err)
		}
	}

	if err := Reserve(ctx, db, productA, 3); err != nil {
		t.Fatalf("first reserve: %v", err)
	}

	err := Reserve(ctx, db, productA, 4)
	if err == nil {
		t.Fatal("expected second reserve to fail")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
		t.Fatalf("unexpected error: %v", err)
	}
	details, ok := typed.Details().(map[string]any)
	if !ok {
		t.Fatalf("expected details map, got %T", typed.Details())
	}
	if details["requested"] != 4 || details["available"] != 2 {
		t.Fatalf("unexpected details: %v", details)
	}

	if err := Reserve(ctx, db, productB, 1); err != nil {
		t.Fatalf("reserve product b: %v", err)
	}

	var invA, invB models.InventoryRecord
	if err := db.First(&invA, "product_id = ?", productA).Error; err != nil {
		t.Fatalf("load inventory a: %v", err)
	}
	if err := db.First(&invB, "product_id = ?", productB).Error; err != nil {
		t.Fatalf("load inventory b: %v", err)
	}
	if invA.AvailableQty != 2 {
		t.Fatalf("unexpected inventory a state: %+v", invA)
	}
	if invB.AvailableQty != 0 {
		t.Fatalf("unexpected inventory b state: %+v", invB)
	}
}

func TestReserveExactlyOneWinner(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	product := uuid.New()
	if err := db.Create(&models.InventoryRecord{ProductID: product, AvailableQty: 1}).Error; err != nil {
		t.Fatalf("seed inventory: %v", err)
	}

	// Two buyers compete for the last unit. Whichever update lands second
	// sees the guard fail instead of a negative count.
	first := Reserve(ctx, db, product, 1)
	second := Reserve(ctx, db, product, 1)
	if first != nil {
		t.Fatalf("first reserve: %v", first)
	}
	if second == nil {
		t.Fatal("expected second reserve to lose")
	}
	if typed := pkgerrors.As(second); typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
		t.Fatalf("unexpected error: %v", second)
	}

	var record models.InventoryRecord
	if err := db.First(&record, "product_id = ?", product).Error; err != nil {
		t.Fatalf("load inventory: %v", err)
	}
	if record.AvailableQty != 0 {
		t.Fatalf("available qty went to %d", record.AvailableQty)
	}
}

func TestReserveUnknownProduct(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	err := Reserve(context.Background(), db, uuid.New(), 1)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestReserveInvalidQty(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	err := Reserve(context.Background(), db, uuid.New(), 0)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestReleaseRoundTrip(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	product := uuid.New()
	if err := db.Create(&models.InventoryRecord{ProductID: product, AvailableQty: 4}).Error; err != nil {
		t.Fatalf("seed inventory: %v", err)
	}

	if err := Reserve(ctx, db, product, 4); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := Release(ctx, db, product, 4); err != nil {
		t.Fatalf("release: %v", err)
	}

	var record models.InventoryRecord
	if err := db.First(&record, "product_id = ?", product).Error; err != nil {
		t.Fatalf("load inventory: %v", err)
	}
	if record.AvailableQty != 4 {
		t.Fatalf("expected stock restored, got %d", record.AvailableQty)
	}
}

func TestReleaseUnknownProduct(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	err := Release(context.Background(), db, uuid.New(), 2)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("unexpected error: %v", err)
	}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:inventory_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.InventoryRecord{}); err != nil {
		t.Fatalf("migrate inventory: %v", err)
	}
	return db
}
