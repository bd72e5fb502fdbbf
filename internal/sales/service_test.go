package sales

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/davidorduna/agromarket-backend/pkg/auth"
	"github.com/davidorduna/agromarket-backend/pkg/db/models"
	"github.com/davidorduna/agromarket-backend/pkg/enums"
	pkgerrors "github.com/davidorduna/agromarket-backend/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:sales_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Order{}, &models.OrderLine{}, &models.Sale{}, &models.SaleLine{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedOrder(t *testing.T, db *gorm.DB, customerID uuid.UUID) *models.Order {
	t.Helper()
	order := &models.Order{
		CustomerID:      customerID,
		Status:          enums.OrderStatusProcessing,
		Total:           decimal.NewFromFloat(12.50),
		ShippingAddress: "12 Orchard Lane",
		StockReserved:   true,
		Lines: []models.OrderLine{
			{ProductID: uuid.New(), Quantity: 5, UnitPrice: decimal.NewFromFloat(1.50)},
			{ProductID: uuid.New(), Quantity: 2, UnitPrice: decimal.NewFromFloat(2.50)},
		},
	}
	if err := db.Create(order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return order
}

func TestRegisterFromOrder(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc, err := NewService(NewRepository(db))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	ctx := context.Background()
	customer := uuid.New()
	order := seedOrder(t, db, customer)

	var sale *models.Sale
	err = db.Transaction(func(tx *gorm.DB) error {
		created, terr := svc.RegisterFromOrder(ctx, tx, order.ID)
		sale = created
		return terr
	})
	if err != nil {
		t.Fatalf("register sale: %v", err)
	}

	if sale.OrderID != order.ID || sale.CustomerID != customer {
		t.Fatalf("unexpected sale header: %+v", sale)
	}
	if !sale.Total.Equal(order.Total) {
		t.Fatalf("expected total %s, got %s", order.Total, sale.Total)
	}
	if sale.Status != enums.SaleStatusCompleted {
		t.Fatalf("expected completed sale, got %s", sale.Status)
	}
	if len(sale.Lines) != 2 {
		t.Fatalf("expected 2 sale lines, got %d", len(sale.Lines))
	}
	want := decimal.NewFromFloat(7.50)
	if !sale.Lines[0].Subtotal.Equal(want) && !sale.Lines[1].Subtotal.Equal(want) {
		t.Fatalf("expected a subtotal of %s, got %s and %s", want, sale.Lines[0].Subtotal, sale.Lines[1].Subtotal)
	}
}

func TestRegisterFromOrderIdempotent(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc, err := NewService(NewRepository(db))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	ctx := context.Background()
	order := seedOrder(t, db, uuid.New())

	var first, second *models.Sale
	if err := db.Transaction(func(tx *gorm.DB) error {
		first, err = svc.RegisterFromOrder(ctx, tx, order.ID)
		return err
	}); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := db.Transaction(func(tx *gorm.DB) error {
		second, err = svc.RegisterFromOrder(ctx, tx, order.ID)
		return err
	}); err != nil {
		t.Fatalf("second register: %v", err)
	}

	if first.ID != second.ID {
		t.Fatalf("expected the same sale, got %s and %s", first.ID, second.ID)
	}

	var count int64
	if err := db.Model(&models.Sale{}).Where("order_id = ?", order.ID).Count(&count).Error; err != nil {
		t.Fatalf("count sales: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one sale, got %d", count)
	}
}

func TestRegisterFromOrderUnknownOrder(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc, err := NewService(NewRepository(db))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		_, terr := svc.RegisterFromOrder(context.Background(), tx, uuid.New())
		return terr
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGetByOrderAuthorization(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc, err := NewService(NewRepository(db))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	ctx := context.Background()
	customer := uuid.New()
	order := seedOrder(t, db, customer)

	if err := db.Transaction(func(tx *gorm.DB) error {
		_, terr := svc.RegisterFromOrder(ctx, tx, order.ID)
		return terr
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	owner := auth.Actor{CustomerID: customer, Role: enums.UserRoleCustomer}
	if _, err := svc.GetByOrder(ctx, owner, order.ID); err != nil {
		t.Fatalf("owner get: %v", err)
	}

	admin := auth.Actor{CustomerID: uuid.New(), Role: enums.UserRoleAdministrator}
	if _, err := svc.GetByOrder(ctx, admin, order.ID); err != nil {
		t.Fatalf("admin get: %v", err)
	}

	stranger := auth.Actor{CustomerID: uuid.New(), Role: enums.UserRoleCustomer}
	_, err = svc.GetByOrder(ctx, stranger, order.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestAdminListFilters(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc, err := NewService(NewRepository(db))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	ctx := context.Background()
	alice := uuid.New()
	bob := uuid.New()

	for _, customer := range []uuid.UUID{alice, bob} {
		order := seedOrder(t, db, customer)
		if err := db.Transaction(func(tx *gorm.DB) error {
			_, terr := svc.RegisterFromOrder(ctx, tx, order.ID)
			return terr
		}); err != nil {
			t.Fatalf("register: %v", err)
		}
	}

	admin := auth.Actor{CustomerID: uuid.New(), Role: enums.UserRoleAdministrator}
	filtered, err := svc.List(ctx, admin, ListSalesFilter{CustomerID: &alice})
	if err != nil {
		t.Fatalf("admin list: %v", err)
	}
	if len(filtered) != 1 || filtered[0].CustomerID != alice {
		t.Fatalf("unexpected filtered listing: %+v", filtered)
	}

	customerActor := auth.Actor{CustomerID: alice, Role: enums.UserRoleCustomer}
	if _, err := svc.List(ctx, customerActor, ListSalesFilter{}); pkgerrors.As(err) == nil || pkgerrors.As(err).Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}

	mine, err := svc.ListMine(ctx, bob)
	if err != nil {
		t.Fatalf("list mine: %v", err)
	}
	if len(mine) != 1 || mine[0].CustomerID != bob {
		t.Fatalf("unexpected mine listing: %+v", mine)
	}
}
