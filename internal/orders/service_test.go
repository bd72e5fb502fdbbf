package orders

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/davidorduna/agromarket-backend/internal/cart"
	"github.com/davidorduna/agromarket-backend/internal/catalog"
	"github.com/davidorduna/agromarket-backend/pkg/auth"
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

type stubProfiles struct {
	defaults *ShippingDefaults
}

func (s stubProfiles) ShippingDefaults(ctx context.Context, customerID uuid.UUID) (*ShippingDefaults, error) {
	return s.defaults, nil
}

type fixture struct {
	db  *gorm.DB
	svc Service
}

func newFixture(t *testing.T, profiles ShippingDefaultsProvider) *fixture {
	t.Helper()
	dsn := "file:orders_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Category{}, &models.Product{}, &models.InventoryRecord{},
		&models.CartLine{}, &models.Order{}, &models.OrderLine{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	svc, err := NewService(gormRunner{db: db}, NewRepository(db), cart.NewRepository(db), catalog.NewRepository(db), profiles)
	if err != nil {
		t.Fatalf("order service: %v", err)
	}
	return &fixture{db: db, svc: svc}
}

func (f *fixture) seedProduct(t *testing.T, price float64, stock int) *models.Product {
	t.Helper()
	product := &models.Product{
		Name:     "Product " + uuid.NewString()[:8],
		Price:    decimal.NewFromFloat(price),
		Unit:     enums.ProductUnitKilogram,
		IsActive: true,
	}
	if err := f.db.Create(product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	if err := f.db.Create(&models.InventoryRecord{ProductID: product.ID, AvailableQty: stock}).Error; err != nil {
		t.Fatalf("seed inventory: %v", err)
	}
	return product
}

func (f *fixture) seedCartLine(t *testing.T, customerID, productID uuid.UUID, qty int) {
	t.Helper()
	if err := f.db.Create(&models.CartLine{CustomerID: customerID, ProductID: productID, Quantity: qty}).Error; err != nil {
		t.Fatalf("seed cart line: %v", err)
	}
}

func (f *fixture) availableQty(t *testing.T, productID uuid.UUID) int {
	t.Helper()
	var record models.InventoryRecord
	if err := f.db.First(&record, "product_id = ?", productID).Error; err != nil {
		t.Fatalf("load inventory: %v", err)
	}
	return record.AvailableQty
}

func (f *fixture) cartCount(t *testing.T, customerID uuid.UUID) int64 {
	t.Helper()
	var count int64
	if err := f.db.Model(&models.CartLine{}).Where("customer_id = ?", customerID).Count(&count).Error; err != nil {
		t.Fatalf("count cart lines: %v", err)
	}
	return count
}

func TestCreateOrderFromCart(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	ctx := context.Background()
	customer := uuid.New()
	potatoes := f.seedProduct(t, 1.50, 20)
	carrots := f.seedProduct(t, 2.25, 10)
	f.seedCartLine(t, customer, potatoes.ID, 4)
	f.seedCartLine(t, customer, carrots.ID, 2)

	order, err := f.svc.Create(ctx, customer, CreateOrderInput{ShippingAddress: "12 Orchard Lane"})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	if order.Status != enums.OrderStatusPending {
		t.Fatalf("expected pending, got %s", order.Status)
	}
	if !order.StockReserved {
		t.Fatal("expected stock to be reserved")
	}
	want := decimal.NewFromFloat(10.50)
	if !order.Total.Equal(want) {
		t.Fatalf("expected total %s, got %s", want, order.Total)
	}
	if len(order.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(order.Lines))
	}

	if got := f.availableQty(t, potatoes.ID); got != 16 {
		t.Fatalf("expected 16 potatoes left, got %d", got)
	}
	if got := f.availableQty(t, carrots.ID); got != 8 {
		t.Fatalf("expected 8 carrots left, got %d", got)
	}
	if got := f.cartCount(t, customer); got != 0 {
		t.Fatalf("expected empty cart, got %d lines", got)
	}
}

func TestCreateOrderEmptyCart(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	_, err := f.svc.Create(context.Background(), uuid.New(), CreateOrderInput{ShippingAddress: "somewhere"})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateOrderInsufficientStockRollsBack(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	ctx := context.Background()
	customer := uuid.New()
	plenty := f.seedProduct(t, 1.00, 50)
	scarce := f.seedProduct(t, 5.00, 1)
	f.seedCartLine(t, customer, plenty.ID, 5)
	f.seedCartLine(t, customer, scarce.ID, 3)

	_, err := f.svc.Create(ctx, customer, CreateOrderInput{ShippingAddress: "12 Orchard Lane"})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	details, ok := typed.Details().(map[string]any)
	if !ok || details["product_id"] != scarce.ID.String() {
		t.Fatalf("expected failing product in details, got %v", typed.Details())
	}

	// Everything rolls back: no order, first line's reservation undone, cart intact.
	var orderCount int64
	if err := f.db.Model(&models.Order{}).Count(&orderCount).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if orderCount != 0 {
		t.Fatalf("expected no orders, got %d", orderCount)
	}
	if got := f.availableQty(t, plenty.ID); got != 50 {
		t.Fatalf("expected reservation rolled back, got %d", got)
	}
	if got := f.cartCount(t, customer); got != 2 {
		t.Fatalf("expected cart preserved, got %d lines", got)
	}
}

func TestCreateOrderLastUnitSingleWinner(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	ctx := context.Background()
	scarce := f.seedProduct(t, 9.99, 1)

	alice := uuid.New()
	bob := uuid.New()
	f.seedCartLine(t, alice, scarce.ID, 1)
	f.seedCartLine(t, bob, scarce.ID, 1)

	if _, err := f.svc.Create(ctx, alice, CreateOrderInput{ShippingAddress: "1 First St"}); err != nil {
		t.Fatalf("first checkout: %v", err)
	}
	_, err := f.svc.Create(ctx, bob, CreateOrderInput{ShippingAddress: "2 Second St"})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
		t.Fatalf("expected second checkout to fail, got %v", err)
	}

	if got := f.availableQty(t, scarce.ID); got != 0 {
		t.Fatalf("available qty should be 0, got %d", got)
	}
	var orderCount int64
	if err := f.db.Model(&models.Order{}).Count(&orderCount).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if orderCount != 1 {
		t.Fatalf("expected exactly one order, got %d", orderCount)
	}
}

func TestCreateOrderPriceSnapshotImmutable(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	ctx := context.Background()
	customer := uuid.New()
	product := f.seedProduct(t, 2.00, 10)
	f.seedCartLine(t, customer, product.ID, 3)

	order, err := f.svc.Create(ctx, customer, CreateOrderInput{ShippingAddress: "12 Orchard Lane"})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	if err := f.db.Model(&models.Product{}).Where("id = ?", product.ID).
		Update("price", decimal.NewFromFloat(99.99)).Error; err != nil {
		t.Fatalf("reprice product: %v", err)
	}

	reloaded, err := f.svc.Get(ctx, auth.Actor{CustomerID: customer, Role: enums.UserRoleCustomer}, order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if !reloaded.Total.Equal(decimal.NewFromFloat(6.00)) {
		t.Fatalf("total changed after reprice: %s", reloaded.Total)
	}
	if !reloaded.Lines[0].UnitPrice.Equal(decimal.NewFromFloat(2.00)) {
		t.Fatalf("unit price snapshot changed: %s", reloaded.Lines[0].UnitPrice)
	}
}

func TestCreateOrderShippingDefaults(t *testing.T) {
	t.Parallel()

	city := "Valledupar"
	phone := "3001234567"
	f := newFixture(t, stubProfiles{defaults: &ShippingDefaults{
		Address: "Finca La Esperanza km 4",
		City:    &city,
		Phone:   &phone,
	}})
	ctx := context.Background()
	customer := uuid.New()
	product := f.seedProduct(t, 1.00, 5)
	f.seedCartLine(t, customer, product.ID, 1)

	order, err := f.svc.Create(ctx, customer, CreateOrderInput{})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if order.ShippingAddress != "Finca La Esperanza km 4" {
		t.Fatalf("expected profile address, got %q", order.ShippingAddress)
	}
	if order.ShippingCity == nil || *order.ShippingCity != city {
		t.Fatalf("expected profile city, got %v", order.ShippingCity)
	}
}

func TestCreateOrderMissingAddress(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	customer := uuid.New()
	product := f.seedProduct(t, 1.00, 5)
	f.seedCartLine(t, customer, product.ID, 1)

	_, err := f.svc.Create(context.Background(), customer, CreateOrderInput{})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCancelReleasesStock(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	ctx := context.Background()
	customer := uuid.New()
	actor := auth.Actor{CustomerID: customer, Role: enums.UserRoleCustomer}
	product := f.seedProduct(t, 3.00, 10)
	f.seedCartLine(t, customer, product.ID, 4)

	order, err := f.svc.Create(ctx, customer, CreateOrderInput{ShippingAddress: "12 Orchard Lane"})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if got := f.availableQty(t, product.ID); got != 6 {
		t.Fatalf("expected 6 available, got %d", got)
	}

	cancelled, err := f.svc.Cancel(ctx, actor, order.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != enums.OrderStatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}
	if cancelled.StockReserved {
		t.Fatal("expected stock flagged as released")
	}
	if got := f.availableQty(t, product.ID); got != 10 {
		t.Fatalf("expected stock restored to 10, got %d", got)
	}

	// Cancelling again is a forbidden edge.
	_, err = f.svc.Cancel(ctx, actor, order.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestCancelAfterPaymentReleasedStock(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	ctx := context.Background()
	customer := uuid.New()
	actor := auth.Actor{CustomerID: customer, Role: enums.UserRoleCustomer}
	product := f.seedProduct(t, 3.00, 10)
	f.seedCartLine(t, customer, product.ID, 4)

	order, err := f.svc.Create(ctx, customer, CreateOrderInput{ShippingAddress: "12 Orchard Lane"})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	// A rejected payment already returned the reservation to the ledger.
	if err := f.db.Model(&models.InventoryRecord{}).
		Where("product_id = ?", product.ID).
		Update("available_qty", 10).Error; err != nil {
		t.Fatalf("restore stock: %v", err)
	}
	if err := f.db.Model(&models.Order{}).
		Where("id = ?", order.ID).
		Update("stock_reserved", false).Error; err != nil {
		t.Fatalf("clear flag: %v", err)
	}

	cancelled, err := f.svc.Cancel(ctx, actor, order.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != enums.OrderStatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}
	if got := f.availableQty(t, product.ID); got != 10 {
		t.Fatalf("cancel released already-released stock: %d available", got)
	}
}

func TestCancelOtherCustomersOrder(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	ctx := context.Background()
	owner := uuid.New()
	product := f.seedProduct(t, 3.00, 10)
	f.seedCartLine(t, owner, product.ID, 1)

	order, err := f.svc.Create(ctx, owner, CreateOrderInput{ShippingAddress: "12 Orchard Lane"})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	stranger := auth.Actor{CustomerID: uuid.New(), Role: enums.UserRoleCustomer}
	_, err = f.svc.Cancel(ctx, stranger, order.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}

	admin := auth.Actor{CustomerID: uuid.New(), Role: enums.UserRoleAdministrator}
	if _, err := f.svc.Cancel(ctx, admin, order.ID); err != nil {
		t.Fatalf("admin cancel: %v", err)
	}
}

func TestAdvanceStatusPath(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	ctx := context.Background()
	customer := uuid.New()
	admin := auth.Actor{CustomerID: uuid.New(), Role: enums.UserRoleAdministrator}
	product := f.seedProduct(t, 3.00, 10)
	f.seedCartLine(t, customer, product.ID, 1)

	order, err := f.svc.Create(ctx, customer, CreateOrderInput{ShippingAddress: "12 Orchard Lane"})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	for _, target := range []enums.OrderStatus{
		enums.OrderStatusProcessing,
		enums.OrderStatusShipped,
		enums.OrderStatusCompleted,
	} {
		order, err = f.svc.AdvanceStatus(ctx, admin, order.ID, target)
		if err != nil {
			t.Fatalf("advance to %s: %v", target, err)
		}
		if order.Status != target {
			t.Fatalf("expected %s, got %s", target, order.Status)
		}
	}

	// Completed is terminal.
	_, err = f.svc.AdvanceStatus(ctx, admin, order.ID, enums.OrderStatusCancelled)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestAdvanceStatusForbiddenEdges(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	ctx := context.Background()
	customer := uuid.New()
	admin := auth.Actor{CustomerID: uuid.New(), Role: enums.UserRoleAdministrator}
	product := f.seedProduct(t, 3.00, 10)
	f.seedCartLine(t, customer, product.ID, 1)

	order, err := f.svc.Create(ctx, customer, CreateOrderInput{ShippingAddress: "12 Orchard Lane"})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	for _, target := range []enums.OrderStatus{
		enums.OrderStatusShipped,
		enums.OrderStatusCompleted,
	} {
		_, err := f.svc.AdvanceStatus(ctx, admin, order.ID, target)
		if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
			t.Fatalf("pending → %s should be rejected, got %v", target, err)
		}
	}

	customerActor := auth.Actor{CustomerID: customer, Role: enums.UserRoleCustomer}
	_, err = f.svc.AdvanceStatus(ctx, customerActor, order.ID, enums.OrderStatusProcessing)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden for non-admin, got %v", err)
	}
}

func TestListMineAndAdminList(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	ctx := context.Background()
	alice := uuid.New()
	bob := uuid.New()
	product := f.seedProduct(t, 3.00, 10)
	f.seedCartLine(t, alice, product.ID, 1)
	f.seedCartLine(t, bob, product.ID, 1)

	if _, err := f.svc.Create(ctx, alice, CreateOrderInput{ShippingAddress: "1 First St"}); err != nil {
		t.Fatalf("alice checkout: %v", err)
	}
	if _, err := f.svc.Create(ctx, bob, CreateOrderInput{ShippingAddress: "2 Second St"}); err != nil {
		t.Fatalf("bob checkout: %v", err)
	}

	mine, err := f.svc.ListMine(ctx, alice)
	if err != nil {
		t.Fatalf("list mine: %v", err)
	}
	if len(mine) != 1 || mine[0].CustomerID != alice {
		t.Fatalf("unexpected listing: %+v", mine)
	}

	admin := auth.Actor{CustomerID: uuid.New(), Role: enums.UserRoleAdministrator}
	all, err := f.svc.List(ctx, admin, ListOrdersFilter{})
	if err != nil {
		t.Fatalf("admin list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(all))
	}

	customerActor := auth.Actor{CustomerID: alice, Role: enums.UserRoleCustomer}
	if _, err := f.svc.List(ctx, customerActor, ListOrdersFilter{}); pkgerrors.As(err) == nil || pkgerrors.As(err).Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestCanTransitionTable(t *testing.T) {
	t.Parallel()

	allowed := []struct {
		from, to enums.OrderStatus
	}{
		{enums.OrderStatusPending, enums.OrderStatusProcessing},
		{enums.OrderStatusPending, enums.OrderStatusCancelled},
		{enums.OrderStatusProcessing, enums.OrderStatusShipped},
		{enums.OrderStatusProcessing, enums.OrderStatusCancelled},
		{enums.OrderStatusShipped, enums.OrderStatusCompleted},
	}
	for _, edge := range allowed {
		if !CanTransition(edge.from, edge.to) {
			t.Errorf("%s → %s should be allowed", edge.from, edge.to)
		}
	}

	forbidden := []struct {
		from, to enums.OrderStatus
	}{
		{enums.OrderStatusPending, enums.OrderStatusShipped},
		{enums.OrderStatusPending, enums.OrderStatusCompleted},
		{enums.OrderStatusShipped, enums.OrderStatusCancelled},
		{enums.OrderStatusCompleted, enums.OrderStatusPending},
		{enums.OrderStatusCancelled, enums.OrderStatusPending},
		{enums.OrderStatusCompleted, enums.OrderStatusCancelled},
	}
	for _, edge := range forbidden {
		if CanTransition(edge.from, edge.to) {
			t.Errorf("%s → %s should be forbidden", edge.from, edge.to)
		}
	}
}
