package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/davidorduna/agromarket-backend/pkg/db/models"
	pkgerrors "github.com/davidorduna/agromarket-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes the administrative view over stock levels. Reservation and
// release run through the ledger functions inside order/payment transactions,
// never through here.
type Service interface {
	Get(ctx context.Context, productID uuid.UUID) (*models.InventoryRecord, error)
	List(ctx context.Context) ([]models.InventoryRecord, error)
	Restock(ctx context.Context, productID uuid.UUID, qty int) (*models.InventoryRecord, error)
}

type service struct {
	runner txRunner
	repo   Repository
}

// NewService wires an inventory service with the provided runner and repository.
func NewService(runner txRunner, repo Repository) (Service, error) {
	if runner == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	return &service{runner: runner, repo: repo}, nil
}

func (s *service) Get(ctx context.Context, productID uuid.UUID) (*models.InventoryRecord, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}

	record, err := s.repo.Get(ctx, productID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "inventory record not found")
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory record")
	}
	return record, nil
}

func (s *service) List(ctx context.Context) ([]models.InventoryRecord, error) {
	records, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list inventory records")
	}
	return records, nil
}

// Restock adds quantity to a product's available pool and returns the
// refreshed record.
func (s *service) Restock(ctx context.Context, productID uuid.UUID, qty int) (*models.InventoryRecord, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "restock quantity must be positive")
	}

	var record *models.InventoryRecord
	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		if err := Release(ctx, tx, productID, qty); err != nil {
			return err
		}
		loaded, err := s.repo.WithTx(tx).Get(ctx, productID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload inventory record")
		}
		record = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}
