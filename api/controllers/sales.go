package controllers

import (
	"net/http"

	"github.com/davidorduna/agromarket-backend/api/middleware"
	"github.com/davidorduna/agromarket-backend/api/responses"
	"github.com/davidorduna/agromarket-backend/api/validators"
	salesvc "github.com/davidorduna/agromarket-backend/internal/sales"
	"github.com/davidorduna/agromarket-backend/pkg/enums"
	pkgerrors "github.com/davidorduna/agromarket-backend/pkg/errors"
	"github.com/davidorduna/agromarket-backend/pkg/logger"
)

// SaleList returns the caller's purchase history.
func SaleList(svc salesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sales, err := svc.ListMine(r.Context(), actor.CustomerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, sales)
	}
}

// SaleGetByOrder returns the sale cut for an order; owners and
// administrators only.
func SaleGetByOrder(svc salesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := uuidParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := logg.WithOrderID(r.Context(), orderID.String())

		sale, err := svc.GetByOrder(ctx, actor, orderID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, sale)
	}
}

// AdminSaleList returns sales across all customers, with optional
// customer_id, status, and date-range filters.
func AdminSaleList(svc salesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filter := salesvc.ListSalesFilter{}
		if filter.CustomerID, err = validators.ParseQueryUUID(r, "customer_id"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if filter.From, err = validators.ParseQueryDate(r, "from"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if filter.To, err = validators.ParseQueryDate(r, "to"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if raw := r.URL.Query().Get("status"); raw != "" {
			status, err := enums.ParseSaleStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			filter.Status = &status
		}

		sales, err := svc.List(r.Context(), actor, filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, sales)
	}
}
