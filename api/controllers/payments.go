package controllers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/davidorduna/agromarket-backend/api/middleware"
	"github.com/davidorduna/agromarket-backend/api/responses"
	"github.com/davidorduna/agromarket-backend/api/validators"
	paymentsvc "github.com/davidorduna/agromarket-backend/internal/payments"
	"github.com/davidorduna/agromarket-backend/pkg/enums"
	pkgerrors "github.com/davidorduna/agromarket-backend/pkg/errors"
	"github.com/davidorduna/agromarket-backend/pkg/logger"
)

type processPaymentRequest struct {
	OrderID uuid.UUID       `json:"order_id" validate:"required"`
	Amount  decimal.Decimal `json:"amount" validate:"required"`
	Method  string          `json:"method" validate:"required"`
}

// PaymentProcess runs one payment attempt against an order.
func PaymentProcess(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload processPaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		method, err := enums.ParsePaymentMethod(payload.Method)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method"))
			return
		}
		ctx := logg.WithOrderID(r.Context(), payload.OrderID.String())

		result, err := svc.Process(ctx, actor, paymentsvc.ProcessPaymentInput{
			OrderID: payload.OrderID,
			Amount:  payload.Amount,
			Method:  method,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// PaymentGet returns one payment; owners and administrators only.
func PaymentGet(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		paymentID, err := uuidParam(r, "paymentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payment, err := svc.Get(r.Context(), actor, paymentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, payment)
	}
}

// AdminPaymentList returns payments across all orders, with optional
// order_id and status filters.
func AdminPaymentList(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filter := paymentsvc.ListPaymentsFilter{}
		if filter.OrderID, err = validators.ParseQueryUUID(r, "order_id"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if raw := r.URL.Query().Get("status"); raw != "" {
			status, err := enums.ParsePaymentStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			filter.Status = &status
		}

		payments, err := svc.List(r.Context(), actor, filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, payments)
	}
}
