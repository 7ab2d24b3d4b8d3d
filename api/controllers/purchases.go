package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/dealcrest/dealcrest-backend/api/middleware"
	"github.com/dealcrest/dealcrest-backend/api/responses"
	"github.com/dealcrest/dealcrest-backend/api/validators"
	"github.com/dealcrest/dealcrest-backend/internal/purchase"
	"github.com/dealcrest/dealcrest-backend/pkg/enums"
	pkgerrors "github.com/dealcrest/dealcrest-backend/pkg/errors"
	"github.com/dealcrest/dealcrest-backend/pkg/logger"
)

type purchaseRequest struct {
	ItemType   string `json:"item_type" validate:"required,oneof=product offer"`
	ItemID     string `json:"item_id" validate:"required,uuid"`
	TotalCents int    `json:"total_cents" validate:"required,gt=0"`
	Quantity   int    `json:"quantity" validate:"required,min=1"`
	Address    string `json:"address" validate:"required"`
}

type purchaseResponse struct {
	OrderID       uuid.UUID  `json:"order_id"`
	TransactionID uuid.UUID  `json:"transaction_id"`
	Status        string     `json:"status"`
	PaymentMethod string     `json:"payment_method"`
	TotalCents    int        `json:"total_cents"`
	EscrowID      *uuid.UUID `json:"escrow_id,omitempty"`
	CheckoutURL   string     `json:"checkout_url,omitempty"`
}

// PurchaseOnline places an order paid through a hosted checkout session.
func PurchaseOnline(svc purchase.Service, logg *logger.Logger) http.HandlerFunc {
	return purchaseHandler(svc, logg, enums.PaymentMethodOnline)
}

// PurchaseCOD places an order settled in cash on delivery.
func PurchaseCOD(svc purchase.Service, logg *logger.Logger) http.HandlerFunc {
	return purchaseHandler(svc, logg, enums.PaymentMethodCOD)
}

func purchaseHandler(svc purchase.Service, logg *logger.Logger, method enums.PaymentMethod) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "purchase service unavailable"))
			return
		}

		buyerID, err := requireActor(r, enums.ActorRoleBuyer)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload purchaseRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		itemType, err := enums.ParseItemType(payload.ItemType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid item type"))
			return
		}
		itemID, err := uuid.Parse(payload.ItemID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid item id"))
			return
		}

		input := purchase.Input{
			BuyerID:            buyerID,
			ItemType:           itemType,
			ItemID:             itemID,
			Quantity:           payload.Quantity,
			DeclaredTotalCents: payload.TotalCents,
			Address:            payload.Address,
		}

		var result *purchase.Result
		if method == enums.PaymentMethodOnline {
			result, err = svc.PerformOnline(r.Context(), input)
		} else {
			result, err = svc.PerformCOD(r.Context(), input)
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := purchaseResponse{
			OrderID:       result.Order.ID,
			TransactionID: result.Transaction.ID,
			Status:        result.Order.Status.String(),
			PaymentMethod: result.Transaction.PaymentMethod.String(),
			TotalCents:    result.Order.TotalCents,
			CheckoutURL:   result.CheckoutURL,
		}
		if result.Escrow != nil {
			escrowID := result.Escrow.ID
			resp.EscrowID = &escrowID
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, resp)
	}
}

// requireActor checks the authenticated role and returns the actor row id.
func requireActor(r *http.Request, role enums.ActorRole) (uuid.UUID, error) {
	if middleware.RoleFromContext(r.Context()) != role {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, string(role)+" role required")
	}
	actorID := middleware.ActorFromContext(r.Context())
	if actorID == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor context missing")
	}
	return actorID, nil
}
