package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dealcrest/dealcrest-backend/api/middleware"
	"github.com/dealcrest/dealcrest-backend/api/responses"
	"github.com/dealcrest/dealcrest-backend/api/validators"
	"github.com/dealcrest/dealcrest-backend/internal/orders"
	"github.com/dealcrest/dealcrest-backend/pkg/db/models"
	"github.com/dealcrest/dealcrest-backend/pkg/enums"
	pkgerrors "github.com/dealcrest/dealcrest-backend/pkg/errors"
	"github.com/dealcrest/dealcrest-backend/pkg/logger"
	"github.com/dealcrest/dealcrest-backend/pkg/pagination"
)

type orderStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type orderListResponse struct {
	Orders     []orderView `json:"orders"`
	NextCursor string      `json:"next_cursor,omitempty"`
}

type orderView struct {
	ID            uuid.UUID  `json:"id"`
	TransactionID uuid.UUID  `json:"transaction_id"`
	BuyerID       uuid.UUID  `json:"buyer_id"`
	SellerID      uuid.UUID  `json:"seller_id"`
	ProductID     *uuid.UUID `json:"product_id,omitempty"`
	PostID        *uuid.UUID `json:"post_id,omitempty"`
	Quantity      int        `json:"quantity"`
	TotalCents    int        `json:"total_cents"`
	Status        string     `json:"status"`
	Address       string     `json:"address"`
}

// OrderList returns the caller's orders, buyer or seller perspective.
func OrderList(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		actor, err := actorInput(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		list, next, err := svc.List(r.Context(), actor, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := orderListResponse{NextCursor: next, Orders: make([]orderView, 0, len(list))}
		for i := range list {
			resp.Orders = append(resp.Orders, orderViewFrom(&list[i]))
		}
		responses.WriteSuccess(w, resp)
	}
}

// OrderDetail returns one order the caller may view.
func OrderDetail(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		actor, err := actorInput(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := parseURLUUID(r, "orderId", "order id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Get(r.Context(), actor, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, orderViewFrom(order))
	}
}

// OrderUpdateStatus applies a status transition requested by the caller.
func OrderUpdateStatus(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		actor, err := actorInput(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := parseURLUUID(r, "orderId", "order id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload orderStatusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		target, err := enums.ParseOrderStatus(payload.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order status"))
			return
		}

		order, err := svc.UpdateStatus(r.Context(), orders.UpdateStatusInput{
			OrderID: orderID,
			Target:  target,
			Actor:   actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, orderViewFrom(order))
	}
}

// actorInput resolves the authenticated actor into the scope the orders
// service filters by. Admins see everything, so uuid.Nil is acceptable there.
func actorInput(r *http.Request) (orders.ActorInput, error) {
	role := middleware.RoleFromContext(r.Context())
	if !role.IsValid() {
		return orders.ActorInput{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor context missing")
	}
	actorID := middleware.ActorFromContext(r.Context())
	if role != enums.ActorRoleAdmin && actorID == uuid.Nil {
		return orders.ActorInput{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor context missing")
	}
	return orders.ActorInput{ActorID: actorID, Role: role}, nil
}

func parseURLUUID(r *http.Request, param, label string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+label)
	}
	return id, nil
}

func orderViewFrom(order *models.Order) orderView {
	return orderView{
		ID:            order.ID,
		TransactionID: order.TransactionID,
		BuyerID:       order.BuyerID,
		SellerID:      order.SellerID,
		ProductID:     order.ProductID,
		PostID:        order.PostID,
		Quantity:      order.Quantity,
		TotalCents:    order.TotalCents,
		Status:        string(order.Status),
		Address:       order.Address,
	}
}
