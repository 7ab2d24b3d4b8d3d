package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/dealcrest/dealcrest-backend/api/responses"
	"github.com/dealcrest/dealcrest-backend/api/validators"
	"github.com/dealcrest/dealcrest-backend/internal/products"
	"github.com/dealcrest/dealcrest-backend/pkg/db/models"
	"github.com/dealcrest/dealcrest-backend/pkg/enums"
	pkgerrors "github.com/dealcrest/dealcrest-backend/pkg/errors"
	"github.com/dealcrest/dealcrest-backend/pkg/logger"
)

type productCreateRequest struct {
	Title        string  `json:"title" validate:"required,max=200"`
	Description  *string `json:"description"`
	PriceCents   int     `json:"price_cents" validate:"required,gt=0"`
	InitialStock int     `json:"initial_stock" validate:"min=0"`
}

type productView struct {
	ID             uuid.UUID `json:"id"`
	SellerID       uuid.UUID `json:"seller_id"`
	Title          string    `json:"title"`
	Description    *string   `json:"description,omitempty"`
	PriceCents     int       `json:"price_cents"`
	AvailableStock int       `json:"available_stock"`
	IsActive       bool      `json:"is_active"`
}

// ProductCreate lists a new catalog item for the calling seller.
func ProductCreate(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "products service unavailable"))
			return
		}

		sellerID, err := requireActor(r, enums.ActorRoleSeller)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload productCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.Create(r.Context(), products.CreateInput{
			SellerID:     sellerID,
			Title:        payload.Title,
			Description:  payload.Description,
			PriceCents:   payload.PriceCents,
			InitialStock: payload.InitialStock,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, productViewFrom(product))
	}
}

// ProductList returns the calling seller's catalog.
func ProductList(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "products service unavailable"))
			return
		}

		sellerID, err := requireActor(r, enums.ActorRoleSeller)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListMine(r.Context(), sellerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		views := make([]productView, 0, len(list))
		for i := range list {
			views = append(views, productViewFrom(&list[i]))
		}
		responses.WriteSuccess(w, map[string]any{"products": views})
	}
}

// ProductDetail returns one catalog item.
func ProductDetail(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "products service unavailable"))
			return
		}

		productID, err := parseURLUUID(r, "productId", "product id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.Get(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, productViewFrom(product))
	}
}

func productViewFrom(product *models.Product) productView {
	return productView{
		ID:             product.ID,
		SellerID:       product.SellerID,
		Title:          product.Title,
		Description:    product.Description,
		PriceCents:     product.PriceCents,
		AvailableStock: product.AvailableStock,
		IsActive:       product.IsActive,
	}
}
