package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/dealcrest/dealcrest-backend/api/responses"
	"github.com/dealcrest/dealcrest-backend/api/validators"
	"github.com/dealcrest/dealcrest-backend/internal/users"
	"github.com/dealcrest/dealcrest-backend/pkg/db/models"
	"github.com/dealcrest/dealcrest-backend/pkg/enums"
	pkgerrors "github.com/dealcrest/dealcrest-backend/pkg/errors"
	"github.com/dealcrest/dealcrest-backend/pkg/logger"
)

type payoutDetailsRequest struct {
	BankName      string `json:"bank_name" validate:"required,max=120"`
	AccountNumber string `json:"account_number" validate:"required,max=60"`
}

type sellerView struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	IsVerified  bool      `json:"is_verified"`
	HasPayout   bool      `json:"has_payout_details"`
}

// SellerPayoutDetails stores the calling seller's bank destination.
func SellerPayoutDetails(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "users service unavailable"))
			return
		}

		sellerID, err := requireActor(r, enums.ActorRoleSeller)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload payoutDetailsRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.UpdatePayoutDetails(r.Context(), sellerID, payload.BankName, payload.AccountNumber); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"seller_id": sellerID.String()})
	}
}

// SellerMe returns the calling seller's profile.
func SellerMe(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "users service unavailable"))
			return
		}

		sellerID, err := requireActor(r, enums.ActorRoleSeller)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		seller, err := svc.GetSeller(r.Context(), sellerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, sellerViewFrom(seller))
	}
}

// SellerVerify flips a seller to verified. Admin only, enforced by routing.
func SellerVerify(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "users service unavailable"))
			return
		}

		sellerID, err := parseURLUUID(r, "sellerId", "seller id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		seller, err := svc.VerifySeller(r.Context(), sellerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, sellerViewFrom(seller))
	}
}

func sellerViewFrom(seller *models.Seller) sellerView {
	return sellerView{
		ID:          seller.ID,
		Email:       seller.Email,
		DisplayName: seller.DisplayName,
		IsVerified:  seller.IsVerified,
		HasPayout:   seller.HasPayoutDetails(),
	}
}
