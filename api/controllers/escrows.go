package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/dealcrest/dealcrest-backend/api/middleware"
	"github.com/dealcrest/dealcrest-backend/api/responses"
	"github.com/dealcrest/dealcrest-backend/internal/escrow"
	"github.com/dealcrest/dealcrest-backend/pkg/db/models"
	"github.com/dealcrest/dealcrest-backend/pkg/enums"
	pkgerrors "github.com/dealcrest/dealcrest-backend/pkg/errors"
	"github.com/dealcrest/dealcrest-backend/pkg/logger"
)

type escrowView struct {
	ID               uuid.UUID  `json:"id"`
	OrderID          uuid.UUID  `json:"order_id"`
	SellerID         uuid.UUID  `json:"seller_id"`
	TotalCents       int        `json:"total_cents"`
	PlatformFeeCents int        `json:"platform_fee_cents"`
	NetCents         int        `json:"net_cents"`
	Status           string     `json:"status"`
	ReleasedAt       *time.Time `json:"released_at,omitempty"`
}

// EscrowRelease pays out a held escrow. Admin only, enforced by routing.
func EscrowRelease(svc escrow.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "escrow service unavailable"))
			return
		}

		escrowID, err := parseURLUUID(r, "escrowId", "escrow id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payout, err := svc.Release(r.Context(), escrowID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, escrowViewFrom(payout))
	}
}

// EscrowDetail returns one payout, visible to admins and the owning seller.
func EscrowDetail(svc escrow.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "escrow service unavailable"))
			return
		}

		escrowID, err := parseURLUUID(r, "escrowId", "escrow id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payout, err := svc.Get(r.Context(), escrowID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		role := middleware.RoleFromContext(r.Context())
		if role != enums.ActorRoleAdmin && payout.SellerID != middleware.ActorFromContext(r.Context()) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "escrow belongs to another seller"))
			return
		}
		responses.WriteSuccess(w, escrowViewFrom(payout))
	}
}

func escrowViewFrom(payout *models.EscrowPayout) escrowView {
	return escrowView{
		ID:               payout.ID,
		OrderID:          payout.OrderID,
		SellerID:         payout.SellerID,
		TotalCents:       payout.TotalCents,
		PlatformFeeCents: payout.PlatformFeeCents,
		NetCents:         payout.NetCents,
		Status:           string(payout.Status),
		ReleasedAt:       payout.ReleasedAt,
	}
}
