package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/dealcrest/dealcrest-backend/api/responses"
	"github.com/dealcrest/dealcrest-backend/api/validators"
	"github.com/dealcrest/dealcrest-backend/internal/posts"
	"github.com/dealcrest/dealcrest-backend/pkg/db/models"
	"github.com/dealcrest/dealcrest-backend/pkg/enums"
	pkgerrors "github.com/dealcrest/dealcrest-backend/pkg/errors"
	"github.com/dealcrest/dealcrest-backend/pkg/logger"
	"github.com/dealcrest/dealcrest-backend/pkg/pagination"
)

type postCreateRequest struct {
	Title       string  `json:"title" validate:"required,max=200"`
	Description *string `json:"description"`
	BudgetCents int     `json:"budget_cents" validate:"min=0"`
}

type offerCreateRequest struct {
	AmountCents int     `json:"amount_cents" validate:"required,gt=0"`
	Message     *string `json:"message"`
}

type postView struct {
	ID          uuid.UUID `json:"id"`
	BuyerID     uuid.UUID `json:"buyer_id"`
	Title       string    `json:"title"`
	Description *string   `json:"description,omitempty"`
	BudgetCents int       `json:"budget_cents"`
	Status      string    `json:"status"`
}

type offerView struct {
	ID          uuid.UUID `json:"id"`
	PostID      uuid.UUID `json:"post_id"`
	SellerID    uuid.UUID `json:"seller_id"`
	AmountCents int       `json:"amount_cents"`
	Message     *string   `json:"message,omitempty"`
	Status      string    `json:"status"`
}

type postListResponse struct {
	Posts      []postView `json:"posts"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

// PostCreate opens a request-for-offers owned by the calling buyer.
func PostCreate(svc posts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "posts service unavailable"))
			return
		}

		buyerID, err := requireActor(r, enums.ActorRoleBuyer)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload postCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		post, err := svc.CreatePost(r.Context(), posts.CreatePostInput{
			BuyerID:     buyerID,
			Title:       payload.Title,
			Description: payload.Description,
			BudgetCents: payload.BudgetCents,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, postViewFrom(post))
	}
}

// PostList returns open posts, newest first.
func PostList(svc posts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "posts service unavailable"))
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

		list, next, err := svc.ListOpenPosts(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := postListResponse{NextCursor: next, Posts: make([]postView, 0, len(list))}
		for i := range list {
			resp.Posts = append(resp.Posts, postViewFrom(&list[i]))
		}
		responses.WriteSuccess(w, resp)
	}
}

// OfferCreate places a seller's bid against an open post.
func OfferCreate(svc posts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "posts service unavailable"))
			return
		}

		sellerID, err := requireActor(r, enums.ActorRoleSeller)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		postID, err := parseURLUUID(r, "postId", "post id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload offerCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		offer, err := svc.CreateOffer(r.Context(), posts.CreateOfferInput{
			PostID:      postID,
			SellerID:    sellerID,
			AmountCents: payload.AmountCents,
			Message:     payload.Message,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, offerViewFrom(offer))
	}
}

// OfferAccept lets the post owner accept one offer, rejecting the rest.
func OfferAccept(svc posts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "posts service unavailable"))
			return
		}

		buyerID, err := requireActor(r, enums.ActorRoleBuyer)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		offerID, err := parseURLUUID(r, "offerId", "offer id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.AcceptOffer(r.Context(), posts.AcceptOfferInput{
			OfferID:      offerID,
			ActorBuyerID: buyerID,
		}); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"offer_id": offerID.String(), "status": string(enums.OfferStatusAccepted)})
	}
}

func postViewFrom(post *models.Post) postView {
	return postView{
		ID:          post.ID,
		BuyerID:     post.BuyerID,
		Title:       post.Title,
		Description: post.Description,
		BudgetCents: post.BudgetCents,
		Status:      string(post.Status),
	}
}

func offerViewFrom(offer *models.Offer) offerView {
	return offerView{
		ID:          offer.ID,
		PostID:      offer.PostID,
		SellerID:    offer.SellerID,
		AmountCents: offer.AmountCents,
		Message:     offer.Message,
		Status:      string(offer.Status),
	}
}
