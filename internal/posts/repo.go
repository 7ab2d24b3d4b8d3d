package posts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dealcrest/dealcrest-backend/pkg/db/models"
	"github.com/dealcrest/dealcrest-backend/pkg/enums"
	pkgerrors "github.com/dealcrest/dealcrest-backend/pkg/errors"
	"github.com/dealcrest/dealcrest-backend/pkg/pagination"
)

// Repository exposes post and offer persistence operations.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreatePost(ctx context.Context, post *models.Post) (*models.Post, error)
	FindPostByID(ctx context.Context, id uuid.UUID) (*models.Post, error)
	ListOpenPosts(ctx context.Context, params pagination.Params) ([]models.Post, string, error)
	UpdatePostStatus(ctx context.Context, id uuid.UUID, status enums.PostStatus) error

	CreateOffer(ctx context.Context, offer *models.Offer) (*models.Offer, error)
	FindOfferByID(ctx context.Context, id uuid.UUID) (*models.Offer, error)
	FindAcceptedOffer(ctx context.Context, postID uuid.UUID) (*models.Offer, error)
	MarkOfferAccepted(ctx context.Context, id uuid.UUID, at time.Time) error
	RejectPendingOffers(ctx context.Context, postID uuid.UUID, except uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a posts repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreatePost(ctx context.Context, post *models.Post) (*models.Post, error) {
	if post.ID == uuid.Nil {
		post.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create post")
	}
	return post, nil
}

func (r *repository) FindPostByID(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).First(&post, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "post not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load post")
	}
	return &post, nil
}

func (r *repository) ListOpenPosts(ctx context.Context, params pagination.Params) ([]models.Post, string, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).
		Where("status = ?", enums.PostStatusOpen).
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit))
	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var rows []models.Post
	if err := query.Find(&rows).Error; err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list posts")
	}

	next := ""
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return rows, next, nil
}

func (r *repository) UpdatePostStatus(ctx context.Context, id uuid.UUID, status enums.PostStatus) error {
	res := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "update post status")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "post not found")
	}
	return nil
}

func (r *repository) CreateOffer(ctx context.Context, offer *models.Offer) (*models.Offer, error) {
	if offer.ID == uuid.Nil {
		offer.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(offer).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create offer")
	}
	return offer, nil
}

func (r *repository) FindOfferByID(ctx context.Context, id uuid.UUID) (*models.Offer, error) {
	var offer models.Offer
	if err := r.db.WithContext(ctx).First(&offer, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "offer not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load offer")
	}
	return &offer, nil
}

func (r *repository) FindAcceptedOffer(ctx context.Context, postID uuid.UUID) (*models.Offer, error) {
	var offer models.Offer
	err := r.db.WithContext(ctx).
		Where("post_id = ? AND status = ?", postID, enums.OfferStatusAccepted).
		First(&offer).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no accepted offer for post")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load accepted offer")
	}
	return &offer, nil
}

// MarkOfferAccepted flips a pending offer to accepted. The status guard in
// the WHERE clause makes the transition single-shot under concurrency.
func (r *repository) MarkOfferAccepted(ctx context.Context, id uuid.UUID, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&models.Offer{}).
		Where("id = ? AND status = ?", id, enums.OfferStatusPending).
		Updates(map[string]any{
			"status":      enums.OfferStatusAccepted,
			"accepted_at": at,
		})
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "accept offer")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "offer is not pending")
	}
	return nil
}

func (r *repository) RejectPendingOffers(ctx context.Context, postID uuid.UUID, except uuid.UUID) error {
	err := r.db.WithContext(ctx).
		Model(&models.Offer{}).
		Where("post_id = ? AND id <> ? AND status = ?", postID, except, enums.OfferStatusPending).
		Update("status", enums.OfferStatusRejected).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reject sibling offers")
	}
	return nil
}
