package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dealcrest/dealcrest-backend/api/controllers"
	webhookcontrollers "github.com/dealcrest/dealcrest-backend/api/controllers/webhooks"
	"github.com/dealcrest/dealcrest-backend/api/middleware"
	"github.com/dealcrest/dealcrest-backend/internal/escrow"
	"github.com/dealcrest/dealcrest-backend/internal/orders"
	"github.com/dealcrest/dealcrest-backend/internal/posts"
	"github.com/dealcrest/dealcrest-backend/internal/products"
	"github.com/dealcrest/dealcrest-backend/internal/purchase"
	"github.com/dealcrest/dealcrest-backend/internal/users"
	"github.com/dealcrest/dealcrest-backend/internal/webhooks"
	"github.com/dealcrest/dealcrest-backend/pkg/config"
	"github.com/dealcrest/dealcrest-backend/pkg/db"
	"github.com/dealcrest/dealcrest-backend/pkg/enums"
	"github.com/dealcrest/dealcrest-backend/pkg/logger"
	"github.com/dealcrest/dealcrest-backend/pkg/redis"
	"github.com/dealcrest/dealcrest-backend/pkg/stripe"
)

// Deps carries everything the HTTP surface needs.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       db.Pinger
	Redis    redis.Pinger
	Registry *prometheus.Registry
	Stripe   *stripe.Client
	Users    users.Service
	Products products.Service
	Posts    posts.Service
	Orders   orders.Service
	Escrow   escrow.Service
	Purchase purchase.Service
	Webhooks webhooks.Service
}

// NewRouter assembles the full route tree.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.Recoverer(d.Logger),
		middleware.RequestID(d.Logger),
		middleware.Logging(d.Logger),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(d.Config))
		r.Get("/ready", controllers.HealthReady(d.Config, d.Logger, d.DB, d.Redis))
	})

	if d.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(d.Webhooks, d.Stripe, d.Logger))
	})

	// Stripe redirects the buyer's browser here after checkout. No auth,
	// the session id in the query string is the only credential.
	r.Route("/api/v1/payments", func(r chi.Router) {
		r.Get("/success", controllers.PaymentSuccess(d.Webhooks, d.Logger))
		r.Get("/cancel", controllers.PaymentCancel(d.Webhooks, d.Logger))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(d.Config.JWT, d.Users, d.Logger))

		r.Route("/purchases", func(r chi.Router) {
			r.Post("/online", controllers.PurchaseOnline(d.Purchase, d.Logger))
			r.Post("/cod", controllers.PurchaseCOD(d.Purchase, d.Logger))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.OrderList(d.Orders, d.Logger))
			r.Get("/{orderId}", controllers.OrderDetail(d.Orders, d.Logger))
			r.Patch("/{orderId}/status", controllers.OrderUpdateStatus(d.Orders, d.Logger))
		})

		r.Route("/posts", func(r chi.Router) {
			r.Get("/", controllers.PostList(d.Posts, d.Logger))
			r.Post("/", controllers.PostCreate(d.Posts, d.Logger))
			r.Post("/{postId}/offers", controllers.OfferCreate(d.Posts, d.Logger))
		})
		r.Post("/offers/{offerId}/accept", controllers.OfferAccept(d.Posts, d.Logger))

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ProductList(d.Products, d.Logger))
			r.Post("/", controllers.ProductCreate(d.Products, d.Logger))
			r.Get("/{productId}", controllers.ProductDetail(d.Products, d.Logger))
		})

		r.Route("/sellers", func(r chi.Router) {
			r.Get("/me", controllers.SellerMe(d.Users, d.Logger))
			r.Put("/me/payout-details", controllers.SellerPayoutDetails(d.Users, d.Logger))
		})

		r.Get("/escrows/{escrowId}", controllers.EscrowDetail(d.Escrow, d.Logger))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(enums.ActorRoleAdmin, d.Logger))
			r.Post("/escrows/{escrowId}/release", controllers.EscrowRelease(d.Escrow, d.Logger))
			r.Post("/sellers/{sellerId}/verify", controllers.SellerVerify(d.Users, d.Logger))
		})
	})

	return r
}
