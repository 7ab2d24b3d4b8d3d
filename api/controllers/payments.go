package controllers

import (
	"net/http"
	"strings"

	"github.com/dealcrest/dealcrest-backend/api/responses"
	"github.com/dealcrest/dealcrest-backend/internal/webhooks"
	pkgerrors "github.com/dealcrest/dealcrest-backend/pkg/errors"
	"github.com/dealcrest/dealcrest-backend/pkg/logger"
)

// PaymentSuccess applies the paid outcome when the buyer lands on the
// success redirect. The webhook delivers the same outcome; whichever arrives
// first wins and the other is a no-op.
func PaymentSuccess(svc webhooks.Service, logg *logger.Logger) http.HandlerFunc {
	return paymentRedirectHandler(svc, logg, webhooks.OutcomePaid)
}

// PaymentCancel applies the failed outcome when the buyer abandons checkout.
func PaymentCancel(svc webhooks.Service, logg *logger.Logger) http.HandlerFunc {
	return paymentRedirectHandler(svc, logg, webhooks.OutcomeFailed)
}

func paymentRedirectHandler(svc webhooks.Service, logg *logger.Logger, outcome webhooks.Outcome) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
		if sessionID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "session_id is required"))
			return
		}

		err := svc.ApplyOutcome(r.Context(), webhooks.ApplyInput{
			ProviderSessionID: sessionID,
			Outcome:           outcome,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{
			"session_id": sessionID,
			"outcome":    string(outcome),
		})
	}
}
