package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/clipgate/clipgate-backend/api/responses"
	"github.com/clipgate/clipgate-backend/api/validators"
	checkoutsvc "github.com/clipgate/clipgate-backend/internal/checkout"
	pkgerrors "github.com/clipgate/clipgate-backend/pkg/errors"
	"github.com/clipgate/clipgate-backend/pkg/logger"
)

// Checkout opens a Stripe checkout session for a single video or a bundle.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Initiate(r.Context(), checkoutsvc.Input{
			UserID:   payload.UserID,
			VideoID:  payload.VideoID,
			BundleID: payload.BundleID,
			Site:     payload.Site,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newCheckoutResponse(result))
	}
}

// CheckoutTelegram opens a checkout for a Telegram buyer with no account.
// Only reachable through the internal API surface.
func CheckoutTelegram(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload telegramCheckoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.InitiateAnonymous(r.Context(), payload.VideoID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newCheckoutResponse(result))
	}
}

type checkoutRequest struct {
	UserID   string `json:"user_id" validate:"required"`
	VideoID  string `json:"video_id,omitempty"`
	BundleID string `json:"bundle_id,omitempty"`
	Site     string `json:"site" validate:"required"`
}

type telegramCheckoutRequest struct {
	VideoID string `json:"video_id" validate:"required"`
}

type checkoutResponse struct {
	PurchaseID  uuid.UUID `json:"purchase_id"`
	CheckoutURL string    `json:"checkout_url"`
}

func newCheckoutResponse(result *checkoutsvc.Result) checkoutResponse {
	if result == nil {
		return checkoutResponse{}
	}
	return checkoutResponse{
		PurchaseID:  result.PurchaseID,
		CheckoutURL: result.URL,
	}
}
