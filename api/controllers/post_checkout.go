package controllers

import (
	"net/http"

	"github.com/clipgate/clipgate-backend/api/responses"
	"github.com/clipgate/clipgate-backend/api/validators"
	postcheckoutsvc "github.com/clipgate/clipgate-backend/internal/postcheckout"
	pkgerrors "github.com/clipgate/clipgate-backend/pkg/errors"
	"github.com/clipgate/clipgate-backend/pkg/logger"
)

// PostCheckout is where Stripe redirects the buyer after payment. It resolves
// the session into a site-specific success URL and 302s the browser there.
func PostCheckout(svc postcheckoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "post-checkout service unavailable"))
			return
		}

		sessionID, err := validators.RequireQuery(r, "session_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		target, err := svc.Confirm(r.Context(), sessionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		http.Redirect(w, r, target, http.StatusFound)
	}
}
