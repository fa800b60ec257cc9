package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/clipgate/clipgate-backend/api/responses"
	pkgerrors "github.com/clipgate/clipgate-backend/pkg/errors"
	"github.com/clipgate/clipgate-backend/pkg/logger"
)

const (
	internalTokenHeader  = "x-internal-token"
	internalSecretHeader = "x-internal-secret"
)

// InternalToken gates server-to-server routes behind a shared secret. Either
// header name is accepted; callers predate the rename.
func InternalToken(token string, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.TrimSpace(token) == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "internal token not configured"))
				return
			}

			provided := r.Header.Get(internalTokenHeader)
			if provided == "" {
				provided = r.Header.Get(internalSecretHeader)
			}
			if provided == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing internal token"))
				return
			}

			if subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid internal token"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
