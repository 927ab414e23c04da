package auth

import (
	"net/http"
	"strings"

	"github.com/dmitrijs2005/filingapi/internal/common"
)

type ctxKey string

const userKey ctxKey = "user"

// Authenticate rejects requests without a valid bearer token and stores the
// token's user in the request context.
func Authenticate(secretKey []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get(common.AuthorizationHeaderName)
			if !strings.HasPrefix(header, common.BearerPrefix) {
				common.WriteError(w, common.NewRequestError(http.StatusUnauthorized, "Unauthorized", "missing bearer token", common.ErrorUnauthorized))
				return
			}

			user, err := ParseToken(strings.TrimPrefix(header, common.BearerPrefix), secretKey)
			if err != nil {
				common.WriteError(w, common.NewRequestError(http.StatusUnauthorized, "Unauthorized", err.Error(), err))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}
