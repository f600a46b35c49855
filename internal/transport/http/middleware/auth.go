package httpmw

import (
	"net/http"

	"github.com/cwrk-planet/chat-service/internal/auth"
	"github.com/cwrk-planet/chat-service/internal/transport/http/httputil"
	"github.com/cwrk-planet/chat-service/pkg/logger"
)

const HeaderUserID = "X-User-ID"

// AuthMiddleware resolves the caller from the Authorization bearer token (and
// X-User-ID in header-trust mode) and stores the user id in the context.
func AuthMiddleware(a auth.Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := a.Authenticate(r.Context(), auth.Credentials{
				Token:  auth.BearerToken(r.Header.Get("Authorization")),
				UserID: r.Header.Get(HeaderUserID),
			})
			if err != nil {
				httputil.WriteError(w, r, err)
				return
			}

			ctx := auth.WithUserID(r.Context(), userID)
			ctx = logger.WithContext(ctx, logger.FromContext(ctx).With("user_id", userID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
