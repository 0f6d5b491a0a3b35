package handler

import (
	"net/http"
	"strings"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/levels-catalog/internal/domain/auth"
)

// tokenSchemes are the accepted Authorization schemes, matched
// case-insensitively.
var tokenSchemes = []string{"token", "bearer"}

// requireAuth resolves the Authorization header to an account before
// calling next. Requests without valid credentials get 401.
func (h *Handler) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, err := tokenFromHeader(r.Header.Get("Authorization"))
		if err != nil {
			h.fail(w, r, err, "Authentication failed")
			return
		}

		account, err := h.auth.Authenticate(r.Context(), key)
		if err != nil {
			h.fail(w, r, err, "Authentication failed")
			return
		}

		ctx := auth.WithAccount(r.Context(), account)
		ctx = zctx.With(ctx, zap.Int64("user_id", account.ID))
		next(w, r.WithContext(ctx))
	}
}

// tokenFromHeader extracts the key from "Token <key>" or "Bearer <key>".
func tokenFromHeader(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", auth.ErrNoToken
	}
	scheme, key, ok := strings.Cut(header, " ")
	if !ok {
		return "", auth.ErrInvalidToken
	}
	for _, s := range tokenSchemes {
		if strings.EqualFold(scheme, s) {
			key = strings.TrimSpace(key)
			if key == "" || strings.ContainsAny(key, " \t") {
				return "", auth.ErrInvalidToken
			}
			return key, nil
		}
	}
	return "", auth.ErrNoToken
}
