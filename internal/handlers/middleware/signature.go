package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"

	"github.com/nkiryanov/payledger/internal/handlers/render"
)

const (
	SignatureHeader = "X-Signature"

	maxSignedBodySize = 1 << 20
)

// Sign body with HMAC-SHA256 and return hex encoded signature
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func verifySignature(body []byte, signature string, secret string) bool {
	sig, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), sig)
}

// Reject requests whose body is not signed with the secret.
// Empty secret disables the check
func SignatureMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if secret == "" {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSignedBodySize))
			if err != nil {
				render.ServiceError(w, "Failed to read request body", http.StatusBadRequest)
				return
			}

			if !verifySignature(body, r.Header.Get(SignatureHeader), secret) {
				render.ServiceError(w, "Invalid signature", http.StatusUnauthorized)
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			next.ServeHTTP(w, r)
		})
	}
}
