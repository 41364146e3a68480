package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fairpay/backend/services/session-service/internal/auth"
	"fairpay/backend/services/session-service/internal/clock"
)

func TestAuthMiddleware(t *testing.T) {
	tokens, err := auth.NewTokenService("secret", time.Hour, clock.NewReal())
	require.NoError(t, err)
	token, err := tokens.GenerateToken("0x52908400098527886e0f7030069857d2e4169ee7", 11155111)
	require.NoError(t, err)

	var seen *auth.Claims
	handler := AuthMiddleware(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		query  string
		status int
	}{
		{"missing", "", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", "", http.StatusUnauthorized},
		{"garbage", "Bearer abc", "", http.StatusUnauthorized},
		{"header", "Bearer " + token, "", http.StatusNoContent},
		{"query", "", "?token=" + token, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodGet, "/session/status"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusNoContent {
				require.NotNil(t, seen)
				assert.Equal(t, uint64(11155111), seen.ChainID)
			} else {
				assert.Nil(t, seen)
				assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
				var body map[string]string
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
				assert.NotEmpty(t, body["error"])
			}
		})
	}
}

func TestWriteErrorEscapesMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	writeUnauthorized(rec, `bad "token" \ here`)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"bad \"token\" \\ here"}`, rec.Body.String())
}
