package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	apperrors "pocketbook/internal/errors"
	"pocketbook/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testSecret = "test-secret"

func newTestTokenManager() *TokenManager {
	return NewTokenManager(testSecret, 15*time.Minute, time.Hour)
}

func testUser() *models.User {
	return &models.User{Base: models.Base{ID: "0190a2b4-7c1d-7e2f-8a3b-4c5d6e7f8091"}, Username: "alice", IsActive: true}
}

// lookupOf serves the given users by id.
func lookupOf(users ...*models.User) UserLookup {
	return UserLookupFunc(func(id string) (*models.User, error) {
		for _, u := range users {
			if u.ID == id {
				return u, nil
			}
		}
		return nil, apperrors.ErrUserNotFound
	})
}

func setupAuthRouter(tm *TokenManager, users UserLookup) *gin.Engine {
	r := gin.New()
	r.GET("/protected", AuthMiddleware(tm, users), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetString(UserIDKey)})
	})
	return r
}

func doAuthRequest(r *gin.Engine, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", http.NoBody)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func parseBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse response body: %v", err)
	}
	return result
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	errObj, ok := parseBody(t, rec)["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error object, got %s", rec.Body.String())
	}
	code, _ := errObj["code"].(string)
	return code
}

func TestAuthMiddleware(t *testing.T) {
	tm := newTestTokenManager()
	user := testUser()

	access, err := tm.GenerateAccessToken(user)
	if err != nil {
		t.Fatalf("failed to sign access token: %v", err)
	}
	refresh, err := tm.GenerateRefreshToken(user)
	if err != nil {
		t.Fatalf("failed to sign refresh token: %v", err)
	}
	foreign, err := NewTokenManager("other-secret", time.Minute, time.Hour).GenerateAccessToken(user)
	if err != nil {
		t.Fatalf("failed to sign foreign token: %v", err)
	}

	expiredTM := newTestTokenManager()
	expiredTM.now = func() time.Time { return time.Now().Add(-time.Hour) }
	expired, err := expiredTM.GenerateAccessToken(user)
	if err != nil {
		t.Fatalf("failed to sign expired token: %v", err)
	}

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &JWTClaims{UserID: user.ID, TokenType: tokenTypeAccess})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("failed to build unsigned token: %v", err)
	}

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantCode   string
	}{
		{"valid_access_token", "Bearer " + access, http.StatusOK, ""},
		{"missing_header", "", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"wrong_scheme", "Token " + access, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"no_token", "Bearer", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"garbage_token", "Bearer not.a.jwt", http.StatusUnauthorized, "INVALID_TOKEN"},
		{"refresh_token", "Bearer " + refresh, http.StatusUnauthorized, "INVALID_TOKEN"},
		{"wrong_secret", "Bearer " + foreign, http.StatusUnauthorized, "INVALID_TOKEN"},
		{"expired", "Bearer " + expired, http.StatusUnauthorized, "INVALID_TOKEN"},
		{"alg_none", "Bearer " + unsigned, http.StatusUnauthorized, "INVALID_TOKEN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doAuthRequest(setupAuthRouter(tm, lookupOf(user)), tt.header)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if tt.wantCode != "" {
				if got := errorCode(t, rec); got != tt.wantCode {
					t.Errorf("expected code %q, got %q", tt.wantCode, got)
				}
				return
			}
			if got := parseBody(t, rec)["user_id"]; got != user.ID {
				t.Errorf("expected user_id %s in context, got %v", user.ID, got)
			}
		})
	}
}

func TestAuthMiddleware_UserState(t *testing.T) {
	tm := newTestTokenManager()
	user := testUser()
	access, err := tm.GenerateAccessToken(user)
	if err != nil {
		t.Fatalf("failed to sign access token: %v", err)
	}

	inactive := *user
	inactive.IsActive = false

	tests := []struct {
		name       string
		users      UserLookup
		wantStatus int
		wantCode   string
	}{
		{"deleted_user", lookupOf(), http.StatusUnauthorized, "INVALID_TOKEN"},
		{"inactive_user", lookupOf(&inactive), http.StatusUnauthorized, "INVALID_TOKEN"},
		{"lookup_failure", UserLookupFunc(func(string) (*models.User, error) {
			return nil, errors.New("connection refused")
		}), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doAuthRequest(setupAuthRouter(tm, tt.users), "Bearer "+access)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if got := errorCode(t, rec); got != tt.wantCode {
				t.Errorf("expected code %q, got %q", tt.wantCode, got)
			}
		})
	}
}

func TestValidateRefreshToken(t *testing.T) {
	tm := newTestTokenManager()
	user := testUser()

	refresh, _ := tm.GenerateRefreshToken(user)
	claims, err := tm.ValidateRefreshToken(refresh)
	if err != nil {
		t.Fatalf("expected refresh token to validate: %v", err)
	}
	if claims.UserID != user.ID || claims.Subject != user.ID {
		t.Errorf("unexpected claims: %+v", claims)
	}

	access, _ := tm.GenerateAccessToken(user)
	if _, err := tm.ValidateRefreshToken(access); err == nil {
		t.Error("access token must not validate as a refresh token")
	}
}

func TestTokenLifetimes(t *testing.T) {
	tm := NewTokenManager(testSecret, 5*time.Minute, 48*time.Hour)
	fixed := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	tm.now = func() time.Time { return fixed }

	access, _ := tm.GenerateAccessToken(testUser())
	claims, err := tm.ValidateAccessToken(access)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := claims.ExpiresAt.Time.Sub(fixed); got != 5*time.Minute {
		t.Errorf("expected access lifetime 5m, got %s", got)
	}

	tm.now = func() time.Time { return fixed.Add(6 * time.Minute) }
	if _, err := tm.ValidateAccessToken(access); err == nil {
		t.Error("expected access token to be expired")
	}
}
