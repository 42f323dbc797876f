package middleware

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	apperrors "pocketbook/internal/errors"
	"pocketbook/internal/logger"
	"pocketbook/internal/models"
)

const (
	tokenIssuer = "pocketbook-api"

	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"

	// UserIDKey is the gin context key holding the authenticated user's id.
	UserIDKey = "userID"
)

// JWTClaims represents the claims in the JWT
type JWTClaims struct {
	UserID    string `json:"user_id"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies HS256 access and refresh tokens.
type TokenManager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenManager creates a TokenManager signing with secret.
func NewTokenManager(secret string, accessTTL, refreshTTL time.Duration) *TokenManager {
	return &TokenManager{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// GenerateAccessToken generates a short-lived JWT access token for a user.
func (tm *TokenManager) GenerateAccessToken(user *models.User) (string, error) {
	return tm.sign(user, tokenTypeAccess, tm.accessTTL)
}

// GenerateRefreshToken generates a long-lived JWT refresh token for a user.
func (tm *TokenManager) GenerateRefreshToken(user *models.User) (string, error) {
	return tm.sign(user, tokenTypeRefresh, tm.refreshTTL)
}

func (tm *TokenManager) sign(user *models.User, tokenType string, ttl time.Duration) (string, error) {
	now := tm.now()
	claims := &JWTClaims{
		UserID:    user.ID,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
			Subject:   user.ID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(tm.secret)
}

// parse verifies signature, method and time claims and requires the given
// token type.
func (tm *TokenManager) parse(tokenString, tokenType string) (*JWTClaims, error) {
	claims := &JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tm.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(tm.now),
	)
	if err != nil || !token.Valid {
		return nil, apperrors.ErrInvalidToken
	}
	if claims.TokenType != tokenType || claims.UserID == "" {
		return nil, apperrors.ErrInvalidToken
	}
	return claims, nil
}

// ValidateAccessToken parses an access token. Refresh tokens are rejected.
func (tm *TokenManager) ValidateAccessToken(tokenString string) (*JWTClaims, error) {
	return tm.parse(tokenString, tokenTypeAccess)
}

// ValidateRefreshToken parses a refresh token. Access tokens are rejected.
func (tm *TokenManager) ValidateRefreshToken(tokenString string) (*JWTClaims, error) {
	return tm.parse(tokenString, tokenTypeRefresh)
}

// UserLookup loads the user a token was issued to.
type UserLookup interface {
	GetUserByID(id string) (*models.User, error)
}

// UserLookupFunc adapts a function to UserLookup.
type UserLookupFunc func(id string) (*models.User, error)

// GetUserByID calls f(id).
func (f UserLookupFunc) GetUserByID(id string) (*models.User, error) { return f(id) }

// AuthMiddleware verifies the bearer access token, checks that its user still
// exists and is active, and sets the user id in the context under UserIDKey.
func AuthMiddleware(tm *TokenManager, users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortWithError(c, apperrors.WithMessage(apperrors.ErrUnauthorized, "Authorization header is required"))
			return
		}

		parts := strings.Fields(authHeader)
		if len(parts) != 2 || parts[0] != "Bearer" {
			abortWithError(c, apperrors.WithMessage(apperrors.ErrUnauthorized, "Invalid authorization header format"))
			return
		}

		claims, err := tm.ValidateAccessToken(parts[1])
		if err != nil {
			abortWithError(c, apperrors.ErrInvalidToken)
			return
		}

		user, err := users.GetUserByID(claims.UserID)
		switch {
		case errors.Is(err, apperrors.ErrUserNotFound):
			abortWithError(c, apperrors.WithMessage(apperrors.ErrInvalidToken, "User not found"))
			return
		case err != nil:
			logger.WithRequest(GetRequestID(c)).Errorw("user lookup failed", "user_id", claims.UserID, "error", err.Error())
			abortWithError(c, apperrors.ErrInternalServer)
			return
		case !user.IsActive:
			abortWithError(c, apperrors.WithMessage(apperrors.ErrInvalidToken, "User is inactive"))
			return
		}

		c.Set(UserIDKey, user.ID)
		c.Next()
	}
}

func abortWithError(c *gin.Context, appErr *apperrors.AppError) {
	c.AbortWithStatusJSON(appErr.StatusCode, gin.H{
		"error": gin.H{
			"code":    appErr.Code,
			"message": appErr.Message,
		},
	})
}
