package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "pocketbook/internal/errors"
	"pocketbook/internal/middleware"
	"pocketbook/internal/services"
)

// AuthHandler handles signup, token and profile requests
type AuthHandler struct {
	userService services.UserServicer
	tokens      *middleware.TokenManager
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(userService services.UserServicer, tokens *middleware.TokenManager) *AuthHandler {
	return &AuthHandler{userService: userService, tokens: tokens}
}

// SignupRequest represents the signup request payload
type SignupRequest struct {
	Username string `json:"username" binding:"required,notblank,max=150"`
	Password string `json:"password" binding:"required"`
}

// TokenRequest represents the token request payload
type TokenRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest carries a refresh token
type RefreshRequest struct {
	Refresh string `json:"refresh" binding:"required"`
}

// MessageResponse is a plain confirmation message
type MessageResponse struct {
	Message string `json:"message" example:"User created successfully"`
}

// TokenPairResponse holds a freshly issued access and refresh token
type TokenPairResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// AccessTokenResponse holds a new access token
type AccessTokenResponse struct {
	Access string `json:"access"`
}

// ProfileResponse represents the caller's account
type ProfileResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Signup handles user registration
// @Summary     Sign up
// @Description Create a new account. No token is returned; call /token/ afterwards.
// @Tags        auth
// @Accept      json
// @Produce     json
// @Param       request body SignupRequest true "New account credentials"
// @Success     201 {object} MessageResponse "User created"
// @Failure     400 {object} ErrorResponse "Invalid input or username taken"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /signup/ [post]
func (h *AuthHandler) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	if _, err := h.userService.CreateUser(req.Username, req.Password); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, MessageResponse{Message: "User created successfully"})
}

// ObtainToken exchanges credentials for a token pair
// @Summary     Obtain tokens
// @Description Authenticate with username and password and get an access and a refresh token
// @Tags        auth
// @Accept      json
// @Produce     json
// @Param       request body TokenRequest true "Credentials"
// @Success     200 {object} TokenPairResponse "Tokens issued"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Invalid credentials"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /token/ [post]
func (h *AuthHandler) ObtainToken(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	user, err := h.userService.Authenticate(req.Username, req.Password)
	if err != nil {
		respondWithError(c, err)
		return
	}

	access, err := h.tokens.GenerateAccessToken(user)
	if err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrInternalServer, err))
		return
	}
	refresh, err := h.tokens.GenerateRefreshToken(user)
	if err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrInternalServer, err))
		return
	}

	c.JSON(http.StatusOK, TokenPairResponse{Access: access, Refresh: refresh})
}

// RefreshToken issues a new access token from a refresh token
// @Summary     Refresh access token
// @Description Exchange a valid refresh token for a new access token
// @Tags        auth
// @Accept      json
// @Produce     json
// @Param       request body RefreshRequest true "Refresh token"
// @Success     200 {object} AccessTokenResponse "New access token"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Invalid or expired refresh token"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /token/refresh/ [post]
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	claims, err := h.tokens.ValidateRefreshToken(req.Refresh)
	if err != nil {
		respondWithError(c, err)
		return
	}

	// The account may have been removed or deactivated since the token was issued.
	user, err := h.userService.GetUserByID(claims.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			respondWithError(c, apperrors.ErrInvalidToken)
			return
		}
		respondWithError(c, err)
		return
	}
	if !user.IsActive {
		respondWithError(c, apperrors.ErrInvalidToken)
		return
	}

	access, err := h.tokens.GenerateAccessToken(user)
	if err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrInternalServer, err))
		return
	}

	c.JSON(http.StatusOK, AccessTokenResponse{Access: access})
}

// GetProfile returns the caller's account
// @Summary     Get profile
// @Description Get the authenticated user's id and username
// @Tags        auth
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} ProfileResponse "Profile"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "User not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /profile/ [get]
func (h *AuthHandler) GetProfile(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	user, err := h.userService.GetUserByID(userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, ProfileResponse{ID: user.ID, Username: user.Username})
}
