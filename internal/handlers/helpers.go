package handlers

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	apperrors "pocketbook/internal/errors"
	"pocketbook/internal/logger"
	"pocketbook/internal/middleware"
	"pocketbook/internal/pagination"
	"pocketbook/internal/uuid"
)

// ErrorBody is the code/message pair of an error response.
type ErrorBody struct {
	Code    string `json:"code" example:"EXPENSE_NOT_FOUND"`
	Message string `json:"message" example:"Expense not found"`
}

// ErrorResponse is the envelope of every error response.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// getUserID extracts the authenticated user ID from the Gin context.
// Returns ErrUnauthorized if not present.
func getUserID(c *gin.Context) (string, error) {
	userID := c.GetString(middleware.UserIDKey)
	if userID == "" {
		return "", apperrors.ErrUnauthorized
	}
	return userID, nil
}

// parsePathID reads a record id path parameter. A malformed id cannot name
// any record, so it yields notFound like an absent one.
func parsePathID(c *gin.Context, notFound *apperrors.AppError) (string, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return "", notFound
	}
	return id, nil
}

// bindError converts a binding or validation failure into INVALID_INPUT with
// a message naming the offending fields.
func bindError(err error) *apperrors.AppError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid request body")
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return apperrors.WithMessage(apperrors.ErrInvalidInput, strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required", "notblank":
		return field + " is required"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "expense_type":
		return field + " must be income or expense"
	case "calendar_date":
		return field + " must be a date in YYYY-MM-DD format"
	}
	return fmt.Sprintf("%s is invalid (%s)", field, fe.Tag())
}

// setPageHeaders exposes list totals as headers so the body stays a bare
// JSON array.
func setPageHeaders[T any](c *gin.Context, page *pagination.PageResponse[T]) {
	h := c.Writer.Header()
	h.Set("X-Total-Count", strconv.FormatInt(page.TotalItems, 10))
	h.Set("X-Page", strconv.Itoa(page.Page))
	h.Set("X-Page-Size", strconv.Itoa(page.PageSize))
	h.Set("X-Total-Pages", strconv.Itoa(page.TotalPages))
}

// respondWithError writes a consistent JSON error response. If the error is an
// *AppError it uses the error's status code, code, and message. Otherwise it
// logs the unexpected error and returns a generic internal server error.
func respondWithError(c *gin.Context, err error) {
	log := logger.WithRequest(middleware.GetRequestID(c))

	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		log.Errorw("unexpected error",
			"error", err.Error(),
			"path", c.Request.URL.Path,
			"method", c.Request.Method,
		)
		appErr = apperrors.ErrInternalServer
	} else if appErr.Internal != nil {
		log.Errorw("app error",
			"code", appErr.Code,
			"internal", appErr.Internal.Error(),
			"path", c.Request.URL.Path,
		)
	}

	c.JSON(appErr.StatusCode, ErrorResponse{
		Error: ErrorBody{Code: appErr.Code, Message: appErr.Message},
	})
}
