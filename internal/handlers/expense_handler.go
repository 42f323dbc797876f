package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "pocketbook/internal/errors"
	"pocketbook/internal/logger"
	"pocketbook/internal/middleware"
	"pocketbook/internal/models"
	"pocketbook/internal/pagination"
	"pocketbook/internal/services"
	"pocketbook/internal/uuid"
)

// ExpenseHandler handles expense-related requests
type ExpenseHandler struct {
	expenseService services.ExpenseServicer
}

// NewExpenseHandler creates a new ExpenseHandler
func NewExpenseHandler(expenseService services.ExpenseServicer) *ExpenseHandler {
	return &ExpenseHandler{expenseService: expenseService}
}

// ExpenseRequest represents the payload for creating or replacing an expense.
// Amount may be a JSON number or a decimal string. Any user field in the body
// is ignored; the owner is always the caller.
type ExpenseRequest struct {
	Title    string           `json:"title" binding:"required,notblank,max=200"`
	Amount   *decimal.Decimal `json:"amount" binding:"required,gt=0" swaggertype:"string" example:"12.50"`
	Date     string           `json:"date" binding:"omitempty,calendar_date" example:"2024-01-20"`
	Type     string           `json:"type" binding:"required,expense_type" enums:"income,expense"`
	Category nullableID       `json:"category" swaggertype:"string"`
}

// ExpensePatchRequest represents a partial update. Absent fields are left
// unchanged; "category": null clears the category.
type ExpensePatchRequest struct {
	Title    *string          `json:"title" binding:"omitempty,max=200"`
	Amount   *decimal.Decimal `json:"amount" binding:"omitempty,gt=0" swaggertype:"string"`
	Date     *string          `json:"date" binding:"omitempty,calendar_date"`
	Type     *string          `json:"type" binding:"omitempty,expense_type"`
	Category nullableID       `json:"category" swaggertype:"string"`
}

// nullableID tells an absent JSON field apart from an explicit null. An
// empty string also means no category.
type nullableID struct {
	Set   bool
	Value *string
}

func (n *nullableID) UnmarshalJSON(data []byte) error {
	n.Set = true
	if bytes.Equal(data, []byte("null")) {
		n.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s != "" {
		n.Value = &s
	}
	return nil
}

// id returns the referenced category id, rejecting anything that is not one.
func (n nullableID) id() (*string, error) {
	if n.Value != nil && !uuid.IsValid(*n.Value) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category must be a valid id")
	}
	return n.Value, nil
}

// ExpenseResponse represents an expense in the response. Category and
// CategoryName are null when the expense has no category.
type ExpenseResponse struct {
	ID           string             `json:"id"`
	Title        string             `json:"title"`
	Amount       string             `json:"amount" example:"12.50"`
	Date         string             `json:"date" example:"2024-01-20"`
	Type         models.ExpenseType `json:"type"`
	Category     *string            `json:"category"`
	CategoryName *string            `json:"category_name"`
	User         string             `json:"user"`
}

func toExpenseResponse(e *models.Expense) ExpenseResponse {
	return ExpenseResponse{
		ID:           e.ID,
		Title:        e.Title,
		Amount:       e.Amount.StringFixed(models.AmountPlaces),
		Date:         e.Date.Format(models.DateLayout),
		Type:         e.Type,
		Category:     e.CategoryID,
		CategoryName: e.CategoryName(),
		User:         e.UserID,
	}
}

// parseExpenseFilter reads the list filters from the query string. A value
// that cannot be parsed is skipped rather than rejected.
func parseExpenseFilter(c *gin.Context) services.ExpenseFilter {
	log := logger.WithRequest(middleware.GetRequestID(c))
	var f services.ExpenseFilter

	parseDate := func(key string) *time.Time {
		raw := c.Query(key)
		if raw == "" {
			return nil
		}
		d, err := time.Parse(models.DateLayout, raw)
		if err != nil {
			log.Debugw("ignoring malformed filter", "param", key, "value", raw)
			return nil
		}
		return &d
	}
	f.StartDate = parseDate("start_date")
	f.EndDate = parseDate("end_date")

	if raw := c.Query("category"); raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			f.CategoryID = &id
		} else {
			log.Debugw("ignoring malformed filter", "param", "category", "value", raw)
		}
	}
	if raw := c.Query("type"); raw != "" {
		t := models.ExpenseType(raw)
		f.Type = &t
	}
	f.Search = c.Query("search")
	return f
}

// ListExpenses returns the caller's expenses, newest first
// @Summary     List expenses
// @Description Get the authenticated user's expenses matching every given filter, ordered by date descending. Pagination is applied only when page or page_size is set; totals are returned in X-Total-Count, X-Page, X-Page-Size and X-Total-Pages headers.
// @Tags        expenses
// @Produce     json
// @Security    BearerAuth
// @Param       start_date query string false "Earliest date, inclusive (YYYY-MM-DD)"
// @Param       end_date   query string false "Latest date, inclusive (YYYY-MM-DD)"
// @Param       category   query string false "Category ID"
// @Param       type       query string false "income or expense"
// @Param       search     query string false "Case-insensitive title substring"
// @Param       page       query int    false "Page number"
// @Param       page_size  query int    false "Items per page (max 100)"
// @Success     200 {array}  ExpenseResponse "Expenses"
// @Failure     400 {object} ErrorResponse "Invalid pagination"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /expenses/ [get]
func (h *ExpenseHandler) ListExpenses(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	result, err := h.expenseService.ListExpenses(userID, parseExpenseFilter(c), page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	resp := make([]ExpenseResponse, len(result.Data))
	for i := range result.Data {
		resp[i] = toExpenseResponse(&result.Data[i])
	}
	setPageHeaders(c, result)
	c.JSON(http.StatusOK, resp)
}

// toInput converts a validated create/replace body.
func (r *ExpenseRequest) toInput() (services.ExpenseInput, error) {
	categoryID, err := r.Category.id()
	if err != nil {
		return services.ExpenseInput{}, err
	}
	input := services.ExpenseInput{
		Title:      r.Title,
		Amount:     *r.Amount,
		Type:       models.ExpenseType(r.Type),
		CategoryID: categoryID,
	}
	if r.Date != "" {
		input.Date, _ = time.Parse(models.DateLayout, r.Date)
	}
	return input, nil
}

// CreateExpense records a new expense for the caller
// @Summary     Create an expense
// @Description Record an expense owned by the authenticated user. Date defaults to today.
// @Tags        expenses
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body ExpenseRequest true "Expense details"
// @Success     201 {object} ExpenseResponse "Expense created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /expenses/ [post]
func (h *ExpenseHandler) CreateExpense(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req ExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	input, err := req.toInput()
	if err != nil {
		respondWithError(c, err)
		return
	}

	expense, err := h.expenseService.CreateExpense(userID, input)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toExpenseResponse(expense))
}

// GetExpense returns one of the caller's expenses
// @Summary     Get an expense
// @Description Get an expense owned by the authenticated user
// @Tags        expenses
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Expense ID"
// @Success     200 {object} ExpenseResponse "Expense"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Expense not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /expenses/{id}/ [get]
func (h *ExpenseHandler) GetExpense(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	expenseID, err := parsePathID(c, apperrors.ErrExpenseNotFound)
	if err != nil {
		respondWithError(c, err)
		return
	}

	expense, err := h.expenseService.GetExpenseByID(userID, expenseID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, toExpenseResponse(expense))
}

// ReplaceExpense overwrites every writable field of an expense
// @Summary     Replace an expense
// @Description Full update of an expense owned by the authenticated user. An omitted category clears it; an omitted date keeps the current one.
// @Tags        expenses
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string         true "Expense ID"
// @Param       request body ExpenseRequest true "Expense details"
// @Success     200 {object} ExpenseResponse "Expense updated"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Expense not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /expenses/{id}/ [put]
func (h *ExpenseHandler) ReplaceExpense(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	expenseID, err := parsePathID(c, apperrors.ErrExpenseNotFound)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req ExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	input, err := req.toInput()
	if err != nil {
		respondWithError(c, err)
		return
	}
	expenseType := input.Type
	fields := services.ExpenseUpdateFields{
		Title:      &input.Title,
		Amount:     &input.Amount,
		Type:       &expenseType,
		CategoryID: &input.CategoryID,
	}
	if !input.Date.IsZero() {
		fields.Date = &input.Date
	}

	h.update(c, userID, expenseID, fields)
}

// PatchExpense changes only the fields present in the body
// @Summary     Update an expense
// @Description Partial update of an expense owned by the authenticated user. Send "category": null to clear the category.
// @Tags        expenses
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string              true "Expense ID"
// @Param       request body ExpensePatchRequest true "Fields to change"
// @Success     200 {object} ExpenseResponse "Expense updated"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Expense not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /expenses/{id}/ [patch]
func (h *ExpenseHandler) PatchExpense(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	expenseID, err := parsePathID(c, apperrors.ErrExpenseNotFound)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req ExpensePatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	fields := services.ExpenseUpdateFields{
		Title:  req.Title,
		Amount: req.Amount,
	}
	if req.Date != nil {
		d, _ := time.Parse(models.DateLayout, *req.Date)
		fields.Date = &d
	}
	if req.Type != nil {
		t := models.ExpenseType(*req.Type)
		fields.Type = &t
	}
	if req.Category.Set {
		categoryID, err := req.Category.id()
		if err != nil {
			respondWithError(c, err)
			return
		}
		fields.CategoryID = &categoryID
	}

	h.update(c, userID, expenseID, fields)
}

func (h *ExpenseHandler) update(c *gin.Context, userID, expenseID string, fields services.ExpenseUpdateFields) {
	expense, err := h.expenseService.UpdateExpense(userID, expenseID, fields)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toExpenseResponse(expense))
}

// DeleteExpense permanently deletes one of the caller's expenses
// @Summary     Delete an expense
// @Description Delete an expense owned by the authenticated user
// @Tags        expenses
// @Security    BearerAuth
// @Param       id path string true "Expense ID"
// @Success     204 "Expense deleted"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Expense not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /expenses/{id}/ [delete]
func (h *ExpenseHandler) DeleteExpense(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	expenseID, err := parsePathID(c, apperrors.ErrExpenseNotFound)
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.expenseService.DeleteExpense(userID, expenseID); err != nil {
		respondWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
