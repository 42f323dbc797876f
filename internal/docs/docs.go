// Package docs holds the OpenAPI document served at /swagger. Regenerate with
// `swag init -g cmd/api/main.go -o internal/docs` after changing handler annotations.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/signup/": {
            "post": {
                "description": "Create a new account. No token is returned; call /token/ afterwards.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Sign up",
                "parameters": [
                    {"description": "New account credentials", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.SignupRequest"}}
                ],
                "responses": {
                    "201": {"description": "User created", "schema": {"$ref": "#/definitions/handlers.MessageResponse"}},
                    "400": {"description": "Invalid input or username taken", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Server error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/token/": {
            "post": {
                "description": "Authenticate with username and password and get an access and a refresh token",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Obtain tokens",
                "parameters": [
                    {"description": "Credentials", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.TokenRequest"}}
                ],
                "responses": {
                    "200": {"description": "Tokens issued", "schema": {"$ref": "#/definitions/handlers.TokenPairResponse"}},
                    "400": {"description": "Invalid input", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/token/refresh/": {
            "post": {
                "description": "Exchange a valid refresh token for a new access token",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Refresh access token",
                "parameters": [
                    {"description": "Refresh token", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.RefreshRequest"}}
                ],
                "responses": {
                    "200": {"description": "New access token", "schema": {"$ref": "#/definitions/handlers.AccessTokenResponse"}},
                    "400": {"description": "Invalid input", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "401": {"description": "Invalid or expired refresh token", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/profile/": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Get the authenticated user's id and username",
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Get profile",
                "responses": {
                    "200": {"description": "Profile", "schema": {"$ref": "#/definitions/handlers.ProfileResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/categories/": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Get the authenticated user's categories plus every global category",
                "produces": ["application/json"],
                "tags": ["categories"],
                "summary": "List categories",
                "responses": {
                    "200": {"description": "Visible categories", "schema": {"type": "array", "items": {"$ref": "#/definitions/handlers.CategoryResponse"}}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Create a category owned by the authenticated user",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["categories"],
                "summary": "Create a category",
                "parameters": [
                    {"description": "Category details", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.CategoryRequest"}}
                ],
                "responses": {
                    "201": {"description": "Category created", "schema": {"$ref": "#/definitions/handlers.CategoryResponse"}},
                    "400": {"description": "Invalid input", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/categories/{id}/": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Get an own or global category by id",
                "produces": ["application/json"],
                "tags": ["categories"],
                "summary": "Get a category",
                "parameters": [{"type": "string", "description": "Category ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "Category", "schema": {"$ref": "#/definitions/handlers.CategoryResponse"}},
                    "404": {"description": "Category not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "put": {
                "security": [{"BearerAuth": []}],
                "description": "Rename a category owned by the authenticated user. Global categories are read-only.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["categories"],
                "summary": "Update a category",
                "parameters": [
                    {"type": "string", "description": "Category ID", "name": "id", "in": "path", "required": true},
                    {"description": "New name", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.CategoryRequest"}}
                ],
                "responses": {
                    "200": {"description": "Category updated", "schema": {"$ref": "#/definitions/handlers.CategoryResponse"}},
                    "400": {"description": "Invalid input", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "403": {"description": "Global category", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "404": {"description": "Category not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "patch": {
                "security": [{"BearerAuth": []}],
                "description": "Rename a category owned by the authenticated user. Global categories are read-only.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["categories"],
                "summary": "Update a category",
                "parameters": [
                    {"type": "string", "description": "Category ID", "name": "id", "in": "path", "required": true},
                    {"description": "New name", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.CategoryRequest"}}
                ],
                "responses": {
                    "200": {"description": "Category updated", "schema": {"$ref": "#/definitions/handlers.CategoryResponse"}},
                    "403": {"description": "Global category", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "404": {"description": "Category not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "description": "Delete a category owned by the authenticated user. Its expenses keep existing without a category.",
                "tags": ["categories"],
                "summary": "Delete a category",
                "parameters": [{"type": "string", "description": "Category ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "204": {"description": "Category deleted"},
                    "403": {"description": "Global category", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "404": {"description": "Category not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/expenses/": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Get the authenticated user's expenses matching every given filter, ordered by date descending. Pagination is applied only when page or page_size is set; totals are returned in X-Total-Count, X-Page, X-Page-Size and X-Total-Pages headers.",
                "produces": ["application/json"],
                "tags": ["expenses"],
                "summary": "List expenses",
                "parameters": [
                    {"type": "string", "description": "Earliest date, inclusive (YYYY-MM-DD)", "name": "start_date", "in": "query"},
                    {"type": "string", "description": "Latest date, inclusive (YYYY-MM-DD)", "name": "end_date", "in": "query"},
                    {"type": "string", "description": "Category ID", "name": "category", "in": "query"},
                    {"type": "string", "description": "income or expense", "name": "type", "in": "query"},
                    {"type": "string", "description": "Case-insensitive title substring", "name": "search", "in": "query"},
                    {"type": "integer", "description": "Page number", "name": "page", "in": "query"},
                    {"type": "integer", "description": "Items per page (max 100)", "name": "page_size", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "Expenses", "schema": {"type": "array", "items": {"$ref": "#/definitions/handlers.ExpenseResponse"}}},
                    "400": {"description": "Invalid pagination", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Record an expense owned by the authenticated user. Date defaults to today.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["expenses"],
                "summary": "Create an expense",
                "parameters": [
                    {"description": "Expense details", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.ExpenseRequest"}}
                ],
                "responses": {
                    "201": {"description": "Expense created", "schema": {"$ref": "#/definitions/handlers.ExpenseResponse"}},
                    "400": {"description": "Invalid input", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/expenses/{id}/": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Get an expense owned by the authenticated user",
                "produces": ["application/json"],
                "tags": ["expenses"],
                "summary": "Get an expense",
                "parameters": [{"type": "string", "description": "Expense ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "Expense", "schema": {"$ref": "#/definitions/handlers.ExpenseResponse"}},
                    "404": {"description": "Expense not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "put": {
                "security": [{"BearerAuth": []}],
                "description": "Full update of an expense owned by the authenticated user. An omitted category clears it; an omitted date keeps the current one.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["expenses"],
                "summary": "Replace an expense",
                "parameters": [
                    {"type": "string", "description": "Expense ID", "name": "id", "in": "path", "required": true},
                    {"description": "Expense details", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.ExpenseRequest"}}
                ],
                "responses": {
                    "200": {"description": "Expense updated", "schema": {"$ref": "#/definitions/handlers.ExpenseResponse"}},
                    "400": {"description": "Invalid input", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "404": {"description": "Expense not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "patch": {
                "security": [{"BearerAuth": []}],
                "description": "Partial update of an expense owned by the authenticated user. Send \"category\": null to clear the category.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["expenses"],
                "summary": "Update an expense",
                "parameters": [
                    {"type": "string", "description": "Expense ID", "name": "id", "in": "path", "required": true},
                    {"description": "Fields to change", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.ExpensePatchRequest"}}
                ],
                "responses": {
                    "200": {"description": "Expense updated", "schema": {"$ref": "#/definitions/handlers.ExpenseResponse"}},
                    "400": {"description": "Invalid input", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "404": {"description": "Expense not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "description": "Delete an expense owned by the authenticated user",
                "tags": ["expenses"],
                "summary": "Delete an expense",
                "parameters": [{"type": "string", "description": "Expense ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "204": {"description": "Expense deleted"},
                    "404": {"description": "Expense not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "handlers.AccessTokenResponse": {"type": "object", "properties": {"access": {"type": "string"}}},
        "handlers.CategoryRequest": {"type": "object", "required": ["name"], "properties": {"name": {"type": "string", "maxLength": 100}}},
        "handlers.CategoryResponse": {"type": "object", "properties": {"id": {"type": "string"}, "name": {"type": "string"}, "user": {"type": "string"}}},
        "handlers.ErrorBody": {"type": "object", "properties": {"code": {"type": "string", "example": "EXPENSE_NOT_FOUND"}, "message": {"type": "string", "example": "Expense not found"}}},
        "handlers.ErrorResponse": {"type": "object", "properties": {"error": {"$ref": "#/definitions/handlers.ErrorBody"}}},
        "handlers.ExpensePatchRequest": {"type": "object", "properties": {"amount": {"type": "string", "example": "12.50"}, "category": {"type": "string"}, "date": {"type": "string"}, "title": {"type": "string", "maxLength": 200}, "type": {"type": "string"}}},
        "handlers.ExpenseRequest": {"type": "object", "required": ["amount", "title", "type"], "properties": {"amount": {"type": "string", "example": "12.50"}, "category": {"type": "string"}, "date": {"type": "string", "example": "2024-01-20"}, "title": {"type": "string", "maxLength": 200}, "type": {"type": "string", "enum": ["income", "expense"]}}},
        "handlers.ExpenseResponse": {"type": "object", "properties": {"amount": {"type": "string", "example": "12.50"}, "category": {"type": "string"}, "category_name": {"type": "string"}, "date": {"type": "string", "example": "2024-01-20"}, "id": {"type": "string"}, "title": {"type": "string"}, "type": {"type": "string", "enum": ["income", "expense"]}, "user": {"type": "string"}}},
        "handlers.MessageResponse": {"type": "object", "properties": {"message": {"type": "string", "example": "User created successfully"}}},
        "handlers.ProfileResponse": {"type": "object", "properties": {"id": {"type": "string"}, "username": {"type": "string"}}},
        "handlers.RefreshRequest": {"type": "object", "required": ["refresh"], "properties": {"refresh": {"type": "string"}}},
        "handlers.SignupRequest": {"type": "object", "required": ["password", "username"], "properties": {"password": {"type": "string"}, "username": {"type": "string", "maxLength": 150}}},
        "handlers.TokenPairResponse": {"type": "object", "properties": {"access": {"type": "string"}, "refresh": {"type": "string"}}},
        "handlers.TokenRequest": {"type": "object", "required": ["password", "username"], "properties": {"password": {"type": "string"}, "username": {"type": "string"}}}
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "Type \"Bearer\" followed by a space and JWT token.",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api",
	Schemes:          []string{},
	Title:            "Pocketbook API",
	Description:      "Pocketbook is a personal expense tracker: sign up, then record income and expenses in your own and shared categories.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
