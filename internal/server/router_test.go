package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"pocketbook/internal/database"
	"pocketbook/internal/middleware"
	"pocketbook/internal/models"
	"pocketbook/internal/testutil"
	"pocketbook/internal/validator"
)

// testApp holds the full application stack for flow tests.
type testApp struct {
	DB     *gorm.DB
	Router *gin.Engine
}

func init() {
	gin.SetMode(gin.TestMode)
	validator.Register()
}

// setupApp creates a full application stack backed by an isolated in-memory
// SQLite database seeded with two global categories.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.TeardownTestDB(t, db) })

	if _, err := database.SeedGlobalCategories(db, []string{"Rent", "Salary"}); err != nil {
		t.Fatalf("failed to seed categories: %v", err)
	}

	router := NewRouter(Options{
		DB:          db,
		Tokens:      middleware.NewTokenManager("flow-secret", 15*time.Minute, time.Hour),
		CORSOrigins: []string{"*"},
		BcryptCost:  bcrypt.MinCost,
	})
	return &testApp{DB: db, Router: router}
}

// request makes an HTTP request to the test router and returns the recorder.
func (app *testApp) request(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

func parseList(t *testing.T, rec *httptest.ResponseRecorder) []map[string]interface{} {
	t.Helper()
	var result []map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON array: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	errObj, ok := parseJSON(t, rec)["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error object, got %s", rec.Body.String())
	}
	code, _ := errObj["code"].(string)
	return code
}

// signupAndLogin creates an account and returns its access and refresh tokens.
func (app *testApp) signupAndLogin(t *testing.T, username string) (access, refresh string) {
	t.Helper()
	creds := fmt.Sprintf(`{"username":%q,"password":"pw"}`, username)

	rec := app.request("POST", "/api/signup/", creds, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup failed: %d %s", rec.Code, rec.Body.String())
	}

	rec = app.request("POST", "/api/token/", creds, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("token failed: %d %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	return result["access"].(string), result["refresh"].(string)
}

func (app *testApp) createExpense(t *testing.T, token, body string) map[string]interface{} {
	t.Helper()
	rec := app.request("POST", "/api/expenses/", body, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create expense failed: %d %s", rec.Code, rec.Body.String())
	}
	return parseJSON(t, rec)
}

func titles(items []map[string]interface{}) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i], _ = item["title"].(string)
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// --- flows ---

func TestAuthFlow_SignupTokenProfileRefresh(t *testing.T) {
	app := setupApp(t)

	access, refresh := app.signupAndLogin(t, "alice")

	rec := app.request("GET", "/api/profile/", "", access)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if parseJSON(t, rec)["username"] != "alice" {
		t.Error("expected profile of alice")
	}

	rec = app.request("POST", "/api/token/refresh/", fmt.Sprintf(`{"refresh":%q}`, refresh), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh failed: %d %s", rec.Code, rec.Body.String())
	}
	newAccess := parseJSON(t, rec)["access"].(string)

	rec = app.request("GET", "/api/profile/", "", newAccess)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with refreshed token, got %d", rec.Code)
	}

	rec = app.request("GET", "/api/profile/", "", refresh)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("refresh token must not authenticate requests, got %d", rec.Code)
	}
}

func TestAuthFlow_DuplicateSignup(t *testing.T) {
	app := setupApp(t)
	app.signupAndLogin(t, "alice")

	rec := app.request("POST", "/api/signup/", `{"username":"alice","password":"other"}`, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	if code := errorCode(t, rec); code != "DUPLICATE_USERNAME" {
		t.Errorf("expected DUPLICATE_USERNAME, got %s", code)
	}

	// The rejected password was never stored.
	rec = app.request("POST", "/api/token/", `{"username":"alice","password":"other"}`, "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for the rejected password, got %d", rec.Code)
	}
}

func TestAuthFlow_ProtectedRoutesRequireToken(t *testing.T) {
	app := setupApp(t)

	for _, path := range []string{"/api/profile/", "/api/categories/", "/api/expenses/"} {
		rec := app.request("GET", path, "", "")
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", path, rec.Code)
		}
		rec = app.request("GET", path, "", "garbage")
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s with bad token: expected 401, got %d", path, rec.Code)
		}
	}
}

func TestAuthFlow_TokenOfRemovedUserRejected(t *testing.T) {
	app := setupApp(t)
	alice, _ := app.signupAndLogin(t, "alice")
	bob, _ := app.signupAndLogin(t, "bob")

	if err := app.DB.Where("username = ?", "alice").Delete(&models.User{}).Error; err != nil {
		t.Fatalf("failed to delete user: %v", err)
	}
	if err := app.DB.Model(&models.User{}).Where("username = ?", "bob").Update("is_active", false).Error; err != nil {
		t.Fatalf("failed to deactivate user: %v", err)
	}

	for name, token := range map[string]string{"deleted": alice, "inactive": bob} {
		rec := app.request("POST", "/api/expenses/", `{"title":"Tea","amount":"3.00","type":"expense"}`, token)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s user: expected 401, got %d: %s", name, rec.Code, rec.Body.String())
		}
	}
}

func TestCategoryFlow_VisibilityAndOwnership(t *testing.T) {
	app := setupApp(t)
	alice, _ := app.signupAndLogin(t, "alice")
	bob, _ := app.signupAndLogin(t, "bob")

	rec := app.request("POST", "/api/categories/", `{"name":"Coffee","user":null}`, alice)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create category failed: %d %s", rec.Code, rec.Body.String())
	}
	coffee := parseJSON(t, rec)
	if coffee["user"] == nil {
		t.Fatal("created category must be owned by the caller")
	}
	coffeeID := coffee["id"].(string)

	aliceCats := parseList(t, app.request("GET", "/api/categories/", "", alice))
	bobCats := parseList(t, app.request("GET", "/api/categories/", "", bob))
	if len(aliceCats) != 3 {
		t.Errorf("alice should see 2 global + 1 own, got %d", len(aliceCats))
	}
	if len(bobCats) != 2 {
		t.Errorf("bob should see only the 2 global categories, got %d", len(bobCats))
	}

	var rentID string
	for _, c := range bobCats {
		if c["name"] == "Rent" {
			rentID = c["id"].(string)
		}
	}

	if rec := app.request("GET", "/api/categories/"+coffeeID+"/", "", bob); rec.Code != http.StatusNotFound {
		t.Errorf("bob must not see alice's category, got %d", rec.Code)
	}
	if rec := app.request("DELETE", "/api/categories/"+coffeeID+"/", "", bob); rec.Code != http.StatusNotFound {
		t.Errorf("bob must not delete alice's category, got %d", rec.Code)
	}
	if rec := app.request("PUT", "/api/categories/"+rentID+"/", `{"name":"Housing"}`, alice); rec.Code != http.StatusForbidden {
		t.Errorf("global category must be read-only, got %d", rec.Code)
	}
	if rec := app.request("PATCH", "/api/categories/"+coffeeID+"/", `{"name":"Cafe"}`, alice); rec.Code != http.StatusOK {
		t.Errorf("alice should rename her category, got %d", rec.Code)
	}
	if rec := app.request("GET", "/api/categories/not-an-id/", "", alice); rec.Code != http.StatusNotFound {
		t.Errorf("malformed id should be 404, got %d", rec.Code)
	}
}

func TestExpenseFlow_RentBonusScenario(t *testing.T) {
	app := setupApp(t)
	alice, _ := app.signupAndLogin(t, "alice")

	app.createExpense(t, alice, `{"title":"Rent","amount":120000,"date":"2024-01-10","type":"expense"}`)
	app.createExpense(t, alice, `{"title":"Bonus","amount":50000,"date":"2024-01-20","type":"income"}`)

	rec := app.request("GET", "/api/expenses/?type=income&start_date=2024-01-15", "", alice)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	items := parseList(t, rec)
	if !equal(titles(items), []string{"Bonus"}) {
		t.Fatalf("expected only Bonus, got %v", titles(items))
	}
	if items[0]["date"] != "2024-01-20" || items[0]["amount"] != "50000.00" {
		t.Errorf("unexpected expense %v", items[0])
	}

	if got := titles(parseList(t, app.request("GET", "/api/expenses/", "", alice))); !equal(got, []string{"Bonus", "Rent"}) {
		t.Errorf("expected newest first, got %v", got)
	}
}

func TestExpenseFlow_Filters(t *testing.T) {
	app := setupApp(t)
	alice, _ := app.signupAndLogin(t, "alice")

	cat := parseJSON(t, app.request("POST", "/api/categories/", `{"name":"Coffee"}`, alice))
	catID := cat["id"].(string)

	app.createExpense(t, alice, `{"title":"Coffee Beans","amount":1500,"date":"2024-03-01","type":"expense","category":"`+catID+`"}`)
	app.createExpense(t, alice, `{"title":"coffee shop","amount":450,"date":"2024-02-15","type":"expense"}`)
	app.createExpense(t, alice, `{"title":"Salary","amount":300000,"date":"2024-02-01","type":"income"}`)
	app.createExpense(t, alice, `{"title":"Tea","amount":300,"date":"2024-01-31","type":"expense"}`)
	app.createExpense(t, alice, `{"title":"École fees","amount":"80.00","date":"2024-01-20","type":"expense"}`)
	app.createExpense(t, alice, `{"title":"Ёлка","amount":"25.50","date":"2024-01-10","type":"expense","category":""}`)

	all := []string{"Coffee Beans", "coffee shop", "Salary", "Tea", "École fees", "Ёлка"}
	tests := []struct {
		query string
		want  []string
	}{
		{"", all},
		{"?search=COFFEE", []string{"Coffee Beans", "coffee shop"}},
		{"?search=", all},
		{"?search=" + url.QueryEscape("École"), []string{"École fees"}},
		{"?search=" + url.QueryEscape("Ёлка"), []string{"Ёлка"}},
		{"?search=FEES", []string{"École fees"}},
		{"?start_date=2024-02-01&end_date=2024-02-15", []string{"coffee shop", "Salary"}},
		{"?end_date=2024-02-01", []string{"Salary", "Tea", "École fees", "Ёлка"}},
		{"?category=" + catID, []string{"Coffee Beans"}},
		{"?type=expense&search=coffee&start_date=2024-02-16", []string{"Coffee Beans"}},
		{"?type=refund", []string{}},
		{"?start_date=garbage", all},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := app.request("GET", "/api/expenses/"+tt.query, "", alice)
			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
			}
			if got := titles(parseList(t, rec)); !equal(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestExpenseFlow_Pagination(t *testing.T) {
	app := setupApp(t)
	alice, _ := app.signupAndLogin(t, "alice")
	for day := 1; day <= 5; day++ {
		app.createExpense(t, alice, fmt.Sprintf(`{"title":"day %d","amount":100,"date":"2024-01-%02d","type":"expense"}`, day, day))
	}

	rec := app.request("GET", "/api/expenses/?page=2&page_size=2", "", alice)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := titles(parseList(t, rec)); !equal(got, []string{"day 3", "day 2"}) {
		t.Errorf("unexpected page %v", got)
	}
	if rec.Header().Get("X-Total-Count") != "5" || rec.Header().Get("X-Total-Pages") != "3" {
		t.Errorf("unexpected headers %v", rec.Header())
	}
}

func TestExpenseFlow_IsolationBetweenUsers(t *testing.T) {
	app := setupApp(t)
	alice, _ := app.signupAndLogin(t, "alice")
	bob, _ := app.signupAndLogin(t, "bob")

	bobsProfile := parseJSON(t, app.request("GET", "/api/profile/", "", bob))
	created := app.createExpense(t, alice, `{"title":"Lunch","amount":1200,"date":"2024-01-05","type":"expense","user":"`+bobsProfile["id"].(string)+`"}`)
	expenseID := created["id"].(string)

	aliceProfile := parseJSON(t, app.request("GET", "/api/profile/", "", alice))
	if created["user"] != aliceProfile["id"] {
		t.Errorf("supplied user must be ignored, owner is %v", created["user"])
	}

	for _, q := range []string{"", "?search=Lunch", "?start_date=2000-01-01&end_date=2100-01-01", "?type=expense"} {
		if items := parseList(t, app.request("GET", "/api/expenses/"+q, "", bob)); len(items) != 0 {
			t.Errorf("bob sees alice's expenses with %q: %v", q, items)
		}
	}

	path := "/api/expenses/" + expenseID + "/"
	if rec := app.request("GET", path, "", bob); rec.Code != http.StatusNotFound {
		t.Errorf("GET: expected 404, got %d", rec.Code)
	}
	if rec := app.request("PATCH", path, `{"title":"mine"}`, bob); rec.Code != http.StatusNotFound {
		t.Errorf("PATCH: expected 404, got %d", rec.Code)
	}
	if rec := app.request("DELETE", path, "", bob); rec.Code != http.StatusNotFound {
		t.Errorf("DELETE: expected 404, got %d", rec.Code)
	}
	if rec := app.request("GET", path, "", alice); rec.Code != http.StatusOK {
		t.Errorf("alice's expense must be intact, got %d", rec.Code)
	}
}

func TestExpenseFlow_UpdateAndDelete(t *testing.T) {
	app := setupApp(t)
	alice, _ := app.signupAndLogin(t, "alice")

	cat := parseJSON(t, app.request("POST", "/api/categories/", `{"name":"Groceries"}`, alice))
	catID := cat["id"].(string)
	created := app.createExpense(t, alice, `{"title":"Market","amount":2500,"date":"2024-04-01","type":"expense","category":"`+catID+`"}`)
	path := "/api/expenses/" + created["id"].(string) + "/"

	if created["category_name"] != "Groceries" {
		t.Errorf("expected category_name Groceries, got %v", created["category_name"])
	}

	rec := app.request("PATCH", path, `{"amount":"26.40"}`, alice)
	if rec.Code != http.StatusOK {
		t.Fatalf("patch failed: %d %s", rec.Code, rec.Body.String())
	}
	patched := parseJSON(t, rec)
	if patched["amount"] != "26.40" || patched["category"] != catID {
		t.Errorf("patch must only change amount: %v", patched)
	}

	rec = app.request("PATCH", path, `{"category":null}`, alice)
	if cleared := parseJSON(t, rec); cleared["category"] != nil || cleared["category_name"] != nil {
		t.Errorf("expected category cleared, got %v", cleared)
	}

	rec = app.request("PUT", path, `{"title":"Supermarket","amount":3000,"type":"expense","category":"`+catID+`"}`, alice)
	if rec.Code != http.StatusOK {
		t.Fatalf("put failed: %d %s", rec.Code, rec.Body.String())
	}
	if replaced := parseJSON(t, rec); replaced["title"] != "Supermarket" || replaced["date"] != "2024-04-01" {
		t.Errorf("unexpected replace result %v", replaced)
	}

	// Deleting the category keeps the expense.
	if rec := app.request("DELETE", "/api/categories/"+catID+"/", "", alice); rec.Code != http.StatusNoContent {
		t.Fatalf("delete category failed: %d", rec.Code)
	}
	if got := parseJSON(t, app.request("GET", path, "", alice)); got["category"] != nil {
		t.Errorf("expected category nulled after delete, got %v", got["category"])
	}

	if rec := app.request("DELETE", path, "", alice); rec.Code != http.StatusNoContent {
		t.Fatalf("delete failed: %d", rec.Code)
	}
	if rec := app.request("GET", path, "", alice); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestExpenseFlow_RejectsForeignCategory(t *testing.T) {
	app := setupApp(t)
	alice, _ := app.signupAndLogin(t, "alice")
	bob, _ := app.signupAndLogin(t, "bob")

	bobCat := parseJSON(t, app.request("POST", "/api/categories/", `{"name":"Secret"}`, bob))

	rec := app.request("POST", "/api/expenses/",
		`{"title":"x","amount":1,"type":"expense","category":"`+bobCat["id"].(string)+`"}`, alice)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != "INVALID_INPUT" {
		t.Errorf("expected INVALID_INPUT, got %s", code)
	}
}

func TestHealthAndDocs(t *testing.T) {
	app := setupApp(t)

	rec := app.request("GET", "/api/health", "", "")
	if rec.Code != http.StatusOK || parseJSON(t, rec)["status"] != "ok" {
		t.Errorf("unexpected health response %d %s", rec.Code, rec.Body.String())
	}

	rec = app.request("GET", "/swagger/doc.json", "", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "/expenses/") {
		t.Errorf("swagger doc not served: %d", rec.Code)
	}

	rec = app.request("GET", "/api/nowhere", "", "")
	if rec.Code != http.StatusNotFound || errorCode(t, rec) != "NOT_FOUND" {
		t.Errorf("unknown route: %d %s", rec.Code, rec.Body.String())
	}
}
