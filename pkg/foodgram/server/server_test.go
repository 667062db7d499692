package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/foodgram/pkg/foodgram/auth"
	"github.com/mikepea/foodgram/pkg/foodgram/config"
	"github.com/mikepea/foodgram/pkg/foodgram/database"
	"github.com/mikepea/foodgram/pkg/foodgram/models"
	"github.com/mikepea/foodgram/pkg/foodgram/pagination"
	"github.com/mikepea/foodgram/pkg/foodgram/responses"
	"gorm.io/gorm"
)

const testBaseURL = "http://testserver"

// setupTestDB creates an in-memory SQLite database for testing
func setupTestDB(t *testing.T) *gorm.DB {
	db, err := database.OpenMemory()
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return db
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.Server.BaseURL = testBaseURL
	cfg.Server.MediaDir = t.TempDir()
	cfg.Admin.Password = "admin-password"
	return cfg
}

// setupFullServer builds the router the way cmd/foodgram-server does
func setupFullServer(t *testing.T) (*gorm.DB, http.Handler) {
	gin.SetMode(gin.TestMode)
	db := setupTestDB(t)
	cfg := testConfig(t)
	if err := auth.EnsureAdmin(db, cfg.Admin); err != nil {
		t.Fatalf("Failed to create admin: %v", err)
	}
	return db, New(cfg, db).Handler()
}

type client struct {
	t       *testing.T
	handler http.Handler
	token   string
}

func (c *client) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Token "+c.token)
	}
	resp := httptest.NewRecorder()
	c.handler.ServeHTTP(resp, req)
	return resp
}

func (c *client) expect(status int, method, path string, body interface{}, out interface{}) {
	c.t.Helper()
	resp := c.do(method, path, body)
	if resp.Code != status {
		c.t.Fatalf("%s %s: expected status %d, got %d: %s", method, path, status, resp.Code, resp.Body.String())
	}
	if out != nil {
		if err := json.Unmarshal(resp.Body.Bytes(), out); err != nil {
			c.t.Fatalf("%s %s: failed to decode response: %v", method, path, err)
		}
	}
}

func (c *client) login(email, password string) {
	c.t.Helper()
	var tok auth.TokenResponse
	c.expect(http.StatusOK, "POST", "/api/auth/token/login/", auth.LoginRequest{Email: email, Password: password}, &tok)
	c.token = tok.AuthToken
}

func signUp(t *testing.T, handler http.Handler, username, first string) *client {
	c := &client{t: t, handler: handler}
	c.expect(http.StatusCreated, "POST", "/api/users/", auth.RegisterRequest{
		Email:     username + "@example.com",
		Username:  username,
		FirstName: first,
		LastName:  "Cook",
		Password:  "password123",
	}, nil)
	c.login(username+"@example.com", "password123")
	return c
}

func pngDataURI() string {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		img.Set(x, x, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	png.Encode(&buf, img)
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

// TestServerStartup verifies that all routes can be registered without conflicts
func TestServerStartup(t *testing.T) {
	_, handler := setupFullServer(t)
	if handler == nil {
		t.Fatal("Expected router to be created")
	}
}

func TestOpsEndpoints(t *testing.T) {
	_, handler := setupFullServer(t)
	c := &client{t: t, handler: handler}

	for _, path := range []string{"/health", "/api/health", "/metrics", "/swagger/doc.json"} {
		t.Run(path, func(t *testing.T) {
			if resp := c.do("GET", path, nil); resp.Code != http.StatusOK {
				t.Errorf("Expected status 200 for %s, got %d", path, resp.Code)
			}
		})
	}

	resp := c.do("GET", "/swagger/doc.json", nil)
	if !strings.Contains(resp.Body.String(), "/recipes/download_shopping_cart/") {
		t.Error("Expected API document to describe the shopping cart download")
	}
}

// TestProtectedEndpointsRequireAuth verifies that protected endpoints return 401 without auth
func TestProtectedEndpointsRequireAuth(t *testing.T) {
	_, handler := setupFullServer(t)
	c := &client{t: t, handler: handler}

	protectedEndpoints := []struct {
		method string
		path   string
	}{
		{"GET", "/api/users/me/"},
		{"GET", "/api/users/subscriptions/"},
		{"POST", "/api/users/1/subscribe/"},
		{"POST", "/api/recipes/"},
		{"POST", "/api/recipes/1/favorite/"},
		{"GET", "/api/recipes/download_shopping_cart/"},
		{"GET", "/api/admin/stats/"},
	}

	for _, endpoint := range protectedEndpoints {
		t.Run(endpoint.method+" "+endpoint.path, func(t *testing.T) {
			if resp := c.do(endpoint.method, endpoint.path, nil); resp.Code != http.StatusUnauthorized {
				t.Errorf("Expected status 401 for %s %s, got %d", endpoint.method, endpoint.path, resp.Code)
			}
		})
	}
}

// TestPublicEndpointsNoAuth verifies that public endpoints don't require auth
func TestPublicEndpointsNoAuth(t *testing.T) {
	_, handler := setupFullServer(t)
	c := &client{t: t, handler: handler}

	publicEndpoints := []struct {
		method       string
		path         string
		expectedCode int
	}{
		{"GET", "/api/tags/", http.StatusOK},
		{"GET", "/api/ingredients/?name=sa", http.StatusOK},
		{"GET", "/api/recipes/", http.StatusOK},
		{"GET", "/api/users/", http.StatusOK},
		{"GET", "/api/recipes/1/", http.StatusNotFound},
		{"POST", "/api/users/", http.StatusBadRequest},
		{"POST", "/api/auth/token/login/", http.StatusBadRequest},
	}

	for _, endpoint := range publicEndpoints {
		t.Run(endpoint.method+" "+endpoint.path, func(t *testing.T) {
			if resp := c.do(endpoint.method, endpoint.path, nil); resp.Code != endpoint.expectedCode {
				t.Errorf("Expected status %d for %s %s, got %d", endpoint.expectedCode, endpoint.method, endpoint.path, resp.Code)
			}
		})
	}
}

func TestAdminRequiresAdminRole(t *testing.T) {
	_, handler := setupFullServer(t)
	user := signUp(t, handler, "alice", "Alice")

	if resp := user.do("GET", "/api/admin/stats/", nil); resp.Code != http.StatusForbidden {
		t.Errorf("Expected status 403 for regular user, got %d", resp.Code)
	}

	admin := &client{t: t, handler: handler}
	admin.login("admin@foodgram.local", "admin-password")
	if resp := admin.do("GET", "/api/admin/stats/", nil); resp.Code != http.StatusOK {
		t.Errorf("Expected status 200 for admin, got %d", resp.Code)
	}
}

// TestRecipeLifecycle drives the full flow: an admin seeds tags and
// ingredients, one user publishes, another follows, shops and downloads
// the list.
func TestRecipeLifecycle(t *testing.T) {
	_, handler := setupFullServer(t)

	admin := &client{t: t, handler: handler}
	admin.login("admin@foodgram.local", "admin-password")

	var breakfast responses.Tag
	admin.expect(http.StatusCreated, "POST", "/api/admin/tags/",
		map[string]string{"name": "Breakfast", "color": "#E26C2D", "slug": "breakfast"}, &breakfast)
	var flour, eggs responses.Ingredient
	admin.expect(http.StatusCreated, "POST", "/api/admin/ingredients/",
		map[string]string{"name": "Flour", "measurement_unit": "g"}, &flour)
	admin.expect(http.StatusCreated, "POST", "/api/admin/ingredients/",
		map[string]string{"name": "Eggs", "measurement_unit": "pcs"}, &eggs)

	alice := signUp(t, handler, "alice", "Alice")
	bob := signUp(t, handler, "bob", "Bob")

	newRecipe := func(name string, flourAmount int) map[string]interface{} {
		return map[string]interface{}{
			"ingredients": []map[string]interface{}{
				{"id": flour.ID, "amount": flourAmount},
				{"id": eggs.ID, "amount": 2},
			},
			"tags":         []uint{breakfast.ID},
			"image":        pngDataURI(),
			"name":         name,
			"text":         "Whisk and fry.",
			"cooking_time": 15,
		}
	}

	var pancakes, crepes struct {
		ID    uint   `json:"id"`
		Image string `json:"image"`
	}
	alice.expect(http.StatusCreated, "POST", "/api/recipes/", newRecipe("Pancakes", 200), &pancakes)
	alice.expect(http.StatusCreated, "POST", "/api/recipes/", newRecipe("Crepes", 150), &crepes)

	// The stored image is served from the media root.
	imagePath := strings.TrimPrefix(pancakes.Image, testBaseURL)
	if resp := bob.do("GET", imagePath, nil); resp.Code != http.StatusOK {
		t.Errorf("Expected image at %s, got %d", imagePath, resp.Code)
	}

	// Bob follows Alice.
	var me responses.User
	alice.expect(http.StatusOK, "GET", "/api/users/me/", nil, &me)
	var author responses.Author
	bob.expect(http.StatusCreated, "POST", fmt.Sprintf("/api/users/%d/subscribe/?recipes_limit=1", me.ID), nil, &author)
	if author.RecipesCount != 2 || len(author.Recipes) != 1 {
		t.Errorf("Expected 1 of 2 recipes embedded, got %d of %d", len(author.Recipes), author.RecipesCount)
	}

	var subs pagination.Page[responses.Author]
	bob.expect(http.StatusOK, "GET", "/api/users/subscriptions/", nil, &subs)
	if subs.Count != 1 || subs.Results[0].Username != "alice" {
		t.Errorf("Unexpected subscriptions: %+v", subs)
	}

	// Bob shops for both recipes and favorites one.
	bob.expect(http.StatusCreated, "POST", fmt.Sprintf("/api/recipes/%d/shopping_cart/", pancakes.ID), nil, nil)
	bob.expect(http.StatusCreated, "POST", fmt.Sprintf("/api/recipes/%d/shopping_cart/", crepes.ID), nil, nil)
	bob.expect(http.StatusCreated, "POST", fmt.Sprintf("/api/recipes/%d/favorite/", crepes.ID), nil, nil)
	bob.expect(http.StatusBadRequest, "POST", fmt.Sprintf("/api/recipes/%d/favorite/", crepes.ID), nil, nil)

	var favorites pagination.Page[struct {
		Name             string         `json:"name"`
		IsFavorited      bool           `json:"is_favorited"`
		IsInShoppingCart bool           `json:"is_in_shopping_cart"`
		Author           responses.User `json:"author"`
	}]
	bob.expect(http.StatusOK, "GET", "/api/recipes/?is_favorited=1&tags=breakfast", nil, &favorites)
	if favorites.Count != 1 {
		t.Fatalf("Expected 1 favorite, got %d", favorites.Count)
	}
	fav := favorites.Results[0]
	if fav.Name != "Crepes" || !fav.IsFavorited || !fav.IsInShoppingCart || !fav.Author.IsSubscribed {
		t.Errorf("Unexpected favorite: %+v", fav)
	}

	resp := bob.do("GET", "/api/recipes/download_shopping_cart/", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.Code)
	}
	today := time.Now().Format("02_01_2006")
	want := "Shopping list for Bob Cook - " + today + "\n\nEggs - 4 pcs\nFlour - 350 g"
	if resp.Body.String() != want {
		t.Errorf("Unexpected shopping list:\n%q\nwant\n%q", resp.Body.String(), want)
	}

	// Alice edits her recipe; Bob cannot.
	bob.expect(http.StatusForbidden, "PATCH", fmt.Sprintf("/api/recipes/%d/", pancakes.ID), map[string]string{"name": "Mine"}, nil)
	alice.expect(http.StatusOK, "PATCH", fmt.Sprintf("/api/recipes/%d/", pancakes.ID), map[string]interface{}{
		"ingredients": []map[string]interface{}{{"id": flour.ID, "amount": 100}},
	}, nil)

	resp = bob.do("GET", "/api/recipes/download_shopping_cart/", nil)
	want = "Shopping list for Bob Cook - " + today + "\n\nEggs - 2 pcs\nFlour - 250 g"
	if resp.Body.String() != want {
		t.Errorf("Unexpected shopping list after edit:\n%q\nwant\n%q", resp.Body.String(), want)
	}

	alice.expect(http.StatusNoContent, "DELETE", fmt.Sprintf("/api/recipes/%d/", pancakes.ID), nil, nil)

	var stats struct {
		TotalRecipes   int64 `json:"total_recipes"`
		TotalCartItems int64 `json:"total_cart_items"`
	}
	admin.expect(http.StatusOK, "GET", "/api/admin/stats/", nil, &stats)
	if stats.TotalRecipes != 1 || stats.TotalCartItems != 1 {
		t.Errorf("Unexpected stats after delete: %+v", stats)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	db := setupTestDB(t)
	cfg := testConfig(t)
	cfg.Server.Port = 0
	srv := New(cfg, db)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Server did not stop after cancel")
	}
}
