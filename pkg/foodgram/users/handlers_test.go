package users

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/foodgram/pkg/foodgram/auth"
	"github.com/mikepea/foodgram/pkg/foodgram/database"
	"github.com/mikepea/foodgram/pkg/foodgram/media"
	"github.com/mikepea/foodgram/pkg/foodgram/models"
	"github.com/mikepea/foodgram/pkg/foodgram/pagination"
	"github.com/mikepea/foodgram/pkg/foodgram/responses"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := database.OpenMemory()
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return db
}

func setupTestRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := NewHandler(db, media.NewStorage("media", "http://testserver", "/media/"))
	handler.RegisterRoutes(r.Group("/api/users"))
	return r
}

func createTestUser(t *testing.T, db *gorm.DB, username string) models.User {
	user := models.User{
		Email:        username + "@example.com",
		Username:     username,
		FirstName:    "Test",
		LastName:     "User",
		PasswordHash: "hash",
		SystemRole:   models.SystemRoleUser,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	return user
}

func createTestRecipes(t *testing.T, db *gorm.DB, author models.User, n int) {
	base := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		recipe := models.Recipe{
			AuthorID:    author.ID,
			PubDate:     base.Add(time.Duration(i) * time.Hour),
			Name:        fmt.Sprintf("Recipe %d", i),
			Image:       fmt.Sprintf("recipes/images/%d.png", i),
			Text:        "Cook.",
			CookingTime: 10 + i,
		}
		if err := db.Create(&recipe).Error; err != nil {
			t.Fatalf("Failed to create recipe: %v", err)
		}
	}
}

func do(router *gin.Engine, method, path string, user *models.User) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, nil)
	if user != nil {
		token, _ := auth.GenerateToken(user.ID, user.Email, string(user.SystemRole))
		req.Header.Set("Authorization", "Token "+token)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestListUsers(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	reader := createTestUser(t, db, "reader")
	chef := createTestUser(t, db, "chef")
	createTestUser(t, db, "baker")
	db.Create(&models.Subscription{UserID: reader.ID, AuthorID: chef.ID})

	resp := do(router, "GET", "/api/users/?limit=2", &reader)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.Code)
	}

	var page pagination.Page[responses.User]
	json.Unmarshal(resp.Body.Bytes(), &page)
	if page.Count != 3 || len(page.Results) != 2 || page.Next == nil {
		t.Fatalf("Unexpected page: count=%d results=%d", page.Count, len(page.Results))
	}
	if page.Results[0].Username != "reader" || page.Results[0].IsSubscribed {
		t.Errorf("Unexpected first user: %+v", page.Results[0])
	}
	if page.Results[1].Username != "chef" || !page.Results[1].IsSubscribed {
		t.Errorf("Expected chef to be marked subscribed: %+v", page.Results[1])
	}
}

func TestGetUser(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	chef := createTestUser(t, db, "chef")

	resp := do(router, "GET", fmt.Sprintf("/api/users/%d/", chef.ID), nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.Code)
	}
	var user responses.User
	json.Unmarshal(resp.Body.Bytes(), &user)
	if user.Username != "chef" || user.Email != "chef@example.com" || user.IsSubscribed {
		t.Errorf("Unexpected user: %+v", user)
	}

	if resp := do(router, "GET", "/api/users/999/", nil); resp.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", resp.Code)
	}
	if resp := do(router, "GET", "/api/users/abc/", nil); resp.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for non-numeric id, got %d", resp.Code)
	}
}

func TestSubscribe(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	reader := createTestUser(t, db, "reader")
	chef := createTestUser(t, db, "chef")
	createTestRecipes(t, db, chef, 3)
	path := fmt.Sprintf("/api/users/%d/subscribe/?recipes_limit=2", chef.ID)

	resp := do(router, "POST", path, &reader)
	if resp.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var author responses.Author
	json.Unmarshal(resp.Body.Bytes(), &author)
	if author.Username != "chef" || !author.IsSubscribed {
		t.Errorf("Unexpected author: %+v", author.User)
	}
	if author.RecipesCount != 3 || len(author.Recipes) != 2 {
		t.Fatalf("Expected 2 of 3 recipes, got %d of %d", len(author.Recipes), author.RecipesCount)
	}
	if author.Recipes[0].Name != "Recipe 2" {
		t.Errorf("Expected newest recipe first, got %s", author.Recipes[0].Name)
	}
	if author.Recipes[0].Image != "http://testserver/media/recipes/images/2.png" {
		t.Errorf("Unexpected image URL %s", author.Recipes[0].Image)
	}

	if resp := do(router, "POST", path, &reader); resp.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 on repeated subscribe, got %d", resp.Code)
	}
	if resp := do(router, "DELETE", path, &reader); resp.Code != http.StatusNoContent {
		t.Errorf("Expected status 204 on unsubscribe, got %d", resp.Code)
	}
	if resp := do(router, "DELETE", path, &reader); resp.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 on repeated unsubscribe, got %d", resp.Code)
	}
}

func TestSubscribeErrors(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	reader := createTestUser(t, db, "reader")

	tests := []struct {
		name   string
		method string
		path   string
		user   *models.User
		status int
	}{
		{"self", "POST", fmt.Sprintf("/api/users/%d/subscribe/", reader.ID), &reader, http.StatusBadRequest},
		{"missing author", "POST", "/api/users/999/subscribe/", &reader, http.StatusNotFound},
		{"anonymous", "POST", fmt.Sprintf("/api/users/%d/subscribe/", reader.ID), nil, http.StatusUnauthorized},
		{"bad recipes_limit", "POST", fmt.Sprintf("/api/users/%d/subscribe/?recipes_limit=x", reader.ID), &reader, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if resp := do(router, tt.method, tt.path, tt.user); resp.Code != tt.status {
				t.Errorf("Expected status %d, got %d: %s", tt.status, resp.Code, resp.Body.String())
			}
		})
	}

	var n int64
	db.Model(&models.Subscription{}).Count(&n)
	if n != 0 {
		t.Errorf("Expected no subscriptions, got %d", n)
	}
}

func TestSubscriptions(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	reader := createTestUser(t, db, "reader")
	chef := createTestUser(t, db, "chef")
	baker := createTestUser(t, db, "baker")
	createTestUser(t, db, "stranger")
	createTestRecipes(t, db, chef, 4)
	db.Create(&models.Subscription{UserID: reader.ID, AuthorID: chef.ID})
	db.Create(&models.Subscription{UserID: reader.ID, AuthorID: baker.ID})

	resp := do(router, "GET", "/api/users/subscriptions/?recipes_limit=1", &reader)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var page pagination.Page[responses.Author]
	json.Unmarshal(resp.Body.Bytes(), &page)
	if page.Count != 2 || len(page.Results) != 2 {
		t.Fatalf("Expected 2 authors, got %d", page.Count)
	}
	if page.Results[0].Username != "baker" || page.Results[0].RecipesCount != 0 || len(page.Results[0].Recipes) != 0 {
		t.Errorf("Unexpected first author: %+v", page.Results[0])
	}
	if page.Results[1].Username != "chef" || page.Results[1].RecipesCount != 4 || len(page.Results[1].Recipes) != 1 {
		t.Errorf("Unexpected second author: %+v", page.Results[1])
	}

	if resp := do(router, "GET", "/api/users/subscriptions/", nil); resp.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 for anonymous, got %d", resp.Code)
	}
}
