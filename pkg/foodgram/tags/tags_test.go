package tags

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/foodgram/pkg/foodgram/database"
	"github.com/mikepea/foodgram/pkg/foodgram/models"
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
	NewHandler(db).RegisterRoutes(r.Group("/api/tags"))
	return r
}

func createTestTag(t *testing.T, db *gorm.DB, name, color, slug string) models.Tag {
	tag := models.Tag{Name: name, Color: color, Slug: slug}
	if err := db.Create(&tag).Error; err != nil {
		t.Fatalf("Failed to create tag: %v", err)
	}
	return tag
}

func TestListTags(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	createTestTag(t, db, "Lunch", "#49B64E", "lunch")
	createTestTag(t, db, "Breakfast", "#E26C2D", "breakfast")

	req, _ := http.NewRequest("GET", "/api/tags/", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.Code)
	}

	var tags []responses.Tag
	json.Unmarshal(resp.Body.Bytes(), &tags)
	if len(tags) != 2 {
		t.Fatalf("Expected 2 tags, got %d", len(tags))
	}
	if tags[0].Slug != "breakfast" || tags[1].Slug != "lunch" {
		t.Errorf("Expected tags ordered by name, got %+v", tags)
	}
	if tags[0].Color != "#E26C2D" {
		t.Errorf("Expected color #E26C2D, got %s", tags[0].Color)
	}
}

func TestListTagsEmpty(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)

	req, _ := http.NewRequest("GET", "/api/tags/", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Body.String() != "[]" {
		t.Errorf("Expected empty JSON array, got %s", resp.Body.String())
	}
}

func TestGetTag(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	tag := createTestTag(t, db, "Dinner", "#8775D2", "dinner")

	tests := []struct {
		path   string
		status int
	}{
		{"/api/tags/" + strconv.Itoa(int(tag.ID)) + "/", http.StatusOK},
		{"/api/tags/999/", http.StatusNotFound},
		{"/api/tags/abc/", http.StatusNotFound},
	}
	for _, tt := range tests {
		req, _ := http.NewRequest("GET", tt.path, nil)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != tt.status {
			t.Errorf("GET %s: expected %d, got %d", tt.path, tt.status, resp.Code)
		}
	}
}
