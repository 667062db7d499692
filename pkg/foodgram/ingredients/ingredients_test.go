package ingredients

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
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
	for _, in := range []models.Ingredient{
		{Name: "salt", MeasurementUnit: "g"},
		{Name: "Sugar", MeasurementUnit: "g"},
		{Name: "sugar", MeasurementUnit: "tbsp"},
		{Name: "flour", MeasurementUnit: "g"},
		{Name: "50%_cream", MeasurementUnit: "ml"},
		{Name: "500 cream", MeasurementUnit: "ml"},
	} {
		in := in
		db.Create(&in)
	}
	return db
}

func setupTestRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(db).RegisterRoutes(r.Group("/api/ingredients"))
	return r
}

func list(t *testing.T, router *gin.Engine, name string) []responses.Ingredient {
	path := "/api/ingredients/"
	if name != "" {
		path += "?name=" + url.QueryEscape(name)
	}
	req, _ := http.NewRequest("GET", path, nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.Code)
	}
	var items []responses.Ingredient
	json.Unmarshal(resp.Body.Bytes(), &items)
	return items
}

func TestListIngredients(t *testing.T) {
	router := setupTestRouter(setupTestDB(t))

	if items := list(t, router, ""); len(items) != 6 {
		t.Errorf("Expected all 6 ingredients, got %d", len(items))
	}
}

func TestListIngredientsPrefixFilter(t *testing.T) {
	router := setupTestRouter(setupTestDB(t))

	items := list(t, router, "SU")
	if len(items) != 2 {
		t.Fatalf("Expected 2 sugar entries, got %+v", items)
	}
	for _, item := range items {
		if item.Name != "Sugar" && item.Name != "sugar" {
			t.Errorf("Unexpected match %q", item.Name)
		}
	}

	// Prefix, not substring.
	if items := list(t, router, "alt"); len(items) != 0 {
		t.Errorf("Expected no matches for infix, got %+v", items)
	}

	// LIKE wildcards in the query are literal.
	items = list(t, router, "50%")
	if len(items) != 1 || items[0].Name != "50%_cream" {
		t.Errorf("Expected only the literal '50%%' match, got %+v", items)
	}
}

func TestGetIngredient(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)

	var flour models.Ingredient
	db.Where("name = ?", "flour").First(&flour)

	req, _ := http.NewRequest("GET", "/api/ingredients/"+strconv.Itoa(int(flour.ID))+"/", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.Code)
	}
	var item responses.Ingredient
	json.Unmarshal(resp.Body.Bytes(), &item)
	if item.MeasurementUnit != "g" {
		t.Errorf("Expected unit g, got %s", item.MeasurementUnit)
	}

	req, _ = http.NewRequest("GET", "/api/ingredients/12345/", nil)
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", resp.Code)
	}
}

func TestListIngredientsPrefixFilterNonASCII(t *testing.T) {
	db := setupTestDB(t)
	for _, in := range []models.Ingredient{
		{Name: "Мука", MeasurementUnit: "г"},
		{Name: "мускатный орех", MeasurementUnit: "г"},
		{Name: "Молоко", MeasurementUnit: "мл"},
	} {
		in := in
		db.Create(&in)
	}
	router := setupTestRouter(db)

	items := list(t, router, "мук")
	if len(items) != 1 || items[0].Name != "Мука" {
		t.Errorf("Expected only Мука for lower-case prefix, got %+v", items)
	}

	items = list(t, router, "МУ")
	if len(items) != 2 {
		t.Errorf("Expected 2 matches for upper-case prefix, got %+v", items)
	}
}
