package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/tags/", "200"))
	RecordAPIRequest("GET", "/api/tags/", http.StatusOK, 5*time.Millisecond)
	after := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/tags/", "200"))

	if after-before != 1 {
		t.Errorf("Expected counter to increase by 1, got %v", after-before)
	}
}

func TestRecordToggle(t *testing.T) {
	counter := RelationToggles.WithLabelValues("favorite", "add", "already_exists")
	before := testutil.ToFloat64(counter)
	RecordToggle("favorite", "add", "already_exists")
	RecordToggle("favorite", "add", "already_exists")

	if got := testutil.ToFloat64(counter) - before; got != 2 {
		t.Errorf("Expected 2 toggles recorded, got %v", got)
	}
}

func TestRecordShoppingList(t *testing.T) {
	before := testutil.ToFloat64(ShoppingListDownloads.WithLabelValues("pdf"))
	RecordShoppingList("pdf", 3)

	if got := testutil.ToFloat64(ShoppingListDownloads.WithLabelValues("pdf")) - before; got != 1 {
		t.Errorf("Expected 1 pdf download recorded, got %v", got)
	}
}

func TestMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	r.GET("/api/recipes/:id/", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	r.GET("/metrics", Handler())

	req, _ := http.NewRequest("GET", "/api/recipes/42/", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)

	req, _ = http.NewRequest("GET", "/metrics", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `foodgram_http_requests_total{method="GET",route="/api/recipes/:id/",status="204"}`) {
		t.Error("Expected request counter for the route template in exposition output")
	}
}
