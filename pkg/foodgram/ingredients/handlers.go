package ingredients

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/foodgram/pkg/foodgram/apierr"
	"github.com/mikepea/foodgram/pkg/foodgram/models"
	"github.com/mikepea/foodgram/pkg/foodgram/responses"
	"gorm.io/gorm"
)

// Handler handles ingredient lookups
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new ingredients handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// NamePrefix filters ingredients whose name starts with prefix,
// ignoring case, including non-ASCII letters. An empty prefix matches
// everything.
func NamePrefix(prefix string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if prefix == "" {
			return db
		}
		pattern := likeEscaper.Replace(strings.ToLower(prefix)) + "%"
		return db.Where(`name_lower LIKE ? ESCAPE '\'`, pattern)
	}
}

// List returns ingredients, optionally filtered by name prefix
// @Summary List ingredients
// @Description Case-insensitive prefix search on ingredient name
// @Tags ingredients
// @Produce json
// @Param name query string false "Name prefix"
// @Success 200 {array} responses.Ingredient
// @Router /ingredients/ [get]
func (h *Handler) List(c *gin.Context) {
	var items []models.Ingredient
	err := h.db.WithContext(c.Request.Context()).
		Scopes(NamePrefix(c.Query("name"))).
		Order("name ASC, measurement_unit ASC, id ASC").
		Find(&items).Error
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, responses.NewIngredients(items))
}

// Get returns a single ingredient
// @Summary Get an ingredient
// @Tags ingredients
// @Produce json
// @Param id path int true "Ingredient ID"
// @Success 200 {object} responses.Ingredient
// @Failure 404 {object} map[string]string "Ingredient not found"
// @Router /ingredients/{id}/ [get]
func (h *Handler) Get(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		apierr.Respond(c, apierr.NotFound("Ingredient"))
		return
	}

	var item models.Ingredient
	if err := h.db.WithContext(c.Request.Context()).First(&item, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			apierr.Respond(c, apierr.NotFound("Ingredient"))
			return
		}
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, responses.NewIngredient(&item))
}

// RegisterRoutes registers ingredient routes on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/", h.List)
	rg.GET("/:id/", h.Get)
}
