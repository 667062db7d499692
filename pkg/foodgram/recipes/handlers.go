package recipes

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/foodgram/pkg/foodgram/apierr"
	"github.com/mikepea/foodgram/pkg/foodgram/auth"
	"github.com/mikepea/foodgram/pkg/foodgram/media"
	"github.com/mikepea/foodgram/pkg/foodgram/metrics"
	"github.com/mikepea/foodgram/pkg/foodgram/models"
	"github.com/mikepea/foodgram/pkg/foodgram/pagination"
	"github.com/mikepea/foodgram/pkg/foodgram/relations"
	"github.com/mikepea/foodgram/pkg/foodgram/responses"
	"github.com/mikepea/foodgram/pkg/foodgram/shoppinglist"
	"github.com/mikepea/foodgram/pkg/foodgram/validators"
	"gorm.io/gorm"
)

// MaxBodyBytes caps the size of recipe write requests, base64 image
// included.
const MaxBodyBytes = 10 << 20

// Handler handles recipe-related requests
type Handler struct {
	db        *gorm.DB
	service   *Service
	storage   *media.Storage
	favorites *relations.RecipeToggle
	carts     *relations.RecipeToggle
	now       func() time.Time
	maxBody   int64
}

// NewHandler creates a new recipes handler
func NewHandler(db *gorm.DB, storage *media.Storage) *Handler {
	validators.Register()
	return &Handler{
		db:        db,
		service:   NewService(db, storage),
		storage:   storage,
		favorites: relations.Favorites(db),
		carts:     relations.Carts(db),
		now:       time.Now,
		maxBody:   MaxBodyBytes,
	}
}

// limitBody rejects request bodies larger than the handler's limit.
func (h *Handler) limitBody(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBody)
	c.Next()
}

func parseID(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return 0, apierr.NotFound("Recipe")
	}
	return uint(id), nil
}

// truthy accepts the boolean spellings used by the frontend.
func truthy(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// List returns a page of recipes
// @Summary List recipes
// @Description Newest first. Favorite and cart filters apply only to authenticated users.
// @Tags recipes
// @Produce json
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Param tags query []string false "Tag slugs (any match)" collectionFormat(multi)
// @Param author query int false "Author ID"
// @Param is_favorited query int false "1 to show only favorites"
// @Param is_in_shopping_cart query int false "1 to show only recipes in the cart"
// @Success 200 {object} pagination.Page[RecipeResponse]
// @Router /recipes/ [get]
func (h *Handler) List(c *gin.Context) {
	viewerID, _ := auth.GetUserID(c)
	filter := Filter{
		Tags:             c.QueryArray("tags"),
		ViewerID:         viewerID,
		IsFavorited:      truthy(c.Query("is_favorited")),
		IsInShoppingCart: truthy(c.Query("is_in_shopping_cart")),
	}
	if author := c.Query("author"); author != "" {
		id, err := strconv.ParseUint(author, 10, 32)
		if err != nil {
			apierr.Respond(c, apierr.Validation("author", "Enter a whole number."))
			return
		}
		filter.AuthorID = uint(id)
	}

	params := pagination.FromQuery(c)
	recipes, count, err := h.service.List(c.Request.Context(), filter, params)
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	results, err := h.service.Present(c.Request.Context(), viewerID, recipes)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, pagination.New(c, params, count, results))
}

// Get returns a single recipe
// @Summary Get a recipe
// @Tags recipes
// @Produce json
// @Param id path int true "Recipe ID"
// @Success 200 {object} RecipeResponse
// @Failure 404 {object} map[string]string "Recipe not found"
// @Router /recipes/{id}/ [get]
func (h *Handler) Get(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	recipe, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	h.respondRecipe(c, http.StatusOK, recipe)
}

// Create publishes a new recipe
// @Summary Create a recipe
// @Tags recipes
// @Accept json
// @Produce json
// @Param request body RecipeWriteRequest true "Recipe"
// @Success 201 {object} RecipeResponse
// @Failure 400 {object} map[string]string "Validation error"
// @Failure 401 {object} map[string]string "Authentication required"
// @Failure 413 {object} map[string]string "Request body too large"
// @Security BearerAuth
// @Router /recipes/ [post]
func (h *Handler) Create(c *gin.Context) {
	var req RecipeWriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.Bind(c, err)
		return
	}

	user, err := auth.CurrentUser(c, h.db)
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	recipe, err := h.service.Create(c.Request.Context(), user, req)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	h.respondRecipe(c, http.StatusCreated, recipe)
}

// Update changes a recipe
// @Summary Update a recipe
// @Description PATCH updates the fields present; PUT requires all fields. Tags and ingredients, when given, replace the existing sets.
// @Tags recipes
// @Accept json
// @Produce json
// @Param id path int true "Recipe ID"
// @Param request body RecipeWriteRequest true "Recipe fields"
// @Success 200 {object} RecipeResponse
// @Failure 400 {object} map[string]string "Validation error"
// @Failure 403 {object} map[string]string "Not the author"
// @Failure 404 {object} map[string]string "Recipe not found"
// @Failure 413 {object} map[string]string "Request body too large"
// @Security BearerAuth
// @Router /recipes/{id}/ [patch]
func (h *Handler) Update(c *gin.Context) {
	action := ActionPartialUpdate
	if c.Request.Method == http.MethodPut {
		action = ActionUpdate
	}

	id, err := parseID(c)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	var req RecipeWriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.Bind(c, err)
		return
	}

	user, err := auth.CurrentUser(c, h.db)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	recipe, err := h.service.Find(c.Request.Context(), id)
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	updated, err := h.service.Update(c.Request.Context(), user, recipe, req, action)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	h.respondRecipe(c, http.StatusOK, updated)
}

// Delete removes a recipe
// @Summary Delete a recipe
// @Tags recipes
// @Param id path int true "Recipe ID"
// @Success 204
// @Failure 403 {object} map[string]string "Not the author"
// @Failure 404 {object} map[string]string "Recipe not found"
// @Security BearerAuth
// @Router /recipes/{id}/ [delete]
func (h *Handler) Delete(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	user, err := auth.CurrentUser(c, h.db)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	recipe, err := h.service.Find(c.Request.Context(), id)
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	if err := h.service.Delete(c.Request.Context(), user, recipe); err != nil {
		apierr.Respond(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AddFavorite adds a recipe to the user's favorites
// @Summary Add to favorites
// @Tags recipes
// @Produce json
// @Param id path int true "Recipe ID"
// @Success 201 {object} responses.ShortRecipe
// @Failure 400 {object} map[string]string "Already in favorites"
// @Failure 404 {object} map[string]string "Recipe not found"
// @Security BearerAuth
// @Router /recipes/{id}/favorite/ [post]
func (h *Handler) AddFavorite(c *gin.Context) {
	h.toggle(c, h.favorites, true)
}

// RemoveFavorite removes a recipe from the user's favorites
// @Summary Remove from favorites
// @Tags recipes
// @Param id path int true "Recipe ID"
// @Success 204
// @Failure 400 {object} map[string]string "Not in favorites"
// @Failure 404 {object} map[string]string "Recipe not found"
// @Security BearerAuth
// @Router /recipes/{id}/favorite/ [delete]
func (h *Handler) RemoveFavorite(c *gin.Context) {
	h.toggle(c, h.favorites, false)
}

// AddToCart adds a recipe to the user's shopping cart
// @Summary Add to shopping cart
// @Tags recipes
// @Produce json
// @Param id path int true "Recipe ID"
// @Success 201 {object} responses.ShortRecipe
// @Failure 400 {object} map[string]string "Already in cart"
// @Failure 404 {object} map[string]string "Recipe not found"
// @Security BearerAuth
// @Router /recipes/{id}/shopping_cart/ [post]
func (h *Handler) AddToCart(c *gin.Context) {
	h.toggle(c, h.carts, true)
}

// RemoveFromCart removes a recipe from the user's shopping cart
// @Summary Remove from shopping cart
// @Tags recipes
// @Param id path int true "Recipe ID"
// @Success 204
// @Failure 400 {object} map[string]string "Not in cart"
// @Failure 404 {object} map[string]string "Recipe not found"
// @Security BearerAuth
// @Router /recipes/{id}/shopping_cart/ [delete]
func (h *Handler) RemoveFromCart(c *gin.Context) {
	h.toggle(c, h.carts, false)
}

func (h *Handler) toggle(c *gin.Context, t *relations.RecipeToggle, add bool) {
	id, err := parseID(c)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	user, err := auth.CurrentUser(c, h.db)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	recipe, err := h.service.Find(c.Request.Context(), id)
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	if !add {
		if err := t.Remove(c.Request.Context(), user, recipe); err != nil {
			apierr.Respond(c, err)
			return
		}
		c.Status(http.StatusNoContent)
		return
	}

	if err := t.Add(c.Request.Context(), user, recipe); err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, responses.NewShortRecipe(recipe, h.storage.URL(recipe.Image)))
}

// DownloadShoppingCart returns the aggregated shopping list
// @Summary Download shopping list
// @Description Sums the ingredients of every recipe in the cart. Plain text by default.
// @Tags recipes
// @Produce plain
// @Produce application/pdf
// @Param format query string false "txt or pdf"
// @Success 200 {file} file
// @Failure 401 {object} map[string]string "Authentication required"
// @Security BearerAuth
// @Router /recipes/download_shopping_cart/ [get]
func (h *Handler) DownloadShoppingCart(c *gin.Context) {
	format, err := shoppinglist.ParseFormat(c.Query("format"))
	if err != nil {
		apierr.Respond(c, apierr.Validation("format", "Supported formats are txt and pdf."))
		return
	}

	user, err := auth.CurrentUser(c, h.db)
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	report, err := shoppinglist.Build(c.Request.Context(), h.db, user.ID, user.FullName(), user.Username, h.now())
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	var buf bytes.Buffer
	if err := report.Write(&buf, format); err != nil {
		apierr.Respond(c, err)
		return
	}

	metrics.RecordShoppingList(string(format), len(report.Items))
	c.Header("Content-Disposition", "attachment; filename="+report.Filename(string(format)))
	c.Data(http.StatusOK, format.ContentType(), buf.Bytes())
}

func (h *Handler) respondRecipe(c *gin.Context, status int, recipe *models.Recipe) {
	viewerID, _ := auth.GetUserID(c)
	resp, err := h.service.PresentOne(c.Request.Context(), viewerID, recipe)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(status, resp)
}

// RegisterRoutes registers recipe routes on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/", auth.OptionalAuth(), h.List)
	rg.GET("/download_shopping_cart/", auth.AuthMiddleware(), h.DownloadShoppingCart)
	rg.GET("/:id/", auth.OptionalAuth(), h.Get)

	protected := rg.Group("")
	protected.Use(auth.AuthMiddleware())
	{
		protected.POST("/", h.limitBody, h.Create)
		protected.PATCH("/:id/", h.limitBody, h.Update)
		protected.PUT("/:id/", h.limitBody, h.Update)
		protected.DELETE("/:id/", h.Delete)
		protected.POST("/:id/favorite/", h.AddFavorite)
		protected.DELETE("/:id/favorite/", h.RemoveFavorite)
		protected.POST("/:id/shopping_cart/", h.AddToCart)
		protected.DELETE("/:id/shopping_cart/", h.RemoveFromCart)
	}
}
