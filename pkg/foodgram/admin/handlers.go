package admin

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/foodgram/pkg/foodgram/apierr"
	"github.com/mikepea/foodgram/pkg/foodgram/auth"
	"github.com/mikepea/foodgram/pkg/foodgram/models"
	"github.com/mikepea/foodgram/pkg/foodgram/pagination"
	"github.com/mikepea/foodgram/pkg/foodgram/recipes"
	"github.com/mikepea/foodgram/pkg/foodgram/responses"
	"github.com/mikepea/foodgram/pkg/foodgram/validators"
	"gorm.io/gorm"
)

const msgRequired = "This field is required."

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

var (
	errDemoteSelf    = apierr.Validation("system_role", "Cannot demote yourself.")
	errDeleteSelf    = apierr.Validation("id", "Cannot delete yourself.")
	errInvalidRole   = apierr.Validation("system_role", "System role must be admin or user.")
	errTagTaken      = apierr.AlreadyExists("A tag with this name, color or slug already exists.")
)

// Handler handles admin requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new admin handler
func NewHandler(db *gorm.DB) *Handler {
	validators.Register()
	return &Handler{db: db}
}

// UserResponse represents user data in admin responses
type UserResponse struct {
	ID              uint   `json:"id"`
	Email           string `json:"email"`
	Username        string `json:"username"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	SystemRole      string `json:"system_role"`
	CreatedAt       string `json:"created_at"`
	RecipeCount     int64  `json:"recipe_count"`
	SubscriberCount int64  `json:"subscriber_count"`
}

// UpdateUserRequest represents the request to update a user
type UpdateUserRequest struct {
	FirstName  *string `json:"first_name" binding:"omitempty,max=150"`
	LastName   *string `json:"last_name" binding:"omitempty,max=150"`
	SystemRole *string `json:"system_role"`
}

// TagRequest is the body of tag create and update requests
type TagRequest struct {
	Name  *string `json:"name" binding:"omitempty,min=1,max=200"`
	Color *string `json:"color"`
	Slug  *string `json:"slug" binding:"omitempty,max=200,slug"`
}

// IngredientRequest is the body of ingredient create and update requests
type IngredientRequest struct {
	Name            *string `json:"name" binding:"omitempty,min=1,max=200"`
	MeasurementUnit *string `json:"measurement_unit" binding:"omitempty,min=1,max=200"`
}

// RecipeResponse is a recipe row in the admin listing
type RecipeResponse struct {
	ID             uint     `json:"id"`
	Name           string   `json:"name"`
	AuthorID       uint     `json:"author_id"`
	Author         string   `json:"author"`
	Tags           []string `json:"tags"`
	CookingTime    int      `json:"cooking_time"`
	PubDate        string   `json:"pub_date"`
	FavoritesCount int64    `json:"favorites_count"`
}

// StatsResponse represents system statistics
type StatsResponse struct {
	TotalUsers         int64 `json:"total_users"`
	AdminUsers         int64 `json:"admin_users"`
	TotalRecipes       int64 `json:"total_recipes"`
	TotalTags          int64 `json:"total_tags"`
	TotalIngredients   int64 `json:"total_ingredients"`
	TotalFavorites     int64 `json:"total_favorites"`
	TotalCartItems     int64 `json:"total_cart_items"`
	TotalSubscriptions int64 `json:"total_subscriptions"`
}

func parseID(c *gin.Context, entity string) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return 0, apierr.NotFound(entity)
	}
	return uint(id), nil
}

func (h *Handler) first(c *gin.Context, dest interface{}, entity string) error {
	id, err := parseID(c, entity)
	if err != nil {
		return err
	}
	if err := h.db.WithContext(c.Request.Context()).First(dest, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apierr.NotFound(entity)
		}
		return err
	}
	return nil
}

func (h *Handler) userResponse(c *gin.Context, user *models.User) UserResponse {
	db := h.db.WithContext(c.Request.Context())
	var recipeCount, subscriberCount int64
	db.Model(&models.Recipe{}).Where("author_id = ?", user.ID).Count(&recipeCount)
	db.Model(&models.Subscription{}).Where("author_id = ?", user.ID).Count(&subscriberCount)

	return UserResponse{
		ID:              user.ID,
		Email:           user.Email,
		Username:        user.Username,
		FirstName:       user.FirstName,
		LastName:        user.LastName,
		SystemRole:      string(user.SystemRole),
		CreatedAt:       user.CreatedAt.UTC().Format(time.RFC3339),
		RecipeCount:     recipeCount,
		SubscriberCount: subscriberCount,
	}
}

// ListUsers returns all users (admin only)
// @Summary List users
// @Description Optional search on email or username, and role filter
// @Tags admin
// @Produce json
// @Param q query string false "Search email or username"
// @Param role query string false "admin or user"
// @Success 200 {array} UserResponse
// @Security BearerAuth
// @Router /admin/users/ [get]
func (h *Handler) ListUsers(c *gin.Context) {
	var users []models.User

	query := h.db.WithContext(c.Request.Context()).Order("created_at DESC, id DESC")

	if search := strings.ToLower(c.Query("q")); search != "" {
		pattern := "%" + search + "%"
		query = query.Where("LOWER(email) LIKE ? OR LOWER(username) LIKE ?", pattern, pattern)
	}
	if role := c.Query("role"); role != "" {
		query = query.Where("system_role = ?", role)
	}

	if err := query.Find(&users).Error; err != nil {
		apierr.Respond(c, err)
		return
	}

	out := make([]UserResponse, len(users))
	for i := range users {
		out[i] = h.userResponse(c, &users[i])
	}
	c.JSON(http.StatusOK, out)
}

// GetUser returns a single user by ID (admin only)
// @Summary Get a user
// @Tags admin
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} UserResponse
// @Failure 404 {object} map[string]string "User not found"
// @Security BearerAuth
// @Router /admin/users/{id}/ [get]
func (h *Handler) GetUser(c *gin.Context) {
	var user models.User
	if err := h.first(c, &user, "User"); err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, h.userResponse(c, &user))
}

// UpdateUser updates a user's profile and role (admin only)
// @Summary Update a user
// @Tags admin
// @Accept json
// @Produce json
// @Param id path int true "User ID"
// @Param request body UpdateUserRequest true "Fields to change"
// @Success 200 {object} UserResponse
// @Failure 400 {object} map[string]string "Validation error"
// @Failure 404 {object} map[string]string "User not found"
// @Security BearerAuth
// @Router /admin/users/{id}/ [patch]
func (h *Handler) UpdateUser(c *gin.Context) {
	var user models.User
	if err := h.first(c, &user, "User"); err != nil {
		apierr.Respond(c, err)
		return
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.Bind(c, err)
		return
	}

	currentUserID, _ := auth.GetUserID(c)
	updates := make(map[string]interface{})
	if req.FirstName != nil {
		updates["first_name"] = *req.FirstName
	}
	if req.LastName != nil {
		updates["last_name"] = *req.LastName
	}
	if req.SystemRole != nil {
		role := models.SystemRole(*req.SystemRole)
		if role != models.SystemRoleAdmin && role != models.SystemRoleUser {
			apierr.Respond(c, errInvalidRole)
			return
		}
		if user.ID == currentUserID && role != models.SystemRoleAdmin {
			apierr.Respond(c, errDemoteSelf)
			return
		}
		updates["system_role"] = role
	}

	if len(updates) > 0 {
		if err := h.db.WithContext(c.Request.Context()).Model(&user).Updates(updates).Error; err != nil {
			apierr.Respond(c, err)
			return
		}
	}

	c.JSON(http.StatusOK, h.userResponse(c, &user))
}

// DeleteUser removes a user with their recipes and relations (admin only)
// @Summary Delete a user
// @Tags admin
// @Param id path int true "User ID"
// @Success 204
// @Failure 400 {object} map[string]string "Cannot delete yourself"
// @Failure 404 {object} map[string]string "User not found"
// @Security BearerAuth
// @Router /admin/users/{id}/ [delete]
func (h *Handler) DeleteUser(c *gin.Context) {
	var user models.User
	if err := h.first(c, &user, "User"); err != nil {
		apierr.Respond(c, err)
		return
	}

	currentUserID, _ := auth.GetUserID(c)
	if user.ID == currentUserID {
		apierr.Respond(c, errDeleteSelf)
		return
	}

	err := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		// Join rows of the user's recipes have no cascading key of their own.
		owned := tx.Model(&models.Recipe{}).Select("id").Where("author_id = ?", user.ID)
		if err := tx.Where("recipe_id IN (?)", owned).Delete(&models.TagRecipe{}).Error; err != nil {
			return err
		}
		return tx.Delete(&user).Error
	})
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// CreateTag adds a tag (admin only)
// @Summary Create a tag
// @Tags admin
// @Accept json
// @Produce json
// @Param request body TagRequest true "Tag"
// @Success 201 {object} responses.Tag
// @Failure 400 {object} map[string]string "Validation error or duplicate"
// @Security BearerAuth
// @Router /admin/tags/ [post]
func (h *Handler) CreateTag(c *gin.Context) {
	var req TagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.Bind(c, err)
		return
	}
	required := []struct {
		field string
		value *string
	}{{"name", req.Name}, {"color", req.Color}, {"slug", req.Slug}}
	for _, r := range required {
		if r.value == nil {
			apierr.Respond(c, apierr.Validation(r.field, msgRequired))
			return
		}
	}

	if err := validators.ValidateHexColor(*req.Color); err != nil {
		apierr.Respond(c, err)
		return
	}

	tag := models.Tag{Name: *req.Name, Color: strings.ToUpper(*req.Color), Slug: *req.Slug}
	if err := h.db.WithContext(c.Request.Context()).Create(&tag).Error; err != nil {
		apierr.Respond(c, translate(err, errTagTaken))
		return
	}
	c.JSON(http.StatusCreated, responses.NewTag(&tag))
}

// UpdateTag changes a tag (admin only)
// @Summary Update a tag
// @Tags admin
// @Accept json
// @Produce json
// @Param id path int true "Tag ID"
// @Param request body TagRequest true "Fields to change"
// @Success 200 {object} responses.Tag
// @Failure 400 {object} map[string]string "Validation error or duplicate"
// @Failure 404 {object} map[string]string "Tag not found"
// @Security BearerAuth
// @Router /admin/tags/{id}/ [patch]
func (h *Handler) UpdateTag(c *gin.Context) {
	var tag models.Tag
	if err := h.first(c, &tag, "Tag"); err != nil {
		apierr.Respond(c, err)
		return
	}

	var req TagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.Bind(c, err)
		return
	}
	if req.Name != nil {
		tag.Name = *req.Name
	}
	if req.Color != nil {
		if err := validators.ValidateHexColor(*req.Color); err != nil {
			apierr.Respond(c, err)
			return
		}
		tag.Color = strings.ToUpper(*req.Color)
	}
	if req.Slug != nil {
		tag.Slug = *req.Slug
	}

	if err := h.db.WithContext(c.Request.Context()).Save(&tag).Error; err != nil {
		apierr.Respond(c, translate(err, errTagTaken))
		return
	}
	c.JSON(http.StatusOK, responses.NewTag(&tag))
}

// DeleteTag removes a tag from all recipes and deletes it (admin only)
// @Summary Delete a tag
// @Tags admin
// @Param id path int true "Tag ID"
// @Success 204
// @Failure 404 {object} map[string]string "Tag not found"
// @Security BearerAuth
// @Router /admin/tags/{id}/ [delete]
func (h *Handler) DeleteTag(c *gin.Context) {
	var tag models.Tag
	if err := h.first(c, &tag, "Tag"); err != nil {
		apierr.Respond(c, err)
		return
	}

	err := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("tag_id = ?", tag.ID).Delete(&models.TagRecipe{}).Error; err != nil {
			return err
		}
		return tx.Delete(&tag).Error
	})
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListRecipes returns recipes with their favorite counts (admin only)
// @Summary List recipes
// @Description Case-insensitive search on name, filters by author id and tag slugs
// @Tags admin
// @Produce json
// @Param search query string false "Name contains"
// @Param author query int false "Author ID"
// @Param tags query []string false "Tag slugs" collectionFormat(multi)
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} pagination.Page[RecipeResponse]
// @Failure 404 {object} map[string]string "Page not found"
// @Security BearerAuth
// @Router /admin/recipes/ [get]
func (h *Handler) ListRecipes(c *gin.Context) {
	filter := recipes.Filter{Tags: c.QueryArray("tags")}
	if v := c.Query("author"); v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			apierr.Respond(c, apierr.Validation("author", "A valid integer is required."))
			return
		}
		filter.AuthorID = uint(id)
	}

	search := nameContains(c.Query("search"))

	var count int64
	err := h.db.WithContext(c.Request.Context()).
		Model(&models.Recipe{}).
		Scopes(filter.Scope, search).
		Count(&count).Error
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	p := pagination.FromQuery(c)
	if err := p.Check(count); err != nil {
		apierr.Respond(c, err)
		return
	}

	var items []models.Recipe
	err = h.db.WithContext(c.Request.Context()).
		Scopes(filter.Scope, search, p.Scope).
		Preload("Author").
		Preload("Tags").
		Order("recipes.pub_date DESC, recipes.id DESC").
		Find(&items).Error
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	counts, err := h.favoriteCounts(c, items)
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	out := make([]RecipeResponse, len(items))
	for i, r := range items {
		tags := make([]string, len(r.Tags))
		for j, t := range r.Tags {
			tags[j] = t.Slug
		}
		out[i] = RecipeResponse{
			ID:             r.ID,
			Name:           r.Name,
			AuthorID:       r.AuthorID,
			Author:         r.Author.Username,
			Tags:           tags,
			CookingTime:    r.CookingTime,
			PubDate:        r.PubDate.UTC().Format(time.RFC3339),
			FavoritesCount: counts[r.ID],
		}
	}
	c.JSON(http.StatusOK, pagination.New(c, p, count, out))
}

// nameContains matches recipe names containing s, ignoring case.
func nameContains(s string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if s == "" {
			return db
		}
		pattern := "%" + likeEscaper.Replace(strings.ToLower(s)) + "%"
		return db.Where(`recipes.name_lower LIKE ? ESCAPE '\'`, pattern)
	}
}

// favoriteCounts returns how many users favorited each recipe.
func (h *Handler) favoriteCounts(c *gin.Context, items []models.Recipe) (map[uint]int64, error) {
	counts := make(map[uint]int64, len(items))
	if len(items) == 0 {
		return counts, nil
	}
	ids := make([]uint, len(items))
	for i, r := range items {
		ids[i] = r.ID
	}

	var rows []struct {
		RecipeID uint
		Total    int64
	}
	err := h.db.WithContext(c.Request.Context()).
		Model(&models.Favorite{}).
		Select("recipe_id, COUNT(*) AS total").
		Where("recipe_id IN ?", ids).
		Group("recipe_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.RecipeID] = row.Total
	}
	return counts, nil
}

// CreateIngredient adds an ingredient (admin only)
// @Summary Create an ingredient
// @Tags admin
// @Accept json
// @Produce json
// @Param request body IngredientRequest true "Ingredient"
// @Success 201 {object} responses.Ingredient
// @Failure 400 {object} map[string]string "Validation error"
// @Security BearerAuth
// @Router /admin/ingredients/ [post]
func (h *Handler) CreateIngredient(c *gin.Context) {
	var req IngredientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.Bind(c, err)
		return
	}
	if req.Name == nil {
		apierr.Respond(c, apierr.Validation("name", msgRequired))
		return
	}
	if req.MeasurementUnit == nil {
		apierr.Respond(c, apierr.Validation("measurement_unit", msgRequired))
		return
	}

	item := models.Ingredient{Name: *req.Name, MeasurementUnit: *req.MeasurementUnit}
	if err := h.db.WithContext(c.Request.Context()).Create(&item).Error; err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, responses.NewIngredient(&item))
}

// UpdateIngredient changes an ingredient (admin only)
// @Summary Update an ingredient
// @Tags admin
// @Accept json
// @Produce json
// @Param id path int true "Ingredient ID"
// @Param request body IngredientRequest true "Fields to change"
// @Success 200 {object} responses.Ingredient
// @Failure 400 {object} map[string]string "Validation error"
// @Failure 404 {object} map[string]string "Ingredient not found"
// @Security BearerAuth
// @Router /admin/ingredients/{id}/ [patch]
func (h *Handler) UpdateIngredient(c *gin.Context) {
	var item models.Ingredient
	if err := h.first(c, &item, "Ingredient"); err != nil {
		apierr.Respond(c, err)
		return
	}

	var req IngredientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.Bind(c, err)
		return
	}
	if req.Name != nil {
		item.Name = *req.Name
	}
	if req.MeasurementUnit != nil {
		item.MeasurementUnit = *req.MeasurementUnit
	}

	if err := h.db.WithContext(c.Request.Context()).Save(&item).Error; err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, responses.NewIngredient(&item))
}

// DeleteIngredient deletes an ingredient and its recipe lines (admin only)
// @Summary Delete an ingredient
// @Tags admin
// @Param id path int true "Ingredient ID"
// @Success 204
// @Failure 404 {object} map[string]string "Ingredient not found"
// @Security BearerAuth
// @Router /admin/ingredients/{id}/ [delete]
func (h *Handler) DeleteIngredient(c *gin.Context) {
	var item models.Ingredient
	if err := h.first(c, &item, "Ingredient"); err != nil {
		apierr.Respond(c, err)
		return
	}
	if err := h.db.WithContext(c.Request.Context()).Delete(&item).Error; err != nil {
		apierr.Respond(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetStats returns system-wide statistics (admin only)
// @Summary System statistics
// @Tags admin
// @Produce json
// @Success 200 {object} StatsResponse
// @Security BearerAuth
// @Router /admin/stats/ [get]
func (h *Handler) GetStats(c *gin.Context) {
	var stats StatsResponse
	db := h.db.WithContext(c.Request.Context())

	db.Model(&models.User{}).Count(&stats.TotalUsers)
	db.Model(&models.User{}).Where("system_role = ?", models.SystemRoleAdmin).Count(&stats.AdminUsers)
	db.Model(&models.Recipe{}).Count(&stats.TotalRecipes)
	db.Model(&models.Tag{}).Count(&stats.TotalTags)
	db.Model(&models.Ingredient{}).Count(&stats.TotalIngredients)
	db.Model(&models.Favorite{}).Count(&stats.TotalFavorites)
	db.Model(&models.Cart{}).Count(&stats.TotalCartItems)
	db.Model(&models.Subscription{}).Count(&stats.TotalSubscriptions)

	c.JSON(http.StatusOK, stats)
}

// translate maps a unique-key violation onto dup.
func translate(err, dup error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return dup
	}
	return err
}

// RegisterRoutes registers admin routes on the given router group. The
// caller is expected to guard the group with auth.RequireAdmin.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/stats/", h.GetStats)

	rg.GET("/users/", h.ListUsers)
	rg.GET("/users/:id/", h.GetUser)
	rg.PATCH("/users/:id/", h.UpdateUser)
	rg.DELETE("/users/:id/", h.DeleteUser)

	rg.GET("/recipes/", h.ListRecipes)

	rg.POST("/tags/", h.CreateTag)
	rg.PATCH("/tags/:id/", h.UpdateTag)
	rg.DELETE("/tags/:id/", h.DeleteTag)

	rg.POST("/ingredients/", h.CreateIngredient)
	rg.PATCH("/ingredients/:id/", h.UpdateIngredient)
	rg.DELETE("/ingredients/:id/", h.DeleteIngredient)
}
