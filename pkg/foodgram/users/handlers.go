package users

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/foodgram/pkg/foodgram/apierr"
	"github.com/mikepea/foodgram/pkg/foodgram/auth"
	"github.com/mikepea/foodgram/pkg/foodgram/media"
	"github.com/mikepea/foodgram/pkg/foodgram/models"
	"github.com/mikepea/foodgram/pkg/foodgram/pagination"
	"github.com/mikepea/foodgram/pkg/foodgram/relations"
	"github.com/mikepea/foodgram/pkg/foodgram/responses"
	"gorm.io/gorm"
)

// RecipesLimitParam caps the recipes embedded in each author.
const RecipesLimitParam = "recipes_limit"

// Handler handles user listing and subscription requests
type Handler struct {
	db            *gorm.DB
	storage       *media.Storage
	subscriptions *relations.UserToggle
	subscribed    *relations.PairStore[models.Subscription]
}

// NewHandler creates a new users handler
func NewHandler(db *gorm.DB, storage *media.Storage) *Handler {
	return &Handler{
		db:            db,
		storage:       storage,
		subscriptions: relations.Subscriptions(db),
		subscribed:    relations.SubscriptionStore(db),
	}
}

func (h *Handler) findUser(c *gin.Context) (*models.User, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return nil, apierr.NotFound("User")
	}
	var user models.User
	if err := h.db.WithContext(c.Request.Context()).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.NotFound("User")
		}
		return nil, err
	}
	return &user, nil
}

// recipesLimit reads recipes_limit; 0 means no limit.
func recipesLimit(c *gin.Context) (int, error) {
	v := c.Query(RecipesLimitParam)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, apierr.Validation(RecipesLimitParam, "Enter a whole number.")
	}
	return n, nil
}

// List returns a page of users
// @Summary List users
// @Tags users
// @Produce json
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} pagination.Page[responses.User]
// @Router /users/ [get]
func (h *Handler) List(c *gin.Context) {
	ctx := c.Request.Context()
	params := pagination.FromQuery(c)

	var count int64
	if err := h.db.WithContext(ctx).Model(&models.User{}).Count(&count).Error; err != nil {
		apierr.Respond(c, err)
		return
	}
	if err := params.Check(count); err != nil {
		apierr.Respond(c, err)
		return
	}

	var users []models.User
	if err := h.db.WithContext(ctx).Scopes(params.Scope).Order("id ASC").Find(&users).Error; err != nil {
		apierr.Respond(c, err)
		return
	}

	ids := make([]uint, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	viewerID, _ := auth.GetUserID(c)
	subscribed, err := h.subscribed.Present(ctx, viewerID, ids)
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	results := make([]responses.User, len(users))
	for i := range users {
		results[i] = responses.NewUser(&users[i], subscribed[users[i].ID])
	}
	c.JSON(http.StatusOK, pagination.New(c, params, count, results))
}

// Get returns a user profile
// @Summary Get a user
// @Tags users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} responses.User
// @Failure 404 {object} map[string]string "User not found"
// @Router /users/{id}/ [get]
func (h *Handler) Get(c *gin.Context) {
	ctx := c.Request.Context()
	user, err := h.findUser(c)
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	viewerID, _ := auth.GetUserID(c)
	subscribed, err := h.subscribed.Exists(ctx, viewerID, user.ID)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, responses.NewUser(user, subscribed))
}

// Subscribe follows an author
// @Summary Subscribe to an author
// @Tags users
// @Produce json
// @Param id path int true "Author ID"
// @Param recipes_limit query int false "Maximum recipes to embed"
// @Success 201 {object} responses.Author
// @Failure 400 {object} map[string]string "Already subscribed or self-subscription"
// @Failure 404 {object} map[string]string "User not found"
// @Security BearerAuth
// @Router /users/{id}/subscribe/ [post]
func (h *Handler) Subscribe(c *gin.Context) {
	ctx := c.Request.Context()
	limit, err := recipesLimit(c)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	user, err := auth.CurrentUser(c, h.db)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	author, err := h.findUser(c)
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	if err := h.subscriptions.Add(ctx, user, author); err != nil {
		apierr.Respond(c, err)
		return
	}

	authors, err := h.authors(ctx, []models.User{*author}, limit)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, authors[0])
}

// Unsubscribe stops following an author
// @Summary Unsubscribe from an author
// @Tags users
// @Param id path int true "Author ID"
// @Success 204
// @Failure 400 {object} map[string]string "Not subscribed"
// @Failure 404 {object} map[string]string "User not found"
// @Security BearerAuth
// @Router /users/{id}/subscribe/ [delete]
func (h *Handler) Unsubscribe(c *gin.Context) {
	ctx := c.Request.Context()
	user, err := auth.CurrentUser(c, h.db)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	author, err := h.findUser(c)
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	if err := h.subscriptions.Remove(ctx, user, author); err != nil {
		apierr.Respond(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Subscriptions lists the authors the current user follows
// @Summary List subscriptions
// @Tags users
// @Produce json
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Param recipes_limit query int false "Maximum recipes to embed per author"
// @Success 200 {object} pagination.Page[responses.Author]
// @Failure 401 {object} map[string]string "Authentication required"
// @Security BearerAuth
// @Router /users/subscriptions/ [get]
func (h *Handler) Subscriptions(c *gin.Context) {
	ctx := c.Request.Context()
	limit, err := recipesLimit(c)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	userID, _ := auth.GetUserID(c)
	params := pagination.FromQuery(c)

	following := h.db.Session(&gorm.Session{NewDB: true}).
		Model(&models.Subscription{}).
		Select("author_id").
		Where("user_id = ?", userID)

	var count int64
	if err := h.db.WithContext(ctx).Model(&models.User{}).Where("id IN (?)", following).Count(&count).Error; err != nil {
		apierr.Respond(c, err)
		return
	}
	if err := params.Check(count); err != nil {
		apierr.Respond(c, err)
		return
	}

	var authors []models.User
	err = h.db.WithContext(ctx).
		Where("id IN (?)", following).
		Scopes(params.Scope).
		Order("username ASC").
		Find(&authors).Error
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	results, err := h.authors(ctx, authors, limit)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, pagination.New(c, params, count, results))
}

// authors builds the followed-author read models. Every author passed in
// is followed by the viewer. limit 0 embeds all recipes.
func (h *Handler) authors(ctx context.Context, users []models.User, limit int) ([]responses.Author, error) {
	ids := make([]uint, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}

	var counts []struct {
		AuthorID uint
		Total    int64
	}
	err := h.db.WithContext(ctx).
		Model(&models.Recipe{}).
		Select("author_id, COUNT(*) AS total").
		Where("author_id IN ?", ids).
		Group("author_id").
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count recipes: %w", err)
	}
	totals := make(map[uint]int64, len(counts))
	for _, row := range counts {
		totals[row.AuthorID] = row.Total
	}

	out := make([]responses.Author, len(users))
	for i := range users {
		q := h.db.WithContext(ctx).
			Where("author_id = ?", users[i].ID).
			Order("pub_date DESC, id DESC")
		if limit > 0 {
			q = q.Limit(limit)
		}
		var recipes []models.Recipe
		if err := q.Find(&recipes).Error; err != nil {
			return nil, fmt.Errorf("failed to load recipes: %w", err)
		}

		short := make([]responses.ShortRecipe, len(recipes))
		for j := range recipes {
			short[j] = responses.NewShortRecipe(&recipes[j], h.storage.URL(recipes[j].Image))
		}
		out[i] = responses.Author{
			User:         responses.NewUser(&users[i], true),
			Recipes:      short,
			RecipesCount: totals[users[i].ID],
		}
	}
	return out, nil
}

// RegisterRoutes registers user and subscription routes on the given
// router group. Registration and the current-user endpoints live in auth.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/", auth.OptionalAuth(), h.List)
	rg.GET("/subscriptions/", auth.AuthMiddleware(), h.Subscriptions)
	rg.GET("/:id/", auth.OptionalAuth(), h.Get)

	protected := rg.Group("")
	protected.Use(auth.AuthMiddleware())
	{
		protected.POST("/:id/subscribe/", h.Subscribe)
		protected.DELETE("/:id/subscribe/", h.Unsubscribe)
	}
}
