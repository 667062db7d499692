package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/foodgram/pkg/foodgram/apierr"
	"github.com/mikepea/foodgram/pkg/foodgram/models"
	"github.com/mikepea/foodgram/pkg/foodgram/responses"
	"github.com/mikepea/foodgram/pkg/foodgram/validators"
	"gorm.io/gorm"
)

// Handler handles registration, token and password requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new auth handler
func NewHandler(db *gorm.DB) *Handler {
	validators.Register()
	return &Handler{db: db}
}

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Email     string `json:"email" binding:"required,email,max=254"`
	Username  string `json:"username" binding:"required,max=150,username"`
	FirstName string `json:"first_name" binding:"required,max=150"`
	LastName  string `json:"last_name" binding:"required,max=150"`
	Password  string `json:"password" binding:"required,min=8,max=150"`
}

// RegisterResponse is the created user, without subscription state
type RegisterResponse struct {
	Email     string `json:"email"`
	ID        uint   `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse carries the issued token
type TokenResponse struct {
	AuthToken string `json:"auth_token"`
}

// SetPasswordRequest represents the password change request body
type SetPasswordRequest struct {
	NewPassword     string `json:"new_password" binding:"required,min=8,max=150"`
	CurrentPassword string `json:"current_password" binding:"required"`
}

var (
	errEmailTaken = &apierr.Error{
		Kind:    apierr.KindAlreadyExists,
		Field:   "email",
		Message: "A user with that email already exists.",
	}
	errUsernameTaken = &apierr.Error{
		Kind:    apierr.KindAlreadyExists,
		Field:   "username",
		Message: "A user with that username already exists.",
	}
	errBadCredentials = apierr.Unauthorized("Unable to log in with provided credentials.")
	errWrongPassword  = apierr.Validation("current_password", "Invalid password.")
)

// Register handles user registration
// @Summary Register a new user
// @Description Create a new user account
// @Tags users
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration details"
// @Success 201 {object} RegisterResponse
// @Failure 400 {object} map[string]string "Validation error or email/username taken"
// @Router /users/ [post]
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.Bind(c, err)
		return
	}

	var count int64
	h.db.Model(&models.User{}).Where("email = ?", req.Email).Count(&count)
	if count > 0 {
		apierr.Respond(c, errEmailTaken)
		return
	}
	h.db.Model(&models.User{}).Where("username = ?", req.Username).Count(&count)
	if count > 0 {
		apierr.Respond(c, errUsernameTaken)
		return
	}

	hashedPassword, err := HashPassword(req.Password)
	if err != nil {
		apierr.Respond(c, apierr.Internal("failed to process password", err))
		return
	}

	user := models.User{
		Email:        req.Email,
		Username:     req.Username,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		PasswordHash: hashedPassword,
		SystemRole:   models.SystemRoleUser,
	}
	if err := h.db.WithContext(c.Request.Context()).Create(&user).Error; err != nil {
		// Lost a race with a concurrent registration.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			apierr.Respond(c, errEmailTaken)
			return
		}
		apierr.Respond(c, err)
		return
	}

	c.JSON(http.StatusCreated, RegisterResponse{
		Email:     user.Email,
		ID:        user.ID,
		Username:  user.Username,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	})
}

// Login handles user login
// @Summary Obtain a token
// @Description Authenticate with email and password to receive a JWT token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login credentials"
// @Success 200 {object} TokenResponse
// @Failure 400 {object} map[string]string "Validation error"
// @Failure 401 {object} map[string]string "Invalid credentials"
// @Router /auth/token/login/ [post]
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.Bind(c, err)
		return
	}

	var user models.User
	if err := h.db.Where("email = ?", req.Email).First(&user).Error; err != nil {
		apierr.Respond(c, errBadCredentials)
		return
	}

	if !CheckPassword(req.Password, user.PasswordHash) {
		apierr.Respond(c, errBadCredentials)
		return
	}

	token, err := GenerateToken(user.ID, user.Email, string(user.SystemRole))
	if err != nil {
		apierr.Respond(c, apierr.Internal("failed to generate token", err))
		return
	}

	c.JSON(http.StatusOK, TokenResponse{AuthToken: token})
}

// Logout handles user logout (client-side token invalidation)
// @Summary Logout
// @Description Tokens are stateless; the client discards its token
// @Tags auth
// @Success 204
// @Failure 401 {object} map[string]string "Authentication required"
// @Security BearerAuth
// @Router /auth/token/logout/ [post]
func (h *Handler) Logout(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Me returns the current authenticated user
// @Summary Get current user
// @Description Get the authenticated user's profile
// @Tags users
// @Produce json
// @Success 200 {object} responses.User
// @Failure 401 {object} map[string]string "Authentication required"
// @Security BearerAuth
// @Router /users/me/ [get]
func (h *Handler) Me(c *gin.Context) {
	user, err := CurrentUser(c, h.db)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, responses.NewUser(user, false))
}

// SetPassword changes the current user's password
// @Summary Change password
// @Tags users
// @Accept json
// @Param request body SetPasswordRequest true "Current and new password"
// @Success 204
// @Failure 400 {object} map[string]string "Validation error or wrong current password"
// @Failure 401 {object} map[string]string "Authentication required"
// @Security BearerAuth
// @Router /users/set_password/ [post]
func (h *Handler) SetPassword(c *gin.Context) {
	var req SetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.Bind(c, err)
		return
	}

	user, err := CurrentUser(c, h.db)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	if !CheckPassword(req.CurrentPassword, user.PasswordHash) {
		apierr.Respond(c, errWrongPassword)
		return
	}

	hash, err := HashPassword(req.NewPassword)
	if err != nil {
		apierr.Respond(c, apierr.Internal("failed to process password", err))
		return
	}
	if err := h.db.Model(user).Update("password_hash", hash).Error; err != nil {
		apierr.Respond(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RegisterRoutes registers the token endpoints under /auth and the
// account endpoints under /users on the given API group
func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	token := api.Group("/auth/token")
	token.POST("/login/", h.Login)
	token.POST("/logout/", AuthMiddleware(), h.Logout)

	users := api.Group("/users")
	users.POST("/", h.Register)
	users.GET("/me/", AuthMiddleware(), h.Me)
	users.POST("/set_password/", AuthMiddleware(), h.SetPassword)
}
