package auth

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/foodgram/pkg/foodgram/apierr"
	"github.com/mikepea/foodgram/pkg/foodgram/models"
	"gorm.io/gorm"
)

const (
	// ContextKeyUserID is the key for user ID in gin context
	ContextKeyUserID = "user_id"
	// ContextKeyEmail is the key for email in gin context
	ContextKeyEmail = "email"
	// ContextKeySystemRole is the key for system role in gin context
	ContextKeySystemRole = "system_role"
)

var (
	errNoCredentials   = apierr.ErrUnauthorized
	errBadHeader       = apierr.Unauthorized("Invalid authorization header format.")
	errInvalidToken    = apierr.Unauthorized("Invalid token.")
	errExpiredToken    = apierr.Unauthorized("Token has expired.")
	errAdminRequired   = &apierr.Error{Kind: apierr.KindPermissionDenied, Message: "Admin access required."}
	errUserDeactivated = apierr.Unauthorized("User not found.")
)

// tokenFromHeader accepts "Bearer <jwt>" and "Token <jwt>".
func tokenFromHeader(header string) (string, error) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok {
		return "", errBadHeader
	}
	switch strings.ToLower(scheme) {
	case "bearer", "token":
	default:
		return "", errBadHeader
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errBadHeader
	}
	return token, nil
}

// authenticate validates the Authorization header and stores the claims
// in the context. It returns errNoCredentials when the header is absent.
func authenticate(c *gin.Context) error {
	header := c.GetHeader("Authorization")
	if header == "" {
		return errNoCredentials
	}
	token, err := tokenFromHeader(header)
	if err != nil {
		return err
	}

	claims, err := ValidateToken(token)
	if err != nil {
		if errors.Is(err, ErrExpiredToken) {
			return errExpiredToken
		}
		return errInvalidToken
	}

	c.Set(ContextKeyUserID, claims.UserID)
	c.Set(ContextKeyEmail, claims.Email)
	c.Set(ContextKeySystemRole, claims.SystemRole)
	return nil
}

// AuthMiddleware validates JWT tokens and sets user info in context
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := authenticate(c); err != nil {
			apierr.Respond(c, err)
			return
		}
		c.Next()
	}
}

// OptionalAuth authenticates the request if credentials are present.
// Anonymous requests pass through; a malformed or invalid token is still
// rejected.
func OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := authenticate(c); err != nil && err != errNoCredentials {
			apierr.Respond(c, err)
			return
		}
		c.Next()
	}
}

// RequireAdmin middleware checks if the user has admin system role
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := GetSystemRole(c)
		if !exists {
			apierr.Respond(c, errNoCredentials)
			return
		}

		if role != string(models.SystemRoleAdmin) {
			apierr.Respond(c, errAdminRequired)
			return
		}

		c.Next()
	}
}

// GetUserID returns the user ID from the gin context
func GetUserID(c *gin.Context) (uint, bool) {
	userID, exists := c.Get(ContextKeyUserID)
	if !exists {
		return 0, false
	}
	return userID.(uint), true
}

// GetEmail returns the email from the gin context
func GetEmail(c *gin.Context) (string, bool) {
	email, exists := c.Get(ContextKeyEmail)
	if !exists {
		return "", false
	}
	return email.(string), true
}

// GetSystemRole returns the system role from the gin context
func GetSystemRole(c *gin.Context) (string, bool) {
	role, exists := c.Get(ContextKeySystemRole)
	if !exists {
		return "", false
	}
	return role.(string), true
}

// IsAdmin reports whether the authenticated user is an admin.
func IsAdmin(c *gin.Context) bool {
	role, _ := GetSystemRole(c)
	return role == string(models.SystemRoleAdmin)
}

// CurrentUser loads the authenticated user. A token for a deleted user is
// treated as unauthenticated.
func CurrentUser(c *gin.Context, db *gorm.DB) (*models.User, error) {
	userID, ok := GetUserID(c)
	if !ok {
		return nil, errNoCredentials
	}
	var user models.User
	if err := db.WithContext(c.Request.Context()).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errUserDeactivated
		}
		return nil, err
	}
	return &user, nil
}
