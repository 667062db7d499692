// Package responses holds the JSON read models shared across handlers.
package responses

import "github.com/mikepea/foodgram/pkg/foodgram/models"

// User is the public representation of a user.
type User struct {
	Email        string `json:"email"`
	ID           uint   `json:"id"`
	Username     string `json:"username"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	IsSubscribed bool   `json:"is_subscribed"`
}

func NewUser(u *models.User, subscribed bool) User {
	return User{
		Email:        u.Email,
		ID:           u.ID,
		Username:     u.Username,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		IsSubscribed: subscribed,
	}
}

type Tag struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
	Slug  string `json:"slug"`
}

func NewTag(t *models.Tag) Tag {
	return Tag{ID: t.ID, Name: t.Name, Color: t.Color, Slug: t.Slug}
}

func NewTags(tags []models.Tag) []Tag {
	out := make([]Tag, len(tags))
	for i := range tags {
		out[i] = NewTag(&tags[i])
	}
	return out
}

type Ingredient struct {
	ID              uint   `json:"id"`
	Name            string `json:"name"`
	MeasurementUnit string `json:"measurement_unit"`
}

func NewIngredient(i *models.Ingredient) Ingredient {
	return Ingredient{ID: i.ID, Name: i.Name, MeasurementUnit: i.MeasurementUnit}
}

func NewIngredients(items []models.Ingredient) []Ingredient {
	out := make([]Ingredient, len(items))
	for i := range items {
		out[i] = NewIngredient(&items[i])
	}
	return out
}

// ShortRecipe is the compact recipe returned by favorite/cart toggles and
// embedded in subscription listings.
type ShortRecipe struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	Image       string `json:"image"`
	CookingTime int    `json:"cooking_time"`
}

// NewShortRecipe builds a ShortRecipe; imageURL is the public URL of the
// recipe image.
func NewShortRecipe(r *models.Recipe, imageURL string) ShortRecipe {
	return ShortRecipe{ID: r.ID, Name: r.Name, Image: imageURL, CookingTime: r.CookingTime}
}

// Author is a followed user together with their recipes.
type Author struct {
	User
	Recipes      []ShortRecipe `json:"recipes"`
	RecipesCount int64         `json:"recipes_count"`
}
