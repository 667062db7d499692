package models

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
)

// ErrInvalidAmount is returned when a recipe or ingredient quantity is
// below one.
var ErrInvalidAmount = errors.New("value must be at least 1")

// Recipe is a user-published recipe. PubDate is set on insert and never
// updated afterwards.
type Recipe struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	UpdatedAt   time.Time `json:"updated_at"`
	PubDate     time.Time `gorm:"autoCreateTime;index;<-:create" json:"pub_date"`
	AuthorID    uint      `gorm:"not null;index" json:"author_id"`
	Name        string    `gorm:"size:200;index;not null" json:"name"`
	Image       string    `gorm:"not null" json:"image"`
	Text        string    `gorm:"not null" json:"text"`
	CookingTime int       `gorm:"not null;check:chk_recipes_cooking_time,cooking_time >= 1" json:"cooking_time"`
	NameLower   string    `gorm:"size:200;index" json:"-"`

	// Relationships
	Author            User               `gorm:"foreignKey:AuthorID" json:"-"`
	Tags              []Tag              `gorm:"many2many:tag_recipes;constraint:OnDelete:CASCADE" json:"-"`
	AmountIngredients []AmountIngredient `gorm:"foreignKey:RecipeID;constraint:OnDelete:CASCADE" json:"-"`
	Favorites         []Favorite         `gorm:"foreignKey:RecipeID;constraint:OnDelete:CASCADE" json:"-"`
	CartItems         []Cart             `gorm:"foreignKey:RecipeID;constraint:OnDelete:CASCADE" json:"-"`
}

func (r *Recipe) BeforeSave(tx *gorm.DB) error {
	if r.CookingTime < 1 {
		return ErrInvalidAmount
	}
	r.NameLower = strings.ToLower(r.Name)
	return nil
}

// AmountIngredient records how much of an ingredient a recipe needs.
// A recipe lists each ingredient at most once.
type AmountIngredient struct {
	ID           uint `gorm:"primarykey" json:"id"`
	RecipeID     uint `gorm:"not null;uniqueIndex:idx_amount_ingredient_recipe" json:"recipe_id"`
	IngredientID uint `gorm:"not null;uniqueIndex:idx_amount_ingredient_recipe;index" json:"ingredient_id"`
	Amount       int  `gorm:"not null;check:chk_amount_ingredients_amount,amount >= 1" json:"amount"`

	// Relationships
	Ingredient Ingredient `gorm:"foreignKey:IngredientID;constraint:OnDelete:CASCADE" json:"ingredient"`
}

func (a *AmountIngredient) BeforeSave(tx *gorm.DB) error {
	if a.Amount < 1 {
		return ErrInvalidAmount
	}
	return nil
}
