package models

import (
	"github.com/mikepea/foodgram/pkg/foodgram/validators"
	"gorm.io/gorm"
)

// Tag labels recipes (breakfast, lunch, ...). Name, color and slug are
// each unique.
type Tag struct {
	ID    uint   `gorm:"primarykey" json:"id"`
	Name  string `gorm:"size:200;uniqueIndex;not null" json:"name"`
	Color string `gorm:"size:7;uniqueIndex;not null" json:"color"`
	Slug  string `gorm:"size:200;uniqueIndex;not null" json:"slug"`

	// Relationships
	Recipes []Recipe `gorm:"many2many:tag_recipes;constraint:OnDelete:CASCADE" json:"-"`
}

// BeforeSave rejects malformed colors regardless of the write path.
func (t *Tag) BeforeSave(tx *gorm.DB) error {
	return validators.ValidateHexColor(t.Color)
}

// TagRecipe is the join row between tags and recipes.
type TagRecipe struct {
	TagID    uint `gorm:"primaryKey"`
	RecipeID uint `gorm:"primaryKey;index"`
}
