package models

import (
	"strings"

	"gorm.io/gorm"
)

// Ingredient is a product with its measurement unit. The same name may
// appear with different units, and (name, unit) is not unique: repeated
// rows are merged by name and unit when a shopping list is built.
type Ingredient struct {
	ID              uint   `gorm:"primarykey" json:"id"`
	Name            string `gorm:"size:200;index;not null" json:"name"`
	MeasurementUnit string `gorm:"size:200;not null" json:"measurement_unit"`

	// NameLower backs the case-insensitive prefix search. SQLite only
	// folds ASCII in LOWER and LIKE, so it is computed in Go.
	NameLower string `gorm:"size:200;index" json:"-"`
}

// BeforeSave keeps NameLower in step with Name.
func (i *Ingredient) BeforeSave(tx *gorm.DB) error {
	i.NameLower = strings.ToLower(i.Name)
	return nil
}
