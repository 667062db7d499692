package models

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllModels returns all models for migration
func AllModels() []interface{} {
	return []interface{}{
		&User{},
		&Tag{},
		&Ingredient{},
		&Recipe{},
		&AmountIngredient{},
		&Favorite{},
		&Cart{},
		&Subscription{},
	}
}

// AutoMigrate runs GORM auto-migration for all models. The tag_recipes
// join table is backed by TagRecipe so its composite key is the
// uniqueness constraint; it is created through the Recipe.Tags relation
// so it carries the cascading foreign keys.
func AutoMigrate(db *gorm.DB) error {
	if err := db.SetupJoinTable(&Recipe{}, "Tags", &TagRecipe{}); err != nil {
		return err
	}
	if err := db.SetupJoinTable(&Tag{}, "Recipes", &TagRecipe{}); err != nil {
		return err
	}
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return err
	}
	// Older schemas made (name, unit) unique.
	if m := db.Migrator(); m.HasIndex(&Ingredient{}, "idx_ingredients_name_unit") {
		if err := m.DropIndex(&Ingredient{}, "idx_ingredients_name_unit"); err != nil {
			return err
		}
	}
	if err := backfillNameLower[Ingredient](db); err != nil {
		return err
	}
	return backfillNameLower[Recipe](db)
}

// backfillNameLower fills name_lower for rows created before the column
// existed. The BeforeSave hooks compute the value.
func backfillNameLower[T any](db *gorm.DB) error {
	var stale []T
	if err := db.Where("name_lower IS NULL OR name_lower = ''").Find(&stale).Error; err != nil {
		return err
	}
	for i := range stale {
		if err := db.Omit(clause.Associations).Save(&stale[i]).Error; err != nil {
			return err
		}
	}
	return nil
}
