package recipes

import (
	"errors"
	"fmt"

	"github.com/mikepea/foodgram/pkg/foodgram/apierr"
	"github.com/mikepea/foodgram/pkg/foodgram/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// writeIngredients bulk-inserts the ingredient lines of a recipe. It runs
// inside the caller's transaction; items must already be free of repeats.
func writeIngredients(tx *gorm.DB, recipeID uint, items []IngredientAmount) error {
	if len(items) == 0 {
		return nil
	}

	rows := make([]models.AmountIngredient, len(items))
	for i, item := range items {
		rows[i] = models.AmountIngredient{
			RecipeID:     recipeID,
			IngredientID: item.ID,
			Amount:       item.Amount,
		}
	}

	if err := tx.Omit(clause.Associations).Create(&rows).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apierr.Internal("repeated ingredient reached the store", err)
		}
		return fmt.Errorf("failed to write ingredients: %w", err)
	}
	return nil
}

// replaceIngredients makes items the exact ingredient set of the recipe.
func replaceIngredients(tx *gorm.DB, recipeID uint, items []IngredientAmount) error {
	if err := tx.Where("recipe_id = ?", recipeID).Delete(&models.AmountIngredient{}).Error; err != nil {
		return fmt.Errorf("failed to clear ingredients: %w", err)
	}
	return writeIngredients(tx, recipeID, items)
}

// setTags makes tagIDs the exact tag set of the recipe.
func setTags(tx *gorm.DB, recipeID uint, tagIDs []uint) error {
	if err := tx.Where("recipe_id = ?", recipeID).Delete(&models.TagRecipe{}).Error; err != nil {
		return fmt.Errorf("failed to clear tags: %w", err)
	}
	if len(tagIDs) == 0 {
		return nil
	}

	rows := make([]models.TagRecipe, len(tagIDs))
	for i, id := range tagIDs {
		rows[i] = models.TagRecipe{TagID: id, RecipeID: recipeID}
	}
	if err := tx.Create(&rows).Error; err != nil {
		return fmt.Errorf("failed to write tags: %w", err)
	}
	return nil
}

// checkExists fails with a field validation error naming the first id in
// ids that has no row in model's table.
func checkExists(tx *gorm.DB, model interface{}, field string, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}

	var found []uint
	if err := tx.Model(model).Where("id IN ?", ids).Pluck("id", &found).Error; err != nil {
		return fmt.Errorf("failed to check %s: %w", field, err)
	}
	known := make(map[uint]bool, len(found))
	for _, id := range found {
		known[id] = true
	}
	for _, id := range ids {
		if !known[id] {
			return apierr.Validation(field, fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", id))
		}
	}
	return nil
}
