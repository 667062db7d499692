// Package shoppinglist sums the ingredients of every recipe in a user's
// cart and renders the result as a downloadable report.
package shoppinglist

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"
)

// DateLayout formats report dates as DD_MM_YYYY.
const DateLayout = "02_01_2006"

// Item is one aggregated line. Ingredients are identified by name and
// unit together, so "Flour, g" and "Flour, kg" stay separate.
type Item struct {
	Name            string `json:"name"`
	MeasurementUnit string `json:"measurement_unit"`
	Amount          int64  `json:"amount"`
}

// Aggregate returns the summed ingredients across all recipes in userID's
// cart, ordered by name then unit. An empty cart yields no items.
func Aggregate(ctx context.Context, db *gorm.DB, userID uint) ([]Item, error) {
	var items []Item
	err := db.WithContext(ctx).
		Table("amount_ingredients AS ai").
		Select("ingredients.name AS name, ingredients.measurement_unit AS measurement_unit, SUM(ai.amount) AS amount").
		Joins("JOIN ingredients ON ingredients.id = ai.ingredient_id").
		Joins("JOIN carts ON carts.recipe_id = ai.recipe_id").
		Where("carts.user_id = ?", userID).
		Group("ingredients.name, ingredients.measurement_unit").
		Order("ingredients.name ASC, ingredients.measurement_unit ASC").
		Scan(&items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate shopping list: %w", err)
	}

	// Collations differ between drivers; settle on byte order.
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Name != items[j].Name {
			return items[i].Name < items[j].Name
		}
		return items[i].MeasurementUnit < items[j].MeasurementUnit
	})
	return items, nil
}

// Report is a rendered shopping list for one user on one day.
type Report struct {
	Owner    string
	Username string
	Date     time.Time
	Items    []Item
}

// Build aggregates the cart of the user and stamps the report with now.
func Build(ctx context.Context, db *gorm.DB, userID uint, owner, username string, now time.Time) (*Report, error) {
	items, err := Aggregate(ctx, db, userID)
	if err != nil {
		return nil, err
	}
	return &Report{
		Owner:    owner,
		Username: username,
		Date:     now,
		Items:    items,
	}, nil
}

// Title is the first line of the report.
func (r *Report) Title() string {
	return fmt.Sprintf("Shopping list for %s - %s", r.Owner, r.Date.Format(DateLayout))
}

// Line renders a single item as "<name> - <amount> <unit>".
func (i Item) Line() string {
	return fmt.Sprintf("%s - %d %s", i.Name, i.Amount, i.MeasurementUnit)
}

// Filename returns "{username}_shopping_list_{DD_MM_YYYY}.{ext}".
func (r *Report) Filename(ext string) string {
	return fmt.Sprintf("%s_shopping_list_%s.%s", r.Username, r.Date.Format(DateLayout), ext)
}
