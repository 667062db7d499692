package recipes

import (
	"strings"

	"github.com/mikepea/foodgram/pkg/foodgram/apierr"
	"github.com/mikepea/foodgram/pkg/foodgram/models"
	"github.com/mikepea/foodgram/pkg/foodgram/responses"
	"github.com/mikepea/foodgram/pkg/foodgram/validators"
)

// Action is the kind of write a request is validated for.
type Action int

const (
	ActionCreate Action = iota
	ActionUpdate
	ActionPartialUpdate
)

func (a Action) String() string {
	switch a {
	case ActionCreate:
		return "create"
	case ActionUpdate:
		return "update"
	case ActionPartialUpdate:
		return "partial_update"
	}
	return "unknown"
}

// requiresAll reports whether every field must be present.
func (a Action) requiresAll() bool {
	return a == ActionCreate || a == ActionUpdate
}

// IngredientAmount is one ingredient line of a write request.
type IngredientAmount struct {
	ID     uint `json:"id" binding:"required"`
	Amount int  `json:"amount" binding:"min=1"`
}

// RecipeWriteRequest is the body of create and update requests. Fields
// are pointers so a partial update can tell "absent" from "empty".
type RecipeWriteRequest struct {
	Ingredients *[]IngredientAmount `json:"ingredients" binding:"omitempty,min=1,dive"`
	Tags        *[]uint             `json:"tags" binding:"omitempty,min=1"`
	Image       *string             `json:"image"`
	Name        *string             `json:"name" binding:"omitempty,min=1,max=200"`
	Text        *string             `json:"text" binding:"omitempty,min=1"`
	CookingTime *int                `json:"cooking_time" binding:"omitempty,min=1"`
}

const (
	msgRequired = "This field is required."
	msgBlank    = "This field may not be blank."
)

// Validate checks the fields the action requires and rejects repeated
// ingredients. Tag ids are deduplicated in place.
func (r *RecipeWriteRequest) Validate(action Action) error {
	if action.requiresAll() {
		switch {
		case r.Ingredients == nil:
			return apierr.Validation("ingredients", msgRequired)
		case r.Tags == nil:
			return apierr.Validation("tags", msgRequired)
		case r.Image == nil || *r.Image == "":
			return apierr.Validation("image", msgRequired)
		case r.Name == nil:
			return apierr.Validation("name", msgRequired)
		case r.Text == nil:
			return apierr.Validation("text", msgRequired)
		case r.CookingTime == nil:
			return apierr.Validation("cooking_time", msgRequired)
		}
	}

	if r.Ingredients != nil {
		if len(*r.Ingredients) == 0 {
			return apierr.Validation("ingredients", "Add at least one ingredient.")
		}
		if err := validators.UniqueIngredients(r.IngredientIDs()); err != nil {
			return err
		}
	}
	if r.Tags != nil {
		if len(*r.Tags) == 0 {
			return apierr.Validation("tags", "Add at least one tag.")
		}
		tags := dedupe(*r.Tags)
		r.Tags = &tags
	}
	if r.Image != nil && *r.Image == "" {
		return apierr.Validation("image", "The submitted file is empty.")
	}
	if r.Name != nil && strings.TrimSpace(*r.Name) == "" {
		return apierr.Validation("name", msgBlank)
	}
	if r.Text != nil && strings.TrimSpace(*r.Text) == "" {
		return apierr.Validation("text", msgBlank)
	}
	if r.CookingTime != nil && *r.CookingTime < 1 {
		return apierr.Validation("cooking_time", "Ensure this value is greater than or equal to 1.")
	}
	return nil
}

// IngredientIDs returns the ingredient ids in request order.
func (r *RecipeWriteRequest) IngredientIDs() []uint {
	if r.Ingredients == nil {
		return nil
	}
	ids := make([]uint, len(*r.Ingredients))
	for i, item := range *r.Ingredients {
		ids[i] = item.ID
	}
	return ids
}

func dedupe(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// IngredientInRecipe is an ingredient with the amount a recipe needs.
type IngredientInRecipe struct {
	ID              uint   `json:"id"`
	Name            string `json:"name"`
	MeasurementUnit string `json:"measurement_unit"`
	Amount          int    `json:"amount"`
}

// RecipeResponse is the read model of a recipe.
type RecipeResponse struct {
	ID               uint                 `json:"id"`
	Tags             []responses.Tag      `json:"tags"`
	Author           responses.User       `json:"author"`
	Ingredients      []IngredientInRecipe `json:"ingredients"`
	IsFavorited      bool                 `json:"is_favorited"`
	IsInShoppingCart bool                 `json:"is_in_shopping_cart"`
	Name             string               `json:"name"`
	Image            string               `json:"image"`
	Text             string               `json:"text"`
	CookingTime      int                  `json:"cooking_time"`
}

// viewerState carries the per-viewer flags of a recipe.
type viewerState struct {
	favorited  bool
	inCart     bool
	subscribed bool
}

func newRecipeResponse(r *models.Recipe, imageURL string, state viewerState) RecipeResponse {
	ingredients := make([]IngredientInRecipe, len(r.AmountIngredients))
	for i, ai := range r.AmountIngredients {
		ingredients[i] = IngredientInRecipe{
			ID:              ai.Ingredient.ID,
			Name:            ai.Ingredient.Name,
			MeasurementUnit: ai.Ingredient.MeasurementUnit,
			Amount:          ai.Amount,
		}
	}
	return RecipeResponse{
		ID:               r.ID,
		Tags:             responses.NewTags(r.Tags),
		Author:           responses.NewUser(&r.Author, state.subscribed),
		Ingredients:      ingredients,
		IsFavorited:      state.favorited,
		IsInShoppingCart: state.inCart,
		Name:             r.Name,
		Image:            imageURL,
		Text:             r.Text,
		CookingTime:      r.CookingTime,
	}
}
