package recipes

import (
	"errors"
	"testing"

	"github.com/mikepea/foodgram/pkg/foodgram/apierr"
)

func ptr[T any](v T) *T { return &v }

func fullRequest() RecipeWriteRequest {
	return RecipeWriteRequest{
		Ingredients: &[]IngredientAmount{{ID: 1, Amount: 10}, {ID: 2, Amount: 5}},
		Tags:        &[]uint{1, 2, 1},
		Image:       ptr("data:image/png;base64,AAAA"),
		Name:        ptr("Soup"),
		Text:        ptr("Boil."),
		CookingTime: ptr(30),
	}
}

func fieldOf(err error) string {
	var e *apierr.Error
	if errors.As(err, &e) {
		return e.Field
	}
	return ""
}

func TestValidateCreateRequiresAllFields(t *testing.T) {
	tests := []struct {
		field string
		clear func(r *RecipeWriteRequest)
	}{
		{"ingredients", func(r *RecipeWriteRequest) { r.Ingredients = nil }},
		{"tags", func(r *RecipeWriteRequest) { r.Tags = nil }},
		{"image", func(r *RecipeWriteRequest) { r.Image = nil }},
		{"name", func(r *RecipeWriteRequest) { r.Name = nil }},
		{"text", func(r *RecipeWriteRequest) { r.Text = nil }},
		{"cooking_time", func(r *RecipeWriteRequest) { r.CookingTime = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			req := fullRequest()
			tt.clear(&req)
			err := req.Validate(ActionCreate)
			if !errors.Is(err, apierr.ErrValidation) {
				t.Fatalf("Expected validation error, got %v", err)
			}
			if fieldOf(err) != tt.field {
				t.Errorf("Expected field %s, got %s", tt.field, fieldOf(err))
			}

			// The same request is a valid partial update.
			req = fullRequest()
			tt.clear(&req)
			if err := req.Validate(ActionPartialUpdate); err != nil {
				t.Errorf("Expected partial update without %s to pass, got %v", tt.field, err)
			}
		})
	}
}

func TestValidateDuplicateIngredients(t *testing.T) {
	req := fullRequest()
	req.Ingredients = &[]IngredientAmount{{ID: 3, Amount: 1}, {ID: 3, Amount: 2}}

	for _, action := range []Action{ActionCreate, ActionUpdate, ActionPartialUpdate} {
		if err := req.Validate(action); !errors.Is(err, apierr.ErrDuplicateIngredient) {
			t.Errorf("%s: expected ErrDuplicateIngredient, got %v", action, err)
		}
	}
}

func TestValidateDedupesTags(t *testing.T) {
	req := fullRequest()
	if err := req.Validate(ActionCreate); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if got := *req.Tags; len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("Expected tags [1 2], got %v", got)
	}
}

func TestValidateRejectsEmptyValues(t *testing.T) {
	tests := []struct {
		field string
		set   func(r *RecipeWriteRequest)
	}{
		{"ingredients", func(r *RecipeWriteRequest) { r.Ingredients = &[]IngredientAmount{} }},
		{"tags", func(r *RecipeWriteRequest) { r.Tags = &[]uint{} }},
		{"image", func(r *RecipeWriteRequest) { r.Image = ptr("") }},
		{"name", func(r *RecipeWriteRequest) { r.Name = ptr("   ") }},
		{"cooking_time", func(r *RecipeWriteRequest) { r.CookingTime = ptr(0) }},
	}
	for _, tt := range tests {
		req := RecipeWriteRequest{}
		tt.set(&req)
		if err := req.Validate(ActionPartialUpdate); fieldOf(err) != tt.field {
			t.Errorf("Expected %s error, got %v", tt.field, err)
		}
	}
}
