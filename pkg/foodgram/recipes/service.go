package recipes

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mikepea/foodgram/pkg/foodgram/apierr"
	"github.com/mikepea/foodgram/pkg/foodgram/logging"
	"github.com/mikepea/foodgram/pkg/foodgram/media"
	"github.com/mikepea/foodgram/pkg/foodgram/models"
	"github.com/mikepea/foodgram/pkg/foodgram/pagination"
	"github.com/mikepea/foodgram/pkg/foodgram/relations"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var errNotAuthor = &apierr.Error{
	Kind:    apierr.KindPermissionDenied,
	Message: "Only the author can change this recipe.",
}

// Service implements recipe persistence on top of GORM.
type Service struct {
	db            *gorm.DB
	storage       *media.Storage
	favorites     *relations.PairStore[models.Favorite]
	carts         *relations.PairStore[models.Cart]
	subscriptions *relations.PairStore[models.Subscription]
}

// NewService creates a recipe service storing images in storage.
func NewService(db *gorm.DB, storage *media.Storage) *Service {
	return &Service{
		db:            db,
		storage:       storage,
		favorites:     relations.FavoriteStore(db),
		carts:         relations.CartStore(db),
		subscriptions: relations.SubscriptionStore(db),
	}
}

// Filter narrows a recipe listing. ViewerID 0 means anonymous, in which
// case the favorite and cart filters are ignored.
type Filter struct {
	Tags             []string
	AuthorID         uint
	ViewerID         uint
	IsFavorited      bool
	IsInShoppingCart bool
}

// Scope applies the filter to a recipes query.
func (f Filter) Scope(db *gorm.DB) *gorm.DB {
	if len(f.Tags) > 0 {
		db = db.Where("recipes.id IN (?)",
			db.Session(&gorm.Session{NewDB: true}).
				Table("tag_recipes").
				Select("tag_recipes.recipe_id").
				Joins("JOIN tags ON tags.id = tag_recipes.tag_id").
				Where("tags.slug IN ?", f.Tags))
	}
	if f.AuthorID != 0 {
		db = db.Where("recipes.author_id = ?", f.AuthorID)
	}
	if f.ViewerID != 0 && f.IsFavorited {
		db = db.Where("recipes.id IN (?)",
			db.Session(&gorm.Session{NewDB: true}).
				Model(&models.Favorite{}).
				Select("recipe_id").
				Where("user_id = ?", f.ViewerID))
	}
	if f.ViewerID != 0 && f.IsInShoppingCart {
		db = db.Where("recipes.id IN (?)",
			db.Session(&gorm.Session{NewDB: true}).
				Model(&models.Cart{}).
				Select("recipe_id").
				Where("user_id = ?", f.ViewerID))
	}
	return db
}

// listOrder is newest first; name and id break ties deterministically.
const listOrder = "recipes.pub_date DESC, recipes.name ASC, recipes.id DESC"

func (s *Service) preload(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Author").
		Preload("Tags", func(db *gorm.DB) *gorm.DB { return db.Order("tags.name ASC") }).
		Preload("AmountIngredients", func(db *gorm.DB) *gorm.DB { return db.Order("amount_ingredients.id ASC") }).
		Preload("AmountIngredients.Ingredient")
}

// List returns one page of recipes matching f and the total match count.
func (s *Service) List(ctx context.Context, f Filter, p pagination.Params) ([]models.Recipe, int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Recipe{}).Scopes(f.Scope).Count(&count).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count recipes: %w", err)
	}
	if err := p.Check(count); err != nil {
		return nil, 0, err
	}

	var recipes []models.Recipe
	err := s.db.WithContext(ctx).
		Scopes(f.Scope, p.Scope, s.preload).
		Order(listOrder).
		Find(&recipes).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list recipes: %w", err)
	}
	return recipes, count, nil
}

// Get loads a recipe with its author, tags and ingredients.
func (s *Service) Get(ctx context.Context, id uint) (*models.Recipe, error) {
	var recipe models.Recipe
	if err := s.db.WithContext(ctx).Scopes(s.preload).First(&recipe, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.NotFound("Recipe")
		}
		return nil, err
	}
	return &recipe, nil
}

// Find loads a bare recipe row.
func (s *Service) Find(ctx context.Context, id uint) (*models.Recipe, error) {
	var recipe models.Recipe
	if err := s.db.WithContext(ctx).First(&recipe, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.NotFound("Recipe")
		}
		return nil, err
	}
	return &recipe, nil
}

// Create validates req and stores a new recipe by author. The recipe row,
// its tags and its ingredient lines are written in one transaction.
func (s *Service) Create(ctx context.Context, author *models.User, req RecipeWriteRequest) (*models.Recipe, error) {
	if err := req.Validate(ActionCreate); err != nil {
		return nil, err
	}

	image, err := s.storage.SaveImage(author.Username, *req.Image)
	if err != nil {
		return nil, err
	}

	recipe := models.Recipe{
		AuthorID:    author.ID,
		Name:        strings.TrimSpace(*req.Name),
		Image:       image,
		Text:        *req.Text,
		CookingTime: *req.CookingTime,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkExists(tx, &models.Tag{}, "tags", *req.Tags); err != nil {
			return err
		}
		if err := checkExists(tx, &models.Ingredient{}, "ingredients", req.IngredientIDs()); err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Create(&recipe).Error; err != nil {
			return fmt.Errorf("failed to create recipe: %w", err)
		}
		if err := setTags(tx, recipe.ID, *req.Tags); err != nil {
			return err
		}
		return writeIngredients(tx, recipe.ID, *req.Ingredients)
	})
	if err != nil {
		s.releaseImage(ctx, image)
		return nil, err
	}

	return s.Get(ctx, recipe.ID)
}

// Update applies req to recipe on behalf of editor. Provided tags and
// ingredients replace the existing sets; absent fields are kept on a
// partial update.
func (s *Service) Update(ctx context.Context, editor *models.User, recipe *models.Recipe, req RecipeWriteRequest, action Action) (*models.Recipe, error) {
	if err := CanEdit(editor, recipe); err != nil {
		return nil, err
	}
	if err := req.Validate(action); err != nil {
		return nil, err
	}

	oldImage := recipe.Image
	if req.Image != nil {
		image, err := s.storage.SaveImage(editor.Username, *req.Image)
		if err != nil {
			return nil, err
		}
		recipe.Image = image
	}
	if req.Name != nil {
		recipe.Name = strings.TrimSpace(*req.Name)
	}
	if req.Text != nil {
		recipe.Text = *req.Text
	}
	if req.CookingTime != nil {
		recipe.CookingTime = *req.CookingTime
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if req.Tags != nil {
			if err := checkExists(tx, &models.Tag{}, "tags", *req.Tags); err != nil {
				return err
			}
		}
		if req.Ingredients != nil {
			if err := checkExists(tx, &models.Ingredient{}, "ingredients", req.IngredientIDs()); err != nil {
				return err
			}
		}
		if err := tx.Omit(clause.Associations).Save(recipe).Error; err != nil {
			return fmt.Errorf("failed to update recipe: %w", err)
		}
		if req.Tags != nil {
			if err := setTags(tx, recipe.ID, *req.Tags); err != nil {
				return err
			}
		}
		if req.Ingredients != nil {
			return replaceIngredients(tx, recipe.ID, *req.Ingredients)
		}
		return nil
	})
	if err != nil {
		if recipe.Image != oldImage {
			s.releaseImage(ctx, recipe.Image)
		}
		return nil, err
	}
	if recipe.Image != oldImage {
		s.releaseImage(ctx, oldImage)
	}

	return s.Get(ctx, recipe.ID)
}

// Delete removes a recipe. Tags, ingredient lines, favorites and cart
// entries go with it.
func (s *Service) Delete(ctx context.Context, editor *models.User, recipe *models.Recipe) error {
	if err := CanEdit(editor, recipe); err != nil {
		return err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("recipe_id = ?", recipe.ID).Delete(&models.TagRecipe{}).Error; err != nil {
			return fmt.Errorf("failed to clear tags: %w", err)
		}
		if err := tx.Delete(&models.Recipe{}, recipe.ID).Error; err != nil {
			return fmt.Errorf("failed to delete recipe: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.releaseImage(ctx, recipe.Image)
	return nil
}

// CanEdit allows the author and admins to change a recipe.
func CanEdit(user *models.User, recipe *models.Recipe) error {
	if user.ID == recipe.AuthorID || user.IsAdmin() {
		return nil
	}
	return errNotAuthor
}

// releaseImage removes an image file no recipe refers to any more. Image
// names are content-derived, so another recipe may share the file.
func (s *Service) releaseImage(ctx context.Context, image string) {
	if image == "" {
		return
	}
	var refs int64
	if err := s.db.WithContext(ctx).Model(&models.Recipe{}).Where("image = ?", image).Count(&refs).Error; err != nil || refs > 0 {
		return
	}
	if err := s.storage.Remove(image); err != nil {
		logging.Warn().Err(err).Str("image", image).Msg("failed to remove recipe image")
	}
}

// Present builds read models for recipes as seen by viewerID (0 for
// anonymous), loading favorite, cart and subscription flags in batches.
func (s *Service) Present(ctx context.Context, viewerID uint, recipes []models.Recipe) ([]RecipeResponse, error) {
	recipeIDs := make([]uint, len(recipes))
	authorIDs := make([]uint, len(recipes))
	for i, r := range recipes {
		recipeIDs[i] = r.ID
		authorIDs[i] = r.AuthorID
	}

	favorited, err := s.favorites.Present(ctx, viewerID, recipeIDs)
	if err != nil {
		return nil, err
	}
	inCart, err := s.carts.Present(ctx, viewerID, recipeIDs)
	if err != nil {
		return nil, err
	}
	subscribed, err := s.subscriptions.Present(ctx, viewerID, authorIDs)
	if err != nil {
		return nil, err
	}

	out := make([]RecipeResponse, len(recipes))
	for i := range recipes {
		r := &recipes[i]
		out[i] = newRecipeResponse(r, s.storage.URL(r.Image), viewerState{
			favorited:  favorited[r.ID],
			inCart:     inCart[r.ID],
			subscribed: subscribed[r.AuthorID],
		})
	}
	return out, nil
}

// PresentOne builds the read model of a single recipe.
func (s *Service) PresentOne(ctx context.Context, viewerID uint, recipe *models.Recipe) (RecipeResponse, error) {
	out, err := s.Present(ctx, viewerID, []models.Recipe{*recipe})
	if err != nil {
		return RecipeResponse{}, err
	}
	return out[0], nil
}
