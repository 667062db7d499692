package relations

import (
	"context"

	"github.com/mikepea/foodgram/pkg/foodgram/apierr"
	"github.com/mikepea/foodgram/pkg/foodgram/metrics"
	"github.com/mikepea/foodgram/pkg/foodgram/models"
	"gorm.io/gorm"
)

// Toggle adds and removes a relation between a subject S and an object O.
// Callers pass domain values; SubjectKey and ObjectKey extract the ids
// the Store works with.
type Toggle[S, O any] struct {
	Name       string
	Store      Store
	SubjectKey func(S) uint
	ObjectKey  func(O) uint
	// Guard rejects a pair before touching the store.
	Guard func(subject S, object O) error
	// ErrExists is returned by Add when the pair is already present,
	// ErrMissing by Remove when it is absent.
	ErrExists  error
	ErrMissing error
}

// Add creates the relation. It fails with ErrExists if it already exists.
func (t *Toggle[S, O]) Add(ctx context.Context, subject S, object O) error {
	if t.Guard != nil {
		if err := t.Guard(subject, object); err != nil {
			metrics.RecordToggle(t.Name, "add", "rejected")
			return err
		}
	}

	created, err := t.Store.Create(ctx, t.SubjectKey(subject), t.ObjectKey(object))
	switch {
	case err != nil:
		metrics.RecordToggle(t.Name, "add", "error")
		return err
	case !created:
		metrics.RecordToggle(t.Name, "add", "already_exists")
		return t.ErrExists
	}
	metrics.RecordToggle(t.Name, "add", "ok")
	return nil
}

// Remove deletes the relation. It fails with ErrMissing if there was
// nothing to delete.
func (t *Toggle[S, O]) Remove(ctx context.Context, subject S, object O) error {
	deleted, err := t.Store.Delete(ctx, t.SubjectKey(subject), t.ObjectKey(object))
	switch {
	case err != nil:
		metrics.RecordToggle(t.Name, "remove", "error")
		return err
	case !deleted:
		metrics.RecordToggle(t.Name, "remove", "not_found")
		return t.ErrMissing
	}
	metrics.RecordToggle(t.Name, "remove", "ok")
	return nil
}

// Has reports whether the relation exists.
func (t *Toggle[S, O]) Has(ctx context.Context, subject S, object O) (bool, error) {
	return t.Store.Exists(ctx, t.SubjectKey(subject), t.ObjectKey(object))
}

var (
	ErrFavoriteExists     = apierr.AlreadyExists("You have already added this recipe to favorites.")
	ErrFavoriteMissing    = apierr.RelationNotFound("You did not add this recipe to favorites.")
	ErrCartExists         = apierr.AlreadyExists("You have already added this recipe to the shopping cart.")
	ErrCartMissing        = apierr.RelationNotFound("You did not add this recipe to the shopping cart.")
	ErrSubscriptionExists = apierr.AlreadyExists("You have already subscribed to this user.")
	ErrNotSubscribed      = apierr.RelationNotFound("You are not subscribed to this user.")
)

func userKey(u *models.User) uint { return u.ID }
func recipeKey(r *models.Recipe) uint { return r.ID }

// RecipeToggle relates a user to a recipe.
type RecipeToggle = Toggle[*models.User, *models.Recipe]

// UserToggle relates a user to another user.
type UserToggle = Toggle[*models.User, *models.User]

// FavoriteStore returns the store backing the favorites relation.
func FavoriteStore(db *gorm.DB) *PairStore[models.Favorite] {
	return NewPairStore(db, "user_id", "recipe_id", func(userID, recipeID uint) *models.Favorite {
		return &models.Favorite{UserID: userID, RecipeID: recipeID}
	})
}

// CartStore returns the store backing the shopping cart relation.
func CartStore(db *gorm.DB) *PairStore[models.Cart] {
	return NewPairStore(db, "user_id", "recipe_id", func(userID, recipeID uint) *models.Cart {
		return &models.Cart{UserID: userID, RecipeID: recipeID}
	})
}

// SubscriptionStore returns the store backing subscriptions.
func SubscriptionStore(db *gorm.DB) *PairStore[models.Subscription] {
	return NewPairStore(db, "user_id", "author_id", func(userID, authorID uint) *models.Subscription {
		return &models.Subscription{UserID: userID, AuthorID: authorID}
	})
}

// Favorites toggles a recipe in a user's favorites.
func Favorites(db *gorm.DB) *RecipeToggle {
	return &RecipeToggle{
		Name:       "favorite",
		Store:      FavoriteStore(db),
		SubjectKey: userKey,
		ObjectKey:  recipeKey,
		ErrExists:  ErrFavoriteExists,
		ErrMissing: ErrFavoriteMissing,
	}
}

// Carts toggles a recipe in a user's shopping cart.
func Carts(db *gorm.DB) *RecipeToggle {
	return &RecipeToggle{
		Name:       "cart",
		Store:      CartStore(db),
		SubjectKey: userKey,
		ObjectKey:  recipeKey,
		ErrExists:  ErrCartExists,
		ErrMissing: ErrCartMissing,
	}
}

// Subscriptions toggles a subscription from a user to an author.
// Subscribing to oneself is always rejected.
func Subscriptions(db *gorm.DB) *UserToggle {
	return &UserToggle{
		Name:       "subscription",
		Store:      SubscriptionStore(db),
		SubjectKey: userKey,
		ObjectKey:  userKey,
		Guard:      notSelf,
		ErrExists:  ErrSubscriptionExists,
		ErrMissing: ErrNotSubscribed,
	}
}

func notSelf(user, author *models.User) error {
	if user.ID == author.ID {
		return apierr.ErrSelfSubscription
	}
	return nil
}
