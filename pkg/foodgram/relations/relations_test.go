package relations

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/mikepea/foodgram/pkg/foodgram/apierr"
	"github.com/mikepea/foodgram/pkg/foodgram/database"
	"github.com/mikepea/foodgram/pkg/foodgram/models"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := database.OpenMemory()
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return db
}

func createTestUser(t *testing.T, db *gorm.DB, username string) *models.User {
	user := &models.User{
		Email:        username + "@example.com",
		Username:     username,
		FirstName:    "Test",
		LastName:     "User",
		PasswordHash: "hash",
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	return user
}

func createTestRecipe(t *testing.T, db *gorm.DB, author *models.User) *models.Recipe {
	recipe := &models.Recipe{
		AuthorID:    author.ID,
		Name:        "Borscht",
		Image:       "recipes/images/borscht.png",
		Text:        "Boil beets.",
		CookingTime: 90,
	}
	if err := db.Create(recipe).Error; err != nil {
		t.Fatalf("Failed to create recipe: %v", err)
	}
	return recipe
}

func TestFavoriteAddRemove(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "reader")
	recipe := createTestRecipe(t, db, createTestUser(t, db, "chef"))
	favorites := Favorites(db)

	if err := favorites.Add(ctx, user, recipe); err != nil {
		t.Fatalf("First add failed: %v", err)
	}
	err := favorites.Add(ctx, user, recipe)
	if !errors.Is(err, apierr.ErrAlreadyExists) {
		t.Fatalf("Expected AlreadyExists on second add, got %v", err)
	}
	if apierr.KindOf(err).Status() != 400 {
		t.Errorf("Expected 400 for duplicate add, got %d", apierr.KindOf(err).Status())
	}

	has, err := favorites.Has(ctx, user, recipe)
	if err != nil || !has {
		t.Errorf("Expected relation to exist, got %v (%v)", has, err)
	}

	if err := favorites.Remove(ctx, user, recipe); err != nil {
		t.Fatalf("First remove failed: %v", err)
	}
	err = favorites.Remove(ctx, user, recipe)
	if !errors.Is(err, apierr.ErrRelationNotFound) {
		t.Fatalf("Expected RelationNotFound on second remove, got %v", err)
	}
	if errors.Is(err, apierr.ErrNotFound) {
		t.Error("Relation not found must be distinct from entity not found")
	}

	// Remove then add again is allowed.
	if err := favorites.Add(ctx, user, recipe); err != nil {
		t.Errorf("Expected re-add after remove to succeed, got %v", err)
	}
}

func TestRelationsAreIndependent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "reader")
	recipe := createTestRecipe(t, db, createTestUser(t, db, "chef"))

	if err := Favorites(db).Add(ctx, user, recipe); err != nil {
		t.Fatalf("Favorite add failed: %v", err)
	}
	if err := Carts(db).Add(ctx, user, recipe); err != nil {
		t.Errorf("Expected cart add to be unaffected by favorites, got %v", err)
	}
	if err := Carts(db).Remove(ctx, user, recipe); err != nil {
		t.Errorf("Cart remove failed: %v", err)
	}

	has, _ := Favorites(db).Has(ctx, user, recipe)
	if !has {
		t.Error("Expected favorite to survive cart removal")
	}
}

func TestSubscribeToSelf(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "narcissus")
	subs := Subscriptions(db)

	for i := 0; i < 2; i++ {
		err := subs.Add(ctx, user, user)
		if !errors.Is(err, apierr.ErrSelfSubscription) {
			t.Fatalf("Attempt %d: expected SelfSubscription, got %v", i+1, err)
		}
	}

	var count int64
	db.Model(&models.Subscription{}).Count(&count)
	if count != 0 {
		t.Errorf("Expected no subscription rows, got %d", count)
	}
}

func TestSubscribe(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "reader")
	author := createTestUser(t, db, "chef")
	subs := Subscriptions(db)

	if err := subs.Add(ctx, user, author); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if err := subs.Add(ctx, user, author); !errors.Is(err, ErrSubscriptionExists) {
		t.Errorf("Expected ErrSubscriptionExists, got %v", err)
	}
	// The reverse direction is a different relation.
	if err := subs.Add(ctx, author, user); err != nil {
		t.Errorf("Expected reverse subscription to succeed, got %v", err)
	}
	if err := subs.Remove(ctx, user, author); err != nil {
		t.Errorf("Unsubscribe failed: %v", err)
	}
	if err := subs.Remove(ctx, user, author); !errors.Is(err, ErrNotSubscribed) {
		t.Errorf("Expected ErrNotSubscribed, got %v", err)
	}
}

func TestConcurrentCartAdd(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "reader")
	recipe := createTestRecipe(t, db, createTestUser(t, db, "chef"))
	carts := Carts(db)

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ok      int
		already int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := carts.Add(ctx, user, recipe)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, apierr.ErrAlreadyExists):
				already++
			default:
				t.Errorf("Unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if ok != 1 || already != workers-1 {
		t.Errorf("Expected 1 success and %d AlreadyExists, got %d and %d", workers-1, ok, already)
	}

	var count int64
	db.Model(&models.Cart{}).Where("user_id = ? AND recipe_id = ?", user.ID, recipe.ID).Count(&count)
	if count != 1 {
		t.Errorf("Expected exactly one cart row, got %d", count)
	}
}

func TestPresent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "reader")
	chef := createTestUser(t, db, "chef")
	r1 := createTestRecipe(t, db, chef)
	r2 := createTestRecipe(t, db, chef)
	r3 := createTestRecipe(t, db, chef)

	Favorites(db).Add(ctx, user, r1)
	Favorites(db).Add(ctx, user, r3)

	present, err := FavoriteStore(db).Present(ctx, user.ID, []uint{r1.ID, r2.ID, r3.ID})
	if err != nil {
		t.Fatalf("Present failed: %v", err)
	}
	if !present[r1.ID] || present[r2.ID] || !present[r3.ID] {
		t.Errorf("Unexpected presence map: %v", present)
	}

	empty, err := FavoriteStore(db).Present(ctx, 0, []uint{r1.ID})
	if err != nil || len(empty) != 0 {
		t.Errorf("Expected anonymous subject to have no relations, got %v (%v)", empty, err)
	}
}
