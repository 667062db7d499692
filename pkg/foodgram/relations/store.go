// Package relations implements add/remove for the user-owned pair
// relations: favorites, shopping cart entries and subscriptions.
package relations

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store persists one kind of (subject, object) pair. Create and Delete
// report whether a row was actually inserted or removed.
type Store interface {
	Exists(ctx context.Context, subjectID, objectID uint) (bool, error)
	Create(ctx context.Context, subjectID, objectID uint) (bool, error)
	Delete(ctx context.Context, subjectID, objectID uint) (bool, error)
}

// PairStore is a Store over a GORM model whose table has a unique index on
// (SubjectColumn, ObjectColumn).
type PairStore[T any] struct {
	db            *gorm.DB
	SubjectColumn string
	ObjectColumn  string
	New           func(subjectID, objectID uint) *T
}

// NewPairStore returns a store for model T.
func NewPairStore[T any](db *gorm.DB, subjectColumn, objectColumn string, build func(subjectID, objectID uint) *T) *PairStore[T] {
	return &PairStore[T]{
		db:            db,
		SubjectColumn: subjectColumn,
		ObjectColumn:  objectColumn,
		New:           build,
	}
}

func (s *PairStore[T]) where(ctx context.Context, subjectID, objectID uint) *gorm.DB {
	return s.db.WithContext(ctx).
		Model(new(T)).
		Where(clause.Eq{Column: clause.Column{Name: s.SubjectColumn}, Value: subjectID}).
		Where(clause.Eq{Column: clause.Column{Name: s.ObjectColumn}, Value: objectID})
}

func (s *PairStore[T]) Exists(ctx context.Context, subjectID, objectID uint) (bool, error) {
	var count int64
	if err := s.where(ctx, subjectID, objectID).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check relation: %w", err)
	}
	return count > 0, nil
}

// Create inserts the pair unless it already exists. The unique index
// decides, so concurrent duplicate adds yield exactly one row.
func (s *PairStore[T]) Create(ctx context.Context, subjectID, objectID uint) (bool, error) {
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(s.New(subjectID, objectID))
	if result.Error != nil {
		return false, fmt.Errorf("failed to create relation: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (s *PairStore[T]) Delete(ctx context.Context, subjectID, objectID uint) (bool, error) {
	result := s.where(ctx, subjectID, objectID).Delete(new(T))
	if result.Error != nil {
		return false, fmt.Errorf("failed to delete relation: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// Present returns the subset of objectIDs paired with subjectID.
func (s *PairStore[T]) Present(ctx context.Context, subjectID uint, objectIDs []uint) (map[uint]bool, error) {
	present := make(map[uint]bool, len(objectIDs))
	if subjectID == 0 || len(objectIDs) == 0 {
		return present, nil
	}

	var ids []uint
	err := s.db.WithContext(ctx).
		Model(new(T)).
		Where(clause.Eq{Column: clause.Column{Name: s.SubjectColumn}, Value: subjectID}).
		Where(clause.IN{Column: clause.Column{Name: s.ObjectColumn}, Values: toValues(objectIDs)}).
		Pluck(s.ObjectColumn, &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load relations: %w", err)
	}
	for _, id := range ids {
		present[id] = true
	}
	return present, nil
}

func toValues(ids []uint) []interface{} {
	values := make([]interface{}, len(ids))
	for i, id := range ids {
		values[i] = id
	}
	return values
}
