package db

import (
	"context"

	"github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Rogue-Bear-Innovations/art-archive/internal/models"
)

const putBatchSize = 100

var ErrNotFound = errors.New("record not found")

type (
	// Collection is one keyed record set of the store.
	Collection[T any] struct {
		db  *gorm.DB
		key string
	}

	Store struct {
		db *gorm.DB
	}
)

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Arts() Collection[models.Art] {
	return Collection[models.Art]{db: s.db, key: "id"}
}

func (s *Store) Categories() Collection[models.Category] {
	return Collection[models.Category]{db: s.db, key: "id"}
}

func (s *Store) TagCategories() Collection[models.TagCategory] {
	return Collection[models.TagCategory]{db: s.db, key: "tag"}
}

// Transaction runs fn against a Store bound to a single database transaction. Every collection reached
// through tx commits or rolls back together.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

// DetachCategory clears the category reference of every association pointing at categoryID.
func (s *Store) DetachCategory(ctx context.Context, categoryID int64) (int64, error) {
	sql, args, err := squirrel.
		Update("tag_categories").
		Set("category_id", nil).
		Where(squirrel.Eq{"category_id": categoryID}).
		ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "build sql")
	}

	res := s.db.WithContext(ctx).Exec(sql, args...)
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, "detach category")
	}
	return res.RowsAffected, nil
}

func (s *Store) ArtIDs(ctx context.Context) ([]int64, error) {
	out := make([]int64, 0)
	return out, s.pluck(ctx, "arts", "id", &out)
}

func (s *Store) CategoryIDs(ctx context.Context) ([]int64, error) {
	out := make([]int64, 0)
	return out, s.pluck(ctx, "categories", "id", &out)
}

func (s *Store) Tags(ctx context.Context) ([]string, error) {
	out := make([]string, 0)
	return out, s.pluck(ctx, "tag_categories", "tag", &out)
}

// pluck reads one column of a table without loading whole records.
func (s *Store) pluck(ctx context.Context, table, column string, dest interface{}) error {
	sql, args, err := squirrel.Select(column).From(table).OrderBy(column).ToSql()
	if err != nil {
		return errors.Wrap(err, "build sql")
	}
	res := s.db.WithContext(ctx).Raw(sql, args...).Scan(dest)
	if res.Error != nil {
		return errors.Wrapf(res.Error, "read %s keys", table)
	}
	return nil
}

// Snapshot reads all three collections.
func (s *Store) Snapshot(ctx context.Context) (*models.Backup, error) {
	b := models.Backup{}
	var err error
	if b.Arts, err = s.Arts().GetAll(ctx); err != nil {
		return nil, err
	}
	if b.Categories, err = s.Categories().GetAll(ctx); err != nil {
		return nil, err
	}
	if b.TagCategories, err = s.TagCategories().GetAll(ctx); err != nil {
		return nil, err
	}
	return &b, nil
}

// GetAll returns every record ordered by key.
func (c Collection[T]) GetAll(ctx context.Context) ([]T, error) {
	out := make([]T, 0)
	res := c.db.WithContext(ctx).Order(c.key).Find(&out)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "get all")
	}
	return out, nil
}

func (c Collection[T]) Get(ctx context.Context, key interface{}) (*T, error) {
	out := new(T)
	res := c.db.WithContext(ctx).Where(c.eq(key)).Take(out)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(res.Error, "get")
	}
	return out, nil
}

// Put inserts v or replaces the record that has the same key.
func (c Collection[T]) Put(ctx context.Context, v *T) error {
	res := c.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(v)
	if res.Error != nil {
		return errors.Wrap(res.Error, "put")
	}
	return nil
}

func (c Collection[T]) PutAll(ctx context.Context, vs []T) error {
	if len(vs) == 0 {
		return nil
	}
	res := c.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).CreateInBatches(vs, putBatchSize)
	if res.Error != nil {
		return errors.Wrap(res.Error, "put all")
	}
	return nil
}

// Delete removes the record with key. A missing record is ErrNotFound.
func (c Collection[T]) Delete(ctx context.Context, key interface{}) error {
	res := c.db.WithContext(ctx).Where(c.eq(key)).Delete(new(T))
	if res.Error != nil {
		return errors.Wrap(res.Error, "delete")
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (c Collection[T]) Clear(ctx context.Context) error {
	res := c.db.WithContext(ctx).Where("1 = 1").Delete(new(T))
	if res.Error != nil {
		return errors.Wrap(res.Error, "clear")
	}
	return nil
}

func (c Collection[T]) eq(key interface{}) clause.Eq {
	return clause.Eq{Column: clause.Column{Name: c.key}, Value: key}
}
