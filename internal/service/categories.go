package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator"
	"github.com/pkg/errors"

	"github.com/Rogue-Bear-Innovations/art-archive/internal/db"
	"github.com/Rogue-Bear-Innovations/art-archive/internal/models"
)

const defaultColor = "#888888"

var validate = validator.New()

func categoryFields(name, color string) (string, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", "", errors.Wrap(ErrInvalidArgument, "category name is required")
	}
	if color == "" {
		color = defaultColor
	}
	if err := validate.Var(color, "hexcolor"); err != nil {
		return "", "", errors.Wrapf(ErrInvalidArgument, "invalid color %q", color)
	}
	return name, color, nil
}

func (s *Gallery) AddCategory(ctx context.Context, name, color string) (*models.Category, error) {
	name, color, err := categoryFields(name, color)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadCategories(ctx); err != nil {
		return nil, err
	}

	model := models.Category{
		ID:    s.ids.Next(),
		Name:  name,
		Color: color,
	}
	if err := s.store.Categories().Put(ctx, &model); err != nil {
		return nil, s.storeFailed("put_category", err)
	}
	s.invalidateCategories()
	return &model, nil
}

func (s *Gallery) UpdateCategory(ctx context.Context, id int64, name, color string) (*models.Category, error) {
	name, color, err := categoryFields(name, color)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	model, err := s.store.Categories().Get(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, s.storeFailed("get_category", err)
	}
	model.Name = name
	model.Color = color

	if err := s.store.Categories().Put(ctx, model); err != nil {
		return nil, s.storeFailed("put_category", err)
	}
	s.invalidateCategories()
	return model, nil
}

// DeleteCategory removes the category and, in the same transaction, clears it from every tag that used it.
func (s *Gallery) DeleteCategory(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var detached int64
	err := s.store.Transaction(ctx, func(tx *db.Store) error {
		if err := tx.Categories().Delete(ctx, id); err != nil {
			return err
		}
		n, err := tx.DetachCategory(ctx, id)
		if err != nil {
			return err
		}
		detached = n
		return nil
	})
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return ErrCategoryNotFound
		}
		s.invalidateCategories()
		s.invalidateTagCategories()
		return s.storeFailed("delete_category", err)
	}
	s.invalidateCategories()
	s.invalidateTagCategories()

	if s.logger != nil {
		s.logger.Infow("category deleted", "id", id, "detachedTags", detached)
	}
	return nil
}

// SetTagCategory assigns tag to a category, or clears the assignment when categoryID is nil. The tag's
// priority is kept.
func (s *Gallery) SetTagCategory(ctx context.Context, tag string, categoryID *int64) (*models.TagCategory, error) {
	if categoryID != nil && *categoryID == 0 {
		categoryID = nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if categoryID != nil {
		if _, err := s.store.Categories().Get(ctx, *categoryID); err != nil {
			if errors.Is(err, db.ErrNotFound) {
				return nil, ErrCategoryNotFound
			}
			return nil, s.storeFailed("get_category", err)
		}
	}

	return s.modifyTagCategory(ctx, tag, func(tc *models.TagCategory) {
		tc.CategoryID = categoryID
	})
}

// SetTagPriority sets the ordering weight of tag. The tag's category is kept.
func (s *Gallery) SetTagPriority(ctx context.Context, tag string, priority int) (*models.TagCategory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.modifyTagCategory(ctx, tag, func(tc *models.TagCategory) {
		tc.Priority = models.Priority(priority)
	})
}

func (s *Gallery) modifyTagCategory(ctx context.Context, tag string, change func(tc *models.TagCategory)) (*models.TagCategory, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return nil, errors.Wrap(ErrInvalidArgument, "tag is required")
	}

	tc, err := s.store.TagCategories().Get(ctx, tag)
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			return nil, s.storeFailed("get_tag_category", err)
		}
		tc = &models.TagCategory{Tag: tag}
	}
	change(tc)

	if err := s.store.TagCategories().Put(ctx, tc); err != nil {
		return nil, s.storeFailed("put_tag_category", err)
	}
	s.invalidateTagCategories()
	return tc, nil
}
