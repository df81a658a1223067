package service

import (
	"context"

	"github.com/pkg/errors"

	"github.com/Rogue-Bear-Innovations/art-archive/internal/db"
	"github.com/Rogue-Bear-Innovations/art-archive/internal/models"
)

type (
	NewArt struct {
		Image  string
		URL    string
		Author string
		Tags   []string
	}

	// ArtUpdate carries the editable fields of an art. Nil fields keep the stored value; an empty non-nil
	// Tags clears the tags.
	ArtUpdate struct {
		Image  *string
		URL    *string
		Author *string
		State  *models.State
		Tags   []string
	}
)

func (s *Gallery) AddArt(ctx context.Context, in NewArt) (*models.Art, error) {
	if in.Image == "" {
		return nil, errors.Wrap(ErrInvalidArgument, "image is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// observe stored ids first so a fresh id cannot collide with one created by an earlier run
	if err := s.loadArts(ctx); err != nil {
		return nil, err
	}

	model := models.Art{
		ID:        s.ids.Next(),
		Image:     in.Image,
		URL:       in.URL,
		Author:    in.Author,
		State:     models.StateNone,
		Tags:      models.NormalizeTags(in.Tags),
		Favorite:  false,
		CreatedAt: models.FormatTimestamp(s.now()),
	}
	if err := s.store.Arts().Put(ctx, &model); err != nil {
		return nil, s.storeFailed("put_art", err)
	}
	s.invalidateArts()

	if s.logger != nil {
		s.logger.Infow("art added", "id", model.ID, "tags", len(model.Tags))
	}
	return &model, nil
}

func (s *Gallery) GetArt(ctx context.Context, id int64) (*models.Art, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.getArt(ctx, id)
}

func (s *Gallery) getArt(ctx context.Context, id int64) (*models.Art, error) {
	art, err := s.store.Arts().Get(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrArtNotFound
		}
		return nil, s.storeFailed("get_art", err)
	}
	return art, nil
}

func (s *Gallery) UpdateArt(ctx context.Context, id int64, in ArtUpdate) (*models.Art, error) {
	if in.State != nil && !in.State.Valid() {
		return nil, errors.Wrapf(ErrInvalidArgument, "unknown state %q", *in.State)
	}
	if in.Image != nil && *in.Image == "" {
		return nil, errors.Wrap(ErrInvalidArgument, "image must not be empty")
	}

	return s.modifyArt(ctx, id, "update_art", func(a *models.Art) {
		if in.Image != nil {
			a.Image = *in.Image
		}
		if in.URL != nil {
			a.URL = *in.URL
		}
		if in.Author != nil {
			a.Author = *in.Author
		}
		if in.State != nil {
			a.State = *in.State
		}
		if in.Tags != nil {
			a.Tags = models.NormalizeTags(in.Tags)
		}
	})
}

func (s *Gallery) ToggleFavorite(ctx context.Context, id int64) (*models.Art, error) {
	return s.modifyArt(ctx, id, "toggle_favorite", func(a *models.Art) {
		a.Favorite = !a.Favorite
	})
}

func (s *Gallery) SetState(ctx context.Context, id int64, state models.State) (*models.Art, error) {
	if !state.Valid() {
		return nil, errors.Wrapf(ErrInvalidArgument, "unknown state %q", state)
	}
	return s.modifyArt(ctx, id, "set_state", func(a *models.Art) {
		a.State = state
	})
}

// modifyArt applies change to a fresh copy read from the store and persists it. The cache is untouched
// until the write succeeds.
func (s *Gallery) modifyArt(ctx context.Context, id int64, op string, change func(a *models.Art)) (*models.Art, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	art, err := s.getArt(ctx, id)
	if err != nil {
		return nil, err
	}
	change(art)

	if err := s.store.Arts().Put(ctx, art); err != nil {
		return nil, s.storeFailed(op, err)
	}
	s.invalidateArts()
	return art, nil
}

func (s *Gallery) DeleteArt(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Arts().Delete(ctx, id); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return ErrArtNotFound
		}
		return s.storeFailed("delete_art", err)
	}
	s.invalidateArts()

	if s.logger != nil {
		s.logger.Infow("art deleted", "id", id)
	}
	return nil
}
