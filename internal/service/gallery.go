package service

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Rogue-Bear-Innovations/art-archive/internal/backup"
	"github.com/Rogue-Bear-Innovations/art-archive/internal/db"
	"github.com/Rogue-Bear-Innovations/art-archive/internal/idgen"
	"github.com/Rogue-Bear-Innovations/art-archive/internal/metrics"
	"github.com/Rogue-Bear-Innovations/art-archive/internal/models"
	"github.com/Rogue-Bear-Innovations/art-archive/internal/query"
	"github.com/Rogue-Bear-Innovations/art-archive/internal/tagmeta"
)

var Module = fx.Provide(NewGallery)

var (
	ErrArtNotFound        = errors.New("art not found")
	ErrCategoryNotFound   = errors.New("category not found")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrImportNotConfirmed = errors.New("import not confirmed")
	ErrMalformedBackup    = backup.ErrMalformed
)

// Gallery owns the archive's data: it fronts the store with per-collection caches that are refilled on
// the first read after a write. Caches only change after the store has accepted the write.
type Gallery struct {
	mu      sync.Mutex
	store   *db.Store
	logger  *zap.SugaredLogger
	metrics *metrics.Metrics
	ids     *idgen.Generator
	now     func() time.Time

	arts          []models.Art
	categories    []models.Category
	tagCategories []models.TagCategory
	resolver      *tagmeta.Resolver

	artsLoaded          bool
	categoriesLoaded    bool
	tagCategoriesLoaded bool
}

func NewGallery(store *db.Store, l *zap.SugaredLogger, m *metrics.Metrics) *Gallery {
	return newGallery(store, l, m, time.Now)
}

func newGallery(store *db.Store, l *zap.SugaredLogger, m *metrics.Metrics, now func() time.Time) *Gallery {
	if m == nil {
		m = metrics.New(nil)
	}
	return &Gallery{
		store:   store,
		logger:  l,
		metrics: m,
		ids:     idgen.New(now),
		now:     now,
	}
}

// Arts returns the arts matching f in the order given by mode.
func (s *Gallery) Arts(ctx context.Context, f query.Filter, mode query.SortMode) ([]models.Art, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadArts(ctx); err != nil {
		return nil, err
	}
	return query.Query(s.arts, f, mode), nil
}

func (s *Gallery) Authors(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadArts(ctx); err != nil {
		return nil, err
	}
	return query.Authors(s.arts), nil
}

func (s *Gallery) RecentTags(ctx context.Context) ([]query.TagEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadAll(ctx); err != nil {
		return nil, err
	}
	return query.RecentTags(s.arts, s.resolver), nil
}

func (s *Gallery) AllTags(ctx context.Context) ([]query.TagEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadAll(ctx); err != nil {
		return nil, err
	}
	return query.AllTags(s.arts, s.resolver), nil
}

// TagMeta resolves tag against the current categories and associations.
func (s *Gallery) TagMeta(ctx context.Context, tag string) (tagmeta.Meta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadTagMeta(ctx); err != nil {
		return tagmeta.Meta{}, err
	}
	return s.resolver.Resolve(tag), nil
}

func (s *Gallery) Categories(ctx context.Context) ([]models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadCategories(ctx); err != nil {
		return nil, err
	}
	out := make([]models.Category, len(s.categories))
	copy(out, s.categories)
	return out, nil
}

func (s *Gallery) TagCategories(ctx context.Context) ([]models.TagCategory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadTagCategories(ctx); err != nil {
		return nil, err
	}
	out := make([]models.TagCategory, len(s.tagCategories))
	copy(out, s.tagCategories)
	return out, nil
}

func (s *Gallery) loadAll(ctx context.Context) error {
	if err := s.loadArts(ctx); err != nil {
		return err
	}
	return s.loadTagMeta(ctx)
}

func (s *Gallery) loadTagMeta(ctx context.Context) error {
	if err := s.loadCategories(ctx); err != nil {
		return err
	}
	return s.loadTagCategories(ctx)
}

func (s *Gallery) loadArts(ctx context.Context) error {
	if s.artsLoaded {
		return nil
	}
	arts, err := s.store.Arts().GetAll(ctx)
	if err != nil {
		s.metrics.StoreErrors.WithLabelValues("load_arts").Inc()
		return errors.Wrap(err, "load arts")
	}
	for i := range arts {
		s.ids.Observe(arts[i].ID)
	}
	s.arts = arts
	s.artsLoaded = true
	s.metrics.Arts.Set(float64(len(arts)))
	return nil
}

func (s *Gallery) loadCategories(ctx context.Context) error {
	if s.categoriesLoaded {
		return nil
	}
	cats, err := s.store.Categories().GetAll(ctx)
	if err != nil {
		s.metrics.StoreErrors.WithLabelValues("load_categories").Inc()
		return errors.Wrap(err, "load categories")
	}
	for i := range cats {
		s.ids.Observe(cats[i].ID)
	}
	s.categories = cats
	s.categoriesLoaded = true
	s.rebuildResolver()
	return nil
}

func (s *Gallery) loadTagCategories(ctx context.Context) error {
	if s.tagCategoriesLoaded {
		return nil
	}
	tcs, err := s.store.TagCategories().GetAll(ctx)
	if err != nil {
		s.metrics.StoreErrors.WithLabelValues("load_tag_categories").Inc()
		return errors.Wrap(err, "load tag categories")
	}
	s.tagCategories = tcs
	s.tagCategoriesLoaded = true
	s.rebuildResolver()
	return nil
}

// rebuildResolver replaces the resolver once both inputs are loaded, so it never sees a half-applied change.
func (s *Gallery) rebuildResolver() {
	if !s.categoriesLoaded || !s.tagCategoriesLoaded {
		s.resolver = nil
		return
	}
	s.resolver = tagmeta.NewResolver(s.categories, s.tagCategories)
}

func (s *Gallery) invalidateArts() {
	s.arts = nil
	s.artsLoaded = false
}

func (s *Gallery) invalidateCategories() {
	s.categories = nil
	s.categoriesLoaded = false
	s.resolver = nil
}

func (s *Gallery) invalidateTagCategories() {
	s.tagCategories = nil
	s.tagCategoriesLoaded = false
	s.resolver = nil
}

func (s *Gallery) invalidateAll() {
	s.invalidateArts()
	s.invalidateCategories()
	s.invalidateTagCategories()
}

func (s *Gallery) storeFailed(op string, err error) error {
	s.metrics.StoreErrors.WithLabelValues(op).Inc()
	if s.logger != nil {
		s.logger.Errorw("store operation failed", "op", op, "error", err)
	}
	return errors.Wrap(err, op)
}
