package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/Rogue-Bear-Innovations/art-archive/internal/backup"
	"github.com/Rogue-Bear-Innovations/art-archive/internal/db"
	"github.com/Rogue-Bear-Innovations/art-archive/internal/models"
)

const (
	ModeMerge     = "merge"
	ModeOverwrite = "overwrite"
)

type (
	// ConfirmFunc is asked before an overwrite import replaces the live collections. Returning false
	// aborts the import without touching the store.
	ConfirmFunc func(ctx context.Context, incoming backup.Counts) bool

	ImportResult struct {
		ID       string        `json:"id"`
		Mode     string        `json:"mode"`
		Imported backup.Counts `json:"imported"`
		Skipped  backup.Counts `json:"skipped"`
	}
)

// Confirmed is a ConfirmFunc for callers that already asked.
func Confirmed(context.Context, backup.Counts) bool { return true }

// Import parses data and applies it with the given mode. A malformed payload is rejected before anything is
// written.
func (s *Gallery) Import(ctx context.Context, data []byte, mode string, confirm ConfirmFunc) (*ImportResult, error) {
	if mode != ModeMerge && mode != ModeOverwrite {
		return nil, errors.Wrapf(ErrInvalidArgument, "unknown import mode %q", mode)
	}

	b, err := backup.Parse(data)
	if err != nil {
		s.metrics.Imports.WithLabelValues(mode, "malformed").Inc()
		return nil, err
	}

	if mode == ModeOverwrite {
		return s.ImportOverwrite(ctx, b, confirm)
	}
	return s.ImportMerge(ctx, b)
}

// ImportOverwrite replaces all three collections with the contents of b in one transaction.
func (s *Gallery) ImportOverwrite(ctx context.Context, b *models.Backup, confirm ConfirmFunc) (*ImportResult, error) {
	counts := backup.CountOf(b)
	if confirm == nil || !confirm(ctx, counts) {
		s.metrics.Imports.WithLabelValues(ModeOverwrite, "refused").Inc()
		return nil, ErrImportNotConfirmed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records := backup.Collapse(b)
	res := &ImportResult{ID: uuid.New().String(), Mode: ModeOverwrite}
	err := s.store.Transaction(ctx, func(tx *db.Store) error {
		if err := tx.Arts().Clear(ctx); err != nil {
			return errors.Wrap(err, "clear arts")
		}
		if err := tx.Categories().Clear(ctx); err != nil {
			return errors.Wrap(err, "clear categories")
		}
		if err := tx.TagCategories().Clear(ctx); err != nil {
			return errors.Wrap(err, "clear tag categories")
		}
		return putBackup(ctx, tx, records)
	})
	s.invalidateAll()
	if err != nil {
		s.metrics.Imports.WithLabelValues(ModeOverwrite, "failed").Inc()
		return nil, s.storeFailed("import_overwrite", err)
	}

	res.Imported = backup.CountOf(records)
	s.importDone(res)
	return res, nil
}

// ImportMerge adds the records of b whose keys are not stored yet. Stored records are never changed, so
// applying the same backup again is a no-op.
func (s *Gallery) ImportMerge(ctx context.Context, b *models.Backup) (*ImportResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := &ImportResult{ID: uuid.New().String(), Mode: ModeMerge}
	err := s.store.Transaction(ctx, func(tx *db.Store) error {
		keys, err := storedKeys(ctx, tx)
		if err != nil {
			return err
		}
		plan := backup.PlanMerge(keys, b)
		if err := putBackup(ctx, tx, &plan.Insert); err != nil {
			return err
		}
		res.Imported = backup.CountOf(&plan.Insert)
		res.Skipped = plan.Skipped
		return nil
	})
	s.invalidateAll()
	if err != nil {
		s.metrics.Imports.WithLabelValues(ModeMerge, "failed").Inc()
		return nil, s.storeFailed("import_merge", err)
	}

	s.importDone(res)
	return res, nil
}

// Export reads the three collections in one transaction so the backup is a consistent snapshot.
func (s *Gallery) Export(ctx context.Context) (*models.Backup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var snap *models.Backup
	err := s.store.Transaction(ctx, func(tx *db.Store) error {
		var err error
		snap, err = tx.Snapshot(ctx)
		return err
	})
	if err != nil {
		return nil, s.storeFailed("export", err)
	}
	snap.ExportedAt = models.FormatTimestamp(s.now())

	if s.logger != nil {
		s.logger.Infow("backup exported", "arts", len(snap.Arts), "categories", len(snap.Categories),
			"tagCategories", len(snap.TagCategories))
	}
	return snap, nil
}

func (s *Gallery) importDone(res *ImportResult) {
	s.metrics.Imports.WithLabelValues(res.Mode, "ok").Inc()
	s.metrics.ImportedRecords.WithLabelValues(res.Mode, "arts").Add(float64(res.Imported.Arts))
	s.metrics.ImportedRecords.WithLabelValues(res.Mode, "categories").Add(float64(res.Imported.Categories))
	s.metrics.ImportedRecords.WithLabelValues(res.Mode, "tagCategories").Add(float64(res.Imported.TagCategories))
	if s.logger != nil {
		s.logger.Infow("backup imported", "importID", res.ID, "mode", res.Mode,
			"imported", res.Imported, "skipped", res.Skipped)
	}
}

func storedKeys(ctx context.Context, tx *db.Store) (backup.Keys, error) {
	keys := backup.NewKeys()

	artIDs, err := tx.ArtIDs(ctx)
	if err != nil {
		return keys, err
	}
	for _, id := range artIDs {
		keys.Arts[id] = struct{}{}
	}

	catIDs, err := tx.CategoryIDs(ctx)
	if err != nil {
		return keys, err
	}
	for _, id := range catIDs {
		keys.Categories[id] = struct{}{}
	}

	tags, err := tx.Tags(ctx)
	if err != nil {
		return keys, err
	}
	for _, tag := range tags {
		keys.TagCategories[tag] = struct{}{}
	}
	return keys, nil
}

func putBackup(ctx context.Context, tx *db.Store, b *models.Backup) error {
	if err := tx.Arts().PutAll(ctx, b.Arts); err != nil {
		return errors.Wrap(err, "put arts")
	}
	if err := tx.Categories().PutAll(ctx, b.Categories); err != nil {
		return errors.Wrap(err, "put categories")
	}
	if err := tx.TagCategories().PutAll(ctx, b.TagCategories); err != nil {
		return errors.Wrap(err, "put tag categories")
	}
	return nil
}
