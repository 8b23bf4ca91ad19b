package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"visitmap/internal/core"
	applog "visitmap/internal/log"
	"visitmap/internal/store"
)

// Registry owns the user-defined categories. Renames and deletes rewrite the
// affected visits in the same store transaction as the category list.
type Registry struct {
	kv     store.KV
	logger *slog.Logger
}

func NewRegistry(kv store.KV, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{kv: kv, logger: logger.With(applog.FieldComponent, applog.ComponentRegistry)}
}

// EnsureInitialized persists the default categories when no valid list is stored.
func (r *Registry) EnsureInitialized(ctx context.Context) error {
	return r.kv.Update(ctx, func(tx store.Tx) error {
		configs, valid, err := readPurposes(tx, r.logger)
		if err != nil {
			return err
		}
		if valid {
			return nil
		}
		r.logger.InfoContext(ctx, "Initializing categories", "count", len(configs))
		return writePurposes(tx, configs)
	})
}

// List returns the categories in registry order. It never returns an empty list.
func (r *Registry) List(ctx context.Context) ([]core.PurposeConfig, error) {
	raw, ok, err := r.kv.Get(ctx, store.KeyPurposeConfigs)
	if err != nil {
		return nil, fmt.Errorf("read categories: %w", err)
	}
	configs, valid := decodePurposes(raw, ok, r.logger)
	if valid {
		return configs, nil
	}
	if err := r.EnsureInitialized(ctx); err != nil {
		return nil, fmt.Errorf("initialize categories: %w", err)
	}
	return configs, nil
}

// Colors returns the name to color mapping of the current categories.
func (r *Registry) Colors(ctx context.Context) (map[string]string, error) {
	configs, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	return core.PurposeColors(configs), nil
}

func (r *Registry) Add(ctx context.Context, cfg core.PurposeConfig) error {
	cfg.Name = strings.TrimSpace(cfg.Name)
	if err := cfg.Validate(); err != nil {
		return err
	}
	return r.kv.Update(ctx, func(tx store.Tx) error {
		configs, _, err := readPurposes(tx, r.logger)
		if err != nil {
			return err
		}
		if core.FindPurpose(configs, cfg.Name) >= 0 {
			return fmt.Errorf("%w: %s", core.ErrDuplicateCategory, cfg.Name)
		}
		return writePurposes(tx, append(configs, cfg))
	})
}

// Update replaces the category named oldName. When the name changes every visit
// tagged with oldName is retagged.
func (r *Registry) Update(ctx context.Context, oldName string, cfg core.PurposeConfig) error {
	cfg.Name = strings.TrimSpace(cfg.Name)
	if err := cfg.Validate(); err != nil {
		return err
	}
	return r.kv.Update(ctx, func(tx store.Tx) error {
		configs, _, err := readPurposes(tx, r.logger)
		if err != nil {
			return err
		}
		idx := core.FindPurpose(configs, oldName)
		if idx < 0 {
			return fmt.Errorf("%w: %s", core.ErrCategoryNotFound, oldName)
		}
		renamed := cfg.Name != oldName
		if renamed && core.FindPurpose(configs, cfg.Name) >= 0 {
			return fmt.Errorf("%w: %s", core.ErrDuplicateCategory, cfg.Name)
		}
		configs[idx] = cfg

		if renamed {
			moved, err := retag(tx, r.logger, oldName, cfg.Name)
			if err != nil {
				return err
			}
			r.logger.InfoContext(ctx, "Renamed category", "from", oldName, "to", cfg.Name, "visits", moved)
		}
		return writePurposes(tx, configs)
	})
}

// Delete removes the named category. Its visits move to migrateTo when that
// names a remaining category, otherwise to the first remaining category.
func (r *Registry) Delete(ctx context.Context, name, migrateTo string) error {
	return r.kv.Update(ctx, func(tx store.Tx) error {
		configs, _, err := readPurposes(tx, r.logger)
		if err != nil {
			return err
		}
		idx := core.FindPurpose(configs, name)
		if idx < 0 {
			return fmt.Errorf("%w: %s", core.ErrCategoryNotFound, name)
		}
		if len(configs) <= 1 {
			return core.ErrLastCategory
		}

		remaining := make([]core.PurposeConfig, 0, len(configs)-1)
		remaining = append(remaining, configs[:idx]...)
		remaining = append(remaining, configs[idx+1:]...)

		target := remaining[0].Name
		if migrateTo != "" && core.FindPurpose(remaining, migrateTo) >= 0 {
			target = migrateTo
		}

		moved, err := retag(tx, r.logger, name, target)
		if err != nil {
			return err
		}
		r.logger.InfoContext(ctx, "Deleted category", "name", name, "migrated_to", target, "visits", moved)
		return writePurposes(tx, remaining)
	})
}

// SetColor changes the color of an existing category.
func (r *Registry) SetColor(ctx context.Context, name, color string) error {
	if !core.IsHexColor(color) {
		return fmt.Errorf("%w: %w", core.ErrInvalidCategory, core.ErrInvalidColor)
	}
	return r.kv.Update(ctx, func(tx store.Tx) error {
		configs, _, err := readPurposes(tx, r.logger)
		if err != nil {
			return err
		}
		idx := core.FindPurpose(configs, name)
		if idx < 0 {
			return fmt.Errorf("%w: %s", core.ErrCategoryNotFound, name)
		}
		configs[idx].Color = color
		return writePurposes(tx, configs)
	})
}

// retag rewrites the purpose of every visit tagged from. Nothing is written when
// no visit matches.
func retag(tx store.Tx, logger *slog.Logger, from, to string) (int, error) {
	records, changed, err := readVisits(tx, logger)
	if err != nil {
		return 0, err
	}
	moved := 0
	for i := range records {
		if records[i].Purpose == from {
			records[i].Purpose = to
			moved++
		}
	}
	if moved == 0 && !changed {
		return 0, nil
	}
	return moved, writeVisits(tx, records)
}
