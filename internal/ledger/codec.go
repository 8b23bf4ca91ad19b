package ledger

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"visitmap/internal/core"
	"visitmap/internal/store"
)

// readVisits decodes the visit list. A corrupt document yields an empty ledger.
// changed reports whether date normalization rewrote any record.
func readVisits(tx store.Tx, logger *slog.Logger) (records []core.VisitRecord, changed bool, err error) {
	raw, ok, err := tx.Get(store.KeyVisits)
	if err != nil {
		return nil, false, fmt.Errorf("read visits: %w", err)
	}
	return decodeVisits(raw, ok, logger)
}

func decodeVisits(raw []byte, ok bool, logger *slog.Logger) ([]core.VisitRecord, bool, error) {
	if !ok {
		return []core.VisitRecord{}, false, nil
	}
	var records []core.VisitRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		logger.Warn("Stored visits are corrupt, using an empty ledger", "error", err)
		return []core.VisitRecord{}, false, nil
	}
	if records == nil {
		return []core.VisitRecord{}, false, nil
	}
	records, changed := core.NormalizeRecords(records)
	return records, changed, nil
}

func writeVisits(tx store.Tx, records []core.VisitRecord) error {
	if records == nil {
		records = []core.VisitRecord{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode visits: %w", err)
	}
	if err := tx.Put(store.KeyVisits, data); err != nil {
		return fmt.Errorf("write visits: %w", err)
	}
	return nil
}

// readPurposes decodes the category list. valid is false when the stored list
// is missing, corrupt or empty, in which case the defaults are returned.
func readPurposes(tx store.Tx, logger *slog.Logger) (configs []core.PurposeConfig, valid bool, err error) {
	raw, ok, err := tx.Get(store.KeyPurposeConfigs)
	if err != nil {
		return nil, false, fmt.Errorf("read categories: %w", err)
	}
	configs, valid = decodePurposes(raw, ok, logger)
	return configs, valid, nil
}

func decodePurposes(raw []byte, ok bool, logger *slog.Logger) ([]core.PurposeConfig, bool) {
	if !ok {
		return core.DefaultPurposeConfigs(), false
	}
	var stored []core.PurposeConfig
	if err := json.Unmarshal(raw, &stored); err != nil {
		logger.Warn("Stored categories are corrupt, using defaults", "error", err)
		return core.DefaultPurposeConfigs(), false
	}

	configs := make([]core.PurposeConfig, 0, len(stored))
	for _, c := range stored {
		name := strings.TrimSpace(c.Name)
		if name == "" || core.FindPurpose(configs, name) >= 0 {
			logger.Warn("Dropping invalid stored category", "name", c.Name)
			continue
		}
		configs = append(configs, core.PurposeConfig{Name: name, Color: c.Color})
	}
	if len(configs) == 0 {
		return core.DefaultPurposeConfigs(), false
	}
	return configs, len(configs) == len(stored)
}

// writePurposes stores the category list and the derived color map together.
func writePurposes(tx store.Tx, configs []core.PurposeConfig) error {
	data, err := json.Marshal(configs)
	if err != nil {
		return fmt.Errorf("encode categories: %w", err)
	}
	if err := tx.Put(store.KeyPurposeConfigs, data); err != nil {
		return fmt.Errorf("write categories: %w", err)
	}

	colors, err := json.Marshal(core.PurposeColors(configs))
	if err != nil {
		return fmt.Errorf("encode category colors: %w", err)
	}
	if err := tx.Put(store.KeyPurposeColors, colors); err != nil {
		return fmt.Errorf("write category colors: %w", err)
	}
	return nil
}
