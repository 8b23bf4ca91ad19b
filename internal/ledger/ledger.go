// Package ledger persists visit records and their categories on a store.KV.
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

// Ledger is the ordered log of visits.
type Ledger struct {
	kv     store.KV
	logger *slog.Logger
}

func New(kv store.KV, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{kv: kv, logger: logger.With(applog.FieldComponent, applog.ComponentLedger)}
}

// Load returns every visit in insertion order. Records stored with legacy date
// formats are normalized and written back.
func (l *Ledger) Load(ctx context.Context) ([]core.VisitRecord, error) {
	var records []core.VisitRecord
	err := l.kv.Update(ctx, func(tx store.Tx) error {
		var (
			changed bool
			err     error
		)
		records, changed, err = readVisits(tx, l.logger)
		if err != nil {
			return err
		}
		if changed {
			l.logger.InfoContext(ctx, "Migrating visit dates to YYYY-MM", "records", len(records))
			return writeVisits(tx, records)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Append adds one visit. Duplicates are allowed on this path.
func (l *Ledger) Append(ctx context.Context, rec core.VisitRecord) error {
	rec, err := prepare(rec)
	if err != nil {
		return err
	}
	return l.kv.Update(ctx, func(tx store.Tx) error {
		records, _, err := readVisits(tx, l.logger)
		if err != nil {
			return err
		}
		return writeVisits(tx, append(records, rec))
	})
}

// AppendBatch adds recs in one transaction, skipping any record whose
// (city, purpose, date) or (city, date) is already present, including earlier
// records of the same batch. An invalid record aborts the whole batch.
func (l *Ledger) AppendBatch(ctx context.Context, recs []core.VisitRecord) (added, skipped int, err error) {
	prepared := make([]core.VisitRecord, len(recs))
	for i, r := range recs {
		if prepared[i], err = prepare(r); err != nil {
			return 0, 0, fmt.Errorf("record %d: %w", i+1, err)
		}
	}

	err = l.kv.Update(ctx, func(tx store.Tx) error {
		added, skipped = 0, 0
		records, changed, err := readVisits(tx, l.logger)
		if err != nil {
			return err
		}
		triples := make(map[string]struct{}, len(records))
		pairs := make(map[string]struct{}, len(records))
		for _, r := range records {
			triples[r.TripleKey()] = struct{}{}
			pairs[r.Key()] = struct{}{}
		}

		for _, r := range prepared {
			_, dupTriple := triples[r.TripleKey()]
			_, dupPair := pairs[r.Key()]
			if dupTriple || dupPair {
				skipped++
				continue
			}
			triples[r.TripleKey()] = struct{}{}
			pairs[r.Key()] = struct{}{}
			records = append(records, r)
			added++
		}

		if added == 0 && !changed {
			return nil
		}
		return writeVisits(tx, records)
	})
	if err != nil {
		return 0, 0, err
	}
	return added, skipped, nil
}

// Delete removes every visit to city on date and returns how many were removed.
func (l *Ledger) Delete(ctx context.Context, city string, date core.YearMonth) (removed int, err error) {
	key := core.VisitRecord{City: strings.TrimSpace(city), Date: core.NormalizeDate(string(date))}.Key()
	err = l.kv.Update(ctx, func(tx store.Tx) error {
		records, changed, err := readVisits(tx, l.logger)
		if err != nil {
			return err
		}
		kept := records[:0]
		removed = 0
		for _, r := range records {
			if r.Key() == key {
				removed++
				continue
			}
			kept = append(kept, r)
		}
		if removed == 0 && !changed {
			return nil
		}
		return writeVisits(tx, kept)
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// Update sets the purpose of every visit to city on date and returns how many
// were changed.
func (l *Ledger) Update(ctx context.Context, city string, date core.YearMonth, purpose string) (updated int, err error) {
	purpose = strings.TrimSpace(purpose)
	if purpose == "" {
		return 0, core.ErrEmptyPurpose
	}
	key := core.VisitRecord{City: strings.TrimSpace(city), Date: core.NormalizeDate(string(date))}.Key()
	err = l.kv.Update(ctx, func(tx store.Tx) error {
		records, changed, err := readVisits(tx, l.logger)
		if err != nil {
			return err
		}
		updated = 0
		for i := range records {
			if records[i].Key() == key {
				records[i].Purpose = purpose
				updated++
			}
		}
		if updated == 0 && !changed {
			return nil
		}
		return writeVisits(tx, records)
	})
	if err != nil {
		return 0, err
	}
	return updated, nil
}

// prepare trims the text fields, normalizes the date and validates the result.
func prepare(rec core.VisitRecord) (core.VisitRecord, error) {
	rec.City = strings.TrimSpace(rec.City)
	rec.Purpose = strings.TrimSpace(rec.Purpose)
	rec.Date = core.NormalizeDate(string(rec.Date))
	if err := rec.Validate(); err != nil {
		return rec, err
	}
	return rec, nil
}
