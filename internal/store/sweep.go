package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"medistock/m/domain"
)

// SweepResult reports how many rows a sweep moved per kind.
type SweepResult struct {
	Medicines    int64 `json:"medicines"`
	GeneralItems int64 `json:"general_items"`
}

// SweepExpired moves rows whose expiry_date is before asOf (ISO date,
// YYYY-MM-DD) from the active tables into the archive tables, preserving
// ids and field values. Copy and delete run in one transaction, so a
// failure moves nothing. Re-running with the same asOf is a no-op:
// swept rows are gone from the active table.
func (m *Manager) SweepExpired(ctx context.Context, tenant, asOf string) (SweepResult, error) {
	tenant, err := NormalizeTenant(tenant)
	if err != nil {
		return SweepResult{}, err
	}

	var result SweepResult
	err = m.Do(ctx, tenant, func(ctx context.Context, db *sqlx.DB) error {
		tx, err := db.BeginTxx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		for _, kind := range []string{domain.KindMedicines, domain.KindGeneralItems} {
			active, _ := activeTable(tenant, kind)
			archive, _ := archiveTable(tenant, kind)
			cols := kindCols(kind)

			res, err := tx.ExecContext(ctx,
				fmt.Sprintf(`INSERT INTO %s (%s) SELECT %s FROM %s WHERE expiry_date < ?`, archive, cols, cols, active),
				asOf)
			if err != nil {
				return err
			}
			moved, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx,
				fmt.Sprintf(`DELETE FROM %s WHERE expiry_date < ?`, active), asOf); err != nil {
				return err
			}

			if kind == domain.KindMedicines {
				result.Medicines = moved
			} else {
				result.GeneralItems = moved
			}
		}

		return tx.Commit()
	})
	return result, err
}

// ListArchived returns the archive table contents for a kind, oldest
// first by expiry date.
func (m *Manager) ListArchived(ctx context.Context, tenant, kind string) ([]Row, error) {
	tenant, err := NormalizeTenant(tenant)
	if err != nil {
		return nil, err
	}
	archive, err := archiveTable(tenant, kind)
	if err != nil {
		return nil, err
	}

	var rows []Row
	err = m.Do(ctx, tenant, func(ctx context.Context, db *sqlx.DB) error {
		return db.SelectContext(ctx, &rows,
			fmt.Sprintf(`SELECT %s FROM %s ORDER BY expiry_date, id`, kindCols(kind), archive))
	})
	return rows, err
}
