package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/jmoiron/sqlx"

	"medistock/m/domain"
)

const medicineCols = "id, name, type, quantity, expiry_date, batch_no, price"
const generalItemCols = "id, name, quantity, expiry_date, batch_no, price"

// Row is an inventory record of either kind; Type is empty for general
// items, which have no type column.
type Row struct {
	ID         int64   `db:"id" json:"id"`
	Name       string  `db:"name" json:"name"`
	Type       string  `db:"type" json:"type,omitempty"`
	Quantity   string  `db:"quantity" json:"quantity"`
	ExpiryDate string  `db:"expiry_date" json:"expiry_date"`
	BatchNo    string  `db:"batch_no" json:"batch_no"`
	Price      float64 `db:"price" json:"price"`
}

func kindCols(kind string) string {
	if kind == domain.KindMedicines {
		return medicineCols
	}
	return generalItemCols
}

// checkDuplicate reports whether the (name, expiry_date, batch_no)
// triple already exists in table.
func checkDuplicate(ctx context.Context, db *sqlx.DB, table, name, expiry, batch string) error {
	var count int
	err := db.GetContext(ctx, &count,
		fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE name = ? AND expiry_date = ? AND batch_no = ?`, table),
		name, expiry, batch)
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrDuplicate
	}
	return nil
}

// AddMedicine inserts a medicine after the duplicate-triple check and
// returns it with its assigned id. A duplicate fails with ErrDuplicate
// and writes nothing.
func (m *Manager) AddMedicine(ctx context.Context, tenant string, med domain.Medicine) (domain.Medicine, error) {
	tenant, err := NormalizeTenant(tenant)
	if err != nil {
		return domain.Medicine{}, err
	}
	table, _ := activeTable(tenant, domain.KindMedicines)

	err = m.Do(ctx, tenant, func(ctx context.Context, db *sqlx.DB) error {
		if err := checkDuplicate(ctx, db, table, med.Name, med.ExpiryDate, med.BatchNo); err != nil {
			return err
		}
		res, err := db.ExecContext(ctx,
			fmt.Sprintf(`INSERT INTO %s (name, type, quantity, expiry_date, batch_no, price) VALUES (?, ?, ?, ?, ?, ?)`, table),
			med.Name, med.Type, med.Quantity, med.ExpiryDate, med.BatchNo, med.Price)
		if err != nil {
			return err
		}
		med.ID, err = res.LastInsertId()
		return err
	})
	return med, err
}

// AddGeneralItem is AddMedicine for the general items table.
func (m *Manager) AddGeneralItem(ctx context.Context, tenant string, item domain.GeneralItem) (domain.GeneralItem, error) {
	tenant, err := NormalizeTenant(tenant)
	if err != nil {
		return domain.GeneralItem{}, err
	}
	table, _ := activeTable(tenant, domain.KindGeneralItems)

	err = m.Do(ctx, tenant, func(ctx context.Context, db *sqlx.DB) error {
		if err := checkDuplicate(ctx, db, table, item.Name, item.ExpiryDate, item.BatchNo); err != nil {
			return err
		}
		res, err := db.ExecContext(ctx,
			fmt.Sprintf(`INSERT INTO %s (name, quantity, expiry_date, batch_no, price) VALUES (?, ?, ?, ?, ?)`, table),
			item.Name, item.Quantity, item.ExpiryDate, item.BatchNo, item.Price)
		if err != nil {
			return err
		}
		item.ID, err = res.LastInsertId()
		return err
	})
	return item, err
}

// List returns all active rows of the given kind in insertion order.
func (m *Manager) List(ctx context.Context, tenant, kind string) ([]Row, error) {
	tenant, err := NormalizeTenant(tenant)
	if err != nil {
		return nil, err
	}
	table, err := activeTable(tenant, kind)
	if err != nil {
		return nil, err
	}

	var rows []Row
	err = m.Do(ctx, tenant, func(ctx context.Context, db *sqlx.DB) error {
		return db.SelectContext(ctx, &rows,
			fmt.Sprintf(`SELECT %s FROM %s ORDER BY id`, kindCols(kind), table))
	})
	return rows, err
}

// UpdateMedicine replaces the full row identified by med.ID.
func (m *Manager) UpdateMedicine(ctx context.Context, tenant string, med domain.Medicine) error {
	tenant, err := NormalizeTenant(tenant)
	if err != nil {
		return err
	}
	table, _ := activeTable(tenant, domain.KindMedicines)

	return m.Do(ctx, tenant, func(ctx context.Context, db *sqlx.DB) error {
		res, err := db.ExecContext(ctx,
			fmt.Sprintf(`UPDATE %s SET name = ?, type = ?, quantity = ?, expiry_date = ?, batch_no = ?, price = ? WHERE id = ?`, table),
			med.Name, med.Type, med.Quantity, med.ExpiryDate, med.BatchNo, med.Price, med.ID)
		if err != nil {
			return err
		}
		return requireRowHit(res)
	})
}

// UpdateGeneralItem replaces the full row identified by item.ID.
func (m *Manager) UpdateGeneralItem(ctx context.Context, tenant string, item domain.GeneralItem) error {
	tenant, err := NormalizeTenant(tenant)
	if err != nil {
		return err
	}
	table, _ := activeTable(tenant, domain.KindGeneralItems)

	return m.Do(ctx, tenant, func(ctx context.Context, db *sqlx.DB) error {
		res, err := db.ExecContext(ctx,
			fmt.Sprintf(`UPDATE %s SET name = ?, quantity = ?, expiry_date = ?, batch_no = ?, price = ? WHERE id = ?`, table),
			item.Name, item.Quantity, item.ExpiryDate, item.BatchNo, item.Price, item.ID)
		if err != nil {
			return err
		}
		return requireRowHit(res)
	})
}

// Delete removes the row with the given id from the active table.
func (m *Manager) Delete(ctx context.Context, tenant, kind string, id int64) error {
	tenant, err := NormalizeTenant(tenant)
	if err != nil {
		return err
	}
	table, err := activeTable(tenant, kind)
	if err != nil {
		return err
	}

	return m.Do(ctx, tenant, func(ctx context.Context, db *sqlx.DB) error {
		res, err := db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, table), id)
		if err != nil {
			return err
		}
		return requireRowHit(res)
	})
}

// Search returns active rows whose name contains pattern. Matching
// follows SQLite's default LIKE semantics.
func (m *Manager) Search(ctx context.Context, tenant, kind, pattern string) ([]Row, error) {
	tenant, err := NormalizeTenant(tenant)
	if err != nil {
		return nil, err
	}
	table, err := activeTable(tenant, kind)
	if err != nil {
		return nil, err
	}

	var rows []Row
	err = m.Do(ctx, tenant, func(ctx context.Context, db *sqlx.DB) error {
		return db.SelectContext(ctx, &rows,
			fmt.Sprintf(`SELECT %s FROM %s WHERE name LIKE ? ORDER BY id`, kindCols(kind), table),
			"%"+pattern+"%")
	})
	return rows, err
}

// Suggest returns up to limit distinct names with the given prefix, for
// search-as-you-type completion.
func (m *Manager) Suggest(ctx context.Context, tenant, kind, prefix string, limit int) ([]string, error) {
	tenant, err := NormalizeTenant(tenant)
	if err != nil {
		return nil, err
	}
	table, err := activeTable(tenant, kind)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 5
	}

	var names []string
	err = m.Do(ctx, tenant, func(ctx context.Context, db *sqlx.DB) error {
		return db.SelectContext(ctx, &names,
			fmt.Sprintf(`SELECT DISTINCT name FROM %s WHERE name LIKE ? ORDER BY name LIMIT ?`, table),
			prefix+"%", limit)
	})
	return names, err
}

// DecrementStock subtracts n units from the row's on-hand quantity and
// returns the remaining count. Quantities are stored as text; a value
// that does not parse is treated as zero stock.
func (m *Manager) DecrementStock(ctx context.Context, tenant, kind string, id, n int64) (int64, error) {
	if n <= 0 {
		return 0, fmt.Errorf("%w: decrement must be positive", ErrInsufficientStock)
	}
	return m.adjustStock(ctx, tenant, kind, id, -n)
}

// RestoreStock adds n units back to the row, used when a cart line is
// removed before the sale is finalized.
func (m *Manager) RestoreStock(ctx context.Context, tenant, kind string, id, n int64) (int64, error) {
	if n <= 0 {
		return 0, fmt.Errorf("restore count must be positive")
	}
	return m.adjustStock(ctx, tenant, kind, id, n)
}

func (m *Manager) adjustStock(ctx context.Context, tenant, kind string, id, delta int64) (int64, error) {
	tenant, err := NormalizeTenant(tenant)
	if err != nil {
		return 0, err
	}
	table, err := activeTable(tenant, kind)
	if err != nil {
		return 0, err
	}

	var remaining int64
	err = m.Do(ctx, tenant, func(ctx context.Context, db *sqlx.DB) error {
		var raw string
		err := db.GetContext(ctx, &raw, fmt.Sprintf(`SELECT quantity FROM %s WHERE id = ?`, table), id)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		have, _ := strconv.ParseInt(raw, 10, 64)
		remaining = have + delta
		if remaining < 0 {
			return ErrInsufficientStock
		}
		_, err = db.ExecContext(ctx,
			fmt.Sprintf(`UPDATE %s SET quantity = ? WHERE id = ?`, table),
			strconv.FormatInt(remaining, 10), id)
		return err
	})
	return remaining, err
}

func requireRowHit(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
