package store

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"

	"medistock/m/domain"
)

// ImportMedicines ingests a CSV of medicines into the pharmacy's table,
// skipping rows that would violate the (name, expiry_date, batch_no)
// uniqueness. Expected columns: name, type, quantity, expiry_date,
// batch_no, price; the first row is a header. Returns the number of
// rows inserted.
func (m *Manager) ImportMedicines(ctx context.Context, tenant string, r io.Reader) (int, error) {
	tenant, err := NormalizeTenant(tenant)
	if err != nil {
		return 0, err
	}
	table, _ := activeTable(tenant, domain.KindMedicines)

	reader := csv.NewReader(r)
	// Skip header
	if _, err := reader.Read(); err != nil {
		return 0, fmt.Errorf("reading import header: %w", err)
	}

	inserted := 0
	err = m.Do(ctx, tenant, func(ctx context.Context, db *sqlx.DB) error {
		tx, err := db.BeginTxx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		stmt, err := tx.PreparexContext(ctx,
			fmt.Sprintf(`INSERT OR IGNORE INTO %s (name, type, quantity, expiry_date, batch_no, price) VALUES (?, ?, ?, ?, ?, ?)`, table))
		if err != nil {
			return err
		}
		defer stmt.Close()

		for {
			record, err := reader.Read()
			if err == io.EOF {
				break
			}
			if err != nil {
				log.Printf("unable to read import row: %v", err)
				continue
			}
			if len(record) < 6 {
				continue
			}
			name := strings.TrimSpace(record[0])
			if name == "" {
				continue
			}
			price, err := strconv.ParseFloat(strings.TrimSpace(record[5]), 64)
			if err != nil || price <= 0 {
				log.Printf("skipping import row %q: bad price %q", name, record[5])
				continue
			}

			res, err := stmt.ExecContext(ctx, name,
				strings.TrimSpace(record[1]), strings.TrimSpace(record[2]),
				strings.TrimSpace(record[3]), strings.TrimSpace(record[4]), price)
			if err != nil {
				log.Printf("unable to insert import row %q: %v", name, err)
				continue
			}
			if n, _ := res.RowsAffected(); n > 0 {
				inserted++
			}
		}

		return tx.Commit()
	})
	return inserted, err
}
