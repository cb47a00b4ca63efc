package store

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

// ensureSchema creates the pharmacy's inventory and archive tables if
// absent. Safe to run on every open. The tenant has already passed
// NormalizeTenant, so embedding it in table names is safe.
func ensureSchema(db *sqlx.DB, tenant string) error {
	schema := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS medicines_%s (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            name TEXT,
            type TEXT,
            quantity TEXT,
            expiry_date TEXT,
            batch_no TEXT,
            price REAL,
            UNIQUE (name, expiry_date, batch_no)
        );`, tenant),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS general_items_%s (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            name TEXT,
            quantity TEXT,
            expiry_date TEXT,
            batch_no TEXT,
            price REAL,
            UNIQUE (name, expiry_date, batch_no)
        );`, tenant),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS expired_items_%s (
            id INTEGER PRIMARY KEY,
            name TEXT,
            type TEXT,
            quantity TEXT,
            expiry_date TEXT,
            batch_no TEXT,
            price REAL
        );`, tenant),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS expired_general_items_%s (
            id INTEGER PRIMARY KEY,
            name TEXT,
            quantity TEXT,
            expiry_date TEXT,
            batch_no TEXT,
            price REAL
        );`, tenant),
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("creating schema for %s: %w", tenant, err)
		}
	}
	return nil
}

// ensureAccountsSchema creates the shared users table. Passwords are
// stored as bcrypt hashes, never plaintext.
func ensureAccountsSchema(db *sqlx.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS users (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        pharmacy_name TEXT,
        email TEXT UNIQUE,
        phone_number TEXT UNIQUE,
        password TEXT
    );`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}
	return nil
}
