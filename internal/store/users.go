package store

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"medistock/m/domain"
)

// RegisterUser creates a pharmacy account. The password is stored as a
// bcrypt hash. A duplicate email or phone number fails with ErrConflict
// via the table's unique constraints.
func (m *Manager) RegisterUser(ctx context.Context, pharmacyName, email, phone, password string) error {
	tenant, err := NormalizeTenant(pharmacyName)
	if err != nil {
		return err
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	return m.doAccounts(ctx, func(ctx context.Context, db *sqlx.DB) error {
		_, err := db.ExecContext(ctx,
			`INSERT INTO users (pharmacy_name, email, phone_number, password) VALUES (?, ?, ?, ?)`,
			tenant, strings.ToLower(strings.TrimSpace(email)), strings.TrimSpace(phone), string(hashed))
		if err != nil {
			if strings.Contains(err.Error(), "UNIQUE constraint failed") {
				return ErrConflict
			}
			return err
		}
		return nil
	})
}

// ValidateLogin looks up accounts where the email or phone number
// matches and compares the password against the stored hash. On success
// it returns the pharmacy name of the first matching account; otherwise
// ErrInvalidCredentials, without revealing which field was wrong.
func (m *Manager) ValidateLogin(ctx context.Context, emailOrPhone, password string) (string, error) {
	input := strings.TrimSpace(emailOrPhone)

	var pharmacyName string
	err := m.doAccounts(ctx, func(ctx context.Context, db *sqlx.DB) error {
		var accounts []domain.User
		err := db.SelectContext(ctx, &accounts,
			`SELECT id, pharmacy_name, email, phone_number, password FROM users WHERE email = ? OR phone_number = ?`,
			strings.ToLower(input), input)
		if err != nil {
			return err
		}
		for _, account := range accounts {
			if bcrypt.CompareHashAndPassword([]byte(account.Password), []byte(password)) == nil {
				pharmacyName = account.PharmacyName
				return nil
			}
		}
		return ErrInvalidCredentials
	})
	return pharmacyName, err
}
