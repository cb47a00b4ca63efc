package domain

type User struct {
	ID           int64  `db:"id" json:"id"`
	PharmacyName string `db:"pharmacy_name" json:"pharmacy_name"`
	Email        string `db:"email" json:"email"`
	PhoneNumber  string `db:"phone_number" json:"phone_number"`
	Password     string `db:"password" json:"-"`
}
