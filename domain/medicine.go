package domain

// MedicineTypes is the accepted set for the medicine type field.
var MedicineTypes = []string{"Tablet", "Strip", "Tube", "Powder", "Liquid", "Capsule", "Syrup", "Injection", "Other"}

type Medicine struct {
	ID         int64   `db:"id" json:"id"`
	Name       string  `db:"name" json:"name" validate:"required"`
	Type       string  `db:"type" json:"type" validate:"required,medicinetype"`
	Quantity   string  `db:"quantity" json:"quantity" validate:"required,numeric"`
	ExpiryDate string  `db:"expiry_date" json:"expiry_date" validate:"required,datetime=2006-01-02"`
	BatchNo    string  `db:"batch_no" json:"batch_no" validate:"required"`
	Price      float64 `db:"price" json:"price" validate:"required,gt=0"`
}
