package domain

type GeneralItem struct {
	ID         int64   `db:"id" json:"id"`
	Name       string  `db:"name" json:"name" validate:"required"`
	Quantity   string  `db:"quantity" json:"quantity" validate:"required,numeric"`
	ExpiryDate string  `db:"expiry_date" json:"expiry_date" validate:"required,datetime=2006-01-02"`
	BatchNo    string  `db:"batch_no" json:"batch_no" validate:"required"`
	Price      float64 `db:"price" json:"price" validate:"required,gt=0"`
}
