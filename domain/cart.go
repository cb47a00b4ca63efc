package domain

// Cart line kinds. These double as the inventory kind selector for
// search and stock operations.
const (
	KindMedicines    = "medicines"
	KindGeneralItems = "general_items"
)

// CartLine is a client-held selection of an inventory record. It is not
// part of the relational store; carts persist as JSON under a per-pharmacy
// key in local storage.
type CartLine struct {
	ID         int64   `json:"id,omitempty"`
	Name       string  `json:"name"`
	Quantity   int64   `json:"quantity"`
	Price      float64 `json:"price"`
	Discount   float64 `json:"discount"`
	Type       string  `json:"type"`
	BatchNo    string  `json:"batch_no,omitempty"`
	ExpiryDate string  `json:"expiry_date,omitempty"`
}
