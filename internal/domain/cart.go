package domain

// CartLine is one product/quantity pair in a checkout request.
type CartLine struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// CartSnapshot is the cart contents at order-placement time. It is produced
// by the cart component and read-only to the placement engine.
type CartSnapshot struct {
	UserID string     `json:"user_id"`
	Items  []CartLine `json:"items"`
}
