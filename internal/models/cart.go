package models

// CartLine is the server-owned record for one product in a cart.
type CartLine struct {
	ID       int     `json:"id"`
	Product  Product `json:"producto"`
	Quantity int     `json:"cantidad"`
}

type Cart struct {
	ID      int        `json:"id"`
	Version int        `json:"version"`
	Items   []CartLine `json:"items"`
	Total   float64    `json:"total"`
}

// CartItem is the client view of a cart line joined with its product.
// CartEntryID addresses the line on the server; ProductID addresses the catalog.
type CartItem struct {
	ProductID   int     `json:"product_id"`
	Name        string  `json:"name"`
	UnitPrice   float64 `json:"unit_price"`
	Image       string  `json:"image,omitempty"`
	Category    string  `json:"category,omitempty"`
	Quantity    int     `json:"quantity"`
	CartEntryID int     `json:"cart_entry_id"`
	Stock       int     `json:"stock"`
}

func (c CartItem) Subtotal() float64 {
	return c.UnitPrice * float64(c.Quantity)
}

// ItemFromLine joins a server line with its product fields.
func ItemFromLine(l CartLine) CartItem {
	return CartItem{
		ProductID:   l.Product.ID,
		Name:        l.Product.Name,
		UnitPrice:   l.Product.Price,
		Image:       l.Product.Image,
		Category:    l.Product.Category,
		Quantity:    l.Quantity,
		CartEntryID: l.ID,
		Stock:       l.Product.Stock,
	}
}

type AddCartItemRequest struct {
	ProductID int `json:"producto_id"`
	Quantity  int `json:"cantidad"`
}

type UpdateCartItemRequest struct {
	Quantity int `json:"cantidad"`
}
