// Package cart holds the shopping cart of a browser session.
package cart

import (
	"slices"
	"sync"
)

// Item is one cart line. Lines are keyed by ProductID.
type Item struct {
	ProductID int     `msgpack:"product_id"`
	Title     string  `msgpack:"title"`
	UnitPrice float64 `msgpack:"unit_price"`
	ImageRef  string  `msgpack:"image_ref"`
	Quantity  int     `msgpack:"quantity"`
}

// Subtotal returns UnitPrice * Quantity.
func (it Item) Subtotal() float64 {
	return it.UnitPrice * float64(it.Quantity)
}

// Cart is a list of lines safe for concurrent use.
type Cart struct {
	mu    sync.RWMutex
	items []Item
}

// New returns a cart holding items.
func New(items ...Item) *Cart {
	return &Cart{items: slices.Clone(items)}
}

// AddToCart merges qty into the line of id, or appends a new line.
// Title, price and image are only used for a new line.
func (c *Cart) AddToCart(id int, title string, price float64, image string, qty int) {
	if qty <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if i := c.indexLocked(id); i >= 0 {
		c.items[i].Quantity += qty
		return
	}
	c.items = append(c.items, Item{
		ProductID: id,
		Title:     title,
		UnitPrice: price,
		ImageRef:  image,
		Quantity:  qty,
	})
}

// UpdateQuantity sets the quantity of id. A quantity of zero or less
// removes the line.
func (c *Cart) UpdateQuantity(id, qty int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexLocked(id)
	if i < 0 {
		return
	}
	if qty <= 0 {
		c.items = slices.Delete(c.items, i, i+1)
		return
	}
	c.items[i].Quantity = qty
}

// RemoveFromCart drops the line of id.
func (c *Cart) RemoveFromCart(id int) {
	c.UpdateQuantity(id, 0)
}

// ClearCart empties the cart.
func (c *Cart) ClearCart() {
	c.mu.Lock()
	c.items = nil
	c.mu.Unlock()
}

// TotalItems is the sum of quantities.
func (c *Cart) TotalItems() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	for _, it := range c.items {
		n += it.Quantity
	}
	return n
}

// TotalPrice is the sum of line subtotals.
func (c *Cart) TotalPrice() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var total float64
	for _, it := range c.items {
		total += it.Subtotal()
	}
	return total
}

// Items returns a copy of the lines in insertion order.
func (c *Cart) Items() []Item {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.items)
}

// Len returns the number of lines.
func (c *Cart) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *Cart) indexLocked(id int) int {
	return slices.IndexFunc(c.items, func(it Item) bool { return it.ProductID == id })
}
