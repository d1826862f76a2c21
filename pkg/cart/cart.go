package cart

import (
	"math"

	"gearshop/pkg/models"
)

// Line is one product in the cart. Display fields are captured when the
// product is added.
type Line struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Image     string  `json:"image,omitempty"`
	Quantity  int     `json:"quantity"`
}

// Subtotal is price times quantity, rounded to cents.
func (l Line) Subtotal() float64 {
	return roundCents(l.Price * float64(l.Quantity))
}

// Cart is an immutable value. Every mutation returns a new Cart and leaves
// the receiver untouched, so a Cart can be handed to other goroutines
// without locking.
type Cart struct {
	lines []Line
}

// Add puts one unit of p in the cart, or bumps the quantity if it is
// already there.
func (c Cart) Add(p models.Product) Cart {
	return c.AddN(p, 1)
}

// AddN adds n units of p. Non-positive n leaves the cart unchanged.
func (c Cart) AddN(p models.Product, n int) Cart {
	if n <= 0 {
		return c
	}
	lines := c.copyLines()
	for i := range lines {
		if lines[i].ProductID == p.ID {
			lines[i].Quantity += n
			return Cart{lines: lines}
		}
	}
	return Cart{lines: append(lines, Line{
		ProductID: p.ID,
		Name:      p.Name,
		Price:     p.Price,
		Image:     p.Image,
		Quantity:  n,
	})}
}

// Remove drops the line for productID.
func (c Cart) Remove(productID string) Cart {
	lines := make([]Line, 0, len(c.lines))
	for _, l := range c.lines {
		if l.ProductID != productID {
			lines = append(lines, l)
		}
	}
	return Cart{lines: lines}
}

// SetQuantity changes the quantity of a line. A quantity of zero or less
// removes the line. Unknown products are ignored.
func (c Cart) SetQuantity(productID string, quantity int) Cart {
	if quantity <= 0 {
		return c.Remove(productID)
	}
	lines := c.copyLines()
	for i := range lines {
		if lines[i].ProductID == productID {
			lines[i].Quantity = quantity
		}
	}
	return Cart{lines: lines}
}

// Clear empties the cart.
func (Cart) Clear() Cart {
	return Cart{}
}

// Lines returns a copy of the lines in insertion order.
func (c Cart) Lines() []Line {
	return c.copyLines()
}

// Len is the number of distinct products.
func (c Cart) Len() int {
	return len(c.lines)
}

// Quantity of productID in the cart, zero when absent.
func (c Cart) Quantity(productID string) int {
	for _, l := range c.lines {
		if l.ProductID == productID {
			return l.Quantity
		}
	}
	return 0
}

// Total is the sum of line subtotals.
func (c Cart) Total() float64 {
	cents := int64(0)
	for _, l := range c.lines {
		cents += int64(math.Round(l.Subtotal() * 100))
	}
	return float64(cents) / 100
}

// ProductIDs lists the products in the cart, used as recommendation seeds.
func (c Cart) ProductIDs() []string {
	ids := make([]string, len(c.lines))
	for i, l := range c.lines {
		ids[i] = l.ProductID
	}
	return ids
}

func (c Cart) copyLines() []Line {
	return append([]Line(nil), c.lines...)
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
