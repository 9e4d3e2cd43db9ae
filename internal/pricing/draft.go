package pricing

import "github.com/shopspring/decimal"

// Draft is an unsaved sale being edited. Every With/Without call returns a new
// Draft and leaves the receiver untouched.
type Draft struct {
	items    []LineItem
	discount Discount
	freight  decimal.Decimal
}

func NewDraft() Draft {
	return Draft{discount: Discount{Kind: DiscountNone}}
}

// Items returns a copy of the draft lines in insertion order.
func (d Draft) Items() []LineItem {
	out := make([]LineItem, len(d.items))
	copy(out, d.items)
	return out
}

func (d Draft) Discount() Discount       { return d.discount }
func (d Draft) Freight() decimal.Decimal { return d.freight }

// WithItem adds item. A product already on the draft at the same unit price
// gets its quantity summed; at another price it becomes a line of its own.
func (d Draft) WithItem(item LineItem) Draft {
	items := d.Items()
	for i := range items {
		if items[i].ProductID == item.ProductID && items[i].UnitPrice.Equal(item.UnitPrice) {
			items[i].Quantity += item.Quantity
			d.items = items
			return d
		}
	}
	d.items = append(items, item)
	return d
}

func (d Draft) WithoutItem(productID string) Draft {
	items := make([]LineItem, 0, len(d.items))
	for _, it := range d.items {
		if it.ProductID != productID {
			items = append(items, it)
		}
	}
	d.items = items
	return d
}

// WithQuantity sets the quantity of every line of productID. A quantity below
// one removes them.
func (d Draft) WithQuantity(productID string, qty int) Draft {
	if qty < 1 {
		return d.WithoutItem(productID)
	}
	items := d.Items()
	for i := range items {
		if items[i].ProductID == productID {
			items[i].Quantity = qty
		}
	}
	d.items = items
	return d
}

func (d Draft) WithDiscount(discount Discount) Draft {
	d.discount = discount
	return d
}

func (d Draft) WithFreight(freight decimal.Decimal) Draft {
	d.freight = freight
	return d
}

// Price recomputes the breakdown from the current draft state.
func (d Draft) Price() (Breakdown, error) {
	return Calculate(d.items, d.discount, d.freight)
}
