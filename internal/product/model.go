package product

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ID is the opaque row identifier assigned by the backend. Tables keyed by numeric
// columns are accepted and kept in their decimal string form.
type ID string

// UnmarshalJSON accepts both JSON strings and numbers.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("product: id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string {
	return string(id)
}

// Product is an inventory or sales line item.
type Product struct {
	ID          ID      `json:"id"`
	Name        string  `json:"name"`
	Quantity    int     `json:"quantity"`
	Price       float64 `json:"price"`
	Description string  `json:"description"`
}

// Draft is a product without its id: the payload of create and update.
type Draft struct {
	Name        string  `json:"name" validate:"required,max=200"`
	Quantity    int     `json:"quantity" validate:"gte=0"`
	Price       float64 `json:"price" validate:"gte=0"`
	Description string  `json:"description" validate:"max=2000"`
}

// Draft returns the product's fields without the id.
func (p Product) Draft() Draft {
	return Draft{Name: p.Name, Quantity: p.Quantity, Price: p.Price, Description: p.Description}
}

// Matches reports whether every field other than the id equals d.
func (p Product) Matches(d Draft) bool {
	return p.Draft() == d
}

// Normalize trims surrounding whitespace from text fields.
func (d Draft) Normalize() Draft {
	d.Name = strings.TrimSpace(d.Name)
	d.Description = strings.TrimSpace(d.Description)
	return d
}
