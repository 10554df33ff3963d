package product

import (
	"fmt"

	"github.com/stockeasy/stockeasy/internal/shell"
)

// Kind selects one of the two product tables.
type Kind int

const (
	// Inventory is the supplies table.
	Inventory Kind = iota
	// Sales is the table of products offered for sale.
	Sales
)

// Kinds lists every table in display order.
var Kinds = []Kind{Inventory, Sales}

// ParseKind resolves the string form produced by Kind.String.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("product: unknown kind %q", s)
}

func (k Kind) String() string {
	switch k {
	case Inventory:
		return "inventory"
	case Sales:
		return "sales"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Table is the backend table name.
func (k Kind) Table() string {
	if k == Sales {
		return "sales_products"
	}
	return "products"
}

// Title is the page heading.
func (k Kind) Title() string {
	if k == Sales {
		return "Ventas"
	}
	return "Insumos"
}

// Path is the mount point of the kind's pages.
func (k Kind) Path() string {
	return "/" + k.String()
}

// Page is the navigation entry of the kind.
func (k Kind) Page() shell.Page {
	if k == Sales {
		return shell.PageSales
	}
	return shell.PageInventory
}
