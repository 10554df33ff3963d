package product

import (
	"strings"

	"golang.org/x/text/cases"
)

// Filter keeps the products whose name contains term, ignoring case. An empty term
// returns products unchanged.
func Filter(products []Product, term string) []Product {
	if term == "" {
		return products
	}
	fold := cases.Fold()
	needle := fold.String(term)
	out := make([]Product, 0, len(products))
	for _, p := range products {
		if strings.Contains(fold.String(p.Name), needle) {
			out = append(out, p)
		}
	}
	return out
}
