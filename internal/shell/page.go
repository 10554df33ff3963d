// Package shell is the navigation frame around the signed-in pages.
package shell

// Page selects one of the top-level views.
type Page string

const (
	PageDashboard Page = "dashboard"
	PageInventory Page = "inventory"
	PageSales     Page = "sales"
)

// Pages lists the navigation entries in display order.
var Pages = []Page{PageDashboard, PageInventory, PageSales}

// ParsePage returns the page named s.
func ParsePage(s string) (Page, bool) {
	for _, p := range Pages {
		if string(p) == s {
			return p, true
		}
	}
	return "", false
}

// Path is the URL the page is mounted at.
func (p Page) Path() string {
	return "/" + string(p)
}

// Title is the navigation label.
func (p Page) Title() string {
	switch p {
	case PageDashboard:
		return "Dashboard"
	case PageInventory:
		return "Insumos"
	case PageSales:
		return "Ventas"
	default:
		return string(p)
	}
}
