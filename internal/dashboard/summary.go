// Package dashboard reports per-table aggregates over both product tables.
package dashboard

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/stockeasy/stockeasy/internal/backend"
	"github.com/stockeasy/stockeasy/internal/product"
)

// Summary aggregates one table. Most and Least are nil for an empty table; on equal
// quantities the earliest product in the list wins.
type Summary struct {
	Count int              `json:"count"`
	Most  *product.Product `json:"most"`
	Least *product.Product `json:"least"`
}

// Summarize computes the count and the highest and lowest quantity products.
func Summarize(products []product.Product) Summary {
	s := Summary{Count: len(products)}
	if len(products) == 0 {
		return s
	}
	most, least := 0, 0
	for i := 1; i < len(products); i++ {
		if products[i].Quantity > products[most].Quantity {
			most = i
		}
		if products[i].Quantity < products[least].Quantity {
			least = i
		}
	}
	m, l := products[most], products[least]
	s.Most, s.Least = &m, &l
	return s
}

// Report holds the summaries of both tables. A table that failed to load has its
// error set and a zero Summary.
type Report struct {
	Inventory    Summary
	Sales        Summary
	InventoryErr error
	SalesErr     error
}

// Build loads both tables concurrently and summarizes each.
func Build(ctx context.Context, client backend.Client) Report {
	var report Report
	g, gctx := errgroup.WithContext(ctx)
	load := func(kind product.Kind, dst *Summary, dstErr *error) {
		g.Go(func() error {
			products, err := product.NewStore(kind, client.From(kind.Table()), nil).LoadAll(gctx)
			if err != nil {
				*dstErr = err
				return nil
			}
			*dst = Summarize(products)
			return nil
		})
	}
	load(product.Inventory, &report.Inventory, &report.InventoryErr)
	load(product.Sales, &report.Sales, &report.SalesErr)
	_ = g.Wait()
	return report
}

// Err returns the first table error, if any.
func (r Report) Err() error {
	if r.InventoryErr != nil {
		return r.InventoryErr
	}
	return r.SalesErr
}
