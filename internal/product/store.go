package product

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/stockeasy/stockeasy/internal/backend"
	"github.com/stockeasy/stockeasy/internal/shared"
)

var validate = validator.New()

// Store is the CRUD facade over one product table plus a local copy of its rows.
// Every successful mutation is followed by a full reload, so the local list never
// drifts from what the backend reports. A Store is not safe for concurrent use.
type Store struct {
	kind     Kind
	table    backend.Table
	activity *ActivityLog
	products []Product
	loaded   bool
}

// NewStore binds a store to the table of kind. activity may be nil.
func NewStore(kind Kind, table backend.Table, activity *ActivityLog) *Store {
	return &Store{kind: kind, table: table, activity: activity}
}

// Kind returns the table selector.
func (s *Store) Kind() Kind {
	return s.kind
}

// Products returns a copy of the local list.
func (s *Store) Products() []Product {
	out := make([]Product, len(s.products))
	copy(out, s.products)
	return out
}

// Loaded reports whether the local list has been filled at least once.
func (s *Store) Loaded() bool {
	return s.loaded
}

// Activity returns the activity log the store records into.
func (s *Store) Activity() *ActivityLog {
	return s.activity
}

// Find returns the locally cached product with id.
func (s *Store) Find(id ID) (Product, bool) {
	for _, p := range s.products {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}

// LoadAll replaces the local list with the backend's rows. On failure the previous
// list is kept.
func (s *Store) LoadAll(ctx context.Context) ([]Product, error) {
	var rows []Product
	if err := s.table.SelectAll(ctx, &rows); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", shared.ErrFetch, s.kind.Table(), err)
	}
	if rows == nil {
		rows = []Product{}
	}
	s.products = rows
	s.loaded = true
	return s.Products(), nil
}

// Create inserts d and reloads. When the backend does not echo the created row, the
// product is located in the reloaded list instead. A reload failure after a
// successful insert is reported as ErrFetch together with the created product.
func (s *Store) Create(ctx context.Context, d Draft) (Product, error) {
	d = d.Normalize()
	if err := validate.Struct(d); err != nil {
		return Product{}, fmt.Errorf("%w: %w: %w", shared.ErrCreate, shared.ErrValidation, err)
	}
	known := s.knownIDs()
	var echoed []Product
	if err := s.table.Insert(ctx, []Draft{d}, &echoed); err != nil {
		return Product{}, fmt.Errorf("%w: %s: %w", shared.ErrCreate, s.kind.Table(), err)
	}
	s.activity.Record("Producto agregado: " + d.Name)

	created := Product{Name: d.Name, Quantity: d.Quantity, Price: d.Price, Description: d.Description}
	if len(echoed) > 0 {
		created = echoed[0]
	}
	if _, err := s.LoadAll(ctx); err != nil {
		return created, err
	}
	if created.ID == "" {
		if found, ok := s.locate(d, known); ok {
			created = found
		}
	}
	return created, nil
}

// Update replaces every field of the product with id. A zero row update, or an id
// missing after the reload, is ErrUpdate wrapping ErrNotFound.
func (s *Store) Update(ctx context.Context, id ID, d Draft) error {
	d = d.Normalize()
	if err := validate.Struct(d); err != nil {
		return fmt.Errorf("%w: %w: %w", shared.ErrUpdate, shared.ErrValidation, err)
	}
	n, err := s.table.Update(ctx, d, backend.Match{"id": id.String()})
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", shared.ErrUpdate, s.kind.Table(), id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %s: %w", shared.ErrUpdate, s.kind.Table(), id, shared.ErrNotFound)
	}
	s.activity.Record("Producto editado: " + d.Name)
	if _, err := s.LoadAll(ctx); err != nil {
		return err
	}
	if _, ok := s.Find(id); !ok {
		return fmt.Errorf("%w: %s %s: %w", shared.ErrUpdate, s.kind.Table(), id, shared.ErrNotFound)
	}
	return nil
}

// Remove deletes the product with id. Callers confirm with the user first.
func (s *Store) Remove(ctx context.Context, id ID) error {
	n, err := s.table.Delete(ctx, backend.Match{"id": id.String()})
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", shared.ErrDelete, s.kind.Table(), id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %s: %w", shared.ErrDelete, s.kind.Table(), id, shared.ErrNotFound)
	}
	s.activity.Record("Producto eliminado: " + id.String())
	_, err = s.LoadAll(ctx)
	return err
}

func (s *Store) knownIDs() map[ID]struct{} {
	if !s.loaded {
		return nil
	}
	ids := make(map[ID]struct{}, len(s.products))
	for _, p := range s.products {
		ids[p.ID] = struct{}{}
	}
	return ids
}

// locate finds the newest row equal to d whose id was not known before the insert.
func (s *Store) locate(d Draft, known map[ID]struct{}) (Product, bool) {
	for i := len(s.products) - 1; i >= 0; i-- {
		p := s.products[i]
		if _, seen := known[p.ID]; seen {
			continue
		}
		if p.Matches(d) {
			return p, true
		}
	}
	return Product{}, false
}
