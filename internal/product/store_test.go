package product

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockeasy/stockeasy/internal/backend"
	"github.com/stockeasy/stockeasy/internal/backend/memory"
	"github.com/stockeasy/stockeasy/internal/shared"
)

// failingTable fails the configured operations and delegates the rest.
type failingTable struct {
	backend.Table
	failSelect bool
	failInsert bool
	failUpdate bool
	failDelete bool
}

var errRemote = errors.New("remote unavailable")

func (f *failingTable) SelectAll(ctx context.Context, dest any) error {
	if f.failSelect {
		return errRemote
	}
	return f.Table.SelectAll(ctx, dest)
}

func (f *failingTable) Insert(ctx context.Context, rows any, dest any) error {
	if f.failInsert {
		return errRemote
	}
	return f.Table.Insert(ctx, rows, dest)
}

func (f *failingTable) Update(ctx context.Context, patch any, match backend.Match) (int, error) {
	if f.failUpdate {
		return 0, errRemote
	}
	return f.Table.Update(ctx, patch, match)
}

func (f *failingTable) Delete(ctx context.Context, match backend.Match) (int, error) {
	if f.failDelete {
		return 0, errRemote
	}
	return f.Table.Delete(ctx, match)
}

func newTestStore(t *testing.T, kind Kind) (*Store, *memory.Client) {
	t.Helper()
	client := memory.NewClient(Inventory.Table(), Sales.Table())
	return NewStore(kind, client.From(kind.Table()), NewActivityLog(10)), client
}

func seed(t *testing.T, s *Store, drafts ...Draft) []Product {
	t.Helper()
	out := make([]Product, 0, len(drafts))
	for _, d := range drafts {
		p, err := s.Create(context.Background(), d)
		require.NoError(t, err)
		out = append(out, p)
	}
	return out
}

func countMatching(products []Product, d Draft) int {
	n := 0
	for _, p := range products {
		if p.Matches(d) {
			n++
		}
	}
	return n
}

func TestCreateThenLoadAllContainsExactlyOneMatch(t *testing.T) {
	store, _ := newTestStore(t, Inventory)
	ctx := context.Background()
	seed(t, store, Draft{Name: "Harina", Quantity: 10, Price: 1.5})

	d := Draft{Name: "Azúcar", Quantity: 3, Price: 2.25, Description: "Bolsa 1kg"}
	created, err := store.Create(ctx, d)
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.True(t, created.Matches(d))

	products, err := store.LoadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, products, 2)
	assert.Equal(t, 1, countMatching(products, d))
	assert.Equal(t, []string{"Producto agregado: Harina", "Producto agregado: Azúcar"}, messages(store.Activity()))
}

func TestCreateWithoutEchoLocatesRowAfterReload(t *testing.T) {
	store, client := newTestStore(t, Sales)
	client.Table(Sales.Table()).DisableInsertEcho()
	ctx := context.Background()
	_, err := store.LoadAll(ctx)
	require.NoError(t, err)

	d := Draft{Name: "Pan", Quantity: 4, Price: 0.5}
	created, err := store.Create(ctx, d)
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Len(t, store.Products(), 1)
	found, ok := store.Find(created.ID)
	require.True(t, ok)
	assert.Equal(t, created, found)
}

func TestCreateRejectsInvalidDraft(t *testing.T) {
	store, client := newTestStore(t, Inventory)
	for _, d := range []Draft{
		{Name: "   ", Quantity: 1},
		{Name: "Sal", Quantity: -1},
		{Name: "Sal", Price: -0.01},
	} {
		_, err := store.Create(context.Background(), d)
		assert.ErrorIs(t, err, shared.ErrCreate)
		assert.ErrorIs(t, err, shared.ErrValidation)
	}
	assert.Zero(t, client.Table(Inventory.Table()).Len())
	assert.Zero(t, store.Activity().Len())
}

func TestUpdateThenLoadAllReplacesAllFields(t *testing.T) {
	store, _ := newTestStore(t, Inventory)
	ctx := context.Background()
	existing := seed(t, store, Draft{Name: "Harina", Quantity: 10, Price: 1.5, Description: "vieja"}, Draft{Name: "Sal", Quantity: 1})

	patch := Draft{Name: "Harina 000", Quantity: 7, Price: 1.75}
	require.NoError(t, store.Update(ctx, existing[0].ID, patch))

	products, err := store.LoadAll(ctx)
	require.NoError(t, err)
	updated, ok := findIn(products, existing[0].ID)
	require.True(t, ok)
	assert.Equal(t, patch, updated.Draft())
	other, ok := findIn(products, existing[1].ID)
	require.True(t, ok)
	assert.Equal(t, existing[1], other)
	assert.Contains(t, messages(store.Activity()), "Producto editado: Harina 000")
}

func TestUpdateUnknownIDIsNotFound(t *testing.T) {
	store, _ := newTestStore(t, Inventory)
	seed(t, store, Draft{Name: "Harina", Quantity: 1})

	err := store.Update(context.Background(), "missing", Draft{Name: "X"})
	assert.ErrorIs(t, err, shared.ErrUpdate)
	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.NotContains(t, messages(store.Activity()), "Producto editado: X")
}

func TestUpdateSilentNoOpDetectedByReload(t *testing.T) {
	client := memory.NewClient(Inventory.Table())
	created := seed(t, NewStore(Inventory, client.From(Inventory.Table()), nil), Draft{Name: "Harina", Quantity: 1})

	// The row disappears remotely while the backend keeps reporting success.
	_, err := client.From(Inventory.Table()).Delete(context.Background(), backend.Match{"id": created[0].ID.String()})
	require.NoError(t, err)
	store := NewStore(Inventory, &silentTable{Table: client.From(Inventory.Table())}, nil)

	err = store.Update(context.Background(), created[0].ID, Draft{Name: "Harina", Quantity: 2})
	assert.ErrorIs(t, err, shared.ErrUpdate)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

// silentTable reports one affected row no matter what happened remotely.
type silentTable struct {
	backend.Table
}

func (s *silentTable) Update(ctx context.Context, patch any, match backend.Match) (int, error) {
	_, err := s.Table.Update(ctx, patch, match)
	return 1, err
}

func TestRemoveThenLoadAllOmitsID(t *testing.T) {
	store, _ := newTestStore(t, Sales)
	ctx := context.Background()
	existing := seed(t, store, Draft{Name: "Pan", Quantity: 1}, Draft{Name: "Leche", Quantity: 2})

	require.NoError(t, store.Remove(ctx, existing[0].ID))
	products, err := store.LoadAll(ctx)
	require.NoError(t, err)
	_, ok := findIn(products, existing[0].ID)
	assert.False(t, ok)
	assert.Len(t, products, 1)
	assert.Contains(t, messages(store.Activity()), "Producto eliminado: "+existing[0].ID.String())

	err = store.Remove(ctx, existing[0].ID)
	assert.ErrorIs(t, err, shared.ErrDelete)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestFailuresAreClassifiedAndKeepCache(t *testing.T) {
	client := memory.NewClient(Inventory.Table())
	table := &failingTable{Table: client.From(Inventory.Table())}
	store := NewStore(Inventory, table, NewActivityLog(5))
	ctx := context.Background()
	existing := seed(t, store, Draft{Name: "Harina", Quantity: 1})
	before := store.Products()

	table.failSelect = true
	_, err := store.LoadAll(ctx)
	assert.ErrorIs(t, err, shared.ErrFetch)
	assert.ErrorIs(t, err, errRemote)
	assert.Equal(t, before, store.Products())
	table.failSelect = false

	table.failInsert = true
	_, err = store.Create(ctx, Draft{Name: "Sal"})
	assert.ErrorIs(t, err, shared.ErrCreate)
	table.failInsert = false

	table.failUpdate = true
	assert.ErrorIs(t, store.Update(ctx, existing[0].ID, Draft{Name: "X"}), shared.ErrUpdate)
	table.failUpdate = false

	table.failDelete = true
	assert.ErrorIs(t, store.Remove(ctx, existing[0].ID), shared.ErrDelete)

	assert.Equal(t, before, store.Products())
	assert.Equal(t, []string{"Producto agregado: Harina"}, messages(store.Activity()))
}

func TestCreateReportsReloadFailureWithCreatedProduct(t *testing.T) {
	client := memory.NewClient(Inventory.Table())
	table := &failingTable{Table: client.From(Inventory.Table()), failSelect: true}
	store := NewStore(Inventory, table, nil)

	created, err := store.Create(context.Background(), Draft{Name: "Sal", Quantity: 1})
	assert.ErrorIs(t, err, shared.ErrFetch)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, 1, client.Table(Inventory.Table()).Len())
}

func TestKindsAreIndependent(t *testing.T) {
	client := memory.NewClient(Inventory.Table(), Sales.Table())
	inventory := NewStore(Inventory, client.From(Inventory.Table()), nil)
	sales := NewStore(Sales, client.From(Sales.Table()), nil)
	seed(t, inventory, Draft{Name: "Harina", Quantity: 1})

	products, err := sales.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, products)
	assert.NotNil(t, products)
}

func findIn(products []Product, id ID) (Product, bool) {
	for _, p := range products {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}

func messages(l *ActivityLog) []string {
	var out []string
	for _, e := range l.Entries() {
		out = append(out, e.Message)
	}
	return out
}
