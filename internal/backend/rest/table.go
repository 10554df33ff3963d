package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/supabase-community/postgrest-go"

	"github.com/stockeasy/stockeasy/internal/backend"
)

const (
	returnRows = "representation"
	returnNone = "minimal"
)

var errMatchRequired = errors.New("rest: match filter required")

// Table implements backend.Table on a PostgREST resource.
type Table struct {
	client *Client
	name   string
}

// Name returns the table name.
func (t *Table) Name() string {
	return t.name
}

// SelectAll fetches every row visible to the caller.
func (t *Table) SelectAll(ctx context.Context, dest any) error {
	ctx, cancel := t.client.withTimeout(ctx)
	defer cancel()
	body, _, err := t.client.rows(ctx).From(t.name).Select("*", "", false).Execute()
	if err != nil {
		return unwrap(err)
	}
	return decodeRows(body, dest)
}

// Insert posts rows; the service echoes them only when dest is requested.
func (t *Table) Insert(ctx context.Context, rows any, dest any) error {
	payload, err := encode(rows)
	if err != nil {
		return err
	}
	returning := returnNone
	if dest != nil {
		returning = returnRows
	}
	ctx, cancel := t.client.withTimeout(ctx)
	defer cancel()
	body, _, err := t.client.rows(ctx).From(t.name).Insert(payload, false, "", returning, "").Execute()
	if err != nil {
		return unwrap(err)
	}
	if dest == nil {
		return nil
	}
	return decodeRows(body, dest)
}

// Update patches the rows selected by match.
func (t *Table) Update(ctx context.Context, patch any, match backend.Match) (int, error) {
	if len(match) == 0 {
		return 0, errMatchRequired
	}
	payload, err := encode(patch)
	if err != nil {
		return 0, err
	}
	ctx, cancel := t.client.withTimeout(ctx)
	defer cancel()
	return affected(filter(t.client.rows(ctx).From(t.name).Update(payload, returnRows, ""), match))
}

// Delete removes the rows selected by match.
func (t *Table) Delete(ctx context.Context, match backend.Match) (int, error) {
	if len(match) == 0 {
		return 0, errMatchRequired
	}
	ctx, cancel := t.client.withTimeout(ctx)
	defer cancel()
	return affected(filter(t.client.rows(ctx).From(t.name).Delete(returnRows, ""), match))
}

func filter(fb *postgrest.FilterBuilder, match backend.Match) *postgrest.FilterBuilder {
	keys := make([]string, 0, len(match))
	for k := range match {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fb = fb.Eq(k, fmt.Sprint(match[k]))
	}
	return fb
}

// affected counts the rows echoed back by a mutation so silent no-ops are visible
// to the caller.
func affected(fb *postgrest.FilterBuilder) (int, error) {
	body, _, err := fb.Execute()
	if err != nil {
		return 0, unwrap(err)
	}
	var rows []json.RawMessage
	if err := decodeRows(body, &rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

func decodeRows(body []byte, dest any) error {
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("rest: decode response: %w", err)
	}
	return nil
}

var _ backend.Table = (*Table)(nil)
