package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/stockeasy/stockeasy/internal/backend"
)

type row map[string]any

// Table stores rows in insertion order.
type Table struct {
	name string

	mu      sync.RWMutex
	rows    []row
	noEcho  bool
	missing bool
}

func newTable(name string) *Table {
	return &Table{name: name}
}

func missingTable(name string) *Table {
	return &Table{name: name, missing: true}
}

// DisableInsertEcho makes Insert leave dest untouched, like a service that does not
// return created rows.
func (t *Table) DisableInsertEcho() {
	t.mu.Lock()
	t.noEcho = true
	t.mu.Unlock()
}

// Len returns the number of stored rows.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}

// Name returns the table name.
func (t *Table) Name() string {
	return t.name
}

// SelectAll copies every row into dest.
func (t *Table) SelectAll(ctx context.Context, dest any) error {
	if err := t.check(ctx); err != nil {
		return err
	}
	t.mu.RLock()
	snapshot := make([]row, len(t.rows))
	copy(snapshot, t.rows)
	t.mu.RUnlock()
	return transcode(snapshot, dest)
}

// Insert stores rows, assigning an id to rows without one.
func (t *Table) Insert(ctx context.Context, rows any, dest any) error {
	if err := t.check(ctx); err != nil {
		return err
	}
	incoming, err := decodeRows(rows)
	if err != nil {
		return err
	}
	t.mu.Lock()
	created := make([]row, 0, len(incoming))
	for _, r := range incoming {
		if id, ok := r["id"]; !ok || id == nil || id == "" {
			r["id"] = uuid.NewString()
		}
		if t.indexOf(backend.Match{"id": r["id"]}) >= 0 {
			t.mu.Unlock()
			return &backend.Error{Status: 409, Code: "23505", Message: fmt.Sprintf("duplicate key value violates unique constraint %q", t.name+"_pkey")}
		}
		t.rows = append(t.rows, r)
		created = append(created, r)
	}
	noEcho := t.noEcho
	t.mu.Unlock()
	if dest == nil || noEcho {
		return nil
	}
	return transcode(created, dest)
}

// Update merges patch into matching rows. The id column is never rewritten.
func (t *Table) Update(ctx context.Context, patch any, match backend.Match) (int, error) {
	if err := t.check(ctx); err != nil {
		return 0, err
	}
	fields, err := decodeRow(patch)
	if err != nil {
		return 0, err
	}
	delete(fields, "id")
	t.mu.Lock()
	defer t.mu.Unlock()
	affected := 0
	for i, r := range t.rows {
		if !matches(r, match) {
			continue
		}
		updated := make(row, len(r)+len(fields))
		for k, v := range r {
			updated[k] = v
		}
		for k, v := range fields {
			updated[k] = v
		}
		t.rows[i] = updated
		affected++
	}
	return affected, nil
}

// Delete removes matching rows.
func (t *Table) Delete(ctx context.Context, match backend.Match) (int, error) {
	if err := t.check(ctx); err != nil {
		return 0, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	kept := t.rows[:0]
	affected := 0
	for _, r := range t.rows {
		if matches(r, match) {
			affected++
			continue
		}
		kept = append(kept, r)
	}
	t.rows = kept
	return affected, nil
}

func (t *Table) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.missing {
		return fmt.Errorf("%w: %s", backend.ErrUnknownTable, t.name)
	}
	return nil
}

func (t *Table) indexOf(match backend.Match) int {
	for i, r := range t.rows {
		if matches(r, match) {
			return i
		}
	}
	return -1
}

func matches(r row, match backend.Match) bool {
	if len(match) == 0 {
		return false
	}
	for k, want := range match {
		got, ok := r[k]
		if !ok || fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

func decodeRows(v any) ([]row, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("memory: encode rows: %w", err)
	}
	var rows []row
	if err := json.Unmarshal(raw, &rows); err == nil {
		return rows, nil
	}
	var single row
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, errors.New("memory: rows must be a JSON object or array of objects")
	}
	return []row{single}, nil
}

func decodeRow(v any) (row, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("memory: encode patch: %w", err)
	}
	var r row
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, errors.New("memory: patch must be a JSON object")
	}
	return r, nil
}

func transcode(src any, dest any) error {
	raw, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

var _ backend.Table = (*Table)(nil)
