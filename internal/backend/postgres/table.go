package postgres

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockeasy/stockeasy/internal/backend"
)

var errMatchRequired = errors.New("postgres: match filter required")

// Table maps the row API onto SQL. Rows travel as jsonb so the driver needs no
// knowledge of the table's columns.
type Table struct {
	pool *pgxpool.Pool
	name string
}

// Name returns the table name.
func (t *Table) Name() string {
	return t.name
}

// SelectAll fetches every row as one jsonb array.
func (t *Table) SelectAll(ctx context.Context, dest any) error {
	var raw []byte
	if err := t.pool.QueryRow(ctx, selectAllSQL(t.name)).Scan(&raw); err != nil {
		return wrapError(err)
	}
	return json.Unmarshal(raw, dest)
}

// Insert writes rows with a single INSERT ... SELECT over jsonb_populate_recordset.
func (t *Table) Insert(ctx context.Context, rows any, dest any) error {
	records, err := decodeRows(rows)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	payload, err := json.Marshal(records)
	if err != nil {
		return err
	}
	result, err := t.pool.Query(ctx, insertSQL(t.name, columnsOf(records)), payload)
	if err != nil {
		return wrapError(err)
	}
	created, err := pgx.CollectRows(result, pgx.RowTo[[]byte])
	if err != nil {
		return wrapError(err)
	}
	if dest == nil {
		return nil
	}
	return json.Unmarshal(joinJSON(created), dest)
}

// Update applies patch to rows selected by match.
func (t *Table) Update(ctx context.Context, patch any, match backend.Match) (int, error) {
	if len(match) == 0 {
		return 0, errMatchRequired
	}
	records, err := decodeRows(patch)
	if err != nil {
		return 0, err
	}
	if len(records) != 1 {
		return 0, errors.New("postgres: patch must be a single object")
	}
	fields := records[0]
	delete(fields, "id")
	if len(fields) == 0 {
		return 0, errors.New("postgres: empty patch")
	}
	payload, err := json.Marshal(fields)
	if err != nil {
		return 0, err
	}
	where, args := whereSQL(match, 2)
	tag, err := t.pool.Exec(ctx, updateSQL(t.name, columnsOf(records), where), append([]any{payload}, args...)...)
	if err != nil {
		return 0, wrapError(err)
	}
	return int(tag.RowsAffected()), nil
}

// Delete removes rows selected by match.
func (t *Table) Delete(ctx context.Context, match backend.Match) (int, error) {
	if len(match) == 0 {
		return 0, errMatchRequired
	}
	where, args := whereSQL(match, 1)
	tag, err := t.pool.Exec(ctx, "DELETE FROM "+ident(t.name)+" AS t WHERE "+where, args...)
	if err != nil {
		return 0, wrapError(err)
	}
	return int(tag.RowsAffected()), nil
}

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func selectAllSQL(table string) string {
	return "SELECT COALESCE(jsonb_agg(to_jsonb(t)), '[]'::jsonb) FROM " + ident(table) + " AS t"
}

func insertSQL(table string, columns []string) string {
	cols := identList(columns)
	return "INSERT INTO " + ident(table) + " AS t (" + cols + ") SELECT " + cols +
		" FROM jsonb_populate_recordset(NULL::" + ident(table) + ", $1::jsonb) RETURNING to_jsonb(t)"
}

func updateSQL(table string, columns []string, where string) string {
	sets := make([]string, 0, len(columns))
	for _, c := range columns {
		if c == "id" {
			continue
		}
		sets = append(sets, ident(c)+" = p."+ident(c))
	}
	return "UPDATE " + ident(table) + " AS t SET " + strings.Join(sets, ", ") +
		" FROM jsonb_populate_record(NULL::" + ident(table) + ", $1::jsonb) AS p WHERE " + where
}

// whereSQL renders match as text comparisons so callers can pass opaque string ids
// regardless of the column type. Placeholders start at $first.
func whereSQL(match backend.Match, first int) (string, []any) {
	keys := make([]string, 0, len(match))
	for k := range match {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	clauses := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))
	for i, k := range keys {
		clauses = append(clauses, "t."+ident(k)+"::text = $"+strconv.Itoa(first+i))
		args = append(args, fmt.Sprint(match[k]))
	}
	return strings.Join(clauses, " AND "), args
}

func identList(columns []string) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = ident(c)
	}
	return strings.Join(quoted, ", ")
}

func columnsOf(records []map[string]any) []string {
	seen := make(map[string]struct{})
	var cols []string
	for _, r := range records {
		for k := range r {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			cols = append(cols, k)
		}
	}
	sort.Strings(cols)
	return cols
}

func decodeRows(v any) ([]map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("postgres: encode rows: %w", err)
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '{' {
		raw = append(append([]byte{'['}, raw...), ']')
	}
	var records []map[string]any
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, errors.New("postgres: rows must be a JSON object or array of objects")
	}
	return records, nil
}

func joinJSON(items [][]byte) []byte {
	return append(append([]byte{'['}, bytes.Join(items, []byte{','})...), ']')
}

func wrapError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &backend.Error{Status: statusFor(pgErr.Code), Code: pgErr.Code, Message: pgErr.Message}
	}
	return err
}

func statusFor(code string) int {
	switch {
	case code == "23505":
		return 409
	case code == "42501":
		return 403
	case code == "42P01":
		return 404
	case strings.HasPrefix(code, "22"), strings.HasPrefix(code, "23"):
		return 400
	default:
		return 500
	}
}

var _ backend.Table = (*Table)(nil)
