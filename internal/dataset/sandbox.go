package dataset

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"text/tabwriter"

	_ "modernc.org/sqlite"
)

const DefaultMaxRows = 200

var (
	ErrNotReadOnly  = errors.New("only a single read-only SELECT statement is allowed")
	ErrEmptySQL     = errors.New("empty SQL statement")
	forbiddenTokens = regexp.MustCompile(`(?i)\b(attach|detach|pragma|vacuum|load_extension)\b`)
	leadingKeyword  = regexp.MustCompile(`(?i)^\s*(select|with)\b`)
	// string literals and quoted identifiers, with doubled-quote escapes
	quotedText = regexp.MustCompile(`'(?:[^']|'')*'|"(?:[^"]|"")*"`)
)

// ColumnInfo describes one sandbox column.
type ColumnInfo struct {
	Name string
	Type string
}

// Sandbox is a private in-memory SQLite database holding one copy of a
// Table. Connections run with query_only enabled.
type Sandbox struct {
	db      *sql.DB
	table   string
	columns []ColumnInfo
	rows    int
	maxRows int
}

// NewSandbox materialises t into a fresh in-memory database. Columns whose
// non-empty cells all parse as numbers become REAL, the rest TEXT.
func NewSandbox(ctx context.Context, t *Table, maxRows int) (*Sandbox, error) {
	if t == nil || len(t.Columns) == 0 {
		return nil, ErrEmptyDataset
	}
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	name := t.Name
	if name == "" {
		name = DefaultTableName
	}

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sandbox: %w", err)
	}
	// every :memory: connection is its own database
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &Sandbox{db: db, table: name, rows: len(t.Rows), maxRows: maxRows}
	if err := s.load(ctx, t); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, "PRAGMA query_only = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("lock sandbox: %w", err)
	}
	return s, nil
}

func (s *Sandbox) load(ctx context.Context, t *Table) error {
	numeric := numericColumns(t)
	s.columns = make([]ColumnInfo, len(t.Columns))
	defs := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		typ := "TEXT"
		if numeric[i] {
			typ = "REAL"
		}
		s.columns[i] = ColumnInfo{Name: c, Type: typ}
		defs[i] = quoteIdent(c) + " " + typ
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin sandbox load: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(s.table), strings.Join(defs, ", "))); err != nil {
		return fmt.Errorf("create sandbox table: %w", err)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(t.Columns)), ", ")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s VALUES (%s)", quoteIdent(s.table), placeholders))
	if err != nil {
		return fmt.Errorf("prepare sandbox insert: %w", err)
	}
	defer stmt.Close()

	args := make([]any, len(t.Columns))
	for ri, row := range t.Rows {
		for i := range t.Columns {
			args[i] = cellValue(row[i], numeric[i])
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert sandbox row %d: %w", ri+1, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit sandbox load: %w", err)
	}
	return nil
}

func (s *Sandbox) Table() string { return s.table }

func (s *Sandbox) Columns() []ColumnInfo { return append([]ColumnInfo(nil), s.columns...) }

func (s *Sandbox) RowCount() int { return s.rows }

func (s *Sandbox) Close() error { return s.db.Close() }

// Describe returns the schema, the row count and up to sample rows.
func (s *Sandbox) Describe(ctx context.Context, sample int) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "table %q: %d rows, %d columns\n", s.table, s.rows, len(s.columns))
	for _, c := range s.columns {
		fmt.Fprintf(&b, "- %q %s\n", c.Name, c.Type)
	}
	if sample <= 0 {
		return b.String(), nil
	}
	out, err := s.Query(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT %d", quoteIdent(s.table), sample))
	if err != nil {
		return "", err
	}
	b.WriteString("sample rows:\n")
	b.WriteString(out)
	return b.String(), nil
}

// Query runs one read-only statement and renders the result as an aligned
// text table, cut at the sandbox row limit.
func (s *Sandbox) Query(ctx context.Context, query string) (string, error) {
	q, err := validateReadOnly(query)
	if err != nil {
		return "", err
	}

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return "", fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return "", fmt.Errorf("read columns: %w", err)
	}

	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(cols, "\t"))

	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	n, truncated := 0, false
	for rows.Next() {
		if n == s.maxRows {
			truncated = true
			break
		}
		if err := rows.Scan(ptrs...); err != nil {
			return "", fmt.Errorf("scan row: %w", err)
		}
		cells := make([]string, len(vals))
		for i, v := range vals {
			cells[i] = formatValue(v)
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
		n++
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("iterate rows: %w", err)
	}
	if err := w.Flush(); err != nil {
		return "", err
	}
	if truncated {
		fmt.Fprintf(&b, "(output truncated to the first %d rows)\n", s.maxRows)
	} else {
		fmt.Fprintf(&b, "(%d rows)\n", n)
	}
	return b.String(), nil
}

func validateReadOnly(query string) (string, error) {
	q := strings.TrimSpace(query)
	for strings.HasSuffix(q, ";") {
		q = strings.TrimSpace(strings.TrimSuffix(q, ";"))
	}
	if q == "" {
		return "", ErrEmptySQL
	}
	bare := quotedText.ReplaceAllString(q, "''")
	if strings.Contains(bare, ";") {
		return "", fmt.Errorf("%w: multiple statements", ErrNotReadOnly)
	}
	if !leadingKeyword.MatchString(bare) {
		return "", ErrNotReadOnly
	}
	if m := forbiddenTokens.FindString(bare); m != "" {
		return "", fmt.Errorf("%w: %s is not permitted", ErrNotReadOnly, strings.ToUpper(m))
	}
	return q, nil
}

func numericColumns(t *Table) []bool {
	out := make([]bool, len(t.Columns))
	for i := range t.Columns {
		seen := false
		numeric := true
		for _, r := range t.Rows {
			v := strings.TrimSpace(r[i])
			if v == "" {
				continue
			}
			seen = true
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				numeric = false
				break
			}
		}
		out[i] = seen && numeric
	}
	return out
}

func cellValue(v string, numeric bool) any {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	if numeric {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return v
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
