// Package dump reads the COPY blocks of a PostgreSQL plain-text dump and
// decodes the CRISPR tables into domain records.
package dump

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// copyHeader matches `COPY public.<table> (<columns>) FROM stdin;`.
var copyHeader = regexp.MustCompile(`^COPY\s+public\.(\S+)\s*\((.*?)\)`)

const (
	nullValue   = `\N`
	endOfCopy   = `\.`
	maxLineSize = 64 << 20
)

// ParseError reports a malformed value. Line is 1-based within the dump.
type ParseError struct {
	Table  string
	Line   int
	Column string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("dump: table %s line %d: %v", e.Table, e.Line, e.Err)
	}
	return fmt.Sprintf("dump: table %s line %d column %s: %v", e.Table, e.Line, e.Column, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Row is one data line of a COPY block. A nil value is a database null.
type Row struct {
	Line   int
	Values []*string
}

// Table is one COPY block. Column names are prefixed with the table name.
type Table struct {
	Name    string
	Columns []string
	Rows    []Row
}

// Index returns the position of column, or -1.
func (t *Table) Index(column string) int {
	for i, c := range t.Columns {
		if c == column {
			return i
		}
	}
	return -1
}

// Records returns the rows as column to value maps. Nulls map to nil.
func (t *Table) Records() []map[string]any {
	out := make([]map[string]any, len(t.Rows))
	for i, row := range t.Rows {
		rec := make(map[string]any, len(t.Columns))
		for j, col := range t.Columns {
			var v any
			if j < len(row.Values) && row.Values[j] != nil {
				v = *row.Values[j]
			}
			rec[col] = v
		}
		out[i] = rec
	}
	return out
}

// Dump holds every COPY block of a dump in file order.
type Dump struct {
	Tables []*Table
}

// Table returns the named block. When a table is copied more than once the
// last block wins.
func (d *Dump) Table(name string) (*Table, bool) {
	for i := len(d.Tables) - 1; i >= 0; i-- {
		if d.Tables[i].Name == name {
			return d.Tables[i], true
		}
	}
	return nil, false
}

// Parse reads a dump. Lines outside COPY blocks are ignored. A block ends at
// `\.` or at a blank line.
func Parse(r io.Reader) (*Dump, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	d := &Dump{}
	var current *Table
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimRight(sc.Text(), "\r")
		if m := copyHeader.FindStringSubmatch(text); m != nil {
			current = &Table{Name: m[1], Columns: prefixColumns(m[1], m[2])}
			d.Tables = append(d.Tables, current)
			continue
		}
		if current == nil {
			continue
		}
		if strings.TrimSpace(text) == "" || text == endOfCopy {
			current = nil
			continue
		}
		fields := strings.Split(text, "\t")
		if len(fields) > len(current.Columns) {
			return nil, &ParseError{
				Table: current.Name,
				Line:  line,
				Err:   fmt.Errorf("%d fields for %d columns", len(fields), len(current.Columns)),
			}
		}
		row := Row{Line: line, Values: make([]*string, len(current.Columns))}
		for i, f := range fields {
			if f == nullValue {
				continue
			}
			v := unescape(f)
			row.Values[i] = &v
		}
		current.Rows = append(current.Rows, row)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("dump: read line %d: %w", line+1, err)
	}
	return d, nil
}

func prefixColumns(table, list string) []string {
	parts := strings.Split(list, ",")
	cols := make([]string, 0, len(parts))
	for _, p := range parts {
		name := strings.Trim(strings.TrimSpace(p), `"`)
		if name == "" {
			continue
		}
		cols = append(cols, table+"_"+name)
	}
	return cols
}

// unescape resolves the backslash sequences of the COPY text format.
func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 't':
			b.WriteByte('\t')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
