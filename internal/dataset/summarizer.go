package dataset

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// column accumulates per-column state while scanning rows.
type column struct {
	name      string
	nullCount int
	sample    []string // first sampleSize non-null values, in row order
	distinct  map[string]struct{}
}

func newColumn(name string) *column {
	return &column{name: name, distinct: make(map[string]struct{})}
}

func (c *column) observe(value string, isNull bool, sampleSize int) {
	if isNull {
		c.nullCount++
		return
	}
	if len(c.sample) < sampleSize {
		c.sample = append(c.sample, value)
		c.distinct[value] = struct{}{}
	}
}

func (c *column) summarize(maxSampleValues int) ColumnSummary {
	n := min(maxSampleValues, len(c.sample))
	return ColumnSummary{
		Name:            c.name,
		Type:            inferType(c.sample),
		NullCount:       c.nullCount,
		SampleValues:    append([]string(nil), c.sample[:n]...),
		DistinctSamples: len(c.distinct),
	}
}

// Summarize loads the dataset at path and produces its structural summary.
// The format is chosen by file extension (.csv or .json).
func Summarize(path string, opts Options) (*Summary, error) {
	var format Format
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		format = FormatCSV
	case ".json":
		format = FormatJSON
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ErrLoad, path, err)
	}
	defer f.Close()

	return SummarizeReader(f, format, path, opts)
}

// SummarizeReader summarizes an already-open dataset stream. The source string
// only labels the resulting summary.
func SummarizeReader(r io.Reader, format Format, source string, opts Options) (*Summary, error) {
	opts = opts.withDefaults()

	var (
		cols     []*column
		rowCount int
		err      error
	)
	switch format {
	case FormatCSV:
		cols, rowCount, err = scanCSV(r, opts)
	case FormatJSON:
		cols, rowCount, err = scanJSON(r, opts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, err
	}

	sum := &Summary{Source: source, RowCount: rowCount}
	for _, c := range cols {
		sum.Columns = append(sum.Columns, c.summarize(opts.MaxSampleValues))
	}
	return sum, nil
}

func scanCSV(r io.Reader, opts Options) ([]*column, int, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if err == io.EOF {
		return nil, 0, fmt.Errorf("%w: empty csv source", ErrLoad)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("%w: reading csv header: %v", ErrLoad, err)
	}

	cols := make([]*column, len(header))
	for i, name := range header {
		cols[i] = newColumn(strings.TrimSpace(name))
	}

	rowCount := 0
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("%w: reading csv row %d: %v", ErrLoad, rowCount+1, err)
		}
		for i, raw := range record {
			cols[i].observe(raw, isNull(raw), opts.SampleSize)
		}
		rowCount++
	}
	return cols, rowCount, nil
}

// scanJSON expects a top-level array of flat objects. Column order is the
// order keys are first seen while scanning, so repeated loads of the same
// file always agree.
func scanJSON(r io.Reader, opts Options) ([]*column, int, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	if err := expectDelim(dec, '['); err != nil {
		return nil, 0, err
	}

	var (
		cols     []*column
		byName   = make(map[string]*column)
		rowCount int
	)
	for dec.More() {
		if err := expectDelim(dec, '{'); err != nil {
			return nil, 0, err
		}
		seen := make(map[string]struct{})
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return nil, 0, fmt.Errorf("%w: reading json record %d: %v", ErrLoad, rowCount+1, err)
			}
			key := keyTok.(string)

			valTok, err := dec.Token()
			if err != nil {
				return nil, 0, fmt.Errorf("%w: reading json record %d: %v", ErrLoad, rowCount+1, err)
			}
			if d, ok := valTok.(json.Delim); ok {
				return nil, 0, fmt.Errorf("%w: record %d field %q: nested %q values are not tabular", ErrLoad, rowCount+1, key, d)
			}

			col, ok := byName[key]
			if !ok {
				col = newColumn(key)
				byName[key] = col
				cols = append(cols, col)
				// Keys absent from earlier records count as nulls there.
				col.nullCount = rowCount
			}
			value, null := jsonScalar(valTok)
			col.observe(value, null, opts.SampleSize)
			seen[key] = struct{}{}
		}
		if _, err := dec.Token(); err != nil { // closing '}'
			return nil, 0, fmt.Errorf("%w: reading json record %d: %v", ErrLoad, rowCount+1, err)
		}
		for _, col := range cols {
			if _, ok := seen[col.name]; !ok {
				col.nullCount++
			}
		}
		rowCount++
	}
	if _, err := dec.Token(); err != nil { // closing ']'
		return nil, 0, fmt.Errorf("%w: reading json array end: %v", ErrLoad, err)
	}
	return cols, rowCount, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("%w: reading json: %v", ErrLoad, err)
	}
	d, ok := tok.(json.Delim)
	if !ok || d != want {
		return fmt.Errorf("%w: expected %q, got %v", ErrLoad, want, tok)
	}
	return nil
}

func jsonScalar(tok json.Token) (value string, null bool) {
	switch v := tok.(type) {
	case nil:
		return "", true
	case string:
		return v, isNull(v)
	case json.Number:
		return v.String(), false
	case bool:
		if v {
			return "true", false
		}
		return "false", false
	default:
		return fmt.Sprintf("%v", v), false
	}
}

func isNull(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "null", "na", "nan":
		return true
	}
	return false
}
