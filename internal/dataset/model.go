package dataset

import "errors"

// Type is the inferred type of a column.
type Type string

const (
	TypeNumeric  Type = "numeric"
	TypeDatetime Type = "datetime"
	TypeBoolean  Type = "boolean"
	TypeText     Type = "text"
	TypeUnknown  Type = "unknown"
)

var (
	// ErrLoad reports an unreadable or malformed dataset source.
	ErrLoad = errors.New("dataset unreadable or malformed")
	// ErrUnsupportedFormat reports a source format the summarizer does not recognize.
	ErrUnsupportedFormat = errors.New("unsupported dataset format")
)

// Format identifies a supported dataset encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ColumnSummary is the compact structural description of one column.
type ColumnSummary struct {
	Name            string   `json:"name"`
	Type            Type     `json:"type"`
	NullCount       int      `json:"null_count"`
	SampleValues    []string `json:"sample_values"`
	DistinctSamples int      `json:"distinct_samples"`
}

// Summary is the structural description of a loaded dataset. It is built once
// per load and never mutated afterwards; the assembler works on copies.
type Summary struct {
	Source   string          `json:"source"`
	RowCount int             `json:"row_count"`
	Columns  []ColumnSummary `json:"columns"`
}

// Options tunes summarization. Zero values fall back to defaults.
type Options struct {
	// SampleSize is how many non-null values per column feed type inference.
	SampleSize int
	// MaxSampleValues bounds ColumnSummary.SampleValues.
	MaxSampleValues int
}

func (o Options) withDefaults() Options {
	if o.SampleSize <= 0 {
		o.SampleSize = 100
	}
	if o.MaxSampleValues <= 0 {
		o.MaxSampleValues = 5
	}
	return o
}
