package prompt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/datasen-project/datasen/internal/dataset"
	"github.com/datasen-project/datasen/internal/memory"
)

// ErrContextOverflow reports a question that exceeds the context budget on
// its own, before any grounding is added.
var ErrContextOverflow = errors.New("question exceeds context budget")

// Payload is the structured prompt handed to the model-invocation backend.
// It is built fresh per ask and never persisted; the backend performs the
// final serialization.
type Payload struct {
	Summary     *dataset.Summary `json:"dataset_summary,omitempty"`
	RecentTurns []memory.Turn    `json:"recent_turns,omitempty"`
	Question    string           `json:"question"`
}

// RenderSummary flattens a dataset summary into the text block backends
// embed in the system message. The assembler costs columns with the same
// rendering, so what is measured is what is sent.
func RenderSummary(s *dataset.Summary) string {
	if s == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(summaryHeader(s))
	for _, c := range s.Columns {
		b.WriteString("\n")
		b.WriteString(columnLine(c))
	}
	return b.String()
}

func summaryHeader(s *dataset.Summary) string {
	return fmt.Sprintf("Dataset %s: %d rows, %d columns.", s.Source, s.RowCount, len(s.Columns))
}

func columnLine(c dataset.ColumnSummary) string {
	line := fmt.Sprintf("- %s (%s, nulls=%d)", c.Name, c.Type, c.NullCount)
	if len(c.SampleValues) > 0 {
		line += ": " + strings.Join(c.SampleValues, ", ")
	}
	return line
}
