package prompt

import (
	"fmt"
	"sort"
	"strings"

	"github.com/datasen-project/datasen/internal/dataset"
	"github.com/datasen-project/datasen/internal/memory"
	"github.com/datasen-project/datasen/internal/metrics"
)

// turnOverhead is the per-turn framing cost ("Q: ", "A: ", separators) the
// backend adds around question/answer text.
const turnOverhead = 8

// Assembler builds prompt payloads under a fixed character budget. Given the
// same summary, turns, and question it always produces the same payload.
//
// Reduction order when over budget: drop oldest turns, then shrink sample
// values, then drop columns. The current question is never reduced.
type Assembler struct {
	maxSize int
}

// NewAssembler creates an assembler with the given character budget.
func NewAssembler(maxSize int) *Assembler {
	if maxSize <= 0 {
		maxSize = 4000
	}
	return &Assembler{maxSize: maxSize}
}

// MaxSize returns the character budget.
func (a *Assembler) MaxSize() int {
	return a.maxSize
}

// Assemble combines dataset grounding, recent turns, and the new question
// into a payload that fits the budget. It fails only when the question alone
// is over budget.
func (a *Assembler) Assemble(sum *dataset.Summary, turns []memory.Turn, question string) (*Payload, error) {
	if len(question) > a.maxSize {
		return nil, fmt.Errorf("%w: question is %d chars, budget is %d", ErrContextOverflow, len(question), a.maxSize)
	}
	remaining := a.maxSize - len(question)

	summary := trimSummary(sum, turns, question, remaining)
	remaining -= summaryCost(summary)

	kept := fitTurns(turns, remaining)
	if dropped := len(turns) - len(kept); dropped > 0 {
		metrics.ContextTrimmedTurnsTotal.Add(float64(dropped))
	}

	return &Payload{
		Summary:     summary,
		RecentTurns: kept,
		Question:    question,
	}, nil
}

func turnCost(t memory.Turn) int {
	return len(t.Question) + len(t.Answer) + turnOverhead
}

func summaryCost(s *dataset.Summary) int {
	return len(RenderSummary(s))
}

// fitTurns keeps the largest most-recent suffix of turns that fits the
// budget, returned in chronological order.
func fitTurns(turns []memory.Turn, budget int) []memory.Turn {
	start := len(turns)
	for i := len(turns) - 1; i >= 0; i-- {
		cost := turnCost(turns[i])
		if cost > budget {
			break
		}
		budget -= cost
		start = i
	}
	if start == len(turns) {
		return nil
	}
	return append([]memory.Turn(nil), turns[start:]...)
}

// trimSummary returns the richest rendition of the summary that fits the
// budget: full, then with fewer sample values per column, then with only the
// best-ranked columns, then header-only, then nothing.
func trimSummary(sum *dataset.Summary, turns []memory.Turn, question string, budget int) *dataset.Summary {
	if sum == nil {
		return nil
	}
	if summaryCost(sum) <= budget {
		return sum
	}

	for _, limit := range []int{3, 1, 0} {
		if capped := capSamples(sum, limit); summaryCost(capped) <= budget {
			return capped
		}
	}

	// Sample values are gone and it still does not fit: drop columns,
	// keeping referenced and high-cardinality ones first.
	stripped := capSamples(sum, 0)
	ranked := rankColumns(stripped.Columns, turns, question)
	budget -= len(summaryHeader(stripped))
	if budget < 0 {
		return nil
	}

	var keep []dataset.ColumnSummary
	for _, c := range ranked {
		cost := len(columnLine(c)) + 1 // newline
		if cost > budget {
			break
		}
		budget -= cost
		keep = append(keep, c)
	}

	// Restore source column order among the survivors.
	order := make(map[string]int, len(sum.Columns))
	for i, c := range sum.Columns {
		order[c.Name] = i
	}
	sort.SliceStable(keep, func(i, j int) bool {
		return order[keep[i].Name] < order[keep[j].Name]
	})

	out := &dataset.Summary{Source: sum.Source, RowCount: sum.RowCount, Columns: keep}
	return out
}

// capSamples copies the summary with at most limit sample values per column.
func capSamples(sum *dataset.Summary, limit int) *dataset.Summary {
	out := &dataset.Summary{Source: sum.Source, RowCount: sum.RowCount}
	out.Columns = make([]dataset.ColumnSummary, len(sum.Columns))
	for i, c := range sum.Columns {
		n := min(limit, len(c.SampleValues))
		cc := c
		cc.SampleValues = append([]string(nil), c.SampleValues[:n]...)
		out.Columns[i] = cc
	}
	return out
}

// rankColumns orders columns by how likely the model needs them: named in
// the question first, then named in the conversation, then by distinct
// sample count, then source order.
func rankColumns(cols []dataset.ColumnSummary, turns []memory.Turn, question string) []dataset.ColumnSummary {
	lowerQ := strings.ToLower(question)
	var convo strings.Builder
	for _, t := range turns {
		convo.WriteString(strings.ToLower(t.Question))
		convo.WriteString("\n")
		convo.WriteString(strings.ToLower(t.Answer))
		convo.WriteString("\n")
	}
	lowerConvo := convo.String()

	tier := func(c dataset.ColumnSummary) int {
		name := strings.ToLower(c.Name)
		switch {
		case strings.Contains(lowerQ, name):
			return 0
		case strings.Contains(lowerConvo, name):
			return 1
		default:
			return 2
		}
	}

	ranked := append([]dataset.ColumnSummary(nil), cols...)
	sort.SliceStable(ranked, func(i, j int) bool {
		ti, tj := tier(ranked[i]), tier(ranked[j])
		if ti != tj {
			return ti < tj
		}
		return ranked[i].DistinctSamples > ranked[j].DistinctSamples
	})
	return ranked
}
