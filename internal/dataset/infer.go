package dataset

import (
	"strconv"
	"strings"
	"time"
)

var datetimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"02-Jan-2006",
}

var booleanTokens = map[string]struct{}{
	"true": {}, "false": {},
	"t": {}, "f": {},
	"yes": {}, "no": {},
	"y": {}, "n": {},
	"0": {}, "1": {},
}

// inferType classifies a column from a sample of its non-null values.
// Verdict priority: numeric > datetime > boolean > text. An empty sample
// (all-null column) is unknown.
func inferType(sample []string) Type {
	if len(sample) == 0 {
		return TypeUnknown
	}

	numeric, datetime := 0, 0
	allBoolean := true
	for _, v := range sample {
		v = strings.TrimSpace(v)
		if _, err := strconv.ParseFloat(v, 64); err == nil {
			numeric++
		}
		if parsesAsTime(v) {
			datetime++
		}
		if _, ok := booleanTokens[strings.ToLower(v)]; !ok {
			allBoolean = false
		}
	}

	// ceil(0.9 * n): a 9-of-10 sample passes, a 2-of-3 sample does not
	threshold := (len(sample)*9 + 9) / 10
	switch {
	case numeric >= threshold:
		return TypeNumeric
	case datetime >= threshold:
		return TypeDatetime
	case allBoolean:
		return TypeBoolean
	default:
		return TypeText
	}
}

func parsesAsTime(v string) bool {
	for _, layout := range datetimeLayouts {
		if _, err := time.Parse(layout, v); err == nil {
			return true
		}
	}
	return false
}
