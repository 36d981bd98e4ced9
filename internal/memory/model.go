package memory

import "time"

// Turn is one question/answer exchange. Immutable once appended; Seq is a
// monotonic per-conversation index that keeps increasing across evictions.
type Turn struct {
	Seq      int       `json:"seq"`
	Question string    `json:"question"`
	Answer   string    `json:"answer"`
	AskedAt  time.Time `json:"asked_at"`
}
