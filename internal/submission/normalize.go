package submission

import (
	"sort"
	"strconv"
	"strings"
)

type QuestionType string

const (
	TypeMCQ       QuestionType = "mcq"
	TypeMSQ       QuestionType = "msq"
	TypeNAT       QuestionType = "nat"
	TypeTrueFalse QuestionType = "truefalse"
)

const defaultChapter = "Unspecified"

// Question is the question-bank view needed for normalization and scoring.
// Correct holds the raw stored answer markers; their meaning depends on Type.
type Question struct {
	ID            int64
	Text          string
	Type          QuestionType
	Options       []string
	Correct       []interface{}
	Marks         float64
	NegativeMarks float64
	Difficulty    string
	Chapter       string
}

// SubmittedAnswer is the untrusted client payload for one question.
// SelectedOption carries whatever shape the client sent: an index, option
// text, a list of either, a number, or a boolean.
type SubmittedAnswer struct {
	QuestionID     int64       `json:"question_id"`
	QuestionText   string      `json:"question_text"`
	SelectedOption interface{} `json:"selected_option"`
	Type           string      `json:"type,omitempty"`
}

// resolveOptionIndex converts a raw value into a zero-based option index.
// Integers and numeric strings pass through as-is; other strings match
// against the option texts. Unresolvable values yield -1.
func resolveOptionIndex(v interface{}, options []string) int {
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return -1
		}
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return int(n)
		}
		for i, opt := range options {
			if opt == s {
				return i
			}
		}
		return -1
	default:
		return -1
	}
}

// asList wraps a scalar in a single-element list; lists pass through.
func asList(v interface{}) []interface{} {
	switch t := v.(type) {
	case nil:
		return nil
	case []interface{}:
		return t
	default:
		return []interface{}{t}
	}
}

// normalizeMCQIndexes canonicalizes one MCQ answer pair. The correct side
// resolves the first stored marker, failing open to an empty set. The
// selected side takes the client's first value and falls back to index 0
// when it cannot be resolved, so a malformed selection scores as a concrete
// (usually wrong) answer instead of failing the request.
func normalizeMCQIndexes(correctRaw []interface{}, selectedRaw interface{}, options []string) (selected, correct []int) {
	correct = []int{}
	if len(correctRaw) > 0 {
		if idx := resolveOptionIndex(correctRaw[0], options); idx >= 0 {
			correct = []int{idx}
		}
	}

	selIdx := 0
	if list := asList(selectedRaw); len(list) > 0 {
		if idx := resolveOptionIndex(list[0], options); idx >= 0 {
			selIdx = idx
		}
	}
	return []int{selIdx}, correct
}

// normalizeMSQIndexes canonicalizes an MSQ answer pair: every element on
// both sides resolves independently and unresolvable entries are dropped.
func normalizeMSQIndexes(correctRaw []interface{}, selectedRaw interface{}, options []string) (selected, correct []int) {
	correct = resolveIndexList(correctRaw, options)
	selected = resolveIndexList(asList(selectedRaw), options)
	return selected, correct
}

func resolveIndexList(values []interface{}, options []string) []int {
	out := make([]int, 0, len(values))
	for _, v := range values {
		if idx := resolveOptionIndex(v, options); idx >= 0 {
			out = append(out, idx)
		}
	}
	return out
}

// coerceNumber parses a raw value as a float; non-parseable values become 0.
func coerceNumber(v interface{}) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case string:
		if n, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return n
		}
		return 0
	case bool:
		if t {
			return 1
		}
		return 0
	default:
		return 0
	}
}

// coerceBool maps a raw value to a boolean. Native booleans pass through,
// "true"/"false" strings map accordingly, everything else follows general
// truthiness (empty string, zero, nil are false).
func coerceBool(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.TrimSpace(strings.ToLower(t)) {
		case "true":
			return true
		case "false":
			return false
		default:
			return strings.TrimSpace(t) != ""
		}
	case float64:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	case nil:
		return false
	default:
		return true
	}
}

func firstOrNil(v interface{}) interface{} {
	list := asList(v)
	if len(list) == 0 {
		return nil
	}
	return list[0]
}

func equalIndexSets(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	aa := append([]int(nil), a...)
	bb := append([]int(nil), b...)
	sort.Ints(aa)
	sort.Ints(bb)
	for i := range aa {
		if aa[i] != bb[i] {
			return false
		}
	}
	return true
}

func normalizeQuestionType(raw string) QuestionType {
	switch strings.TrimSpace(strings.ToLower(raw)) {
	case "mcq":
		return TypeMCQ
	case "msq":
		return TypeMSQ
	case "nat":
		return TypeNAT
	case "truefalse", "true_false", "tf":
		return TypeTrueFalse
	default:
		return TypeMCQ
	}
}

func normalizeDifficulty(raw string) string {
	switch strings.TrimSpace(strings.ToLower(raw)) {
	case "medium":
		return "medium"
	case "hard":
		return "hard"
	default:
		return "easy"
	}
}

func normalizeChapter(raw string) string {
	c := strings.TrimSpace(raw)
	if c == "" {
		return defaultChapter
	}
	return c
}
