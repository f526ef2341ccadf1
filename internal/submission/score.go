package submission

// ScoredAnswer is the canonical per-question outcome. Selected and Correct
// share the same shape per type: a single index (mcq), an index list (msq),
// a single number (nat), or a single boolean (truefalse).
type ScoredAnswer struct {
	QuestionID   int64         `json:"question_id"`
	QuestionText string        `json:"question_text"`
	Type         QuestionType  `json:"type"`
	Difficulty   string        `json:"difficulty"`
	Chapter      string        `json:"chapter"`
	Selected     []interface{} `json:"selected_option"`
	Correct      []interface{} `json:"correct_option"`
	IsCorrect    bool          `json:"is_correct"`
	MarksAwarded float64       `json:"marks_awarded"`
}

// ScoreAnswer normalizes one submitted answer against its question and
// decides correctness and marks. There is no separate unattempted state:
// a defaulted selection is scored as a wrong answer.
func ScoreAnswer(q Question, a SubmittedAnswer) ScoredAnswer {
	out := ScoredAnswer{
		QuestionID:   a.QuestionID,
		QuestionText: a.QuestionText,
		Type:         q.Type,
		Difficulty:   normalizeDifficulty(q.Difficulty),
		Chapter:      normalizeChapter(q.Chapter),
	}

	switch q.Type {
	case TypeMSQ:
		sel, corr := normalizeMSQIndexes(q.Correct, a.SelectedOption, q.Options)
		out.Selected = indexValues(sel)
		out.Correct = indexValues(corr)
		out.IsCorrect = len(corr) > 0 && equalIndexSets(sel, corr)
	case TypeNAT:
		var corrRaw interface{}
		if len(q.Correct) > 0 {
			corrRaw = q.Correct[0]
		}
		sel := coerceNumber(firstOrNil(a.SelectedOption))
		corr := coerceNumber(corrRaw)
		out.Selected = []interface{}{sel}
		out.Correct = []interface{}{corr}
		out.IsCorrect = sel == corr
	case TypeTrueFalse:
		var corrRaw interface{}
		if len(q.Correct) > 0 {
			corrRaw = q.Correct[0]
		}
		sel := coerceBool(firstOrNil(a.SelectedOption))
		corr := coerceBool(corrRaw)
		out.Selected = []interface{}{sel}
		out.Correct = []interface{}{corr}
		out.IsCorrect = sel == corr
	default: // mcq
		sel, corr := normalizeMCQIndexes(q.Correct, a.SelectedOption, q.Options)
		out.Selected = indexValues(sel)
		out.Correct = indexValues(corr)
		out.IsCorrect = len(corr) == 1 && sel[0] == corr[0]
	}

	out.MarksAwarded = awardMarks(out.IsCorrect, q.Marks, q.NegativeMarks)
	return out
}

// awardMarks grants the full question marks when correct. An incorrect
// answer is penalized only when the question carries a positive negative
// mark; a zero or negative configuration awards exactly 0.
func awardMarks(correct bool, marks, negativeMarks float64) float64 {
	if correct {
		return marks
	}
	if negativeMarks > 0 {
		return -negativeMarks
	}
	return 0
}

// ScoreSubmission scores every submitted answer against the quiz's question
// bank. Answers referencing unknown questions fall back to the client's
// self-reported type with no options, so index resolution only succeeds via
// literal numeric values.
func ScoreSubmission(questions []Question, answers []SubmittedAnswer) []ScoredAnswer {
	byID := make(map[int64]Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	scored := make([]ScoredAnswer, 0, len(answers))
	for _, a := range answers {
		q, ok := byID[a.QuestionID]
		if !ok {
			q = Question{
				ID:   a.QuestionID,
				Type: normalizeQuestionType(a.Type),
			}
		}
		scored = append(scored, ScoreAnswer(q, a))
	}
	return scored
}

func indexValues(in []int) []interface{} {
	out := make([]interface{}, 0, len(in))
	for _, v := range in {
		out = append(out, v)
	}
	return out
}
