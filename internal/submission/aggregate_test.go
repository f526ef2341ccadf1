package submission

import "testing"

func fixtureQuestions() []Question {
	return []Question{
		{ID: 1, Type: TypeMCQ, Options: []string{"A", "B", "C"}, Correct: []interface{}{"B"}, Marks: 2, NegativeMarks: 1, Difficulty: "Easy", Chapter: "Intro"},
		{ID: 2, Type: TypeMCQ, Options: []string{"A", "B"}, Correct: []interface{}{"A"}, Marks: 3, NegativeMarks: 1, Difficulty: "Medium", Chapter: "Intro"},
		{ID: 3, Type: TypeNAT, Correct: []interface{}{"42"}, Marks: 4, NegativeMarks: 2, Difficulty: "Hard", Chapter: "Numbers"},
	}
}

func TestBuildAggregateBucketsAndTotals(t *testing.T) {
	questions := fixtureQuestions()
	scored := ScoreSubmission(questions, []SubmittedAnswer{
		{QuestionID: 1, SelectedOption: "B"},  // easy correct, +2
		{QuestionID: 2, SelectedOption: "B"},  // medium wrong, -1
		{QuestionID: 3, SelectedOption: "42"}, // hard correct, +4
	})

	agg := BuildAggregate(questions, scored)

	if agg.TotalQuestions != 3 || agg.TotalCorrect != 2 || agg.TotalWrong != 1 {
		t.Fatalf("totals = %d/%d/%d, want 3/2/1", agg.TotalQuestions, agg.TotalCorrect, agg.TotalWrong)
	}
	if agg.ObtainedMarks != 5 {
		t.Fatalf("obtained = %v, want 5", agg.ObtainedMarks)
	}
	if agg.ObtainedNegative != 1 {
		t.Fatalf("obtained negative = %v, want 1", agg.ObtainedNegative)
	}
	if agg.Buckets.Easy != (Bucket{Total: 1, Correct: 1, Wrong: 0}) {
		t.Fatalf("easy bucket = %+v", agg.Buckets.Easy)
	}
	if agg.Buckets.Medium != (Bucket{Total: 1, Correct: 0, Wrong: 1}) {
		t.Fatalf("medium bucket = %+v", agg.Buckets.Medium)
	}
	if agg.Buckets.Hard != (Bucket{Total: 1, Correct: 1, Wrong: 0}) {
		t.Fatalf("hard bucket = %+v", agg.Buckets.Hard)
	}
	if agg.Marks.Easy != 2 || agg.Marks.Medium != -1 || agg.Marks.Hard != 4 {
		t.Fatalf("marks = %+v", agg.Marks)
	}
}

func TestBuildAggregateChapterMap(t *testing.T) {
	questions := fixtureQuestions()
	scored := ScoreSubmission(questions, []SubmittedAnswer{
		{QuestionID: 1, SelectedOption: "B"},
		{QuestionID: 2, SelectedOption: "B"},
		{QuestionID: 3, SelectedOption: "42"},
	})

	agg := BuildAggregate(questions, scored)

	intro, ok := agg.Chapters["Intro"]
	if !ok {
		t.Fatalf("missing Intro chapter")
	}
	if intro.Easy != (Bucket{Total: 1, Correct: 1, Wrong: 0}) {
		t.Fatalf("Intro.easy = %+v", intro.Easy)
	}
	if intro.Medium != (Bucket{Total: 1, Correct: 0, Wrong: 1}) {
		t.Fatalf("Intro.medium = %+v", intro.Medium)
	}
	numbers, ok := agg.Chapters["Numbers"]
	if !ok {
		t.Fatalf("missing Numbers chapter")
	}
	if numbers.Hard != (Bucket{Total: 1, Correct: 1, Wrong: 0}) {
		t.Fatalf("Numbers.hard = %+v", numbers.Hard)
	}
}

func TestBuildAggregateBlankChapterDefaults(t *testing.T) {
	questions := []Question{
		{ID: 1, Type: TypeMCQ, Options: []string{"A", "B"}, Correct: []interface{}{"A"}, Marks: 1, Chapter: "  "},
	}
	scored := ScoreSubmission(questions, []SubmittedAnswer{
		{QuestionID: 1, SelectedOption: "A"},
	})

	agg := BuildAggregate(questions, scored)
	if _, ok := agg.Chapters["Unspecified"]; !ok {
		t.Fatalf("blank chapter should land in Unspecified, got %v", agg.Chapters)
	}
}

func TestBuildAggregatePossibleMarksCoverWholeQuiz(t *testing.T) {
	questions := fixtureQuestions()
	// Submission omits question 3 entirely.
	scored := ScoreSubmission(questions, []SubmittedAnswer{
		{QuestionID: 1, SelectedOption: "B"},
	})

	agg := BuildAggregate(questions, scored)

	if agg.TotalQuestions != 1 {
		t.Fatalf("total questions = %d, want number of submitted answers", agg.TotalQuestions)
	}
	if agg.PossibleMarks != 9 {
		t.Fatalf("possible marks = %v, want quiz-level ceiling 9", agg.PossibleMarks)
	}
	if agg.PossibleNegative != 4 {
		t.Fatalf("possible negative = %v, want 4", agg.PossibleNegative)
	}
}

func TestBuildAggregateCorrectMeansPositiveMarks(t *testing.T) {
	// A correct answer on a zero-mark question awards 0, which counts as
	// wrong in the aggregates.
	questions := []Question{
		{ID: 1, Type: TypeMCQ, Options: []string{"A", "B"}, Correct: []interface{}{"A"}, Marks: 0},
	}
	scored := ScoreSubmission(questions, []SubmittedAnswer{
		{QuestionID: 1, SelectedOption: "A"},
	})
	if !scored[0].IsCorrect {
		t.Fatalf("answer itself should be correct")
	}

	agg := BuildAggregate(questions, scored)
	if agg.TotalCorrect != 0 || agg.TotalWrong != 1 {
		t.Fatalf("aggregate counts = %d/%d, want 0 correct 1 wrong", agg.TotalCorrect, agg.TotalWrong)
	}
}
