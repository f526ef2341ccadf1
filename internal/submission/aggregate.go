package submission

import "math"

// Bucket counts one difficulty slice of an attempt or tally.
type Bucket struct {
	Total   int `json:"total"`
	Correct int `json:"correct"`
	Wrong   int `json:"wrong"`
}

// DifficultyBuckets partitions counts by the three difficulty levels.
type DifficultyBuckets struct {
	Easy   Bucket `json:"easy"`
	Medium Bucket `json:"medium"`
	Hard   Bucket `json:"hard"`
}

// DifficultyMarks carries summed awarded marks per difficulty.
type DifficultyMarks struct {
	Easy   float64 `json:"easy"`
	Medium float64 `json:"medium"`
	Hard   float64 `json:"hard"`
}

// Aggregate folds the scored answers of one submission into the shapes the
// persistence layer writes. TotalQuestions reflects the submitted answers,
// not the quiz size: omitted questions are simply absent from every count.
// The possible-marks ceilings are summed over the whole question bank.
type Aggregate struct {
	Buckets           DifficultyBuckets
	Marks             DifficultyMarks
	Chapters          map[string]DifficultyBuckets
	ByDifficulty      map[string][]ScoredAnswer
	TotalQuestions    int
	TotalCorrect      int
	TotalWrong        int
	ObtainedMarks     float64
	ObtainedNegative  float64
	PossibleMarks     float64
	PossibleNegative  float64
}

// BuildAggregate computes the per-attempt aggregate. An answer counts as
// correct when it awarded positive marks.
func BuildAggregate(questions []Question, scored []ScoredAnswer) Aggregate {
	agg := Aggregate{
		Chapters: make(map[string]DifficultyBuckets),
		ByDifficulty: map[string][]ScoredAnswer{
			"easy":   {},
			"medium": {},
			"hard":   {},
		},
	}

	for _, q := range questions {
		agg.PossibleMarks += q.Marks
		agg.PossibleNegative += q.NegativeMarks
	}

	for _, ans := range scored {
		correct := ans.MarksAwarded > 0

		bucket := bucketFor(&agg.Buckets, ans.Difficulty)
		bucket.Total++
		if correct {
			bucket.Correct++
		} else {
			bucket.Wrong++
		}

		switch ans.Difficulty {
		case "medium":
			agg.Marks.Medium += ans.MarksAwarded
		case "hard":
			agg.Marks.Hard += ans.MarksAwarded
		default:
			agg.Marks.Easy += ans.MarksAwarded
		}

		ch := agg.Chapters[ans.Chapter]
		chBucket := bucketFor(&ch, ans.Difficulty)
		chBucket.Total++
		if correct {
			chBucket.Correct++
		} else {
			chBucket.Wrong++
		}
		agg.Chapters[ans.Chapter] = ch

		agg.ByDifficulty[ans.Difficulty] = append(agg.ByDifficulty[ans.Difficulty], ans)

		agg.TotalQuestions++
		if correct {
			agg.TotalCorrect++
		} else {
			agg.TotalWrong++
		}
		agg.ObtainedMarks += ans.MarksAwarded
		if ans.MarksAwarded < 0 {
			agg.ObtainedNegative += math.Abs(ans.MarksAwarded)
		}
	}

	return agg
}

func bucketFor(b *DifficultyBuckets, difficulty string) *Bucket {
	switch difficulty {
	case "medium":
		return &b.Medium
	case "hard":
		return &b.Hard
	default:
		return &b.Easy
	}
}
