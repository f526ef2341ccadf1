package report

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"
)

type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// Overview bundles the teacher-facing analytics computed from the attempt
// summaries and the per-answer rows written by the submission pipeline.
type Overview struct {
	OverallAccuracy   float64                     `json:"overall_accuracy"`
	Subjects          []SubjectAccuracy           `json:"subjects"`
	SubjectDifficulty []SubjectDifficultyAccuracy `json:"subject_difficulty"`
	Students          []StudentComparison         `json:"students"`
	Trend             []TrendPoint                `json:"trend"`
	WeakAreas         []WeakArea                  `json:"weak_areas"`
}

type SubjectAccuracy struct {
	Subject        string  `json:"subject"`
	TotalAnswers   int     `json:"total_answers"`
	CorrectAnswers int     `json:"correct_answers"`
	Accuracy       float64 `json:"accuracy"`
}

type SubjectDifficultyAccuracy struct {
	Subject    string  `json:"subject"`
	Difficulty string  `json:"difficulty"`
	Total      int     `json:"total"`
	Correct    int     `json:"correct"`
	Accuracy   float64 `json:"accuracy"`
}

type StudentComparison struct {
	StudentID   int64   `json:"student_id"`
	Name        string  `json:"name"`
	Email       string  `json:"email"`
	Attempts    int     `json:"attempts"`
	AvgAccuracy float64 `json:"avg_accuracy"`
	AvgScore    float64 `json:"avg_score"`
}

type TrendPoint struct {
	Date        string  `json:"date"`
	Attempts    int     `json:"attempts"`
	AvgAccuracy float64 `json:"avg_accuracy"`
	AvgScore    float64 `json:"avg_score"`
}

type WeakArea struct {
	Subject      string             `json:"subject"`
	Accuracy     float64            `json:"accuracy"`
	ByDifficulty map[string]float64 `json:"by_difficulty"`
}

// summaryRow is the raw per-summary slice used for student and trend
// groupings. Name and email may be missing when the student row is gone.
type summaryRow struct {
	StudentID int64
	Name      sql.NullString
	Email     sql.NullString
	Correct   int
	Total     int
	Obtained  float64
	Possible  float64
	CreatedAt time.Time
}

func (s *Service) Overview(ctx context.Context, teacherID int64) (*Overview, error) {
	overall, err := s.overallAccuracy(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	subjectDifficulty, err := s.subjectDifficultyAccuracy(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	subjects := subjectsFrom(subjectDifficulty)

	rows, err := s.loadSummaryRows(ctx, teacherID)
	if err != nil {
		return nil, err
	}

	return &Overview{
		OverallAccuracy:   overall,
		Subjects:          subjects,
		SubjectDifficulty: subjectDifficulty,
		Students:          buildStudentComparison(rows),
		Trend:             buildTrend(rows),
		WeakAreas:         buildWeakAreas(subjectDifficulty),
	}, nil
}

func (s *Service) overallAccuracy(ctx context.Context, teacherID int64) (float64, error) {
	var correct, total int
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(easy_correct + medium_correct + hard_correct), 0),
			COALESCE(SUM(total_questions), 0)
		FROM attempt_summaries
		WHERE teacher_id = $1
	`, teacherID).Scan(&correct, &total)
	if err != nil {
		return 0, fmt.Errorf("query overall accuracy: %w", err)
	}
	return percent(float64(correct), float64(total)), nil
}

// subjectDifficultyAccuracy works at answer grain, a finer grain than the
// attempt summaries: each stored answer row contributes one count.
func (s *Service) subjectDifficultyAccuracy(ctx context.Context, teacherID int64) ([]SubjectDifficultyAccuracy, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT q.subject_name, aa.difficulty,
			COUNT(*),
			COUNT(*) FILTER (WHERE aa.is_correct)
		FROM attempt_answers aa
		JOIN attempts a ON a.id = aa.attempt_id
		JOIN quizzes q ON q.id = a.quiz_id
		WHERE a.teacher_id = $1
		GROUP BY q.subject_name, aa.difficulty
		ORDER BY q.subject_name, aa.difficulty
	`, teacherID)
	if err != nil {
		return nil, fmt.Errorf("query subject difficulty accuracy: %w", err)
	}
	defer rows.Close()

	out := make([]SubjectDifficultyAccuracy, 0)
	for rows.Next() {
		var r SubjectDifficultyAccuracy
		if err := rows.Scan(&r.Subject, &r.Difficulty, &r.Total, &r.Correct); err != nil {
			return nil, fmt.Errorf("scan subject difficulty row: %w", err)
		}
		r.Accuracy = percent(float64(r.Correct), float64(r.Total))
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subject difficulty rows: %w", err)
	}
	return out, nil
}

func (s *Service) loadSummaryRows(ctx context.Context, teacherID int64) ([]summaryRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sm.student_id, u.name, u.email,
			sm.easy_correct + sm.medium_correct + sm.hard_correct,
			sm.total_questions,
			sm.obtained_marks,
			sm.total_possible_marks,
			sm.created_at
		FROM attempt_summaries sm
		LEFT JOIN users u ON u.id = sm.student_id
		WHERE sm.teacher_id = $1
		ORDER BY sm.created_at
	`, teacherID)
	if err != nil {
		return nil, fmt.Errorf("query summaries: %w", err)
	}
	defer rows.Close()

	out := make([]summaryRow, 0)
	for rows.Next() {
		var r summaryRow
		if err := rows.Scan(&r.StudentID, &r.Name, &r.Email,
			&r.Correct, &r.Total, &r.Obtained, &r.Possible, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan summary row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate summaries: %w", err)
	}
	return out, nil
}

// subjectsFrom collapses the per-difficulty rows into per-subject accuracy.
func subjectsFrom(rows []SubjectDifficultyAccuracy) []SubjectAccuracy {
	totals := make(map[string]*SubjectAccuracy)
	order := make([]string, 0)
	for _, r := range rows {
		agg, ok := totals[r.Subject]
		if !ok {
			agg = &SubjectAccuracy{Subject: r.Subject}
			totals[r.Subject] = agg
			order = append(order, r.Subject)
		}
		agg.TotalAnswers += r.Total
		agg.CorrectAnswers += r.Correct
	}

	out := make([]SubjectAccuracy, 0, len(order))
	for _, subject := range order {
		agg := totals[subject]
		agg.Accuracy = percent(float64(agg.CorrectAnswers), float64(agg.TotalAnswers))
		out = append(out, *agg)
	}
	return out
}

// buildStudentComparison averages per-attempt accuracy and score per
// student. Missing student rows display as "Unknown" with an empty email.
func buildStudentComparison(rows []summaryRow) []StudentComparison {
	type acc struct {
		comparison  StudentComparison
		accuracySum float64
		scoreSum    float64
	}
	byStudent := make(map[int64]*acc)
	order := make([]int64, 0)

	for _, r := range rows {
		a, ok := byStudent[r.StudentID]
		if !ok {
			name := "Unknown"
			if r.Name.Valid {
				name = r.Name.String
			}
			email := ""
			if r.Email.Valid {
				email = r.Email.String
			}
			a = &acc{comparison: StudentComparison{StudentID: r.StudentID, Name: name, Email: email}}
			byStudent[r.StudentID] = a
			order = append(order, r.StudentID)
		}
		a.comparison.Attempts++
		a.accuracySum += percent(float64(r.Correct), float64(r.Total))
		a.scoreSum += percent(r.Obtained, r.Possible)
	}

	out := make([]StudentComparison, 0, len(order))
	for _, id := range order {
		a := byStudent[id]
		n := float64(a.comparison.Attempts)
		a.comparison.AvgAccuracy = a.accuracySum / n
		a.comparison.AvgScore = a.scoreSum / n
		out = append(out, a.comparison)
	}
	return out
}

// buildTrend groups summaries by calendar day of creation.
func buildTrend(rows []summaryRow) []TrendPoint {
	type acc struct {
		point       TrendPoint
		accuracySum float64
		scoreSum    float64
	}
	byDay := make(map[string]*acc)
	order := make([]string, 0)

	for _, r := range rows {
		day := r.CreatedAt.Format("2006-01-02")
		a, ok := byDay[day]
		if !ok {
			a = &acc{point: TrendPoint{Date: day}}
			byDay[day] = a
			order = append(order, day)
		}
		a.point.Attempts++
		a.accuracySum += percent(float64(r.Correct), float64(r.Total))
		a.scoreSum += percent(r.Obtained, r.Possible)
	}

	sort.Strings(order)
	out := make([]TrendPoint, 0, len(order))
	for _, day := range order {
		a := byDay[day]
		n := float64(a.point.Attempts)
		a.point.AvgAccuracy = a.accuracySum / n
		a.point.AvgScore = a.scoreSum / n
		out = append(out, a.point)
	}
	return out
}

// buildWeakAreas picks the three lowest-accuracy subjects, each with its
// per-difficulty accuracy re-aggregated from the answer-grain rows.
func buildWeakAreas(rows []SubjectDifficultyAccuracy) []WeakArea {
	subjects := subjectsFrom(rows)
	sort.SliceStable(subjects, func(i, j int) bool {
		return subjects[i].Accuracy < subjects[j].Accuracy
	})
	if len(subjects) > 3 {
		subjects = subjects[:3]
	}

	out := make([]WeakArea, 0, len(subjects))
	for _, subject := range subjects {
		area := WeakArea{
			Subject:      subject.Subject,
			Accuracy:     subject.Accuracy,
			ByDifficulty: make(map[string]float64),
		}
		for _, r := range rows {
			if r.Subject == subject.Subject {
				area.ByDifficulty[r.Difficulty] = r.Accuracy
			}
		}
		out = append(out, area)
	}
	return out
}

// percent guards the zero denominator: 0, never NaN.
func percent(numerator, denominator float64) float64 {
	if denominator == 0 {
		return 0
	}
	return numerator / denominator * 100
}
