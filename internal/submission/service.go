package submission

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"
)

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrQuizNotFound    = errors.New("quiz not found")
	ErrSummaryNotFound = errors.New("summary not found")
)

type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

type SubmitInput struct {
	QuizID             int64
	StudentID          int64
	TeacherID          int64
	Answers            []SubmittedAnswer
	TotalMarks         *float64
	TotalNegativeMarks *float64
}

// DifficultyCounts is the per-difficulty integer triple exposed by the
// submission summary.
type DifficultyCounts struct {
	Easy   int `json:"easy"`
	Medium int `json:"medium"`
	Hard   int `json:"hard"`
}

type SubmitResult struct {
	ResultID              int64           `json:"result_id"`
	ObtainedMarks         float64         `json:"obtained_marks"`
	ObtainedNegative      float64         `json:"obtained_negative"`
	TotalQuestions        int             `json:"total_questions"`
	TotalPossibleMarks    float64         `json:"total_possible_marks"`
	TotalNegativePossible float64         `json:"total_negative_possible"`
	Counts                DifficultyCounts `json:"counts"`
	CorrectCounts         DifficultyCounts `json:"correct_counts"`
	MarksByDifficulty     DifficultyMarks  `json:"marks_by_difficulty"`
}

type SummaryRecord struct {
	ID                    int64           `json:"id"`
	AttemptID             int64           `json:"attempt_id"`
	QuizID                int64           `json:"quiz_id"`
	StudentID             int64           `json:"student_id"`
	TeacherID             int64           `json:"teacher_id"`
	Counts                DifficultyCounts `json:"counts"`
	CorrectCounts         DifficultyCounts `json:"correct_counts"`
	MarksByDifficulty     DifficultyMarks  `json:"marks_by_difficulty"`
	TotalQuestions        int             `json:"total_questions"`
	TotalCorrect          int             `json:"total_correct"`
	TotalWrong            int             `json:"total_wrong"`
	ObtainedMarks         float64         `json:"obtained_marks"`
	ObtainedNegative      float64         `json:"obtained_negative"`
	TotalPossibleMarks    float64         `json:"total_possible_marks"`
	TotalNegativePossible float64         `json:"total_negative_possible"`
	CreatedAt             time.Time       `json:"created_at"`
}

type StudentAttempt struct {
	ID             int64     `json:"id"`
	QuizID         int64     `json:"quiz_id"`
	QuizName       string    `json:"quiz_name"`
	SubjectName    string    `json:"subject_name"`
	TotalQuestions int       `json:"total_questions"`
	TotalCorrect   int       `json:"total_correct"`
	TotalWrong     int       `json:"total_wrong"`
	ObtainedMarks  float64   `json:"obtained_marks"`
	CreatedAt      time.Time `json:"created_at"`
}

type SubjectTally struct {
	SubjectID int64                        `json:"subject_id"`
	Subject   string                       `json:"subject"`
	Overall   DifficultyBuckets            `json:"overall"`
	Chapters  map[string]DifficultyBuckets `json:"chapters"`
}

type quizRow struct {
	ID          int64
	Name        string
	SubjectName string
	TeacherID   int64
}

// Submit runs the full pipeline for one submission: score in memory, then
// sequence the writes. The subject upsert and tally increments happen first;
// attempt, teacher-response snapshot, and attempt summary follow as
// independent inserts. There is no cross-write rollback: writes that
// succeeded stay committed even when a later step fails.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*SubmitResult, error) {
	if in.QuizID <= 0 || in.StudentID <= 0 || in.TeacherID <= 0 || len(in.Answers) == 0 {
		return nil, ErrInvalidInput
	}

	quiz, err := s.loadQuiz(ctx, in.QuizID)
	if err != nil {
		return nil, err
	}
	questions, err := s.loadQuestions(ctx, in.QuizID)
	if err != nil {
		return nil, err
	}

	scored := ScoreSubmission(questions, in.Answers)
	agg := BuildAggregate(questions, scored)

	possibleMarks := agg.PossibleMarks
	if in.TotalMarks != nil {
		possibleMarks = *in.TotalMarks
	}
	possibleNegative := agg.PossibleNegative
	if in.TotalNegativeMarks != nil {
		possibleNegative = *in.TotalNegativeMarks
	}

	subjectID, err := s.ensureSubject(ctx, quiz.SubjectName)
	if err != nil {
		return nil, err
	}
	if err := s.applyTallies(ctx, in.StudentID, subjectID, agg); err != nil {
		return nil, err
	}

	attemptID, err := s.insertAttempt(ctx, in, quiz, scored, agg, possibleMarks, possibleNegative)
	if err != nil {
		return nil, err
	}

	// Best-effort denormalized snapshot for teacher listings; a failed
	// student lookup must not fail the submission.
	if err := s.insertTeacherResponse(ctx, in, quiz, agg.ObtainedMarks); err != nil {
		log.Printf("teacher response write skipped: %v", err)
	}

	summaryID, err := s.insertSummary(ctx, in, attemptID, agg, possibleMarks, possibleNegative)
	if err != nil {
		return nil, err
	}

	return &SubmitResult{
		ResultID:              summaryID,
		ObtainedMarks:         agg.ObtainedMarks,
		ObtainedNegative:      agg.ObtainedNegative,
		TotalQuestions:        agg.TotalQuestions,
		TotalPossibleMarks:    possibleMarks,
		TotalNegativePossible: possibleNegative,
		Counts: DifficultyCounts{
			Easy:   agg.Buckets.Easy.Total,
			Medium: agg.Buckets.Medium.Total,
			Hard:   agg.Buckets.Hard.Total,
		},
		CorrectCounts: DifficultyCounts{
			Easy:   agg.Buckets.Easy.Correct,
			Medium: agg.Buckets.Medium.Correct,
			Hard:   agg.Buckets.Hard.Correct,
		},
		MarksByDifficulty: agg.Marks,
	}, nil
}

func (s *Service) loadQuiz(ctx context.Context, quizID int64) (*quizRow, error) {
	var q quizRow
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, subject_name, teacher_id
		FROM quizzes
		WHERE id = $1
	`, quizID).Scan(&q.ID, &q.Name, &q.SubjectName, &q.TeacherID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("load quiz: %w", err)
	}
	return &q, nil
}

func (s *Service) loadQuestions(ctx context.Context, quizID int64) ([]Question, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, question_text, question_type, options, correct,
			marks, negative_marks, difficulty, chapter
		FROM quiz_questions
		WHERE quiz_id = $1
		ORDER BY id
	`, quizID)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	out := make([]Question, 0)
	for rows.Next() {
		var (
			q           Question
			qType       string
			optionsJSON []byte
			correctJSON []byte
		)
		if err := rows.Scan(&q.ID, &q.Text, &qType, &optionsJSON, &correctJSON,
			&q.Marks, &q.NegativeMarks, &q.Difficulty, &q.Chapter); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		q.Type = normalizeQuestionType(qType)
		if len(optionsJSON) > 0 {
			if err := json.Unmarshal(optionsJSON, &q.Options); err != nil {
				return nil, fmt.Errorf("decode question options: %w", err)
			}
		}
		if len(correctJSON) > 0 {
			if err := json.Unmarshal(correctJSON, &q.Correct); err != nil {
				return nil, fmt.Errorf("decode question correct: %w", err)
			}
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate questions: %w", err)
	}
	return out, nil
}

// ensureSubject resolves the subject id by lowercase-trimmed name, creating
// it lazily on first use. The no-op DO UPDATE keeps RETURNING usable on the
// conflict path.
func (s *Service) ensureSubject(ctx context.Context, name string) (int64, error) {
	display := strings.TrimSpace(name)
	key := strings.ToLower(display)

	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO subjects (name, display_name)
		VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET display_name = subjects.display_name
		RETURNING id
	`, key, display).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert subject: %w", err)
	}
	return id, nil
}

// applyTallies folds the attempt into the running per-student/per-subject
// tally. All increments are additive upserts so concurrent submissions for
// the same pair cannot lose each other's deltas, and the overall block and
// chapter rows commit together so the overall totals always equal the sum
// across chapters.
func (s *Service) applyTallies(ctx context.Context, studentID, subjectID int64, agg Aggregate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tally tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	b := agg.Buckets
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO subject_tallies (
			student_id, subject_id,
			easy_total, easy_correct, easy_wrong,
			medium_total, medium_correct, medium_wrong,
			hard_total, hard_correct, hard_wrong,
			updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11, now())
		ON CONFLICT (student_id, subject_id) DO UPDATE SET
			easy_total = subject_tallies.easy_total + EXCLUDED.easy_total,
			easy_correct = subject_tallies.easy_correct + EXCLUDED.easy_correct,
			easy_wrong = subject_tallies.easy_wrong + EXCLUDED.easy_wrong,
			medium_total = subject_tallies.medium_total + EXCLUDED.medium_total,
			medium_correct = subject_tallies.medium_correct + EXCLUDED.medium_correct,
			medium_wrong = subject_tallies.medium_wrong + EXCLUDED.medium_wrong,
			hard_total = subject_tallies.hard_total + EXCLUDED.hard_total,
			hard_correct = subject_tallies.hard_correct + EXCLUDED.hard_correct,
			hard_wrong = subject_tallies.hard_wrong + EXCLUDED.hard_wrong,
			updated_at = now()
	`, studentID, subjectID,
		b.Easy.Total, b.Easy.Correct, b.Easy.Wrong,
		b.Medium.Total, b.Medium.Correct, b.Medium.Wrong,
		b.Hard.Total, b.Hard.Correct, b.Hard.Wrong,
	); err != nil {
		return fmt.Errorf("upsert subject tally: %w", err)
	}

	chapters := make([]string, 0, len(agg.Chapters))
	for ch := range agg.Chapters {
		chapters = append(chapters, ch)
	}
	// Stable order keeps concurrent tally transactions from deadlocking.
	sort.Strings(chapters)

	for _, ch := range chapters {
		split := agg.Chapters[ch]
		for _, d := range []struct {
			name   string
			bucket Bucket
		}{
			{"easy", split.Easy},
			{"medium", split.Medium},
			{"hard", split.Hard},
		} {
			if d.bucket.Total == 0 {
				continue
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO chapter_tallies (
					student_id, subject_id, chapter, difficulty,
					total, correct, wrong, updated_at
				) VALUES ($1,$2,$3,$4,$5,$6,$7, now())
				ON CONFLICT (student_id, subject_id, chapter, difficulty) DO UPDATE SET
					total = chapter_tallies.total + EXCLUDED.total,
					correct = chapter_tallies.correct + EXCLUDED.correct,
					wrong = chapter_tallies.wrong + EXCLUDED.wrong,
					updated_at = now()
			`, studentID, subjectID, ch, d.name,
				d.bucket.Total, d.bucket.Correct, d.bucket.Wrong,
			); err != nil {
				return fmt.Errorf("upsert chapter tally: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tally tx: %w", err)
	}
	return nil
}

func (s *Service) insertAttempt(ctx context.Context, in SubmitInput, quiz *quizRow, scored []ScoredAnswer, agg Aggregate, possibleMarks, possibleNegative float64) (int64, error) {
	answersJSON, err := json.Marshal(scored)
	if err != nil {
		return 0, fmt.Errorf("encode answers: %w", err)
	}
	easyJSON, _ := json.Marshal(agg.ByDifficulty["easy"])
	mediumJSON, _ := json.Marshal(agg.ByDifficulty["medium"])
	hardJSON, _ := json.Marshal(agg.ByDifficulty["hard"])

	var attemptID int64
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO attempts (
			quiz_id, student_id, teacher_id,
			answers, easy_answers, medium_answers, hard_answers,
			total_questions, total_correct, total_wrong,
			obtained_marks, obtained_negative,
			total_possible_marks, total_negative_possible,
			created_at
		) VALUES ($1,$2,$3,$4::jsonb,$5::jsonb,$6::jsonb,$7::jsonb,$8,$9,$10,$11,$12,$13,$14, now())
		RETURNING id
	`, in.QuizID, in.StudentID, in.TeacherID,
		answersJSON, easyJSON, mediumJSON, hardJSON,
		agg.TotalQuestions, agg.TotalCorrect, agg.TotalWrong,
		agg.ObtainedMarks, agg.ObtainedNegative,
		possibleMarks, possibleNegative,
	).Scan(&attemptID)
	if err != nil {
		return 0, fmt.Errorf("insert attempt: %w", err)
	}

	for _, ans := range scored {
		if _, err := s.db.ExecContext(ctx, `
			INSERT INTO attempt_answers (
				attempt_id, question_id, difficulty, chapter,
				is_correct, marks_awarded
			) VALUES ($1,$2,$3,$4,$5,$6)
		`, attemptID, ans.QuestionID, ans.Difficulty, ans.Chapter,
			ans.MarksAwarded > 0, ans.MarksAwarded,
		); err != nil {
			return 0, fmt.Errorf("insert attempt answer: %w", err)
		}
	}

	return attemptID, nil
}

func (s *Service) insertTeacherResponse(ctx context.Context, in SubmitInput, quiz *quizRow, obtainedMarks float64) error {
	var name, email string
	err := s.db.QueryRowContext(ctx, `
		SELECT name, email
		FROM users
		WHERE id = $1
	`, in.StudentID).Scan(&name, &email)
	if err != nil {
		return fmt.Errorf("lookup student: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO teacher_responses (
			teacher_id, quiz_id, student_name, student_email,
			quiz_name, obtained_marks, created_at
		) VALUES ($1,$2,$3,$4,$5,$6, now())
	`, in.TeacherID, in.QuizID, name, email, quiz.Name, obtainedMarks); err != nil {
		return fmt.Errorf("insert teacher response: %w", err)
	}
	return nil
}

func (s *Service) insertSummary(ctx context.Context, in SubmitInput, attemptID int64, agg Aggregate, possibleMarks, possibleNegative float64) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO attempt_summaries (
			attempt_id, quiz_id, student_id, teacher_id,
			easy_count, easy_correct, easy_marks,
			medium_count, medium_correct, medium_marks,
			hard_count, hard_correct, hard_marks,
			total_questions, total_correct, total_wrong,
			obtained_marks, obtained_negative,
			total_possible_marks, total_negative_possible,
			created_at
		) VALUES (
			$1,$2,$3,$4,
			$5,$6,$7,$8,$9,$10,$11,$12,$13,
			$14,$15,$16,$17,$18,$19,$20,
			now()
		)
		RETURNING id
	`, attemptID, in.QuizID, in.StudentID, in.TeacherID,
		agg.Buckets.Easy.Total, agg.Buckets.Easy.Correct, agg.Marks.Easy,
		agg.Buckets.Medium.Total, agg.Buckets.Medium.Correct, agg.Marks.Medium,
		agg.Buckets.Hard.Total, agg.Buckets.Hard.Correct, agg.Marks.Hard,
		agg.TotalQuestions, agg.TotalCorrect, agg.TotalWrong,
		agg.ObtainedMarks, agg.ObtainedNegative,
		possibleMarks, possibleNegative,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert summary: %w", err)
	}
	return id, nil
}

// GetSummary returns the most recent attempt summary for a (quiz, student)
// pair; multiple attempts per pair are permitted.
func (s *Service) GetSummary(ctx context.Context, quizID, studentID int64) (*SummaryRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, attempt_id, quiz_id, student_id, teacher_id,
			easy_count, easy_correct, easy_marks,
			medium_count, medium_correct, medium_marks,
			hard_count, hard_correct, hard_marks,
			total_questions, total_correct, total_wrong,
			obtained_marks, obtained_negative,
			total_possible_marks, total_negative_possible,
			created_at
		FROM attempt_summaries
		WHERE quiz_id = $1 AND student_id = $2
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, quizID, studentID)

	var rec SummaryRecord
	err := row.Scan(&rec.ID, &rec.AttemptID, &rec.QuizID, &rec.StudentID, &rec.TeacherID,
		&rec.Counts.Easy, &rec.CorrectCounts.Easy, &rec.MarksByDifficulty.Easy,
		&rec.Counts.Medium, &rec.CorrectCounts.Medium, &rec.MarksByDifficulty.Medium,
		&rec.Counts.Hard, &rec.CorrectCounts.Hard, &rec.MarksByDifficulty.Hard,
		&rec.TotalQuestions, &rec.TotalCorrect, &rec.TotalWrong,
		&rec.ObtainedMarks, &rec.ObtainedNegative,
		&rec.TotalPossibleMarks, &rec.TotalNegativePossible,
		&rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSummaryNotFound
		}
		return nil, fmt.Errorf("load summary: %w", err)
	}
	return &rec, nil
}

func (s *Service) ListStudentAttempts(ctx context.Context, studentID int64) ([]StudentAttempt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.quiz_id, q.name, q.subject_name,
			a.total_questions, a.total_correct, a.total_wrong,
			a.obtained_marks, a.created_at
		FROM attempts a
		JOIN quizzes q ON q.id = a.quiz_id
		WHERE a.student_id = $1
		ORDER BY a.created_at DESC
	`, studentID)
	if err != nil {
		return nil, fmt.Errorf("query student attempts: %w", err)
	}
	defer rows.Close()

	out := make([]StudentAttempt, 0)
	for rows.Next() {
		var a StudentAttempt
		if err := rows.Scan(&a.ID, &a.QuizID, &a.QuizName, &a.SubjectName,
			&a.TotalQuestions, &a.TotalCorrect, &a.TotalWrong,
			&a.ObtainedMarks, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan student attempt: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate student attempts: %w", err)
	}
	return out, nil
}

// GetChapterTallies assembles the running tallies for one student across
// all subjects: the overall block plus the chapter-by-difficulty breakdown.
func (s *Service) GetChapterTallies(ctx context.Context, studentID int64) ([]SubjectTally, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.subject_id, s.display_name,
			t.easy_total, t.easy_correct, t.easy_wrong,
			t.medium_total, t.medium_correct, t.medium_wrong,
			t.hard_total, t.hard_correct, t.hard_wrong
		FROM subject_tallies t
		JOIN subjects s ON s.id = t.subject_id
		WHERE t.student_id = $1
		ORDER BY s.display_name
	`, studentID)
	if err != nil {
		return nil, fmt.Errorf("query subject tallies: %w", err)
	}
	defer rows.Close()

	tallies := make([]SubjectTally, 0)
	index := make(map[int64]int)
	for rows.Next() {
		var t SubjectTally
		if err := rows.Scan(&t.SubjectID, &t.Subject,
			&t.Overall.Easy.Total, &t.Overall.Easy.Correct, &t.Overall.Easy.Wrong,
			&t.Overall.Medium.Total, &t.Overall.Medium.Correct, &t.Overall.Medium.Wrong,
			&t.Overall.Hard.Total, &t.Overall.Hard.Correct, &t.Overall.Hard.Wrong,
		); err != nil {
			return nil, fmt.Errorf("scan subject tally: %w", err)
		}
		t.Chapters = make(map[string]DifficultyBuckets)
		index[t.SubjectID] = len(tallies)
		tallies = append(tallies, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subject tallies: %w", err)
	}

	chRows, err := s.db.QueryContext(ctx, `
		SELECT subject_id, chapter, difficulty, total, correct, wrong
		FROM chapter_tallies
		WHERE student_id = $1
		ORDER BY subject_id, chapter, difficulty
	`, studentID)
	if err != nil {
		return nil, fmt.Errorf("query chapter tallies: %w", err)
	}
	defer chRows.Close()

	for chRows.Next() {
		var (
			subjectID  int64
			chapter    string
			difficulty string
			bucket     Bucket
		)
		if err := chRows.Scan(&subjectID, &chapter, &difficulty,
			&bucket.Total, &bucket.Correct, &bucket.Wrong); err != nil {
			return nil, fmt.Errorf("scan chapter tally: %w", err)
		}
		i, ok := index[subjectID]
		if !ok {
			continue
		}
		split := tallies[i].Chapters[chapter]
		*bucketFor(&split, difficulty) = bucket
		tallies[i].Chapters[chapter] = split
	}
	if err := chRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chapter tallies: %w", err)
	}

	return tallies, nil
}
