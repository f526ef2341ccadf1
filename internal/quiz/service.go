package quiz

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrQuizNotFound = errors.New("quiz not found")
	ErrNotOwner     = errors.New("quiz belongs to another teacher")
)

type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

type QuestionInput struct {
	Text          string        `json:"question"`
	Type          string        `json:"type"`
	Options       []string      `json:"options"`
	Correct       []interface{} `json:"correct"`
	Marks         float64       `json:"marks"`
	NegativeMarks float64       `json:"negativeMarks"`
	Difficulty    string        `json:"difficulty"`
	Chapter       string        `json:"chapter"`
}

type CreateQuizInput struct {
	TeacherID int64
	Name      string
	Subject   string
	Questions []QuestionInput
}

type Question struct {
	ID            int64         `json:"id"`
	Text          string        `json:"question"`
	Type          string        `json:"type"`
	Options       []string      `json:"options"`
	Correct       []interface{} `json:"correct,omitempty"`
	Marks         float64       `json:"marks"`
	NegativeMarks float64       `json:"negativeMarks"`
	Difficulty    string        `json:"difficulty"`
	Chapter       string        `json:"chapter"`
}

type Quiz struct {
	ID        int64      `json:"id"`
	TeacherID int64      `json:"teacher_id"`
	Name      string     `json:"name"`
	Subject   string     `json:"subject"`
	CreatedAt time.Time  `json:"created_at"`
	Questions []Question `json:"questions,omitempty"`
}

type QuizSummary struct {
	ID            int64     `json:"id"`
	TeacherID     int64     `json:"teacher_id"`
	Name          string    `json:"name"`
	Subject       string    `json:"subject"`
	QuestionCount int       `json:"question_count"`
	CreatedAt     time.Time `json:"created_at"`
}

func (s *Service) Create(ctx context.Context, in CreateQuizInput) (*Quiz, error) {
	name := strings.TrimSpace(in.Name)
	subject := strings.TrimSpace(in.Subject)
	if in.TeacherID <= 0 || name == "" || subject == "" {
		return nil, fmt.Errorf("%w: teacher_id, name, and subject are required", ErrInvalidInput)
	}
	if len(in.Questions) == 0 {
		return nil, fmt.Errorf("%w: at least one question is required", ErrInvalidInput)
	}
	for i := range in.Questions {
		if err := validateQuestion(&in.Questions[i]); err != nil {
			return nil, fmt.Errorf("question %d: %w", i+1, err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	out := Quiz{TeacherID: in.TeacherID, Name: name, Subject: subject}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO quizzes (teacher_id, name, subject_name, created_at)
		VALUES ($1, $2, $3, now())
		RETURNING id, created_at
	`, in.TeacherID, name, subject).Scan(&out.ID, &out.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert quiz: %w", err)
	}

	out.Questions = make([]Question, 0, len(in.Questions))
	for _, q := range in.Questions {
		optionsJSON, err := json.Marshal(q.Options)
		if err != nil {
			return nil, fmt.Errorf("marshal options: %w", err)
		}
		correctJSON, err := json.Marshal(q.Correct)
		if err != nil {
			return nil, fmt.Errorf("marshal correct: %w", err)
		}

		stored := Question{
			Text:          q.Text,
			Type:          q.Type,
			Options:       q.Options,
			Correct:       q.Correct,
			Marks:         q.Marks,
			NegativeMarks: q.NegativeMarks,
			Difficulty:    q.Difficulty,
			Chapter:       q.Chapter,
		}
		err = tx.QueryRowContext(ctx, `
			INSERT INTO quiz_questions (
				quiz_id, question_text, question_type, options, correct,
				marks, negative_marks, difficulty, chapter
			) VALUES ($1, $2, $3, $4::jsonb, $5::jsonb, $6, $7, $8, $9)
			RETURNING id
		`, out.ID, q.Text, q.Type, optionsJSON, correctJSON,
			q.Marks, q.NegativeMarks, q.Difficulty, q.Chapter).Scan(&stored.ID)
		if err != nil {
			return nil, fmt.Errorf("insert question: %w", err)
		}
		out.Questions = append(out.Questions, stored)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit quiz: %w", err)
	}
	return &out, nil
}

// List returns quiz summaries, optionally restricted to one teacher.
func (s *Service) List(ctx context.Context, teacherID int64) ([]QuizSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT q.id, q.teacher_id, q.name, q.subject_name,
			(SELECT COUNT(*) FROM quiz_questions qq WHERE qq.quiz_id = q.id),
			q.created_at
		FROM quizzes q
		WHERE ($1 = 0 OR q.teacher_id = $1)
		ORDER BY q.created_at DESC, q.id DESC
	`, teacherID)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	defer rows.Close()

	out := make([]QuizSummary, 0)
	for rows.Next() {
		var it QuizSummary
		if err := rows.Scan(&it.ID, &it.TeacherID, &it.Name, &it.Subject, &it.QuestionCount, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan quiz: %w", err)
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate quizzes: %w", err)
	}
	return out, nil
}

// Get loads a quiz with its questions. Answer keys are stripped unless
// includeAnswers is set; students must never see the correct markers.
func (s *Service) Get(ctx context.Context, id int64, includeAnswers bool) (*Quiz, error) {
	if id <= 0 {
		return nil, ErrInvalidInput
	}

	var out Quiz
	err := s.db.QueryRowContext(ctx, `
		SELECT id, teacher_id, name, subject_name, created_at
		FROM quizzes
		WHERE id = $1
	`, id).Scan(&out.ID, &out.TeacherID, &out.Name, &out.Subject, &out.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("load quiz: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, question_text, question_type, options, correct,
			marks, negative_marks, difficulty, chapter
		FROM quiz_questions
		WHERE quiz_id = $1
		ORDER BY id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	out.Questions = make([]Question, 0)
	for rows.Next() {
		var q Question
		var optionsJSON, correctJSON []byte
		if err := rows.Scan(&q.ID, &q.Text, &q.Type, &optionsJSON, &correctJSON,
			&q.Marks, &q.NegativeMarks, &q.Difficulty, &q.Chapter); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		if err := json.Unmarshal(optionsJSON, &q.Options); err != nil {
			return nil, fmt.Errorf("decode options: %w", err)
		}
		if includeAnswers {
			if err := json.Unmarshal(correctJSON, &q.Correct); err != nil {
				return nil, fmt.Errorf("decode correct: %w", err)
			}
		}
		out.Questions = append(out.Questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate questions: %w", err)
	}
	return &out, nil
}

func (s *Service) Delete(ctx context.Context, id, teacherID int64) error {
	if id <= 0 || teacherID <= 0 {
		return ErrInvalidInput
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var ownerID int64
	err = tx.QueryRowContext(ctx, `SELECT teacher_id FROM quizzes WHERE id = $1 FOR UPDATE`, id).Scan(&ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrQuizNotFound
		}
		return fmt.Errorf("load quiz owner: %w", err)
	}
	if ownerID != teacherID {
		return ErrNotOwner
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM quiz_questions WHERE quiz_id = $1`, id); err != nil {
		return fmt.Errorf("delete questions: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM quizzes WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete quiz: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}
	return nil
}

// validateQuestion enforces per-type answer key rules at authoring time.
// The scoring pipeline tolerates malformed markers, but a teacher saving a
// quiz should hear about them up front.
func validateQuestion(q *QuestionInput) error {
	q.Text = strings.TrimSpace(q.Text)
	q.Type = strings.TrimSpace(strings.ToLower(q.Type))
	if q.Text == "" {
		return fmt.Errorf("%w: question text is required", ErrInvalidInput)
	}
	if q.Marks <= 0 {
		return fmt.Errorf("%w: marks must be positive", ErrInvalidInput)
	}
	if q.NegativeMarks < 0 {
		return fmt.Errorf("%w: negative_marks cannot be negative", ErrInvalidInput)
	}

	switch q.Type {
	case "mcq":
		if len(q.Options) < 2 {
			return fmt.Errorf("%w: mcq requires at least 2 options", ErrInvalidInput)
		}
		if len(q.Correct) != 1 {
			return fmt.Errorf("%w: mcq requires exactly one correct marker", ErrInvalidInput)
		}
		if !markerResolvable(q.Correct[0], q.Options) {
			return fmt.Errorf("%w: mcq correct marker does not match any option", ErrInvalidInput)
		}
	case "msq":
		if len(q.Options) < 2 {
			return fmt.Errorf("%w: msq requires at least 2 options", ErrInvalidInput)
		}
		if len(q.Correct) == 0 {
			return fmt.Errorf("%w: msq requires at least one correct marker", ErrInvalidInput)
		}
		seen := map[int]struct{}{}
		for i, marker := range q.Correct {
			idx := resolveMarkerIndex(marker, q.Options)
			if idx < 0 {
				return fmt.Errorf("%w: msq correct[%d] does not match any option", ErrInvalidInput, i)
			}
			if _, dup := seen[idx]; dup {
				return fmt.Errorf("%w: msq correct[%d] duplicates another marker", ErrInvalidInput, i)
			}
			seen[idx] = struct{}{}
		}
	case "nat":
		if len(q.Correct) != 1 {
			return fmt.Errorf("%w: nat requires exactly one correct value", ErrInvalidInput)
		}
		if !numericMarker(q.Correct[0]) {
			return fmt.Errorf("%w: nat correct value must be numeric", ErrInvalidInput)
		}
	case "truefalse":
		if len(q.Correct) != 1 {
			return fmt.Errorf("%w: truefalse requires exactly one correct value", ErrInvalidInput)
		}
		if !booleanMarker(q.Correct[0]) {
			return fmt.Errorf("%w: truefalse correct value must be true or false", ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: type must be one of mcq, msq, nat, truefalse", ErrInvalidInput)
	}
	return nil
}

func markerResolvable(marker interface{}, options []string) bool {
	return resolveMarkerIndex(marker, options) >= 0
}

func resolveMarkerIndex(marker interface{}, options []string) int {
	switch v := marker.(type) {
	case float64:
		idx := int(v)
		if idx >= 0 && idx < len(options) {
			return idx
		}
	case int:
		if v >= 0 && v < len(options) {
			return v
		}
	case string:
		text := strings.TrimSpace(v)
		if n, err := strconv.Atoi(text); err == nil {
			if n >= 0 && n < len(options) {
				return n
			}
			return -1
		}
		for i, opt := range options {
			if strings.TrimSpace(opt) == text {
				return i
			}
		}
	}
	return -1
}

func numericMarker(marker interface{}) bool {
	switch v := marker.(type) {
	case float64, int:
		return true
	case string:
		_, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return err == nil
	case bool:
		return true
	default:
		return false
	}
}

func booleanMarker(marker interface{}) bool {
	switch v := marker.(type) {
	case bool:
		return true
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "false":
			return true
		}
		return false
	default:
		return false
	}
}
