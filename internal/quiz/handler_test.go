package quiz

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"quizhub/internal/auth"
)

type mockQuizService struct {
	createFn func(ctx context.Context, in CreateQuizInput) (*Quiz, error)
	listFn   func(ctx context.Context, teacherID int64) ([]QuizSummary, error)
	getFn    func(ctx context.Context, id int64, includeAnswers bool) (*Quiz, error)
	deleteFn func(ctx context.Context, id, teacherID int64) error
}

func (m *mockQuizService) Create(ctx context.Context, in CreateQuizInput) (*Quiz, error) {
	return m.createFn(ctx, in)
}

func (m *mockQuizService) List(ctx context.Context, teacherID int64) ([]QuizSummary, error) {
	return m.listFn(ctx, teacherID)
}

func (m *mockQuizService) Get(ctx context.Context, id int64, includeAnswers bool) (*Quiz, error) {
	return m.getFn(ctx, id, includeAnswers)
}

func (m *mockQuizService) Delete(ctx context.Context, id, teacherID int64) error {
	return m.deleteFn(ctx, id, teacherID)
}

func teacherCtx(id int64) context.Context {
	return auth.ContextWithUser(context.Background(), &auth.User{ID: id, Role: auth.RoleTeacher})
}

func studentCtx(id int64) context.Context {
	return auth.ContextWithUser(context.Background(), &auth.User{ID: id, Role: auth.RoleStudent})
}

func TestCreateQuizUsesSessionTeacher(t *testing.T) {
	svc := &mockQuizService{
		createFn: func(ctx context.Context, in CreateQuizInput) (*Quiz, error) {
			if in.TeacherID != 11 {
				t.Fatalf("teacher id = %d, want 11", in.TeacherID)
			}
			return &Quiz{ID: 5, TeacherID: in.TeacherID, Name: in.Name, Subject: in.Subject, CreatedAt: time.Now()}, nil
		},
	}
	h := NewHandler(svc)

	body := `{"name":"Algebra Basics","subject":"Math","questions":[{"question":"2+2?","type":"mcq","options":["3","4"],"correct":["4"],"marks":1}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/quizzes", strings.NewReader(body))
	req = req.WithContext(teacherCtx(11))
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body %s", rec.Code, rec.Body.String())
	}
}

func TestCreateQuizInvalidInput(t *testing.T) {
	svc := &mockQuizService{
		createFn: func(ctx context.Context, in CreateQuizInput) (*Quiz, error) {
			return nil, ErrInvalidInput
		},
	}
	h := NewHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/quizzes", strings.NewReader(`{"name":"x"}`))
	req = req.WithContext(teacherCtx(1))
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestListScopesByRole(t *testing.T) {
	var gotTeacherID int64 = -1
	svc := &mockQuizService{
		listFn: func(ctx context.Context, teacherID int64) ([]QuizSummary, error) {
			gotTeacherID = teacherID
			return []QuizSummary{}, nil
		},
	}
	h := NewHandler(svc)

	t.Run("teacher sees own", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/quizzes", nil)
		req = req.WithContext(teacherCtx(7))
		h.List(httptest.NewRecorder(), req)
		if gotTeacherID != 7 {
			t.Fatalf("teacher filter = %d, want 7", gotTeacherID)
		}
	})

	t.Run("student sees all", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/quizzes", nil)
		req = req.WithContext(studentCtx(3))
		h.List(httptest.NewRecorder(), req)
		if gotTeacherID != 0 {
			t.Fatalf("teacher filter = %d, want 0", gotTeacherID)
		}
	})
}

func newQuizRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Get("/api/v1/quizzes/{id}", h.Get)
	r.Delete("/api/v1/quizzes/{id}", h.Delete)
	return r
}

func TestGetQuizHidesAnswersFromStudents(t *testing.T) {
	svc := &mockQuizService{
		getFn: func(ctx context.Context, id int64, includeAnswers bool) (*Quiz, error) {
			if includeAnswers {
				t.Fatalf("student request must not include answers")
			}
			return &Quiz{ID: id, TeacherID: 1, Name: "Q", Subject: "Math",
				Questions: []Question{{ID: 1, Text: "2+2?", Type: "mcq", Options: []string{"3", "4"}}}}, nil
		},
	}
	h := NewHandler(svc)
	router := newQuizRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/quizzes/9", nil)
	req = req.WithContext(studentCtx(3))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if strings.Contains(rec.Body.String(), `"correct"`) {
		t.Fatalf("correct markers leaked to student: %s", rec.Body.String())
	}
}

func TestGetQuizStripsAnswersForOtherTeacher(t *testing.T) {
	svc := &mockQuizService{
		getFn: func(ctx context.Context, id int64, includeAnswers bool) (*Quiz, error) {
			return &Quiz{ID: id, TeacherID: 99, Name: "Q", Subject: "Math",
				Questions: []Question{{ID: 1, Text: "2+2?", Type: "mcq",
					Options: []string{"3", "4"}, Correct: []interface{}{"4"}}}}, nil
		},
	}
	h := NewHandler(svc)
	router := newQuizRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/quizzes/9", nil)
	req = req.WithContext(teacherCtx(1))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var envelope struct {
		Data Quiz `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Questions[0].Correct != nil {
		t.Fatalf("answers not stripped for non-owner teacher")
	}
}

func TestGetQuizNotFound(t *testing.T) {
	svc := &mockQuizService{
		getFn: func(ctx context.Context, id int64, includeAnswers bool) (*Quiz, error) {
			return nil, ErrQuizNotFound
		},
	}
	h := NewHandler(svc)
	router := newQuizRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/quizzes/404", nil)
	req = req.WithContext(studentCtx(3))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestDeleteQuiz(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{name: "ok", err: nil, want: http.StatusOK},
		{name: "missing", err: ErrQuizNotFound, want: http.StatusNotFound},
		{name: "not owner", err: ErrNotOwner, want: http.StatusForbidden},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &mockQuizService{
				deleteFn: func(ctx context.Context, id, teacherID int64) error {
					return tc.err
				},
			}
			router := newQuizRouter(NewHandler(svc))

			req := httptest.NewRequest(http.MethodDelete, "/api/v1/quizzes/5", nil)
			req = req.WithContext(teacherCtx(1))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}
}
