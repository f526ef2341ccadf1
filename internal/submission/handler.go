package submission

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"quizhub/internal/app/apiresp"
	"quizhub/internal/auth"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	svc submissionService
}

type submissionService interface {
	Submit(ctx context.Context, in SubmitInput) (*SubmitResult, error)
	GetSummary(ctx context.Context, quizID, studentID int64) (*SummaryRecord, error)
	ListStudentAttempts(ctx context.Context, studentID int64) ([]StudentAttempt, error)
	GetChapterTallies(ctx context.Context, studentID int64) ([]SubjectTally, error)
}

type response struct {
	OK    bool        `json:"ok"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

type submitRequest struct {
	QuizID             int64             `json:"quiz_id"`
	StudentID          int64             `json:"student_id"`
	TeacherID          int64             `json:"teacher_id"`
	Answers            []SubmittedAnswer `json:"answers"`
	TotalMarks         *float64          `json:"total_marks,omitempty"`
	TotalNegativeMarks *float64          `json:"total_negative_marks,omitempty"`
}

func NewHandler(svc submissionService) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid request body"})
		return
	}

	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		writeJSON(w, r, http.StatusUnauthorized, response{OK: false, Error: "unauthorized"})
		return
	}
	if user.Role == auth.RoleStudent {
		if req.StudentID > 0 && req.StudentID != user.ID {
			writeJSON(w, r, http.StatusForbidden, response{OK: false, Error: "forbidden"})
			return
		}
		req.StudentID = user.ID
	}

	if req.QuizID <= 0 {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "quiz_id is required"})
		return
	}
	if req.StudentID <= 0 {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "student_id is required"})
		return
	}
	if req.TeacherID <= 0 {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "teacher_id is required"})
		return
	}
	if len(req.Answers) == 0 {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "answers must not be empty"})
		return
	}

	result, err := h.svc.Submit(r.Context(), SubmitInput{
		QuizID:             req.QuizID,
		StudentID:          req.StudentID,
		TeacherID:          req.TeacherID,
		Answers:            req.Answers,
		TotalMarks:         req.TotalMarks,
		TotalNegativeMarks: req.TotalNegativeMarks,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: err.Error()})
		case errors.Is(err, ErrQuizNotFound):
			writeJSON(w, r, http.StatusNotFound, response{OK: false, Error: err.Error()})
		default:
			writeJSON(w, r, http.StatusInternalServerError, response{OK: false, Error: "internal error"})
		}
		return
	}

	writeJSON(w, r, http.StatusCreated, response{OK: true, Data: result})
}

func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	quizID, err1 := strconv.ParseInt(r.URL.Query().Get("quiz_id"), 10, 64)
	studentID, err2 := strconv.ParseInt(r.URL.Query().Get("student_id"), 10, 64)
	if err1 != nil || quizID <= 0 || err2 != nil || studentID <= 0 {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "quiz_id and student_id are required"})
		return
	}

	if err := h.authorizeStudentAccess(r, studentID); err != nil {
		writeJSON(w, r, http.StatusForbidden, response{OK: false, Error: "forbidden"})
		return
	}

	rec, err := h.svc.GetSummary(r.Context(), quizID, studentID)
	if err != nil {
		if errors.Is(err, ErrSummaryNotFound) {
			writeJSON(w, r, http.StatusNotFound, response{OK: false, Error: err.Error()})
			return
		}
		writeJSON(w, r, http.StatusInternalServerError, response{OK: false, Error: "internal error"})
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: rec})
}

func (h *Handler) ListStudentAttempts(w http.ResponseWriter, r *http.Request) {
	studentID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || studentID <= 0 {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid student id"})
		return
	}

	if err := h.authorizeStudentAccess(r, studentID); err != nil {
		writeJSON(w, r, http.StatusForbidden, response{OK: false, Error: "forbidden"})
		return
	}

	items, err := h.svc.ListStudentAttempts(r.Context(), studentID)
	if err != nil {
		writeJSON(w, r, http.StatusInternalServerError, response{OK: false, Error: "internal error"})
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: items})
}

func (h *Handler) GetChapterTallies(w http.ResponseWriter, r *http.Request) {
	studentID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || studentID <= 0 {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid student id"})
		return
	}

	if err := h.authorizeStudentAccess(r, studentID); err != nil {
		writeJSON(w, r, http.StatusForbidden, response{OK: false, Error: "forbidden"})
		return
	}

	items, err := h.svc.GetChapterTallies(r.Context(), studentID)
	if err != nil {
		writeJSON(w, r, http.StatusInternalServerError, response{OK: false, Error: "internal error"})
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: items})
}

func (h *Handler) authorizeStudentAccess(r *http.Request, studentID int64) error {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		return auth.ErrUnauthorized
	}
	if user.Role == auth.RoleTeacher {
		return nil
	}
	if user.ID != studentID {
		return auth.ErrForbidden
	}
	return nil
}

func writeJSON(w http.ResponseWriter, r *http.Request, code int, payload response) {
	if payload.OK {
		apiresp.WriteOK(w, r, code, payload.Data)
		return
	}
	apiresp.WriteError(w, r, code, payload.Error)
}
