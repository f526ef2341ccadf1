package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"quizhub/internal/app/apiresp"
	"quizhub/internal/auth"
)

type Handler struct {
	svc quizService
}

type quizService interface {
	Create(ctx context.Context, in CreateQuizInput) (*Quiz, error)
	List(ctx context.Context, teacherID int64) ([]QuizSummary, error)
	Get(ctx context.Context, id int64, includeAnswers bool) (*Quiz, error)
	Delete(ctx context.Context, id, teacherID int64) error
}

type createQuizRequest struct {
	Name      string          `json:"name"`
	Subject   string          `json:"subject"`
	Questions []QuestionInput `json:"questions"`
}

func NewHandler(svc quizService) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		apiresp.WriteError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req createQuizRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := h.svc.Create(r.Context(), CreateQuizInput{
		TeacherID: user.ID,
		Name:      req.Name,
		Subject:   req.Subject,
		Questions: req.Questions,
	})
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			apiresp.WriteError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	apiresp.WriteOK(w, r, http.StatusCreated, created)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		apiresp.WriteError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}

	// Teachers see their own question bank, students browse everything.
	var teacherID int64
	if user.Role == auth.RoleTeacher {
		teacherID = user.ID
	}

	items, err := h.svc.List(r.Context(), teacherID)
	if err != nil {
		apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, items)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		apiresp.WriteError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid quiz id")
		return
	}

	includeAnswers := user.Role == auth.RoleTeacher
	out, err := h.svc.Get(r.Context(), id, includeAnswers)
	if err != nil {
		if errors.Is(err, ErrQuizNotFound) {
			apiresp.WriteError(w, r, http.StatusNotFound, "quiz not found")
			return
		}
		apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	if includeAnswers && out.TeacherID != user.ID {
		// Another teacher's quiz reads like a student view.
		for i := range out.Questions {
			out.Questions[i].Correct = nil
		}
	}
	apiresp.WriteOK(w, r, http.StatusOK, out)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		apiresp.WriteError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid quiz id")
		return
	}

	err = h.svc.Delete(r.Context(), id, user.ID)
	if err != nil {
		switch {
		case errors.Is(err, ErrQuizNotFound):
			apiresp.WriteError(w, r, http.StatusNotFound, "quiz not found")
		case errors.Is(err, ErrNotOwner):
			apiresp.WriteError(w, r, http.StatusForbidden, "forbidden")
		case errors.Is(err, ErrInvalidInput):
			apiresp.WriteError(w, r, http.StatusBadRequest, err.Error())
		default:
			apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
		}
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, map[string]string{"status": "deleted"})
}
