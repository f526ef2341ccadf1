package app

import (
	"database/sql"
	"net/http"
	"time"

	"quizhub/internal/app/observability"
	"quizhub/internal/auth"
	"quizhub/internal/quiz"
	"quizhub/internal/report"
	"quizhub/internal/submission"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(cfg Config, db *sql.DB) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	collector := observability.NewCollector(db)
	r.Use(collector.Middleware)
	r.Use(CSRFMiddleware(cfg.CSRFEnforced))

	authSvc := auth.NewService(db, auth.ServiceConfig{SessionTTL: cfg.SessionTTL})
	authHandler := auth.NewHandler(authSvc)

	quizHandler := quiz.NewHandler(quiz.NewService(db))
	submissionHandler := submission.NewHandler(submission.NewService(db))
	reportHandler := report.NewHandler(report.NewService(db))

	authLimiter := NewIPRateLimiter(cfg.AuthRateLimitPerMin, time.Minute)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	r.Get("/metrics", collector.MetricsHandler)

	r.Route("/api/v1", func(api chi.Router) {
		api.Group(func(public chi.Router) {
			public.Use(RateLimitMiddleware(authLimiter))
			public.Post("/auth/register", authHandler.Register)
			public.Post("/auth/login", authHandler.Login)
		})

		api.Group(func(secure chi.Router) {
			secure.Use(authHandler.RequireAuth)
			secure.Get("/auth/me", authHandler.Me)
			secure.Post("/auth/logout", authHandler.Logout)

			secure.Get("/quizzes", quizHandler.List)
			secure.Get("/quizzes/{id}", quizHandler.Get)

			secure.Post("/submissions", submissionHandler.Submit)
			secure.Get("/submissions/summary", submissionHandler.GetSummary)
			secure.Get("/students/{id}/attempts", submissionHandler.ListStudentAttempts)
			secure.Get("/students/{id}/chapter-tallies", submissionHandler.GetChapterTallies)

			secure.Group(func(teacher chi.Router) {
				teacher.Use(authHandler.RequireRoles(auth.RoleTeacher))
				teacher.Post("/quizzes", quizHandler.Create)
				teacher.Delete("/quizzes/{id}", quizHandler.Delete)
				teacher.Get("/reports/overview", reportHandler.Overview)
				teacher.Get("/reports/students/export", reportHandler.ExportStudents)
			})
		})
	})

	return r
}
