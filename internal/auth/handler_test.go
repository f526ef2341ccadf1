package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type mockAuthService struct {
	registerFn      func(ctx context.Context, in RegisterInput) (*User, error)
	authenticateFn  func(ctx context.Context, email, password string) (*User, error)
	createSessionFn func(ctx context.Context, userID int64, ip, ua string) (string, time.Time, error)
	sessionUserFn   func(ctx context.Context, token string) (*User, error)
	revokeFn        func(ctx context.Context, token string) error
}

func (m *mockAuthService) Register(ctx context.Context, in RegisterInput) (*User, error) {
	return m.registerFn(ctx, in)
}

func (m *mockAuthService) AuthenticatePassword(ctx context.Context, email, password string) (*User, error) {
	return m.authenticateFn(ctx, email, password)
}

func (m *mockAuthService) CreateSession(ctx context.Context, userID int64, ip, ua string) (string, time.Time, error) {
	if m.createSessionFn != nil {
		return m.createSessionFn(ctx, userID, ip, ua)
	}
	return "tok", time.Now().Add(time.Hour), nil
}

func (m *mockAuthService) GetSessionUser(ctx context.Context, token string) (*User, error) {
	return m.sessionUserFn(ctx, token)
}

func (m *mockAuthService) RevokeSession(ctx context.Context, token string) error {
	if m.revokeFn != nil {
		return m.revokeFn(ctx, token)
	}
	return nil
}

func TestLoginSetsSessionCookie(t *testing.T) {
	svc := &mockAuthService{
		authenticateFn: func(ctx context.Context, email, password string) (*User, error) {
			if email != "t@example.com" || password != "secret123" {
				return nil, ErrInvalidCredentials
			}
			return &User{ID: 1, Name: "T", Email: email, Role: RoleTeacher}, nil
		},
	}
	h := NewHandler(svc)

	body := strings.NewReader(`{"email":"t@example.com","password":"secret123"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", body)
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", rec.Code, rec.Body.String())
	}

	var found bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookieName && c.Value == "tok" && c.HttpOnly {
			found = true
		}
	}
	if !found {
		t.Fatalf("session cookie not set")
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	svc := &mockAuthService{
		authenticateFn: func(ctx context.Context, email, password string) (*User, error) {
			return nil, ErrInvalidCredentials
		},
	}
	h := NewHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
		strings.NewReader(`{"email":"x@example.com","password":"wrong"}`))
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestRegisterConflict(t *testing.T) {
	svc := &mockAuthService{
		registerFn: func(ctx context.Context, in RegisterInput) (*User, error) {
			return nil, ErrEmailTaken
		},
	}
	h := NewHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register",
		strings.NewReader(`{"name":"A","email":"a@example.com","password":"secret123","role":"student"}`))
	rec := httptest.NewRecorder()
	h.Register(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestRegisterCreatedWithSession(t *testing.T) {
	svc := &mockAuthService{
		registerFn: func(ctx context.Context, in RegisterInput) (*User, error) {
			if in.Role != "student" {
				t.Fatalf("role = %q, want student", in.Role)
			}
			return &User{ID: 9, Name: in.Name, Email: in.Email, Role: in.Role}, nil
		},
	}
	h := NewHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register",
		strings.NewReader(`{"name":"A","email":"a@example.com","password":"secret123","role":"student"}`))
	rec := httptest.NewRecorder()
	h.Register(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body %s", rec.Code, rec.Body.String())
	}
	var envelope struct {
		OK   bool `json:"ok"`
		Data User `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.ID != 9 {
		t.Fatalf("user id = %d, want 9", envelope.Data.ID)
	}
}

func TestRequireAuth(t *testing.T) {
	svc := &mockAuthService{
		sessionUserFn: func(ctx context.Context, token string) (*User, error) {
			if token != "good" {
				return nil, ErrUnauthorized
			}
			return &User{ID: 3, Role: RoleStudent}, nil
		},
	}
	h := NewHandler(svc)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := CurrentUser(r.Context())
		if !ok || user.ID != 3 {
			t.Fatalf("user not injected into context")
		}
		w.WriteHeader(http.StatusNoContent)
	})

	t.Run("valid session", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "good"})
		rec := httptest.NewRecorder()
		h.RequireAuth(next).ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("status = %d, want 204", rec.Code)
		}
	})

	t.Run("missing cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		rec := httptest.NewRecorder()
		h.RequireAuth(next).ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
	})
}

func TestRequireRoles(t *testing.T) {
	h := NewHandler(&mockAuthService{})
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mw := h.RequireRoles(RoleTeacher)(next)

	cases := []struct {
		name string
		user *User
		want int
	}{
		{name: "teacher allowed", user: &User{ID: 1, Role: RoleTeacher}, want: http.StatusNoContent},
		{name: "student forbidden", user: &User{ID: 2, Role: RoleStudent}, want: http.StatusForbidden},
		{name: "anonymous", user: nil, want: http.StatusUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/teacher-only", nil)
			if tc.user != nil {
				req = req.WithContext(ContextWithUser(req.Context(), tc.user))
			}
			rec := httptest.NewRecorder()
			mw.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}
}
