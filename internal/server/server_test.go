package server

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/desertthunder/radar/internal/shared"
)

type fakeAuthenticator struct {
	codes []string
	err   error
}

func (f *fakeAuthenticator) Authenticate(ctx context.Context, code string) error {
	f.codes = append(f.codes, code)
	return f.err
}

func TestBasicRouter(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	t.Run("Method Patterns", func(t *testing.T) {
		router := NewBasicRouter()
		router.Handle(http.MethodGet, "/start", ok)

		tt := []struct {
			method string
			path   string
			status int
		}{
			{http.MethodGet, "/start", http.StatusOK},
			{http.MethodPost, "/start", http.StatusMethodNotAllowed},
			{http.MethodGet, "/missing", http.StatusNotFound},
		}

		for _, tc := range tt {
			t.Run(tc.method+" "+tc.path, func(t *testing.T) {
				rec := httptest.NewRecorder()
				router.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
				if rec.Code != tc.status {
					t.Errorf("expected status %d, got %d", tc.status, rec.Code)
				}
			})
		}
	})

	t.Run("Root Is Exact", func(t *testing.T) {
		router := NewBasicRouter()
		router.Handle(http.MethodGet, "/", ok)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("expected / to be served, got %d", rec.Code)
		}

		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected /nope to be 404, got %d", rec.Code)
		}
	})

	t.Run("Middleware Order", func(t *testing.T) {
		var order []string
		mw := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		router := NewBasicRouter()
		router.Use(mw("first"), mw("second"))
		router.HandleFunc(http.MethodGet, "/", func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "handler")
		})

		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		if got := strings.Join(order, ","); got != "first,second,handler" {
			t.Errorf("unexpected middleware order %s", got)
		}
	})
}

func TestMiddleware(t *testing.T) {
	t.Run("Logging", func(t *testing.T) {
		var buf bytes.Buffer
		logger := shared.NewLogger(&buf)

		handler := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}))

		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/start", nil))

		out := buf.String()
		if !strings.Contains(out, "/start") || !strings.Contains(out, "418") {
			t.Errorf("expected path and status in log output, got %q", out)
		}
	})

	t.Run("Recover", func(t *testing.T) {
		var buf bytes.Buffer
		logger := shared.NewLogger(&buf)

		handler := Recover(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		}))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
		if !strings.Contains(buf.String(), "boom") {
			t.Errorf("expected panic value to be logged, got %q", buf.String())
		}
	})
}

func TestOAuthHandler(t *testing.T) {
	callback := func(h *OAuthHandler, query string) *httptest.ResponseRecorder {
		router := NewBasicRouter()
		router.Handler(h)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?"+query, nil))
		return rec
	}

	t.Run("Success", func(t *testing.T) {
		auth := &fakeAuthenticator{}
		h := NewOAuthHandler(auth, "state-1")

		rec := callback(h, "state=state-1&code=abc")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "Authorization Successful") {
			t.Error("expected success page")
		}
		if len(auth.codes) != 1 || auth.codes[0] != "abc" {
			t.Errorf("expected code abc to be authenticated, got %v", auth.codes)
		}

		result := <-h.Result()
		if result.Error() != nil {
			t.Errorf("expected no error, got %v", result.Error())
		}
	})

	t.Run("State Mismatch", func(t *testing.T) {
		auth := &fakeAuthenticator{}
		h := NewOAuthHandler(auth, "state-1")

		rec := callback(h, "state=other&code=abc")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		if len(auth.codes) != 0 {
			t.Error("expected no authentication on state mismatch")
		}

		result := <-h.Result()
		if !errors.Is(result.Error(), shared.ErrStateMismatch) {
			t.Errorf("expected ErrStateMismatch, got %v", result.Error())
		}
	})

	t.Run("Missing Code", func(t *testing.T) {
		h := NewOAuthHandler(&fakeAuthenticator{}, "s")

		rec := callback(h, "state=s&error=access_denied")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}

		result := <-h.Result()
		if !errors.Is(result.Error(), shared.ErrAuthFailed) {
			t.Errorf("expected ErrAuthFailed, got %v", result.Error())
		}
		if !strings.Contains(result.Error().Error(), "access_denied") {
			t.Errorf("expected error param in message, got %v", result.Error())
		}
	})

	t.Run("Exchange Failure", func(t *testing.T) {
		cause := &shared.AuthError{Op: "exchange", Err: errors.New("bad code")}
		h := NewOAuthHandler(&fakeAuthenticator{err: cause}, "s")

		rec := callback(h, "state=s&code=abc")
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}

		result := <-h.Result()
		if !shared.IsAuthError(result.Error()) {
			t.Errorf("expected AuthError, got %v", result.Error())
		}
	})

	t.Run("Second Callback Rejected", func(t *testing.T) {
		auth := &fakeAuthenticator{}
		h := NewOAuthHandler(auth, "s")
		router := NewBasicRouter()
		router.Handler(h)

		for i, want := range []int{http.StatusOK, http.StatusBadRequest} {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=s&code=abc", nil))
			if rec.Code != want {
				t.Errorf("call %d: expected %d, got %d", i, want, rec.Code)
			}
		}
		if len(auth.codes) != 1 {
			t.Errorf("expected one authentication, got %d", len(auth.codes))
		}
	})
}
