package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/desertthunder/radar/internal/shared"
	tu "github.com/desertthunder/radar/internal/testing"
)

func TestAPIService(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		t.Run("Defaults", func(t *testing.T) {
			srv := NewAPIService(nil)
			if srv.baseURL != "https://api.spotify.com/v1" {
				t.Errorf("expected default base URL, got %s", srv.baseURL)
			}
			if srv.httpClient != http.DefaultClient {
				t.Error("expected http.DefaultClient to be used")
			}
			if srv.limiter != nil {
				t.Error("expected no limiter by default")
			}
		})

		t.Run("With Options", func(t *testing.T) {
			customClient := &http.Client{}
			srv := NewAPIService(nil, WithBaseURL("http://example.com"), WithHTTPClient(customClient), WithRateLimit(5, 0))

			if srv.baseURL != "http://example.com" {
				t.Errorf("expected baseURL 'http://example.com', got %s", srv.baseURL)
			}
			if srv.httpClient != customClient {
				t.Error("expected custom client to be used")
			}
			if srv.limiter == nil || srv.limiter.Burst() != 1 {
				t.Error("expected limiter with burst 1")
			}
		})
	})

	t.Run("Get", func(t *testing.T) {
		t.Run("Successful Request With JSON Response", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodGet {
					t.Errorf("expected GET method, got %s", r.Method)
				}
				if r.URL.Path != "/me" {
					t.Errorf("expected path '/me', got %s", r.URL.Path)
				}
				if r.Header.Get("Authorization") != "Bearer token" {
					t.Errorf("unexpected authorization %q", r.Header.Get("Authorization"))
				}

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusOK)
				json.NewEncoder(w).Encode(map[string]string{"id": "u1"})
			}))
			defer server.Close()

			srv := NewAPIService(&tu.StaticAuthorizer{Header: "Bearer token"}, WithBaseURL(server.URL))
			resp, err := srv.Get(context.Background(), "me")

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if resp.StatusCode != http.StatusOK {
				t.Errorf("expected status 200, got %d", resp.StatusCode)
			}
			if !resp.IsJSON || resp.JSONData == nil {
				t.Error("expected response to be JSON")
			}
		})

		t.Run("Non-2xx Is Returned Raw", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
				w.Write([]byte("plain text response"))
			}))
			defer server.Close()

			srv := NewAPIService(nil, WithBaseURL(server.URL))
			resp, err := srv.Get(context.Background(), "/missing")

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if resp.StatusCode != http.StatusNotFound || resp.IsJSON {
				t.Errorf("unexpected response %d json=%v", resp.StatusCode, resp.IsJSON)
			}
			if string(resp.Body) != "plain text response" {
				t.Errorf("expected body 'plain text response', got %s", string(resp.Body))
			}
		})

		t.Run("Authorization Failure Sends Nothing", func(t *testing.T) {
			called := false
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
			}))
			defer server.Close()

			authErr := &shared.AuthError{Op: "authorize", Err: shared.ErrNotAuthenticated}
			srv := NewAPIService(&tu.StaticAuthorizer{Err: authErr}, WithBaseURL(server.URL))

			if _, err := srv.Get(context.Background(), "/me"); !shared.IsAuthError(err) {
				t.Errorf("expected AuthError, got %v", err)
			}
			if called {
				t.Error("expected no request to be sent")
			}
		})

		t.Run("Failed Request Creation", func(t *testing.T) {
			srv := NewAPIService(nil, WithBaseURL("http://example.com"))
			_, err := srv.Get(context.Background(), "/test\x00invalid")

			if err == nil || !strings.Contains(err.Error(), "failed to create request") {
				t.Errorf("expected 'failed to create request' error, got %v", err)
			}
		})

		t.Run("Failed HTTP Request", func(t *testing.T) {
			client := &http.Client{
				Transport: tu.NewMockRoundTripper(nil, errors.New("connection failed")),
			}

			srv := NewAPIService(nil, WithBaseURL("http://example.com"), WithHTTPClient(client))
			_, err := srv.Get(context.Background(), "/test")

			if err == nil || !strings.Contains(err.Error(), "request failed") {
				t.Errorf("expected 'request failed' error, got %v", err)
			}
		})

		t.Run("Failed Response Body Read", func(t *testing.T) {
			client := &http.Client{
				Transport: tu.NewMockRoundTripper(&http.Response{
					StatusCode: http.StatusOK,
					Body:       &tu.FCloser{},
					Header:     http.Header{},
				}, nil),
			}

			srv := NewAPIService(nil, WithBaseURL("http://example.com"), WithHTTPClient(client))
			_, err := srv.Get(context.Background(), "/test")

			if err == nil || !strings.Contains(err.Error(), "failed to read response") {
				t.Errorf("expected 'failed to read response' error, got %v", err)
			}
		})

		t.Run("With Canceled Context", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			srv := NewAPIService(nil, WithBaseURL(server.URL))
			if _, err := srv.Get(ctx, "/test"); err == nil {
				t.Error("expected error for canceled context")
			}
		})
	})

	t.Run("Post", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				t.Errorf("expected POST method, got %s", r.Method)
			}
			if r.Header.Get("Content-Type") != "application/json" {
				t.Errorf("expected Content-Type 'application/json', got %s", r.Header.Get("Content-Type"))
			}

			body, _ := io.ReadAll(r.Body)
			var data map[string]string
			if err := json.Unmarshal(body, &data); err != nil {
				t.Errorf("failed to unmarshal request body: %v", err)
			}
			if data["name"] != "radar" {
				t.Errorf("unexpected request data %v", data)
			}

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]string{"id": "123"})
		}))
		defer server.Close()

		srv := NewAPIService(&tu.StaticAuthorizer{Header: "Bearer token"}, WithBaseURL(server.URL))
		requestData, _ := json.Marshal(map[string]string{"name": "radar"})
		resp, err := srv.Post(context.Background(), "/users/u1/playlists", requestData)

		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if resp.StatusCode != http.StatusCreated || !resp.IsJSON {
			t.Errorf("unexpected response %d json=%v", resp.StatusCode, resp.IsJSON)
		}
	})
}
