package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/desertthunder/radar/internal/models"
	"github.com/desertthunder/radar/internal/repositories"
	"github.com/desertthunder/radar/internal/session"
	"github.com/desertthunder/radar/internal/shared"
	tu "github.com/desertthunder/radar/internal/testing"
	"github.com/urfave/cli/v3"
)

type stubExchanger struct {
	refreshErr error
}

func (s stubExchanger) Exchange(ctx context.Context, code string) (models.Credential, error) {
	return models.Credential{AccessToken: "exchanged", TokenType: "Bearer", RefreshToken: "r"}, nil
}

func (s stubExchanger) Refresh(ctx context.Context, refreshToken string) (models.Credential, error) {
	if s.refreshErr != nil {
		return models.Credential{}, s.refreshErr
	}
	return models.Credential{AccessToken: "fresh", TokenType: "Bearer"}, nil
}

func workedCatalog() *tu.MockCatalog {
	return &tu.MockCatalog{
		SavedPages: []models.Page[models.SavedTrack]{
			tu.SavedTrackPage([]string{"A"}, []string{"B"}),
		},
		ReleasePages: []models.Page[models.Release]{
			tu.ReleasePage(tu.NewRelease("R1", "A"), tu.NewRelease("R2", "C")),
		},
	}
}

func testRuns(t *testing.T) *repositories.RunRepository {
	t.Helper()
	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return repositories.NewRunRepository(db)
}

func run(t *testing.T, r *Runner, args ...string) error {
	t.Helper()
	app := &cli.Command{Name: "radar", Commands: r.register()}
	return app.Run(context.Background(), append([]string{"radar"}, args...))
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(io.Discard)
			output := &bytes.Buffer{}
			httpClient := &http.Client{}
			catalog := &tu.MockCatalog{}

			runner := NewRunner(RunnerOpts{
				Config:     config,
				ConfigPath: "/test/path/config.toml",
				Logger:     logger,
				Output:     output,
				HTTPClient: httpClient,
				Catalog:    catalog,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.httpClient != httpClient {
				t.Error("expected httpClient to be set")
			}
			if runner.catalog != catalog {
				t.Error("expected catalog to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
			if runner.httpClient != http.DefaultClient {
				t.Error("expected httpClient to default to http.DefaultClient")
			}
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("returns error on marshal failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})
			if err := runner.writeJSON(make(chan int), false); err == nil {
				t.Error("expected marshal error")
			}
		})

		t.Run("returns error on write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})
			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err == nil {
				t.Error("expected write error")
			}
		})

		t.Run("returns error on newline write failure", func(t *testing.T) {
			lw := tu.NewLimitedWriter(1, 0, io.Discard)
			runner := NewRunner(RunnerOpts{Output: &lw})
			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err == nil {
				t.Error("expected newline write error")
			}
		})
	})

	t.Run("writeYAML", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Output: output})

		if err := runner.writeYAML(map[string]int{"matched": 2}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if output.String() != "matched: 2\n" {
			t.Errorf("unexpected YAML %q", output.String())
		}
	})

	t.Run("writePlain", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Output: output})

		runner.writePlain("hello %s\n", "world")
		runner.writePlainln("next")
		runner.writePlainHeader("Title")

		if !strings.HasPrefix(output.String(), "hello world\n\nnext\n") {
			t.Errorf("unexpected output %q", output.String())
		}
		if !strings.Contains(output.String(), "Title\n") {
			t.Error("expected header title")
		}

		failing := NewRunner(RunnerOpts{Output: &tu.FWriter{}})
		if err := failing.writePlain("x"); err == nil {
			t.Error("expected write error")
		}
	})

	t.Run("loadConfig", func(t *testing.T) {
		t.Run("missing file uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{
				Logger:     shared.NewLogger(io.Discard),
				ConfigPath: filepath.Join(t.TempDir(), "missing.toml"),
			})

			config, err := runner.loadConfig(&cli.Command{})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if config.Build.PageSize != 50 {
				t.Errorf("expected default page size, got %d", config.Build.PageSize)
			}
		})

		t.Run("reads file", func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			tu.MustWriteFile(t, path, "[build]\nplaylist_name = \"Fresh\"\npage_size = 10\n")

			runner := NewRunner(RunnerOpts{Logger: shared.NewLogger(io.Discard), ConfigPath: path})
			config, err := runner.loadConfig(&cli.Command{})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if config.Build.PlaylistName != "Fresh" || config.Build.PageSize != 10 {
				t.Errorf("unexpected build config %+v", config.Build)
			}
		})

		t.Run("invalid file", func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			tu.MustWriteFile(t, path, "[build\n")

			runner := NewRunner(RunnerOpts{Logger: shared.NewLogger(io.Discard), ConfigPath: path})
			if _, err := runner.loadConfig(&cli.Command{}); err == nil {
				t.Error("expected parse error")
			}
		})
	})

	t.Run("ensureSession requires credentials", func(t *testing.T) {
		config := shared.DefaultConfig()
		config.Credentials.Spotify.ClientID = ""

		runner := NewRunner(RunnerOpts{Config: config, Logger: shared.NewLogger(io.Discard)})
		if _, err := runner.ensureSession(&cli.Command{}); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("ensureSession restores stored credentials", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		config := shared.DefaultConfig()
		config.Credentials.Spotify.RefreshToken = "stored"

		runner := NewRunner(RunnerOpts{Config: config, ConfigPath: path, Logger: shared.NewLogger(io.Discard)})
		sess, err := runner.ensureSession(&cli.Command{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if sess.Credential().RefreshToken != "stored" {
			t.Error("expected stored credential to be restored")
		}
		if sess.Authenticated() {
			t.Error("restored session should not be authenticated before a refresh")
		}
		if runner.exchanger == nil {
			t.Error("expected exchanger to be built")
		}
	})

	t.Run("saveCredential keeps environment secrets out of the file", func(t *testing.T) {
		t.Setenv(shared.EnvClientSecret, "env-secret")
		path := filepath.Join(t.TempDir(), "config.toml")
		tu.MustWriteFile(t, path, "[credentials.spotify]\nclient_id = \"id\"\nclient_secret = \"file-secret\"\n")

		runner := NewRunner(RunnerOpts{ConfigPath: path, Logger: shared.NewLogger(io.Discard)})
		config, err := runner.loadConfig(&cli.Command{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if config.Credentials.Spotify.ClientSecret != "env-secret" {
			t.Fatalf("expected env secret in memory, got %q", config.Credentials.Spotify.ClientSecret)
		}

		cred := models.Credential{AccessToken: "access", TokenType: "Bearer", RefreshToken: "refresh"}
		if err := runner.saveCredential(cred); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		saved := tu.MustReadFile(t, path)
		if strings.Contains(saved, "env-secret") {
			t.Errorf("environment secret written to config:\n%s", saved)
		}
		for _, want := range []string{"file-secret", "access", "refresh"} {
			if !strings.Contains(saved, want) {
				t.Errorf("expected %q in saved config:\n%s", want, saved)
			}
		}
	})

	t.Run("saveCredential creates a missing file without environment secrets", func(t *testing.T) {
		t.Setenv(shared.EnvClientSecret, "env-secret")
		path := filepath.Join(t.TempDir(), "config.toml")

		runner := NewRunner(RunnerOpts{ConfigPath: path, Logger: shared.NewLogger(io.Discard)})
		if err := runner.saveCredential(models.Credential{AccessToken: "access", TokenType: "Bearer"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		saved := tu.MustReadFile(t, path)
		if strings.Contains(saved, "env-secret") || !strings.Contains(saved, "access") {
			t.Errorf("unexpected saved config:\n%s", saved)
		}
	})
}

func TestBuild(t *testing.T) {
	t.Run("Plain Output", func(t *testing.T) {
		output := &bytes.Buffer{}
		catalog := workedCatalog()
		runner := NewRunner(RunnerOpts{
			Config:  shared.DefaultConfig(),
			Catalog: catalog,
			Logger:  shared.NewLogger(io.Discard),
			Output:  output,
		})

		if err := run(t, runner, "build", "--no-record", "--name", "Fresh Finds"); err != nil {
			t.Fatalf("build failed: %v", err)
		}

		out := output.String()
		for _, want := range []string{"Fetching user profile", "Playlist built", "Matched: 1", "1. Release R1"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected %q in output:\n%s", want, out)
			}
		}
		if len(catalog.Created) != 1 || catalog.Created[0].Name != "Fresh Finds" {
			t.Errorf("expected playlist named Fresh Finds, got %+v", catalog.Created)
		}
	})

	t.Run("Invalid Config", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		tu.MustWriteFile(t, path, "[api]\nrequests_per_second = -1\n")

		catalog := workedCatalog()
		runner := NewRunner(RunnerOpts{
			ConfigPath: path,
			Catalog:    catalog,
			Logger:     shared.NewLogger(io.Discard),
			Output:     io.Discard,
		})

		err := run(t, runner, "build", "--no-record")
		if !errors.Is(err, shared.ErrInvalidConfig) {
			t.Fatalf("expected ErrInvalidConfig, got %v", err)
		}
		if code := exitCode(err); code != exitUsage {
			t.Errorf("expected exit code %d, got %d", exitUsage, code)
		}
		if len(catalog.Events) != 0 {
			t.Errorf("expected no catalog calls, got %v", catalog.Events)
		}
	})

	t.Run("JSON Output", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{
			Config:  shared.DefaultConfig(),
			Catalog: workedCatalog(),
			Logger:  shared.NewLogger(io.Discard),
			Output:  output,
		})

		if err := run(t, runner, "build", "--no-record", "--dry-run", "--json", "--market", "SE"); err != nil {
			t.Fatalf("build failed: %v", err)
		}

		var got struct {
			Market       string   `json:"market"`
			DryRun       bool     `json:"dry_run"`
			MatchedCount int      `json:"matched_count"`
			TrackURIs    []string `json:"track_uris"`
		}
		if err := json.Unmarshal(output.Bytes(), &got); err != nil {
			t.Fatalf("output is not JSON: %v\n%s", err, output.String())
		}
		if got.Market != "SE" || !got.DryRun || got.MatchedCount != 1 || len(got.TrackURIs) != 1 {
			t.Errorf("unexpected result %+v", got)
		}
	})

	t.Run("Records Run", func(t *testing.T) {
		runs := testRuns(t)
		runner := NewRunner(RunnerOpts{
			Config:  shared.DefaultConfig(),
			Catalog: workedCatalog(),
			Runs:    runs,
			Logger:  shared.NewLogger(io.Discard),
			Output:  &bytes.Buffer{},
		})

		if err := run(t, runner, "build", "--quiet"); err != nil {
			t.Fatalf("build failed: %v", err)
		}

		latest, err := runs.Latest()
		if err != nil {
			t.Fatalf("expected a recorded run: %v", err)
		}
		if latest.Status() != models.RunSucceeded || latest.MatchedCount() != 1 {
			t.Errorf("unexpected run %s matched %d", latest.Status(), latest.MatchedCount())
		}
	})

	t.Run("Invalid Page Size", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{
			Config:  shared.DefaultConfig(),
			Catalog: workedCatalog(),
			Logger:  shared.NewLogger(io.Discard),
			Output:  &bytes.Buffer{},
		})

		err := run(t, runner, "build", "--no-record", "--page-size", "51")
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
		if exitCode(err) != exitUsage {
			t.Errorf("expected usage exit code, got %d", exitCode(err))
		}
	})

	t.Run("Auth Failure", func(t *testing.T) {
		catalog := workedCatalog()
		catalog.UserErr = &shared.AuthError{Op: "authorize", Err: shared.ErrNotAuthenticated}
		runner := NewRunner(RunnerOpts{
			Config:  shared.DefaultConfig(),
			Catalog: catalog,
			Logger:  shared.NewLogger(io.Discard),
			Output:  &bytes.Buffer{},
		})

		err := run(t, runner, "build", "--no-record")
		if exitCode(err) != exitReauthenticate {
			t.Errorf("expected re-authenticate exit code, got %d (%v)", exitCode(err), err)
		}
	})
}

func TestHistory(t *testing.T) {
	runs := testRuns(t)
	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{
		Config:  shared.DefaultConfig(),
		Catalog: workedCatalog(),
		Runs:    runs,
		Logger:  shared.NewLogger(io.Discard),
		Output:  output,
	})

	if err := run(t, runner, "build", "--quiet", "--json"); err != nil {
		t.Fatalf("build failed: %v", err)
	}

	t.Run("List", func(t *testing.T) {
		output.Reset()
		if err := run(t, runner, "history", "list", "--json"); err != nil {
			t.Fatalf("history list failed: %v", err)
		}

		var got []runSummary
		if err := json.Unmarshal(output.Bytes(), &got); err != nil {
			t.Fatalf("output is not JSON: %v", err)
		}
		if len(got) != 1 || got[0].Sequence != 1 || got[0].Status != "succeeded" {
			t.Errorf("unexpected runs %+v", got)
		}
	})

	t.Run("Show Latest", func(t *testing.T) {
		output.Reset()
		if err := run(t, runner, "history", "show"); err != nil {
			t.Fatalf("history show failed: %v", err)
		}
		if !strings.Contains(output.String(), "Run #1: succeeded") || !strings.Contains(output.String(), "1. Release R1") {
			t.Errorf("unexpected output %q", output.String())
		}
	})

	t.Run("Show By Sequence YAML", func(t *testing.T) {
		output.Reset()
		if err := run(t, runner, "history", "show", "1", "--yaml"); err != nil {
			t.Fatalf("history show failed: %v", err)
		}
		if !strings.Contains(output.String(), "release_id: R1") && !strings.Contains(output.String(), "releaseid: R1") {
			t.Errorf("expected match in YAML output, got %q", output.String())
		}
	})

	t.Run("Show Unknown", func(t *testing.T) {
		if err := run(t, runner, "history", "show", "nope"); !errors.Is(err, shared.ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound, got %v", err)
		}
	})

	t.Run("Export CSV", func(t *testing.T) {
		base := filepath.Join(t.TempDir(), "run")
		if err := run(t, runner, "history", "export", "1", "--format", "csv", "--output", base); err != nil {
			t.Fatalf("history export failed: %v", err)
		}
		tu.AssertFileExists(t, base+"_matches.csv")
		if !strings.Contains(tu.MustReadFile(t, base+"_matches.csv"), "R1") {
			t.Error("expected R1 in CSV export")
		}
	})

	t.Run("Export Unknown Format", func(t *testing.T) {
		err := run(t, runner, "history", "export", "--format", "pdf")
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestAPI(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		switch r.URL.Path {
		case "/me":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"id":"user"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":{"status":404}}`))
		}
	}))
	defer srv.Close()

	newRunner := func(output io.Writer, ex session.Exchanger) *Runner {
		config := shared.DefaultConfig()
		config.API.BaseURL = srv.URL

		sess := session.New(ex, shared.NewLogger(io.Discard))
		sess.Restore(models.Credential{RefreshToken: "stored"})

		return NewRunner(RunnerOpts{
			Config:     config,
			Session:    sess,
			HTTPClient: srv.Client(),
			Logger:     shared.NewLogger(io.Discard),
			Output:     output,
		})
	}

	t.Run("Get Refreshes First", func(t *testing.T) {
		output := &bytes.Buffer{}
		if err := run(t, newRunner(output, stubExchanger{}), "api", "get", "me"); err != nil {
			t.Fatalf("api get failed: %v", err)
		}
		if gotAuth != "Bearer fresh" {
			t.Errorf("expected refreshed credential, got %q", gotAuth)
		}
		if !strings.Contains(output.String(), `"id": "user"`) {
			t.Errorf("unexpected output %q", output.String())
		}
	})

	t.Run("Get Error Status", func(t *testing.T) {
		err := run(t, newRunner(&bytes.Buffer{}, stubExchanger{}), "api", "get", "/missing")
		if shared.StatusCode(err) != http.StatusNotFound {
			t.Errorf("expected 404 transport error, got %v", err)
		}
	})

	t.Run("Refresh Failure", func(t *testing.T) {
		gotAuth = ""
		err := run(t, newRunner(&bytes.Buffer{}, stubExchanger{refreshErr: errors.New("revoked")}), "api", "get", "me")
		if !shared.IsAuthError(err) {
			t.Errorf("expected AuthError, got %v", err)
		}
		if gotAuth != "" {
			t.Error("no request should be sent when the refresh fails")
		}
	})

	t.Run("Post Invalid JSON", func(t *testing.T) {
		err := run(t, newRunner(&bytes.Buffer{}, stubExchanger{}), "api", "post", "me", "--data", "{")
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestAuthStatus(t *testing.T) {
	newStatusRunner := func(scopes []string, output io.Writer) *Runner {
		sess := session.New(stubExchanger{}, shared.NewLogger(io.Discard))
		sess.Restore(models.Credential{AccessToken: "a", TokenType: "Bearer", RefreshToken: "r", Scopes: scopes})

		catalog := workedCatalog()
		catalog.User = &models.User{ID: "u1", Market: "GB", DisplayName: "Listener"}
		return NewRunner(RunnerOpts{
			Config:  shared.DefaultConfig(),
			Session: sess,
			Catalog: catalog,
			Logger:  shared.NewLogger(io.Discard),
			Output:  output,
		})
	}

	tt := []struct {
		name    string
		scopes  []string
		missing []string
	}{
		{"all scopes granted", session.Scopes, nil},
		{"library scope missing", []string{"playlist-modify-private", "user-read-private", "user-read-email"}, []string{"user-library-read"}},
		{"no scopes recorded", nil, nil},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			output := &bytes.Buffer{}
			if err := run(t, newStatusRunner(tc.scopes, output), "auth", "status", "--json"); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			var got authStatus
			if err := json.Unmarshal(output.Bytes(), &got); err != nil {
				t.Fatalf("invalid JSON output: %v\n%s", err, output.String())
			}
			if !got.Authenticated || got.User == nil || got.User.ID != "u1" {
				t.Errorf("unexpected status %+v", got)
			}
			if !slices.Equal(got.MissingScopes, tc.missing) {
				t.Errorf("expected missing scopes %v, got %v", tc.missing, got.MissingScopes)
			}
		})
	}

	t.Run("plain output names missing scopes", func(t *testing.T) {
		output := &bytes.Buffer{}
		if err := run(t, newStatusRunner([]string{"user-read-private"}, output), "auth", "status"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(output.String(), "Missing scopes: playlist-modify-private user-read-email user-library-read") {
			t.Errorf("expected missing scopes line, got:\n%s", output.String())
		}
	})
}

func TestExitCode(t *testing.T) {
	tt := []struct {
		name string
		err  error
		want int
	}{
		{"auth error", &shared.AuthError{Op: "refresh"}, exitReauthenticate},
		{"upstream 401", &shared.TransportError{StatusCode: 401}, exitReauthenticate},
		{"missing argument", shared.ErrMissingArgument, exitUsage},
		{"invalid config", fmt.Errorf("config.toml: %w", shared.ErrInvalidConfig), exitUsage},
		{"other", errors.New("boom"), exitFailure},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			if got := exitCode(tc.err); got != tc.want {
				t.Errorf("expected %d, got %d", tc.want, got)
			}
		})
	}
}
