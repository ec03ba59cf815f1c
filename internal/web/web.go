package web

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/radar/internal/server"
	"github.com/desertthunder/radar/internal/shared"
	"github.com/desertthunder/radar/internal/tasks"
)

// StateCookie holds the OAuth state between /login and /callback.
const StateCookie = "spotify_auth_state"

const (
	greetingAuthenticated = "Hello Spotify Person you are authenticated"
	greetingAnonymous     = "Hello Spotify People"
	reauthenticateMessage = "please re-authenticate"
)

var coversTemplate = template.Must(template.New("covers").Parse(
	`{{range .}}<img src="{{.}}" height="150" width="150"/>{{end}}`,
))

// Session is the credential session the handlers authenticate through.
type Session interface {
	server.Authenticator
	Authenticated() bool
}

// AuthURLer builds the provider's authorize URL for a state token.
type AuthURLer interface {
	AuthCodeURL(state string) string
}

// Builder runs one playlist build.
type Builder interface {
	Run(ctx context.Context, opts tasks.BuildOptions, progress chan<- tasks.ProgressUpdate) (*tasks.BuildResult, error)
}

// App serves the browser flow: greeting, login, callback and build.
type App struct {
	session Session
	authURL AuthURLer
	builder Builder
	opts    tasks.BuildOptions
	logger  *log.Logger
	state   func() (string, error)
	secure  bool
}

// NewApp creates an [App] that builds playlists with opts.
func NewApp(session Session, authURL AuthURLer, builder Builder, opts tasks.BuildOptions, logger *log.Logger) *App {
	return &App{
		session: session,
		authURL: authURL,
		builder: builder,
		opts:    opts,
		logger:  logger,
		state:   shared.GenerateState,
	}
}

// SecureCookies marks the state cookie Secure, for deployments behind TLS.
func (a *App) SecureCookies(secure bool) {
	a.secure = secure
}

// Register mounts the app's routes on router.
func (a *App) Register(router *server.BasicRouter) {
	router.HandleFunc(http.MethodGet, "/", a.Index)
	router.HandleFunc(http.MethodGet, "/login", a.Login)
	router.HandleFunc(http.MethodGet, "/callback", a.Callback)
	router.HandleFunc(http.MethodGet, "/start", a.Start)
}

// NewRouter returns a router with logging and panic recovery serving the app.
func NewRouter(a *App) *server.BasicRouter {
	router := server.NewBasicRouter()
	router.Use(server.Recover(a.logger), server.Logging(a.logger))
	a.Register(router)
	return router
}

// Index greets the visitor, differently once the session holds a credential.
func (a *App) Index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if a.session.Authenticated() {
		w.Write([]byte(greetingAuthenticated))
		return
	}
	w.Write([]byte(greetingAnonymous))
}

// Login stores a fresh state token in a cookie and redirects to the authorize URL.
func (a *App) Login(w http.ResponseWriter, r *http.Request) {
	state, err := a.state()
	if err != nil {
		a.logger.Error("failed to generate state", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     StateCookie,
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		Secure:   a.secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, a.authURL.AuthCodeURL(state), http.StatusFound)
}

// Callback checks the state cookie against the query, exchanges the code through the session,
// and redirects home.
//
// A missing or mismatched state redirects to /#error=state_mismatch without an exchange.
func (a *App) Callback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	state := query.Get("state")

	cookie, err := r.Cookie(StateCookie)
	if state == "" || err != nil || cookie.Value != state {
		a.logger.Warn("oauth state mismatch", "has_cookie", err == nil)
		http.Redirect(w, r, "/#error=state_mismatch", http.StatusFound)
		return
	}

	http.SetCookie(w, &http.Cookie{Name: StateCookie, Value: "", Path: "/", MaxAge: -1})

	code := query.Get("code")
	if code == "" {
		a.logger.Warn("authorization denied", "error", query.Get("error"))
		http.Redirect(w, r, "/#error=access_denied", http.StatusFound)
		return
	}

	if err := a.session.Authenticate(r.Context(), code); err != nil {
		a.logger.Error("code exchange failed", "error", err)
		http.Redirect(w, r, "/#error=invalid_token", http.StatusFound)
		return
	}

	http.Redirect(w, r, "/", http.StatusFound)
}

// Start runs a build and renders the matched release covers.
//
// Clients sending Accept: application/json get the full build result instead.
func (a *App) Start(w http.ResponseWriter, r *http.Request) {
	result, err := a.builder.Run(r.Context(), a.opts, nil)
	if err != nil {
		a.writeError(w, err)
		return
	}

	if wantsJSON(r) {
		data, err := shared.MarshalJSON(result, false)
		if err != nil {
			a.writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := coversTemplate.Execute(w, result.Covers()); err != nil {
		a.logger.Error("failed to render covers", "error", err)
	}
}

func (a *App) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	a.logger.Error("build failed", "status", status, "error", err)

	switch status {
	case http.StatusUnauthorized:
		http.Error(w, reauthenticateMessage, status)
	default:
		http.Error(w, http.StatusText(status), status)
	}
}

// statusFor maps a build error to the response status.
//
// An upstream 401 means the access token was rejected, so it is reported like a local auth failure.
func statusFor(err error) int {
	switch {
	case shared.IsAuthError(err), shared.StatusCode(err) == http.StatusUnauthorized:
		return http.StatusUnauthorized
	case shared.IsTransportError(err):
		return http.StatusBadGateway
	case errors.Is(err, shared.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}
