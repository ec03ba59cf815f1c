package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/radar/internal/models"
	"github.com/desertthunder/radar/internal/shared"
)

// Exchanger trades authorization codes and refresh tokens for credentials.
type Exchanger interface {
	Exchange(ctx context.Context, code string) (models.Credential, error)
	Refresh(ctx context.Context, refreshToken string) (models.Credential, error)
}

// State is the authentication state of a [Session].
type State int

const (
	Unauthenticated State = iota
	Authenticated
)

func (s State) String() string {
	switch s {
	case Authenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}

// Session holds the current credential and serializes refreshes.
type Session struct {
	mu        sync.Mutex
	exchanger Exchanger
	cred      models.Credential
	state     State
	logger    *log.Logger
	onChange  func(models.Credential)
}

// New creates an Unauthenticated session backed by ex.
func New(ex Exchanger, logger *log.Logger) *Session {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Session{exchanger: ex, logger: logger}
}

// OnCredential registers fn to be called with each newly issued credential.
func (s *Session) OnCredential(fn func(models.Credential)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// Restore seeds the session with a previously issued credential.
//
// The session stays Unauthenticated so the first authorized call refreshes.
func (s *Session) Restore(cred models.Credential) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = cred
	s.state = Unauthenticated
}

// Authenticate exchanges a one-time authorization code for a credential.
func (s *Session) Authenticate(ctx context.Context, code string) error {
	if code == "" {
		return &shared.AuthError{Op: "exchange", Err: fmt.Errorf("%w: empty authorization code", shared.ErrInvalidInput)}
	}

	cred, err := s.exchanger.Exchange(ctx, code)
	if err != nil {
		return &shared.AuthError{Op: "exchange", Err: err}
	}

	s.mu.Lock()
	s.store(cred)
	s.mu.Unlock()

	s.logger.Info("session authenticated", "scopes", len(cred.Scopes))
	return nil
}

// EnsureValid reports whether the session can issue authenticated calls,
// refreshing first when it is Unauthenticated.
//
// It returns false with a nil error when there is no refresh token to use,
// and false with an [shared.AuthError] when the refresh itself fails.
func (s *Session) EnsureValid(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Authenticated {
		return true, nil
	}
	if s.cred.RefreshToken == "" {
		return false, nil
	}

	cred, err := s.exchanger.Refresh(ctx, s.cred.RefreshToken)
	if err != nil {
		s.logger.Warn("credential refresh failed", "error", err)
		return false, &shared.AuthError{Op: "refresh", Err: fmt.Errorf("%w: %w", shared.ErrRefreshFailed, err)}
	}
	if cred.RefreshToken == "" {
		cred.RefreshToken = s.cred.RefreshToken
	}

	s.store(cred)
	s.logger.Debug("credential refreshed")
	return true, nil
}

// Authorize returns the Authorization header value for the next call.
//
// No header is produced unless [Session.EnsureValid] succeeds.
func (s *Session) Authorize(ctx context.Context) (string, error) {
	ok, err := s.EnsureValid(ctx)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", &shared.AuthError{Op: "authorize", Err: shared.ErrNotAuthenticated}
	}
	return s.Authorization(), nil
}

// Authorization joins the token type and access token.
func (s *Session) Authorization() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return authorization(s.cred)
}

// Credential returns a copy of the current credential.
func (s *Session) Credential() models.Credential {
	s.mu.Lock()
	defer s.mu.Unlock()
	cred := s.cred
	cred.Scopes = append([]string(nil), s.cred.Scopes...)
	return cred
}

// Authenticated reports whether the session is in the Authenticated state.
func (s *Session) Authenticated() bool {
	return s.State() == Authenticated
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// store replaces the credential wholesale. Callers hold s.mu.
func (s *Session) store(cred models.Credential) {
	s.cred = cred
	s.state = Authenticated
	if s.onChange != nil {
		s.onChange(cred)
	}
}

func authorization(cred models.Credential) string {
	return cred.TokenType + " " + cred.AccessToken
}
