// package services implements the Spotify Web API collaborator used by build runs
package services

import (
	"context"
	"io"
	"net/http"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"
)

const spotifyBaseURL = "https://api.spotify.com/v1"

// Authorizer supplies the Authorization header for each outbound call.
//
// Implemented by session.Session, which refreshes before returning when needed.
type Authorizer interface {
	Authorize(ctx context.Context) (string, error)
}

// Option configures a [SpotifyService] or [APIService].
type Option func(*client)

// client holds the transport settings shared by both services.
type client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *log.Logger
}

func newClient(opts []Option) client {
	c := client{baseURL: spotifyBaseURL, httpClient: http.DefaultClient}
	for _, opt := range opts {
		opt(&c)
	}
	if c.logger == nil {
		c.logger = log.New(io.Discard)
	}
	return c
}

// WithBaseURL overrides the Web API root.
func WithBaseURL(u string) Option {
	return func(c *client) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithHTTPClient sets the client used for requests.
func WithHTTPClient(h *http.Client) Option {
	return func(c *client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithRateLimit paces outbound requests. A non-positive rate disables pacing.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *client) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithLogger sets the request logger.
func WithLogger(l *log.Logger) Option {
	return func(c *client) { c.logger = l }
}

// wait blocks until the limiter admits another request.
func (c *client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}
