// Package server provides HTTP routing, middleware, and the OAuth callback used by the CLI login flow.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first).
// [Logging] and [Recover] are the two middlewares radar installs on every router.
//
// The [BasicRouter] implementation registers method patterns ("GET /start") on an [http.ServeMux],
// so a request with the wrong method gets 405 from the mux itself.
//
// # OAuth Callback Handler
//
// [OAuthHandler] validates the state parameter, hands the authorization code to an [Authenticator]
// (the credential session), and sends the outcome through a channel.
//
// It only processes one callback.
//
// `radar auth login` starts a temporary server on the configured address, waits for the result,
// and shuts it down. `radar serve` mounts the long-lived handlers from internal/web instead.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
