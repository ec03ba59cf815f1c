// Package session owns the OAuth credential for the single signed-in user.
//
// # State
//
// A [Session] is either Unauthenticated or Authenticated. It starts
// Unauthenticated and moves to Authenticated after a successful code exchange
// ([Session.Authenticate]) or refresh ([Session.EnsureValid]). A failed API
// call never demotes it.
//
// # Refresh before call
//
// Callers that issue authenticated requests go through [Session.Authorize],
// which refreshes transparently when the session is Unauthenticated and a
// refresh token is on hand. When the refresh fails, or there is nothing to
// refresh, Authorize returns a [shared.AuthError] and no request is sent.
//
// Expiry is not checked proactively: an expired access token on an
// Authenticated session is only noticed when the service rejects the call.
//
// # Exchanger
//
// Token endpoint traffic lives behind the [Exchanger] interface.
// [OAuthExchanger] implements it with golang.org/x/oauth2 against the Spotify
// accounts service.
package session
