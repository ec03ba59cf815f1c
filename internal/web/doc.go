// Package web serves the browser flow of `radar serve`.
//
// Routes
//
//	GET /          greeting, which changes once the session is authenticated
//	GET /login     stores a state cookie and redirects to the Spotify authorize URL
//	GET /callback  checks the state, exchanges the code through the session, redirects to /
//	GET /start     runs a build and renders one <img> per matched release cover
//
// /start answers with the JSON build result when the request accepts application/json.
// Authentication failures answer 401 with "please re-authenticate"; upstream failures answer 502.
//
// The session is process-wide: every visitor shares the one credential the server holds.
package web
