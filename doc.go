// Package pairauth implements cookie-based web authentication around a
// paired access/refresh token protocol.
//
// A SessionManager mints a short-lived access token and a long-lived
// refresh token sharing one rotation id, serialized as httpOnly cookies.
// The refresh cookie is path-restricted to the refresh endpoint, and both
// cookies live as long as the refresh token so an expired-but-present
// access cookie can signal "refreshable" rather than "logged out".
// Refreshing verifies the pair, requires matching rotation ids, and
// reissues both tokens under a new id, which retires the old refresh
// token.
//
// Handlers composes a SessionManager with pluggable identity providers
// (see the providers subpackage), storage backends (see stores), and an
// optional email service into complete OAuth, email signup, email login,
// and password reset flows, mounted via a gorilla/mux router.
//
// The client subpackage provides an http.RoundTripper that refreshes
// expired sessions transparently; the grpc subpackage verifies the same
// access tokens on gRPC metadata.
package pairauth
