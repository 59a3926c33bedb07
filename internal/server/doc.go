// Package server provides the local job gateway: a REST API over tracked
// Pianista jobs, a Server-Sent Events stream of job transitions, and an
// optional embedded dashboard.
//
// Job submissions are delegated to a [Tracker], which submits to the
// Pianista API and starts a poller for every job that answers 202. The
// server itself never talks to the API.
//
// The server supports graceful shutdown via context cancellation, with a
// 5-second timeout for in-flight requests.
package server
