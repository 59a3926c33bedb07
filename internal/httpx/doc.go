// Package httpx provides the pooled HTTP transport used by the Pianista API
// client.
//
// The [Client] applies per-request timeouts through the request context,
// limits how much of a response body is read, and reports transport errors
// inside the returned [Response] instead of as a separate return value.
// Status codes are never interpreted here; that is left to callers.
package httpx
