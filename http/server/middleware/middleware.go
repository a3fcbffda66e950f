// Package middleware provides the fiber middlewares of the HTTP server.
//
// Middlewares carry a priority and run from the highest to the lowest:
//
//   - Recovery (1000): turns panics into errors
//   - Tracing (900): starts the server span and sets X-Trace-ID
//   - Timeout (800): bounds the request context
//   - MetaInject (700): injects request metadata into the context
//   - Alerting (600): alerts internal errors
//   - Logger (500): logs every request
//   - ErrorHandler (400): renders errors as JSON
package middleware
