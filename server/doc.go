// Package server exposes the transcription executor over HTTP using Gin.
//
// Routes:
//
//   - POST /v1/transcriptions runs a plan synchronously and returns the job
//   - GET /v1/providers lists registered providers with their availability
//   - GET /healthz aggregates provider availability
//
// Middleware (server/middleware) covers panic recovery, request IDs, body
// size limits, request logging with metrics, and a concurrency cap on
// transcription requests.
package server
