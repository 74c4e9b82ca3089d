// Package errors provides unified error handling for sttkit.
// It implements structured error types with error codes, HTTP status mapping,
// and retryable detection following RFC 7807 and Google AIP-193.
//
// Transcription outcomes map onto dedicated codes: a plan that resolves to no
// usable provider is NO_PROVIDER_AVAILABLE, a plan whose every candidate
// failed is ALL_PROVIDERS_EXHAUSTED, and a job stopped by its context is
// CANCELED.
package errors
